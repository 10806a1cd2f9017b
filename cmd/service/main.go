package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/api"
	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/metrics"
	"github.com/investplan/payments-backend/objectstorage"
	"github.com/investplan/payments-backend/stripe"
)

func main() {
	// a local .env file is optional, real environment variables win
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		panic(err)
	}
	// define flags
	flag.StringP("host", "h", "0.0.0.0", "listen address")
	flag.IntP("port", "p", 8080, "listen port")
	flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.StringSlice("allowed-origins", nil, "CORS allowed origins, all when empty")
	flag.String("stripe-secret-key", "", "Stripe API secret key")
	flag.String("stripe-webhook-secret", "", "Stripe webhook signing secret")
	flag.String("stripe-api-url", "", "Stripe API URL override")
	flag.String("default-currency", ledger.DefaultCurrency, "currency used when a request names none")
	flag.Uint64("stripe-max-retries", stripe.DefaultMaxRetries, "retries of a temporary Stripe failure")
	flag.Int("webhook-processed-events", stripe.DefaultProcessedEvents, "webhook event ids remembered for deduplication")
	flag.Duration("webhook-processed-events-ttl", stripe.DefaultProcessedEventsTTL, "how long a webhook event id is remembered")
	flag.String("tos-access-key", "", "object storage access key")
	flag.String("tos-secret-key", "", "object storage secret key")
	flag.String("tos-endpoint", objectstorage.DefaultEndpoint, "object storage endpoint")
	flag.String("tos-region", objectstorage.DefaultRegion, "object storage region")
	flag.String("tos-bucket", objectstorage.DefaultBucket, "object storage bucket for documents")
	flag.Int64("max-upload-size", objectstorage.DefaultMaxFileSize, "largest accepted document in bytes")
	flag.StringSlice("allowed-extensions", objectstorage.DefaultAllowedExtensions, "accepted document extensions")
	flag.Bool("tos-path-style", false, "address the bucket in the URL path")
	// parse flags
	flag.Parse()
	// initialize Viper, STRIPE_SECRET_KEY sets stripe-secret-key
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	if err := viper.BindPFlags(flag.CommandLine); err != nil {
		panic(err)
	}
	viper.AutomaticEnv()

	log.Init(viper.GetString("log-level"), "stdout", nil)
	host := viper.GetString("host")
	port := viper.GetInt("port")
	m := metrics.New()

	// payment processor
	stripeConf := stripe.NewConfig(viper.GetString("stripe-secret-key"), viper.GetString("stripe-webhook-secret"))
	stripeConf.APIURL = viper.GetString("stripe-api-url")
	stripeConf.DefaultCurrency = strings.ToLower(viper.GetString("default-currency"))
	stripeConf.MaxRetries = viper.GetUint64("stripe-max-retries")
	stripeConf.ProcessedEvents = viper.GetInt("webhook-processed-events")
	stripeConf.ProcessedEventsTTL = viper.GetDuration("webhook-processed-events-ttl")
	stripeService, err := stripe.NewService(stripeConf, m)
	if err != nil {
		log.Warnw("stripe not configured, payment routes are disabled", "error", err.Error())
	}

	// document storage
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	storage, err := objectstorage.New(ctx, &objectstorage.Config{
		Endpoint:          viper.GetString("tos-endpoint"),
		Region:            viper.GetString("tos-region"),
		Bucket:            viper.GetString("tos-bucket"),
		AccessKey:         viper.GetString("tos-access-key"),
		SecretKey:         viper.GetString("tos-secret-key"),
		AllowedExtensions: viper.GetStringSlice("allowed-extensions"),
		MaxFileSize:       viper.GetInt64("max-upload-size"),
		UsePathStyle:      viper.GetBool("tos-path-style"),
	}, m)
	switch {
	case errors.Is(err, objectstorage.ErrCredentialsNotConfigured):
		log.Warnw("object storage credentials not configured, uploads are disabled")
	case err != nil:
		log.Fatalf("could not create the object storage client: %v", err)
	default:
		if err := storage.CheckBucket(ctx); err != nil {
			log.Warnw("object storage bucket not reachable", "bucket", storage.Bucket(), "error", err.Error())
		}
	}
	cancel()

	// create the local API server
	api.New(&api.Config{
		Host:           host,
		Port:           port,
		Stripe:         stripeService,
		ObjectStorage:  storage,
		Metrics:        m,
		AllowedOrigins: viper.GetStringSlice("allowed-origins"),
	}).Start()
	// wait forever, as the server is running in a goroutine
	log.Infow("server started", "host", host, "port", port)
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
}
