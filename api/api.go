// Package api provides the HTTP API of the installment payments backend
//
//	@title			Installment Payments API
//	@version		1.0
//	@description	Installment plans, payment history and receipts on top of Stripe, plus legal document uploads.
//
//	@host			localhost:8080
//	@BasePath		/
//	@schemes		http https
//
//	@tag.name			payments
//	@tag.description	Installment plans, subscriptions and one-off payments
//
//	@tag.name			receipts
//	@tag.description	Payment history and receipts
//
//	@tag.name			storage
//	@tag.description	Document uploads
package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/api/apicommon"
	"github.com/investplan/payments-backend/metrics"
	"github.com/investplan/payments-backend/objectstorage"
	"github.com/investplan/payments-backend/stripe"
	"github.com/investplan/payments-backend/validator"
)

const (
	// webhookMaxBodyBytes caps the size of a webhook delivery.
	webhookMaxBodyBytes = int64(65536)
	// requestTimeout bounds a whole request, vendor retries included.
	requestTimeout = 45 * time.Second
)

// Config holds the dependencies and listening address of the API.
type Config struct {
	Host string
	Port int
	// Stripe serves every payment route. Without it those routes answer
	// "Stripe service not available".
	Stripe *stripe.Service
	// ObjectStorage stores uploads. A nil client answers uploads with a
	// "not configured" error.
	ObjectStorage *objectstorage.Client
	// Metrics records request metrics and serves /metrics when set.
	Metrics *metrics.Metrics
	// AllowedOrigins for CORS, all when empty.
	AllowedOrigins []string
}

// API type represents the API HTTP server.
type API struct {
	host           string
	port           int
	router         *chi.Mux
	stripe         *stripe.Service
	objectStorage  *objectstorage.Client
	metrics        *metrics.Metrics
	validator      *validator.Validator
	allowedOrigins []string
}

// New creates a new API HTTP server. It does not start the server. Use Start() for that.
func New(conf *Config) *API {
	if conf == nil {
		return nil
	}
	origins := conf.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return &API{
		host:           conf.Host,
		port:           conf.Port,
		stripe:         conf.Stripe,
		objectStorage:  conf.ObjectStorage,
		metrics:        conf.Metrics,
		validator:      validator.New(),
		allowedOrigins: origins,
	}
}

// Start starts the API HTTP server (non blocking).
func (a *API) Start() {
	go func() {
		if err := http.ListenAndServe(fmt.Sprintf("%s:%d", a.host, a.port), a.Router()); err != nil {
			log.Fatalf("failed to start the API server: %v", err)
		}
	}()
}

// Router returns the HTTP handler of the API, building it on first use.
func (a *API) Router() http.Handler {
	if a.router == nil {
		a.initRouter()
	}
	return a.router
}

// initRouter creates the router with all the routes and middleware.
func (a *API) initRouter() http.Handler {
	// Create the router with a basic middleware stack
	r := chi.NewRouter()
	r.Use(cors.New(cors.Options{
		AllowedOrigins:   a.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Stripe-Signature"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}).Handler)
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(a.metricsMiddleware)
	r.Use(middleware.Throttle(100))
	r.Use(middleware.ThrottleBacklog(5000, 40000, 60*time.Second))
	r.Use(middleware.Timeout(requestTimeout))

	r.Get(pingEndpoint, func(w http.ResponseWriter, _ *http.Request) {
		if _, err := w.Write([]byte(".")); err != nil {
			log.Warnw("failed to write ping response", "error", err)
		}
	})
	if a.metrics != nil {
		log.Infow("new route", "method", "GET", "path", metricsEndpoint)
		r.Method(http.MethodGet, metricsEndpoint, a.metrics.Handler())
	}

	// payment routes
	// create an installment plan product and its monthly price
	log.Infow("new route", "method", "POST", "path", createPlanEndpoint)
	r.With(a.validateInputModel(apicommon.CreatePlanRequest{}), a.InputValidator).
		Post(createPlanEndpoint, a.createInstallmentPlanHandler)
	// subscribe a new customer to a plan
	log.Infow("new route", "method", "POST", "path", createSubscriptionEndpoint)
	r.With(a.validateInputModel(apicommon.CreateSubscriptionRequest{}), a.InputValidator).
		Post(createSubscriptionEndpoint, a.createSubscriptionHandler)
	// create a one-off payment
	log.Infow("new route", "method", "POST", "path", createPaymentIntentEndpoint)
	r.With(a.validateInputModel(apicommon.CreatePaymentIntentRequest{}), a.InputValidator).
		Post(createPaymentIntentEndpoint, a.createPaymentIntentHandler)
	// handle stripe webhook
	log.Infow("new route", "method", "POST", "path", webhookEndpoint)
	r.Post(webhookEndpoint, a.webhookHandler)
	// reconciled payment history
	log.Infow("new route", "method", "GET", "path", paymentReceiptEndpoint)
	r.Get(paymentReceiptEndpoint, a.paymentHistoryHandler)
	// single payment receipt
	log.Infow("new route", "method", "GET", "path", downloadReceiptEndpoint)
	r.Get(downloadReceiptEndpoint, a.downloadReceiptHandler)
	// upload a document to the object storage
	log.Infow("new route", "method", "POST", "path", uploadEndpoint)
	r.Post(uploadEndpoint, a.objectStorage.UploadHandler)

	a.router = r
	return r
}
