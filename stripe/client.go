package stripe

import (
	"context"
	"errors"

	stripeapi "github.com/stripe/stripe-go/v81"
	stripeclient "github.com/stripe/stripe-go/v81/client"
	stripewebhook "github.com/stripe/stripe-go/v81/webhook"
	"go.vocdoni.io/dvote/log"

	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/metrics"
)

// Client wraps an explicitly constructed Stripe API handle. Nothing in this
// package touches the library's global key, so several clients with
// different keys can coexist.
type Client struct {
	api     *stripeclient.API
	config  *Config
	metrics *metrics.Metrics
}

// NewClient creates a new Stripe client with the given configuration
func NewClient(config *Config, m *metrics.Metrics) (*Client, error) {
	if config == nil {
		return nil, ErrInvalidConfiguration
	}
	config.setDefaults()
	if err := config.validate(); err != nil {
		return nil, err
	}

	backendConfig := &stripeapi.BackendConfig{
		MaxNetworkRetries: stripeapi.Int64(0),
		LeveledLogger:     leveledLogger{},
	}
	if config.APIURL != "" {
		backendConfig.URL = stripeapi.String(config.APIURL)
	}
	backends := &stripeapi.Backends{
		API:     stripeapi.GetBackendWithConfig(stripeapi.APIBackend, backendConfig),
		Connect: stripeapi.GetBackendWithConfig(stripeapi.ConnectBackend, backendConfig),
		Uploads: stripeapi.GetBackendWithConfig(stripeapi.UploadsBackend, backendConfig),
	}

	return &Client{
		api:     stripeclient.New(config.APIKey, backends),
		config:  config,
		metrics: m,
	}, nil
}

// ValidateWebhookEvent validates and parses a webhook event
func (c *Client) ValidateWebhookEvent(payload []byte, signatureHeader string) (*stripeapi.Event, error) {
	event, err := stripewebhook.ConstructEventWithOptions(payload, signatureHeader, c.config.WebhookSecret,
		stripewebhook.ConstructEventOptions{IgnoreAPIVersionMismatch: c.config.IgnoreAPIVersionMismatch})
	if err != nil {
		return nil, NewStripeError(ErrWebhookValidation.Code, ErrWebhookValidation.Message, err)
	}
	return &event, nil
}

// IsSignatureError reports whether a webhook validation error comes from a
// missing, malformed, stale or mismatched signature rather than from an
// unreadable payload.
func IsSignatureError(err error) bool {
	return errors.Is(err, stripewebhook.ErrNotSigned) ||
		errors.Is(err, stripewebhook.ErrInvalidHeader) ||
		errors.Is(err, stripewebhook.ErrNoValidSignature) ||
		errors.Is(err, stripewebhook.ErrTooOld)
}

// CreateProduct creates a product with the given name and metadata.
func (c *Client) CreateProduct(ctx context.Context, name string, metadata map[string]string) (*stripeapi.Product, error) {
	params := &stripeapi.ProductParams{Name: stripeapi.String(name)}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	var product *stripeapi.Product
	err := c.retry(ctx, "create_product", func() (err error) {
		product, err = c.api.Products.New(params)
		return wrapAPIError("product", name, err)
	})
	return product, err
}

// GetProduct retrieves a product by ID
func (c *Client) GetProduct(ctx context.Context, productID string) (*stripeapi.Product, error) {
	params := &stripeapi.ProductParams{}
	params.Context = ctx
	var product *stripeapi.Product
	err := c.retry(ctx, "get_product", func() (err error) {
		product, err = c.api.Products.Get(productID, params)
		return wrapAPIError("product", productID, err)
	})
	return product, err
}

// CreateMonthlyPrice creates a price billed every month for the product.
func (c *Client) CreateMonthlyPrice(ctx context.Context, productID string, amount int64, currency string,
) (*stripeapi.Price, error) {
	params := &stripeapi.PriceParams{
		Product:    stripeapi.String(productID),
		UnitAmount: stripeapi.Int64(amount),
		Currency:   stripeapi.String(currency),
		Recurring: &stripeapi.PriceRecurringParams{
			Interval:      stripeapi.String(string(stripeapi.PriceRecurringIntervalMonth)),
			IntervalCount: stripeapi.Int64(1),
		},
	}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	var price *stripeapi.Price
	err := c.retry(ctx, "create_price", func() (err error) {
		price, err = c.api.Prices.New(params)
		return wrapAPIError("price", productID, err)
	})
	return price, err
}

// GetPrice retrieves a price by ID
func (c *Client) GetPrice(ctx context.Context, priceID string) (*stripeapi.Price, error) {
	params := &stripeapi.PriceParams{}
	params.Context = ctx
	var price *stripeapi.Price
	err := c.retry(ctx, "get_price", func() (err error) {
		price, err = c.api.Prices.Get(priceID, params)
		return wrapAPIError("price", priceID, err)
	})
	return price, err
}

// CreateCustomer creates a customer, attaching the payment method when given.
func (c *Client) CreateCustomer(ctx context.Context, name, paymentMethodID string, metadata map[string]string,
) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{Name: stripeapi.String(name)}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	if paymentMethodID != "" {
		params.PaymentMethod = stripeapi.String(paymentMethodID)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	var customer *stripeapi.Customer
	err := c.retry(ctx, "create_customer", func() (err error) {
		customer, err = c.api.Customers.New(params)
		return wrapAPIError("customer", name, err)
	})
	return customer, err
}

// SetDefaultPaymentMethod makes paymentMethodID the method invoices of the
// customer are charged to.
func (c *Client) SetDefaultPaymentMethod(ctx context.Context, customerID, paymentMethodID string) error {
	params := &stripeapi.CustomerParams{
		InvoiceSettings: &stripeapi.CustomerInvoiceSettingsParams{
			DefaultPaymentMethod: stripeapi.String(paymentMethodID),
		},
	}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	return c.retry(ctx, "update_customer", func() error {
		_, err := c.api.Customers.Update(customerID, params)
		return wrapAPIError("customer", customerID, err)
	})
}

// GetCustomer retrieves a customer by ID
func (c *Client) GetCustomer(ctx context.Context, customerID string) (*stripeapi.Customer, error) {
	params := &stripeapi.CustomerParams{}
	params.Context = ctx
	var customer *stripeapi.Customer
	err := c.retry(ctx, "get_customer", func() (err error) {
		customer, err = c.api.Customers.Get(customerID, params)
		return wrapAPIError("customer", customerID, err)
	})
	if err == nil && customer.Deleted {
		return nil, &ledger.NotFoundError{Kind: "customer", ID: customerID}
	}
	return customer, err
}

// CreateSubscription subscribes the customer to the price.
func (c *Client) CreateSubscription(ctx context.Context, customerID, priceID, paymentMethodType string,
	metadata map[string]string,
) (*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionParams{
		Customer: stripeapi.String(customerID),
		Items: []*stripeapi.SubscriptionItemsParams{
			{Price: stripeapi.String(priceID)},
		},
		PaymentSettings: &stripeapi.SubscriptionPaymentSettingsParams{
			PaymentMethodTypes:       []*string{stripeapi.String(paymentMethodType)},
			SaveDefaultPaymentMethod: stripeapi.String("on_subscription"),
		},
	}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	var sub *stripeapi.Subscription
	err := c.retry(ctx, "create_subscription", func() (err error) {
		sub, err = c.api.Subscriptions.New(params)
		return wrapAPIError("subscription", customerID, err)
	})
	return sub, err
}

// GetSubscription retrieves a subscription by ID
func (c *Client) GetSubscription(ctx context.Context, subscriptionID string) (*stripeapi.Subscription, error) {
	params := &stripeapi.SubscriptionParams{}
	params.Context = ctx
	var sub *stripeapi.Subscription
	err := c.retry(ctx, "get_subscription", func() (err error) {
		sub, err = c.api.Subscriptions.Get(subscriptionID, params)
		return wrapAPIError("subscription", subscriptionID, err)
	})
	return sub, err
}

// CreatePaymentIntent creates a card payment intent. customerID may be empty.
func (c *Client) CreatePaymentIntent(ctx context.Context, amount int64, currency, customerID string,
	metadata map[string]string,
) (*stripeapi.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{
		Amount:             stripeapi.Int64(amount),
		Currency:           stripeapi.String(currency),
		PaymentMethodTypes: []*string{stripeapi.String("card")},
	}
	params.Context = ctx
	// retries must reuse the key so Stripe replays instead of creating twice
	params.IdempotencyKey = stripeapi.String(stripeapi.NewIdempotencyKey())
	if customerID != "" {
		params.Customer = stripeapi.String(customerID)
	}
	for k, v := range metadata {
		params.AddMetadata(k, v)
	}
	var pi *stripeapi.PaymentIntent
	err := c.retry(ctx, "create_payment_intent", func() (err error) {
		pi, err = c.api.PaymentIntents.New(params)
		return wrapAPIError("payment intent", customerID, err)
	})
	return pi, err
}

// GetPaymentIntent retrieves a payment intent with its latest charge expanded.
func (c *Client) GetPaymentIntent(ctx context.Context, paymentIntentID string) (*stripeapi.PaymentIntent, error) {
	params := &stripeapi.PaymentIntentParams{}
	params.Context = ctx
	params.AddExpand("latest_charge")
	var pi *stripeapi.PaymentIntent
	err := c.retry(ctx, "get_payment_intent", func() (err error) {
		pi, err = c.api.PaymentIntents.Get(paymentIntentID, params)
		return wrapAPIError("payment", paymentIntentID, err)
	})
	return pi, err
}

// GetInvoice retrieves an invoice with its payment intent and the latest
// charge of that intent expanded.
func (c *Client) GetInvoice(ctx context.Context, invoiceID string) (*stripeapi.Invoice, error) {
	params := &stripeapi.InvoiceParams{}
	params.Context = ctx
	params.AddExpand("payment_intent.latest_charge")
	var inv *stripeapi.Invoice
	err := c.retry(ctx, "get_invoice", func() (err error) {
		inv, err = c.api.Invoices.Get(invoiceID, params)
		return wrapAPIError("invoice", invoiceID, err)
	})
	return inv, err
}

// ListPaymentIntents returns every payment intent of the customer, walking
// all the result pages.
func (c *Client) ListPaymentIntents(ctx context.Context, customerID string) ([]*stripeapi.PaymentIntent, error) {
	var intents []*stripeapi.PaymentIntent
	err := c.retry(ctx, "list_payment_intents", func() error {
		intents = intents[:0]
		params := &stripeapi.PaymentIntentListParams{Customer: stripeapi.String(customerID)}
		params.Context = ctx
		params.Limit = stripeapi.Int64(100)
		it := c.api.PaymentIntents.List(params)
		for it.Next() {
			intents = append(intents, it.PaymentIntent())
		}
		return wrapAPIError("customer", customerID, it.Err())
	})
	return intents, err
}

// ListPaidInvoices returns every paid invoice of the customer, walking all
// the result pages.
func (c *Client) ListPaidInvoices(ctx context.Context, customerID string) ([]*stripeapi.Invoice, error) {
	var invoices []*stripeapi.Invoice
	err := c.retry(ctx, "list_invoices", func() error {
		invoices = invoices[:0]
		params := &stripeapi.InvoiceListParams{
			Customer: stripeapi.String(customerID),
			Status:   stripeapi.String(string(stripeapi.InvoiceStatusPaid)),
		}
		params.Context = ctx
		params.Limit = stripeapi.Int64(100)
		it := c.api.Invoices.List(params)
		for it.Next() {
			invoices = append(invoices, it.Invoice())
		}
		return wrapAPIError("customer", customerID, it.Err())
	})
	return invoices, err
}

// leveledLogger sends the library's own log lines to the service logger.
// Request failures are logged by the callers, so library errors stay at debug.
type leveledLogger struct{}

func (leveledLogger) Debugf(format string, v ...any) { log.Debugf("stripe: "+format, v...) }
func (leveledLogger) Infof(format string, v ...any)  { log.Debugf("stripe: "+format, v...) }
func (leveledLogger) Warnf(format string, v ...any)  { log.Warnf("stripe: "+format, v...) }
func (leveledLogger) Errorf(format string, v ...any) { log.Debugf("stripe: "+format, v...) }
