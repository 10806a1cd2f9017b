package api

const (
	// GET /ping liveness check
	pingEndpoint = "/ping"
	// GET /metrics Prometheus exposition
	metricsEndpoint = "/metrics"

	// payment routes

	// POST /create-subscription-product to create an installment plan
	createPlanEndpoint = "/create-subscription-product"
	// POST /create-subscription to subscribe a customer to a plan
	createSubscriptionEndpoint = "/create-subscription"
	// POST /create-payment-intent to create a one-off payment
	createPaymentIntentEndpoint = "/create-payment-intent"
	// POST /webhook to receive Stripe events
	webhookEndpoint = "/webhook"

	// receipt routes

	// GET /payment-receipt?customer_id=cus_...&subscription_id=sub_... to get
	// the reconciled payment history
	paymentReceiptEndpoint = "/payment-receipt"
	// GET /download-receipt/{paymentId} to get the receipt of a payment
	downloadReceiptEndpoint = "/download-receipt/{paymentId}"

	// storage routes

	// POST /upload to store a legal document
	uploadEndpoint = "/upload"
)
