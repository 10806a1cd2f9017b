package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/investplan/payments-backend/api/apicommon"
	"github.com/investplan/payments-backend/errors"
	"github.com/investplan/payments-backend/stripe"
	"github.com/investplan/payments-backend/validator"
)

// createInstallmentPlanHandler godoc
//
//	@Summary		Create an installment plan
//	@Description	Create a product holding the plan figures and its monthly recurring price.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apicommon.CreatePlanRequest	true	"Plan amounts in minor units"
//	@Success		200		{object}	apicommon.CreatePlanResponse
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		403		{object}	errors.Error	"Rejected by the payment processor"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/create-subscription-product [post]
func (a *API) createInstallmentPlanHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	req, ok := validator.ValidatedModel[apicommon.CreatePlanRequest](r.Context())
	if !ok {
		errors.ErrMalformedBody.Write(w)
		return
	}
	plan, err := a.stripe.CreateInstallmentPlan(r.Context(), &stripe.InstallmentPlanParams{
		MonthlyAmount:    req.Amount,
		InvestmentAmount: req.InvestmentAmount,
		Currency:         req.Currency,
		CustomerName:     req.CustomerName,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.CreatePlanResponse{
		ProductID: plan.ProductID,
		PriceID:   plan.PriceID,
	})
}

// createSubscriptionHandler godoc
//
//	@Summary		Subscribe a customer to an installment plan
//	@Description	Create a customer, subscribe it to the plan price and create the first installment payment.
//	@Description	The returned client secret confirms that first installment.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apicommon.CreateSubscriptionRequest	true	"Plan price and customer"
//	@Success		200		{object}	apicommon.CreateSubscriptionResponse
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		403		{object}	errors.Error	"Rejected by the payment processor"
//	@Failure		404		{object}	errors.Error	"Price not found"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/create-subscription [post]
func (a *API) createSubscriptionHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	req, ok := validator.ValidatedModel[apicommon.CreateSubscriptionRequest](r.Context())
	if !ok {
		errors.ErrMalformedBody.Write(w)
		return
	}
	res, err := a.stripe.CreateSubscription(r.Context(), &stripe.SubscriptionParams{
		PriceID:           req.PriceID,
		CustomerName:      req.CustomerName,
		PaymentMethodType: req.PaymentMethodType,
		PaymentMethodID:   req.PaymentMethodID,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.CreateSubscriptionResponse{
		SubscriptionID: res.SubscriptionID,
		ClientSecret:   res.ClientSecret,
		CustomerID:     res.CustomerID,
	})
}

// createPaymentIntentHandler godoc
//
//	@Summary		Create a one-off payment
//	@Description	Create a card payment intent with free-form metadata.
//	@Tags			payments
//	@Accept			json
//	@Produce		json
//	@Param			request	body		apicommon.CreatePaymentIntentRequest	true	"Amount in minor units"
//	@Success		200		{object}	apicommon.CreatePaymentIntentResponse
//	@Failure		400		{object}	errors.Error	"Invalid input data"
//	@Failure		403		{object}	errors.Error	"Rejected by the payment processor"
//	@Failure		500		{object}	errors.Error	"Internal server error"
//	@Router			/create-payment-intent [post]
func (a *API) createPaymentIntentHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	req, ok := validator.ValidatedModel[apicommon.CreatePaymentIntentRequest](r.Context())
	if !ok {
		errors.ErrMalformedBody.Write(w)
		return
	}
	secret, err := a.stripe.CreatePaymentIntent(r.Context(), &stripe.PaymentIntentParams{
		Amount:   req.Amount,
		Currency: req.Currency,
		Metadata: req.Metadata,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, &apicommon.CreatePaymentIntentResponse{ClientSecret: secret})
}

// paymentHistoryHandler godoc
//
//	@Summary		Get the payment history of a customer
//	@Description	Reconcile the one-off payments and paid invoices of a customer into a single history, newest
//	@Description	first, with the total paid and the balance left on the investment. The customer is given
//	@Description	directly or resolved from a subscription.
//	@Tags			receipts
//	@Produce		json
//	@Param			customer_id		query		string	false	"Customer ID"
//	@Param			subscription_id	query		string	false	"Subscription ID"
//	@Success		200				{object}	apicommon.PaymentHistoryResponse
//	@Failure		400				{object}	errors.Error	"Missing identifiers or inconsistent payments"
//	@Failure		403				{object}	errors.Error	"Rejected by the payment processor"
//	@Failure		404				{object}	errors.Error	"Customer or subscription not found"
//	@Failure		500				{object}	errors.Error	"Internal server error"
//	@Router			/payment-receipt [get]
func (a *API) paymentHistoryHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	customerID := r.URL.Query().Get("customer_id")
	subscriptionID := r.URL.Query().Get("subscription_id")
	if customerID == "" && subscriptionID == "" {
		errors.ErrMalformedURLParam.With("Either customer_id or subscription_id is required").Write(w)
		return
	}
	history, err := a.stripe.PaymentHistory(r.Context(), customerID, subscriptionID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.NewPaymentHistoryResponse(history))
}

// downloadReceiptHandler godoc
//
//	@Summary		Get the receipt of a payment
//	@Description	Build the receipt of a payment intent, or of an invoice for in_ identifiers, with the card
//	@Description	charged and the installment plan figures when the payment belongs to a subscription.
//	@Tags			receipts
//	@Produce		json
//	@Param			paymentId	path		string	true	"Payment intent or invoice ID"
//	@Success		200			{object}	apicommon.ReceiptResponse
//	@Failure		400			{object}	errors.Error	"Missing payment ID"
//	@Failure		403			{object}	errors.Error	"Rejected by the payment processor"
//	@Failure		404			{object}	errors.Error	"Payment not found"
//	@Failure		500			{object}	errors.Error	"Internal server error"
//	@Router			/download-receipt/{paymentId} [get]
func (a *API) downloadReceiptHandler(w http.ResponseWriter, r *http.Request) {
	if !a.paymentsAvailable(w) {
		return
	}
	paymentID := chi.URLParam(r, "paymentId")
	if paymentID == "" {
		errors.ErrMalformedURLParam.With("Payment ID is required").Write(w)
		return
	}
	receipt, err := a.stripe.Receipt(r.Context(), paymentID)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	apicommon.HTTPWriteJSON(w, apicommon.NewReceiptResponse(receipt))
}
