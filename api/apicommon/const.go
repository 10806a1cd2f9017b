// Package apicommon provides common types, constants, and helper functions for the API.
package apicommon

// Payment types reported in the history payload.
const (
	PaymentTypeIntent  = "payment_intent"
	PaymentTypeInvoice = "invoice"
)
