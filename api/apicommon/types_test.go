package apicommon

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"

	"github.com/investplan/payments-backend/ledger"
	"github.com/investplan/payments-backend/stripe"
)

func TestFormatAmount(t *testing.T) {
	c := qt.New(t)

	c.Assert(FormatAmount(50000, "sgd"), qt.Equals, "$500.00")
	c.Assert(FormatAmount(123456, "USD"), qt.Equals, "$1,234.56")
	c.Assert(FormatAmount(0, "sgd"), qt.Equals, "$0.00")
	c.Assert(FormatAmount(100, ""), qt.Equals, "")
}

func TestNewPaymentHistoryResponse(t *testing.T) {
	c := qt.New(t)

	day := func(d int) time.Time { return time.Date(2024, time.March, d, 0, 0, 0, 0, time.UTC) }
	l, err := ledger.Reconcile(
		[]ledger.DirectPayment{{
			ID: "pi_first", Amount: 50000, Currency: "sgd", Created: day(1),
			Succeeded: true, LinkedSubscriptionID: "sub_1", FirstInstallment: true,
		}},
		[]ledger.RecurringPayment{{
			InvoiceID: "in_2", LinkedPaymentID: "pi_second", AmountPaid: 50000, Currency: "sgd",
			Created: day(20), PeriodStart: day(20), PeriodEnd: day(20).AddDate(0, 1, 0), Number: "INV-0002",
		}},
		ledger.TargetOf(600000),
	)
	c.Assert(err, qt.IsNil)

	resp := NewPaymentHistoryResponse(&stripe.History{
		CustomerID:   "cus_1",
		CustomerName: "Jane Tan",
		Ledger:       l,
	})
	c.Assert(resp.SubscriptionID, qt.IsNil)
	c.Assert(resp.Summary.TotalPaid, qt.Equals, int64(100000))
	c.Assert(resp.Summary.TotalPaidDisplay, qt.Equals, "$1,000.00")
	c.Assert(resp.Summary.RemainingAmount, qt.Equals, int64(500000))
	c.Assert(resp.Summary.RemainingAmountDisplay, qt.Equals, "$5,000.00")
	c.Assert(resp.Summary.PaidPercentage.Equal(decimal.RequireFromString("16.67")), qt.IsTrue)
	c.Assert(resp.Summary.PaymentCount, qt.Equals, 2)
	c.Assert(resp.Payments, qt.HasLen, 2)

	invoice := resp.Payments[0]
	c.Assert(invoice.PaymentID, qt.Equals, "pi_second")
	c.Assert(invoice.InvoiceID, qt.Equals, "in_2")
	c.Assert(invoice.Type, qt.Equals, PaymentTypeInvoice)
	c.Assert(invoice.SourceKind, qt.Equals, ledger.KindRecurringInvoice)
	c.Assert(*invoice.PeriodStart, qt.Equals, day(20).Unix())
	c.Assert(invoice.Description, qt.Equals, "Monthly installment (INV-0002)")

	first := resp.Payments[1]
	c.Assert(first.Type, qt.Equals, PaymentTypeIntent)
	c.Assert(first.PeriodStart, qt.IsNil)
	c.Assert(first.Date, qt.Equals, day(1).Unix())

	// wire shape
	raw, err := json.Marshal(resp)
	c.Assert(err, qt.IsNil)
	var wire map[string]any
	c.Assert(json.Unmarshal(raw, &wire), qt.IsNil)
	c.Assert(wire["subscription_id"], qt.IsNil)
	summary := wire["summary"].(map[string]any)
	c.Assert(summary["total_investment_amount"], qt.Equals, float64(600000))
	c.Assert(summary["paid_percentage"], qt.Equals, "16.67")
	payments := wire["payments"].([]any)
	_, hasPeriod := payments[1].(map[string]any)["period_start"]
	c.Assert(hasPeriod, qt.IsFalse)
}

func TestNewPaymentHistoryResponseEmpty(t *testing.T) {
	c := qt.New(t)

	l, err := ledger.Reconcile(nil, nil, ledger.UnknownTarget())
	c.Assert(err, qt.IsNil)
	resp := NewPaymentHistoryResponse(&stripe.History{
		CustomerID:     "cus_1",
		SubscriptionID: "sub_1",
		Ledger:         l,
	})
	c.Assert(*resp.SubscriptionID, qt.Equals, "sub_1")
	c.Assert(resp.Payments, qt.HasLen, 0)
	c.Assert(resp.Summary.Currency, qt.Equals, ledger.DefaultCurrency)
	c.Assert(resp.Summary.TotalInvestmentKnown, qt.IsFalse)

	raw, err := json.Marshal(resp)
	c.Assert(err, qt.IsNil)
	var wire map[string]any
	c.Assert(json.Unmarshal(raw, &wire), qt.IsNil)
	c.Assert(wire["payments"], qt.DeepEquals, []any{})
}

func TestNewReceiptResponse(t *testing.T) {
	c := qt.New(t)

	paid := time.Date(2024, time.March, 1, 10, 0, 0, 0, time.UTC)
	resp := NewReceiptResponse(&stripe.Receipt{
		ReceiptID:    "RCPT-23456789",
		PaymentID:    "pi_3NxYZ123456789",
		CustomerID:   "cus_1",
		CustomerName: "Jane Tan",
		PaymentDate:  paid,
		Amount:       50000,
		Currency:     "sgd",
		Status:       "Paid",
		Description:  "Investment Installment Payment",
		Card: &stripe.CardDetails{
			Type: "card", Brand: "visa", Last4: "4242", ExpMonth: 12, ExpYear: 2030,
		},
		SubscriptionID: "sub_1",
		Plan:           &stripe.PlanDetails{TotalInvestment: "600000", MonthlyAmount: "50000"},
	})
	c.Assert(resp.PaymentDate, qt.Equals, paid.Unix())
	c.Assert(resp.AmountDisplay, qt.Equals, "$500.00")
	c.Assert(resp.PaymentMethodDetails.Card.Last4, qt.Equals, "4242")
	c.Assert(resp.PlanDetails.MonthlyAmount, qt.Equals, "50000")

	// no card and no plan
	resp = NewReceiptResponse(&stripe.Receipt{ReceiptID: "RCPT-1", PaymentID: "in_1", Currency: "sgd"})
	raw, err := json.Marshal(resp)
	c.Assert(err, qt.IsNil)
	var wire map[string]any
	c.Assert(json.Unmarshal(raw, &wire), qt.IsNil)
	c.Assert(wire["payment_method_details"], qt.IsNil)
	_, hasPlan := wire["plan_details"]
	c.Assert(hasPlan, qt.IsFalse)
	_, hasSub := wire["subscription_id"]
	c.Assert(hasSub, qt.IsFalse)
}

func TestHTTPWriteJSON(t *testing.T) {
	c := qt.New(t)

	rec := httptest.NewRecorder()
	HTTPWriteJSON(rec, &CreatePaymentIntentResponse{ClientSecret: "pi_1_secret_2"})
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Header().Get("Content-Type"), qt.Equals, "application/json")
	c.Assert(rec.Body.String(), qt.Equals, "{\"clientSecret\":\"pi_1_secret_2\"}\n")

	rec = httptest.NewRecorder()
	HTTPWriteText(rec, "Success")
	c.Assert(rec.Code, qt.Equals, http.StatusOK)
	c.Assert(rec.Body.String(), qt.Equals, "Success")
}
