package ledger

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	qt "github.com/frankban/quicktest"
	"github.com/shopspring/decimal"
)

var baseTime = time.Date(2025, time.March, 1, 10, 0, 0, 0, time.UTC)

func day(n int) time.Time {
	return baseTime.AddDate(0, 0, n)
}

func recordIDs(records []PaymentRecord) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
	}
	return ids
}

func TestReconcileScenarios(t *testing.T) {
	c := qt.New(t)

	c.Run("SingleOneTimePayment", func(c *qt.C) {
		l, err := Reconcile([]DirectPayment{
			{ID: "pi_1", Amount: 1000, Currency: "sgd", Created: day(0), Succeeded: true},
		}, nil, UnknownTarget())
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 1)
		c.Assert(l.Records[0].ID, qt.Equals, "pi_1")
		c.Assert(l.Records[0].Amount, qt.Equals, int64(1000))
		c.Assert(l.Records[0].Description, qt.Equals, DescOneTime)
		c.Assert(l.Records[0].SourceKind, qt.Equals, KindDirectPayment)
		c.Assert(l.Summary.TotalPaid, qt.Equals, int64(1000))
		c.Assert(l.Summary.Count, qt.Equals, 1)
	})

	c.Run("InvoiceSettledByDirectPaymentIsSuppressed", func(c *qt.C) {
		l, err := Reconcile([]DirectPayment{
			{ID: "pi_2", Amount: 500, Currency: "sgd", Created: day(1), Succeeded: true, LinkedSubscriptionID: "sub_1"},
		}, []RecurringPayment{
			{InvoiceID: "in_1", LinkedPaymentID: "pi_2", AmountPaid: 500, Currency: "sgd", Created: day(1), Number: "A-0001"},
		}, UnknownTarget())
		c.Assert(err, qt.IsNil)
		c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_2"})
		c.Assert(l.Records[0].SourceKind, qt.Equals, KindDirectPayment)
		c.Assert(l.Records[0].Description, qt.Equals, DescSubscription)
		c.Assert(l.Summary.TotalPaid, qt.Equals, int64(500))
	})

	c.Run("InvoicesOnlyWithTarget", func(c *qt.C) {
		l, err := Reconcile(nil, []RecurringPayment{
			{InvoiceID: "in_9", LinkedPaymentID: "pi_9", AmountPaid: 300, Currency: "sgd", Created: day(1), Number: "1"},
			{InvoiceID: "in_8", LinkedPaymentID: "pi_8", AmountPaid: 300, Currency: "sgd", Created: day(2), Number: "2"},
		}, TargetOf(1000))
		c.Assert(err, qt.IsNil)
		c.Assert(l.Records, qt.HasLen, 2)
		c.Assert(l.Summary.TotalPaid, qt.Equals, int64(600))
		c.Assert(l.Summary.Remaining, qt.Equals, int64(400))
		c.Assert(l.Summary.PaidPercent.Equal(decimal.NewFromInt(60)), qt.IsTrue)
		c.Assert(l.Records[0].Description, qt.Equals, "Monthly installment (2)")
		c.Assert(l.Records[0].InvoiceID, qt.Equals, "in_8")
	})

	c.Run("UnknownTargetNeverNegative", func(c *qt.C) {
		l, err := Reconcile([]DirectPayment{
			{ID: "pi_1", Amount: 700, Currency: "sgd", Created: day(0), Succeeded: true},
		}, nil, UnknownTarget())
		c.Assert(err, qt.IsNil)
		c.Assert(l.Summary.TotalPaid, qt.Equals, int64(700))
		c.Assert(l.Summary.Remaining, qt.Equals, int64(0))
		c.Assert(l.Summary.TargetKnown, qt.IsFalse)
		c.Assert(l.Summary.PaidPercent.IsZero(), qt.IsTrue)
	})

	c.Run("ExplicitZeroTargetIsKnown", func(c *qt.C) {
		l, err := Reconcile(nil, nil, TargetOf(0))
		c.Assert(err, qt.IsNil)
		c.Assert(l.Summary.TargetKnown, qt.IsTrue)
		c.Assert(l.Summary.Remaining, qt.Equals, int64(0))
		c.Assert(l.Summary.Currency, qt.Equals, DefaultCurrency)
		c.Assert(l.Records, qt.HasLen, 0)
	})
}

func TestReconcileDescriptions(t *testing.T) {
	c := qt.New(t)

	l, err := Reconcile([]DirectPayment{
		{ID: "pi_first", Amount: 100, Currency: "sgd", Created: day(3), Succeeded: true, LinkedSubscriptionID: "sub_1", FirstInstallment: true},
		{ID: "pi_sub", Amount: 100, Currency: "sgd", Created: day(2), Succeeded: true, LinkedSubscriptionID: "sub_1"},
		{ID: "pi_once", Amount: 100, Currency: "sgd", Created: day(1), Succeeded: true},
		// first installment marker wins even without a subscription id
		{ID: "pi_flag", Amount: 100, Currency: "sgd", Created: day(0), Succeeded: true, FirstInstallment: true},
	}, nil, UnknownTarget())
	c.Assert(err, qt.IsNil)
	got := map[string]string{}
	for _, r := range l.Records {
		got[r.ID] = r.Description
	}
	c.Assert(got, qt.DeepEquals, map[string]string{
		"pi_first": DescFirstInstallment,
		"pi_sub":   DescSubscription,
		"pi_once":  DescOneTime,
		"pi_flag":  DescFirstInstallment,
	})
}

func TestReconcileSkipsUnsucceededPayments(t *testing.T) {
	c := qt.New(t)

	l, err := Reconcile([]DirectPayment{
		{ID: "pi_ok", Amount: 400, Currency: "sgd", Created: day(0), Succeeded: true},
		{ID: "pi_pending", Amount: 900, Currency: "sgd", Created: day(1)},
	}, []RecurringPayment{
		// the pending intent does not cover the invoice that settled it later
		{InvoiceID: "in_1", LinkedPaymentID: "pi_pending", AmountPaid: 900, Currency: "sgd", Created: day(2), Number: "7"},
	}, UnknownTarget())
	c.Assert(err, qt.IsNil)
	c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_pending", "pi_ok"})
	c.Assert(l.Records[0].SourceKind, qt.Equals, KindRecurringInvoice)
	c.Assert(l.Summary.TotalPaid, qt.Equals, int64(1300))
	c.Assert(l.Summary.Count, qt.Equals, 2)
}

func TestReconcileInvoiceIdentity(t *testing.T) {
	c := qt.New(t)

	l, err := Reconcile(nil, []RecurringPayment{
		{InvoiceID: "in_a", AmountPaid: 100, Currency: "sgd", Created: day(0), Number: "1"},
		{InvoiceID: "in_b", LinkedPaymentID: "pi_x", AmountPaid: 100, Currency: "sgd", Created: day(1), Number: "2"},
		{InvoiceID: "in_c", LinkedPaymentID: "pi_x", AmountPaid: 100, Currency: "sgd", Created: day(2), Number: "3"},
	}, UnknownTarget())
	c.Assert(err, qt.IsNil)
	// an invoice without a linked payment is keyed by its own id, and a
	// second invoice pointing at the same payment is dropped
	c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_x", "in_a"})
	c.Assert(l.Records[0].InvoiceID, qt.Equals, "in_b")
	c.Assert(l.Summary.TotalPaid, qt.Equals, int64(200))
}

func TestReconcileOrdering(t *testing.T) {
	c := qt.New(t)

	c.Run("NewestFirst", func(c *qt.C) {
		l, err := Reconcile([]DirectPayment{
			{ID: "pi_old", Amount: 1, Currency: "sgd", Created: day(0), Succeeded: true},
			{ID: "pi_new", Amount: 1, Currency: "sgd", Created: day(5), Succeeded: true},
		}, []RecurringPayment{
			{InvoiceID: "in_mid", LinkedPaymentID: "pi_mid", AmountPaid: 1, Currency: "sgd", Created: day(3)},
		}, UnknownTarget())
		c.Assert(err, qt.IsNil)
		c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_new", "pi_mid", "pi_old"})
	})

	c.Run("TiesKeepInputOrder", func(c *qt.C) {
		same := day(1)
		l, err := Reconcile([]DirectPayment{
			{ID: "pi_b", Amount: 1, Currency: "sgd", Created: same, Succeeded: true},
			{ID: "pi_a", Amount: 1, Currency: "sgd", Created: same, Succeeded: true},
		}, []RecurringPayment{
			{InvoiceID: "in_2", LinkedPaymentID: "pi_d", AmountPaid: 1, Currency: "sgd", Created: same},
			{InvoiceID: "in_1", LinkedPaymentID: "pi_c", AmountPaid: 1, Currency: "sgd", Created: same},
		}, UnknownTarget())
		c.Assert(err, qt.IsNil)
		c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_b", "pi_a", "pi_d", "pi_c"})
	})
}

func TestReconcileProperties(t *testing.T) {
	c := qt.New(t)

	direct := make([]DirectPayment, 0, 10)
	recurring := make([]RecurringPayment, 0, 10)
	var expectedPaid int64
	for i := 0; i < 10; i++ {
		direct = append(direct, DirectPayment{
			ID: fmt.Sprintf("pi_d%d", i), Amount: int64(100 * (i + 1)), Currency: "SGD",
			Created: day(i), Succeeded: i%3 != 0,
		})
		if i%3 != 0 {
			expectedPaid += int64(100 * (i + 1))
		}
	}
	succeeded := 6
	for i := 0; i < 10; i++ {
		linked := fmt.Sprintf("pi_r%d", i)
		if i%2 == 0 {
			// overlaps a succeeded direct payment when that one exists
			linked = fmt.Sprintf("pi_d%d", i)
		}
		recurring = append(recurring, RecurringPayment{
			InvoiceID: fmt.Sprintf("in_%d", i), LinkedPaymentID: linked, AmountPaid: 50,
			Currency: "sgd", Created: day(i).Add(time.Hour), Number: fmt.Sprint(i),
		})
	}
	var uncovered int
	for i := 0; i < 10; i++ {
		if i%2 == 0 && i%3 != 0 {
			continue
		}
		uncovered++
		expectedPaid += 50
	}

	first, err := Reconcile(direct, recurring, TargetOf(1_000_000))
	c.Assert(err, qt.IsNil)
	c.Assert(first.Summary.Count, qt.Equals, succeeded+uncovered)
	c.Assert(first.Summary.TotalPaid, qt.Equals, expectedPaid)
	c.Assert(first.Summary.Remaining, qt.Equals, 1_000_000-expectedPaid)
	c.Assert(first.Summary.Currency, qt.Equals, "sgd")

	var sum int64
	ids := map[string]bool{}
	for i, r := range first.Records {
		sum += r.Amount
		c.Assert(ids[r.ID], qt.IsFalse, qt.Commentf("duplicated id %s", r.ID))
		ids[r.ID] = true
		if i > 0 {
			c.Assert(r.OccurredAt.After(first.Records[i-1].OccurredAt), qt.IsFalse)
		}
	}
	c.Assert(sum, qt.Equals, first.Summary.TotalPaid)

	second, err := Reconcile(direct, recurring, TargetOf(1_000_000))
	c.Assert(err, qt.IsNil)
	c.Assert(second, qt.DeepEquals, first)

	overpaid, err := Reconcile(direct, recurring, TargetOf(expectedPaid-1))
	c.Assert(err, qt.IsNil)
	c.Assert(overpaid.Summary.Remaining, qt.Equals, int64(0))
}

func TestReconcileValidation(t *testing.T) {
	c := qt.New(t)

	tests := []struct {
		name      string
		direct    []DirectPayment
		recurring []RecurringPayment
		target    Target
		field     string
	}{
		{
			name:   "MissingDirectID",
			direct: []DirectPayment{{Amount: 1, Currency: "sgd", Succeeded: true}},
			field:  "directPayments[0].id",
		},
		{
			name:   "NegativeDirectAmount",
			direct: []DirectPayment{{ID: "pi_1", Amount: -1, Currency: "sgd", Succeeded: true}},
			field:  "directPayments[0].amount",
		},
		{
			name: "DuplicatedDirectID",
			direct: []DirectPayment{
				{ID: "pi_1", Amount: 1, Currency: "sgd", Succeeded: true},
				{ID: "pi_1", Amount: 1, Currency: "sgd", Succeeded: true},
			},
			field: "directPayments[1].id",
		},
		{
			name:      "MissingInvoiceID",
			recurring: []RecurringPayment{{LinkedPaymentID: "pi_1", AmountPaid: 1, Currency: "sgd"}},
			field:     "recurringPayments[0].invoiceId",
		},
		{
			name:      "NegativeInvoiceAmount",
			recurring: []RecurringPayment{{InvoiceID: "in_1", AmountPaid: -5, Currency: "sgd"}},
			field:     "recurringPayments[0].amountPaid",
		},
		{
			name:   "NegativeTarget",
			target: TargetOf(-1),
			field:  "targetTotal",
		},
	}
	for _, tc := range tests {
		c.Run(tc.name, func(c *qt.C) {
			l, err := Reconcile(tc.direct, tc.recurring, tc.target)
			c.Assert(l, qt.IsNil)
			var verr *ValidationError
			c.Assert(errors.As(err, &verr), qt.IsTrue, qt.Commentf("got %v", err))
			c.Assert(verr.Field, qt.Equals, tc.field)
		})
	}
}

func TestReconcileMixedCurrencies(t *testing.T) {
	c := qt.New(t)

	l, err := Reconcile(
		[]DirectPayment{{ID: "pi_1", Amount: 1, Currency: "sgd", Created: day(1), Succeeded: true}},
		[]RecurringPayment{{InvoiceID: "in_1", AmountPaid: 1, Currency: "usd", Created: day(0)}},
		UnknownTarget())
	c.Assert(l, qt.IsNil)
	var cerr *ConsistencyError
	c.Assert(errors.As(err, &cerr), qt.IsTrue, qt.Commentf("got %v", err))
	var verr *ValidationError
	c.Assert(errors.As(err, &verr), qt.IsFalse)
	c.Assert(err, qt.ErrorMatches, `inconsistent payment records: payment in_1 is in "usd", ledger is in "sgd"`)
}

type fakeSource struct {
	direct       []DirectPayment
	recurring    []RecurringPayment
	err          error
	lastCustomer string
}

func (f *fakeSource) DirectPayments(_ context.Context, customerID string) ([]DirectPayment, error) {
	f.lastCustomer = customerID
	return f.direct, f.err
}

func (f *fakeSource) RecurringPayments(_ context.Context, customerID string) ([]RecurringPayment, error) {
	f.lastCustomer = customerID
	return f.recurring, nil
}

func TestBuild(t *testing.T) {
	c := qt.New(t)
	ctx := context.Background()

	src := &fakeSource{
		direct: []DirectPayment{
			{ID: "pi_1", Amount: 250, Currency: "sgd", Created: day(0), Succeeded: true, LinkedSubscriptionID: "sub_1", FirstInstallment: true},
		},
		recurring: []RecurringPayment{
			{InvoiceID: "in_1", LinkedPaymentID: "pi_1", AmountPaid: 250, Currency: "sgd", Created: day(0), Number: "1"},
			{InvoiceID: "in_2", LinkedPaymentID: "pi_2", AmountPaid: 250, Currency: "sgd", Created: day(30), Number: "2"},
		},
	}
	l, err := Build(ctx, src, "cus_1", TargetOf(3000))
	c.Assert(err, qt.IsNil)
	c.Assert(src.lastCustomer, qt.Equals, "cus_1")
	c.Assert(recordIDs(l.Records), qt.DeepEquals, []string{"pi_2", "pi_1"})
	c.Assert(l.Summary.Remaining, qt.Equals, int64(2500))

	_, err = Build(ctx, src, "", UnknownTarget())
	var verr *ValidationError
	c.Assert(errors.As(err, &verr), qt.IsTrue)

	src.err = &NotFoundError{Kind: "customer", ID: "cus_404"}
	_, err = Build(ctx, src, "cus_404", UnknownTarget())
	var nferr *NotFoundError
	c.Assert(errors.As(err, &nferr), qt.IsTrue)
	c.Assert(nferr.ID, qt.Equals, "cus_404")
}
