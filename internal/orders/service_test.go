package orders

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sudo-init-do/bazaar/internal/apperr"
	"github.com/sudo-init-do/bazaar/internal/identity"
	"github.com/sudo-init-do/bazaar/internal/logger"
	"github.com/sudo-init-do/bazaar/internal/marketplace"
	"github.com/sudo-init-do/bazaar/internal/payments"
)

func TestMain(m *testing.M) {
	logger.SetOutput(io.Discard)
	os.Exit(m.Run())
}

var (
	buyer    = identity.Account{ID: "buyer-1", Email: "buyer@example.com"}
	seller   = identity.Account{ID: "seller-1", Email: "seller@example.com"}
	stranger = identity.Account{ID: "stranger-1"}
)

// memRepo is a Repository whose state changes are compare-and-swap under one lock.
type memRepo struct {
	mu     sync.Mutex
	seq    int
	orders map[string]Order
}

func newMemRepo() *memRepo {
	return &memRepo{orders: make(map[string]Order)}
}

func (r *memRepo) Insert(_ context.Context, o *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	o.ID = fmt.Sprintf("order-%d", r.seq)
	o.CreatedAt = time.Now().Add(time.Duration(r.seq) * time.Millisecond)
	r.orders[o.ID] = *o
	return nil
}

func (r *memRepo) Get(_ context.Context, id string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok {
		return Order{}, apperr.NotFound("order", nil)
	}
	return o, nil
}

func (r *memRepo) GetByReference(_ context.Context, ref string) (Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, o := range r.orders {
		if o.HasReference(ref) {
			return o, nil
		}
	}
	return Order{}, apperr.NotFound("order", nil)
}

func (r *memRepo) filter(keep func(Order) bool, limit, offset int) []Order {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := []Order{}
	for _, o := range r.orders {
		if keep(o) {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if offset >= len(out) {
		return []Order{}
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (r *memRepo) ListByBuyer(_ context.Context, buyerID string, limit, offset int) ([]Order, error) {
	return r.filter(func(o Order) bool { return o.BuyerID == buyerID }, limit, offset), nil
}

func (r *memRepo) ListBySeller(_ context.Context, sellerID string, limit, offset int) ([]Order, error) {
	return r.filter(func(o Order) bool { return o.SellerID == sellerID }, limit, offset), nil
}

func (r *memRepo) ListByListing(_ context.Context, listingID string, limit, offset int) ([]Order, error) {
	return r.filter(func(o Order) bool { return o.ListingID != nil && *o.ListingID == listingID }, limit, offset), nil
}

func (r *memRepo) AttachReference(_ context.Context, id string, prev *string, ref string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	same := (prev == nil && o.PaymentIntentID == nil) ||
		(prev != nil && o.PaymentIntentID != nil && *prev == *o.PaymentIntentID)
	if !same {
		return false, nil
	}
	o.PaymentIntentID = &ref
	r.orders[id] = o
	return true, nil
}

func (r *memRepo) MarkPaid(_ context.Context, id, ref string, at time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending || !o.HasReference(ref) {
		return false, nil
	}
	o.Status = StatusPaid
	o.PaidAt = &at
	r.orders[id] = o
	return true, nil
}

func (r *memRepo) MarkCanceled(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	o, ok := r.orders[id]
	if !ok || o.Status != StatusPending {
		return false, nil
	}
	o.Status = StatusCanceled
	r.orders[id] = o
	return true, nil
}

func (r *memRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.orders)
}

type memListings struct {
	listings  map[string]marketplace.Listing
	methods   map[string]marketplace.PaymentMethod
	offerings map[string]marketplace.Offering
}

func money(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func newMemListings() *memListings {
	price := money("100.00")
	return &memListings{
		listings: map[string]marketplace.Listing{
			"listing-1":         {ID: "listing-1", OwnerID: seller.ID, Title: "Oak table", Price: &price},
			"listing-free-form": {ID: "listing-free-form", OwnerID: seller.ID, Title: "Make an offer"},
			"listing-cash-only": {
				ID: "listing-cash-only", OwnerID: seller.ID, Title: "Chair", Price: &price,
				PaymentMethodIDs: []string{"pm-cash"}, OfferingIDs: []string{"off-wrap"},
			},
		},
		methods: map[string]marketplace.PaymentMethod{
			"pm-card": {ID: "pm-card", Name: "Card"},
			"pm-cash": {ID: "pm-cash", Name: "Cash"},
		},
		offerings: map[string]marketplace.Offering{
			"off-wrap":    {ID: "off-wrap", Name: "Gift wrap", ExtraCost: money("15.00")},
			"off-express": {ID: "off-express", Name: "Express", ExtraCost: money("5.50")},
		},
	}
}

func (m *memListings) GetByID(_ context.Context, id string) (marketplace.Listing, error) {
	l, ok := m.listings[id]
	if !ok {
		return marketplace.Listing{}, apperr.NotFound("listing", nil)
	}
	return l, nil
}

func (m *memListings) IsOwner(ctx context.Context, listingID, accountID string) (bool, error) {
	l, err := m.GetByID(ctx, listingID)
	if err != nil {
		return false, err
	}
	return l.OwnerID == accountID, nil
}

func (m *memListings) PaymentMethodByID(_ context.Context, id string) (marketplace.PaymentMethod, error) {
	pm, ok := m.methods[id]
	if !ok {
		return marketplace.PaymentMethod{}, apperr.NotFound("payment method", nil)
	}
	return pm, nil
}

func (m *memListings) OfferingsByIDs(_ context.Context, ids []string) (map[string]marketplace.Offering, error) {
	out := make(map[string]marketplace.Offering)
	for _, id := range ids {
		if off, ok := m.offerings[id]; ok {
			out[id] = off
		}
	}
	return out, nil
}

type countingNotifier struct {
	created  atomic.Int32
	paid     atomic.Int32
	canceled atomic.Int32
	fail     bool
}

func (n *countingNotifier) OrderCreated(context.Context, Order) error {
	n.created.Add(1)
	if n.fail {
		return errors.New("mail queue down")
	}
	return nil
}

func (n *countingNotifier) OrderPaid(context.Context, Order) error {
	n.paid.Add(1)
	if n.fail {
		return errors.New("mail queue down")
	}
	return nil
}

func (n *countingNotifier) OrderCanceled(context.Context, Order, string) error {
	n.canceled.Add(1)
	return nil
}

// downGateway fails every provider call.
type downGateway struct {
	payments.Gateway
}

func (downGateway) CreatePaymentIntent(context.Context, payments.IntentRequest) (payments.Intent, error) {
	return payments.Intent{}, apperr.PaymentProvider("create payment intent timed out", context.DeadlineExceeded)
}

func (downGateway) CreateCheckoutSession(context.Context, payments.SessionRequest) (payments.Session, error) {
	return payments.Session{}, apperr.PaymentProvider("create checkout session failed", nil)
}

type fixture struct {
	svc      *Service
	repo     *memRepo
	listings *memListings
	sandbox  *payments.Sandbox
	notifier *countingNotifier
}

func newFixture() *fixture {
	f := &fixture{
		repo:     newMemRepo(),
		listings: newMemListings(),
		sandbox:  payments.NewSandbox("", "http://localhost:8080"),
		notifier: &countingNotifier{},
	}
	f.svc = New(f.repo, f.listings, f.sandbox, f.notifier, "usd")
	return f
}

func (f *fixture) placeOrder(t *testing.T) Order {
	t.Helper()
	o, err := f.svc.Create(context.Background(), buyer, CreateInput{ListingID: "listing-1", PaymentMethodID: "pm-card"})
	require.NoError(t, err)
	return o
}

func (f *fixture) placeAndAttach(t *testing.T) (Order, string) {
	t.Helper()
	o := f.placeOrder(t)
	o, err := f.svc.AttachPaymentIntent(context.Background(), buyer, o.ID)
	require.NoError(t, err)
	require.NotNil(t, o.PaymentIntentID)
	return o, *o.PaymentIntentID
}

func requireCode(t *testing.T, err error, code string) {
	t.Helper()
	require.Error(t, err)
	assert.True(t, apperr.Is(err, code), "want %s, got %v", code, err)
}

func TestCreateOrderFreezesTotal(t *testing.T) {
	f := newFixture()
	ctx := context.Background()

	o, err := f.svc.Create(ctx, buyer, CreateInput{
		ListingID:       "listing-1",
		PaymentMethodID: "pm-card",
		OfferingIDs:     []string{"off-wrap", "off-express", "off-wrap"},
		AddressDetails:  json.RawMessage(`{"city":"Lisbon"}`),
	})
	require.NoError(t, err)

	assert.Equal(t, "120.50", o.TotalPrice.StringFixed(2))
	assert.Equal(t, StatusPending, o.Status)
	assert.Nil(t, o.PaymentIntentID)
	assert.Nil(t, o.PaidAt)
	assert.Equal(t, seller.ID, o.SellerID)
	assert.Equal(t, "Oak table", o.ListingTitle)
	assert.Equal(t, "Card", o.PaymentMethodName)
	assert.Equal(t, "usd", o.Currency)
	assert.Len(t, o.Offerings, 2)
	assert.JSONEq(t, `{"city":"Lisbon"}`, string(o.AddressDetails))
	assert.EqualValues(t, 1, f.notifier.created.Load())

	// Later price changes do not touch the stored order.
	newPrice := money("250.00")
	l := f.listings.listings["listing-1"]
	l.Price = &newPrice
	f.listings.listings["listing-1"] = l

	stored, err := f.svc.Get(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, "120.50", stored.TotalPrice.StringFixed(2))
}

func TestCreateOrderWithoutPriceFails(t *testing.T) {
	f := newFixture()

	_, err := f.svc.Create(context.Background(), buyer, CreateInput{ListingID: "listing-free-form", PaymentMethodID: "pm-card"})
	requireCode(t, err, apperr.CodeInvalidListingState)
	assert.Zero(t, f.repo.count())
	assert.Zero(t, f.notifier.created.Load())
}

func TestCreateOrderValidation(t *testing.T) {
	tests := []struct {
		name  string
		buyer identity.Account
		in    CreateInput
		code  string
	}{
		{"missing listing", buyer, CreateInput{ListingID: "nope", PaymentMethodID: "pm-card"}, apperr.CodeNotFound},
		{"own listing", seller, CreateInput{ListingID: "listing-1", PaymentMethodID: "pm-card"}, apperr.CodeValidation},
		{"unknown payment method", buyer, CreateInput{ListingID: "listing-1", PaymentMethodID: "pm-gold"}, apperr.CodeNotFound},
		{"method not accepted", buyer, CreateInput{ListingID: "listing-cash-only", PaymentMethodID: "pm-card"}, apperr.CodeValidation},
		{"unknown offering", buyer, CreateInput{ListingID: "listing-1", PaymentMethodID: "pm-card", OfferingIDs: []string{"off-moon"}}, apperr.CodeNotFound},
		{"offering not offered", buyer, CreateInput{ListingID: "listing-cash-only", PaymentMethodID: "pm-cash", OfferingIDs: []string{"off-express"}}, apperr.CodeValidation},
		{"address not an object", buyer, CreateInput{ListingID: "listing-1", PaymentMethodID: "pm-card", AddressDetails: json.RawMessage(`"street"`)}, apperr.CodeValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture()
			_, err := f.svc.Create(context.Background(), tt.buyer, tt.in)
			requireCode(t, err, tt.code)
			assert.Zero(t, f.repo.count())
		})
	}
}

func TestCreateOrderSurvivesNotifierFailure(t *testing.T) {
	f := newFixture()
	f.notifier.fail = true

	o := f.placeOrder(t)
	assert.NotEmpty(t, o.ID)
	assert.Equal(t, 1, f.repo.count())
}

func TestAttachPaymentIntentProviderFailure(t *testing.T) {
	f := newFixture()
	o := f.placeOrder(t)

	f.svc.gateway = downGateway{}
	_, err := f.svc.AttachPaymentIntent(context.Background(), buyer, o.ID)
	requireCode(t, err, apperr.CodePaymentProvider)

	_, err = f.svc.AttachCheckoutSession(context.Background(), buyer, o.ID)
	requireCode(t, err, apperr.CodePaymentProvider)

	stored, err := f.repo.Get(context.Background(), o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, stored.Status)
	assert.Nil(t, stored.PaymentIntentID)
}

func TestAttachPaymentIntent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o := f.placeOrder(t)

	_, err := f.svc.AttachPaymentIntent(ctx, seller, o.ID)
	requireCode(t, err, apperr.CodeForbidden)

	first, err := f.svc.AttachPaymentIntent(ctx, buyer, o.ID)
	require.NoError(t, err)
	require.NotNil(t, first.PaymentIntentID)
	assert.NotEmpty(t, first.ClientSecret)

	// A retry cancels the old reference at the provider and replaces it.
	second, err := f.svc.AttachCheckoutSession(ctx, buyer, o.ID)
	require.NoError(t, err)
	require.NotNil(t, second.PaymentIntentID)
	assert.True(t, payments.IsSessionReference(*second.PaymentIntentID))
	assert.Contains(t, second.CheckoutURL, *second.PaymentIntentID)
	outcome, err := f.sandbox.Outcome(ctx, *first.PaymentIntentID)
	require.NoError(t, err)
	assert.Equal(t, payments.OutcomeFailed, outcome)

	_, err = f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: *first.PaymentIntentID})
	requireCode(t, err, apperr.CodePaymentIntentMismatch)

	paid, err := f.svc.ConfirmPayment(ctx, Confirmation{Reference: *second.PaymentIntentID})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, paid.Status)

	_, err = f.svc.AttachPaymentIntent(ctx, buyer, o.ID)
	requireCode(t, err, apperr.CodeInvalidTransition)
}

// stuckCancel is a sandbox whose cancellations always fail.
type stuckCancel struct {
	*payments.Sandbox
}

func (stuckCancel) Cancel(context.Context, string) error {
	return apperr.PaymentProvider("cancel payment intent timed out", context.DeadlineExceeded)
}

func TestReattachRetiresPreviousReference(t *testing.T) {
	ctx := context.Background()

	t.Run("already paid reference confirms the order", func(t *testing.T) {
		f := newFixture()
		o, ref := f.placeAndAttach(t)
		f.sandbox.Settle(ref, payments.OutcomeSucceeded)

		_, err := f.svc.AttachCheckoutSession(ctx, buyer, o.ID)
		requireCode(t, err, apperr.CodeInvalidTransition)

		stored, err := f.repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, stored.Status)
		assert.Equal(t, ref, *stored.PaymentIntentID)
		assert.EqualValues(t, 1, f.notifier.paid.Load())
	})

	t.Run("cancel failure keeps the old reference", func(t *testing.T) {
		f := newFixture()
		o, ref := f.placeAndAttach(t)
		f.svc.gateway = stuckCancel{f.sandbox}

		_, err := f.svc.AttachPaymentIntent(ctx, buyer, o.ID)
		requireCode(t, err, apperr.CodePaymentProvider)

		stored, err := f.repo.Get(ctx, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPending, stored.Status)
		assert.Equal(t, ref, *stored.PaymentIntentID)

		// The old reference can still be paid and confirmed.
		f.sandbox.Settle(ref, payments.OutcomeSucceeded)
		got, err := f.svc.VerifyPayment(ctx, buyer, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusPaid, got.Status)
	})

	t.Run("canceled reference is simply replaced", func(t *testing.T) {
		f := newFixture()
		o, ref := f.placeAndAttach(t)
		require.NoError(t, f.sandbox.Cancel(ctx, ref))

		got, err := f.svc.AttachPaymentIntent(ctx, buyer, o.ID)
		require.NoError(t, err)
		assert.NotEqual(t, ref, *got.PaymentIntentID)
		assert.Equal(t, StatusPending, got.Status)
	})
}

func TestConfirmPaymentIsIdempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, ref := f.placeAndAttach(t)

	first, err := f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, first.Status)
	require.NotNil(t, first.PaidAt)

	second, err := f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, second.Status)
	assert.True(t, first.PaidAt.Equal(*second.PaidAt))

	assert.EqualValues(t, 1, f.notifier.paid.Load())
}

func TestConfirmPaymentConcurrent(t *testing.T) {
	f := newFixture()
	o, ref := f.placeAndAttach(t)

	const callers = 50
	var (
		wg     sync.WaitGroup
		start  = make(chan struct{})
		errs   = make(chan error, callers)
		paidAt = make(chan time.Time, callers)
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start
			got, err := f.svc.ConfirmPayment(context.Background(), Confirmation{OrderID: o.ID, Reference: ref})
			if err != nil {
				errs <- err
				return
			}
			paidAt <- *got.PaidAt
		}()
	}
	close(start)
	wg.Wait()
	close(errs)
	close(paidAt)

	for err := range errs {
		t.Errorf("confirm failed: %v", err)
	}
	var first time.Time
	for at := range paidAt {
		if first.IsZero() {
			first = at
		}
		assert.True(t, first.Equal(at), "every caller sees the same paid_at")
	}
	assert.EqualValues(t, 1, f.notifier.paid.Load())
}

func TestConfirmPaymentRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("mismatched reference", func(t *testing.T) {
		f := newFixture()
		o, _ := f.placeAndAttach(t)
		_, err := f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: "pi_someone_else"})
		requireCode(t, err, apperr.CodePaymentIntentMismatch)
	})

	t.Run("no reference attached", func(t *testing.T) {
		f := newFixture()
		o := f.placeOrder(t)
		_, err := f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: "pi_sandbox_1"})
		requireCode(t, err, apperr.CodePaymentIntentMismatch)
	})

	t.Run("unknown reference", func(t *testing.T) {
		f := newFixture()
		_, err := f.svc.ConfirmPayment(ctx, Confirmation{Reference: "pi_missing"})
		requireCode(t, err, apperr.CodeNotFound)
	})

	t.Run("canceled order", func(t *testing.T) {
		f := newFixture()
		o, ref := f.placeAndAttach(t)
		_, err := f.svc.Cancel(ctx, buyer, o.ID)
		require.NoError(t, err)

		_, err = f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
		requireCode(t, err, apperr.CodeInvalidTransition)
		stored, _ := f.repo.Get(ctx, o.ID)
		assert.Equal(t, StatusCanceled, stored.Status)
		assert.Nil(t, stored.PaidAt)
		assert.Zero(t, f.notifier.paid.Load())
	})
}

func TestCancelOrder(t *testing.T) {
	ctx := context.Background()

	t.Run("stranger", func(t *testing.T) {
		f := newFixture()
		o := f.placeOrder(t)
		_, err := f.svc.Cancel(ctx, stranger, o.ID)
		requireCode(t, err, apperr.CodeForbidden)
	})

	t.Run("seller cancels, twice", func(t *testing.T) {
		f := newFixture()
		o := f.placeOrder(t)
		got, err := f.svc.Cancel(ctx, seller, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCanceled, got.Status)

		got, err = f.svc.Cancel(ctx, buyer, o.ID)
		require.NoError(t, err)
		assert.Equal(t, StatusCanceled, got.Status)
		assert.EqualValues(t, 1, f.notifier.canceled.Load())
	})

	t.Run("paid order stays paid", func(t *testing.T) {
		f := newFixture()
		o, ref := f.placeAndAttach(t)
		_, err := f.svc.ConfirmPayment(ctx, Confirmation{OrderID: o.ID, Reference: ref})
		require.NoError(t, err)

		_, err = f.svc.Cancel(ctx, buyer, o.ID)
		requireCode(t, err, apperr.CodeInvalidTransition)
		_, err = f.svc.FailPayment(ctx, Confirmation{Reference: ref})
		requireCode(t, err, apperr.CodeInvalidTransition)

		stored, _ := f.repo.Get(ctx, o.ID)
		assert.Equal(t, StatusPaid, stored.Status)
	})
}

func TestFailPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, ref := f.placeAndAttach(t)

	_, err := f.svc.FailPayment(ctx, Confirmation{OrderID: o.ID, Reference: "pi_other"})
	requireCode(t, err, apperr.CodePaymentIntentMismatch)

	got, err := f.svc.FailPayment(ctx, Confirmation{Reference: ref})
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
}

func TestVerifyPayment(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	o, ref := f.placeAndAttach(t)

	_, err := f.svc.VerifyPayment(ctx, stranger, o.ID)
	requireCode(t, err, apperr.CodeForbidden)

	got, err := f.svc.VerifyPayment(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, got.Status)

	f.sandbox.Settle(ref, payments.OutcomeSucceeded)
	got, err = f.svc.VerifyPayment(ctx, buyer, o.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusPaid, got.Status)

	other, otherRef := f.placeAndAttach(t)
	f.sandbox.Settle(otherRef, payments.OutcomeFailed)
	got, err = f.svc.VerifyPayment(ctx, seller, other.ID)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, got.Status)
}

func TestOrderQueries(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	first := f.placeOrder(t)
	second := f.placeOrder(t)

	_, err := f.svc.Get(ctx, stranger, first.ID)
	requireCode(t, err, apperr.CodeForbidden)
	_, err = f.svc.Get(ctx, seller, first.ID)
	require.NoError(t, err)

	mine, err := f.svc.ListForBuyer(ctx, buyer, 20, 0)
	require.NoError(t, err)
	require.Len(t, mine, 2)
	assert.Equal(t, second.ID, mine[0].ID, "newest first")

	sales, err := f.svc.ListSales(ctx, seller, 1, 1)
	require.NoError(t, err)
	require.Len(t, sales, 1)
	assert.Equal(t, first.ID, sales[0].ID)

	_, err = f.svc.ListForListing(ctx, buyer, "listing-1", 20, 0)
	requireCode(t, err, apperr.CodeForbidden)
	_, err = f.svc.ListForListing(ctx, seller, "nope", 20, 0)
	requireCode(t, err, apperr.CodeNotFound)
	byListing, err := f.svc.ListForListing(ctx, seller, "listing-1", 20, 0)
	require.NoError(t, err)
	assert.Len(t, byListing, 2)
}
