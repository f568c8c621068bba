package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/imrishuroy/go-storefront-fulfillment/internal/addresses"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/apperr"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/cart"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/orders"
	"github.com/imrishuroy/go-storefront-fulfillment/internal/shipping"
)

// DefaultIntentTTL is how long an untouched checkout stays addressable.
const DefaultIntentTTL = 30 * time.Minute

// Accumulator walks a customer through address, delivery and payment
// selection. Each step requires the previous one.
type Accumulator struct {
	intents IntentStore
	book    addresses.Book
	cart    cart.Cart
	fees    *shipping.FeeCalculator
	ttl     time.Duration
	logger  *zap.Logger
	nowFunc func() time.Time
}

func NewAccumulator(intents IntentStore, book addresses.Book, c cart.Cart, fees *shipping.FeeCalculator, ttl time.Duration, logger *zap.Logger) *Accumulator {
	if ttl <= 0 {
		ttl = DefaultIntentTTL
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Accumulator{
		intents: intents,
		book:    book,
		cart:    c,
		fees:    fees,
		ttl:     ttl,
		logger:  logger,
		nowFunc: time.Now,
	}
}

// Start opens a new, empty intent for accountID.
func (a *Accumulator) Start(ctx context.Context, accountID string) (*Intent, error) {
	now := a.nowFunc().UTC()
	intent := &Intent{
		ID:        uuid.NewString(),
		AccountID: accountID,
		Step:      StepStarted,
		CreatedAt: now,
		ExpiresAt: now.Add(a.ttl),
	}
	if err := a.intents.Save(ctx, intent); err != nil {
		return nil, err
	}
	a.logger.Debug("checkout started", zap.String("intent_id", intent.ID), zap.String("account_id", accountID))
	return intent, nil
}

// SetAddress selects the delivery address. A fee already computed for the
// previous address is recomputed.
func (a *Accumulator) SetAddress(ctx context.Context, intentID, accountID, addressID string) (*Intent, error) {
	intent, err := a.load(ctx, intentID, accountID)
	if err != nil {
		return nil, err
	}
	addr, err := a.ownedAddress(ctx, accountID, addressID)
	if err != nil {
		return nil, err
	}
	intent.AddressID = addr.ID
	if intent.DeliveryMethod != "" {
		if err := a.applyFee(intent, addr); err != nil {
			return nil, err
		}
	}
	intent.Step = maxStep(intent.Step, StepAddressSelected)
	return a.save(ctx, intent)
}

// SetDeliveryMethod selects how the order ships and computes the fee.
func (a *Accumulator) SetDeliveryMethod(ctx context.Context, intentID, accountID string, method orders.DeliveryMethod, pickupStoreID string) (*Intent, error) {
	intent, err := a.load(ctx, intentID, accountID)
	if err != nil {
		return nil, err
	}
	if intent.AddressID == "" {
		return nil, &SequenceError{Step: "delivery method", Requires: "address"}
	}
	if !method.Valid() {
		return nil, &InvalidSelectionError{Field: "delivery_method", Reason: "unknown method " + string(method)}
	}
	if method == orders.DeliveryPickup && pickupStoreID == "" {
		return nil, &InvalidSelectionError{Field: "pickup_store_id", Reason: "required for pickup"}
	}
	addr, err := a.ownedAddress(ctx, accountID, intent.AddressID)
	if err != nil {
		return nil, err
	}

	intent.DeliveryMethod = method
	intent.PickupStoreID = ""
	if method == orders.DeliveryPickup {
		intent.PickupStoreID = pickupStoreID
	}
	if err := a.applyFee(intent, addr); err != nil {
		return nil, err
	}
	intent.Step = maxStep(intent.Step, StepDeliverySelected)
	return a.save(ctx, intent)
}

// SetPaymentMethod selects how the order is paid.
func (a *Accumulator) SetPaymentMethod(ctx context.Context, intentID, accountID string, method orders.PaymentMethod) (*Intent, error) {
	intent, err := a.load(ctx, intentID, accountID)
	if err != nil {
		return nil, err
	}
	if intent.DeliveryMethod == "" {
		return nil, &SequenceError{Step: "payment method", Requires: "delivery method"}
	}
	if !method.Valid() {
		return nil, &InvalidSelectionError{Field: "payment_method", Reason: "unknown method " + string(method)}
	}
	intent.PaymentMethod = method
	intent.Step = StepPaymentSelected
	return a.save(ctx, intent)
}

// Complete returns a snapshot of a fully populated intent. The intent stays
// stored until Discard so a failed order placement can be retried.
func (a *Accumulator) Complete(ctx context.Context, intentID, accountID string) (Intent, error) {
	intent, err := a.load(ctx, intentID, accountID)
	if err != nil {
		return Intent{}, err
	}
	if missing := intent.missing(); len(missing) > 0 {
		return Intent{}, &IncompleteIntentError{Missing: missing}
	}
	lines, err := a.cart.Items(ctx, accountID)
	if err != nil {
		return Intent{}, err
	}
	if len(lines) == 0 {
		return Intent{}, &EmptyCartError{AccountID: accountID}
	}
	return *intent, nil
}

// Discard drops the intent. Unknown intents are ignored.
func (a *Accumulator) Discard(ctx context.Context, intentID, accountID string) error {
	if _, err := a.load(ctx, intentID, accountID); err != nil {
		if errors.Is(err, ErrIntentNotFound) {
			return nil
		}
		return err
	}
	return a.intents.Delete(ctx, intentID)
}

// Get returns the intent if accountID owns it.
func (a *Accumulator) Get(ctx context.Context, intentID, accountID string) (*Intent, error) {
	return a.load(ctx, intentID, accountID)
}

func (a *Accumulator) load(ctx context.Context, intentID, accountID string) (*Intent, error) {
	intent, err := a.intents.Get(ctx, intentID)
	if err != nil {
		return nil, err
	}
	if intent == nil {
		return nil, ErrIntentNotFound
	}
	if intent.AccountID != accountID {
		return nil, &apperr.ForbiddenError{Actor: accountID, Resource: "checkout " + intentID}
	}
	return intent, nil
}

func (a *Accumulator) save(ctx context.Context, intent *Intent) (*Intent, error) {
	if err := a.intents.Save(ctx, intent); err != nil {
		return nil, err
	}
	return intent, nil
}

func (a *Accumulator) ownedAddress(ctx context.Context, accountID, addressID string) (*addresses.Address, error) {
	addr, err := a.book.Get(ctx, addressID)
	if err != nil {
		return nil, err
	}
	if addr == nil {
		return nil, &apperr.NotFoundError{Resource: "address", ID: addressID}
	}
	if addr.AccountID != accountID {
		return nil, &apperr.ForbiddenError{Actor: accountID, Resource: "address " + addressID}
	}
	return addr, nil
}

func (a *Accumulator) applyFee(intent *Intent, addr *addresses.Address) error {
	fee, err := a.fees.ComputeFee(shipping.Coordinate{Latitude: addr.Latitude, Longitude: addr.Longitude}, intent.DeliveryMethod)
	if err != nil {
		return &InvalidSelectionError{Field: "address", Reason: err.Error()}
	}
	intent.ShippingFee = fee
	intent.FeeComputed = true
	return nil
}

var stepOrder = map[Step]int{
	StepStarted:          0,
	StepAddressSelected:  1,
	StepDeliverySelected: 2,
	StepPaymentSelected:  3,
}

func maxStep(cur, next Step) Step {
	if stepOrder[next] > stepOrder[cur] {
		return next
	}
	return cur
}
