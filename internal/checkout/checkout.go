package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"uglies/internal/events"
	"uglies/internal/models"
)

var tracer = otel.Tracer("uglies/internal/checkout")

// Request carries the buyer supplied part of an order.
type Request struct {
	DeliveryAddress string
	DeliveryMethod  models.DeliveryMethod
	DeliveryDate    *time.Time
	Notes           string
	CampaignID      *primitive.ObjectID
}

// Result describes a committed checkout.
type Result struct {
	Order      models.Order
	MoneySaved float64
	// Campaign is the settled campaign state, nil when the order was not
	// attributed to a campaign or the campaign had disappeared.
	Campaign      *models.Campaign
	TargetReached bool
}

// Recorder observes checkout outcomes.
type Recorder interface {
	CheckoutSucceeded(amount float64, grouped bool)
	CheckoutFailed(reason string)
	CampaignTargetReached()
}

type nopRecorder struct{}

func (nopRecorder) CheckoutSucceeded(float64, bool) {}
func (nopRecorder) CheckoutFailed(string)           {}
func (nopRecorder) CampaignTargetReached()          {}

// Service turns a buyer's cart into an order.
type Service struct {
	store     Store
	publisher events.Publisher
	recorder  Recorder
	now       func() time.Time
}

// NewService wires a checkout service. publisher and recorder may be nil.
func NewService(store Store, publisher events.Publisher, recorder Recorder) *Service {
	if publisher == nil {
		publisher = events.LogPublisher{}
	}
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Service{store: store, publisher: publisher, recorder: recorder, now: time.Now}
}

// CreateOrderFromCart validates the buyer's cart, prices it, records the order,
// takes the stock, empties the cart, credits the buyer's impact and settles
// the campaign, all in one transaction. Events are published only after the
// transaction committed.
func (s *Service) CreateOrderFromCart(ctx context.Context, userID primitive.ObjectID, req Request) (*Result, error) {
	ctx, span := tracer.Start(ctx, "checkout.CreateOrderFromCart")
	defer span.End()

	if userID.IsZero() {
		s.recorder.CheckoutFailed(FailureReason(ErrUnauthenticated))
		return nil, ErrUnauthenticated
	}
	span.SetAttributes(attribute.String("user.id", userID.Hex()))
	if req.CampaignID != nil {
		span.SetAttributes(attribute.String("campaign.id", req.CampaignID.Hex()))
	}

	var result *Result
	err := s.store.WithinTransaction(ctx, func(ctx context.Context, tx Tx) error {
		r, err := s.checkout(ctx, tx, userID, req)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	if err != nil {
		reason := FailureReason(err)
		s.recorder.CheckoutFailed(reason)
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		log.Printf("[CHECKOUT] [WARN] checkout for user %s failed: %v", userID.Hex(), err)
		return nil, err
	}

	span.SetAttributes(
		attribute.String("order.id", result.Order.ID.Hex()),
		attribute.Float64("order.total", result.Order.TotalAmount),
	)
	s.recorder.CheckoutSucceeded(result.Order.TotalAmount, result.Order.CampaignID != nil)
	log.Printf("[CHECKOUT] [INFO] order %s created for user %s total=%.2f", result.Order.ID.Hex(), userID.Hex(), result.Order.TotalAmount)

	s.publish(ctx, events.OrderCreated(result.Order))
	if result.TargetReached && result.Campaign != nil {
		s.recorder.CampaignTargetReached()
		log.Printf("[CHECKOUT] [INFO] campaign %s reached its target", result.Campaign.ID.Hex())
		s.publish(ctx, events.CampaignTargetReached(*result.Campaign))
	}
	return result, nil
}

func (s *Service) publish(ctx context.Context, evt events.Event) {
	if err := s.publisher.Publish(ctx, evt); err != nil {
		log.Printf("[CHECKOUT] [WARN] publish %s for %s failed: %v", evt.Type, evt.RelatedID, err)
	}
}

func (s *Service) checkout(ctx context.Context, tx Tx, userID primitive.ObjectID, req Request) (*Result, error) {
	lines, err := tx.CartLines(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load cart: %w", err)
	}
	if len(lines) == 0 {
		return nil, ErrEmptyCart
	}

	products, err := validateLines(ctx, tx, lines)
	if err != nil {
		return nil, err
	}

	var campaign *models.Campaign
	if req.CampaignID != nil {
		campaign, err = tx.Campaign(ctx, *req.CampaignID)
		if errors.Is(err, ErrRecordNotFound) {
			log.Printf("[CHECKOUT] [WARN] campaign %s not found, pricing without discount", req.CampaignID.Hex())
			campaign = nil
		} else if err != nil {
			return nil, fmt.Errorf("load campaign: %w", err)
		}
	}

	items, total := priceLines(lines, products, campaign)
	now := s.now().UTC()
	order := models.Order{
		UserID:          userID,
		Items:           items,
		TotalAmount:     total,
		Status:          models.OrderPending,
		DeliveryAddress: req.DeliveryAddress,
		DeliveryMethod:  req.DeliveryMethod,
		DeliveryDate:    req.DeliveryDate,
		CampaignID:      req.CampaignID,
		Notes:           req.Notes,
		Impact:          EstimateImpact(lines),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if order.DeliveryMethod == "" {
		order.DeliveryMethod = models.DeliveryIndividual
	}

	orderID, err := tx.InsertOrder(ctx, &order)
	if err != nil {
		return nil, fmt.Errorf("insert order: %w", err)
	}
	order.ID = orderID

	for _, item := range order.Items {
		err := tx.DecrementStock(ctx, item.ProductID, item.Quantity)
		if errors.Is(err, ErrStockConflict) {
			return nil, InsufficientStockError{
				ProductID:   item.ProductID,
				ProductName: products[item.ProductID].Name,
				Requested:   item.Quantity,
			}
		}
		if err != nil {
			return nil, fmt.Errorf("decrement stock for %s: %w", item.ProductID.Hex(), err)
		}
	}

	if err := tx.ClearCart(ctx, userID); err != nil {
		return nil, fmt.Errorf("clear cart: %w", err)
	}

	moneySaved, err := recordImpact(ctx, tx, order, now)
	if err != nil {
		return nil, err
	}

	result := &Result{Order: order, MoneySaved: moneySaved}
	if req.CampaignID == nil {
		return result, nil
	}

	settled, settlement, err := settleCampaign(ctx, tx, *req.CampaignID, total)
	if errors.Is(err, ErrCampaignNotFound) {
		log.Printf("[CHECKOUT] [WARN] campaign %s vanished before settlement, skipping", req.CampaignID.Hex())
		return result, nil
	}
	if err != nil {
		return nil, err
	}
	result.Campaign = settled
	result.TargetReached = settlement.TargetReached
	return result, nil
}

// validateLines checks every line before anything is written. The first
// offending line aborts the checkout.
func validateLines(ctx context.Context, tx Tx, lines []models.CartLine) (map[primitive.ObjectID]models.Product, error) {
	products := make(map[primitive.ObjectID]models.Product, len(lines))
	for _, line := range lines {
		product, err := tx.Product(ctx, line.ProductID)
		if errors.Is(err, ErrRecordNotFound) {
			return nil, ProductUnavailableError{ProductID: line.ProductID, ProductName: "unknown", Requested: line.Quantity}
		}
		if err != nil {
			return nil, fmt.Errorf("load product %s: %w", line.ProductID.Hex(), err)
		}
		if !product.Available(line.Quantity) {
			return nil, ProductUnavailableError{
				ProductID:   line.ProductID,
				ProductName: product.Name,
				Requested:   line.Quantity,
				Available:   product.StockQuantity,
			}
		}
		products[line.ProductID] = *product
	}
	return products, nil
}

// FailureReason maps a checkout error onto a short label for metrics.
func FailureReason(err error) string {
	var unavailable ProductUnavailableError
	var insufficient InsufficientStockError
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrEmptyCart):
		return "empty_cart"
	case errors.As(err, &unavailable):
		return "product_unavailable"
	case errors.As(err, &insufficient):
		return "insufficient_stock"
	case errors.Is(err, ErrProfileNotFound):
		return "profile_not_found"
	default:
		return "internal"
	}
}
