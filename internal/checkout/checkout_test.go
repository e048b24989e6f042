package checkout

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/events"
	"uglies/internal/models"
)

var fixedNow = time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestService(store *memStore) (*Service, *recordingPublisher, *countingRecorder) {
	pub := &recordingPublisher{}
	rec := &countingRecorder{}
	svc := NewService(store, pub, rec)
	svc.now = func() time.Time { return fixedNow }
	return svc, pub, rec
}

func TestCreateOrderFromCartSingleLine(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Wonky carrots", Price: 10, StockQuantity: 5, IsActive: true})
	profile := store.addProfile(userID)
	store.addToCart(userID, product.ID, 2)
	svc, pub, rec := newTestService(store)

	result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{DeliveryAddress: "1 Main St"})
	require.NoError(t, err)

	assert.False(t, result.Order.ID.IsZero())
	assert.Equal(t, 20.0, result.Order.TotalAmount)
	assert.Equal(t, models.OrderPending, result.Order.Status)
	assert.Equal(t, models.DeliveryIndividual, result.Order.DeliveryMethod)
	assert.Equal(t, models.OrderImpact{WastePrevented: 1, CarbonSaved: 2.5}, result.Order.Impact)
	assert.InDelta(t, 6.0, result.MoneySaved, 1e-9)
	assert.Nil(t, result.Campaign)

	state := store.snapshot()
	require.Len(t, state.orders, 1)
	assert.Equal(t, []models.OrderItem{{ProductID: product.ID, Quantity: 2, PriceAtPurchase: 10}}, state.orders[0].Items)
	assert.Equal(t, 3, state.products[product.ID].StockQuantity)
	assert.Empty(t, state.cart)

	credited := state.profiles[profile.ID]
	assert.Equal(t, 10, credited.SustainabilityScore)
	assert.Equal(t, 1.0, credited.TotalWastePrevented)

	require.Len(t, state.impact, 1)
	entry := state.impact[0]
	assert.Equal(t, userID, entry.UserID)
	assert.Equal(t, fixedNow, entry.Date)
	assert.Equal(t, 1, entry.OrdersCompleted)
	assert.Equal(t, 0, entry.GroupOrdersParticipated)
	assert.InDelta(t, 6.0, entry.MoneySaved, 1e-9)

	assert.Equal(t, []string{events.TypeOrderCreated}, pub.events)
	assert.Equal(t, 1, rec.succeeded)
}

func TestCreateOrderFromCartCampaignReachesTarget(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Scarred apples", Price: 100, StockQuantity: 10, IsActive: true})
	campaign := store.addCampaign(models.Campaign{
		Title:        "Elm Park",
		OrganizerID:  primitive.NewObjectID(),
		TargetAmount: 150,
		Status:       models.CampaignActive,
		Offers:       []models.ProductOffer{{ProductID: product.ID, DiscountPercentage: 20}},
	})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 2)
	svc, pub, rec := newTestService(store)

	result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &campaign.ID, DeliveryMethod: models.DeliveryGroup})
	require.NoError(t, err)

	assert.InDelta(t, 160.0, result.Order.TotalAmount, 1e-9)
	assert.InDelta(t, 80.0, result.Order.Items[0].PriceAtPurchase, 1e-9)
	require.NotNil(t, result.Order.CampaignID)
	assert.Equal(t, campaign.ID, *result.Order.CampaignID)
	assert.True(t, result.TargetReached)
	require.NotNil(t, result.Campaign)
	assert.Equal(t, models.CampaignTargetReached, result.Campaign.Status)

	settled := store.snapshot().campaigns[campaign.ID]
	assert.InDelta(t, 160.0, settled.CurrentAmount, 1e-9)
	assert.Equal(t, 1, settled.ParticipantCount)
	assert.Equal(t, models.CampaignTargetReached, settled.Status)

	assert.Equal(t, 1, store.snapshot().impact[0].GroupOrdersParticipated)
	assert.Equal(t, []string{events.TypeOrderCreated, events.TypeCampaignTargetReached}, pub.events)
	assert.Equal(t, 1, rec.targetReached)
}

func TestCreateOrderFromCartTargetReachedLatches(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Pears", Price: 5, StockQuantity: 10, IsActive: true})
	campaign := store.addCampaign(models.Campaign{TargetAmount: 10, CurrentAmount: 12, ParticipantCount: 2, Status: models.CampaignTargetReached})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 1)
	svc, pub, _ := newTestService(store)

	result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &campaign.ID})
	require.NoError(t, err)

	assert.False(t, result.TargetReached)
	settled := store.snapshot().campaigns[campaign.ID]
	assert.Equal(t, 17.0, settled.CurrentAmount)
	assert.Equal(t, 3, settled.ParticipantCount)
	assert.Equal(t, models.CampaignTargetReached, settled.Status)
	assert.Equal(t, []string{events.TypeOrderCreated}, pub.events)
}

func TestCreateOrderFromCartMissingCampaignIsSkipped(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Kale", Price: 4, StockQuantity: 3, IsActive: true})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 1)
	svc, _, _ := newTestService(store)

	missing := primitive.NewObjectID()
	result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &missing})
	require.NoError(t, err)

	assert.Equal(t, 4.0, result.Order.TotalAmount)
	assert.Nil(t, result.Campaign)
	require.NotNil(t, result.Order.CampaignID)
	state := store.snapshot()
	assert.Len(t, state.orders, 1)
	assert.Equal(t, 1, state.impact[0].GroupOrdersParticipated)
}

func TestCreateOrderFromCartDiscountIsNotClamped(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Beets", Price: 10, StockQuantity: 3, IsActive: true})
	campaign := store.addCampaign(models.Campaign{
		TargetAmount: 1000,
		Status:       models.CampaignActive,
		Offers:       []models.ProductOffer{{ProductID: product.ID, DiscountPercentage: 150}},
	})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 1)
	svc, _, _ := newTestService(store)

	result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &campaign.ID})
	require.NoError(t, err)
	assert.InDelta(t, -5.0, result.Order.TotalAmount, 1e-9)
	assert.InDelta(t, -5.0, store.snapshot().campaigns[campaign.ID].CurrentAmount, 1e-9)
}

func TestCreateOrderFromCartRejectsAnonymousUser(t *testing.T) {
	store := newMemStore()
	svc, _, rec := newTestService(store)

	_, err := svc.CreateOrderFromCart(context.Background(), primitive.NilObjectID, Request{})
	assert.ErrorIs(t, err, ErrUnauthenticated)
	assert.Equal(t, 1, rec.failed["unauthenticated"])
}

func TestCreateOrderFromCartEmptyCart(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	store.addProfile(userID)
	svc, pub, _ := newTestService(store)

	_, err := svc.CreateOrderFromCart(context.Background(), userID, Request{})
	assert.ErrorIs(t, err, ErrEmptyCart)
	assert.Empty(t, store.snapshot().orders)
	assert.Empty(t, pub.events)
}

func TestCreateOrderFromCartUnavailableProducts(t *testing.T) {
	tests := []struct {
		name          string
		product       *models.Product
		quantity      int
		wantName      string
		wantAvailable int
	}{
		{name: "inactive", product: &models.Product{Name: "Leeks", StockQuantity: 9, IsActive: false}, quantity: 1, wantName: "Leeks", wantAvailable: 9},
		{name: "short on stock", product: &models.Product{Name: "Figs", StockQuantity: 2, IsActive: true}, quantity: 3, wantName: "Figs", wantAvailable: 2},
		{name: "missing", quantity: 1, wantName: "unknown"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newMemStore()
			userID := primitive.NewObjectID()
			store.addProfile(userID)
			productID := primitive.NewObjectID()
			if tt.product != nil {
				productID = store.addProduct(*tt.product).ID
			}
			store.addToCart(userID, productID, tt.quantity)
			svc, _, _ := newTestService(store)

			_, err := svc.CreateOrderFromCart(context.Background(), userID, Request{})
			var unavailable ProductUnavailableError
			require.True(t, errors.As(err, &unavailable), "got %v", err)
			assert.Equal(t, tt.wantName, unavailable.ProductName)
			assert.Equal(t, productID, unavailable.ProductID)
			assert.Equal(t, tt.wantAvailable, unavailable.Available)

			state := store.snapshot()
			assert.Empty(t, state.orders)
			assert.Len(t, state.cart, 1)
		})
	}
}

func TestCreateOrderFromCartStockTakenAfterValidation(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Plums", Price: 3, StockQuantity: 4, IsActive: true})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 2)
	store.beforeDecrement = func(tx *memTx) {
		p := tx.state.products[product.ID]
		p.StockQuantity = 1
		tx.state.products[product.ID] = p
	}
	svc, _, rec := newTestService(store)

	_, err := svc.CreateOrderFromCart(context.Background(), userID, Request{})
	var insufficient InsufficientStockError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, "Plums", insufficient.ProductName)
	assert.Equal(t, 1, rec.failed["insufficient_stock"])

	state := store.snapshot()
	assert.Empty(t, state.orders)
	assert.Len(t, state.cart, 1)
	assert.Equal(t, 4, state.products[product.ID].StockQuantity)
}

func TestCreateOrderFromCartDuplicateLinesExhaustStock(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Squash", Price: 2, StockQuantity: 3, IsActive: true})
	store.addProfile(userID)
	store.addToCart(userID, product.ID, 2)
	store.addToCart(userID, product.ID, 2)
	svc, _, _ := newTestService(store)

	_, err := svc.CreateOrderFromCart(context.Background(), userID, Request{})
	var insufficient InsufficientStockError
	require.True(t, errors.As(err, &insufficient), "got %v", err)
	assert.Equal(t, 3, store.snapshot().products[product.ID].StockQuantity)
}

func TestCreateOrderFromCartMissingProfileRollsBack(t *testing.T) {
	store := newMemStore()
	userID := primitive.NewObjectID()
	product := store.addProduct(models.Product{Name: "Lemons", Price: 1, StockQuantity: 5, IsActive: true})
	campaign := store.addCampaign(models.Campaign{TargetAmount: 100, Status: models.CampaignActive})
	store.addToCart(userID, product.ID, 2)
	svc, pub, _ := newTestService(store)

	_, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &campaign.ID})
	require.ErrorIs(t, err, ErrProfileNotFound)

	state := store.snapshot()
	assert.Empty(t, state.orders)
	assert.Empty(t, state.impact)
	assert.Len(t, state.cart, 1)
	assert.Equal(t, 5, state.products[product.ID].StockQuantity)
	assert.Equal(t, 0, state.campaigns[campaign.ID].ParticipantCount)
	assert.Empty(t, pub.events)
}

func TestCreateOrderFromCartLastUnitGoesToOneBuyer(t *testing.T) {
	store := newMemStore()
	product := store.addProduct(models.Product{Name: "Last melon", Price: 8, StockQuantity: 1, IsActive: true})
	const buyers = 10
	users := make([]primitive.ObjectID, buyers)
	for i := range users {
		users[i] = primitive.NewObjectID()
		store.addProfile(users[i])
		store.addToCart(users[i], product.ID, 1)
	}
	svc, _, _ := newTestService(store)

	var wg sync.WaitGroup
	errs := make([]error, buyers)
	for i := range users {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.CreateOrderFromCart(context.Background(), users[i], Request{})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		var unavailable ProductUnavailableError
		assert.True(t, errors.As(err, &unavailable), "got %v", err)
	}
	assert.Equal(t, 1, succeeded)

	state := store.snapshot()
	assert.Equal(t, 0, state.products[product.ID].StockQuantity)
	assert.Len(t, state.orders, 1)
	assert.Len(t, state.cart, buyers-1)
}

func TestCreateOrderFromCartConcurrentSettlementsDoNotLoseUpdates(t *testing.T) {
	store := newMemStore()
	product := store.addProduct(models.Product{Name: "Onions", Price: 10, StockQuantity: 100, IsActive: true})
	campaign := store.addCampaign(models.Campaign{TargetAmount: 100, Status: models.CampaignActive})
	const buyers = 20
	users := make([]primitive.ObjectID, buyers)
	for i := range users {
		users[i] = primitive.NewObjectID()
		store.addProfile(users[i])
		store.addToCart(users[i], product.ID, 1)
	}
	svc, _, rec := newTestService(store)

	var wg sync.WaitGroup
	var mu sync.Mutex
	reached := 0
	for i := range users {
		wg.Add(1)
		go func(userID primitive.ObjectID) {
			defer wg.Done()
			result, err := svc.CreateOrderFromCart(context.Background(), userID, Request{CampaignID: &campaign.ID})
			if !assert.NoError(t, err) {
				return
			}
			if result.TargetReached {
				mu.Lock()
				reached++
				mu.Unlock()
			}
		}(users[i])
	}
	wg.Wait()

	settled := store.snapshot().campaigns[campaign.ID]
	assert.Equal(t, 200.0, settled.CurrentAmount)
	assert.Equal(t, buyers, settled.ParticipantCount)
	assert.Equal(t, models.CampaignTargetReached, settled.Status)
	assert.Equal(t, 1, reached)
	assert.Equal(t, 1, rec.targetReached)
	assert.Equal(t, 80, store.snapshot().products[product.ID].StockQuantity)
}

func TestFailureReason(t *testing.T) {
	assert.Equal(t, "empty_cart", FailureReason(ErrEmptyCart))
	assert.Equal(t, "product_unavailable", FailureReason(ProductUnavailableError{}))
	assert.Equal(t, "insufficient_stock", FailureReason(InsufficientStockError{}))
	assert.Equal(t, "profile_not_found", FailureReason(ErrProfileNotFound))
	assert.Equal(t, "internal", FailureReason(errors.New("boom")))
}
