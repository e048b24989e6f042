package checkout

import (
	"context"
	"errors"
	"sync"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"uglies/internal/events"
	"uglies/internal/models"
)

type memState struct {
	cart      []models.CartLine
	products  map[primitive.ObjectID]models.Product
	campaigns map[primitive.ObjectID]models.Campaign
	profiles  map[primitive.ObjectID]models.UserProfile
	orders    []models.Order
	impact    []models.ImpactEntry
}

func (s memState) clone() memState {
	c := memState{
		cart:      append([]models.CartLine(nil), s.cart...),
		products:  make(map[primitive.ObjectID]models.Product, len(s.products)),
		campaigns: make(map[primitive.ObjectID]models.Campaign, len(s.campaigns)),
		profiles:  make(map[primitive.ObjectID]models.UserProfile, len(s.profiles)),
		orders:    append([]models.Order(nil), s.orders...),
		impact:    append([]models.ImpactEntry(nil), s.impact...),
	}
	for k, v := range s.products {
		c.products[k] = v
	}
	for k, v := range s.campaigns {
		c.campaigns[k] = v
	}
	for k, v := range s.profiles {
		c.profiles[k] = v
	}
	return c
}

// memStore serializes transactions and commits a working copy only when fn
// succeeds.
type memStore struct {
	mu    sync.Mutex
	state memState

	// hooks let tests interfere between steps of a transaction.
	beforeDecrement func(tx *memTx)
	beforeSettle    func(tx *memTx)
}

func newMemStore() *memStore {
	return &memStore{state: memState{
		products:  map[primitive.ObjectID]models.Product{},
		campaigns: map[primitive.ObjectID]models.Campaign{},
		profiles:  map[primitive.ObjectID]models.UserProfile{},
	}}
}

func (m *memStore) WithinTransaction(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	tx := &memTx{store: m, state: m.state.clone()}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	m.state = tx.state
	return nil
}

func (m *memStore) snapshot() memState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state.clone()
}

func (m *memStore) addProduct(p models.Product) models.Product {
	if p.ID.IsZero() {
		p.ID = primitive.NewObjectID()
	}
	m.state.products[p.ID] = p
	return p
}

func (m *memStore) addCampaign(c models.Campaign) models.Campaign {
	if c.ID.IsZero() {
		c.ID = primitive.NewObjectID()
	}
	m.state.campaigns[c.ID] = c
	return c
}

func (m *memStore) addProfile(userID primitive.ObjectID) models.UserProfile {
	p := models.UserProfile{ID: primitive.NewObjectID(), UserID: userID, Role: models.RoleUser}
	m.state.profiles[p.ID] = p
	return p
}

func (m *memStore) addToCart(userID, productID primitive.ObjectID, quantity int) {
	m.state.cart = append(m.state.cart, models.CartLine{
		ID:        primitive.NewObjectID(),
		UserID:    userID,
		ProductID: productID,
		Quantity:  quantity,
	})
}

type memTx struct {
	store *memStore
	state memState
}

func (t *memTx) CartLines(_ context.Context, userID primitive.ObjectID) ([]models.CartLine, error) {
	var lines []models.CartLine
	for _, line := range t.state.cart {
		if line.UserID == userID {
			lines = append(lines, line)
		}
	}
	return lines, nil
}

func (t *memTx) Product(_ context.Context, id primitive.ObjectID) (*models.Product, error) {
	p, ok := t.state.products[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &p, nil
}

func (t *memTx) Campaign(_ context.Context, id primitive.ObjectID) (*models.Campaign, error) {
	c, ok := t.state.campaigns[id]
	if !ok {
		return nil, ErrRecordNotFound
	}
	return &c, nil
}

func (t *memTx) Profile(_ context.Context, userID primitive.ObjectID) (*models.UserProfile, error) {
	for _, p := range t.state.profiles {
		if p.UserID == userID {
			return &p, nil
		}
	}
	return nil, ErrRecordNotFound
}

func (t *memTx) InsertOrder(_ context.Context, order *models.Order) (primitive.ObjectID, error) {
	o := *order
	o.ID = primitive.NewObjectID()
	t.state.orders = append(t.state.orders, o)
	return o.ID, nil
}

func (t *memTx) DecrementStock(_ context.Context, productID primitive.ObjectID, quantity int) error {
	if t.store.beforeDecrement != nil {
		t.store.beforeDecrement(t)
	}
	p, ok := t.state.products[productID]
	if !ok || p.StockQuantity < quantity {
		return ErrStockConflict
	}
	p.StockQuantity -= quantity
	t.state.products[productID] = p
	return nil
}

func (t *memTx) ClearCart(_ context.Context, userID primitive.ObjectID) error {
	kept := t.state.cart[:0:0]
	for _, line := range t.state.cart {
		if line.UserID != userID {
			kept = append(kept, line)
		}
	}
	t.state.cart = kept
	return nil
}

func (t *memTx) AddProfileImpact(_ context.Context, profileID primitive.ObjectID, waste float64, score int) error {
	p, ok := t.state.profiles[profileID]
	if !ok {
		return errors.New("profile vanished")
	}
	p.TotalWastePrevented += waste
	p.SustainabilityScore += score
	t.state.profiles[profileID] = p
	return nil
}

func (t *memTx) InsertImpactEntry(_ context.Context, entry *models.ImpactEntry) error {
	e := *entry
	e.ID = primitive.NewObjectID()
	t.state.impact = append(t.state.impact, e)
	return nil
}

func (t *memTx) SettleCampaign(_ context.Context, id primitive.ObjectID, s Settlement) error {
	if t.store.beforeSettle != nil {
		t.store.beforeSettle(t)
	}
	c, ok := t.state.campaigns[id]
	if !ok {
		return ErrRecordNotFound
	}
	c.CurrentAmount = s.CurrentAmount
	c.ParticipantCount = s.ParticipantCount
	c.Status = s.Status
	t.state.campaigns[id] = c
	return nil
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []string
}

func (p *recordingPublisher) Publish(_ context.Context, evt events.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt.Type)
	return nil
}

type countingRecorder struct {
	mu            sync.Mutex
	succeeded     int
	failed        map[string]int
	targetReached int
}

func (r *countingRecorder) CheckoutSucceeded(float64, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.succeeded++
}

func (r *countingRecorder) CheckoutFailed(reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.failed == nil {
		r.failed = map[string]int{}
	}
	r.failed[reason]++
}

func (r *countingRecorder) CampaignTargetReached() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.targetReached++
}
