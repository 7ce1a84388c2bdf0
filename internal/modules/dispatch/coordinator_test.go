// README: Coordinator tests covering assignment guards, persistence, and side effects.
package dispatch

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"dispatch/internal/config"
	"dispatch/internal/eta"
	"dispatch/internal/modules/order"
	"dispatch/internal/modules/rider"
	"dispatch/internal/types"
)

// mockOrders emulates the store's conditional assignment write.
type mockOrders struct {
	mu      sync.Mutex
	orders  map[types.ID]*order.Order
	writes  int
	events  []order.AssignmentEvent
	failOn  bool
	distKm  map[types.ID]float64 // persisted assignment_distance_km per order
}

func newMockOrders(orders ...*order.Order) *mockOrders {
	m := &mockOrders{orders: make(map[types.ID]*order.Order), distKm: make(map[types.ID]float64)}
	for _, o := range orders {
		cp := *o
		m.orders[o.ID] = &cp
		if o.Assignment.DistanceKm != nil {
			m.distKm[o.ID] = *o.Assignment.DistanceKm
		}
	}
	return m
}

func (m *mockOrders) Get(_ context.Context, id types.ID) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, order.ErrNotFound
	}
	cp := *o
	return &cp, nil
}

func (m *mockOrders) ListUnassigned(_ context.Context, _ int) ([]*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*order.Order
	for _, o := range m.orders {
		if !o.Assigned() && !o.Terminal() && o.Status != order.StatusPending {
			cp := *o
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockOrders) AssignPartner(_ context.Context, orderID, riderID types.ID, assignedBy string, pickupDistanceKm float64) (bool, error) {
	if m.failOn {
		return false, errors.New("write failed")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[orderID]
	if !ok {
		return false, nil
	}
	if o.Assigned() || o.Status == order.StatusCancelled || o.Status == order.StatusDelivered || o.Terminal() {
		return false, nil
	}
	now := time.Now().UTC()
	o.DeliveryPartnerID = &riderID
	o.DeliveryStatus = order.DeliveryAssigned
	o.Assignment.DeliveryPartnerID = &riderID
	o.Assignment.AssignedAt = &now
	o.Assignment.AssignedBy = assignedBy
	if _, set := m.distKm[orderID]; !set {
		m.distKm[orderID] = pickupDistanceKm
		d := pickupDistanceKm
		o.Assignment.DistanceKm = &d
	}
	m.writes++
	return true, nil
}

func (m *mockOrders) AppendAssignmentEvent(_ context.Context, e *order.AssignmentEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, *e)
	return nil
}

func (m *mockOrders) writeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.writes
}

type mockDispatchLog struct {
	mu           sync.Mutex
	notified     map[types.ID][]types.ID
	broadcast    map[types.ID]bool
	dispatchedAt map[types.ID]time.Time
}

func newMockDispatchLog() *mockDispatchLog {
	return &mockDispatchLog{
		notified:     make(map[types.ID][]types.ID),
		broadcast:    make(map[types.ID]bool),
		dispatchedAt: make(map[types.ID]time.Time),
	}
}

func (m *mockDispatchLog) RecordNotified(_ context.Context, orderID types.ID, riderIDs []types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.dispatchedAt[orderID]; !ok {
		m.dispatchedAt[orderID] = time.Now().UTC()
	}
	m.notified[orderID] = append(m.notified[orderID], riderIDs...)
	return nil
}

func (m *mockDispatchLog) GetDispatchedAt(_ context.Context, orderID types.ID) (time.Time, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	at, ok := m.dispatchedAt[orderID]
	return at, ok, nil
}

func (m *mockDispatchLog) NotifiedRiders(_ context.Context, orderID types.ID) ([]types.ID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]types.ID(nil), m.notified[orderID]...), nil
}

func (m *mockDispatchLog) MarkBroadcast(_ context.Context, orderID types.ID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.broadcast[orderID] = true
	return nil
}

func (m *mockDispatchLog) IsBroadcast(_ context.Context, orderID types.ID) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.broadcast[orderID], nil
}

type mockNotifier struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (m *mockNotifier) OrderAssigned(_ context.Context, _, _ types.ID, _, _ types.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls++
	return m.err
}

func (m *mockNotifier) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls
}

func testDispatchCfg() config.DispatchConfig {
	return config.DispatchConfig{
		MaxRadiusKm:      50,
		PriorityRadiusKm: 5,
		CashLimitDefault: 750,
		AssignedBy:       "auto_dispatch",
	}
}

func confirmedOrder(id types.ID, method order.PaymentMethod) *order.Order {
	return &order.Order{
		ID:                 id,
		RestaurantID:       testRestaurant,
		CustomerID:         "cust_1",
		RestaurantLocation: testOrigin,
		Dropoff:            types.Point{Lat: 22.75, Lng: 75.89},
		Status:             order.StatusConfirmed,
		Payment:            order.Payment{Method: method},
		CreatedAt:          time.Now().UTC(),
	}
}

func newTestCoordinator(orders *mockOrders, dir *mockDirectory, dlog *mockDispatchLog, stub *mockNotifier) *Coordinator {
	matcher := newTestMatcher(dir, nil, nil, nil)
	var dl DispatchLog
	if dlog != nil {
		dl = dlog
	}
	var notifier ETANotifier = eta.NopNotifier{}
	if stub != nil {
		notifier = stub
	}
	return NewCoordinator(orders, matcher, dl, notifier, testDispatchCfg(), zap.NewNop())
}

func TestAssignHappyPath(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	dlog := newMockDispatchLog()
	eta := &mockNotifier{}
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, dlog, eta)

	res, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res == nil {
		t.Fatal("expected an assignment result")
	}
	if res.DeliveryPartnerID != "r1" {
		t.Fatalf("expected nearest rider r1, got %s", res.DeliveryPartnerID)
	}
	if res.OrderID != "o1" {
		t.Fatalf("result order id = %s", res.OrderID)
	}

	stored, _ := orders.Get(context.Background(), "o1")
	if !stored.Assigned() || *stored.DeliveryPartnerID != "r1" {
		t.Fatal("assignment was not persisted")
	}
	if stored.Assignment.AssignedBy != "auto_dispatch" {
		t.Fatalf("assigned_by = %s", stored.Assignment.AssignedBy)
	}

	// The in-memory order is mutated too.
	if !ord.Assigned() || ord.DeliveryStatus != order.DeliveryAssigned {
		t.Fatal("caller's order must reflect the assignment")
	}

	if eta.callCount() != 1 {
		t.Fatalf("expected 1 eta notification, got %d", eta.callCount())
	}
	notified, _ := dlog.NotifiedRiders(context.Background(), "o1")
	if len(notified) != 1 || notified[0] != "r1" {
		t.Fatalf("expected r1 in the notified set, got %v", notified)
	}
	if len(orders.events) != 1 || orders.events[0].RiderID != "r1" {
		t.Fatalf("expected one assignment audit event, got %v", orders.events)
	}
}

func TestAssignNoRiderAvailable(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{}, nil, nil)

	res, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("assign: %v", err)
	}
	if res != nil {
		t.Fatalf("expected nil when nobody is available, got %v", res)
	}
	if orders.writeCount() != 0 {
		t.Fatal("no store write expected")
	}
}

func TestAssignRefusesTerminalOrders(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*order.Order)
	}{
		{"cancelled", func(o *order.Order) { o.Status = order.StatusCancelled }},
		{"delivered", func(o *order.Order) { o.Status = order.StatusDelivered }},
		{"delivery completed", func(o *order.Order) { o.DeliveryStatus = order.DeliveryCompleted }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ord := confirmedOrder("o1", order.PaymentUPI)
			tt.mutate(ord)
			orders := newMockOrders(ord)
			c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

			res, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
			if err != nil {
				t.Fatalf("assign: %v", err)
			}
			if res != nil {
				t.Fatalf("terminal order must not be assigned, got %v", res)
			}
			if orders.writeCount() != 0 {
				t.Fatal("no store write expected for a terminal order")
			}
		})
	}
}

// Second attempt on an already-assigned order is a no-op and leaves the stored
// rider untouched.
func TestAssignIdempotent(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	first, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil || first == nil {
		t.Fatalf("first assign: res=%v err=%v", first, err)
	}

	reloaded, _ := orders.Get(context.Background(), "o1")
	second, err := c.Assign(context.Background(), reloaded, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("second assign: %v", err)
	}
	if second != nil {
		t.Fatalf("second assign must be a no-op, got %v", second)
	}
	if orders.writeCount() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", orders.writeCount())
	}

	final, _ := orders.Get(context.Background(), "o1")
	if *final.DeliveryPartnerID != first.DeliveryPartnerID {
		t.Fatal("stored rider changed on the second attempt")
	}
}

// A stale in-memory order passes the precondition but the conditional write
// refuses it — the race loser gets a nil result, not a duplicate assignment.
func TestAssignLostRaceIsNoop(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	if _, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant); err != nil {
		t.Fatalf("first assign: %v", err)
	}

	stale := confirmedOrder("o1", order.PaymentUPI) // unassigned snapshot
	res, err := c.Assign(context.Background(), stale, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("stale assign: %v", err)
	}
	if res != nil {
		t.Fatalf("lost race must return nil, got %v", res)
	}
	if orders.writeCount() != 1 {
		t.Fatalf("expected exactly 1 write, got %d", orders.writeCount())
	}
}

// The canonical restaurant→customer distance recorded at creation survives
// assignment; only the assignment identity fields change.
func TestAssignPreservesCanonicalDistance(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	canonical := 7.5
	ord.Assignment.DistanceKm = &canonical
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	res, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil || res == nil {
		t.Fatalf("assign: res=%v err=%v", res, err)
	}

	if ord.Assignment.DistanceKm == nil || *ord.Assignment.DistanceKm != 7.5 {
		t.Fatalf("canonical distance overwritten: %v", ord.Assignment.DistanceKm)
	}
	if orders.distKm["o1"] != 7.5 {
		t.Fatalf("stored canonical distance overwritten: %v", orders.distKm["o1"])
	}
	// The match itself was distance ~0, proving the two semantics stayed apart.
	if res.DistanceKm > 0.001 {
		t.Fatalf("pickup distance should be ~0, got %f", res.DistanceKm)
	}
}

func TestAssignFillsDistanceWhenUnset(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	if _, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant); err != nil {
		t.Fatalf("assign: %v", err)
	}
	if ord.Assignment.DistanceKm == nil {
		t.Fatal("distance should default to the pickup distance when unset")
	}
}

func TestAssignETAFailureSwallowed(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	eta := &mockNotifier{err: errors.New("maps quota exceeded")}
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, eta)

	res, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("eta failure must not fail the assignment: %v", err)
	}
	if res == nil {
		t.Fatal("expected a result despite the eta failure")
	}
}

func TestAssignPersistenceFailurePropagates(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	orders.failOn = true
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	if _, err := c.Assign(context.Background(), ord, testOrigin, testRestaurant); err == nil {
		t.Fatal("order write failure must surface as an error")
	}
}

func TestAssignFallsBackToOrderCoordinates(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, nil, nil)

	res, err := c.Assign(context.Background(), ord, types.Point{}, "")
	if err != nil || res == nil {
		t.Fatalf("assign with zero origin: res=%v err=%v", res, err)
	}
	if res.DeliveryPartnerID != "r1" {
		t.Fatalf("expected r1 via the order's restaurant location, got %s", res.DeliveryPartnerID)
	}
}

func TestBroadcastRecordsNotifiedSet(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	dlog := newMockDispatchLog()
	pool := []rider.Rider{
		onlineRider("r1", 22.7196, 75.8577),
		onlineRider("r2", 22.7300, 75.8600), // ~1.2km, inside the priority radius
		onlineRider("r3", 22.80, 75.90),     // ~10km, outside it
	}
	c := newTestCoordinator(orders, &mockDirectory{riders: pool}, dlog, nil)

	ranked, err := c.Broadcast(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if len(ranked) != 2 {
		t.Fatalf("expected 2 riders inside the priority radius, got %d", len(ranked))
	}

	notified, _ := dlog.NotifiedRiders(context.Background(), "o1")
	if len(notified) != 2 {
		t.Fatalf("expected the full ranked set recorded, got %v", notified)
	}
	if ok, _ := dlog.IsBroadcast(context.Background(), "o1"); !ok {
		t.Fatal("order should be marked broadcast")
	}
	if orders.writeCount() != 0 {
		t.Fatal("broadcast must not assign anyone")
	}
}

// A second broadcast of the same order is a no-op; riders are not notified
// twice.
func TestBroadcastSecondCallIsNoop(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	dlog := newMockDispatchLog()
	pool := []rider.Rider{
		onlineRider("r1", 22.7196, 75.8577),
		onlineRider("r2", 22.7300, 75.8600),
	}
	c := newTestCoordinator(orders, &mockDirectory{riders: pool}, dlog, nil)

	first, err := c.Broadcast(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil || len(first) != 2 {
		t.Fatalf("first broadcast: ranked=%v err=%v", first, err)
	}

	second, err := c.Broadcast(context.Background(), ord, testOrigin, testRestaurant)
	if err != nil {
		t.Fatalf("second broadcast: %v", err)
	}
	if second != nil {
		t.Fatalf("repeat broadcast must be a no-op, got %v", second)
	}

	notified, _ := dlog.NotifiedRiders(context.Background(), "o1")
	if len(notified) != 2 {
		t.Fatalf("notified set must not grow on a repeat broadcast, got %v", notified)
	}
}

func TestStateReportsOfferHistory(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	dlog := newMockDispatchLog()
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, dlog, nil)

	fresh, err := c.State(context.Background(), "o1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if fresh.DispatchedAt != nil || fresh.Broadcast || len(fresh.NotifiedRiders) != 0 {
		t.Fatalf("expected empty history before dispatch, got %+v", fresh)
	}

	if _, err := c.Broadcast(context.Background(), ord, testOrigin, testRestaurant); err != nil {
		t.Fatalf("broadcast: %v", err)
	}

	st, err := c.State(context.Background(), "o1")
	if err != nil {
		t.Fatalf("state: %v", err)
	}
	if st.DispatchedAt == nil {
		t.Fatal("expected a first-dispatch timestamp")
	}
	if !st.Broadcast {
		t.Fatal("expected broadcast flag set")
	}
	if len(st.NotifiedRiders) == 0 {
		t.Fatal("expected notified riders recorded")
	}
}

// Reattempt excludes riders from the notified set, so the retry offers the
// order to somebody new.
func TestReattemptExcludesNotified(t *testing.T) {
	ord := confirmedOrder("o1", order.PaymentUPI)
	orders := newMockOrders(ord)
	dlog := newMockDispatchLog()
	_ = dlog.RecordNotified(context.Background(), "o1", []types.ID{"r1"})
	c := newTestCoordinator(orders, &mockDirectory{riders: twoRiderPool()}, dlog, nil)

	res, err := c.Reattempt(context.Background(), ord)
	if err != nil {
		t.Fatalf("reattempt: %v", err)
	}
	if res == nil || res.DeliveryPartnerID != "r2" {
		t.Fatalf("expected r2 after excluding notified r1, got %v", res)
	}
}
