package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/cache"
	kafka "github.com/vogiaan1904/ticketbottle-settlement/internal/delivery/kafka"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	repo "github.com/vogiaan1904/ticketbottle-settlement/internal/repository/postgres"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

// In-memory fakes for the repository, cache and producer ports. The
// event fake implements Reserve under a single lock so the conditional
// decrement behaves like the storage-level UPDATE it stands in for,
// which lets the tests exercise real goroutine contention.

type fakeEventRepo struct {
	mu     sync.Mutex
	events map[string]*models.Event
	cats   map[string]*models.TicketCategory
}

func newFakeEventRepo() *fakeEventRepo {
	return &fakeEventRepo{
		events: map[string]*models.Event{},
		cats:   map[string]*models.TicketCategory{},
	}
}

func (f *fakeEventRepo) Create(_ context.Context, e *models.Event, cats []models.TicketCategory) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	e.CreatedAt = time.Now()

	total := 0
	for i := range cats {
		total += cats[i].AvailableCategoryTickets
	}
	e.AvailableTickets = total
	e.OriginalAmountOfTickets = total

	cp := *e
	f.events[e.ID] = &cp
	for i := range cats {
		if cats[i].ID == "" {
			cats[i].ID = uuid.NewString()
		}
		cats[i].EventID = e.ID
		c := cats[i]
		f.cats[c.ID] = &c
	}

	return nil
}

func (f *fakeEventRepo) Get(_ context.Context, id string) (*models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *e
	return &cp, nil
}

func (f *fakeEventRepo) List(_ context.Context) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Event
	for _, e := range f.events {
		out = append(out, *e)
	}
	return out, nil
}

func (f *fakeEventRepo) GetCategory(_ context.Context, id string) (*models.TicketCategory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.cats[id]
	if !ok {
		return nil, repo.ErrNotFound
	}
	cp := *c
	return &cp, nil
}

func (f *fakeEventRepo) Reserve(_ context.Context, eventID, categoryID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	c, ok := f.cats[categoryID]
	if !ok {
		return false, repo.ErrNotFound
	}
	e, ok := f.events[eventID]
	if !ok {
		return false, repo.ErrNotFound
	}

	if c.AvailableCategoryTickets <= 0 || e.AvailableTickets <= 0 {
		return false, nil
	}

	c.AvailableCategoryTickets--
	e.AvailableTickets--
	return true, nil
}

func (f *fakeEventRepo) Release(_ context.Context, eventID, categoryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if c, ok := f.cats[categoryID]; ok {
		c.AvailableCategoryTickets++
	}
	if e, ok := f.events[eventID]; ok {
		e.AvailableTickets++
	}
	return nil
}

func (f *fakeEventRepo) RemainingTickets(_ context.Context, eventID string) (*models.RemainingTickets, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	e, ok := f.events[eventID]
	if !ok {
		return nil, repo.ErrNotFound
	}

	rem := &models.RemainingTickets{
		EventID:     eventID,
		Event:       e.AvailableTickets,
		PerCategory: map[string]int{},
	}
	for _, c := range f.cats {
		if c.EventID == eventID {
			rem.PerCategory[c.ID] = c.AvailableCategoryTickets
		}
	}
	return rem, nil
}

func (f *fakeEventRepo) UpdateTrending(_ context.Context, counts map[string]int, trendingIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	trending := map[string]bool{}
	for _, id := range trendingIDs {
		trending[id] = true
	}

	for id, n := range counts {
		if e, ok := f.events[id]; ok {
			e.TicketsEmittedRecently = n
		}
	}
	for id, e := range f.events {
		e.IsTrending = trending[id]
	}
	return nil
}

func (f *fakeEventRepo) ListTrending(_ context.Context) ([]models.Event, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Event
	for _, e := range f.events {
		if e.IsTrending {
			out = append(out, *e)
		}
	}
	return out, nil
}

type fakeTicketRepo struct {
	mu      sync.Mutex
	tickets map[string]*models.Ticket
}

func newFakeTicketRepo() *fakeTicketRepo {
	return &fakeTicketRepo{tickets: map[string]*models.Ticket{}}
}

func (f *fakeTicketRepo) Create(_ context.Context, t *models.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.EmittedAt.IsZero() {
		t.EmittedAt = time.Now()
	}
	cp := *t
	f.tickets[t.ID] = &cp
	return nil
}

func (f *fakeTicketRepo) GetBatch(_ context.Context, ids []string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Ticket
	for _, id := range ids {
		if t, ok := f.tickets[id]; ok {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) ListByOrder(_ context.Context, orderID string) ([]models.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Ticket
	for _, t := range f.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (f *fakeTicketRepo) UpdateStatusByOrder(_ context.Context, orderID string, status models.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			t.Status = status
		}
	}
	return nil
}

func (f *fakeTicketRepo) DetachFromOrder(_ context.Context, orderID string, status models.TicketStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, t := range f.tickets {
		if t.OrderID != nil && *t.OrderID == orderID {
			t.OrderID = nil
			t.Status = status
		}
	}
	return nil
}

func (f *fakeTicketRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.tickets[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.tickets, id)
	return nil
}

func (f *fakeTicketRepo) CountEmittedSince(_ context.Context, since time.Time) (map[string]int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	counts := map[string]int{}
	for _, t := range f.tickets {
		if !t.EmittedAt.Before(since) {
			counts[t.EventID]++
		}
	}
	return counts, nil
}

type fakeOrderRepo struct {
	mu      sync.Mutex
	orders  map[string]*models.Order
	tickets *fakeTicketRepo
}

func newFakeOrderRepo(tickets *fakeTicketRepo) *fakeOrderRepo {
	return &fakeOrderRepo{orders: map[string]*models.Order{}, tickets: tickets}
}

func (f *fakeOrderRepo) CreateWithTickets(ctx context.Context, o *models.Order, ticketIDs []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tickets.mu.Lock()
	defer f.tickets.mu.Unlock()

	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	o.Status = models.OrderStatusPendingPayment
	o.CreatedAt = time.Now()

	for _, id := range ticketIDs {
		t, ok := f.tickets.tickets[id]
		if !ok || t.OrderID != nil {
			return repo.ErrTicketConflict
		}
	}
	for _, id := range ticketIDs {
		t := f.tickets.tickets[id]
		oid := o.ID
		t.OrderID = &oid
		t.Status = models.TicketStatusPending
	}

	cp := *o
	cp.Tickets = nil
	f.orders[o.ID] = &cp
	return nil
}

func (f *fakeOrderRepo) Get(ctx context.Context, id string) (*models.Order, error) {
	f.mu.Lock()
	o, ok := f.orders[id]
	if !ok {
		f.mu.Unlock()
		return nil, repo.ErrNotFound
	}
	cp := *o
	f.mu.Unlock()

	tickets, err := f.tickets.ListByOrder(ctx, id)
	if err != nil {
		return nil, err
	}
	cp.Tickets = tickets
	return &cp, nil
}

func (f *fakeOrderRepo) ListByUser(_ context.Context, userID string, page, pageSize int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) UpdateStatusIf(_ context.Context, id string, from, to models.OrderStatus) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	o, ok := f.orders[id]
	if !ok || o.Status != from {
		return false, nil
	}
	o.Status = to
	return true, nil
}

func (f *fakeOrderRepo) ListExpiredPending(_ context.Context, olderThan time.Time, limit int) ([]models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []models.Order
	for _, o := range f.orders {
		if o.Status == models.OrderStatusPendingPayment && o.CreatedAt.Before(olderThan) {
			out = append(out, *o)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeOrderRepo) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.orders[id]; !ok {
		return repo.ErrNotFound
	}
	delete(f.orders, id)
	return nil
}

// setCreatedAt backdates an order, for sweeper tests.
func (f *fakeOrderRepo) setCreatedAt(id string, at time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o, ok := f.orders[id]; ok {
		o.CreatedAt = at
	}
}

type fakeCache struct {
	mu               sync.Mutex
	remainingEvicted []string
	ordersEvicted    []string
	trendingEvicted  int
}

func newFakeCache() *fakeCache { return &fakeCache{} }

func (f *fakeCache) GetRemainingTickets(context.Context, string) (*models.RemainingTickets, error) {
	return nil, cache.ErrMiss
}

func (f *fakeCache) SetRemainingTickets(context.Context, *models.RemainingTickets) error {
	return nil
}

func (f *fakeCache) EvictRemainingTickets(_ context.Context, eventID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.remainingEvicted = append(f.remainingEvicted, eventID)
	return nil
}

func (f *fakeCache) GetUserOrders(context.Context, string, int, int) ([]models.Order, error) {
	return nil, cache.ErrMiss
}

func (f *fakeCache) SetUserOrders(context.Context, string, int, int, []models.Order) error {
	return nil
}

func (f *fakeCache) EvictUserOrders(_ context.Context, userID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ordersEvicted = append(f.ordersEvicted, userID)
	return nil
}

func (f *fakeCache) GetTrendingEvents(context.Context) ([]models.Event, error) {
	return nil, cache.ErrMiss
}

func (f *fakeCache) SetTrendingEvents(context.Context, []models.Event) error {
	return nil
}

func (f *fakeCache) EvictTrendingEvents(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trendingEvicted++
	return nil
}

type fakeProducer struct {
	mu          sync.Mutex
	requests    []kafka.PaymentRequestEvent
	deadLetters []string
	publishErr  error
}

func newFakeProducer() *fakeProducer { return &fakeProducer{} }

func (f *fakeProducer) PublishPaymentRequest(_ context.Context, event kafka.PaymentRequestEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.publishErr != nil {
		return f.publishErr
	}
	f.requests = append(f.requests, event)
	return nil
}

func (f *fakeProducer) PublishDeadLetter(_ context.Context, srcTopic string, _ []byte, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deadLetters = append(f.deadLetters, srcTopic)
	return nil
}

func (f *fakeProducer) Close() error { return nil }

// testEnv bundles a fully wired service stack over the fakes.
type testEnv struct {
	eRepo  *fakeEventRepo
	tRepo  *fakeTicketRepo
	oRepo  *fakeOrderRepo
	cch    *fakeCache
	prod   *fakeProducer
	evtSvc EventService
	tktSvc TicketService
	ordSvc OrderService
	stlSvc SettlementService
}

func newTestEnv() *testEnv {
	l := logger.InitializeTestZapLogger()

	eRepo := newFakeEventRepo()
	tRepo := newFakeTicketRepo()
	oRepo := newFakeOrderRepo(tRepo)
	cch := newFakeCache()
	prod := newFakeProducer()

	ordSvc := NewOrderService(eRepo, tRepo, oRepo, cch, prod, l)

	return &testEnv{
		eRepo:  eRepo,
		tRepo:  tRepo,
		oRepo:  oRepo,
		cch:    cch,
		prod:   prod,
		evtSvc: NewEventService(eRepo, cch, l),
		tktSvc: NewTicketService(eRepo, tRepo, cch, l),
		ordSvc: ordSvc,
		stlSvc: NewSettlementService(tRepo, oRepo, ordSvc, cch, l),
	}
}
