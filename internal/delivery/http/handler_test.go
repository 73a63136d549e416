package http

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/models"
	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type stubEventService struct {
	remaining *models.RemainingTickets
	err       error
}

func (s *stubEventService) CreateEvent(_ context.Context, in service.CreateEventInput) (*models.Event, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.Event{ID: "evt-1", Name: in.Name}, nil
}

func (s *stubEventService) GetRemainingTickets(context.Context, string) (*models.RemainingTickets, error) {
	return s.remaining, s.err
}

func (s *stubEventService) ListTrendingEvents(context.Context) ([]models.Event, error) {
	return nil, s.err
}

type stubTicketService struct {
	ticket *models.Ticket
	err    error
}

func (s *stubTicketService) IssueTicket(context.Context, service.IssueTicketInput) (*models.Ticket, error) {
	return s.ticket, s.err
}

func (s *stubTicketService) DeleteTicket(context.Context, string) error {
	return s.err
}

type stubOrderService struct {
	order *models.Order
	err   error
}

func (s *stubOrderService) CreateOrder(context.Context, service.CreateOrderInput) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) DeleteOrder(context.Context, string) error { return s.err }

func (s *stubOrderService) GetOrder(context.Context, string) (*models.Order, error) {
	return s.order, s.err
}

func (s *stubOrderService) ListUserOrders(context.Context, service.ListUserOrdersInput) ([]models.Order, error) {
	if s.err != nil {
		return nil, s.err
	}
	if s.order == nil {
		return nil, nil
	}
	return []models.Order{*s.order}, nil
}

func (s *stubOrderService) ReleaseOrderInventory(context.Context, []models.Ticket) error {
	return nil
}

func newTestMux(evt *stubEventService, tkt *stubTicketService, ord *stubOrderService) *http.ServeMux {
	h := NewHTTPHandler(evt, tkt, ord, logger.InitializeTestZapLogger())
	mux := http.NewServeMux()
	h.Register(mux)
	return mux
}

func doRequest(mux *http.ServeMux, method, target string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}

	req := httptest.NewRequest(method, target, &buf)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestHealthCheck(t *testing.T) {
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, &stubOrderService{})

	rec := doRequest(mux, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}

func TestGetRemainingTickets(t *testing.T) {
	evt := &stubEventService{remaining: &models.RemainingTickets{
		EventID:     "evt-1",
		Event:       12,
		PerCategory: map[string]int{"cat-1": 12},
	}}
	mux := newTestMux(evt, &stubTicketService{}, &stubOrderService{})

	rec := doRequest(mux, http.MethodGet, "/api/v1/events/evt-1/remaining-tickets", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got models.RemainingTickets
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, 12, got.Event)
}

func TestGetRemainingTickets_NotFound(t *testing.T) {
	evt := &stubEventService{err: service.ErrEventNotFound}
	mux := newTestMux(evt, &stubTicketService{}, &stubOrderService{})

	rec := doRequest(mux, http.MethodGet, "/api/v1/events/ghost/remaining-tickets", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestIssueTicket_SoldOutMapsToConflict(t *testing.T) {
	tkt := &stubTicketService{err: service.ErrCategorySoldOut}
	mux := newTestMux(&stubEventService{}, tkt, &stubOrderService{})

	rec := doRequest(mux, http.MethodPost, "/api/v1/tickets", service.IssueTicketInput{
		EventID:    "evt-1",
		CategoryID: "cat-1",
		UserID:     "user-1",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestIssueTicket_MissingFields(t *testing.T) {
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, &stubOrderService{})

	rec := doRequest(mux, http.MethodPost, "/api/v1/tickets", service.IssueTicketInput{EventID: "evt-1"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestCreateOrder(t *testing.T) {
	ord := &stubOrderService{order: &models.Order{
		ID:     "ord-1",
		UserID: "user-1",
		Price:  decimal.NewFromInt(150),
		Status: models.OrderStatusPendingPayment,
	}}
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, ord)

	rec := doRequest(mux, http.MethodPost, "/api/v1/orders", service.CreateOrderInput{
		TicketIDs: []string{"tkt-1"},
		UserID:    "user-1",
		UserEmail: "user-1@example.com",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var got models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "ord-1", got.ID)
}

func TestCreateOrder_ConflictOnOwnedTicket(t *testing.T) {
	ord := &stubOrderService{err: service.ErrTicketAlreadyOrdered}
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, ord)

	rec := doRequest(mux, http.MethodPost, "/api/v1/orders", service.CreateOrderInput{
		TicketIDs: []string{"tkt-1"},
		UserID:    "user-1",
		UserEmail: "user-1@example.com",
	})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestDeleteOrder_NotFound(t *testing.T) {
	ord := &stubOrderService{err: service.ErrOrderNotFound}
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, ord)

	rec := doRequest(mux, http.MethodDelete, "/api/v1/orders/ghost", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUserOrders_DefaultsPagination(t *testing.T) {
	ord := &stubOrderService{order: &models.Order{ID: "ord-1", UserID: "user-1"}}
	mux := newTestMux(&stubEventService{}, &stubTicketService{}, ord)

	rec := doRequest(mux, http.MethodGet, "/api/v1/users/user-1/orders?page=0&page_size=9999", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var got []models.Order
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Len(t, got, 1)
}
