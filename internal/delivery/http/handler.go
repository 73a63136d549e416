package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/vogiaan1904/ticketbottle-settlement/internal/service"
	"github.com/vogiaan1904/ticketbottle-settlement/pkg/logger"
)

type HTTPHandler struct {
	evtSvc service.EventService
	tktSvc service.TicketService
	ordSvc service.OrderService
	l      logger.Logger
}

func NewHTTPHandler(
	evtSvc service.EventService,
	tktSvc service.TicketService,
	ordSvc service.OrderService,
	l logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		evtSvc: evtSvc,
		tktSvc: tktSvc,
		ordSvc: ordSvc,
		l:      l,
	}
}

func (h *HTTPHandler) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /healthz", h.HealthCheck)
	mux.HandleFunc("POST /api/v1/events", h.CreateEvent)
	mux.HandleFunc("GET /api/v1/events/trending", h.ListTrendingEvents)
	mux.HandleFunc("GET /api/v1/events/{id}/remaining-tickets", h.GetRemainingTickets)
	mux.HandleFunc("POST /api/v1/tickets", h.IssueTicket)
	mux.HandleFunc("DELETE /api/v1/tickets/{id}", h.DeleteTicket)
	mux.HandleFunc("POST /api/v1/orders", h.CreateOrder)
	mux.HandleFunc("GET /api/v1/orders/{id}", h.GetOrder)
	mux.HandleFunc("DELETE /api/v1/orders/{id}", h.DeleteOrder)
	mux.HandleFunc("GET /api/v1/users/{id}/orders", h.ListUserOrders)
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]any{
		"status":  "healthy",
		"service": "settlement-service",
	})
}

func (h *HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if in.Name == "" || len(in.Categories) == 0 {
		h.respondError(w, http.StatusBadRequest, "Name and at least one category are required", nil)
		return
	}

	e, err := h.evtSvc.CreateEvent(r.Context(), in)
	if err != nil {
		h.l.Error(r.Context(), "Failed to create event", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to create event", err)
		return
	}

	h.respondJSON(w, http.StatusCreated, e)
}

func (h *HTTPHandler) ListTrendingEvents(w http.ResponseWriter, r *http.Request) {
	events, err := h.evtSvc.ListTrendingEvents(r.Context())
	if err != nil {
		h.l.Error(r.Context(), "Failed to list trending events", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list trending events", err)
		return
	}

	h.respondJSON(w, http.StatusOK, events)
}

func (h *HTTPHandler) GetRemainingTickets(w http.ResponseWriter, r *http.Request) {
	rem, err := h.evtSvc.GetRemainingTickets(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		default:
			h.l.Error(r.Context(), "Failed to get remaining tickets", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to get remaining tickets", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, rem)
}

func (h *HTTPHandler) IssueTicket(w http.ResponseWriter, r *http.Request) {
	var in service.IssueTicketInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if in.EventID == "" || in.CategoryID == "" || in.UserID == "" {
		h.respondError(w, http.StatusBadRequest, "event_id, category_id and user_id are required", nil)
		return
	}

	t, err := h.tktSvc.IssueTicket(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCategorySoldOut):
			h.respondError(w, http.StatusConflict, "Sold out", err)
		case errors.Is(err, service.ErrCategoryNotInEvent):
			h.respondError(w, http.StatusBadRequest, "Category does not belong to event", err)
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		default:
			h.l.Error(r.Context(), "Failed to issue ticket", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to issue ticket", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, t)
}

func (h *HTTPHandler) DeleteTicket(w http.ResponseWriter, r *http.Request) {
	if err := h.tktSvc.DeleteTicket(r.Context(), r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrTicketNotFound):
			h.respondError(w, http.StatusNotFound, "Ticket not found", err)
		case errors.Is(err, service.ErrTicketAlreadyOrdered):
			h.respondError(w, http.StatusConflict, "Ticket already belongs to an order", err)
		default:
			h.l.Error(r.Context(), "Failed to delete ticket", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to delete ticket", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"message": "Ticket deleted"})
}

func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if len(in.TicketIDs) == 0 || in.UserID == "" || in.UserEmail == "" {
		h.respondError(w, http.StatusBadRequest, "ticket_ids, user_id and user_email are required", nil)
		return
	}

	o, err := h.ordSvc.CreateOrder(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTicketNotFound):
			h.respondError(w, http.StatusNotFound, "One or more tickets not found", err)
		case errors.Is(err, service.ErrTicketAlreadyOrdered):
			h.respondError(w, http.StatusConflict, "One or more tickets already belong to an order", err)
		default:
			h.l.Error(r.Context(), "Failed to create order", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to create order", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, o)
}

func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	o, err := h.ordSvc.GetOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			h.respondError(w, http.StatusNotFound, "Order not found", err)
		default:
			h.l.Error(r.Context(), "Failed to get order", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to get order", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, o)
}

func (h *HTTPHandler) DeleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.ordSvc.DeleteOrder(r.Context(), r.PathValue("id")); err != nil {
		switch {
		case errors.Is(err, service.ErrOrderNotFound):
			h.respondError(w, http.StatusNotFound, "Order not found", err)
		default:
			h.l.Error(r.Context(), "Failed to delete order", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to delete order", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]any{"message": "Order deleted"})
}

func (h *HTTPHandler) ListUserOrders(w http.ResponseWriter, r *http.Request) {
	page, _ := strconv.Atoi(r.URL.Query().Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(r.URL.Query().Get("page_size"))
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	orders, err := h.ordSvc.ListUserOrders(r.Context(), service.ListUserOrdersInput{
		UserID:   r.PathValue("id"),
		Page:     page,
		PageSize: pageSize,
	})
	if err != nil {
		h.l.Error(r.Context(), "Failed to list orders", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	h.respondJSON(w, http.StatusOK, orders)
}

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.l.Error(context.Background(), "Failed to encode JSON response", "error", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	if err != nil {
		h.l.Debug(context.Background(), "Error response", "message", message, "error", err.Error())
	}

	h.respondJSON(w, statusCode, map[string]any{
		"error": message,
		"code":  statusCode,
	})
}
