package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/proticket/marketplace-core/internal/service"
	"github.com/proticket/marketplace-core/pkg/kvstore"
	"github.com/proticket/marketplace-core/pkg/logger"
)

type HTTPHandler struct {
	eventService   service.EventService
	orderService   service.OrderService
	lockoutService service.LockoutService
	logger         logger.Logger
	validator      *validator.Validate
}

func NewHTTPHandler(
	eventService service.EventService,
	orderService service.OrderService,
	lockoutService service.LockoutService,
	logger logger.Logger,
) *HTTPHandler {
	return &HTTPHandler{
		eventService:   eventService,
		orderService:   orderService,
		lockoutService: lockoutService,
		logger:         logger,
		validator:      validator.New(),
	}
}

func (h *HTTPHandler) Router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", h.HealthCheck)

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Post("/", h.CreateEvent)
		r.Get("/{eventId}", h.GetEvent)
		r.Put("/{eventId}", h.UpdateEvent)
		r.Delete("/{eventId}", h.DeleteEvent)
	})

	r.Route("/orders", func(r chi.Router) {
		r.Post("/", h.CreateOrder)
		r.Get("/{orderId}", h.GetOrder)
		r.Get("/{orderId}/tickets", h.ListOrderTickets)
	})
	r.Get("/buyers/{buyerId}/orders", h.ListBuyerOrders)

	r.Route("/auth", func(r chi.Router) {
		r.Post("/check-login", h.CheckLogin)
		r.Post("/failed-login", h.RecordFailedLogin)
		r.Post("/reset-attempts", h.ResetAttempts)
	})

	return r
}

// HealthCheck handles health check requests
func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response := map[string]interface{}{
		"status":  "healthy",
		"service": "marketplace-core",
		"version": "1.0.0",
	}
	h.respondJSON(w, http.StatusOK, response)
}

// CreateOrder handles purchase requests
func (h *HTTPHandler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var in service.CreateOrderInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	out, err := h.orderService.CreateOrder(r.Context(), in)
	if err != nil {
		h.respondOrderError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusCreated, out)
}

func (h *HTTPHandler) respondOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var compErr *service.CompensationError

	switch {
	case errors.Is(err, service.ErrInvalidQuantity), errors.Is(err, service.ErrValidation):
		h.respondError(w, http.StatusBadRequest, "Invalid purchase request", err)
	case errors.Is(err, service.ErrEventNotFound):
		h.respondError(w, http.StatusNotFound, "Event not found", err)
	case errors.Is(err, service.ErrEventNotActive):
		h.respondError(w, http.StatusConflict, "Event is not open for sales", err)
	case errors.Is(err, service.ErrInsufficientInventory):
		h.respondError(w, http.StatusConflict, "Not enough tickets available", err)
	case errors.Is(err, kvstore.ErrConflict):
		h.respondError(w, http.StatusServiceUnavailable, "High demand, please retry", err)
	case errors.As(err, &compErr):
		h.logger.Error(r.Context(), "Compensation failure surfaced to caller",
			"order_id", compErr.OrderID,
			"event_id", compErr.EventID,
			"error", err,
		)
		h.respondError(w, http.StatusInternalServerError, "Purchase failed", err)
	default:
		h.logger.Error(r.Context(), "Failed to create order", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to create order", err)
	}
}

// GetOrder handles order lookups
func (h *HTTPHandler) GetOrder(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		h.respondError(w, http.StatusBadRequest, "Order ID is required", nil)
		return
	}

	order, err := h.orderService.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			h.respondError(w, http.StatusNotFound, "Order not found", err)
			return
		}
		h.logger.Error(r.Context(), "Failed to get order", "error", err, "order_id", orderID)
		h.respondError(w, http.StatusInternalServerError, "Failed to get order", err)
		return
	}

	h.respondJSON(w, http.StatusOK, order)
}

// ListOrderTickets returns the tickets minted for an order
func (h *HTTPHandler) ListOrderTickets(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "orderId")
	if orderID == "" {
		h.respondError(w, http.StatusBadRequest, "Order ID is required", nil)
		return
	}

	tickets, err := h.orderService.ListOrderTickets(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, service.ErrOrderNotFound) {
			h.respondError(w, http.StatusNotFound, "Order not found", err)
			return
		}
		h.logger.Error(r.Context(), "Failed to list tickets", "error", err, "order_id", orderID)
		h.respondError(w, http.StatusInternalServerError, "Failed to list tickets", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"tickets": tickets})
}

// ListBuyerOrders returns a buyer's purchase history
func (h *HTTPHandler) ListBuyerOrders(w http.ResponseWriter, r *http.Request) {
	buyerID := chi.URLParam(r, "buyerId")
	if buyerID == "" {
		h.respondError(w, http.StatusBadRequest, "Buyer ID is required", nil)
		return
	}

	orders, err := h.orderService.ListBuyerOrders(r.Context(), buyerID)
	if err != nil {
		h.logger.Error(r.Context(), "Failed to list orders", "error", err, "buyer_id", buyerID)
		h.respondError(w, http.StatusInternalServerError, "Failed to list orders", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"orders": orders})
}

// CreateEvent handles organizer event creation
func (h *HTTPHandler) CreateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.CreateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	ev, err := h.eventService.CreateEvent(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrNotAuthorized):
			h.respondError(w, http.StatusForbidden, "Only organizers can create events", err)
		case errors.Is(err, service.ErrValidation), errors.Is(err, service.ErrInvalidQuantity):
			h.respondError(w, http.StatusBadRequest, "Invalid event", err)
		default:
			h.logger.Error(r.Context(), "Failed to create event", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to create event", err)
		}
		return
	}

	h.respondJSON(w, http.StatusCreated, ev)
}

// GetEvent handles single event lookups
func (h *HTTPHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")
	if eventID == "" {
		h.respondError(w, http.StatusBadRequest, "Event ID is required", nil)
		return
	}

	ev, err := h.eventService.GetEvent(r.Context(), eventID)
	if err != nil {
		if errors.Is(err, service.ErrEventNotFound) {
			h.respondError(w, http.StatusNotFound, "Event not found", err)
			return
		}
		h.logger.Error(r.Context(), "Failed to get event", "error", err, "event_id", eventID)
		h.respondError(w, http.StatusInternalServerError, "Failed to get event", err)
		return
	}

	h.respondJSON(w, http.StatusOK, ev)
}

// ListEvents handles the public browse listing
func (h *HTTPHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	if organizerID := r.URL.Query().Get("organizer_id"); organizerID != "" {
		events, err := h.eventService.ListOrganizerEvents(r.Context(), organizerID)
		if err != nil {
			h.logger.Error(r.Context(), "Failed to list organizer events", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to list events", err)
			return
		}
		h.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
		return
	}

	events, err := h.eventService.ListEvents(r.Context())
	if err != nil {
		h.logger.Error(r.Context(), "Failed to list events", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to list events", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

// UpdateEvent handles organizer event edits
func (h *HTTPHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	var in service.UpdateEventInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	in.EventID = chi.URLParam(r, "eventId")

	if err := h.validator.Struct(in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	ev, err := h.eventService.UpdateEvent(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		case errors.Is(err, service.ErrNotAuthorized):
			h.respondError(w, http.StatusForbidden, "You do not own this event", err)
		case errors.Is(err, service.ErrValidation):
			h.respondError(w, http.StatusBadRequest, "Invalid update", err)
		default:
			h.logger.Error(r.Context(), "Failed to update event", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to update event", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, ev)
}

// DeleteEvent handles organizer event deletion
func (h *HTTPHandler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "eventId")

	var body struct {
		UserID   string `json:"user_id" validate:"required"`
		UserRole string `json:"user_role" validate:"required"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(body); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := h.eventService.DeleteEvent(r.Context(), eventID, body.UserID, body.UserRole); err != nil {
		switch {
		case errors.Is(err, service.ErrEventNotFound):
			h.respondError(w, http.StatusNotFound, "Event not found", err)
		case errors.Is(err, service.ErrNotAuthorized):
			h.respondError(w, http.StatusForbidden, "You do not own this event", err)
		case errors.Is(err, service.ErrEventHasSales):
			h.respondError(w, http.StatusConflict, "Events with sales cannot be deleted", err)
		default:
			h.logger.Error(r.Context(), "Failed to delete event", "error", err)
			h.respondError(w, http.StatusInternalServerError, "Failed to delete event", err)
		}
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

type identityRequest struct {
	Identity string `json:"identity" validate:"required"`
}

// CheckLogin reports whether an identity may attempt authentication
func (h *HTTPHandler) CheckLogin(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	out, err := h.lockoutService.CheckAllowed(r.Context(), req.Identity)
	if err != nil {
		h.logger.Error(r.Context(), "Failed to check login attempts", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to check login attempts", err)
		return
	}

	h.respondJSON(w, http.StatusOK, out)
}

// RecordFailedLogin registers a failed authentication attempt
func (h *HTTPHandler) RecordFailedLogin(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := h.lockoutService.RecordFailure(r.Context(), req.Identity); err != nil {
		if errors.Is(err, kvstore.ErrConflict) {
			h.respondError(w, http.StatusServiceUnavailable, "Please retry", err)
			return
		}
		h.logger.Error(r.Context(), "Failed to record failed login", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to record failed login", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// ResetAttempts clears the failure counter after a successful login
func (h *HTTPHandler) ResetAttempts(w http.ResponseWriter, r *http.Request) {
	var req identityRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if err := h.validator.Struct(req); err != nil {
		h.respondError(w, http.StatusBadRequest, "Validation failed", err)
		return
	}

	if err := h.lockoutService.ResetOnSuccess(r.Context(), req.Identity); err != nil {
		h.logger.Error(r.Context(), "Failed to reset login attempts", "error", err)
		h.respondError(w, http.StatusInternalServerError, "Failed to reset login attempts", err)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{"success": true})
}

// Helper functions

func (h *HTTPHandler) respondJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error(context.Background(), "Failed to encode JSON response", "error", err)
	}
}

func (h *HTTPHandler) respondError(w http.ResponseWriter, statusCode int, message string, err error) {
	response := map[string]interface{}{
		"error": message,
		"code":  statusCode,
	}

	if err != nil {
		h.logger.Debug(context.Background(), "Error response", "message", message, "error", err.Error())
	}

	h.respondJSON(w, statusCode, response)
}
