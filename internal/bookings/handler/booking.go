package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"stayhub/internal/bookings/service"
	"stayhub/internal/bookings/validator"
	apperrors "stayhub/pkg/errors"
	httputil "stayhub/pkg/http"
	"stayhub/pkg/logger"
	"stayhub/pkg/middleware"
	"stayhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service   service.BookingService
	validator *validator.BookingValidator
	log       *logger.Logger
}

func NewBookingHandler(service service.BookingService, validator *validator.BookingValidator, log *logger.Logger) *BookingHandler {
	return &BookingHandler{
		service:   service,
		validator: validator,
		log:       log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "Create")
	if !ok {
		return
	}

	var req model.CreateBookingRequest
	if !h.decode(w, r, &req, false, "Create") {
		return
	}
	if err := h.validator.ValidateCreate(&req); err != nil {
		h.writeValidationError(w, err, "Create")
		return
	}

	// Both dates already passed the booking_date validator.
	checkIn, _ := httputil.ParseDate(req.CheckInDate)
	checkOut, _ := httputil.ParseDate(req.CheckOutDate)

	booking, err := h.service.Create(r.Context(), actor, service.CreateBookingInput{
		PropertyID:      req.PropertyID,
		CheckInDate:     checkIn,
		CheckOutDate:    checkOut,
		NumberOfGuests:  req.NumberOfGuests,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		h.writeError(w, err, "Create")
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "GetByID")
	if !ok {
		return
	}

	booking, err := h.service.GetByID(r.Context(), actor, ps.ByName("id"))
	if err != nil {
		h.writeError(w, err, "GetByID")
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	actor, ok := h.actor(w, r, "List")
	if !ok {
		return
	}

	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}
	status := model.BookingStatus(r.URL.Query().Get("status"))

	bookings, total, err := h.service.ListForActor(r.Context(), actor, status, limit, offset)
	if err != nil {
		h.writeError(w, err, "List")
		return
	}

	if err := httputil.WritePaginated(w, bookings, total, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "List", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "UpdateStatus")
	if !ok {
		return
	}

	var req model.UpdateBookingStatusRequest
	if !h.decode(w, r, &req, false, "UpdateStatus") {
		return
	}
	if err := h.validator.ValidateStatusUpdate(&req); err != nil {
		h.writeValidationError(w, err, "UpdateStatus")
		return
	}

	booking, err := h.service.UpdateStatus(r.Context(), actor, ps.ByName("id"), model.BookingStatus(req.Status), req.CancellationReason)
	if err != nil {
		h.writeError(w, err, "UpdateStatus")
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "UpdateStatus", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	actor, ok := h.actor(w, r, "Cancel")
	if !ok {
		return
	}

	var req model.CancelBookingRequest
	if !h.decode(w, r, &req, true, "Cancel") {
		return
	}
	if err := h.validator.ValidateCancel(&req); err != nil {
		h.writeValidationError(w, err, "Cancel")
		return
	}

	booking, err := h.service.Cancel(r.Context(), actor, ps.ByName("id"), req.CancellationReason)
	if err != nil {
		h.writeError(w, err, "Cancel")
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "Cancel", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	router.POST("/api/v1/bookings", h.Create)
	router.GET("/api/v1/bookings", h.List)
	router.GET("/api/v1/bookings/id/:id", h.GetByID)
	router.PATCH("/api/v1/bookings/id/:id/status", h.UpdateStatus)
	router.POST("/api/v1/bookings/id/:id/cancel", h.Cancel)
}

// --- Helpers ---

func (h *BookingHandler) actor(w http.ResponseWriter, r *http.Request, handler string) (model.Actor, bool) {
	actor, ok := middleware.ActorFromContext(r.Context())
	if !ok {
		h.writeError(w, apperrors.Unauthorized("Missing or invalid token"), handler)
		return model.Actor{}, false
	}
	return actor, true
}

// decode reads a JSON body into dst. With allowEmpty an absent body leaves
// dst at its zero value.
func (h *BookingHandler) decode(w http.ResponseWriter, r *http.Request, dst any, allowEmpty bool, handler string) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()

	err := decoder.Decode(dst)
	if err == nil || (allowEmpty && errors.Is(err, io.EOF)) {
		return true
	}

	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		h.writeError(w, apperrors.New(apperrors.CodeBadRequest, "Request body too large", http.StatusRequestEntityTooLarge), handler)
		return false
	}

	h.writeError(w, apperrors.InvalidInput("Invalid request body"), handler)
	return false
}

func (h *BookingHandler) writeValidationError(w http.ResponseWriter, err error, handler string) {
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		h.writeError(w, apperrors.Validation("Request validation failed", validationErrs.Fields()), handler)
		return
	}
	h.writeError(w, apperrors.InvalidInput(err.Error()), handler)
}

func (h *BookingHandler) writeError(w http.ResponseWriter, err error, handler string) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		h.log.Error("failed to write error response", "handler", handler, "operation", "WriteError", "error", writeErr)
	}
}
