package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	bookingserrors "stayhub/internal/bookings/errors"
	"stayhub/internal/bookings/service"
	"stayhub/internal/bookings/validator"
	apperrors "stayhub/pkg/errors"
	httputil "stayhub/pkg/http"
	"stayhub/pkg/logger"
	"stayhub/pkg/middleware"
	"stayhub/pkg/model"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const propertyID = "65a1b2c3d4e5f6a7b8c9d0e1"

type mockBookingService struct {
	createFunc       func(ctx context.Context, actor model.Actor, input service.CreateBookingInput) (*model.Booking, error)
	getByIDFunc      func(ctx context.Context, actor model.Actor, id string) (*model.Booking, error)
	listFunc         func(ctx context.Context, actor model.Actor, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error)
	updateStatusFunc func(ctx context.Context, actor model.Actor, id string, newStatus model.BookingStatus, reason string) (*model.Booking, error)
	cancelFunc       func(ctx context.Context, actor model.Actor, id string, reason string) (*model.Booking, error)
}

func (m *mockBookingService) Create(ctx context.Context, actor model.Actor, input service.CreateBookingInput) (*model.Booking, error) {
	return m.createFunc(ctx, actor, input)
}

func (m *mockBookingService) GetByID(ctx context.Context, actor model.Actor, id string) (*model.Booking, error) {
	return m.getByIDFunc(ctx, actor, id)
}

func (m *mockBookingService) ListForActor(ctx context.Context, actor model.Actor, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
	return m.listFunc(ctx, actor, status, limit, offset)
}

func (m *mockBookingService) UpdateStatus(ctx context.Context, actor model.Actor, id string, newStatus model.BookingStatus, reason string) (*model.Booking, error) {
	return m.updateStatusFunc(ctx, actor, id, newStatus, reason)
}

func (m *mockBookingService) Cancel(ctx context.Context, actor model.Actor, id string, reason string) (*model.Booking, error) {
	return m.cancelFunc(ctx, actor, id, reason)
}

var renter = model.Actor{ID: "renter-1", Role: model.RoleRenter}

func newRouter(svc service.BookingService) *httprouter.Router {
	log := logger.Discard()
	router := httprouter.New()
	NewBookingHandler(svc, validator.NewBookingValidator(log), log).RegisterRoutes(router)
	return router
}

func do(router http.Handler, method, path, body string, actor *model.Actor) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	if actor != nil {
		req = req.WithContext(middleware.WithActor(req.Context(), *actor))
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) httputil.ErrorResponse {
	t.Helper()
	var body httputil.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestCreate(t *testing.T) {
	var received service.CreateBookingInput
	var receivedActor model.Actor
	svc := &mockBookingService{
		createFunc: func(_ context.Context, actor model.Actor, input service.CreateBookingInput) (*model.Booking, error) {
			received = input
			receivedActor = actor
			return &model.Booking{
				ID:             "b-1",
				PropertyID:     input.PropertyID,
				RenterID:       actor.ID,
				CheckInDate:    input.CheckInDate,
				CheckOutDate:   input.CheckOutDate,
				NumberOfGuests: input.NumberOfGuests,
				NumberOfNights: 3,
				TotalPrice:     300,
				Status:         model.BookingStatusPending,
			}, nil
		},
	}

	body := `{"propertyId":"` + propertyID + `","checkInDate":"2030-06-01","checkOutDate":"2030-06-04T10:00:00Z","numberOfGuests":2,"specialRequests":"crib"}`
	rec := do(newRouter(svc), http.MethodPost, "/api/v1/bookings", body, &renter)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Equal(t, renter, receivedActor)
	assert.Equal(t, propertyID, received.PropertyID)
	assert.Equal(t, time.Date(2030, 6, 1, 0, 0, 0, 0, time.UTC), received.CheckInDate)
	assert.Equal(t, time.Date(2030, 6, 4, 0, 0, 0, 0, time.UTC), received.CheckOutDate)
	assert.Equal(t, "crib", received.SpecialRequests)

	var resp struct {
		Data map[string]any `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, 300.0, resp.Data["totalPrice"])
	assert.Equal(t, 3.0, resp.Data["numberOfNights"])
	assert.Equal(t, "pending", resp.Data["status"])
}

func TestCreate_RequestValidation(t *testing.T) {
	svc := &mockBookingService{
		createFunc: func(context.Context, model.Actor, service.CreateBookingInput) (*model.Booking, error) {
			t.Fatal("service must not be called for invalid requests")
			return nil, nil
		},
	}
	router := newRouter(svc)

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantField  string
	}{
		{"malformed json", `{"propertyId":`, http.StatusBadRequest, ""},
		{"unknown field", `{"propertyId":"` + propertyID + `","checkInDate":"2030-06-01","checkOutDate":"2030-06-04","numberOfGuests":2,"hostId":"h"}`, http.StatusBadRequest, ""},
		{"bad property id", `{"propertyId":"nope","checkInDate":"2030-06-01","checkOutDate":"2030-06-04","numberOfGuests":2}`, http.StatusUnprocessableEntity, "propertyId"},
		{"bad date", `{"propertyId":"` + propertyID + `","checkInDate":"01/06/2030","checkOutDate":"2030-06-04","numberOfGuests":2}`, http.StatusUnprocessableEntity, "checkInDate"},
		{"zero guests", `{"propertyId":"` + propertyID + `","checkInDate":"2030-06-01","checkOutDate":"2030-06-04","numberOfGuests":0}`, http.StatusUnprocessableEntity, "numberOfGuests"},
		{"long special requests", `{"propertyId":"` + propertyID + `","checkInDate":"2030-06-01","checkOutDate":"2030-06-04","numberOfGuests":1,"specialRequests":"` + strings.Repeat("x", 501) + `"}`, http.StatusUnprocessableEntity, "specialRequests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(router, http.MethodPost, "/api/v1/bookings", tt.body, &renter)
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			if tt.wantField != "" {
				assert.Contains(t, decodeError(t, rec).Details, tt.wantField)
			}
		})
	}
}

func TestCreate_WithoutActor(t *testing.T) {
	rec := do(newRouter(&mockBookingService{}), http.MethodPost, "/api/v1/bookings", `{}`, nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"permission denied", apperrors.Wrap(bookingserrors.ErrPermissionDenied, apperrors.CodePermissionDenied, "denied", http.StatusForbidden), http.StatusForbidden, apperrors.CodePermissionDenied},
		{"not found", apperrors.NotFoundWithID("Booking", "x"), http.StatusNotFound, apperrors.CodeNotFound},
		{"date conflict", apperrors.Wrap(bookingserrors.ErrDateConflict, apperrors.CodeDateConflict, "booked", http.StatusBadRequest), http.StatusBadRequest, apperrors.CodeDateConflict},
		{"window closed", apperrors.Wrap(bookingserrors.ErrCancellationWindowClosed, apperrors.CodeCancellationWindowClosed, "late", http.StatusBadRequest), http.StatusBadRequest, apperrors.CodeCancellationWindowClosed},
		{"storage", apperrors.Storage("Failed", errors.Join(bookingserrors.ErrStorage, errors.New("driver detail"))), http.StatusInternalServerError, apperrors.CodeStorage},
		{"plain error", errors.New("driver detail"), http.StatusInternalServerError, apperrors.CodeInternal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &mockBookingService{
				cancelFunc: func(context.Context, model.Actor, string, string) (*model.Booking, error) {
					return nil, tt.err
				},
			}
			rec := do(newRouter(svc), http.MethodPost, "/api/v1/bookings/id/b-1/cancel", "", &renter)

			assert.Equal(t, tt.wantStatus, rec.Code)
			resp := decodeError(t, rec)
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.NotContains(t, resp.Error, "driver detail")
		})
	}
}

func TestCancel_PassesReason(t *testing.T) {
	var gotID, gotReason string
	svc := &mockBookingService{
		cancelFunc: func(_ context.Context, _ model.Actor, id string, reason string) (*model.Booking, error) {
			gotID, gotReason = id, reason
			return &model.Booking{ID: id, Status: model.BookingStatusCanceled}, nil
		},
	}

	rec := do(newRouter(svc), http.MethodPost, "/api/v1/bookings/id/b-7/cancel", `{"cancellationReason":"flight canceled"}`, &renter)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b-7", gotID)
	assert.Equal(t, "flight canceled", gotReason)
}

func TestUpdateStatus(t *testing.T) {
	var gotStatus model.BookingStatus
	svc := &mockBookingService{
		updateStatusFunc: func(_ context.Context, _ model.Actor, id string, status model.BookingStatus, _ string) (*model.Booking, error) {
			gotStatus = status
			return &model.Booking{ID: id, Status: status}, nil
		},
	}
	router := newRouter(svc)

	rec := do(router, http.MethodPatch, "/api/v1/bookings/id/b-1/status", `{"status":"confirmed"}`, &renter)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusConfirmed, gotStatus)

	rec = do(router, http.MethodPatch, "/api/v1/bookings/id/b-1/status", `{"status":"archived"}`, &renter)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, decodeError(t, rec).Details, "status")
}

func TestList(t *testing.T) {
	var gotLimit int
	var gotOffset int64
	var gotStatus model.BookingStatus
	svc := &mockBookingService{
		listFunc: func(_ context.Context, _ model.Actor, status model.BookingStatus, limit int, offset int64) ([]*model.Booking, int64, error) {
			gotStatus, gotLimit, gotOffset = status, limit, offset
			return []*model.Booking{{ID: "b-1"}}, 7, nil
		},
	}
	router := newRouter(svc)

	rec := do(router, http.MethodGet, "/api/v1/bookings?status=pending&limit=5&offset=2", "", &renter)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, model.BookingStatusPending, gotStatus)
	assert.Equal(t, 5, gotLimit)
	assert.Equal(t, int64(2), gotOffset)

	var resp httputil.PaginatedResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(7), resp.TotalCount)

	rec = do(router, http.MethodGet, "/api/v1/bookings?limit=abc", "", &renter)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGetByID(t *testing.T) {
	svc := &mockBookingService{
		getByIDFunc: func(_ context.Context, actor model.Actor, id string) (*model.Booking, error) {
			return &model.Booking{ID: id, RenterID: actor.ID}, nil
		},
	}

	rec := do(newRouter(svc), http.MethodGet, "/api/v1/bookings/id/b-9", "", &renter)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"id":"b-9"`)
}
