package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/auth"
	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/middleware"
	"github.com/hopingminds/menrol-api/internal/model"
	"github.com/hopingminds/menrol-api/internal/service"
	"github.com/hopingminds/menrol-api/internal/view"
)

const testSecret = "handler-test-secret"

// mockOrderServicer implements OrderServicer with configurable behavior.
type mockOrderServicer struct {
	raiseOrderFn         func(ctx context.Context, userID uuid.UUID) (*service.RaisedOrder, error)
	getOrderFn           func(ctx context.Context, orderID uuid.UUID, actor service.Actor) (model.Order, error)
	userOrderViewsFn     func(ctx context.Context, userID uuid.UUID) (view.UserOrders, error)
	providerOrderViewsFn func(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error)
	assignProviderFn     func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
	acceptAssignmentFn   func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID) (model.Order, error)
	cancelItemFn         func(ctx context.Context, ref service.ItemRef, actor service.Actor) (model.Order, error)
	cancelAssignmentFn   func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
	rescheduleItemFn     func(ctx context.Context, ref service.ItemRef, window model.TimeWindow, actor service.Actor) (model.Order, error)
	confirmStartOTPFn    func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error)
	confirmEndOTPFn      func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error)
	confirmPaymentFn     func(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
}

func (m *mockOrderServicer) RaiseOrder(ctx context.Context, userID uuid.UUID) (*service.RaisedOrder, error) {
	return m.raiseOrderFn(ctx, userID)
}
func (m *mockOrderServicer) GetOrder(ctx context.Context, orderID uuid.UUID, actor service.Actor) (model.Order, error) {
	return m.getOrderFn(ctx, orderID, actor)
}
func (m *mockOrderServicer) UserOrderViews(ctx context.Context, userID uuid.UUID) (view.UserOrders, error) {
	return m.userOrderViewsFn(ctx, userID)
}
func (m *mockOrderServicer) ProviderOrderViews(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error) {
	return m.providerOrderViewsFn(ctx, providerID)
}
func (m *mockOrderServicer) AssignProvider(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error) {
	return m.assignProviderFn(ctx, ref, providerID, actor)
}
func (m *mockOrderServicer) AcceptAssignment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID) (model.Order, error) {
	return m.acceptAssignmentFn(ctx, ref, providerID)
}
func (m *mockOrderServicer) CancelItem(ctx context.Context, ref service.ItemRef, actor service.Actor) (model.Order, error) {
	return m.cancelItemFn(ctx, ref, actor)
}
func (m *mockOrderServicer) CancelAssignment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error) {
	return m.cancelAssignmentFn(ctx, ref, providerID, actor)
}
func (m *mockOrderServicer) RescheduleItem(ctx context.Context, ref service.ItemRef, window model.TimeWindow, actor service.Actor) (model.Order, error) {
	return m.rescheduleItemFn(ctx, ref, window, actor)
}
func (m *mockOrderServicer) ConfirmStartOTP(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error) {
	return m.confirmStartOTPFn(ctx, ref, providerID, code)
}
func (m *mockOrderServicer) ConfirmEndOTP(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error) {
	return m.confirmEndOTPFn(ctx, ref, providerID, code)
}
func (m *mockOrderServicer) ConfirmPayment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error) {
	return m.confirmPaymentFn(ctx, ref, providerID, actor)
}

func newTestRouter(svc OrderServicer) *chi.Mux {
	log := logrus.New()
	log.SetLevel(logrus.PanicLevel)
	h := NewOrderHandler(svc, log)

	r := chi.NewRouter()
	r.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(testSecret))
		r.Route("/orders", h.RegisterRoutes)
	})
	return r
}

func authedRequest(t *testing.T, method, target string, body []byte, id uuid.UUID, role string) *http.Request {
	t.Helper()
	token, err := auth.GenerateToken(testSecret, id, role)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Authorization", "Bearer "+token)
	return req
}

func sampleOrder(userID uuid.UUID) model.Order {
	serviceID := uuid.New()
	return model.Order{
		ID:     uuid.New(),
		UserID: userID,
		Raised: true,
		Status: enum.OrderStatusNotStarted,
		Doc: model.OrderDoc{
			Address: "14 Ring Road",
			Payment: model.PaymentSummary{Total: decimal.NewFromInt(800)},
			Services: []model.ServiceLine{{
				ServiceID: serviceID,
				Title:     "Cleaning",
				Items: []model.SubcategoryItem{{
					SubcategoryID: uuid.New(),
					Title:         "Deep Clean",
					RequestType:   enum.RequestTypeHourly,
					Amount:        decimal.NewFromInt(400),
					Workers:       2,
					Status:        enum.ItemStatusPending,
					OTP: model.OTPPair{
						StartHash: "$2a$10$secretsecretsecretsecret",
						EndHash:   "$2a$10$othersecretothersecret",
					},
				}},
			}},
		},
	}
}

func TestRaiseOrderResponseOmitsHashes(t *testing.T) {
	userID := uuid.New()
	ord := sampleOrder(userID)
	svc := &mockOrderServicer{
		raiseOrderFn: func(ctx context.Context, id uuid.UUID) (*service.RaisedOrder, error) {
			if id != userID {
				t.Errorf("user id = %s, want %s", id, userID)
			}
			return &service.RaisedOrder{
				Order: ord,
				OTPCodes: []service.ItemOTPCodes{{
					ServiceID:     ord.Doc.Services[0].ServiceID,
					SubcategoryID: ord.Doc.Services[0].Items[0].SubcategoryID,
					StartCode:     "123456",
					EndCode:       "654321",
				}},
			}, nil
		},
	}
	router := newTestRouter(svc)

	req := authedRequest(t, "POST", "/orders", nil, userID, enum.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	body := rr.Body.String()
	if strings.Contains(body, "$2a$") || strings.Contains(body, "Hash") {
		t.Errorf("response leaks OTP hashes: %s", body)
	}
	if !strings.Contains(body, "123456") || !strings.Contains(body, "654321") {
		t.Error("response should include the one-time plaintext codes")
	}
}

func TestRaiseOrderConflictMapsTo409(t *testing.T) {
	svc := &mockOrderServicer{
		raiseOrderFn: func(ctx context.Context, id uuid.UUID) (*service.RaisedOrder, error) {
			return nil, service.ErrOrderAlreadyRaised
		},
	}
	router := newTestRouter(svc)

	req := authedRequest(t, "POST", "/orders", nil, uuid.New(), enum.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rr.Code)
	}
	var resp errorResponse
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal error body: %v", err)
	}
	if resp.Kind != service.KindConflict {
		t.Errorf("kind = %q, want conflict", resp.Kind)
	}
}

func TestRaiseOrderRequiresUserRole(t *testing.T) {
	svc := &mockOrderServicer{
		raiseOrderFn: func(ctx context.Context, id uuid.UUID) (*service.RaisedOrder, error) {
			t.Fatal("service should not be called")
			return nil, nil
		},
	}
	router := newTestRouter(svc)

	req := authedRequest(t, "POST", "/orders", nil, uuid.New(), enum.RoleProvider)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", rr.Code)
	}
}

func TestErrorKindStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"not found", service.ErrOrderNotFound, http.StatusNotFound},
		{"forbidden", service.ErrNotOrderOwner, http.StatusForbidden},
		{"conflict", service.ErrInvalidTransition, http.StatusConflict},
		{"invalid", service.ErrOTPMismatch, http.StatusBadRequest},
		{"partial sync", service.ErrPartialSync, http.StatusBadGateway},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockOrderServicer{
				cancelItemFn: func(ctx context.Context, ref service.ItemRef, actor service.Actor) (model.Order, error) {
					return model.Order{}, tc.err
				},
			}
			router := newTestRouter(svc)

			target := "/orders/" + uuid.NewString() + "/services/" + uuid.NewString() +
				"/items/" + uuid.NewString() + "/cancel"
			req := authedRequest(t, "POST", target, nil, uuid.New(), enum.RoleUser)
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, req)

			if rr.Code != tc.want {
				t.Errorf("status = %d, want %d", rr.Code, tc.want)
			}
		})
	}
}

func TestViewsDispatchesByRole(t *testing.T) {
	userCalled := false
	providerCalled := false
	svc := &mockOrderServicer{
		userOrderViewsFn: func(ctx context.Context, id uuid.UUID) (view.UserOrders, error) {
			userCalled = true
			return view.UserOrders{}, nil
		},
		providerOrderViewsFn: func(ctx context.Context, id uuid.UUID) (view.ProviderOrders, error) {
			providerCalled = true
			return view.ProviderOrders{}, nil
		},
	}
	router := newTestRouter(svc)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, "GET", "/orders/views", nil, uuid.New(), enum.RoleUser))
	if rr.Code != http.StatusOK || !userCalled {
		t.Errorf("user views: status %d, called %v", rr.Code, userCalled)
	}

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, authedRequest(t, "GET", "/orders/views", nil, uuid.New(), enum.RoleProvider))
	if rr.Code != http.StatusOK || !providerCalled {
		t.Errorf("provider views: status %d, called %v", rr.Code, providerCalled)
	}
}

func TestAssignParsesBodyAndParams(t *testing.T) {
	providerID := uuid.New()
	var gotRef service.ItemRef
	var gotProvider uuid.UUID
	svc := &mockOrderServicer{
		assignProviderFn: func(ctx context.Context, ref service.ItemRef, pid uuid.UUID, actor service.Actor) (model.Order, error) {
			gotRef = ref
			gotProvider = pid
			return sampleOrder(uuid.New()), nil
		},
	}
	router := newTestRouter(svc)

	ref := service.ItemRef{OrderID: uuid.New(), ServiceID: uuid.New(), SubcategoryID: uuid.New()}
	target := "/orders/" + ref.OrderID.String() + "/services/" + ref.ServiceID.String() +
		"/items/" + ref.SubcategoryID.String() + "/assign"
	body, _ := json.Marshal(assignRequest{ProviderID: providerID.String()})

	req := authedRequest(t, "POST", target, body, uuid.New(), enum.RoleAdmin)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
	if gotRef != ref {
		t.Errorf("ref = %+v, want %+v", gotRef, ref)
	}
	if gotProvider != providerID {
		t.Errorf("provider = %s, want %s", gotProvider, providerID)
	}
}

func TestAcceptUsesCallerAsProvider(t *testing.T) {
	providerID := uuid.New()
	svc := &mockOrderServicer{
		acceptAssignmentFn: func(ctx context.Context, ref service.ItemRef, pid uuid.UUID) (model.Order, error) {
			if pid != providerID {
				t.Errorf("provider = %s, want caller %s", pid, providerID)
			}
			return sampleOrder(uuid.New()), nil
		},
	}
	router := newTestRouter(svc)

	target := "/orders/" + uuid.NewString() + "/services/" + uuid.NewString() +
		"/items/" + uuid.NewString() + "/accept"
	req := authedRequest(t, "POST", target, nil, providerID, enum.RoleProvider)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestOTPEndpointPassesCode(t *testing.T) {
	svc := &mockOrderServicer{
		confirmStartOTPFn: func(ctx context.Context, ref service.ItemRef, pid uuid.UUID, code string) (model.Order, error) {
			if code != "482913" {
				t.Errorf("code = %q, want 482913", code)
			}
			return sampleOrder(uuid.New()), nil
		},
	}
	router := newTestRouter(svc)

	target := "/orders/" + uuid.NewString() + "/services/" + uuid.NewString() +
		"/items/" + uuid.NewString() + "/otp/start"
	body, _ := json.Marshal(otpRequest{Code: "482913"})
	req := authedRequest(t, "POST", target, body, uuid.New(), enum.RoleProvider)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rr.Code, rr.Body.String())
	}
}

func TestGetOrderInvalidID(t *testing.T) {
	svc := &mockOrderServicer{
		getOrderFn: func(ctx context.Context, orderID uuid.UUID, actor service.Actor) (model.Order, error) {
			t.Fatal("service should not be called")
			return model.Order{}, nil
		},
	}
	router := newTestRouter(svc)

	req := authedRequest(t, "GET", "/orders/not-a-uuid", nil, uuid.New(), enum.RoleUser)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rr.Code)
	}
}
