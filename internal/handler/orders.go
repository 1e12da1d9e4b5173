package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hopingminds/menrol-api/internal/enum"
	"github.com/hopingminds/menrol-api/internal/middleware"
	"github.com/hopingminds/menrol-api/internal/model"
	"github.com/hopingminds/menrol-api/internal/service"
	"github.com/hopingminds/menrol-api/internal/view"
)

// OrderServicer defines the service methods needed by order handlers.
// Satisfied by *service.FulfillmentService; narrow interface for testability.
type OrderServicer interface {
	RaiseOrder(ctx context.Context, userID uuid.UUID) (*service.RaisedOrder, error)
	GetOrder(ctx context.Context, orderID uuid.UUID, actor service.Actor) (model.Order, error)
	UserOrderViews(ctx context.Context, userID uuid.UUID) (view.UserOrders, error)
	ProviderOrderViews(ctx context.Context, providerID uuid.UUID) (view.ProviderOrders, error)

	AssignProvider(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
	AcceptAssignment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID) (model.Order, error)
	CancelItem(ctx context.Context, ref service.ItemRef, actor service.Actor) (model.Order, error)
	CancelAssignment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
	RescheduleItem(ctx context.Context, ref service.ItemRef, window model.TimeWindow, actor service.Actor) (model.Order, error)
	ConfirmStartOTP(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error)
	ConfirmEndOTP(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, code string) (model.Order, error)
	ConfirmPayment(ctx context.Context, ref service.ItemRef, providerID uuid.UUID, actor service.Actor) (model.Order, error)
}

// OrderHandler handles the order workflow endpoints.
type OrderHandler struct {
	svc OrderServicer
	log *logrus.Logger
}

func NewOrderHandler(svc OrderServicer, log *logrus.Logger) *OrderHandler {
	return &OrderHandler{svc: svc, log: log}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Mounted at /orders behind Authenticate.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	user := middleware.RequireRole(enum.RoleUser)
	provider := middleware.RequireRole(enum.RoleProvider)
	admin := middleware.RequireRole(enum.RoleAdmin)
	userOrAdmin := middleware.RequireRole(enum.RoleUser, enum.RoleAdmin)

	r.With(user).Post("/", h.Raise)
	r.With(middleware.RequireRole(enum.RoleUser, enum.RoleProvider)).Get("/views", h.Views)
	r.With(userOrAdmin).Get("/{id}", h.Get)

	r.Route("/{id}/services/{sid}/items/{subID}", func(r chi.Router) {
		r.With(admin).Post("/assign", h.Assign)
		r.With(provider).Post("/accept", h.Accept)
		r.With(userOrAdmin).Post("/cancel", h.CancelItem)
		r.With(userOrAdmin).Post("/reschedule", h.Reschedule)
		r.With(provider).Post("/otp/start", h.StartOTP)
		r.With(provider).Post("/otp/end", h.EndOTP)
		r.With(admin).Post("/assignments/{pid}/cancel", h.CancelAssignment)
		r.With(admin).Post("/assignments/{pid}/payment", h.Payment)
	})
}

// --- Request / Response types ---

type assignRequest struct {
	ProviderID string `json:"providerId"`
}

type otpRequest struct {
	Code string `json:"code"`
}

type rescheduleRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// itemResponse is a SubcategoryItem stripped of its OTP hashes. Only the
// confirmation flags and timestamps are visible to clients.
type itemResponse struct {
	SubcategoryID  uuid.UUID                  `json:"subcategoryId"`
	Title          string                     `json:"title"`
	RequestType    string                     `json:"requestType"`
	Amount         decimal.Decimal            `json:"selectedAmount"`
	Workers        int32                      `json:"workersRequirment"`
	Scheduled      model.TimeWindow           `json:"scheduledTiming"`
	Instructions   string                     `json:"instructions,omitempty"`
	Attachments    []string                   `json:"attachments,omitempty"`
	Status         string                     `json:"status"`
	Providers      []model.ProviderAssignment `json:"providers"`
	StartConfirmed bool                       `json:"startConfirmed"`
	EndConfirmed   bool                       `json:"endConfirmed"`
	StartedAt      *time.Time                 `json:"startedAt,omitempty"`
	EndedAt        *time.Time                 `json:"endedAt,omitempty"`
}

type serviceLineResponse struct {
	ServiceID uuid.UUID      `json:"serviceId"`
	Title     string         `json:"title"`
	Items     []itemResponse `json:"subcategory"`
}

type orderResponse struct {
	ID        uuid.UUID             `json:"orderId"`
	UserID    uuid.UUID             `json:"userId"`
	Status    string                `json:"status"`
	Raised    bool                  `json:"raised"`
	Total     decimal.Decimal       `json:"totalAmount"`
	Location  model.GeoPoint        `json:"location"`
	Address   string                `json:"address"`
	CreatedAt time.Time             `json:"createdAt"`
	UpdatedAt time.Time             `json:"updatedAt"`
	Services  []serviceLineResponse `json:"services"`
}

type raiseOrderResponse struct {
	Order    orderResponse          `json:"order"`
	OTPCodes []service.ItemOTPCodes `json:"otpCodes"`
}

func toOrderResponse(ord model.Order) orderResponse {
	resp := orderResponse{
		ID:        ord.ID,
		UserID:    ord.UserID,
		Status:    ord.Status,
		Raised:    ord.Raised,
		Total:     ord.Doc.Payment.Total,
		Location:  ord.Doc.Location,
		Address:   ord.Doc.Address,
		CreatedAt: ord.CreatedAt,
		UpdatedAt: ord.UpdatedAt,
	}
	for _, line := range ord.Doc.Services {
		lr := serviceLineResponse{ServiceID: line.ServiceID, Title: line.Title}
		for _, it := range line.Items {
			providers := it.Providers
			if providers == nil {
				providers = []model.ProviderAssignment{}
			}
			lr.Items = append(lr.Items, itemResponse{
				SubcategoryID:  it.SubcategoryID,
				Title:          it.Title,
				RequestType:    it.RequestType,
				Amount:         it.Amount,
				Workers:        it.Workers,
				Scheduled:      it.Scheduled,
				Instructions:   it.Instructions,
				Attachments:    it.Attachments,
				Status:         it.Status,
				Providers:      providers,
				StartConfirmed: it.OTP.StartConfirmed,
				EndConfirmed:   it.OTP.EndConfirmed,
				StartedAt:      it.OTP.StartedAt,
				EndedAt:        it.OTP.EndedAt,
			})
		}
		resp.Services = append(resp.Services, lr)
	}
	return resp
}

// --- Helpers ---

func actorFromClaims(r *http.Request) (service.Actor, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		return service.Actor{}, false
	}
	return service.Actor{ID: claims.UserID, Role: claims.Role}, true
}

func parseItemRef(r *http.Request) (service.ItemRef, bool) {
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return service.ItemRef{}, false
	}
	serviceID, err := uuid.Parse(chi.URLParam(r, "sid"))
	if err != nil {
		return service.ItemRef{}, false
	}
	subID, err := uuid.Parse(chi.URLParam(r, "subID"))
	if err != nil {
		return service.ItemRef{}, false
	}
	return service.ItemRef{OrderID: orderID, ServiceID: serviceID, SubcategoryID: subID}, true
}

func parseProviderParam(r *http.Request) (uuid.UUID, bool) {
	pid, err := uuid.Parse(chi.URLParam(r, "pid"))
	if err != nil {
		return uuid.UUID{}, false
	}
	return pid, true
}

// --- Handlers ---

// Raise handles POST /orders.
func (h *OrderHandler) Raise(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	raised, err := h.svc.RaiseOrder(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusCreated, raiseOrderResponse{
		Order:    toOrderResponse(raised.Order),
		OTPCodes: raised.OTPCodes,
	})
}

// Get handles GET /orders/{id}.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		badRequest(w, "invalid order ID")
		return
	}

	ord, err := h.svc.GetOrder(r.Context(), orderID, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// Views handles GET /orders/views for users and providers.
func (h *OrderHandler) Views(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	if actor.Role == enum.RoleProvider {
		views, err := h.svc.ProviderOrderViews(r.Context(), actor.ID)
		if err != nil {
			writeServiceError(w, h.log, err)
			return
		}
		writeJSON(w, http.StatusOK, views)
		return
	}

	views, err := h.svc.UserOrderViews(r.Context(), actor.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, views)
}

// Assign handles POST .../assign.
func (h *OrderHandler) Assign(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}

	var req assignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	providerID, err := uuid.Parse(req.ProviderID)
	if err != nil {
		badRequest(w, "invalid provider ID")
		return
	}

	ord, err := h.svc.AssignProvider(r.Context(), ref, providerID, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// Accept handles POST .../accept.
func (h *OrderHandler) Accept(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}

	ord, err := h.svc.AcceptAssignment(r.Context(), ref, actor.ID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// CancelItem handles POST .../cancel.
func (h *OrderHandler) CancelItem(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}

	ord, err := h.svc.CancelItem(r.Context(), ref, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// CancelAssignment handles POST .../assignments/{pid}/cancel.
func (h *OrderHandler) CancelAssignment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}
	providerID, ok := parseProviderParam(r)
	if !ok {
		badRequest(w, "invalid provider ID")
		return
	}

	ord, err := h.svc.CancelAssignment(r.Context(), ref, providerID, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// Reschedule handles POST .../reschedule.
func (h *OrderHandler) Reschedule(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}

	var req rescheduleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ord, err := h.svc.RescheduleItem(r.Context(), ref, model.TimeWindow{Start: req.Start, End: req.End}, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// StartOTP handles POST .../otp/start.
func (h *OrderHandler) StartOTP(w http.ResponseWriter, r *http.Request) {
	h.confirmOTP(w, r, h.svc.ConfirmStartOTP)
}

// EndOTP handles POST .../otp/end.
func (h *OrderHandler) EndOTP(w http.ResponseWriter, r *http.Request) {
	h.confirmOTP(w, r, h.svc.ConfirmEndOTP)
}

func (h *OrderHandler) confirmOTP(w http.ResponseWriter, r *http.Request, confirm func(context.Context, service.ItemRef, uuid.UUID, string) (model.Order, error)) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}

	var req otpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	ord, err := confirm(r.Context(), ref, actor.ID, req.Code)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}

// Payment handles POST .../assignments/{pid}/payment.
func (h *OrderHandler) Payment(w http.ResponseWriter, r *http.Request) {
	actor, ok := actorFromClaims(r)
	if !ok {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	ref, ok := parseItemRef(r)
	if !ok {
		badRequest(w, "invalid order, service, or subcategory ID")
		return
	}
	providerID, ok := parseProviderParam(r)
	if !ok {
		badRequest(w, "invalid provider ID")
		return
	}

	ord, err := h.svc.ConfirmPayment(r.Context(), ref, providerID, actor)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(ord))
}
