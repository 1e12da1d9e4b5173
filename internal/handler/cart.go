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

	"github.com/hopingminds/menrol-api/internal/middleware"
	"github.com/hopingminds/menrol-api/internal/model"
)

// CartServicer defines the service methods needed by cart handlers.
// Satisfied by *service.FulfillmentService; narrow interface for testability.
type CartServicer interface {
	SaveCart(ctx context.Context, userID uuid.UUID, doc model.ServiceRequestDoc) (model.ServiceRequest, error)
	GetCart(ctx context.Context, userID uuid.UUID) (model.ServiceRequest, error)
}

// CartHandler handles the pending service-request endpoints.
type CartHandler struct {
	svc CartServicer
	log *logrus.Logger
}

func NewCartHandler(svc CartServicer, log *logrus.Logger) *CartHandler {
	return &CartHandler{svc: svc, log: log}
}

// RegisterRoutes registers cart endpoints on the given Chi router.
// Mounted at /cart for authenticated users.
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Post("/", h.Save)
	r.Get("/", h.Get)
}

type cartResponse struct {
	ID        uuid.UUID                `json:"id"`
	UserID    uuid.UUID                `json:"userId"`
	CreatedAt time.Time                `json:"createdAt"`
	Location  model.GeoPoint           `json:"location"`
	Address   string                   `json:"address"`
	Services  []model.RequestedService `json:"services"`
	Total     decimal.Decimal          `json:"totalAmount"`
}

func toCartResponse(sr model.ServiceRequest) cartResponse {
	return cartResponse{
		ID:        sr.ID,
		UserID:    sr.UserID,
		CreatedAt: sr.CreatedAt,
		Location:  sr.Doc.Location,
		Address:   sr.Doc.Address,
		Services:  sr.Doc.Services,
		Total:     model.CartTotal(&sr.Doc),
	}
}

// Save handles POST /cart: full replacement of the pending cart.
func (h *CartHandler) Save(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var doc model.ServiceRequestDoc
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	sr, err := h.svc.SaveCart(r.Context(), claims.UserID, doc)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sr))
}

// Get handles GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	sr, err := h.svc.GetCart(r.Context(), claims.UserID)
	if err != nil {
		writeServiceError(w, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toCartResponse(sr))
}
