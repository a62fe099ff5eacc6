// Package httptransport exposes the order operations over HTTP.
package httptransport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oklog/ulid/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	apporder "github.com/minimart-labs/orderflow/internal/application/order"
	domain "github.com/minimart-labs/orderflow/internal/domain/order"
	"github.com/minimart-labs/orderflow/internal/pkg/logging"
)

type Handler struct {
	orders *apporder.Service
	log    *zap.Logger
}

func NewHandler(orders *apporder.Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.L()
	}
	return &Handler{orders: orders, log: logger}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(h.withLogger)

	r.Post("/order", h.handleCreateOrder)
	r.Get("/order/{id}", h.handleGetOrder)
	r.Delete("/order/{id}", h.handleCancelOrder)
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return r
}

// withLogger puts the base logger into the request context so application
// code can pick it up via logging.FromContext.
func (h *Handler) withLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := logging.WithLogger(r.Context(), h.log)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

var minItemPrice = decimal.RequireFromString("0.01")

type orderItemRequest struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

type createOrderRequest struct {
	CustomerID string             `json:"customerId"`
	StoreID    string             `json:"storeId"`
	Items      []orderItemRequest `json:"items"`
}

func (req *createOrderRequest) validate() error {
	if _, err := ulid.Parse(req.CustomerID); err != nil {
		return errors.New("customerId must be a valid ULID")
	}
	if _, err := ulid.Parse(req.StoreID); err != nil {
		return errors.New("storeId must be a valid ULID")
	}
	if len(req.Items) == 0 {
		return errors.New("items must not be empty")
	}
	for _, item := range req.Items {
		if item.ProductID == "" {
			return errors.New("items.productId is required")
		}
		if item.Quantity < 1 {
			return errors.New("items.quantity must be at least 1")
		}
		if item.Price.LessThan(minItemPrice) {
			return errors.New("items.price must be at least 0.01")
		}
	}
	return nil
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	items := make([]domain.Item, 0, len(req.Items))
	for _, item := range req.Items {
		items = append(items, domain.Item{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
		})
	}

	result, err := h.orders.CreateOrder(r.Context(), apporder.CreateOrderInput{
		CustomerID: req.CustomerID,
		StoreID:    req.StoreID,
		Items:      items,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.GetOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.CancelOrder(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	var collab *apporder.CollaboratorError
	switch {
	case errors.As(err, &collab):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domain.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domain.ErrNoItems),
		errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice):
		writeError(w, http.StatusBadRequest, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
