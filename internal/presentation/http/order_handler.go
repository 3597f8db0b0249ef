package httppresentation

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"time"

	apporder "github.com/Zhima-Mochi/minishop-coordinator/internal/application/order"
	domainOrder "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/order"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

const headerIdempotencyKey = "Idempotency-Key"

type OrderHandler struct {
	place  *apporder.PlaceOrderUseCase
	cancel *apporder.CancelOrderUseCase
	list   *apporder.ListOrdersUseCase
	routes routes
}

func NewOrderHandler(
	place *apporder.PlaceOrderUseCase,
	cancel *apporder.CancelOrderUseCase,
	list *apporder.ListOrdersUseCase,
	tel observability.Observability,
) *OrderHandler {
	return &OrderHandler{
		place:  place,
		cancel: cancel,
		list:   list,
		routes: newRoutes("order-service", tel),
	}
}

func (h *OrderHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	h.routes.handle(r, http.MethodPost, "/api/orders", h.handlePlaceOrder)
	h.routes.handle(r, http.MethodGet, "/api/orders/{email}", h.handleListOrders)
	h.routes.handle(r, http.MethodDelete, "/api/orders/{id}", h.handleCancelOrder)
	r.Get("/health", handleHealth)

	return r
}

type lineRequest struct {
	ID   int64 `json:"id"`
	Unit int   `json:"unit"`
}

type placeOrderRequest struct {
	CustomerEmail   string        `json:"customerEmail"`
	CustomerAddress string        `json:"customerAddress"`
	ProductList     []lineRequest `json:"productList"`
}

type lineResponse struct {
	ProductID         int64  `json:"productId"`
	Units             int    `json:"units"`
	Status            string `json:"status"`
	Reason            string `json:"reason,omitempty"`
	RemainingQuantity *int   `json:"remainingQuantity,omitempty"`
}

type orderResponse struct {
	ID              string         `json:"id"`
	CustomerEmail   string         `json:"customerEmail"`
	CustomerAddress string         `json:"customerAddress"`
	OrderDate       time.Time      `json:"orderDate"`
	Lines           []lineResponse `json:"lines"`
	ReservedUnits   int            `json:"reservedUnits"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	resp := orderResponse{
		ID:              o.ID,
		CustomerEmail:   o.CustomerEmail,
		CustomerAddress: o.Address,
		OrderDate:       o.CreatedAt,
		Lines:           make([]lineResponse, 0, len(o.Lines)),
		ReservedUnits:   o.ReservedUnits(),
	}
	for _, l := range o.Lines {
		lr := lineResponse{
			ProductID: l.ProductID,
			Units:     l.Units,
			Status:    string(l.Status),
			Reason:    l.Reason,
		}
		if l.Status == domainOrder.LineReserved {
			remaining := l.RemainingQuantity
			lr.RemainingQuantity = &remaining
		}
		resp.Lines = append(resp.Lines, lr)
	}
	return resp
}

func (h *OrderHandler) handlePlaceOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}

	lines := make([]apporder.LineRequest, 0, len(req.ProductList))
	for _, l := range req.ProductList {
		lines = append(lines, apporder.LineRequest{ProductID: l.ID, Units: l.Unit})
	}

	o, err := h.place.Execute(r.Context(), apporder.PlaceOrderInput{
		IdempotencyKey:  r.Header.Get(headerIdempotencyKey),
		CustomerEmail:   req.CustomerEmail,
		CustomerAddress: req.CustomerAddress,
		Lines:           lines,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, toOrderResponse(o))
}

func (h *OrderHandler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	email, err := url.PathUnescape(chi.URLParam(r, "email"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "malformed email")
		return
	}

	orders, err := h.list.Execute(r.Context(), email)
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}

	resp := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *OrderHandler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	// unparsable values become zero and fail validation
	productID, _ := strconv.ParseInt(q.Get("productId"), 10, 64)
	units, _ := strconv.Atoi(q.Get("quantity"))

	err := h.cancel.Execute(r.Context(), apporder.CancelOrderInput{
		OrderID:   chi.URLParam(r, "id"),
		ProductID: productID,
		Units:     units,
	})
	if err != nil {
		h.writeOrderError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *OrderHandler) writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var verr *apporder.ValidationError
	switch {
	case errors.As(err, &verr):
		body := validationResponse{
			Message:   "Validation Failed!",
			Timestamp: time.Now().UTC(),
			Errors:    make([]fieldErrorResponse, 0, len(verr.Fields)),
		}
		for _, f := range verr.Fields {
			body.Errors = append(body.Errors, fieldErrorResponse{Field: f.Field, Message: f.Message})
		}
		writeJSON(w, http.StatusBadRequest, body)
	case errors.Is(err, apporder.ErrNotFound):
		writeError(w, http.StatusNotFound, "order not found")
	case errors.Is(err, apporder.ErrLineMismatch):
		writeError(w, http.StatusConflict, "no reserved line matches the product and quantity")
	case errors.Is(err, apporder.ErrIdempotencyInFlight):
		writeError(w, http.StatusConflict, "a request with this idempotency key is in progress")
	case errors.Is(err, apporder.ErrUpstream):
		writeError(w, http.StatusBadGateway, "inventory service unavailable")
	default:
		logctx.FromOr(r.Context(), h.routes.log).Error("http_unhandled_error", observability.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}
