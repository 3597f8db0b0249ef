package httppresentation

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	appinv "github.com/Zhima-Mochi/minishop-coordinator/internal/application/inventory"
	domainInventory "github.com/Zhima-Mochi/minishop-coordinator/internal/domain/inventory"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability"
	"github.com/Zhima-Mochi/minishop-coordinator/internal/observability/logctx"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type InventoryHandler struct {
	catalog *appinv.Catalog
	reserve *appinv.AdjustStockUseCase
	release *appinv.AdjustStockUseCase
	routes  routes
}

func NewInventoryHandler(catalog *appinv.Catalog, reserve, release *appinv.AdjustStockUseCase, tel observability.Observability) *InventoryHandler {
	return &InventoryHandler{
		catalog: catalog,
		reserve: reserve,
		release: release,
		routes:  newRoutes("inventory-service", tel),
	}
}

func (h *InventoryHandler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RealIP, middleware.Recoverer)

	h.routes.handle(r, http.MethodGet, "/api/products", h.handleListProducts)
	h.routes.handle(r, http.MethodPost, "/api/products", h.handleCreateProduct)
	h.routes.handle(r, http.MethodGet, "/api/products/{id}", h.handleGetProduct)
	h.routes.handle(r, http.MethodPost, "/api/products/order/{id}", h.handleAdjust(h.reserve))
	h.routes.handle(r, http.MethodPost, "/api/products/cancel/{id}", h.handleAdjust(h.release))
	r.Get("/health", handleHealth)

	return r
}

type productDTO struct {
	ID                int64     `json:"id"`
	Code              string    `json:"code"`
	Name              string    `json:"name"`
	Description       string    `json:"description"`
	Category          string    `json:"category"`
	Brand             string    `json:"brand"`
	Price             int64     `json:"price"`
	AvailableQuantity int       `json:"availableQuantity"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

func toProductDTO(p *domainInventory.Product) productDTO {
	return productDTO{
		ID:                p.ID,
		Code:              p.Code,
		Name:              p.Name,
		Description:       p.Description,
		Category:          p.Category,
		Brand:             p.Brand,
		Price:             p.Price,
		AvailableQuantity: p.AvailableQuantity,
		UpdatedAt:         p.UpdatedAt,
	}
}

func (h *InventoryHandler) handleListProducts(w http.ResponseWriter, r *http.Request) {
	products, err := h.catalog.List(r.Context())
	if err != nil {
		h.writeInventoryError(w, r, 0, err)
		return
	}
	resp := make([]productDTO, 0, len(products))
	for _, p := range products {
		resp = append(resp, toProductDTO(p))
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *InventoryHandler) handleCreateProduct(w http.ResponseWriter, r *http.Request) {
	var req productDTO
	if err := decodeStrictJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request body: "+err.Error())
		return
	}
	created, err := h.catalog.Create(r.Context(), &domainInventory.Product{
		ID:                req.ID,
		Code:              req.Code,
		Name:              req.Name,
		Description:       req.Description,
		Category:          req.Category,
		Brand:             req.Brand,
		Price:             req.Price,
		AvailableQuantity: req.AvailableQuantity,
	})
	if err != nil {
		h.writeInventoryError(w, r, req.ID, err)
		return
	}
	writeJSON(w, http.StatusCreated, toProductDTO(created))
}

func (h *InventoryHandler) handleGetProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(w, r)
	if !ok {
		return
	}
	p, err := h.catalog.Get(r.Context(), id)
	if err != nil {
		h.writeInventoryError(w, r, id, err)
		return
	}
	writeJSON(w, http.StatusOK, toProductDTO(p))
}

// handleAdjust serves reserve and release. Both take a bare JSON number of units
// and answer with the remaining quantity.
func (h *InventoryHandler) handleAdjust(uc *appinv.AdjustStockUseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := productID(w, r)
		if !ok {
			return
		}
		var units int
		if err := decodeStrictJSON(r, &units); err != nil {
			writeError(w, http.StatusBadRequest, "body must be a number of units")
			return
		}
		res, err := uc.Execute(r.Context(), appinv.AdjustStockInput{ProductID: id, Units: units})
		if err != nil {
			h.writeInventoryError(w, r, id, err)
			return
		}
		writeJSON(w, http.StatusOK, res.Remaining)
	}
}

func productID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "product id must be a positive integer")
		return 0, false
	}
	return id, true
}

func (h *InventoryHandler) writeInventoryError(w http.ResponseWriter, r *http.Request, id int64, err error) {
	switch {
	case errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, fmt.Sprintf("Product not found with id: %d", id))
	case errors.Is(err, domainInventory.ErrInsufficientStock):
		writeError(w, http.StatusConflict, "insufficient stock")
	case errors.Is(err, domainInventory.ErrInvalidQuantity):
		writeError(w, http.StatusBadRequest, "units must be greater than zero")
	case errors.Is(err, domainInventory.ErrConflict):
		writeError(w, http.StatusConflict, fmt.Sprintf("Product already exists with id: %d", id))
	case errors.Is(err, domainInventory.ErrInvalidProduct):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		logctx.FromOr(r.Context(), h.routes.log).Error("http_unhandled_error", observability.Err(err))
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
