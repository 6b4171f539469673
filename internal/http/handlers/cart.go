package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/wolfman30/lumeskin-platform/internal/cart"
	"github.com/wolfman30/lumeskin-platform/internal/catalog"
	"github.com/wolfman30/lumeskin-platform/internal/models"
	"github.com/wolfman30/lumeskin-platform/pkg/logging"
)

// ProductLookup resolves a catalog product by id.
type ProductLookup interface {
	Product(ctx context.Context, id string) (models.Product, error)
}

type CartHandler struct {
	products ProductLookup
	logger   *logging.Logger
}

func NewCartHandler(products ProductLookup, logger *logging.Logger) *CartHandler {
	if products == nil {
		panic("handlers: product lookup cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &CartHandler{products: products, logger: logger}
}

type addItemRequest struct {
	ProductID string `json:"productId"`
}

// Get handles GET /cart.
func (h *CartHandler) Get(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, sess.Cart.Snapshot())
}

// AddItem handles POST /cart/items. Adding a product already in the cart
// bumps its quantity.
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	var req addItemRequest
	if err := decodeJSON(w, r, &req); err != nil || strings.TrimSpace(req.ProductID) == "" {
		jsonError(w, "productId is required", http.StatusBadRequest)
		return
	}
	product, err := h.products.Product(r.Context(), req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			jsonError(w, "product not found", http.StatusNotFound)
			return
		}
		h.logger.Error("failed to load product", "error", err, "product_id", req.ProductID)
		jsonError(w, "failed to load product", http.StatusInternalServerError)
		return
	}
	sess.Cart.Add(product)
	writeJSON(w, http.StatusOK, sess.Cart.Snapshot())
}

// BeginCheckout handles POST /cart/checkout.
func (h *CartHandler) BeginCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.Cart.BeginCheckout()
	writeJSON(w, http.StatusOK, sess.Cart.Snapshot())
}

// ExitCheckout handles DELETE /cart/checkout.
func (h *CartHandler) ExitCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	sess.Cart.ExitCheckout()
	writeJSON(w, http.StatusOK, sess.Cart.Snapshot())
}

// CompleteCheckout handles POST /cart/checkout/complete. No order is
// recorded; the response carries what was in the cart and the cart empties.
func (h *CartHandler) CompleteCheckout(w http.ResponseWriter, r *http.Request) {
	sess, ok := currentSession(w, r)
	if !ok {
		return
	}
	snap, err := sess.Cart.CompleteCheckout()
	if err != nil {
		if errors.Is(err, cart.ErrEmptyCart) {
			jsonError(w, err.Error(), http.StatusConflict)
			return
		}
		jsonError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	h.logger.Info("checkout completed", "user_id", sess.User.ID, "items", snap.Count, "total", snap.Total)
	writeJSON(w, http.StatusOK, snap)
}
