package transport

import (
	"net/http"

	"lumina/internal/middleware"
	"lumina/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// AddCartItemRequest represents the add-to-cart payload
type AddCartItemRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Size      string `json:"size" validate:"required,oneof=XS S M L XL"`
	Quantity  int    `json:"quantity" validate:"omitempty,gte=1,lte=99"`
}

// AdjustCartItemRequest represents a quantity change on a cart line
type AdjustCartItemRequest struct {
	Delta int `json:"delta" validate:"required,ne=0"`
}

// CartHandler handles HTTP requests for the cart drawer
type CartHandler struct {
	storefront service.StorefrontService
	logger     *zap.Logger
}

// NewCartHandler creates a new CartHandler
func NewCartHandler(storefront service.StorefrontService, logger *zap.Logger) *CartHandler {
	return &CartHandler{
		storefront: storefront,
		logger:     logger,
	}
}

// RegisterRoutes registers all cart routes
func (h *CartHandler) RegisterRoutes(r chi.Router) {
	r.Route("/api/cart", func(r chi.Router) {
		r.Get("/", h.GetCart)
		r.Post("/items", h.AddItem)
		r.Patch("/items/{productID}/{size}", h.AdjustItem)
		r.Delete("/items/{productID}/{size}", h.RemoveItem)
	})
}

// GetCart returns the cart lines, badge count and subtotal
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.storefront.Cart(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// AddItem adds a product in a size; the response view has the cart drawer open
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req AddCartItemRequest
	if !decode(w, r, h.logger, &req) {
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	model, err := h.storefront.AddToCart(r.Context(), sessionID, req.ProductID, req.Size, req.Quantity)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	h.logger.Debug("Cart item added",
		zap.String("session_id", sessionID),
		zap.String("product_id", req.ProductID),
		zap.String("size", req.Size),
		zap.Int("quantity", req.Quantity),
	)
	middleware.RespondWithJSON(w, http.StatusCreated, model)
}

// AdjustItem changes a line's quantity; a line reaching zero is removed
func (h *CartHandler) AdjustItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req AdjustCartItemRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	summary, err := h.storefront.AdjustCartLine(r.Context(), sessionID, chi.URLParam(r, "productID"), chi.URLParam(r, "size"), req.Delta)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, summary)
}

// RemoveItem drops a cart line; removing a missing line is not an error
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	summary, err := h.storefront.RemoveCartLine(r.Context(), sessionID, chi.URLParam(r, "productID"), chi.URLParam(r, "size"))
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, summary)
}
