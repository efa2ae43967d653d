package transport

import (
	"errors"
	"net/http"

	"lumina/internal/catalog"
	"lumina/internal/domain"
	"lumina/internal/middleware"
	"lumina/internal/service"
	"lumina/internal/view"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// CategoryRequest represents the category selection payload
type CategoryRequest struct {
	Category string `json:"category" validate:"required,oneof=All Men Women Accessories Kids"`
}

// ProductRequest represents the product modal payload
type ProductRequest struct {
	ProductID string `json:"product_id" validate:"required"`
}

// SizeRequest represents the size selection payload
type SizeRequest struct {
	Size string `json:"size" validate:"required,oneof=XS S M L XL"`
}

// SearchRequest represents the AI search payload
type SearchRequest struct {
	Query string `json:"query" validate:"required,max=500"`
}

// AddToCartResponse reports whether the modal's add was applied
type AddToCartResponse struct {
	Accepted bool       `json:"accepted"`
	View     view.Model `json:"view"`
}

// CatalogResponse lists the catalog and its fixed enumerations
type CatalogResponse struct {
	Products   []domain.Product  `json:"products"`
	Categories []domain.Category `json:"categories"`
	Sizes      []string          `json:"sizes"`
}

// StorefrontHandler handles HTTP requests for browsing and the product modal
type StorefrontHandler struct {
	storefront service.StorefrontService
	logger     *zap.Logger
}

// NewStorefrontHandler creates a new StorefrontHandler
func NewStorefrontHandler(storefront service.StorefrontService, logger *zap.Logger) *StorefrontHandler {
	return &StorefrontHandler{
		storefront: storefront,
		logger:     logger,
	}
}

// RegisterRoutes registers the catalog and storefront routes
func (h *StorefrontHandler) RegisterRoutes(r chi.Router, aiLimiter func(http.Handler) http.Handler) {
	r.Get("/api/catalog", h.GetCatalog)

	r.Route("/api/storefront", func(r chi.Router) {
		r.Get("/", h.GetView)
		r.Post("/category", h.SelectCategory)
		r.Post("/surfaces/{surface}/open", h.OpenSurface)
		r.Post("/surfaces/{surface}/close", h.CloseSurface)
		r.Post("/nav/toggle", h.ToggleMobileNav)
		r.Post("/product", h.OpenProduct)
		r.Delete("/product", h.CloseProduct)
		r.Post("/product/size", h.SelectSize)
		r.Post("/product/cart", h.AddSelectedToCart)
	})

	r.Route("/api/search", func(r chi.Router) {
		r.With(aiLimiter).Post("/", h.Search)
		r.Delete("/", h.ClearSearch)
	})
}

// GetCatalog returns the full catalog
func (h *StorefrontHandler) GetCatalog(w http.ResponseWriter, r *http.Request) {
	cat, err := h.storefront.Catalog(r.Context())
	if err != nil {
		h.logger.Error("Failed to load catalog", zap.Error(err))
		middleware.RespondWithError(w, http.StatusServiceUnavailable, "catalog unavailable")
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, CatalogResponse{
		Products:   cat.Products(),
		Categories: domain.Categories,
		Sizes:      domain.Sizes,
	})
}

// GetView returns the current storefront view model
func (h *StorefrontHandler) GetView(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.storefront.View(r.Context(), sessionID)
	respondWithModel(w, h.logger, model, err)
}

// SelectCategory handles category navigation
func (h *StorefrontHandler) SelectCategory(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req CategoryRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	// Validation guarantees the value parses
	category, _ := domain.ParseCategory(req.Category)

	model, err := h.storefront.SelectCategory(r.Context(), sessionID, category)
	respondWithModel(w, h.logger, model, err)
}

// OpenSurface shows a UI panel
func (h *StorefrontHandler) OpenSurface(w http.ResponseWriter, r *http.Request) {
	h.setSurface(w, r, true)
}

// CloseSurface hides a UI panel
func (h *StorefrontHandler) CloseSurface(w http.ResponseWriter, r *http.Request) {
	h.setSurface(w, r, false)
}

func (h *StorefrontHandler) setSurface(w http.ResponseWriter, r *http.Request, open bool) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	surface, ok := view.ParseSurface(chi.URLParam(r, "surface"))
	if !ok {
		middleware.RespondWithError(w, http.StatusNotFound, "unknown surface")
		return
	}

	var (
		model view.Model
		err   error
	)
	if open {
		model, err = h.storefront.OpenSurface(r.Context(), sessionID, surface)
	} else {
		model, err = h.storefront.CloseSurface(r.Context(), sessionID, surface)
	}
	respondWithModel(w, h.logger, model, err)
}

// ToggleMobileNav flips the mobile navigation menu
func (h *StorefrontHandler) ToggleMobileNav(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.storefront.ToggleMobileNav(r.Context(), sessionID)
	respondWithModel(w, h.logger, model, err)
}

// OpenProduct opens the product modal
func (h *StorefrontHandler) OpenProduct(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req ProductRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	model, err := h.storefront.OpenProduct(r.Context(), sessionID, req.ProductID)
	respondWithModel(w, h.logger, model, err)
}

// CloseProduct closes the product modal
func (h *StorefrontHandler) CloseProduct(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.storefront.CloseProduct(r.Context(), sessionID)
	respondWithModel(w, h.logger, model, err)
}

// SelectSize records the size chosen in the product modal
func (h *StorefrontHandler) SelectSize(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req SizeRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	model, err := h.storefront.SelectSize(r.Context(), sessionID, req.Size)
	respondWithModel(w, h.logger, model, err)
}

// AddSelectedToCart adds the modal's product in the chosen size
func (h *StorefrontHandler) AddSelectedToCart(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	result, err := h.storefront.AddSelectedToCart(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, AddToCartResponse{
		Accepted: result.Accepted,
		View:     result.View,
	})
}

// Search runs an AI product search; failures surface as an empty result
func (h *StorefrontHandler) Search(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req SearchRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	model, err := h.storefront.Search(r.Context(), sessionID, req.Query)
	respondWithModel(w, h.logger, model, err)
}

// ClearSearch restores the full catalog scope
func (h *StorefrontHandler) ClearSearch(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	model, err := h.storefront.ClearSearch(r.Context(), sessionID)
	respondWithModel(w, h.logger, model, err)
}

func sessionFrom(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	sessionID, ok := middleware.GetSessionID(r.Context())
	if !ok || sessionID == "" {
		logger.Error("Session ID not found in context")
		middleware.RespondWithError(w, http.StatusInternalServerError, "session unavailable")
		return "", false
	}
	return sessionID, true
}

// decode reads and validates a JSON body, answering 400 on failure
func decode(w http.ResponseWriter, r *http.Request, logger *zap.Logger, v interface{}) bool {
	if err := middleware.DecodeAndValidate(r, v); err != nil {
		logger.Debug("Request validation failed", zap.Error(err))

		// Check if it's a validation error
		if validationErrors := middleware.FormatValidationErrors(err); len(validationErrors) > 0 {
			middleware.RespondWithValidationErrors(w, validationErrors)
			return false
		}

		// JSON decode error
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid request body")
		return false
	}
	return true
}

func respondWithModel(w http.ResponseWriter, logger *zap.Logger, model view.Model, err error) {
	if err != nil {
		respondWithServiceError(w, logger, err)
		return
	}
	middleware.RespondWithJSON(w, http.StatusOK, model)
}

func respondWithServiceError(w http.ResponseWriter, logger *zap.Logger, err error) {
	switch {
	case errors.Is(err, catalog.ErrProductNotFound):
		middleware.RespondWithError(w, http.StatusNotFound, "product not found")
	case errors.Is(err, service.ErrInvalidSize):
		middleware.RespondWithError(w, http.StatusBadRequest, "invalid size")
	case errors.Is(err, service.ErrInvalidQuantity):
		middleware.RespondWithError(w, http.StatusBadRequest, "quantity must be positive")
	case errors.Is(err, service.ErrInvalidSurface):
		middleware.RespondWithError(w, http.StatusNotFound, "unknown surface")
	default:
		logger.Error("Storefront request failed", zap.Error(err))
		middleware.RespondWithError(w, http.StatusInternalServerError, "internal server error")
	}
}
