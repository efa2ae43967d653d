package transport

import (
	"net/http"

	"lumina/internal/domain"
	"lumina/internal/middleware"
	"lumina/internal/service"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// ChatRequest represents a message to the stylist
type ChatRequest struct {
	Message string `json:"message" validate:"required,notblank,max=2000"`
}

// TranscriptResponse wraps the chat transcript
type TranscriptResponse struct {
	Messages []domain.ChatMessage `json:"messages"`
}

// ChatHandler handles HTTP requests for the stylist chat
type ChatHandler struct {
	storefront service.StorefrontService
	logger     *zap.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(storefront service.StorefrontService, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{
		storefront: storefront,
		logger:     logger,
	}
}

// RegisterRoutes registers the chat routes; sending is rate limited
func (h *ChatHandler) RegisterRoutes(r chi.Router, aiLimiter func(http.Handler) http.Handler) {
	r.Route("/api/chat", func(r chi.Router) {
		r.Get("/", h.GetTranscript)
		r.With(aiLimiter).Post("/", h.Send)
	})
}

// GetTranscript returns the chat so far
func (h *ChatHandler) GetTranscript(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	messages, err := h.storefront.Transcript(r.Context(), sessionID)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	middleware.RespondWithJSON(w, http.StatusOK, TranscriptResponse{Messages: messages})
}

// Send delivers a message to the stylist and returns the updated transcript.
// A failed model call still answers 200 with the fallback reply.
func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	sessionID, ok := sessionFrom(w, r, h.logger)
	if !ok {
		return
	}

	var req ChatRequest
	if !decode(w, r, h.logger, &req) {
		return
	}

	result, err := h.storefront.Chat(r.Context(), sessionID, req.Message)
	if err != nil {
		respondWithServiceError(w, h.logger, err)
		return
	}

	status := http.StatusOK
	if !result.Accepted {
		status = http.StatusConflict
	}
	middleware.RespondWithJSON(w, status, result)
}
