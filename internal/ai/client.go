package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"lumina/internal/domain"

	"github.com/sony/gobreaker/v2"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"
)

const (
	// DefaultBaseURL is the default Gemini API endpoint
	DefaultBaseURL = "https://generativelanguage.googleapis.com/v1beta"

	// DefaultModel is used when no model is configured
	DefaultModel = "gemini-3-flash-preview"
)

var (
	ErrMissingAPIKey = errors.New("gemini API key not configured")
	ErrNoCandidates  = errors.New("no candidates in Gemini response")
)

// GenerateRequest is a single stateless call to the language model
type GenerateRequest struct {
	SystemInstruction string
	History           []domain.ChatMessage
	Prompt            string

	// ResponseSchema, when set, asks for a JSON response of this shape
	ResponseSchema *Schema
}

// Generator produces model text for a request
type Generator interface {
	GenerateContent(ctx context.Context, req GenerateRequest) (string, error)
}

// APIError is a non-200 answer from the Gemini API
type APIError struct {
	StatusCode int
	Status     string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gemini API error (%d %s): %s", e.StatusCode, e.Status, e.Message)
}

// GeminiClient calls the Gemini generateContent REST endpoint
type GeminiClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker[string]
	logger     *zap.Logger
}

// ClientOption customises a GeminiClient
type ClientOption func(*GeminiClient)

// WithHTTPClient replaces the instrumented default HTTP client
func WithHTTPClient(c *http.Client) ClientOption {
	return func(g *GeminiClient) {
		g.httpClient = c
	}
}

// WithBreakerSettings replaces the default circuit breaker policy
func WithBreakerSettings(st gobreaker.Settings) ClientOption {
	return func(g *GeminiClient) {
		g.breaker = gobreaker.NewCircuitBreaker[string](st)
	}
}

// NewGeminiClient creates a client; empty baseURL and model fall back to defaults.
// Requests carry no client-side timeout.
func NewGeminiClient(apiKey, baseURL, model string, logger *zap.Logger, opts ...ClientOption) *GeminiClient {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}

	c := &GeminiClient{
		apiKey:  apiKey,
		baseURL: strings.TrimRight(baseURL, "/"),
		model:   model,
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		logger: logger,
	}
	c.breaker = gobreaker.NewCircuitBreaker[string](defaultBreakerSettings(logger))

	for _, opt := range opts {
		opt(c)
	}

	return c
}

func defaultBreakerSettings(logger *zap.Logger) gobreaker.Settings {
	return gobreaker.Settings{
		Name:        "gemini",
		MaxRequests: 1,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()),
			)
		},
	}
}

// Model returns the configured model name
func (c *GeminiClient) Model() string {
	return c.model
}

// GenerateContent sends one generateContent call and returns the concatenated candidate text
func (c *GeminiClient) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	return c.breaker.Execute(func() (string, error) {
		return c.generate(ctx, req)
	})
}

func (c *GeminiClient) generate(ctx context.Context, req GenerateRequest) (string, error) {
	startTime := time.Now()

	jsonData, err := json.Marshal(buildRequest(req))
	if err != nil {
		return "", fmt.Errorf("failed to marshal request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, c.model)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", parseAPIError(resp.StatusCode, body)
	}

	var genResp generateContentResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", fmt.Errorf("failed to parse response: %w", err)
	}

	if len(genResp.Candidates) == 0 {
		return "", ErrNoCandidates
	}

	var text strings.Builder
	for _, p := range genResp.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	c.logger.Debug("Gemini response received",
		zap.String("model", c.model),
		zap.Int("prompt_tokens", genResp.UsageMetadata.PromptTokenCount),
		zap.Int("completion_tokens", genResp.UsageMetadata.CandidatesTokenCount),
		zap.Duration("duration", time.Since(startTime)),
	)

	return text.String(), nil
}

func buildRequest(req GenerateRequest) generateContentRequest {
	contents := make([]content, 0, len(req.History)+1)
	for _, msg := range req.History {
		contents = append(contents, content{
			Role:  string(msg.Role),
			Parts: []part{{Text: msg.Text}},
		})
	}
	contents = append(contents, content{
		Role:  string(domain.RoleUser),
		Parts: []part{{Text: req.Prompt}},
	})

	out := generateContentRequest{Contents: contents}

	if req.SystemInstruction != "" {
		out.SystemInstruction = &content{
			Parts: []part{{Text: req.SystemInstruction}},
		}
	}

	if req.ResponseSchema != nil {
		out.GenerationConfig = &generationConfig{
			ResponseMIMEType: "application/json",
			ResponseSchema:   req.ResponseSchema,
		}
	}

	return out
}

func parseAPIError(statusCode int, body []byte) error {
	apiErr := &APIError{StatusCode: statusCode, Message: strings.TrimSpace(string(body))}

	var errResp errorResponse
	if err := json.Unmarshal(body, &errResp); err == nil && errResp.Error.Message != "" {
		apiErr.Status = errResp.Error.Status
		apiErr.Message = errResp.Error.Message
	}

	return apiErr
}
