// Package ai is the boundary to the generative-language service.
//
// Both operations are best effort: every transport, status, parse or schema
// failure is logged and converted into a benign default so callers never
// handle a propagating error.
package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"lumina/internal/domain"

	"go.uber.org/zap"
)

const (
	// FallbackReply replaces the stylist's answer when the call fails
	FallbackReply = "I'm having trouble connecting to the fashion mainframe right now."

	// EmptyReply replaces a successful call that produced no text
	EmptyReply = "I'm having a moment of fashion indecision. Could you rephrase that?"
)

// StylistInstruction is attached to every chat call
const StylistInstruction = `You are "Luna", a high-end AI fashion stylist for Lumina Fashion.
Your tone is chic, helpful, and knowledgeable about fashion trends.

You have access to this general inventory context (do not list these unless asked specifically):
We sell clothes for Men, Women, Kids, and Accessories.

If the user asks for specific product recommendations, answer generally about styles, colors, and combinations,
and suggest they use the main search bar for specific items in our catalog.

Keep responses concise (under 80 words) and conversational.`

// searchResponseSchema is OBJECT{productIds: ARRAY<STRING>}
var searchResponseSchema = &Schema{
	Type: TypeObject,
	Properties: map[string]*Schema{
		"productIds": {
			Type:  TypeArray,
			Items: &Schema{Type: TypeString},
		},
	},
	Required: []string{"productIds"},
}

// inventoryEntry is the condensed product projection sent with a search
type inventoryEntry struct {
	ID          string          `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Tags        string          `json:"tags"`
	Category    domain.Category `json:"category"`
}

type searchResult struct {
	ProductIDs []string `json:"productIds"`
}

// Gateway wraps a Generator with the storefront's prompts and degradation rules
type Gateway struct {
	generator Generator
	logger    *zap.Logger
}

// NewGateway creates a Gateway over generator
func NewGateway(generator Generator, logger *zap.Logger) *Gateway {
	return &Gateway{generator: generator, logger: logger}
}

// Search asks the model which catalog products match query.
// It never fails: any error yields an empty, non-nil id list.
func (g *Gateway) Search(ctx context.Context, query string, catalog []domain.Product) []string {
	prompt, err := searchPrompt(query, catalog)
	if err != nil {
		g.logger.Error("AI search error", zap.String("phase", "prompt"), zap.Error(err))
		return []string{}
	}

	text, err := g.generator.GenerateContent(ctx, GenerateRequest{
		Prompt:         prompt,
		ResponseSchema: searchResponseSchema,
	})
	if err != nil {
		g.logger.Error("AI search error", zap.String("phase", "request"), zap.Error(err))
		return []string{}
	}

	if strings.TrimSpace(text) == "" {
		text = "{}"
	}

	var result searchResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		g.logger.Error("AI search error", zap.String("phase", "parse"), zap.Error(err))
		return []string{}
	}

	if result.ProductIDs == nil {
		return []string{}
	}

	g.logger.Debug("AI search completed",
		zap.String("query", query),
		zap.Int("matches", len(result.ProductIDs)),
	)
	return result.ProductIDs
}

// Converse sends the stylist a new message with the prior transcript replayed.
// history must exclude message itself. It never fails: errors yield FallbackReply.
func (g *Gateway) Converse(ctx context.Context, history []domain.ChatMessage, message string) string {
	text, err := g.generator.GenerateContent(ctx, GenerateRequest{
		SystemInstruction: StylistInstruction,
		History:           history,
		Prompt:            message,
	})
	if err != nil {
		g.logger.Error("Chat error", zap.Error(err), zap.Int("history_turns", len(history)))
		return FallbackReply
	}

	if strings.TrimSpace(text) == "" {
		return EmptyReply
	}
	return text
}

func searchPrompt(query string, catalog []domain.Product) (string, error) {
	inventory := make([]inventoryEntry, len(catalog))
	for i, p := range catalog {
		inventory[i] = inventoryEntry{
			ID:          p.ID,
			Name:        p.Name,
			Description: p.Description,
			Tags:        strings.Join(p.Tags, ", "),
			Category:    p.Category,
		}
	}

	summary, err := json.Marshal(inventory)
	if err != nil {
		return "", fmt.Errorf("failed to marshal inventory: %w", err)
	}

	return fmt.Sprintf(`You are a smart shopping assistant.
The user is searching for: %q.

Here is our inventory:
%s

Return a JSON object with a single property "productIds" which is an array of strings.
Include only the IDs of products that match the user's intent.
If the user asks for "something for a wedding", find formal or elegant items.
If nothing matches, return an empty array.`, query, summary), nil
}
