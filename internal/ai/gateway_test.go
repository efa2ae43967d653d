package ai

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"lumina/internal/domain"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// stubGenerator answers every call with a fixed text or error
type stubGenerator struct {
	text string
	err  error
	last GenerateRequest
}

func (s *stubGenerator) GenerateContent(ctx context.Context, req GenerateRequest) (string, error) {
	s.last = req
	return s.text, s.err
}

var inventory = []domain.Product{
	{ID: "p1", Name: "Silk Gown", Description: "Floor-length silk", Category: domain.CategoryWomen, Tags: []string{"formal", "evening"}},
	{ID: "p5", Name: "Chelsea Boots", Description: "Suede boots", Category: domain.CategoryMen, Tags: []string{"shoes"}},
}

func TestGateway_SearchReturnsIDs(t *testing.T) {
	stub := &stubGenerator{text: `{"productIds":["p1","p5"]}`}
	gw := NewGateway(stub, zap.NewNop())

	ids := gw.Search(context.Background(), "something for a wedding", inventory)

	assert.Equal(t, []string{"p1", "p5"}, ids)
	assert.Same(t, searchResponseSchema, stub.last.ResponseSchema)
	assert.Empty(t, stub.last.SystemInstruction)
	assert.Contains(t, stub.last.Prompt, `"something for a wedding"`)
	assert.Contains(t, stub.last.Prompt, `"tags":"formal, evening"`)
}

func TestGateway_SearchDegradesToEmpty(t *testing.T) {
	tests := []struct {
		name string
		stub *stubGenerator
	}{
		{name: "transport error", stub: &stubGenerator{err: errors.New("connection refused")}},
		{name: "malformed json", stub: &stubGenerator{text: `{"productIds":`}},
		{name: "wrong shape", stub: &stubGenerator{text: `{"productIds":"p1"}`}},
		{name: "empty text", stub: &stubGenerator{text: "  "}},
		{name: "missing field", stub: &stubGenerator{text: `{}`}},
		{name: "null field", stub: &stubGenerator{text: `{"productIds":null}`}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ids := NewGateway(tt.stub, zap.NewNop()).Search(context.Background(), "boots", inventory)
			assert.NotNil(t, ids)
			assert.Empty(t, ids)
		})
	}
}

func TestGateway_ConverseReplaysHistory(t *testing.T) {
	stub := &stubGenerator{text: "Try a camel trench."}
	gw := NewGateway(stub, zap.NewNop())

	history := []domain.ChatMessage{{Role: domain.RoleModel, Text: domain.StylistGreeting}}
	reply := gw.Converse(context.Background(), history, "What goes with navy?")

	assert.Equal(t, "Try a camel trench.", reply)
	assert.Equal(t, StylistInstruction, stub.last.SystemInstruction)
	assert.Equal(t, history, stub.last.History)
	assert.Equal(t, "What goes with navy?", stub.last.Prompt)
	assert.Nil(t, stub.last.ResponseSchema)
}

func TestGateway_ConverseFallbacks(t *testing.T) {
	failing := NewGateway(&stubGenerator{err: errors.New("503")}, zap.NewNop())
	assert.Equal(t, FallbackReply, failing.Converse(context.Background(), nil, "hi"))

	empty := NewGateway(&stubGenerator{text: ""}, zap.NewNop())
	assert.Equal(t, EmptyReply, empty.Converse(context.Background(), nil, "hi"))
}

func TestProperty_SearchPromptCarriesInventory(t *testing.T) {
	properties := gopter.NewProperties(nil)

	properties.Property("every product id appears in the prompt inventory", prop.ForAll(
		func(query string) bool {
			prompt, err := searchPrompt(query, inventory)
			if err != nil {
				return false
			}

			start := strings.Index(prompt, "[")
			end := strings.LastIndex(prompt, "]")
			if start < 0 || end < start {
				return false
			}
			var entries []inventoryEntry
			if err := json.Unmarshal([]byte(prompt[start:end+1]), &entries); err != nil {
				return false
			}
			return len(entries) == len(inventory) && entries[0].ID == "p1" && entries[1].ID == "p5"
		},
		gen.AlphaString(),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSearchPrompt_EmptyCatalog(t *testing.T) {
	prompt, err := searchPrompt("anything", nil)
	require.NoError(t, err)
	assert.Contains(t, prompt, "[]")
}
