package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"lumina/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// countingSource records how often the catalog was read
type countingSource struct {
	products []domain.Product
	err      error
	delay    time.Duration
	calls    atomic.Int32
}

func (s *countingSource) List(ctx context.Context) ([]domain.Product, error) {
	s.calls.Add(1)
	time.Sleep(s.delay)
	return s.products, s.err
}

func TestNew_RejectsDuplicateIDs(t *testing.T) {
	_, err := New([]domain.Product{{ID: "p1"}, {ID: "p1"}})
	assert.Error(t, err)

	_, err = New([]domain.Product{{ID: ""}})
	assert.Error(t, err)
}

func TestCatalog_Lookup(t *testing.T) {
	products, err := NewStatic().List(context.Background())
	require.NoError(t, err)

	cat, err := New(products)
	require.NoError(t, err)

	assert.Equal(t, 12, cat.Len())
	assert.Equal(t, "p1", cat.IDs()[0])
	assert.Equal(t, "p12", cat.IDs()[11])

	p, err := cat.Lookup("p8")
	require.NoError(t, err)
	assert.Equal(t, domain.CategoryKids, p.Category)

	_, err = cat.Lookup("p404")
	assert.ErrorIs(t, err, ErrProductNotFound)
	assert.False(t, cat.Contains("p404"))
}

func TestStatic_ReturnsCopies(t *testing.T) {
	static := NewStatic()

	first, _ := static.List(context.Background())
	first[0].Name = "changed"
	first[0].Tags[0] = "changed"

	second, _ := static.List(context.Background())
	assert.NotEqual(t, "changed", second[0].Name)
	assert.NotEqual(t, "changed", second[0].Tags[0])
}

func TestSeedCatalog_IsValid(t *testing.T) {
	products, _ := NewStatic().List(context.Background())

	kids := 0
	for _, p := range products {
		assert.NotEmpty(t, p.Name, p.ID)
		assert.Positive(t, p.Price, p.ID)
		assert.NotEmpty(t, p.Tags, p.ID)
		_, ok := domain.ParseCategory(string(p.Category))
		assert.True(t, ok, p.ID)
		if p.Category == domain.CategoryKids {
			kids++
		}
	}
	assert.Equal(t, 2, kids)
}

func TestCached_LoadsOnce(t *testing.T) {
	source := &countingSource{
		products: []domain.Product{{ID: "p1"}, {ID: "p2"}},
		delay:    20 * time.Millisecond,
	}
	cached := NewCached(source, zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			cat, err := cached.Load(context.Background())
			assert.NoError(t, err)
			assert.Equal(t, 2, cat.Len())
		}()
	}
	wg.Wait()

	_, err := cached.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int32(1), source.calls.Load())
}

func TestCached_RetriesAfterFailure(t *testing.T) {
	source := &countingSource{err: errors.New("connection refused")}
	cached := NewCached(source, zap.NewNop())

	_, err := cached.Load(context.Background())
	require.Error(t, err)

	source.err = nil
	source.products = []domain.Product{{ID: "p1"}}

	cat, err := cached.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, cat.Len())
	assert.Equal(t, int32(2), source.calls.Load())
}

func TestCached_EmptySource(t *testing.T) {
	cached := NewCached(&countingSource{}, zap.NewNop())

	_, err := cached.Load(context.Background())
	assert.ErrorIs(t, err, ErrEmptyCatalog)
}
