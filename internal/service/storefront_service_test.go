package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"lumina/internal/ai"
	"lumina/internal/catalog"
	"lumina/internal/domain"
	"lumina/internal/session"
	"lumina/internal/view"

	"github.com/google/uuid"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// Mock gateway for testing
type mockGateway struct {
	mu sync.Mutex

	results map[string][]string

	// gates, when set for a query, hold Search until closed
	gates map[string]chan struct{}

	reply        string
	chatGate     chan struct{}
	chatStarted  chan struct{}
	lastHistory  []domain.ChatMessage
	lastMessage  string
	searchCalls  int
	converseCall int
}

func newMockGateway() *mockGateway {
	return &mockGateway{
		results: make(map[string][]string),
		gates:   make(map[string]chan struct{}),
		reply:   "Try a camel trench.",
	}
}

func (m *mockGateway) Search(ctx context.Context, query string, products []domain.Product) []string {
	m.mu.Lock()
	m.searchCalls++
	gate := m.gates[query]
	ids, ok := m.results[query]
	m.mu.Unlock()

	if gate != nil {
		<-gate
	}
	if !ok {
		return []string{}
	}
	return ids
}

func (m *mockGateway) Converse(ctx context.Context, history []domain.ChatMessage, message string) string {
	m.mu.Lock()
	m.converseCall++
	m.lastHistory = history
	m.lastMessage = message
	gate, started := m.chatGate, m.chatStarted
	m.mu.Unlock()

	if started != nil {
		close(started)
	}
	if gate != nil {
		<-gate
	}
	return m.reply
}

func newTestService(t *testing.T) (StorefrontService, *mockGateway, string) {
	t.Helper()
	gw := newMockGateway()
	svc := NewStorefrontService(
		catalog.NewCached(catalog.NewStatic(), zap.NewNop()),
		session.NewMemoryStore(0),
		gw,
		zap.NewNop(),
	)
	return svc, gw, uuid.NewString()
}

func productIDs(m view.Model) []string {
	ids := make([]string, len(m.Products))
	for i, p := range m.Products {
		ids[i] = p.ID
	}
	return ids
}

func TestView_FreshSession(t *testing.T) {
	svc, _, sid := newTestService(t)

	m, err := svc.View(context.Background(), sid)
	require.NoError(t, err)

	assert.Len(t, m.Products, 12)
	assert.Equal(t, "12 items found", m.CountLabel)
	assert.Equal(t, "All Collection", m.Heading)
	assert.True(t, m.ShowHero)

	transcript, err := svc.Transcript(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, transcript, 1)
	assert.Equal(t, domain.StylistGreeting, transcript[0].Text)
}

func TestSelectCategory_Kids(t *testing.T) {
	svc, _, sid := newTestService(t)

	m, err := svc.SelectCategory(context.Background(), sid, domain.CategoryKids)
	require.NoError(t, err)

	assert.Equal(t, []string{"p8", "p12"}, productIDs(m))
	assert.Equal(t, "Kids Collection", m.Heading)
	assert.False(t, m.ShowHero)
}

func TestSearch_AppliesResult(t *testing.T) {
	svc, gw, sid := newTestService(t)
	gw.results["cozy winter"] = []string{"p9", "p2"}
	ctx := context.Background()

	_, err := svc.SelectCategory(ctx, sid, domain.CategoryKids)
	require.NoError(t, err)
	_, err = svc.OpenSurface(ctx, sid, view.SurfaceSearch)
	require.NoError(t, err)

	m, err := svc.Search(ctx, sid, "  cozy winter  ")
	require.NoError(t, err)

	// Catalog order, every category
	assert.Equal(t, []string{"p2", "p9"}, productIDs(m))
	assert.Equal(t, `Search Results: "cozy winter"`, m.Heading)
	assert.Equal(t, domain.CategoryAll, m.ActiveCategory)
	assert.True(t, m.CanClearSearch)
	assert.False(t, m.IsSearching)
	assert.False(t, m.Surfaces.SearchOverlay)
}

func TestSearch_FailureShowsEmptyState(t *testing.T) {
	svc, _, sid := newTestService(t)

	m, err := svc.Search(context.Background(), sid, "spacesuit")
	require.NoError(t, err)

	assert.Empty(t, m.Products)
	require.NotNil(t, m.Empty)
	assert.Equal(t, view.EmptyTitle, m.Empty.Title)
	assert.Equal(t, "0 items found", m.CountLabel)
}

func TestSearch_BlankQueryIsNoop(t *testing.T) {
	svc, gw, sid := newTestService(t)

	m, err := svc.Search(context.Background(), sid, "   ")
	require.NoError(t, err)

	assert.Len(t, m.Products, 12)
	assert.Zero(t, gw.searchCalls)
}

func TestSearch_StaleResultDiscarded(t *testing.T) {
	svc, gw, sid := newTestService(t)
	ctx := context.Background()

	gate := make(chan struct{})
	gw.gates["dresses"] = gate
	gw.results["dresses"] = []string{"p1", "p3"}
	gw.results["boots"] = []string{"p5"}

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := svc.Search(ctx, sid, "dresses")
		assert.NoError(t, err)
	}()

	// Wait until the first search is in flight
	require.Eventually(t, func() bool {
		m, err := svc.View(ctx, sid)
		return err == nil && m.IsSearching
	}, time.Second, 5*time.Millisecond)

	m, err := svc.Search(ctx, sid, "boots")
	require.NoError(t, err)
	assert.Equal(t, []string{"p5"}, productIDs(m))

	close(gate)
	<-done

	m, err = svc.View(ctx, sid)
	require.NoError(t, err)
	assert.Equal(t, "boots", m.ActiveQuery)
	assert.Equal(t, []string{"p5"}, productIDs(m))
	assert.False(t, m.IsSearching)
}

func TestClearSearch(t *testing.T) {
	svc, gw, sid := newTestService(t)
	gw.results["boots"] = []string{"p5"}
	ctx := context.Background()

	_, err := svc.Search(ctx, sid, "boots")
	require.NoError(t, err)

	m, err := svc.ClearSearch(ctx, sid)
	require.NoError(t, err)
	assert.Len(t, m.Products, 12)
	assert.Empty(t, m.ActiveQuery)
	assert.True(t, m.ShowHero)
}

func TestProductModalFlow(t *testing.T) {
	svc, _, sid := newTestService(t)
	ctx := context.Background()

	_, err := svc.OpenProduct(ctx, sid, "p404")
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	m, err := svc.OpenProduct(ctx, sid, "p1")
	require.NoError(t, err)
	require.NotNil(t, m.Product)
	assert.Equal(t, "p1", m.Product.ID)

	// No size chosen yet
	res, err := svc.AddSelectedToCart(ctx, sid)
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Zero(t, res.View.Cart.Count)

	_, err = svc.SelectSize(ctx, sid, "XXL")
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = svc.SelectSize(ctx, sid, "M")
	require.NoError(t, err)

	res, err = svc.AddSelectedToCart(ctx, sid)
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, 1, res.View.Cart.Count)
	assert.True(t, res.View.Surfaces.CartDrawer)
	assert.Nil(t, res.View.Product)
}

func TestCartFlow(t *testing.T) {
	svc, _, sid := newTestService(t)
	ctx := context.Background()

	m, err := svc.AddToCart(ctx, sid, "p1", "M", 1)
	require.NoError(t, err)
	assert.True(t, m.Surfaces.CartDrawer)

	_, err = svc.AddToCart(ctx, sid, "p1", "M", 1)
	require.NoError(t, err)

	summary, err := svc.Cart(ctx, sid)
	require.NoError(t, err)
	require.Len(t, summary.Lines, 1)
	assert.Equal(t, 2, summary.Count)

	summary, err = svc.AdjustCartLine(ctx, sid, "p1", "M", -1)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Count)

	summary, err = svc.AdjustCartLine(ctx, sid, "p1", "M", -1)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	summary, err = svc.AdjustCartLine(ctx, sid, "p1", "M", -1)
	require.NoError(t, err)
	assert.Empty(t, summary.Lines)

	_, err = svc.AddToCart(ctx, sid, "p2", "L", 3)
	require.NoError(t, err)
	summary, err = svc.RemoveCartLine(ctx, sid, "p2", "L")
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
	assert.Zero(t, summary.Subtotal)
}

func TestAddToCart_Rejections(t *testing.T) {
	svc, _, sid := newTestService(t)
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, sid, "p1", "XXL", 1)
	assert.ErrorIs(t, err, ErrInvalidSize)

	_, err = svc.AddToCart(ctx, sid, "p1", "M", 0)
	assert.ErrorIs(t, err, ErrInvalidQuantity)

	_, err = svc.AddToCart(ctx, sid, "p404", "M", 1)
	assert.ErrorIs(t, err, catalog.ErrProductNotFound)

	// Failed intents leave the session untouched
	summary, err := svc.Cart(ctx, sid)
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
}

func TestSurfaces(t *testing.T) {
	svc, _, sid := newTestService(t)
	ctx := context.Background()

	_, err := svc.OpenSurface(ctx, sid, view.Surface("checkout"))
	assert.ErrorIs(t, err, ErrInvalidSurface)

	m, err := svc.OpenSurface(ctx, sid, view.SurfaceChat)
	require.NoError(t, err)
	assert.True(t, m.Surfaces.ChatPanel)

	m, err = svc.ToggleMobileNav(ctx, sid)
	require.NoError(t, err)
	assert.True(t, m.Surfaces.MobileNav)

	m, err = svc.SelectCategory(ctx, sid, domain.CategoryMen)
	require.NoError(t, err)
	assert.False(t, m.Surfaces.MobileNav)
	assert.True(t, m.Surfaces.ChatPanel)

	m, err = svc.CloseSurface(ctx, sid, view.SurfaceChat)
	require.NoError(t, err)
	assert.False(t, m.Surfaces.ChatPanel)
}

func TestChat_AppendsUserAndModelTurns(t *testing.T) {
	svc, gw, sid := newTestService(t)
	ctx := context.Background()

	res, err := svc.Chat(ctx, sid, "What goes with navy?")
	require.NoError(t, err)
	require.True(t, res.Accepted)

	assert.Equal(t, "Try a camel trench.", res.Reply)
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleUser, Text: "What goes with navy?"}, res.Transcript[1])
	assert.Equal(t, domain.ChatMessage{Role: domain.RoleModel, Text: "Try a camel trench."}, res.Transcript[2])

	// History replayed to the model excludes the new message
	require.Len(t, gw.lastHistory, 1)
	assert.Equal(t, domain.StylistGreeting, gw.lastHistory[0].Text)
	assert.Equal(t, "What goes with navy?", gw.lastMessage)
}

func TestChat_BlankMessageNotAccepted(t *testing.T) {
	svc, gw, sid := newTestService(t)

	res, err := svc.Chat(context.Background(), sid, "   ")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Len(t, res.Transcript, 1)
	assert.Zero(t, gw.converseCall)
}

func TestChat_RejectedWhilePending(t *testing.T) {
	svc, gw, sid := newTestService(t)
	ctx := context.Background()

	gw.chatGate = make(chan struct{})
	gw.chatStarted = make(chan struct{})

	done := make(chan ChatResult)
	go func() {
		res, err := svc.Chat(ctx, sid, "first")
		assert.NoError(t, err)
		done <- res
	}()
	<-gw.chatStarted

	res, err := svc.Chat(ctx, sid, "second")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Len(t, res.Transcript, 2)

	close(gw.chatGate)
	first := <-done
	assert.True(t, first.Accepted)
	assert.Len(t, first.Transcript, 3)
}

func TestProperty_ChatTranscriptGrowsByTwo(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 25
	properties := gopter.NewProperties(parameters)

	properties.Property("each accepted message adds one user and one model turn", prop.ForAll(
		func(messages []string) bool {
			svc, _, sid := newTestService(t)
			ctx := context.Background()

			want := 1
			for _, msg := range messages {
				res, err := svc.Chat(ctx, sid, msg)
				if err != nil || !res.Accepted {
					t.Logf("FAIL: message %q not accepted: %v", msg, err)
					return false
				}
				want += 2
				if len(res.Transcript) != want {
					t.Logf("FAIL: transcript has %d turns, want %d", len(res.Transcript), want)
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.AlphaString().SuchThat(func(s string) bool { return s != "" })),
	))

	properties.TestingRun(t, gopter.ConsoleReporter(false))
}

func TestSessions_AreIsolated(t *testing.T) {
	svc, _, first := newTestService(t)
	second := uuid.NewString()
	ctx := context.Background()

	_, err := svc.AddToCart(ctx, first, "p1", "M", 1)
	require.NoError(t, err)

	summary, err := svc.Cart(ctx, second)
	require.NoError(t, err)
	assert.Zero(t, summary.Count)
}

// failingGenerator simulates a transport error on every model call
type failingGenerator struct{}

func (failingGenerator) GenerateContent(ctx context.Context, req ai.GenerateRequest) (string, error) {
	return "", errors.New("dial tcp: connection refused")
}

func newDegradedService() StorefrontService {
	return NewStorefrontService(
		catalog.NewCached(catalog.NewStatic(), zap.NewNop()),
		session.NewMemoryStore(0),
		ai.NewGateway(failingGenerator{}, zap.NewNop()),
		zap.NewNop(),
	)
}

func TestSearch_TransportErrorYieldsEmptyState(t *testing.T) {
	svc := newDegradedService()

	m, err := svc.Search(context.Background(), uuid.NewString(), "linen for the beach")
	require.NoError(t, err)

	assert.Empty(t, m.Products)
	require.NotNil(t, m.Empty)
	assert.Equal(t, "No styles found.", m.Empty.Title)
	assert.False(t, m.IsSearching)
}

func TestChat_TransportErrorAppendsFallback(t *testing.T) {
	svc := newDegradedService()
	sid := uuid.NewString()

	res, err := svc.Chat(context.Background(), sid, "Help me pick a scarf")
	require.NoError(t, err)
	require.True(t, res.Accepted)

	assert.Equal(t, ai.FallbackReply, res.Reply)
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, domain.RoleModel, res.Transcript[2].Role)
	assert.Equal(t, ai.FallbackReply, res.Transcript[2].Text)

	// The next message is accepted; the failure did not leave chat pending
	res, err = svc.Chat(context.Background(), sid, "Anything in red?")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Len(t, res.Transcript, 5)
}

// flakyStore fails the Save calls whose 1-based numbers are listed in failOn
type flakyStore struct {
	*session.MemoryStore

	mu     sync.Mutex
	saves  int
	failOn map[int]bool
}

func newFlakyStore(failOn ...int) *flakyStore {
	f := &flakyStore{MemoryStore: session.NewMemoryStore(0), failOn: map[int]bool{}}
	for _, n := range failOn {
		f.failOn[n] = true
	}
	return f
}

func (f *flakyStore) Save(ctx context.Context, s *session.Session) error {
	f.mu.Lock()
	f.saves++
	fail := f.failOn[f.saves]
	f.mu.Unlock()

	if fail {
		return errors.New("transient store failure")
	}
	return f.MemoryStore.Save(ctx, s)
}

func staticIDs(t *testing.T) []string {
	t.Helper()
	products, err := catalog.NewStatic().List(context.Background())
	require.NoError(t, err)
	ids := make([]string, len(products))
	for i, p := range products {
		ids[i] = p.ID
	}
	return ids
}

func newServiceWithStore(store session.Store, gw AIGateway) StorefrontService {
	return NewStorefrontService(
		catalog.NewCached(catalog.NewStatic(), zap.NewNop()),
		store,
		gw,
		zap.NewNop(),
	)
}

func TestChat_ReplySaveRetriedAfterTransientFailure(t *testing.T) {
	gw := newMockGateway()
	gw.reply = "Try the silk scarf."
	store := newFlakyStore(2)
	svc := newServiceWithStore(store, gw)
	sid := uuid.NewString()

	res, err := svc.Chat(context.Background(), sid, "hello")
	require.NoError(t, err)
	require.True(t, res.Accepted)
	assert.Equal(t, "Try the silk scarf.", res.Reply)
	require.Len(t, res.Transcript, 3)

	// Stored transcript carries both turns and the session is not left pending
	stored, err := store.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.False(t, stored.View.ChatPending)
	require.Len(t, stored.Transcript, 3)
	assert.Equal(t, domain.RoleModel, stored.Transcript[2].Role)

	res, err = svc.Chat(context.Background(), sid, "and for winter?")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Len(t, res.Transcript, 5)
}

func TestChat_ReplyDeliveredWhenStoreStaysDown(t *testing.T) {
	gw := newMockGateway()
	gw.reply = "Linen works well."
	store := newFlakyStore(2, 3, 4)
	svc := newServiceWithStore(store, gw)
	sid := uuid.NewString()

	res, err := svc.Chat(context.Background(), sid, "beach outfit?")
	require.NoError(t, err)
	assert.True(t, res.Accepted)
	assert.Equal(t, "Linen works well.", res.Reply)
	require.Len(t, res.Transcript, 3)
	assert.Equal(t, "Linen works well.", res.Transcript[2].Text)
}

func TestChat_StalePendingIsReleased(t *testing.T) {
	store := session.NewMemoryStore(0)
	gw := newMockGateway()
	gw.reply = "Here you go."
	svc := newServiceWithStore(store, gw)
	sid := uuid.NewString()

	// A session whose reply never landed long ago
	sess := session.New(staticIDs(t))
	sess.ID = sid
	sess.Transcript = append(sess.Transcript, domain.ChatMessage{Role: domain.RoleUser, Text: "lost"})
	sess.View.ChatPending = true
	sess.ChatPendingSince = time.Now().UTC().Add(-staleChatAfter - time.Minute)
	require.NoError(t, store.Save(context.Background(), sess))

	res, err := svc.Chat(context.Background(), sid, "still there?")
	require.NoError(t, err)
	require.True(t, res.Accepted)

	require.Len(t, res.Transcript, 5)
	assert.Equal(t, domain.RoleModel, res.Transcript[2].Role)
	assert.Equal(t, ai.FallbackReply, res.Transcript[2].Text)
	assert.Equal(t, "still there?", res.Transcript[3].Text)
	assert.Equal(t, "Here you go.", res.Transcript[4].Text)
}

func TestChat_RecentPendingStillRejected(t *testing.T) {
	store := session.NewMemoryStore(0)
	svc := newServiceWithStore(store, newMockGateway())
	sid := uuid.NewString()

	sess := session.New(staticIDs(t))
	sess.ID = sid
	sess.View.ChatPending = true
	sess.ChatPendingSince = time.Now().UTC()
	require.NoError(t, store.Save(context.Background(), sess))

	res, err := svc.Chat(context.Background(), sid, "hello?")
	require.NoError(t, err)
	assert.False(t, res.Accepted)
	assert.Len(t, res.Transcript, 1)
}

func TestSearch_ResolveSaveRetriedAfterTransientFailure(t *testing.T) {
	gw := newMockGateway()
	gw.results["hats"] = []string{"p3"}
	store := newFlakyStore(2)
	svc := newServiceWithStore(store, gw)
	sid := uuid.NewString()

	m, err := svc.Search(context.Background(), sid, "hats")
	require.NoError(t, err)
	assert.False(t, m.IsSearching)
	assert.Equal(t, []string{"p3"}, productIDs(m))

	stored, err := store.Get(context.Background(), sid)
	require.NoError(t, err)
	assert.False(t, stored.View.IsSearching)
	assert.Equal(t, "hats", stored.View.ActiveQuery)
}
