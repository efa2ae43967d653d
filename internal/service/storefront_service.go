package service

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"strings"
	"sync"
	"time"

	"lumina/internal/ai"
	"lumina/internal/cart"
	"lumina/internal/catalog"
	"lumina/internal/domain"
	"lumina/internal/session"
	"lumina/internal/view"

	"go.uber.org/zap"
)

var (
	ErrInvalidSize     = errors.New("invalid size")
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrInvalidSurface  = errors.New("invalid surface")
)

// CatalogLoader returns the immutable catalog snapshot
type CatalogLoader interface {
	Load(ctx context.Context) (*catalog.Catalog, error)
}

// AIGateway is the best-effort boundary to the language model.
// Neither call returns an error.
type AIGateway interface {
	Search(ctx context.Context, query string, products []domain.Product) []string
	Converse(ctx context.Context, history []domain.ChatMessage, message string) string
}

// ChatResult is the transcript after a chat intent
type ChatResult struct {
	Accepted   bool                 `json:"accepted"`
	Reply      string               `json:"reply,omitempty"`
	Transcript []domain.ChatMessage `json:"transcript"`
}

// AddResult reports whether an add-to-cart intent was applied
type AddResult struct {
	Accepted bool       `json:"accepted"`
	View     view.Model `json:"view"`
}

// StorefrontService defines the per-session storefront intents
type StorefrontService interface {
	Catalog(ctx context.Context) (*catalog.Catalog, error)
	View(ctx context.Context, sessionID string) (view.Model, error)

	SelectCategory(ctx context.Context, sessionID string, category domain.Category) (view.Model, error)
	OpenSurface(ctx context.Context, sessionID string, surface view.Surface) (view.Model, error)
	CloseSurface(ctx context.Context, sessionID string, surface view.Surface) (view.Model, error)
	ToggleMobileNav(ctx context.Context, sessionID string) (view.Model, error)

	OpenProduct(ctx context.Context, sessionID, productID string) (view.Model, error)
	CloseProduct(ctx context.Context, sessionID string) (view.Model, error)
	SelectSize(ctx context.Context, sessionID, size string) (view.Model, error)
	AddSelectedToCart(ctx context.Context, sessionID string) (AddResult, error)

	Cart(ctx context.Context, sessionID string) (view.CartSummary, error)
	AddToCart(ctx context.Context, sessionID, productID, size string, quantity int) (view.Model, error)
	AdjustCartLine(ctx context.Context, sessionID, productID, size string, delta int) (view.CartSummary, error)
	RemoveCartLine(ctx context.Context, sessionID, productID, size string) (view.CartSummary, error)

	Search(ctx context.Context, sessionID, query string) (view.Model, error)
	ClearSearch(ctx context.Context, sessionID string) (view.Model, error)

	Chat(ctx context.Context, sessionID, message string) (ChatResult, error)
	Transcript(ctx context.Context, sessionID string) ([]domain.ChatMessage, error)
}

const (
	// lockStripes bounds the number of session mutexes
	lockStripes = 64

	// settleAttempts and settleDelay bound the retries of the save that
	// lands an AI result; the delay doubles after each failed attempt
	settleAttempts = 3
	settleDelay    = 50 * time.Millisecond

	// staleChatAfter releases a pending chat whose reply never landed
	staleChatAfter = 2 * time.Minute
)

type storefrontService struct {
	catalog CatalogLoader
	store   session.Store
	gateway AIGateway
	logger  *zap.Logger

	locks [lockStripes]sync.Mutex
}

// NewStorefrontService creates a new instance of StorefrontService
func NewStorefrontService(loader CatalogLoader, store session.Store, gateway AIGateway, logger *zap.Logger) StorefrontService {
	return &storefrontService{
		catalog: loader,
		store:   store,
		gateway: gateway,
		logger:  logger,
	}
}

// Catalog returns the loaded catalog snapshot
func (s *storefrontService) Catalog(ctx context.Context) (*catalog.Catalog, error) {
	return s.catalog.Load(ctx)
}

// View projects the session without changing it
func (s *storefrontService) View(ctx context.Context, sessionID string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(*catalog.Catalog, *session.Session) error { return nil })
}

// SelectCategory resets the scope to the full catalog and clears the search
func (s *storefrontService) SelectCategory(ctx context.Context, sessionID string, category domain.Category) (view.Model, error) {
	return s.apply(ctx, sessionID, func(cat *catalog.Catalog, sess *session.Session) error {
		sess.View = view.SelectCategory(sess.View, category, cat.IDs())
		return nil
	})
}

// OpenSurface shows a panel
func (s *storefrontService) OpenSurface(ctx context.Context, sessionID string, surface view.Surface) (view.Model, error) {
	return s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		if _, ok := view.ParseSurface(string(surface)); !ok {
			return ErrInvalidSurface
		}
		sess.View = view.Open(sess.View, surface)
		return nil
	})
}

// CloseSurface hides a panel
func (s *storefrontService) CloseSurface(ctx context.Context, sessionID string, surface view.Surface) (view.Model, error) {
	return s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		if _, ok := view.ParseSurface(string(surface)); !ok {
			return ErrInvalidSurface
		}
		sess.View = view.Close(sess.View, surface)
		return nil
	})
}

// ToggleMobileNav flips the mobile navigation menu
func (s *storefrontService) ToggleMobileNav(ctx context.Context, sessionID string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.View = view.ToggleMobileNav(sess.View)
		return nil
	})
}

// OpenProduct opens the modal for a catalog product
func (s *storefrontService) OpenProduct(ctx context.Context, sessionID, productID string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(cat *catalog.Catalog, sess *session.Session) error {
		if !cat.Contains(productID) {
			return catalog.ErrProductNotFound
		}
		sess.View = view.OpenProduct(sess.View, productID)
		return nil
	})
}

// CloseProduct closes the modal and resets the size choice
func (s *storefrontService) CloseProduct(ctx context.Context, sessionID string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.View = view.CloseProduct(sess.View)
		return nil
	})
}

// SelectSize records the modal's size choice
func (s *storefrontService) SelectSize(ctx context.Context, sessionID, size string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		if !domain.ValidSize(size) {
			return ErrInvalidSize
		}
		sess.View = view.SelectSize(sess.View, size)
		return nil
	})
}

// AddSelectedToCart adds one unit of the modal's product in the chosen size.
// Without a chosen size the intent is rejected as a no-op, not an error.
func (s *storefrontService) AddSelectedToCart(ctx context.Context, sessionID string) (AddResult, error) {
	accepted := false
	model, err := s.apply(ctx, sessionID, func(cat *catalog.Catalog, sess *session.Session) error {
		if !view.CanAddSelected(sess.View) {
			return nil
		}
		product, err := cat.Lookup(sess.View.SelectedProduct)
		if err != nil {
			return err
		}

		var openCart bool
		sess.Cart, openCart = cart.Add(sess.Cart, product, sess.View.SelectedSize, 1)
		if openCart {
			sess.View = view.AddedToCart(sess.View, true)
		}
		accepted = true
		return nil
	})
	if err != nil {
		return AddResult{}, err
	}

	return AddResult{Accepted: accepted, View: model}, nil
}

// Cart returns the ledger with its count and subtotal
func (s *storefrontService) Cart(ctx context.Context, sessionID string) (view.CartSummary, error) {
	model, err := s.View(ctx, sessionID)
	if err != nil {
		return view.CartSummary{}, err
	}
	return model.Cart, nil
}

// AddToCart merges quantity units of a product size into the ledger
func (s *storefrontService) AddToCart(ctx context.Context, sessionID, productID, size string, quantity int) (view.Model, error) {
	return s.apply(ctx, sessionID, func(cat *catalog.Catalog, sess *session.Session) error {
		if !domain.ValidSize(size) {
			return ErrInvalidSize
		}
		if quantity <= 0 {
			return ErrInvalidQuantity
		}
		product, err := cat.Lookup(productID)
		if err != nil {
			return err
		}

		var openCart bool
		sess.Cart, openCart = cart.Add(sess.Cart, product, size, quantity)
		if openCart {
			sess.View = view.AddedToCart(sess.View, false)
		}
		return nil
	})
}

// AdjustCartLine changes a line by delta, dropping it at zero
func (s *storefrontService) AdjustCartLine(ctx context.Context, sessionID, productID, size string, delta int) (view.CartSummary, error) {
	model, err := s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.Cart = cart.Adjust(sess.Cart, productID, size, delta)
		return nil
	})
	if err != nil {
		return view.CartSummary{}, err
	}
	return model.Cart, nil
}

// RemoveCartLine drops a line
func (s *storefrontService) RemoveCartLine(ctx context.Context, sessionID, productID, size string) (view.CartSummary, error) {
	model, err := s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.Cart = cart.Remove(sess.Cart, productID, size)
		return nil
	})
	if err != nil {
		return view.CartSummary{}, err
	}
	return model.Cart, nil
}

// Search runs an AI search and applies its result to the session.
// The model call happens outside the session lock; a result that resolves
// after a newer search began is discarded.
func (s *storefrontService) Search(ctx context.Context, sessionID, query string) (view.Model, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return s.View(ctx, sessionID)
	}

	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return view.Model{}, err
	}

	var seq uint64
	if _, err := s.apply(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.View, seq = view.BeginSearch(sess.View)
		return nil
	}); err != nil {
		return view.Model{}, err
	}

	// The request outlives a disconnecting client; the result still lands in the session.
	ids := s.gateway.Search(context.WithoutCancel(ctx), query, cat.Products())

	sess, err := s.settle(context.WithoutCancel(ctx), sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		var applied bool
		sess.View, applied = view.ResolveSearch(sess.View, seq, query, ids)
		if !applied {
			s.logger.Debug("Discarded stale search result",
				zap.String("session_id", sessionID),
				zap.Uint64("seq", seq),
				zap.Uint64("latest_seq", sess.View.SearchSeq),
			)
		}
		return nil
	})
	if err != nil {
		return view.Model{}, err
	}

	return view.Project(sess.View, cat.Products(), sess.Cart), nil
}

// ClearSearch restores the full catalog scope
func (s *storefrontService) ClearSearch(ctx context.Context, sessionID string) (view.Model, error) {
	return s.apply(ctx, sessionID, func(cat *catalog.Catalog, sess *session.Session) error {
		sess.View = view.ClearSearch(sess.View, cat.IDs())
		return nil
	})
}

// Chat appends the user's turn, asks the stylist, then appends the reply.
// A message sent while a reply is pending is not accepted.
func (s *storefrontService) Chat(ctx context.Context, sessionID, message string) (ChatResult, error) {
	message = strings.TrimSpace(message)

	var (
		history  []domain.ChatMessage
		accepted bool
	)
	sess, err := s.mutate(ctx, sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		if message == "" {
			return nil
		}
		if sess.View.ChatPending {
			if time.Since(sess.ChatPendingSince) < staleChatAfter {
				return nil
			}
			s.logger.Warn("Releasing stale pending chat", zap.String("session_id", sessionID))
			sess.Transcript = append(sess.Transcript, domain.ChatMessage{Role: domain.RoleModel, Text: ai.FallbackReply})
		}
		history = append([]domain.ChatMessage(nil), sess.Transcript...)
		sess.Transcript = append(sess.Transcript, domain.ChatMessage{Role: domain.RoleUser, Text: message})
		sess.View.ChatPending = true
		sess.ChatPendingSince = time.Now().UTC()
		accepted = true
		return nil
	})
	if err != nil {
		return ChatResult{}, err
	}
	if !accepted {
		return ChatResult{Accepted: false, Transcript: sess.Transcript}, nil
	}

	reply := s.gateway.Converse(context.WithoutCancel(ctx), history, message)
	modelTurn := domain.ChatMessage{Role: domain.RoleModel, Text: reply}

	settled, err := s.settle(context.WithoutCancel(ctx), sessionID, func(_ *catalog.Catalog, sess *session.Session) error {
		sess.Transcript = append(sess.Transcript, modelTurn)
		sess.View.ChatPending = false
		sess.ChatPendingSince = time.Time{}
		return nil
	})
	if err != nil {
		// The reply is still delivered; the stored flag expires after staleChatAfter
		s.logger.Error("Failed to store stylist reply",
			zap.String("session_id", sessionID),
			zap.Error(err),
		)
		transcript := append(append([]domain.ChatMessage(nil), sess.Transcript...), modelTurn)
		return ChatResult{Accepted: true, Reply: reply, Transcript: transcript}, nil
	}

	return ChatResult{Accepted: true, Reply: reply, Transcript: settled.Transcript}, nil
}

// Transcript returns the chat so far
func (s *storefrontService) Transcript(ctx context.Context, sessionID string) ([]domain.ChatMessage, error) {
	sess, err := s.mutate(ctx, sessionID, func(*catalog.Catalog, *session.Session) error { return nil })
	if err != nil {
		return nil, err
	}
	return sess.Transcript, nil
}

// apply runs fn under the session lock and projects the resulting view
func (s *storefrontService) apply(ctx context.Context, sessionID string, fn func(*catalog.Catalog, *session.Session) error) (view.Model, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return view.Model{}, err
	}

	sess, err := s.mutate(ctx, sessionID, fn)
	if err != nil {
		return view.Model{}, err
	}

	return view.Project(sess.View, cat.Products(), sess.Cart), nil
}

// mutate loads (or starts) the session, applies fn and saves the result.
// Nothing is saved when fn fails.
func (s *storefrontService) mutate(ctx context.Context, sessionID string, fn func(*catalog.Catalog, *session.Session) error) (*session.Session, error) {
	cat, err := s.catalog.Load(ctx)
	if err != nil {
		return nil, err
	}

	lock := s.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := s.store.Get(ctx, sessionID)
	if errors.Is(err, session.ErrSessionNotFound) {
		sess = session.New(cat.IDs())
		sess.ID = sessionID
		s.logger.Debug("Session started", zap.String("session_id", sessionID))
	} else if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if err := fn(cat, sess); err != nil {
		return nil, err
	}

	sess.UpdatedAt = time.Now().UTC()
	if err := s.store.Save(ctx, sess); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return sess, nil
}

// settle lands the result of an AI call, retrying transient store failures.
// Each attempt reloads the session, so fn sees the latest state.
func (s *storefrontService) settle(ctx context.Context, sessionID string, fn func(*catalog.Catalog, *session.Session) error) (*session.Session, error) {
	var lastErr error
	for attempt := 0; attempt < settleAttempts; attempt++ {
		if attempt > 0 {
			delay := settleDelay * time.Duration(1<<(attempt-1))
			s.logger.Warn("Retrying session update",
				zap.String("session_id", sessionID),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
				zap.Error(lastErr),
			)
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		sess, err := s.mutate(ctx, sessionID, fn)
		if err == nil {
			return sess, nil
		}
		lastErr = err
	}
	return nil, lastErr
}

func (s *storefrontService) lockFor(sessionID string) *sync.Mutex {
	h := fnv.New32a()
	h.Write([]byte(sessionID))
	return &s.locks[h.Sum32()%lockStripes]
}
