// Package guard suppresses repeated delivery of the same logical message
// within a retention window.
package guard

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"strings"
	"time"
)

// DefaultRetention is how long a fingerprint stays registered.
const DefaultRetention = 10 * time.Minute

// noOrder stands in for a missing order or request identifier.
const noOrder = "no-order"

// Store records fingerprints with an expiry.
type Store interface {
	// Acquire registers key unless it is already present. It reports whether
	// the key was newly registered.
	Acquire(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// Exists reports whether key is currently registered.
	Exists(ctx context.Context, key string) (bool, error)

	// Release removes key. Releasing an unknown key is not an error.
	Release(ctx context.Context, key string) error
}

// Key identifies a logical send request.
//
// Template and Content only take part when Subject is empty, so requests
// without an explicit subject are told apart by what they would render.
type Key struct {
	OrderID   string
	Recipient string
	Subject   string
	Template  string
	Content   string
}

// Fingerprint returns the lower-cased "order|recipient|subject" digest.
func (k Key) Fingerprint() string {
	order := k.OrderID
	if strings.TrimSpace(order) == "" {
		order = noOrder
	}
	subject := strings.TrimSpace(k.Subject)
	raw := strings.ToLower(order + "|" + strings.TrimSpace(k.Recipient) + "|" + subject)
	if subject == "" {
		raw += "|" + strings.ToLower(strings.TrimSpace(k.Template)) + "|" + k.Content
	}
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}

// Guard tracks fingerprints of in-flight and recently sent messages.
type Guard struct {
	store     Store
	retention time.Duration
}

// New creates a Guard. A nil store defaults to an in-memory store and a
// non-positive retention to DefaultRetention.
func New(store Store, retention time.Duration) *Guard {
	if store == nil {
		store = NewMemoryStore()
	}
	if retention <= 0 {
		retention = DefaultRetention
	}
	return &Guard{store: store, retention: retention}
}

// Retention returns the configured retention window.
func (g *Guard) Retention() time.Duration {
	return g.retention
}

// ShouldSuppress reports whether k is already registered.
func (g *Guard) ShouldSuppress(ctx context.Context, k Key) (bool, error) {
	return g.store.Exists(ctx, k.Fingerprint())
}

// Register records fingerprint for the retention window.
func (g *Guard) Register(ctx context.Context, fingerprint string) error {
	_, err := g.store.Acquire(ctx, fingerprint, g.retention)
	return err
}

// Acquire checks and registers k in one step. It returns the fingerprint
// and false when k was already registered.
func (g *Guard) Acquire(ctx context.Context, k Key) (string, bool, error) {
	fp := k.Fingerprint()
	ok, err := g.store.Acquire(ctx, fp, g.retention)
	return fp, ok, err
}

// Release forgets fingerprint so the same request may be sent again.
func (g *Guard) Release(ctx context.Context, fingerprint string) error {
	return g.store.Release(ctx, fingerprint)
}

// Close releases resources held by the store.
func (g *Guard) Close() error {
	if c, ok := g.store.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
