// internal/services/fakes_test.go
package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/stockpics/backend/internal/config"
)

// memoryStore keeps objects in a map. Put fails for keys under failPrefix.
type memoryStore struct {
	mu         sync.Mutex
	objects    map[string][]byte
	failPrefix string
	presign    bool
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte), presign: true}
}

func (s *memoryStore) Put(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	if s.failPrefix != "" && strings.HasPrefix(key, s.failPrefix) {
		return "", errors.New("store unavailable")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = append([]byte(nil), data...)
	return "https://assets.test/" + key, nil
}

func (s *memoryStore) Delete(ctx context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) PresignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	if !s.presign {
		return "", ErrPresignUnsupported
	}
	return "https://assets.test/" + key + "?signature=test", nil
}

func (s *memoryStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, ok := s.objects[key]
	if !ok {
		return nil, fmt.Errorf("object %s not found", key)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.objects)
}

// fakeGateway serves intents from memory. ParseEvent accepts only the
// signature "valid" and returns the queued event.
type fakeGateway struct {
	mu      sync.Mutex
	intents map[string]*PaymentIntent
	event   *GatewayEvent
	created []*PaymentIntent
	err     error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{intents: make(map[string]*PaymentIntent)}
}

func (g *fakeGateway) CreateIntent(ctx context.Context, amountCents int64, currency string, metadata map[string]string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	intent := &PaymentIntent{
		ID:           fmt.Sprintf("pi_%d", len(g.created)+1),
		ClientSecret: "secret",
		Status:       "requires_payment_method",
		Amount:       amountCents,
		Currency:     currency,
		Metadata:     metadata,
	}
	g.created = append(g.created, intent)
	g.intents[intent.ID] = intent
	return intent, nil
}

func (g *fakeGateway) GetIntent(ctx context.Context, id string) (*PaymentIntent, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.err != nil {
		return nil, g.err
	}
	intent, ok := g.intents[id]
	if !ok {
		return nil, ErrIntentNotFound
	}
	return intent, nil
}

func (g *fakeGateway) ParseEvent(payload []byte, signature string) (*GatewayEvent, error) {
	if signature != "valid" {
		return nil, errors.New("bad signature")
	}
	return g.event, nil
}

func (g *fakeGateway) put(intent *PaymentIntent) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.intents[intent.ID] = intent
}

type fakeIdentity struct {
	identity *ExternalIdentity
	err      error
}

func (f *fakeIdentity) VerifyIDToken(ctx context.Context, rawIDToken string) (*ExternalIdentity, error) {
	return f.identity, f.err
}

func (f *fakeIdentity) ExchangeCode(ctx context.Context, code string) (*ExternalIdentity, error) {
	return f.identity, f.err
}

func testConfig() *config.Config {
	return &config.Config{
		Environment: "test",
		JWT:         config.JWTConfig{SecretKey: "test-secret", AccessTokenTTL: 1, Issuer: "stockpics-test"},
		Auth:        config.AuthConfig{InitialAdminEmail: "admin@example.com"},
		Storage:     config.StorageConfig{Driver: "local", PresignTTL: 15},
		Payment:     config.PaymentConfig{Currency: "usd", StripeWebhookSecret: "whsec_test"},
		Catalog:     config.CatalogConfig{DefaultPageSize: 20, MaxPageSize: 100},
		Upload:      config.UploadConfig{MaxSizeMB: 5, MaxArchiveMB: 20, WatermarkText: "TEST"},
	}
}

// jpegBytes encodes a solid w×h JPEG.
func jpegBytes(t *testing.T, w, h int) []byte {
	t.Helper()

	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: uint8(x), G: uint8(y), B: 120, A: 255})
		}
	}

	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}
