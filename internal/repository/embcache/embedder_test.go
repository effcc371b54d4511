package embcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/neargravity/semguard/internal/db"
	"github.com/neargravity/semguard/internal/domain"
)

type fakeStore struct {
	data    map[string][]byte
	lastTTL time.Duration
	getErr  error
	setErr  error
}

func newFakeStore() *fakeStore {
	return &fakeStore{data: map[string][]byte{}}
}

func (f *fakeStore) Get(_ context.Context, key string) ([]byte, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	v, ok := f.data[key]
	if !ok {
		return nil, db.ErrKeyNotFound
	}
	return v, nil
}

func (f *fakeStore) SetWithTTL(_ context.Context, key string, value []byte, ttl time.Duration) error {
	if f.setErr != nil {
		return f.setErr
	}
	f.data[key] = value
	f.lastTTL = ttl
	return nil
}

type stubEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (s *stubEmbedder) Embed(_ context.Context, _ string) (domain.EmbeddingResult, error) {
	s.calls++
	if s.err != nil {
		return domain.EmbeddingResult{}, s.err
	}
	return domain.EmbeddingResult{Embedding: s.vec, TotalTokens: 7}, nil
}

func TestEmbed_MissThenHit(t *testing.T) {
	store := newFakeStore()
	inner := &stubEmbedder{vec: []float32{0.1, 0.2, 0.3}}
	cached := New(inner, store, time.Minute, nil, zap.NewNop())

	first, err := cached.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if inner.calls != 1 {
		t.Fatalf("inner calls = %d, want 1", inner.calls)
	}
	if first.TotalTokens != 7 {
		t.Errorf("miss should report real token usage, got %d", first.TotalTokens)
	}
	if store.lastTTL != time.Minute {
		t.Errorf("TTL = %v, want 1m", store.lastTTL)
	}

	second, err := cached.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed (cached): %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("inner calls = %d after hit, want 1", inner.calls)
	}
	if second.TotalTokens != 0 {
		t.Errorf("hit should report zero tokens, got %d", second.TotalTokens)
	}
	if len(second.Embedding) != 3 || second.Embedding[1] != 0.2 {
		t.Errorf("cached vector = %v", second.Embedding)
	}
}

func TestEmbed_DefaultTTL(t *testing.T) {
	store := newFakeStore()
	cached := New(&stubEmbedder{vec: []float32{1}}, store, 0, nil, zap.NewNop())

	if _, err := cached.Embed(context.Background(), "x"); err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if store.lastTTL != DefaultTTL {
		t.Errorf("TTL = %v, want DefaultTTL", store.lastTTL)
	}
}

func TestEmbed_StoreFailuresAreSoft(t *testing.T) {
	store := newFakeStore()
	store.getErr = errors.New("connection reset")
	store.setErr = errors.New("connection reset")
	inner := &stubEmbedder{vec: []float32{0.5}}
	cached := New(inner, store, time.Minute, nil, zap.NewNop())

	res, err := cached.Embed(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Embed should survive store failures: %v", err)
	}
	if len(res.Embedding) != 1 {
		t.Errorf("embedding = %v", res.Embedding)
	}
}

func TestEmbed_InnerError(t *testing.T) {
	cached := New(&stubEmbedder{err: domain.ErrEmbeddingProviderError}, newFakeStore(), time.Minute, nil, zap.NewNop())

	if _, err := cached.Embed(context.Background(), "x"); !errors.Is(err, domain.ErrEmbeddingProviderError) {
		t.Fatalf("err = %v, want provider error", err)
	}
}

func TestBatchEmbed_MixedHits(t *testing.T) {
	store := newFakeStore()
	inner := &stubEmbedder{vec: []float32{0.9}}
	cached := New(inner, store, time.Minute, nil, zap.NewNop())

	// Warm the cache for "a" only.
	if _, err := cached.Embed(context.Background(), "a"); err != nil {
		t.Fatalf("warm: %v", err)
	}
	inner.calls = 0

	res, err := cached.BatchEmbed(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if len(res.Embeddings) != 3 {
		t.Fatalf("embeddings = %d, want 3", len(res.Embeddings))
	}
	for i, vec := range res.Embeddings {
		if len(vec) != 1 {
			t.Errorf("embeddings[%d] = %v", i, vec)
		}
	}
	// Only b and c reach the inner embedder (fallback path, one call each).
	if inner.calls != 2 {
		t.Errorf("inner calls = %d, want 2", inner.calls)
	}
}

func TestBatchEmbed_AllCached(t *testing.T) {
	store := newFakeStore()
	inner := &stubEmbedder{vec: []float32{0.9}}
	cached := New(inner, store, time.Minute, nil, zap.NewNop())

	for _, text := range []string{"a", "b"} {
		if _, err := cached.Embed(context.Background(), text); err != nil {
			t.Fatalf("warm %q: %v", text, err)
		}
	}
	inner.calls = 0

	res, err := cached.BatchEmbed(context.Background(), []string{"a", "b"})
	if err != nil {
		t.Fatalf("BatchEmbed: %v", err)
	}
	if inner.calls != 0 {
		t.Errorf("inner calls = %d, want 0", inner.calls)
	}
	if res.TotalTokens != 0 {
		t.Errorf("tokens = %d, want 0 for full cache hit", res.TotalTokens)
	}
}

func TestCacheRoundTrip(t *testing.T) {
	vec := []float32{0.25, -1.5, 3.75}
	got, err := bytesToVector(vectorToCacheBytes(vec))
	if err != nil {
		t.Fatalf("bytesToVector: %v", err)
	}
	for i := range vec {
		if got[i] != vec[i] {
			t.Errorf("got[%d] = %f, want %f", i, got[i], vec[i])
		}
	}

	if _, err := bytesToVector([]byte{1, 2, 3}); err == nil {
		t.Error("expected error for truncated data")
	}
}
