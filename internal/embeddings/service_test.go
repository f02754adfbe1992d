package embeddings

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/adl-legal/legald/internal/cache"
	"github.com/adl-legal/legald/internal/retry"
)

type fakeProvider struct {
	calls  int
	vector []float32
	err    error
}

func (f *fakeProvider) Embed(ctx context.Context, model, text string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

// failingStore errors on every operation; the service must treat that as
// cache misses, not failures.
type failingStore struct{}

func (failingStore) Get(context.Context, string) (string, error) {
	return "", errors.New("connection refused")
}

func (failingStore) Set(context.Context, string, string, time.Duration) error {
	return errors.New("connection refused")
}

func fastRetry() retry.Policy {
	return retry.Policy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
}

func TestEmbedQuery_CachesByContent(t *testing.T) {
	provider := &fakeProvider{vector: []float32{0.1, 0.2, 0.3}}
	svc, err := NewService(provider, cache.NewMemory(), Config{Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	first, err := svc.EmbedQuery(ctx, "ما هي حقوق المستأجر؟")
	require.NoError(t, err)

	second, err := svc.EmbedQuery(ctx, "ما هي حقوق المستأجر؟")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, provider.calls, "second lookup must come from cache")
}

func TestEmbedQuery_WhitespaceVariantsShareEntry(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1}}
	svc, err := NewService(provider, cache.NewMemory(), Config{Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	_, err = svc.EmbedQuery(ctx, "tenant  rights \n in lebanon")
	require.NoError(t, err)
	_, err = svc.EmbedQuery(ctx, "  tenant rights in lebanon  ")
	require.NoError(t, err)

	assert.Equal(t, 1, provider.calls)
}

func TestEmbedQuery_CacheFailureIsMiss(t *testing.T) {
	provider := &fakeProvider{vector: []float32{1, 2}}
	svc, err := NewService(provider, failingStore{}, Config{Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)

	vector, err := svc.EmbedQuery(context.Background(), "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{1, 2}, vector)
	assert.Equal(t, 1, provider.calls)
}

func TestEmbedQuery_ExhaustedRetriesReturnUnavailable(t *testing.T) {
	provider := &fakeProvider{err: errors.New("provider down")}
	svc, err := NewService(provider, cache.NewMemory(), Config{Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)

	_, err = svc.EmbedQuery(context.Background(), "query")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, provider.calls)
}

func TestEmbedQuery_CorruptCacheEntryIsMiss(t *testing.T) {
	provider := &fakeProvider{vector: []float32{9}}
	store := cache.NewMemory()
	svc, err := NewService(provider, store, Config{Retry: fastRetry()}, zap.NewNop())
	require.NoError(t, err)

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, cacheKey(Normalize("query")), "not json", time.Hour))

	vector, err := svc.EmbedQuery(ctx, "query")
	require.NoError(t, err)
	assert.Equal(t, []float32{9}, vector)
	assert.Equal(t, 1, provider.calls)
}

func TestNormalize(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "tenant rights", "tenant rights"},
		{"inner runs", "tenant   rights\t\nnow", "tenant rights now"},
		{"surrounding", "  tenant rights  ", "tenant rights"},
		{"empty", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Normalize(tt.in))
		})
	}
}
