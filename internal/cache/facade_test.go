package cache

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/dennisdiepolder/monti/okr/internal/types"
	"github.com/rs/zerolog"
)

type failingStore struct {
	*MemoryStore
	getErr error
	putErr error
}

func (s *failingStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	if s.getErr != nil {
		return nil, false, s.getErr
	}
	return s.MemoryStore.Get(ctx, key)
}

func (s *failingStore) Put(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if s.putErr != nil {
		return s.putErr
	}
	return s.MemoryStore.Put(ctx, key, value, ttl)
}

type payload struct {
	Score int `json:"score"`
}

func TestGetOrComputeCachesResult(t *testing.T) {
	f := NewFacade(NewMemoryStore(), zerolog.New(&bytes.Buffer{}))
	ctx := context.Background()

	computed := 0
	compute := func(out *payload) func(context.Context) error {
		return func(context.Context) error {
			computed++
			out.Score = 73
			return nil
		}
	}

	var first payload
	hit, err := f.GetOrCompute(ctx, "k", time.Minute, &first, compute(&first))
	if err != nil || hit || first.Score != 73 {
		t.Fatalf("expected computed miss, got hit=%v score=%d err=%v", hit, first.Score, err)
	}

	var second payload
	hit, err = f.GetOrCompute(ctx, "k", time.Minute, &second, compute(&second))
	if err != nil || !hit || second.Score != 73 {
		t.Fatalf("expected cached hit, got hit=%v score=%d err=%v", hit, second.Score, err)
	}
	if computed != 1 {
		t.Errorf("expected one computation, got %d", computed)
	}
}

func TestGetOrComputeSurvivesStoreFailures(t *testing.T) {
	var logs bytes.Buffer
	store := &failingStore{
		MemoryStore: NewMemoryStore(),
		getErr:      errors.New("connection refused"),
		putErr:      errors.New("connection refused"),
	}
	f := NewFacade(store, zerolog.New(&logs))

	var out payload
	hit, err := f.GetOrCompute(context.Background(), "k", time.Minute, &out, func(context.Context) error {
		out.Score = 55
		return nil
	})
	if err != nil || hit || out.Score != 55 {
		t.Fatalf("expected computed result despite store failures, got hit=%v score=%d err=%v", hit, out.Score, err)
	}
	if !strings.Contains(logs.String(), "cache write failed") {
		t.Errorf("expected write failure to be logged, got %s", logs.String())
	}

	if err := f.Put(context.Background(), "k", out, time.Minute); err == nil {
		t.Error("expected Put to report the write failure")
	}
}

func TestGetOrComputeUndecodableIsMiss(t *testing.T) {
	store := NewMemoryStore()
	_ = store.Put(context.Background(), "k", []byte("not json"), 0)
	f := NewFacade(store, zerolog.New(&bytes.Buffer{}))

	var out payload
	hit, err := f.GetOrCompute(context.Background(), "k", 0, &out, func(context.Context) error {
		out.Score = 90
		return nil
	})
	if err != nil || hit || out.Score != 90 {
		t.Fatalf("expected recomputation, got hit=%v score=%d err=%v", hit, out.Score, err)
	}

	cached, _, _ := store.Get(context.Background(), "k")
	if string(cached) != `{"score":90}` {
		t.Errorf("expected corrupt entry to be replaced, got %s", cached)
	}
}

func TestGetOrComputePropagatesComputeError(t *testing.T) {
	store := NewMemoryStore()
	f := NewFacade(store, zerolog.New(&bytes.Buffer{}))

	boom := errors.New("boom")
	var out payload
	if _, err := f.GetOrCompute(context.Background(), "k", 0, &out, func(context.Context) error { return boom }); !errors.Is(err, boom) {
		t.Fatalf("expected compute error, got %v", err)
	}
	if store.Len() != 0 {
		t.Error("failed computations must not be cached")
	}
}

func TestFacadeRemovePrefix(t *testing.T) {
	f := NewFacade(nil, zerolog.New(&bytes.Buffer{}))
	if _, err := f.RemovePrefix(context.Background(), "okr:"); err != nil {
		t.Errorf("expected noop store to support purge, got %v", err)
	}

	type plainStore struct{ Store }
	f = NewFacade(plainStore{NewMemoryStore()}, zerolog.New(&bytes.Buffer{}))
	if _, err := f.RemovePrefix(context.Background(), "okr:"); !errors.Is(err, ErrPrefixUnsupported) {
		t.Errorf("expected ErrPrefixUnsupported, got %v", err)
	}
}

func TestTieredBackfill(t *testing.T) {
	upper := NewMemoryStore()
	lower := NewMemoryStore()
	tiered := NewTiered(time.Minute, zerolog.New(&bytes.Buffer{}), upper, lower)
	ctx := context.Background()

	_ = lower.Put(ctx, "k", []byte("v"), 0)
	v, ok, err := tiered.Get(ctx, "k")
	if err != nil || !ok || string(v) != "v" {
		t.Fatalf("expected hit from lower tier, got %q %v %v", v, ok, err)
	}
	if _, ok, _ := upper.Get(ctx, "k"); !ok {
		t.Error("expected upper tier to be back-filled")
	}

	if err := tiered.Put(ctx, "j", []byte("w"), time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if upper.Len() != 2 || lower.Len() != 2 {
		t.Errorf("expected writes in both tiers, got %d/%d", upper.Len(), lower.Len())
	}

	n, err := tiered.RemovePrefix(ctx, "")
	if err != nil || n != 2 {
		t.Errorf("expected 2 removed, got %d (%v)", n, err)
	}
}

func TestTieredSkipsFailingTier(t *testing.T) {
	broken := &failingStore{MemoryStore: NewMemoryStore(), getErr: errors.New("timeout")}
	lower := NewMemoryStore()
	_ = lower.Put(context.Background(), "k", []byte("v"), 0)

	tiered := NewTiered(time.Minute, zerolog.New(&bytes.Buffer{}), broken, lower)
	if _, ok, err := tiered.Get(context.Background(), "k"); err != nil || !ok {
		t.Errorf("expected hit from healthy tier, got %v %v", ok, err)
	}

	all := NewTiered(time.Minute, zerolog.New(&bytes.Buffer{}), broken)
	if _, _, err := all.Get(context.Background(), "k"); err == nil {
		t.Error("expected error when every tier fails")
	}
}

func TestKey(t *testing.T) {
	tests := []struct {
		g      types.Granularity
		period string
		filter types.Filter
		want   string
	}{
		{types.GranularityWeek, "2024-W10", types.Filter{}, "okr:v1:Week:2024-W10:::"},
		{types.GranularityMonth, "2024-03", types.Filter{Agent: "alice", Campaign: "Acme", Department: "Sales"}, "okr:v1:Month:2024-03:alice:Acme:Sales"},
		{types.GranularityDay, "2024-03-06", types.Filter{Campaign: "a:b c*"}, "okr:v1:Day:2024-03-06::a%3Ab+c%2A:"},
	}

	for _, tt := range tests {
		if got := Key(tt.g, tt.period, tt.filter); got != tt.want {
			t.Errorf("Key() = %q, want %q", got, tt.want)
		}
		if !strings.HasPrefix(Key(tt.g, tt.period, tt.filter), GranularityPrefix(tt.g)) {
			t.Errorf("expected key to start with %q", GranularityPrefix(tt.g))
		}
	}
}
