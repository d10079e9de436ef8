package cache

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/bankdash/bankdash/backend/go-gateway/pkg/metrics"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (f *fakeClock) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *fakeClock) Set(ms int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.now = time.UnixMilli(ms)
}

type countingFetch struct {
	calls int
	value []string
	err   error
}

func (c *countingFetch) fetch(context.Context) ([]string, error) {
	c.calls++
	if c.err != nil {
		return nil, c.err
	}
	return c.value, nil
}

func TestRead_StaleFallbackTimeline(t *testing.T) {
	clk := &fakeClock{}
	c := New[[]string]("accounts-timeline", WithClock(clk.Now))
	ctx := context.Background()
	ttl := 30 * time.Second

	f := &countingFetch{value: []string{"D1"}}
	clk.Set(0)
	got, err := c.Read(ctx, "list", ttl, f.fetch, false)
	require.NoError(t, err)
	require.Equal(t, []string{"D1"}, got)
	require.Equal(t, 1, f.calls)

	clk.Set(10_000)
	got, err = c.Read(ctx, "list", ttl, f.fetch, false)
	require.NoError(t, err)
	require.Equal(t, []string{"D1"}, got)
	require.Equal(t, 1, f.calls, "fresh entry must not fetch")

	clk.Set(40_000)
	f.err = errors.New("backend down")
	got, err = c.Read(ctx, "list", ttl, f.fetch, false)
	require.NoError(t, err)
	require.Equal(t, []string{"D1"}, got)
	require.Equal(t, 2, f.calls)
	require.Equal(t, Stale, c.State("list"))

	clk.Set(50_000)
	f.err = nil
	f.value = []string{"D2"}
	got, err = c.Read(ctx, "list", ttl, f.fetch, false)
	require.NoError(t, err)
	require.Equal(t, []string{"D2"}, got)
	require.Equal(t, Fresh, c.State("list"))
}

func TestRead_ErrorWithoutEntryPropagates(t *testing.T) {
	c := New[int]("errors")
	boom := errors.New("boom")
	_, err := c.Read(context.Background(), "k", time.Minute, func(context.Context) (int, error) { return 0, boom }, false)
	require.ErrorIs(t, err, boom)
	require.Equal(t, Empty, c.State("k"))
}

func TestRead_ForceRefreshBypassesFreshEntry(t *testing.T) {
	c := New[int]("force")
	ctx := context.Background()
	n := 0
	fetch := func(context.Context) (int, error) { n++; return n, nil }

	v, _ := c.Read(ctx, "k", time.Hour, fetch, false)
	require.Equal(t, 1, v)
	v, _ = c.Read(ctx, "k", time.Hour, fetch, true)
	require.Equal(t, 2, v)
	v, _ = c.Read(ctx, "k", time.Hour, fetch, false)
	require.Equal(t, 2, v)
}

func TestRead_FreshnessBoundaryIsExclusive(t *testing.T) {
	clk := &fakeClock{}
	c := New[int]("boundary", WithClock(clk.Now))
	ctx := context.Background()
	n := 0
	fetch := func(context.Context) (int, error) { n++; return n, nil }

	clk.Set(0)
	_, _ = c.Read(ctx, "k", 30*time.Second, fetch, false)
	clk.Set(29_999)
	v, _ := c.Read(ctx, "k", 30*time.Second, fetch, false)
	require.Equal(t, 1, v)
	clk.Set(30_000)
	require.Equal(t, Stale, c.State("k"))
	v, _ = c.Read(ctx, "k", 30*time.Second, fetch, false)
	require.Equal(t, 2, v)
}

func TestInvalidate(t *testing.T) {
	c := New[string]("invalidate")
	ctx := context.Background()
	put := func(k string) {
		_, err := c.Read(ctx, k, time.Hour, func(context.Context) (string, error) { return k, nil }, false)
		require.NoError(t, err)
	}
	put(Key("acc-1", "page=1"))
	put(Key("acc-1", "page=2"))
	put(Key("acc-10", "page=1"))
	put("list")

	c.InvalidatePrefix(Key("acc-1") + "|")
	require.Equal(t, Empty, c.State(Key("acc-1", "page=1")))
	require.Equal(t, Empty, c.State(Key("acc-1", "page=2")))
	require.Equal(t, Fresh, c.State(Key("acc-10", "page=1")))

	c.Invalidate("list")
	require.Equal(t, Empty, c.State("list"))
	require.Equal(t, 1, c.Len())

	c.InvalidateAll()
	require.Equal(t, 0, c.Len())
}

func TestParamsKey(t *testing.T) {
	require.Equal(t, "", ParamsKey(nil))
	q := url.Values{"type": {"debit", "credit"}, "page": {"2"}}
	require.Equal(t, "page=2&type=credit&type=debit", ParamsKey(q))

	require.NotEqual(t, ParamsKey(url.Values{"a": {"1,2"}}), ParamsKey(url.Values{"a": {"1", "2"}}))
	require.Equal(t, "q=a%26b%3Dc", ParamsKey(url.Values{"q": {"a&b=c"}}))
}

// blockingFetch returns value once release is closed and signals started first.
func blockingFetch(value string, started chan<- struct{}, release <-chan struct{}) func(context.Context) (string, error) {
	return func(context.Context) (string, error) {
		started <- struct{}{}
		<-release
		return value, nil
	}
}

func TestRead_FetchRacingInvalidateAllIsNotStored(t *testing.T) {
	c := New[string]("accounts-race")
	ctx := context.Background()
	started := make(chan struct{}, 1)
	release := make(chan struct{})

	type result struct {
		v   string
		err error
	}
	done := make(chan result, 1)
	go func() {
		v, err := c.Read(ctx, "all", time.Hour, blockingFetch("alice-acct", started, release), false)
		done <- result{v, err}
	}()

	<-started
	c.InvalidateAll() // session changed while the old user's fetch was in flight
	close(release)

	r := <-done
	require.NoError(t, r.err)
	require.Equal(t, "alice-acct", r.v, "the caller that fetched still gets its data")
	require.Equal(t, Empty, c.State("all"))

	calls := 0
	got, err := c.Read(ctx, "all", time.Hour, func(context.Context) (string, error) {
		calls++
		return "bob-acct", nil
	}, false)
	require.NoError(t, err)
	require.Equal(t, "bob-acct", got)
	require.Equal(t, 1, calls)
}

func TestRead_FetchRacingInvalidateKeyIsNotStored(t *testing.T) {
	c := New[string]("details-race")
	ctx := context.Background()
	started := make(chan struct{}, 1)
	release := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = c.Read(ctx, "a1", time.Hour, blockingFetch("open", started, release), false)
	}()

	<-started
	c.Invalidate("a1") // account closed meanwhile
	close(release)
	<-done

	require.Equal(t, Empty, c.State("a1"))

	// reads that start after the invalidation are stored again
	v, err := c.Read(ctx, "a1", time.Hour, func(context.Context) (string, error) { return "closed", nil }, false)
	require.NoError(t, err)
	require.Equal(t, "closed", v)
	require.Equal(t, Fresh, c.State("a1"))
}

func TestRead_RecordsMetrics(t *testing.T) {
	c := New[int]("metrics-counting")
	ctx := context.Background()
	fetch := func(context.Context) (int, error) { return 1, nil }
	_, _ = c.Read(ctx, "k", time.Hour, fetch, false)
	_, _ = c.Read(ctx, "k", time.Hour, fetch, false)

	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("metrics-counting", "miss")))
	require.Equal(t, 1.0, testutil.ToFloat64(metrics.CacheLookups.WithLabelValues("metrics-counting", "hit")))
}
