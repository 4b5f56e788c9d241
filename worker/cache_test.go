package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/agentpipe/core"
	"github.com/hupe1980/agentpipe/metrics"
)

type stubHandle struct{ name string }

func (s *stubHandle) Name() string { return s.name }

func (s *stubHandle) Invoke(context.Context, []core.Message) ([]core.Message, error) {
	return []core.Message{core.NewAssistantMessage(s.name, "ok")}, nil
}

var titleAgent = core.Identity{Name: "title-agent", Instructions: "generate titles", Model: "gpt-4o-mini"}

func TestCache_ConcurrentCallersShareOneCreation(t *testing.T) {
	cache := NewCache(func(o *Options) { o.Metrics = metrics.MustNew(prometheus.NewRegistry()) })

	var calls atomic.Int32
	release := make(chan struct{})
	factory := func(ctx context.Context, id core.Identity) (core.Handle, error) {
		calls.Add(1)
		<-release
		return &stubHandle{name: id.Name}, nil
	}

	const n = 32
	handles := make([]core.Handle, n)
	var started sync.WaitGroup
	started.Add(n)

	g, ctx := errgroup.WithContext(context.Background())
	for i := 0; i < n; i++ {
		g.Go(func() error {
			started.Done()
			h, err := cache.GetOrCreate(ctx, titleAgent, factory)
			handles[i] = h
			return err
		})
	}

	started.Wait()
	time.Sleep(10 * time.Millisecond)
	close(release)
	require.NoError(t, g.Wait())

	assert.Equal(t, int32(1), calls.Load())
	for _, h := range handles {
		assert.Same(t, handles[0], h)
	}
	assert.Equal(t, 1, cache.Len())
}

func TestCache_ReturnsMemoizedHandle(t *testing.T) {
	cache := NewCache()
	var calls int
	factory := func(ctx context.Context, id core.Identity) (core.Handle, error) {
		calls++
		return &stubHandle{name: id.Name}, nil
	}

	first, err := cache.GetOrCreate(context.Background(), titleAgent, factory)
	require.NoError(t, err)

	// Instructions differ but the name matches: same logical agent.
	other := titleAgent
	other.Instructions = "changed"
	second, err := cache.GetOrCreate(context.Background(), other, factory)
	require.NoError(t, err)

	assert.Same(t, first, second)
	assert.Equal(t, 1, calls)

	h, ok := cache.Lookup("title-agent")
	assert.True(t, ok)
	assert.Same(t, first, h)
}

func TestCache_DistinctIdentities(t *testing.T) {
	cache := NewCache()
	factory := func(ctx context.Context, id core.Identity) (core.Handle, error) {
		return &stubHandle{name: id.Name}, nil
	}

	a, err := cache.GetOrCreate(context.Background(), core.Identity{Name: "summarizer"}, factory)
	require.NoError(t, err)
	b, err := cache.GetOrCreate(context.Background(), core.Identity{Name: "classifier"}, factory)
	require.NoError(t, err)

	assert.NotSame(t, a, b)
	assert.Equal(t, 2, cache.Len())
}

func TestCache_FailedCreationIsNotMemoized(t *testing.T) {
	cache := NewCache()
	boom := errors.New("endpoint unreachable")

	var calls int
	factory := func(ctx context.Context, id core.Identity) (core.Handle, error) {
		calls++
		if calls == 1 {
			return nil, boom
		}
		return &stubHandle{name: id.Name}, nil
	}

	_, err := cache.GetOrCreate(context.Background(), titleAgent, factory)
	require.Error(t, err)

	var cce *core.CacheCreationError
	require.ErrorAs(t, err, &cce)
	assert.Equal(t, "title-agent", cce.Identity)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, cache.Len())

	h, err := cache.GetOrCreate(context.Background(), titleAgent, factory)
	require.NoError(t, err)
	assert.NotNil(t, h)
	assert.Equal(t, 2, calls)
}

func TestCache_NilHandleIsAnError(t *testing.T) {
	cache := NewCache()
	_, err := cache.GetOrCreate(context.Background(), titleAgent, func(context.Context, core.Identity) (core.Handle, error) {
		return nil, nil
	})
	assert.ErrorIs(t, err, errNilHandle)
	assert.Equal(t, 0, cache.Len())
}

func TestCache_CanceledCallerDoesNotFailCreation(t *testing.T) {
	cache := NewCache()

	var calls atomic.Int32
	started := make(chan struct{})
	release := make(chan struct{})
	factory := func(ctx context.Context, id core.Identity) (core.Handle, error) {
		calls.Add(1)
		close(started)
		<-release
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		return &stubHandle{name: id.Name}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := cache.GetOrCreate(ctx, titleAgent, factory)
		firstErr <- err
	}()

	<-started
	cancel()
	assert.ErrorIs(t, <-firstErr, context.Canceled)

	second := make(chan core.Handle, 1)
	go func() {
		h, err := cache.GetOrCreate(context.Background(), titleAgent, factory)
		assert.NoError(t, err)
		second <- h
	}()
	close(release)

	select {
	case h := <-second:
		require.NotNil(t, h)
		assert.Equal(t, "title-agent", h.Name())
	case <-time.After(time.Second):
		t.Fatal("second caller did not receive the worker")
	}
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, cache.Len())
}

func TestCache_PanickingFactoryIsAnError(t *testing.T) {
	cache := NewCache()
	_, err := cache.GetOrCreate(context.Background(), titleAgent, func(context.Context, core.Identity) (core.Handle, error) {
		var m map[string]int
		m["boom"] = 1
		return nil, nil
	})

	var cce *core.CacheCreationError
	require.ErrorAs(t, err, &cce)
	assert.Contains(t, err.Error(), "factory panic")
	assert.Equal(t, 0, cache.Len())
}
