// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package parallel

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type scored struct {
	Name  string
	Score int
	Err   string
}

func degradeScored(item string, err error) scored {
	return scored{Name: item, Err: err.Error()}
}

func TestMap_PreservesInputOrder(t *testing.T) {
	// Completion order is C, A, B.
	delays := map[string]time.Duration{"A": 20 * time.Millisecond, "B": 40 * time.Millisecond, "C": 0}
	var mu sync.Mutex
	var completion []string

	got := Map(context.Background(), []string{"A", "B", "C"},
		func(_ context.Context, item string, _, _ int) (scored, error) {
			time.Sleep(delays[item])
			mu.Lock()
			completion = append(completion, item)
			mu.Unlock()
			return scored{Name: item, Score: len(item)}, nil
		}, degradeScored, Options{})

	assert.Equal(t, []string{"C", "A", "B"}, completion)
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Name)
	assert.Equal(t, "B", got[1].Name)
	assert.Equal(t, "C", got[2].Name)
}

func TestMap_IndexIsOneBased(t *testing.T) {
	got := Map(context.Background(), []string{"x", "y", "z"},
		func(_ context.Context, item string, index, total int) (string, error) {
			return fmt.Sprintf("%s:%d/%d", item, index, total), nil
		}, func(string, error) string { return "" }, Options{})

	assert.Equal(t, []string{"x:1/3", "y:2/3", "z:3/3"}, got)
}

func TestMap_FailureIsolation(t *testing.T) {
	got := Map(context.Background(), []string{"ok1", "boom", "panic", "ok2"},
		func(_ context.Context, item string, _, _ int) (scored, error) {
			switch item {
			case "boom":
				return scored{}, errors.New("endpoint unreachable")
			case "panic":
				panic("bad state")
			}
			return scored{Name: item, Score: 3}, nil
		}, degradeScored, Options{})

	require.Len(t, got, 4)
	assert.Equal(t, scored{Name: "ok1", Score: 3}, got[0])
	assert.Equal(t, scored{Name: "boom", Err: "endpoint unreachable"}, got[1])
	assert.Equal(t, "panic", got[2].Name)
	assert.Contains(t, got[2].Err, "panic: bad state")
	assert.Equal(t, scored{Name: "ok2", Score: 3}, got[3])
}

func TestMap_OneFailureInTen(t *testing.T) {
	items := make([]int, 10)
	for i := range items {
		items[i] = i
	}

	got := Map(context.Background(), items,
		func(_ context.Context, item, _, _ int) (scored, error) {
			if item == 6 {
				return scored{}, errors.New("timeout")
			}
			return scored{Name: fmt.Sprint(item), Score: item % 5}, nil
		},
		func(item int, err error) scored {
			return scored{Name: fmt.Sprint(item), Err: err.Error()}
		}, Options{MaxConcurrency: 3})

	require.Len(t, got, 10)
	for i, r := range got {
		if i == 6 {
			assert.Equal(t, scored{Name: "6", Err: "timeout"}, r)
			continue
		}
		assert.Equal(t, scored{Name: fmt.Sprint(i), Score: i % 5}, r, "item %d", i)
	}
}

func TestMap_MaxConcurrency(t *testing.T) {
	var inFlight, peak int32
	items := make([]int, 20)
	for i := range items {
		items[i] = i
	}

	got := Map(context.Background(), items,
		func(_ context.Context, item int, _, _ int) (int, error) {
			n := atomic.AddInt32(&inFlight, 1)
			for {
				p := atomic.LoadInt32(&peak)
				if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			atomic.AddInt32(&inFlight, -1)
			return item * 2, nil
		}, func(int, error) int { return -1 }, Options{MaxConcurrency: 3})

	assert.LessOrEqual(t, atomic.LoadInt32(&peak), int32(3))
	for i, v := range got {
		assert.Equal(t, i*2, v)
	}
}

func TestMap_ItemTimeoutDegrades(t *testing.T) {
	got := Map(context.Background(), []string{"slow", "fast"},
		func(ctx context.Context, item string, _, _ int) (scored, error) {
			if item == "slow" {
				select {
				case <-ctx.Done():
					return scored{}, ctx.Err()
				case <-time.After(time.Second):
				}
			}
			return scored{Name: item, Score: 1}, nil
		}, degradeScored, Options{ItemTimeout: 20 * time.Millisecond})

	assert.Equal(t, context.DeadlineExceeded.Error(), got[0].Err)
	assert.Equal(t, 1, got[1].Score)
}

func TestMap_CancelledContextDegradesQueuedItems(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	got := Map(ctx, []string{"a", "b"},
		func(ctx context.Context, item string, _, _ int) (scored, error) {
			return scored{}, ctx.Err()
		}, degradeScored, Options{MaxConcurrency: 1})

	for _, r := range got {
		assert.Equal(t, context.Canceled.Error(), r.Err)
	}
}

func TestMap_ProgressAndStatus(t *testing.T) {
	var mu sync.Mutex
	var lines []string
	var progress []int

	release := make(chan struct{})
	go func() {
		time.Sleep(60 * time.Millisecond)
		close(release)
	}()

	Map(context.Background(), []string{"a", "b", "c"},
		func(_ context.Context, item string, _, _ int) (string, error) {
			if item == "c" {
				<-release
			}
			return item, nil
		}, func(string, error) string { return "" }, Options{
			Desc:           "Ranking papers",
			StatusInterval: 10 * time.Millisecond,
			Report: func(line string) {
				mu.Lock()
				lines = append(lines, line)
				mu.Unlock()
			},
			OnProgress: func(done, total int) {
				mu.Lock()
				progress = append(progress, done)
				mu.Unlock()
				assert.Equal(t, 3, total)
			},
		})

	mu.Lock()
	defer mu.Unlock()
	assert.ElementsMatch(t, []int{1, 2, 3}, progress)
	require.NotEmpty(t, lines)
	assert.Equal(t, "Ranking papers: 3 items...", lines[0])

	var sawPending bool
	for _, l := range lines[1:] {
		if strings.Contains(l, "Ranking papers: 2/3 done, 1 pending") {
			sawPending = true
		}
	}
	assert.True(t, sawPending, "expected a pending status line, got %v", lines)
}

func TestMap_Empty(t *testing.T) {
	called := false
	got := Map(context.Background(), nil,
		func(context.Context, string, int, int) (string, error) {
			called = true
			return "", nil
		}, func(string, error) string { return "" }, Options{StatusInterval: time.Millisecond})

	assert.Empty(t, got)
	assert.NotNil(t, got)
	assert.False(t, called)
}

func TestSyncWriter(t *testing.T) {
	var buf strings.Builder
	w := SyncWriter(&buf)
	assert.Same(t, w, SyncWriter(w))

	items := make([]int, 50)
	Map(context.Background(), items,
		func(_ context.Context, _ int, idx, total int) (int, error) {
			fmt.Fprintf(w, "[%d/%d] done\n", idx, total)
			return idx, nil
		}, func(int, error) int { return 0 },
		Options{StatusInterval: time.Millisecond, Report: func(line string) { fmt.Fprintln(w, line) }})

	var done int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if strings.HasSuffix(line, "] done") {
			done++
		}
	}
	assert.Equal(t, 50, done)
}

func TestSyncWriter_Nil(t *testing.T) {
	n, err := SyncWriter(nil).Write([]byte("dropped"))
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}
