package watch

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func startDebouncer(t *testing.T, cfg DebouncerConfig) *Debouncer {
	t.Helper()
	d, err := NewDebouncer(cfg)
	require.NoError(t, err)

	go func() { _ = d.Run(t.Context()) }()

	select {
	case <-d.Ready():
	case <-time.After(250 * time.Millisecond):
		t.Fatal("timed out waiting for debouncer ready")
	}
	return d
}

func TestDebouncer_BurstCoalescesToSingleChangeSet(t *testing.T) {
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 25 * time.Millisecond, MaxDelay: 500 * time.Millisecond})

	for _, p := range []string{"src/a.ts", "src/b.ts", "src/a.ts", "src/c.ts", "src/b.ts"} {
		d.Add(t.Context(), p)
		time.Sleep(5 * time.Millisecond)
	}

	select {
	case got := <-d.Output():
		require.Equal(t, []string{"src/a.ts", "src/b.ts", "src/c.ts"}, got.Paths)
		require.Equal(t, 5, got.Events)
		require.Equal(t, "quiet", got.Cause)
		require.False(t, got.Last.Before(got.First))
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for change set")
	}

	select {
	case <-d.Output():
		t.Fatal("expected only one change set for burst")
	case <-time.After(75 * time.Millisecond):
		// ok
	}
}

func TestDebouncer_MaxDelayForcesEmit(t *testing.T) {
	d := startDebouncer(t, DebouncerConfig{
		QuietWindow: 200 * time.Millisecond, // would postpone forever if changes keep coming
		MaxDelay:    60 * time.Millisecond,
	})

	stop := make(chan struct{})
	defer close(stop)
	go func() {
		ticker := time.NewTicker(10 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				d.Add(t.Context(), "src/hot.ts")
			}
		}
	}()

	select {
	case got := <-d.Output():
		require.Equal(t, "max_delay", got.Cause)
		require.Equal(t, []string{"src/hot.ts"}, got.Paths)
	case <-time.After(500 * time.Millisecond):
		t.Fatal("timed out waiting for max-delay change set")
	}
}

func TestDebouncer_SeparateBurstsEmitSeparately(t *testing.T) {
	d := startDebouncer(t, DebouncerConfig{QuietWindow: 20 * time.Millisecond, MaxDelay: 200 * time.Millisecond})

	for _, p := range []string{"src/one.ts", "src/two.ts"} {
		d.Add(t.Context(), p)
		select {
		case got := <-d.Output():
			require.Equal(t, []string{p}, got.Paths)
		case <-time.After(500 * time.Millisecond):
			t.Fatal("timed out waiting for change set")
		}
	}
}

func TestNewDebouncer_Validation(t *testing.T) {
	_, err := NewDebouncer(DebouncerConfig{MaxDelay: time.Second})
	require.Error(t, err)

	_, err = NewDebouncer(DebouncerConfig{QuietWindow: time.Second})
	require.Error(t, err)

	d, err := NewDebouncer(DebouncerConfig{QuietWindow: time.Second, MaxDelay: time.Millisecond})
	require.NoError(t, err)
	require.Equal(t, time.Second, d.cfg.MaxDelay)
}
