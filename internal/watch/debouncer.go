package watch

import (
	"context"
	"slices"
	"sync"
	"time"

	ferrors "git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
)

// ChangeSet is one debounced batch of file changes.
type ChangeSet struct {
	// Paths are the changed files relative to the watch root, sorted and unique.
	Paths  []string
	Events int
	First  time.Time
	Last   time.Time
	// Cause is "quiet" when the quiet window elapsed and "max_delay" when the
	// burst was flushed because it ran longer than the maximum delay.
	Cause string
}

// DebouncerConfig controls how change bursts are coalesced.
type DebouncerConfig struct {
	QuietWindow time.Duration
	MaxDelay    time.Duration
}

// Debouncer coalesces bursts of file change notifications into ChangeSets.
//
// A set is emitted once no change arrived for QuietWindow, or MaxDelay after
// the first change of the burst, whichever comes first.
type Debouncer struct {
	cfg DebouncerConfig
	in  chan change
	out chan ChangeSet

	readyOnce sync.Once
	ready     chan struct{}

	paths map[string]struct{}
	count int
	first time.Time
	last  time.Time
}

type change struct {
	path string
	at   time.Time
}

func NewDebouncer(cfg DebouncerConfig) (*Debouncer, error) {
	if cfg.QuietWindow <= 0 {
		return nil, ferrors.ValidationError("quiet window must be > 0").Build()
	}
	if cfg.MaxDelay <= 0 {
		return nil, ferrors.ValidationError("max delay must be > 0").Build()
	}
	if cfg.MaxDelay < cfg.QuietWindow {
		cfg.MaxDelay = cfg.QuietWindow
	}
	return &Debouncer{
		cfg:   cfg,
		in:    make(chan change, 256),
		out:   make(chan ChangeSet, 1),
		ready: make(chan struct{}),
		paths: make(map[string]struct{}),
	}, nil
}

// Ready is closed once Run has started.
func (d *Debouncer) Ready() <-chan struct{} { return d.ready }

// Output delivers change sets. It is closed when Run returns.
func (d *Debouncer) Output() <-chan ChangeSet { return d.out }

// Add records a change to path. It blocks only when the input buffer is full
// and gives up when ctx is done.
func (d *Debouncer) Add(ctx context.Context, path string) {
	select {
	case d.in <- change{path: path, at: time.Now()}:
	case <-ctx.Done():
	}
}

// Run processes changes until ctx is done. It must be called once.
func (d *Debouncer) Run(ctx context.Context) error {
	if ctx == nil {
		return ferrors.ValidationError("context cannot be nil").Build()
	}
	defer close(d.out)

	d.readyOnce.Do(func() { close(d.ready) })

	quietTimer := newStoppedTimer()
	maxTimer := newStoppedTimer()
	defer quietTimer.Stop()
	defer maxTimer.Stop()

	var (
		quietC <-chan time.Time
		maxC   <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case c := <-d.in:
			first := d.record(c)
			resetTimer(quietTimer, d.cfg.QuietWindow)
			quietC = quietTimer.C
			if first {
				resetTimer(maxTimer, d.cfg.MaxDelay)
				maxC = maxTimer.C
			}
		case <-quietC:
			if !d.emit(ctx, "quiet") {
				return nil
			}
			quietC, maxC = nil, nil
			maxTimer.Stop()
		case <-maxC:
			if !d.emit(ctx, "max_delay") {
				return nil
			}
			quietC, maxC = nil, nil
			quietTimer.Stop()
		}
	}
}

func (d *Debouncer) record(c change) bool {
	first := d.count == 0
	if first {
		d.first = c.at
	}
	d.last = c.at
	d.count++
	d.paths[c.path] = struct{}{}
	return first
}

func (d *Debouncer) emit(ctx context.Context, cause string) bool {
	if d.count == 0 {
		return true
	}
	set := ChangeSet{
		Paths:  make([]string, 0, len(d.paths)),
		Events: d.count,
		First:  d.first,
		Last:   d.last,
		Cause:  cause,
	}
	for p := range d.paths {
		set.Paths = append(set.Paths, p)
	}
	slices.Sort(set.Paths)

	d.paths = make(map[string]struct{})
	d.count = 0

	select {
	case d.out <- set:
		return true
	case <-ctx.Done():
		return false
	}
}

func newStoppedTimer() *time.Timer {
	t := time.NewTimer(time.Hour)
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	return t
}

func resetTimer(t *time.Timer, after time.Duration) {
	if !t.Stop() {
		select {
		case <-t.C:
		default:
		}
	}
	t.Reset(after)
}
