package watchfs

import (
	"container/heap"
	"context"
	"os"
	"sort"
	"sync"
	"time"
)

type deadlineItem struct {
	path     string
	deadline time.Time
	index    int
}

type deadlineHeap []*deadlineItem

func (h deadlineHeap) Len() int { return len(h) }

func (h deadlineHeap) Less(i, j int) bool { return h[i].deadline.Before(h[j].deadline) }

func (h deadlineHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *deadlineHeap) Push(x any) {
	item := x.(*deadlineItem)
	item.index = len(*h)
	*h = append(*h, item)
}

func (h *deadlineHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	old[n-1] = nil
	item.index = -1
	*h = old[:n-1]
	return item
}

// DebouncerOptions configures a Debouncer.
type DebouncerOptions struct {
	// QuietWindow returns the current quiet window; read at arm time so a
	// config reload applies to subsequently armed deadlines.
	QuietWindow func() time.Duration
	// Clock defaults to the wall clock.
	Clock Clock
	// Exists defaults to an os.Stat probe. Paths that vanished before their
	// deadline expired are dropped silently.
	Exists func(path string) bool
}

// Debouncer delays each observed path until it has been quiet for the
// configured window, then emits it. Paths expiring in the same tick flush
// together as one batch.
type Debouncer struct {
	clock  Clock
	quiet  func() time.Duration
	exists func(string) bool

	mu      sync.Mutex
	entries map[string]*deadlineItem
	heap    deadlineHeap

	wake  chan struct{}
	ready chan []string
}

// NewDebouncer constructs a debouncer. Run must be called before batches
// are emitted.
func NewDebouncer(opts DebouncerOptions) *Debouncer {
	clock := opts.Clock
	if clock == nil {
		clock = RealClock()
	}
	quiet := opts.QuietWindow
	if quiet == nil {
		quiet = func() time.Duration { return 5 * time.Second }
	}
	exists := opts.Exists
	if exists == nil {
		exists = func(path string) bool {
			info, err := os.Stat(path)
			return err == nil && !info.IsDir()
		}
	}
	return &Debouncer{
		clock:   clock,
		quiet:   quiet,
		exists:  exists,
		entries: make(map[string]*deadlineItem),
		wake:    make(chan struct{}, 1),
		ready:   make(chan []string),
	}
}

// Ready delivers batches of settled paths.
func (d *Debouncer) Ready() <-chan []string {
	return d.ready
}

// Observe arms or re-arms the deadline for a path. Ignored artifacts never
// enter the heap.
func (d *Debouncer) Observe(path string) {
	if ShouldIgnore(path) {
		return
	}
	deadline := d.clock.Now().Add(d.quiet())

	d.mu.Lock()
	if item, ok := d.entries[path]; ok {
		item.deadline = deadline
		heap.Fix(&d.heap, item.index)
	} else {
		item := &deadlineItem{path: path, deadline: deadline}
		d.entries[path] = item
		heap.Push(&d.heap, item)
	}
	d.mu.Unlock()

	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Forget drops a pending path, typically after a remove event.
func (d *Debouncer) Forget(path string) {
	d.mu.Lock()
	if item, ok := d.entries[path]; ok {
		delete(d.entries, path)
		heap.Remove(&d.heap, item.index)
	}
	d.mu.Unlock()
}

// Pending returns the number of armed paths.
func (d *Debouncer) Pending() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.entries)
}

// Run services the earliest deadline until ctx is cancelled.
func (d *Debouncer) Run(ctx context.Context) {
	for {
		var timerCh <-chan time.Time

		d.mu.Lock()
		if d.heap.Len() > 0 {
			now := d.clock.Now()
			earliest := d.heap[0].deadline
			if !earliest.After(now) {
				batch := d.expireLocked(now)
				d.mu.Unlock()
				if len(batch) > 0 {
					select {
					case d.ready <- batch:
					case <-ctx.Done():
						return
					}
				}
				continue
			}
			timerCh = d.clock.After(earliest.Sub(now))
		}
		d.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-d.wake:
		case <-timerCh:
		}
	}
}

// expireLocked pops every entry whose deadline has passed, dropping paths
// that no longer exist.
func (d *Debouncer) expireLocked(now time.Time) []string {
	var batch []string
	for d.heap.Len() > 0 && !d.heap[0].deadline.After(now) {
		item := heap.Pop(&d.heap).(*deadlineItem)
		delete(d.entries, item.path)
		if d.exists(item.path) {
			batch = append(batch, item.path)
		}
	}
	sort.Strings(batch)
	return batch
}
