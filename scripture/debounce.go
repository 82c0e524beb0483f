package scripture

import (
	"sync"
	"time"
)

// DefaultDebounce is the quiet period before a typed query is searched.
const DefaultDebounce = 300 * time.Millisecond

// Debouncer coalesces bursts of input: a value is emitted once no newer value has arrived for the
// quiet period, and only the last value of a burst is emitted.
type Debouncer struct {
	quiet time.Duration

	in      chan string
	out     chan string
	closed  chan struct{}
	stopped chan struct{}
	once    sync.Once
}

// NewDebouncer starts a Debouncer. quiet <= 0 selects DefaultDebounce. Call Close to stop it.
func NewDebouncer(quiet time.Duration) *Debouncer {
	if quiet <= 0 {
		quiet = DefaultDebounce
	}
	d := &Debouncer{
		quiet:   quiet,
		in:      make(chan string),
		out:     make(chan string),
		closed:  make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go d.run()
	return d
}

// Push submits a new raw value. It is a no-op after Close.
func (d *Debouncer) Push(s string) {
	select {
	case d.in <- s:
	case <-d.closed:
	}
}

// Output delivers debounced values. It is closed by Close.
func (d *Debouncer) Output() <-chan string {
	return d.out
}

// Close stops the debouncer and drops any value still waiting out its quiet period.
func (d *Debouncer) Close() {
	d.once.Do(func() { close(d.closed) })
	<-d.stopped
}

func (d *Debouncer) run() {
	defer close(d.stopped)
	defer close(d.out)

	var (
		pending string
		timer   *time.Timer
		fire    <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()
	for {
		select {
		case <-d.closed:
			return
		case s := <-d.in:
			pending = s
			if timer != nil {
				timer.Stop()
			}
			// A fresh timer per value; the previous channel is dropped so it can never fire late.
			timer = time.NewTimer(d.quiet)
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case d.out <- pending:
			case <-d.closed:
				return
			}
		}
	}
}
