package leaderboard

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is how often a board refreshes.
const DefaultInterval = 10 * time.Second

// Poller runs a task once on Start and then on every tick until Stop. A
// tick that arrives while the previous run is still in flight is skipped;
// a manual trigger is held and runs once the in-flight run finishes.
type Poller struct {
	interval time.Duration
	task     func(context.Context)
	manual   *rate.Limiter

	running atomic.Bool
	pending atomic.Bool
	skipped atomic.Int64

	mu      sync.Mutex
	cancel  context.CancelFunc
	trigger chan struct{}
	done    chan struct{}
}

// NewPoller returns a stopped poller. minTrigger is the smallest gap allowed
// between two manual triggers; zero disables the limit.
func NewPoller(interval, minTrigger time.Duration, task func(context.Context)) *Poller {
	if interval <= 0 {
		interval = DefaultInterval
	}
	limit := rate.Inf
	if minTrigger > 0 {
		limit = rate.Every(minTrigger)
	}
	return &Poller{
		interval: interval,
		task:     task,
		manual:   rate.NewLimiter(limit, 1),
	}
}

// Start begins polling. Calling Start on a running poller does nothing.
func (p *Poller) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cancel != nil {
		return
	}
	ctx, p.cancel = context.WithCancel(ctx)
	p.trigger = make(chan struct{}, 1)
	p.done = make(chan struct{})
	go p.loop(ctx, p.trigger, p.done)
}

// Stop cancels any in-flight run and waits for the loop to exit.
func (p *Poller) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel, p.done, p.trigger = nil, nil, nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether the poller has been started and not stopped.
func (p *Poller) Running() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// Trigger asks for a run outside the schedule. It returns false when the
// poller is stopped or manual triggers are coming in too fast.
func (p *Poller) Trigger() bool {
	p.mu.Lock()
	trigger := p.trigger
	p.mu.Unlock()

	if trigger == nil || !p.manual.Allow() {
		return false
	}
	select {
	case trigger <- struct{}{}:
	default:
		// One is already queued.
	}
	return true
}

// Skipped is the number of ticks dropped because a run was in flight.
func (p *Poller) Skipped() int64 {
	return p.skipped.Load()
}

func (p *Poller) loop(ctx context.Context, trigger <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	var wg sync.WaitGroup
	defer wg.Wait()

	var start func()
	start = func() {
		p.pending.Store(false)
		wg.Add(1)
		go func() {
			defer wg.Done()
			p.task(ctx)
			p.running.Store(false)
			if ctx.Err() != nil || !p.pending.CompareAndSwap(true, false) {
				return
			}
			// A trigger came in while the task ran.
			if p.running.CompareAndSwap(false, true) {
				start()
			}
		}()
	}

	run := func(manual bool) {
		if manual {
			p.pending.Store(true)
		}
		if !p.running.CompareAndSwap(false, true) {
			if !manual {
				p.skipped.Add(1)
			}
			return
		}
		start()
	}

	run(false)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			run(false)
		case <-trigger:
			run(true)
		}
	}
}
