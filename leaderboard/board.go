package leaderboard

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

// Query identifies what a board shows.
type Query struct {
	View      View
	CompIDs   []string
	ScoreType ScoreType
}

// Key is the same for queries that display the same board.
func (q Query) Key() string {
	if q.View == ViewSingle {
		return string(ViewSingle)
	}
	return string(q.View) + "|" + strings.Join(q.CompIDs, ",") + "|" + string(q.ScoreType)
}

// Source loads the records of a board.
type Source interface {
	Fetch(ctx context.Context, q Query) ([]PlayerRecord, error)
}

type BoardOptions struct {
	Interval time.Duration
	// MinTrigger is the smallest gap between two manual refreshes.
	MinTrigger time.Duration
	// MaxRows caps the single view; the combined view shows every row.
	MaxRows int
}

// Message is what subscribers receive. A "reset" carries the full table
// body, a "patch" the changes of one refresh.
type Message struct {
	Type    string     `json:"type"`
	Body    string     `json:"body,omitempty"`
	Patches []RowPatch `json:"patches,omitempty"`
	Updated time.Time  `json:"updated"`
}

// Subscription receives a board's messages until it is closed.
type Subscription struct {
	C     <-chan Message
	c     chan Message
	board *Board
	once  sync.Once
}

// Close detaches the subscription from its board.
func (s *Subscription) Close() {
	s.once.Do(func() {
		s.board.unsubscribe(s)
	})
}

const subscriberBuffer = 8

// Board keeps one view's table up to date.
type Board struct {
	query  Query
	source Source
	policy Policy
	limit  int
	poller *Poller

	mu       sync.Mutex
	table    *Table
	prev     Snapshot
	rows     []RankedRow
	updated  time.Time
	lastErr  error
	subs     map[*Subscription]struct{}
	lastSeen time.Time
}

// NewBoard builds a stopped board around page, which must contain the
// leaderboard table body.
func NewBoard(q Query, source Source, page string, opts BoardOptions) (*Board, error) {
	table, err := NewTable(page)
	if err != nil {
		return nil, err
	}
	limit := 0
	if q.View == ViewSingle {
		limit = opts.MaxRows
		if limit <= 0 {
			limit = DefaultSingleRows
		}
	}
	b := &Board{
		query:    q,
		source:   source,
		policy:   PolicyFor(q.View, q.ScoreType),
		limit:    limit,
		table:    table,
		subs:     make(map[*Subscription]struct{}),
		lastSeen: time.Now(),
	}
	b.poller = NewPoller(opts.Interval, opts.MinTrigger, b.poll)
	return b, nil
}

func (b *Board) Query() Query { return b.query }

func (b *Board) Start(ctx context.Context) { b.poller.Start(ctx) }

func (b *Board) Stop() { b.poller.Stop() }

// Trigger asks the poller for an immediate refresh.
func (b *Board) Trigger() bool { return b.poller.Trigger() }

func (b *Board) poll(ctx context.Context) {
	if err := b.Refresh(ctx); err != nil && ctx.Err() == nil {
		log.Printf("Error fetching leaderboard data (%s): %v", b.query.Key(), err)
	}
}

// Refresh runs one fetch, rank and reconcile cycle. On error the table is
// left as it was.
func (b *Board) Refresh(ctx context.Context) error {
	ctx, span := tracer.Start(ctx, "leaderboard.refresh")
	defer span.End()
	span.SetAttributes(attribute.String("board", b.query.Key()))

	records, err := b.source.Fetch(ctx, b.query)
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		b.mu.Lock()
		b.lastErr = err
		b.mu.Unlock()
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	rows := Rank(records, b.policy, b.limit)

	b.mu.Lock()
	defer b.mu.Unlock()
	next, patches := Reconcile(b.table, b.query.View, b.prev, rows)
	b.prev = next
	b.rows = rows
	b.updated = time.Now()
	b.lastErr = nil
	b.broadcast(Message{Type: "patch", Patches: patches, Updated: b.updated})

	span.SetAttributes(attribute.Int("rows", len(rows)), attribute.Int("patches", len(patches)))
	return nil
}

// Rows returns a copy of the rows of the last successful refresh.
func (b *Board) Rows() []RankedRow {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]RankedRow, len(b.rows))
	copy(out, b.rows)
	return out
}

// Status returns when the board last refreshed and the error of the last
// attempt, if it failed.
func (b *Board) Status() (time.Time, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.updated, b.lastErr
}

// Page renders the current page with title in the title element.
func (b *Board) Page(title string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastSeen = time.Now()
	b.table.SetTitle(title)
	return b.table.HTML()
}

// Subscribe registers for updates. The first message is a reset holding
// the current rows.
func (b *Board) Subscribe() (*Subscription, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	body, err := b.table.BodyHTML()
	if err != nil {
		return nil, err
	}
	c := make(chan Message, subscriberBuffer)
	c <- Message{Type: "reset", Body: body, Updated: b.updated}

	s := &Subscription{C: c, c: c, board: b}
	b.subs[s] = struct{}{}
	b.lastSeen = time.Now()
	return s, nil
}

func (b *Board) unsubscribe(s *Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.subs[s]; ok {
		delete(b.subs, s)
		close(s.c)
	}
	b.lastSeen = time.Now()
}

// broadcast must be called with b.mu held. Subscribers that can't keep up
// are dropped; their channel is closed so the reader can reconnect.
func (b *Board) broadcast(m Message) {
	for s := range b.subs {
		select {
		case s.c <- m:
		default:
			delete(b.subs, s)
			close(s.c)
		}
	}
}

// Touch marks the board as viewed.
func (b *Board) Touch() {
	b.mu.Lock()
	b.lastSeen = time.Now()
	b.mu.Unlock()
}

// idleSince returns when the board was last viewed, or false while it has
// subscribers.
func (b *Board) idleSince() (time.Time, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.subs) > 0 {
		return time.Time{}, false
	}
	return b.lastSeen, true
}

var ErrTooManyBoards = errors.New("too many boards")

// Registry hands out one running board per distinct query.
type Registry struct {
	ctx      context.Context
	newBoard func(Query) (*Board, error)
	max      int
	idle     time.Duration
	now      func() time.Time

	mu     sync.Mutex
	boards map[string]*Board

	stopReaper context.CancelFunc
	reaperDone chan struct{}
	closeOnce  sync.Once
}

// NewRegistry starts boards made by newBoard under ctx. At most max boards
// run at once (zero means no limit) and boards unviewed for idle are
// stopped (zero keeps them forever). Idle boards are reaped in the
// background every idle/2 until ctx is done or Close is called.
func NewRegistry(ctx context.Context, newBoard func(Query) (*Board, error), max int, idle time.Duration) *Registry {
	r := &Registry{
		ctx:        ctx,
		newBoard:   newBoard,
		max:        max,
		idle:       idle,
		now:        time.Now,
		boards:     make(map[string]*Board),
		reaperDone: make(chan struct{}),
	}
	reapCtx, cancel := context.WithCancel(ctx)
	r.stopReaper = cancel
	if idle > 0 {
		go r.reapLoop(reapCtx)
	} else {
		close(r.reaperDone)
	}
	return r
}

func (r *Registry) reapLoop(ctx context.Context) {
	defer close(r.reaperDone)

	every := r.idle / 2
	if every <= 0 {
		every = r.idle
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if n := r.Reap(); n > 0 {
				log.Printf("Stopped %d idle boards", n)
			}
		}
	}
}

// Get returns the running board for q, starting it if needed.
func (r *Registry) Get(q Query) (*Board, error) {
	r.Reap()

	key := q.Key()
	r.mu.Lock()
	defer r.mu.Unlock()

	if b, ok := r.boards[key]; ok {
		b.Touch()
		return b, nil
	}
	if r.max > 0 && len(r.boards) >= r.max {
		return nil, ErrTooManyBoards
	}
	b, err := r.newBoard(q)
	if err != nil {
		return nil, err
	}
	b.Start(r.ctx)
	r.boards[key] = b
	return b, nil
}

// Reap stops boards that have been idle too long and returns how many.
func (r *Registry) Reap() int {
	if r.idle <= 0 {
		return 0
	}
	cutoff := r.now().Add(-r.idle)

	r.mu.Lock()
	var stale []*Board
	for key, b := range r.boards {
		if since, idle := b.idleSince(); idle && since.Before(cutoff) {
			stale = append(stale, b)
			delete(r.boards, key)
		}
	}
	r.mu.Unlock()

	for _, b := range stale {
		b.Stop()
	}
	return len(stale)
}

// Len is the number of running boards.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.boards)
}

// Close stops the reaper and every board.
func (r *Registry) Close() {
	r.closeOnce.Do(func() {
		r.stopReaper()
		<-r.reaperDone
	})

	r.mu.Lock()
	boards := r.boards
	r.boards = make(map[string]*Board)
	r.mu.Unlock()

	for _, b := range boards {
		b.Stop()
	}
}
