package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/websocket"
	"github.com/ulule/limiter/v3"
	"github.com/ulule/limiter/v3/drivers/middleware/stdlib"
	"github.com/ulule/limiter/v3/drivers/store/memory"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

const (
	pingInterval = 30 * time.Second
	writeWait    = 10 * time.Second
)

type Server struct {
	ctx     context.Context
	r       chi.Router
	boards  *leaderboard.Registry
	origins map[string]bool
	devMode bool

	upgrader websocket.Upgrader
}

// views maps the public path segment of each page to its view.
var views = map[string]leaderboard.View{
	"leaderboard": leaderboard.ViewCombined,
	"ksw":         leaderboard.ViewSingle,
}

func newServer(ctx context.Context, opts *Options) (*Server, error) {
	pages, err := loadPages()
	if err != nil {
		return nil, err
	}

	fetcher := &leaderboard.Fetcher{
		Origin:          opts.Origin,
		Timeout:         opts.RequestTimeout,
		KeepLateEntries: opts.KeepLate,
		Verbose:         opts.Verbose,
	}
	return newServerWithSource(ctx, opts, fetcher, pages)
}

func newServerWithSource(ctx context.Context, opts *Options, source leaderboard.Source, pages map[leaderboard.View]string) (*Server, error) {
	rate, err := limiter.NewRateFromFormatted(opts.RefreshLimit)
	if err != nil {
		return nil, fmt.Errorf("refresh limit: %w", err)
	}
	refreshLimiter := stdlib.NewMiddleware(limiter.New(memory.NewStore(), rate))

	boardOpts := leaderboard.BoardOptions{
		Interval:   opts.Interval,
		MinTrigger: opts.MinTrigger,
		MaxRows:    opts.MaxRows,
	}
	newBoard := func(q leaderboard.Query) (*leaderboard.Board, error) {
		return leaderboard.NewBoard(q, source, pages[q.View], boardOpts)
	}

	s := &Server{
		ctx:     ctx,
		r:       chi.NewRouter(),
		boards:  leaderboard.NewRegistry(ctx, newBoard, opts.MaxBoards, opts.IdleTimeout),
		origins: make(map[string]bool),
		devMode: opts.DevMode,
	}
	for _, o := range opts.AllowedOrigins {
		s.origins[strings.TrimSuffix(o, "/")] = true
	}
	s.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin:     s.checkOrigin,
	}

	// Middleware
	s.r.Use(middleware.Logger)
	s.r.Use(middleware.Recoverer)

	s.r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/leaderboard?"+r.URL.RawQuery, http.StatusFound)
	})
	s.r.Get("/static/*", s.GETStatic)
	s.r.Get("/ws/{view}", s.GETUpdates)

	s.r.Route("/api", func(r chi.Router) {
		r.Use(cors.Handler(cors.Options{
			AllowOriginFunc: func(r *http.Request, origin string) bool { return s.allowedOrigin(origin) },
			AllowedMethods:  []string{"GET", "POST", "OPTIONS"},
			AllowedHeaders:  []string{"Accept", "Content-Type"},
			MaxAge:          300,
		}))
		r.Get("/{view}", s.GETBoard)
		r.With(refreshLimiter.Handler).Post("/refresh/{view}", s.POSTRefresh)
	})

	s.r.Get("/{view}", s.GETPage)

	return s, nil
}

func (s *Server) allowedOrigin(origin string) bool {
	return s.devMode || s.origins[strings.TrimSuffix(origin, "/")]
}

// checkOrigin accepts same-host websocket upgrades and configured origins.
func (s *Server) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" || s.allowedOrigin(origin) {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}

// board resolves the board a request is asking for, starting it if needed.
// It writes the error response itself and returns nil on failure.
func (s *Server) board(w http.ResponseWriter, r *http.Request) *leaderboard.Board {
	view, ok := views[chi.URLParam(r, "view")]
	if !ok {
		http.Error(w, "Not found", http.StatusNotFound)
		return nil
	}
	q, err := queryFor(r, view)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return nil
	}
	b, err := s.boards.Get(q)
	if err != nil {
		if errors.Is(err, leaderboard.ErrTooManyBoards) {
			http.Error(w, "Too many leaderboards are being displayed", http.StatusServiceUnavailable)
			return nil
		}
		log.Printf("Error creating board %s: %v", q.Key(), err)
		http.Error(w, "Could not load leaderboard", http.StatusInternalServerError)
		return nil
	}
	return b
}

func (s *Server) GETPage(w http.ResponseWriter, r *http.Request) {
	b := s.board(w, r)
	if b == nil {
		return
	}
	page, err := b.Page(r.URL.Query().Get("compname"))
	if err != nil {
		http.Error(w, "Could not render leaderboard", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	fmt.Fprint(w, page)
}

type boardResponse struct {
	Updated *time.Time              `json:"updated"`
	Error   string                  `json:"error,omitempty"`
	Rows    []leaderboard.RankedRow `json:"rows"`
}

func (s *Server) GETBoard(w http.ResponseWriter, r *http.Request) {
	b := s.board(w, r)
	if b == nil {
		return
	}
	updated, lastErr := b.Status()

	resp := boardResponse{Rows: b.Rows()}
	if !updated.IsZero() {
		resp.Updated = &updated
	}
	if lastErr != nil {
		resp.Error = "Last refresh failed"
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (s *Server) POSTRefresh(w http.ResponseWriter, r *http.Request) {
	b := s.board(w, r)
	if b == nil {
		return
	}
	if !b.Trigger() {
		http.Error(w, "Refresh already requested", http.StatusTooManyRequests)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

// GETUpdates streams the board's row patches over a websocket.
func (s *Server) GETUpdates(w http.ResponseWriter, r *http.Request) {
	b := s.board(w, r)
	if b == nil {
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the error response.
		return
	}
	defer conn.Close()

	sub, err := b.Subscribe()
	if err != nil {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "subscribe failed"),
			time.Now().Add(writeWait))
		return
	}
	defer sub.Close()

	// Clients never send anything; reading detects when they go away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ping := time.NewTicker(pingInterval)
	defer ping.Stop()

	for {
		select {
		case m, ok := <-sub.C:
			if !ok {
				// Dropped for falling behind; the client reconnects.
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too slow"),
					time.Now().Add(writeWait))
				return
			}
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(m); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-gone:
			return
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(writeWait))
			return
		}
	}
}

func (s *Server) GETStatic(w http.ResponseWriter, r *http.Request) {
	name := path.Clean(strings.TrimPrefix(chi.URLParam(r, "*"), "/"))
	ct, ok := contentType(name)
	if !ok || strings.HasPrefix(name, "..") {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	body, err := fs.ReadFile(staticFS, path.Join("static", name))
	if err != nil {
		http.Error(w, "File not found", http.StatusNotFound)
		return
	}
	if isText(name) {
		body = substituteRoot(body)
	}
	w.Header().Set("Content-Type", ct)
	w.Write(body)
}
