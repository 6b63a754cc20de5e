package main

import (
	"context"
	"errors"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jessevdk/go-flags"
	"github.com/joho/godotenv"
)

const serviceName = "lfg-leaderboard"

type Options struct {
	Listen         string        `short:"l" long:"listen" description:"Address to serve the leaderboards on" default:":8080" env:"LEADERBOARD_LISTEN"`
	Origin         string        `short:"o" long:"origin" description:"Base URL of the results API" default:"http://localhost:7071" env:"LEADERBOARD_ORIGIN"`
	Interval       time.Duration `long:"interval" description:"How often each board refreshes" default:"10s" env:"LEADERBOARD_INTERVAL"`
	RequestTimeout time.Duration `long:"request-timeout" description:"Timeout for one refresh's requests" default:"8s" env:"LEADERBOARD_REQUEST_TIMEOUT"`
	MaxRows        int           `long:"max-rows" description:"Rows shown by the single competition view" default:"50" env:"LEADERBOARD_MAX_ROWS"`
	MaxBoards      int           `long:"max-boards" description:"Boards that may poll at the same time" default:"32" env:"LEADERBOARD_MAX_BOARDS"`
	IdleTimeout    time.Duration `long:"idle-timeout" description:"Stop polling boards nobody viewed for this long" default:"15m" env:"LEADERBOARD_IDLE_TIMEOUT"`
	KeepLate       bool          `long:"keep-late-entries" description:"Keep players that only appear in a later round" env:"LEADERBOARD_KEEP_LATE_ENTRIES"`
	RefreshLimit   string        `long:"refresh-limit" description:"Manual refreshes allowed per client (e.g. 6-M)" default:"6-M" env:"LEADERBOARD_REFRESH_LIMIT"`
	MinTrigger     time.Duration `long:"min-trigger" description:"Smallest gap between two manual refreshes of a board" default:"2s" env:"LEADERBOARD_MIN_TRIGGER"`
	AllowedOrigins []string      `long:"allowed-origin" description:"Origin allowed to read the API and open websockets" env:"LEADERBOARD_ALLOWED_ORIGINS" env-delim:","`
	OtelEndpoint   string        `long:"otel-endpoint" description:"OTLP/HTTP endpoint for traces; tracing is off when empty" env:"LEADERBOARD_OTEL_ENDPOINT"`
	DevMode        bool          `long:"dev" description:"Allow any origin" env:"LEADERBOARD_DEV"`
	Verbose        bool          `short:"v" long:"verbose" description:"Log every upstream request"`
}

func main() {
	// The .env file is optional.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Printf("Error loading .env file: %v", err)
	}

	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := setupTracing(ctx, serviceName, opts.OtelEndpoint)
	if err != nil {
		log.Fatalf("Tracing initialization errored: %v", err)
	}

	s, err := newServer(ctx, &opts)
	if err != nil {
		log.Fatalf("Server initialization errored: %v", err)
	}

	srv := &http.Server{
		Addr:              opts.Listen,
		Handler:           s.r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	log.Printf("Serving leaderboards on %s (results from %s)", opts.Listen, opts.Origin)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Server errored: %v", err)
	}

	s.boards.Close()

	flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(flushCtx); err != nil {
		log.Printf("Error flushing traces: %v", err)
	}
}
