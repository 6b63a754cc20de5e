package leaderboard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-andiamo/splitter"
	"github.com/gocolly/colly"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	combinedPath = "/api/competition_result_by_http"
	singlePath   = "/api/ksw_result_by_http"

	userAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) " +
		"AppleWebKit/537.36 (KHTML, like Gecko) " +
		"Chrome/115.0.0.0 Safari/537.36"
)

var (
	ErrNoCompetition = errors.New("no competition id given")
	ErrBadStatus     = errors.New("unexpected response status")
)

var tracer = otel.Tracer("github.com/cpacia/lfg-leaderboard/leaderboard")

var idSplitter splitter.Splitter

func init() {
	var err error
	idSplitter, err = splitter.NewSplitter(',', splitter.DoubleQuotes)
	if err != nil {
		log.Fatalf("error building compid splitter: %v", err)
	}
}

// ParseCompetitionIDs splits the comma-separated compid parameter. Blank
// entries are dropped and double-quoted ids may contain commas.
func ParseCompetitionIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	parts, err := idSplitter.Split(raw)
	if err != nil {
		// Unbalanced quotes; fall back to a plain split.
		parts = strings.Split(raw, ",")
	}
	ids := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.Trim(strings.TrimSpace(p), `"`)
		if p != "" {
			ids = append(ids, p)
		}
	}
	return ids
}

// Fetcher loads player records from the results API.
type Fetcher struct {
	// Origin is the scheme and host of the results API, e.g.
	// https://example.azurewebsites.net.
	Origin  string
	Timeout time.Duration
	// KeepLateEntries keeps players that only appear in a later round when
	// merging several competitions.
	KeepLateEntries bool
	Verbose         bool
	// Transport defaults to http.DefaultTransport.
	Transport http.RoundTripper
}

// Fetch returns the records the query's board should display.
func (f *Fetcher) Fetch(ctx context.Context, q Query) ([]PlayerRecord, error) {
	ctx, span := tracer.Start(ctx, "leaderboard.fetch")
	defer span.End()
	span.SetAttributes(
		attribute.String("view", string(q.View)),
		attribute.StringSlice("compids", q.CompIDs),
	)

	var (
		records []PlayerRecord
		err     error
	)
	if q.View == ViewSingle {
		records, err = f.FetchSingle(ctx)
	} else {
		records, err = f.FetchCombined(ctx, q.CompIDs)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.Int("records", len(records)))
	return records, nil
}

// FetchCombined requests every competition concurrently and merges the
// result sets in the order the ids were given.
func (f *Fetcher) FetchCombined(ctx context.Context, compIDs []string) ([]PlayerRecord, error) {
	if len(compIDs) == 0 {
		return nil, ErrNoCompetition
	}

	urls := make([]string, len(compIDs))
	for i, id := range compIDs {
		urls[i] = f.endpoint(combinedPath) + "?compid=" + url.QueryEscape(id)
	}

	rounds := make([][]PlayerRecord, len(compIDs))
	err := f.getJSON(ctx, urls, func(i int, body []byte) error {
		var records []PlayerRecord
		if err := json.Unmarshal(body, &records); err != nil {
			return fmt.Errorf("decode competition %s: %w", compIDs[i], err)
		}
		rounds[i] = records
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(rounds) == 1 {
		return rounds[0], nil
	}
	merged := MergeRounds(rounds, f.KeepLateEntries)
	if !f.KeepLateEntries {
		if dropped := countLateEntries(rounds); dropped > 0 {
			log.Printf("Dropped %d players missing from competition %s", dropped, compIDs[0])
		}
	}
	return merged, nil
}

// FetchSingle loads the single-competition results.
func (f *Fetcher) FetchSingle(ctx context.Context) ([]PlayerRecord, error) {
	var records []PlayerRecord
	err := f.getJSON(ctx, []string{f.endpoint(singlePath)}, func(_ int, body []byte) error {
		var rows []KSWRecord
		if err := json.Unmarshal(body, &rows); err != nil {
			return fmt.Errorf("decode results: %w", err)
		}
		records = make([]PlayerRecord, len(rows))
		for i, r := range rows {
			records[i] = r.toPlayerRecord()
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (f *Fetcher) endpoint(path string) string {
	return strings.TrimSuffix(f.Origin, "/") + path
}

// getJSON visits every url concurrently and hands each body to decode
// along with the url's index. It returns once all requests finished.
func (f *Fetcher) getJSON(ctx context.Context, urls []string, decode func(int, []byte) error) error {
	if f.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, f.Timeout)
		defer cancel()
	}

	c := f.newCollector(ctx)

	var (
		mu   sync.Mutex
		errs []error
	)
	addErr := func(err error) {
		mu.Lock()
		errs = append(errs, err)
		mu.Unlock()
	}

	c.OnResponse(func(r *colly.Response) {
		idx, err := strconv.Atoi(r.Ctx.Get("index"))
		if err != nil {
			addErr(fmt.Errorf("response without index from %s", r.Request.URL))
			return
		}
		if err := decode(idx, r.Body); err != nil {
			addErr(err)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		if r.StatusCode != 0 {
			addErr(fmt.Errorf("%w: %d from %s", ErrBadStatus, r.StatusCode, r.Request.URL))
			return
		}
		addErr(fmt.Errorf("GET %s: %w", r.Request.URL, err))
	})

	for i, u := range urls {
		rctx := colly.NewContext()
		rctx.Put("index", strconv.Itoa(i))
		if err := c.Request(http.MethodGet, u, nil, rctx, nil); err != nil {
			c.Wait()
			return fmt.Errorf("GET %s: %w", u, err)
		}
	}
	c.Wait()

	if err := ctx.Err(); err != nil {
		return err
	}
	return errors.Join(errs...)
}

func (f *Fetcher) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(userAgent),
		colly.Async(true),
	)
	// Every poll asks for the same urls.
	c.AllowURLRevisit = true

	base := f.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	c.WithTransport(&contextTransport{ctx: ctx, base: base})

	c.OnRequest(func(r *colly.Request) {
		r.Headers.Set("Accept", "application/json")
		r.Headers.Set("Cache-Control", "no-cache")
		if f.Verbose {
			log.Println("Visiting", r.URL.String())
		}
	})
	return c
}

// contextTransport binds every request of a collector to one context so a
// stopped poller cancels its in-flight fetches.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func countLateEntries(rounds [][]PlayerRecord) int {
	first := indexByName(rounds[0])
	late := make(map[string]bool)
	for _, round := range rounds[1:] {
		for _, p := range round {
			if _, ok := first[p.Name]; !ok {
				late[p.Name] = true
			}
		}
	}
	return len(late)
}
