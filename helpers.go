package main

import (
	"bytes"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"path"
	"strings"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

//go:embed static
var staticFS embed.FS

const (
	staticRoot      = "/static"
	rootPlaceholder = "%root%"
)

var errMissingCompID = errors.New("compid query parameter is required")

// pageFiles maps each view to the page template it is rendered into.
var pageFiles = map[leaderboard.View]string{
	leaderboard.ViewCombined: "static/index.html",
	leaderboard.ViewSingle:   "static/ksw.html",
}

func loadPages() (map[leaderboard.View]string, error) {
	pages := make(map[leaderboard.View]string, len(pageFiles))
	for view, name := range pageFiles {
		b, err := fs.ReadFile(staticFS, name)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		pages[view] = string(substituteRoot(b))
	}
	return pages, nil
}

// queryFor reads the board query of a page or API request.
func queryFor(r *http.Request, view leaderboard.View) (leaderboard.Query, error) {
	q := leaderboard.Query{View: view}
	if view == leaderboard.ViewSingle {
		return q, nil
	}
	values := r.URL.Query()
	q.CompIDs = leaderboard.ParseCompetitionIDs(values.Get("compid"))
	if len(q.CompIDs) == 0 {
		return q, errMissingCompID
	}
	q.ScoreType = leaderboard.ParseScoreType(values.Get("scoreType"))
	return q, nil
}

// substituteRoot points asset references at the static route.
func substituteRoot(b []byte) []byte {
	return bytes.ReplaceAll(b, []byte(rootPlaceholder), []byte(staticRoot))
}

func contentType(name string) (string, bool) {
	switch strings.ToLower(path.Ext(name)) {
	case ".html":
		return "text/html; charset=utf-8", true
	case ".css":
		return "text/css; charset=utf-8", true
	case ".js":
		return "text/javascript; charset=utf-8", true
	case ".png":
		return "image/png", true
	case ".jpg", ".jpeg":
		return "image/jpeg", true
	case ".svg":
		return "image/svg+xml", true
	case ".otf":
		return "font/otf", true
	default:
		return "", false
	}
}

func isText(name string) bool {
	switch strings.ToLower(path.Ext(name)) {
	case ".html", ".css", ".js":
		return true
	}
	return false
}
