package main

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

func TestQueryFor(t *testing.T) {
	r := httptest.NewRequest("GET", "/leaderboard?compid=11,12&scoreType=points", nil)
	q, err := queryFor(r, leaderboard.ViewCombined)
	require.NoError(t, err)
	assert.Equal(t, []string{"11", "12"}, q.CompIDs)
	assert.Equal(t, leaderboard.ScoreTypePoints, q.ScoreType)

	r = httptest.NewRequest("GET", "/leaderboard?compid=11&scoreType=bogus", nil)
	q, err = queryFor(r, leaderboard.ViewCombined)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.ScoreTypeStroke, q.ScoreType)

	r = httptest.NewRequest("GET", "/leaderboard", nil)
	_, err = queryFor(r, leaderboard.ViewCombined)
	assert.ErrorIs(t, err, errMissingCompID)

	r = httptest.NewRequest("GET", "/ksw?compid=99", nil)
	q, err = queryFor(r, leaderboard.ViewSingle)
	require.NoError(t, err)
	assert.Equal(t, leaderboard.Query{View: leaderboard.ViewSingle}, q)
}

func TestLoadPages(t *testing.T) {
	pages, err := loadPages()
	require.NoError(t, err)

	for _, view := range []leaderboard.View{leaderboard.ViewCombined, leaderboard.ViewSingle} {
		page := pages[view]
		assert.Contains(t, page, `src="/static/board.js"`)
		_, err := leaderboard.NewTable(page)
		assert.NoError(t, err, view)
	}
}

func TestContentType(t *testing.T) {
	ct, ok := contentType("fonts/Title.OTF")
	assert.True(t, ok)
	assert.Equal(t, "font/otf", ct)

	_, ok = contentType("secrets.env")
	assert.False(t, ok)

	assert.True(t, isText("board.js"))
	assert.False(t, isText("logo.png"))
}
