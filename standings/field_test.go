package main

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

func TestFetchField(t *testing.T) {
	var gotIDs []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotIDs = append(gotIDs, r.URL.Query().Get("compid"))
		io.WriteString(w, `[{"name":"Andy Lee","total":-1,"thru":18,"final":71}]`)
	}))
	defer server.Close()

	opts := &Options{Origin: server.URL, CompIDs: "42", Timeout: time.Second}
	records, err := FetchField(context.Background(), opts, leaderboard.ViewCombined)
	require.NoError(t, err)

	require.Len(t, records, 1)
	assert.Equal(t, "Andy Lee", records[0].Name)
	assert.Equal(t, []string{"42"}, gotIDs)
}

func TestFetchField_NoCompetition(t *testing.T) {
	_, err := FetchField(context.Background(), &Options{Origin: "http://127.0.0.1:1"}, leaderboard.ViewCombined)
	assert.ErrorIs(t, err, errNoCompetition)
}
