package main

import (
	"context"
	"errors"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

var errNoCompetition = errors.New("--compid is required unless --single is set")

// FetchField loads the records of one board from the results API.
func FetchField(ctx context.Context, opts *Options, view leaderboard.View) ([]leaderboard.PlayerRecord, error) {
	q := leaderboard.Query{
		View:      view,
		CompIDs:   leaderboard.ParseCompetitionIDs(opts.CompIDs),
		ScoreType: leaderboard.ParseScoreType(opts.ScoreType),
	}
	if view == leaderboard.ViewCombined && len(q.CompIDs) == 0 {
		return nil, errNoCompetition
	}

	f := &leaderboard.Fetcher{
		Origin:          opts.Origin,
		Timeout:         opts.Timeout,
		KeepLateEntries: opts.KeepLate,
	}
	return f.Fetch(ctx, q)
}
