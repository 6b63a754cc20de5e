package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/jessevdk/go-flags"

	"github.com/cpacia/lfg-leaderboard/leaderboard"
)

// --------- Parameters (flags) ---------
type Options struct {
	Origin    string        `short:"o" long:"origin" description:"Base URL of the results API" env:"LEADERBOARD_ORIGIN"`
	CompIDs   string        `short:"c" long:"compid" description:"Comma separated competition ids, one per round"`
	ScoreType string        `short:"s" long:"scoreType" description:"stroke or points" default:"stroke"`
	Single    bool          `long:"single" description:"Print the single competition standings"`
	KeepLate  bool          `long:"keep-late-entries" description:"Keep players that only appear in a later round"`
	Limit     int           `short:"n" long:"limit" description:"Rows to print for the single competition" default:"50"`
	Timeout   time.Duration `long:"timeout" description:"Request timeout" default:"8s"`
}

// --------- Main entry point ---------

func main() {
	var opts Options
	if _, err := flags.Parse(&opts); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		os.Exit(1)
	}

	view := leaderboard.ViewCombined
	limit := 0
	if opts.Single {
		view = leaderboard.ViewSingle
		limit = opts.Limit
	}
	scoreType := leaderboard.ParseScoreType(opts.ScoreType)

	var (
		records []leaderboard.PlayerRecord
		err     error
	)
	switch {
	case opts.Origin != "": // --- fetch from the results API ------------
		records, err = FetchField(context.Background(), &opts, view)
		if err != nil {
			log.Fatalf("fetch failed: %v", err)
		}

	case stdinHasData(): // --- read records from stdin ------------------
		if err := json.NewDecoder(os.Stdin).Decode(&records); err != nil {
			log.Fatalf("invalid JSON: %v", err)
		}

	default: // --- no input given ---------------------------------------
		log.Fatalf("please supply --origin or pipe result JSON to stdin")
	}

	rows := leaderboard.Rank(records, leaderboard.PolicyFor(view, scoreType), limit)
	printRows(view, rows)
}

func printRows(view leaderboard.View, rows []leaderboard.RankedRow) {
	if view == leaderboard.ViewSingle {
		fmt.Printf("%-4s %-24s %7s %6s\n", "Pos", "Player", "Score", "Played")
		for _, r := range rows {
			fmt.Printf("%-4s %-24s %7s %6d\n", r.RankLabel, r.Name, r.DisplayScore, r.Thru)
		}
		return
	}

	fmt.Printf("%-4s %-24s %4s %7s %7s %4s\n", "Pos", "Player", "PH", "Score", "Par", "Thru")
	for _, r := range rows {
		ph := ""
		if r.Handicap != nil {
			ph = fmt.Sprintf("%g", *r.Handicap)
		}
		fmt.Printf("%-4s %-24s %4s %7s %7s %4d\n", r.RankLabel, r.Name, ph, r.Final, r.DisplayScore, r.Thru)
	}
}

func stdinHasData() bool {
	stat, _ := os.Stdin.Stat()
	return (stat.Mode() & os.ModeCharDevice) == 0
}
