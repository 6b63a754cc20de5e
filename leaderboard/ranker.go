package leaderboard

import (
	"sort"
	"strconv"
)

const (
	zeroStroke = "Level"
	zeroPoints = "Highest"

	classUnderPar = "red-box"
	classOverPar  = "black-box"

	// DefaultSingleRows is how many rows the single view shows.
	DefaultSingleRows = 50
)

// Policy decides how records are ordered and how a zero score is labelled.
type Policy struct {
	Descending bool
	// ThruTieBreak puts the player with more holes played first on equal
	// totals.
	ThruTieBreak bool
	ZeroLabel    string
	// UsePosition shows the upstream position as the rank label of players
	// that carry both round scores.
	UsePosition bool
}

// PolicyFor returns the sort policy of a view. scoreType only matters for
// the combined view.
func PolicyFor(view View, scoreType ScoreType) Policy {
	if view == ViewSingle {
		return Policy{Descending: true, ZeroLabel: zeroPoints, UsePosition: true}
	}
	if scoreType == ScoreTypePoints {
		return Policy{Descending: true, ThruTieBreak: true, ZeroLabel: zeroPoints}
	}
	return Policy{ThruTieBreak: true, ZeroLabel: zeroStroke}
}

// SortRecords orders records in place. Records without a total go after
// every scored record in both directions. A missing total is not read as
// level par, so an unscored player never sorts among the zero scores.
func SortRecords(records []PlayerRecord, p Policy) {
	sort.SliceStable(records, func(i, j int) bool {
		a, b := records[i], records[j]
		if a.Total == nil || b.Total == nil {
			return a.Total != nil && b.Total == nil
		}
		if *a.Total == *b.Total {
			if p.ThruTieBreak {
				return a.Thru > b.Thru
			}
			return false
		}
		if p.Descending {
			return *a.Total > *b.Total
		}
		return *a.Total < *b.Total
	})
}

func sameScore(a, b *float64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

// Rank sorts records and assigns competition ranks. Tied players share a
// rank and only the first of a tied group gets a rank label; the next
// distinct score resumes at one plus the number of players above it.
// limit truncates the result when positive.
func Rank(records []PlayerRecord, p Policy, limit int) []RankedRow {
	sorted := make([]PlayerRecord, len(records))
	copy(sorted, records)
	SortRecords(sorted, p)

	if limit > 0 && len(sorted) > limit {
		sorted = sorted[:limit]
	}

	rows := make([]RankedRow, 0, len(sorted))
	currentRank, rankGap := 1, 1
	var previous *float64
	if len(sorted) > 0 {
		previous = sorted[0].Total
	}

	for i, player := range sorted {
		row := RankedRow{PlayerRecord: player}
		if i == 0 || !sameScore(player.Total, previous) {
			currentRank += rankGap
			rankGap = 1
			row.Rank = currentRank - rankGap
			row.RankLabel = strconv.Itoa(row.Rank)
		} else {
			rankGap++
			row.Rank = currentRank - 1
		}

		if p.UsePosition && player.hasRounds() {
			row.RankLabel = strconv.Itoa(player.Position)
		}

		row.DisplayScore, row.ScoreClass = displayScore(player.Total, p.ZeroLabel)
		rows = append(rows, row)
		previous = player.Total
	}
	return rows
}

func displayScore(total *float64, zeroLabel string) (string, string) {
	if total == nil {
		return "", classOverPar
	}
	class := classOverPar
	if *total < 0 {
		class = classUnderPar
	}
	if *total == 0 {
		return zeroLabel, class
	}
	return formatNumber(*total), class
}
