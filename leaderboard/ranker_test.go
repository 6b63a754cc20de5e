package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func score(v float64) *float64 { return &v }

func player(name string, total float64, thru int) PlayerRecord {
	return PlayerRecord{Name: name, Total: score(total), Thru: thru}
}

func ranks(rows []RankedRow) []int {
	out := make([]int, len(rows))
	for i, r := range rows {
		out[i] = r.Rank
	}
	return out
}

func labels(rows []RankedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.RankLabel
	}
	return out
}

func names(rows []RankedRow) []string {
	out := make([]string, len(rows))
	for i, r := range rows {
		out[i] = r.Name
	}
	return out
}

func TestRank_SingleViewTies(t *testing.T) {
	records := []PlayerRecord{
		{Name: "A B", Total: score(3)},
		{Name: "C D", Total: score(3)},
		{Name: "E F", Total: score(1)},
	}

	rows := Rank(records, PolicyFor(ViewSingle, ""), DefaultSingleRows)

	assert.Equal(t, []int{1, 1, 3}, ranks(rows))
	assert.Equal(t, []string{"1", "", "3"}, labels(rows))
	assert.Equal(t, []string{"A B", "C D", "E F"}, names(rows))
}

func TestRank_StrokeAscendingWithThruTieBreak(t *testing.T) {
	records := []PlayerRecord{
		player("Chad Lawrence", 2, 12),
		player("Andy Lee", -1, 18),
		player("Connor Shaw", 2, 18),
		player("Jim Tokanel", 4, 18),
	}

	rows := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)

	assert.Equal(t, []string{"Andy Lee", "Connor Shaw", "Chad Lawrence", "Jim Tokanel"}, names(rows))
	assert.Equal(t, []int{1, 2, 2, 4}, ranks(rows))
	assert.Equal(t, []string{"1", "2", "", "4"}, labels(rows))
}

func TestRank_PointsDescendingWithThruTieBreak(t *testing.T) {
	records := []PlayerRecord{
		player("Chad Lawrence", 30, 12),
		player("Andy Lee", 36, 18),
		player("Connor Shaw", 30, 18),
	}

	rows := Rank(records, PolicyFor(ViewCombined, ScoreTypePoints), 0)

	assert.Equal(t, []string{"Andy Lee", "Connor Shaw", "Chad Lawrence"}, names(rows))
	assert.Equal(t, []int{1, 2, 2}, ranks(rows))
}

func TestRank_SingleViewIgnoresThru(t *testing.T) {
	records := []PlayerRecord{
		player("Chad Lawrence", 5, 9),
		player("Andy Lee", 5, 18),
	}

	rows := Rank(records, PolicyFor(ViewSingle, ""), 0)

	// Stable sort keeps input order on equal scores.
	assert.Equal(t, []string{"Chad Lawrence", "Andy Lee"}, names(rows))
}

func TestRank_Empty(t *testing.T) {
	rows := Rank(nil, PolicyFor(ViewCombined, ScoreTypeStroke), 0)
	assert.Empty(t, rows)
}

func TestRank_ZeroSentinel(t *testing.T) {
	records := []PlayerRecord{player("Andy Lee", 0, 18)}

	stroke := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)
	points := Rank(records, PolicyFor(ViewCombined, ScoreTypePoints), 0)
	single := Rank(records, PolicyFor(ViewSingle, ""), 0)

	assert.Equal(t, "Level", stroke[0].DisplayScore)
	assert.Equal(t, "Highest", points[0].DisplayScore)
	assert.Equal(t, "Highest", single[0].DisplayScore)
}

func TestRank_ScoreClass(t *testing.T) {
	records := []PlayerRecord{
		player("Under Par", -3, 18),
		player("Even Par", 0, 18),
		player("Over Par", 2.5, 18),
		{Name: "No Score"},
	}

	rows := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)

	assert.Equal(t, []string{"Under Par", "Even Par", "Over Par", "No Score"}, names(rows))
	assert.Equal(t, "red-box", rows[0].ScoreClass)
	assert.Equal(t, "-3", rows[0].DisplayScore)
	assert.Equal(t, "black-box", rows[1].ScoreClass)
	assert.Equal(t, "black-box", rows[2].ScoreClass)
	assert.Equal(t, "2.5", rows[2].DisplayScore)
	assert.Equal(t, "", rows[3].DisplayScore)
}

func TestRank_NullScoresTieWithEachOther(t *testing.T) {
	records := []PlayerRecord{
		{Name: "No Score One", Thru: 0},
		player("Andy Lee", 1, 18),
		{Name: "No Score Two", Thru: 0},
	}

	rows := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)

	assert.Equal(t, []int{1, 2, 2}, ranks(rows))
	assert.Equal(t, []string{"1", "2", ""}, labels(rows))
}

func TestRank_Truncates(t *testing.T) {
	var records []PlayerRecord
	for i := 0; i < 60; i++ {
		records = append(records, player("Player "+string(rune('A'+i%26)), float64(i), 18))
	}

	rows := Rank(records, PolicyFor(ViewSingle, ""), DefaultSingleRows)
	assert.Len(t, rows, DefaultSingleRows)

	all := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)
	assert.Len(t, all, 60)
}

func TestRank_PositionOverridesRankWithRounds(t *testing.T) {
	r1, r2 := Cell("36"), Cell("38")
	records := []PlayerRecord{
		{Name: "Andy Lee", Total: score(74), Position: 2, R1: &r1, R2: &r2},
		{Name: "Chad Lawrence", Total: score(80), Position: 1, R1: &r1, R2: &r2},
	}

	rows := Rank(records, PolicyFor(ViewSingle, ""), 0)

	assert.Equal(t, []string{"Chad Lawrence", "Andy Lee"}, names(rows))
	assert.Equal(t, []string{"1", "2"}, labels(rows))
	assert.Equal(t, []int{1, 2}, ranks(rows))
}

func TestRank_RanksAdvanceByGroupSize(t *testing.T) {
	totals := []float64{1, 1, 1, 2, 3, 3, 4, 4, 4, 4, 5}
	var records []PlayerRecord
	for i, v := range totals {
		records = append(records, player(string(rune('a'+i))+" x", v, 18))
	}

	rows := Rank(records, PolicyFor(ViewCombined, ScoreTypeStroke), 0)

	for i := 1; i < len(rows); i++ {
		prev, cur := rows[i-1], rows[i]
		if *prev.Total == *cur.Total {
			assert.Equal(t, prev.Rank, cur.Rank)
			assert.Empty(t, cur.RankLabel)
			continue
		}
		assert.Equal(t, i+1, cur.Rank)
		assert.NotEmpty(t, cur.RankLabel)
	}
	assert.Equal(t, []int{1, 1, 1, 4, 5, 5, 7, 7, 7, 7, 11}, ranks(rows))
}

func TestParseScoreType(t *testing.T) {
	assert.Equal(t, ScoreTypePoints, ParseScoreType("points"))
	assert.Equal(t, ScoreTypePoints, ParseScoreType(" Points "))
	assert.Equal(t, ScoreTypeStroke, ParseScoreType("stroke"))
	assert.Equal(t, ScoreTypeStroke, ParseScoreType(""))
	assert.Equal(t, ScoreTypeStroke, ParseScoreType("stableford"))
}

func TestSplitName(t *testing.T) {
	given, surname := SplitName("Mary Ann Theriault")
	assert.Equal(t, "Mary Ann", given)
	assert.Equal(t, "Theriault", surname)

	given, surname = SplitName("Cher")
	assert.Equal(t, "", given)
	assert.Equal(t, "Cher", surname)

	given, surname = SplitName("")
	assert.Equal(t, "", given)
	assert.Equal(t, "", surname)
}
