package leaderboard

import (
	"strings"
)

// HolesPerRound is the number of holes a round must reach before the next
// round's scores are added on.
const HolesPerRound = 18

// MergeRounds folds per-round result sets into one, matching players by
// name. A player's round k scores are only added once the earlier rounds
// are complete and round k has started; until then the accumulated record
// is passed through unchanged.
//
// Players missing from the first round are dropped unless keepLate is set,
// in which case they are appended as they are.
func MergeRounds(rounds [][]PlayerRecord, keepLate bool) []PlayerRecord {
	if len(rounds) == 0 {
		return nil
	}
	merged := make([]PlayerRecord, len(rounds[0]))
	copy(merged, rounds[0])

	for k := 1; k < len(rounds); k++ {
		completed := HolesPerRound * k
		next := indexByName(rounds[k])
		seen := make(map[string]bool, len(merged))

		for i, acc := range merged {
			seen[acc.Name] = true
			later, ok := next[acc.Name]
			if !ok {
				continue
			}
			merged[i] = combine(acc, later, completed)
		}

		if keepLate {
			for _, p := range rounds[k] {
				if !seen[p.Name] {
					seen[p.Name] = true
					merged = append(merged, p)
				}
			}
		}
	}
	return merged
}

// combine adds a later round onto the accumulated record.
func combine(acc, later PlayerRecord, completed int) PlayerRecord {
	if acc.Thru < completed || later.Thru <= 0 {
		return acc
	}
	out := acc
	out.Thru = completed + later.Thru
	out.Total = addTotals(acc.Total, later.Total)
	out.Final = joinFinals(acc.Final, later.Final)
	return out
}

func addTotals(a, b *float64) *float64 {
	if a == nil && b == nil {
		return nil
	}
	var sum float64
	if a != nil {
		sum += *a
	}
	if b != nil {
		sum += *b
	}
	return &sum
}

func joinFinals(parts ...Cell) Cell {
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if s := strings.TrimSpace(string(p)); s != "" {
			out = append(out, s)
		}
	}
	return Cell(strings.Join(out, "/"))
}

// indexByName keeps the first record seen for each name.
func indexByName(records []PlayerRecord) map[string]PlayerRecord {
	m := make(map[string]PlayerRecord, len(records))
	for _, r := range records {
		if _, ok := m[r.Name]; !ok {
			m[r.Name] = r
		}
	}
	return m
}
