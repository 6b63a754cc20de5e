package leaderboard

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// ScoreType selects the sort policy for the combined view.
type ScoreType string

const (
	ScoreTypeStroke ScoreType = "stroke"
	ScoreTypePoints ScoreType = "points"
)

// ParseScoreType falls back to stroke play for anything it doesn't know.
func ParseScoreType(s string) ScoreType {
	if strings.EqualFold(strings.TrimSpace(s), string(ScoreTypePoints)) {
		return ScoreTypePoints
	}
	return ScoreTypeStroke
}

// View is one of the two page layouts.
type View string

const (
	ViewCombined View = "combined"
	ViewSingle   View = "single"
)

type Movement int

const (
	MovementNone Movement = iota
	MovementUp
	MovementDown
)

// Class returns the row marker class for the movement.
func (m Movement) Class() string {
	switch m {
	case MovementUp:
		return "moving-up"
	case MovementDown:
		return "moving-down"
	default:
		return ""
	}
}

func (m Movement) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.Class())
}

func (m *Movement) UnmarshalJSON(b []byte) error {
	var class string
	if err := json.Unmarshal(b, &class); err != nil {
		return err
	}
	switch class {
	case "moving-up":
		*m = MovementUp
	case "moving-down":
		*m = MovementDown
	default:
		*m = MovementNone
	}
	return nil
}

// Cell holds a display value that upstream may send as a number, a string
// or null.
type Cell string

func (c *Cell) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || bytes.Equal(b, []byte("null")) {
		*c = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*c = Cell(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	*c = Cell(n.String())
	return nil
}

// PlayerRecord is one competitor's current standing. Players are matched
// across result sets by Name.
type PlayerRecord struct {
	Name     string   `json:"name"`
	Total    *float64 `json:"total"`
	Thru     int      `json:"thru"`
	Handicap *float64 `json:"ph"`
	Final    Cell     `json:"final"`
	Position int      `json:"position,omitempty"`

	// Round scores, single view only.
	R1 *Cell `json:"r1,omitempty"`
	R2 *Cell `json:"r2,omitempty"`
}

// KSWRecord is the row shape served by the ksw_result_by_http endpoint.
type KSWRecord struct {
	Player   string   `json:"Player"`
	Score    *float64 `json:"Score"`
	Played   int      `json:"Played"`
	R1       *Cell    `json:"r1"`
	R2       *Cell    `json:"r2"`
	Position int      `json:"position"`
}

func (k KSWRecord) toPlayerRecord() PlayerRecord {
	return PlayerRecord{
		Name:     k.Player,
		Total:    k.Score,
		Thru:     k.Played,
		Position: k.Position,
		R1:       k.R1,
		R2:       k.R2,
	}
}

// hasRounds reports whether both single view round scores were supplied.
func (p PlayerRecord) hasRounds() bool {
	return p.R1 != nil && p.R2 != nil
}

// SplitName returns the given names and the surname, the surname being the
// last whitespace-delimited token.
func SplitName(name string) (given, surname string) {
	parts := strings.Fields(name)
	if len(parts) == 0 {
		return "", ""
	}
	return strings.Join(parts[:len(parts)-1], " "), parts[len(parts)-1]
}

// RankedRow is a PlayerRecord projected for one refresh.
type RankedRow struct {
	PlayerRecord
	Rank         int      `json:"rank"`
	RankLabel    string   `json:"rankLabel"`
	DisplayScore string   `json:"displayScore"`
	ScoreClass   string   `json:"scoreClass"`
	Movement     Movement `json:"movement"`
}

func formatNumber(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
