package leaderboard

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	bodyID  = "leaderboard-body"
	titleID = "competition-title"
)

var ErrNoTableBody = errors.New("page has no #" + bodyID + " element")

// Table is a live page document whose #leaderboard-body rows are patched
// in place on every refresh.
type Table struct {
	doc  *goquery.Document
	body *goquery.Selection
}

// NewTable parses page, which must contain the leaderboard table body.
func NewTable(page string) (*Table, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, err
	}
	body := doc.Find("#" + bodyID).First()
	if body.Length() == 0 {
		return nil, ErrNoTableBody
	}
	return &Table{doc: doc, body: body}, nil
}

// Rows returns the current <tr> elements in order.
func (t *Table) Rows() *goquery.Selection {
	return t.body.ChildrenFiltered("tr")
}

// Len is the number of rows currently in the table.
func (t *Table) Len() int {
	return t.Rows().Length()
}

// SetTitle writes the competition title. Literal `\n` sequences become
// line breaks.
func (t *Table) SetTitle(title string) {
	t.doc.Find("#" + titleID).SetHtml(TitleHTML(title))
}

// TitleHTML escapes title and turns literal `\n` sequences into <br>.
func TitleHTML(title string) string {
	return strings.ReplaceAll(html.EscapeString(title), `\n`, "<br>")
}

// HTML renders the whole page.
func (t *Table) HTML() (string, error) {
	return goquery.OuterHtml(t.doc.Selection)
}

// BodyHTML renders only the rows.
func (t *Table) BodyHTML() (string, error) {
	return t.body.Html()
}

// Snapshot is the row order of the previous refresh, keyed by player name.
type Snapshot struct {
	Keys  []string       `json:"keys"`
	Ranks map[string]int `json:"-"`
}

// SnapshotOf records the order and ranks of rows.
func SnapshotOf(rows []RankedRow) Snapshot {
	s := Snapshot{
		Keys:  make([]string, 0, len(rows)),
		Ranks: make(map[string]int, len(rows)),
	}
	for _, r := range rows {
		s.Keys = append(s.Keys, r.Name)
		if _, ok := s.Ranks[r.Name]; !ok {
			s.Ranks[r.Name] = r.Rank
		}
	}
	return s
}

// MovementOf compares a player's rank with the one they had in prev.
// Players that weren't on the board before have no movement.
func (s Snapshot) MovementOf(name string, rank int) Movement {
	prev, ok := s.Ranks[name]
	switch {
	case !ok || prev == rank:
		return MovementNone
	case prev > rank:
		return MovementUp
	default:
		return MovementDown
	}
}

type PatchOp string

const (
	PatchUpdate PatchOp = "update"
	PatchAppend PatchOp = "append"
	PatchRemove PatchOp = "remove"
)

// RowPatch describes one change made to the table so that clients holding
// a copy of it can replay the refresh.
type RowPatch struct {
	Op    PatchOp    `json:"op"`
	Index int        `json:"index"`
	HTML  string     `json:"html,omitempty"`
	Class string     `json:"class,omitempty"`
	Row   *RankedRow `json:"row,omitempty"`
}

// Reconcile writes rows into t, reusing existing <tr> elements by position
// and appending or trimming rows so the table matches rows exactly. Rows
// whose player changed rank since prev are marked moving-up or
// moving-down. It returns the snapshot for the next refresh and the
// patches it applied.
func Reconcile(t *Table, view View, prev Snapshot, rows []RankedRow) (Snapshot, []RowPatch) {
	existing := t.Rows()
	patches := make([]RowPatch, 0, len(rows))

	for i := range rows {
		row := &rows[i]
		row.Movement = prev.MovementOf(row.Name, row.Rank)
		cells := RenderCells(view, *row)

		op := PatchUpdate
		var tr *goquery.Selection
		if i < existing.Length() {
			tr = existing.Eq(i)
		} else {
			t.body.AppendHtml("<tr></tr>")
			tr = t.Rows().Last()
			op = PatchAppend
		}

		tr.SetHtml(cells)
		tr.RemoveClass(MovementUp.Class(), MovementDown.Class())
		if c := row.Movement.Class(); c != "" {
			tr.AddClass(c)
		}
		class, _ := tr.Attr("class")

		patches = append(patches, RowPatch{
			Op:    op,
			Index: i,
			HTML:  cells,
			Class: class,
			Row:   row,
		})
	}

	for n := t.Len(); n > len(rows); n-- {
		t.Rows().Last().Remove()
		patches = append(patches, RowPatch{Op: PatchRemove, Index: n - 1})
	}

	return SnapshotOf(rows), patches
}

// RenderCells returns the <td> elements of one row.
func RenderCells(view View, row RankedRow) string {
	given, surname := SplitName(row.Name)
	esc := html.EscapeString

	var b strings.Builder
	fmt.Fprintf(&b, `<td class="rank-cell">%s</td>`, esc(row.RankLabel))
	fmt.Fprintf(&b, `<td class="name-cell">%s <strong>%s</strong></td>`, esc(given), esc(surname))
	if view == ViewCombined {
		badge := ""
		if row.Handicap != nil {
			badge = fmt.Sprintf(`<span class="badge">%s</span>`, esc(formatNumber(*row.Handicap)))
		}
		fmt.Fprintf(&b, `<td class="handicap-cell">%s</td>`, badge)
		fmt.Fprintf(&b, `<td class="score-cell">%s</td>`, esc(string(row.Final)))
	}
	fmt.Fprintf(&b, `<td class="par-cell"><div class="%s">%s</div></td>`, row.ScoreClass, esc(row.DisplayScore))
	fmt.Fprintf(&b, `<td class="thru-cell">%d</td>`, row.Thru)
	return b.String()
}
