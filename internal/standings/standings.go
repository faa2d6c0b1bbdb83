// Package standings turns a raw provider table into the compact,
// conference-grouped document the display clients poll.
//
// Transform is pure: no I/O and no logging. Callers decide what a failure
// means for their cycle.
package standings

import (
	"bytes"
	"encoding/json"
	"fmt"
	"slices"
	"strings"

	"github.com/albapepper/scoracle-standings/internal/provider"
)

// Conference identifiers as they appear upstream and as document keys.
const (
	East = "East"
	West = "West"
)

// TeamRecord is one team's line in the snapshot. Field order is part of the
// wire contract.
type TeamRecord struct {
	Team        string  `json:"team"`
	GamesBehind float64 `json:"games_behind"`
	Wins        int     `json:"wins"`
	Losses      int     `json:"losses"`
}

// WinPct returns wins / games played, 0 before any game.
func (r TeamRecord) WinPct() float64 {
	gp := r.Wins + r.Losses
	if gp == 0 {
		return 0
	}
	return float64(r.Wins) / float64(gp)
}

// Document is the full snapshot: both conferences, each ranked.
type Document struct {
	East []TeamRecord `json:"East"`
	West []TeamRecord `json:"West"`
}

// Teams returns the number of teams across both conferences.
func (d *Document) Teams() int {
	return len(d.East) + len(d.West)
}

// MarshalIndent encodes the document the way it is written to disk:
// two-space indentation and a trailing newline. Empty conferences encode
// as [] rather than null.
func (d *Document) MarshalIndent() ([]byte, error) {
	out := Document{East: d.East, West: d.West}
	if out.East == nil {
		out.East = []TeamRecord{}
	}
	if out.West == nil {
		out.West = []TeamRecord{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// TransformError reports malformed upstream data. One bad cell fails the
// whole transform so a corrupt fetch never yields a partial snapshot.
type TransformError struct {
	Row    int // -1 when the table itself is malformed
	Column string
	Err    error
}

func (e *TransformError) Error() string {
	if e.Row < 0 {
		return fmt.Sprintf("transform standings: %v", e.Err)
	}
	return fmt.Sprintf("transform standings: row %d column %s: %v", e.Row, e.Column, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

// Transform filters the table to the two conferences, resolves team names,
// parses the numeric columns and ranks each conference.
func Transform(tbl *provider.Table) (*Document, error) {
	if tbl == nil {
		return nil, &TransformError{Row: -1, Err: fmt.Errorf("nil table")}
	}
	pos, err := tbl.Columns(provider.RequiredColumns...)
	if err != nil {
		return nil, &TransformError{Row: -1, Err: err}
	}
	colConf, colName, colWins, colLosses, colGB := pos[0], pos[1], pos[2], pos[3], pos[4]

	doc := &Document{East: []TeamRecord{}, West: []TeamRecord{}}
	for i := range tbl.Rows {
		conf, _ := tbl.Cell(i, colConf).(string)
		if conf != East && conf != West {
			continue
		}

		name, ok := provider.ExtractString(tbl.Cell(i, colName))
		if !ok {
			return nil, &TransformError{Row: i, Column: provider.ColTeamName, Err: fmt.Errorf("missing team name")}
		}
		gb, ok := provider.ExtractFloat(tbl.Cell(i, colGB))
		if !ok {
			return nil, &TransformError{Row: i, Column: provider.ColGamesBehind, Err: fmt.Errorf("not a number: %v", tbl.Cell(i, colGB))}
		}
		if gb < 0 {
			return nil, &TransformError{Row: i, Column: provider.ColGamesBehind, Err: fmt.Errorf("negative games behind: %v", gb)}
		}
		wins, err := provider.ExtractCount(tbl.Cell(i, colWins))
		if err != nil {
			return nil, &TransformError{Row: i, Column: provider.ColWins, Err: err}
		}
		losses, err := provider.ExtractCount(tbl.Cell(i, colLosses))
		if err != nil {
			return nil, &TransformError{Row: i, Column: provider.ColLosses, Err: err}
		}

		rec := TeamRecord{
			Team:        FullName(name),
			GamesBehind: gb,
			Wins:        wins,
			Losses:      losses,
		}
		if conf == East {
			doc.East = append(doc.East, rec)
		} else {
			doc.West = append(doc.West, rec)
		}
	}

	Rank(doc.East)
	Rank(doc.West)
	return doc, nil
}

// Rank sorts records by wins descending. Ties go to the better win
// percentage, then fewer games behind, then team name, so the order never
// depends on upstream row order.
func Rank(records []TeamRecord) {
	slices.SortStableFunc(records, compareRecords)
}

func compareRecords(a, b TeamRecord) int {
	if a.Wins != b.Wins {
		return b.Wins - a.Wins
	}
	if pa, pb := a.WinPct(), b.WinPct(); pa != pb {
		if pa > pb {
			return -1
		}
		return 1
	}
	if a.GamesBehind != b.GamesBehind {
		if a.GamesBehind < b.GamesBehind {
			return -1
		}
		return 1
	}
	return strings.Compare(a.Team, b.Team)
}
