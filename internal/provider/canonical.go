// Package provider defines the boundary between upstream standings sources
// and the transformer. Every provider returns a Table shaped like the
// stats.nba.com "Standings" result set; the transformer never needs to know
// where the rows came from.
//
// Adding a new provider means implementing Fetcher. The transformer and the
// snapshot format never change.
package provider

import (
	"context"
	"fmt"
)

// Column names of the stats.nba.com Standings result set that the
// transformer consumes. Other providers must emit the same headers.
const (
	ColConference  = "Conference"
	ColTeamName    = "TeamName"
	ColWins        = "WINS"
	ColLosses      = "LOSSES"
	ColGamesBehind = "ConferenceGamesBack"
)

// RequiredColumns lists the headers every standings Table must carry.
var RequiredColumns = []string{ColConference, ColTeamName, ColWins, ColLosses, ColGamesBehind}

// Table is a tabular standings result: one header row and any number of
// data rows. Cell values keep whatever type the source produced.
type Table struct {
	Headers []string
	Rows    [][]interface{}
}

// Fetcher retrieves the raw standings table from an upstream source.
type Fetcher interface {
	FetchStandings(ctx context.Context) (*Table, error)
}

// FetcherFunc adapts a plain function to the Fetcher interface.
type FetcherFunc func(ctx context.Context) (*Table, error)

// FetchStandings calls f(ctx).
func (f FetcherFunc) FetchStandings(ctx context.Context) (*Table, error) {
	return f(ctx)
}

// Index returns the position of each header by name.
func (t *Table) Index() map[string]int {
	idx := make(map[string]int, len(t.Headers))
	for i, h := range t.Headers {
		idx[h] = i
	}
	return idx
}

// Columns resolves the positions of the named headers, failing on the first
// one that is missing.
func (t *Table) Columns(names ...string) ([]int, error) {
	idx := t.Index()
	out := make([]int, len(names))
	for i, name := range names {
		pos, ok := idx[name]
		if !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
		out[i] = pos
	}
	return out, nil
}

// Cell returns the value at (row, col), or nil when the row is short.
func (t *Table) Cell(row, col int) interface{} {
	if row < 0 || row >= len(t.Rows) {
		return nil
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return nil
	}
	return r[col]
}
