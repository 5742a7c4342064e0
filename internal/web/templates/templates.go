// Package templates holds the templ components of the web UI. The
// *_templ.go files are generated from the .templ sources with
// `templ generate`; edit the sources, not the output.
package templates

import (
	"fmt"
	"time"

	"github.com/JonMunkholm/csvnome/internal/grid"
	"github.com/JonMunkholm/csvnome/internal/history"
)

// State is what the page needs to know about the current file.
type State struct {
	FileName    string
	Column      string
	Rows        int
	Columns     int
	SaveEnabled bool
	SaveName    string
	SavedTo     string
}

func statusLine(st State) string {
	if st.FileName == "" {
		return "No file loaded"
	}
	return fmt.Sprintf("%s: %d rows, %d columns (column %q truncated to its first word)",
		st.FileName, st.Rows, st.Columns, st.Column)
}

func moreLabel(p grid.Page) string {
	return fmt.Sprintf("Show more (%d of %d rows shown)", p.NextOffset(), p.Total)
}

func rowClass(e history.Event) string {
	if e.Action.Failed() {
		return "failed"
	}
	return "ok"
}

func eventTime(e history.Event) string {
	return e.CreatedAt.Local().Format(time.DateTime)
}

// eventResult is the error code of a failed event, or OK.
func eventResult(e history.Event) string {
	if !e.Action.Failed() {
		return "OK"
	}
	if e.ErrorCode == "" {
		return "failed"
	}
	return e.ErrorCode
}
