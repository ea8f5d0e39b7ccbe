package advisor

import (
	"fmt"
	"time"
)

// UnknownLocation is the location reported for queries whose call site
// could not be attributed.
const UnknownLocation = "Unknown location"

// Frame is a single entry of a call-site backtrace. Any field may be empty.
type Frame struct {
	File     string `json:"file,omitempty"`
	Line     int    `json:"line,omitempty"`
	Type     string `json:"type,omitempty"`
	Function string `json:"function,omitempty"`
}

// CallSite is the code location a query was issued from.
type CallSite struct {
	File     string `json:"file"`
	Line     int    `json:"line"`
	Type     string `json:"type,omitempty"`
	Function string `json:"function,omitempty"`
}

// String renders the call site as file:line.
func (c *CallSite) String() string {
	if c == nil || c.File == "" {
		return UnknownLocation
	}

	if c.Line <= 0 {
		return c.File
	}

	return fmt.Sprintf("%s:%d", c.File, c.Line)
}

// QueryEvent is one observed query execution as reported by an
// instrumentation hook.
type QueryEvent struct {
	SQL        string
	Bindings   []any
	TimeMS     float64
	Connection string

	// CallSite, when set, is used as-is and Backtrace is ignored.
	CallSite  *CallSite
	Backtrace []Frame
}

// CollectedQuery is an immutable record of one query execution captured
// during a collection window.
type CollectedQuery struct {
	SQL           string    `json:"sql"`
	Bindings      []any     `json:"bindings"`
	TimeMS        float64   `json:"time_ms"`
	Connection    string    `json:"connection"`
	CallSite      *CallSite `json:"call_site,omitempty"`
	NormalizedSQL string    `json:"normalized_sql"`
	CapturedAt    time.Time `json:"captured_at"`
}

// Location returns the attributed call-site location string.
func (q *CollectedQuery) Location() string {
	return q.CallSite.String()
}
