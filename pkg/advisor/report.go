package advisor

import (
	"bytes"
	"encoding/json"
	"sort"
	"time"
)

// LocationStat is one entry of a location-keyed statistic.
type LocationStat[T int | float64] struct {
	Location string
	Value    T
}

// LocationStats is a location-keyed statistic sorted by value descending.
// It marshals to a JSON object that keeps that order.
type LocationStats[T int | float64] []LocationStat[T]

// Get returns the value recorded for location.
func (s LocationStats[T]) Get(location string) (T, bool) {
	for _, e := range s {
		if e.Location == location {
			return e.Value, true
		}
	}

	var zero T

	return zero, false
}

// Map returns the statistic as an unordered map.
func (s LocationStats[T]) Map() map[string]T {
	out := make(map[string]T, len(s))
	for _, e := range s {
		out[e.Location] = e.Value
	}

	return out
}

// MarshalJSON writes the entries as an object in slice order.
func (s LocationStats[T]) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte('{')

	for i, e := range s {
		if i > 0 {
			buf.WriteByte(',')
		}

		key, err := json.Marshal(e.Location)
		if err != nil {
			return nil, err
		}

		value, err := json.Marshal(e.Value)
		if err != nil {
			return nil, err
		}

		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(value)
	}

	buf.WriteByte('}')

	return buf.Bytes(), nil
}

// UnmarshalJSON reads an object and re-sorts it by value descending.
func (s *LocationStats[T]) UnmarshalJSON(data []byte) error {
	var m map[string]T
	if err := json.Unmarshal(data, &m); err != nil {
		return err
	}

	*s = newLocationStats(m)

	return nil
}

func newLocationStats[T int | float64](m map[string]T) LocationStats[T] {
	out := make(LocationStats[T], 0, len(m))
	for location, value := range m {
		out = append(out, LocationStat[T]{Location: location, Value: value})
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Value != out[j].Value {
			return out[i].Value > out[j].Value
		}

		return out[i].Location < out[j].Location
	})

	return out
}

// Report is the result of one analysis pass.
type Report struct {
	TotalQueries      int                    `json:"total_queries"`
	TotalTimeMS       float64                `json:"total_time_ms"`
	UniqueQueries     int                    `json:"unique_queries"`
	Suggestions       []Suggestion           `json:"suggestions"`
	QueriesByLocation LocationStats[int]     `json:"queries_by_location"`
	TimeByLocation    LocationStats[float64] `json:"time_by_location"`
	AnalysisDuration  time.Duration          `json:"analysis_duration"`
}

// CriticalCount returns the number of critical suggestions.
func (r *Report) CriticalCount() int {
	return r.countSeverity(SeverityCritical)
}

// WarningCount returns the number of warning suggestions.
func (r *Report) WarningCount() int {
	return r.countSeverity(SeverityWarning)
}

// HasIssues reports whether any suggestion was produced.
func (r *Report) HasIssues() bool {
	return len(r.Suggestions) > 0
}

func (r *Report) countSeverity(sev Severity) int {
	var n int

	for _, s := range r.Suggestions {
		if s.Severity == sev {
			n++
		}
	}

	return n
}

// ExportedSuggestion is the reduced suggestion form used in exports.
type ExportedSuggestion struct {
	Type        string   `json:"type"`
	Severity    Severity `json:"severity"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Location    string   `json:"location,omitempty"`
	Remediation string   `json:"remediation,omitempty"`
}

// Export is the serializable form of a Report.
type Export struct {
	TotalQueries      int                    `json:"total_queries"`
	TotalTimeMS       float64                `json:"total_time_ms"`
	UniqueQueries     int                    `json:"unique_queries"`
	AnalysisTimeMS    float64                `json:"analysis_time_ms"`
	Suggestions       []ExportedSuggestion   `json:"suggestions"`
	QueriesByLocation LocationStats[int]     `json:"queries_by_location"`
	TimeByLocation    LocationStats[float64] `json:"time_by_location"`
}

// ToExport reduces the report to its serializable form.
func (r *Report) ToExport() Export {
	suggestions := make([]ExportedSuggestion, 0, len(r.Suggestions))
	for _, s := range r.Suggestions {
		suggestions = append(suggestions, ExportedSuggestion{
			Type:        s.Type,
			Severity:    s.Severity,
			Title:       s.Title,
			Description: s.Description,
			Location:    s.Location,
			Remediation: s.Remediation,
		})
	}

	queries := r.QueriesByLocation
	if queries == nil {
		queries = LocationStats[int]{}
	}

	times := r.TimeByLocation
	if times == nil {
		times = LocationStats[float64]{}
	}

	return Export{
		TotalQueries:      r.TotalQueries,
		TotalTimeMS:       r.TotalTimeMS,
		UniqueQueries:     r.UniqueQueries,
		AnalysisTimeMS:    float64(r.AnalysisDuration.Microseconds()) / 1000,
		Suggestions:       suggestions,
		QueriesByLocation: queries,
		TimeByLocation:    times,
	}
}
