// Package models defines the record shapes produced by the acquisition
// engine: the intermediate Raw form shared by every parser and source, and
// the validated per-dataset structs built from it.
//
// DESIGN: Raw is deliberately dumb. TAB-delimited sources fill Cols,
// JSON-lines and warehouse sources fill Fields; never both. Validation and
// numeric conversion happen in the FromRaw constructors at the yield
// boundary, so rows discarded by deduplication never pay for parsing
// beyond the split.
//
// CAMEO codes are strings end to end. "0251" and "251" are different
// codes; an integer representation silently merges them.
package models

import (
	"strconv"
	"strings"
	"time"
)

// Raw is the intermediate parse product for one record. Exactly one of
// Cols or Fields is populated.
type Raw struct {
	// Cols holds the split cells of one TAB-delimited row, in file order.
	Cols []string

	// Fields holds one JSON-lines object or one warehouse row, keyed by
	// column name.
	Fields map[string]string
}

// IsColumnar reports whether the record came from a TAB-delimited row.
func (r Raw) IsColumnar() bool { return r.Cols != nil }

// Col returns the i-th cell, or "" when the row is short or map-shaped.
func (r Raw) Col(i int) string {
	if i < 0 || i >= len(r.Cols) {
		return ""
	}
	return r.Cols[i]
}

// Field returns the named field, or "" when absent.
func (r Raw) Field(name string) string { return r.Fields[name] }

// RecordType identifies one GDELT dataset.
type RecordType string

const (
	TypeEvents          RecordType = "events"
	TypeMentions        RecordType = "mentions"
	TypeGKG             RecordType = "gkg"
	TypeVGKG            RecordType = "vgkg"
	TypeTVGKG           RecordType = "tvgkg"
	TypeWebNGrams       RecordType = "webngrams"
	TypeBroadcastNGrams RecordType = "broadcastngrams"
	TypeGQG             RecordType = "gqg" // quotation graph
	TypeGEG             RecordType = "geg" // entity graph
	TypeGFG             RecordType = "gfg" // frontpage graph
	TypeGGG             RecordType = "ggg" // geographic graph
	TypeGEMG            RecordType = "gemg" // embedded metadata graph
	TypeGAL             RecordType = "gal" // article list
)

// Cadence is the publication interval of a dataset's slot files.
type Cadence time.Duration

const (
	EveryMinute    = Cadence(time.Minute)
	Every15Minutes = Cadence(15 * time.Minute)
	Hourly         = Cadence(time.Hour)
	Daily          = Cadence(24 * time.Hour)
)

// Cadence returns the slot interval for the record type.
func (t RecordType) Cadence() Cadence {
	switch t {
	case TypeVGKG:
		return EveryMinute
	case TypeGFG:
		return Hourly
	case TypeTVGKG:
		return Daily
	default:
		return Every15Minutes
	}
}

// MaxSpan returns the widest date range a single fetch of this type may
// cover. 365 days is the overall safety cap applied on top by filter
// validation.
func (t RecordType) MaxSpan() time.Duration {
	switch t {
	case TypeGFG:
		return 30 * 24 * time.Hour
	default:
		return 7 * 24 * time.Hour
	}
}

// Translatable reports whether the dataset publishes a parallel
// machine-translated collection.
func (t RecordType) Translatable() bool {
	switch t {
	case TypeEvents, TypeMentions, TypeGKG:
		return true
	}
	return false
}

func (t RecordType) String() string { return string(t) }

// ParseRecordType resolves a user-supplied dataset name.
func ParseRecordType(s string) (RecordType, bool) {
	switch RecordType(strings.ToLower(strings.TrimSpace(s))) {
	case TypeEvents:
		return TypeEvents, true
	case TypeMentions:
		return TypeMentions, true
	case TypeGKG:
		return TypeGKG, true
	case TypeVGKG:
		return TypeVGKG, true
	case TypeTVGKG:
		return TypeTVGKG, true
	case TypeWebNGrams:
		return TypeWebNGrams, true
	case TypeBroadcastNGrams:
		return TypeBroadcastNGrams, true
	case TypeGQG:
		return TypeGQG, true
	case TypeGEG:
		return TypeGEG, true
	case TypeGFG:
		return TypeGFG, true
	case TypeGGG:
		return TypeGGG, true
	case TypeGEMG:
		return TypeGEMG, true
	case TypeGAL:
		return TypeGAL, true
	}
	return "", false
}

// GraphTypes lists the six graph datasets.
func GraphTypes() []RecordType {
	return []RecordType{TypeGQG, TypeGEG, TypeGFG, TypeGGG, TypeGEMG, TypeGAL}
}

// Conversion helpers shared by the FromRaw constructors. Empty cells map
// to the zero value for plain numerics and to nil for pointer numerics,
// so absence never masquerades as 0.0 at a real coordinate.

func atoi(s string) int {
	n, _ := strconv.Atoi(strings.TrimSpace(s))
	return n
}

func atoi64(s string) int64 {
	n, _ := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	return n
}

func atof(s string) float64 {
	f, _ := strconv.ParseFloat(strings.TrimSpace(s), 64)
	return f
}

func atofPtr(s string) *float64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil
	}
	return &f
}

func atob(s string) bool {
	return strings.TrimSpace(s) == "1"
}

// parseStamp decodes a YYYYMMDDHHMMSS timestamp, UTC. Returns the zero
// time for empty or malformed input.
func parseStamp(s string) time.Time {
	s = strings.TrimSpace(s)
	if len(s) != 14 {
		return time.Time{}
	}
	t, err := time.Parse("20060102150405", s)
	if err != nil {
		return time.Time{}
	}
	return t.UTC()
}
