package filters

import (
	"fmt"
	"time"
)

// Filters for the REST API surface. These services take a full-text
// query rather than a slot range, so they do not embed Common; each
// carries only what its endpoint understands.

// DocMaxRecords is the server-side ceiling on DOC article results.
const DocMaxRecords = 250

// Doc queries the DOC 2.0 full-text API.
type Doc struct {
	// Query is the full-text search expression; required.
	Query string
	// Mode selects the output shape. Article modes yield Article
	// records, timeline modes TimelinePoint records.
	Mode DocMode
	// MaxRecords caps article results; 0 means the server default.
	MaxRecords int
	// Timespan is a relative window (e.g. "1d", "12h"); mutually
	// exclusive with Start/End.
	Timespan string
	// Start and End bound the search window absolutely.
	Start time.Time
	End   time.Time
	// Sort orders article results.
	Sort string
	// Optional result narrowing.
	SourceLangs     []string
	SourceCountries []string
	Domains         []string
	Themes          []string
}

// DocMode is a DOC API output mode.
type DocMode string

const (
	DocArtList               DocMode = "artlist"
	DocTimelineVol           DocMode = "timelinevol"
	DocTimelineVolRaw        DocMode = "timelinevolraw"
	DocTimelineTone          DocMode = "timelinetone"
	DocTimelineLang          DocMode = "timelinelang"
	DocTimelineSourceCountry DocMode = "timelinesourcecountry"
)

// TimelineMode reports whether the mode yields timeline points rather
// than articles.
func (m DocMode) TimelineMode() bool { return m != "" && m != DocArtList }

// Validate checks the filter.
func (f Doc) Validate() error {
	if f.Query == "" {
		return fmt.Errorf("doc filter requires a query")
	}
	switch f.Mode {
	case "", DocArtList, DocTimelineVol, DocTimelineVolRaw, DocTimelineTone,
		DocTimelineLang, DocTimelineSourceCountry:
	default:
		return fmt.Errorf("unknown doc mode %q", f.Mode)
	}
	if f.MaxRecords < 0 || f.MaxRecords > DocMaxRecords {
		return fmt.Errorf("maxrecords %d outside 0..%d", f.MaxRecords, DocMaxRecords)
	}
	if f.Timespan != "" && (!f.Start.IsZero() || !f.End.IsZero()) {
		return fmt.Errorf("timespan and start/end are mutually exclusive")
	}
	if !f.Start.IsZero() && !f.End.IsZero() && !f.End.After(f.Start) {
		return fmt.Errorf("end is not after start")
	}
	return nil
}

// Geo queries the GEO 2.0 API.
type Geo struct {
	Query string
	// Mode selects the aggregation (e.g. "pointdata"); empty uses the
	// server default.
	Mode string
	// Timespan is a relative window; the service accepts at most 7 days.
	Timespan string
}

// Validate checks the filter.
func (f Geo) Validate() error {
	if f.Query == "" {
		return fmt.Errorf("geo filter requires a query")
	}
	return nil
}

// Context queries the Context 2.0 API for snippet-level matches.
type Context struct {
	Query      string
	MaxRecords int
	Timespan   string
}

// Validate checks the filter.
func (f Context) Validate() error {
	if f.Query == "" {
		return fmt.Errorf("context filter requires a query")
	}
	if f.MaxRecords < 0 || f.MaxRecords > DocMaxRecords {
		return fmt.Errorf("maxrecords %d outside 0..%d", f.MaxRecords, DocMaxRecords)
	}
	return nil
}

// TV queries the TV 2.0 API over closed-caption transcripts.
type TV struct {
	Query string
	// Market restricts to a television market (e.g. "National").
	Market string
	// Stations restricts to specific stations.
	Stations []string
	Mode     string
	Timespan string
}

// Validate checks the filter.
func (f TV) Validate() error {
	if f.Query == "" {
		return fmt.Errorf("tv filter requires a query")
	}
	return nil
}

// TVAI queries the TV-AI visual recognition API.
type TVAI struct {
	Query    string
	Stations []string
	Mode     string
	Timespan string
}

// Validate checks the filter.
func (f TVAI) Validate() error {
	if f.Query == "" {
		return fmt.Errorf("tvai filter requires a query")
	}
	return nil
}
