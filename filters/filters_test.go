package filters_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

func span(days int) filters.Span {
	start := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	return filters.NewSpan(start, start.AddDate(0, 0, days))
}

func TestSpanValidate(t *testing.T) {
	require.NoError(t, span(7).Validate(models.TypeEvents))

	err := span(8).Validate(models.TypeEvents)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds")

	// The frontpage graph allows a month.
	require.NoError(t, span(30).Validate(models.TypeGFG))

	// Inverted ranges are rejected outright.
	s := filters.Span{Start: time.Now().UTC(), End: time.Now().UTC().Add(-time.Hour)}
	require.Error(t, s.Validate(models.TypeEvents))

	require.Error(t, filters.Span{}.Validate(models.TypeEvents))
}

func TestEventsValidate(t *testing.T) {
	f := filters.Events{
		Common:     filters.Common{Span: span(1)},
		Countries:  []string{"IS", "FR"},
		CAMEOCodes: []string{"0251", "14"},
	}
	require.NoError(t, f.Validate())

	f.Countries = []string{"ISR"}
	require.Error(t, f.Validate())

	f.Countries = nil
	f.CAMEOCodes = []string{"14x"}
	require.Error(t, f.Validate())

	f.CAMEOCodes = []string{"9"}
	require.Error(t, f.Validate())
}

func TestCommonValidate(t *testing.T) {
	f := filters.Events{Common: filters.Common{
		Span:    span(1),
		Dedup:   models.DedupAggressive,
		OnError: filters.ErrorWarn,
		Source:  filters.SourceFiles,
	}}
	require.NoError(t, f.Validate())

	f.Common.Dedup = "url_and_vibes"
	require.Error(t, f.Validate())

	f.Common.Dedup = ""
	f.Common.OnError = "explode"
	require.Error(t, f.Validate())

	f.Common.OnError = ""
	f.Common.Source = "carrier-pigeon"
	require.Error(t, f.Validate())

	f.Common.Source = ""
	f.Common.Limit = -1
	require.Error(t, f.Validate())
}

func TestCommonDefaults(t *testing.T) {
	var c filters.Common
	assert.Equal(t, models.DedupURLDateLocation, c.DedupOrDefault())
	assert.Equal(t, filters.ErrorRaise, c.PolicyOrDefault())

	c.Dedup = models.DedupNone
	c.OnError = filters.ErrorSkip
	assert.Equal(t, models.DedupNone, c.DedupOrDefault())
	assert.Equal(t, filters.ErrorSkip, c.PolicyOrDefault())
}

func TestTranslatedOnlyWhereAvailable(t *testing.T) {
	g := filters.GKG{Common: filters.Common{Span: span(1), Translated: true}}
	require.NoError(t, g.Validate())

	v := filters.VGKG{Common: filters.Common{Span: span(1), Translated: true}}
	require.Error(t, v.Validate())
}

func TestGraphValidate(t *testing.T) {
	g := filters.Graph{Common: filters.Common{Span: span(1)}, Kind: models.TypeGEG}
	require.NoError(t, g.Validate())

	g.Kind = models.TypeEvents
	err := g.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a graph dataset")
}

func TestDocValidate(t *testing.T) {
	d := filters.Doc{Query: "climate change", Mode: filters.DocArtList, MaxRecords: 75}
	require.NoError(t, d.Validate())

	require.Error(t, filters.Doc{}.Validate())
	require.Error(t, filters.Doc{Query: "x", Mode: "heatmap"}.Validate())
	require.Error(t, filters.Doc{Query: "x", MaxRecords: 500}.Validate())

	d = filters.Doc{
		Query:    "x",
		Timespan: "1d",
		Start:    time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
	}
	err := d.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "mutually exclusive")

	assert.True(t, filters.DocTimelineVol.TimelineMode())
	assert.False(t, filters.DocArtList.TimelineMode())
}

func TestRESTValidateRequiresQuery(t *testing.T) {
	require.Error(t, filters.Geo{}.Validate())
	require.Error(t, filters.Context{}.Validate())
	require.Error(t, filters.TV{}.Validate())
	require.Error(t, filters.TVAI{}.Validate())

	require.NoError(t, filters.Geo{Query: "protest"}.Validate())
	require.NoError(t, filters.TV{Query: "ceasefire", Stations: []string{"CNN"}}.Validate())
}
