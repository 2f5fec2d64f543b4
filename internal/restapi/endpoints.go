// Package restapi - endpoints.go builds per-service queries and decodes
// their replies. Narrowing selectors (languages, domains, stations)
// travel inside the query expression, which is how the services expect
// them; everything else is a plain query parameter.
package restapi

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

const stampLayout = "20060102150405"

// DocArticles runs a DOC article-list search.
func (c *Client) DocArticles(ctx context.Context, f filters.Doc) ([]models.Article, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Mode.TimelineMode() {
		return nil, &ModeError{Service: "doc", Mode: string(f.Mode), Want: "DocTimeline"}
	}

	vals := docValues(f)
	vals.Set("mode", string(filters.DocArtList))
	body, err := c.get(ctx, "doc", vals)
	if err != nil {
		return nil, err
	}

	var out []models.Article
	for _, obj := range gjson.GetBytes(body, "articles").Array() {
		a, err := models.ArticleFromRaw(flatten(obj))
		if err != nil {
			c.skipped("doc", err)
			continue
		}
		out = append(out, a)
	}
	return out, nil
}

// DocTimeline runs a DOC timeline search. The mode defaults to article
// volume.
func (c *Client) DocTimeline(ctx context.Context, f filters.Doc) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Mode == filters.DocArtList {
		return nil, &ModeError{Service: "doc", Mode: string(f.Mode), Want: "DocArticles"}
	}

	vals := docValues(f)
	mode := f.Mode
	if mode == "" {
		mode = filters.DocTimelineVol
	}
	vals.Set("mode", string(mode))
	body, err := c.get(ctx, "doc", vals)
	if err != nil {
		return nil, err
	}
	return c.timeline("doc", body), nil
}

// Geo runs a GEO aggregation and decodes its GeoJSON feature collection.
func (c *Client) Geo(ctx context.Context, f filters.Geo) ([]models.GeoPoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set("query", f.Query)
	vals.Set("format", "geojson")
	if f.Mode != "" {
		vals.Set("mode", f.Mode)
	}
	if f.Timespan != "" {
		vals.Set("timespan", f.Timespan)
	}
	body, err := c.get(ctx, "geo", vals)
	if err != nil {
		return nil, err
	}

	var out []models.GeoPoint
	for _, feat := range gjson.GetBytes(body, "features").Array() {
		props := feat.Get("properties")
		coords := feat.Get("geometry.coordinates")
		raw := models.Raw{Fields: map[string]string{
			"name":  props.Get("name").String(),
			"count": props.Get("count").String(),
			"html":  props.Get("html").String(),
			// GeoJSON positions are [longitude, latitude].
			"lon": coords.Get("0").String(),
			"lat": coords.Get("1").String(),
		}}
		p, err := models.GeoPointFromRaw(raw)
		if err != nil {
			c.skipped("geo", err)
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

// Context runs a Context snippet search.
func (c *Client) Context(ctx context.Context, f filters.Context) ([]models.ContextResult, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	vals := url.Values{}
	vals.Set("query", f.Query)
	vals.Set("format", "json")
	vals.Set("mode", "artlist")
	if f.MaxRecords > 0 {
		vals.Set("maxrecords", strconv.Itoa(f.MaxRecords))
	}
	if f.Timespan != "" {
		vals.Set("timespan", f.Timespan)
	}
	body, err := c.get(ctx, "context", vals)
	if err != nil {
		return nil, err
	}

	var out []models.ContextResult
	for _, obj := range gjson.GetBytes(body, "articles").Array() {
		r, err := models.ContextResultFromRaw(flatten(obj))
		if err != nil {
			c.skipped("context", err)
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

// TV runs a television transcript search and returns its timeline.
func (c *Client) TV(ctx context.Context, f filters.TV) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query := f.Query
	query += clause("station", f.Stations)
	if f.Market != "" {
		query += clause("market", []string{f.Market})
	}
	vals := url.Values{}
	vals.Set("query", query)
	vals.Set("format", "json")
	vals.Set("mode", modeOr(f.Mode, "timelinevol"))
	if f.Timespan != "" {
		vals.Set("timespan", f.Timespan)
	}
	body, err := c.get(ctx, "tv", vals)
	if err != nil {
		return nil, err
	}
	return c.timeline("tv", body), nil
}

// TVAI runs a visual-recognition search and returns its timeline.
func (c *Client) TVAI(ctx context.Context, f filters.TVAI) ([]models.TimelinePoint, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}

	query := f.Query + clause("station", f.Stations)
	vals := url.Values{}
	vals.Set("query", query)
	vals.Set("format", "json")
	vals.Set("mode", modeOr(f.Mode, "timelinevol"))
	if f.Timespan != "" {
		vals.Set("timespan", f.Timespan)
	}
	body, err := c.get(ctx, "tvai", vals)
	if err != nil {
		return nil, err
	}
	return c.timeline("tvai", body), nil
}

// ModeError reports a filter mode routed to the wrong entry point.
type ModeError struct {
	Service string
	Mode    string
	Want    string
}

func (e *ModeError) Error() string {
	return e.Service + " mode " + strconv.Quote(e.Mode) + " is served by " + e.Want
}

// docValues builds the parameters shared by both DOC entry points.
func docValues(f filters.Doc) url.Values {
	query := f.Query
	query += clause("sourcelang", f.SourceLangs)
	query += clause("sourcecountry", f.SourceCountries)
	query += clause("domain", f.Domains)
	query += clause("theme", f.Themes)

	vals := url.Values{}
	vals.Set("query", query)
	vals.Set("format", "json")
	if f.MaxRecords > 0 {
		vals.Set("maxrecords", strconv.Itoa(f.MaxRecords))
	}
	if f.Timespan != "" {
		vals.Set("timespan", f.Timespan)
	}
	if !f.Start.IsZero() {
		vals.Set("startdatetime", f.Start.UTC().Format(stampLayout))
	}
	if !f.End.IsZero() {
		vals.Set("enddatetime", f.End.UTC().Format(stampLayout))
	}
	if f.Sort != "" {
		vals.Set("sort", f.Sort)
	}
	return vals
}

// clause renders a narrowing selector as a query-expression term;
// multiple values become an OR group.
func clause(field string, values []string) string {
	switch len(values) {
	case 0:
		return ""
	case 1:
		return " " + field + ":" + quoteIfSpaced(values[0])
	}
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = field + ":" + quoteIfSpaced(v)
	}
	return " (" + strings.Join(parts, " OR ") + ")"
}

func quoteIfSpaced(v string) string {
	if strings.ContainsRune(v, ' ') {
		return `"` + v + `"`
	}
	return v
}

func modeOr(mode, fallback string) string {
	if mode == "" {
		return fallback
	}
	return mode
}

// timeline decodes the series-of-points shape shared by the DOC and TV
// timeline modes.
func (c *Client) timeline(service string, body []byte) []models.TimelinePoint {
	var out []models.TimelinePoint
	for _, series := range gjson.GetBytes(body, "timeline").Array() {
		label := series.Get("series").String()
		for _, pt := range series.Get("data").Array() {
			fields := map[string]string{
				"date":  pt.Get("date").String(),
				"value": pt.Get("value").String(),
			}
			if label != "" {
				fields["series"] = label
			}
			if norm := pt.Get("norm"); norm.Exists() {
				fields["norm"] = norm.String()
			}
			p, err := models.TimelinePointFromRaw(models.Raw{Fields: fields})
			if err != nil {
				c.skipped(service, err)
				continue
			}
			out = append(out, p)
		}
	}
	return out
}
