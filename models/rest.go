package models

import (
	"fmt"
	"time"
)

// Shapes returned by the REST API surface. The clients flatten each JSON
// result into Raw.Fields before validation so REST records share the
// constructor convention of the file and warehouse paths.

// Article is one DOC search result.
type Article struct {
	URL           string
	MobileURL     string
	Title         string
	SeenDate      time.Time
	SocialImage   string
	Domain        string
	Language      string
	SourceCountry string
}

// ArticleFromRaw validates one raw record into an Article.
func ArticleFromRaw(r Raw) (Article, error) {
	f := r.Fields
	a := Article{
		URL:           f["url"],
		MobileURL:     f["url_mobile"],
		Title:         f["title"],
		SeenDate:      parseSeenDate(f["seendate"]),
		SocialImage:   f["socialimage"],
		Domain:        f["domain"],
		Language:      f["language"],
		SourceCountry: f["sourcecountry"],
	}
	if a.URL == "" {
		return Article{}, fmt.Errorf("article has no url field")
	}
	return a, nil
}

// TimelinePoint is one sample of a DOC timeline series.
type TimelinePoint struct {
	Series string
	Date   time.Time
	Value  float64
	Norm   *float64
}

// TimelinePointFromRaw validates one raw record into a TimelinePoint.
func TimelinePointFromRaw(r Raw) (TimelinePoint, error) {
	f := r.Fields
	p := TimelinePoint{
		Series: f["series"],
		Date:   parseSeenDate(f["date"]),
		Value:  atof(f["value"]),
		Norm:   atofPtr(f["norm"]),
	}
	if p.Date.IsZero() {
		return TimelinePoint{}, fmt.Errorf("timeline point has no date field")
	}
	return p, nil
}

// GeoPoint is one feature of a GEO API response.
type GeoPoint struct {
	Name  string
	Lat   float64
	Lon   float64
	Count int
	HTML  string
}

// GeoPointFromRaw validates one raw record into a GeoPoint.
func GeoPointFromRaw(r Raw) (GeoPoint, error) {
	f := r.Fields
	p := GeoPoint{
		Name:  f["name"],
		Lat:   atof(f["lat"]),
		Lon:   atof(f["lon"]),
		Count: atoi(f["count"]),
		HTML:  f["html"],
	}
	if p.Name == "" {
		return GeoPoint{}, fmt.Errorf("geo point has no name field")
	}
	return p, nil
}

// ContextResult is one Context API snippet match.
type ContextResult struct {
	URL      string
	Title    string
	SeenDate time.Time
	Snippet  string
}

// ContextResultFromRaw validates one raw record into a ContextResult.
func ContextResultFromRaw(r Raw) (ContextResult, error) {
	f := r.Fields
	c := ContextResult{
		URL:      f["url"],
		Title:    f["title"],
		SeenDate: parseSeenDate(f["seendate"]),
		Snippet:  f["context"],
	}
	if c.URL == "" {
		return ContextResult{}, fmt.Errorf("context result has no url field")
	}
	return c, nil
}

// parseSeenDate decodes the API's compact "20060102T150405Z" stamps,
// falling back to the packed file form.
func parseSeenDate(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse("20060102T150405Z", s); err == nil {
		return t.UTC()
	}
	return parseWhen(s)
}
