package models

import (
	"fmt"
	"time"

	"github.com/tidwall/gjson"
)

// Graph dataset records. Five of the six graphs are JSON-lines; their
// parsers flatten each object into Raw.Fields, keeping nested arrays as
// raw JSON strings which the constructors here decode. The frontpage
// graph is TAB-delimited and arrives columnar.

// GQG is one quotation-graph record.
type GQG struct {
	Date   time.Time
	URL    string
	Lang   string
	Quote  string
	Pre    string
	Post   string
	Offset int
}

// GEGEntity is one recognized entity within an entity-graph record.
type GEGEntity struct {
	Name         string
	Type         string
	MID          string
	WikipediaURL string
	NumMentions  int
	AvgSalience  float64
}

// GEG is one entity-graph record.
type GEG struct {
	Date     time.Time
	URL      string
	Lang     string
	Entities []GEGEntity
}

// GFG is one frontpage-graph link: an outlink observed on a tracked
// front page.
type GFG struct {
	Date             time.Time
	FromURL          string
	LinkID           int
	LinkPercentMaxID int
	ToURL            string
	LinkText         string
}

// GFGCols is the cell count of one frontpage-graph row.
const GFGCols = 6

// GGGLocation is one resolved location within a geographic-graph record.
type GGGLocation struct {
	Name        string
	CountryCode string
	ADM1Code    string
	Lat         *float64
	Lon         *float64
	FeatureID   string
}

// GGG is one geographic-graph record.
type GGG struct {
	Date      time.Time
	URL       string
	Lang      string
	Locations []GGGLocation
}

// GEMG is one embedded-metadata-graph record: the page-level metadata of
// a crawled article.
type GEMG struct {
	Date        time.Time
	URL         string
	Lang        string
	Title       string
	Description string
	Keywords    []string
	Authors     []string
	SocialImage string
}

// GAL is one article-list record.
type GAL struct {
	Date  time.Time
	URL   string
	Lang  string
	Title string
}

// KnownGraphFields returns the recognized top-level JSON keys for a graph
// dataset. Keys outside this list are schema drift: tolerated, dropped,
// and warned about once per (dataset, key).
func KnownGraphFields(t RecordType) []string {
	switch t {
	case TypeGQG:
		return []string{"date", "url", "lang", "quote", "pre", "post", "offset"}
	case TypeGEG:
		return []string{"date", "url", "lang", "entities"}
	case TypeGGG:
		return []string{"date", "url", "lang", "locations"}
	case TypeGEMG:
		return []string{"date", "url", "lang", "title", "description", "keywords", "authors", "socialImage"}
	case TypeGAL:
		return []string{"date", "url", "lang", "title"}
	}
	return nil
}

// GQGFromRaw validates one raw record into a GQG.
func GQGFromRaw(r Raw) (GQG, error) {
	if r.IsColumnar() {
		return GQG{}, fmt.Errorf("gqg record is columnar, want fields")
	}
	f := r.Fields
	q := GQG{
		Date:   parseWhen(f["date"]),
		URL:    f["url"],
		Lang:   f["lang"],
		Quote:  f["quote"],
		Pre:    f["pre"],
		Post:   f["post"],
		Offset: atoi(f["offset"]),
	}
	if q.URL == "" {
		return GQG{}, fmt.Errorf("gqg record has no url field")
	}
	return q, nil
}

// GEGFromRaw validates one raw record into a GEG.
func GEGFromRaw(r Raw) (GEG, error) {
	if r.IsColumnar() {
		return GEG{}, fmt.Errorf("geg record is columnar, want fields")
	}
	f := r.Fields
	g := GEG{
		Date: parseWhen(f["date"]),
		URL:  f["url"],
		Lang: f["lang"],
	}
	if g.URL == "" {
		return GEG{}, fmt.Errorf("geg record has no url field")
	}
	for _, e := range gjson.Parse(f["entities"]).Array() {
		g.Entities = append(g.Entities, GEGEntity{
			Name:         e.Get("name").String(),
			Type:         e.Get("type").String(),
			MID:          e.Get("mid").String(),
			WikipediaURL: e.Get("wikipediaUrl").String(),
			NumMentions:  int(e.Get("numMentions").Int()),
			AvgSalience:  e.Get("avgSalience").Float(),
		})
	}
	return g, nil
}

// GFGFromRaw validates one raw record into a GFG.
func GFGFromRaw(r Raw) (GFG, error) {
	c := r.Cols
	if !r.IsColumnar() {
		c = gfgMapToCols(r.Fields)
	}
	if len(c) != GFGCols {
		return GFG{}, fmt.Errorf("gfg row has %d columns, want %d", len(c), GFGCols)
	}
	return GFG{
		Date:             parseStamp(c[0]),
		FromURL:          c[1],
		LinkID:           atoi(c[2]),
		LinkPercentMaxID: atoi(c[3]),
		ToURL:            c[4],
		LinkText:         c[5],
	}, nil
}

// gfgMapToCols rebuilds the cell layout from warehouse column names so
// map and columnar inputs share one validation path.
func gfgMapToCols(f map[string]string) []string {
	return []string{
		f["DATE"], f["FromFrontPageURL"], f["LinkID"],
		f["LinkPercentMaxID"], f["ToLinkURL"], f["LinkText"],
	}
}

// GGGFromRaw validates one raw record into a GGG.
func GGGFromRaw(r Raw) (GGG, error) {
	if r.IsColumnar() {
		return GGG{}, fmt.Errorf("ggg record is columnar, want fields")
	}
	f := r.Fields
	g := GGG{
		Date: parseWhen(f["date"]),
		URL:  f["url"],
		Lang: f["lang"],
	}
	if g.URL == "" {
		return GGG{}, fmt.Errorf("ggg record has no url field")
	}
	for _, l := range gjson.Parse(f["locations"]).Array() {
		loc := GGGLocation{
			Name:        l.Get("name").String(),
			CountryCode: l.Get("countryCode").String(),
			ADM1Code:    l.Get("adm1").String(),
			FeatureID:   l.Get("featureId").String(),
		}
		if v := l.Get("lat"); v.Exists() {
			lat := v.Float()
			loc.Lat = &lat
		}
		if v := l.Get("lon"); v.Exists() {
			lon := v.Float()
			loc.Lon = &lon
		}
		g.Locations = append(g.Locations, loc)
	}
	return g, nil
}

// GEMGFromRaw validates one raw record into a GEMG.
func GEMGFromRaw(r Raw) (GEMG, error) {
	if r.IsColumnar() {
		return GEMG{}, fmt.Errorf("gemg record is columnar, want fields")
	}
	f := r.Fields
	g := GEMG{
		Date:        parseWhen(f["date"]),
		URL:         f["url"],
		Lang:        f["lang"],
		Title:       f["title"],
		Description: f["description"],
		SocialImage: f["socialImage"],
	}
	if g.URL == "" {
		return GEMG{}, fmt.Errorf("gemg record has no url field")
	}
	for _, k := range gjson.Parse(f["keywords"]).Array() {
		g.Keywords = append(g.Keywords, k.String())
	}
	for _, a := range gjson.Parse(f["authors"]).Array() {
		g.Authors = append(g.Authors, a.String())
	}
	return g, nil
}

// GALFromRaw validates one raw record into a GAL.
func GALFromRaw(r Raw) (GAL, error) {
	if r.IsColumnar() {
		return GAL{}, fmt.Errorf("gal record is columnar, want fields")
	}
	f := r.Fields
	g := GAL{
		Date:  parseWhen(f["date"]),
		URL:   f["url"],
		Lang:  f["lang"],
		Title: f["title"],
	}
	if g.URL == "" {
		return GAL{}, fmt.Errorf("gal record has no url field")
	}
	return g, nil
}

// parseWhen accepts the two timestamp spellings seen across the graph
// datasets: RFC 3339 and the packed YYYYMMDDHHMMSS form.
func parseWhen(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC()
	}
	return parseStamp(s)
}
