package models

import (
	"fmt"
	"strings"
	"time"
)

// VGKG is one Visual Knowledge Graph record: Cloud-Vision-style
// annotations for a single news image.
//
// Repeating annotation cells use two nested delimiters inside one TAB
// cell: "<RECORD>" between entries, "<FIELD>" between the fields of one
// entry. Entries are kept as small string maps; materializing typed
// structs for every label of every image costs more than the annotations
// are worth to most callers.
type VGKG struct {
	Date       time.Time
	DocumentID string
	ImageURL   string

	Labels       []VisionRecord
	WebEntities  []VisionRecord
	GeoLandmarks []VisionRecord
	Logos        []VisionRecord
	SafeSearch   SafeSearch
	Faces        []VisionRecord

	OCR        string
	LangHints  []string
	Popularity int
}

// VisionRecord is one untyped annotation entry.
type VisionRecord map[string]string

// Float returns the named field as a float, or 0 when absent.
func (v VisionRecord) Float(key string) float64 { return atof(v[key]) }

// SafeSearch holds the five content-likelihood codes. Values are the
// Cloud Vision likelihood scale: -1 unknown, 0 very unlikely .. 4 very
// likely. They are codes, not scores.
type SafeSearch struct {
	Adult    int
	Spoof    int
	Medical  int
	Violence int
	Racy     int
}

// VGKGCols is the cell count of one row.
const VGKGCols = 12

const (
	vgkgFieldSep  = "<FIELD>"
	vgkgRecordSep = "<RECORD>"
)

// Field orders of the repeating cells.
var (
	vgkgLabelKeys    = []string{"label", "confidence", "mid"}
	vgkgEntityKeys   = []string{"name", "confidence", "mid"}
	vgkgLandmarkKeys = []string{"name", "confidence", "lat", "lon", "mid"}
	vgkgLogoKeys     = []string{"name", "confidence", "mid"}
	vgkgFaceKeys     = []string{"confidence", "roll", "pan", "tilt"}
)

// VGKGFromRaw validates one raw record into a VGKG.
func VGKGFromRaw(r Raw) (VGKG, error) {
	c := r.Cols
	if !r.IsColumnar() {
		c = []string{
			r.Fields["DATE"], r.Fields["DocumentIdentifier"], r.Fields["ImageURL"],
			r.Fields["Labels"], r.Fields["WebEntities"], r.Fields["GeoLandmarks"],
			r.Fields["Logos"], r.Fields["SafeSearch"], r.Fields["Faces"],
			r.Fields["OCR"], r.Fields["LangHints"], r.Fields["ImagePopularity"],
		}
	}
	if len(c) != VGKGCols {
		return VGKG{}, fmt.Errorf("vgkg row has %d columns, want %d", len(c), VGKGCols)
	}

	return VGKG{
		Date:       parseStamp(c[0]),
		DocumentID: c[1],
		ImageURL:   c[2],

		Labels:       parseVisionRecords(c[3], vgkgLabelKeys),
		WebEntities:  parseVisionRecords(c[4], vgkgEntityKeys),
		GeoLandmarks: parseVisionRecords(c[5], vgkgLandmarkKeys),
		Logos:        parseVisionRecords(c[6], vgkgLogoKeys),
		SafeSearch:   parseSafeSearch(c[7]),
		Faces:        parseVisionRecords(c[8], vgkgFaceKeys),

		OCR:        c[9],
		LangHints:  splitList(c[10], ";"),
		Popularity: atoi(c[11]),
	}, nil
}

// parseVisionRecords splits a two-level cell. Fields beyond the known key
// list are kept under positional keys ("f4", "f5", ...) so upstream
// additions survive a round trip instead of vanishing.
func parseVisionRecords(cell string, keys []string) []VisionRecord {
	if cell == "" {
		return nil
	}
	var out []VisionRecord
	for _, rec := range strings.Split(cell, vgkgRecordSep) {
		if rec == "" {
			continue
		}
		fields := strings.Split(rec, vgkgFieldSep)
		m := make(VisionRecord, len(fields))
		for i, f := range fields {
			if i < len(keys) {
				m[keys[i]] = f
			} else {
				m[fmt.Sprintf("f%d", i)] = f
			}
		}
		out = append(out, m)
	}
	return out
}

func parseSafeSearch(cell string) SafeSearch {
	ss := SafeSearch{Adult: -1, Spoof: -1, Medical: -1, Violence: -1, Racy: -1}
	if cell == "" {
		return ss
	}
	f := strings.Split(cell, vgkgFieldSep)
	set := func(dst *int, i int) {
		if i < len(f) && strings.TrimSpace(f[i]) != "" {
			*dst = atoi(f[i])
		}
	}
	set(&ss.Adult, 0)
	set(&ss.Spoof, 1)
	set(&ss.Medical, 2)
	set(&ss.Violence, 3)
	set(&ss.Racy, 4)
	return ss
}
