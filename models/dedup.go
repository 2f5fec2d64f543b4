package models

import "strings"

// DedupStrategy selects which raw fields form a record's identity for
// stream deduplication. Strategies are ordered by strictness; stricter
// strategies keep more records.
type DedupStrategy string

const (
	DedupNone                  DedupStrategy = "none"
	DedupURLOnly               DedupStrategy = "url_only"
	DedupURLDate               DedupStrategy = "url_date"
	DedupURLDateLocation       DedupStrategy = "url_date_location"
	DedupURLDateLocationActors DedupStrategy = "url_date_location_actors"
	DedupAggressive            DedupStrategy = "aggressive"
)

// DefaultDedup is applied when a filter does not choose a strategy.
const DefaultDedup = DedupURLDateLocation

// Valid reports whether s names a known strategy.
func (s DedupStrategy) Valid() bool {
	switch s {
	case DedupNone, DedupURLOnly, DedupURLDate, DedupURLDateLocation,
		DedupURLDateLocationActors, DedupAggressive:
		return true
	}
	return false
}

// keySep never occurs in field data, so joined parts cannot collide with
// a different split of the same bytes.
const keySep = "\x1f"

// DedupKey derives the identity key of one raw record under a strategy.
// Keys are computed on raw records, before validation, so duplicate rows
// never pay for validated-record construction.
func DedupKey(r Raw, t RecordType, s DedupStrategy) string {
	p := dedupParts(r, t)
	switch s {
	case DedupURLOnly:
		return p.url
	case DedupURLDate:
		return p.url + keySep + p.date
	case DedupURLDateLocationActors:
		return strings.Join([]string{p.url, p.date, p.location, p.actors}, keySep)
	case DedupAggressive:
		return strings.Join([]string{p.url, p.date, p.location, p.actors, p.rootCode}, keySep)
	default:
		return strings.Join([]string{p.url, p.date, p.location}, keySep)
	}
}

type keyParts struct {
	url      string
	date     string
	location string
	actors   string
	rootCode string
}

func dedupParts(r Raw, t RecordType) keyParts {
	switch t {
	case TypeEvents:
		return eventKeyParts(r)
	case TypeMentions:
		if r.IsColumnar() {
			return keyParts{url: r.Col(5), date: r.Col(2)}
		}
		return keyParts{url: r.Field("MentionIdentifier"), date: r.Field("MentionTimeDate")}
	case TypeGKG, TypeTVGKG:
		if r.IsColumnar() {
			return keyParts{url: r.Col(gkgDocumentID), date: r.Col(gkgDate)}
		}
		return keyParts{url: r.Field("DocumentIdentifier"), date: r.Field("DATE")}
	case TypeVGKG:
		if r.IsColumnar() {
			return keyParts{url: r.Col(2), date: r.Col(0)}
		}
		return keyParts{url: r.Field("ImageURL"), date: r.Field("DATE")}
	case TypeGFG:
		return keyParts{url: r.Col(1) + keySep + r.Col(4), date: r.Col(0)}
	default:
		f := r.Fields
		return keyParts{
			url:  pick(f, "url", "URL", "DocumentIdentifier"),
			date: pick(f, "date", "DATE"),
		}
	}
}

// eventKeyParts handles both export layouts and the warehouse row shape.
// v1 rows have no SOURCEURL; the global event id stands in so a whole v1
// file does not collapse to one key under url_only.
func eventKeyParts(r Raw) keyParts {
	if !r.IsColumnar() {
		f := r.Fields
		url := f["SOURCEURL"]
		if url == "" {
			url = pick(f, "GLOBALEVENTID", "GlobalEventID")
		}
		return keyParts{
			url:  url,
			date: pick(f, "SQLDATE", "Day"),
			location: strings.Join([]string{
				f["ActionGeo_Fullname"], f["ActionGeo_Lat"], f["ActionGeo_Long"],
			}, keySep),
			actors:   f["Actor1Code"] + keySep + f["Actor2Code"],
			rootCode: f["EventRootCode"],
		}
	}

	c := r.Cols
	var url, fullName, lat, lon string
	switch len(c) {
	case EventColsV2:
		url = c[evSourceURL]
		fullName, lat, lon = c[52], c[56], c[57]
	case EventColsV1:
		fullName, lat, lon = c[50], c[53], c[54]
	}
	if url == "" {
		url = r.Col(evGlobalEventID)
	}
	return keyParts{
		url:      url,
		date:     r.Col(evDay),
		location: strings.Join([]string{fullName, lat, lon}, keySep),
		actors:   r.Col(evActor1Code) + keySep + r.Col(evActor1Code+10),
		rootCode: r.Col(evEventRootCode),
	}
}
