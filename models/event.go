package models

import (
	"fmt"
	"strconv"
	"time"
)

// Actor is one of the two participants of an event record.
type Actor struct {
	Code           string
	Name           string
	CountryCode    string
	KnownGroupCode string
	EthnicCode     string
	Religion1Code  string
	Religion2Code  string
	Type1Code      string
	Type2Code      string
	Type3Code      string
}

// GeoRef is a resolved geographic reference. Lat and Lon are nil when the
// source cell was empty; 0,0 is a real coordinate in the Gulf of Guinea.
type GeoRef struct {
	Type        int
	FullName    string
	CountryCode string
	ADM1Code    string
	ADM2Code    string
	Lat         *float64
	Lon         *float64
	FeatureID   string
}

// Event is one validated who-did-what-to-whom record.
//
// EventCode, EventBaseCode and EventRootCode are CAMEO codes and stay
// strings: leading zeros are significant.
type Event struct {
	GlobalEventID int64
	Day           int // YYYYMMDD
	MonthYear     int // YYYYMM
	Year          int
	FractionDate  float64

	Actor1 Actor
	Actor2 Actor

	IsRootEvent    bool
	EventCode      string
	EventBaseCode  string
	EventRootCode  string
	QuadClass      int
	GoldsteinScale *float64
	NumMentions    int
	NumSources     int
	NumArticles    int
	AvgTone        float64

	Actor1Geo GeoRef
	Actor2Geo GeoRef
	ActionGeo GeoRef

	DateAdded time.Time
	SourceURL string

	// Translated marks records from the machine-translated collection.
	Translated bool
}

// Column layout of the v2 export files (61 cells). The v1 layout (57)
// drops the three ADM2 codes and SOURCEURL.
const (
	evGlobalEventID = iota
	evDay
	evMonthYear
	evYear
	evFractionDate
	evActor1Code // first of 10 actor1 cells
)

const (
	evIsRootEvent = 25 + iota
	evEventCode
	evEventBaseCode
	evEventRootCode
	evQuadClass
	evGoldsteinScale
	evNumMentions
	evNumSources
	evNumArticles
	evAvgTone
	evActor1GeoType // first of 3 geo blocks, 8 cells each in v2
)

const (
	evDateAdded = 59
	evSourceURL = 60

	// EventColsV2 and EventColsV1 are the recognized cell counts of one
	// export row; anything else is malformed.
	EventColsV2 = 61
	EventColsV1 = 57
)

// EventFromRaw validates one raw record into an Event. Columnar input may
// be the 61-cell v2 layout or the 57-cell v1 layout; map input uses the
// warehouse column names.
func EventFromRaw(r Raw) (Event, error) {
	if r.IsColumnar() {
		return eventFromCols(r.Cols)
	}
	return eventFromMap(r.Fields)
}

func eventFromCols(c []string) (Event, error) {
	v2 := false
	switch len(c) {
	case EventColsV2:
		v2 = true
	case EventColsV1:
	default:
		return Event{}, fmt.Errorf("event row has %d columns, want %d or %d", len(c), EventColsV2, EventColsV1)
	}

	id, err := strconv.ParseInt(c[evGlobalEventID], 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad GlobalEventID %q: %w", c[evGlobalEventID], err)
	}

	e := Event{
		GlobalEventID: id,
		Day:           atoi(c[evDay]),
		MonthYear:     atoi(c[evMonthYear]),
		Year:          atoi(c[evYear]),
		FractionDate:  atof(c[evFractionDate]),
		Actor1:        actorFromCols(c[evActor1Code : evActor1Code+10]),
		Actor2:        actorFromCols(c[evActor1Code+10 : evActor1Code+20]),

		IsRootEvent:    atob(c[evIsRootEvent]),
		EventCode:      c[evEventCode],
		EventBaseCode:  c[evEventBaseCode],
		EventRootCode:  c[evEventRootCode],
		QuadClass:      atoi(c[evQuadClass]),
		GoldsteinScale: atofPtr(c[evGoldsteinScale]),
		NumMentions:    atoi(c[evNumMentions]),
		NumSources:     atoi(c[evNumSources]),
		NumArticles:    atoi(c[evNumArticles]),
		AvgTone:        atof(c[evAvgTone]),
	}

	if v2 {
		// Three 8-cell geo blocks, then DATEADDED and SOURCEURL.
		e.Actor1Geo = geoFromCols(c[evActor1GeoType:evActor1GeoType+8], true)
		e.Actor2Geo = geoFromCols(c[evActor1GeoType+8:evActor1GeoType+16], true)
		e.ActionGeo = geoFromCols(c[evActor1GeoType+16:evActor1GeoType+24], true)
		e.DateAdded = parseStamp(c[evDateAdded])
		e.SourceURL = c[evSourceURL]
	} else {
		// v1: three 7-cell geo blocks (no ADM2), DATEADDED as YYYYMMDD,
		// no SOURCEURL.
		e.Actor1Geo = geoFromCols(c[evActor1GeoType:evActor1GeoType+7], false)
		e.Actor2Geo = geoFromCols(c[evActor1GeoType+7:evActor1GeoType+14], false)
		e.ActionGeo = geoFromCols(c[evActor1GeoType+14:evActor1GeoType+21], false)
		if day := c[len(c)-1]; len(day) == 8 {
			if t, err := time.Parse("20060102", day); err == nil {
				e.DateAdded = t.UTC()
			}
		}
	}
	return e, nil
}

func actorFromCols(c []string) Actor {
	return Actor{
		Code:           c[0],
		Name:           c[1],
		CountryCode:    c[2],
		KnownGroupCode: c[3],
		EthnicCode:     c[4],
		Religion1Code:  c[5],
		Religion2Code:  c[6],
		Type1Code:      c[7],
		Type2Code:      c[8],
		Type3Code:      c[9],
	}
}

func geoFromCols(c []string, adm2 bool) GeoRef {
	g := GeoRef{
		Type:        atoi(c[0]),
		FullName:    c[1],
		CountryCode: c[2],
		ADM1Code:    c[3],
	}
	rest := c[4:]
	if adm2 {
		g.ADM2Code = c[4]
		rest = c[5:]
	}
	g.Lat = atofPtr(rest[0])
	g.Lon = atofPtr(rest[1])
	g.FeatureID = rest[2]
	return g
}

// Warehouse column names for the events table. SQLDATE is the warehouse
// spelling of the export file's Day cell.
func eventFromMap(f map[string]string) (Event, error) {
	idStr := pick(f, "GLOBALEVENTID", "GlobalEventID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Event{}, fmt.Errorf("bad GLOBALEVENTID %q: %w", idStr, err)
	}

	e := Event{
		GlobalEventID: id,
		Day:           atoi(pick(f, "SQLDATE", "Day")),
		MonthYear:     atoi(f["MonthYear"]),
		Year:          atoi(f["Year"]),
		FractionDate:  atof(f["FractionDate"]),
		Actor1:        actorFromMap(f, "Actor1"),
		Actor2:        actorFromMap(f, "Actor2"),

		IsRootEvent:    atob(f["IsRootEvent"]),
		EventCode:      f["EventCode"],
		EventBaseCode:  f["EventBaseCode"],
		EventRootCode:  f["EventRootCode"],
		QuadClass:      atoi(f["QuadClass"]),
		GoldsteinScale: atofPtr(f["GoldsteinScale"]),
		NumMentions:    atoi(f["NumMentions"]),
		NumSources:     atoi(f["NumSources"]),
		NumArticles:    atoi(f["NumArticles"]),
		AvgTone:        atof(f["AvgTone"]),

		Actor1Geo: geoFromMap(f, "Actor1Geo"),
		Actor2Geo: geoFromMap(f, "Actor2Geo"),
		ActionGeo: geoFromMap(f, "ActionGeo"),

		DateAdded: parseStamp(f["DATEADDED"]),
		SourceURL: f["SOURCEURL"],
	}
	return e, nil
}

func actorFromMap(f map[string]string, prefix string) Actor {
	return Actor{
		Code:           f[prefix+"Code"],
		Name:           f[prefix+"Name"],
		CountryCode:    f[prefix+"CountryCode"],
		KnownGroupCode: f[prefix+"KnownGroupCode"],
		EthnicCode:     f[prefix+"EthnicCode"],
		Religion1Code:  f[prefix+"Religion1Code"],
		Religion2Code:  f[prefix+"Religion2Code"],
		Type1Code:      f[prefix+"Type1Code"],
		Type2Code:      f[prefix+"Type2Code"],
		Type3Code:      f[prefix+"Type3Code"],
	}
}

func geoFromMap(f map[string]string, prefix string) GeoRef {
	return GeoRef{
		Type:        atoi(f[prefix+"_Type"]),
		FullName:    f[prefix+"_Fullname"],
		CountryCode: f[prefix+"_CountryCode"],
		ADM1Code:    f[prefix+"_ADM1Code"],
		ADM2Code:    f[prefix+"_ADM2Code"],
		Lat:         atofPtr(f[prefix+"_Lat"]),
		Lon:         atofPtr(f[prefix+"_Long"]),
		FeatureID:   f[prefix+"_FeatureID"],
	}
}

func pick(f map[string]string, names ...string) string {
	for _, n := range names {
		if v, ok := f[n]; ok && v != "" {
			return v
		}
	}
	return ""
}
