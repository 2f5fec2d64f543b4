package models

import (
	"fmt"
	"strings"
	"time"
)

// GKG is one validated Global Knowledge Graph v2.1 record (one article).
//
// The 27-cell row packs several mini-grammars into single cells; the
// constructor unpacks them:
//
//	themes       name,offset pairs, ";" between pairs
//	locations    "#"-separated fields, ";" between records
//	counts       "#"-separated fields, ";" between records
//	gcam         key:value pairs
//	quotations   offset#length#verb#quote, "|" between records
//	amounts      amount,object,offset triples, ";" between triples
//
// Version is 2 when any enhanced (V2*) cell is populated, else 1.
type GKG struct {
	RecordID   string
	OriginalID string
	Translated bool
	Version    int

	Date             time.Time
	SourceCollection int
	SourceName       string
	DocumentID       string

	Counts         []CountMention
	EnhancedCounts []CountMention

	Themes         []string
	EnhancedThemes []ThemeMention

	Locations         []LocationMention
	EnhancedLocations []LocationMention

	Persons               []string
	EnhancedPersons       []NameMention
	Organizations         []string
	EnhancedOrganizations []NameMention

	Tone          Tone
	EnhancedDates []DateMention
	GCAM          map[string]float64

	SharingImage      string
	RelatedImages     []string
	SocialImageEmbeds []string
	SocialVideoEmbeds []string

	Quotations []Quotation
	AllNames   []NameMention
	Amounts    []Amount

	Translation TranslationInfo
	ExtrasXML   string
}

// ThemeMention is a theme tag with its character offset in the article.
type ThemeMention struct {
	Name   string
	Offset int
}

// NameMention is a proper name (person, organization, arbitrary name)
// with its character offset.
type NameMention struct {
	Name   string
	Offset int
}

// LocationMention is one geographic reference inside a GKG cell.
type LocationMention struct {
	Type        int
	FullName    string
	CountryCode string
	ADM1Code    string
	ADM2Code    string
	Lat         *float64
	Lon         *float64
	FeatureID   string
	Offset      int
}

// CountMention is one numeric count (e.g. KILL, PROTEST) with its object
// and location.
type CountMention struct {
	Type       string
	Count      int64
	ObjectType string
	Location   LocationMention
	Offset     int
}

// Tone is the V1.5TONE block.
type Tone struct {
	Tone                float64
	Positive            float64
	Negative            float64
	Polarity            float64
	ActivityRefDensity  float64
	SelfGroupRefDensity float64
	WordCount           int
}

// DateMention is one V2.1ENHANCEDDATES entry.
type DateMention struct {
	Resolution int
	Month      int
	Day        int
	Year       int
	Offset     int
}

// Quotation is one quoted passage.
type Quotation struct {
	Offset int
	Length int
	Verb   string
	Quote  string
}

// Amount is one V2.1AMOUNTS entry.
type Amount struct {
	Value  float64
	Object string
	Offset int
}

// TranslationInfo describes the provenance of a machine-translated record.
type TranslationInfo struct {
	SourceLang string
	Engine     string
}

// GKGCols is the cell count of one v2.1 row.
const GKGCols = 27

// Cell positions within the 27-cell layout.
const (
	gkgRecordID = iota
	gkgDate
	gkgSourceCollection
	gkgSourceName
	gkgDocumentID
	gkgCounts
	gkgEnhancedCounts
	gkgThemes
	gkgEnhancedThemes
	gkgLocations
	gkgEnhancedLocations
	gkgPersons
	gkgEnhancedPersons
	gkgOrganizations
	gkgEnhancedOrganizations
	gkgTone
	gkgEnhancedDates
	gkgGCAM
	gkgSharingImage
	gkgRelatedImages
	gkgSocialImageEmbeds
	gkgSocialVideoEmbeds
	gkgQuotations
	gkgAllNames
	gkgAmounts
	gkgTranslationInfo
	gkgExtras
)

// GKGFromRaw validates one raw record into a GKG.
func GKGFromRaw(r Raw) (GKG, error) {
	c := r.Cols
	if !r.IsColumnar() {
		c = gkgMapToCols(r.Fields)
	}
	if len(c) != GKGCols {
		return GKG{}, fmt.Errorf("gkg row has %d columns, want %d", len(c), GKGCols)
	}

	g := GKG{
		RecordID:         c[gkgRecordID],
		Date:             parseStamp(c[gkgDate]),
		SourceCollection: atoi(c[gkgSourceCollection]),
		SourceName:       c[gkgSourceName],
		DocumentID:       c[gkgDocumentID],

		Counts:         parseCounts(c[gkgCounts], false),
		EnhancedCounts: parseCounts(c[gkgEnhancedCounts], true),

		Themes:         splitList(c[gkgThemes], ";"),
		EnhancedThemes: parseThemes(c[gkgEnhancedThemes]),

		Locations:         parseLocations(c[gkgLocations]),
		EnhancedLocations: parseLocations(c[gkgEnhancedLocations]),

		Persons:               splitList(c[gkgPersons], ";"),
		EnhancedPersons:       parseNameMentions(c[gkgEnhancedPersons]),
		Organizations:         splitList(c[gkgOrganizations], ";"),
		EnhancedOrganizations: parseNameMentions(c[gkgEnhancedOrganizations]),

		Tone:          parseTone(c[gkgTone]),
		EnhancedDates: parseDates(c[gkgEnhancedDates]),
		GCAM:          parseGCAM(c[gkgGCAM]),

		SharingImage:      c[gkgSharingImage],
		RelatedImages:     splitList(c[gkgRelatedImages], ";"),
		SocialImageEmbeds: splitList(c[gkgSocialImageEmbeds], ";"),
		SocialVideoEmbeds: splitList(c[gkgSocialVideoEmbeds], ";"),

		Quotations: parseQuotations(c[gkgQuotations]),
		AllNames:   parseNameMentions(c[gkgAllNames]),
		Amounts:    parseAmounts(c[gkgAmounts]),

		Translation: parseTranslationInfo(c[gkgTranslationInfo]),
		ExtrasXML:   c[gkgExtras],
	}

	g.OriginalID, g.Translated = splitTranslatedID(g.RecordID)

	g.Version = 1
	for _, cell := range []string{
		c[gkgEnhancedCounts], c[gkgEnhancedThemes], c[gkgEnhancedLocations],
		c[gkgEnhancedPersons], c[gkgEnhancedOrganizations], c[gkgEnhancedDates],
		c[gkgGCAM], c[gkgQuotations], c[gkgAllNames], c[gkgAmounts],
	} {
		if cell != "" {
			g.Version = 2
			break
		}
	}
	return g, nil
}

// gkgMapToCols rebuilds the cell layout from warehouse column names so map
// and columnar inputs share one validation path.
func gkgMapToCols(f map[string]string) []string {
	return []string{
		f["GKGRECORDID"], f["DATE"], f["SourceCollectionIdentifier"],
		f["SourceCommonName"], f["DocumentIdentifier"], f["Counts"],
		f["V2Counts"], f["Themes"], f["V2Themes"], f["Locations"],
		f["V2Locations"], f["Persons"], f["V2Persons"], f["Organizations"],
		f["V2Organizations"], f["V2Tone"], f["Dates"], f["GCAM"],
		f["SharingImage"], f["RelatedImages"], f["SocialImageEmbeds"],
		f["SocialVideoEmbeds"], f["Quotations"], f["AllNames"], f["Amounts"],
		f["TranslationInfo"], f["Extras"],
	}
}

// splitTranslatedID detects the "-T" marker of the translated collection
// and returns the untranslated prefix.
func splitTranslatedID(id string) (original string, translated bool) {
	i := strings.LastIndex(id, "-T")
	if i < 0 {
		return id, false
	}
	for _, r := range id[i+2:] {
		if r < '0' || r > '9' {
			return id, false
		}
	}
	return id[:i], true
}

func splitList(cell, sep string) []string {
	if cell == "" {
		return nil
	}
	parts := strings.Split(cell, sep)
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseThemes(cell string) []ThemeMention {
	var out []ThemeMention
	for _, rec := range splitList(cell, ";") {
		name, off, ok := strings.Cut(rec, ",")
		if !ok {
			out = append(out, ThemeMention{Name: rec, Offset: -1})
			continue
		}
		out = append(out, ThemeMention{Name: name, Offset: atoi(off)})
	}
	return out
}

func parseNameMentions(cell string) []NameMention {
	var out []NameMention
	for _, rec := range splitList(cell, ";") {
		name, off, ok := strings.Cut(rec, ",")
		if !ok {
			out = append(out, NameMention{Name: rec, Offset: -1})
			continue
		}
		out = append(out, NameMention{Name: name, Offset: atoi(off)})
	}
	return out
}

// parseLocations decodes "#"-separated location fields. The plain cell has
// 7 fields; the enhanced cell adds ADM2 and a character offset for 9.
func parseLocations(cell string) []LocationMention {
	var out []LocationMention
	for _, rec := range splitList(cell, ";") {
		f := strings.Split(rec, "#")
		var l LocationMention
		switch {
		case len(f) >= 9:
			l = LocationMention{
				Type: atoi(f[0]), FullName: f[1], CountryCode: f[2],
				ADM1Code: f[3], ADM2Code: f[4],
				Lat: atofPtr(f[5]), Lon: atofPtr(f[6]),
				FeatureID: f[7], Offset: atoi(f[8]),
			}
		case len(f) >= 7:
			l = LocationMention{
				Type: atoi(f[0]), FullName: f[1], CountryCode: f[2],
				ADM1Code: f[3], Lat: atofPtr(f[4]), Lon: atofPtr(f[5]),
				FeatureID: f[6], Offset: -1,
			}
		default:
			continue
		}
		out = append(out, l)
	}
	return out
}

// parseCounts decodes count records: type#count#objecttype followed by a
// 7-field location block, plus a trailing offset in the enhanced cell.
func parseCounts(cell string, enhanced bool) []CountMention {
	var out []CountMention
	for _, rec := range splitList(cell, ";") {
		f := strings.Split(rec, "#")
		if len(f) < 10 {
			continue
		}
		m := CountMention{
			Type:       f[0],
			Count:      atoi64(f[1]),
			ObjectType: f[2],
			Location: LocationMention{
				Type: atoi(f[3]), FullName: f[4], CountryCode: f[5],
				ADM1Code: f[6], Lat: atofPtr(f[7]), Lon: atofPtr(f[8]),
				FeatureID: f[9], Offset: -1,
			},
			Offset: -1,
		}
		if enhanced && len(f) >= 11 {
			m.Offset = atoi(f[10])
		}
		out = append(out, m)
	}
	return out
}

func parseTone(cell string) Tone {
	f := strings.Split(cell, ",")
	if len(f) < 7 {
		return Tone{}
	}
	return Tone{
		Tone:                atof(f[0]),
		Positive:            atof(f[1]),
		Negative:            atof(f[2]),
		Polarity:            atof(f[3]),
		ActivityRefDensity:  atof(f[4]),
		SelfGroupRefDensity: atof(f[5]),
		WordCount:           atoi(f[6]),
	}
}

func parseDates(cell string) []DateMention {
	var out []DateMention
	for _, rec := range splitList(cell, ";") {
		f := strings.Split(rec, "#")
		if len(f) < 5 {
			continue
		}
		out = append(out, DateMention{
			Resolution: atoi(f[0]),
			Month:      atoi(f[1]),
			Day:        atoi(f[2]),
			Year:       atoi(f[3]),
			Offset:     atoi(f[4]),
		})
	}
	return out
}

// parseGCAM decodes key:value score pairs. Upstream files delimit with
// commas, warehouse exports with semicolons; both are accepted.
func parseGCAM(cell string) map[string]float64 {
	if cell == "" {
		return nil
	}
	out := make(map[string]float64)
	for _, pair := range strings.FieldsFunc(cell, func(r rune) bool { return r == ',' || r == ';' }) {
		k, v, ok := strings.Cut(pair, ":")
		if !ok || k == "" {
			continue
		}
		out[k] = atof(v)
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

func parseQuotations(cell string) []Quotation {
	var out []Quotation
	for _, rec := range splitList(cell, "|") {
		f := strings.SplitN(rec, "#", 4)
		if len(f) < 4 {
			continue
		}
		out = append(out, Quotation{
			Offset: atoi(f[0]),
			Length: atoi(f[1]),
			Verb:   f[2],
			Quote:  f[3],
		})
	}
	return out
}

func parseAmounts(cell string) []Amount {
	var out []Amount
	for _, rec := range splitList(cell, ";") {
		f := strings.SplitN(rec, ",", 3)
		if len(f) < 3 {
			continue
		}
		out = append(out, Amount{
			Value:  atof(f[0]),
			Object: f[1],
			Offset: atoi(f[2]),
		})
	}
	return out
}

func parseTranslationInfo(cell string) TranslationInfo {
	var ti TranslationInfo
	for _, part := range splitList(cell, ";") {
		k, v, ok := strings.Cut(part, ":")
		if !ok {
			continue
		}
		switch strings.ToUpper(k) {
		case "SRCLC":
			ti.SourceLang = v
		case "ENG":
			ti.Engine = v
		}
	}
	return ti
}
