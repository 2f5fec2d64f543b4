// Package filters - match.go applies selector predicates to validated
// records. The warehouse pushes the same selectors into SQL; slot files
// arrive whole, so their records are matched here after validation. A
// filter with no selectors matches everything.
package filters

import (
	"slices"
	"strings"

	"github.com/gdeltkit/gdelt-go/models"
)

// Matches reports whether an event passes the filter's selectors.
func (f Events) Matches(e models.Event) bool {
	if len(f.Countries) > 0 && !slices.Contains(f.Countries, e.ActionGeo.CountryCode) {
		return false
	}
	if len(f.CAMEOCodes) > 0 && !slices.Contains(f.CAMEOCodes, e.EventCode) {
		return false
	}
	if len(f.Actor1Codes) > 0 && !hasPrefixAny(e.Actor1.Code, f.Actor1Codes) {
		return false
	}
	if len(f.Actor2Codes) > 0 && !hasPrefixAny(e.Actor2.Code, f.Actor2Codes) {
		return false
	}
	return true
}

// Matches reports whether a mention passes the filter's selectors.
func (f Mentions) Matches(m models.Mention) bool {
	return len(f.EventIDs) == 0 || slices.Contains(f.EventIDs, m.GlobalEventID)
}

// Matches reports whether a knowledge-graph record passes the filter's
// selectors. Theme selectors hit on both the plain and enhanced theme
// lists.
func (f GKG) Matches(g models.GKG) bool {
	if len(f.Themes) > 0 && !hasTheme(g, f.Themes) {
		return false
	}
	if len(f.SourceLangs) > 0 && !containsFold(f.SourceLangs, g.Translation.SourceLang) {
		return false
	}
	return true
}

// Matches reports whether a television record passes the filter's
// selectors. Station and show ride inside the document identifier
// ("CNN_20240115_120000_Situation_Room"), so they are recovered from it.
func (f TVGKG) Matches(g models.TVGKG) bool {
	if len(f.Stations) > 0 && !containsFold(f.Stations, tvStation(g.DocumentID)) {
		return false
	}
	if len(f.Shows) > 0 && !containsShowFold(f.Shows, tvShow(g.DocumentID)) {
		return false
	}
	return true
}

// Matches reports whether a web ngram passes the filter's selectors.
func (f WebNGrams) Matches(n models.WebNGram) bool {
	if len(f.Langs) > 0 && !containsFold(f.Langs, n.Lang) {
		return false
	}
	if len(f.NGrams) > 0 && !slices.Contains(f.NGrams, n.NGram) {
		return false
	}
	return true
}

// Matches reports whether a broadcast ngram passes the filter's
// selectors.
func (f BroadcastNGrams) Matches(b models.BroadcastNGram) bool {
	if len(f.Stations) > 0 && !containsFold(f.Stations, b.Station) {
		return false
	}
	if len(f.Shows) > 0 && !containsShowFold(f.Shows, b.Show) {
		return false
	}
	return true
}

func hasPrefixAny(code string, prefixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(code, p) {
			return true
		}
	}
	return false
}

func hasTheme(g models.GKG, want []string) bool {
	for _, w := range want {
		if slices.Contains(g.Themes, w) {
			return true
		}
		for _, th := range g.EnhancedThemes {
			if th.Name == w {
				return true
			}
		}
	}
	return false
}

func containsFold(haystack []string, v string) bool {
	for _, h := range haystack {
		if strings.EqualFold(h, v) {
			return true
		}
	}
	return false
}

// containsShowFold matches show selectors as case-folded substrings, so
// "situation room" finds "The Situation Room".
func containsShowFold(wanted []string, show string) bool {
	show = strings.ToLower(show)
	for _, w := range wanted {
		if w != "" && strings.Contains(show, strings.ToLower(w)) {
			return true
		}
	}
	return false
}

// tvStation extracts the station segment of a television document
// identifier.
func tvStation(docID string) string {
	if i := strings.IndexByte(docID, '_'); i > 0 {
		return docID[:i]
	}
	return docID
}

// tvShow extracts the show name from a television document identifier,
// underscores restored to spaces.
func tvShow(docID string) string {
	parts := strings.SplitN(docID, "_", 4)
	if len(parts) < 4 {
		return ""
	}
	return strings.ReplaceAll(parts[3], "_", " ")
}
