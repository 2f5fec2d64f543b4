package parse

import (
	"iter"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/tidwall/gjson"

	"github.com/gdeltkit/gdelt-go/models"
)

// webNGramFields are the recognized top-level keys of one web ngrams
// record.
var webNGramFields = []string{"date", "ngram", "lang", "type", "pos", "pre", "post", "url"}

// jsonLines builds a JSON-lines parser for the web ngrams corpus and the
// JSON graph datasets. Each object flattens into Raw.Fields: scalars as
// their literal text, nested arrays and objects as raw JSON for the
// constructors to decode. Keys no model declares are schema drift, not
// errors; they warn once and vanish.
func (p *Parser) jsonLines(t models.RecordType) func([]byte) iter.Seq[models.Raw] {
	known := knownFields(t)
	return func(data []byte) iter.Seq[models.Raw] {
		return func(yield func(models.Raw) bool) {
			row := 0
			for line := range lines(data) {
				row++
				if !gjson.Valid(line) {
					p.malformed(t, row, "invalid JSON")
					continue
				}
				doc := gjson.Parse(line)
				if !doc.IsObject() {
					p.malformed(t, row, "not a JSON object")
					continue
				}
				fields := make(map[string]string, known.Cardinality())
				doc.ForEach(func(key, value gjson.Result) bool {
					name := key.String()
					if !known.Contains(name) {
						p.driftWarn(t, name)
						return true
					}
					if s := cellText(value); s != "" {
						fields[name] = s
					}
					return true
				})
				if len(fields) == 0 {
					p.malformed(t, row, "no recognized fields")
					continue
				}
				if !yield(models.Raw{Fields: fields}) {
					return
				}
			}
		}
	}
}

func knownFields(t models.RecordType) mapset.Set[string] {
	names := webNGramFields
	if t != models.TypeWebNGrams {
		names = models.KnownGraphFields(t)
	}
	return mapset.NewThreadUnsafeSet(names...)
}

// cellText renders one JSON value for Raw.Fields. Empty strings and
// nulls collapse to absent.
func cellText(v gjson.Result) string {
	switch {
	case v.Type == gjson.Null:
		return ""
	case v.IsObject() || v.IsArray():
		return v.Raw
	default:
		return v.String()
	}
}
