// Package parse decodes slot artifacts into raw records, one parser per
// dataset family.
//
// DESIGN: Parsers are forgiving where the archive is messy and strict
// where it matters. A malformed line is logged and skipped, never
// surfaced; invalid UTF-8 is replaced, not fatal; an unknown JSON key is
// schema drift, warned about once per (dataset, key) and dropped. What a
// parser never does is convert: cells stay strings in models.Raw, and
// the FromRaw constructors pay the conversion cost only for records that
// survive deduplication.
package parse

import (
	"bytes"
	"iter"
	"strings"
	"unicode/utf8"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/gdeltkit/gdelt-go/internal/monitoring"
	"github.com/gdeltkit/gdelt-go/models"
)

// Parser decodes artifacts for every dataset. One Parser serves a whole
// client; the drift ledger spans its lifetime so each unknown field
// warns once per run.
type Parser struct {
	log     *monitoring.Logger
	metrics *monitoring.Metrics
	drift   mapset.Set[string]
}

// New builds a Parser.
func New(log *monitoring.Logger, metrics *monitoring.Metrics) *Parser {
	if log == nil {
		log = monitoring.Nop()
	}
	return &Parser{
		log:     log.Component("parse"),
		metrics: metrics,
		drift:   mapset.NewSet[string](),
	}
}

// Parse decodes one artifact into raw records. Row-level problems are
// logged, counted and skipped; the sequence itself never fails.
func (p *Parser) Parse(t models.RecordType, data []byte) iter.Seq[models.Raw] {
	return p.parserFor(t)(data)
}

// parserFor binds a dataset to its decoding strategy. Warehouse rows
// never pass through here; they arrive column-keyed and the FromRaw
// constructors carry the branch for that shape.
func (p *Parser) parserFor(t models.RecordType) func([]byte) iter.Seq[models.Raw] {
	switch t {
	case models.TypeEvents:
		return p.tabular(t, models.EventColsV2, models.EventColsV1)
	case models.TypeMentions:
		return p.tabular(t, models.MentionCols)
	case models.TypeGKG, models.TypeTVGKG:
		return p.tabular(t, models.GKGCols)
	case models.TypeVGKG:
		return p.tabular(t, models.VGKGCols)
	case models.TypeGFG:
		return p.tabular(t, models.GFGCols)
	case models.TypeBroadcastNGrams:
		return p.tabular(t, 5, 6)
	default:
		// Web ngrams and the graph datasets are JSON-lines.
		return p.jsonLines(t)
	}
}

// lines iterates the artifact line by line without a scanner buffer cap;
// GKG rows routinely outgrow default token limits. Blank lines vanish,
// trailing carriage returns are trimmed, and invalid UTF-8 is replaced
// so one mangled byte cannot poison a row.
func lines(data []byte) iter.Seq[string] {
	return func(yield func(string) bool) {
		for len(data) > 0 {
			var line []byte
			if i := bytes.IndexByte(data, '\n'); i >= 0 {
				line, data = data[:i], data[i+1:]
			} else {
				line, data = data, nil
			}
			line = bytes.TrimSuffix(line, []byte{'\r'})
			if len(line) == 0 {
				continue
			}
			if !yield(strings.ToValidUTF8(string(line), string(utf8.RuneError))) {
				return
			}
		}
	}
}

// malformed records one skipped row.
func (p *Parser) malformed(t models.RecordType, lineNo int, reason string) {
	p.metrics.RecordParseWarning(t.String())
	p.log.Warn().
		Str("type", t.String()).
		Int("line", lineNo).
		Str("reason", reason).
		Msg("skipping malformed row")
}

// driftWarn emits at most one warning per (dataset, field) for the
// Parser's lifetime. The dropped field name is the whole point of the
// log line: it says exactly what a model update needs to add.
func (p *Parser) driftWarn(t models.RecordType, field string) {
	if !p.drift.Add(t.String() + "\x00" + field) {
		return
	}
	p.metrics.RecordSchemaDrift(t.String())
	p.log.Warn().
		Str("type", t.String()).
		Str("field", field).
		Msg("unknown field in upstream record; dropped")
}
