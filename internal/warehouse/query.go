// Package warehouse - query.go builds parameterized statements.
//
// DESIGN: SQL text is assembled from fixed fragments and allow-listed
// column names only; every user-derived value travels as a named query
// parameter. A statement therefore cannot be bent by filter content,
// and the mandatory partition predicate keeps each query priced at the
// requested date range instead of a decade of archive.
package warehouse

import (
	"fmt"
	"slices"
	"strings"

	"cloud.google.com/go/bigquery"

	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

// Query is one fully built warehouse statement. Construct with the
// per-dataset builders; the zero value is rejected at submission.
type Query struct {
	tbl    table
	cols   []string
	preds  []pred
	params []bigquery.QueryParameter
	limit  int
}

// pred is one WHERE fragment and the single column it references,
// recorded so submission can re-check the allow-list.
type pred struct {
	col  string
	expr string
}

func newQuery(t models.RecordType, c filters.Common) (*Query, error) {
	tbl, ok := tables[t]
	if !ok {
		return nil, fmt.Errorf("%s has no partitioned warehouse table", t)
	}
	if !c.Span.End.After(c.Span.Start) {
		return nil, fmt.Errorf("warehouse query needs a bounded date range")
	}
	q := &Query{
		tbl:  tbl,
		cols: tbl.cols,
		params: []bigquery.QueryParameter{
			{Name: "part_start", Value: c.Span.Start},
			{Name: "part_end", Value: c.Span.End},
		},
		limit: c.Limit,
	}
	if q.limit > 0 {
		q.params = append(q.params, bigquery.QueryParameter{Name: "row_limit", Value: int64(q.limit)})
	}
	return q, nil
}

func (q *Query) where(col, expr string, params ...bigquery.QueryParameter) {
	q.preds = append(q.preds, pred{col: col, expr: expr})
	q.params = append(q.params, params...)
}

func param(name string, value any) bigquery.QueryParameter {
	return bigquery.QueryParameter{Name: name, Value: value}
}

// anyPrefix matches rows whose column starts with any element of the
// named array parameter.
func anyPrefix(col, paramName string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(@%s) AS p WHERE STARTS_WITH(%s, p))", paramName, col)
}

// anySubstring matches rows whose column contains any element of the
// named array parameter.
func anySubstring(col, paramName string) string {
	return fmt.Sprintf("EXISTS (SELECT 1 FROM UNNEST(@%s) AS s WHERE STRPOS(%s, s) > 0)", paramName, col)
}

// EventsQuery builds the statement for an events filter.
func EventsQuery(f filters.Events) (*Query, error) {
	if f.Translated {
		return nil, fmt.Errorf("translated events are file-only; the warehouse table does not tag the collection")
	}
	q, err := newQuery(models.TypeEvents, f.Common)
	if err != nil {
		return nil, err
	}
	if len(f.Countries) > 0 {
		q.where("ActionGeo_CountryCode",
			"ActionGeo_CountryCode IN UNNEST(@countries)",
			param("countries", f.Countries))
	}
	if len(f.CAMEOCodes) > 0 {
		q.where("EventCode",
			"EventCode IN UNNEST(@cameo_codes)",
			param("cameo_codes", f.CAMEOCodes))
	}
	if len(f.Actor1Codes) > 0 {
		q.where("Actor1Code", anyPrefix("Actor1Code", "actor1_prefixes"),
			param("actor1_prefixes", f.Actor1Codes))
	}
	if len(f.Actor2Codes) > 0 {
		q.where("Actor2Code", anyPrefix("Actor2Code", "actor2_prefixes"),
			param("actor2_prefixes", f.Actor2Codes))
	}
	return q, nil
}

// MentionsQuery builds the statement for a mentions filter.
func MentionsQuery(f filters.Mentions) (*Query, error) {
	if f.Translated {
		return nil, fmt.Errorf("translated mentions are file-only; the warehouse table does not tag the collection")
	}
	q, err := newQuery(models.TypeMentions, f.Common)
	if err != nil {
		return nil, err
	}
	if len(f.EventIDs) > 0 {
		q.where("GLOBALEVENTID",
			"GLOBALEVENTID IN UNNEST(@event_ids)",
			param("event_ids", f.EventIDs))
	}
	return q, nil
}

// GKGQuery builds the statement for a knowledge-graph filter. The
// translated collection shares the table, marked by the -T record id
// suffix.
func GKGQuery(f filters.GKG) (*Query, error) {
	q, err := newQuery(models.TypeGKG, f.Common)
	if err != nil {
		return nil, err
	}
	if f.Translated {
		q.where("GKGRECORDID", "GKGRECORDID LIKE '%-T'")
	}
	if len(f.Themes) > 0 {
		q.where("V2Themes", anySubstring("V2Themes", "themes"),
			param("themes", f.Themes))
	}
	if len(f.SourceLangs) > 0 {
		q.where("TranslationInfo",
			"EXISTS (SELECT 1 FROM UNNEST(@source_langs) AS sl WHERE STRPOS(TranslationInfo, CONCAT('srclc:', sl)) > 0)",
			param("source_langs", f.SourceLangs))
	}
	return q, nil
}

// WebNGramsQuery builds the statement for a web ngrams filter.
func WebNGramsQuery(f filters.WebNGrams) (*Query, error) {
	q, err := newQuery(models.TypeWebNGrams, f.Common)
	if err != nil {
		return nil, err
	}
	if len(f.Langs) > 0 {
		q.where("lang", "lang IN UNNEST(@langs)", param("langs", f.Langs))
	}
	if len(f.NGrams) > 0 {
		q.where("ngram", "ngram IN UNNEST(@ngrams)", param("ngrams", f.NGrams))
	}
	return q, nil
}

// GraphQuery builds the statement for a graph filter.
func GraphQuery(f filters.Graph) (*Query, error) {
	return newQuery(f.Kind, f.Common)
}

// Select narrows the projection to the named columns. Names outside the
// table's allow-list are rejected.
func (q *Query) Select(cols ...string) error {
	for _, c := range cols {
		if !q.tbl.set.Contains(c) {
			return fmt.Errorf("column %q is not allowed for %s", c, q.tbl.name)
		}
	}
	q.cols = slices.Clone(cols)
	return nil
}

// Table returns the fully qualified table name.
func (q *Query) Table() string { return q.tbl.name }

// Parameters returns the named parameters carrying every user value.
func (q *Query) Parameters() []bigquery.QueryParameter { return q.params }

// SQL renders the statement text. Only fixed fragments, allow-listed
// column names and parameter placeholders appear in it.
func (q *Query) SQL() string {
	var b strings.Builder
	b.WriteString("SELECT ")
	b.WriteString(strings.Join(q.cols, ", "))
	b.WriteString(" FROM `")
	b.WriteString(q.tbl.name)
	b.WriteString("` WHERE _PARTITIONTIME >= @part_start AND _PARTITIONTIME < @part_end")
	for _, p := range q.preds {
		b.WriteString(" AND ")
		b.WriteString(p.expr)
	}
	if q.limit > 0 {
		b.WriteString(" LIMIT @row_limit")
	}
	return b.String()
}

// validate re-checks the statement right before submission: a table must
// be bound and every referenced column must sit in its allow-list.
func (q *Query) validate() error {
	if q.tbl.name == "" {
		return fmt.Errorf("query is not bound to a table")
	}
	if len(q.cols) == 0 {
		return fmt.Errorf("query has an empty projection")
	}
	for _, c := range q.cols {
		if !q.tbl.set.Contains(c) {
			return fmt.Errorf("column %q is not allowed for %s", c, q.tbl.name)
		}
	}
	for _, p := range q.preds {
		if !q.tbl.set.Contains(p.col) {
			return fmt.Errorf("predicate column %q is not allowed for %s", p.col, q.tbl.name)
		}
	}
	return nil
}
