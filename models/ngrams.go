package models

import (
	"fmt"
	"time"
)

// WebNGram is one word-context record from the web ngrams corpus.
type WebNGram struct {
	Date  time.Time
	NGram string
	Lang  string
	Type  int
	Pos   int
	Pre   string
	Post  string
	URL   string
}

// WebNGramFromRaw validates one raw record into a WebNGram. The source is
// JSON-lines or a warehouse row, so input is always map-shaped.
func WebNGramFromRaw(r Raw) (WebNGram, error) {
	if r.IsColumnar() {
		return WebNGram{}, fmt.Errorf("webngram record is columnar, want fields")
	}
	f := r.Fields
	ng := WebNGram{
		Date:  parseStamp(pick(f, "date", "DATE")),
		NGram: pick(f, "ngram", "NGRAM"),
		Lang:  pick(f, "lang", "LANG"),
		Type:  atoi(pick(f, "type", "TYPE")),
		Pos:   atoi(pick(f, "pos", "POS")),
		Pre:   pick(f, "pre", "PRE"),
		Post:  pick(f, "post", "POST"),
		URL:   pick(f, "url", "URL"),
	}
	if ng.NGram == "" {
		return WebNGram{}, fmt.Errorf("webngram record has no ngram field")
	}
	return ng, nil
}

// BroadcastNGram is one word-frequency record from the TV or radio
// corpora. TV rows carry five cells, radio rows six (the show name);
// Source tags the originating corpus.
type BroadcastNGram struct {
	Day     int // YYYYMMDD
	Station string
	Hour    int
	NGram   string
	Count   int
	Show    string
	Source  string // "tv" or "radio"
}

// Broadcast raw records are normalized to field maps by the parser so the
// five- and six-cell layouts share one shape.
const (
	BroadcastSourceTV    = "tv"
	BroadcastSourceRadio = "radio"
)

// BroadcastNGramFromRaw validates one raw record into a BroadcastNGram.
func BroadcastNGramFromRaw(r Raw) (BroadcastNGram, error) {
	if r.IsColumnar() {
		c := r.Cols
		if len(c) != 5 && len(c) != 6 {
			return BroadcastNGram{}, fmt.Errorf("broadcast ngram row has %d columns, want 5 or 6", len(c))
		}
		b := BroadcastNGram{
			Day:     atoi(c[0]),
			Station: c[1],
			Hour:    atoi(c[2]),
			NGram:   c[3],
			Count:   atoi(c[4]),
			Source:  BroadcastSourceTV,
		}
		if len(c) == 6 {
			b.Show = c[5]
			b.Source = BroadcastSourceRadio
		}
		return b, nil
	}

	f := r.Fields
	b := BroadcastNGram{
		Day:     atoi(f["day"]),
		Station: f["station"],
		Hour:    atoi(f["hour"]),
		NGram:   f["ngram"],
		Count:   atoi(f["count"]),
		Show:    f["show"],
		Source:  f["source"],
	}
	if b.NGram == "" {
		return BroadcastNGram{}, fmt.Errorf("broadcast ngram record has no ngram field")
	}
	return b, nil
}
