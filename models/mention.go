package models

import (
	"fmt"
	"strconv"
	"time"
)

// Mention is one observed report of an event in one source document.
// Mentions exist only in the v2 dataset; the row is 16 cells.
type Mention struct {
	GlobalEventID   int64
	EventTime       time.Time
	MentionTime     time.Time
	MentionType     int
	SourceName      string
	Identifier      string // document URL or citation
	SentenceID      int
	Actor1CharOff   int
	Actor2CharOff   int
	ActionCharOff   int
	InRawText       bool
	Confidence      int
	DocLen          int
	DocTone         float64
	TranslationInfo string
	Extras          string

	Translated bool
}

// MentionCols is the cell count of one mentions row.
const MentionCols = 16

// MentionFromRaw validates one raw record into a Mention.
func MentionFromRaw(r Raw) (Mention, error) {
	if r.IsColumnar() {
		return mentionFromCols(r.Cols)
	}
	return mentionFromMap(r.Fields)
}

func mentionFromCols(c []string) (Mention, error) {
	if len(c) != MentionCols {
		return Mention{}, fmt.Errorf("mention row has %d columns, want %d", len(c), MentionCols)
	}
	id, err := strconv.ParseInt(c[0], 10, 64)
	if err != nil {
		return Mention{}, fmt.Errorf("bad GLOBALEVENTID %q: %w", c[0], err)
	}
	return Mention{
		GlobalEventID:   id,
		EventTime:       parseStamp(c[1]),
		MentionTime:     parseStamp(c[2]),
		MentionType:     atoi(c[3]),
		SourceName:      c[4],
		Identifier:      c[5],
		SentenceID:      atoi(c[6]),
		Actor1CharOff:   atoi(c[7]),
		Actor2CharOff:   atoi(c[8]),
		ActionCharOff:   atoi(c[9]),
		InRawText:       atob(c[10]),
		Confidence:      atoi(c[11]),
		DocLen:          atoi(c[12]),
		DocTone:         atof(c[13]),
		TranslationInfo: c[14],
		Extras:          c[15],
	}, nil
}

func mentionFromMap(f map[string]string) (Mention, error) {
	idStr := pick(f, "GLOBALEVENTID", "GlobalEventID")
	id, err := strconv.ParseInt(idStr, 10, 64)
	if err != nil {
		return Mention{}, fmt.Errorf("bad GLOBALEVENTID %q: %w", idStr, err)
	}
	return Mention{
		GlobalEventID:   id,
		EventTime:       parseStamp(f["EventTimeDate"]),
		MentionTime:     parseStamp(f["MentionTimeDate"]),
		MentionType:     atoi(f["MentionType"]),
		SourceName:      f["MentionSourceName"],
		Identifier:      f["MentionIdentifier"],
		SentenceID:      atoi(f["SentenceID"]),
		Actor1CharOff:   atoi(f["Actor1CharOffset"]),
		Actor2CharOff:   atoi(f["Actor2CharOffset"]),
		ActionCharOff:   atoi(f["ActionCharOffset"]),
		InRawText:       atob(f["InRawText"]),
		Confidence:      atoi(f["Confidence"]),
		DocLen:          atoi(f["MentionDocLen"]),
		DocTone:         atof(f["MentionDocTone"]),
		TranslationInfo: f["MentionDocTranslationInfo"],
		Extras:          f["Extras"],
	}, nil
}
