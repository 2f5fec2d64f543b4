package models

import "strings"

// TVGKG is a GKG record built from TV closed-caption transcripts. The row
// grammar is the regular 27-cell GKG layout with most enhanced cells
// empty; what it adds is the character-offset-to-airtime table carried in
// the extras cell.
type TVGKG struct {
	GKG

	// Timecodes maps transcript character offsets to station timecodes,
	// in transcript order.
	Timecodes []TimecodeEntry
}

// TimecodeEntry pairs a character offset in the caption text with the
// broadcast timecode at that offset.
type TimecodeEntry struct {
	Offset   int
	Timecode string
}

const (
	specialSentinel = "<SPECIAL>"
	timecodeTOCKey  = "CHARTIMECODEOFFSETTOC:"
)

// TVGKGFromRaw validates one raw record into a TVGKG.
func TVGKGFromRaw(r Raw) (TVGKG, error) {
	g, err := GKGFromRaw(r)
	if err != nil {
		return TVGKG{}, err
	}
	return TVGKG{
		GKG:       g,
		Timecodes: parseTimecodeTOC(g.ExtrasXML),
	}, nil
}

// parseTimecodeTOC locates the CHARTIMECODEOFFSETTOC block between
// <SPECIAL> sentinels and decodes its semicolon-separated offset:timecode
// pairs.
func parseTimecodeTOC(extras string) []TimecodeEntry {
	i := strings.Index(extras, specialSentinel)
	for i >= 0 {
		block := extras[i+len(specialSentinel):]
		if end := strings.Index(block, "<"); end >= 0 {
			block = block[:end]
		}
		if strings.HasPrefix(block, timecodeTOCKey) {
			return parseTimecodePairs(block[len(timecodeTOCKey):])
		}
		next := strings.Index(extras[i+len(specialSentinel):], specialSentinel)
		if next < 0 {
			break
		}
		i += len(specialSentinel) + next
	}
	return nil
}

func parseTimecodePairs(s string) []TimecodeEntry {
	var out []TimecodeEntry
	for _, pair := range splitList(s, ";") {
		off, tc, ok := strings.Cut(pair, ":")
		if !ok {
			continue
		}
		out = append(out, TimecodeEntry{Offset: atoi(off), Timecode: tc})
	}
	return out
}
