package models

import (
	"encoding/xml"
	"strings"
)

// ExtrasValue extracts the character data of the first <key> element in
// the record's extras cell. The extras blob is XML-shaped but frequently
// unbalanced, so decoding is token-by-token and stops at the first match.
//
// encoding/xml resolves no external entities and fetches no DTDs, which
// is exactly the posture wanted for attacker-influenced article markup.
func (g GKG) ExtrasValue(key string) string {
	if g.ExtrasXML == "" {
		return ""
	}
	dec := xml.NewDecoder(strings.NewReader(g.ExtrasXML))
	dec.Strict = false
	dec.AutoClose = xml.HTMLAutoClose
	dec.Entity = xml.HTMLEntity

	depth := 0
	var sb strings.Builder
	for {
		tok, err := dec.Token()
		if err != nil {
			return ""
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if depth > 0 {
				depth++
				continue
			}
			if t.Name.Local == key {
				depth = 1
			}
		case xml.EndElement:
			if depth > 0 {
				depth--
				if depth == 0 {
					return sb.String()
				}
			}
		case xml.CharData:
			if depth > 0 {
				sb.Write(t)
			}
		}
	}
}
