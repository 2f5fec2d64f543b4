package parse

import (
	"iter"
	"slices"
	"strconv"
	"strings"

	"github.com/gdeltkit/gdelt-go/models"
)

// tabular builds a TAB-delimited parser accepting the given column
// counts. The first row that matches one of them pins the layout for
// the rest of the file; events files are the one dataset with two
// layouts (61-column v2, 57-column v1) and a file never mixes them.
// Rows with any other width are skipped. Cells stay verbatim strings,
// which is what keeps leading zeros in CAMEO codes alive.
func (p *Parser) tabular(t models.RecordType, widths ...int) func([]byte) iter.Seq[models.Raw] {
	return func(data []byte) iter.Seq[models.Raw] {
		return func(yield func(models.Raw) bool) {
			want := 0
			row := 0
			for line := range lines(data) {
				row++
				cols := strings.Split(line, "\t")
				switch {
				case want == 0:
					if !slices.Contains(widths, len(cols)) {
						p.malformed(t, row, "want "+widthsLabel(widths)+" columns, got "+strconv.Itoa(len(cols)))
						continue
					}
					want = len(cols)
				case len(cols) != want:
					p.malformed(t, row, "want "+strconv.Itoa(want)+" columns, got "+strconv.Itoa(len(cols)))
					continue
				}
				if !yield(models.Raw{Cols: cols}) {
					return
				}
			}
		}
	}
}

func widthsLabel(widths []int) string {
	parts := make([]string, len(widths))
	for i, w := range widths {
		parts[i] = strconv.Itoa(w)
	}
	return strings.Join(parts, " or ")
}
