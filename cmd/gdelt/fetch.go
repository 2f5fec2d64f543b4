package main

import (
	"bufio"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	gdelt "github.com/gdeltkit/gdelt-go"
	"github.com/gdeltkit/gdelt-go/filters"
	"github.com/gdeltkit/gdelt-go/models"
)

// runFetchCommand streams one dataset to stdout, records only; logs and
// the fetch summary go to stderr.
func runFetchCommand(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("fetch", flag.ExitOnError)
	typ := fs.String("type", "events", "dataset: events, mentions, gkg, vgkg, tvgkg, webngrams, broadcastngrams, gqg, geg, gfg, ggg, gemg, gal")
	translated := fs.Bool("translated", false, "use the machine-translated collection")
	source := fs.String("source", "", "force a data source: files or warehouse")
	dedup := fs.String("dedup", "", "dedup strategy (none, url_only, url_date, url_date_location, url_date_location_actors, aggressive)")
	onError := fs.String("on-error", "", "slot failure policy: raise (default), warn, skip")
	limit := fs.Int("limit", 0, "stop after N records (0 = no cap)")
	format := fs.String("format", "ndjson", "output: ndjson, or tsv for raw cells of column-shaped datasets")
	raw := fs.Bool("raw", false, "emit raw records (cells or fields) instead of validated ones")

	countries := fs.String("country", "", "events: comma-separated FIPS country codes")
	cameo := fs.String("cameo", "", "events: comma-separated CAMEO event codes")
	themes := fs.String("theme", "", "gkg: comma-separated theme selectors")
	eventIDs := fs.String("event-ids", "", "mentions: comma-separated global event ids")

	span := spanFlags(fs)
	opts := clientFlags(fs)
	_ = fs.Parse(args)

	t, ok := models.ParseRecordType(*typ)
	if !ok {
		fatalf("unknown dataset %q", *typ)
	}
	sp, err := span()
	if err != nil {
		fatalf("%v", err)
	}
	common := filters.Common{
		Span:       sp,
		Dedup:      models.DedupStrategy(*dedup),
		OnError:    filters.ErrorPolicy(*onError),
		Source:     filters.Source(*source),
		Limit:      *limit,
		Translated: *translated,
	}
	checkSelectorScope(t, *countries, *cameo, *themes, *eventIDs)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := gdelt.New(ctx, opts()...)
	if err != nil {
		fatalf("%v", err)
	}
	defer cl.Close()

	out := bufio.NewWriter(os.Stdout)
	defer out.Flush()

	var res gdelt.FetchResult
	switch {
	case *format == "tsv":
		res, err = emitTSV(cl.Raw(ctx, t, common), out)
	case *raw:
		res, err = emit(cl.Raw(ctx, t, common), out)
	default:
		res, err = emitTyped(ctx, cl, t, common, commaSplit(*countries), commaSplit(*cameo), commaSplit(*themes), parseIDs(*eventIDs), out)
	}
	out.Flush()
	printSummary(res)
	if err != nil {
		fatalf("%v", err)
	}
}

// emitTyped routes the fetch through the dataset's validating entry
// point and writes one JSON object per record.
func emitTyped(ctx context.Context, cl *gdelt.Client, t models.RecordType, common filters.Common, countries, cameo, themes []string, eventIDs []int64, out io.Writer) (gdelt.FetchResult, error) {
	switch t {
	case models.TypeEvents:
		return emit(cl.Events(ctx, filters.Events{Common: common, Countries: countries, CAMEOCodes: cameo}), out)
	case models.TypeMentions:
		return emit(cl.Mentions(ctx, filters.Mentions{Common: common, EventIDs: eventIDs}), out)
	case models.TypeGKG:
		return emit(cl.GKG(ctx, filters.GKG{Common: common, Themes: themes}), out)
	case models.TypeVGKG:
		return emit(cl.VGKG(ctx, filters.VGKG{Common: common}), out)
	case models.TypeTVGKG:
		return emit(cl.TVGKG(ctx, filters.TVGKG{Common: common}), out)
	case models.TypeWebNGrams:
		return emit(cl.WebNGrams(ctx, filters.WebNGrams{Common: common}), out)
	case models.TypeBroadcastNGrams:
		return emit(cl.BroadcastNGrams(ctx, filters.BroadcastNGrams{Common: common}), out)
	case models.TypeGQG:
		return emit(cl.GQG(ctx, filters.Graph{Common: common}), out)
	case models.TypeGEG:
		return emit(cl.GEG(ctx, filters.Graph{Common: common}), out)
	case models.TypeGFG:
		return emit(cl.GFG(ctx, filters.Graph{Common: common}), out)
	case models.TypeGGG:
		return emit(cl.GGG(ctx, filters.Graph{Common: common}), out)
	case models.TypeGEMG:
		return emit(cl.GEMG(ctx, filters.Graph{Common: common}), out)
	case models.TypeGAL:
		return emit(cl.GAL(ctx, filters.Graph{Common: common}), out)
	}
	return gdelt.FetchResult{}, fmt.Errorf("unknown dataset %q", t)
}

func emit[T any](s *gdelt.Stream[T], out io.Writer) (gdelt.FetchResult, error) {
	enc := json.NewEncoder(out)
	for rec := range s.All() {
		if err := enc.Encode(rec); err != nil {
			return s.Result(), err
		}
	}
	return s.Result(), s.Err()
}

func emitTSV(s *gdelt.Stream[models.Raw], out io.Writer) (gdelt.FetchResult, error) {
	for r := range s.All() {
		if !r.IsColumnar() {
			return s.Result(), fmt.Errorf("this dataset is field-shaped; use -format ndjson")
		}
		fmt.Fprintln(out, strings.Join(r.Cols, "\t"))
	}
	return s.Result(), s.Err()
}

func printSummary(res gdelt.FetchResult) {
	line := fmt.Sprintf("gdelt: %d records from %s", res.Records, res.Source)
	if res.FellBack {
		line += " after falling back from files"
	}
	if len(res.Failed) > 0 {
		line += fmt.Sprintf("; %d slots failed", len(res.Failed))
	}
	fmt.Fprintln(os.Stderr, line)
	for _, f := range res.Failed {
		fmt.Fprintf(os.Stderr, "gdelt:   slot %s: %v\n", f.Slot, f.Err)
	}
}

// checkSelectorScope rejects selector flags aimed at the wrong dataset
// instead of silently ignoring them.
func checkSelectorScope(t models.RecordType, countries, cameo, themes, eventIDs string) {
	if (countries != "" || cameo != "") && t != models.TypeEvents {
		fatalf("-country and -cameo apply to -type events")
	}
	if themes != "" && t != models.TypeGKG {
		fatalf("-theme applies to -type gkg")
	}
	if eventIDs != "" && t != models.TypeMentions {
		fatalf("-event-ids applies to -type mentions")
	}
}

func commaSplit(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func parseIDs(s string) []int64 {
	var out []int64
	for _, p := range commaSplit(s) {
		id, err := strconv.ParseInt(p, 10, 64)
		if err != nil {
			fatalf("bad event id %q", p)
		}
		out = append(out, id)
	}
	return out
}
