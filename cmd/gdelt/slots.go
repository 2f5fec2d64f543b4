package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	gdelt "github.com/gdeltkit/gdelt-go"
	"github.com/gdeltkit/gdelt-go/models"
)

// runSlotsCommand lists the slot files a range would visit, either
// computed from the URL pattern or read from the published inventory.
func runSlotsCommand(args []string) {
	loadEnvFiles()

	fs := flag.NewFlagSet("slots", flag.ExitOnError)
	typ := fs.String("type", "events", "dataset name")
	translated := fs.Bool("translated", false, "use the machine-translated collection")
	available := fs.Bool("available", false, "consult the inventory instead of computing the pattern")
	probe := fs.Bool("probe", false, "HEAD each URL and report ok or missing")
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

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cl, err := gdelt.New(ctx, opts()...)
	if err != nil {
		fatalf("%v", err)
	}
	defer cl.Close()

	var refs []gdelt.SlotRef
	if *available || t == models.TypeBroadcastNGrams {
		refs, err = cl.ListAvailable(ctx, t, sp, *translated)
	} else {
		refs, err = cl.SlotURLs(ctx, t, sp, *translated)
	}
	if err != nil {
		fatalf("%v", err)
	}

	for _, ref := range refs {
		if !*probe {
			fmt.Printf("%s\t%s\n", ref.Time.Format("20060102150405"), ref.URL)
			continue
		}
		status := "ok"
		exists, perr := cl.ProbeSlot(ctx, ref.URL)
		switch {
		case perr != nil:
			status = "error: " + perr.Error()
		case !exists:
			status = "missing"
		}
		fmt.Printf("%s\t%s\t%s\n", ref.Time.Format("20060102150405"), ref.URL, status)
	}
	fmt.Fprintf(os.Stderr, "gdelt: %d slots\n", len(refs))
}
