package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	gdelt "github.com/gdeltkit/gdelt-go"
)

// runCacheCommand inspects or cleans the artifact cache. The action is a
// positional word before the flags: size (default), prune, or clear.
func runCacheCommand(args []string) {
	loadEnvFiles()

	action := "size"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		action = args[0]
		args = args[1:]
	}

	fs := flag.NewFlagSet("cache", flag.ExitOnError)
	opts := clientFlags(fs)
	_ = fs.Parse(args)

	ctx := context.Background()
	cl, err := gdelt.New(ctx, opts()...)
	if err != nil {
		fatalf("%v", err)
	}
	defer cl.Close()
	switch action {
	case "size":
		entries, bytes, err := cl.CacheStats(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("%d artifacts, %s\n", entries, humanBytes(bytes))
	case "prune":
		n, err := cl.CachePrune(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("pruned %d expired artifacts\n", n)
	case "clear":
		n, err := cl.CacheClear(ctx)
		if err != nil {
			fatalf("%v", err)
		}
		fmt.Printf("removed %d artifacts\n", n)
	default:
		fmt.Fprintf(os.Stderr, "gdelt: unknown cache action %q (want size, prune or clear)\n", action)
		os.Exit(2)
	}
}

func humanBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
