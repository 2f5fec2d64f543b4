// Package main is the gdelt command line client: fetch records to
// stdout, inspect slot inventories, and manage the artifact cache.
package main

import (
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	"golang.org/x/term"

	gdelt "github.com/gdeltkit/gdelt-go"
	"github.com/gdeltkit/gdelt-go/filters"
)

func main() {
	if len(os.Args) > 1 {
		switch os.Args[1] {
		case "fetch":
			runFetchCommand(os.Args[2:])
			return
		case "slots":
			runSlotsCommand(os.Args[2:])
			return
		case "cache":
			runCacheCommand(os.Args[2:])
			return
		case "lookup":
			runLookupCommand(os.Args[2:])
			return
		case "version", "-v", "--version":
			printVersion()
			return
		case "help", "-h", "--help":
			printHelp()
			return
		default:
			fmt.Fprintf(os.Stderr, "gdelt: unknown command %q\n\n", os.Args[1])
			printHelp()
			os.Exit(2)
		}
	}
	printHelp()
}

// loadEnvFiles loads .env from ~/.gdelt and the working directory, the
// latter winning. Only the CLI does this; the library reads the process
// environment as-is.
func loadEnvFiles() {
	if home, err := os.UserHomeDir(); err == nil {
		_ = godotenv.Load(filepath.Join(home, ".gdelt", ".env"))
	}
	_ = godotenv.Load()
}

// clientFlags registers the flags shared by every subcommand that opens
// a client. The returned builder resolves them after Parse.
func clientFlags(fs *flag.FlagSet) func() []gdelt.Option {
	configFile := fs.String("config", "", "config file (default ~/.gdelt/config.toml)")
	cacheDir := fs.String("cache-dir", "", "override the cache directory")
	logLevel := fs.String("log-level", "", "log verbosity: debug, info, warn, error")
	logFormat := fs.String("log-format", "", "log output: json or console")

	return func() []gdelt.Option {
		var opts []gdelt.Option
		if *configFile != "" {
			opts = append(opts, gdelt.WithConfigFile(*configFile))
		}
		if *cacheDir != "" {
			opts = append(opts, gdelt.WithCacheDir(*cacheDir))
		}
		if *logLevel != "" {
			opts = append(opts, gdelt.WithLogLevel(*logLevel))
		}
		switch {
		case *logFormat != "":
			opts = append(opts, gdelt.WithLogFormat(*logFormat))
		case term.IsTerminal(int(os.Stderr.Fd())):
			// Humans get the console form; pipes keep JSON.
			opts = append(opts, gdelt.WithLogFormat("console"))
		}
		return opts
	}
}

// spanFlags registers the range flags shared by fetch and slots.
func spanFlags(fs *flag.FlagSet) func() (filters.Span, error) {
	start := fs.String("start", "", "range start, YYYY-MM-DD or YYYYMMDDHHMMSS (UTC)")
	end := fs.String("end", "", "range end, exclusive; defaults to one day after -start")
	last := fs.Duration("last", 0, "trailing window ending now (e.g. 45m, 24h); replaces -start/-end")

	return func() (filters.Span, error) {
		if *last > 0 {
			e := time.Now().UTC().Truncate(15 * time.Minute)
			return filters.NewSpan(e.Add(-*last), e), nil
		}
		if *start == "" {
			return filters.Span{}, fmt.Errorf("a range is required: -start/-end or -last")
		}
		s, err := parseWhen(*start)
		if err != nil {
			return filters.Span{}, err
		}
		if *end == "" {
			return filters.NewSpan(s, s.Add(24*time.Hour)), nil
		}
		e, err := parseWhen(*end)
		if err != nil {
			return filters.Span{}, err
		}
		return filters.NewSpan(s, e), nil
	}
}

func parseWhen(s string) (time.Time, error) {
	for _, layout := range []string{"2006-01-02", "20060102150405", "20060102", time.RFC3339} {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time %q (want YYYY-MM-DD or YYYYMMDDHHMMSS)", s)
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "gdelt: "+format+"\n", args...)
	os.Exit(1)
}

func printHelp() {
	fmt.Println("gdelt - fetch GDELT datasets as validated record streams")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  gdelt <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  fetch        Stream records of one dataset to stdout")
	fmt.Println("  slots        List the slot files a range would visit")
	fmt.Println("  cache        Inspect or clean the artifact cache (size, prune, clear)")
	fmt.Println("  lookup       Resolve CAMEO, actor, country, quad or likelihood codes")
	fmt.Println("  version      Print version information")
	fmt.Println("  help         Show this help message")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  gdelt fetch -type events -start 2024-01-15 -end 2024-01-16")
	fmt.Println("  gdelt fetch -type gkg -last 1h -on-error warn -limit 1000")
	fmt.Println("  gdelt slots -type events -last 2h -probe")
	fmt.Println("  gdelt lookup cameo 0251")
	fmt.Println("  gdelt cache prune")
	fmt.Println()
	fmt.Println("Run 'gdelt <command> -h' for command flags. Configuration")
	fmt.Println("resolves flags over GDELT_* environment variables over")
	fmt.Println("~/.gdelt/config.toml.")
}
