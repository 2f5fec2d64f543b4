package main

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gdeltkit/gdelt-go/cameo"
)

// runLookupCommand resolves codes against the static tables: CAMEO verb
// roots, actor type codes, FIPS countries, event quad classes, and the
// safe-search likelihood scale. The table is a positional word followed
// by one or more codes.
func runLookupCommand(args []string) {
	if len(args) < 2 {
		fmt.Fprintln(os.Stderr, "usage: gdelt lookup <cameo|actor|country|quad|likelihood> <code> [code...]")
		os.Exit(2)
	}

	table, codes := args[0], args[1:]
	missed := false
	for _, code := range codes {
		label, err := resolveCode(table, code)
		if err != nil {
			fatalf("%v", err)
		}
		if label == "" {
			label = "-"
			missed = true
		}
		fmt.Printf("%s\t%s\n", code, label)
	}
	if missed {
		os.Exit(1)
	}
}

func resolveCode(table, code string) (string, error) {
	switch table {
	case "cameo":
		// Full event codes extend a two-digit root; resolve the root
		// when the exact code has no entry of its own.
		if label := cameo.RootLabel(code); label != "" {
			return label, nil
		}
		if len(code) > 2 {
			return cameo.RootLabel(code[:2]), nil
		}
		return "", nil
	case "actor":
		return cameo.ActorTypeLabel(strings.ToUpper(code)), nil
	case "country":
		return cameo.CountryName(strings.ToUpper(code)), nil
	case "quad":
		n, err := strconv.Atoi(code)
		if err != nil {
			return "", fmt.Errorf("quad class must be a number 1..4, got %q", code)
		}
		return cameo.QuadClassLabel(n), nil
	case "likelihood":
		n, err := strconv.Atoi(code)
		if err != nil {
			return "", fmt.Errorf("likelihood must be a number -1..4, got %q", code)
		}
		return cameo.LikelihoodName(n), nil
	}
	return "", fmt.Errorf("unknown table %q (want cameo, actor, country, quad or likelihood)", table)
}
