package main

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/batfish/batfish-sub054/internal/config"
	"github.com/batfish/batfish-sub054/internal/format"
	"github.com/batfish/batfish-sub054/internal/plugins/builtin"
)

func runDetect(w io.Writer, cfg *config.Config, paths []string) error {
	ps := cfg.ParseSettings()
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		f := format.Detect(string(data), ps.IgnoreFilesWithStrings, ps.FormatOverride)
		note := ""
		switch {
		case format.IsUnimplemented(f):
			note = "unsupported"
		case f == format.Unknown:
			note = "unknown"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", path, f, note)
	}
	return tw.Flush()
}

func runFormats(w io.Writer) error {
	registry, err := builtin.NewRegistry()
	if err != nil {
		return err
	}
	registered := make(map[format.Format]bool)
	for _, f := range registry.Formats() {
		registered[f] = true
	}

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tSTATUS\tGRAMMAR")
	for _, f := range format.All() {
		status, grammar := "supported", "-"
		switch {
		case format.IsSentinel(f):
			continue
		case format.IsUnimplemented(f):
			status = "unimplemented"
		case registered[f]:
			grammar = string(f)
		default:
			if flat, ok := format.FlattenedAs(f); ok && registered[flat] {
				grammar = string(flat) + " (flattened)"
			}
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\n", f, status, grammar)
	}
	return tw.Flush()
}
