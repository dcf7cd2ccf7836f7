package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/probelabs/probe/internal/extractref"
	"github.com/probelabs/probe/internal/format"
	"github.com/probelabs/probe/internal/pipeline"
	"github.com/probelabs/probe/internal/syntax"
	"github.com/probelabs/probe/internal/types"
)

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "extract code blocks named by file references",
		ArgsUsage: "<fileref...>",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: format.Plain, Usage: "terminal|plain|markdown|json|xml|outline"},
			&cli.IntFlag{Name: "context", Usage: "fallback context-window size in lines", Value: 10},
			&cli.BoolFlag{Name: "allow-tests", Usage: "include test files and blocks"},
			&cli.BoolFlag{Name: "symbols", Usage: "extract every top-level symbol from each file"},
			&cli.StringFlag{Name: "root", Usage: "project root filerefs are relative to"},
		},
		Action: runExtract,
	}
}

func debugEnabled() bool {
	return os.Getenv("PROBE_DEBUG") == "1" || os.Getenv("DEBUG") == "1"
}

func runExtract(c *cli.Context) error {
	debug := debugEnabled()
	outputFormat := c.String("format")
	if !format.Valid(outputFormat) {
		return wrapExit(fmt.Errorf("unknown format %q", outputFormat))
	}

	if debug {
		fmt.Fprintln(os.Stderr, "\n[DEBUG] ===== Extract Command Started =====")
		fmt.Fprintf(os.Stderr, "[DEBUG] Files to process: %v\n", c.Args().Slice())
		fmt.Fprintf(os.Stderr, "[DEBUG] Allow tests: %v\n", c.Bool("allow-tests"))
		fmt.Fprintf(os.Stderr, "[DEBUG] Context lines: %d\n", c.Int("context"))
		fmt.Fprintf(os.Stderr, "[DEBUG] Output format: %s\n", outputFormat)
	}

	var refs []extractref.Ref
	if c.NArg() == 0 {
		data, err := io.ReadAll(os.Stdin)
		if err != nil {
			return wrapExit(err)
		}
		if debug {
			fmt.Fprintf(os.Stderr, "[DEBUG] Reading from stdin, content length: %d bytes\n", len(data))
		}
		refs = extractref.ExtractFromText(string(data))
		if debug {
			fmt.Fprintf(os.Stderr, "[DEBUG] Extracted %d file paths from stdin\n", len(refs))
			for _, r := range refs {
				fmt.Fprintf(os.Stderr, "[DEBUG]   - %q (lines: %d-%d, symbol: %q)\n", r.Path, r.StartLine, r.EndLine, r.Symbol)
			}
		}
	} else {
		if debug {
			fmt.Fprintln(os.Stderr, "[DEBUG] Parsing command-line arguments")
		}
		for _, arg := range c.Args().Slice() {
			if debug {
				fmt.Fprintf(os.Stderr, "[DEBUG] Parsing file argument: %s\n", arg)
			}
			ref := extractref.Parse(arg)
			if debug {
				fmt.Fprintf(os.Stderr, "[DEBUG]   -> path: %q, lines: %d-%d, symbol: %q\n", ref.Path, ref.StartLine, ref.EndLine, ref.Symbol)
			}
			refs = append(refs, ref)
		}
	}

	if len(refs) == 0 {
		fmt.Println("No results found")
		return nil
	}

	registry := syntax.NewRegistry()
	var blocks []*types.Block
	var failures []error

	for _, ref := range refs {
		result, err := pipeline.Extract(registry, pipeline.ExtractRequest{
			Root:         c.String("root"),
			Ref:          ref,
			ContextLines: c.Int("context"),
			AllSymbols:   c.Bool("symbols"),
		})
		if err != nil {
			failures = append(failures, err)
			continue
		}
		blocks = append(blocks, result...)
	}

	if len(blocks) == 0 {
		for _, f := range failures {
			fmt.Fprintln(os.Stderr, f)
		}
		if len(failures) > 0 {
			return wrapExit(failures[0])
		}
		fmt.Println("No results found")
		return nil
	}

	out, err := format.Render(blocks, outputFormat, false, false)
	if err != nil {
		return wrapExit(err)
	}
	fmt.Println(out)

	for _, f := range failures {
		fmt.Fprintln(os.Stderr, f)
	}
	return nil
}
