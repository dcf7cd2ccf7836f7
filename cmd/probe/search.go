package main

import (
	"context"
	"fmt"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/probelabs/probe/internal/assemble"
	"github.com/probelabs/probe/internal/config"
	"github.com/probelabs/probe/internal/format"
	"github.com/probelabs/probe/internal/lspclient"
	"github.com/probelabs/probe/internal/pipeline"
)

func searchCommand() *cli.Command {
	return &cli.Command{
		Name:      "search",
		Usage:     "search a repository for code matching a query",
		ArgsUsage: "<query> [path]",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "format", Value: format.Terminal, Usage: "terminal|plain|markdown|json|xml|outline"},
			&cli.BoolFlag{Name: "files-only", Usage: "print only matching file paths"},
			&cli.BoolFlag{Name: "exclude-filenames", Usage: "omit filename headers from output"},
			&cli.BoolFlag{Name: "allow-tests", Usage: "include test files and blocks"},
			&cli.BoolFlag{Name: "exact", Usage: "disable stemming and compound-word splitting"},
			&cli.BoolFlag{Name: "any-term", Usage: "implicit OR between bare terms"},
			&cli.BoolFlag{Name: "frequency", Usage: "rank with the tfidf reranker instead of the configured one"},
			&cli.BoolFlag{Name: "no-merge", Usage: "disable adjacent-block merging"},
			&cli.IntFlag{Name: "merge-threshold", Usage: "line-gap threshold for block merging"},
			&cli.IntFlag{Name: "max-results", Usage: "cap the number of emitted blocks"},
			&cli.IntFlag{Name: "max-bytes", Usage: "cap total emitted bytes"},
			&cli.IntFlag{Name: "max-tokens", Usage: "cap total emitted tokens (bytes/4, rounded up)"},
			&cli.StringFlag{Name: "reranker", Usage: "tfidf|bm25|hybrid"},
			&cli.StringFlag{Name: "session", Usage: "session memory id, stable across invocations"},
			&cli.BoolFlag{Name: "strict-elastic-syntax", Usage: "reject prose queries that aren't valid boolean syntax"},
			&cli.BoolFlag{Name: "no-gitignore", Usage: "don't honor .gitignore"},
			&cli.StringSliceFlag{Name: "ignore", Usage: "additional ignore glob (repeatable)"},
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "config file path"},
			&cli.BoolFlag{Name: "enrich", Usage: "attach call-hierarchy info via the running daemon"},
			&cli.BoolFlag{Name: "include-stdlib", Usage: "include standard-library callers/callees in enrichment"},
		},
		Action: runSearch,
	}
}

func runSearch(c *cli.Context) error {
	if c.NArg() < 1 {
		return wrapExit(fmt.Errorf("usage: probe search <query> [path]"))
	}
	query := c.Args().Get(0)
	root := "."
	if c.NArg() >= 2 {
		root = c.Args().Get(1)
	}

	outputFormat := c.String("format")
	if !format.Valid(outputFormat) {
		return wrapExit(fmt.Errorf("unknown format %q", outputFormat))
	}

	cfg, err := loadConfig(c, root)
	if err != nil {
		return wrapExit(err)
	}

	reranker := c.String("reranker")
	if c.Bool("frequency") {
		reranker = "tfidf"
	}

	var client *lspclient.Client
	if c.Bool("enrich") {
		client, err = lspclient.Dial(cfg.Daemon.SocketPath, 2*time.Second)
		if err != nil {
			client = nil // enrichment degrades gracefully per §4.9 and §7 LspTimeout/DaemonNotRunning
		} else {
			defer client.Close()
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	sessionID := c.String("session")
	var store *sessionStore
	var mem *assemble.SessionMemory
	if sessionID != "" {
		store = newSessionStore(sessionID)
		mem = store.Load()
	}

	result, err := pipeline.Search(ctx, pipeline.SearchRequest{
		Query:          query,
		Root:           root,
		Cfg:            cfg,
		AllowTests:     c.Bool("allow-tests"),
		Exact:          c.Bool("exact"),
		AnyTerm:        c.Bool("any-term") || cfg.Search.AnyTerm,
		StrictSyntax:   c.Bool("strict-elastic-syntax"),
		NoMerge:        c.Bool("no-merge"),
		MergeThreshold: firstNonZero(c.Int("merge-threshold"), cfg.Search.MergeThreshold),
		NoGitignore:    c.Bool("no-gitignore"),
		ExtraIgnores:   c.StringSlice("ignore"),
		MaxResults:     firstNonZero(c.Int("max-results"), cfg.Search.MaxResults),
		MaxBytes:       firstNonZero(c.Int("max-bytes"), cfg.Search.MaxBytes),
		MaxTokens:      firstNonZero(c.Int("max-tokens"), cfg.Search.MaxTokens),
		Reranker:       reranker,
		Session:        mem,
		LspClient:      client,
		IncludeStdlib:  c.Bool("include-stdlib"),
	})
	if err != nil {
		return wrapExit(err)
	}

	if store != nil {
		if err := store.Save(mem); err != nil {
			fmt.Fprintf(c.App.ErrWriter, "warning: failed to persist session %q: %v\n", sessionID, err)
		}
	}

	out, err := format.Render(result.Blocks, outputFormat, c.Bool("files-only"), c.Bool("exclude-filenames"))
	if err != nil {
		return wrapExit(err)
	}
	fmt.Println(out)
	return nil
}

func firstNonZero(flagVal, cfgVal int) int {
	if flagVal != 0 {
		return flagVal
	}
	return cfgVal
}

func loadConfig(c *cli.Context, root string) (*config.Config, error) {
	configPath := c.String("config")
	if configPath == "" {
		return config.LoadWithRoot("", root)
	}
	return config.LoadWithRoot(configPath, root)
}
