// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-shiori/go-readability"
	"github.com/poiesic/profmatch"
	"github.com/poiesic/profmatch/answer"
	"github.com/poiesic/profmatch/config"
	"github.com/poiesic/profmatch/core"
	"github.com/poiesic/profmatch/ingestion"
	"github.com/poiesic/profmatch/server"
	"github.com/poiesic/profmatch/storage"
	"github.com/urfave/cli/v2"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newApp().RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:  "profmatch",
		Usage: "Ingest instructor pages and answer questions about them",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error)",
				Value:   "info",
			},
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to the YAML config file",
				Value:   "profmatch.yaml",
			},
			&cli.StringFlag{
				Name:  "env-file",
				Usage: "Dotenv file with API keys",
				Value: ".env",
			},
		},
		Before: func(c *cli.Context) error {
			if err := setupLogger(c); err != nil {
				return err
			}
			return config.LoadDotEnv(c.String("env-file"))
		},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Serve the scrape and chat endpoints",
				Action: serveCommand,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address (overrides server.addr)",
					},
				},
			},
			{
				Name:      "ingest",
				Usage:     "Fetch, extract, embed and index instructor pages",
				ArgsUsage: "URL...",
				Action:    ingestCommand,
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "retries",
						Usage: "Retry transient failures this many times",
						Value: 0,
					},
					&cli.DurationFlag{
						Name:  "retry-delay",
						Usage: "Base delay for exponential backoff",
						Value: 1 * time.Second,
					},
				},
			},
			{
				Name:      "ask",
				Usage:     "Ask a question about indexed instructors",
				ArgsUsage: "QUESTION...",
				Action:    askCommand,
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "raw",
						Usage: "Print the reply without display cleanup",
					},
				},
			},
			{
				Name:      "forget",
				Usage:     "Remove an instructor from the index",
				ArgsUsage: "NAME",
				Action:    forgetCommand,
			},
			{
				Name:      "inspect",
				Usage:     "Show what would be extracted from a page without indexing it",
				ArgsUsage: "URL",
				Action:    inspectCommand,
			},
		},
	}
}

func loadConfig(c *cli.Context) (*config.AppConfig, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}
	return cfg, cfg.Validate()
}

func openApp(c *cli.Context) (*profmatch.App, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return nil, err
	}
	return profmatch.New(c.Context, cfg)
}

func serveCommand(c *cli.Context) error {
	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	cfg := app.Config()
	addr := cfg.Server.Addr
	if c.IsSet("addr") {
		addr = c.String("addr")
	}

	srv, err := server.New(server.Deps{
		Ingester: app,
		Answerer: app.Retrieval(),
		Metrics:  app.Metrics().Handler(),
		Logger:   slog.Default(),
	}, server.Config{
		Addr:              addr,
		IngestRetries:     cfg.Server.IngestRetries,
		RetryDelay:        cfg.Server.RetryDelay,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	})
	if err != nil {
		return err
	}
	return srv.Run(c.Context)
}

func ingestCommand(c *cli.Context) error {
	urls := c.Args().Slice()
	if len(urls) == 0 {
		return errors.New("at least one URL is required")
	}
	retries := c.Int("retries")
	if retries < 0 {
		return errors.New("--retries cannot be negative")
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	var outcomes []ingestion.Outcome
	if retries == 0 && len(urls) > 1 {
		outcomes = app.Ingestion().IngestAll(c.Context, urls)
	} else {
		for _, url := range urls {
			outcome, _ := app.Ingest(c.Context, url, retries+1, c.Duration("retry-delay"))
			outcomes = append(outcomes, *outcome)
		}
	}

	out := c.App.Writer
	failed := 0
	for _, outcome := range outcomes {
		if !outcome.Succeeded() {
			failed++
			hint := "check the service configuration"
			switch {
			case outcome.Err.UserCorrectable():
				hint = "check the URL"
			case outcome.Err.Retryable():
				hint = "try again later"
			}
			fmt.Fprintf(out, "FAIL %s (%s while %s: %v)\n", outcome.URL, hint, outcome.Err.Stage, outcome.Err.Err)
			continue
		}
		fmt.Fprintf(out, "OK   %s -> %q (%s, %s)\n", outcome.URL, outcome.Record.Name, outcome.Record.Department, outcome.Record.RatingRaw)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d submissions failed", failed, len(urls))
	}
	return nil
}

func askCommand(c *cli.Context) error {
	question := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if question == "" {
		return errors.New("a question is required")
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	conv := core.NewConversation(
		core.ConversationMessage{Role: core.RoleAssistant, Content: answer.WelcomeMessage},
	)
	conv.Append(core.ConversationMessage{Role: core.RoleUser, Content: question})

	turn, err := app.Retrieval().Answer(c.Context, conv.Messages())
	if err != nil {
		return err
	}
	slog.Debug("retrieved context", "hits", len(turn.Results))

	content, streamErr := turn.Collect(conv)
	if !c.Bool("raw") {
		content = answer.FormatForDisplay(content)
	}
	fmt.Fprintln(c.App.Writer, content)
	if streamErr != nil {
		fmt.Fprintf(c.App.Writer, "[generation interrupted: %v]\n", streamErr)
		return streamErr
	}
	return nil
}

func forgetCommand(c *cli.Context) error {
	name := strings.TrimSpace(strings.Join(c.Args().Slice(), " "))
	if name == "" {
		return errors.New("an instructor name is required")
	}

	app, err := openApp(c)
	if err != nil {
		return err
	}
	defer app.Close()

	if _, err := app.Gateway().Get(c.Context, name); err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("no instructor named %q is indexed", name)
		}
		return err
	}
	if err := app.Gateway().Delete(c.Context, name); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Removed %q\n", name)
	return nil
}

func inspectCommand(c *cli.Context) error {
	if c.Args().Len() != 1 {
		return errors.New("exactly one URL is required")
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	fetcher, err := profmatch.NewFetcher(cfg, slog.Default())
	if err != nil {
		return err
	}

	doc, err := fetcher.Fetch(c.Context, c.Args().First())
	if err != nil {
		return err
	}

	out := c.App.Writer
	if html, htmlErr := doc.Html(); htmlErr == nil && doc.Url != nil {
		if article, rErr := readability.FromReader(strings.NewReader(html), doc.Url); rErr == nil {
			fmt.Fprintf(out, "Title:   %s\n", strings.TrimSpace(article.Title))
			if excerpt := strings.TrimSpace(article.Excerpt); excerpt != "" {
				fmt.Fprintf(out, "Excerpt: %s\n", excerpt)
			}
		} else {
			slog.Debug("readability failed", "err", rErr)
		}
	}

	record, err := profmatch.NewExtractor(cfg).Extract(doc)
	if err != nil {
		fmt.Fprintf(out, "Extraction failed: %v\n", err)
		return err
	}
	fmt.Fprintf(out, "Name:       %s\n", record.Name)
	fmt.Fprintf(out, "Department: %s\n", record.Department)
	fmt.Fprintf(out, "Rating:     %s\n", record.RatingRaw)
	for i, r := range record.ReviewSnippets {
		fmt.Fprintf(out, "Review %d:   %s\n", i+1, r)
	}
	return nil
}

func setupLogger(c *cli.Context) error {
	levelStr := strings.ToLower(c.String("log-level"))

	var level slog.Level
	switch levelStr {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	return nil
}
