/*
 * Copyright © 2025 Suparena Software Inc., All rights reserved.
 */

// Command docstore manages typed documents in any supported store.
package main

import (
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/suparena/docstore"
	"github.com/suparena/docstore/config"
)

const configKey = "config"

func main() {
	if err := newApp().Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

func newApp() *cli.App {
	info := docstore.GetVersionInfo()
	cli.VersionPrinter = func(c *cli.Context) {
		fmt.Fprintln(c.App.Writer, info)
	}

	idFlags := []cli.Flag{
		&cli.StringFlag{Name: "id", Usage: "Item id", Required: true},
		&cli.StringFlag{Name: "pk", Usage: "Partition key (defaults to the id)"},
	}
	fileFlag := &cli.StringFlag{
		Name:     "file",
		Aliases:  []string{"f"},
		Usage:    "JSON file with the todo item, - for stdin",
		Required: true,
	}

	return &cli.App{
		Name:    "docstore",
		Usage:   "Typed document repository over DynamoDB, BadgerDB, SQL or memory",
		Version: info.Version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a YAML config file",
				EnvVars: []string{"DOCSTORE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "log-level",
				Aliases: []string{"l"},
				Usage:   "Set logging level (debug, info, warn, error); overrides the config file",
			},
		},
		Before: setup,
		Commands: []*cli.Command{
			{
				Name:   "init",
				Usage:  "Create the todo database and container if they are missing",
				Action: initCommand,
			},
			{
				Name:   "get",
				Usage:  "Print one todo item",
				Flags:  idFlags,
				Action: getCommand,
			},
			{
				Name:  "query",
				Usage: "Print the todo items matching every --where term",
				Flags: []cli.Flag{
					&cli.StringSliceFlag{
						Name:    "where",
						Aliases: []string{"w"},
						Usage:   "Filter term such as name=groceries, isComplete=false or name^=gr",
					},
				},
				Action: queryCommand,
			},
			{
				Name:   "create",
				Usage:  "Create a todo item; fails if it already exists",
				Flags:  []cli.Flag{fileFlag},
				Action: createCommand,
			},
			{
				Name:   "upsert",
				Usage:  "Create or overwrite a todo item",
				Flags:  []cli.Flag{fileFlag},
				Action: upsertCommand,
			},
			{
				Name:   "delete",
				Usage:  "Delete a todo item",
				Flags:  idFlags,
				Action: deleteCommand,
			},
			{
				Name:  "demo",
				Usage: "Run the family walkthrough against a scratch database",
				Flags: []cli.Flag{
					&cli.BoolFlag{
						Name:  "keep",
						Usage: "Keep the family database instead of deleting it at the end",
					},
				},
				Action: demoCommand,
			},
			{
				Name:  "bulk-import",
				Usage: "Create generated items concurrently and report throughput",
				Flags: []cli.Flag{
					&cli.IntFlag{
						Name:  "count",
						Usage: "Number of items to create",
						Value: 1000,
					},
					&cli.IntFlag{
						Name:  "concurrency",
						Usage: "Number of concurrent creates (0 for the default)",
					},
				},
				Action: bulkImportCommand,
			},
		},
	}
}

// setup loads the config and installs the logger
func setup(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return err
	}
	if c.IsSet("log-level") {
		cfg.LogLevel = c.String("log-level")
	}
	logger, err := newLogger(c.App.ErrWriter, cfg.LogLevel)
	if err != nil {
		return err
	}
	slog.SetDefault(logger)

	if c.App.Metadata == nil {
		c.App.Metadata = map[string]any{}
	}
	c.App.Metadata[configKey] = cfg
	return nil
}

func newLogger(w io.Writer, levelStr string) (*slog.Logger, error) {
	var level slog.Level
	switch strings.ToLower(levelStr) {
	case "debug":
		level = slog.LevelDebug
	case "info", "":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		return nil, fmt.Errorf("invalid log level %q: must be one of debug, info, warn, error", levelStr)
	}
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
}

func configFrom(c *cli.Context) *config.Config {
	return c.App.Metadata[configKey].(*config.Config)
}
