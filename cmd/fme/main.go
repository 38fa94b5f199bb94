package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/fme/internal"
	"github.com/starford/fme/internal/transform"
	pkgconfig "github.com/starford/fme/pkg/config"
)

var version = "dev"

// loadConfig layers the config file, then any flags given on the command line.
func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if _, err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if cmd.IsSet("journal") {
		cfg.Journal.Path = cmd.String("journal")
	}
	if cmd.IsSet("log-level") {
		if err := cfg.App.LogLevel.UnmarshalText([]byte(cmd.String("log-level"))); err != nil {
			return nil, fmt.Errorf("invalid log level: %w", err)
		}
	}
	if cmd.IsSet("dir") {
		cfg.Notes.Dir = cmd.String("dir")
	}
	if cmd.IsSet("recursive") {
		cfg.Notes.Recursive = cmd.Bool("recursive")
	}
	if cmd.IsSet("dry-run") {
		cfg.Batch.DryRun = cmd.Bool("dry-run")
	}
	if cmd.IsSet("workers") {
		cfg.Batch.Workers = int(cmd.Int("workers"))
	}
	if cmd.IsSet("port") {
		cfg.App.HTTP.Port = int(cmd.Int("port"))
	}

	if err := pkgconfig.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func baseOptions(cfg *internal.Config) []internal.Option {
	return []internal.Option{
		internal.WithConfig(cfg),
		internal.WithVersion(version),
	}
}

func runOperation(name string) cli.ActionFunc {
	return func(ctx context.Context, cmd *cli.Command) error {
		op, err := transform.New(name, cmd.Args().Slice())
		if err != nil {
			return err
		}
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		return internal.Apply(ctx, op, cmd.Bool("watch"), baseOptions(cfg)...)
	}
}

func runHistory(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.History(ctx, int(cmd.Int("limit")), baseOptions(cfg)...)
}

func runUndo(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() > 1 {
		return fmt.Errorf("undo takes at most one run id")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.Undo(ctx, cmd.Args().First(), baseOptions(cfg)...)
}

func runServe(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	opts := baseOptions(cfg)
	if fields := strings.Fields(cmd.String("watch")); len(fields) > 0 {
		op, err := transform.New(fields[0], fields[1:])
		if err != nil {
			return fmt.Errorf("--watch: %w", err)
		}
		opts = append(opts, internal.WithWatchOperation(op))
	}
	if err := internal.Serve(ctx, opts...); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func runMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return internal.ServeMCP(ctx, baseOptions(cfg)...)
}

// dirFlags selects the note directory. Commands that rewrite notes require
// --dir; the servers fall back to notes.dir from the config file.
func dirFlags(required bool) []cli.Flag {
	usage := "Directory containing the notes"
	if !required {
		usage += " (default: notes.dir from the config file)"
	}
	return []cli.Flag{
		&cli.StringFlag{
			Name:     "dir",
			Aliases:  []string{"d"},
			Usage:    usage,
			Required: required,
		},
		&cli.BoolFlag{
			Name:    "recursive",
			Aliases: []string{"r"},
			Usage:   "Include subdirectories",
		},
	}
}

func operationFlags() []cli.Flag {
	return append(dirFlags(true),
		&cli.BoolFlag{
			Name:  "dry-run",
			Usage: "Report what would change without writing",
		},
		&cli.IntFlag{
			Name:  "workers",
			Usage: fmt.Sprintf("Number of files processed concurrently (1-%d)", internal.MaxWorkers),
			Value: 1,
		},
		&cli.BoolFlag{
			Name:  "watch",
			Usage: "Keep running and re-apply the operation to notes as they change",
		},
	)
}

func operationCommands() []*cli.Command {
	var cmds []*cli.Command
	for _, info := range transform.Describe() {
		cmds = append(cmds, &cli.Command{
			Name:      info.Name,
			Usage:     info.Summary,
			ArgsUsage: info.ArgsUsage,
			Flags:     operationFlags(),
			Action:    runOperation(info.Name),
		})
	}
	return cmds
}

func newCommand() *cli.Command {
	return &cli.Command{
		Name:    "fme",
		Usage:   "Edit the YAML frontmatter tags, aliases and ids of Markdown notes in bulk",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (optional)",
				Value:   "fme.yaml",
				Sources: cli.EnvVars("FME_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "journal",
				Usage:   "Path to the SQLite change journal; empty disables history and undo",
				Sources: cli.EnvVars("FME_JOURNAL"),
			},
			&cli.StringFlag{
				Name:  "log-level",
				Usage: "Log level (debug, info, warn, error)",
			},
		},
		Commands: append(operationCommands(),
			&cli.Command{
				Name:   "history",
				Usage:  "List recent runs recorded in the journal",
				Action: runHistory,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Aliases: []string{"n"}, Usage: "Number of runs to show", Value: 20},
				},
			},
			&cli.Command{
				Name:      "undo",
				Usage:     "Restore the files changed by a run (default: the latest run)",
				ArgsUsage: "[run-id]",
				Action:    runUndo,
			},
			&cli.Command{
				Name:   "serve",
				Usage:  "Serve the HTTP API for a note directory",
				Action: runServe,
				Flags: append(dirFlags(false),
					&cli.IntFlag{Name: "port", Aliases: []string{"p"}, Usage: "HTTP port", Value: 8080},
					&cli.StringFlag{Name: "watch", Usage: `Operation re-applied to changed notes, e.g. "add inbox"`},
				),
			},
			&cli.Command{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdin/stdout",
				Action: runMCP,
				Flags:  dirFlags(false),
			},
		),
	}
}

func main() {
	if err := newCommand().Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
