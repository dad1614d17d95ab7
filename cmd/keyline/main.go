package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/keyline/internal"
	"github.com/starford/keyline/internal/compiler"
	"github.com/starford/keyline/internal/docservice"
	"github.com/starford/keyline/internal/track"
	pkgconfig "github.com/starford/keyline/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadOptional(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return cfg, nil
}

func serve(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func serveMCP(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.RunMCP(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("mcp run error: %w", err)
	}
	return nil
}

// compile builds the playback module of one document file without
// touching the library or index.
func compile(_ context.Context, cmd *cli.Command) error {
	src := cmd.Args().First()
	if src == "" {
		return fmt.Errorf("compile: document path is required")
	}
	data, err := os.ReadFile(src)
	if err != nil {
		return fmt.Errorf("compile: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	res, err := docservice.CompileDocument(data, cmd.String("module"), logger)
	if err != nil {
		return fmt.Errorf("compile %s: %w", src, err)
	}
	for _, d := range res.Diagnostics {
		level := slog.LevelWarn
		if d.Severity == track.SeverityError {
			level = slog.LevelError
		}
		logger.Log(context.Background(), level, d.Message,
			slog.String("code", d.Code),
			slog.Int("track", d.Track),
			slog.String("track_name", d.TrackName))
	}
	if cmd.Bool("strict") && res.HasErrors() {
		return fmt.Errorf("compile %s: %d track(s) skipped", src, len(res.Skipped))
	}

	out := cmd.String("out")
	if out == "" || out == "-" {
		_, err = os.Stdout.WriteString(res.Script)
		return err
	}
	if err := os.WriteFile(out, []byte(res.Script), 0o644); err != nil {
		return fmt.Errorf("compile: write %s: %w", out, err)
	}
	logger.Info("module written", slog.String("file", out), slog.Int("size", len(res.Script)))
	return nil
}

func main() {
	configFlag := &cli.StringFlag{
		Name:        "config",
		Aliases:     []string{"c"},
		Usage:       "Path to config file",
		DefaultText: "config/config.yaml",
		Value:       "config/config.yaml",
		Sources:     cli.EnvVars("APP_CONFIG_FILE"),
	}

	cmd := &cli.Command{
		Name:    "keyline",
		Usage:   "Timeline authoring service: edit CSS keyframe documents, preview them and compile playback modules",
		Version: version,
		Action:  serve,
		Flags:   []cli.Flag{configFlag},
		Commands: []*cli.Command{
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and SSE server",
				Action: serve,
			},
			{
				Name:   "mcp",
				Usage:  "Serve the MCP tools over stdio",
				Action: serveMCP,
			},
			{
				Name:      "compile",
				Usage:     "Compile a document file into its JavaScript playback module",
				ArgsUsage: "<document.am.json>",
				Action:    compile,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:    "out",
						Aliases: []string{"o"},
						Usage:   "Output file (stdout when empty)",
					},
					&cli.StringFlag{
						Name:    "module",
						Aliases: []string{"m"},
						Usage:   "Page-script key of the module",
						Value:   compiler.DefaultModuleName,
					},
					&cli.BoolFlag{
						Name:  "strict",
						Usage: "Fail when a track cannot be compiled",
					},
				},
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
