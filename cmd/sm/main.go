package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"

	_ "github.com/joho/godotenv/autoload"
	"github.com/urfave/cli/v3"

	"github.com/starford/sm/internal"
	"github.com/starford/sm/internal/mcpserver"
	"github.com/starford/sm/internal/models"
	"github.com/starford/sm/internal/resolve"
	pkgconfig "github.com/starford/sm/pkg/config"
)

var version = "dev"

func loadConfig(cmd *cli.Command) (*internal.Config, error) {
	cfg := internal.NewDefaultConfig()
	if err := pkgconfig.LoadIfExists(cmd.String("config"), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if ws := cmd.String("workspace"); ws != "" {
		cfg.Workspace.Root = ws
	}
	return cfg, nil
}

// openStack opens the workspace with logs on stderr, keeping stdout for command output.
func openStack(cmd *cli.Command) (*internal.Stack, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	return internal.Open(cfg, internal.NewLogger(cfg.App.LogLevel, os.Stderr))
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func resolveAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return errors.New("usage: sm resolve <identifier> [module] --from <file>")
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	from, err := filepath.Abs(cmd.String("from"))
	if err != nil {
		return err
	}

	logger := internal.NewLogger(cfg.App.LogLevel, os.Stderr)
	res, err := resolve.Resolve(ctx, from, cmd.Args().Get(0), cmd.Args().Get(1),
		resolve.WithLogger(logger),
		resolve.WithModuleOptions(cfg.Resolve.ModuleOptions()))
	if err != nil {
		var nf *resolve.NotFoundError
		if errors.As(err, &nf) {
			for _, p := range nf.Probed {
				logger.Debug("probed", slog.String("path", p))
			}
		}
		return err
	}
	return writeJSON(os.Stdout, res)
}

func packagesAction(ctx context.Context, cmd *cli.Command) error {
	stack, err := openStack(cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	if key := cmd.String("key"); key != "" {
		items, err := stack.Service.Installs(ctx, key)
		if err != nil {
			return err
		}
		for _, it := range items {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Area, it.Path, it.Version)
		}
		return nil
	}

	area := models.Area(cmd.String("area"))
	if area != "" && !area.Valid() {
		return fmt.Errorf("unknown area %q (want flat or deps)", area)
	}
	items, total, err := stack.Service.ListPackages(ctx, int(cmd.Int("limit")), 0, area)
	if err != nil {
		return err
	}
	for _, it := range items {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", it.Area, it.Path, it.Version)
	}
	if total > len(items) {
		fmt.Fprintf(tw, "... %d more\n", total-len(items))
	}
	return nil
}

func searchAction(ctx context.Context, cmd *cli.Command) error {
	if cmd.Args().Len() < 1 {
		return errors.New("usage: sm search <query>")
	}
	stack, err := openStack(cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	results, err := stack.Service.Search(ctx, cmd.Args().Get(0), int(cmd.Int("limit")))
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	defer tw.Flush()
	for _, r := range results {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", r.Path, r.Version, r.Snippet)
	}
	return nil
}

func serveAction(ctx context.Context, cmd *cli.Command) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if err := internal.Run(ctx, internal.WithConfig(cfg), internal.WithVersion(version)); err != nil {
		return fmt.Errorf("app run error: %w", err)
	}
	return nil
}

func mcpAction(ctx context.Context, cmd *cli.Command) error {
	stack, err := openStack(cmd)
	if err != nil {
		return err
	}
	defer stack.Close()

	stack.StartWatch(ctx, nil)
	return mcpserver.New(stack.Service, version).ServeStdio()
}

func main() {
	cmd := &cli.Command{
		Name:    "sm",
		Usage:   "Resolve installed packages and modules across node_modules and .deps install areas",
		Version: version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "config",
				Aliases:     []string{"c"},
				Usage:       "Path to config file",
				DefaultText: "config/config.yaml",
				Value:       "config/config.yaml",
				Sources:     cli.EnvVars("APP_CONFIG_FILE"),
			},
			&cli.StringFlag{
				Name:    "workspace",
				Aliases: []string{"w"},
				Usage:   "Workspace root (overrides workspace.root)",
				Sources: cli.EnvVars("SM_WORKSPACE"),
			},
		},
		Commands: []*cli.Command{
			{
				Name:      "resolve",
				Usage:     "Resolve a package identifier, and optionally a module, from a calling file",
				ArgsUsage: "<identifier> [module]",
				Action:    resolveAction,
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "from",
						Aliases:  []string{"f"},
						Usage:    "Calling file",
						Required: true,
					},
				},
			},
			{
				Name:   "packages",
				Usage:  "Sync the inventory and list installed packages",
				Action: packagesAction,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "area", Usage: "Install area: flat or deps"},
					&cli.StringFlag{Name: "key", Usage: "List every install of one canonical key"},
					&cli.IntFlag{Name: "limit", Value: 50, Usage: "Maximum rows"},
				},
			},
			{
				Name:      "search",
				Usage:     "Search installed packages by name, description and keywords",
				ArgsUsage: "<query>",
				Action:    searchAction,
				Flags: []cli.Flag{
					&cli.IntFlag{Name: "limit", Value: 20, Usage: "Maximum results"},
				},
			},
			{
				Name:   "serve",
				Usage:  "Run the HTTP API and the workspace watcher",
				Action: serveAction,
			},
			{
				Name:   "mcp",
				Usage:  "Run the MCP server on stdio",
				Action: mcpAction,
			},
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		slog.Error("application error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}
