package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/nestedset"
	"github.com/bluesky-social/nestedset/store/gormstore"
	"github.com/bluesky-social/nestedset/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

// flushes the trace exporter, if one was set up
var shutdownTracing func(context.Context) error

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {
	app := cli.App{
		Name:    "nsctl",
		Usage:   "inspect and maintain nested-set trees",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database connection string (sqlite:// or postgres://)",
			Value:   "sqlite://data/nsctl/tree.sqlite",
			EnvVars: []string{"NESTEDSET_DATABASE_URL", "DATABASE_URL"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			Value:   10,
			EnvVars: []string{"NESTEDSET_MAX_DB_CONNECTIONS"},
		},
		&cli.StringFlag{
			Name:    "scope",
			Usage:   `scope attributes, eg "menu_id=1"`,
			EnvVars: []string{"NESTEDSET_SCOPE"},
		},
		&cli.BoolFlag{
			Name:    "soft-delete",
			Usage:   "keep deleted nodes around for restore",
			EnvVars: []string{"NESTEDSET_SOFT_DELETE"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			EnvVars: []string{"NESTEDSET_DB_TRACING"},
		},
		&cli.BoolFlag{
			Name:  "jaeger",
			Usage: "export traces to a local jaeger collector",
		},
		&cli.StringFlag{
			Name:    "log-level",
			EnvVars: []string{"NESTEDSET_LOG_LEVEL", "LOG_LEVEL"},
		},
	}

	app.Before = func(cctx *cli.Context) error {
		if _, err := cliutil.SetupSlog(cliutil.LogOptions{LogLevel: cctx.String("log-level")}); err != nil {
			return err
		}
		shutdown, err := configTracing(cctx.Context, "nsctl", cctx.Bool("jaeger"))
		if err != nil {
			return err
		}
		shutdownTracing = shutdown
		return nil
	}

	app.After = func(cctx *cli.Context) error {
		if shutdownTracing == nil {
			return nil
		}
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return shutdownTracing(ctx)
	}

	app.Commands = []*cli.Command{
		migrateCmd,
		checkCmd,
		monitorCmd,
		fixCmd,
		printCmd,
		importCmd,
		seedCmd,
		appendCmd,
		moveCmd,
		deleteCmd,
		restoreCmd,
		versionCmd,
	}

	return app.Run(args)
}

func openStore(cctx *cli.Context) (*gormstore.GormStore, error) {
	db, err := cliutil.SetupDatabase(cctx.String("database-url"), cliutil.DatabaseOptions{
		MaxConnections: cctx.Int("max-db-connections"),
		Tracing:        cctx.Bool("db-tracing"),
	})
	if err != nil {
		return nil, err
	}
	return gormstore.NewGormStore(db, &gormstore.Options{SoftDelete: cctx.Bool("soft-delete")}), nil
}

func openTree(cctx *cli.Context) (*nestedset.Tree, error) {
	st, err := openStore(cctx)
	if err != nil {
		return nil, err
	}
	scope, err := cliutil.ScopeFlag(cctx, "scope")
	if err != nil {
		return nil, err
	}
	opts := nestedset.DefaultOptions()
	opts.Logger = slog.Default().With("system", "nestedset")
	return nestedset.NewTree(st, scope, opts), nil
}

// nodeArg parses the node id given as the first positional argument.
func nodeArg(cctx *cli.Context, tr *nestedset.Tree) (*models.Node, error) {
	if cctx.Args().Len() < 1 {
		return nil, fmt.Errorf("expected a node id argument")
	}
	return nodeByID(cctx, tr, cctx.Args().First())
}

func nodeByID(cctx *cli.Context, tr *nestedset.Tree, raw string) (*models.Node, error) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid node id %q: %w", raw, err)
	}
	return tr.Get(cctx.Context, models.NodeID(id))
}

var versionCmd = &cli.Command{
	Name:  "version",
	Usage: "print version information",
	Action: func(cctx *cli.Context) error {
		fmt.Println(versioninfo.Short())
		return nil
	},
}
