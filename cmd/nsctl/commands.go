package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/bluesky-social/nestedset/fakedata"
	"github.com/bluesky-social/nestedset/internal/ticker"
	"github.com/bluesky-social/nestedset/models"
	"github.com/bluesky-social/nestedset/mutation"
	"github.com/bluesky-social/nestedset/pkg/metrics"

	cli "github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

var migrateCmd = &cli.Command{
	Name:  "migrate",
	Usage: "create or update the tree_nodes table",
	Action: func(cctx *cli.Context) error {
		st, err := openStore(cctx)
		if err != nil {
			return err
		}
		return st.Migrate(cctx.Context)
	},
}

var checkCmd = &cli.Command{
	Name:  "check",
	Usage: "count structural errors in the tree",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "strict",
			Usage: "exit with an error when the tree is broken",
		},
	},
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		r, err := tr.CountErrors(cctx.Context)
		if err != nil {
			return err
		}
		b, err := json.MarshalIndent(r, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(b))
		if cctx.Bool("strict") {
			return r.Err()
		}
		return nil
	},
}

var monitorCmd = &cli.Command{
	Name:  "monitor",
	Usage: "check the tree periodically and serve the results as prometheus metrics",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "metrics-listen",
			Value:   ":2471",
			EnvVars: []string{"NESTEDSET_METRICS_LISTEN"},
		},
		&cli.DurationFlag{
			Name:  "interval",
			Value: time.Minute,
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(cctx.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()

		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		logger := slog.Default().With("system", "monitor")

		eg, ctx := errgroup.WithContext(ctx)
		eg.Go(func() error {
			return metrics.RunServer(ctx, cctx.String("metrics-listen"))
		})
		eg.Go(func() error {
			return ticker.Every(ctx, cctx.Duration("interval"), logger, func(ctx context.Context) error {
				r, err := tr.CountErrors(ctx)
				if err != nil {
					return err
				}
				logger.Info("consistency check", "errors", r.Total(), "broken", r.Broken())
				return nil
			})
		})
		return eg.Wait()
	},
}

var fixCmd = &cli.Command{
	Name:      "fix",
	Usage:     "recompute boundaries from parent links",
	ArgsUsage: "[<node id>]",
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}

		var fixed int64
		if cctx.Args().Len() > 0 {
			root, err := nodeArg(cctx, tr)
			if err != nil {
				return err
			}
			fixed, err = tr.FixSubtree(cctx.Context, root)
			if err != nil {
				return err
			}
		} else {
			fixed, err = tr.FixTree(cctx.Context)
			if err != nil {
				return err
			}
		}
		fmt.Printf("fixed %d rows\n", fixed)
		return nil
	},
}

var printCmd = &cli.Command{
	Name:      "print",
	Usage:     "print the tree, or the subtree under a node",
	ArgsUsage: "[<node id>]",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "bounds",
			Usage: "show lft and rgt of every node",
		},
	},
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}

		var roots []*models.Node
		if cctx.Args().Len() > 0 {
			n, err := nodeArg(cctx, tr)
			if err != nil {
				return err
			}
			sub, err := tr.Subtree(cctx.Context, n.ID)
			if err != nil {
				return err
			}
			roots = []*models.Node{sub}
		} else {
			roots, err = tr.ToTree(cctx.Context, nil)
			if err != nil {
				return err
			}
		}

		fmt.Println(renderTree(roots, cctx.Bool("bounds")))
		return nil
	},
}

var importCmd = &cli.Command{
	Name:      "import",
	Usage:     "rebuild the tree from a JSON forest description",
	ArgsUsage: "<file>",
	Flags: []cli.Flag{
		&cli.Int64Flag{
			Name:  "node",
			Usage: "rebuild only the subtree under this node",
		},
		&cli.BoolFlag{
			Name:  "delete-missing",
			Usage: "delete existing nodes that the description leaves out",
		},
	},
	Action: func(cctx *cli.Context) error {
		if cctx.Args().Len() < 1 {
			return fmt.Errorf("expected a file argument")
		}
		items, err := fakedata.ReadItems(cctx.Args().First())
		if err != nil {
			return err
		}
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}

		var fixed int64
		if id := cctx.Int64("node"); id != 0 {
			root, err := tr.Get(cctx.Context, models.NodeID(id))
			if err != nil {
				return err
			}
			fixed, err = tr.RebuildSubtree(cctx.Context, root, items, cctx.Bool("delete-missing"))
			if err != nil {
				return err
			}
		} else {
			fixed, err = tr.RebuildTree(cctx.Context, items, cctx.Bool("delete-missing"))
			if err != nil {
				return err
			}
		}
		fmt.Printf("imported %d items, %d rows renumbered\n", models.CountItems(items), fixed)
		return nil
	},
}

var seedCmd = &cli.Command{
	Name:  "seed",
	Usage: "fill the tree with sample data",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "categories",
			Usage: "load the fixed product catalog instead of a random forest",
		},
		&cli.IntFlag{
			Name:  "roots",
			Value: fakedata.DefaultForestParams().Roots,
		},
		&cli.IntFlag{
			Name:  "depth",
			Value: fakedata.DefaultForestParams().MaxDepth,
		},
		&cli.IntFlag{
			Name:  "fanout",
			Value: fakedata.DefaultForestParams().MaxFanout,
		},
		&cli.Int64Flag{
			Name:  "seed",
			Value: time.Now().UnixNano(),
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		if cctx.Bool("categories") {
			st, err := openStore(cctx)
			if err != nil {
				return err
			}
			return fakedata.Load(ctx, st, fakedata.Categories())
		}

		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		items := fakedata.RandomForest(fakedata.ForestParams{
			Roots:     cctx.Int("roots"),
			MaxDepth:  cctx.Int("depth"),
			MaxFanout: cctx.Int("fanout"),
			Seed:      cctx.Int64("seed"),
		})
		for _, it := range items {
			if _, err := tr.Create(ctx, it, nil); err != nil {
				return err
			}
		}
		fmt.Printf("created %d nodes\n", models.CountItems(items))
		return nil
	},
}

var appendCmd = &cli.Command{
	Name:  "append",
	Usage: "create a node as the last child of a parent, or as a new root",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:     "name",
			Required: true,
		},
		&cli.Int64Flag{
			Name: "parent",
		},
	},
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		var parent *models.Node
		if id := cctx.Int64("parent"); id != 0 {
			parent, err = tr.Get(cctx.Context, models.NodeID(id))
			if err != nil {
				return err
			}
		}
		n, err := tr.Create(cctx.Context, models.Item{Name: cctx.String("name")}, parent)
		if err != nil {
			return err
		}
		fmt.Printf("created node %d at %s\n", n.ID, n.Interval())
		return nil
	},
}

var moveCmd = &cli.Command{
	Name:      "move",
	Usage:     "move a node and its subtree",
	ArgsUsage: "<node id>",
	Flags: []cli.Flag{
		&cli.Int64Flag{Name: "into", Usage: "make it the last child of this node"},
		&cli.Int64Flag{Name: "prepend-to", Usage: "make it the first child of this node"},
		&cli.Int64Flag{Name: "before", Usage: "place it before this sibling"},
		&cli.Int64Flag{Name: "after", Usage: "place it after this sibling"},
		&cli.BoolFlag{Name: "root", Usage: "make it the last root"},
		&cli.IntFlag{Name: "up", Usage: "move it up this many siblings"},
		&cli.IntFlag{Name: "down", Usage: "move it down this many siblings"},
	},
	Action: func(cctx *cli.Context) error {
		ctx := cctx.Context
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		n, err := nodeArg(cctx, tr)
		if err != nil {
			return err
		}

		if up, down := cctx.Int("up"), cctx.Int("down"); up > 0 || down > 0 {
			var moved bool
			if up > 0 {
				moved, err = tr.Up(ctx, n, up)
			} else {
				moved, err = tr.Down(ctx, n, down)
			}
			if err != nil {
				return err
			}
			fmt.Printf("moved=%t now at %s\n", moved, n.Interval())
			return nil
		}

		target := func(flag string) (*models.Node, error) {
			return tr.Get(ctx, models.NodeID(cctx.Int64(flag)))
		}

		var in mutation.Intent
		switch {
		case cctx.Bool("root"):
			in = mutation.AsRoot()
		case cctx.IsSet("into"):
			tg, err := target("into")
			if err != nil {
				return err
			}
			in = mutation.AppendTo(tg)
		case cctx.IsSet("prepend-to"):
			tg, err := target("prepend-to")
			if err != nil {
				return err
			}
			in = mutation.PrependTo(tg)
		case cctx.IsSet("before"):
			tg, err := target("before")
			if err != nil {
				return err
			}
			in = mutation.Before(tg)
		case cctx.IsSet("after"):
			tg, err := target("after")
			if err != nil {
				return err
			}
			in = mutation.After(tg)
		default:
			return fmt.Errorf("one of --into, --prepend-to, --before, --after, --root, --up or --down is required")
		}

		c, err := tr.Plan(n, in)
		if err != nil {
			return err
		}
		res, err := tr.Apply(ctx, c)
		if err != nil {
			return err
		}
		fmt.Printf("moved=%t shifted=%d now at %s\n", res.Moved, res.Shifted, n.Interval())
		return nil
	},
}

var deleteCmd = &cli.Command{
	Name:      "delete",
	Usage:     "delete a node and its subtree",
	ArgsUsage: "<node id>",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "force",
			Usage: "remove rows even when soft delete is enabled",
		},
	},
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		n, err := nodeArg(cctx, tr)
		if err != nil {
			return err
		}

		del := tr.Delete
		if cctx.Bool("force") {
			del = tr.ForceDelete
		}
		cnt, err := del(cctx.Context, n)
		if err != nil {
			return err
		}
		fmt.Printf("deleted %d rows\n", cnt)
		return nil
	},
}

var restoreCmd = &cli.Command{
	Name:      "restore",
	Usage:     "restore a soft-deleted node and the descendants deleted with it",
	ArgsUsage: "<node id>",
	Action: func(cctx *cli.Context) error {
		tr, err := openTree(cctx)
		if err != nil {
			return err
		}
		// Get skips trashed rows
		n := &models.Node{}
		if cctx.Args().Len() < 1 {
			return fmt.Errorf("expected a node id argument")
		}
		if _, err := fmt.Sscan(cctx.Args().First(), &n.ID); err != nil {
			return fmt.Errorf("invalid node id %q: %w", cctx.Args().First(), err)
		}
		cnt, err := tr.Restore(cctx.Context, n)
		if err != nil {
			return err
		}
		fmt.Printf("restored %d rows\n", cnt)
		return nil
	},
}
