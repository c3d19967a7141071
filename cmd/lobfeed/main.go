// Command lobfeed replays a single-instrument order feed file through the
// book engine, printing the live per-message output (mid prices, trade
// aggregates, periodic book snapshots) and a final error tally.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/orderflow/lobfeed/engine"
	"github.com/orderflow/lobfeed/feed"
)

func main() {
	app := &cli.App{
		Name:      "lobfeed",
		Usage:     "replay a limit order feed against a single-instrument book",
		ArgsUsage: "<file> [silent]",
		Action:    run,
	}
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(c *cli.Context) error {
	path := c.Args().Get(0)
	if path == "" {
		return cli.Exit("you have to supply a valid filename", 1)
	}
	silent := c.Args().Get(1) == "silent"

	f, err := os.Open(path)
	if err != nil {
		return cli.Exit(fmt.Sprintf("problems finding/opening file [%s]: %v", path, err), 1)
	}
	defer f.Close()

	var out io.Writer = os.Stdout
	if silent {
		out = io.Discard
	}

	zl, err := zap.NewProduction()
	if err != nil {
		zl = zap.NewNop()
	}
	defer zl.Sync()
	engine.SetLogger(zl.Sugar())

	book := engine.NewBook()
	driver := feed.NewDriver(book, out, zl.Sugar())
	driver.Source = path
	if err := driver.Run(f); err != nil {
		return cli.Exit(fmt.Sprintf("error reading [%s]: %v", path, err), 1)
	}

	driver.WriteErrorSummary(os.Stdout)
	if !book.Errors.Empty() {
		os.Exit(1)
	}
	return nil
}
