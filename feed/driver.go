// Package feed drives a book engine from a line-oriented order feed: read a
// line, parse it, apply it, emit the mid, and periodically snapshot the
// book — the same loop shape as the original single-pass file reader, with
// a structured summary logged at the end of the run.
package feed

import (
	"bufio"
	"fmt"
	"io"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/orderflow/lobfeed/engine"
	"github.com/orderflow/lobfeed/parser"
)

// defaultSnapshotEvery is N from "every N=10 messages, snapshot the book".
const defaultSnapshotEvery = 10

// Driver owns one book and replays a feed against it, writing the live
// per-message output to Out. Out is the only thing the "silent" CLI flag
// redirects — the book keeps computing and counting errors either way.
type Driver struct {
	Book   *engine.Book
	Out    io.Writer
	logger *zap.SugaredLogger

	// Source is an optional label for the run-complete log line — the CLI
	// sets it to the feed file's path. Purely informational.
	Source string

	// SnapshotEvery overrides the book-snapshot cadence. Zero means
	// defaultSnapshotEvery; exposed for profiling runs that want snapshots
	// less often (a cadence larger than the feed leaves only the
	// end-of-input snapshot, which Run always writes).
	SnapshotEvery uint32

	messages uint32
}

// NewDriver builds a driver over book, writing live output to out. A nil
// logger is replaced with a no-op one.
func NewDriver(book *engine.Book, out io.Writer, logger *zap.SugaredLogger) *Driver {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	return &Driver{Book: book, Out: out, logger: logger}
}

func (d *Driver) snapshotEvery() uint32 {
	if d.SnapshotEvery == 0 {
		return defaultSnapshotEvery
	}
	return d.SnapshotEvery
}

// Run replays every line of r against the driver's book, in order, until r
// is exhausted. It returns only a scan error — malformed or out-of-bounds
// feed lines are tallied on Book.Errors, never returned as an error.
func (d *Driver) Run(r io.Reader) error {
	runID := uuid.New().String()
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		d.processLine(scanner.Text())
		d.messages++
		if d.messages%d.snapshotEvery() == 0 {
			d.Book.WriteSnapshot(d.Out)
		}
	}
	d.Book.WriteSnapshot(d.Out)
	fmt.Fprintln(d.Out)

	err := scanner.Err()
	d.logger.Infow("feed run complete",
		"run_id", runID,
		"source", d.Source,
		"messages", d.messages,
		"clean", d.Book.Errors.Empty(),
		"scan_error", err,
	)
	return err
}

// processLine parses one line, dispatches it to the book if well-formed,
// and emits the resulting mid (or NAN) — in that order, for every line,
// regardless of classification.
func (d *Driver) processLine(line string) {
	msg, class := parser.Parse(line)
	switch class {
	case parser.Corrupted:
		d.Book.Errors.Corrupted++
	case parser.OutOfBounds:
		d.Book.Errors.OutOfBounds++
	case parser.OK:
		d.dispatch(msg)
	}

	mid, ok := d.Book.Mid()
	fmt.Fprintln(d.Out, engine.FormatMid(mid, ok))
}

func (d *Driver) dispatch(msg parser.Message) {
	switch msg.Kind {
	case parser.Add:
		d.Book.Add(engine.Order{ID: msg.ID, Side: msg.Side, Qty: msg.Qty, Px: msg.Px})
	case parser.Remove:
		d.Book.Remove(msg.ID, msg.Side, msg.Px)
	case parser.Modify:
		d.Book.Modify(msg.ID, msg.Side, msg.Qty, msg.Px)
	case parser.Trade:
		d.Book.HandleTrade(msg.Qty, msg.Px, d.Out)
	}
}

// WriteErrorSummary writes the final error tally to w, on the
// always-active stream the "silent" flag never touches.
func (d *Driver) WriteErrorSummary(w io.Writer) {
	fmt.Fprintln(w, "Errors:")
	fmt.Fprint(w, d.Book.Errors.String())
}
