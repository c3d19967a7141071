package engine

import (
	"fmt"
	"io"

	"go.uber.org/zap"
)

// logger receives the Book's UnexpectedException diagnostics. It defaults to
// a no-op so engine tests and library consumers don't need zap configured;
// the lobfeed command installs a real sugared logger at startup via
// SetLogger.
var logger = zap.NewNop().Sugar()

// SetLogger installs the sugared logger every Book uses for its
// UnexpectedException boundary. Never called from the hot path itself — only
// at process startup.
func SetLogger(l *zap.SugaredLogger) {
	if l != nil {
		logger = l
	}
}

// expectedTrade is one leg of the deterministic trade projection, computed
// when the first trade report arrives on a book whose cross is still armed.
type expectedTrade struct {
	qty uint32
	px  uint32
}

// Book is a single-instrument limit order book: two price-time-priority
// sides, an O(1) order directory, and the cross/expected-trade machinery
// described for the trade-validation contract. A Book is not safe for
// concurrent use; the driver that owns one processes one line at a time.
type Book struct {
	buys  *sideIndex
	sells *sideIndex

	directory map[uint32]*orderNode
	nodes     *pool[orderNode]
	seq       uint32

	midValid bool
	mid      float64

	expectingTrades bool
	expected        []expectedTrade

	haveLastTrade bool
	lastTradePx   uint32
	lastTradeRun  uint32

	Errors ErrorSummary
}

// NewBook returns an empty book.
func NewBook() *Book {
	return &Book{
		buys:      newSideIndex(Buy),
		sells:     newSideIndex(Sell),
		directory: make(map[uint32]*orderNode),
		nodes:     newPool[orderNode](defaultPoolCap),
	}
}

func (b *Book) sideFor(side Side) *sideIndex {
	if side == Buy {
		return b.buys
	}
	return b.sells
}

func (b *Book) nextSeq() uint32 {
	b.seq++
	return b.seq
}

// Mid returns the current mid price and whether one exists — it doesn't
// when either side of the book is empty.
func (b *Book) Mid() (float64, bool) {
	return b.mid, b.midValid
}

// Crossed reports whether the best bid is at or above the best ask.
func (b *Book) Crossed() bool {
	bt, st := b.buys.top(), b.sells.top()
	if bt == nil || st == nil {
		return false
	}
	return bt.px >= st.px
}

// WaitingForTrades reports whether a cross has been detected whose expected
// trades haven't all been confirmed yet.
func (b *Book) WaitingForTrades() bool {
	return b.expectingTrades || len(b.expected) > 0
}

// recalcMid recomputes the mid price from the current best bid/ask. Must be
// called any time a mutation could have changed either side's top level.
func (b *Book) recalcMid() {
	bt, st := b.buys.top(), b.sells.top()
	if bt == nil || st == nil {
		b.midValid = false
		b.mid = 0
		return
	}
	b.midValid = true
	b.mid = float64(uint64(bt.px)+uint64(st.px)) / (2 * Scale)
}

// precheckArrival records NoTradesWhenExpected when an order message arrives
// while trades from a prior cross are still outstanding, per the "no fresh
// order traffic while a cross is unresolved" invariant. Called once at the
// top of every order-mutating public method.
func (b *Book) precheckArrival() {
	if b.Crossed() && b.WaitingForTrades() {
		b.Errors.NoTradesWhenExpected++
	}
}

// insertNew links a brand-new node for order into side, registers it in the
// directory, and recomputes mid if this insertion created a new top level.
func (b *Book) insertNew(order Order, side *sideIndex) *orderNode {
	level := side.add(order.Px)
	wasNewTop := side.top() == level && level.empty()

	node := b.nodes.get()
	node.order = order
	node.seq = b.nextSeq()
	level.pushBack(node)
	b.directory[order.ID] = node

	if wasNewTop {
		b.onTopChange()
	}
	return node
}

// unlink removes node from its level and the directory, releasing the level
// back to its side index if it's now empty, and reacts to the departure if
// it changed the side's top. Does not touch ErrorSummary.
func (b *Book) unlink(node *orderNode, side *sideIndex) {
	level := node.level
	wasTop := side.top() == level

	level.erase(node)
	delete(b.directory, node.order.ID)
	if level.empty() {
		side.remove(level.px)
	}
	b.nodes.put(node)

	if wasTop {
		b.onTopChange()
	}
}

// onTopChange reacts to an insertion, removal, or price-changing modify that
// altered the best level on either side: the mid is recomputed, the
// expected-trade buffer is invalidated (it was computed against the prior
// top and no longer applies), and a fresh cross rearms the projection.
func (b *Book) onTopChange() {
	b.recalcMid()
	b.expected = b.expected[:0]
	b.expectingTrades = b.Crossed()
}

// Add inserts a brand-new resting order. It reports false, without
// mutating the book, if id is already live.
func (b *Book) Add(order Order) (ok bool) {
	defer b.recoverInto(&ok)

	b.precheckArrival()
	if _, exists := b.directory[order.ID]; exists {
		b.Errors.DuplicateOrderID++
		return false
	}
	b.insertNew(order, b.sideFor(order.Side))
	return true
}

// Remove cancels a resting order. id, side and px must all match the live
// order exactly; qty is not checked. Reports false, without mutating the
// book, on any mismatch.
func (b *Book) Remove(id uint32, side Side, px uint32) (ok bool) {
	defer b.recoverInto(&ok)

	b.precheckArrival()
	node, exists := b.directory[id]
	if !exists || node.order.Side != side || node.order.Px != px {
		b.Errors.RemoveWithoutMatch++
		return false
	}
	b.unlink(node, b.sideFor(side))
	return true
}

// Modify changes the qty and/or px of a resting order, preserving its
// time-priority seq when the change doesn't increase qty or move the price,
// and otherwise re-queuing it behind the rest of its new level — per the
// "any qty increase or price change loses priority" invariant. An id the
// book doesn't know is treated as a fresh insert and counted as
// ModifyWithoutOrder; an attempt to flip side is rejected and counted as
// ModifyWrongSide without mutating the book.
func (b *Book) Modify(id uint32, side Side, qty, px uint32) (ok bool) {
	defer b.recoverInto(&ok)

	b.precheckArrival()
	node, exists := b.directory[id]
	if !exists {
		b.Errors.ModifyWithoutOrder++
		b.insertNew(Order{ID: id, Side: side, Qty: qty, Px: px}, b.sideFor(side))
		return true
	}
	if node.order.Side != side {
		b.Errors.ModifyWrongSide++
		return false
	}

	if qty > node.order.Qty || px != node.order.Px {
		b.unlink(node, b.sideFor(side))
		b.insertNew(Order{ID: id, Side: side, Qty: qty, Px: px}, b.sideFor(side))
		return true
	}

	node.order.Qty = qty
	return true
}

// calculateExpectedTrades computes the deterministic sequence of (qty, px)
// legs a cross must resolve into: the side that crossed last (the higher
// seq of the two best-level front orders) is the aggressor, and its qty is
// walked across the resting side's levels in that side's own best-to-worst
// order until exhausted.
func (b *Book) calculateExpectedTrades() {
	buyTop, sellTop := b.buys.top(), b.sells.top()
	if buyTop == nil || sellTop == nil {
		return
	}
	buyFront, sellFront := buyTop.front(), sellTop.front()
	if buyFront == nil || sellFront == nil {
		return
	}

	aggressorSide := Sell
	aggressor := sellFront.order
	if buyFront.seq > sellFront.seq {
		aggressorSide = Buy
		aggressor = buyFront.order
	}

	opposite := b.sells
	if aggressorSide == Sell {
		opposite = b.buys
	}

	remaining := aggressor.Qty
	b.expected = b.expected[:0]
	opposite.iterInPriceOrder(func(level *priceLevel) bool {
		if aggressorSide == Buy && level.px > aggressor.Px {
			return false
		}
		if aggressorSide == Sell && level.px < aggressor.Px {
			return false
		}
		for n := level.front(); n != nil && remaining > 0; n = n.next {
			q := n.order.Qty
			if q > remaining {
				q = remaining
			}
			b.expected = append(b.expected, expectedTrade{qty: q, px: level.px})
			remaining -= q
		}
		return remaining > 0
	})
}

// HandleTrade records a trade report, writes its running-aggregate line to
// w, and classifies it against the outstanding expected-trade projection.
// The line is written unconditionally — classification never suppresses
// output.
func (b *Book) HandleTrade(qty, px uint32, w io.Writer) {
	defer func() {
		if r := recover(); r != nil {
			b.Errors.UnexpectedException++
			logger.Errorw("engine: recovered from invariant violation", "where", "HandleTrade", "panic", r)
		}
	}()

	if b.haveLastTrade && px == b.lastTradePx {
		b.lastTradeRun++
	} else {
		b.haveLastTrade = true
		b.lastTradePx = px
		b.lastTradeRun = qty
	}
	fmt.Fprintf(w, "%d@%s\n", b.lastTradeRun, formatScaled(px))

	if !b.Crossed() {
		b.Errors.TradeWithoutMatch++
		return
	}
	if len(b.expected) == 0 {
		if !b.expectingTrades {
			b.Errors.TradeWithoutMatch++
			return
		}
		b.calculateExpectedTrades()
		b.expectingTrades = false
		if len(b.expected) == 0 {
			b.Errors.TradeWithoutMatch++
			return
		}
	}

	front := b.expected[0]
	if front.qty != qty || front.px != px {
		b.Errors.TradeWithoutMatch++
		return
	}
	b.expected = b.expected[1:]
}

// recoverInto turns a panic inside a book-mutating method into an
// UnexpectedException tally instead of letting it escape, per the
// invariant-violation boundary: the panicking goroutine unwinds before any
// further mutation happens. Mutations the method made before the panic are
// not undone, so the book is left as of the last completed step, which may
// be part-way through the operation.
func (b *Book) recoverInto(ok *bool) {
	if r := recover(); r != nil {
		*ok = false
		b.Errors.UnexpectedException++
		logger.Errorw("engine: recovered from invariant violation", "panic", r)
	}
}

// WriteSnapshot writes the full resting-order listing for both sides, best
// price first, in the "Buys:" / "Sells:" block format the driver emits
// every N input lines and once more at end of input.
func (b *Book) WriteSnapshot(w io.Writer) {
	fmt.Fprintln(w, "Buys:")
	writeSide(w, b.buys)
	fmt.Fprintln(w, "Sells:")
	writeSide(w, b.sells)
}

func writeSide(w io.Writer, side *sideIndex) {
	if side.empty() {
		fmt.Fprintln(w, "<empty>")
		return
	}
	side.iterInPriceOrder(func(level *priceLevel) bool {
		for n := level.front(); n != nil; n = n.next {
			fmt.Fprintf(w, "%d: %s %d @ %s\n", n.order.ID, n.order.Side, n.order.Qty, formatScaled(n.order.Px))
		}
		return true
	})
}
