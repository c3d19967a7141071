package engine

import "fmt"

// ErrorSummary tallies every anomalous input the book engine and line
// parser have classified, grouped by severity the same way the original
// JumpInterview::OrderBook::ErrorSummary groups them.
type ErrorSummary struct {
	// Corrupted counts structurally unparseable lines (missing
	// separators, unknown leading action character, blank lines).
	Corrupted uint32
	// OutOfBounds counts lines whose fields parse but violate a numeric
	// or enum constraint.
	OutOfBounds uint32

	// DuplicateOrderID counts 'A' messages whose id is already live.
	DuplicateOrderID uint32
	// ModifyWithoutOrder counts 'M' messages for an id the book doesn't
	// know — treated as a fresh insert.
	ModifyWithoutOrder uint32
	// ModifyWrongSide counts 'M' messages that try to flip an order's
	// side.
	ModifyWrongSide uint32
	// RemoveWithoutMatch counts 'X' messages whose (id, side, px) does
	// not match a live order.
	RemoveWithoutMatch uint32

	// TradeWithoutMatch counts 'T' messages inconsistent with the
	// expected-trade projection, or arriving on an uncrossed book.
	TradeWithoutMatch uint32
	// NoTradesWhenExpected counts order messages that arrived while
	// expected trades from a prior cross were still outstanding.
	NoTradesWhenExpected uint32

	// UnexpectedException counts internal invariant violations caught
	// at the engine boundary.
	UnexpectedException uint32
}

// Empty reports whether every counter is zero.
func (s ErrorSummary) Empty() bool {
	return s.Corrupted == 0 &&
		s.OutOfBounds == 0 &&
		s.DuplicateOrderID == 0 &&
		s.ModifyWithoutOrder == 0 &&
		s.ModifyWrongSide == 0 &&
		s.RemoveWithoutMatch == 0 &&
		s.TradeWithoutMatch == 0 &&
		s.NoTradesWhenExpected == 0 &&
		s.UnexpectedException == 0
}

// String renders the summary the way the original groups counters by
// severity tag.
func (s ErrorSummary) String() string {
	return fmt.Sprintf(
		"[ GLOBAL] Corrupted messages: %d\n"+
			"[ GLOBAL] Out of bounds or otherwise weird data: %d\n"+
			"[  ORDER] Modify without corresponding order: %d\n"+
			"[  ORDER] Modify that's changing side: %d\n"+
			"[  ORDER] Duplicate order id: %d\n"+
			"[  ORDER] Removes without corresponding order: %d\n"+
			"[  TRADE] Trades without corresponding order: %d\n"+
			"[  TRADE] No trades when they should happen: %d\n"+
			"[SERIOUS] Unexpected exception: %d\n",
		s.Corrupted,
		s.OutOfBounds,
		s.ModifyWithoutOrder,
		s.ModifyWrongSide,
		s.DuplicateOrderID,
		s.RemoveWithoutMatch,
		s.TradeWithoutMatch,
		s.NoTradesWhenExpected,
		s.UnexpectedException,
	)
}
