package engine

import (
	"strings"
	"testing"
)

func px(v float64) uint32 {
	return uint32(v * Scale)
}

func TestMidRequiresBothSides(t *testing.T) {
	b := NewBook()
	if _, ok := b.Mid(); ok {
		t.Fatalf("expected no mid on an empty book")
	}

	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(1000)})
	if _, ok := b.Mid(); ok {
		t.Fatalf("expected no mid with only one side populated")
	}

	b.Add(Order{ID: 2, Side: Sell, Qty: 1, Px: px(1010)})
	mid, ok := b.Mid()
	if !ok || mid != 1005 {
		t.Fatalf("mid = %v, %v; want 1005, true", mid, ok)
	}
}

func TestScenario1_MidTracksBestLevelChanges(t *testing.T) {
	b := NewBook()

	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(1000)})
	if _, ok := b.Mid(); ok {
		t.Fatalf("expected NAN after first order")
	}

	b.Add(Order{ID: 2, Side: Sell, Qty: 1, Px: px(1010)})
	want(t, b, 1005)

	b.Add(Order{ID: 3, Side: Sell, Qty: 1, Px: px(1020)})
	want(t, b, 1005) // worse ask, top unchanged

	b.Add(Order{ID: 4, Side: Sell, Qty: 1, Px: px(1005)})
	want(t, b, 1002.5) // new best ask

	if !b.Errors.Empty() {
		t.Fatalf("expected no errors, got %+v", b.Errors)
	}
}

func TestScenario2_ModifyPriceChangeRequeues(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(1000)})
	b.Add(Order{ID: 2, Side: Sell, Qty: 1, Px: px(1010)})

	b.Modify(2, Sell, 1, px(1020))
	want(t, b, 1010)

	b.Modify(2, Sell, 1000, px(1020))
	want(t, b, 1010)

	if !b.Errors.Empty() {
		t.Fatalf("expected no errors, got %+v", b.Errors)
	}

	var out strings.Builder
	b.WriteSnapshot(&out)
	if !strings.Contains(out.String(), "2: Sell 1000 @ 1020") {
		t.Fatalf("expected sell side to show qty 1000 @ 1020, got:\n%s", out.String())
	}
}

func TestScenario3_ModifyWithoutOrderBecomesFreshInsert(t *testing.T) {
	b := NewBook()
	b.Modify(2, Sell, 1000, px(1020))

	if _, ok := b.Mid(); ok {
		t.Fatalf("expected NAN, buy side is still empty")
	}
	if b.Errors.ModifyWithoutOrder != 1 {
		t.Fatalf("ModifyWithoutOrder = %d, want 1", b.Errors.ModifyWithoutOrder)
	}

	var out strings.Builder
	b.WriteSnapshot(&out)
	if !strings.Contains(out.String(), "2: Sell 1000 @ 1020") {
		t.Fatalf("expected the synthesized order in the snapshot, got:\n%s", out.String())
	}
}

func TestScenario4_ExpectedTradeProjectionAndMismatches(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 1, Side: Buy, Qty: 4, Px: px(1010)})
	b.Add(Order{ID: 2, Side: Sell, Qty: 1, Px: px(1000)})
	want(t, b, 1005)
	if !b.Crossed() {
		t.Fatalf("expected book to be crossed")
	}

	var out strings.Builder

	b.HandleTrade(2, px(1010), &out)
	if b.Errors.TradeWithoutMatch != 1 {
		t.Fatalf("TradeWithoutMatch = %d, want 1", b.Errors.TradeWithoutMatch)
	}

	b.HandleTrade(1, px(1015), &out)
	if b.Errors.TradeWithoutMatch != 2 {
		t.Fatalf("TradeWithoutMatch = %d, want 2", b.Errors.TradeWithoutMatch)
	}

	b.HandleTrade(1, px(1010), &out)
	if b.Errors.TradeWithoutMatch != 2 {
		t.Fatalf("TradeWithoutMatch = %d, want unchanged at 2", b.Errors.TradeWithoutMatch)
	}

	b.HandleTrade(1, px(1010), &out)
	if b.Errors.TradeWithoutMatch != 3 {
		t.Fatalf("TradeWithoutMatch = %d, want 3", b.Errors.TradeWithoutMatch)
	}

	wantLines := []string{"2@1010", "1@1015", "1@1010", "2@1010"}
	gotLines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(gotLines) != len(wantLines) {
		t.Fatalf("got %d trade lines, want %d: %v", len(gotLines), len(wantLines), gotLines)
	}
	for i, want := range wantLines {
		if gotLines[i] != want {
			t.Fatalf("trade line %d = %q, want %q", i, gotLines[i], want)
		}
	}
}

func TestScenario5_NoTradesWhenExpected(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(1020)})
	b.Add(Order{ID: 2, Side: Sell, Qty: 2, Px: px(1010)})
	want(t, b, 1015)

	b.Modify(2, Sell, 1, px(1010))
	want(t, b, 1015)

	if b.Errors.NoTradesWhenExpected != 1 {
		t.Fatalf("NoTradesWhenExpected = %d, want 1", b.Errors.NoTradesWhenExpected)
	}

	node := b.directory[2]
	if node == nil || node.order.Qty != 1 {
		t.Fatalf("order 2 qty not updated in place, got %+v", node)
	}
}

func TestScenario6_RemoveWithoutMatchAndTopRemoval(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 90, Side: Sell, Qty: 1, Px: px(110)})
	b.Add(Order{ID: 100, Side: Buy, Qty: 1, Px: px(100)})
	want(t, b, 105)

	b.Add(Order{ID: 101, Side: Buy, Qty: 1, Px: px(101)})
	want(t, b, 105.5)

	b.Add(Order{ID: 102, Side: Buy, Qty: 1, Px: px(102)})
	want(t, b, 106)

	b.Modify(101, Buy, 1, px(108))
	want(t, b, 109)

	if ok := b.Remove(101, Buy, px(101)); ok {
		t.Fatalf("expected stale remove to fail")
	}
	if b.Errors.RemoveWithoutMatch != 1 {
		t.Fatalf("RemoveWithoutMatch = %d, want 1", b.Errors.RemoveWithoutMatch)
	}

	if ok := b.Remove(101, Buy, px(108)); !ok {
		t.Fatalf("expected top-level remove to succeed")
	}
	want(t, b, 106)
}

func TestAddDuplicateOrderID(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(100)})
	if ok := b.Add(Order{ID: 1, Side: Sell, Qty: 1, Px: px(200)}); ok {
		t.Fatalf("expected duplicate add to fail")
	}
	if b.Errors.DuplicateOrderID != 1 {
		t.Fatalf("DuplicateOrderID = %d, want 1", b.Errors.DuplicateOrderID)
	}
}

func TestModifyWrongSideRejected(t *testing.T) {
	b := NewBook()
	b.Add(Order{ID: 1, Side: Buy, Qty: 1, Px: px(100)})
	if ok := b.Modify(1, Sell, 1, px(100)); ok {
		t.Fatalf("expected side-flipping modify to be rejected")
	}
	if b.Errors.ModifyWrongSide != 1 {
		t.Fatalf("ModifyWrongSide = %d, want 1", b.Errors.ModifyWrongSide)
	}
}

func want(t *testing.T, b *Book, expect float64) {
	t.Helper()
	mid, ok := b.Mid()
	if !ok {
		t.Fatalf("expected a mid price, got NAN")
	}
	if mid != expect {
		t.Fatalf("mid = %v, want %v", mid, expect)
	}
}
