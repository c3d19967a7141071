package engine

import (
	"github.com/emirpasic/gods/trees/redblacktree"
)

// sideIndex is the ordered price -> level map for one side of the book,
// realized as a comparator-parameterized red-black tree rather than a
// subtype hierarchy — the buy and sell sides are two instances of the same
// generic structure, differing only in the comparator handed to NewWith, per
// the "generic ordered map parameterized by a comparator" guidance.
//
// Presence of a level is tested with the tree's own lookup (Get), which is
// O(log K) in the number of levels; there is no separate hash table, so no
// presence test here is O(1).
type sideIndex struct {
	tree  *redblacktree.Tree
	level *pool[priceLevel]
}

func ascComparator(a, b interface{}) int {
	x, y := a.(uint32), b.(uint32)
	switch {
	case x < y:
		return -1
	case x > y:
		return 1
	default:
		return 0
	}
}

func descComparator(a, b interface{}) int {
	return -ascComparator(a, b)
}

// newSideIndex builds the side index for buy (descending by price, so best
// bid sorts first) or sell (ascending, so best ask sorts first).
func newSideIndex(side Side) *sideIndex {
	pool := newPool[priceLevel](defaultPoolCap)
	if side == Buy {
		return &sideIndex{tree: redblacktree.NewWith(descComparator), level: pool}
	}
	return &sideIndex{tree: redblacktree.NewWith(ascComparator), level: pool}
}

// add returns the existing level at px, or creates and registers an empty
// one. O(log K) on both paths: a tree lookup, plus a tree insertion when a
// new level is needed.
func (s *sideIndex) add(px uint32) *priceLevel {
	if v, found := s.tree.Get(px); found {
		return v.(*priceLevel)
	}
	lvl := s.level.get()
	lvl.px = px
	s.tree.Put(px, lvl)
	return lvl
}

// remove deletes the (now-empty) level at px from the index and returns its
// storage to the pool. The caller must ensure the level's queue is already
// empty.
func (s *sideIndex) remove(px uint32) {
	if v, found := s.tree.Get(px); found {
		s.level.put(v.(*priceLevel))
	}
	s.tree.Remove(px)
}

// top returns the best level on this side, or nil if the side is empty.
func (s *sideIndex) top() *priceLevel {
	n := s.tree.Left()
	if n == nil {
		return nil
	}
	return n.Value.(*priceLevel)
}

func (s *sideIndex) empty() bool { return s.tree.Empty() }

// iterInPriceOrder walks levels from best to worst on this side, stopping
// early if visit returns false.
func (s *sideIndex) iterInPriceOrder(visit func(*priceLevel) bool) {
	it := s.tree.Iterator()
	for it.Next() {
		if !visit(it.Value().(*priceLevel)) {
			return
		}
	}
}
