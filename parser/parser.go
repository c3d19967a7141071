// Package parser turns one line of the order feed into a typed message for
// the book engine, classifying anything it can't make sense of the same way
// the feed distinguishes a structurally broken line from one whose fields
// just don't hold valid values.
package parser

import (
	"math"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/orderflow/lobfeed/engine"
)

// Kind identifies which of the four message shapes a line decoded to.
type Kind uint8

const (
	Add Kind = iota
	Remove
	Modify
	Trade
)

// Message is the decoded form of one feed line, valid regardless of Kind —
// callers switch on Kind to know which fields apply (Trade messages leave
// ID and Side unset).
type Message struct {
	Kind Kind
	ID   uint32
	Side engine.Side
	Qty  uint32
	Px   uint32
}

// Class tells the caller how to account for a line that didn't produce a
// usable Message.
type Class uint8

const (
	// OK means Parse filled in Message and the caller should dispatch it.
	OK Class = iota
	// Corrupted means a required separator or token was missing entirely.
	Corrupted
	// OutOfBounds means every token was present but one violated a
	// constraint: a bad side letter, a non-positive or non-integral
	// quantity, a signed number, or a price past the uint32 range.
	OutOfBounds
)

const maxScaledPrice = math.MaxUint32

// Parse decodes a single line. The line must not include its trailing
// newline; a trailing '\r' (DOS line ending) is tolerated, as is a
// trailing whitespace run or a "//"-style comment after the price field.
func Parse(line string) (Message, Class) {
	if len(line) < 4 {
		return Message{}, Corrupted
	}
	if strings.IndexByte(line, ',') != 1 {
		return Message{}, Corrupted
	}
	switch line[0] {
	case 'A':
		return parseOrder(line, Add)
	case 'X':
		return parseOrder(line, Remove)
	case 'M':
		return parseOrder(line, Modify)
	case 'T':
		return parseTrade(line)
	default:
		return Message{}, Corrupted
	}
}

// parseOrder decodes the ORDER grammar: action ',' id ',' side ',' qty ','
// price, shared by Add, Remove and Modify.
func parseOrder(line string, kind Kind) (Message, Class) {
	const idBegin = 2
	idEnd, found := findComma(line, idBegin)
	if !found {
		return Message{}, Corrupted
	}
	sideBegin := idEnd + 1
	if sideBegin+2 > len(line) {
		return Message{}, Corrupted
	}
	volumeBegin := sideBegin + 2
	volumeEnd, found := findComma(line, volumeBegin)
	if !found {
		return Message{}, Corrupted
	}
	priceBegin := volumeEnd + 1
	if priceBegin > len(line) {
		return Message{}, Corrupted
	}

	id, ok := parseUint32(line[idBegin:idEnd])
	if !ok {
		return Message{}, OutOfBounds
	}

	sideCh := line[sideBegin]
	var side engine.Side
	switch sideCh {
	case 'B':
		side = engine.Buy
	case 'S':
		side = engine.Sell
	default:
		return Message{}, OutOfBounds
	}
	if line[sideBegin+1] != ',' {
		return Message{}, OutOfBounds
	}

	qty, ok := parseUint32(line[volumeBegin:volumeEnd])
	if !ok || qty == 0 {
		return Message{}, OutOfBounds
	}

	px, ok := parseScaledPrice(priceToken(line[priceBegin:]), false)
	if !ok {
		return Message{}, OutOfBounds
	}

	return Message{Kind: kind, ID: id, Side: side, Qty: qty, Px: px}, OK
}

// parseTrade decodes the TRADE grammar: 'T' ',' qty ',' price.
func parseTrade(line string) (Message, Class) {
	const volumeBegin = 2
	volumeEnd, found := findComma(line, volumeBegin)
	if !found {
		return Message{}, Corrupted
	}
	priceBegin := volumeEnd + 1
	if priceBegin > len(line) {
		return Message{}, Corrupted
	}

	qty, ok := parseUint32(line[volumeBegin:volumeEnd])
	if !ok {
		return Message{}, OutOfBounds
	}

	px, ok := parseScaledPrice(priceToken(line[priceBegin:]), true)
	if !ok {
		return Message{}, OutOfBounds
	}

	return Message{Kind: Trade, Qty: qty, Px: px}, OK
}

// findComma looks for the next ',' at or after from, returning its absolute
// index and whether one was found.
func findComma(line string, from int) (int, bool) {
	if from > len(line) {
		return 0, false
	}
	i := strings.IndexByte(line[from:], ',')
	if i < 0 {
		return 0, false
	}
	return from + i, true
}

// priceToken trims the price field at the first whitespace, '/' comment
// marker, or CR — whichever comes first, or the end of the line if none do.
func priceToken(s string) string {
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case ' ', '/', '\r':
			return s[:i]
		}
	}
	return s
}

// parseUint32 is strict: no sign, no whitespace, no fractional part, and
// the full token must be consumed.
func parseUint32(tok string) (uint32, bool) {
	if tok == "" {
		return 0, false
	}
	v, err := strconv.ParseUint(tok, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(v), true
}

// parseScaledPrice decodes a non-negative decimal literal and scales it
// into the engine's fixed-point domain, truncating any fractional scaled
// unit. allowZero distinguishes the trade grammar (price == 0 permitted)
// from the order grammar (price must be strictly positive).
func parseScaledPrice(tok string, allowZero bool) (uint32, bool) {
	if tok == "" || strings.ContainsAny(tok, "-+") {
		return 0, false
	}
	d, err := decimal.NewFromString(tok)
	if err != nil {
		return 0, false
	}
	if d.IsNegative() {
		return 0, false
	}
	if d.IsZero() && !allowZero {
		return 0, false
	}
	scaled := d.Mul(decimal.NewFromInt(engine.Scale)).Truncate(0)
	if scaled.Cmp(decimal.NewFromInt(maxScaledPrice)) > 0 {
		return 0, false
	}
	return uint32(scaled.IntPart()), true
}
