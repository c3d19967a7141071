package engine

import "strconv"

// NaNLiteral is the literal the driver must print in place of a mid price when one
// side of the book is empty.
const NaNLiteral = "NAN"

// formatScaled renders a scaled fixed-point price back to its decimal form
// at up to 8 significant digits, trimming trailing zeros — the same
// rendering the original gets for free from an 8-digit-precision iostream.
func formatScaled(px uint32) string {
	return strconv.FormatFloat(float64(px)/Scale, 'g', 8, 64)
}

// FormatMid renders a Book.Mid() result the way the driver must emit it:
// the literal "NAN" when ok is false, otherwise the value at the same
// precision as a price.
func FormatMid(v float64, ok bool) string {
	if !ok {
		return NaNLiteral
	}
	return strconv.FormatFloat(v, 'g', 8, 64)
}
