package currency

import "fmt"

// InferPoolID derives the canonical identifier for the general DEX pool
// holding the given pair. The result is order-independent: the pair is
// sorted by the canonical currency order before formatting, so
// InferPoolID(a, b) == InferPoolID(b, a) always holds.
func InferPoolID(a Currency, b Currency) string {
	if b.Less(a) {
		a, b = b, a
	}
	return fmt.Sprintf("(%s,%s)", a.String(), b.String())
}
