package mathx

import "golang.org/x/exp/constraints"

// Between reports lo <= v && v <= hi (order-insensitive).
func Between[T constraints.Ordered](v, lo, hi T) bool {
	if hi < lo {
		lo, hi = hi, lo
	}
	return v >= lo && v <= hi
}

// Fits reports whether v is representable in the unsigned type T.
func Fits[T constraints.Unsigned](v uint64) bool {
	hi := ^T(0)
	return v <= uint64(hi)
}
