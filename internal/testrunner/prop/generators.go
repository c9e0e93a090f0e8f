package prop

import "math/rand"

// GenIntn generates ints in [0, n).
func GenIntn(n int) Generator[int] {
	return func(r *rand.Rand, _ int) int { return r.Intn(n) }
}

// GenUint32 generates values in [0, limit).
func GenUint32(limit uint32) Generator[uint32] {
	return func(r *rand.Rand, _ int) uint32 { return uint32(r.Int63n(int64(limit))) }
}

// GenBytes generates byte slices of up to size bytes.
func GenBytes() Generator[[]byte] {
	return func(r *rand.Rand, size int) []byte {
		b := make([]byte, r.Intn(max(0, size)+1))
		r.Read(b)
		return b
	}
}

// GenOneOf picks one of vals.
func GenOneOf[T any](vals ...T) Generator[T] {
	return func(r *rand.Rand, _ int) T { return vals[r.Intn(len(vals))] }
}

// ShrinkUint32 moves toward zero.
func ShrinkUint32(v uint32) []uint32 {
	switch v {
	case 0:
		return nil
	case 1:
		return []uint32{0}
	}
	return []uint32{0, v / 2, v - 1}
}

// GenSlice generates slices of up to size elements.
func GenSlice[T any](elem Generator[T]) Generator[[]T] {
	return func(r *rand.Rand, size int) []T {
		out := make([]T, r.Intn(max(0, size)+1))
		for i := range out {
			out[i] = elem(r, size)
		}
		return out
	}
}

// ShrinkSlice proposes each half, the slice without its last element and,
// with an element shrinker, the slice with a smaller first element.
func ShrinkSlice[T any](elem Shrinker[T]) Shrinker[[]T] {
	return func(v []T) [][]T {
		if len(v) == 0 {
			return nil
		}
		mid := len(v) / 2
		candidates := [][]T{
			append([]T(nil), v[:mid]...),
			append([]T(nil), v[mid:]...),
			append([]T(nil), v[:len(v)-1]...),
		}
		if elem != nil {
			for _, s := range elem(v[0]) {
				candidates = append(candidates, append([]T{s}, v[1:]...))
			}
		}
		return candidates
	}
}
