package memory

import (
	"encoding/binary"
	"math"
	"sort"
)

// EncodeVector serializes a float32 vector as little-endian bytes for
// BLOB storage.
func EncodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	return buf
}

// DecodeVector deserializes a little-endian float32 vector. Trailing
// bytes that do not form a full float32 are ignored.
func DecodeVector(buf []byte) []float32 {
	n := len(buf) / 4
	vec := make([]float32, n)
	for i := 0; i < n; i++ {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[4*i:]))
	}
	return vec
}

// Nearest returns the indices of the k rows of matrix closest to query
// by squared Euclidean distance, ascending. Ties keep row order, so
// selection is stable. Rows must have the same dimension as query.
func Nearest(matrix [][]float32, query []float32, k int) []int {
	if k > len(matrix) {
		k = len(matrix)
	}
	if k <= 0 {
		return nil
	}

	dists := make([]float64, len(matrix))
	order := make([]int, len(matrix))
	for i, row := range matrix {
		dists[i] = sqDistance(row, query)
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return dists[order[a]] < dists[order[b]]
	})
	return order[:k]
}

func sqDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}
