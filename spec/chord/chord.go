package chord

import (
	"math/rand"

	"github.com/zeebo/xxh3"
)

const (
	// Also known as m in the original paper. Identifiers are 64-bit, so a full
	// finger table has one entry per bit.
	MaxFingerEntries = 64
)

func Hash(b []byte) uint64 {
	return xxh3.Hash(b)
}

// ModuloSum relies on uint64 wrapping, which is exactly mod 2^64
func ModuloSum(x, y uint64) uint64 {
	return x + y
}

func Random() uint64 {
	return rand.Uint64()
}

// FingerStart returns the identifier finger k should point near: (id + 2^k) mod 2^m
func FingerStart(id uint64, k int) uint64 {
	return ModuloSum(id, 1<<uint(k))
}

// target IN [low, high)
func BetweenInclusiveLow(low, target, high uint64) bool {
	return ContainsLooping(HalfOpen(low, high), target)
}

// target IN (low, high]
func BetweenInclusiveHigh(low, target, high uint64) bool {
	return ContainsLooping(OpenClosed(low, high), target)
}

// target IN (low, high)
func BetweenStrict(low, target, high uint64) bool {
	return ContainsLooping(Open(low, high), target)
}
