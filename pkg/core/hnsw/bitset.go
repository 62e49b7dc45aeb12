package hnsw

// bitSet is a growable set of uint32 values used to track visited nodes
// during a layer search. It is pooled and reset between searches.
type bitSet struct {
	words []uint64
}

func newBitSet(capacity uint32) *bitSet {
	return &bitSet{words: make([]uint64, capacity/64+1)}
}

func (bs *bitSet) grow(n uint32) {
	needed := n/64 + 1
	if uint32(len(bs.words)) < needed {
		words := make([]uint64, needed)
		copy(words, bs.words)
		bs.words = words
	}
}

func (bs *bitSet) add(n uint32) {
	idx := n / 64
	if idx >= uint32(len(bs.words)) {
		bs.grow(n)
	}
	bs.words[idx] |= 1 << (n % 64)
}

func (bs *bitSet) has(n uint32) bool {
	idx := n / 64
	if idx >= uint32(len(bs.words)) {
		return false
	}
	return bs.words[idx]&(1<<(n%64)) != 0
}

func (bs *bitSet) reset() {
	for i := range bs.words {
		bs.words[i] = 0
	}
}
