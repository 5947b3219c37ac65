package jpegt

import (
	"encoding/binary"
)

// huffLookupBits is the width of the fast lookup table. Codes up to this
// length resolve with a single table probe; longer codes fall through to a
// linear search over the canonical code list.
const huffLookupBits = 10

const huffLookupSize = 1 << huffLookupBits

// huffInvalid marks lookup slots not covered by any short code.
const huffInvalid = 0xFFFF

// huffTable is a canonical Huffman table built from a DHT segment. The
// code and lookup arrays live in the session arena and are stored as raw
// bytes with explicit little-endian access, which keeps the arena free of
// alignment requirements.
//
// A lookup entry packs the decoded symbol in the low byte and the code
// length in the high byte.
type huffTable struct {
	counts [16]uint8

	// codes holds one uint16 canonical code per symbol, ordered by
	// ascending code length.
	codes []byte

	// values holds the decoded symbol for each code, same order.
	values []byte

	// lut is the fast table, huffLookupSize uint16 entries.
	lut []byte

	// longIdx is the index of the first code longer than huffLookupBits.
	longIdx int
}

// buildHuffTable constructs a table from the bit-length counts and symbol
// values of a DHT segment.
func buildHuffTable(a *arena, counts *[16]uint8, values []byte) (*huffTable, error) {
	n := len(values)

	codes, err := a.bytes(2 * n)
	if err != nil {
		return nil, err
	}

	vals, err := a.bytes(n)
	if err != nil {
		return nil, err
	}

	lut, err := a.bytes(2 * huffLookupSize)
	if err != nil {
		return nil, err
	}

	t := &huffTable{counts: *counts, codes: codes, values: vals, lut: lut}
	copy(t.values, values)

	// Assign canonical codes and check that the counts fit the code space.
	code := 0
	idx := 0
	for l := 1; l <= 16; l++ {
		for k := 0; k < int(counts[l-1]); k++ {
			binary.LittleEndian.PutUint16(t.codes[2*idx:], uint16(code))
			idx++
			code++
		}
		if code > 1<<l {
			return nil, ErrSyntax
		}
		code <<= 1
	}

	for i := 0; i < huffLookupSize; i++ {
		binary.LittleEndian.PutUint16(t.lut[2*i:], huffInvalid)
	}

	// Short codes fan out over every lookup slot sharing their prefix.
	idx = 0
	for l := 1; l <= huffLookupBits; l++ {
		for k := 0; k < int(counts[l-1]); k++ {
			shift := huffLookupBits - l
			base := int(binary.LittleEndian.Uint16(t.codes[2*idx:])) << shift
			entry := uint16(t.values[idx]) | uint16(l)<<8

			for j := 0; j < 1<<shift; j++ {
				binary.LittleEndian.PutUint16(t.lut[2*(base+j):], entry)
			}
			idx++
		}
	}

	t.longIdx = idx

	return t, nil
}

// decode reads one Huffman-coded symbol from the bitstream.
func (t *huffTable) decode(br *bitReader) (uint8, error) {
	w, err := br.showBits(huffLookupBits)
	if err != nil {
		return 0, err
	}

	if e := binary.LittleEndian.Uint16(t.lut[2*w:]); e != huffInvalid {
		br.skipBits(int(e >> 8))

		return uint8(e), nil
	}

	w16, err := br.showBits(16)
	if err != nil {
		return 0, err
	}

	idx := t.longIdx
	for l := huffLookupBits + 1; l <= 16; l++ {
		want := uint16(w16 >> (16 - l))

		for k := 0; k < int(t.counts[l-1]); k++ {
			if binary.LittleEndian.Uint16(t.codes[2*idx:]) == want {
				br.skipBits(l)

				return t.values[idx], nil
			}
			idx++
		}
	}

	return 0, ErrSyntax
}
