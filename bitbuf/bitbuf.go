// RTLPUNCH - A receiver for Emit ePost orienteering punch units operating in the 868MHz SRD band.
// Copyright (C) 2022 The rtlpunch authors
//
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published
// by the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// This program is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
// GNU Affero General Public License for more details.
//
// You should have received a copy of the GNU Affero General Public License
// along with this program.  If not, see <http://www.gnu.org/licenses/>.

// Package bitbuf holds rows of demodulated bits handed to frame parsers by
// the capture front end. Bits are packed most-significant-bit first, each
// row independently decodable.
package bitbuf

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
)

// Buffer is a set of bit rows. The zero value is an empty buffer ready for
// use. Parsers treat rows as read-only.
type Buffer struct {
	rows [][]byte
	bits []int
}

func New() *Buffer {
	return &Buffer{}
}

// AddRow appends a row of n bits packed MSB-first in data. The bits are
// copied, the caller may reuse data.
func (b *Buffer) AddRow(data []byte, n int) {
	row := make([]byte, (n+7)>>3)
	copy(row, data)
	b.rows = append(b.rows, row)
	b.bits = append(b.bits, n)
}

// Rows returns the number of rows in the buffer.
func (b *Buffer) Rows() int {
	return len(b.rows)
}

// Len returns the bit length of the given row.
func (b *Buffer) Len(row int) int {
	return b.bits[row]
}

// Bit returns the bit at index idx of the given row.
func (b *Buffer) Bit(row, idx int) byte {
	return b.rows[row][idx>>3] >> (7 - uint(idx&7)) & 1
}

// Search returns the bit index of the first exact occurrence of the leading
// nBits of pattern in the given row, scanning left to right from start.
// When the pattern does not occur, Search returns the row's bit length.
func (b *Buffer) Search(row, start int, pattern []byte, nBits int) int {
	n := b.bits[row]

	for pos := start; pos+nBits <= n; pos++ {
		found := true
		for idx := 0; idx < nBits; idx++ {
			pBit := pattern[idx>>3] >> (7 - uint(idx&7)) & 1
			if b.Bit(row, pos+idx) != pBit {
				found = false
				break
			}
		}
		if found {
			return pos
		}
	}

	return n
}

// ExtractBytes copies nBits starting at bit offset bitOff of the given row
// into dst, packed MSB-first. The caller guarantees the row holds at least
// bitOff+nBits bits and that dst holds at least (nBits+7)/8 bytes.
func (b *Buffer) ExtractBytes(row, bitOff int, dst []byte, nBits int) {
	for idx := 0; idx < nBits; idx++ {
		if idx&7 == 0 {
			dst[idx>>3] = 0
		}
		dst[idx>>3] |= b.Bit(row, bitOff+idx) << (7 - uint(idx&7))
	}
}

// ParseRow parses a row literal and appends it as a new row. Literals are
// either a bare hex string, or "{n}hex" declaring an explicit bit length,
// as printed by rtl_433's bitbuffer dumps. A bare hex string is taken to be
// 4 bits per digit.
func (b *Buffer) ParseRow(s string) error {
	s = strings.TrimSpace(s)

	n := -1
	if strings.HasPrefix(s, "{") {
		end := strings.Index(s, "}")
		if end < 0 {
			return fmt.Errorf("bitbuf: unterminated bit length in row %q", s)
		}
		var err error
		n, err = strconv.Atoi(s[1:end])
		if err != nil || n < 0 {
			return fmt.Errorf("bitbuf: invalid bit length in row %q", s)
		}
		s = s[end+1:]
	}

	s = strings.TrimPrefix(s, "0x")
	if n == -1 {
		n = len(s) * 4
	}
	if n > len(s)*4 {
		return fmt.Errorf("bitbuf: declared %d bits but row %q holds %d", n, s, len(s)*4)
	}

	data := make([]byte, (len(s)+1)>>1)
	for idx, c := range s {
		nibble, err := strconv.ParseUint(string(c), 16, 8)
		if err != nil {
			return fmt.Errorf("bitbuf: invalid hex digit %q in row", c)
		}
		if idx&1 == 0 {
			data[idx>>1] |= byte(nibble) << 4
		} else {
			data[idx>>1] |= byte(nibble)
		}
	}

	b.AddRow(data, n)
	return nil
}

// RowString renders the given row as a "{n}hex" literal, the inverse of
// ParseRow up to trailing pad bits.
func (b *Buffer) RowString(row int) string {
	return fmt.Sprintf("{%d}%s", b.bits[row], hex.EncodeToString(b.rows[row]))
}
