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

// Package whiten reverses the CC1101-style data whitening applied to
// transmitted payload bytes.
package whiten

import "golang.org/x/xerrors"

// PN9 whitening sequence, TI Design Note DN509. Read-only for the life of
// the process.
var pn9 = [...]byte{
	0xff, 0xe1, 0x1d, 0x9a, 0xed, 0x85, 0x33, 0x24, 0xea,
	0x7a, 0xd2, 0x39, 0x70, 0x97, 0x57, 0x0a, 0x54, 0x7d,
}

// MaxLen is the longest buffer Apply accepts.
const MaxLen = len(pn9)

// Apply XORs buf against the keystream in place. Whitening is an
// involution: applying it twice restores the original bytes. A buffer
// longer than MaxLen indicates a misconfigured frame length, not bad
// radio data.
func Apply(buf []byte) error {
	if len(buf) > MaxLen {
		return xerrors.Errorf("whiten: frame length %d exceeds keystream length %d", len(buf), MaxLen)
	}

	for idx := range buf {
		buf[idx] ^= pn9[idx]
	}

	return nil
}
