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

package epost

import (
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/kemell/rtlpunch/bitbuf"
	"github.com/kemell/rtlpunch/crc"
	"github.com/kemell/rtlpunch/protocol"
	"github.com/kemell/rtlpunch/whiten"
)

func init() {
	protocol.RegisterParser("epost", NewParser)
}

// Frame marker: 0xAAAA preamble followed by the 0xD391D391 sync word,
// compared as a contiguous 48-bit run.
var marker = []byte{0xaa, 0xaa, 0xd3, 0x91, 0xd3, 0x91}

const (
	markerBits = 48

	// Payload bytes following the sync word, checksum trailer included.
	PayloadLength = 12

	// Working frame capacity, sized for longer frame variants.
	frameCap = 20

	crcStart = 10
)

func NewPacketConfig() (cfg protocol.PacketConfig) {
	cfg.Protocol = "epost"
	cfg.Modulation = "FSK_PCM"
	cfg.CenterFreq = 868355000
	cfg.SymbolPeriod = 104
	cfg.Preamble = "101010101010101011010011100100011101001110010001"
	cfg.PacketSymbols = PayloadLength * 8

	return
}

type Parser struct {
	cfg protocol.PacketConfig
	crc crc.CRC

	// Now supplies the capture timestamp stamped onto accepted frames.
	// Swapped out in tests to keep decoding deterministic.
	Now func() time.Time
}

func NewParser() protocol.Parser {
	return &Parser{
		cfg: NewPacketConfig(),
		crc: crc.NewCRC("DN502", 0xFFFF, 0x8005),
		Now: time.Now,
	}
}

func (p *Parser) Cfg() protocol.PacketConfig {
	return p.cfg
}

// Parse decodes one punch frame from the first row of the buffer. Every
// rejection is a protocol.DecodeError; a missing marker is the common
// outcome over a continuous capture, not a fault.
func (p *Parser) Parse(buf *bitbuf.Buffer) (protocol.Message, error) {
	if buf == nil || buf.Rows() < 1 {
		return nil, &protocol.DecodeError{Kind: protocol.ErrNoData}
	}

	const row = 0

	// Reject the row as fast as possible: look for the marker.
	start := buf.Search(row, 0, marker, markerBits)
	if start == buf.Len(row) {
		return nil, &protocol.DecodeError{Kind: protocol.ErrNoPreamble}
	}

	// The full payload must fit between the sync word and end of row.
	pos := start + markerBits
	if pos+PayloadLength*8 > buf.Len(row) {
		return nil, protocol.Errf(protocol.ErrBadLength, nil,
			"need %d bits past marker, row has %d", PayloadLength*8, buf.Len(row)-pos)
	}

	frame := make([]byte, PayloadLength, frameCap)
	buf.ExtractBytes(row, pos, frame, PayloadLength*8)

	// Snapshot the whitened form for diagnostics before reversing it in
	// place.
	whitenedHex := hex.EncodeToString(frame)

	if err := whiten.Apply(frame); err != nil {
		return nil, err
	}

	// The message index occupies two bits, so the range check cannot
	// trip; kept to match the transmitter documentation.
	if msgIdx := frame[0] & 0x30 >> 4; msgIdx > 3 {
		return nil, protocol.Errf(protocol.ErrSanityCheck, dup(frame),
			"message index %d out of range", msgIdx)
	}

	stored := binary.BigEndian.Uint16(frame[crcStart:])
	if computed := p.crc.Checksum(frame[:crcStart]); stored != computed {
		return nil, protocol.Errf(protocol.ErrIntegrityCheck, dup(frame),
			"crc 0x%04X != 0x%04X", stored, computed)
	}

	return NewPunch(frame, whitenedHex, p.Now()), nil
}

func dup(b []byte) []byte {
	return append([]byte(nil), b...)
}

// Punch is a validated ePost check-in frame. Immutable once emitted.
type Punch struct {
	Model       string `json:"model"`
	Raw         string `json:"raw"`
	WhitenedRaw string `json:"nonw_raw"`

	MsgIdx uint8  `json:"msgno"`
	Resend uint8  `json:"resend"`
	Card   uint32 `json:"emitcode"`
	Unit   uint8  `json:"epostcode"`

	Minutes uint16 `json:"timemins"`
	Seconds uint16 `json:"timesecs"`
	Millis  uint16 `json:"timems"`

	CaptureTime time.Time `json:"time"`
	ChecksumVal uint16    `json:"-"`
	Integrity   string    `json:"mic"`
}

func NewPunch(frame []byte, whitenedHex string, at time.Time) (pn Punch) {
	pn.Model = "Emit-ePost"
	pn.Raw = hex.EncodeToString(frame)
	pn.WhitenedRaw = whitenedHex

	pn.MsgIdx = frame[0] & 0x30 >> 4
	if frame[0]&0x0F == 15 {
		pn.Resend = 1
	}

	pn.Card = uint32(frame[5])<<24 | uint32(frame[4])<<16 | uint32(frame[3])<<8 | uint32(frame[2])
	pn.Unit = frame[6]

	// A 16-bit millisecond counter plus an 8-bit overflow count give the
	// elapsed time since the unit powered up. Wraps with the overflow
	// count after about 4.66 hours, a limit of the source protocol.
	subMillis := uint32(frame[7]) | uint32(frame[8])<<8
	elapsed := uint32(frame[9])*65536 + subMillis

	pn.Millis = uint16(elapsed % 1000)
	pn.Seconds = uint16((elapsed - uint32(pn.Millis)) / 1000 % 60)
	pn.Minutes = uint16((elapsed - uint32(pn.Millis)) / 1000 / 60)

	pn.CaptureTime = at
	pn.ChecksumVal = binary.BigEndian.Uint16(frame[crcStart:])
	pn.Integrity = "CRC"

	return
}

// Elapsed returns the reconstructed time since unit power-up.
func (pn Punch) Elapsed() time.Duration {
	return time.Duration(pn.Minutes)*time.Minute +
		time.Duration(pn.Seconds)*time.Second +
		time.Duration(pn.Millis)*time.Millisecond
}

func (pn Punch) MsgType() string {
	return "ePost"
}

func (pn Punch) CardID() uint32 {
	return pn.Card
}

func (pn Punch) UnitID() uint8 {
	return pn.Unit
}

func (pn Punch) Checksum() []byte {
	checksum := make([]byte, 2)
	binary.BigEndian.PutUint16(checksum, pn.ChecksumVal)
	return checksum
}

func (pn Punch) String() string {
	return fmt.Sprintf("{Card:%8d Unit:%3d Time:%dm%d.%03ds Resend:%d MsgIdx:%d CRC:0x%04X}",
		pn.Card, pn.Unit, pn.Minutes, pn.Seconds, pn.Millis, pn.Resend, pn.MsgIdx, pn.ChecksumVal,
	)
}

func (pn Punch) Record() (r []string) {
	r = append(r, pn.Model)
	r = append(r, strconv.FormatUint(uint64(pn.Card), 10))
	r = append(r, strconv.FormatUint(uint64(pn.Unit), 10))
	r = append(r, strconv.FormatUint(uint64(pn.Minutes), 10))
	r = append(r, strconv.FormatUint(uint64(pn.Seconds), 10))
	r = append(r, strconv.FormatUint(uint64(pn.Millis), 10))
	r = append(r, strconv.FormatUint(uint64(pn.Resend), 10))
	r = append(r, pn.CaptureTime.Format(protocol.TimeFormat))
	r = append(r, pn.Raw)
	r = append(r, "0x"+strconv.FormatUint(uint64(pn.ChecksumVal), 16))

	return
}
