package epost

import (
	"encoding/hex"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/xerrors"

	"github.com/kemell/rtlpunch/bitbuf"
	"github.com/kemell/rtlpunch/crc"
	"github.com/kemell/rtlpunch/protocol"
	"github.com/kemell/rtlpunch/whiten"
)

var captureTime = time.Date(2022, time.May, 14, 10, 30, 0, 0, time.UTC)

func newTestParser(t *testing.T) *Parser {
	t.Helper()

	p, err := protocol.NewParser("epost")
	require.NoError(t, err)

	ep, ok := p.(*Parser)
	require.True(t, ok)
	ep.Now = func() time.Time { return captureTime }

	return ep
}

// buildFrame assembles a known plaintext frame, appends its checksum and
// whitens it the way the transmitter would. Field values: message index
// 1, card 123456, unit 42, 1000ms sub-counter with one overflow.
func buildFrame(t *testing.T, frame0 byte) (plain, wire []byte) {
	t.Helper()

	plain = []byte{frame0, 0xAB, 0x40, 0xE2, 0x01, 0x00, 0x2A, 0xE8, 0x03, 0x01}
	cs := crc.NewCRC("DN502", 0xFFFF, 0x8005).Checksum(plain)
	plain = append(plain, byte(cs>>8), byte(cs))

	wire = append([]byte(nil), plain...)
	require.NoError(t, whiten.Apply(wire))

	return plain, wire
}

// rowFor packs four junk bits, the marker and the wire bytes into a
// single bit row, leaving the frame unaligned to byte boundaries.
func rowFor(t *testing.T, wire []byte) *bitbuf.Buffer {
	t.Helper()

	buf := bitbuf.New()
	row := "{148}5" + hex.EncodeToString(marker) + hex.EncodeToString(wire)
	require.NoError(t, buf.ParseRow(row))

	return buf
}

func TestDecode(t *testing.T) {
	p := newTestParser(t)
	plain, wire := buildFrame(t, 0x10)

	msg, err := p.Parse(rowFor(t, wire))
	require.NoError(t, err)

	pn, ok := msg.(Punch)
	require.True(t, ok)

	require.Equal(t, "Emit-ePost", pn.Model)
	require.Equal(t, uint8(1), pn.MsgIdx)
	require.Equal(t, uint8(0), pn.Resend)
	require.Equal(t, uint32(123456), pn.Card)
	require.Equal(t, uint8(42), pn.Unit)

	// 1*65536 + 1000 = 66536ms -> 1m 6s 536ms.
	require.Equal(t, uint16(1), pn.Minutes)
	require.Equal(t, uint16(6), pn.Seconds)
	require.Equal(t, uint16(536), pn.Millis)
	require.Equal(t, 66536*time.Millisecond, pn.Elapsed())

	require.Equal(t, hex.EncodeToString(plain), pn.Raw)
	require.Equal(t, hex.EncodeToString(wire), pn.WhitenedRaw)
	require.Equal(t, captureTime, pn.CaptureTime)
	require.Equal(t, "CRC", pn.Integrity)

	require.Equal(t, uint32(123456), pn.CardID())
	require.Equal(t, uint8(42), pn.UnitID())
	require.Equal(t, []byte{plain[10], plain[11]}, pn.Checksum())
}

func TestDecodeResend(t *testing.T) {
	p := newTestParser(t)
	_, wire := buildFrame(t, 0x1F)

	msg, err := p.Parse(rowFor(t, wire))
	require.NoError(t, err)
	require.Equal(t, uint8(1), msg.(Punch).Resend)
}

func TestDecodeCorruptTrailer(t *testing.T) {
	p := newTestParser(t)
	_, wire := buildFrame(t, 0x10)
	wire[11] ^= 0x01

	msg, err := p.Parse(rowFor(t, wire))
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrIntegrityCheck), "got %v", err)
}

func TestDecodeCorruptPayload(t *testing.T) {
	p := newTestParser(t)
	_, wire := buildFrame(t, 0x10)
	wire[4] ^= 0x80

	msg, err := p.Parse(rowFor(t, wire))
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrIntegrityCheck), "got %v", err)
}

func TestDecodeNoMarker(t *testing.T) {
	p := newTestParser(t)

	buf := bitbuf.New()
	require.NoError(t, buf.ParseRow("{160}0123456789abcdef0123456789abcdef01234567"))

	msg, err := p.Parse(buf)
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrNoPreamble), "got %v", err)
}

func TestDecodeShortRow(t *testing.T) {
	p := newTestParser(t)

	// Marker plus only five payload bytes.
	buf := bitbuf.New()
	require.NoError(t, buf.ParseRow("{88}"+hex.EncodeToString(marker)+"ef4a5d78ec"))

	msg, err := p.Parse(buf)
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrBadLength), "got %v", err)
}

func TestDecodeNoData(t *testing.T) {
	p := newTestParser(t)

	msg, err := p.Parse(bitbuf.New())
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrNoData), "got %v", err)

	msg, err = p.Parse(nil)
	require.Nil(t, msg)
	require.True(t, xerrors.Is(err, protocol.ErrNoData), "got %v", err)
}

func TestUnknownParser(t *testing.T) {
	_, err := protocol.NewParser("scm")
	require.Error(t, err)
}

func TestPacketConfig(t *testing.T) {
	cfg := newTestParser(t).Cfg()
	require.Equal(t, "epost", cfg.Protocol)
	require.Equal(t, 48, len(cfg.Preamble))
	require.Equal(t, PayloadLength*8, cfg.PacketSymbols)
}
