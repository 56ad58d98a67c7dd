package protocol

import (
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/kemell/rtlpunch/bitbuf"
	"github.com/kemell/rtlpunch/csv"
)

const (
	TimeFormat = "2006-01-02T15:04:05.000"
)

var (
	parserMutex sync.Mutex
	parsers     = make(map[string]NewParserFunc)
)

type NewParserFunc func() Parser

// Given a name and a parser, register a parser for use. Later used by
// underscore importing each parser package:
//
//	import _ "github.com/kemell/rtlpunch/epost"
func RegisterParser(name string, parserFn NewParserFunc) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn == nil {
		panic("parser: new parser func is nil")
	}
	if _, dup := parsers[name]; dup {
		panic(fmt.Sprintf("parser: parser already registered (%s)", name))
	}
	parsers[name] = parserFn
}

// Given a name, lookup the parser and make a new one.
func NewParser(name string) (Parser, error) {
	parserMutex.Lock()
	defer parserMutex.Unlock()

	if parserFn, exists := parsers[name]; exists {
		return parserFn(), nil
	}
	return nil, fmt.Errorf("invalid message type: %q", name)
}

// PacketConfig carries the radio metadata a parser registers under. The
// demodulating front end uses it to tune and clock the capture; the
// decoder core only reads Preamble and PacketSymbols.
type PacketConfig struct {
	Protocol   string
	Modulation string

	CenterFreq   uint32
	SymbolPeriod int // microseconds per bit

	Preamble      string // preamble + sync word as a bit string
	PacketSymbols int    // payload bits following the sync word
}

// A Parser decodes frames of one protocol out of a bit buffer.
type Parser interface {
	Parse(*bitbuf.Buffer) (Message, error)
	Cfg() PacketConfig
}

type Message interface {
	csv.Recorder
	MsgType() string
	CardID() uint32
	UnitID() uint8
	Checksum() []byte
}

// A LogMessage associates a message with the moment its row was handed to
// the decoder.
type LogMessage struct {
	Time time.Time `json:"time"`
	Type string    `json:"type"`
	Message
}

func (msg LogMessage) String() string {
	return fmt.Sprintf("{Time:%s %s:%s}", msg.Time.Format(TimeFormat), msg.MsgType(), msg.Message)
}

func (msg LogMessage) Record() (r []string) {
	r = append(r, msg.Time.Format(time.RFC3339Nano))
	r = append(r, msg.Message.Record()...)
	return r
}

// A FilterChain takes a list of filters and applies them iteratively to
// messages sent through the chain.
type FilterChain []MessageFilter

func (fc *FilterChain) Add(filter MessageFilter) {
	*fc = append(*fc, filter)
}

func (fc FilterChain) Match(msg Message) bool {
	if len(fc) == 0 {
		return true
	}

	for _, filter := range fc {
		if !filter.Filter(msg) {
			return false
		}
	}

	return true
}

type MessageFilter interface {
	Filter(Message) bool
}

// Stats counts decode outcomes by kind for end-of-run reporting.
type Stats struct {
	Accepted int

	NoData        int
	NoPreamble    int
	BadLength     int
	SanityFail    int
	IntegrityFail int
}

func (s *Stats) count(err error) {
	switch {
	case xerrors.Is(err, ErrNoData):
		s.NoData++
	case xerrors.Is(err, ErrNoPreamble):
		s.NoPreamble++
	case xerrors.Is(err, ErrBadLength):
		s.BadLength++
	case xerrors.Is(err, ErrSanityCheck):
		s.SanityFail++
	case xerrors.Is(err, ErrIntegrityCheck):
		s.IntegrityFail++
	}
}

func (s Stats) Fields() logrus.Fields {
	return logrus.Fields{
		"accepted":    s.Accepted,
		"no_data":     s.NoData,
		"no_preamble": s.NoPreamble,
		"bad_length":  s.BadLength,
		"sanity":      s.SanityFail,
		"integrity":   s.IntegrityFail,
	}
}

// Decoder fans a bit buffer out to each registered parser and collects
// accepted messages. Constants shared between invocations are read-only,
// so distinct Decoders may run concurrently; a single Decoder's Stats are
// not synchronized.
type Decoder struct {
	parsers []Parser

	Stats Stats
}

func NewDecoder() *Decoder {
	return &Decoder{}
}

// Using a single decoder, register protocols to pass incoming bit buffers
// to.
func (d *Decoder) RegisterProtocol(p Parser) {
	d.parsers = append(d.parsers, p)
}

func (d *Decoder) Log() {
	for _, p := range d.parsers {
		cfg := p.Cfg()
		logrus.WithFields(logrus.Fields{
			"protocol":      cfg.Protocol,
			"modulation":    cfg.Modulation,
			"centerfreq":    cfg.CenterFreq,
			"symbolperiod":  cfg.SymbolPeriod,
			"packetsymbols": cfg.PacketSymbols,
			"preamble":      cfg.Preamble,
		}).Info("registered protocol")
	}
}

// Decode runs every registered parser over the buffer. Failures are
// tallied and logged at debug level; only validated messages are
// returned.
func (d *Decoder) Decode(buf *bitbuf.Buffer) (msgs []Message) {
	for _, p := range d.parsers {
		msg, err := p.Parse(buf)
		if err != nil {
			d.Stats.count(err)
			logrus.WithField("protocol", p.Cfg().Protocol).Debug(err)
			continue
		}

		d.Stats.Accepted++
		msgs = append(msgs, msg)
	}

	return
}
