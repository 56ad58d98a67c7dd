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

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/kemell/rtlpunch/csv"
	"github.com/kemell/rtlpunch/protocol"
)

var (
	configFile = flag.String("config", "", "YAML config file, flags override its values")
	input      = flag.String("input", "-", "bit row capture file, one row literal per line, - for stdin")
	msgType    = flag.String("msgtype", "epost", "message type to decode")
	format     = flag.String("format", "plain", "decoded message output format: plain, csv or json")
	filterID   = flag.Uint("filterid", 0, "display only messages matching the given card number")
	filterUnit = flag.Uint("filterunit", 0, "display only messages matching the given unit number")
	unique     = flag.Bool("unique", false, "suppress repeated messages from each card")
	verbose    = flag.Bool("v", false, "log rejected frames and their diagnostics")
)

var encoder Encoder

// JSON and CSV encoders both implement this interface so output
// formatting stays out of the receive loop.
type Encoder interface {
	Encode(interface{}) error
}

// HandleFlags merges the optional config file under explicit flags and
// builds the output encoder and filter chain.
func HandleFlags(fc *protocol.FilterChain) {
	if *configFile != "" {
		cfg, err := LoadConfig(*configFile)
		if err != nil {
			logrus.WithError(err).Fatal("config")
		}

		set := map[string]bool{}
		flag.Visit(func(f *flag.Flag) { set[f.Name] = true })

		if !set["input"] && cfg.Input != "" {
			*input = cfg.Input
		}
		if !set["format"] && cfg.Format != "" {
			*format = cfg.Format
		}
		if !set["msgtype"] && cfg.MsgType != "" {
			*msgType = cfg.MsgType
		}
		if !set["filterid"] {
			*filterID = cfg.FilterID
		}
		if !set["filterunit"] {
			*filterUnit = cfg.FilterUnit
		}
		if !set["unique"] {
			*unique = cfg.Unique || *unique
		}
		if !set["v"] {
			*verbose = cfg.Verbose || *verbose
		}
	}

	switch strings.ToLower(*format) {
	case "plain":
		encoder = nil
	case "csv":
		encoder = csv.NewEncoder(os.Stdout)
	case "json":
		encoder = json.NewEncoder(os.Stdout)
	default:
		logrus.Fatalf("invalid output format: %q", *format)
	}

	if *filterID > 0 {
		fc.Add(CardIDFilter{uint32(*filterID)})
	}
	if *filterUnit > 0 {
		fc.Add(UnitIDFilter{uint8(*filterUnit)})
	}
	if *unique {
		fc.Add(NewUniqueFilter())
	}
}

type CardIDFilter struct {
	id uint32
}

func (f CardIDFilter) Filter(msg protocol.Message) bool {
	return msg.CardID() == f.id
}

type UnitIDFilter struct {
	id uint8
}

func (f UnitIDFilter) Filter(msg protocol.Message) bool {
	return msg.UnitID() == f.id
}

// UniqueFilter passes each distinct message once, keyed by card, unit and
// checksum. Resends of the same punch repeat all three.
type UniqueFilter struct {
	seen map[string]bool
}

func NewUniqueFilter() *UniqueFilter {
	return &UniqueFilter{seen: make(map[string]bool)}
}

func (f *UniqueFilter) Filter(msg protocol.Message) bool {
	key := fmt.Sprintf("%d/%d/%X", msg.CardID(), msg.UnitID(), msg.Checksum())
	if f.seen[key] {
		return false
	}
	f.seen[key] = true
	return true
}
