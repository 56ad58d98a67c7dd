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
	"bufio"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/kemell/rtlpunch/bitbuf"
	"github.com/kemell/rtlpunch/protocol"

	_ "github.com/kemell/rtlpunch/epost"
)

type Receiver struct {
	d  *protocol.Decoder
	fc protocol.FilterChain
}

func (rcvr *Receiver) NewReceiver() {
	rcvr.d = protocol.NewDecoder()

	p, err := protocol.NewParser(*msgType)
	if err != nil {
		logrus.Fatal(err)
	}
	rcvr.d.RegisterProtocol(p)
	rcvr.d.Log()
}

// Run reads row literals line by line and feeds each as its own bit
// buffer to the decoder. Blank lines and #-comments are skipped.
func (rcvr *Receiver) Run(in *os.File) {
	scanner := bufio.NewScanner(in)
	start := time.Now()

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		buf := bitbuf.New()
		if err := buf.ParseRow(line); err != nil {
			logrus.WithError(err).Warn("unreadable row, skipping")
			continue
		}

		for _, msg := range rcvr.d.Decode(buf) {
			if !rcvr.fc.Match(msg) {
				continue
			}

			logMsg := protocol.LogMessage{
				Time:    time.Now(),
				Type:    msg.MsgType(),
				Message: msg,
			}

			if encoder == nil {
				fmt.Println(logMsg)
				continue
			}
			if err := encoder.Encode(logMsg); err != nil {
				logrus.WithError(err).Fatal("encoding message")
			}
		}
	}
	if err := scanner.Err(); err != nil {
		logrus.WithError(err).Fatal("reading capture")
	}

	logrus.WithFields(rcvr.d.Stats.Fields()).
		WithField("runtime", time.Since(start)).
		Info("capture processed")
}

func openInput(name string) (*os.File, error) {
	if name == "-" {
		return os.Stdin, nil
	}

	f, err := os.Open(name)
	return f, errors.Wrapf(err, "open capture %q", name)
}

func main() {
	flag.Parse()

	var rcvr Receiver
	HandleFlags(&rcvr.fc)

	logrus.SetOutput(os.Stderr)
	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	in, err := openInput(*input)
	if err != nil {
		logrus.Fatal(err)
	}
	defer in.Close()

	rcvr.NewReceiver()
	rcvr.Run(in)
}
