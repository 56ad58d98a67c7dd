/*
RTLPUNCH decodes Emit ePost punch frames from demodulated bit captures.

ePost proximity units transmit FSK PCM frames in the 868MHz SRD band
(CC1101-style framing, 104us symbol period). The demodulating front end
dumps one bit row per transmission; rtlpunch locates the frame marker in
each row, reverses the PN9 data whitening, unpacks the punch fields and
verifies the CRC-16 trailer before emitting a record.

Command-line Flags:

	-input="-"

Capture file to read bit rows from, - for stdin. Each line is either a
bare hex string or an rtl_433-style row literal:

	{148}5aaaad391d391ef4a5d78ec8519cce97b02b6

	-config=""

Optional YAML file supplying defaults for the remaining flags. Explicit
flags always win.

	-msgtype="epost"

Message type to decode. Only epost is registered today; the registry
accepts further parser packages via underscore import.

	-format="plain"

Output format for accepted records: plain, csv or json.

Plain text is formatted using the following format string:

	{Time:%s ePost:{Card:%8d Unit:%3d Time:%dm%d.%03ds Resend:%d MsgIdx:%d CRC:0x%04X}}

	-filterid=0

Display only messages matching the given card number, 0 for no filtering.

	-filterunit=0

Display only messages matching the given unit number, 0 for no filtering.

	-unique=false

Suppress repeated copies of a punch. ePost units resend punches for some
time (about every 512s); resends repeat card, unit and checksum.

	-v=false

Log rejected frames at debug level with their failure kind and a hex dump
of the offending frame.
*/
package main
