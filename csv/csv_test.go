package csv

import (
	"bytes"
	"runtime"
	"testing"

	"golang.org/x/xerrors"
)

type record []string

func (r record) Record() []string { return r }

func TestEncode(t *testing.T) {
	var buf bytes.Buffer
	enc := NewEncoder(&buf)

	if err := enc.Encode(record{"a", "b", "c"}); err != nil {
		t.Fatal(err)
	}

	if got := buf.String(); got != "a,b,c\n" {
		t.Fatalf("got %q, want %q", got, "a,b,c\n")
	}
}

func TestEncodeNonRecorder(t *testing.T) {
	enc := NewEncoder(new(bytes.Buffer))

	err := enc.Encode(42)
	if err == nil {
		t.Fatal("expected error encoding non-Recorder value")
	}

	var runtimeErr runtime.Error
	if !xerrors.As(err, &runtimeErr) {
		t.Fatalf("expected recovered runtime error, got: %v", err)
	}
}
