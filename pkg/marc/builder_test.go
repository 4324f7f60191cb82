package marc

import (
	"bytes"
	"fmt"
	"io"
	"testing"
)

// wireField describes one field to bake into a hand-built ISO 2709 record
// for Reader tests.
type wireField struct {
	tag  string
	data []byte // control-field value, or indicators+subfields for data fields
}

// buildTestRecord assembles a single valid ISO 2709 logical record
// containing a 001 control field and a 245 data field, for exercising
// Reader end-to-end.
func buildTestRecord(t *testing.T) []byte {
	t.Helper()

	fields := []wireField{
		{tag: recordIDTag, data: []byte("rt-0001")},
		{tag: "245", data: append([]byte{' ', ' ', subfieldDelim, 'a'}, []byte("A Title")...)},
	}

	var data bytes.Buffer
	var directory bytes.Buffer
	offset := 0
	for _, f := range fields {
		body := append(append([]byte{}, f.data...), fieldTerminator)
		directory.WriteString(fmt.Sprintf("%s%04d%05d", f.tag, len(body), offset))
		data.Write(body)
		offset += len(body)
	}
	data.WriteByte(recordTerminator)
	directory.WriteByte(fieldTerminator)

	baseAddr := 24 + directory.Len()
	recLen := baseAddr + data.Len()

	leader := make([]byte, 24)
	copy(leader[0:5], []byte(fmt.Sprintf("%05d", recLen)))
	copy(leader[5:12], []byte("nam a22"))
	copy(leader[12:17], []byte(fmt.Sprintf("%05d", baseAddr)))
	copy(leader[17:24], []byte(" i 450 "))

	var full bytes.Buffer
	full.Write(leader)
	full.Write(directory.Bytes())
	full.Write(data.Bytes())
	return full.Bytes()
}

func bytesReader(b []byte) io.Reader { return bytes.NewReader(b) }

func errEOFSentinel() error { return io.EOF }
