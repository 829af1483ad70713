package protocol

import (
	"encoding/binary"
	"errors"
	"io"
	"math"
)

// headerSize is the two big-endian u32 length fields that start every frame
const headerSize = 8

// Frame is one message on the wire:
//
//	u32 total_len | u32 json_len | json (json_len bytes) | data (total_len - json_len bytes)
//
// Both lengths are big-endian and neither includes the 8 header bytes.
type Frame struct {
	JSON []byte
	Data []byte
}

// TotalLen is the value of the first header field
func (f Frame) TotalLen() int {
	return len(f.JSON) + len(f.Data)
}

// WriteFrame writes the header followed by the JSON text and the data parts.
// Data parts are concatenated in order without copying them into one buffer.
func WriteFrame(w io.Writer, jsonText []byte, data ...[]byte) error {
	total := uint64(len(jsonText))
	for _, part := range data {
		total += uint64(len(part))
	}
	if total > math.MaxUint32 {
		return &ProtocolError{Reason: "frame larger than 4 GiB"}
	}

	var header [headerSize]byte
	binary.BigEndian.PutUint32(header[0:4], uint32(total))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(jsonText)))

	if _, err := w.Write(header[:]); err != nil {
		return ioErr("write frame header", err)
	}
	if _, err := w.Write(jsonText); err != nil {
		return ioErr("write frame json", err)
	}
	for _, part := range data {
		if _, err := w.Write(part); err != nil {
			return ioErr("write frame data", err)
		}
	}
	return nil
}

// ReadFrame reads one frame. maxSize bounds total_len; zero means no bound.
func ReadFrame(r io.Reader, maxSize uint32) (Frame, error) {
	var header [headerSize]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return Frame{}, ioErr("read frame header", shortRead(err))
	}

	total := binary.BigEndian.Uint32(header[0:4])
	jsonLen := binary.BigEndian.Uint32(header[4:8])

	if jsonLen > total {
		return Frame{}, &ProtocolError{Reason: "json length exceeds total length"}
	}
	if maxSize > 0 && total > maxSize {
		return Frame{}, &ProtocolError{Reason: "frame exceeds maximum size"}
	}

	jsonText := make([]byte, jsonLen)
	if _, err := io.ReadFull(r, jsonText); err != nil {
		return Frame{}, ioErr("read frame json", shortRead(err))
	}

	data := make([]byte, total-jsonLen)
	if _, err := io.ReadFull(r, data); err != nil {
		return Frame{}, ioErr("read frame data", shortRead(err))
	}

	return Frame{JSON: jsonText, Data: data}, nil
}

// shortRead reports a stream closed mid-frame as io.ErrUnexpectedEOF
func shortRead(err error) error {
	if errors.Is(err, io.EOF) {
		return io.ErrUnexpectedEOF
	}
	return err
}
