package canlink

// Framed binary protocol spoken over the gateway's data characteristics.
// Frames are byte-stuffed so that 0x00 appears on the wire only as the frame
// delimiter. A code byte packs two counts:
//
//	bits 0-5: literal bytes that follow (1..63)
//	bits 6-7: zero bytes to re-emit after the literals (0..3)
//
// The encoder only ever emits pure forms: 0x01..0x3F for a literal run and
// 0x40/0x80/0xC0 for a zero run. The decoder accepts the combined form. The
// unstuffed content is payload + CRC8 trailer.

import (
	"bytes"
	"errors"
	"fmt"
)

// FrameDelimiter terminates every frame. The write path also emits one ahead
// of the frame so a receiver mid-stream resynchronizes before the body.
const FrameDelimiter = 0x00

const (
	maxDataBytes = 63   // widest literal run one code byte can declare
	zeroRunShift = 6    // zero-run count lives in the top two code bits
	maxZeroRun   = 3    // 0xC0 = 192 = 255 - 63, the largest zero-run code
	maxFrameSize = 1024 // deframer buffer cap; gateway frames are far smaller
)

var (
	ErrFrameTooShort    = errors.New("canlink: frame too short")
	ErrChecksumMismatch = errors.New("canlink: checksum mismatch")
	ErrTruncatedGroup   = errors.New("canlink: truncated literal group")
	ErrInvalidCode      = errors.New("canlink: invalid code byte")
	ErrEmptyPayload     = errors.New("canlink: empty payload")
	ErrFrameOverflow    = errors.New("canlink: frame exceeds buffer")
)

// EncodeFrame stuffs payload plus its CRC8 trailer and appends the
// terminating delimiter. Encoding an empty payload is a programming error.
func EncodeFrame(payload []byte) ([]byte, error) {
	if len(payload) == 0 {
		return nil, ErrEmptyPayload
	}

	crc := NewCrc8()
	crc.Update(payload)

	// The CRC is stuffed as one trailing input byte.
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, payload...)
	buf = append(buf, crc.Sum())

	out := make([]byte, 0, len(buf)+len(buf)/maxDataBytes+2)
	for i := 0; i < len(buf); {
		if buf[i] != 0 {
			j := i
			for j < len(buf) && buf[j] != 0 && j-i < maxDataBytes {
				j++
			}
			out = append(out, byte(j-i))
			out = append(out, buf[i:j]...)
			i = j
			continue
		}
		run := 0
		for i < len(buf) && buf[i] == 0 && run < maxZeroRun {
			i++
			run++
		}
		out = append(out, byte(run<<zeroRunShift))
	}
	return append(out, FrameDelimiter), nil
}

// DecodeFrame unstuffs a frame, verifies and strips the CRC8 trailer, and
// returns the payload. Leading delimiters are skipped and the terminating
// delimiter is optional, so both raw deframer segments and complete encoded
// frames decode.
func DecodeFrame(frame []byte) ([]byte, error) {
	i := 0
	for i < len(frame) && frame[i] == FrameDelimiter {
		i++
	}

	decoded := make([]byte, 0, len(frame))
	for i < len(frame) {
		code := frame[i]
		i++
		if code == FrameDelimiter {
			break
		}
		literals := int(code & maxDataBytes)
		zeros := int(code >> zeroRunShift)
		if i+literals > len(frame) {
			return nil, fmt.Errorf("%w: code declares %d literal bytes, %d remain", ErrTruncatedGroup, literals, len(frame)-i)
		}
		for k := 0; k < literals; k++ {
			if frame[i+k] == FrameDelimiter {
				return nil, fmt.Errorf("%w: delimiter inside %d-byte literal group", ErrInvalidCode, literals)
			}
		}
		decoded = append(decoded, frame[i:i+literals]...)
		i += literals
		for k := 0; k < zeros; k++ {
			decoded = append(decoded, 0x00)
		}
	}

	if len(decoded) < 2 {
		return nil, fmt.Errorf("%w: %d bytes after unstuffing", ErrFrameTooShort, len(decoded))
	}
	payload, trailer := decoded[:len(decoded)-1], decoded[len(decoded)-1]
	if want := Checksum(payload); trailer != want {
		return nil, fmt.Errorf("%w: got 0x%02X, want 0x%02X", ErrChecksumMismatch, trailer, want)
	}
	return payload, nil
}

// Deframer reassembles notification chunks into complete frame bodies.
// BLE notifications carry arbitrary slices of the stream; frames end at the
// delimiter, which never occurs inside a stuffed body.
type Deframer struct {
	buf []byte
}

// Push appends a chunk and returns the bodies of all frames completed by it,
// delimiters stripped. Empty segments (leading or keepalive delimiters) are
// skipped. If the residue grows past maxFrameSize without a delimiter the
// buffer is dropped and an error reported alongside any complete frames.
func (d *Deframer) Push(chunk []byte) ([][]byte, error) {
	d.buf = append(d.buf, chunk...)

	var frames [][]byte
	for {
		idx := bytes.IndexByte(d.buf, FrameDelimiter)
		if idx < 0 {
			break
		}
		if idx > 0 {
			body := make([]byte, idx)
			copy(body, d.buf[:idx])
			frames = append(frames, body)
		}
		d.buf = d.buf[idx+1:]
	}

	if len(d.buf) > maxFrameSize {
		n := len(d.buf)
		d.buf = nil
		return frames, fmt.Errorf("%w: %d bytes buffered without delimiter", ErrFrameOverflow, n)
	}
	// Compact so the residue does not pin the chunk backing array.
	if len(d.buf) > 0 {
		d.buf = append([]byte(nil), d.buf...)
	} else {
		d.buf = nil
	}
	return frames, nil
}

// Reset discards any buffered residue.
func (d *Deframer) Reset() {
	d.buf = nil
}
