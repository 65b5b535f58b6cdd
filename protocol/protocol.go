// Package protocol implements the framed VLQ protocol spoken between the
// multiplexer firmware and the host monitor.
//
// A message block on the wire is
//
//	[len][seq] payload... [crc_hi][crc_lo][0x7E]
//
// where len counts the whole block, seq carries 0x10 in the high nibble and a
// 4-bit sequence number in the low nibble, and the CRC covers len, seq and the
// payload. The payload is a run of commands, each a VLQ command ID followed by
// its VLQ-encoded arguments.
package protocol

import "errors"

// Version of the firmware/host protocol.
const Version = "0.1.0"

// Framing constants
const (
	MessageHeaderSize  = 2
	MessageTrailerSize = 3
	MessageLengthMin   = MessageHeaderSize + MessageTrailerSize
	MessageLengthMax   = 64
	MessagePayloadMax  = MessageLengthMax - MessageLengthMin
	MessagePositionLen = 0
	MessagePositionSeq = 1
	MessageTrailerCRC  = 3
	MessageTrailerSync = 1
	MessageValueSync   = 0x7E
	MessageDest        = 0x10
	MessageSeqMask     = 0x0F

	// MessageMax is the size of the device output scratch buffer. Several
	// blocks (ACK plus responses) may queue between USB flushes.
	MessageMax = 512
)

var (
	ErrFrameLength = errors.New("frame length out of range")
	ErrFrameSync   = errors.New("frame missing sync byte")
	ErrFrameCRC    = errors.New("frame crc mismatch")
	ErrFrameDest   = errors.New("frame sequence byte lacks destination bits")
	ErrIncomplete  = errors.New("incomplete frame")
)

// Frame is one decoded message block.
type Frame struct {
	Sequence uint8
	Payload  []byte
}

// AppendFrame appends an encoded block carrying payload to dst.
// seq is masked to 4 bits and tagged with MessageDest.
func AppendFrame(dst []byte, seq uint8, payload []byte) ([]byte, error) {
	n := len(payload) + MessageLengthMin
	if n > MessageLengthMax {
		return dst, ErrFrameLength
	}
	start := len(dst)
	dst = append(dst, byte(n), MessageDest|(seq&MessageSeqMask))
	dst = append(dst, payload...)
	crc := CRC16(dst[start:])
	return append(dst, byte(crc>>8), byte(crc), MessageValueSync), nil
}

// ParseFrame decodes the block at the start of data. Leading sync bytes are
// skipped. It returns the frame and the bytes after it. ErrIncomplete means
// more data is needed; any other error means the caller should drop bytes up
// to the next sync byte (see Resync).
func ParseFrame(data []byte) (Frame, []byte, error) {
	for len(data) > 0 && data[0] == MessageValueSync {
		data = data[1:]
	}
	if len(data) < MessageLengthMin {
		return Frame{}, data, ErrIncomplete
	}

	msgLen := int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return Frame{}, data, ErrFrameLength
	}
	seq := data[MessagePositionSeq]
	if seq&^MessageSeqMask != MessageDest {
		return Frame{}, data, ErrFrameDest
	}
	if len(data) < msgLen {
		return Frame{}, data, ErrIncomplete
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return Frame{}, data, ErrFrameSync
	}

	want := uint16(data[msgLen-MessageTrailerCRC])<<8 | uint16(data[msgLen-MessageTrailerCRC+1])
	if CRC16(data[:msgLen-MessageTrailerSize]) != want {
		return Frame{}, data, ErrFrameCRC
	}

	frame := Frame{
		Sequence: seq & MessageSeqMask,
		Payload:  data[MessageHeaderSize : msgLen-MessageTrailerSize],
	}
	return frame, data[msgLen:], nil
}

// Resync drops data up to and including the next sync byte.
func Resync(data []byte) []byte {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:]
		}
	}
	return nil
}
