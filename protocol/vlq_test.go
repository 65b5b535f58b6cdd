package protocol

import (
	"bytes"
	"testing"
)

func TestVLQRoundTripInt(t *testing.T) {
	values := []int32{0, 1, -1, 31, -32, 95, 96, -33, 127, -128, 1000, -1000, 65535, -65535, 1 << 26, -(1 << 26) - 1, 2147483647, -2147483648}

	for _, want := range values {
		out := NewScratchOutput()
		EncodeVLQInt(out, want)
		encoded := out.Result()

		data := encoded
		got, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", want, err)
			continue
		}
		if got != want {
			t.Errorf("expected %d, got %d (encoded %v)", want, got, encoded)
		}
		if len(data) != 0 {
			t.Errorf("value %d left %d bytes unconsumed", want, len(data))
		}
	}
}

func TestVLQUintFullRange(t *testing.T) {
	for _, want := range []uint32{0, 4095, 65535, 1000000, 0xFFFFFFFF} {
		out := NewScratchOutput()
		EncodeVLQUint(out, want)
		data := out.Result()
		got, err := DecodeVLQUint(&data)
		if err != nil || got != want {
			t.Errorf("expected %d, got %d (err %v)", want, got, err)
		}
	}
}

func TestVLQEncodedLength(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{95, 1},
		{-32, 1},
		{96, 2},
		{-33, 2},
		{12287, 2},
		{12288, 3},
		{1 << 20, 3},
		{1 << 25, 4},
		{1 << 30, 5},
	}

	for _, tc := range testCases {
		out := NewScratchOutput()
		EncodeVLQInt(out, tc.value)
		if n := len(out.Result()); n != tc.size {
			t.Errorf("value %d: expected %d bytes, got %d", tc.value, tc.size, n)
		}
	}
}

func TestVLQDecodeErrors(t *testing.T) {
	empty := []byte{}
	if _, err := DecodeVLQInt(&empty); err != ErrBufferTooSmall {
		t.Errorf("empty input: expected ErrBufferTooSmall, got %v", err)
	}

	truncated := []byte{0x81}
	if _, err := DecodeVLQInt(&truncated); err != ErrBufferTooSmall {
		t.Errorf("truncated input: expected ErrBufferTooSmall, got %v", err)
	}
	if len(truncated) != 1 {
		t.Errorf("failed decode must not consume input")
	}

	tooLong := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&tooLong); err != ErrInvalidVLQ {
		t.Errorf("six groups: expected ErrInvalidVLQ, got %v", err)
	}
}

func TestVLQBytesAndStrings(t *testing.T) {
	out := NewScratchOutput()
	EncodeVLQBytes(out, []byte{1, 2, 3})
	EncodeVLQString(out, "analog_mux_state")
	EncodeVLQBytes(out, nil)
	data := out.Result()

	b, err := DecodeVLQBytes(&data)
	if err != nil || !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("bytes: got %v, %v", b, err)
	}
	s, err := DecodeVLQString(&data)
	if err != nil || s != "analog_mux_state" {
		t.Errorf("string: got %q, %v", s, err)
	}
	b, err = DecodeVLQBytes(&data)
	if err != nil || len(b) != 0 {
		t.Errorf("empty bytes: got %v, %v", b, err)
	}
	if len(data) != 0 {
		t.Errorf("expected all input consumed, %d bytes left", len(data))
	}

	short := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&short); err != ErrBufferTooSmall {
		t.Errorf("short payload: expected ErrBufferTooSmall, got %v", err)
	}
}
