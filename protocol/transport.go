package protocol

import "sync/atomic"

// CommandHandler handles one decoded command. It must consume its own
// arguments from data.
type CommandHandler func(cmdID uint16, data *[]byte) error

// Transport is the device side of the framing: it validates incoming blocks,
// tracks the host sequence, acknowledges every block and frames responses.
type Transport struct {
	synced  atomic.Bool
	nextSeq atomic.Uint32 // expected host sequence, 0x10..0x1F

	output  OutputBuffer
	handler CommandHandler

	onReset func()
	onFlush func()
}

// NewTransport creates a transport writing to output and dispatching decoded
// commands to handler.
func NewTransport(output OutputBuffer, handler CommandHandler) *Transport {
	t := &Transport{output: output, handler: handler}
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	return t
}

// Receive consumes complete blocks from input. Partial blocks stay buffered.
func (t *Transport) Receive(input InputBuffer) {
	data := input.Data()
	total := len(data)

	for len(data) > 0 {
		if !t.synced.Load() {
			data = Resync(data)
			if data == nil {
				break
			}
			t.synced.Store(true)
			t.sendAck()
			continue
		}

		frame, rest, err := ParseFrame(data)
		if err == ErrIncomplete {
			data = rest
			break
		}
		if err != nil {
			t.synced.Store(false)
			continue
		}
		data = rest
		t.handleFrame(frame)
	}

	input.Pop(total - len(data))
}

func (t *Transport) handleFrame(frame Frame) {
	seq := frame.Sequence | MessageDest
	expected := uint8(t.nextSeq.Load())

	// A block carrying the initial sequence means the host restarted.
	if seq == MessageDest && expected != MessageDest {
		t.nextSeq.Store(MessageDest)
		expected = MessageDest
		if t.onReset != nil {
			t.onReset()
		}
	}

	if seq == expected {
		t.nextSeq.Store(uint32(((seq + 1) & MessageSeqMask) | MessageDest))
		_ = t.dispatch(frame.Payload)
	}
	// Out-of-sequence blocks still get an ACK; it doubles as a NAK carrying
	// the sequence we want.
	t.sendAck()
}

func (t *Transport) dispatch(payload []byte) (err error) {
	defer func() {
		if r := recover(); r != nil {
			t.synced.Store(false)
		}
	}()

	for len(payload) > 0 {
		cmdID, err := DecodeVLQUint(&payload)
		if err != nil {
			t.synced.Store(false)
			return err
		}
		if t.handler == nil {
			continue
		}
		if err := t.handler(uint16(cmdID), &payload); err != nil {
			// Arguments of the failed command are unconsumed; the rest of
			// the block cannot be trusted.
			return err
		}
	}
	return nil
}

func (t *Transport) sendAck() {
	frame, _ := AppendFrame(nil, uint8(t.nextSeq.Load()), nil)
	t.output.Output(frame)
	if t.onFlush != nil {
		t.onFlush()
	}
}

// EncodeFrame writes one block whose payload is produced by body.
func (t *Transport) EncodeFrame(body func(output OutputBuffer)) {
	start := t.output.CurPosition()
	t.output.Output([]byte{0, uint8(t.nextSeq.Load())})
	body(t.output)

	n := len(t.output.DataSince(start)) + MessageTrailerSize
	t.output.Update(start, uint8(n))

	crc := CRC16(t.output.DataSince(start))
	t.output.Output([]byte{byte(crc >> 8), byte(crc), MessageValueSync})
}

// SendCommand frames a command (or response) with its arguments.
func (t *Transport) SendCommand(cmdID uint16, args func(output OutputBuffer)) {
	t.EncodeFrame(func(output OutputBuffer) {
		EncodeVLQUint(output, uint32(cmdID))
		if args != nil {
			args(output)
		}
	})
}

// Reset returns the transport to its power-on state.
func (t *Transport) Reset() {
	t.synced.Store(true)
	t.nextSeq.Store(MessageDest)
	if t.onReset != nil {
		t.onReset()
	}
}

// SetResetCallback registers a callback run when a host restart is detected.
func (t *Transport) SetResetCallback(cb func()) { t.onReset = cb }

// SetFlushCallback registers a callback that pushes output to the wire
// right after an ACK is queued.
func (t *Transport) SetFlushCallback(cb func()) { t.onFlush = cb }
