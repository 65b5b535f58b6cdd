// Package mcu is the host side of the scanner protocol: it frames commands
// using the firmware dictionary and decodes the responses.
package mcu

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/pkg/errors"

	"muxscan/host/serial"
	"muxscan/protocol"
)

const (
	identifyChunk   = 40
	identifyTimeout = time.Second
)

var (
	ErrNoDictionary   = errors.New("dictionary not loaded")
	ErrUnknownCommand = errors.New("command not in dictionary")
	ErrArgCount       = errors.New("argument count does not match format")
	ErrArgType        = errors.New("argument type does not match format")
)

// Message is one decoded response. Integer parameters land in Args, byte
// parameters in Data.
type Message struct {
	ID   uint16
	Name string
	Args map[string]uint32
	Data map[string][]byte
}

// MCU is a connection to the scanner firmware.
type MCU struct {
	port io.ReadWriteCloser
	log  *slog.Logger

	wmu sync.Mutex
	seq uint8

	rbuf    []byte
	pending []Message

	dict    *Dictionary
	rawDict []byte
}

// Option configures an MCU.
type Option func(*MCU)

// WithLogger sets the logger. The default is slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(m *MCU) { m.log = l }
}

// New wraps an open byte stream.
func New(port io.ReadWriteCloser, opts ...Option) *MCU {
	m := &MCU{
		port: port,
		log:  slog.Default(),
		dict: bootstrapDictionary(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Connect opens a serial port and wraps it.
func Connect(cfg *serial.Config, opts ...Option) (*MCU, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return New(port, opts...), nil
}

// Close closes the underlying port.
func (m *MCU) Close() error {
	return m.port.Close()
}

// Dictionary returns the current dictionary.
func (m *MCU) Dictionary() *Dictionary {
	return m.dict
}

// RawDictionary returns the dictionary text as retrieved.
func (m *MCU) RawDictionary() []byte {
	return m.rawDict
}

// RetrieveDictionary fetches the dictionary in identify chunks.
func (m *MCU) RetrieveDictionary(ctx context.Context) error {
	var raw []byte
	for {
		cctx, cancel := context.WithTimeout(ctx, identifyTimeout)
		chunk, err := m.identify(cctx, uint32(len(raw)))
		cancel()
		if err != nil {
			return errors.Wrapf(err, "identify at offset %d", len(raw))
		}
		raw = append(raw, chunk...)
		if len(chunk) < identifyChunk {
			break
		}
	}

	dict, err := ParseDictionary(raw)
	if err != nil {
		return errors.Wrap(err, "parse dictionary")
	}
	m.dict = dict
	m.rawDict = raw
	m.log.Debug("dictionary retrieved", "bytes", len(raw), "entries", dict.Len())
	return nil
}

func (m *MCU) identify(ctx context.Context, offset uint32) ([]byte, error) {
	if err := m.SendCommand("identify", offset, uint32(identifyChunk)); err != nil {
		return nil, err
	}
	for {
		msg, err := m.ReadMessage(ctx)
		if err != nil {
			return nil, err
		}
		if msg.Name != "identify_response" {
			continue
		}
		if msg.Args["offset"] != offset {
			return nil, errors.Errorf("identify offset %d, want %d", msg.Args["offset"], offset)
		}
		return msg.Data["data"], nil
	}
}

// SendCommand encodes a command by name. Integer parameters take uint32,
// int, uint8 or uint16 values; byte parameters take []byte or string.
func (m *MCU) SendCommand(name string, args ...any) error {
	e, ok := m.dict.Lookup(name)
	if !ok {
		return errors.Wrap(ErrUnknownCommand, name)
	}
	if len(args) != len(e.Params) {
		return errors.Wrapf(ErrArgCount, "%s: got %d, want %d", name, len(args), len(e.Params))
	}

	out := protocol.NewScratchOutput()
	protocol.EncodeVLQUint(out, uint32(e.ID))
	for i, p := range e.Params {
		if err := encodeArg(out, p, args[i]); err != nil {
			return errors.Wrapf(err, "%s %s", name, p.Name)
		}
	}
	return m.sendBlock(out.Result())
}

func encodeArg(out protocol.OutputBuffer, p Param, arg any) error {
	if p.Kind == ParamBytes {
		switch v := arg.(type) {
		case []byte:
			protocol.EncodeVLQBytes(out, v)
		case string:
			protocol.EncodeVLQString(out, v)
		default:
			return ErrArgType
		}
		return nil
	}

	switch v := arg.(type) {
	case uint32:
		protocol.EncodeVLQUint(out, v)
	case uint16:
		protocol.EncodeVLQUint(out, uint32(v))
	case uint8:
		protocol.EncodeVLQUint(out, uint32(v))
	case int:
		protocol.EncodeVLQInt(out, int32(v))
	case int32:
		protocol.EncodeVLQInt(out, v)
	default:
		return ErrArgType
	}
	return nil
}

func (m *MCU) sendBlock(payload []byte) error {
	m.wmu.Lock()
	defer m.wmu.Unlock()

	block, err := protocol.AppendFrame(nil, m.seq, payload)
	if err != nil {
		return errors.Wrap(err, "frame command")
	}
	m.seq = (m.seq + 1) & protocol.MessageSeqMask

	if _, err := m.port.Write(block); err != nil {
		return errors.Wrap(err, "write")
	}
	return nil
}

// ReadMessage returns the next response. ACK blocks are consumed silently.
// A port read timeout is retried until ctx is done.
func (m *MCU) ReadMessage(ctx context.Context) (Message, error) {
	var buf [256]byte
	for {
		if len(m.pending) > 0 {
			msg := m.pending[0]
			m.pending = m.pending[1:]
			return msg, nil
		}
		if err := ctx.Err(); err != nil {
			return Message{}, err
		}

		if m.parseBuffered() {
			continue
		}

		n, err := m.port.Read(buf[:])
		m.rbuf = append(m.rbuf, buf[:n]...)
		if err != nil && err != io.EOF {
			return Message{}, errors.Wrap(err, "read")
		}
	}
}

// parseBuffered decodes every complete block in rbuf. It reports whether
// any bytes were consumed.
func (m *MCU) parseBuffered() bool {
	consumed := false
	for len(m.rbuf) > 0 {
		frame, rest, err := protocol.ParseFrame(m.rbuf)
		if err == protocol.ErrIncomplete {
			if len(rest) != len(m.rbuf) {
				consumed = true
			}
			m.rbuf = rest
			break
		}
		consumed = true
		if err != nil {
			m.log.Debug("dropping corrupt block", "err", err)
			m.rbuf = protocol.Resync(m.rbuf)
			continue
		}
		m.rbuf = rest
		m.decodePayload(frame.Payload)
	}
	if len(m.rbuf) == 0 {
		m.rbuf = nil
	}
	return consumed && len(m.pending) > 0
}

func (m *MCU) decodePayload(payload []byte) {
	for len(payload) > 0 {
		id, err := protocol.DecodeVLQUint(&payload)
		if err != nil {
			m.log.Debug("bad message id", "err", err)
			return
		}
		e, ok := m.dict.ByID(uint16(id))
		if !ok {
			// Unknown arguments cannot be skipped; drop the rest of the block.
			m.log.Debug("unknown message id", "id", id)
			return
		}

		msg := Message{ID: e.ID, Name: e.Name, Args: map[string]uint32{}}
		for _, p := range e.Params {
			if p.Kind == ParamBytes {
				b, err := protocol.DecodeVLQBytes(&payload)
				if err != nil {
					m.log.Debug("truncated message", "name", e.Name, "err", err)
					return
				}
				if msg.Data == nil {
					msg.Data = map[string][]byte{}
				}
				msg.Data[p.Name] = append([]byte(nil), b...)
				continue
			}
			v, err := protocol.DecodeVLQUint(&payload)
			if err != nil {
				m.log.Debug("truncated message", "name", e.Name, "err", err)
				return
			}
			msg.Args[p.Name] = v
		}
		m.pending = append(m.pending, msg)
	}
}

// Handler is called for every response Run receives.
type Handler func(Message) error

// Run reads responses until ctx is done or handler fails. Cancelling ctx
// closes the port so a blocked read returns.
func (m *MCU) Run(ctx context.Context, handler Handler) error {
	stop := context.AfterFunc(ctx, func() { _ = m.port.Close() })
	defer stop()

	for {
		msg, err := m.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return err
		}
		if err := handler(msg); err != nil {
			return err
		}
	}
}
