package core

import (
	"muxscan/protocol"
)

// identifyChunkMax keeps an identify_response inside one message block.
const identifyChunkMax = 40

var (
	globalTransport *protocol.Transport
	dictionary      []byte
)

// InitCoreCommands registers the commands every build carries.
// identify and identify_response take IDs 1 and 0 so a host can bootstrap
// before it has the dictionary.
func InitCoreCommands() {
	RegisterResponse("identify_response", "offset=%u data=%*s")
	RegisterCommand("identify", "offset=%u count=%c", handleIdentify)

	RegisterCommand("get_clock", "", handleGetClock)
	RegisterResponse("clock", "clock=%u")
	RegisterCommand("config_reset", "", handleConfigReset)
}

// BuildDictionary snapshots the registry. Call once after every command is
// registered and before the transport starts.
func BuildDictionary() {
	dictionary = []byte(globalRegistry.Dictionary())
}

// DictionaryChunk returns up to count bytes of the dictionary at offset.
func DictionaryChunk(offset uint32, count uint8) []byte {
	if offset >= uint32(len(dictionary)) {
		return nil
	}
	end := min(offset+uint32(count), uint32(len(dictionary)))
	return dictionary[offset:end]
}

// handleIdentify: identify offset=%u count=%c
func handleIdentify(data *[]byte) error {
	offset, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	count, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}

	chunk := DictionaryChunk(offset, uint8(min(count, identifyChunkMax)))
	SendResponse("identify_response", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, offset)
		protocol.EncodeVLQBytes(output, chunk)
	})
	return nil
}

// handleGetClock: get_clock
func handleGetClock(data *[]byte) error {
	SendResponse("clock", func(output protocol.OutputBuffer) {
		protocol.EncodeVLQUint(output, GetTime())
	})
	return nil
}

// handleConfigReset: config_reset
func handleConfigReset(data *[]byte) error {
	ResetFirmwareState()
	return nil
}

// ResetFirmwareState stops scanning and forgets every configured object.
func ResetFirmwareState() {
	ShutdownAllAnalogMux()
	clearAnalogMuxes()
}

// SetGlobalTransport sets the transport responses are framed through
func SetGlobalTransport(t *protocol.Transport) {
	globalTransport = t
}

// SendResponse frames a registered response. Sending an unregistered
// response is a programming error and panics.
func SendResponse(name string, args func(output protocol.OutputBuffer)) {
	if globalTransport == nil {
		return
	}
	cmd, ok := globalRegistry.GetCommandByName(name)
	if !ok {
		panic("response not registered: " + name)
	}
	globalTransport.SendCommand(cmd.ID, args)
}
