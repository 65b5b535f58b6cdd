package linux

// MCP3008 single-ended conversion: start bit, then SGL=1 and the channel in
// the top nibble of the second byte. The 10-bit result straddles the last
// two reply bytes.
func mcp3008Request(ch uint8) [3]byte {
	return [3]byte{0x01, (0x08 | ch&0x07) << 4, 0x00}
}

func mcp3008Value(rx [3]byte) uint16 {
	return uint16(rx[1]&0x03)<<8 | uint16(rx[2])
}
