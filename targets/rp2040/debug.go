//go:build rp2040 || rp2350

package main

import (
	"machine"

	"muxscan/core"
)

var debugUART *machine.UART

// InitDebugUART routes core debug output to UART1 on its default pins at
// 115200 baud. USB stays reserved for the protocol.
func InitDebugUART() {
	uart := machine.UART1
	if err := uart.Configure(machine.UARTConfig{BaudRate: 115200}); err != nil {
		return
	}
	debugUART = uart

	core.SetDebugWriter(func(s string) {
		debugUART.Write([]byte(s))
		debugUART.Write([]byte("\r\n"))
	})
	core.SetDebugEnabled(true)
}
