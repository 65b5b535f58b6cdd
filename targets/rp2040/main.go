//go:build rp2040 || rp2350

package main

import (
	"machine"
	"time"

	"muxscan/core"
	"muxscan/protocol"
	"muxscan/targets/pio"
)

// Board layout. Select lines on GPIO10-12 are driven by PIO; the MCP3008
// sits on SPI0 with chip select on GPIO17.
const (
	selectBankBase = machine.GPIO10
	useSelectBank  = true
	useMCP3008     = true
	mcp3008CS      = machine.GPIO17
)

var (
	inputBuffer  *protocol.FifoBuffer
	outputBuffer *protocol.ScratchOutput
	transport    *protocol.Transport

	msgerrors                uint32
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	InitUSB()

	// Clear any watchdog state left by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}

	InitDebugUART()

	core.InitCoreCommands()
	core.InitAnalogMuxCommands()

	gpioDriver := NewRPGPIODriver()
	if useSelectBank {
		bank, err := pio.NewSelectBank(selectBankBase)
		if err != nil {
			core.DebugPrintln("[PIO] select bank unavailable: " + err.Error())
		} else {
			gpioDriver.AttachSelectBank(bank)
		}
	}
	core.SetGPIODriver(gpioDriver)

	adcDriver := NewRPAdcDriver()
	if useMCP3008 {
		if err := machine.SPI0.Configure(machine.SPIConfig{Frequency: 1000000}); err == nil {
			adcDriver.AttachMCP3008(machine.SPI0, mcp3008CS)
		}
	}
	core.SetADCDriver(adcDriver)

	core.BuildDictionary()

	inputBuffer = protocol.NewFifoBuffer(256)
	outputBuffer = protocol.NewScratchOutput()

	transport = protocol.NewTransport(outputBuffer, core.DispatchCommand)
	transport.SetResetCallback(func() {
		inputBuffer.Reset()
		outputBuffer.Reset()
		core.ResetFirmwareState()
	})
	// Acks must reach the host before any response queued behind them
	transport.SetFlushCallback(writeUSB)
	core.SetGlobalTransport(transport)

	go usbReaderLoop()

	for {
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					core.DebugPrintln("[MAIN] recovered from panic")
					core.DumpMuxEvents()
					inputBuffer.Reset()
					outputBuffer.Reset()
				}
			}()

			UpdateSystemTime()

			if inputBuffer.Available() > 0 {
				data := inputBuffer.Data()
				in := protocol.NewSliceInputBuffer(data)
				transport.Receive(in)
				if consumed := len(data) - in.Available(); consumed > 0 {
					inputBuffer.Pop(consumed)
				}
			}

			core.ProcessTimers()
			core.AnalogMuxTask()

			if len(outputBuffer.Result()) > 0 {
				writeUSB()
			}
		}()

		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves bytes from USB into inputBuffer.
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			b, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(time.Millisecond)
				continue
			}

			// Host came back after a disconnect: start from a clean slate
			if usbWasDisconnected {
				usbWasDisconnected = false
				inputBuffer.Reset()
				outputBuffer.Reset()
				transport.Reset()
				core.ResetFirmwareState()
				consecutiveWriteFailures = 0
			}

			if inputBuffer.Write([]byte{b}) == 0 {
				msgerrors++
				time.Sleep(10 * time.Millisecond)
			}
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB drains outputBuffer. Repeated write failures mark the link as
// disconnected and drop stale data.
func writeUSB() {
	result := outputBuffer.Result()
	written := 0
	for written < len(result) {
		n, err := USBWriteBytes(result[written:])
		if err != nil || n == 0 {
			consecutiveWriteFailures++
			if consecutiveWriteFailures > 10 {
				usbWasDisconnected = true
				consecutiveWriteFailures = 0
				outputBuffer.Reset()
				inputBuffer.Reset()
			}
			return
		}
		written += n
	}
	consecutiveWriteFailures = 0
	outputBuffer.Reset()
}
