//go:build rp2350

package main

// TIMER0 peripheral base on RP2350; it moved from the RP2040 address
const timerBase = 0x400B0000
