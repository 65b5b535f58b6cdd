//go:build rp2040

package main

// TIMER peripheral base on RP2040
const timerBase = 0x40054000
