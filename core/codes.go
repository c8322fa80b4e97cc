package core

import "math/bits"

// Host to keyboard commands.
const (
	CmdReset          byte = 0xFF
	CmdResend         byte = 0xFE
	CmdSetDefault     byte = 0xF6
	CmdDisable        byte = 0xF5
	CmdEnable         byte = 0xF4
	CmdSetTypematic   byte = 0xF3
	CmdReadID         byte = 0xF2
	CmdSetScanCodeSet byte = 0xF0
	CmdEcho           byte = 0xEE
	CmdSetLEDs        byte = 0xED
)

// Keyboard to host replies.
const (
	ReplyAck    byte = 0xFA
	ReplyResend byte = 0xFE
	ReplyBATOK  byte = 0xAA
	ReplyEcho   byte = 0xEE
	ReplyID0    byte = 0xAB
	ReplyID1    byte = 0x83
)

// Scan code set 2 bytes used by the key reporter.
const (
	BreakPrefix byte = 0xF0
	KeySpace    byte = 0x29
)

// ReceiveError is queued inbound in place of a byte that failed its parity
// check. It shares its value with a legitimate parameter byte of zero.
const ReceiveError byte = 0x00

// LED bits carried by the CmdSetLEDs parameter.
const (
	LEDScrollLock = 1 << 0
	LEDNumLock    = 1 << 1
	LEDCapsLock   = 1 << 2
)

// DefaultTypematic is 10.9 characters per second after a 500 ms delay.
const DefaultTypematic byte = 0x2B

// IsCommand reports whether b falls in the host command range.
func IsCommand(b byte) bool {
	return b >= CmdSetLEDs
}

// OddParity returns the parity bit that makes the total number of ones in
// b plus the parity bit odd.
func OddParity(b byte) byte {
	return byte(bits.OnesCount8(b)&1) ^ 1
}

// hexScanCodes maps a nibble to the make code of the key that types it.
var hexScanCodes = [16]byte{
	0x45, 0x16, 0x1E, 0x26, // 0 1 2 3
	0x25, 0x2E, 0x36, 0x3D, // 4 5 6 7
	0x3E, 0x46, 0x1C, 0x32, // 8 9 A B
	0x21, 0x23, 0x24, 0x2B, // C D E F
}

// HexScanCode returns the make code for the low nibble of n.
func HexScanCode(n byte) byte {
	return hexScanCodes[n&0x0F]
}

const hexDigits = "0123456789ABCDEF"

// hex2 formats b as two upper-case hex digits.
func hex2(b byte) string {
	return string([]byte{hexDigits[b>>4], hexDigits[b&0x0F]})
}
