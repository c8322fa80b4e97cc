package protocol

// CRC16 is the CCITT variant used by Klipper framing, seeded with 0xFFFF.
func CRC16(data []byte) uint16 {
	crc := uint16(0xFFFF)
	for _, b := range data {
		b ^= uint8(crc)
		b ^= b << 4
		b16 := uint16(b)
		crc = (b16<<8 | crc>>8) ^ (b16 >> 4) ^ (b16 << 3)
	}
	return crc
}

// appendTrailer writes the CRC of frame and the sync byte.
func appendTrailer(out OutputBuffer, frame []byte) {
	crc := CRC16(frame)
	out.Output([]byte{byte(crc >> 8), byte(crc), SyncByte})
}
