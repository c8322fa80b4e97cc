// Package protocol implements the diagnostic link between the keyboard
// firmware and a host monitor. Trace events travel in Klipper style frames:
//
//	[len][seq][payload...][crc hi][crc lo][0x7E]
//
// The payload of every frame is one event: VLQ kind, VLQ clock, VLQ value.
package protocol

// Version of the diagnostic link format
const Version = "0.1.0"

// Frame layout
const (
	FrameHeaderSize  = 2
	FrameTrailerSize = 3
	FrameMin         = FrameHeaderSize + FrameTrailerSize
	FrameMax         = 64

	FramePosLen = 0
	FramePosSeq = 1
	TrailerCRC  = 3
	TrailerSync = 1
	SyncByte    = 0x7E
	SeqDest     = 0x10
	SeqMask     = 0x0F

	MessageMax  = 512 // scratch output size
	ReadBufSize = 1024
)

// Message is one validated frame.
type Message struct {
	Length   uint8
	Sequence uint8
	Payload  []byte // frame data without header and trailer
	CRC      uint16
}

// nextSeq returns the sequence byte following seq.
func nextSeq(seq uint8) uint8 {
	return ((seq + 1) & SeqMask) | SeqDest
}
