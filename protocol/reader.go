package protocol

import (
	"bytes"
	"errors"
	"io"
)

// ReaderStats counts what the reader has seen on the link.
type ReaderStats struct {
	Frames    uint64
	BadFrames uint64 // bad length, sequence byte or trailer
	CRCErrors uint64
	Resyncs   uint64
	SeqGaps   uint64
	Dropped   uint64 // bytes discarded while out of sync
}

// FrameReader decodes the diagnostic link on the host side. Feed can be used
// on its own; ReadMessage pulls from the underlying reader.
type FrameReader struct {
	r       io.Reader
	input   *FifoBuffer
	chunk   []byte
	pending []*Message

	synced  bool
	started bool
	expect  uint8
	stats   ReaderStats
}

// NewFrameReader creates a reader over r. r may be nil when only Feed is used.
func NewFrameReader(r io.Reader) *FrameReader {
	return &FrameReader{
		r:      r,
		input:  NewFifoBuffer(ReadBufSize),
		chunk:  make([]byte, 256),
		synced: true,
	}
}

// Feed adds received bytes and returns every complete frame they finish.
func (f *FrameReader) Feed(data []byte) []*Message {
	var msgs []*Message
	for len(data) > 0 {
		n := f.input.Write(data)
		data = data[n:]
		msgs = f.process(msgs)
		if n == 0 {
			// Full of bytes that cannot form a frame
			f.stats.Dropped += uint64(f.input.Available())
			f.input.Reset()
			f.synced = false
		}
	}
	return msgs
}

// ReadMessage blocks until a frame arrives or the reader fails.
func (f *FrameReader) ReadMessage() (*Message, error) {
	if f.r == nil {
		return nil, errors.New("frame reader has no input")
	}
	for len(f.pending) == 0 {
		n, err := f.r.Read(f.chunk)
		if n > 0 {
			f.pending = append(f.pending, f.Feed(f.chunk[:n])...)
		}
		if err != nil && len(f.pending) == 0 {
			return nil, err
		}
	}
	msg := f.pending[0]
	f.pending = f.pending[1:]
	return msg, nil
}

// Stats returns the link counters.
func (f *FrameReader) Stats() ReaderStats {
	return f.stats
}

func (f *FrameReader) process(msgs []*Message) []*Message {
	data := f.input.Data()

	for len(data) > 0 {
		if !f.synced {
			i := bytes.IndexByte(data, SyncByte)
			if i < 0 {
				f.stats.Dropped += uint64(len(data))
				data = nil
				break
			}
			f.stats.Dropped += uint64(i)
			f.stats.Resyncs++
			data = data[i+1:]
			f.synced = true
			continue
		}

		if data[0] == SyncByte {
			data = data[1:]
			continue
		}
		if len(data) < FrameMin {
			break
		}

		msgLen := int(data[FramePosLen])
		seq := data[FramePosSeq]
		if msgLen < FrameMin || msgLen > FrameMax || seq&^SeqMask != SeqDest {
			f.stats.BadFrames++
			f.synced = false
			continue
		}
		if len(data) < msgLen {
			break
		}
		if data[msgLen-TrailerSync] != SyncByte {
			f.stats.BadFrames++
			f.synced = false
			continue
		}

		crc := uint16(data[msgLen-TrailerCRC])<<8 | uint16(data[msgLen-TrailerCRC+1])
		if crc != CRC16(data[:msgLen-FrameTrailerSize]) {
			f.stats.CRCErrors++
			f.synced = false
			continue
		}

		payload := make([]byte, msgLen-FrameHeaderSize-FrameTrailerSize)
		copy(payload, data[FrameHeaderSize:msgLen-FrameTrailerSize])
		msgs = append(msgs, &Message{
			Length:   uint8(msgLen),
			Sequence: seq,
			Payload:  payload,
			CRC:      crc,
		})
		data = data[msgLen:]

		if f.started && seq != f.expect {
			f.stats.SeqGaps++
		}
		f.started = true
		f.expect = nextSeq(seq)
		f.stats.Frames++
	}

	if consumed := f.input.Available() - len(data); consumed > 0 {
		f.input.Pop(consumed)
	}
	return msgs
}
