package protocol

import "ps2key/core"

// Reporter frames trace events for the diagnostic link. It belongs to the
// foreground loop, like the trace that feeds it.
type Reporter struct {
	seq     uint8
	output  OutputBuffer
	flush   func()
	dropped uint32
}

// NewReporter creates a Reporter writing frames to output.
func NewReporter(output OutputBuffer) *Reporter {
	return &Reporter{seq: SeqDest, output: output}
}

// SetFlushCallback sets a callback run after every frame, typically to push
// the output buffer to USB.
func (r *Reporter) SetFlushCallback(callback func()) {
	r.flush = callback
}

// EncodeFrame wraps the bytes written by frameData in a frame.
func (r *Reporter) EncodeFrame(frameData func(output OutputBuffer)) {
	if !r.makeRoom() {
		r.dropped++
		return
	}

	cursor := r.output.CurPosition()
	r.output.Output([]byte{0, r.seq})
	frameData(r.output)

	n := len(r.output.DataSince(cursor))
	r.output.Update(cursor+FramePosLen, uint8(n+FrameTrailerSize))
	appendTrailer(r.output, r.output.DataSince(cursor))

	r.seq = nextSeq(r.seq)
	if r.flush != nil {
		r.flush()
	}
}

// makeRoom flushes a nearly full fixed buffer.
func (r *Reporter) makeRoom() bool {
	f, ok := r.output.(interface{ Free() int })
	if !ok || f.Free() >= FrameMax {
		return true
	}
	if r.flush != nil {
		r.flush()
	}
	return f.Free() >= FrameMax
}

// Report sends one trace event. It matches the trace sink signature.
func (r *Reporter) Report(e core.TraceEvent) {
	r.EncodeFrame(func(output OutputBuffer) {
		EncodeEvent(output, e)
	})
}

// Dropped returns the number of frames lost to a full output buffer.
func (r *Reporter) Dropped() uint32 {
	return r.dropped
}

// Reset restarts the sequence, for example after a USB reconnect.
func (r *Reporter) Reset() {
	r.seq = SeqDest
	r.dropped = 0
}
