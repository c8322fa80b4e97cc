package protocol

import (
	"errors"

	"ps2key/core"
)

var ErrTrailingData = errors.New("trailing data after event")

// EncodeEvent writes the payload for one trace event.
func EncodeEvent(out OutputBuffer, e core.TraceEvent) {
	EncodeVLQUint(out, uint32(e.Kind))
	EncodeVLQUint(out, e.Clock)
	EncodeVLQUint(out, e.Value)
}

// DecodeEvent parses a frame payload written by EncodeEvent.
func DecodeEvent(payload []byte) (core.TraceEvent, error) {
	var e core.TraceEvent

	kind, err := DecodeVLQUint(&payload)
	if err != nil {
		return e, err
	}
	if e.Clock, err = DecodeVLQUint(&payload); err != nil {
		return e, err
	}
	if e.Value, err = DecodeVLQUint(&payload); err != nil {
		return e, err
	}
	if len(payload) != 0 {
		return e, ErrTrailingData
	}
	e.Kind = core.EventKind(kind)
	return e, nil
}
