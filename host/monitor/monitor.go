// Package monitor turns diagnostic link frames into structured log records.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"ps2key/core"
	"ps2key/protocol"
)

// Event is one decoded diagnostic frame.
type Event struct {
	Seq   uint8
	Kind  core.EventKind
	Clock uint32 // device milliseconds
	Value uint32
}

// Decode parses a frame.
func Decode(msg *protocol.Message) (Event, error) {
	te, err := protocol.DecodeEvent(msg.Payload)
	if err != nil {
		return Event{}, fmt.Errorf("decode frame seq 0x%02X: %w", msg.Sequence, err)
	}
	return Event{Seq: msg.Sequence, Kind: te.Kind, Clock: te.Clock, Value: te.Value}, nil
}

// Detail renders Value the way the event kind means it.
func (e Event) Detail() string {
	switch e.Kind {
	case core.EvtKeyMake, core.EvtKeyBreak, core.EvtCommand, core.EvtReplyDropped:
		return fmt.Sprintf("0x%02X", e.Value)
	case core.EvtParam:
		return fmt.Sprintf("0x%02X 0x%02X", e.Value>>8, e.Value&0xFF)
	case core.EvtLEDs:
		return ledNames(byte(e.Value))
	case core.EvtScanning:
		if e.Value != 0 {
			return "on"
		}
		return "off"
	default:
		return fmt.Sprintf("%d", e.Value)
	}
}

func ledNames(v byte) string {
	s := ""
	for _, l := range []struct {
		bit  byte
		name string
	}{
		{core.LEDScrollLock, "scroll"},
		{core.LEDNumLock, "num"},
		{core.LEDCapsLock, "caps"},
	} {
		if v&l.bit == 0 {
			continue
		}
		if s != "" {
			s += "+"
		}
		s += l.name
	}
	if s == "" {
		return "none"
	}
	return s
}

// level picks the log level for a kind. Link trouble is a warning.
func level(k core.EventKind) zerolog.Level {
	switch k {
	case core.EvtParityError, core.EvtInterrupted, core.EvtAckTimeout,
		core.EvtReplyDropped, core.EvtInboundDrop, core.EvtParamTimeout:
		return zerolog.WarnLevel
	case core.EvtResend, core.EvtOutputCleared:
		return zerolog.DebugLevel
	default:
		return zerolog.InfoLevel
	}
}

// Monitor reads frames and logs them.
type Monitor struct {
	log    zerolog.Logger
	reader *protocol.FrameReader

	// StopOnEOF ends Run at end of input. Serial ports report EOF on every
	// read timeout, so it stays off for them.
	StopOnEOF bool

	mu        sync.Mutex
	counts    map[core.EventKind]uint64
	badFrames uint64
	last      Event
}

func New(r io.Reader, logger zerolog.Logger) *Monitor {
	return &Monitor{
		log:    logger,
		reader: protocol.NewFrameReader(r),
		counts: make(map[core.EventKind]uint64),
	}
}

// Run logs frames until ctx is done or the input fails.
func (m *Monitor) Run(ctx context.Context) error {
	msgs := make(chan *protocol.Message)
	errs := make(chan error, 1)

	go func() {
		defer close(msgs)
		for {
			msg, err := m.reader.ReadMessage()
			if err != nil {
				if errors.Is(err, io.EOF) && !m.StopOnEOF && ctx.Err() == nil {
					time.Sleep(10 * time.Millisecond)
					continue
				}
				errs <- err
				return
			}
			select {
			case msgs <- msg:
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-msgs:
			if !ok {
				select {
				case err := <-errs:
					if errors.Is(err, io.EOF) {
						return nil
					}
					return fmt.Errorf("read diagnostic link: %w", err)
				default:
					return ctx.Err()
				}
			}
			m.Handle(msg)
		}
	}
}

// Handle decodes and logs one frame.
func (m *Monitor) Handle(msg *protocol.Message) {
	ev, err := Decode(msg)
	if err != nil {
		m.mu.Lock()
		m.badFrames++
		m.mu.Unlock()
		m.log.Warn().Err(err).Msg("bad frame")
		return
	}

	m.mu.Lock()
	m.counts[ev.Kind]++
	m.last = ev
	m.mu.Unlock()

	m.log.WithLevel(level(ev.Kind)).
		Str("event", ev.Kind.String()).
		Uint32("clock_ms", ev.Clock).
		Str("value", ev.Detail()).
		Uint8("seq", ev.Seq).
		Msg("device")
}

// Count returns how many events of kind have been logged.
func (m *Monitor) Count(kind core.EventKind) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.counts[kind]
}

// Last returns the most recent event.
func (m *Monitor) Last() Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.last
}

// Summary logs the event counts and link statistics. Call it after Run
// returns.
func (m *Monitor) Summary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.reader.Stats()
	ev := m.log.Info().
		Uint64("frames", st.Frames).
		Uint64("crc_errors", st.CRCErrors).
		Uint64("bad_frames", st.BadFrames+m.badFrames).
		Uint64("resyncs", st.Resyncs).
		Uint64("seq_gaps", st.SeqGaps)
	for kind, n := range m.counts {
		ev = ev.Uint64(kind.String(), n)
	}
	ev.Msg("summary")
}
