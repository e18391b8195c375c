package runtime

import (
	"context"
	"polyglot-chat/domain"
	"polyglot-chat/errors"
	"sync"
)

// RecordingSink keeps every frame written to it.
type RecordingSink struct {
	mu     sync.Mutex
	handle domain.Handle
	frames []domain.OutboundFrame
	fail   bool
	closed bool
}

func NewRecordingSink(handle string) *RecordingSink {
	return &RecordingSink{handle: domain.Handle(handle)}
}

func (s *RecordingSink) Handle() domain.Handle { return s.handle }

func (s *RecordingSink) Open() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.closed
}

// Close makes the sink refuse frames, like a connection that went away.
func (s *RecordingSink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
}

func (s *RecordingSink) Send(_ context.Context, frame domain.OutboundFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail || s.closed {
		return errors.ErrConnectionClosed
	}
	s.frames = append(s.frames, frame)
	return nil
}

func (s *RecordingSink) Frames() []domain.OutboundFrame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.OutboundFrame(nil), s.frames...)
}

func (s *RecordingSink) ChatFrames() []domain.ChatFrame {
	var res []domain.ChatFrame
	for _, f := range s.Frames() {
		if c, ok := f.(domain.ChatFrame); ok {
			res = append(res, c)
		}
	}
	return res
}

func (s *RecordingSink) SystemFrames() []domain.SystemFrame {
	var res []domain.SystemFrame
	for _, f := range s.Frames() {
		if c, ok := f.(domain.SystemFrame); ok {
			res = append(res, c)
		}
	}
	return res
}
