package main

import (
	"context"
	"sync"

	"github.com/cuboid-ai/callingbot/pkg/provider/stt"
)

// mediaPendingRecognizer is the recognition boundary used until a media host
// feeds call audio into the process. Sessions accept audio and never produce
// finals; the rest of the lifecycle (answer, greeting, admin hangup,
// transcripts) runs unchanged. Swap in a real stt.Recognizer when the media
// path lands.
type mediaPendingRecognizer struct{}

func (mediaPendingRecognizer) StartSession(_ context.Context, callID string, _ stt.SessionConfig) (stt.SessionHandle, error) {
	return &silentSession{finals: make(chan stt.Final)}, nil
}

// silentSession is an stt.SessionHandle with no audio source behind it.
type silentSession struct {
	mu     sync.Mutex
	finals chan stt.Final
	closed bool
}

func (s *silentSession) SendAudio([]byte) error {
	return nil
}

func (s *silentSession) Finals() <-chan stt.Final {
	return s.finals
}

func (s *silentSession) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	close(s.finals)
	return nil
}

var _ stt.Recognizer = mediaPendingRecognizer{}
