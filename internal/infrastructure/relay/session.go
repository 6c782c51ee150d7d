package relay

import (
	"sync"
	"sync/atomic"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/superproxy/relay-gateway/internal/api/metrics"
)

// Session is one admitted relay pair: a client-facing leg and a backend leg.
// Created by a gate with the backend already dialed; the caller attaches the
// upgraded client leg via Run, or Abort when the upgrade failed.
type Session struct {
	ID     string
	UserID string

	backend  *websocket.Conn
	client   *websocket.Conn
	gate     *gate
	reporter *Reporter
	log      zerolog.Logger

	bytes    atomic.Int64
	closeOne sync.Once
	doneOne  sync.Once
}

// Run splices the two legs until either closes, then tears both down and
// reports the session's byte count. Blocks for the life of the session.
func (s *Session) Run(client *websocket.Conn) {
	s.client = client
	metrics.SessionsActive.Inc()
	defer metrics.SessionsActive.Dec()

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.pump(client, s.backend, "client_to_backend")
	}()
	go func() {
		defer wg.Done()
		s.pump(s.backend, client, "backend_to_client")
	}()
	wg.Wait()

	s.finish()
}

// Abort releases a session whose client leg never materialized (e.g. the
// websocket upgrade failed after the backend was already dialed).
func (s *Session) Abort() {
	s.closeBoth()
	s.finish()
}

// pump forwards frames verbatim from src to dst, adding each frame's size to
// the session counter. The two directions run in independent goroutines so
// one slow leg cannot starve the other. Any read or write error tears down
// both legs; the peer pump then unblocks with a read error of its own.
func (s *Session) pump(src, dst *websocket.Conn, direction string) {
	defer s.closeBoth()

	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			if !isExpectedClose(err) {
				s.log.Debug().Err(err).Str("direction", direction).Msg("relay leg closed")
			}
			return
		}

		s.bytes.Add(int64(len(data)))
		metrics.RelayBytesTotal.WithLabelValues(direction).Add(float64(len(data)))

		if err := dst.WriteMessage(messageType, data); err != nil {
			return
		}
	}
}

// closeBoth tears down both legs. Safe to call from either pump, from Abort,
// or more than once; double-close is a no-op.
func (s *Session) closeBoth() {
	s.closeOne.Do(func() {
		_ = s.backend.Close()
		if s.client != nil {
			_ = s.client.Close()
		}
	})
}

// finish releases the session slot and hands the final byte count to the
// async reporter. The reporter never blocks teardown; a nonzero count is
// retried and logged rather than dropped.
func (s *Session) finish() {
	s.doneOne.Do(func() {
		remaining := s.gate.release()

		transferred := s.bytes.Load()
		if transferred > 0 {
			s.reporter.Submit(s.ID, s.UserID, transferred)
		}

		s.log.Info().
			Str("session_id", s.ID).
			Int64("bytes", transferred).
			Int("open_sessions", remaining).
			Msg("relay session closed")
	})
}

func isExpectedClose(err error) bool {
	return websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseNoStatusReceived)
}
