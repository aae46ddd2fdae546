package session

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"
)

// JoinVoiceChannel connects the session to channelID. It is a no-op while
// a connection is already held, whichever channel that is; callers compare
// VoiceChannel() to decide whether to move.
func (s *Session) JoinVoiceChannel(ctx context.Context, channelID, textChannelID string) error {
	return s.do(ctx, func() error {
		s.mu.RLock()
		state := s.state
		s.mu.RUnlock()
		if state == Ready || state == PendingDisconnectConfirmation {
			return nil
		}

		ok, err := s.transport.CanJoin(s.guildID, channelID)
		if err != nil {
			return fmt.Errorf("check voice permissions: %w", err)
		}
		if !ok {
			return ErrPermissionDenied
		}

		// a connection left over from a confirmed disconnect
		s.dropConnection()

		s.setState(Connecting)
		s.mu.Lock()
		s.textChannel = textChannelID
		s.mu.Unlock()

		conn, err := s.transport.Join(ctx, s.guildID, channelID)
		if err != nil {
			s.setState(Disconnected)
			return fmt.Errorf("join voice channel %s: %w", channelID, err)
		}

		bound := conn.ChannelID()
		if bound == "" {
			bound = channelID
		}
		s.mu.Lock()
		s.conn = conn
		s.voiceChannel = bound
		s.mu.Unlock()
		s.removeSignal = conn.OnSignal(func(sig Signal) {
			s.post(func() { s.handleSignal(conn, sig) })
		})
		s.engine.SetSink(conn)

		s.setState(Ready)
		s.engine.Start()
		return nil
	})
}

func (s *Session) handleSignal(conn Connection, sig Signal) {
	s.mu.RLock()
	current, state := s.conn, s.state
	s.mu.RUnlock()
	if conn != current {
		return
	}

	s.logger.WithFields(logrus.Fields{"signal": sig.Kind, "channel": sig.ChannelID, "state": state}).Debug("voice signal")

	switch sig.Kind {
	case SignalReady:
		if sig.ChannelID != "" {
			s.mu.Lock()
			s.voiceChannel = sig.ChannelID
			s.mu.Unlock()
		}
		switch state {
		case PendingDisconnectConfirmation:
			s.stopTimer()
			s.setState(Ready)
		case Disconnected:
			s.engine.SetSink(conn)
			s.setState(Ready)
			s.engine.Start()
		}

	case SignalDisconnected:
		if state != Ready {
			return
		}
		s.setState(PendingDisconnectConfirmation)
		s.armTimer()
	}
}

func (s *Session) armTimer() {
	s.stopTimer()
	s.timerGen++
	gen := s.timerGen
	s.timer = s.afterFunc(s.grace, func() {
		s.post(func() { s.confirmDisconnect(gen) })
	})
}

func (s *Session) stopTimer() {
	s.timerGen++
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *Session) confirmDisconnect(gen uint64) {
	if gen != s.timerGen || s.State() != PendingDisconnectConfirmation {
		return
	}
	s.timer = nil

	if ch, ok := s.transport.Bound(s.guildID); ok {
		s.logger.WithField("channel", ch).Info("disconnect did not stick, still bound")
		s.mu.Lock()
		s.voiceChannel = ch
		s.mu.Unlock()
		s.setState(Ready)
		return
	}

	s.setState(Disconnected)
	// the queue is held until a ready signal or a rejoin
	s.engine.Stop()
	s.engine.SetSink(nil)
	s.logger.Info("disconnect confirmed")
	publish(s.events, s.events.disconnect, DisconnectEvent{Session: s})
}

// dropConnection detaches from the current connection and disconnects it.
func (s *Session) dropConnection() {
	if s.removeSignal != nil {
		s.removeSignal()
		s.removeSignal = nil
	}

	s.mu.Lock()
	conn := s.conn
	s.conn = nil
	s.mu.Unlock()
	if conn == nil {
		return
	}

	s.engine.Stop()
	s.engine.SetSink(nil)
	if err := conn.Disconnect(); err != nil {
		s.logger.WithError(err).Warn("voice disconnect failed")
	}
}

func (s *Session) setState(st ConnectionState) {
	s.mu.Lock()
	prev := s.state
	s.state = st
	s.mu.Unlock()
	if prev != st {
		s.logger.WithFields(logrus.Fields{"from": prev, "to": st}).Debug("state changed")
	}
}
