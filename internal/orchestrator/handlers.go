package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/longregen/alicia-edge/internal/adapters/metrics"
	"github.com/longregen/alicia-edge/internal/domain"
	"github.com/longregen/alicia-edge/internal/looper"
	"github.com/longregen/alicia-edge/internal/ports"
	"github.com/longregen/alicia-edge/internal/protocol"
	"github.com/longregen/alicia-edge/pkg/otel"
)

// handleMessage runs on the looper goroutine. Transport calls never wait on
// the transport worker, so handlers hold mu throughout.
func (s *Service) handleMessage(m *looper.Message) {
	s.locked(func(out *outbox) {
		switch m.What {
		case whatWSConnected:
			if s.creds.Valid() {
				s.post(whatAuthorized)
			} else {
				s.send(s.builder.GuestDeviceActivate(s.mac))
			}

		case whatWSDisconnected:
			if s.networkConnected {
				s.postDelayed(whatConnect, s.config.Reconnect.Interval)
			}

		case whatAuthorized:
			if !s.usable() {
				return
			}
			reason := protocol.StateSyncStart
			if s.stateSynced {
				reason = protocol.StateSyncReconnect
			}
			speaker, player := s.speaker, s.player
			s.send(s.builder.StateSync(s.creds, reason, &speaker, &player))
			s.stateSynced = true

		case whatUnauthorized:
			// A local close is not reported back; retry here and the new
			// connection activates as a guest.
			s.disconnect(out)
			if s.networkConnected {
				s.looper.RemoveSelfByTag(s, whatConnect)
				s.postDelayed(whatConnect, s.config.Reconnect.Interval)
			}

		case whatMicStarted, whatMicStreaming, whatMicStopped:
			s.handleMicrophone(m)

		case whatSpeakerChanged:
			if s.usable() {
				s.send(s.builder.SpeakerSync(s.creds, protocol.SpeakerSyncReason(m.Arg1), s.speaker))
			}

		case whatPlayerChanged:
			if s.usable() {
				s.send(s.builder.PlayerSync(s.creds, protocol.PlayerSyncReason(m.Arg1), s.player))
			}

		case whatConnect:
			s.connect()

		case whatDisconnect:
			s.disconnect(out)

		case whatCheckConnection:
			s.checkConnection(out)

		case whatCheckMicrophone:
			if s.micWakeup && !s.micStarted {
				slog.Warn("orchestrator: microphone woke up but never streamed, closing window")
				s.micWakeup = false
				out.status(domain.StatusMicrophoneStopped)
				s.flushPending()
			}

		case whatTextRecognize:
			text, _ := m.Data.(string)
			if s.usable() {
				s.send(s.builder.TextRecognize(s.creds, text))
			}

		case whatQueryUserInfo:
			if s.usable() {
				s.send(s.builder.QueryUserInfo(s.creds))
			}

		default:
			slog.Error("orchestrator: unknown message", "what", m.What)
		}
	})
}

func (s *Service) handleMicrophone(m *looper.Message) {
	if !s.usable() {
		return
	}
	switch m.What {
	case whatMicStarted:
		s.send(s.builder.MicrophoneActive(s.creds, protocol.MicrophoneActiveUser))
		s.send(s.builder.ListenStarted(s.creds, s.speech))
		s.sendBinary(protocol.MicrophoneBinaryHeader(s.speech.Format), domain.FragmentStart)

	case whatMicStreaming:
		chunk, _ := m.Data.([]byte)
		kind := domain.FragmentContinue
		if m.Arg2 != 0 {
			kind = domain.FragmentFinish
		}
		s.sendBinary(chunk, kind)
	}
}

// disconnect closes the gateway connection. Callers hold mu.
func (s *Service) disconnect(out *outbox) {
	if err := s.transport.Disconnect(); err != nil {
		slog.Warn("orchestrator: disconnect failed", "error", err)
	}
	if s.websocketConnected {
		s.websocketConnected = false
		out.status(domain.StatusGatewayDisconnected)
	}
}

// connect starts a connection attempt and schedules its check.
func (s *Service) connect() {
	metrics.ReconnectAttempts.Inc()

	url, err := protocol.GatewayURL(s.config.GatewayURL, s.biz, time.Now())
	if err != nil {
		slog.Error("orchestrator: cannot build gateway url", "error", err)
		return
	}

	s.transport.SetHeartbeat(s.config.Heartbeat)
	info := ports.ConnectInfo{URL: url, CACert: s.caCert}
	if err := s.transport.Connect(info); err != nil {
		slog.Warn("orchestrator: connect not started", "error", err)
	}
	s.postDelayed(whatCheckConnection, s.config.Reconnect.Interval)
}

// checkConnection retries a connection that has not come up, up to the
// policy bound.
func (s *Service) checkConnection(out *outbox) {
	if s.transport.IsConnected() {
		return
	}

	// Abort an attempt still stuck in the handshake.
	_ = s.transport.Disconnect()
	s.clearAll(out)
	if s.config.Reconnect.Allow(s.reconnectCount) {
		slog.Warn("orchestrator: gateway not connected, retrying", "attempt", s.reconnectCount)
		s.post(whatConnect)
	} else {
		slog.Error("orchestrator: failed to connect gateway, giving up", "attempts", s.reconnectCount)
	}
	s.reconnectCount++
}

// send encodes ev and queues it on the transport inside an
// orchestrator.send span whose ids are stamped onto the event.
func (s *Service) send(ev *protocol.Event) {
	ctx, span := s.tracer.Start(context.Background(), "orchestrator.send",
		trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(
			otel.EventNamespace(ev.Header.Namespace),
			otel.EventName(ev.Header.Name),
			otel.MessageID(ev.Header.MessageID),
			otel.WSDirection("outbound"),
		),
	)
	defer span.End()

	if tc := otel.InjectToTraceContext(ctx); tc.TraceID != "" {
		ev.WithTracing(tc.TraceID, tc.SpanID)
	}

	data, err := ev.Marshal()
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "marshal failed")
		slog.Error("orchestrator: encode event failed", "name", ev.Header.Name, "error", err)
		return
	}
	span.SetAttributes(otel.PayloadBytes(len(data)))

	if err := s.transport.SendText(data); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "send failed")
		slog.Warn("orchestrator: send event failed", "namespace", ev.Header.Namespace, "name", ev.Header.Name, "error", err)
		return
	}
	metrics.EventsSent.WithLabelValues(ev.Header.Namespace, ev.Header.Name).Inc()
	slog.Debug("orchestrator: event sent", "namespace", ev.Header.Namespace, "name", ev.Header.Name)
}

func (s *Service) sendBinary(data []byte, kind domain.FragmentKind) {
	if err := s.transport.SendBinary(data, kind); err != nil {
		slog.Warn("orchestrator: send audio failed", "kind", kind, "error", err)
	}
}

// transportEvents receives transport callbacks on the transport worker.
type transportEvents struct {
	s *Service
}

func (t transportEvents) OnConnected() {
	s := t.s
	slog.Info("orchestrator: gateway connected")
	s.locked(func(out *outbox) {
		s.reconnectCount = 0
		if s.websocketConnected {
			return
		}
		s.websocketConnected = true
		s.clearAll(out)
		s.post(whatWSConnected)
		out.status(domain.StatusGatewayConnected)
	})
}

func (t transportEvents) OnDisconnected(err error) {
	s := t.s
	slog.Info("orchestrator: gateway disconnected", "error", err)
	s.locked(func(out *outbox) {
		// Stop disconnects the transport itself; nothing to reconnect.
		if !s.started || !s.websocketConnected {
			return
		}
		s.websocketConnected = false
		s.clearAll(out)
		s.post(whatWSDisconnected)
		out.status(domain.StatusGatewayDisconnected)
	})
}

func (t transportEvents) OnText(data []byte) {
	t.s.handleCommand(data)
}

// OnBinary forwards synthesized speech. A start fragment only announces the
// stream and carries no audio.
func (t transportEvents) OnBinary(data []byte, kind domain.FragmentKind) {
	if kind == domain.FragmentStart {
		return
	}
	t.s.listeners.notifyTTS(data, kind != domain.FragmentContinue)
}

// handleCommand applies the session side effects of an inbound command and
// hands it to the command listeners.
func (s *Service) handleCommand(data []byte) {
	cmd, err := protocol.ParseCommand(data)
	if err != nil {
		if errors.Is(err, protocol.ErrUnknownCommand) {
			slog.Error("orchestrator: unsupported command",
				"domain", cmd.Domain, "command", cmd.Name, "payload", string(cmd.Payload))
		} else {
			slog.Warn("orchestrator: dropping malformed text", "error", err)
		}
		return
	}

	_, span := s.tracer.Start(context.Background(), "orchestrator.command",
		trace.WithSpanKind(trace.SpanKindConsumer),
		trace.WithAttributes(
			otel.CommandDomain(string(cmd.Domain)),
			otel.CommandName(string(cmd.Name)),
			otel.WSDirection("inbound"),
			otel.PayloadBytes(len(cmd.Payload)),
		),
	)
	defer span.End()

	metrics.CommandsReceived.WithLabelValues(string(cmd.Domain), string(cmd.Name)).Inc()
	if cmd.Domain == protocol.DomainAccount {
		slog.Info("orchestrator: command received", "domain", cmd.Domain, "command", cmd.Name)
	} else {
		slog.Info("orchestrator: command received", "domain", cmd.Domain, "command", cmd.Name, "payload", string(cmd.Payload))
	}

	s.locked(func(out *outbox) {
		switch {
		case cmd.Is(protocol.DomainAudio, protocol.CommandPlay):
			var p protocol.AudioPayload
			if err := cmd.Decode(&p); err != nil {
				span.RecordError(err)
				slog.Warn("orchestrator: bad play payload", "error", err)
				return
			}
			s.playerCache = p.PlayerContext

		case cmd.Is(protocol.DomainAccount, protocol.CommandGuestDeviceActivateResp),
			cmd.Is(protocol.DomainAccount, protocol.CommandMemberDeviceActivateResp):
			s.applyActivation(cmd, out)

		case cmd.Is(protocol.DomainSystem, protocol.CommandThrowException):
			var p protocol.ExceptionPayload
			if err := cmd.Decode(&p); err != nil || p.ErrorCode == nil {
				return
			}
			if *p.ErrorCode == protocol.ErrorUnauthorized {
				slog.Warn("orchestrator: gateway rejected credentials")
				span.SetStatus(codes.Error, "unauthorized")
				s.stateSynced = false
				s.authorized = false
				s.creds = domain.Credentials{}
				s.clearAll(out)
				s.post(whatUnauthorized)
				out.status(domain.StatusUnauthorized)
			}
		}
	})

	s.listeners.notifyCommand(cmd)
}

// applyActivation adopts the credentials of an activation response and
// rewrites its payload to {"uuid","accessToken"}, or {} when they are
// unusable. Callers hold mu.
func (s *Service) applyActivation(cmd *protocol.Command, out *outbox) {
	var resp protocol.ActivateResponse
	if err := cmd.Decode(&resp); err != nil || resp.Data == nil {
		slog.Warn("orchestrator: activation response without data")
		return
	}

	s.creds = domain.Credentials{UUID: resp.Data.UUID, AccessToken: resp.Data.AccessToken}
	s.clearAll(out)

	if s.creds.Valid() {
		s.authorized = true
		if cmd.Name == protocol.CommandGuestDeviceActivateResp {
			s.post(whatQueryUserInfo)
		}
		s.post(whatAuthorized)
		out.status(domain.StatusAuthorized)
		cmd.Payload, _ = json.Marshal(s.creds)
		return
	}

	slog.Error("orchestrator: activation returned malformed credentials", "error", domain.ErrInvalidCredential)
	s.creds = domain.Credentials{}
	s.authorized = false
	s.stateSynced = false
	s.post(whatUnauthorized)
	out.status(domain.StatusUnauthorized)
	cmd.Payload = json.RawMessage("{}")
}
