package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_http_requests_total",
		Help: "Total number of debug HTTP requests",
	}, []string{"method", "path", "status"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "alicia_edge_http_request_duration_seconds",
		Help:    "Debug HTTP request duration",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	LooperMessagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_looper_messages_total",
		Help: "Messages released by a looper, by outcome",
	}, []string{"looper", "outcome"})

	LooperQueueDepth = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "alicia_edge_looper_queue_depth",
		Help: "Pending messages per looper",
	}, []string{"looper"})

	GatewayConnectsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_gateway_connects_total",
		Help: "Gateway websocket connection attempts, by result",
	}, []string{"result"})

	GatewayConnectDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "alicia_edge_gateway_connect_duration_seconds",
		Help:    "Gateway websocket handshake duration",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	})

	GatewayFramesSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_gateway_frames_sent_total",
		Help: "Frames written to the gateway, by kind",
	}, []string{"kind"})

	GatewayFramesReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_gateway_frames_received_total",
		Help: "Messages delivered from the gateway, by kind",
	}, []string{"kind"})

	GatewayPongTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alicia_edge_gateway_pong_timeouts_total",
		Help: "Heartbeats that went unanswered",
	})

	GatewayConnected = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alicia_edge_gateway_connected",
		Help: "1 while the gateway websocket is connected",
	})

	ReconnectAttempts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alicia_edge_reconnect_attempts_total",
		Help: "Gateway reconnect attempts issued by the orchestrator",
	})

	EventsSent = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_events_sent_total",
		Help: "Protocol events sent to the gateway",
	}, []string{"namespace", "name"})

	CommandsReceived = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_commands_received_total",
		Help: "Gateway commands received, by domain and command",
	}, []string{"domain", "command"})

	PendingEvents = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alicia_edge_pending_events",
		Help: "Events buffered while the microphone is open or the speaker muted",
	})

	TTSFramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alicia_edge_tts_frames_dropped_total",
		Help: "TTS frames dropped because their epoch was stale",
	})

	TTSTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alicia_edge_tts_timeouts_total",
		Help: "TTS streams abandoned after no frame arrived in time",
	})

	RendererViolations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "alicia_edge_renderer_violations_total",
		Help: "Times more than one player was rendering at once",
	})

	PlayQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "alicia_edge_play_queue_depth",
		Help: "Entries waiting in the play queue",
	})

	PlayerStateChanges = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_player_state_changes_total",
		Help: "Player state changes reported by the engine",
	}, []string{"stream", "state"})

	PromptsPlayed = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_prompts_played_total",
		Help: "Local prompts requested by the assistant, by prompt",
	}, []string{"prompt"})

	CredentialWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "alicia_edge_credential_writes_total",
		Help: "Credential store writes, by operation and result",
	}, []string{"op", "result"})
)
