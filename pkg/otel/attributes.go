package otel

import "go.opentelemetry.io/otel/attribute"

// Standard attribute keys for alicia-edge spans.
const (
	AttrRequestID      = "request.id"
	AttrDeviceID       = "device.id"
	AttrMessageID      = "message.id"
	AttrEventNamespace = "event.namespace"
	AttrEventName      = "event.name"
	AttrCommandDomain  = "command.domain"
	AttrCommandName    = "command.name"
	AttrWSMessageType  = "ws.message_type"
	AttrWSDirection    = "ws.direction"
	AttrPlayerStream   = "player.stream"
	AttrPlayerState    = "player.state"
	AttrPayloadBytes   = "payload.bytes"
)

func RequestID(id string) attribute.KeyValue { return attribute.String(AttrRequestID, id) }
func DeviceID(id string) attribute.KeyValue  { return attribute.String(AttrDeviceID, id) }
func MessageID(id string) attribute.KeyValue { return attribute.String(AttrMessageID, id) }

func EventNamespace(ns string) attribute.KeyValue { return attribute.String(AttrEventNamespace, ns) }
func EventName(name string) attribute.KeyValue    { return attribute.String(AttrEventName, name) }

func CommandDomain(domain string) attribute.KeyValue {
	return attribute.String(AttrCommandDomain, domain)
}
func CommandName(name string) attribute.KeyValue { return attribute.String(AttrCommandName, name) }

func WSMessageType(t string) attribute.KeyValue { return attribute.String(AttrWSMessageType, t) }
func WSDirection(dir string) attribute.KeyValue { return attribute.String(AttrWSDirection, dir) }

func PlayerStream(stream string) attribute.KeyValue {
	return attribute.String(AttrPlayerStream, stream)
}
func PlayerState(state string) attribute.KeyValue { return attribute.String(AttrPlayerState, state) }

func PayloadBytes(n int) attribute.KeyValue { return attribute.Int(AttrPayloadBytes, n) }
