package observability

import (
	"context"
	"time"
)

const wsEventsRoutingKey = "ws_events.realtime"

// EventEnvelope wraps every event published to the observability exchange.
type EventEnvelope struct {
	EventType string      `json:"event_type"`
	EventName string      `json:"event_name"`
	Payload   interface{} `json:"payload"`
}

// ConnMeta identifies the connection and client behind a websocket lifecycle
// event.
type ConnMeta struct {
	ConnID      string
	UserID      string
	DeviceID    string
	IP          string
	RequestID   string
	TraceID     string
	ConnectedAt time.Time
}

// PublishWSEvent emits a websocket lifecycle event (connect, disconnect,
// error) to the observability exchange. Best-effort: failures only bump a
// counter.
func PublishWSEvent(ctx context.Context, event, reason string, meta ConnMeta) {
	payload := map[string]interface{}{
		"ws": map[string]interface{}{
			"event":       event,
			"conn_id":     meta.ConnID,
			"duration_ms": time.Since(meta.ConnectedAt).Milliseconds(),
			"reason":      reason,
		},
		"identity": map[string]interface{}{
			"user_id":   meta.UserID,
			"device_id": meta.DeviceID,
			"ip":        meta.IP,
		},
	}

	_ = publishEvent(ctx, wsEventsRoutingKey, EventEnvelope{
		EventType: "ws_events",
		EventName: event,
		Payload:   payload,
	}, buildHeaders(meta.RequestID, meta.TraceID))
}

func buildHeaders(requestID, traceID string) map[string]string {
	headers := map[string]string{}
	if requestID != "" {
		headers["x-request-id"] = requestID
	}
	if traceID != "" {
		headers["trace_id"] = traceID
	}
	return headers
}
