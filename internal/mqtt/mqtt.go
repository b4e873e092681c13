// Package mqtt publishes scale events to an MQTT broker with bounded retry.
package mqtt

import (
	"encoding/json"
	"time"

	"github.com/sweeney/weighbridge/internal/logic"
)

// Default topics. These are a compatibility contract with existing dashboards.
const (
	TopicState  = "/weighbridge/api/1/state/"
	TopicGame   = "/snake/api/1/state/"
	TopicSystem = "/weighbridge/api/1/system/"
)

// Topics holds the topic per event kind.
type Topics struct {
	State  string `mapstructure:"state"`
	Game   string `mapstructure:"game"`
	System string `mapstructure:"system"`
}

// DefaultTopics returns the standard topic set.
func DefaultTopics() Topics {
	return Topics{State: TopicState, Game: TopicGame, System: TopicSystem}
}

// ConsumptionPayload is the message published for a detected drink.
type ConsumptionPayload struct {
	Consumed    int `json:"consumed"`
	Consumption int `json:"consumption"`
}

// GamePayload is the message published when a snake game ends.
type GamePayload struct {
	TimePlayed int64 `json:"time_played"`
	Score      int   `json:"score"`
}

// FormatConsumption creates the JSON payload for a consumption event.
func FormatConsumption(ev logic.ConsumptionEvent) ([]byte, error) {
	return json.Marshal(ConsumptionPayload{Consumed: ev.Consumed, Consumption: ev.Consumption})
}

// FormatGameResult creates the JSON payload for a game result.
func FormatGameResult(r logic.GameResult) ([]byte, error) {
	return json.Marshal(GamePayload{TimePlayed: r.TimePlayed.Milliseconds(), Score: r.Score})
}

// SystemEvent represents a system lifecycle event (e.g., startup, shutdown, heartbeat).
type SystemEvent struct {
	Timestamp  time.Time
	Event      string // e.g., "STARTUP", "SHUTDOWN", "HEARTBEAT"
	Reason     string // e.g., "SIGTERM", "SIGINT" (shutdown only)
	RawPayload []byte // Pre-formatted JSON payload; if set, FormatSystemPayload returns it directly
	Retained   bool   // Whether the message should be retained by the broker
}

// SystemPayload is the payload for system events that carry no status snapshot
// (the last will, for example).
type SystemPayload struct {
	System SystemPayloadInner `json:"system"`
}

// SystemPayloadInner contains the system event details.
type SystemPayloadInner struct {
	Timestamp string `json:"timestamp,omitempty"`
	Event     string `json:"event"`
	Reason    string `json:"reason,omitempty"`
}

// FormatSystemPayload creates the JSON payload for a system event.
// If event.RawPayload is set, it is returned directly (used for full status snapshots).
func FormatSystemPayload(event SystemEvent) ([]byte, error) {
	if event.RawPayload != nil {
		return event.RawPayload, nil
	}

	inner := SystemPayloadInner{
		Event:  event.Event,
		Reason: event.Reason,
	}
	if !event.Timestamp.IsZero() {
		inner.Timestamp = event.Timestamp.UTC().Format(time.RFC3339)
	}
	return json.Marshal(SystemPayload{System: inner})
}

// WillPayload is registered with the broker and published if the device drops
// off without a clean disconnect.
func WillPayload() []byte {
	data, _ := FormatSystemPayload(SystemEvent{Event: "OFFLINE", Reason: "CONNECTION_LOST"})
	return data
}
