package status

import (
	"encoding/json"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Mode          string       `json:"mode"`
	Display       DisplayJSON  `json:"display"`
	Scale         ScaleJSON    `json:"scale"`
	LastEvent     *EventJSON   `json:"last_event,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// DisplayJSON is the text currently shown.
type DisplayJSON struct {
	Primary string `json:"primary"`
	Status  string `json:"status"`
}

// ScaleJSON reports readings and consumption tracking state.
type ScaleJSON struct {
	WeightGrams int    `json:"weight_g"`
	QuantityMl  int    `json:"quantity_ml"`
	LastSentMl  int    `json:"last_sent_ml"`
	TotalMl     int    `json:"total_ml"`
	Phase       string `json:"phase"`
	Standby     bool   `json:"standby"`
}

// EventJSON is the most recent consumption event.
type EventJSON struct {
	At          string `json:"at"`
	Consumed    int    `json:"consumed"`
	Consumption int    `json:"consumption"`
	Delivered   bool   `json:"delivered"`
}

// MQTTStatus reports MQTT connection state and publish counters.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
	Delivered int    `json:"delivered"`
	GaveUp    int    `json:"gave_up"`
	Replayed  int    `json:"replayed"`
	Backlog   int    `json:"backlog"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	PollMs          int64  `json:"poll_ms"`
	DebounceMs      int64  `json:"debounce_ms"`
	StabilizationMs int64  `json:"stabilization_ms"`
	Threshold       int    `json:"threshold"`
	HeartbeatMs     int64  `json:"heartbeat_ms"`
	Broker          string `json:"broker"`
	HTTPAddr        string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	mode := snap.Mode
	if mode == "" {
		mode = "UNKNOWN"
	}

	inner := StatusInner{
		Mode:    mode,
		Display: DisplayJSON{Primary: snap.Primary, Status: snap.StatusText},
		Scale: ScaleJSON{
			WeightGrams: snap.Weight,
			QuantityMl:  snap.Pipeline.Quantity,
			LastSentMl:  snap.Pipeline.LastSent,
			TotalMl:     snap.Pipeline.Total,
			Phase:       snap.Pipeline.Phase.String(),
			Standby:     snap.Pipeline.Standby,
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT: MQTTStatus{
			Connected: snap.MQTTConnected,
			Broker:    snap.Config.Broker,
			Delivered: snap.Publish.Delivered,
			GaveUp:    snap.Publish.GaveUp,
			Replayed:  snap.Publish.Replayed,
			Backlog:   snap.Publish.Backlog,
		},
		Config: ConfigJSON{
			PollMs:          snap.Config.PollMs,
			DebounceMs:      snap.Config.DebounceMs,
			StabilizationMs: snap.Config.StabilizationMs,
			Threshold:       snap.Config.Threshold,
			HeartbeatMs:     snap.Config.HeartbeatMs,
			Broker:          snap.Config.Broker,
			HTTPAddr:        snap.Config.HTTPAddr,
		},
	}
	if ev := snap.LastEvent; ev != nil {
		inner.LastEvent = &EventJSON{
			At:          ev.At.UTC().Format(time.RFC3339),
			Consumed:    ev.Consumed,
			Consumption: ev.Consumption,
			Delivered:   ev.Delivered,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// Build returns the status document without event fields.
func Build(snap Snapshot) StatusJSON {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)
	return StatusJSON{Status: inner}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(Build(snap), "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	doc := Build(snap)
	doc.Status.Event = event
	doc.Status.Reason = reason

	data, _ := json.Marshal(doc)
	return data
}
