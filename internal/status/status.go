// Package status provides a thread-safe status tracker for the weighbridge daemon.
// The main loop writes it; HTTP handlers and MQTT system events read snapshots.
package status

import (
	"sync"
	"time"

	"github.com/sweeney/weighbridge/internal/logic"
)

// NetworkInfo contains network state reported by the host.
type NetworkInfo struct {
	Type       string
	IP         string
	Status     string
	Gateway    string
	WifiStatus string
	SSID       string
}

// Config contains daemon configuration for display.
type Config struct {
	PollMs          int64
	DebounceMs      int64
	StabilizationMs int64
	Threshold       int
	HeartbeatMs     int64
	Broker          string
	HTTPAddr        string
}

// PublishStats counts broker publish results.
type PublishStats struct {
	Delivered int
	GaveUp    int
	Replayed  int
	Backlog   int
}

// LastEvent is the most recent consumption event seen by the daemon.
type LastEvent struct {
	At          time.Time
	Consumed    int
	Consumption int
	Delivered   bool
}

// Snapshot is a point-in-time view of daemon state.
// It is a value type, safe to use after the lock is released.
type Snapshot struct {
	Mode          string
	Weight        int
	Pipeline      logic.PipelineState
	Primary       string
	StatusText    string
	LastEvent     *LastEvent
	Publish       PublishStats
	StartTime     time.Time
	Now           time.Time
	MQTTConnected bool
	Network       *NetworkInfo
	Config        Config
}

// Uptime returns the duration since the daemon started.
func (s Snapshot) Uptime() time.Duration {
	return s.Now.Sub(s.StartTime)
}

// Tracker holds mutable daemon state behind an RWMutex.
type Tracker struct {
	mu   sync.RWMutex
	snap Snapshot
}

// NewTracker creates a Tracker with the given start time and config.
func NewTracker(startTime time.Time, cfg Config) *Tracker {
	return &Tracker{
		snap: Snapshot{
			StartTime: startTime,
			Config:    cfg,
		},
	}
}

// SetMode records the active mode name.
func (t *Tracker) SetMode(name string) {
	t.mu.Lock()
	t.snap.Mode = name
	t.mu.Unlock()
}

// UpdatePipeline copies the consumption pipeline state.
func (t *Tracker) UpdatePipeline(state logic.PipelineState) {
	t.mu.Lock()
	t.snap.Pipeline = state
	t.mu.Unlock()
}

// SetWeight records the last weight shown in weight mode.
func (t *Tracker) SetWeight(grams int) {
	t.mu.Lock()
	t.snap.Weight = grams
	t.mu.Unlock()
}

// SetDisplay mirrors the text currently on the display.
func (t *Tracker) SetDisplay(primary, statusText string) {
	t.mu.Lock()
	t.snap.Primary = primary
	t.snap.StatusText = statusText
	t.mu.Unlock()
}

// RecordEvent stores the latest consumption event.
func (t *Tracker) RecordEvent(ev LastEvent) {
	t.mu.Lock()
	t.snap.LastEvent = &ev
	t.mu.Unlock()
}

// SetPublishStats records publish counters.
func (t *Tracker) SetPublishStats(stats PublishStats) {
	t.mu.Lock()
	t.snap.Publish = stats
	t.mu.Unlock()
}

// SetMQTTConnected sets the MQTT connection status.
func (t *Tracker) SetMQTTConnected(connected bool) {
	t.mu.Lock()
	t.snap.MQTTConnected = connected
	t.mu.Unlock()
}

// SetNetwork sets the network info.
func (t *Tracker) SetNetwork(info *NetworkInfo) {
	t.mu.Lock()
	t.snap.Network = info
	t.mu.Unlock()
}

// Snapshot returns a point-in-time copy of the daemon state.
// The Now field is set to the current time at the moment of the call.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.RLock()
	s := t.snap
	t.mu.RUnlock()
	if s.LastEvent != nil {
		ev := *s.LastEvent
		s.LastEvent = &ev
	}
	s.Now = time.Now()
	return s
}
