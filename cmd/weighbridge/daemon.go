package main

import (
	"context"
	"fmt"
	"math/rand/v2"
	"os"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/sweeney/weighbridge/internal/config"
	"github.com/sweeney/weighbridge/internal/display"
	"github.com/sweeney/weighbridge/internal/logic"
	"github.com/sweeney/weighbridge/internal/mqtt"
	"github.com/sweeney/weighbridge/internal/snake"
	"github.com/sweeney/weighbridge/internal/status"
	"github.com/sweeney/weighbridge/internal/store"
)

// recorder persists consumption events.
type recorder interface {
	Append(ctx context.Context, r store.Record) (store.Record, error)
}

// hardware is what newDaemon needs from the outside world.
type hardware struct {
	sensor   logic.Sensor
	reader   logic.InputReader
	client   mqtt.Client
	recorder recorder // nil disables history
	total    int
	rng      *rand.Rand
}

// daemon owns the single-threaded device state driven by runLoop.
type daemon struct {
	log        *zap.SugaredLogger
	input      *logic.Debouncer
	dispatcher *logic.Dispatcher
	weight     *logic.WeightMode
	volume     *logic.VolumeMode
	game       *snake.Mode
	gateway    *mqtt.Gateway
	tracker    *status.Tracker
	recorder   recorder
	heartbeat  time.Duration
	// wall is the wall-clock time of the current tick.
	wall time.Time
}

func newDaemon(cfg *config.Config, hw hardware, log *zap.SugaredLogger) (*daemon, error) {
	tracker := status.NewTracker(time.Now(), status.Config{
		PollMs:          cfg.Poll.Milliseconds(),
		DebounceMs:      cfg.Debounce.Milliseconds(),
		StabilizationMs: cfg.Stabilization.Milliseconds(),
		Threshold:       cfg.Threshold,
		HeartbeatMs:     cfg.Heartbeat.Milliseconds(),
		Broker:          cfg.MQTT.Broker,
		HTTPAddr:        cfg.HTTP.Addr,
	})

	gateway := mqtt.NewGateway(hw.client, mqtt.GatewayConfig{
		Topics:     cfg.MQTT.Topics,
		Attempts:   cfg.MQTT.Attempts,
		RetryDelay: cfg.MQTT.RetryDelay,
		Backlog:    cfg.MQTT.Backlog,
		QoS:        1,
	}, zapNamed(log, "mqtt"))

	disp := display.New(tracker, zapNamed(log, "display"))
	input := logic.NewDebouncer(hw.reader, logic.MillisOf(cfg.Debounce))

	pipeline := logic.NewPipeline(logic.PipelineConfig{
		Threshold:      cfg.Threshold,
		Stabilization:  logic.MillisOf(cfg.Stabilization),
		DisplayTimeout: logic.MillisOf(cfg.DisplayTimeout),
		FirstDeltaZero: cfg.FirstDeltaZero,
	}, hw.sensor, disp, gateway, hw.total)

	d := &daemon{
		log:        zapNamed(log, "daemon"),
		input:      input,
		dispatcher: logic.NewDispatcher(cfg.ModeCapacity),
		weight:     logic.NewWeightMode(hw.sensor, disp, input, logic.MillisOf(cfg.DisplayTimeout)),
		volume:     logic.NewVolumeMode(pipeline, input),
		game:       snake.NewMode(input, disp, gateway, hw.rng),
		gateway:    gateway,
		tracker:    tracker,
		recorder:   hw.recorder,
		heartbeat:  cfg.Heartbeat,
		wall:       time.Now(),
	}
	pipeline.OnEvent = d.onConsumption

	for _, m := range []logic.Mode{d.weight, d.volume, d.game} {
		if err := d.dispatcher.Register(m); err != nil {
			return nil, fmt.Errorf("register %s mode: %w", m.Name(), err)
		}
	}
	return d, nil
}

// onConsumption records a published (or abandoned) consumption event.
func (d *daemon) onConsumption(ev logic.ConsumptionEvent, out logic.Outcome) {
	d.log.Infow("consumption",
		"consumed", ev.Consumed,
		"consumption", ev.Consumption,
		"outcome", out.Kind,
		"code", out.Code,
	)

	rec := store.Record{
		OccurredAt:  d.wall,
		Consumed:    ev.Consumed,
		Consumption: ev.Consumption,
		Delivered:   out.OK(),
	}
	if d.recorder != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		saved, err := d.recorder.Append(ctx, rec)
		cancel()
		if err != nil {
			d.log.Errorw("history append failed", "error", err)
		} else {
			rec = saved
		}
	}
	d.tracker.RecordEvent(status.LastEvent{
		At:          rec.OccurredAt,
		Consumed:    rec.Consumed,
		Consumption: rec.Consumption,
		Delivered:   rec.Delivered,
	})
}

// step runs one cooperative tick at device time ms.
func (d *daemon) step(ms logic.Millis) {
	d.input.PollAll(ms)
	req, err := d.dispatcher.Tick(ms)
	if err != nil {
		d.log.Errorw("mode switch failed", "request", req.Kind, "error", err)
	} else if req.Kind != logic.SwitchNone {
		_, m := d.dispatcher.Current()
		d.log.Infow("mode changed", "mode", m.Name())
	}
	if res := d.game.LastResult; res != nil {
		d.log.Infow("game over", "score", res.Score, "time_played", res.TimePlayed)
		d.game.LastResult = nil
	}
	d.refreshStatus()
}

func (d *daemon) refreshStatus() {
	if _, m := d.dispatcher.Current(); m != nil {
		d.tracker.SetMode(m.Name())
	}
	d.tracker.SetWeight(d.weight.Quantity())
	d.tracker.UpdatePipeline(d.volume.Pipeline().State())
	stats := d.gateway.Stats()
	d.tracker.SetPublishStats(status.PublishStats{
		Delivered: stats.Delivered,
		GaveUp:    stats.GaveUp,
		Replayed:  stats.Replayed,
		Backlog:   stats.Backlog,
	})
	d.tracker.SetMQTTConnected(d.gateway.IsConnected())
}

// publishSystem sends a lifecycle event carrying a full status snapshot.
func (d *daemon) publishSystem(event, reason string) {
	d.refreshStatus()
	snap := d.tracker.Snapshot()
	se := mqtt.SystemEvent{
		Timestamp:  d.wall,
		Event:      event,
		Reason:     reason,
		Retained:   event != "HEARTBEAT",
		RawPayload: status.FormatStatusEvent(snap, event, reason),
	}
	if err := d.gateway.PublishSystem(se); err != nil {
		d.log.Warnw("system event not published", "event", event, "error", err)
		return
	}
	d.log.Infow("published system event", "event", event)
}

// runLoop drives the device until a signal arrives. now supplies wall time;
// device time is milliseconds since the loop started.
func runLoop(d *daemon, now func() time.Time, tick <-chan time.Time, sig <-chan os.Signal) error {
	start := now()
	d.wall = start
	lastHeartbeat := start

	if err := d.dispatcher.SwitchTo(0, 0); err != nil {
		return fmt.Errorf("activate first mode: %w", err)
	}
	d.publishSystem("STARTUP", "")

	for {
		select {
		case s := <-sig:
			d.log.Infow("shutting down", "signal", s.String())
			d.publishSystem("SHUTDOWN", signalName(s))
			return nil

		case <-tick:
			t := now()
			d.wall = t
			d.step(logic.MillisOf(t.Sub(start)))

			if d.heartbeat > 0 && t.Sub(lastHeartbeat) >= d.heartbeat {
				lastHeartbeat = t
				if net := readNetworkInfo(); net != nil {
					d.tracker.SetNetwork(net)
				}
				d.publishSystem("HEARTBEAT", "")
			}
		}
	}
}

func signalName(s os.Signal) string {
	switch s {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return "UNKNOWN"
	}
}
