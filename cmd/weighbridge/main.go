// Command weighbridge runs the smart scale: it reads the load cell and four
// buttons, drives the display modes and publishes consumption to MQTT.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/pflag"
	"go.uber.org/zap"

	"github.com/sweeney/weighbridge/internal/config"
	"github.com/sweeney/weighbridge/internal/gpio"
	"github.com/sweeney/weighbridge/internal/hx711"
	"github.com/sweeney/weighbridge/internal/logger"
	"github.com/sweeney/weighbridge/internal/logic"
	"github.com/sweeney/weighbridge/internal/mqtt"
	"github.com/sweeney/weighbridge/internal/store"
	"github.com/sweeney/weighbridge/internal/web"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	if errors.Is(err, pflag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "weighbridge: %v\n", err)
		os.Exit(2)
	}

	log, err := logger.New(cfg.Log.Level)
	if err != nil {
		fmt.Fprintf(os.Stderr, "weighbridge: %v\n", err)
		os.Exit(2)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatalw("fatal", "error", err)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	pins := gpio.Pins{Up: cfg.GPIO.Up, Down: cfg.GPIO.Down, Left: cfg.GPIO.Left, Right: cfg.GPIO.Right}
	reader, err := gpio.NewRealReader(cfg.GPIO.Chip, pins, cfg.GPIO.ActiveLow)
	if err != nil {
		return fmt.Errorf("init gpio: %w", err)
	}
	defer reader.Close()

	bus, err := hx711.NewLineBus(cfg.GPIO.Chip, cfg.Scale.DataPin, cfg.Scale.ClockPin)
	if err != nil {
		return fmt.Errorf("init hx711: %w", err)
	}
	scale := hx711.New(bus, hx711.Config{
		Calibration: cfg.Scale.Calibration,
		Samples:     cfg.Scale.Samples,
		Gain:        gainFor(cfg.Scale.Gain),
	})
	defer scale.Close()
	if cfg.Scale.Offset != 0 {
		scale.SetOffset(cfg.Scale.Offset)
	}

	if cfg.PrintState {
		return printState(os.Stdout, scale, reader, cfg.Scale.Samples)
	}

	var (
		rec     recorder
		history web.History
		total   int
	)
	if cfg.DB.Path != "" {
		db, err := store.Open(cfg.DB.Path)
		if err != nil {
			return fmt.Errorf("open history: %w", err)
		}
		defer db.Close()
		st := store.New(db)
		rec, history = st, st

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		total, err = st.Total(ctx)
		cancel()
		if err != nil {
			log.Warnw("could not restore total, starting from zero", "error", err)
			total = 0
		}
		log.Infow("history opened", "path", cfg.DB.Path, "total_ml", total)
	}

	client := mqtt.NewPahoClient(mqtt.ClientOptions{
		Broker:         cfg.MQTT.Broker,
		ClientID:       cfg.MQTT.ClientID,
		Username:       cfg.MQTT.Username,
		Password:       cfg.MQTT.Password,
		ConnectTimeout: cfg.MQTT.ConnectTimeout,
		WillTopic:      cfg.MQTT.Topics.System,
	})

	d, err := newDaemon(cfg, hardware{
		sensor:   scale,
		reader:   reader,
		client:   client,
		recorder: rec,
		total:    total,
	}, log.SugaredLogger)
	if err != nil {
		return err
	}
	defer d.gateway.Close()
	d.gateway.LinkUp = linkUp
	if net := readNetworkInfo(); net != nil {
		d.tracker.SetNetwork(net)
	}

	if cfg.HTTP.Addr != "" {
		gin.SetMode(gin.ReleaseMode)
		srv := web.New(cfg.HTTP.Addr, web.Deps{
			Tracker: d.tracker,
			History: history,
			Tarer:   scale,
			Log:     log.Named("web"),
		})
		go func() {
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				log.Errorw("http server error", "error", err)
			}
		}()
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			_ = srv.Shutdown(ctx)
		}()
		log.Infow("http status server listening", "addr", cfg.HTTP.Addr)
	}

	log.Infow("started",
		"poll", cfg.Poll,
		"debounce", cfg.Debounce,
		"stabilization", cfg.Stabilization,
		"broker", cfg.MQTT.Broker,
		"heartbeat", cfg.Heartbeat,
	)

	ticker := time.NewTicker(cfg.Poll)
	defer ticker.Stop()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	return runLoop(d, time.Now, ticker.C, sigCh)
}

// printState fills the averaging window, then prints one reading and the
// button levels.
func printState(w io.Writer, scale *hx711.Scale, reader gpio.Reader, samples int) error {
	if samples <= 0 {
		samples = hx711.DefaultSamples
	}
	got := 0
	deadline := time.Now().Add(5 * time.Second)
	for got < samples && time.Now().Before(deadline) {
		if scale.Update() {
			got++
			continue
		}
		time.Sleep(10 * time.Millisecond)
	}
	if got == 0 {
		return errors.New("hx711: no conversion within 5s")
	}

	weight := scale.Sample()
	fmt.Fprintf(w, "weight: %s (%.1fg), offset: %.0f, read errors: %d\n",
		logic.FormatWeight(int(math.Round(weight))), weight, scale.Offset(), scale.Errors)
	for ch := logic.Channel(0); ch < logic.NumChannels; ch++ {
		level, err := reader.ReadLevel(ch)
		if err != nil {
			return fmt.Errorf("read %s button: %w", ch, err)
		}
		state := "released"
		if level == logic.High {
			state = "pressed"
		}
		fmt.Fprintf(w, "%s: %s\n", ch, state)
	}
	return nil
}

func gainFor(g int) hx711.Gain {
	switch g {
	case 64:
		return hx711.GainA64
	case 32:
		return hx711.GainB32
	default:
		return hx711.GainA128
	}
}

// zapNamed is a small helper so daemon construction can accept a nil logger.
func zapNamed(log *zap.SugaredLogger, name string) *zap.SugaredLogger {
	if log == nil {
		return zap.NewNop().Sugar()
	}
	return log.Named(name)
}
