package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"syscall"
	"time"

	"github.com/Nhashaamn/resq/controller"
	"github.com/Nhashaamn/resq/services/ingest"
	"github.com/Nhashaamn/resq/services/notify"
	"github.com/Nhashaamn/resq/services/store"
	"github.com/Nhashaamn/resq/services/transport"
	"github.com/Nhashaamn/resq/utils"
	"github.com/Nhashaamn/resq/views/httpapi"
)

func main() {
	// ── CLI flags ────────────────────────────────────────────────────
	configPath := flag.String("config", "config/resq.yaml", "path to resq.yaml")
	logFile := flag.String("log", "", "optional log file path (stdout is always included)")
	level := flag.String("level", "", "log level override: debug, info, warn, error")
	flag.Parse()

	// ── Config ───────────────────────────────────────────────────────
	cfg, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *logFile != "" {
		cfg.Log.File = *logFile
	}
	if *level != "" {
		cfg.Log.Level = *level
	}

	// ── Logger ───────────────────────────────────────────────────────
	utils.InitLogger(utils.ParseLevel(cfg.Log.Level), cfg.Log.File)
	defer utils.CloseLogger()

	utils.L().Info("resq shake monitor",
		"gomaxprocs", runtime.GOMAXPROCS(0), "pid", os.Getpid(),
		"source", cfg.Sensor.Source, "threshold", cfg.Detection.Threshold)

	if err := run(cfg); err != nil {
		utils.L().Error("fatal", "error", err)
		utils.CloseLogger()
		os.Exit(1)
	}
}

func run(cfg *utils.Config) error {
	// Resolve relative base_dir to absolute.
	if !filepath.IsAbs(cfg.Storage.BaseDir) {
		abs, err := filepath.Abs(cfg.Storage.BaseDir)
		if err != nil {
			return fmt.Errorf("resolve base dir: %w", err)
		}
		cfg.Storage.BaseDir = abs
	}
	if err := os.MkdirAll(cfg.Storage.BaseDir, 0755); err != nil {
		return fmt.Errorf("create base dir: %w", err)
	}

	// ── Context with OS signal cancellation ──────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Incident store ───────────────────────────────────────────────
	var st *store.Store
	if cfg.Storage.DBFile != "" {
		var err error
		st, err = store.Open(filepath.Join(cfg.Storage.BaseDir, cfg.Storage.DBFile))
		if err != nil {
			return err
		}
		defer st.Close()
	}

	// ── MQTT ─────────────────────────────────────────────────────────
	//
	// The client is needed to read samples (source=mqtt) and to publish
	// resolved incidents (action_topic set). Handlers are registered
	// before Connect so the first session subscribes to them.
	var mq *transport.Client
	if cfg.Sensor.Source == utils.SourceMQTT || cfg.MQTT.ActionTopic != "" {
		mq = transport.NewClient(cfg.MQTT)
	}

	// ── Pipeline assembly ────────────────────────────────────────────
	//
	//  AccelReader ──► MonitorController ──ShakeEvent──► EmergencyController
	//                                                       │        │
	//                                                  handlers    Record chan
	//                                               (log, mqtt)      │
	//                                                       RecordingController
	//                                                        │      │       │
	//                                                 shakes.csv incidents.csv sqlite

	// 1. Sensors
	var sub *transport.Client
	if cfg.Sensor.Source == utils.SourceMQTT {
		sub = mq
	}
	sensorCtrl := controller.NewSensorsController(cfg, subscriber(sub))

	if mq != nil {
		// outlives ctx so escalations raised while stopping can still be
		// published; cancelled after Close
		mqCtx, mqCancel := context.WithCancel(context.Background())
		defer mqCancel()
		if err := mq.Connect(mqCtx, 30*time.Second); err != nil {
			return err
		}
		defer func() {
			closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := mq.Close(closeCtx); err != nil {
				utils.L().Warn("mqtt close", "error", err)
			}
		}()
	}
	sensorCtrl.Start(ctx)

	// 2. Shake detection
	monitorCtrl := controller.NewMonitorController(cfg.Detection)
	monitorCtrl.Start(ctx, sensorCtrl.AccelCh)

	// 3. Countdown and escalation
	handlers := []controller.ActionHandler{notify.NewLogNotifier(utils.L())}
	if mq != nil && cfg.MQTT.ActionTopic != "" {
		handlers = append(handlers, notify.NewMQTTNotifier(mq, cfg.MQTT.ActionTopic))
	}
	emergencyCtrl := controller.NewEmergencyController(cfg.Countdown, monitorCtrl, handlers...)
	emergencyCtrl.Start(ctx, monitorCtrl.Out)

	// 4. Recording
	var recStore controller.IncidentStore
	if st != nil {
		recStore = st
	}
	recordCtrl, err := controller.NewRecordingController(cfg.Storage, recStore)
	if err != nil {
		return fmt.Errorf("init recording controller: %w", err)
	}
	recordCtrl.Start(ctx, emergencyCtrl.Out)

	// 5. HTTP control surface
	var srv *http.Server
	if cfg.API.Enabled {
		var incidents httpapi.IncidentReader
		if st != nil {
			incidents = st
		}
		api := httpapi.NewAPI(monitorCtrl, emergencyCtrl, incidents)
		srv = &http.Server{
			Addr:              cfg.API.Listen,
			Handler:           api.Router(),
			ReadHeaderTimeout: 5 * time.Second,
		}
		go func() {
			utils.L().Info("http api listening", "addr", cfg.API.Listen)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				utils.L().Error("http api", "error", err)
			}
		}()
	}

	utils.L().Info("pipeline running, press Ctrl+C to stop")

	// ── Stats ticker ─────────────────────────────────────────────────
	statsTicker := time.NewTicker(5 * time.Second)
	defer statsTicker.Stop()

loop:
	for {
		select {
		case <-ctx.Done():
			utils.L().Info("shutting down")
			break loop

		case <-statsTicker.C:
			sensorCtrl.LogStats()
			monitorCtrl.LogStats()
			emergencyCtrl.LogStats()
			s, i := recordCtrl.Written()
			utils.L().Info("recorded", "shakes", s, "incidents", i)
			if st != nil {
				if total, suppressed, err := st.ShakeCounts(); err == nil {
					utils.L().Info("history", "shakes", total, "suppressed", suppressed)
				}
			}
		}
	}

	if srv != nil {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := srv.Shutdown(shutdownCtx); err != nil {
			utils.L().Warn("http shutdown", "error", err)
		}
		cancel()
	}

	// The emergency stage closes its output once pending handlers finish,
	// which lets the recorder drain and return.
	recordCtrl.Stop()

	utils.L().Info("session saved", "dir", recordCtrl.SessionDir())
	return nil
}

// subscriber avoids handing the sensors controller a typed nil.
func subscriber(c *transport.Client) ingest.Subscriber {
	if c == nil {
		return nil
	}
	return c
}
