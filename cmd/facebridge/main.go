package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"facebridge-go/internal/config"
	"facebridge-go/internal/dispatch"
	"facebridge-go/internal/ingest"
	"facebridge-go/internal/output"
	"facebridge-go/internal/pipeline"
	"facebridge-go/internal/sensorstatus"
	"facebridge-go/internal/server"
	"facebridge-go/internal/simulator"
	"facebridge-go/internal/types"
)

type metrics struct {
	bodyFrames     atomic.Uint64
	faceFrames     atomic.Uint64
	hdfaceFrames   atomic.Uint64
	lostEvents     atomic.Uint64
	handleCount    atomic.Uint64
	handleNanos    atomic.Uint64
	modelsWritten  atomic.Uint64
	modelWriteErrs atomic.Uint64
}

func (m *metrics) snapshot() map[string]any {
	return map[string]any{
		"body_frames_total":     m.bodyFrames.Load(),
		"face_frames_total":     m.faceFrames.Load(),
		"hdface_frames_total":   m.hdfaceFrames.Load(),
		"lost_events_total":     m.lostEvents.Load(),
		"handle_total":          m.handleCount.Load(),
		"handle_nanos_total":    m.handleNanos.Load(),
		"models_written_total":  m.modelsWritten.Load(),
		"model_write_err_total": m.modelWriteErrs.Load(),
	}
}

func main() {
	defs := config.Defaults()
	var (
		oscIP           = flag.String("osc-ip", defs.OSCIP, "Destination IP for OSC messages")
		oscPort         = flag.Int("osc-port", defs.OSCPort, "Destination port for OSC messages")
		localPort       = flag.Int("local-port", defs.LocalPort, "Local UDP port (0 = any)")
		sendBuffer      = flag.Int("send-buffer", defs.SendBuffer, "UDP send buffer size in bytes (0 = OS default)")
		sendTimeout     = flag.Duration("send-timeout", defs.SendTimeout, "Per-datagram send deadline (0 = none)")
		endpoint        = flag.String("endpoint", defs.Endpoint, "ZMQ endpoint of the sensor event feed")
		controlEndpoint = flag.String("control-endpoint", defs.ControlEndpoint, "ZMQ endpoint for retarget commands (empty = disabled)")
		sensorAPI       = flag.String("sensor-api", defs.SensorAPIURL, "Sensor host status URL (empty = disabled)")
		sensorInterval  = flag.Duration("sensor-interval", defs.SensorInterval, "Polling interval for sensor status")
		port            = flag.Int("port", defs.Port, "HTTP port for the status server")
		uiRate          = flag.Duration("ui-rate", defs.UIRate, "Status broadcast interval for websocket clients")
		debug           = flag.Bool("debug", defs.Debug, "Run with simulated sensor data")
		debugRate       = flag.Float64("debug-rate", defs.DebugRate, "Simulated sensor frame rate (frames/sec)")
		capture         = flag.Bool("capture", defs.Capture, "Run a face-model capture session per acquired subject")
		outputDir       = flag.String("output-dir", defs.OutputDir, "Directory for captured face models")
		rawLogEnabled   = flag.Bool("raw-log", defs.RawLogEnabled, "Write raw feed messages to disk")
		rawLogDir       = flag.String("raw-log-dir", defs.RawLogDir, "Directory for raw feed logs")
		ingestLogEvery  = flag.Int("ingest-log-every", defs.IngestLogEvery, "Log every Nth ingest error")
	)
	flag.Parse()

	cfg := config.AppConfig{
		OSCIP:           *oscIP,
		OSCPort:         *oscPort,
		LocalPort:       *localPort,
		SendBuffer:      *sendBuffer,
		SendTimeout:     *sendTimeout,
		Endpoint:        *endpoint,
		ControlEndpoint: *controlEndpoint,
		SensorAPIURL:    *sensorAPI,
		SensorInterval:  *sensorInterval,
		IngestLogEvery:  *ingestLogEvery,
		Port:            *port,
		UIRate:          *uiRate,
		Debug:           *debug,
		DebugRate:       *debugRate,
		Capture:         *capture,
		OutputDir:       *outputDir,
		RawLogEnabled:   *rawLogEnabled,
		RawLogDir:       *rawLogDir,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var m metrics

	sink := dispatch.New(dispatch.Config{
		IP:          cfg.OSCIP,
		Port:        cfg.OSCPort,
		LocalPort:   cfg.LocalPort,
		SendBuffer:  cfg.SendBuffer,
		SendTimeout: cfg.SendTimeout,
		LogEvery:    cfg.IngestLogEvery,
	})
	defer sink.Close()
	if sink.Enabled() {
		log.Printf("sending OSC to %s:%d", cfg.OSCIP, cfg.OSCPort)
	}

	var rawLog *output.RawLogWriter
	var recorder ingest.RawRecorder
	if cfg.RawLogEnabled && !cfg.Debug {
		writer, err := output.NewRawLogWriter(cfg.RawLogDir, "raw_feed")
		if err != nil {
			log.Fatalf("failed to start raw log: %v", err)
		}
		rawLog = writer
		recorder = writer
		go func() {
			<-ctx.Done()
			if err := writer.Close(); err != nil {
				log.Printf("raw log close failed: %v", err)
			}
		}()
	}

	var events <-chan types.Event
	var retargeter pipeline.Retargeter
	if cfg.Debug {
		sim := simulator.New(cfg.DebugRate)
		events = sim.Stream(ctx)
		retargeter = sim
	} else {
		frames, err := ingest.StreamWithLogEveryAndRecorder(ctx, cfg.Endpoint, cfg.IngestLogEvery, recorder)
		if err != nil {
			log.Fatalf("failed to start ingest: %v", err)
		}
		events = frames
		control := ingest.NewControl(cfg.ControlEndpoint, cfg.IngestLogEvery)
		defer control.Close()
		if control.Enabled() {
			retargeter = control
		}
	}

	runTimestamp := time.Now().Format("20060102_150405")
	ctrl := pipeline.NewController(pipeline.Options{
		Sender:     sink,
		Retargeter: retargeter,
		Capture:    cfg.Capture,
		OnModel: func(model *types.FaceModel) {
			if err := output.WriteModel(cfg.OutputDir, runTimestamp, model); err != nil {
				m.modelWriteErrs.Add(1)
				log.Printf("face model write failed: %v", err)
				return
			}
			m.modelsWritten.Add(1)
			log.Printf("captured face model %s (%d vertices)", model.SessionID, len(model.Vertices))
		},
	})

	go func() {
		for ev := range events {
			start := time.Now()
			switch ev.Kind {
			case types.EventBody:
				m.bodyFrames.Add(1)
			case types.EventFace:
				m.faceFrames.Add(1)
			case types.EventHDFace:
				m.hdfaceFrames.Add(1)
			case types.EventTrackingLost:
				m.lostEvents.Add(1)
			}
			ctrl.HandleEvent(ev)
			m.handleCount.Add(1)
			m.handleNanos.Add(uint64(time.Since(start).Nanoseconds()))
		}
	}()

	sensor := struct {
		device atomic.Value
		feed   atomic.Value
	}{}
	sensor.device.Store("unknown")
	sensor.feed.Store("unknown")
	if !cfg.Debug && cfg.SensorAPIURL != "" {
		go sensorstatus.Poll(ctx, cfg.SensorAPIURL, cfg.SensorInterval, func(update sensorstatus.Status) {
			sensor.device.Store(update.Device)
			sensor.feed.Store(update.Feed)
		})
	} else if cfg.Debug {
		sensor.device.Store("simulator")
		sensor.feed.Store("simulator")
	}

	statusFn := func() map[string]any {
		stats := ctrl.Stats()
		sent, sendErrs, skipped := sink.Stats()
		metricsPayload := m.snapshot()
		metricsPayload["subjects_acquired_total"] = stats.SubjectsAcquired
		metricsPayload["invalid_faces_total"] = stats.InvalidFaces
		metricsPayload["stale_frames_total"] = stats.StaleFrames
		metricsPayload["missed_frames_total"] = stats.MissedFrames
		metricsPayload["tracking_losses_total"] = stats.TrackingLosses
		metricsPayload["messages_sent_total"] = sent
		metricsPayload["send_err_total"] = sendErrs
		metricsPayload["send_skipped_total"] = skipped
		metricsPayload["ingest_decode_failures_total"] = ingest.DecodeFailures()
		decodeCount, decodeNanos := ingest.DecodeTiming()
		metricsPayload["ingest_decode_total"] = decodeCount
		metricsPayload["ingest_decode_nanos_total"] = decodeNanos
		if rawLog != nil {
			metricsPayload["rawlog_records_total"] = rawLog.Records()
		}

		return map[string]any{
			"type":        "status",
			"tracking":    ctrl.Status(),
			"tracking_id": ctrl.CurrentID(),
			"osc_enabled": sink.Enabled(),
			"device":      sensor.device.Load(),
			"feed":        sensor.feed.Load(),
			"metrics":     metricsPayload,
		}
	}

	uiMessages := make(chan any, 16)
	go func() {
		defer close(uiMessages)
		if cfg.UIRate <= 0 {
			cfg.UIRate = time.Second
		}
		ticker := time.NewTicker(cfg.UIRate)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				select {
				case uiMessages <- statusFn():
				default:
				}
			}
		}
	}()

	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sent, sendErrs, _ := sink.Stats()
				log.Printf("pipeline stats: body=%d face=%d hdface=%d lost=%d sent=%d send_err=%d decode_failures=%d",
					m.bodyFrames.Load(),
					m.faceFrames.Load(),
					m.hdfaceFrames.Load(),
					m.lostEvents.Load(),
					sent,
					sendErrs,
					ingest.DecodeFailures(),
				)
			}
		}
	}()

	log.Printf("status server at http://localhost:%d", cfg.Port)
	if err := server.Run(ctx, cfg, uiMessages, statusFn); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
