package listen

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datatone/tonewire/internal/audio"
	"github.com/datatone/tonewire/internal/bundle"
	"github.com/datatone/tonewire/internal/conf"
	"github.com/datatone/tonewire/internal/errors"
	"github.com/datatone/tonewire/internal/fsk"
	"github.com/datatone/tonewire/internal/logging"
	"github.com/datatone/tonewire/internal/modem"
	"github.com/datatone/tonewire/internal/mqtt"
	"github.com/datatone/tonewire/internal/observability"
)

var log = logging.ForService("daemon")

// probeTimeout bounds the staged broker connectivity test at daemon startup.
const probeTimeout = 30 * time.Second

// connectRetryInterval paces connection attempts when the broker is not
// reachable when the daemon starts.
const connectRetryInterval = 30 * time.Second

// Command creates the listen command for receiving transmissions.
func Command(settings *conf.Settings) *cobra.Command {
	var daemon bool

	cmd := &cobra.Command{
		Use:   "listen",
		Short: "Listen for an incoming transmission",
		Long: `Wait for an FSK transmission on the configured capture device and decode
it. Text payloads are printed; file payloads are written to the output
directory under their original name. With --daemon the command keeps
listening, publishes every received frame to MQTT when enabled, and serves
Prometheus metrics when telemetry is enabled.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if daemon {
				return runDaemon(settings)
			}
			return runOnce(settings)
		},
	}

	cmd.Flags().BoolVar(&daemon, "daemon", false, "Keep listening and publish received frames")

	if err := setupFlags(cmd, settings); err != nil {
		fmt.Printf("error setting up flags: %v\n", err)
		os.Exit(1)
	}

	return cmd
}

// setupFlags configures flags specific to the listen command.
func setupFlags(cmd *cobra.Command, settings *conf.Settings) error {
	cmd.Flags().IntVarP(&settings.Receiver.TimeoutSeconds, "timeout", "t", viper.GetInt("receiver.timeoutseconds"), "Seconds to wait for a signal before giving up")
	cmd.Flags().Float64Var(&settings.Receiver.NoiseThreshold, "threshold", viper.GetFloat64("receiver.noisethreshold"), "RMS level a chunk must reach to count as signal")
	cmd.Flags().StringVar(&settings.Realtime.Audio.Source, "source", viper.GetString("realtime.audio.source"), "Capture device name (empty for system default)")
	cmd.Flags().StringVarP(&settings.Output.Path, "output", "o", viper.GetString("output.path"), "Directory for received files")

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return fmt.Errorf("error binding flags: %w", err)
	}

	return nil
}

// runOnce performs a single listen and reports the result on stdout.
func runOnce(settings *conf.Settings) error {
	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	device := audio.NewMalgoDevice(settings.Realtime.Audio.Source, settings.Realtime.Audio.Playback)
	rx, err := modem.NewReceiver(settings, codec, device, nil)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	timeout := time.Duration(settings.Receiver.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = modem.DefaultListenTimeout
	}

	fmt.Printf("Listening (%s mode, timeout %s). Press Ctrl+C to stop.\n", codec.Mode(), timeout)

	payload, err := rx.Listen(ctx, timeout, nil, func(state modem.RxState, _ error) {
		switch state {
		case modem.RxReceiving:
			fmt.Println("Signal detected, capturing...")
		case modem.RxDecoding:
			fmt.Println("Decoding...")
		}
	})
	switch {
	case err == nil:
	case errors.Is(err, modem.ErrListenTimeout):
		return fmt.Errorf("no transmission heard within %s", timeout)
	case errors.Is(err, context.Canceled):
		fmt.Println("Cancelled.")
		return nil
	default:
		return err
	}

	return deliverPayload(settings, payload, rx.SignalLevel())
}

// deliverPayload prints a text payload or saves a file payload, depending
// on whether the frame carries a bundle envelope.
func deliverPayload(settings *conf.Settings, payload []byte, level float64) error {
	hdr, body, isBundle, err := bundle.Unpack(payload)
	if isBundle {
		if err != nil {
			return err
		}
		path, err := savePayload(settings.Output.Path, hdr.Name, body)
		if err != nil {
			return err
		}
		fmt.Printf("Received file %q (%d bytes, peak RMS %.3f) -> %s\n", hdr.Name, len(body), level, path)
		return nil
	}

	if !utf8.Valid(payload) {
		name := fmt.Sprintf("received-%s.bin", time.Now().Format("20060102-150405"))
		path, err := savePayload(settings.Output.Path, name, payload)
		if err != nil {
			return err
		}
		fmt.Printf("Received %d binary bytes (peak RMS %.3f) -> %s\n", len(payload), level, path)
		return nil
	}

	fmt.Printf("Received %d bytes (peak RMS %.3f):\n", len(payload), level)
	fmt.Println(string(payload))
	return nil
}

// runDaemon listens in a loop, publishing received frames to MQTT and
// exposing metrics until the process is signalled to stop.
func runDaemon(settings *conf.Settings) error {
	if settings.Main.Log.Enabled {
		fileLog, closeLog, err := openFileLog(settings)
		if err != nil {
			log.Warn("file log unavailable, continuing on stdout",
				"path", settings.Main.Log.Path, "error", err)
		} else {
			defer func() { _ = closeLog() }()
			log = fileLog
		}
	}

	m, err := observability.NewMetrics()
	if err != nil {
		return err
	}

	codec, err := settings.Modem.Codec()
	if err != nil {
		return err
	}

	device := audio.NewMalgoDevice(settings.Realtime.Audio.Source, settings.Realtime.Audio.Playback)
	rx, err := modem.NewReceiver(settings, codec, device, m.Modem)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var wg sync.WaitGroup
	quit := make(chan struct{})

	if settings.Realtime.Telemetry.Enabled {
		endpoint, err := observability.NewEndpoint(settings, m)
		if err != nil {
			return err
		}
		endpoint.Start(&wg, quit)
	}

	var client mqtt.Client
	if settings.Realtime.MQTT.Enabled {
		client, err = mqtt.NewClient(settings, m)
		if err != nil {
			return err
		}
		probeBroker(ctx, client)
		if !client.IsConnected() {
			log.Warn("broker not reachable at startup, retrying in background",
				"broker", settings.Realtime.MQTT.Broker)
			go retryConnect(ctx, client)
		}
		defer client.Disconnect()
	}

	log.Info("daemon started",
		"node", settings.Main.Name,
		"mode", string(codec.Mode()),
		"mqtt", settings.Realtime.MQTT.Enabled,
		"telemetry", settings.Realtime.Telemetry.Enabled)

	loopErr := listenLoop(ctx, settings, rx, codec, client)

	close(quit)
	wg.Wait()
	log.Info("daemon stopped")
	return loopErr
}

// openFileLog creates the daemon's rotating file logger, tagged with the
// node name so aggregated logs from several nodes stay distinguishable.
func openFileLog(settings *conf.Settings) (*slog.Logger, func() error, error) {
	level := slog.LevelInfo
	if settings.Debug {
		level = slog.LevelDebug
	}
	return logging.NewFileLogger(
		settings.Main.Log.Path,
		logging.SanitizeServiceName(settings.Main.Name),
		level,
		logging.FileLoggerOptions{
			MaxSizeMB:  settings.Main.Log.MaxSize,
			MaxBackups: settings.Main.Log.MaxBackups,
			MaxAgeDays: settings.Main.Log.MaxAge,
			Compress:   settings.Main.Log.Compress,
		},
	)
}

// probeBroker runs the staged connectivity test against the configured
// broker and logs each stage. A failed probe does not abort the daemon;
// reconnect logic keeps trying in the background.
func probeBroker(ctx context.Context, client mqtt.Client) {
	probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	results := make(chan mqtt.TestResult)
	go func() {
		client.TestConnection(probeCtx, results)
		close(results)
	}()

	for r := range results {
		if r.IsProgress {
			continue
		}
		if r.Success {
			log.Info("broker probe", "stage", r.Stage, "message", r.Message)
		} else {
			log.Warn("broker probe failed", "stage", r.Stage, "error", r.Error)
		}
	}
}

// retryConnect keeps attempting the initial broker connection until it
// succeeds or the daemon shuts down. Reconnects after a drop are handled
// by the client itself.
func retryConnect(ctx context.Context, client mqtt.Client) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-time.After(connectRetryInterval):
		}
		if client.IsConnected() {
			return
		}
		if err := client.Connect(ctx); err != nil {
			log.Warn("broker connect failed", "error", err)
			continue
		}
		return
	}
}

// listenLoop runs Listen repeatedly until the context is cancelled. Quiet
// timeouts restart the listen; decode failures are logged and skipped;
// device errors back off briefly before retrying.
func listenLoop(ctx context.Context, settings *conf.Settings, rx *modem.Receiver, codec *fsk.Codec, client mqtt.Client) error {
	timeout := time.Duration(settings.Receiver.TimeoutSeconds) * time.Second

	for {
		payload, err := rx.Listen(ctx, timeout, nil, nil)
		switch {
		case err == nil:
			handleFrame(ctx, settings, rx, codec, client, payload)
		case errors.Is(err, modem.ErrListenTimeout):
			log.Debug("no signal, listening again")
		case errors.Is(err, context.Canceled), errors.Is(err, modem.ErrListenStopped):
			return nil
		case errors.IsCategory(err, errors.CategoryDecode):
			log.Warn("undecodable transmission", "error", err)
		default:
			log.Error("listen failed", "error", err)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
		}
	}
}

// handleFrame saves file payloads, logs the reception and publishes a
// receive event to MQTT when a client is configured.
func handleFrame(ctx context.Context, settings *conf.Settings, rx *modem.Receiver, codec *fsk.Codec, client mqtt.Client, payload []byte) {
	id := uuid.New().String()[:8]
	event := mqtt.NewReceiveEventDTO(id, settings.Main.Name, string(codec.Mode()), payload, rx.SignalLevel())

	hdr, body, isBundle, err := bundle.Unpack(payload)
	switch {
	case isBundle && err != nil:
		log.Warn("received corrupt file envelope", "id", id, "bytes", len(payload), "error", err)
	case isBundle:
		event.SetBundle(&hdr)
		path, saveErr := savePayload(settings.Output.Path, hdr.Name, body)
		if saveErr != nil {
			log.Error("saving received file", "id", id, "name", hdr.Name, "error", saveErr)
		} else {
			log.Info("received file", "id", id, "name", hdr.Name, "bytes", len(body), "path", path)
		}
	default:
		log.Info("received frame", "id", id, "bytes", len(payload), "rms", rx.SignalLevel())
	}

	if client == nil {
		return
	}

	eventJSON, err := json.Marshal(event)
	if err != nil {
		log.Error("encoding receive event", "id", id, "error", err)
		return
	}
	if err := client.Publish(ctx, settings.Realtime.MQTT.Topic, string(eventJSON)); err != nil {
		log.Warn("publishing receive event", "id", id, "error", err)
	}
}

// savePayload writes body into dir under name, appending a numeric suffix
// when the name is already taken. It returns the path written.
func savePayload(dir, name string, body []byte) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}

	base := filepath.Base(name)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)

	path := filepath.Join(dir, base)
	for n := 1; ; n++ {
		if _, err := os.Stat(path); os.IsNotExist(err) {
			break
		}
		path = filepath.Join(dir, fmt.Sprintf("%s-%d%s", stem, n, ext))
	}

	if err := os.WriteFile(path, body, 0o644); err != nil {
		return "", err
	}
	return path, nil
}
