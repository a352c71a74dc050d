// Command adaptics-engine renders patterns from the web-based mid-air
// haptics designer tool over a WebSocket connection, driving either an
// ultrasound emitter, a vibrotactile glove, or (with
// --use-mock-streaming) a logging mock device.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/cbegin/adaptics-engine-go/internal/adaptics"
	"github.com/cbegin/adaptics-engine-go/internal/device/vibrotactile"
)

// vibGridNotGiven is the --vib-grid default, distinguishing an absent
// flag (drive the ultrasound emitter) from an explicitly empty value
// (list serial ports and exit).
const vibGridNotGiven = "\x00not-given"

func main() {
	var (
		websocketBindAddr = flag.String("websocket-bind-addr", "127.0.0.1:8037", "address the websocket control server binds to")
		useMockStreaming  = flag.Bool("use-mock-streaming", false, "drive a logging mock device instead of real hardware")
		noNetwork         = flag.Bool("no-network", false, "disable the websocket control server and playback-update telemetry")
		noTracking        = flag.Bool("no-tracking", false, "disable hand tracking")
		vibGrid           = flag.String("vib-grid", vibGridNotGiven, `drive the vibrotactile glove on <port>, or "auto" to auto-detect; an empty value lists available ports and exits`)
	)
	flag.Parse()

	cfg, err := buildConfig(*useMockStreaming, *vibGrid, *noNetwork, *websocketBindAddr, *noTracking)
	if err != nil {
		logrus.Fatal(err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine, err := adaptics.Run(ctx, cfg)
	if err != nil {
		logrus.Fatal(err)
	}

	if err := engine.Wait(); err != nil {
		logrus.Fatal(err)
	}
}

func buildConfig(useMockStreaming bool, vibGrid string, noNetwork bool, websocketBindAddr string, noTracking bool) (adaptics.Config, error) {
	cfg := adaptics.Config{
		EnablePlaybackUpdates: !noNetwork,
	}

	switch {
	case useMockStreaming:
		cfg.Device = adaptics.DeviceMock
	case vibGrid == vibGridNotGiven:
		cfg.Device = adaptics.DeviceUltrasound
	case vibGrid == "":
		ports, err := vibrotactile.ListPorts()
		if err != nil {
			return adaptics.Config{}, fmt.Errorf("listing serial ports: %w", err)
		}
		for _, p := range ports {
			fmt.Println(p)
		}
		os.Exit(1)
	case vibGrid == "auto":
		port, err := autoDetectPort()
		if err != nil {
			return adaptics.Config{}, err
		}
		cfg.Device = adaptics.DeviceVibrotactile
		cfg.SerialPort = port
	default:
		cfg.Device = adaptics.DeviceVibrotactile
		cfg.SerialPort = vibGrid
	}

	if !noNetwork {
		cfg.WebsocketBindAddr = websocketBindAddr
	}

	if noTracking {
		cfg.Tracking = adaptics.TrackingNone
	} else {
		cfg.Tracking = adaptics.TrackingLeapMotion
	}

	return cfg, nil
}

// autoDetectPort picks the sole available serial port, for --vib-grid
// auto; ambiguity is an error since there is no way to tell which port
// is the glove among several candidates.
func autoDetectPort() (string, error) {
	ports, err := vibrotactile.ListPorts()
	if err != nil {
		return "", fmt.Errorf("auto-detecting serial port: %w", err)
	}
	switch len(ports) {
	case 0:
		return "", fmt.Errorf("--vib-grid auto: no serial ports found")
	case 1:
		return ports[0], nil
	default:
		return "", fmt.Errorf("--vib-grid auto: multiple serial ports found %v, specify one explicitly", ports)
	}
}
