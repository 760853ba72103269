// Package config loads settings from the environment, with a .env file
// picked up when present. Every value has a default good enough for local
// development against the simulator.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults.
const (
	DefaultFeedURL        = "ws://localhost:8000/ws/emergency"
	DefaultListenAddr     = ":8080"
	DefaultCommandBaseURL = "http://localhost:8000"
	DefaultReconnectDelay = 3 * time.Second

	DefaultSimAddr           = ":8000"
	DefaultSimGreenDuration  = 10 * time.Second
	DefaultSimYellowDuration = 1 * time.Second
	DefaultSimPushInterval   = 100 * time.Millisecond
	DefaultSimUploadDir      = "uploads"
)

// DefaultLaneIDs covers a standard four-way junction.
var DefaultLaneIDs = []int{1, 2, 3, 4}

type Config struct {
	FeedURL        string
	LaneIDs        []int
	ReconnectDelay time.Duration
	ListenAddr     string
	CommandBaseURL string
	Dev            bool

	Sim SimConfig
}

// SimConfig holds the simulator binary's knobs.
type SimConfig struct {
	Addr           string
	GreenDuration  time.Duration
	YellowDuration time.Duration
	PushInterval   time.Duration
	UploadDir      string
}

func Default() *Config {
	return &Config{
		FeedURL:        DefaultFeedURL,
		LaneIDs:        append([]int(nil), DefaultLaneIDs...),
		ReconnectDelay: DefaultReconnectDelay,
		ListenAddr:     DefaultListenAddr,
		CommandBaseURL: DefaultCommandBaseURL,
		Sim: SimConfig{
			Addr:           DefaultSimAddr,
			GreenDuration:  DefaultSimGreenDuration,
			YellowDuration: DefaultSimYellowDuration,
			PushInterval:   DefaultSimPushInterval,
			UploadDir:      DefaultSimUploadDir,
		},
	}
}

// Load reads the environment on top of the defaults. A missing .env file
// is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	var err error

	if v := os.Getenv("SIGNALBOARD_FEED_URL"); v != "" {
		cfg.FeedURL = v
	}
	if v := os.Getenv("SIGNALBOARD_LISTEN_ADDR"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("SIGNALBOARD_COMMAND_BASE_URL"); v != "" {
		cfg.CommandBaseURL = v
	}
	if v := os.Getenv("SIGNALBOARD_DEV"); v != "" {
		cfg.Dev, _ = strconv.ParseBool(v)
	}
	if v := os.Getenv("SIGNALBOARD_LANES"); v != "" {
		if cfg.LaneIDs, err = parseLanes(v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("SIGNALBOARD_RECONNECT_DELAY"); v != "" {
		if cfg.ReconnectDelay, err = parseDuration("SIGNALBOARD_RECONNECT_DELAY", v); err != nil {
			return nil, err
		}
	}

	if v := os.Getenv("SIGNALBOARD_SIM_ADDR"); v != "" {
		cfg.Sim.Addr = v
	}
	if v := os.Getenv("SIGNALBOARD_SIM_UPLOAD_DIR"); v != "" {
		cfg.Sim.UploadDir = v
	}
	if v := os.Getenv("SIGNALBOARD_SIM_GREEN_DURATION"); v != "" {
		if cfg.Sim.GreenDuration, err = parseDuration("SIGNALBOARD_SIM_GREEN_DURATION", v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("SIGNALBOARD_SIM_YELLOW_DURATION"); v != "" {
		if cfg.Sim.YellowDuration, err = parseDuration("SIGNALBOARD_SIM_YELLOW_DURATION", v); err != nil {
			return nil, err
		}
	}
	if v := os.Getenv("SIGNALBOARD_SIM_PUSH_INTERVAL"); v != "" {
		if cfg.Sim.PushInterval, err = parseDuration("SIGNALBOARD_SIM_PUSH_INTERVAL", v); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func parseLanes(v string) ([]int, error) {
	parts := strings.Split(v, ",")
	lanes := make([]int, 0, len(parts))
	seen := make(map[int]bool, len(parts))
	for _, p := range parts {
		id, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil || id <= 0 {
			return nil, fmt.Errorf("SIGNALBOARD_LANES: %q is not a positive lane id", p)
		}
		if seen[id] {
			return nil, fmt.Errorf("SIGNALBOARD_LANES: duplicate lane id %d", id)
		}
		seen[id] = true
		lanes = append(lanes, id)
	}
	if len(lanes) == 0 {
		return nil, fmt.Errorf("SIGNALBOARD_LANES: no lanes configured")
	}
	return lanes, nil
}

func parseDuration(name, v string) (time.Duration, error) {
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", name, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("%s: must be positive, got %s", name, d)
	}
	return d, nil
}
