// Copyright (c) 2026 Daniel Alarcon Rubio / Relabs Tech
// SPDX-License-Identifier: MIT
// See LICENSE file for full license text

package config

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/relabs-tech/sleep_logger/internal/sleep"
	"github.com/relabs-tech/sleep_logger/internal/stimulus"
)

// Sensor kinds.
const (
	SensorMMA8452Q = "mma8452q"
	SensorSerial   = "serial"
	SensorMock     = "mock"
)

// Stimulus device kinds.
const (
	StimulusNone = "none"
	StimulusGPIO = "gpio"
	StimulusTone = "tone"
)

// oledAddr is the fixed I2C address of the SSD1306 panel.
const oledAddr uint16 = 0x3C

// Config holds all application configuration values. It is not modified
// after Load returns.
type Config struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Sensor
	SensorType        string
	I2CBus            string
	I2CAccelAddr      uint16
	SerialPort        string
	SerialBaudRate    uint
	MockBurstInterval time.Duration

	// Integrator
	ActivityThreshold  float64
	SpikeStrength      float64
	DecayConstantMs    float64
	DecayDelayMs       int64
	ActivityLowerBound float64

	// Sampler
	SampleSize     int
	MinDelayMs     float64
	MaxDelayMs     float64
	InitDelayMs    float64
	SpeedupDivisor float64
	SlowdownFactor float64

	// Classifier
	DeepThreshold float64
	WakeThreshold float64

	// Stimulus
	StimulusDevice  string
	StimulusGPIOPin string
	ToneBaseHz      float64
	ToneBeatHz      float64
	ToneSeconds     float64
	ToneSampleRate  int
	ToneGap         time.Duration
	TonePlayer      []string // command and arguments, PCM on stdin

	// Display
	DisplayEnabled bool
	I2COLEDAddr    uint16

	// Dispatch
	SinkQueueSize int

	// Redis stream sink
	LogToRedis  bool
	RedisAddr   string
	RedisStream string
	RedisMaxLen int64

	// Run store sink
	LogToStore bool
	StorePath  string

	// MQTT
	LogToMQTT    bool
	MQTTBroker   string
	MQTTClientID string
	TopicChunk   string
	TopicStatus  string
	TopicControl string

	// Report
	PlotDir string

	// Web Server
	WebServerPort int

	// Start a run as soon as the logger is up.
	Autostart bool
}

// Default returns the configuration the logger ships with.
func Default() *Config {
	p := sleep.DefaultParams()
	tone := stimulus.DefaultToneParams()
	return &Config{
		LogLevel:  "info",
		LogFormat: "console",

		SensorType:        SensorMMA8452Q,
		I2CAccelAddr:      0x1D,
		SerialBaudRate:    115200,
		MockBurstInterval: 90 * time.Second,

		ActivityThreshold:  p.Integrator.Threshold,
		SpikeStrength:      p.Integrator.SpikeStrength,
		DecayConstantMs:    p.Integrator.DecayConstantMs,
		DecayDelayMs:       p.Integrator.DecayDelayMs,
		ActivityLowerBound: p.Integrator.LowerBound,

		SampleSize:     p.Sampler.SampleSize,
		MinDelayMs:     p.Sampler.MinDelayMs,
		MaxDelayMs:     p.Sampler.MaxDelayMs,
		InitDelayMs:    p.Sampler.InitDelayMs,
		SpeedupDivisor: p.Sampler.SpeedupDivisor,
		SlowdownFactor: p.Sampler.SlowdownFactor,

		DeepThreshold: p.Classifier.DeepThreshold,
		WakeThreshold: p.Classifier.WakeThreshold,

		StimulusDevice: StimulusNone,
		ToneBaseHz:     tone.BaseHz,
		ToneBeatHz:     tone.BeatHz,
		ToneSeconds:    tone.Seconds,
		ToneSampleRate: tone.SampleRate,
		ToneGap:        tone.Gap,
		TonePlayer:     []string{"aplay", "-q", "-t", "raw", "-f", "FLOAT_LE", "-c", "1", "-r", "48000"},

		DisplayEnabled: true,
		I2COLEDAddr:    oledAddr,

		SinkQueueSize: 8,

		LogToRedis:  true,
		RedisAddr:   "localhost:6379",
		RedisStream: "accel",

		LogToStore: true,
		StorePath:  "log.db",

		MQTTBroker:   "tcp://localhost:1883",
		MQTTClientID: "sleep-logger",
		TopicChunk:   "sleep/chunk",
		TopicStatus:  "sleep/status",
		TopicControl: "sleep/control",

		PlotDir: "plots",

		WebServerPort: 8080,
		Autostart:     true,
	}
}

// Load reads the configuration file on top of Default.
func Load(configPath string) (*Config, error) {
	file, err := os.Open(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open config file: %w", err)
	}
	defer file.Close()
	return Parse(file)
}

// Parse reads KEY=VALUE lines on top of Default. Blank lines and lines
// starting with # are skipped.
func Parse(r io.Reader) (*Config, error) {
	cfg := Default()
	scanner := bufio.NewScanner(r)
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		// Parse KEY=VALUE
		parts := strings.SplitN(line, "=", 2)
		if len(parts) != 2 {
			return nil, invalid("line %d: expected KEY=VALUE, got %q", lineNum, line)
		}

		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])

		if err := cfg.setValue(key, value); err != nil {
			return nil, fmt.Errorf("config line %d: %w", lineNum, err)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setValue sets a config value based on the key.
func (c *Config) setValue(key, value string) error {
	var err error
	switch key {
	// Logging
	case "LOG_LEVEL":
		c.LogLevel = value
	case "LOG_FORMAT":
		c.LogFormat = value

	// Sensor
	case "SENSOR_TYPE":
		c.SensorType = strings.ToLower(value)
	case "I2C_BUS":
		c.I2CBus = value
	case "I2C_ACCEL_ADDR":
		c.I2CAccelAddr, err = parseAddr(key, value)
	case "SERIAL_PORT":
		c.SerialPort = value
	case "SERIAL_BAUD_RATE":
		var baud uint64
		baud, err = strconv.ParseUint(value, 10, 32)
		c.SerialBaudRate = uint(baud)
	case "MOCK_BURST_INTERVAL":
		c.MockBurstInterval, err = time.ParseDuration(value)

	// Integrator
	case "ACCELEROMETER_ACTIVITY_THRESHOLD":
		c.ActivityThreshold, err = strconv.ParseFloat(value, 64)
	case "SPIKE_STRENGTH":
		c.SpikeStrength, err = strconv.ParseFloat(value, 64)
	case "DECAY_CONSTANT_MS":
		c.DecayConstantMs, err = strconv.ParseFloat(value, 64)
	case "DECAY_DELAY_MS":
		c.DecayDelayMs, err = strconv.ParseInt(value, 10, 64)
	case "ACTIVITY_LOWER_BOUND":
		c.ActivityLowerBound, err = strconv.ParseFloat(value, 64)

	// Sampler
	case "SAMPLE_SIZE":
		c.SampleSize, err = strconv.Atoi(value)
	case "MIN_DELAY_MS":
		c.MinDelayMs, err = strconv.ParseFloat(value, 64)
	case "MAX_DELAY_MS":
		c.MaxDelayMs, err = strconv.ParseFloat(value, 64)
	case "INIT_DELAY_MS":
		c.InitDelayMs, err = strconv.ParseFloat(value, 64)
	case "SPEEDUP_DIVISOR":
		c.SpeedupDivisor, err = strconv.ParseFloat(value, 64)
	case "SLOWDOWN_FACTOR":
		c.SlowdownFactor, err = strconv.ParseFloat(value, 64)

	// Classifier
	case "DEEP_THRESHOLD":
		c.DeepThreshold, err = strconv.ParseFloat(value, 64)
	case "WAKE_THRESHOLD":
		c.WakeThreshold, err = strconv.ParseFloat(value, 64)

	// Stimulus
	case "STIMULUS_DEVICE":
		c.StimulusDevice = strings.ToLower(value)
	case "STIMULUS_GPIO_PIN":
		c.StimulusGPIOPin = value
	case "TONE_BASE_HZ":
		c.ToneBaseHz, err = strconv.ParseFloat(value, 64)
	case "TONE_BEAT_HZ":
		c.ToneBeatHz, err = strconv.ParseFloat(value, 64)
	case "TONE_SECONDS":
		c.ToneSeconds, err = strconv.ParseFloat(value, 64)
	case "TONE_SAMPLE_RATE":
		c.ToneSampleRate, err = strconv.Atoi(value)
	case "TONE_GAP":
		c.ToneGap, err = time.ParseDuration(value)
	case "TONE_PLAYER":
		c.TonePlayer = strings.Fields(value)

	// Display
	case "DISPLAY_ENABLED":
		c.DisplayEnabled, err = strconv.ParseBool(value)
	case "I2C_OLED_ADDR":
		c.I2COLEDAddr, err = parseAddr(key, value)

	// Dispatch
	case "SINK_QUEUE_SIZE":
		c.SinkQueueSize, err = strconv.Atoi(value)

	// Redis
	case "LOG_TO_REDIS":
		c.LogToRedis, err = strconv.ParseBool(value)
	case "REDIS_ADDR":
		c.RedisAddr = value
	case "REDIS_STREAM":
		c.RedisStream = value
	case "REDIS_MAXLEN":
		c.RedisMaxLen, err = strconv.ParseInt(value, 10, 64)

	// Run store
	case "LOG_TO_STORE":
		c.LogToStore, err = strconv.ParseBool(value)
	case "STORE_PATH":
		c.StorePath = value

	// MQTT
	case "LOG_TO_MQTT":
		c.LogToMQTT, err = strconv.ParseBool(value)
	case "MQTT_BROKER":
		c.MQTTBroker = value
	case "MQTT_CLIENT_ID":
		c.MQTTClientID = value
	case "TOPIC_CHUNK":
		c.TopicChunk = value
	case "TOPIC_STATUS":
		c.TopicStatus = value
	case "TOPIC_CONTROL":
		c.TopicControl = value

	// Report
	case "PLOT_DIR":
		c.PlotDir = value

	// Web Server
	case "WEB_SERVER_PORT":
		c.WebServerPort, err = strconv.Atoi(value)

	case "AUTOSTART":
		c.Autostart, err = strconv.ParseBool(value)

	default:
		return invalid("unknown config key: %q", key)
	}

	if err != nil {
		return invalid("invalid %s %q: %v", key, value, err)
	}
	return nil
}

func parseAddr(key, value string) (uint16, error) {
	addr, err := strconv.ParseUint(value, 0, 16)
	if err != nil {
		return 0, err
	}
	if addr < 0x03 || addr > 0x77 {
		return 0, fmt.Errorf("%s must be a 7-bit address (0x03-0x77), got 0x%X", key, addr)
	}
	return uint16(addr), nil
}

// validate checks the combination of values.
func (c *Config) validate() error {
	if err := c.SleepParams().Validate(); err != nil {
		return err
	}
	switch c.SensorType {
	case SensorMMA8452Q, SensorMock:
	case SensorSerial:
		if c.SerialPort == "" {
			return invalid("SERIAL_PORT is required for SENSOR_TYPE=serial")
		}
		if c.SerialBaudRate == 0 {
			return invalid("SERIAL_BAUD_RATE is required for SENSOR_TYPE=serial")
		}
	default:
		return invalid("unknown SENSOR_TYPE %q", c.SensorType)
	}
	switch c.StimulusDevice {
	case StimulusNone:
	case StimulusGPIO:
		if c.StimulusGPIOPin == "" {
			return invalid("STIMULUS_GPIO_PIN is required for STIMULUS_DEVICE=gpio")
		}
	case StimulusTone:
		if len(c.TonePlayer) == 0 {
			return invalid("TONE_PLAYER is required for STIMULUS_DEVICE=tone")
		}
		if c.ToneSampleRate <= 0 || c.ToneSeconds <= 0 || c.ToneBaseHz <= 0 {
			return invalid("tone frequency, length and sample rate must be positive")
		}
	default:
		return invalid("unknown STIMULUS_DEVICE %q", c.StimulusDevice)
	}
	if c.I2COLEDAddr != oledAddr {
		return invalid("I2C_OLED_ADDR must be 0x%02X, the only address the SSD1306 driver supports", oledAddr)
	}
	if c.SinkQueueSize <= 0 {
		return invalid("SINK_QUEUE_SIZE must be positive, got %d", c.SinkQueueSize)
	}
	if c.LogToRedis && c.RedisAddr == "" {
		return invalid("REDIS_ADDR is required when LOG_TO_REDIS is set")
	}
	if c.LogToStore && c.StorePath == "" {
		return invalid("STORE_PATH is required when LOG_TO_STORE is set")
	}
	if c.MQTTBroker == "" && (c.LogToMQTT || c.TopicControl != "") {
		return invalid("MQTT_BROKER is required")
	}
	if c.WebServerPort < 0 || c.WebServerPort > 65535 {
		return invalid("WEB_SERVER_PORT out of range: %d", c.WebServerPort)
	}
	return nil
}

// SleepParams assembles the control loop parameters.
func (c *Config) SleepParams() sleep.Params {
	return sleep.Params{
		Integrator: sleep.IntegratorParams{
			Threshold:       c.ActivityThreshold,
			SpikeStrength:   c.SpikeStrength,
			DecayConstantMs: c.DecayConstantMs,
			DecayDelayMs:    c.DecayDelayMs,
			LowerBound:      c.ActivityLowerBound,
		},
		Sampler: sleep.SamplerParams{
			SampleSize:     c.SampleSize,
			MinDelayMs:     c.MinDelayMs,
			MaxDelayMs:     c.MaxDelayMs,
			InitDelayMs:    c.InitDelayMs,
			SpeedupDivisor: c.SpeedupDivisor,
			SlowdownFactor: c.SlowdownFactor,
		},
		Classifier: sleep.ClassifierParams{
			DeepThreshold: c.DeepThreshold,
			WakeThreshold: c.WakeThreshold,
		},
	}
}

// ToneParams assembles the audio stimulus parameters.
func (c *Config) ToneParams() stimulus.ToneParams {
	return stimulus.ToneParams{
		BaseHz:     c.ToneBaseHz,
		BeatHz:     c.ToneBeatHz,
		Seconds:    c.ToneSeconds,
		SampleRate: c.ToneSampleRate,
		Gap:        c.ToneGap,
	}
}

func invalid(format string, args ...interface{}) error {
	return fmt.Errorf("%w: %s", sleep.ErrConfigInvalid, fmt.Sprintf(format, args...))
}
