package config

import (
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/spf13/cast"
	"github.com/spf13/viper"
)

// Config holds all application configuration values.
type Config struct {
	// MQTT
	MQTTBroker             string
	MQTTClientIDClassifier string
	MQTTClientIDProducer   string
	MQTTClientIDBridge     string
	MQTTClientIDConsole    string
	MQTTClientIDWeb        string
	MQTTClientIDDisplay    string

	// Topics
	TopicSensor      string // sensor events in
	TopicDeviceState string // interactive/unlocked gate
	TopicControl     string // "start" / "stop"
	TopicStatus      string // single retained status slot

	// Proximity sensor descriptor: maximum range, 0 when absent
	ProximityMaxRange float64

	// Producer
	ProducerSource   string // "mock" or "mpu9250"
	ProducerInterval int    // milliseconds

	// IMU Hardware
	IMUSPIDevice string
	IMUCSPin     string

	// Serial sensor bridge
	SerialPort     string
	SerialBaudRate int

	// Web Server
	WebServerPort int

	// Display
	DisplayI2CBus string

	LogLevel string
}

// keys lists every accepted key with its default ("" means no default).
var keys = map[string]string{
	"MQTT_BROKER":               "tcp://localhost:1883",
	"MQTT_CLIENT_ID_CLASSIFIER": "pedestrian-classifier",
	"MQTT_CLIENT_ID_PRODUCER":   "pedestrian-producer",
	"MQTT_CLIENT_ID_BRIDGE":     "pedestrian-serial-bridge",
	"MQTT_CLIENT_ID_CONSOLE":    "pedestrian-console",
	"MQTT_CLIENT_ID_WEB":        "pedestrian-web",
	"MQTT_CLIENT_ID_DISPLAY":    "pedestrian-display",
	"TOPIC_SENSOR":              "pedestrian/sensor",
	"TOPIC_DEVICE_STATE":        "pedestrian/device",
	"TOPIC_CONTROL":             "pedestrian/control",
	"TOPIC_STATUS":              "pedestrian/status",
	"PROXIMITY_MAX_RANGE":       "0",
	"PRODUCER_SOURCE":           "mock",
	"PRODUCER_INTERVAL":         "200",
	"IMU_SPI_DEVICE":            "/dev/spidev0.0",
	"IMU_CS_PIN":                "8",
	"SERIAL_PORT":               "/dev/ttyUSB0",
	"SERIAL_BAUD_RATE":          "115200",
	"WEB_SERVER_PORT":           "8080",
	"DISPLAY_I2C_BUS":           "",
	"LOG_LEVEL":                 "info",
}

// Package-level unexported singleton: InitGlobal sets it once, Get reads it.
var (
	globalConfig *Config
	configOnce   sync.Once
	configMu     sync.RWMutex
)

// Load reads a KEY=VALUE configuration file. Environment variables
// prefixed with PEDESTRIAN_ override file values.
func Load(configPath string) (*Config, error) {
	v := newViper()
	v.SetConfigFile(configPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return fromViper(v)
}

// Parse reads KEY=VALUE configuration from r.
func Parse(r io.Reader) (*Config, error) {
	v := newViper()
	if err := v.ReadConfig(r); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return fromViper(v)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigType("env")
	for key, def := range keys {
		if def != "" {
			v.SetDefault(key, def)
		}
	}
	v.SetEnvPrefix("PEDESTRIAN")
	v.AutomaticEnv()
	return v
}

func fromViper(v *viper.Viper) (*Config, error) {
	for _, key := range v.AllKeys() {
		if _, ok := keys[strings.ToUpper(key)]; !ok {
			return nil, fmt.Errorf("unknown config key: %q", strings.ToUpper(key))
		}
	}

	cfg := &Config{
		MQTTBroker:             v.GetString("MQTT_BROKER"),
		MQTTClientIDClassifier: v.GetString("MQTT_CLIENT_ID_CLASSIFIER"),
		MQTTClientIDProducer:   v.GetString("MQTT_CLIENT_ID_PRODUCER"),
		MQTTClientIDBridge:     v.GetString("MQTT_CLIENT_ID_BRIDGE"),
		MQTTClientIDConsole:    v.GetString("MQTT_CLIENT_ID_CONSOLE"),
		MQTTClientIDWeb:        v.GetString("MQTT_CLIENT_ID_WEB"),
		MQTTClientIDDisplay:    v.GetString("MQTT_CLIENT_ID_DISPLAY"),
		TopicSensor:            v.GetString("TOPIC_SENSOR"),
		TopicDeviceState:       v.GetString("TOPIC_DEVICE_STATE"),
		TopicControl:           v.GetString("TOPIC_CONTROL"),
		TopicStatus:            v.GetString("TOPIC_STATUS"),
		ProducerSource:         v.GetString("PRODUCER_SOURCE"),
		IMUSPIDevice:           v.GetString("IMU_SPI_DEVICE"),
		IMUCSPin:               v.GetString("IMU_CS_PIN"),
		SerialPort:             v.GetString("SERIAL_PORT"),
		DisplayI2CBus:          v.GetString("DISPLAY_I2C_BUS"),
		LogLevel:               v.GetString("LOG_LEVEL"),
	}

	var err error
	if cfg.ProximityMaxRange, err = cast.ToFloat64E(v.Get("PROXIMITY_MAX_RANGE")); err != nil {
		return nil, fmt.Errorf("invalid PROXIMITY_MAX_RANGE %q: %w", v.GetString("PROXIMITY_MAX_RANGE"), err)
	}
	if cfg.ProducerInterval, err = cast.ToIntE(v.Get("PRODUCER_INTERVAL")); err != nil {
		return nil, fmt.Errorf("invalid PRODUCER_INTERVAL %q: %w", v.GetString("PRODUCER_INTERVAL"), err)
	}
	if cfg.SerialBaudRate, err = cast.ToIntE(v.Get("SERIAL_BAUD_RATE")); err != nil {
		return nil, fmt.Errorf("invalid SERIAL_BAUD_RATE %q: %w", v.GetString("SERIAL_BAUD_RATE"), err)
	}
	if cfg.WebServerPort, err = cast.ToIntE(v.Get("WEB_SERVER_PORT")); err != nil {
		return nil, fmt.Errorf("invalid WEB_SERVER_PORT %q: %w", v.GetString("WEB_SERVER_PORT"), err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// validate checks that all required fields are set and in range.
func (c *Config) validate() error {
	if c.MQTTBroker == "" {
		return errors.New("MQTT_BROKER is required")
	}
	if c.TopicSensor == "" || c.TopicStatus == "" {
		return errors.New("TOPIC_SENSOR and TOPIC_STATUS are required")
	}
	if c.ProximityMaxRange < 0 {
		return fmt.Errorf("PROXIMITY_MAX_RANGE must be >= 0, got %g", c.ProximityMaxRange)
	}
	switch c.ProducerSource {
	case "mock", "mpu9250":
	default:
		return fmt.Errorf("PRODUCER_SOURCE must be mock or mpu9250, got %q", c.ProducerSource)
	}
	if c.ProducerInterval <= 0 {
		return fmt.Errorf("PRODUCER_INTERVAL must be > 0, got %d", c.ProducerInterval)
	}
	if c.SerialBaudRate <= 0 {
		return fmt.Errorf("SERIAL_BAUD_RATE must be > 0, got %d", c.SerialBaudRate)
	}
	if c.WebServerPort <= 0 || c.WebServerPort > 65535 {
		return fmt.Errorf("WEB_SERVER_PORT must be 1-65535, got %d", c.WebServerPort)
	}
	return nil
}

// InitGlobal initializes the global configuration from file.
// Only the first call has any effect.
func InitGlobal(configPath string) error {
	var err error
	configOnce.Do(func() {
		configMu.Lock()
		defer configMu.Unlock()
		globalConfig, err = Load(configPath)
	})
	return err
}

// Get returns the global configuration instance, or nil before InitGlobal.
func Get() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return globalConfig
}
