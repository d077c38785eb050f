package utils

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/benmeehan/ups-bridge/pkg/file"
)

// Config represents the structure of the configuration file.
type Config struct {
	Device struct {
		Address              string `yaml:"address"`               // BLE MAC address of the UPS
		WriteCharacteristic  string `yaml:"write_characteristic"`  // GATT characteristic requests are written to
		NotifyCharacteristic string `yaml:"notify_characteristic"` // GATT characteristic responses arrive on
		IdentityFile         string `yaml:"identity_file"`         // Path to the device identity file
	} `yaml:"device"`

	MQTT struct {
		Host              string        `yaml:"host"`               // MQTT broker host
		Port              int           `yaml:"port"`               // MQTT broker port
		ClientID          string        `yaml:"client_id"`          // MQTT client ID prefix
		Username          string        `yaml:"username"`           // Broker username
		Password          string        `yaml:"password"`           // Broker password
		CACertificate     string        `yaml:"ca_certificate"`     // Path to the CA certificate, enables TLS
		QOS               int           `yaml:"qos"`                // QoS level for every publish
		TopicPrefix       string        `yaml:"topic_prefix"`       // Prefix of state and availability topics
		DiscoveryPrefix   string        `yaml:"discovery_prefix"`   // Home Assistant discovery prefix
		KeepAlive         time.Duration `yaml:"keep_alive"`         // Keep alive period
		ReconnectInterval time.Duration `yaml:"reconnect_interval"` // Fixed delay between reconnect attempts
		ConnectTimeout    time.Duration `yaml:"connect_timeout"`    // Timeout per connect attempt
		ConnectAttempts   uint64        `yaml:"connect_attempts"`   // Initial connect attempts before giving up
		PublishTimeout    time.Duration `yaml:"publish_timeout"`    // Upper bound for a single publish
	} `yaml:"mqtt"`

	Poll struct {
		Interval        time.Duration `yaml:"interval"`          // Period between cycle starts
		RetryBackoff    time.Duration `yaml:"retry_backoff"`     // Delay after a failed cycle
		MaxRetryBackoff time.Duration `yaml:"max_retry_backoff"` // Enables exponential backoff when above retry_backoff
		RequestSpacing  time.Duration `yaml:"request_spacing"`   // Gap between request writes
		SettleTime      time.Duration `yaml:"settle_time"`       // Wait for late responses after the last write
		CycleTimeout    time.Duration `yaml:"cycle_timeout"`     // Upper bound for a whole cycle
	} `yaml:"poll"`

	Logging struct {
		Level  string `yaml:"level"`  // zerolog level name
		Format string `yaml:"format"` // json or console
	} `yaml:"logging"`
}

// LoadConfig loads the YAML configuration from the specified file. A missing
// file yields an empty config; callers apply overrides and defaults on top.
func LoadConfig(filename string, fileClient file.FileOperations) (*Config, error) {
	var config Config

	exists, err := fileClient.IsFileExists(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to stat config %s: %w", filename, err)
	}
	if !exists {
		return &config, nil
	}

	if err := fileClient.ReadYamlFile(filename, &config); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", filename, err)
	}

	return &config, nil
}

// ApplyEnvOverrides replaces config values with the matching environment variables when set.
func ApplyEnvOverrides(config *Config) error {
	if v := os.Getenv("UPS_ADDRESS"); v != "" {
		config.Device.Address = v
	}
	if v := os.Getenv("MQTT_BROKER"); v != "" {
		config.MQTT.Host = v
	}
	if v := os.Getenv("MQTT_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid MQTT_PORT %q: %w", v, err)
		}
		config.MQTT.Port = port
	}
	if v := os.Getenv("MQTT_USERNAME"); v != "" {
		config.MQTT.Username = v
	}
	if v := os.Getenv("MQTT_PASSWORD"); v != "" {
		config.MQTT.Password = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	return nil
}

// ApplyDefaults fills every unset field.
func ApplyDefaults(config *Config) {
	setString(&config.Device.IdentityFile, "configs/device.json")

	setString(&config.MQTT.Host, "localhost")
	if config.MQTT.Port == 0 {
		config.MQTT.Port = 1883
	}
	setString(&config.MQTT.ClientID, "ups-bridge")
	setString(&config.MQTT.TopicPrefix, "home/ups")
	setString(&config.MQTT.DiscoveryPrefix, "homeassistant")
	setDuration(&config.MQTT.KeepAlive, 30*time.Second)
	setDuration(&config.MQTT.ReconnectInterval, 5*time.Second)
	setDuration(&config.MQTT.ConnectTimeout, 10*time.Second)
	if config.MQTT.ConnectAttempts == 0 {
		config.MQTT.ConnectAttempts = 5
	}
	setDuration(&config.MQTT.PublishTimeout, 5*time.Second)

	setDuration(&config.Poll.Interval, 20*time.Second)
	setDuration(&config.Poll.RetryBackoff, 10*time.Second)
	setDuration(&config.Poll.RequestSpacing, 500*time.Millisecond)
	setDuration(&config.Poll.SettleTime, 2*time.Second)
	setDuration(&config.Poll.CycleTimeout, 60*time.Second)

	setString(&config.Logging.Level, "info")
	setString(&config.Logging.Format, "json")
}

// ValidateConfig reports every invalid setting at once.
func ValidateConfig(config *Config) error {
	var errs []error

	if strings.TrimSpace(config.Device.Address) == "" {
		errs = append(errs, errors.New("device.address is required"))
	}
	if strings.TrimSpace(config.MQTT.Host) == "" {
		errs = append(errs, errors.New("mqtt.host is required"))
	}
	if config.MQTT.Port < 1 || config.MQTT.Port > 65535 {
		errs = append(errs, fmt.Errorf("mqtt.port %d out of range", config.MQTT.Port))
	}
	if config.MQTT.QOS < 0 || config.MQTT.QOS > 2 {
		errs = append(errs, fmt.Errorf("mqtt.qos %d must be 0, 1 or 2", config.MQTT.QOS))
	}

	durations := []struct {
		name string
		d    time.Duration
	}{
		{"mqtt.publish_timeout", config.MQTT.PublishTimeout},
		{"poll.interval", config.Poll.Interval},
		{"poll.retry_backoff", config.Poll.RetryBackoff},
		{"poll.request_spacing", config.Poll.RequestSpacing},
		{"poll.settle_time", config.Poll.SettleTime},
		{"poll.cycle_timeout", config.Poll.CycleTimeout},
	}
	for _, d := range durations {
		if d.d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", d.name))
		}
	}
	if config.Poll.MaxRetryBackoff < 0 {
		errs = append(errs, errors.New("poll.max_retry_backoff must not be negative"))
	}

	switch config.Logging.Format {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logging.format %q must be json or console", config.Logging.Format))
	}

	return errors.Join(errs...)
}

func setString(s *string, def string) {
	if *s == "" {
		*s = def
	}
}

func setDuration(d *time.Duration, def time.Duration) {
	if *d == 0 {
		*d = def
	}
}
