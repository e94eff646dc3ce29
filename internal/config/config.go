package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Registry sources.
const (
	RegistryFile   = "file"
	RegistrySQLite = "sqlite"
)

// DefaultFWCURL is the FWC HAB sample feature service query endpoint.
const DefaultFWCURL = "https://atoll.floridamarine.org/arcgis/rest/services/FWC_GIS/OpenData_HAB/MapServer/9/query"

// Config holds all service settings, populated from environment variables.
type Config struct {
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Sample source.
	FWCURL        string
	FWCTimeout    time.Duration
	FWCMaxRetries int

	// Evaluation and publishing.
	RunInterval          time.Duration
	MaxSampleAge         time.Duration
	PublishMinConfidence int
	TestMode             bool
	TestLimit            int

	// Location registry.
	RegistrySource string
	RegistryPath   string
	SQLitePath     string
	HistoryEnabled bool

	// Kafka status publisher.
	KafkaEnabled     bool
	KafkaBrokers     []string
	KafkaStatusTopic string

	// MQTT retained-state publisher.
	MQTTEnabled  bool
	MQTTBroker   string
	MQTTClientID string
	MQTTQoS      int

	// InfluxDB trend writer.
	InfluxEnabled bool
	InfluxURL     string
	InfluxToken   string
	InfluxOrg     string
	InfluxBucket  string
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	fwcTimeout, err := parseDuration("FWC_TIMEOUT", "30s")
	if err != nil {
		return nil, err
	}
	runInterval, err := parseDuration("RUN_INTERVAL", "1h")
	if err != nil {
		return nil, err
	}

	fwcRetries, err := parseInt("FWC_MAX_RETRIES", 3, 0, 10)
	if err != nil {
		return nil, err
	}
	maxAgeDays, err := parseInt("MAX_SAMPLE_AGE_DAYS", 14, 0, 365)
	if err != nil {
		return nil, err
	}
	minConfidence, err := parseInt("PUBLISH_MIN_CONFIDENCE", 30, 0, 100)
	if err != nil {
		return nil, err
	}
	testLimit, err := parseInt("TEST_LIMIT", 10, 1, 10000)
	if err != nil {
		return nil, err
	}
	mqttQoS, err := parseInt("MQTT_QOS", 1, 0, 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		FWCURL:        sharedcfg.EnvOrDefault("FWC_API_URL", DefaultFWCURL),
		FWCTimeout:    fwcTimeout,
		FWCMaxRetries: fwcRetries,

		RunInterval:          runInterval,
		MaxSampleAge:         time.Duration(maxAgeDays) * 24 * time.Hour,
		PublishMinConfidence: minConfidence,
		TestMode:             parseBool("TEST_MODE"),
		TestLimit:            testLimit,

		RegistrySource: sharedcfg.EnvOrDefault("REGISTRY_SOURCE", RegistryFile),
		RegistryPath:   sharedcfg.EnvOrDefault("REGISTRY_PATH", "config/locations.yaml"),
		SQLitePath:     sharedcfg.EnvOrDefault("SQLITE_PATH", "data/habstatus.db"),
		HistoryEnabled: parseBool("HISTORY_ENABLED"),

		KafkaEnabled:     parseBool("KAFKA_ENABLED"),
		KafkaBrokers:     sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaStatusTopic: sharedcfg.EnvOrDefault("KAFKA_STATUS_TOPIC", "hab-location-status"),

		MQTTEnabled:  parseBool("MQTT_ENABLED"),
		MQTTBroker:   sharedcfg.EnvOrDefault("MQTT_BROKER", "tcp://localhost:1883"),
		MQTTClientID: sharedcfg.EnvOrDefault("MQTT_CLIENT_ID", "hab-status"),
		MQTTQoS:      mqttQoS,

		InfluxEnabled: parseBool("INFLUX_ENABLED"),
		InfluxURL:     sharedcfg.EnvOrDefault("INFLUX_URL", "http://localhost:8086"),
		InfluxToken:   os.Getenv("INFLUX_TOKEN"),
		InfluxOrg:     sharedcfg.EnvOrDefault("INFLUX_ORG", "hab"),
		InfluxBucket:  sharedcfg.EnvOrDefault("INFLUX_BUCKET", "hab_status"),
	}

	if cfg.FWCURL == "" {
		return nil, errors.New("FWC_API_URL is required")
	}
	switch cfg.RegistrySource {
	case RegistryFile:
		if cfg.RegistryPath == "" {
			return nil, errors.New("REGISTRY_PATH is required when REGISTRY_SOURCE is file")
		}
	case RegistrySQLite:
	default:
		return nil, fmt.Errorf("invalid REGISTRY_SOURCE %q: want %q or %q", cfg.RegistrySource, RegistryFile, RegistrySQLite)
	}
	if (cfg.RegistrySource == RegistrySQLite || cfg.HistoryEnabled) && cfg.SQLitePath == "" {
		return nil, errors.New("SQLITE_PATH is required for the sqlite registry or history")
	}
	if cfg.KafkaEnabled && len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required when KAFKA_ENABLED is true")
	}
	if cfg.KafkaEnabled && cfg.KafkaStatusTopic == "" {
		return nil, errors.New("KAFKA_STATUS_TOPIC is required when KAFKA_ENABLED is true")
	}
	if cfg.InfluxEnabled && cfg.InfluxToken == "" {
		return nil, errors.New("INFLUX_ENABLED is true but INFLUX_TOKEN is not set")
	}

	return cfg, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	d, err := time.ParseDuration(sharedcfg.EnvOrDefault(key, def))
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s", key)
	}
	return d, nil
}

func parseInt(key string, def, lo, hi int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < lo || n > hi {
		return 0, fmt.Errorf("invalid %s: must be an integer in [%d, %d]", key, lo, hi)
	}
	return n, nil
}

func parseBool(key string) bool {
	return os.Getenv(key) == "true"
}
