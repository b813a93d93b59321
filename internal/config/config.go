// v1
// internal/config/config.go
package config

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/auton88n/tradeayn-sub003/internal/circuitbreaker"
)

// Config captures all runtime settings of the compliance service. Values
// come from defaults, then a properties file, then COMPLIANCE_* variables.
type Config struct {
	ListenAddress    string
	LogFilePath      string
	LogLevel         string
	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	ShutdownTimeout  time.Duration
	PropertiesPath   string
	// CORSOrigins lists origins allowed to call the API from a browser.
	CORSOrigins []string

	RunStorePath  string
	ReportSkipped bool

	// CodesSource selects the rule table backend: file, sqlite or remote.
	CodesSource       string
	CodesFile         string
	CodesWatch        bool
	CodesDBPath       string
	CodesRemoteURL    string
	CodesRemoteAPIKey string
	CodesCacheTTL     time.Duration

	// EventSink selects where run notifications go: none, kafka or mqtt.
	EventSink    string
	KafkaBrokers []string
	KafkaTopic   string
	KafkaAcks    int
	KafkaKeyMode string
	// KafkaEnsureTopic creates the topic at startup when it is missing.
	KafkaEnsureTopic bool
	KafkaPartitions  int
	KafkaReplication int

	MQTTBroker      string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Breaker guards the remote codes client and the Kafka writer.
	Breaker circuitbreaker.Config
	// Publish sets retries of breaker-guarded Kafka writes.
	Publish circuitbreaker.PublishPolicy
}

const (
	defaultListenAddress = ":8090"
	defaultLogFile       = "logs/compliance.log"
	defaultReadTimeout   = 5 * time.Second
	defaultWriteTimeout  = 15 * time.Second
	defaultShutdown      = 10 * time.Second
	defaultPropsPath     = "compliance.properties"
	defaultRunStore      = "data/runs.jsonl"
	defaultCodesFile     = "configs/codes.yaml"
	defaultCodesDB       = "data/codes.db"
	defaultCacheTTL      = 5 * time.Minute
	defaultKafkaBrokers  = "kafka:9092"
	defaultKafkaTopic    = "compliance.runs"
	defaultMQTTBroker    = "tcp://mqtt:1883"
	defaultMQTTPrefix    = "compliance"

	SourceFile   = "file"
	SourceSQLite = "sqlite"
	SourceRemote = "remote"

	SinkNone  = "none"
	SinkKafka = "kafka"
	SinkMQTT  = "mqtt"
)

// envKeys maps environment variables onto property keys so both layers
// share one parser.
var envKeys = []struct{ env, prop string }{
	{"COMPLIANCE_LISTEN_ADDRESS", "listen_address"},
	{"COMPLIANCE_LOG_PATH", "log_path"},
	{"COMPLIANCE_LOG_LEVEL", "log_level"},
	{"COMPLIANCE_HTTP_READ_TIMEOUT_MS", "http_read_timeout_ms"},
	{"COMPLIANCE_HTTP_WRITE_TIMEOUT_MS", "http_write_timeout_ms"},
	{"COMPLIANCE_SHUTDOWN_TIMEOUT_MS", "shutdown_timeout_ms"},
	{"COMPLIANCE_CORS_ORIGINS", "cors_origins"},
	{"COMPLIANCE_RUNSTORE_PATH", "runstore_path"},
	{"COMPLIANCE_REPORT_SKIPPED", "report_skipped"},
	{"COMPLIANCE_CODES_SOURCE", "codes_source"},
	{"COMPLIANCE_CODES_FILE", "codes_file"},
	{"COMPLIANCE_CODES_WATCH", "codes_watch"},
	{"COMPLIANCE_CODES_DB", "codes_db"},
	{"COMPLIANCE_CODES_REMOTE_URL", "codes_remote_url"},
	{"COMPLIANCE_CODES_REMOTE_API_KEY", "codes_remote_api_key"},
	{"COMPLIANCE_CODES_CACHE_TTL_MS", "codes_cache_ttl_ms"},
	{"COMPLIANCE_EVENT_SINK", "event_sink"},
	{"COMPLIANCE_KAFKA_BROKERS", "kafka_brokers"},
	{"KAFKA_BROKERS", "kafka_brokers"},
	{"COMPLIANCE_KAFKA_TOPIC", "kafka_topic"},
	{"COMPLIANCE_KAFKA_ACKS", "kafka_acks"},
	{"COMPLIANCE_KAFKA_KEY_MODE", "kafka_key_mode"},
	{"COMPLIANCE_KAFKA_ENSURE_TOPIC", "kafka_ensure_topic"},
	{"COMPLIANCE_KAFKA_PARTITIONS", "kafka_partitions"},
	{"COMPLIANCE_KAFKA_REPLICATION", "kafka_replication"},
	{"COMPLIANCE_MQTT_BROKER", "mqtt_broker"},
	{"COMPLIANCE_MQTT_CLIENT_ID", "mqtt_client_id"},
	{"COMPLIANCE_MQTT_TOPIC_PREFIX", "mqtt_topic_prefix"},
	{"COMPLIANCE_CB_MAX_FAILURES", "circuit.maxFailures"},
	{"COMPLIANCE_CB_RESET_SECONDS", "circuit.resetSeconds"},
	{"COMPLIANCE_CB_SUCCESSES_TO_CLOSE", "circuit.successesToClose"},
	{"COMPLIANCE_CB_PUBLISH_ENABLED", "circuit.publish.enabled"},
	{"COMPLIANCE_CB_PUBLISH_TIMEOUT_MS", "circuit.publish.timeoutMs"},
	{"COMPLIANCE_CB_PUBLISH_BACKOFF_MS", "circuit.publish.backoffMs"},
}

// Load resolves configuration by layering defaults, an optional properties
// file, and finally environment variables. The properties file location can
// be overridden with COMPLIANCE_PROPERTIES_PATH.
func Load() (Config, error) {
	cfg := Defaults()

	propsPath := strings.TrimSpace(os.Getenv("COMPLIANCE_PROPERTIES_PATH"))
	if propsPath == "" {
		propsPath = defaultPropsPath
	}
	cfg.PropertiesPath = propsPath

	breakerProps := map[string]string{}
	if err := applyProperties(&cfg, propsPath, breakerProps); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, err
		}
	}
	if err := applyEnv(&cfg, breakerProps); err != nil {
		return Config{}, err
	}

	brk, err := circuitbreaker.ConfigFromProperties(breakerProps)
	if err != nil {
		return Config{}, fmt.Errorf("circuit breaker: %w", err)
	}
	cfg.Breaker = brk
	pub, err := circuitbreaker.PublishPolicyFromProperties(breakerProps)
	if err != nil {
		return Config{}, fmt.Errorf("circuit breaker: %w", err)
	}
	cfg.Publish = pub

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Defaults returns the configuration used when nothing is overridden.
func Defaults() Config {
	return Config{
		ListenAddress:    defaultListenAddress,
		LogFilePath:      filepath.Clean(defaultLogFile),
		LogLevel:         "info",
		HTTPReadTimeout:  defaultReadTimeout,
		HTTPWriteTimeout: defaultWriteTimeout,
		ShutdownTimeout:  defaultShutdown,
		RunStorePath:     filepath.Clean(defaultRunStore),
		CodesSource:      SourceFile,
		CodesFile:        defaultCodesFile,
		CodesDBPath:      filepath.Clean(defaultCodesDB),
		CodesCacheTTL:    defaultCacheTTL,
		EventSink:        SinkNone,
		KafkaBrokers:     splitAndTrim(defaultKafkaBrokers),
		KafkaTopic:       defaultKafkaTopic,
		KafkaAcks:        -1,
		KafkaKeyMode:     "project",
		KafkaPartitions:  3,
		KafkaReplication: 1,
		MQTTBroker:       defaultMQTTBroker,
		MQTTTopicPrefix:  defaultMQTTPrefix,
		Breaker:          circuitbreaker.DefaultConfig(),
		Publish:          circuitbreaker.DefaultPublishPolicy(),
	}
}

// Validate checks cross-field consistency.
func (c Config) Validate() error {
	switch c.CodesSource {
	case SourceFile:
		if c.CodesFile == "" {
			return errors.New("codes_file is required for the file source")
		}
	case SourceSQLite:
		if c.CodesDBPath == "" {
			return errors.New("codes_db is required for the sqlite source")
		}
	case SourceRemote:
		if c.CodesRemoteURL == "" {
			return errors.New("codes_remote_url is required for the remote source")
		}
	default:
		return fmt.Errorf("unsupported codes_source %q", c.CodesSource)
	}
	switch c.EventSink {
	case SinkNone:
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 || c.KafkaTopic == "" {
			return errors.New("kafka sink requires brokers and topic")
		}
	case SinkMQTT:
		if c.MQTTBroker == "" {
			return errors.New("mqtt sink requires a broker")
		}
	default:
		return fmt.Errorf("unsupported event_sink %q", c.EventSink)
	}
	return nil
}

func applyProperties(cfg *Config, path string, breakerProps map[string]string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer func() {
		_ = f.Close()
	}()

	scanner := bufio.NewScanner(f)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" || strings.HasPrefix(raw, "#") || strings.HasPrefix(raw, ";") {
			continue
		}
		parts := strings.SplitN(raw, "=", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid properties entry on line %d", line)
		}
		key := strings.TrimSpace(parts[0])
		value := strings.TrimSpace(parts[1])
		if err := setProperty(cfg, key, value, breakerProps); err != nil {
			return fmt.Errorf("property %s: %w", key, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read properties: %w", err)
	}
	return nil
}

func applyEnv(cfg *Config, breakerProps map[string]string) error {
	seen := map[string]bool{}
	for _, k := range envKeys {
		if seen[k.prop] {
			// a more specific variable already set this key
			continue
		}
		v, ok := lookupEnvTrimmed(k.env)
		if !ok {
			continue
		}
		seen[k.prop] = true
		if err := setProperty(cfg, k.prop, v, breakerProps); err != nil {
			return fmt.Errorf("%s: %w", k.env, err)
		}
	}
	return nil
}

func setProperty(cfg *Config, key, value string, breakerProps map[string]string) error {
	if strings.HasPrefix(strings.ToLower(key), "circuit.") {
		breakerProps[key] = value
		return nil
	}
	var err error
	switch key {
	case "listen_address":
		err = nonEmpty(&cfg.ListenAddress, value)
	case "log_path":
		// empty disables the file sink
		cfg.LogFilePath = value
		if value != "" {
			cfg.LogFilePath = filepath.Clean(value)
		}
	case "log_level":
		cfg.LogLevel = value
	case "http_read_timeout_ms":
		cfg.HTTPReadTimeout, err = parsePositiveMillis(value)
	case "http_write_timeout_ms":
		cfg.HTTPWriteTimeout, err = parsePositiveMillis(value)
	case "shutdown_timeout_ms":
		cfg.ShutdownTimeout, err = parsePositiveMillis(value)
	case "cors_origins":
		cfg.CORSOrigins = splitAndTrim(value)
	case "runstore_path":
		if err = nonEmpty(&cfg.RunStorePath, value); err == nil {
			cfg.RunStorePath = filepath.Clean(value)
		}
	case "report_skipped":
		cfg.ReportSkipped, err = strconv.ParseBool(value)
	case "codes_source":
		cfg.CodesSource = strings.ToLower(value)
	case "codes_file":
		err = nonEmpty(&cfg.CodesFile, value)
	case "codes_watch":
		cfg.CodesWatch, err = strconv.ParseBool(value)
	case "codes_db":
		err = nonEmpty(&cfg.CodesDBPath, value)
	case "codes_remote_url":
		cfg.CodesRemoteURL = value
	case "codes_remote_api_key":
		cfg.CodesRemoteAPIKey = value
	case "codes_cache_ttl_ms":
		cfg.CodesCacheTTL, err = parsePositiveMillis(value)
	case "event_sink":
		cfg.EventSink = strings.ToLower(value)
	case "kafka_brokers":
		brokers := splitAndTrim(value)
		if len(brokers) == 0 {
			return errors.New("kafka_brokers cannot be empty")
		}
		cfg.KafkaBrokers = brokers
	case "kafka_topic":
		err = nonEmpty(&cfg.KafkaTopic, value)
	case "kafka_acks":
		var n int
		n, err = strconv.Atoi(value)
		if err == nil && (n < -1 || n > 1) {
			err = errors.New("kafka_acks must be -1, 0 or 1")
		}
		cfg.KafkaAcks = n
	case "kafka_key_mode":
		cfg.KafkaKeyMode = strings.ToLower(value)
	case "kafka_ensure_topic":
		cfg.KafkaEnsureTopic, err = strconv.ParseBool(value)
	case "kafka_partitions":
		cfg.KafkaPartitions, err = parsePositiveInt(value)
	case "kafka_replication":
		cfg.KafkaReplication, err = parsePositiveInt(value)
	case "mqtt_broker":
		cfg.MQTTBroker = value
	case "mqtt_client_id":
		cfg.MQTTClientID = value
	case "mqtt_topic_prefix":
		err = nonEmpty(&cfg.MQTTTopicPrefix, value)
	default:
		// Unknown keys are ignored to keep the loader forward-compatible.
	}
	return err
}

func nonEmpty(dst *string, value string) error {
	if value == "" {
		return errors.New("value cannot be empty")
	}
	*dst = value
	return nil
}

func lookupEnvTrimmed(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func splitAndTrim(raw string) []string {
	fields := strings.Split(raw, ",")
	out := make([]string, 0, len(fields))
	for _, field := range fields {
		trimmed := strings.TrimSpace(field)
		if trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func parsePositiveInt(v string) (int, error) {
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if n <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return n, nil
}

func parsePositiveMillis(v string) (time.Duration, error) {
	if strings.TrimSpace(v) == "" {
		return 0, errors.New("value cannot be empty")
	}
	ms, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid integer: %w", err)
	}
	if ms <= 0 {
		return 0, errors.New("value must be greater than zero")
	}
	return time.Duration(ms) * time.Millisecond, nil
}
