package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Environment string `yaml:"environment" default:"development"`
	Server      struct {
		Port            int           `yaml:"port" default:"8080"`
		ReadTimeout     time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout    time.Duration `yaml:"write_timeout" default:"10s"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" default:"15s"`
		CORSOrigins     []string      `yaml:"cors_origins"`
	} `yaml:"server"`
	Logging struct {
		Level        string        `yaml:"level" default:"info"`
		Format       string        `yaml:"format" default:"json"`
		Output       string        `yaml:"output" default:"stdout"`
		CollectTopic string        `yaml:"collect_topic"`
		CollectEvery time.Duration `yaml:"collect_every" default:"30s"`
	} `yaml:"logging"`
	Metrics struct {
		Enabled bool   `yaml:"enabled" default:"true"`
		Path    string `yaml:"path" default:"/metrics"`
	} `yaml:"metrics"`
	Kafka struct {
		Enabled          bool     `yaml:"enabled"`
		Brokers          []string `yaml:"brokers"`
		ReadingsTopic    string   `yaml:"readings_topic" default:"vitals.readings"`
		AssessmentsTopic string   `yaml:"assessments_topic" default:"vitals.assessments"`
		DeltasTopic      string   `yaml:"deltas_topic" default:"vitals.deltas"`
		RequiredAcks     int      `yaml:"required_acks" default:"-1"`
		Compression      string   `yaml:"compression" default:"snappy"`
		Producer         struct {
			MaxAttempts  int           `yaml:"max_attempts" default:"5"`
			Linger       time.Duration `yaml:"linger" default:"10ms"`
			BatchBytes   int           `yaml:"batch_bytes" default:"1048576"`
			BatchSize    int           `yaml:"batch_size" default:"100"`
			WriteTimeout time.Duration `yaml:"write_timeout" default:"10s"`
			ReadTimeout  time.Duration `yaml:"read_timeout" default:"10s"`
			Async        bool          `yaml:"async"`
		} `yaml:"producer"`
		Consumer struct {
			Enabled    bool          `yaml:"enabled"`
			GroupID    string        `yaml:"group_id" default:"vitalsense"`
			Workers    int           `yaml:"workers" default:"4"`
			BufferSize int           `yaml:"buffer_size" default:"1000"`
			RetryMax   int           `yaml:"retry_max" default:"3"`
			BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
			BackoffMax time.Duration `yaml:"backoff_max" default:"5s"`
			DLQTopic   string        `yaml:"dlq_topic" default:"vitals.readings.dlq"`
			MinBytes   int           `yaml:"min_bytes" default:"1"`
			MaxBytes   int           `yaml:"max_bytes" default:"10485760"`
		} `yaml:"consumer"`
	} `yaml:"kafka"`
	ClickHouse struct {
		Enabled          bool          `yaml:"enabled"`
		Host             string        `yaml:"host" default:"localhost"`
		Port             int           `yaml:"port" default:"9000"`
		Database         string        `yaml:"database" default:"vitals"`
		User             string        `yaml:"user" default:"default"`
		Password         string        `yaml:"password"`
		UseHTTP          bool          `yaml:"use_http"`
		AsyncInsert      bool          `yaml:"async_insert"`
		WaitForAsync     bool          `yaml:"wait_for_async_insert"`
		DialTimeout      time.Duration `yaml:"dial_timeout" default:"5s"`
		ReadTimeout      time.Duration `yaml:"read_timeout" default:"10s"`
		WriteTimeout     time.Duration `yaml:"write_timeout" default:"10s"`
		MaxExecutionTime time.Duration `yaml:"max_execution_time" default:"30s"`
	} `yaml:"clickhouse"`
	Redis struct {
		Enabled   bool          `yaml:"enabled"`
		URL       string        `yaml:"url"`
		Addr      string        `yaml:"addr" default:"localhost:6379"`
		Password  string        `yaml:"password"`
		DB        int           `yaml:"db"`
		Prefix    string        `yaml:"prefix" default:"vitals"`
		LatestTTL time.Duration `yaml:"latest_ttl" default:"24h"`
		LocalTTL  time.Duration `yaml:"local_ttl" default:"30s"`
	} `yaml:"redis"`
	DeviceGateway struct {
		Enabled        bool          `yaml:"enabled"`
		URL            string        `yaml:"url"`
		Token          string        `yaml:"token"`
		ReconnectDelay time.Duration `yaml:"reconnect_delay" default:"5s"`
		PingInterval   time.Duration `yaml:"ping_interval" default:"30s"`
	} `yaml:"device_gateway"`
	Models struct {
		ServiceURL string        `yaml:"service_url"`
		Timeout    time.Duration `yaml:"timeout" default:"3s"`
		Retries    int           `yaml:"retries" default:"2"`
		Breaker    struct {
			MaxRequests      uint32        `yaml:"max_requests" default:"1"`
			Interval         time.Duration `yaml:"interval" default:"60s"`
			Timeout          time.Duration `yaml:"timeout" default:"30s"`
			FailureThreshold uint32        `yaml:"failure_threshold" default:"5"`
		} `yaml:"breaker"`
	} `yaml:"models"`
	Sessions struct {
		IdleTTL       time.Duration `yaml:"idle_ttl" default:"2h"`
		SweepInterval time.Duration `yaml:"sweep_interval" default:"1m"`
	} `yaml:"sessions"`
	Pipeline struct {
		BufferSize int           `yaml:"buffer_size" default:"2000"`
		RetryMax   int           `yaml:"retry_max" default:"5"`
		BackoffMin time.Duration `yaml:"backoff_min" default:"100ms"`
		BackoffMax time.Duration `yaml:"backoff_max" default:"10s"`
	} `yaml:"pipeline"`
	RateLimit struct {
		Capacity        int `yaml:"capacity" default:"120"`
		RefillPerSecond int `yaml:"refill_per_second" default:"20"`
	} `yaml:"rate_limit"`
	Engine Engine `yaml:"engine"`
}

// Engine is the risk-engine calibration shared by every subject session.
type Engine struct {
	WindowSize     int  `yaml:"window_size" default:"12"`
	SequenceLength int  `yaml:"sequence_length" default:"12"`
	AdaptOnline    bool `yaml:"adapt_online" default:"true"`
	Baseline       struct {
		MinReadings int     `yaml:"min_readings" default:"3"`
		MinStdTemp  float64 `yaml:"min_std_temp" default:"0.1"`
		MinStdHR    float64 `yaml:"min_std_hr" default:"1"`
	} `yaml:"baseline"`
	Fusion struct {
		SequenceWeight float64 `yaml:"sequence_weight" default:"0.6"`
		PointWeight    float64 `yaml:"point_weight" default:"0.4"`
		ErrorScale     float64 `yaml:"error_scale" default:"10"`
	} `yaml:"fusion"`
	Thresholds struct {
		Critical float64 `yaml:"critical" default:"70"`
		Warning  float64 `yaml:"warning" default:"40"`
	} `yaml:"thresholds"`
	Consistency struct {
		Window       int     `yaml:"window" default:"12"`
		MaxTempRange float64 `yaml:"max_temp_range" default:"8"`
	} `yaml:"consistency"`
	Adapter struct {
		MinReadings  int     `yaml:"min_readings" default:"10"`
		LearningRate float64 `yaml:"learning_rate" default:"0.05"`
		MaxParam     float64 `yaml:"max_param" default:"1000"`
	} `yaml:"adapter"`
	Scaler struct {
		TempMin float64 `yaml:"temp_min" default:"35"`
		TempMax float64 `yaml:"temp_max" default:"42"`
		HRMin   float64 `yaml:"hr_min" default:"30"`
		HRMax   float64 `yaml:"hr_max" default:"220"`
	} `yaml:"scaler"`
}

// Default returns a configuration populated from struct tag defaults only.
func Default() (*Config, error) {
	var c Config
	if err := defaults.Set(&c); err != nil {
		return nil, fmt.Errorf("set defaults: %w", err)
	}
	return &c, nil
}

// Load reads and parses a YAML configuration file on top of the defaults.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	c, err := Default()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return c, nil
}

// LoadWithEnv loads config from YAML and overrides with VITALS_* environment variables.
func LoadWithEnv(path string) (*Config, error) {
	c, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := c.applyEnv(os.Getenv); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return c, nil
}

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("VITALS_ENV"); v != "" {
		c.Environment = v
	}
	if v := getenv("VITALS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("VITALS_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := getenv("VITALS_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := getenv("VITALS_KAFKA_BROKERS"); v != "" {
		c.Kafka.Brokers = strings.Split(v, ",")
		c.Kafka.Enabled = true
	}
	if v := getenv("VITALS_CLICKHOUSE_HOST"); v != "" {
		c.ClickHouse.Host = v
		c.ClickHouse.Enabled = true
	}
	if v := getenv("VITALS_CLICKHOUSE_PASSWORD"); v != "" {
		c.ClickHouse.Password = v
	}
	if v := getenv("VITALS_REDIS_ADDR"); v != "" {
		c.Redis.Addr = v
		c.Redis.Enabled = true
	}
	if v := getenv("VITALS_MODEL_URL"); v != "" {
		c.Models.ServiceURL = v
	}
	if v := getenv("VITALS_DEVICE_GATEWAY_URL"); v != "" {
		c.DeviceGateway.URL = v
		c.DeviceGateway.Enabled = true
	}
	if v := getenv("VITALS_DEVICE_GATEWAY_TOKEN"); v != "" {
		c.DeviceGateway.Token = v
	}
	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Environment == "" {
		return fmt.Errorf("environment is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Kafka.Enabled && len(c.Kafka.Brokers) == 0 {
		return fmt.Errorf("kafka.brokers cannot be empty when kafka is enabled")
	}
	if c.Kafka.Consumer.Enabled && !c.Kafka.Enabled {
		return fmt.Errorf("kafka.consumer requires kafka.enabled")
	}
	if c.DeviceGateway.Enabled && c.DeviceGateway.URL == "" {
		return fmt.Errorf("device_gateway.url is required when the gateway is enabled")
	}
	return c.Engine.Validate()
}

// Validate checks the engine calibration for values that would break scoring.
func (e *Engine) Validate() error {
	if e.WindowSize <= 0 {
		return fmt.Errorf("engine.window_size must be positive, got %d", e.WindowSize)
	}
	if e.SequenceLength <= 0 || e.SequenceLength > e.WindowSize {
		return fmt.Errorf("engine.sequence_length must be in [1, window_size], got %d", e.SequenceLength)
	}
	if e.Consistency.Window > e.WindowSize {
		return fmt.Errorf("engine.consistency.window %d exceeds window_size %d", e.Consistency.Window, e.WindowSize)
	}
	if e.Thresholds.Warning <= 0 || e.Thresholds.Critical <= e.Thresholds.Warning || e.Thresholds.Critical > 100 {
		return fmt.Errorf("engine.thresholds must satisfy 0 < warning < critical <= 100")
	}
	if e.Fusion.SequenceWeight < 0 || e.Fusion.PointWeight < 0 {
		return fmt.Errorf("engine.fusion weights must be non-negative")
	}
	if e.Scaler.TempMax <= e.Scaler.TempMin || e.Scaler.HRMax <= e.Scaler.HRMin {
		return fmt.Errorf("engine.scaler ranges must be increasing")
	}
	return nil
}
