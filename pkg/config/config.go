package config

import "time"

// Chat definition chat_service YAML structure
type Chat struct {
	Port           string `mapstructure:"port"`
	GRPCHealthPort string `mapstructure:"grpc_health_port"`

	Storage   StorageConfig   `mapstructure:"storage"`
	MongoSQL  DatabaseConfig  `mapstructure:"mongo"`
	Postgres  DatabaseConfig  `mapstructure:"pg"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Kafka     KafkaConfig     `mapstructure:"kafka"`
	RabbitMQ  DatabaseConfig  `mapstructure:"rabbitmq"`
	MinIO     MinIOConfig     `mapstructure:"minio"`
	Lifecycle LifecycleConfig `mapstructure:"lifecycle"`
	Limits    LimitsConfig    `mapstructure:"limits"`
	Websocket WebsocketConfig `mapstructure:"websocket"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Auth      AuthConfig      `mapstructure:"auth"`
}

// AuthConfig token verification; tokens are issued upstream
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// StorageConfig choose persistence backend: mongo | memory
type StorageConfig struct {
	Driver string `mapstructure:"driver"`
}

// RedisConfig definition redis setting
type RedisConfig struct {
	RedisDB int `mapstructure:"redis_db"`
	// Addr single node address, used when no sentinel is configured
	Addr string `mapstructure:"addr"`
}

// DatabaseConfig definition db setting
type DatabaseConfig struct {
	Host          string `mapstructure:"host"`
	Port          int    `mapstructure:"port"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Database      string `mapstructure:"database"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// KafkaConfig definition kafka setting
type KafkaConfig struct {
	Brokers       []string `mapstructure:"brokers"`
	ReportTopic   string   `mapstructure:"report_topic"`
	RetryInterval int      `mapstructure:"retry_interval"`
	RetryCount    int      `mapstructure:"retry_count"`
}

// MinIOConfig definition minio setting
type MinIOConfig struct {
	Endpoint      string `mapstructure:"endpoint"`
	User          string `mapstructure:"user"`
	Password      string `mapstructure:"password"`
	Bucket        string `mapstructure:"bucket"`
	UseSSL        bool   `mapstructure:"use_ssl"`
	RetryInterval int    `mapstructure:"retry_interval"`
	RetryCount    int    `mapstructure:"retry_count"`
}

// LifecycleConfig presence / deletion timing
type LifecycleConfig struct {
	GracePeriod      time.Duration `mapstructure:"grace_period"`
	MessageRetention time.Duration `mapstructure:"message_retention"`
}

// LimitsConfig conversation creation quota
type LimitsConfig struct {
	FreeWeekly     int64         `mapstructure:"free_weekly"`
	Window         time.Duration `mapstructure:"window"`
	UnlimitedPlans []string      `mapstructure:"unlimited_plans"`
	PlanCacheTTL   time.Duration `mapstructure:"plan_cache_ttl"`
}

// WebsocketConfig per connection settings
type WebsocketConfig struct {
	PingInterval time.Duration `mapstructure:"ping_interval"`
	EventRate    float64       `mapstructure:"event_rate"`
	EventBurst   int           `mapstructure:"event_burst"`
	ErrorAcks    *bool         `mapstructure:"error_acks"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// CleanupConfig out-of-band deletion settings
type CleanupConfig struct {
	Queue       string        `mapstructure:"queue"`
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseBackoff time.Duration `mapstructure:"base_backoff"`
	SweepCron   string        `mapstructure:"sweep_cron"`
	IdleAfter   time.Duration `mapstructure:"idle_after"` // draining marker age before the sweeper treats it as orphaned
}

// ApplyDefaults fill zero values
func (c *Chat) ApplyDefaults() {
	if c.Port == "" {
		c.Port = "8082"
	}
	if c.Storage.Driver == "" {
		c.Storage.Driver = "mongo"
	}
	if c.Lifecycle.GracePeriod <= 0 {
		c.Lifecycle.GracePeriod = 10 * time.Minute
	}
	if c.Lifecycle.MessageRetention <= 0 {
		c.Lifecycle.MessageRetention = 24 * time.Hour
	}
	if c.Limits.FreeWeekly <= 0 {
		c.Limits.FreeWeekly = 5
	}
	if c.Limits.Window <= 0 {
		c.Limits.Window = 7 * 24 * time.Hour
	}
	if len(c.Limits.UnlimitedPlans) == 0 {
		c.Limits.UnlimitedPlans = []string{"PRO", "ULT"}
	}
	if c.Limits.PlanCacheTTL <= 0 {
		c.Limits.PlanCacheTTL = 5 * time.Minute
	}
	if c.Websocket.PingInterval <= 0 {
		c.Websocket.PingInterval = time.Minute
	}
	if c.Websocket.EventRate <= 0 {
		c.Websocket.EventRate = 20
	}
	if c.Websocket.EventBurst <= 0 {
		c.Websocket.EventBurst = 40
	}
	if c.Websocket.WriteTimeout <= 0 {
		c.Websocket.WriteTimeout = 10 * time.Second
	}
	if c.Websocket.ErrorAcks == nil {
		on := true
		c.Websocket.ErrorAcks = &on
	}
	if c.Kafka.ReportTopic == "" {
		c.Kafka.ReportTopic = "chat.reports"
	}
	if c.MinIO.Bucket == "" {
		c.MinIO.Bucket = "chat-transcripts"
	}
	if c.Cleanup.Queue == "" {
		c.Cleanup.Queue = "chat.cleanup"
	}
	if c.Cleanup.MaxAttempts <= 0 {
		c.Cleanup.MaxAttempts = 5
	}
	if c.Cleanup.BaseBackoff <= 0 {
		c.Cleanup.BaseBackoff = 2 * time.Second
	}
	if c.Cleanup.SweepCron == "" {
		c.Cleanup.SweepCron = "*/15 * * * *"
	}
	if c.Cleanup.IdleAfter <= 0 {
		c.Cleanup.IdleAfter = 24 * time.Hour
	}
}
