package config

import (
	"time"

	"github.com/spf13/viper"

	pkgconfig "github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/config"
	"github.com/AlanYahirPadilla/VolunNetOficial-sub002/pkg/database"
)

type Config struct {
	Server     ServerConfig
	GRPC       GRPCConfig
	WebSocket  WebSocketConfig
	Database   database.Config
	Redis      RedisConfig
	Cache      CacheConfig
	Kafka      KafkaConfig
	Auth       AuthConfig
	Invitation InvitationConfig
	Typing     TypingConfig
	Snowflake  SnowflakeConfig
	IDs        IDConfig
	Metrics    MetricsConfig
	Log        LogConfig

	v *viper.Viper
}

type ServerConfig struct {
	Host string
	Port int
}

type GRPCConfig struct {
	Enabled bool
	Host    string
	Port    int
}

type WebSocketConfig struct {
	PingInterval   time.Duration `mapstructure:"ping_interval"`
	PongWait       time.Duration `mapstructure:"pong_wait"`
	WriteWait      time.Duration `mapstructure:"write_wait"`
	MaxMessageSize int64         `mapstructure:"max_message_size"`
	SendBuffer     int           `mapstructure:"send_buffer"`
	SendRate       float64       `mapstructure:"send_rate"` // messages per second per connection
	SendBurst      int           `mapstructure:"send_burst"`
}

type RedisConfig struct {
	Enabled           bool
	Address           string
	Password          string
	DB                int
	RegistryPrefix    string        `mapstructure:"registry_prefix"`
	HeartbeatInterval time.Duration `mapstructure:"heartbeat_interval"`
	KeyTTL            time.Duration `mapstructure:"key_ttl"`
	AdvertiseAddress  string        `mapstructure:"advertise_address"`
}

type CacheConfig struct {
	Enabled bool
	Prefix  string
	TTL     time.Duration
}

type KafkaConfig struct {
	Enabled           bool
	Brokers           string
	Topic             string
	Partitions        int
	ReplicationFactor int           `mapstructure:"replication_factor"`
	Retention         time.Duration `mapstructure:"retention"`
}

type AuthConfig struct {
	Issuer         string
	PrivateKeyPath string        `mapstructure:"private_key_path"`
	AccessTTL      time.Duration `mapstructure:"access_ttl"`
	RefreshTTL     time.Duration `mapstructure:"refresh_ttl"`
}

type InvitationConfig struct {
	DefaultTTL    time.Duration `mapstructure:"default_ttl"`
	MaxTTL        time.Duration `mapstructure:"max_ttl"`
	SweepSchedule string        `mapstructure:"sweep_schedule"`
}

type TypingConfig struct {
	TTL time.Duration
}

type SnowflakeConfig struct {
	MachineID int64 `mapstructure:"machine_id"`
	Epoch     int64 // unix ms
}

// IDConfig selects how chat and invitation ids are generated.
type IDConfig struct {
	RecordStrategy string `mapstructure:"record_strategy"` // ulid, ksuid, cuid2, nanoid, uuid
	NanoIDSize     int    `mapstructure:"nanoid_size"`
	NanoIDAlphabet string `mapstructure:"nanoid_alphabet"`
	CUID2Length    int    `mapstructure:"cuid2_length"`
}

type MetricsConfig struct {
	Enabled   bool
	Namespace string
}

type LogConfig struct {
	Level  string
	Pretty bool
}

func Load() (*Config, error) {
	v, err := pkgconfig.Load("./config", "config")
	if err != nil {
		return nil, err
	}

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8088)
	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50052)
	v.SetDefault("websocket.ping_interval", "30s")
	v.SetDefault("websocket.pong_wait", "60s")
	v.SetDefault("websocket.write_wait", "10s")
	v.SetDefault("websocket.max_message_size", 16384)
	v.SetDefault("websocket.send_buffer", 256)
	v.SetDefault("websocket.send_rate", 5)
	v.SetDefault("websocket.send_burst", 10)
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "volunnet")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.time_zone", "UTC")
	v.SetDefault("database.file_path", "./data/chat.db")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)
	v.SetDefault("database.conn_max_lifetime", 60)
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.address", "localhost:6379")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.registry_prefix", "chat:presence")
	v.SetDefault("redis.heartbeat_interval", "10s")
	v.SetDefault("redis.key_ttl", "30s")
	v.SetDefault("redis.advertise_address", "localhost:8088")
	v.SetDefault("cache.enabled", false)
	v.SetDefault("cache.prefix", "chat:recent")
	v.SetDefault("cache.ttl", "2s")
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "chat-messages")
	v.SetDefault("kafka.partitions", 8)
	v.SetDefault("kafka.replication_factor", 1)
	v.SetDefault("kafka.retention", "168h")
	v.SetDefault("auth.issuer", "volunnet")
	v.SetDefault("auth.private_key_path", "")
	v.SetDefault("auth.access_ttl", "15m")
	v.SetDefault("auth.refresh_ttl", "168h")
	v.SetDefault("invitation.default_ttl", "72h")
	v.SetDefault("invitation.max_ttl", "720h")
	v.SetDefault("invitation.sweep_schedule", "@every 1m")
	v.SetDefault("typing.ttl", "6s")
	v.SetDefault("snowflake.machine_id", 1)
	v.SetDefault("snowflake.epoch", 1704067200000) // 2024-01-01T00:00:00Z
	v.SetDefault("ids.record_strategy", "ulid")
	v.SetDefault("ids.nanoid_size", 21)
	v.SetDefault("ids.nanoid_alphabet", "")
	v.SetDefault("ids.cuid2_length", 24)
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.namespace", "volunnet")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", false)

	v.BindEnv("server.port", "PORT")
	v.BindEnv("grpc.port", "GRPC_PORT")
	v.BindEnv("database.driver", "DB_DRIVER")
	v.BindEnv("database.host", "DB_HOST")
	v.BindEnv("database.port", "DB_PORT")
	v.BindEnv("database.user", "DB_USER")
	v.BindEnv("database.password", "DB_PASSWORD")
	v.BindEnv("database.dbname", "DB_NAME")
	v.BindEnv("database.file_path", "DB_FILE_PATH")
	v.BindEnv("redis.enabled", "REDIS_ENABLED")
	v.BindEnv("redis.address", "REDIS_ADDRESS")
	v.BindEnv("redis.password", "REDIS_PASSWORD")
	v.BindEnv("cache.enabled", "CACHE_ENABLED")
	v.BindEnv("kafka.enabled", "KAFKA_ENABLED")
	v.BindEnv("kafka.brokers", "KAFKA_BROKERS")
	v.BindEnv("kafka.topic", "KAFKA_TOPIC")
	v.BindEnv("auth.private_key_path", "AUTH_PRIVATE_KEY_PATH")
	v.BindEnv("snowflake.machine_id", "MACHINE_ID")
	v.BindEnv("ids.record_strategy", "ID_STRATEGY")
	v.BindEnv("log.level", "LOG_LEVEL")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	cfg.v = v

	cfg.WebSocket.PingInterval = pkgconfig.ParseDuration(v, "websocket.ping_interval", 30*time.Second)
	cfg.WebSocket.PongWait = pkgconfig.ParseDuration(v, "websocket.pong_wait", 60*time.Second)
	cfg.WebSocket.WriteWait = pkgconfig.ParseDuration(v, "websocket.write_wait", 10*time.Second)
	cfg.Redis.HeartbeatInterval = pkgconfig.ParseDuration(v, "redis.heartbeat_interval", 10*time.Second)
	cfg.Redis.KeyTTL = pkgconfig.ParseDuration(v, "redis.key_ttl", 30*time.Second)
	cfg.Cache.TTL = pkgconfig.ParseDuration(v, "cache.ttl", 2*time.Second)
	cfg.Auth.AccessTTL = pkgconfig.ParseDuration(v, "auth.access_ttl", 15*time.Minute)
	cfg.Auth.RefreshTTL = pkgconfig.ParseDuration(v, "auth.refresh_ttl", 7*24*time.Hour)
	cfg.Invitation.DefaultTTL = pkgconfig.ParseDuration(v, "invitation.default_ttl", 72*time.Hour)
	cfg.Invitation.MaxTTL = pkgconfig.ParseDuration(v, "invitation.max_ttl", 30*24*time.Hour)
	cfg.Typing.TTL = pkgconfig.ParseDuration(v, "typing.ttl", 6*time.Second)

	return &cfg, nil
}

// WatchLogLevel reports log.level changes made to the config file.
func (c *Config) WatchLogLevel(fn func(level string)) {
	if c.v == nil {
		return
	}
	current := c.Log.Level
	pkgconfig.Watch(c.v, func(v *viper.Viper) {
		level := v.GetString("log.level")
		if level == current {
			return
		}
		current = level
		fn(level)
	})
}
