// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 与 configs/config.yaml 的结构一一对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Ingest        IngestConfig        `mapstructure:"ingest"`
}

type ServerConfig struct {
	Port         string        `mapstructure:"port"`
	Mode         string        `mapstructure:"mode"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	// SeedDir 下的 *.json 排期文件在启动时导入，已存在的记录按外部 id 跳过
	SeedDir string `mapstructure:"seed_dir"`
}

type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	DSN             string        `mapstructure:"dsn"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	Issuer                 string `mapstructure:"issuer"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 关闭时目录事件不会发送，也不会启动消费者
type KafkaConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

type ElasticsearchConfig struct {
	Enabled            bool   `mapstructure:"enabled"`
	Addresses          string `mapstructure:"addresses"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	IndexName          string `mapstructure:"index_name"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	// PublicURL 是写入 blobUrl 的前缀，为空时由 endpoint 和 bucket 推导
	PublicURL string `mapstructure:"public_url"`
}

// PublicPrefix 返回 blobUrl 的前缀，以 "/" 结尾
func (c MinIOConfig) PublicPrefix() string {
	if c.PublicURL != "" {
		return strings.TrimSuffix(c.PublicURL, "/") + "/"
	}
	scheme := "http"
	if c.UseSSL {
		scheme = "https"
	}
	return fmt.Sprintf("%s://%s/%s/", scheme, c.Endpoint, c.BucketName)
}

type IngestConfig struct {
	MaxUploadMB     int64 `mapstructure:"max_upload_mb"`
	InsertBatchSize int   `mapstructure:"insert_batch_size"`
	MaxPageSize     int   `mapstructure:"max_page_size"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.read_timeout", 2*time.Minute)
	v.SetDefault("server.write_timeout", 5*time.Minute)
	v.SetDefault("server.seed_dir", "")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.mysql.max_idle_conns", 10)
	v.SetDefault("database.mysql.max_open_conns", 100)
	v.SetDefault("database.mysql.conn_max_lifetime", time.Hour)
	v.SetDefault("database.redis.addr", "localhost:6379")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("jwt.secret", "")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.issuer", "indi-radio")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("log.output_path", "")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", "localhost:9092")
	v.SetDefault("kafka.topic", "radio-catalog-events")
	v.SetDefault("kafka.group_id", "indi-radio-catalog")

	v.SetDefault("elasticsearch.enabled", false)
	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "radio-catalog")
	v.SetDefault("elasticsearch.insecure_skip_verify", false)

	v.SetDefault("minio.endpoint", "localhost:9000")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "indi-radio-bucket")
	v.SetDefault("minio.public_url", "")

	v.SetDefault("ingest.max_upload_mb", 512)
	v.SetDefault("ingest.insert_batch_size", 500)
	v.SetDefault("ingest.max_page_size", 100)
}

// Load 读取 .env 与 YAML 配置，环境变量（如 MINIO_SECRET_ACCESS_KEY）优先。
// configPath 为空或文件不存在时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("加载 .env 失败: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if cfg.JWT.Secret == "" {
		return Config{}, errors.New("jwt.secret 不能为空")
	}
	return cfg, nil
}

// Init 加载配置到全局变量 Conf，失败时 panic
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
