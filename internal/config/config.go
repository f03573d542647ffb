package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Env          Env
	Server       ServerConfig
	Upload       UploadConfig
	Storage      StorageConfig
	Minio        MinioConfig
	SessionStore SessionStoreConfig
	Database     DatabaseConfig
	NATS         NATSConfig
	Redis        RedisConfig
	Notifier     NotifierConfig
}

type Env struct {
	Env string `envconfig:"ENV" default:"DEV"`
}

type ServerConfig struct {
	Host           string        `envconfig:"SERVER_HOST" default:"localhost"`
	Port           string        `envconfig:"SERVER_PORT" default:"8080"`
	RequestTimeout time.Duration `envconfig:"SERVER_REQUEST_TIMEOUT" default:"120s"`
}

type UploadConfig struct {
	MaxFileSize      int64         `envconfig:"UPLOAD_MAX_FILE_SIZE" default:"2147483648"`   // 2GB
	DefaultChunkSize int64         `envconfig:"UPLOAD_DEFAULT_CHUNK_SIZE" default:"5242880"` // 5MB
	MinChunkSize     int64         `envconfig:"UPLOAD_MIN_CHUNK_SIZE" default:"262144"`      // 256KB
	MaxChunkSize     int64         `envconfig:"UPLOAD_MAX_CHUNK_SIZE" default:"67108864"`    // 64MB
	SessionTTL       time.Duration `envconfig:"UPLOAD_SESSION_TTL" default:"24h"`
	SweepEvery       time.Duration `envconfig:"UPLOAD_SWEEP_EVERY" default:"5m"`
	SweepWorkers     int           `envconfig:"UPLOAD_SWEEP_WORKERS" default:"4"`
	MissingCap       int           `envconfig:"UPLOAD_MISSING_CAP" default:"100"`
	RetainTerminal   time.Duration `envconfig:"UPLOAD_RETAIN_TERMINAL" default:"1h"`
	AssemblyTimeout  time.Duration `envconfig:"UPLOAD_ASSEMBLY_TIMEOUT" default:"30m"`
}

// ClampChunkSize resolves the chunk size for an optional client hint
func (c UploadConfig) ClampChunkSize(hint int64) int64 {
	if hint <= 0 {
		return c.DefaultChunkSize
	}
	if hint < c.MinChunkSize {
		return c.MinChunkSize
	}
	if hint > c.MaxChunkSize {
		return c.MaxChunkSize
	}
	return hint
}

type StorageConfig struct {
	Driver       string `envconfig:"STORAGE_DRIVER" default:"fs"`
	ChunkRoot    string `envconfig:"STORAGE_CHUNK_ROOT" default:"./data/chunks"`
	ArtifactRoot string `envconfig:"STORAGE_ARTIFACT_ROOT" default:"./data/artifacts"`
}

type MinioConfig struct {
	Endpoint   string `envconfig:"MINIO_ENDPOINT"`
	BucketName string `envconfig:"MINIO_BUCKET_NAME" default:"upload-chunks"`
	AccessKey  string `envconfig:"MINIO_ACCESS_KEY"`
	SecretKey  string `envconfig:"MINIO_SECRET_KEY"`
	UseSSL     bool   `envconfig:"MINIO_USE_SSL" default:"false"`
}

type SessionStoreConfig struct {
	Driver   string `envconfig:"SESSION_STORE_DRIVER" default:"bolt"`
	BoltPath string `envconfig:"SESSION_STORE_BOLT_PATH" default:"./data/sessions.db"`
}

type DatabaseConfig struct {
	Host           string        `envconfig:"DB_HOST" default:"localhost"`
	Port           int           `envconfig:"DB_PORT" default:"5432"`
	User           string        `envconfig:"DB_USER"`
	Password       string        `envconfig:"DB_PASSWORD"`
	Name           string        `envconfig:"DB_NAME"`
	SSLMode        string        `envconfig:"DB_SSLMODE" default:"disable"`
	MaxOpenCons    int           `envconfig:"DB_MAX_OPEN_CONS" default:"25"`
	MaxIdleCons    int           `envconfig:"DB_MAX_IDLE_CONS" default:"5"`
	ConMaxLifeTime time.Duration `envconfig:"DB_CONMAX_LIFE_TIME" default:"5m"`
}

type NATSConfig struct {
	URL             string `envconfig:"NATS_URL" default:"nats://localhost:4222"`
	ClientName      string `envconfig:"NATS_CLIENT_NAME" default:"audio-upload"`
	ProgressSubject string `envconfig:"NATS_PROGRESS_SUBJECT" default:"uploads.progress"`
	JobStreamName   string `envconfig:"NATS_JOB_STREAM_NAME" default:"TRANSCRIPTION_JOBS"`
	JobSubject      string `envconfig:"NATS_JOB_SUBJECT" default:"transcription.jobs"`
}

type RedisConfig struct {
	Addr          string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password      string `envconfig:"REDIS_PASSWORD"`
	DB            int    `envconfig:"REDIS_DB" default:"0"`
	ChannelPrefix string `envconfig:"REDIS_CHANNEL_PREFIX" default:"uploads:progress"`
}

type NotifierConfig struct {
	Driver    string `envconfig:"NOTIFIER_DRIVER" default:"none"`
	QueueSize int    `envconfig:"NOTIFIER_QUEUE_SIZE" default:"1024"`
}

func Load() (*Config, error) {
	var cfg Config

	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}
