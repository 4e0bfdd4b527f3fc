package config

import (
	"errors"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type HTTP struct {
	Addr string `yaml:"addr"`
}

type GRPC struct {
	Addr string `yaml:"addr"`
}

type Logging struct {
	Env       string `yaml:"env"`       // dev|prod
	Service   string `yaml:"service"`   // sync-service
	Version   string `yaml:"version"`   // v0.1.0
	Backend   string `yaml:"backend"`   // std|zap
	AddSource bool   `yaml:"addSource"` // false|true
	Debug     bool   `yaml:"debug"`     // false|true
}

// Sync — задержки протокола синхронизации. Значения подобраны под
// доставку broadcast + буферизацию рендерера; join длиннее из-за
// первичной разблокировки аудио.
type Sync struct {
	StartDelayMs  int64  `yaml:"startDelayMs"`  // play
	ResyncDelayMs int64  `yaml:"resyncDelayMs"` // seek на ходу
	JoinDelayMs   int64  `yaml:"joinDelayMs"`   // catch-up новичка
	PingEvery     string `yaml:"pingEvery"`     // WS keepalive, duration
}

type Chat struct {
	HistoryLimit int `yaml:"historyLimit"`
	MaxLen       int `yaml:"maxLen"`
}

type Config struct {
	HTTP    HTTP    `yaml:"http"`
	GRPC    GRPC    `yaml:"grpc"`
	Logging Logging `yaml:"logging"`
	Sync    Sync    `yaml:"sync"`
	Chat    Chat    `yaml:"chat"`
}

func LoadConfig() (*Config, error) {
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = "./config/config.yaml"
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.HTTP.Addr == "" {
		return errors.New("http.addr is required")
	}
	if c.GRPC.Addr == "" {
		return errors.New("grpc.addr is required")
	}
	// установка дефолтов, если значения не указаны
	if c.Logging.Service == "" {
		c.Logging.Service = "sync-service"
	}
	if c.Logging.Env == "" {
		c.Logging.Env = "dev"
	}
	if c.Logging.Version == "" {
		c.Logging.Version = "v0.1.0"
	}
	if c.Logging.Backend == "" {
		c.Logging.Backend = "std"
	}
	if c.Sync.StartDelayMs <= 0 {
		c.Sync.StartDelayMs = 1500
	}
	if c.Sync.ResyncDelayMs <= 0 {
		c.Sync.ResyncDelayMs = 1000
	}
	if c.Sync.JoinDelayMs <= 0 {
		c.Sync.JoinDelayMs = 2500
	}
	if c.Chat.HistoryLimit <= 0 {
		c.Chat.HistoryLimit = 200
	}
	if c.Chat.MaxLen <= 0 {
		c.Chat.MaxLen = 4000
	}
	return nil
}

// PingEvery парсит keepalive-интервал WS с дефолтом.
func (c *Config) PingEvery() time.Duration {
	return parseDurationOr(15*time.Second, c.Sync.PingEvery)
}

func parseDurationOr(def time.Duration, s string) time.Duration {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d
	}
	return def
}
