package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server  ServerConfig
	DB      DBConfig
	CORS    CORSConfig
	Session SessionConfig
}

type ServerConfig struct {
	Address string
}

type DBConfig struct {
	Host     string
	User     string
	Password string
	Name     string
	Port     int
}

type CORSConfig struct {
	AllowOrigins []string
}

// SessionConfig 控制閒置房間 session 的回收策略
type SessionConfig struct {
	ReapInterval time.Duration // 清理器的掃描間隔
	IdleTTL      time.Duration // 房間無人連線超過此時長即回收
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./pkg/config")

	viper.SetDefault("session.reapinterval", "5m")
	viper.SetDefault("session.idlettl", "30m")
	viper.SetDefault("cors.alloworigins", []string{"http://localhost:5173"})

	if err := viper.ReadInConfig(); err != nil {
		return nil, err
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	return &config, nil
}
