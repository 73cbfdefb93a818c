package config

import (
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server ServerConfig `mapstructure:"server"`
	Match  MatchConfig  `mapstructure:"match"`
}

type ServerConfig struct {
	HTTPAddress    string `mapstructure:"http_address"`
	MetricsAddress string `mapstructure:"metrics_address"`
}

// MatchConfig tunes the per-room simulation. Pitch geometry and entity
// constants live in the game package; only process-level knobs go here.
type MatchConfig struct {
	TickRate      int           `mapstructure:"tick_rate"`
	WinScore      int           `mapstructure:"win_score"`
	GoalPauseTime time.Duration `mapstructure:"goal_pause_time"`
}

func LoadConfig(path string) (config *Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")

	viper.SetDefault("server.http_address", ":3000")
	viper.SetDefault("server.metrics_address", ":9100")
	viper.SetDefault("match.tick_rate", 60)
	viper.SetDefault("match.win_score", 5)
	viper.SetDefault("match.goal_pause_time", 5*time.Second)

	viper.AutomaticEnv()

	err = viper.ReadInConfig()
	if err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return
		}
	}

	err = viper.Unmarshal(&config)
	return
}
