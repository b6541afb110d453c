package config

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

type Config struct {
	Port          string  `mapstructure:"PORT"`
	DBUrl         string  `mapstructure:"DB_URL"`
	RedisUrl      string  `mapstructure:"REDIS_URL"`
	EngineUrl     string  `mapstructure:"ENGINE_URL"`
	EngineTimeout int     `mapstructure:"ENGINE_TIMEOUT"` // seconds
	MaxTileKm     float64 `mapstructure:"MAX_TILE_KM"`
	OutputDir     string  `mapstructure:"OUTPUT_DIR"`
	Debug         bool    `mapstructure:"DEBUG"`
}

func LoadConfig() (c Config, err error) {
	// Get environment type from ENV variable or use development as default
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Set default values
	viper.SetDefault("PORT", ":8080")
	viper.SetDefault("DB_URL", "")
	viper.SetDefault("REDIS_URL", "")
	viper.SetDefault("ENGINE_URL", "")
	viper.SetDefault("ENGINE_TIMEOUT", 120)
	viper.SetDefault("MAX_TILE_KM", 30.0)
	viper.SetDefault("OUTPUT_DIR", "./output")
	viper.SetDefault("DEBUG", false)

	// Load environment file
	viper.SetConfigName(fmt.Sprintf(".env.%s", env))
	viper.SetConfigType("env")
	viper.AddConfigPath(".") // Look in the project root directory

	// Environment variables take precedence over config file
	viper.AutomaticEnv()

	// Try to read config file
	if err := viper.ReadInConfig(); err != nil {
		// Continue even if file is not found
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return c, err
		}
	}

	// Map the values to the Config struct
	err = viper.Unmarshal(&c)
	return
}
