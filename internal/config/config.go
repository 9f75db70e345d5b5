package config

import "github.com/caarlos0/env/v10"

// Config centraliza la configuración del servicio.
type Config struct {
	HTTPPort    string `env:"HTTP_PORT" envDefault:"8080"`
	DatabaseURL string `env:"DATABASE_URL"`

	RedisAddr     string `env:"REDIS_ADDR"`
	RedisPassword string `env:"REDIS_PASSWORD"`
	RedisDB       int    `env:"REDIS_DB" envDefault:"0"`

	JWTSecret            string `env:"JWT_SECRET,required"`
	JWTAccessTTLMinutes  int    `env:"JWT_ACCESS_TTL_MINUTES" envDefault:"15"`
	JWTRefreshTTLMinutes int    `env:"JWT_REFRESH_TTL_MINUTES" envDefault:"43200"`

	LoginRateWindowSeconds int `env:"LOGIN_RATE_WINDOW_SECONDS" envDefault:"60"`
	LoginRateMax           int `env:"LOGIN_RATE_MAX" envDefault:"5"`

	XPSoloReward  int `env:"XP_SOLO_REWARD" envDefault:"10"`
	XPGroupReward int `env:"XP_GROUP_REWARD" envDefault:"20"`
	XPLevelStep   int `env:"XP_LEVEL_STEP" envDefault:"100"`
}

// LoadConfig carga la configuración desde variables de entorno.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
