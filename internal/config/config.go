package config

import (
	"fmt"
	"strings"

	"github.com/caarlos0/env/v11"
)

// Config do serviço de vinculação. Tudo vem do ambiente; main carrega um
// .env opcional antes do parse (dev). O backend de faturamento é o upstream
// e o dono da persistência — aqui não há banco.
type Config struct {
	Port              string `env:"PORT" envDefault:"8080"`
	JWTSecret         string `env:"JWT_SECRET"`
	CORSOriginsRaw    string `env:"CORS_ORIGINS" envDefault:"http://localhost:5173"`
	RequestTimeoutSec int    `env:"REQUEST_TIMEOUT_SEC" envDefault:"30"`

	// Upstream: backend de faturamento (sessões, execuções, vinculações).
	UpstreamBaseURL    string `env:"UPSTREAM_BASE_URL" envDefault:"http://localhost:8000"`
	UpstreamToken      string `env:"UPSTREAM_TOKEN"`
	UpstreamTimeoutSec int    `env:"UPSTREAM_TIMEOUT_SEC" envDefault:"15"`

	// Cache das listagens (segundos). 0 desliga.
	ListCacheTTLSec int `env:"LIST_CACHE_TTL_SEC" envDefault:"15"`

	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`
}

func Load() (*Config, error) {
	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if len(cfg.JWTSecret) < 32 {
		// Mesmo fallback de dev do backend principal; os tokens são emitidos lá.
		cfg.JWTSecret = "default-secret-min-32-chars-required!!"
	}
	return cfg, nil
}

// CORSOrigins separa e limpa a lista de origens permitidas.
func (c *Config) CORSOrigins() []string {
	var origins []string
	for _, o := range strings.Split(c.CORSOriginsRaw, ",") {
		if t := strings.TrimSpace(o); t != "" {
			origins = append(origins, t)
		}
	}
	return origins
}
