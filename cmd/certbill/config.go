package main

import "time"

// Config holds process configuration, parsed from the environment.
// OTel settings are parsed separately by the otel adapter (OTEL_* keys).
type Config struct {
	Port         string        `env:"PORT" envDefault:"8080"`
	DatabasePath string        `env:"DATABASE_PATH" envDefault:"certbill.db"`
	CABaseURL    string        `env:"CA_API_BASE_URL" envDefault:"https://api.gogetssl.example/v1"`
	CAAPIKey     string        `env:"CA_API_KEY"`
	CATimeout    time.Duration `env:"CA_API_TIMEOUT" envDefault:"30s"`
}
