package config

import (
	"os"
	"strconv"
	"time"

	"fitbridge-service/internal/pkg/jwt"
)

type AppConfig struct {
	// Server
	HTTPAddr  string
	RedisAddr string
	RedisPass string

	// JWT
	JWT jwt.Config

	// Handoff
	PendingSessionTTL       time.Duration
	PendingSessionRetention time.Duration
	DeepLinkScheme          string
	ServiceToken            string
	IdPVerifier             string // "unverified" enables the dev verifier
}

// Load loads environment variables into AppConfig.
func Load() AppConfig {
	return AppConfig{
		HTTPAddr:  getEnv("HTTP_ADDR", ":8000"),
		RedisAddr: getEnv("REDIS_ADDR", "redis-fitbridge:6379"),
		RedisPass: getEnv("REDIS_PASS", ""),

		JWT: jwt.Config{
			PrivPath: getEnv("JWT_PRIVATE_KEY_PATH", "/app/secrets/jwt_private.pem"),
			PubPath:  getEnv("JWT_PUBLIC_KEY_PATH", "/app/secrets/jwt_public.pem"),
			Issuer:   "fitbridge",
			Audience: "fitbridge-app",
			TTL:      720 * time.Hour,
			KID:      "fitbridge-key",
		},

		PendingSessionTTL:       getEnvDuration("PENDING_SESSION_TTL", 5*time.Minute),
		PendingSessionRetention: getEnvDuration("PENDING_SESSION_RETENTION", 24*time.Hour),
		DeepLinkScheme:          getEnv("DEEPLINK_SCHEME", "fitbridge"),
		ServiceToken:            getEnv("SERVICE_TOKEN", ""),
		IdPVerifier:             getEnv("IDP_VERIFIER", "unverified"),
	}
}

// --- Helper functions ---

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	// plain seconds also accepted
	if secs, err := strconv.Atoi(v); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}
