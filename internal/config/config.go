package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"timed-quiz-service/internal/domain"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	Auth struct {
		JWTSecret string `yaml:"jwtSecret"`
	} `yaml:"auth"`
	Quiz struct {
		CacheTTL string `yaml:"cacheTTL"`
		Fixtures string `yaml:"fixtures"`
	} `yaml:"quiz"`
	Trial struct {
		SourceURL      string `yaml:"sourceURL"`
		Timeout        string `yaml:"timeout"`
		AnonymousCount int    `yaml:"anonymousCount"`
		MaxCount       int    `yaml:"maxCount"`
		AnonymousTTL   string `yaml:"anonymousTTL"`
		MaxTTL         string `yaml:"maxTTL"`
		SingleUse      bool   `yaml:"singleUse"`
	} `yaml:"trial"`
	Leaderboard struct {
		Size       int    `yaml:"size"`
		MaxRetries int    `yaml:"maxRetries"`
		Store      string `yaml:"store"`
	} `yaml:"leaderboard"`
}

// Load reads YAML config from path, after pulling a .env file (if any) into the
// environment. JWT_SECRET and PORT override the file.
func Load(path string) (Config, error) {
	_ = godotenv.Load()

	cfg := Config{}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse %s: %w", path, err)
	}
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Auth.JWTSecret = secret
	}
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	return cfg, nil
}

// LeaderboardBackend resolves leaderboard.store, falling back to whatever
// durable backend is configured.
func (c Config) LeaderboardBackend() string {
	switch store := strings.ToLower(c.Leaderboard.Store); store {
	case "memory", "redis", "postgres":
		return store
	}
	switch {
	case c.Postgres.URL != "":
		return "postgres"
	case c.Redis.Addr != "":
		return "redis"
	default:
		return "memory"
	}
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}

// LoadFixtures reads a JSON array of quizzes used to seed the quiz store.
func LoadFixtures(path string) ([]domain.Quiz, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var quizzes []domain.Quiz
	if err := json.Unmarshal(data, &quizzes); err != nil {
		return nil, fmt.Errorf("parse fixtures %s: %w", path, err)
	}
	for i, q := range quizzes {
		if q.ID == "" || q.CreatorID == "" {
			return nil, fmt.Errorf("fixture %d: id and creatorId are required", i)
		}
		for j := range q.Questions {
			quizzes[i].Questions[j].QuizID = q.ID
		}
	}
	return quizzes, nil
}
