package configuration

import (
	"dealfeed/internal/affiliate"
	"dealfeed/internal/logger"
	"dealfeed/internal/model"
	"github.com/BurntSushi/toml"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/pkg/errors"
	"golang.org/x/crypto/bcrypt"
	"time"
)

type Config struct {
	ServerAddress   string
	DataDir         string
	LogLevel        logger.Level
	LogToFile       bool
	AdminKeyHash    []byte
	AuthSecretKey   jwk.Key
	RedisAddress    string
	AllowReset      bool
	SubmitPerMinute float64
	SubmitBurst     int
	DuplicateWindow time.Duration
	ApprovePoints   int
	SweepInterval   time.Duration
	Affiliate       affiliate.Resolver
}

type tomlConfig struct {
	ServerAddress   string                       `toml:"server_address"`
	DataDir         string                       `toml:"data_dir"`
	LogLevel        string                       `toml:"log_level"`
	LogToFile       bool                         `toml:"log_to_file"`
	AdminAPIKey     string                       `toml:"admin_api_key"`
	AuthSecretKey   string                       `toml:"auth_secret_key"`
	RedisAddress    string                       `toml:"redis_address"`
	AllowReset      bool                         `toml:"allow_reset"`
	SubmitPerMinute float64                      `toml:"submit_per_minute"`
	SubmitBurst     int                          `toml:"submit_burst"`
	DuplicateWindow string                       `toml:"duplicate_window"`
	ApprovePoints   int                          `toml:"approve_points"`
	SweepInterval   string                       `toml:"sweep_interval"`
	Amazon          map[string]tomlAmazonProgram `toml:"amazon"`
	EBay            map[string]tomlEBayProgram   `toml:"ebay"`
}

type tomlAmazonProgram struct {
	Domain string `toml:"domain"`
	Tag    string `toml:"tag"`
}

type tomlEBayProgram struct {
	Domain string `toml:"domain"`
	CampID string `toml:"campid"`
	MkCID  string `toml:"mkcid"`
	MkRID  string `toml:"mkrid"`
	ToolID string `toml:"toolid"`
}

func GetConfig(path string) (*Config, error) {
	var tc tomlConfig
	_, err := toml.DecodeFile(path, &tc)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to decode toml file with path: %s", path)
	}

	if tc.ServerAddress == "" {
		tc.ServerAddress = "localhost:8900"
	}
	if tc.DataDir == "" {
		tc.DataDir = "data"
	}

	if tc.LogLevel == "" {
		tc.LogLevel = "INFO"
	}
	logLevel, err := logger.ParseLevel(tc.LogLevel)
	if err != nil {
		return nil, errors.Wrap(err, "failed to parse log_level")
	}

	if tc.AdminAPIKey == "" {
		return nil, errors.New("admin_api_key is not set")
	}
	adminKeyHash, err := bcrypt.GenerateFromPassword([]byte(tc.AdminAPIKey), bcrypt.DefaultCost)
	if err != nil {
		return nil, errors.Wrap(err, "failed to hash admin_api_key")
	}

	if tc.AuthSecretKey == "" {
		return nil, errors.New("auth_secret_key is not set")
	}
	authSecretKey, err := jwk.FromRaw([]byte(tc.AuthSecretKey))
	if err != nil {
		return nil, errors.Wrap(err, "failed to create key from auth_secret_key")
	}

	if tc.SubmitPerMinute <= 0 {
		tc.SubmitPerMinute = 6
	}
	if tc.SubmitBurst <= 0 {
		tc.SubmitBurst = 3
	}

	if tc.DuplicateWindow == "" {
		tc.DuplicateWindow = "10m"
	}
	duplicateWindow, err := time.ParseDuration(tc.DuplicateWindow)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse duplicate_window: %s", tc.DuplicateWindow)
	}

	if tc.ApprovePoints <= 0 {
		tc.ApprovePoints = 25
	}

	if tc.SweepInterval == "" {
		tc.SweepInterval = "1h"
	}
	sweepInterval, err := time.ParseDuration(tc.SweepInterval)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to parse sweep_interval: %s", tc.SweepInterval)
	}
	if sweepInterval < 15*time.Second {
		return nil, errors.Errorf("sweep_interval too short (%v), minimum interval: 15s", sweepInterval)
	}

	resolver := affiliate.Resolver{
		Amazon: map[model.Country]affiliate.AmazonProgram{},
		EBay:   map[model.Country]affiliate.EBayProgram{},
	}
	for country, p := range tc.Amazon {
		resolver.Amazon[model.ParseCountry(country)] = affiliate.AmazonProgram{
			Domain: p.Domain,
			Tag:    p.Tag,
		}
	}
	for country, p := range tc.EBay {
		resolver.EBay[model.ParseCountry(country)] = affiliate.EBayProgram{
			Domain: p.Domain,
			CampID: p.CampID,
			MkCID:  p.MkCID,
			MkRID:  p.MkRID,
			ToolID: p.ToolID,
		}
	}

	return &Config{
		ServerAddress:   tc.ServerAddress,
		DataDir:         tc.DataDir,
		LogLevel:        logLevel,
		LogToFile:       tc.LogToFile,
		AdminKeyHash:    adminKeyHash,
		AuthSecretKey:   authSecretKey,
		RedisAddress:    tc.RedisAddress,
		AllowReset:      tc.AllowReset,
		SubmitPerMinute: tc.SubmitPerMinute,
		SubmitBurst:     tc.SubmitBurst,
		DuplicateWindow: duplicateWindow,
		ApprovePoints:   tc.ApprovePoints,
		SweepInterval:   sweepInterval,
		Affiliate:       resolver,
	}, nil
}
