package sync

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"go.uber.org/config"
)

// Config is the full service configuration, loaded from YAML with
// ${ENV_VAR} interpolation for secrets.
type Config struct {
	Ads       AdsSettings
	Notion    NotionSettings
	Sync      SyncSettings
	Scheduler SchedulerSettings
	Server    ServerSettings
}

type AdsSettings struct {
	DeveloperToken string   `yaml:"developerToken"`
	ClientID       string   `yaml:"clientId"`
	ClientSecret   string   `yaml:"clientSecret"`
	RefreshToken   string   `yaml:"refreshToken"`
	MCCCustomerID  string   `yaml:"mccCustomerId"`
	SubAccounts    []string `yaml:"subAccounts"`
	Endpoint       string
	TokenEndpoint  string `yaml:"tokenEndpoint"`
}

type NotionSettings struct {
	APIKey           string `yaml:"apiKey"`
	DatabaseID       string `yaml:"databaseId"`
	Endpoint         string
	NameProperty     string `yaml:"nameProperty"`
	ScheduleProperty string `yaml:"scheduleProperty"`
}

type SyncSettings struct {
	RunTimeout         time.Duration `yaml:"runTimeout"`
	CreateMissingPages bool          `yaml:"createMissingPages"`
}

type SchedulerSettings struct {
	MorningSchedule string `yaml:"morningSchedule"`
	EveningSchedule string `yaml:"eveningSchedule"`
	Timezone        string
}

type ServerSettings struct {
	Addr      string
	JWTSecret string `yaml:"jwtSecret"`
	APIKey    string `yaml:"apiKey"`
	Username  string
	Password  string
}

// DefaultConfig returns the configuration defaults applied before any YAML
// source is read.
func DefaultConfig() Config {
	return Config{
		Ads: AdsSettings{
			Endpoint:      "https://googleads.googleapis.com",
			TokenEndpoint: "https://oauth2.googleapis.com/token",
		},
		Notion: NotionSettings{
			Endpoint:         "https://api.notion.com",
			NameProperty:     "Campaign Name",
			ScheduleProperty: "Ad Schedule",
		},
		Sync: SyncSettings{
			RunTimeout: 5 * time.Minute,
		},
		Scheduler: SchedulerSettings{
			MorningSchedule: "0 9 * * *",
			EveningSchedule: "0 18 * * *",
			Timezone:        "Asia/Seoul",
		},
		Server: ServerSettings{
			Addr: ":8080",
		},
	}
}

// LoadConfig reads YAML config from the given sources, later sources
// overriding earlier ones, with ${ENV_VAR} values expanded from the
// environment.
func LoadConfig(sources ...io.Reader) (Config, error) {
	result := DefaultConfig()
	var options []config.YAMLOption
	for _, s := range sources {
		options = append(options, config.Source(s))
	}
	options = append(options, config.Expand(os.LookupEnv))
	yaml, err := config.NewYAML(options...)
	if err != nil {
		return result, fmt.Errorf("failed to read yaml config %w", err)
	}
	readError := func(key string, cause error) error {
		return fmt.Errorf("failed to read '%s' from yaml config %w", key, cause)
	}
	key := "ads"
	err = yaml.Get(key).Populate(&result.Ads)
	if err != nil {
		return result, readError(key, err)
	}
	key = "notion"
	err = yaml.Get(key).Populate(&result.Notion)
	if err != nil {
		return result, readError(key, err)
	}
	key = "sync"
	if yaml.Get(key).HasValue() {
		// Durations arrive as strings ("5m"), which the yaml decoder cannot
		// place into a time.Duration directly.
		var raw struct {
			RunTimeout         string `yaml:"runTimeout"`
			CreateMissingPages bool   `yaml:"createMissingPages"`
		}
		err = yaml.Get(key).Populate(&raw)
		if err != nil {
			return result, readError(key, err)
		}
		result.Sync.CreateMissingPages = raw.CreateMissingPages
		if raw.RunTimeout != "" {
			result.Sync.RunTimeout, err = time.ParseDuration(raw.RunTimeout)
			if err != nil {
				return result, readError("sync.runTimeout", err)
			}
		}
	}
	key = "scheduler"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Scheduler)
		if err != nil {
			return result, readError(key, err)
		}
	}
	key = "server"
	if yaml.Get(key).HasValue() {
		err = yaml.Get(key).Populate(&result.Server)
		if err != nil {
			return result, readError(key, err)
		}
	}
	return result, nil
}

// LoadConfigFile loads configuration from a YAML file on disk.
func LoadConfigFile(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return DefaultConfig(), fmt.Errorf("failed to open config file %w", err)
	}
	defer f.Close()
	return LoadConfig(f)
}

// Validate reports the first missing required setting.
func (c Config) Validate() error {
	required := []struct {
		key   string
		value string
	}{
		{"ads.developerToken", c.Ads.DeveloperToken},
		{"ads.clientId", c.Ads.ClientID},
		{"ads.clientSecret", c.Ads.ClientSecret},
		{"ads.refreshToken", c.Ads.RefreshToken},
		{"ads.mccCustomerId", c.Ads.MCCCustomerID},
		{"notion.apiKey", c.Notion.APIKey},
		{"notion.databaseId", c.Notion.DatabaseID},
		{"server.jwtSecret", c.Server.JWTSecret},
	}
	for _, r := range required {
		if r.value == "" {
			return fmt.Errorf("config: '%s' is required", r.key)
		}
	}
	if len(c.Ads.SubAccounts) == 0 {
		return errors.New("config: 'ads.subAccounts' must list at least one sub-account")
	}
	return nil
}
