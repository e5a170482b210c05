package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Mongo struct {
	URL      string `yaml:"url"`
	Database string `yaml:"database"`
}

type Auth struct {
	AuthURL     string `yaml:"auth_url"`
	MeURL       string `yaml:"me_url"`
	Username    string `yaml:"username"`
	Password    string `yaml:"password"`
	TimeoutMs   int    `yaml:"timeout_ms"`
	ExpirySkewS int    `yaml:"expiry_skew_seconds"`
}

type Broker struct {
	URL      string `yaml:"url"`
	Topic    string `yaml:"topic"`
	ClientID string `yaml:"client_id"`
}

type Feed struct {
	ReconnectFloorMs     int `yaml:"reconnect_floor_ms"`
	ReconnectCeilingMs   int `yaml:"reconnect_ceiling_ms"`
	ConnectTimeoutMs     int `yaml:"connect_timeout_ms"`
	WatchdogIntervalSecs int `yaml:"watchdog_interval_seconds"`
	WatchdogGapSecs      int `yaml:"watchdog_gap_seconds"`
}

type Cache struct {
	TTLSeconds int    `yaml:"ttl_seconds"`
	SweepCron  string `yaml:"sweep_cron"`
}

type Alerts struct {
	Enabled       bool     `yaml:"enabled"`
	SMTPHost      string   `yaml:"smtp_host"`
	SMTPPort      int      `yaml:"smtp_port"`
	SMTPUser      string   `yaml:"smtp_user"`
	SMTPPassword  string   `yaml:"smtp_password"`
	From          string   `yaml:"from"`
	Recipients    []string `yaml:"recipients"`
	SubjectPrefix string   `yaml:"subject_prefix"`
}

type Session struct {
	Timezone string `yaml:"timezone"`
}

type API struct {
	Addr string `yaml:"addr"`
}

type Root struct {
	Debug   bool    `yaml:"debug"`
	Mongo   Mongo   `yaml:"mongo"`
	Auth    Auth    `yaml:"auth"`
	Broker  Broker  `yaml:"broker"`
	Feed    Feed    `yaml:"feed"`
	Cache   Cache   `yaml:"cache"`
	Alerts  Alerts  `yaml:"alerts"`
	Session Session `yaml:"session"`
	API     API     `yaml:"api"`
}

// Load reads a yaml config file, expanding ${ENV_VAR} references so secrets
// can stay out of the file, and applies defaults for anything unset.
func Load(path string) (Root, error) {
	var c Root
	b, err := os.ReadFile(path)
	if err != nil {
		return c, err
	}
	expanded := os.ExpandEnv(string(b))
	if err := yaml.Unmarshal([]byte(expanded), &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(&c)
	return c, nil
}

func applyDefaults(c *Root) {
	if c.Mongo.Database == "" {
		c.Mongo.Database = "quotes"
	}
	if c.Auth.TimeoutMs == 0 {
		c.Auth.TimeoutMs = 10000
	}
	if c.Auth.ExpirySkewS == 0 {
		c.Auth.ExpirySkewS = 30
	}
	if c.Broker.ClientID == "" {
		c.Broker.ClientID = "quote-ingest"
	}
	if c.Feed.ReconnectFloorMs == 0 {
		c.Feed.ReconnectFloorMs = 5000
	}
	if c.Feed.ReconnectCeilingMs == 0 {
		c.Feed.ReconnectCeilingMs = 15 * 60 * 1000
	}
	if c.Feed.ConnectTimeoutMs == 0 {
		c.Feed.ConnectTimeoutMs = 15000
	}
	if c.Feed.WatchdogIntervalSecs == 0 {
		c.Feed.WatchdogIntervalSecs = 30
	}
	if c.Feed.WatchdogGapSecs == 0 {
		c.Feed.WatchdogGapSecs = 5 * 60
	}
	if c.Cache.TTLSeconds == 0 {
		c.Cache.TTLSeconds = 5 * 60
	}
	if c.Cache.SweepCron == "" {
		c.Cache.SweepCron = "*/30 * * * *"
	}
	if c.Alerts.SMTPPort == 0 {
		c.Alerts.SMTPPort = 587
	}
	if c.Alerts.SubjectPrefix == "" {
		c.Alerts.SubjectPrefix = "[Quote Ingest]"
	}
	if c.Session.Timezone == "" {
		c.Session.Timezone = "Asia/Ho_Chi_Minh"
	}
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}
