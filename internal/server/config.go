package server

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	_ "github.com/joho/godotenv/autoload"

	"ticket-to-ride-server/internal/ticket"
)

// Config is the complete server configuration.
type Config struct {
	Server   ServerSettings
	Database DatabaseSettings
	Limits   LimitSettings
	Rules    *RulesBlock
}

// configFile is the HCL layout; every block is optional.
type configFile struct {
	Server   *ServerSettings   `hcl:"server,block"`
	Database *DatabaseSettings `hcl:"database,block"`
	Limits   *LimitSettings    `hcl:"limits,block"`
	Rules    *RulesBlock       `hcl:"rules,block"`
}

// ServerSettings contains listener and logging configuration.
type ServerSettings struct {
	Address  string `hcl:"address,optional"`
	Port     int    `hcl:"port,optional"`
	LogLevel string `hcl:"log_level,optional"`
	// Map is a board file; empty means the embedded US map.
	Map string `hcl:"map,optional"`
}

type DatabaseSettings struct {
	URL             string `hcl:"url,optional"`
	SaveInterval    string `hcl:"save_interval,optional"`
	CleanupInterval string `hcl:"cleanup_interval,optional"`
	Retention       string `hcl:"retention,optional"`
}

type LimitSettings struct {
	RequestsPerSecond int    `hcl:"requests_per_second,optional"`
	LobbyExpiry       string `hcl:"lobby_expiry,optional"`
	IdleTimeout       string `hcl:"idle_timeout,optional"`
}

// RulesBlock overrides individual game rules. Unset attributes keep the
// defaults.
type RulesBlock struct {
	MinPlayers               *int    `hcl:"min_players,optional"`
	MaxPlayers               *int    `hcl:"max_players,optional"`
	StartingCars             *int    `hcl:"starting_cars,optional"`
	InitialTrainCards        *int    `hcl:"initial_train_cards,optional"`
	DestinationDraw          *int    `hcl:"destination_draw,optional"`
	InitialMinKeep           *int    `hcl:"initial_min_keep,optional"`
	TurnMinKeep              *int    `hcl:"turn_min_keep,optional"`
	LastTurnThreshold        *int    `hcl:"last_turn_threshold,optional"`
	LongestPathBonus         *int    `hcl:"longest_path_bonus,optional"`
	LongestPathTies          *string `hcl:"longest_path_ties,optional"`
	ParallelRoutesMinPlayers *int    `hcl:"parallel_routes_min_players,optional"`
	DisplaySize              *int    `hcl:"display_size,optional"`
	WildLimit                *int    `hcl:"wild_limit,optional"`
}

// DefaultConfig returns the configuration used when no file is present.
func DefaultConfig() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// LoadConfig reads an HCL configuration file, falling back to defaults when
// the file does not exist. Environment variables PORT, DATABASE_URL and
// LOG_LEVEL override the file.
func LoadConfig(filename string) (*Config, error) {
	cfg, err := parseConfig(filename)
	if err != nil {
		return nil, err
	}
	cfg.applyDefaults()
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseConfig(filename string) (*Config, error) {
	if filename == "" {
		return &Config{}, nil
	}
	if _, err := os.Stat(filename); os.IsNotExist(err) {
		return &Config{}, nil
	}

	parser := hclparse.NewParser()
	file, diags := parser.ParseHCLFile(filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to parse HCL file: %s", diags.Error())
	}

	var f configFile
	diags = gohcl.DecodeBody(file.Body, nil, &f)
	if diags.HasErrors() {
		return nil, fmt.Errorf("failed to decode HCL: %s", diags.Error())
	}

	cfg := &Config{Rules: f.Rules}
	if f.Server != nil {
		cfg.Server = *f.Server
	}
	if f.Database != nil {
		cfg.Database = *f.Database
	}
	if f.Limits != nil {
		cfg.Limits = *f.Limits
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = "info"
	}
	if c.Database.SaveInterval == "" {
		c.Database.SaveInterval = "30s"
	}
	if c.Database.CleanupInterval == "" {
		c.Database.CleanupInterval = "1h"
	}
	if c.Database.Retention == "" {
		c.Database.Retention = "24h"
	}
	if c.Limits.RequestsPerSecond == 0 {
		c.Limits.RequestsPerSecond = 10
	}
	if c.Limits.LobbyExpiry == "" {
		c.Limits.LobbyExpiry = "10m"
	}
	if c.Limits.IdleTimeout == "" {
		c.Limits.IdleTimeout = "5m"
	}
}

func (c *Config) applyEnv() error {
	if port := os.Getenv("PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid PORT %q: %w", port, err)
		}
		c.Server.Port = p
	}
	if url := os.Getenv("DATABASE_URL"); url != "" {
		c.Database.URL = url
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		c.Server.LogLevel = level
	}
	return nil
}

// Validate checks ports, durations and rules.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Server.Port)
	}
	if c.Limits.RequestsPerSecond < 0 {
		return fmt.Errorf("requests per second cannot be negative")
	}
	for name, value := range map[string]string{
		"save_interval":    c.Database.SaveInterval,
		"cleanup_interval": c.Database.CleanupInterval,
		"retention":        c.Database.Retention,
		"lobby_expiry":     c.Limits.LobbyExpiry,
		"idle_timeout":     c.Limits.IdleTimeout,
	} {
		d, err := time.ParseDuration(value)
		if err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
		if d <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	if err := c.GameRules().Validate(); err != nil {
		return fmt.Errorf("rules: %w", err)
	}
	return nil
}

// ServerAddress returns the host:port to listen on.
func (c *Config) ServerAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Address, c.Server.Port)
}

// GameRules merges the rules block over ticket.DefaultRules.
func (c *Config) GameRules() ticket.Rules {
	rules := ticket.DefaultRules()
	b := c.Rules
	if b == nil {
		return rules
	}
	set := func(dst *int, src *int) {
		if src != nil {
			*dst = *src
		}
	}
	set(&rules.MinPlayers, b.MinPlayers)
	set(&rules.MaxPlayers, b.MaxPlayers)
	set(&rules.StartingCars, b.StartingCars)
	set(&rules.InitialTrainCards, b.InitialTrainCards)
	set(&rules.DestinationDraw, b.DestinationDraw)
	set(&rules.InitialMinKeep, b.InitialMinKeep)
	set(&rules.TurnMinKeep, b.TurnMinKeep)
	set(&rules.LastTurnThreshold, b.LastTurnThreshold)
	set(&rules.LongestPathBonus, b.LongestPathBonus)
	set(&rules.ParallelRoutesMinPlayers, b.ParallelRoutesMinPlayers)
	set(&rules.DisplaySize, b.DisplaySize)
	set(&rules.WildLimit, b.WildLimit)
	if b.LongestPathTies != nil {
		rules.LongestPathTies = ticket.TiePolicy(*b.LongestPathTies)
	}
	return rules
}

// Durations are validated by Validate; these fall back to zero on bad input.

func (c *Config) SaveInterval() time.Duration    { return durationOrZero(c.Database.SaveInterval) }
func (c *Config) CleanupInterval() time.Duration { return durationOrZero(c.Database.CleanupInterval) }
func (c *Config) Retention() time.Duration       { return durationOrZero(c.Database.Retention) }
func (c *Config) LobbyExpiry() time.Duration     { return durationOrZero(c.Limits.LobbyExpiry) }
func (c *Config) IdleTimeout() time.Duration     { return durationOrZero(c.Limits.IdleTimeout) }

func durationOrZero(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
