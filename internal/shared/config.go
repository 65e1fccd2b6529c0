package shared

import (
	_ "embed"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"golang.org/x/oauth2"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Database    DatabaseConfig    `toml:"database"`
	Server      ServerConfig      `toml:"server"`
	Playlists   PlaylistsConfig   `toml:"playlists"`
	History     HistoryConfig     `toml:"history"`
	Resolver    ResolverConfig    `toml:"resolver"`
	Ranking     RankingConfig     `toml:"ranking"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
}

// SpotifyConfig contains Spotify API credentials and the persisted OAuth token.
type SpotifyConfig struct {
	ClientID     string    `toml:"client_id"`
	ClientSecret string    `toml:"client_secret"`
	RedirectURI  string    `toml:"redirect_uri"`
	AccessToken  string    `toml:"access_token"`
	RefreshToken string    `toml:"refresh_token"`
	TokenType    string    `toml:"token_type"`
	Expiry       time.Time `toml:"expiry,omitempty"`
}

// DatabaseConfig contains database connection settings.
type DatabaseConfig struct {
	Path         string `toml:"path"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// ServerConfig contains the loopback OAuth callback listener settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// PlaylistsConfig names the tracked and dynamic playlists.
//
// Ids cached in the database take precedence; these seed the cache on first run.
type PlaylistsConfig struct {
	TrackedID   string `toml:"tracked_id"`
	DynamicID   string `toml:"dynamic_id"`
	DynamicSize int    `toml:"dynamic_size"`
	BatchSize   int    `toml:"batch_size"`
}

// HistoryConfig tunes fetching, inference and merging of play events.
type HistoryConfig struct {
	DefaultWatermark    time.Time     `toml:"default_watermark"`
	PageSize            int           `toml:"page_size"`
	StallStep           time.Duration `toml:"stall_step"`
	MaxStalls           int           `toml:"max_stalls"`
	PageInterval        time.Duration `toml:"page_interval"`
	Infer               bool          `toml:"infer"`
	InferenceWindow     time.Duration `toml:"inference_window"`
	InferenceMinMatches int           `toml:"inference_min_matches"`
	InferenceSource     string        `toml:"inference_source"`
	CollapseWindow      time.Duration `toml:"collapse_window"`
}

// ResolverConfig holds the fuzzy identity thresholds.
type ResolverConfig struct {
	Enabled           bool    `toml:"enabled"`
	NameThreshold     float64 `toml:"name_threshold"`
	DurationTolerance float64 `toml:"duration_tolerance"`
	AlbumDivisor      float64 `toml:"album_divisor"`
	ArtistDivisor     float64 `toml:"artist_divisor"`
}

// RankingConfig holds the review window and per-star lookback windows.
//
// TierDays[i] is the lookback in days for a rating of i+1 stars.
type RankingConfig struct {
	ReviewWindow time.Duration `toml:"review_window"`
	TierDays     [5]int        `toml:"tier_days"`
}

// Update copies the fields of token into the Spotify credentials.
func (s *SpotifyConfig) Update(token *oauth2.Token) error {
	if token == nil || token.AccessToken == "" {
		return fmt.Errorf("%w: empty token", ErrMissingCredentials)
	}
	s.AccessToken = token.AccessToken
	s.RefreshToken = token.RefreshToken
	s.TokenType = token.TokenType
	s.Expiry = token.Expiry
	return nil
}

// Token returns the persisted OAuth token, or nil when none has been saved.
func (s SpotifyConfig) Token() *oauth2.Token {
	if s.AccessToken == "" && s.RefreshToken == "" {
		return nil
	}
	return &oauth2.Token{
		AccessToken:  s.AccessToken,
		RefreshToken: s.RefreshToken,
		TokenType:    s.TokenType,
		Expiry:       s.Expiry,
	}
}

// Validate checks ranges that the pipeline depends on.
func (c *Config) Validate() error {
	switch {
	case c.Database.Path == "":
		return fmt.Errorf("%w: database.path is empty", ErrInvalidConfig)
	case c.Playlists.DynamicSize <= 0:
		return fmt.Errorf("%w: playlists.dynamic_size must be positive", ErrInvalidConfig)
	case c.Playlists.BatchSize <= 0 || c.Playlists.BatchSize > 100:
		return fmt.Errorf("%w: playlists.batch_size must be within 1..100", ErrInvalidConfig)
	case c.History.PageSize <= 0 || c.History.PageSize > 50:
		return fmt.Errorf("%w: history.page_size must be within 1..50", ErrInvalidConfig)
	case c.History.MaxStalls < 0:
		return fmt.Errorf("%w: history.max_stalls must not be negative", ErrInvalidConfig)
	case c.History.StallStep <= 0:
		return fmt.Errorf("%w: history.stall_step must be positive", ErrInvalidConfig)
	case c.History.InferenceSource != "tracked" && c.History.InferenceSource != "dynamic":
		return fmt.Errorf("%w: history.inference_source must be tracked or dynamic", ErrInvalidConfig)
	case c.History.CollapseWindow < 0:
		return fmt.Errorf("%w: history.collapse_window must not be negative", ErrInvalidConfig)
	case c.Resolver.NameThreshold <= 0 || c.Resolver.NameThreshold > 1:
		return fmt.Errorf("%w: resolver.name_threshold must be within (0, 1]", ErrInvalidConfig)
	case c.Resolver.AlbumDivisor <= 0 || c.Resolver.ArtistDivisor <= 0:
		return fmt.Errorf("%w: resolver divisors must be positive", ErrInvalidConfig)
	}

	for i, days := range c.Ranking.TierDays {
		if days <= 0 {
			return fmt.Errorf("%w: ranking.tier_days[%d] must be positive", ErrInvalidConfig, i)
		}
		if i > 0 && days > c.Ranking.TierDays[i-1] {
			return fmt.Errorf("%w: ranking.tier_days must not increase with stars", ErrInvalidConfig)
		}
	}

	return nil
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// Keys missing from the file keep the values of [DefaultConfig].
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("%w: failed to parse config: %v", ErrInvalidConfig, err)
	}

	return config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// SaveConfig writes config to path as TOML, replacing any existing file.
func SaveConfig(path string, config *Config) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return fmt.Errorf("failed to open config file: %w", err)
	}
	defer f.Close()

	if err := toml.NewEncoder(f).Encode(config); err != nil {
		return fmt.Errorf("failed to encode config: %w", err)
	}

	return nil
}
