package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"
)

// Runtime env keys that override the file values for new matches.
const (
	EnvTrickPauseMs   = "spades_trick_pause_ms"
	EnvRoundPauseMs   = "spades_round_pause_ms"
	EnvFinishedTTLSec = "spades_finished_ttl_sec"
	EnvEmptyLobbySec  = "spades_empty_lobby_sec"
)

const (
	DefaultTickRate   = 5
	DefaultConfigPath = "data/game_config.json"
	// DefaultEmptyLobbyTTL is how long a created match waits for its first player.
	DefaultEmptyLobbyTTL = 2 * time.Minute
)

type GameConfig struct {
	TrickPauseMs       int `json:"trick_pause_ms"`
	RoundPauseMs       int `json:"round_pause_ms"`
	FinishedTTLSeconds int `json:"finished_ttl_seconds"`
	// EmptyLobbySeconds bounds how long a match with no seated player is kept.
	EmptyLobbySeconds int `json:"empty_lobby_seconds"`
	// CodeLength is the length of generated game codes.
	CodeLength int `json:"code_length"`
	// TickRate is the match loop frequency in ticks per second.
	TickRate int `json:"tick_rate"`
}

var (
	cfg      *GameConfig
	loadOnce sync.Once
	loadErr  error
)

// LoadGameConfig loads the game configuration from the given path.
func LoadGameConfig(path string) error {
	loadOnce.Do(func() {
		data, err := os.ReadFile(path)
		if err != nil {
			loadErr = fmt.Errorf("failed to read game config: %w", err)
			return
		}

		c, err := Parse(data)
		if err != nil {
			loadErr = err
			return
		}
		cfg = c
	})
	return loadErr
}

// Parse decodes a configuration document.
func Parse(data []byte) (*GameConfig, error) {
	var c GameConfig
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("failed to unmarshal game config: %w", err)
	}
	return &c, nil
}

// GetGameConfig returns the global game configuration. It is never nil; an
// empty configuration stands in when nothing was loaded.
func GetGameConfig() *GameConfig {
	if cfg == nil {
		return &GameConfig{}
	}
	return cfg
}

// WithEnv returns a copy of c with any runtime env overrides applied.
// Malformed or non-positive values are ignored.
func (c GameConfig) WithEnv(env map[string]string) GameConfig {
	override := func(key string, dst *int) {
		v, ok := env[key]
		if !ok {
			return
		}
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			*dst = n
		}
	}
	override(EnvTrickPauseMs, &c.TrickPauseMs)
	override(EnvRoundPauseMs, &c.RoundPauseMs)
	override(EnvFinishedTTLSec, &c.FinishedTTLSeconds)
	override(EnvEmptyLobbySec, &c.EmptyLobbySeconds)
	return c
}

// Zero durations mean "use the session default".

func (c GameConfig) TrickPause() time.Duration {
	return time.Duration(c.TrickPauseMs) * time.Millisecond
}

func (c GameConfig) RoundPause() time.Duration {
	return time.Duration(c.RoundPauseMs) * time.Millisecond
}

func (c GameConfig) FinishedTTL() time.Duration {
	return time.Duration(c.FinishedTTLSeconds) * time.Second
}

// EmptyLobbyTTL returns the configured empty lobby lifetime, or DefaultEmptyLobbyTTL.
func (c GameConfig) EmptyLobbyTTL() time.Duration {
	if c.EmptyLobbySeconds <= 0 {
		return DefaultEmptyLobbyTTL
	}
	return time.Duration(c.EmptyLobbySeconds) * time.Second
}

// Ticks returns the configured tick rate, or DefaultTickRate.
func (c GameConfig) Ticks() int {
	if c.TickRate <= 0 {
		return DefaultTickRate
	}
	return c.TickRate
}
