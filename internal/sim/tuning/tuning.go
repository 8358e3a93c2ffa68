package tuning

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Tuning struct {
	ProtocolVersion string `yaml:"protocol_version"`

	DefaultSiteID             uint32 `yaml:"default_site_id"`
	StartMapID                uint32 `yaml:"start_map_id"`
	FollowerActivationsPerDay uint32 `yaml:"follower_activations_per_day"`

	StartingMoney      uint64           `yaml:"starting_money"`
	StartingCurrencies map[uint32]int32 `yaml:"starting_currencies"`

	SaveEverySeconds int `yaml:"save_every_seconds"`
	OutboxSize       int `yaml:"outbox_size"`

	RateLimits RateLimits `yaml:"rate_limits"`
}

type RateLimits struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

func Defaults() Tuning {
	return Tuning{
		ProtocolVersion:           "1.0",
		DefaultSiteID:             71,
		StartMapID:                1116,
		FollowerActivationsPerDay: 1,
		StartingMoney:             0,
		StartingCurrencies:        map[uint32]int32{},
		SaveEverySeconds:          60,
		OutboxSize:                32,
		RateLimits: RateLimits{
			RequestsPerSecond: 10,
			Burst:             20,
		},
	}
}

// Load reads path over Defaults(); keys missing from the file keep their default.
func Load(path string) (Tuning, error) {
	t := Defaults()
	raw, err := os.ReadFile(path)
	if err != nil {
		return t, err
	}
	if err := yaml.Unmarshal(raw, &t); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	if err := t.Validate(); err != nil {
		return t, fmt.Errorf("tuning.yaml: %w", err)
	}
	return t, nil
}

func (t Tuning) Validate() error {
	if t.SaveEverySeconds <= 0 {
		return fmt.Errorf("save_every_seconds must be > 0")
	}
	if t.OutboxSize <= 0 {
		return fmt.Errorf("outbox_size must be > 0")
	}
	if t.RateLimits.RequestsPerSecond <= 0 || t.RateLimits.Burst <= 0 {
		return fmt.Errorf("rate_limits must be > 0")
	}
	return nil
}
