package scanner

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Profile overrides some or all thresholds for a scanner model.
// Zero fields keep the base value.
type Profile struct {
	MinLength  int           `yaml:"min_length"`
	MaxGap     time.Duration `yaml:"max_gap"`
	MaxBurst   time.Duration `yaml:"max_burst"`
	Inactivity time.Duration `yaml:"inactivity"`
}

// Apply returns base with the profile's non-zero fields applied.
func (p Profile) Apply(base Config) Config {
	if p.MinLength > 0 {
		base.MinLength = p.MinLength
	}
	if p.MaxGap > 0 {
		base.MaxGap = p.MaxGap
	}
	if p.MaxBurst > 0 {
		base.MaxBurst = p.MaxBurst
	}
	if p.Inactivity > 0 {
		base.Inactivity = p.Inactivity
	}
	return base
}

type profileFile struct {
	Profiles map[string]Profile `yaml:"profiles"`
}

// LoadProfiles decodes a YAML document with a top-level "profiles" map.
func LoadProfiles(r io.Reader) (map[string]Profile, error) {
	var f profileFile
	if err := yaml.NewDecoder(r).Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return nil, errors.Join(ErrProfileParse, err)
	}
	if f.Profiles == nil {
		f.Profiles = map[string]Profile{}
	}
	return f.Profiles, nil
}

// LoadProfileFile reads path and returns the profile called name.
func LoadProfileFile(path, name string) (Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return Profile{}, errors.Join(ErrProfileParse, err)
	}
	defer f.Close()

	profiles, err := LoadProfiles(f)
	if err != nil {
		return Profile{}, err
	}
	p, ok := profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("%w: %q", ErrProfileNotFound, name)
	}
	return p, nil
}
