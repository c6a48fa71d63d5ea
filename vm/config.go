package vm

import (
	"os"

	"github.com/BurntSushi/toml"
)

// SchedulerConfig tunes the pool's adaptive scheduler, loaded from
// jvmcore.toml via the same github.com/BurntSushi/toml
// Load/FindAndLoad shape the teacher uses for maggie.toml
// (manifest/manifest.go).
type SchedulerConfig struct {
	ResponsivenessMs int64 `toml:"responsiveness_ms"`
	MaxMethodResumes int   `toml:"max_method_resumes"`
	Debug            bool  `toml:"debug"`
}

// DefaultSchedulerConfig returns the out-of-the-box tuning: a 1000ms
// responsiveness target and a seed budget of 10000 resumes.
func DefaultSchedulerConfig() SchedulerConfig {
	return SchedulerConfig{
		ResponsivenessMs: 1000,
		MaxMethodResumes: 10000,
		Debug:            false,
	}
}

// LoadSchedulerConfig reads path as TOML, falling back to defaults for
// any field not present. A missing file is not an error — it returns
// the defaults, mirroring manifest.Load's forgiving behavior for
// optional configuration.
func LoadSchedulerConfig(path string) (SchedulerConfig, error) {
	cfg := DefaultSchedulerConfig()
	if _, err := os.Stat(path); err != nil {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// FindAndLoadSchedulerConfig looks for jvmcore.toml in the given
// directories in order, returning the defaults if none is found.
func FindAndLoadSchedulerConfig(dirs ...string) (SchedulerConfig, error) {
	for _, dir := range dirs {
		path := dir + "/jvmcore.toml"
		if _, err := os.Stat(path); err == nil {
			return LoadSchedulerConfig(path)
		}
	}
	return DefaultSchedulerConfig(), nil
}
