package duofern

import (
	"encoding/json"
	"io"

	"github.com/pkg/errors"

	"github.com/amken3d/duofern-bridge/internal/duofern/errcode"
)

// Config is the Bridge's external configuration, per spec.md §6: an
// opaque serial port path, the dongle id, and an initial PairSet.
type Config struct {
	Port           string   `json:"port"`
	DongleID       string   `json:"dongle_id"`
	InitialPairSet []string `json:"initial_pair_set"`
	LogLevel       string   `json:"log_level"`
}

// LoadConfig decodes a JSON config document. The teacher has no config
// file of its own (gopper-host is configured entirely by flags); a
// single small flat shape doesn't warrant pulling in a templating or
// env-var config framework, so the standard decoder is used directly.
func LoadConfig(r io.Reader) (Config, error) {
	var cfg Config
	if err := json.NewDecoder(r).Decode(&cfg); err != nil {
		return Config{}, errcode.New(errcode.ConfigInvalid, "load_config", err)
	}
	return cfg, nil
}

// Validate checks the fields Session construction depends on, per
// spec.md §7: "Config errors are surfaced to the host; the core does not
// start."
func (c Config) Validate() error {
	if c.Port == "" {
		return errcode.New(errcode.ConfigInvalid, "validate", errors.New("port is required"))
	}
	if err := ValidateDongleID(c.DongleID); err != nil {
		return errcode.New(errcode.ConfigInvalid, "validate", err)
	}
	for _, d := range c.InitialPairSet {
		if err := ValidateDeviceCode(d); err != nil {
			return errcode.New(errcode.ConfigInvalid, "validate", err)
		}
	}
	return nil
}

// PairSet returns the configured initial pair set as normalized
// DeviceCodes.
func (c Config) PairSet() []DeviceCode {
	out := make([]DeviceCode, len(c.InitialPairSet))
	for i, d := range c.InitialPairSet {
		out[i] = DeviceCode(d).Normalize()
	}
	return out
}
