package mappings

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// Load reads an account map from path (YAML, JSON or TOML by extension) with
// ODYSSEY_ACCOUNTS_* environment overrides. An empty path yields the built-in
// defaults only.
func Load(path string) (*Resolver, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("ODYSSEY_ACCOUNTS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("mappings: read %s: %w", path, err)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("mappings: decode: %w", err)
	}
	return NewResolver(cfg), nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("default.inventory", "1400")
	v.SetDefault("default.cogs", "5000")
	v.SetDefault("default.payable", "2100")
	v.SetDefault("default.adjustment_gain", "4900")
	v.SetDefault("default.adjustment_loss", "5900")
}
