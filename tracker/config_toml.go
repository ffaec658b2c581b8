package tracker

import "github.com/BurntSushi/toml"

func decodeTOML(doc string, cfg *Config) (toml.MetaData, error) {
	return toml.Decode(doc, cfg)
}

// LoadConfigFile parses a TOML config document from disk.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig("")
	_, err := toml.DecodeFile(path, &cfg)
	return cfg, err
}
