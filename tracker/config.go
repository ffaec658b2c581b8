package tracker

// Config configures the durable LevelDB-backed tracker. Loaded from a
// TOML file with github.com/BurntSushi/toml, matching how dolt's own
// tooling loads its config (go/go.mod carries BurntSushi/toml for exactly
// this).
type Config struct {
	// DataDir is the LevelDB database directory.
	DataDir string `toml:"data_dir"`
	// BlobCacheSize is the number of decompressed blobs kept in the
	// in-process LRU in front of LevelDB reads.
	BlobCacheSize int `toml:"blob_cache_size"`
	// Compress, when true, snappy-compresses blob payloads before they
	// are written to LevelDB.
	Compress bool `toml:"compress"`
}

// DefaultConfig returns sane defaults for dataDir.
func DefaultConfig(dataDir string) Config {
	return Config{
		DataDir:       dataDir,
		BlobCacheSize: 4096,
		Compress:      true,
	}
}

// LoadConfigString parses a TOML config document.
func LoadConfigString(doc string) (Config, error) {
	cfg := DefaultConfig("")
	_, err := decodeTOML(doc, &cfg)
	return cfg, err
}
