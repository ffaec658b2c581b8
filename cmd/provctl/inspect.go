package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/astangl/data-provenance/digest"
	"github.com/astangl/data-provenance/tracker"
)

func openTracker(configPath, dataDir string, log *logrus.Logger) (*tracker.LevelDB, error) {
	var cfg tracker.Config
	var err error
	switch {
	case configPath != "":
		cfg, err = tracker.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("provctl: load config %s: %w", configPath, err)
		}
		if dataDir != "" {
			cfg.DataDir = dataDir
		}
	case dataDir != "":
		cfg = tracker.DefaultConfig(dataDir)
	default:
		return nil, errors.New("provctl: one of --config or --data-dir is required")
	}
	return tracker.OpenLevelDB(cfg, log)
}

func runInspect(log *logrus.Logger, args []string) error {
	fs := flag.NewFlagSet("inspect", flag.ExitOnError)
	configPath := fs.String("config", "", "path to a tracker.Config TOML file")
	dataDir := fs.String("data-dir", "", "LevelDB data directory (overrides --config's data_dir)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("provctl inspect: expected exactly one <digest> argument")
	}
	dg, err := digest.Parse(fs.Arg(0))
	if err != nil {
		return fmt.Errorf("provctl inspect: %w", err)
	}

	lt, err := openTracker(*configPath, *dataDir, log)
	if err != nil {
		return err
	}
	defer lt.Close()

	ctx := context.Background()
	if call, ok, err := lt.LoadCallByDigest(ctx, dg); err != nil {
		return err
	} else if ok {
		return printJSON("call", dg, call)
	}
	if result, ok, err := lt.LoadResultByDigest(ctx, dg); err != nil {
		return err
	} else if ok {
		return printJSON("result", dg, result)
	}
	if value, err := lt.LoadValue(ctx, dg); err == nil {
		fmt.Printf("blob %s: %d bytes\n%s\n", dg, len(value), string(value))
		return nil
	}
	return fmt.Errorf("provctl inspect: no call, result, or blob record found for %s", dg)
}

func printJSON(kind string, dg digest.Digest, v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Printf("%s %s\n%s\n", kind, dg, b)
	return nil
}
