package main

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/astangl/data-provenance/tracker"
)

func runGCCheck(log *logrus.Logger, args []string) error {
	if len(args) != 1 {
		return errors.New("provctl gc-check: expected exactly one <tracker-dir> argument")
	}
	cfg := tracker.DefaultConfig(args[0])
	lt, err := tracker.OpenLevelDB(cfg, log)
	if err != nil {
		return err
	}
	defer lt.Close()

	report, err := lt.GCCheck()
	if err != nil {
		return err
	}

	log.WithFields(logrus.Fields{
		"total_blobs":     report.TotalBlobs,
		"reachable_blobs": report.ReachableBlobs,
		"orphaned_blobs":  len(report.OrphanedBlobs),
	}).Info("provctl: gc-check complete")

	for _, dg := range report.OrphanedBlobs {
		fmt.Println(dg)
	}
	return nil
}
