// Command provctl inspects a data-provenance tracker's durable store
// without going through the resolution engine: it loads call and result
// records directly and reports on blob reachability. Grounded on the
// teacher's cmd/noms tree, whose subcommand-per-verb dispatch (see
// noms_command.go's nomsCommand table) this mirrors with a plain map
// from verb to command, the way cmd/git-dolt keeps its own dispatch to a
// handful of verbs.
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
)

type command struct {
	usage string
	short string
	run   func(log *logrus.Logger, args []string) error
}

var commands = map[string]command{
	"inspect": {
		usage: "provctl inspect [--config path.toml] --data-dir DIR <digest>",
		short: "load and pretty-print a call or result record by digest",
		run:   runInspect,
	},
	"gc-check": {
		usage: "provctl gc-check <tracker-dir>",
		short: "read-only reachability walk reporting orphaned blobs",
		run:   runGCCheck,
	},
}

func main() {
	log := logrus.New()
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	cmd, ok := commands[os.Args[1]]
	if !ok {
		fmt.Fprintf(os.Stderr, "provctl: unknown command %q\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}

	if err := cmd.run(log, os.Args[2:]); err != nil {
		log.WithError(err).Error("provctl: command failed")
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, "usage: provctl <command> [args]")
	fmt.Fprintln(os.Stderr, "\ncommands:")
	for name, cmd := range commands {
		fmt.Fprintf(os.Stderr, "  %-10s %s\n", name, cmd.short)
		fmt.Fprintf(os.Stderr, "             %s\n", cmd.usage)
	}
}
