// Command hashio is a CLI for hashio stores and the task journal kept in them.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"os"

	"github.com/bobg/subcmd"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/bobg/hashio"
	"github.com/bobg/hashio/config"
	"github.com/bobg/hashio/task"
)

type maincmd struct {
	conf   *config.Config
	s      *hashio.Store
	logger *slog.Logger
}

func main() {
	var (
		confPath = flag.String("config", "", "path to config file (default: built-in settings)")
		verbose  = flag.Bool("v", false, "verbose logging")
	)
	flag.Parse()

	level := slog.LevelWarn
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	conf := config.Default()
	if *confPath != "" {
		var err error
		conf, err = config.Load(*confPath)
		if err != nil {
			log.Fatalf("Loading config: %s", err)
		}
	}

	ctx := context.Background()

	s, err := conf.OpenStore(ctx, logger)
	if err != nil {
		log.Fatalf("Opening store: %s", err)
	}

	err = subcmd.Run(ctx, maincmd{conf: conf, s: s, logger: logger}, flag.Args())
	if conf.Store.Metrics {
		if merr := printMetrics(os.Stderr, prometheus.DefaultGatherer); merr != nil {
			logger.Warn("could not print metrics", "err", merr)
		}
	}
	if err != nil {
		log.Fatal(err)
	}
}

func (c maincmd) Subcmds() map[string]subcmd.Subcmd {
	return map[string]subcmd.Subcmd{
		"put":  c.put,
		"get":  c.get,
		"fsck": c.fsck,
		"add":  c.add,
		"done": c.done,
		"show": c.show,
		"list": c.list,
		"log":  c.log,
	}
}

func (c maincmd) journal() (*task.Journal, error) {
	return task.OpenJournal(c.s, c.tasks(), c.conf.Journal)
}

func (c maincmd) tasks() *hashio.Model[*task.Task] {
	return task.NewCodec(c.conf.LegacyStore(c.logger))
}
