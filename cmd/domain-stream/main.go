package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"

	"github.com/BBerastegui/domain-stream/internal/config"
	"github.com/BBerastegui/domain-stream/internal/matcher"
	"github.com/BBerastegui/domain-stream/internal/models"
	"github.com/BBerastegui/domain-stream/internal/probe"
	"github.com/BBerastegui/domain-stream/internal/report"
	"github.com/BBerastegui/domain-stream/internal/stream"
	"github.com/BBerastegui/domain-stream/internal/worker"
)

func main() {
	var opts config.Options
	flag.StringVar(&opts.ConfigPath, "config", "config.yaml", "Path to the YAML config file")
	flag.StringVar(&opts.KeywordsPath, "keywords", "", "Keyword list file (overrides config)")
	flag.IntVar(&opts.Threads, "t", config.DefaultThreads, "Number of workers (capped at 5 without credentials)")
	flag.IntVar(&opts.Threads, "threads", config.DefaultThreads, "Number of workers (capped at 5 without credentials)")
	flag.BoolVar(&opts.OnlyInteresting, "only-interesting", false, "Only report buckets whose content matches a keyword")
	flag.BoolVar(&opts.SkipLetsEncrypt, "skip-lets-encrypt", false, "Skip certificates issued by Let's Encrypt")
	flag.BoolVar(&opts.IgnoreRateLimit, "ignore-rate-limiting", false, "Treat rate-limited probes as not found instead of backing off")
	flag.BoolVar(&opts.LogToFile, "l", false, "Append findings to "+config.DefaultLogPath)
	flag.BoolVar(&opts.LogToFile, "log", false, "Append findings to "+config.DefaultLogPath)
	flag.Parse()

	cfg, err := config.Load(opts)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}

	m, err := matcher.New(cfg.Keywords)
	if err != nil {
		log.Fatalf("startup: %v", err)
	}
	log.Printf("loaded %d keywords, running %d workers", len(cfg.Keywords), cfg.Threads)
	if cfg.Credentials == nil && opts.Threads > cfg.Threads {
		log.Printf("no credentials configured, worker count capped at %d", cfg.Threads)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	queue := make(chan models.Candidate, cfg.QueueSize)
	reporter := report.New(color.Output, cfg.LogToFile, cfg.LogPath)
	pool := worker.NewPool(cfg.Threads, queue, probe.New(cfg), m, reporter, cfg.OnlyInteresting)
	listener := stream.NewListener(cfg, queue)

	go reporter.RunStats(ctx, cfg.UpdateInterval)
	pool.Start(ctx)

	// The listener returns when ctx is cancelled; closing the queue then
	// lets the workers drain and exit.
	listener.Run(ctx)
	close(queue)
	pool.Wait()

	if err := reporter.Close(); err != nil {
		log.Printf("close log: %v", err)
	}
	checked, found := reporter.Counts()
	log.Printf("done: %d candidates checked, %d buckets found", checked, found)
}
