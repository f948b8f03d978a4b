package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"time"

	"github.com/contactkeval/option-greeks/internal/api"
	"github.com/contactkeval/option-greeks/internal/config"
	"github.com/contactkeval/option-greeks/internal/data"
	"github.com/contactkeval/option-greeks/internal/logger"
)

func main() {
	configPath := flag.String("config", "", "path to JSON config, defaults are used when empty")
	mode := flag.String("mode", "", "override the config mode: price|smile|hedge|montecarlo|validate")
	rest := flag.Bool("rest", false, "run as REST server")
	port := flag.String("port", ":8080", "REST server listen address")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}
	if *mode != "" {
		cfg.Mode = config.Mode(*mode)
		if err := cfg.Validate(); err != nil {
			log.Fatalf("invalid config: %v", err)
		}
	}
	logger.SetVerbosity(cfg.Verbosity)
	defer logger.Flush()

	prov := data.NewProviderChain(cfg.DataDir, cfg.MassiveAPIKey, cfg.Market)
	logger.Infof("market data: %s", data.Describe(prov))

	if *rest {
		if err := api.NewServer(prov, cfg.Solver).Start(*port); err != nil {
			logger.Errorf("REST server stopped: %v", err)
			logger.Flush()
			os.Exit(1)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	r := &runner{cfg: cfg, prov: prov, out: os.Stdout, progress: os.Stderr}
	if err := r.run(ctx); err != nil {
		logger.Errorf("%s failed: %v", cfg.Mode, err)
		logger.Flush()
		os.Exit(1)
	}
	logger.Infof("[done] %s finished in %v, reports in %s", cfg.Mode, time.Since(start), cfg.ReportDir)
}
