package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/memmaker/voxelsweep/engine/util"
	"github.com/memmaker/voxelsweep/game"
	"go.uber.org/zap"
	"golang.org/x/term"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfg := game.DefaultConfig()
	var configPath, categories string

	flag.StringVar(&configPath, "config", "", "YAML simulation config")
	flag.IntVar(&cfg.Ticks, "ticks", cfg.Ticks, "number of ticks to simulate")
	flag.Float64Var(&cfg.TickRate, "tick-rate", cfg.TickRate, "ticks per simulated second")
	flag.BoolVar(&cfg.Realtime, "realtime", cfg.Realtime, "pace ticks with the wall clock")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "bodies resolved in parallel, 0 = GOMAXPROCS")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.StringVar(&categories, "log-categories", strings.Join(cfg.LogCategories, ","), "comma separated: voxel,physics,system,io")
	flag.StringVar(&cfg.World.Generator, "generator", cfg.World.Generator, "world generator: flat, noise or construction")
	flag.StringVar(&cfg.World.Construction, "construction", cfg.World.Construction, "Amulet .construction file to load")
	flag.Int64Var(&cfg.World.Seed, "seed", cfg.World.Seed, "noise generator seed")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })
	if explicit["log-categories"] {
		cfg.LogCategories = strings.Split(categories, ",")
	}
	if explicit["construction"] && !explicit["generator"] {
		cfg.World.Generator = game.GeneratorConstruction
		explicit["generator"] = true
	}

	if configPath != "" {
		fromFile, err := game.LoadConfig(configPath)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			return 2
		}
		game.Merge(cfg, fromFile, explicit)
	}

	if err := setupLogging(cfg); err != nil {
		fmt.Fprintln(os.Stderr, err)
		return 2
	}
	defer util.Logger().Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	sim, err := game.NewSimulation(cfg)
	if err != nil {
		util.LogSystemError("cannot start simulation", zap.Error(err))
		return 1
	}
	stats, err := sim.Run(ctx, cfg.Ticks)
	if err != nil {
		util.LogSystemError("simulation aborted", zap.Error(err), zap.Uint64("ticks", stats.Ticks))
		return 1
	}
	for _, body := range sim.Bodies() {
		util.LogSystemInfo("body",
			zap.String("name", body.Name),
			zap.Stringer("aabb", body.AABB),
			zap.Bool("grounded", body.Grounded),
		)
	}
	return 0
}

func setupLogging(cfg *game.Config) error {
	level, err := util.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	categories, err := util.ParseLogCategories(cfg.LogCategories)
	if err != nil {
		return err
	}
	logger, err := util.NewLogger(cfg.LogLevel, term.IsTerminal(int(os.Stderr.Fd())))
	if err != nil {
		return err
	}
	util.GLOBAL_LOG_LEVEL = level
	util.GLOBAL_LOG_CATEGORIES = categories
	util.SetLogger(logger)
	return nil
}
