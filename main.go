package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"damatronics/bootstrap"
	"damatronics/communication/server"
	"damatronics/engine"
	"damatronics/experiments"
	"damatronics/game"
	"damatronics/player"
	"damatronics/world"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	mode := flag.String("mode", "selfplay", "serve, selfplay or experiment")
	cfgPath := flag.String("config", "", "Path to a config file (yaml, json or toml)")
	experiment := flag.String("experiment", "selfplay", "Experiment to run: selfplay or throughput")
	opponent := flag.Bool("opponent", false, "In serve mode, let a random player take the second team")
	pretty := flag.Bool("pretty", false, "Human readable logs")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := bootstrap.Setup(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	level, _ := cfg.Level()
	zerolog.SetGlobalLevel(level)
	if *pretty {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch *mode {
	case "serve":
		serve(ctx, cfg, *opponent)
	case "selfplay":
		selfPlay(ctx, cfg)
	case "experiment":
		runExperiment(cfg, *experiment)
	default:
		log.Fatal().Msgf("unknown mode %q", *mode)
	}
}

func newEngine(cfg *bootstrap.Config, opts ...engine.Option) *engine.Engine {
	master, _ := cfg.MasterConfig()
	opts = append([]engine.Option{
		engine.WithConfig(master),
		engine.WithTuning(cfg.Tuning),
		engine.WithStep(cfg.Tick),
		engine.WithMaxTicks(cfg.MaxTicks),
		engine.WithParallelAgents(cfg.Parallel),
		engine.WithWorld(world.New(
			world.WithKinematics(cfg.Tuning.WheelRadius, 0.1),
			world.WithNoise(cfg.Noise, cfg.Seed),
		)),
	}, opts...)
	e, err := engine.LocalEngine(game.NewStandardBoard(), opts...)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create engine")
	}
	return e
}

// serve runs a realtime match driven over HTTP.
func serve(ctx context.Context, cfg *bootstrap.Config, opponent bool) {
	opts := []engine.Option{engine.WithRealtime(true), engine.WithMaxTicks(0)}
	if opponent {
		opts = append(opts, engine.WithController(player.NewPlayer(game.Second, cfg.Seed)))
	}
	e := newEngine(cfg, opts...)
	srv := server.NewServer(e)

	go func() {
		res, err := e.Run(ctx)
		if err != nil {
			return
		}
		log.Info().Str("match", res.Match).Msgf("match over, %s wins; still serving state", res.Winner)
	}()
	if err := srv.ListenAndServe(ctx, cfg.HTTPAddr); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}

func selfPlay(ctx context.Context, cfg *bootstrap.Config) {
	e := newEngine(cfg,
		engine.WithRealtime(cfg.Realtime),
		engine.WithController(player.NewPlayer(game.First, cfg.Seed)),
		engine.WithController(player.NewPlayer(game.Second, cfg.Seed+1)),
	)
	res, err := e.Run(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("match interrupted")
	}
	if !res.Over {
		log.Info().Int("ticks", res.Ticks).Msg("no winner")
		return
	}
	log.Info().Int("ticks", res.Ticks).Int("turns", res.Turns).Msgf("winner: %s", res.Winner)
}

func runExperiment(cfg *bootstrap.Config, name string) {
	settings := experiments.Settings{Root: cfg.OutputDir, Games: cfg.Games, MaxTicks: cfg.MaxTicks, Seed: cfg.Seed}
	var err error
	switch name {
	case "selfplay":
		err = experiments.RunSelfPlay(settings)
	case "throughput":
		err = experiments.RunThroughputExperiment(settings)
	default:
		log.Fatal().Msgf("unknown experiment %q", name)
	}
	if err != nil {
		log.Fatal().Err(err).Msg("experiment failed")
	}
}
