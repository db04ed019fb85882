package experiments

import (
	"context"
	"fmt"

	"damatronics/engine"
	"damatronics/experiments/metrics"
	"damatronics/game"
	"damatronics/gamemaster"
	"damatronics/player"
	"damatronics/world"

	"github.com/rs/zerolog/log"
)

type Settings struct {
	// Root directory for the CSV output.
	Root     string
	Games    int
	MaxTicks int
	Seed     uint64
}

var selfPlayConfigs = []metrics.MatchConfig{
	{ID: 1, Capture: game.GlobalCapture},
	{ID: 2, Capture: game.ComboCapture},
	{ID: 3, Capture: game.GlobalCapture, Noise: 0.05},
	{ID: 4, Capture: game.GlobalCapture, Noise: 0.15},
}

// RunSelfPlay plays random against random under every capture policy and
// wheel noise level, and records how long moves take to settle.
func RunSelfPlay(s Settings) error {
	configs := make([]metrics.MatchConfig, len(selfPlayConfigs))
	for i, c := range selfPlayConfigs {
		c.MaxTicks = s.MaxTicks
		configs[i] = c
	}
	return runExperiment("self_play", s, configs)
}

func runExperiment(name string, s Settings, configs []metrics.MatchConfig) error {
	count := 0
	gameRecords := []metrics.GameRecord{}
	moveRecords := []metrics.MoveRecord{}

	log.Info().Msgf("starting %s experiment...", name)

	for ci, config := range configs {
		log.Info().Msgf("starting config %d of %d: %+v", ci+1, len(configs), config)

		for i := 0; i < s.Games; i++ {
			count++
			res, gameMetric, moveMetrics, err := runGame(config, s.Seed+uint64(count), metrics.NewCollector())
			if err != nil {
				return fmt.Errorf("config %d game %d: %w", config.ID, i+1, err)
			}
			gameRecords = append(gameRecords, metrics.GameRecord{
				ID:         count,
				Config:     config.ID,
				Match:      res.Match,
				GameMetric: gameMetric,
			})
			for _, mm := range moveMetrics {
				moveRecords = append(moveRecords, metrics.MoveRecord{Game: count, MoveMetric: mm})
			}

			log.Info().Msgf("completed config %d game %d of %d with winner: %s", config.ID, i+1, s.Games, gameMetric.Winner)
		}
	}

	log.Info().Msgf("completed %s experiment", name)

	writer, err := metrics.NewWriter(s.Root, name)
	if err != nil {
		return fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteMatchConfigs(configs); err != nil {
		return fmt.Errorf("failed to store match configs: %w", err)
	}
	if err := writer.WriteGameRecords(gameRecords); err != nil {
		return fmt.Errorf("failed to write game records: %w", err)
	}
	if err := writer.WriteMoveRecords(moveRecords); err != nil {
		return fmt.Errorf("failed to write move records: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored experiment records")
	return nil
}

func newEngine(config metrics.MatchConfig, seed uint64) (*engine.Engine, error) {
	rules := game.NewStandardRules()
	rules.Capture = config.Capture
	gmConfig := gamemaster.DefaultConfig()
	gmConfig.Rules = rules

	opts := []engine.Option{
		engine.WithConfig(gmConfig),
		engine.WithParallelAgents(config.Parallel),
		engine.WithMaxTicks(config.MaxTicks),
		engine.WithController(player.NewPlayer(game.First, seed)),
		engine.WithController(player.NewPlayer(game.Second, seed+1)),
	}
	if config.Noise > 0 {
		opts = append(opts, engine.WithWorld(world.New(world.WithNoise(config.Noise, seed))))
	}
	return engine.LocalEngine(game.NewStandardBoard(), opts...)
}

// runGame plays one match and returns its result with the collected metrics.
func runGame(config metrics.MatchConfig, seed uint64, collector metrics.Collector) (engine.Result, metrics.GameMetric, []metrics.MoveMetric, error) {
	e, err := newEngine(config, seed)
	if err != nil {
		return engine.Result{}, metrics.GameMetric{}, nil, err
	}
	return runGameOn(e, collector)
}

func runGameOn(e *engine.Engine, collector metrics.Collector) (engine.Result, metrics.GameMetric, []metrics.MoveMetric, error) {
	e.Subscribe(collector.Observe)
	collector.Start(e.Master.State().Turn)

	res, err := e.Run(context.Background())
	if err != nil {
		return res, metrics.GameMetric{}, nil, err
	}
	winner := "none"
	if res.Over {
		winner = res.Winner.String()
	}
	gameMetric, moveMetrics := collector.Complete(winner, res.Ticks)
	return res, gameMetric, moveMetrics, nil
}
