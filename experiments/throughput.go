package experiments

import (
	"fmt"

	"damatronics/experiments/metrics"
	"damatronics/game"

	"github.com/rs/zerolog/log"
)

// RunThroughputExperiment compares stepping the drivers one after another
// with stepping each in its own goroutine over the same random games.
func RunThroughputExperiment(s Settings) error {
	configs := []metrics.MatchConfig{
		{ID: 1, Parallel: false, Capture: game.GlobalCapture, MaxTicks: s.MaxTicks},
		{ID: 2, Parallel: true, Capture: game.GlobalCapture, MaxTicks: s.MaxTicks},
	}

	records := []metrics.ThroughputRecord{}
	log.Info().Msg("starting throughput experiment...")

	for _, config := range configs {
		for i := 0; i < s.Games; i++ {
			// same seed per game index so both configs replay the same matches
			e, err := newEngine(config, s.Seed+uint64(i))
			if err != nil {
				return fmt.Errorf("config %d game %d: %w", config.ID, i+1, err)
			}
			agents := len(e.Agents())
			res, _, _, err := runGameOn(e, metrics.NewDummyCollector())
			if err != nil {
				return fmt.Errorf("config %d game %d: %w", config.ID, i+1, err)
			}
			secs := res.Elapsed.Seconds()
			if secs == 0 {
				secs = 1e-9
			}
			records = append(records, metrics.ThroughputRecord{
				Config:      config.ID,
				Agents:      agents,
				Ticks:       res.Ticks,
				Elapsed:     res.Elapsed,
				TicksPerSec: float64(res.Ticks) / secs,
				AgentSteps:  float64(res.Ticks*agents) / secs,
			})
			log.Info().Msgf("config %d game %d: %d ticks in %s, over %t", config.ID, i+1, res.Ticks, res.Elapsed, res.Over)
		}
	}

	log.Info().Msg("completed throughput experiment")

	writer, err := metrics.NewWriter(s.Root, "throughput")
	if err != nil {
		return fmt.Errorf("failed to create experiment writer: %w", err)
	}
	if err := writer.WriteMatchConfigs(configs); err != nil {
		return fmt.Errorf("failed to store match configs: %w", err)
	}
	if err := writer.WriteThroughput(records); err != nil {
		return fmt.Errorf("failed to write throughput records: %w", err)
	}
	log.Info().Str("dir", writer.Dir()).Msg("stored throughput records")
	return nil
}
