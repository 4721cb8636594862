package main

import (
	"fmt"
	"log/slog"
	"math/rand"
	"os"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/sparse-gol/model"
	"github.com/sheikhrachel/sparse-gol/utils"
)

// newLogger builds the text logger used by the driver and the engine
func newLogger(config utils.Config) *slog.Logger {
	level, err := utils.ParseLogLevel(config.LogLevel)
	if err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// initializeGame sets up the initial game state
func initializeGame(config utils.Config, logger *slog.Logger) (
	*model.Universe,
	*rand.Rand,
	*model.TerminalRenderer,
	*utils.Stats,
	error,
) {
	seed := config.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))

	universe := model.NewUniverse(model.Options{
		RetentionThreshold: config.RetentionThreshold,
		Workers:            config.Workers,
		MaxCells:           config.MaxCells,
		Logger:             logger,
	})
	if err := seedUniverse(universe, rng, config); err != nil {
		return nil, nil, nil, nil, err
	}

	renderer := &model.TerminalRenderer{}
	stats := utils.NewStats()

	logger.Info("universe seeded",
		slog.String("pattern", config.Pattern),
		slog.Int64("seed", seed),
		slog.Int("living", universe.Census()),
	)
	return universe, rng, renderer, stats, nil
}

// seedUniverse places the configured pattern at the viewport center, or a
// random soup filling the viewport
func seedUniverse(universe *model.Universe, rng *rand.Rand, config utils.Config) error {
	cx := config.OriginX + int32(config.Width/2)
	cy := config.OriginY + int32(config.Height/2)

	if config.Pattern == "" || config.Pattern == "random" {
		// a few gliders and blinkers under the soup, like the classic demo
		if config.Width >= 10 && config.Height >= 10 {
			if err := universe.Seed(model.Glider, config.OriginX+5, config.OriginY+5); err != nil {
				return err
			}
			if err := universe.Seed(model.Blinker, cx, cy); err != nil {
				return err
			}
		}
		return universe.Randomize(rng, config.OriginX, config.OriginY, config.Width, config.Height, config.RandomDensity)
	}

	pattern, ok := model.Patterns[config.Pattern]
	if !ok {
		return errors.Errorf("[seedUniverse] unknown pattern %q, want random or one of %v", config.Pattern, model.PatternNames())
	}
	return universe.Seed(pattern, cx, cy)
}

// viewport returns the drawn window of the lattice
func viewport(config utils.Config) model.Viewport {
	return model.Viewport{
		X:      config.OriginX,
		Y:      config.OriginY,
		Width:  config.Width,
		Height: config.Height,
	}
}

// displayGameInfo shows the initial game information
func displayGameInfo(config utils.Config, universe *model.Universe) {
	fmt.Printf("Features: Retention: %d ticks, Workers: %d, Max cells: %d\n",
		config.RetentionThreshold, config.Workers, config.MaxCells)
	fmt.Printf("Viewport: %dx%d at (%d,%d) | Initial living cells: %d\n",
		config.Width, config.Height, config.OriginX, config.OriginY, universe.Census())
	fmt.Println("Press Ctrl+C to exit gracefully")
	fmt.Println()
	if config.Render {
		time.Sleep(2 * time.Second)
	}
}

// updateGameState updates the game state and returns status information
func updateGameState(
	universe *model.Universe,
	lastFrameTime time.Time,
	stats *utils.Stats,
) (int, string, bool) {
	livingCells := universe.Census()

	// Update performance stats
	frameDuration := time.Since(lastFrameTime)
	stats.Update(universe.Generation(), livingCells, frameDuration)
	last := universe.LastTick()
	stats.Track(universe.Materialized(), last.Collected)

	// Check for stagnation before recording the current state
	isStagnant := universe.IsStagnant()
	universe.UpdateHistory()

	status := "Active"
	if isStagnant {
		status = "Stagnant"
	}
	if livingCells == 0 {
		status = "Extinct"
	}

	return livingCells, status, isStagnant
}

// displayGameStatus shows the current game status
func displayGameStatus(
	universe *model.Universe,
	livingCells int,
	status string,
	stats *utils.Stats,
	totalGenerations int,
) {
	generation := universe.Generation()

	boundingInfo := ""
	if minX, minY, maxX, maxY, ok := universe.Bounds(); ok {
		boundingInfo = fmt.Sprintf(" | Bounds: (%d,%d)-(%d,%d)", minX, minY, maxX, maxY)
	}

	fmt.Printf("Gen: %d | Living: %d | Materialized: %d | Status: %s%s\n",
		generation, livingCells, stats.Materialized, status, boundingInfo)
	fmt.Printf("Performance: %.1f gen/sec | Avg Pop: %.1f | Peak cells: %d | Collected: %d | Runtime: %.1fs\n",
		stats.GenerationsPerSecond, stats.AveragePopulation, stats.PeakMaterialized, stats.Collected,
		time.Since(stats.StartTime).Seconds())

	// Generation restarts from zero on every restart
	if totalGenerations > generation {
		fmt.Printf("Generations across restarts: %d\n", totalGenerations)
	}
	fmt.Println()
}

// checkRestartConditions determines if the game should restart
func checkRestartConditions(
	livingCells, stagnantCount, generation int,
	config utils.Config,
) (bool, string) {
	if livingCells == 0 {
		return true, "extinction"
	}
	if stagnantCount >= config.StagnationThreshold {
		return true, "stagnation detected"
	}
	if generation > 0 && generation%200 == 0 {
		return true, "periodic refresh"
	}
	return false, ""
}

// injectRandomLife adds a few random cells inside the viewport to break stagnation
func injectRandomLife(universe *model.Universe, rng *rand.Rand, config utils.Config) error {
	for range config.InjectionCount {
		x := config.OriginX + int32(rng.Intn(config.Width))
		y := config.OriginY + int32(rng.Intn(config.Height))
		if universe.Alive(x, y) {
			continue
		}
		if err := universe.Activate(x, y); err != nil {
			return errors.Wrapf(err, "[injectRandomLife] activating (%d,%d)", x, y)
		}
	}
	return nil
}

// restartGame clears the universe and seeds it again
func restartGame(universe *model.Universe, rng *rand.Rand, config utils.Config, logger *slog.Logger) error {
	universe.Reset()
	if err := seedUniverse(universe, rng, config); err != nil {
		return err
	}
	logger.Info("new patterns loaded", slog.Int("living", universe.Census()))
	return nil
}
