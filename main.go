package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pkg/errors"

	"github.com/sheikhrachel/sparse-gol/model"
	"github.com/sheikhrachel/sparse-gol/utils"
)

func main() {
	var (
		configPath  = flag.String("config", "config.json", "path to the JSON configuration")
		pattern     = flag.String("pattern", "", "override the seed pattern (random, glider, blinker, block, rpentomino)")
		generations = flag.Int("generations", -1, "override max_generations")
		headless    = flag.Bool("headless", false, "do not draw the viewport")
	)
	flag.Parse()

	// Load configuration - fallback to defaults if file doesn't exist
	config, err := utils.LoadConfig(*configPath)
	if err != nil {
		fmt.Println("Using default configuration:", err)
		config = utils.DefaultConfig()
	}
	if *pattern != "" {
		config.Pattern = *pattern
	}
	if *generations >= 0 {
		config.MaxGenerations = *generations
	}
	if *headless {
		config.Render = false
	}

	logger := newLogger(config)

	// Handle Ctrl+C gracefully
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, config, logger); err != nil {
		logger.Error("simulation stopped", slog.String("error", fmt.Sprintf("%+v", err)))
		os.Exit(1)
	}
}

func run(ctx context.Context, config utils.Config, logger *slog.Logger) error {
	universe, rng, renderer, stats, err := initializeGame(config, logger)
	if err != nil {
		return err
	}
	displayGameInfo(config, universe)

	var (
		total         = 0
		stagnantCount = 0
		lastFrameTime = time.Now()
		vp            = viewport(config)
	)

	for {
		if ctx.Err() != nil {
			fmt.Println("\n🛑 Shutting down gracefully...")
			fmt.Printf("Final stats: %d generations in %.1f seconds\n",
				total, time.Since(stats.StartTime).Seconds())
			fmt.Printf("Average: %.1f gen/sec, %.1f avg population\n",
				stats.GenerationsPerSecond, stats.AveragePopulation)
			return nil
		}

		frameStart := time.Now()
		if config.Render {
			renderer.Clear()
		}

		livingCells, status, isStagnant := updateGameState(universe, lastFrameTime, stats)
		lastFrameTime = frameStart

		if isStagnant {
			stagnantCount++
		} else {
			stagnantCount = 0
		}

		if config.Render {
			displayGameStatus(universe, livingCells, status, stats, total)
			renderer.Display(universe, vp)
		}

		if config.MaxGenerations > 0 && total >= config.MaxGenerations {
			logger.Info("reached maximum generations",
				slog.Int("max_generations", config.MaxGenerations),
				slog.Int("living", livingCells),
				slog.Int("peak_materialized", stats.PeakMaterialized),
			)
			return nil
		}

		shouldRestart, restartReason := checkRestartConditions(livingCells, stagnantCount, universe.Generation(), config)
		if shouldRestart && config.AutoRestart {
			logger.Info("restarting", slog.String("reason", restartReason), slog.Int("generation", universe.Generation()))
			if err := restartGame(universe, rng, config, logger); err != nil {
				return err
			}
			stagnantCount = 0
		} else if stagnantCount >= 2 && stagnantCount < config.StagnationThreshold {
			// Inject some life to try to break the stagnation
			if err := injectRandomLife(universe, rng, config); err != nil {
				return err
			}
		}

		if err := universe.Tick(ctx); err != nil {
			if errors.Is(err, model.ErrAllocation) && config.AutoRestart {
				logger.Warn("cell limit reached", slog.String("error", err.Error()))
				if err := restartGame(universe, rng, config, logger); err != nil {
					return err
				}
				continue
			}
			if errors.Is(err, context.Canceled) {
				continue
			}
			return err
		}
		if config.Verify {
			if err := universe.Verify(); err != nil {
				return err
			}
		}
		total++

		if config.Render {
			time.Sleep(config.FrameRate)
		}
	}
}
