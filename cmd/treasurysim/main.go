package main

import (
	"context"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/elys-network/treasury-sim/internal/config"
	"github.com/elys-network/treasury-sim/internal/logger"
	"github.com/elys-network/treasury-sim/internal/metrics"
	"github.com/elys-network/treasury-sim/internal/report"
	"github.com/elys-network/treasury-sim/internal/simulations"
	"github.com/elys-network/treasury-sim/internal/state"
	"github.com/elys-network/treasury-sim/internal/web"
)

// main is the entry point for the treasury simulator.
func main() {
	// --- 1. Initialization Phase ---
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("Warning: .env file not found. Relying on OS environment variables.")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var logOutput io.Writer = os.Stdout
	if cfg.LogFile != "" {
		file, err := logger.FileWriter(cfg.LogFile)
		if err != nil {
			log.Fatal().Err(err).Str("path", cfg.LogFile).Msg("Failed to open log file")
		}
		logOutput = io.MultiWriter(os.Stdout, file)
	}
	logger.InitializeWithWriter(logOutput, cfg.LogLevel, cfg.LogFormat == "json")
	log.Info().Str("mode", cfg.Mode).Msg("Treasury simulator starting...")

	scenario, err := config.LoadScenario(cfg.ScenarioPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load scenario")
	}
	if err := scenario.ApplyOverrides(cfg); err != nil {
		log.Fatal().Err(err).Msg("Invalid scenario after environment overrides")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- 2. Wiring ---
	store := state.NewStore()
	recorder := metrics.NewRecorder()

	sim, err := simulations.FromScenario(scenario, store, recorder)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create simulator")
	}
	store.Reset(sim.RunID())
	store.SaveParameters(scenario.Parameters)

	var serverDone chan error
	if cfg.Mode == config.ModeServe {
		webPort := strconv.Itoa(cfg.WebPort)
		webServer := web.NewWebServer(webPort, store, recorder.Handler())
		serverDone = make(chan error, 1)
		go func() {
			log.Info().Str("port", webPort).Str("url", "http://localhost:"+webPort).Msg("Starting simulation API")
			serverDone <- webServer.Start(ctx)
		}()
	}

	// --- 3. Run ---
	summary, err := sim.Run(ctx)
	if err != nil {
		log.Fatal().Err(err).Str("run_id", sim.RunID()).Msg("Simulation failed")
	}
	store.SaveRunSummary(summary)

	if cfg.Report {
		if err := report.WriteMonthlyTable(os.Stdout, store.GetAllMonths()); err != nil {
			log.Error().Err(err).Msg("Failed to render monthly report")
		}
		if err := report.WriteSummary(os.Stdout, summary); err != nil {
			log.Error().Err(err).Msg("Failed to render run summary")
		}
	}

	// --- 4. Serve results until interrupted ---
	if serverDone != nil {
		log.Info().Msg("Simulation finished, serving results until interrupted")
		if err := <-serverDone; err != nil {
			log.Fatal().Err(err).Msg("Web server failed")
		}
	}
	log.Info().Msg("Treasury simulator stopped")
}
