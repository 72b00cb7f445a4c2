// Command server runs the disaster-response patient transfer decision API.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/lorenz-liu/disaster-agent/internal/api"
	"github.com/lorenz-liu/disaster-agent/internal/config"
	"github.com/lorenz-liu/disaster-agent/internal/domain"
	"github.com/lorenz-liu/disaster-agent/internal/reasoning"
	"github.com/lorenz-liu/disaster-agent/internal/roster"
	"github.com/lorenz-liu/disaster-agent/internal/service"
	"github.com/lorenz-liu/disaster-agent/internal/solver"
)

func main() {
	logger := logrus.New()

	configManager, err := config.NewManager()
	if err != nil {
		logger.WithError(err).Fatal("Failed to load configuration")
	}
	if err := configManager.Validate(); err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}
	cfg := configManager.GetConfig()

	configureLogging(logger, cfg.Logging)

	rosterLoader, err := roster.NewLoader(logger, cfg.Roster.Path)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load facility roster")
	}

	// The reasoning collaborator is advisory; startup continues without it.
	var reasoner domain.ReasoningGenerator
	if gen, err := reasoning.NewGenerator(logger, cfg.Reasoning); err != nil {
		logger.WithError(err).Warn("Reasoning generator unavailable, decisions will carry templated reasoning")
	} else {
		reasoner = gen
	}

	backend := solver.NewBranchAndBound(logger)
	transfers := service.NewTransferService(logger, configManager.GetOptimizationConfig(), backend, reasoner)
	server := api.NewServer(logger, configManager, transfers, rosterLoader)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.WithFields(logrus.Fields{
		"host": cfg.Server.Host,
		"port": cfg.Server.Port,
	}).Info("Starting transfer decision server")

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server terminated")
	}
	logger.Info("Server stopped")
}

func configureLogging(logger *logrus.Logger, cfg domain.LoggingConfig) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
