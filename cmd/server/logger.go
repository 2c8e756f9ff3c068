package main

import (
	"github.com/septivank/campus-water-monitor/internal/config"
	"github.com/septivank/campus-water-monitor/internal/logging"
	"go.uber.org/zap"
)

func newLogger(cfg *config.Config) (*zap.Logger, error) {
	return logging.NewLogger(cfg.ServiceName)
}
