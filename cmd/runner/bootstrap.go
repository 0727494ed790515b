package main

import (
	"fmt"

	"avellaneda-grid-go/config"
	"avellaneda-grid-go/infrastructure/logger"
)

// loadRuntime 读取配置并构建日志器
func loadRuntime(path string) (config.AppConfig, *logger.Logger, error) {
	cfg, err := config.LoadWithEnvOverrides(path)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}
	log, err := logger.New(cfg.Log)
	if err != nil {
		return cfg, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, log, nil
}
