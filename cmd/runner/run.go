package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"avellaneda-grid-go/internal/container"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Calibrate, then run the grid against the paper engine",
	RunE:  runGrid,
}

func runGrid(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime(cfgPath)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := container.New(cfgPath, cfg, log)
	if err != nil {
		log.Error("invalid runtime config", zap.Error(err))
		return err
	}
	if err := c.Build(ctx); err != nil {
		log.Error("build failed", zap.Error(err))
		return err
	}
	if err := c.Start(ctx); err != nil {
		log.Error("start failed", zap.Error(err))
		return err
	}

	if ok, err := daemon.SdNotify(false, daemon.SdNotifyReady); err != nil {
		log.Warn("sd_notify ready failed", zap.Error(err))
	} else if ok {
		log.Info("systemd notified ready")
	}

	var loopErr error
	select {
	case <-ctx.Done():
		log.Info("shutdown signal received")
	case <-c.Done():
		loopErr = c.Err()
		if loopErr == nil {
			loopErr = errors.New("exited without a stop request")
		}
		loopErr = fmt.Errorf("engine loop: %w", loopErr)
		log.Error("engine loop exited", zap.Error(loopErr))
	}
	_, _ = daemon.SdNotify(false, daemon.SdNotifyStopping)

	return errors.Join(loopErr, c.Stop())
}
