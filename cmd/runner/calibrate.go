package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"avellaneda-grid-go/internal/container"
	"avellaneda-grid-go/strategy/avellaneda"
)

var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Fetch candles, calibrate sigma/eta and print the result",
	Long: `Runs the parameter calibrator once and prints sigma and eta.
When paper.startPrice is set, a flat-inventory quote at that price is printed too.`,
	RunE: runCalibrate,
}

func runCalibrate(cmd *cobra.Command, _ []string) error {
	cfg, log, err := loadRuntime(cfgPath)
	if err != nil {
		return err
	}
	defer log.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cal := container.NewCalibrator(cfg, log, nil)
	res := cal.Calibrate(ctx, cfg.Symbol, cfg.Strategy.TakerFeeRate)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "pair:     %s\n", cal.CurrencyPair(cfg.Symbol))
	fmt.Fprintf(out, "candles:  %d\n", res.Candles)
	fmt.Fprintf(out, "sigma:    %.8f (defaulted=%v)\n", res.Sigma, res.SigmaDefaulted)
	fmt.Fprintf(out, "eta:      %.2f (defaulted=%v)\n", res.Eta, res.EtaDefaulted)

	if cfg.Paper.StartPrice <= 0 {
		return nil
	}
	params, err := res.Params(cfg.Strategy.Gamma, cfg.Strategy.TEnd)
	if err != nil {
		log.Error("invalid calibrated parameters", zap.Error(err))
		return err
	}
	quotes, err := avellaneda.NewQuoteEngine(params, cfg.Strategy.GridSpacing, log.Logger)
	if err != nil {
		return err
	}
	q := quotes.ComputeQuote(cfg.Paper.StartPrice, 0)
	fmt.Fprintf(out, "quote @ %.6f: reserve=%.6f bid=%.6f ask=%.6f delta=%.6f fallback=%v\n",
		cfg.Paper.StartPrice, q.ReservePrice, q.BestBid, q.BestAsk, q.Delta, q.Fallback)
	return nil
}
