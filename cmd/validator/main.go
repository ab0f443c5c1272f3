// Command validator runs one validator's finality-gadget participation
// and reward accounting, with a metrics endpoint (§6 CLI).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/erigontech/erigon-lib/log/v3"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/vipechan/ionova/emission"
	"github.com/vipechan/ionova/finality"
	"github.com/vipechan/ionova/metrics"
	"github.com/vipechan/ionova/nodeconfig"
	"github.com/vipechan/ionova/staking"
)

var (
	validatorID uint8
	metricsPort uint16
	configPath  string
)

var rootCmd = &cobra.Command{
	Use:   "validator",
	Short: "Run an ionova finality validator",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().Uint8Var(&validatorID, "id", 0, "this validator's numeric identity")
	rootCmd.Flags().Uint16Var(&metricsPort, "metrics-port", 0, "override the configured metrics port (0 keeps the config default)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML node config (falls back to defaults)")
}

const (
	viewTimeoutCheckInterval  = 500 * time.Millisecond
	rewardDistributionBlocks  = 100
	rewardDistributionTick    = 10 * time.Second
)

func run(ctx context.Context) error {
	cfg := nodeconfig.Default()
	if configPath != "" {
		loaded, err := nodeconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("validator: loading config: %w", err)
		}
		cfg = loaded
	}
	if metricsPort != 0 {
		cfg.Network.MetricsPort = metricsPort
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	selfID := fmt.Sprintf("v%d", validatorID)

	validators := finality.NewValidatorSet()
	validators.Add(selfID, finality.ValidatorInfo{Stake: 100, Active: true})
	gadget := finality.New(validators)

	schedule := emission.New(0)
	distributor := staking.New(schedule)
	distributor.AddValidator(staking.NewValidator(selfID, decimal.New(100, 0), decimal.NewFromFloat(0.1)))

	m := metrics.New()
	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Network.MetricsPort),
		Handler: m.Handler(),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- metricsSrv.ListenAndServe() }()

	go watchViewTimeouts(ctx, gadget)
	go distributeRewards(ctx, distributor, m, selfID)

	select {
	case <-ctx.Done():
		log.Info("validator: shutting down", "id", selfID)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			cancel()
			return err
		}
	}

	shutdownCtx := context.Background()
	_ = metricsSrv.Shutdown(shutdownCtx)
	return nil
}

func watchViewTimeouts(ctx context.Context, gadget *finality.Gadget) {
	ticker := time.NewTicker(viewTimeoutCheckInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			view := gadget.CurrentView()
			if gadget.CheckTimeout(view) {
				log.Warn("validator: view timed out, advancing", "view", view)
			}
		}
	}
}

func distributeRewards(ctx context.Context, distributor *staking.Distributor, m *metrics.Metrics, selfID string) {
	ticker := time.NewTicker(rewardDistributionTick)
	defer ticker.Stop()
	var height uint64
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			height += rewardDistributionBlocks
			dist := distributor.Distribute(height, []string{selfID})
			log.Info("validator: distributed rewards", "height", height,
				"total", dist.TotalReward.String(), "treasury", dist.TreasuryAmount.String())
		}
	}
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error("validator: fatal", "err", err)
		os.Exit(1)
	}
}
