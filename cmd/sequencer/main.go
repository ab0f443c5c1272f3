// Command sequencer runs one shard's mempool, security validator,
// sequencer loop, JSON-RPC server, and metrics endpoint (§6 CLI).
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	log "github.com/erigontech/erigon-lib/log/v3"
	"github.com/spf13/cobra"

	"github.com/vipechan/ionova/mempool"
	"github.com/vipechan/ionova/metrics"
	"github.com/vipechan/ionova/nodeconfig"
	"github.com/vipechan/ionova/p2pmsg"
	"github.com/vipechan/ionova/rpcapi"
	"github.com/vipechan/ionova/security"
	"github.com/vipechan/ionova/sequencer"
	"github.com/vipechan/ionova/txn"
)

var (
	shardID     uint8
	metricsPort uint16
	configPath  string
)

var rootCmd = &cobra.Command{
	Use:   "sequencer",
	Short: "Run an ionova shard sequencer",
	RunE: func(cmd *cobra.Command, args []string) error {
		return run(cmd.Context())
	},
}

func init() {
	rootCmd.Flags().Uint8Var(&shardID, "shard-id", 0, "shard this sequencer serves")
	rootCmd.Flags().Uint16Var(&metricsPort, "metrics-port", 0, "override the configured metrics port (0 keeps the config default)")
	rootCmd.Flags().StringVar(&configPath, "config", "", "path to a TOML node config (falls back to defaults)")
}

// gossipSubmitter logs the batch commitment as a NewBlock envelope in
// place of a gossip broadcast, since transport is out of scope here.
type gossipSubmitter struct {
	shardID uint8
	metrics *metrics.Metrics
}

func (g gossipSubmitter) SubmitBatch(ctx context.Context, b sequencer.BatchCommitment) error {
	env := p2pmsg.NewNewBlockEnvelope(p2pmsg.NewBlock{
		BlockHash: b.StateRoot,
	})
	data, err := env.Marshal()
	if err != nil {
		return fmt.Errorf("sequencer: encoding batch envelope: %w", err)
	}
	log.Info("sequencer: broadcasting batch commitment", "shardID", g.shardID,
		"batchSequence", b.BatchSequence, "txCount", b.TransactionCount, "envelopeBytes", len(data))
	g.metrics.BatchCommitmentsTotal.WithLabelValues(fmt.Sprint(g.shardID)).Inc()
	return nil
}

func run(ctx context.Context) error {
	cfg := nodeconfig.Default()
	if configPath != "" {
		loaded, err := nodeconfig.Load(configPath)
		if err != nil {
			return fmt.Errorf("sequencer: loading config: %w", err)
		}
		cfg = loaded
	}
	if metricsPort != 0 {
		cfg.Network.MetricsPort = metricsPort
	}

	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	secValidator := security.New(security.DefaultConfig())
	pool := mempool.New(mempool.DefaultConfig(), secValidator)
	m := metrics.New()

	intake := make(chan txn.Transaction)
	defer close(intake)

	submitter := gossipSubmitter{shardID: shardID, metrics: m}
	seq := sequencer.New(sequencer.DefaultConfig(shardID), pool, submitter, intake)

	account := rpcapi.NewAccountView()
	rpcServer := rpcapi.New(shardID, pool, account)

	metricsSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Network.MetricsPort),
		Handler: m.Handler(),
	}
	rpcSrv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Network.RPCPort),
		Handler: rpcServer.Router(),
	}

	errCh := make(chan error, 3)
	go func() { errCh <- metricsSrv.ListenAndServe() }()
	go func() { errCh <- rpcSrv.ListenAndServe() }()
	go func() { errCh <- seq.Run(ctx) }()

	select {
	case <-ctx.Done():
		log.Info("sequencer: shutting down", "shardID", shardID)
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			cancel()
			return err
		}
	}

	shutdownCtx := context.Background()
	_ = metricsSrv.Shutdown(shutdownCtx)
	_ = rpcSrv.Shutdown(shutdownCtx)
	return nil
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		log.Error("sequencer: fatal", "err", err)
		os.Exit(1)
	}
}
