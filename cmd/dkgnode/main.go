// dkgnode runs one dealer node with an in-process coordinator contract. It
// wires the badger-backed contract state, the local contract client, the
// crypto suite, the agent keystore and the agent tick loop, and serves
// prometheus metrics.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/quorumsafe/dkg-coordinator/client/local"
	"github.com/quorumsafe/dkg-coordinator/contract"
	"github.com/quorumsafe/dkg-coordinator/crypto/beacon"
	"github.com/quorumsafe/dkg-coordinator/engine/agent"
	"github.com/quorumsafe/dkg-coordinator/model/dkg"
	"github.com/quorumsafe/dkg-coordinator/module/metrics"
	badgerstore "github.com/quorumsafe/dkg-coordinator/storage/badger"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dkgnode",
		Short: "threshold credential key generation node",
	}
	root.AddCommand(runCmd())
	return root
}

func runCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run the dealer agent against an in-process coordinator",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run()
		},
	}

	flags := cmd.Flags()
	flags.String("datadir", "data", "directory for contract state and keystore databases")
	flags.String("address", "", "dealer address this node acts as (required)")
	flags.String("announce", "", "endpoint announced to peers on registration")
	flags.Duration("tick-interval", time.Second, "agent tick interval")
	flags.String("metrics-addr", ":9090", "listen address of the prometheus endpoint")
	flags.Uint64("dealings", 1, "number of dealings each dealer commits per epoch")
	flags.Duration("registration-window", time.Hour, "duration of the registration phase")
	flags.Duration("dealing-window", time.Hour, "duration of the dealing exchange phase")
	flags.Duration("complaint-window", 30*time.Minute, "duration of the complaint submission phase")
	flags.Duration("complaint-voting-window", 30*time.Minute, "duration of the complaint voting phase")
	flags.Duration("share-window", time.Hour, "duration of the verification key submission phase")
	flags.Duration("mismatch-window", 30*time.Minute, "duration of the mismatch submission phase")
	flags.Duration("mismatch-voting-window", 30*time.Minute, "duration of the mismatch voting phase")

	bindFlags(flags)
	return cmd
}

func bindFlags(flags *pflag.FlagSet) {
	viper.SetEnvPrefix("DKGNODE")
	viper.AutomaticEnv()
	flags.VisitAll(func(flag *pflag.Flag) {
		if err := viper.BindPFlag(flag.Name, flags.Lookup(flag.Name)); err != nil {
			panic(err)
		}
	})
}

func run() error {

	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger()

	address := dkg.Address(viper.GetString("address"))
	if address == "" {
		return fmt.Errorf("--address is required")
	}
	datadir := viper.GetString("datadir")

	contractDB, err := openDB(filepath.Join(datadir, "contract"), log)
	if err != nil {
		return fmt.Errorf("could not open contract database: %w", err)
	}
	defer contractDB.Close()

	keystoreDB, err := openDB(filepath.Join(datadir, "keystore"), log)
	if err != nil {
		return fmt.Errorf("could not open keystore database: %w", err)
	}
	defer keystoreDB.Close()

	registry := prometheus.NewRegistry()
	coordinatorMetrics := metrics.NewCoordinatorCollector(registry)
	agentMetrics := metrics.NewAgentCollector(registry)

	suite := beacon.NewSuite()
	clk := clock.New()

	coordinator, err := contract.New(log, contractDB, clk, suite, coordinatorMetrics, contract.Config{
		DealingsPerDealer: viper.GetUint64("dealings"),
		PhaseDurations: map[dkg.EpochState]time.Duration{
			dkg.PublicKeySubmission:               viper.GetDuration("registration-window"),
			dkg.DealingExchange:                   viper.GetDuration("dealing-window"),
			dkg.ComplaintSubmission:               viper.GetDuration("complaint-window"),
			dkg.ComplaintVoting:                   viper.GetDuration("complaint-voting-window"),
			dkg.VerificationKeySubmission:         viper.GetDuration("share-window"),
			dkg.VerificationKeyMismatchSubmission: viper.GetDuration("mismatch-window"),
			dkg.VerificationKeyMismatchVoting:     viper.GetDuration("mismatch-voting-window"),
		},
	})
	if err != nil {
		return fmt.Errorf("could not create contract: %w", err)
	}

	node := agent.New(
		log,
		local.New(coordinator, address),
		suite,
		badgerstore.NewKeystore(keystoreDB),
		agentMetrics,
		clk,
		agent.Config{
			Address:         address,
			AnnounceAddress: viper.GetString("announce"),
			TickInterval:    viper.GetDuration("tick-interval"),
		},
	)

	metricsSrv := &http.Server{
		Addr:    viper.GetString("metrics-addr"),
		Handler: promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}
	go func() {
		err := metricsSrv.ListenAndServe()
		if err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("metrics server failed")
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	err = node.Run(ctx)

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	_ = metricsSrv.Shutdown(shutdownCtx)

	return err
}

func openDB(dir string, log zerolog.Logger) (*badger.DB, error) {
	err := os.MkdirAll(dir, 0700)
	if err != nil {
		return nil, err
	}
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	log.Info().Str("dir", dir).Msg("database opened")
	return db, nil
}
