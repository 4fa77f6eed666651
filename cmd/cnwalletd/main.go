// Command cnwalletd is a minimal daemon wiring the consumer facade,
// logging, metrics, and a fake node together. It exists to give the module
// a runnable shape, in the teacher's cmd/dcrlncli idiom; a production
// binary would replace the fake node with a real daemon connection, which
// is out of scope here (see SPEC_FULL.md §1).
package main

import (
	"fmt"
	"net/http"
	"os"

	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/cnwlog"
	"github.com/cryptonote-go/cnwallet/consumer"
	"github.com/cryptonote-go/cnwallet/node"
	"github.com/cryptonote-go/cnwallet/txtypes"
	"github.com/cryptonote-go/cnwallet/walletmetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	logWriter := cnwlog.NewRotatingLogWriter()
	if err := logWriter.InitLogRotator(cfg.logFilePath(), defaultMaxLogRolls); err != nil {
		return fmt.Errorf("failed to init log rotator: %w", err)
	}
	defer logWriter.Close()
	cnwlog.SetupLoggers(logWriter)
	logWriter.SetLogLevels(cfg.LogLevel)

	metrics := walletmetrics.New()
	registry := prometheus.NewRegistry()
	if err := metrics.Register(registry); err != nil {
		return fmt.Errorf("failed to register metrics: %w", err)
	}

	viewSecret := cncrypto.Scalar(cfg.viewSecretBytes)
	n := node.NewFakeNode()

	c := consumer.NewConsumer(consumer.Config{Metrics: metrics}, n, viewSecret)
	if err := addConfiguredSubscriptions(c, cfg, viewSecret); err != nil {
		return err
	}

	cnwlog.Log.Infof("cnwalletd starting, %d watched spend key(s), metrics on %s",
		len(cfg.spendKeyBytes), cfg.MetricsAddr)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
	return http.ListenAndServe(cfg.MetricsAddr, mux)
}

// addConfiguredSubscriptions subscribes every spend key named on the
// command line. The spend secret key behind a bare public spend key is not
// available here, so these subscriptions can observe incoming
// transactions but key-image generation requires a wallet that also
// supplies the corresponding spend secret key (out of scope for this
// daemon's minimal CLI; see SPEC_FULL.md §4.15).
func addConfiguredSubscriptions(c *consumer.Consumer, cfg *config, viewSecret cncrypto.Scalar) error {
	for _, spendKeyBytes := range cfg.spendKeyBytes {
		keys := txtypes.AccountKeys{
			Address: txtypes.AccountPublicAddress{
				SpendPublicKey: cncrypto.PublicKey(spendKeyBytes),
			},
			ViewSecretKey: viewSecret,
		}
		if _, err := c.AddSubscription(txtypes.AccountSubscription{Keys: keys}); err != nil {
			return fmt.Errorf("failed to add subscription for spend key %s: %w",
				keys.Address.SpendPublicKey, err)
		}
	}
	return nil
}
