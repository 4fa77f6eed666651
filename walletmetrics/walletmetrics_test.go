package walletmetrics_test

import (
	"testing"
	"time"

	"github.com/cryptonote-go/cnwallet/consumer"
	"github.com/cryptonote-go/cnwallet/walletmetrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

// Compile-time assertion that *Metrics satisfies consumer.Collector.
var _ consumer.Collector = (*walletmetrics.Metrics)(nil)

func TestRegisterAndRecord(t *testing.T) {
	m := walletmetrics.New()
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))

	m.IncScanTransactions(3)
	m.IncScanMatchedOutputs("deadbeef", 2)
	m.IncDuplicateKeysRejected()
	m.ObserveBatchDuration(50 * time.Millisecond)
	m.SetWorkerPoolSize(4)

	families, err := registry.Gather()
	require.NoError(t, err)
	require.NotEmpty(t, families)
}

func TestRegisterTwiceFails(t *testing.T) {
	m := walletmetrics.New()
	registry := prometheus.NewRegistry()
	require.NoError(t, m.Register(registry))
	require.Error(t, m.Register(registry))
}
