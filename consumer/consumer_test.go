package consumer_test

import (
	"context"
	"crypto/rand"
	"runtime"
	"testing"

	"filippo.io/edwards25519"
	"github.com/cryptonote-go/cnwallet/cncrypto"
	"github.com/cryptonote-go/cnwallet/consumer"
	"github.com/cryptonote-go/cnwallet/node"
	"github.com/cryptonote-go/cnwallet/subscription"
	"github.com/cryptonote-go/cnwallet/txtypes"
	"github.com/stretchr/testify/require"
)

type fakeOutput struct {
	outType  txtypes.OutputType
	key      txtypes.KeyOutput
	multisig txtypes.MultisignatureOutput
	amount   uint64
}

type fakeTx struct {
	hash    txtypes.Hash
	txPub   cncrypto.PublicKey
	outputs []fakeOutput
}

func (f *fakeTx) TransactionPublicKey() cncrypto.PublicKey { return f.txPub }
func (f *fakeTx) TransactionHash() txtypes.Hash             { return f.hash }
func (f *fakeTx) OutputCount() int                          { return len(f.outputs) }
func (f *fakeTx) OutputType(i int) txtypes.OutputType        { return f.outputs[i].outType }
func (f *fakeTx) GetKeyOutput(i int) (txtypes.KeyOutput, uint64) {
	return f.outputs[i].key, f.outputs[i].amount
}
func (f *fakeTx) GetMultisigOutput(i int) (txtypes.MultisignatureOutput, uint64) {
	return f.outputs[i].multisig, f.outputs[i].amount
}

func randomScalar(t *testing.T) cncrypto.Scalar {
	t.Helper()
	var seed [64]byte
	_, err := rand.Read(seed[:])
	require.NoError(t, err)
	s, err := new(edwards25519.Scalar).SetUniformBytes(seed[:])
	require.NoError(t, err)
	var out cncrypto.Scalar
	copy(out[:], s.Bytes())
	return out
}

func newAccount(t *testing.T) txtypes.AccountKeys {
	t.Helper()
	spendSecret := randomScalar(t)
	viewSecret := randomScalar(t)
	spendPub, err := cncrypto.ScalarBasePoint(spendSecret)
	require.NoError(t, err)
	viewPub, err := cncrypto.ScalarBasePoint(viewSecret)
	require.NoError(t, err)

	return txtypes.AccountKeys{
		Address: txtypes.AccountPublicAddress{
			SpendPublicKey: spendPub,
			ViewPublicKey:  viewPub,
		},
		SpendSecretKey: spendSecret,
		ViewSecretKey:  viewSecret,
	}
}

func buildTxTo(t *testing.T, hashByte byte, viewPub, spendPub cncrypto.PublicKey, outIdx int) *fakeTx {
	t.Helper()

	txSecret := randomScalar(t)
	txPub, err := cncrypto.ScalarBasePoint(txSecret)
	require.NoError(t, err)

	d, err := cncrypto.DeriveKey(viewPub, txSecret)
	require.NoError(t, err)
	outKey, err := cncrypto.DerivePublicKey(d, uint64(outIdx), spendPub)
	require.NoError(t, err)

	tx := &fakeTx{txPub: txPub}
	tx.hash[0] = hashByte
	outputs := make([]fakeOutput, outIdx+1)
	for i := range outputs {
		outputs[i].outType = txtypes.OutputTypeOther
	}
	outputs[outIdx] = fakeOutput{
		outType: txtypes.OutputTypeKey,
		key:     txtypes.KeyOutput{Key: outKey},
		amount:  1000,
	}
	tx.outputs = outputs
	return tx
}

// buildMultisigTxTo constructs a transaction whose output at outIdx is a
// multisignature output addressed to spendPub, with a sub-key derived at the
// output's index rather than the running key index -- see
// scan.buildMultisigTx for why that distinction matters.
func buildMultisigTxTo(t *testing.T, hashByte byte, viewPub, spendPub cncrypto.PublicKey, outIdx int) *fakeTx {
	t.Helper()

	txSecret := randomScalar(t)
	txPub, err := cncrypto.ScalarBasePoint(txSecret)
	require.NoError(t, err)

	d, err := cncrypto.DeriveKey(viewPub, txSecret)
	require.NoError(t, err)
	subKey, err := cncrypto.DerivePublicKey(d, uint64(outIdx), spendPub)
	require.NoError(t, err)

	otherSigner := newAccount(t)

	tx := &fakeTx{txPub: txPub}
	tx.hash[0] = hashByte
	outputs := make([]fakeOutput, outIdx+1)
	for i := range outputs {
		outputs[i].outType = txtypes.OutputTypeOther
	}
	outputs[outIdx] = fakeOutput{
		outType: txtypes.OutputTypeMultisignature,
		multisig: txtypes.MultisignatureOutput{
			Keys:               []cncrypto.PublicKey{otherSigner.Address.SpendPublicKey, subKey},
			RequiredSignatures: 2,
		},
		amount: 5000,
	}
	tx.outputs = outputs
	return tx
}

func TestAddSubscriptionIdempotentAndMismatch(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)

	sub1, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	sub2, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)
	require.Same(t, sub1, sub2)

	other := newAccount(t)
	_, err = c.AddSubscription(txtypes.AccountSubscription{Keys: other})
	require.ErrorIs(t, err, consumer.ErrViewSecretMismatch)
}

func TestOnNewBlocksAppliesAndAdvancesHeight(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)

	sub, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	tx := buildTxTo(t, 1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 0)
	n.SetGlobalIndices(tx.hash, []uint32{7})

	blocks := []txtypes.CompleteBlock{
		{Transactions: []txtypes.TransactionReader{tx}},
	}

	ok, err := c.OnNewBlocks(context.Background(), blocks, 100)
	require.NoError(t, err)
	require.True(t, ok)

	details, found := sub.GetContainer().GetTransactionInformation(tx.hash)
	require.True(t, found)
	require.Equal(t, uint64(100), details.BlockInfo.Height)
	require.Equal(t, uint32(7), details.Transfer.GlobalOutputIndex)
	require.EqualValues(t, 100, sub.(*subscription.MemorySubscription).Height())
}

func TestOnNewBlocksDeterministicAcrossWorkerCounts(t *testing.T) {
	a := newAccount(t)

	run := func(workers int) []txtypes.Hash {
		prev := runtime.GOMAXPROCS(workers)
		defer runtime.GOMAXPROCS(prev)

		n := node.NewFakeNode()
		c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)
		_, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
		require.NoError(t, err)

		obs := &recordingObserver{}
		c.Subscribe(obs)

		var order []txtypes.Hash
		var txs []txtypes.TransactionReader
		for i := byte(0); i < 8; i++ {
			tx := buildTxTo(t, i+1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 0)
			n.SetGlobalIndices(tx.hash, []uint32{uint32(i)})
			txs = append(txs, tx)
			order = append(order, tx.hash)
		}

		blocks := []txtypes.CompleteBlock{{Transactions: txs}}
		ok, err := c.OnNewBlocks(context.Background(), blocks, 50)
		require.NoError(t, err)
		require.True(t, ok)

		// Applied order is (height, txIndex), i.e. block order here.
		require.Equal(t, order, obs.txnsUpdated)
		return obs.txnsUpdated
	}

	want := run(1)
	got := run(4)
	require.Equal(t, want, got)
}

func TestPoolToChainTransitionViaOnPoolUpdatedThenOnNewBlocks(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)

	sub, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	tx := buildTxTo(t, 1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 0)

	err = c.OnPoolUpdated(context.Background(), []txtypes.TransactionReader{tx}, nil)
	require.NoError(t, err)

	details, found := sub.GetContainer().GetTransactionInformation(tx.hash)
	require.True(t, found)
	require.True(t, details.BlockInfo.Unconfirmed())
	require.Contains(t, c.GetKnownPoolTxIDs(), tx.hash)

	n.SetGlobalIndices(tx.hash, []uint32{3})
	blocks := []txtypes.CompleteBlock{{Transactions: []txtypes.TransactionReader{tx}}}
	ok, err := c.OnNewBlocks(context.Background(), blocks, 200)
	require.NoError(t, err)
	require.True(t, ok)

	details, found = sub.GetContainer().GetTransactionInformation(tx.hash)
	require.True(t, found)
	require.False(t, details.BlockInfo.Unconfirmed())
	require.Equal(t, uint64(200), details.BlockInfo.Height)
}

func TestRemoveUnconfirmedTransaction(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)

	sub, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	tx := buildTxTo(t, 1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 0)
	require.NoError(t, c.AddUnconfirmedTransaction(context.Background(), tx))
	require.Contains(t, c.GetKnownPoolTxIDs(), tx.hash)

	c.RemoveUnconfirmedTransaction(tx.hash)
	require.NotContains(t, c.GetKnownPoolTxIDs(), tx.hash)

	_, found := sub.GetContainer().GetTransactionInformation(tx.hash)
	require.False(t, found)
}

func TestOnNewBlocksAppliesMultisigOutput(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)

	sub, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	tx := buildMultisigTxTo(t, 1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 2)
	n.SetGlobalIndices(tx.hash, []uint32{0, 0, 9})

	blocks := []txtypes.CompleteBlock{
		{Transactions: []txtypes.TransactionReader{tx}},
	}

	ok, err := c.OnNewBlocks(context.Background(), blocks, 100)
	require.NoError(t, err)
	require.True(t, ok)

	details, found := sub.GetContainer().GetTransactionInformation(tx.hash)
	require.True(t, found)
	require.Equal(t, txtypes.OutputTypeMultisignature, details.Transfer.Type)
	require.Equal(t, uint64(5000), details.Transfer.Amount)
	require.Equal(t, uint32(2), details.Transfer.RequiredSignatures)
	require.Equal(t, uint32(9), details.Transfer.GlobalOutputIndex)
	require.Equal(t, cncrypto.PublicKey{}, details.Transfer.OutputKey)
	require.Equal(t, cncrypto.KeyImage{}, details.Transfer.KeyImage)
}

type recordingObserver struct {
	blocksAdded  [][]txtypes.Hash
	txnsUpdated  []txtypes.Hash
}

func (r *recordingObserver) OnBlocksAdded(hashes []txtypes.Hash) {
	r.blocksAdded = append(r.blocksAdded, hashes)
}
func (r *recordingObserver) OnBlockchainDetach(height uint64) {}
func (r *recordingObserver) OnTransactionUpdated(txHash txtypes.Hash, spendKeys []cncrypto.PublicKey) {
	r.txnsUpdated = append(r.txnsUpdated, txHash)
}
func (r *recordingObserver) OnTransactionDeleteBegin(txHash txtypes.Hash) {}
func (r *recordingObserver) OnTransactionDeleteEnd(txHash txtypes.Hash)   {}

func TestObserverNotifiedOnNewBlocks(t *testing.T) {
	a := newAccount(t)
	n := node.NewFakeNode()
	c := consumer.NewConsumer(consumer.Config{}, n, a.ViewSecretKey)
	_, err := c.AddSubscription(txtypes.AccountSubscription{Keys: a})
	require.NoError(t, err)

	obs := &recordingObserver{}
	c.Subscribe(obs)

	tx := buildTxTo(t, 1, a.Address.ViewPublicKey, a.Address.SpendPublicKey, 0)
	n.SetGlobalIndices(tx.hash, []uint32{1})

	blocks := []txtypes.CompleteBlock{{Transactions: []txtypes.TransactionReader{tx}}}
	ok, err := c.OnNewBlocks(context.Background(), blocks, 10)
	require.NoError(t, err)
	require.True(t, ok)

	require.Len(t, obs.blocksAdded, 1)
	require.Equal(t, []txtypes.Hash{tx.hash}, obs.blocksAdded[0])
	require.Equal(t, []txtypes.Hash{tx.hash}, obs.txnsUpdated)
}
