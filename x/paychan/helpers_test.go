package paychan

import (
	"context"
	"testing"
	"time"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/crypto"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/store"
	"github.com/iov-one/microchan/weavetest"
	"github.com/iov-one/microchan/x/cash"
	"github.com/iov-one/microchan/x/sigs"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tendermint/tendermint/libs/log"
)

const testChainID = "test-chain-1"

var testStart = microchan.AsUnixTime(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC))

// fixture is a controller over an in-memory store with three registered
// keys and a funded payer.
type fixture struct {
	ctrl   *Controller
	db     microchan.CacheableKVStore
	clock  *weavetest.Clock
	ledger cash.BaseController
	escrow cash.LedgerEscrow

	payer     crypto.PrivateKey
	provider  crypto.PrivateKey
	authority crypto.PrivateKey
	stranger  crypto.PrivateKey
}

func newFixture(t testing.TB, confs ...func(*Configuration)) *fixture {
	t.Helper()
	f := &fixture{
		db:        store.MemStore(),
		clock:     weavetest.NewClock(testStart),
		ledger:    cash.NewController(cash.NewBucket()),
		payer:     weavetest.KeyFor("payer"),
		provider:  weavetest.KeyFor("provider"),
		authority: weavetest.KeyFor("authority"),
		stranger:  weavetest.KeyFor("stranger"),
	}
	f.escrow = cash.NewLedgerEscrow(f.ledger)

	keys := sigs.NewBucket()
	for _, k := range []crypto.PrivateKey{f.payer, f.provider, f.authority, f.stranger} {
		_, err := keys.Register(f.db, k.PublicKey())
		require.NoError(t, err)
	}
	conf := Configuration{
		ChainID:         testChainID,
		Authority:       f.authority.Address(),
		ChallengePeriod: 600,
		ChallengePolicy: PolicyFixed,
	}
	for _, fn := range confs {
		fn(&conf)
	}
	require.NoError(t, SaveConfiguration(f.db, &conf))
	weavetest.Fund(t, f.db, f.ledger, 10000, f.payer.Address())

	f.ctrl = NewController(f.db, f.escrow, sigs.NewKeyring(f.db), f.clock, WithLogger(log.TestingLogger()))
	return f
}

// withEscrow replaces the controller with one that moves deposits
// through e, over the same store.
func (f *fixture) withEscrow(e cash.Escrow) {
	f.ctrl = NewController(f.db, e, sigs.NewKeyring(f.db), f.clock, WithLogger(log.TestingLogger()))
}

// brokenEscrow delegates to a working escrow but fails every payout to
// the wallet of to.
type brokenEscrow struct {
	cash.Escrow
	to microchan.Address
}

func (e brokenEscrow) Payout(db microchan.KVStore, channelID string, to microchan.Address, amount uint64) error {
	if to.Equals(e.to) {
		return errors.Wrapf(errors.ErrDatabase, "payout to %s", to)
	}
	return e.Escrow.Payout(db, channelID, to, amount)
}

func sign(t testing.TB, k crypto.PrivateKey, digest []byte) []byte {
	t.Helper()
	sig, err := sigs.Sign(k, digest)
	require.NoError(t, err)
	return sig
}

func (f *fixture) createMsg(t testing.TB, id string, deposit uint64, duration int64) *CreateMsg {
	msg := &CreateMsg{
		ID:             id,
		Payer:          f.payer.Address(),
		Provider:       f.provider.Address(),
		InitialDeposit: deposit,
		Duration:       duration,
	}
	msg.Signature = sign(t, f.payer, OpenDigest(testChainID, msg))
	return msg
}

func (f *fixture) open(t testing.TB, id string, deposit uint64) *Channel {
	t.Helper()
	ch, err := f.ctrl.Create(context.Background(), f.createMsg(t, id, deposit, 3600))
	require.NoError(t, err)
	return ch
}

func (f *fixture) channel(t testing.TB, id string) *Channel {
	t.Helper()
	ch, err := f.ctrl.Get(context.Background(), id)
	require.NoError(t, err)
	return ch
}

func service() ServiceData {
	return ServiceData{Type: ServiceDataTransfer, DataAmount: 1 << 20, QualityScore: 90, Duration: 60}
}

// paymentMsg returns a payment signed by the payer for the sequence the
// channel has after seq.
func (f *fixture) paymentMsg(t testing.TB, id string, amount, seq uint64) *PaymentMsg {
	svc := service()
	return &PaymentMsg{
		ChannelID: id,
		Amount:    amount,
		Service:   svc,
		Signature: sign(t, f.payer, PaymentDigest(testChainID, id, amount, svc, seq+1)),
	}
}

func (f *fixture) pay(t testing.TB, id string, amount uint64) *Payment {
	t.Helper()
	ch := f.channel(t, id)
	p, err := f.ctrl.MakePayment(context.Background(), f.paymentMsg(t, id, amount, ch.Sequence))
	require.NoError(t, err)
	return p
}

func (f *fixture) closeMsg(t testing.TB, id string, closer crypto.PrivateKey) *CloseMsg {
	ch := f.channel(t, id)
	return &CloseMsg{
		ChannelID: id,
		Closer:    closer.Address(),
		Signature: sign(t, closer, CloseDigest(testChainID, id, closer.Address(), ch.Sequence)),
	}
}

func (f *fixture) finalMsg(t testing.TB, id string) *CloseMsg {
	ch := f.channel(t, id)
	digest := FinalDigest(testChainID, id, ch.CurrentBalance, ch.TotalSpent, ch.Sequence)
	return &CloseMsg{
		ChannelID: id,
		Final: &FinalState{
			PayerSignature:    sign(t, f.payer, digest),
			ProviderSignature: sign(t, f.provider, digest),
		},
	}
}

func (f *fixture) disputeMsg(t testing.TB, id, paymentID string, filer crypto.PrivateKey) *DisputeMsg {
	ch := f.channel(t, id)
	msg := &DisputeMsg{
		ChannelID: id,
		PaymentID: paymentID,
		Filer:     filer.Address(),
		Evidence: EvidenceInput{
			Type:        EvidenceQualityMeasurement,
			Description: "stream stalled",
			Data:        []byte("rtt=900ms loss=12%"),
		},
	}
	digest := DisputeDigest(testChainID, id, paymentID, msg.Filer, msg.Evidence.Type, EvidenceHash(msg.Evidence.Data), ch.Sequence)
	msg.Signature = sign(t, filer, digest)
	return msg
}

func (f *fixture) resolveMsg(t testing.TB, id string, outcome Outcome, amount uint64) *ResolveMsg {
	ch := f.channel(t, id)
	msg := &ResolveMsg{
		ChannelID: id,
		Authority: f.authority.Address(),
		Outcome:   outcome,
		Amount:    amount,
		Reasoning: "measurements confirm the outage",
	}
	digest := ResolveDigest(testChainID, id, ch.OpenDispute, outcome, amount, msg.Reasoning, ch.Sequence)
	msg.Signature = sign(t, f.authority, digest)
	return msg
}

func (f *fixture) balance(t testing.TB, addr microchan.Address) uint64 {
	t.Helper()
	b, err := f.ledger.Balance(f.db, addr)
	require.NoError(t, err)
	return b
}

// assertConserved checks that the channel balance and spent value add up
// to the deposit and that escrow holds exactly what is not settled.
func (f *fixture) assertConserved(t testing.TB, id string) {
	t.Helper()
	ch := f.channel(t, id)
	assert.Equal(t, ch.InitialDeposit, ch.CurrentBalance+ch.TotalSpent)
	held, err := f.escrow.Held(f.db, id)
	require.NoError(t, err)
	if ch.Status == StatusClosed {
		assert.Equal(t, uint64(0), held)
	} else {
		assert.Equal(t, ch.InitialDeposit, held)
	}
}

func assertErr(t testing.TB, want *errors.Error, err error) {
	t.Helper()
	if want == nil {
		assert.NoError(t, err)
		return
	}
	assert.True(t, want.Is(err), "want %q, got %+v", want, err)
}
