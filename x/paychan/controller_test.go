package paychan

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateChannel(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	ch, err := f.ctrl.Create(ctx, f.createMsg(t, "chan-1", 1000, 3600))
	require.NoError(t, err)
	assert.Equal(t, StatusActive, ch.Status)
	assert.Equal(t, uint64(1000), ch.CurrentBalance)
	assert.Equal(t, uint64(0), ch.TotalSpent)
	assert.Equal(t, uint64(0), ch.Sequence)
	assert.Equal(t, testStart.AddSeconds(3600), ch.ExpiresAt)
	assert.Equal(t, int64(600), ch.ChallengePeriod)

	assert.Equal(t, uint64(9000), f.balance(t, f.payer.Address()))
	f.assertConserved(t, "chan-1")

	stats, err := f.ctrl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalChannels)

	badSig := f.createMsg(t, "chan-3", 1000, 3600)
	badSig.Signature = sign(t, f.stranger, OpenDigest(testChainID, badSig))

	cases := map[string]struct {
		msg     *CreateMsg
		wantErr *errors.Error
	}{
		"duplicate id":         {f.createMsg(t, "chan-1", 10, 3600), ErrDuplicateChannel},
		"zero deposit":         {f.createMsg(t, "chan-2", 0, 3600), ErrInvalidDeposit},
		"zero duration":        {f.createMsg(t, "chan-2", 10, 0), ErrInvalidDuration},
		"negative duration":    {f.createMsg(t, "chan-2", 10, -5), ErrInvalidDuration},
		"insufficient funds":   {f.createMsg(t, "chan-2", 9001, 3600), errors.ErrInsufficientAmount},
		"not signed by payer":  {badSig, ErrInvalidSignature},
		"malformed channel id": {f.createMsg(t, "a", 10, 3600), errors.ErrInput},
		"duration overflows":   {f.createMsg(t, "chan-2", 10, math.MaxInt64), ErrInvalidDuration},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ctrl.Create(ctx, tc.msg)
			assertErr(t, tc.wantErr, err)
		})
	}

	self := f.createMsg(t, "chan-2", 10, 3600)
	self.Provider = self.Payer
	_, err = f.ctrl.Create(ctx, self)
	assertErr(t, errors.ErrInput, err)

	// rejected creates leave no state behind
	_, err = f.ctrl.Get(ctx, "chan-2")
	assertErr(t, errors.ErrNotFound, err)
	assert.Equal(t, uint64(9000), f.balance(t, f.payer.Address()))
	stats, err = f.ctrl.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalChannels)
}

func TestCreateRespectsMaxDuration(t *testing.T) {
	f := newFixture(t, func(c *Configuration) { c.MaxDuration = 100 })
	_, err := f.ctrl.Create(context.Background(), f.createMsg(t, "chan-1", 10, 101))
	assertErr(t, ErrInvalidDuration, err)
	_, err = f.ctrl.Create(context.Background(), f.createMsg(t, "chan-1", 10, 100))
	assert.NoError(t, err)
}

func TestCreateRequiresConfiguration(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, f.db.Delete([]byte("_c:paychan")))
	_, err := f.ctrl.Create(context.Background(), f.createMsg(t, "chan-1", 10, 100))
	assertErr(t, errors.ErrState, err)
	assert.Equal(t, Internal, Classify(err))
}

func TestScenarioSinglePayment(t *testing.T) {
	f := newFixture(t)
	f.open(t, "chan-a", 1000)

	p := f.pay(t, "chan-a", 100)
	assert.Equal(t, "chan-a/1", p.ID())
	assert.Equal(t, uint64(1), p.Sequence)

	ch := f.channel(t, "chan-a")
	assert.Equal(t, uint64(900), ch.CurrentBalance)
	assert.Equal(t, uint64(100), ch.TotalSpent)
	assert.Equal(t, uint64(1), ch.Sequence)
	f.assertConserved(t, "chan-a")

	stored, err := f.ctrl.Payment(context.Background(), "chan-a/1")
	require.NoError(t, err)
	assert.Equal(t, p.Amount, stored.Amount)
	assert.Equal(t, p.Service.QualityScore, stored.Service.QualityScore)
	assert.Equal(t, testStart, stored.Timestamp)
}

func TestScenarioInsufficientBalance(t *testing.T) {
	f := newFixture(t)
	f.open(t, "chan-b", 1000)
	f.pay(t, "chan-b", 100)
	f.pay(t, "chan-b", 100)

	ch := f.channel(t, "chan-b")
	assert.Equal(t, uint64(2), ch.Sequence)
	assert.Equal(t, uint64(800), ch.CurrentBalance)
	assert.Equal(t, uint64(200), ch.TotalSpent)

	_, err := f.ctrl.MakePayment(context.Background(), f.paymentMsg(t, "chan-b", 900, 2))
	assertErr(t, ErrInsufficientBalance, err)
	assert.Equal(t, ch, f.channel(t, "chan-b"))

	payments, err := f.ctrl.Payments(context.Background(), "chan-b")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, uint64(1), payments[0].Sequence)
	assert.Equal(t, uint64(2), payments[1].Sequence)

	stats, err := f.ctrl.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(200), stats.TotalVolume)
}

func TestPaymentRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-1", 1000)
	f.pay(t, "chan-1", 10)

	svc := service()
	tampered := f.paymentMsg(t, "chan-1", 10, 1)
	tampered.Amount = 11
	replayed := f.paymentMsg(t, "chan-1", 10, 0)
	wrongKey := f.paymentMsg(t, "chan-1", 10, 1)
	wrongKey.Signature = sign(t, f.provider, PaymentDigest(testChainID, "chan-1", 10, svc, 2))
	otherChain := f.paymentMsg(t, "chan-1", 10, 1)
	otherChain.Signature = sign(t, f.payer, PaymentDigest("other-chain", "chan-1", 10, svc, 2))
	otherOp := f.paymentMsg(t, "chan-1", 10, 1)
	otherOp.Signature = sign(t, f.payer, UpdateDigest(testChainID, "chan-1", 10, 2))
	tamperedService := f.paymentMsg(t, "chan-1", 10, 1)
	tamperedService.Service.QualityScore = 10
	badService := f.paymentMsg(t, "chan-1", 10, 1)
	badService.Service.QualityScore = 101

	cases := map[string]struct {
		msg     *PaymentMsg
		wantErr *errors.Error
	}{
		"zero amount":            {f.paymentMsg(t, "chan-1", 0, 1), ErrInvalidAmount},
		"unknown channel":        {f.paymentMsg(t, "chan-2", 10, 0), errors.ErrNotFound},
		"tampered amount":        {tampered, ErrInvalidSignature},
		"replayed sequence":      {replayed, ErrInvalidSignature},
		"signed by provider":     {wrongKey, ErrInvalidSignature},
		"signed for other chain": {otherChain, ErrInvalidSignature},
		"signed for other op":    {otherOp, ErrInvalidSignature},
		"tampered service data":  {tamperedService, ErrInvalidSignature},
		"invalid quality score":  {badService, errors.ErrInput},
		"missing signature":      {&PaymentMsg{ChannelID: "chan-1", Amount: 10, Service: svc}, ErrInvalidSignature},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ctrl.MakePayment(ctx, tc.msg)
			assertErr(t, tc.wantErr, err)
		})
	}

	ch := f.channel(t, "chan-1")
	assert.Equal(t, uint64(1), ch.Sequence)
	assert.Equal(t, uint64(990), ch.CurrentBalance)
}

func TestPaymentExpiry(t *testing.T) {
	f := newFixture(t)
	f.open(t, "chan-1", 1000)

	f.clock.Advance(3599 * time.Second)
	f.pay(t, "chan-1", 10)

	f.clock.Advance(time.Second)
	_, err := f.ctrl.MakePayment(context.Background(), f.paymentMsg(t, "chan-1", 10, 1))
	assertErr(t, ErrChannelExpired, err)

	// an expired channel can still be closed
	_, err = f.ctrl.Close(context.Background(), f.finalMsg(t, "chan-1"))
	require.NoError(t, err)
	assert.Equal(t, uint64(10), f.balance(t, f.provider.Address()))
	assert.Equal(t, uint64(9990), f.balance(t, f.payer.Address()))
}

func TestScenarioUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-e", 1000)
	f.pay(t, "chan-e", 100)

	update := func(balance, seq uint64, payer, provider bool) *UpdateMsg {
		msg := &UpdateMsg{ChannelID: "chan-e", NewBalance: balance, Sequence: seq}
		digest := UpdateDigest(testChainID, "chan-e", balance, seq)
		if payer {
			msg.PayerSignature = sign(t, f.payer, digest)
		}
		if provider {
			msg.ProviderSignature = sign(t, f.provider, digest)
		}
		return msg
	}

	_, err := f.ctrl.UpdateChannel(ctx, update(700, 1, true, false))
	assertErr(t, ErrInvalidSequence, err)
	_, err = f.ctrl.UpdateChannel(ctx, update(1001, 2, true, true))
	assertErr(t, ErrInvalidBalance, err)
	// the provider cannot take value on its own
	_, err = f.ctrl.UpdateChannel(ctx, update(700, 5, false, true))
	assertErr(t, ErrInvalidSignature, err)

	ch, err := f.ctrl.UpdateChannel(ctx, update(700, 5, true, false))
	require.NoError(t, err)
	assert.Equal(t, uint64(700), ch.CurrentBalance)
	assert.Equal(t, uint64(300), ch.TotalSpent)
	assert.Equal(t, uint64(5), ch.Sequence)

	// the payer cannot take value back on its own
	_, err = f.ctrl.UpdateChannel(ctx, update(800, 6, true, false))
	assertErr(t, ErrInvalidSignature, err)
	// a supplied signature must be valid even when not required
	bad := update(800, 6, false, true)
	bad.PayerSignature = sign(t, f.stranger, UpdateDigest(testChainID, "chan-e", 800, 6))
	_, err = f.ctrl.UpdateChannel(ctx, bad)
	assertErr(t, ErrInvalidSignature, err)

	ch, err = f.ctrl.UpdateChannel(ctx, update(800, 6, false, true))
	require.NoError(t, err)
	assert.Equal(t, uint64(800), ch.CurrentBalance)
	assert.Equal(t, uint64(200), ch.TotalSpent)

	// an equal balance needs either signature
	_, err = f.ctrl.UpdateChannel(ctx, update(800, 7, false, false))
	assertErr(t, ErrInvalidSignature, err)
	_, err = f.ctrl.UpdateChannel(ctx, update(800, 7, false, true))
	require.NoError(t, err)

	f.assertConserved(t, "chan-e")
	stats, err := f.ctrl.Stats(ctx)
	require.NoError(t, err)
	// 100 paid, then 200 more moved by the first update
	assert.Equal(t, uint64(300), stats.TotalVolume)
}

func TestScenarioUnilateralClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-c", 1000)
	f.pay(t, "chan-c", 250)

	ch, err := f.ctrl.Close(ctx, f.closeMsg(t, "chan-c", f.provider))
	require.NoError(t, err)
	assert.Equal(t, StatusClosing, ch.Status)
	assert.Equal(t, testStart.AddSeconds(600), ch.ChallengeExpiresAt)

	_, err = f.ctrl.MakePayment(ctx, f.paymentMsg(t, "chan-c", 10, 1))
	assertErr(t, ErrChannelNotActive, err)

	f.clock.Advance(599 * time.Second)
	_, err = f.ctrl.FinalizeClose(ctx, "chan-c")
	assertErr(t, ErrChallengePeriodNotExpired, err)

	f.clock.Advance(time.Second)
	ch, err = f.ctrl.FinalizeClose(ctx, "chan-c")
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, ch.Status)
	assert.True(t, ch.ChallengeExpiresAt.IsZero())

	assert.Equal(t, uint64(9750), f.balance(t, f.payer.Address()))
	assert.Equal(t, uint64(250), f.balance(t, f.provider.Address()))
	f.assertConserved(t, "chan-c")

	// settlement happens once
	_, err = f.ctrl.FinalizeClose(ctx, "chan-c")
	assertErr(t, ErrNotInChallengePeriod, err)
	_, err = f.ctrl.Close(ctx, f.closeMsg(t, "chan-c", f.payer))
	assertErr(t, ErrChannelNotCloseable, err)
	_, err = f.ctrl.Close(ctx, f.finalMsg(t, "chan-c"))
	assertErr(t, ErrChannelNotCloseable, err)
	assert.Equal(t, uint64(250), f.balance(t, f.provider.Address()))
}

func TestCloseRejections(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-1", 1000)
	f.pay(t, "chan-1", 100)

	stranger := f.closeMsg(t, "chan-1", f.stranger)
	forged := f.closeMsg(t, "chan-1", f.payer)
	forged.Signature = sign(t, f.provider, CloseDigest(testChainID, "chan-1", f.payer.Address(), 1))
	stale := f.closeMsg(t, "chan-1", f.payer)
	stale.Signature = sign(t, f.payer, CloseDigest(testChainID, "chan-1", f.payer.Address(), 0))
	halfFinal := f.finalMsg(t, "chan-1")
	halfFinal.Final.ProviderSignature = nil
	// a final state that does not match the channel
	digest := FinalDigest(testChainID, "chan-1", 1000, 0, 1)
	wrongFinal := &CloseMsg{ChannelID: "chan-1", Final: &FinalState{
		PayerSignature:    sign(t, f.payer, digest),
		ProviderSignature: sign(t, f.provider, digest),
	}}

	cases := map[string]struct {
		msg     *CloseMsg
		wantErr *errors.Error
	}{
		"closer is not a party":    {stranger, errors.ErrUnauthorized},
		"signed by other party":    {forged, ErrInvalidSignature},
		"signed for old sequence":  {stale, ErrInvalidSignature},
		"final missing signature":  {halfFinal, ErrInvalidSignature},
		"final over other balance": {wrongFinal, ErrInvalidSignature},
		"unknown channel":          {&CloseMsg{ChannelID: "nope", Closer: f.payer.Address()}, errors.ErrNotFound},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := f.ctrl.Close(ctx, tc.msg)
			assertErr(t, tc.wantErr, err)
		})
	}
	assert.Equal(t, StatusActive, f.channel(t, "chan-1").Status)
}

func TestCooperativeClose(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-1", 1000)
	f.pay(t, "chan-1", 1000)

	ch, err := f.ctrl.Close(ctx, f.finalMsg(t, "chan-1"))
	require.NoError(t, err)
	assert.Equal(t, StatusClosed, ch.Status)
	// zero payout to the payer is skipped
	assert.Equal(t, uint64(9000), f.balance(t, f.payer.Address()))
	assert.Equal(t, uint64(1000), f.balance(t, f.provider.Address()))
	f.assertConserved(t, "chan-1")

	events, err := f.ctrl.Events(ctx, 0, 0)
	require.NoError(t, err)
	last := events[len(events)-1]
	require.Equal(t, KindChannelClosed, last.Kind)
	closed := last.Data.(ChannelClosed)
	assert.True(t, closed.Cooperative)
	assert.Equal(t, uint64(1000), closed.ProviderPaid)
}

func TestFailedPayoutKeepsChannel(t *testing.T) {
	cases := map[string]struct {
		// prepare brings chan-1 to the point right before settlement
		prepare func(t *testing.T, f *fixture)
		settle  func(t *testing.T, f *fixture) (*Channel, error)
		status  Status
	}{
		"cooperative close": {
			prepare: func(t *testing.T, f *fixture) {},
			settle: func(t *testing.T, f *fixture) (*Channel, error) {
				return f.ctrl.Close(context.Background(), f.finalMsg(t, "chan-1"))
			},
			status: StatusActive,
		},
		"finalize close": {
			prepare: func(t *testing.T, f *fixture) {
				_, err := f.ctrl.Close(context.Background(), f.closeMsg(t, "chan-1", f.provider))
				require.NoError(t, err)
				f.clock.Advance(600 * time.Second)
			},
			settle: func(t *testing.T, f *fixture) (*Channel, error) {
				return f.ctrl.FinalizeClose(context.Background(), "chan-1")
			},
			status: StatusClosing,
		},
	}
	for testName, tc := range cases {
		t.Run(testName, func(t *testing.T) {
			f := newFixture(t)
			ctx := context.Background()
			f.open(t, "chan-1", 1000)
			f.pay(t, "chan-1", 250)
			tc.prepare(t, f)
			before, err := f.ctrl.Events(ctx, 0, 0)
			require.NoError(t, err)

			working := f.escrow
			f.withEscrow(brokenEscrow{Escrow: working, to: f.provider.Address()})
			_, err = tc.settle(t, f)
			assertErr(t, errors.ErrDatabase, err)

			ch := f.channel(t, "chan-1")
			assert.Equal(t, tc.status, ch.Status)
			assert.Equal(t, uint64(750), ch.CurrentBalance)
			assert.Equal(t, uint64(9000), f.balance(t, f.payer.Address()))
			assert.Equal(t, uint64(0), f.balance(t, f.provider.Address()))
			held, err := f.escrow.Held(f.db, "chan-1")
			require.NoError(t, err)
			assert.Equal(t, uint64(1000), held)
			f.assertConserved(t, "chan-1")

			after, err := f.ctrl.Events(ctx, 0, 0)
			require.NoError(t, err)
			assert.Len(t, after, len(before))
			for _, e := range after {
				assert.NotEqual(t, KindChannelClosed, e.Kind)
			}

			// the same settlement goes through once payouts work again
			f.withEscrow(working)
			ch, err = tc.settle(t, f)
			require.NoError(t, err)
			assert.Equal(t, StatusClosed, ch.Status)
			assert.Equal(t, uint64(9750), f.balance(t, f.payer.Address()))
			assert.Equal(t, uint64(250), f.balance(t, f.provider.Address()))
			f.assertConserved(t, "chan-1")
		})
	}
}

func TestChallengeClose(t *testing.T) {
	challenge := func(t *testing.T, f *fixture, balance, seq uint64, signers ...string) *ChallengeMsg {
		msg := &ChallengeMsg{ChannelID: "chan-1", Balance: balance, Sequence: seq}
		digest := ChallengeDigest(testChainID, "chan-1", balance, seq)
		for _, s := range signers {
			switch s {
			case "payer":
				msg.PayerSignature = sign(t, f.payer, digest)
			case "provider":
				msg.ProviderSignature = sign(t, f.provider, digest)
			}
		}
		return msg
	}

	t.Run("fixed window", func(t *testing.T) {
		f := newFixture(t)
		ctx := context.Background()
		f.open(t, "chan-1", 1000)
		f.pay(t, "chan-1", 100)

		// the payer closes with a stale view, the provider holds a newer
		// state signed by the payer
		_, err := f.ctrl.Close(ctx, f.closeMsg(t, "chan-1", f.payer))
		require.NoError(t, err)

		_, err = f.ctrl.ChallengeClose(ctx, challenge(t, f, 600, 1, "payer"))
		assertErr(t, ErrInvalidSequence, err)
		_, err = f.ctrl.ChallengeClose(ctx, challenge(t, f, 1200, 4, "payer", "provider"))
		assertErr(t, ErrInvalidBalance, err)
		_, err = f.ctrl.ChallengeClose(ctx, challenge(t, f, 600, 4, "provider"))
		assertErr(t, ErrInvalidSignature, err)

		f.clock.Advance(300 * time.Second)
		ch, err := f.ctrl.ChallengeClose(ctx, challenge(t, f, 600, 4, "payer"))
		require.NoError(t, err)
		assert.Equal(t, uint64(600), ch.CurrentBalance)
		assert.Equal(t, uint64(400), ch.TotalSpent)
		assert.Equal(t, uint64(4), ch.Sequence)
		assert.Equal(t, testStart.AddSeconds(600), ch.ChallengeExpiresAt)

		f.clock.Advance(300 * time.Second)
		_, err = f.ctrl.ChallengeClose(ctx, challenge(t, f, 500, 5, "payer"))
		assertErr(t, ErrChallengePeriodExpired, err)

		_, err = f.ctrl.FinalizeClose(ctx, "chan-1")
		require.NoError(t, err)
		assert.Equal(t, uint64(400), f.balance(t, f.provider.Address()))
		assert.Equal(t, uint64(9600), f.balance(t, f.payer.Address()))
		f.assertConserved(t, "chan-1")
	})

	t.Run("extending window", func(t *testing.T) {
		f := newFixture(t, func(c *Configuration) { c.ChallengePolicy = PolicyExtend })
		ctx := context.Background()
		f.open(t, "chan-1", 1000)
		_, err := f.ctrl.Close(ctx, f.closeMsg(t, "chan-1", f.provider))
		require.NoError(t, err)

		f.clock.Advance(500 * time.Second)
		ch, err := f.ctrl.ChallengeClose(ctx, challenge(t, f, 900, 1, "payer"))
		require.NoError(t, err)
		assert.Equal(t, testStart.AddSeconds(1100), ch.ChallengeExpiresAt)

		f.clock.Advance(200 * time.Second)
		_, err = f.ctrl.FinalizeClose(ctx, "chan-1")
		assertErr(t, ErrChallengePeriodNotExpired, err)
	})

	t.Run("not closing", func(t *testing.T) {
		f := newFixture(t)
		f.open(t, "chan-1", 1000)
		_, err := f.ctrl.ChallengeClose(context.Background(), challenge(t, f, 900, 1, "payer"))
		assertErr(t, ErrNotInChallengePeriod, err)
		_, err = f.ctrl.FinalizeClose(context.Background(), "chan-1")
		assertErr(t, ErrNotInChallengePeriod, err)
	})
}

func TestSequenceNeverDecreases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.open(t, "chan-1", 1000)

	var last uint64
	check := func() {
		ch := f.channel(t, "chan-1")
		assert.True(t, ch.Sequence >= last, "sequence went from %d to %d", last, ch.Sequence)
		last = ch.Sequence
		f.assertConserved(t, "chan-1")
	}
	for i := 0; i < 5; i++ {
		f.pay(t, "chan-1", 10)
		check()
		// a replay of the payment just accepted fails
		_, err := f.ctrl.MakePayment(ctx, f.paymentMsg(t, "chan-1", 10, last-1))
		assertErr(t, ErrInvalidSignature, err)
		check()
	}
	digest := UpdateDigest(testChainID, "chan-1", 900, 3)
	_, err := f.ctrl.UpdateChannel(ctx, &UpdateMsg{ChannelID: "chan-1", NewBalance: 900, Sequence: 3, PayerSignature: sign(t, f.payer, digest)})
	assertErr(t, ErrInvalidSequence, err)
	check()
}

func TestCanceledContext(t *testing.T) {
	f := newFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.ctrl.Create(ctx, f.createMsg(t, "chan-1", 10, 100))
	assert.Equal(t, context.Canceled, err)
	_, err = f.ctrl.Get(context.Background(), "chan-1")
	assertErr(t, errors.ErrNotFound, err)
}

func TestExpiresAtOverflow(t *testing.T) {
	_, ok := expiresAt(microchan.UnixTime(10), math.MaxInt64-9)
	assert.False(t, ok)
	at, ok := expiresAt(microchan.UnixTime(10), math.MaxInt64-10)
	assert.True(t, ok)
	assert.Equal(t, microchan.UnixTime(math.MaxInt64), at)
}
