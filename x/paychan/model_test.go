package paychan

import (
	"testing"

	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/store"
	"github.com/iov-one/microchan/weavetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validChannel(t testing.TB) *Channel {
	return &Channel{
		ID:              "chan-1",
		Payer:           weavetest.RandomAddr(t),
		Provider:        weavetest.RandomAddr(t),
		InitialDeposit:  100,
		CurrentBalance:  60,
		TotalSpent:      40,
		Sequence:        2,
		Status:          StatusActive,
		CreatedAt:       testStart,
		ExpiresAt:       testStart.AddSeconds(10),
		ChallengePeriod: 600,
		LastUpdate:      testStart,
	}
}

func TestChannelValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Channel)
		wantErr *errors.Error
	}{
		"valid":                {func(*Channel) {}, nil},
		"bad id":               {func(c *Channel) { c.ID = "x" }, errors.ErrInput},
		"same parties":         {func(c *Channel) { c.Provider = c.Payer }, errors.ErrInput},
		"missing payer":        {func(c *Channel) { c.Payer = nil }, errors.ErrInput},
		"zero deposit":         {func(c *Channel) { c.InitialDeposit = 0; c.CurrentBalance = 0; c.TotalSpent = 0 }, ErrInvalidDeposit},
		"balance over deposit": {func(c *Channel) { c.CurrentBalance = 101 }, ErrInvalidBalance},
		"not conserved":        {func(c *Channel) { c.TotalSpent = 41 }, errors.ErrModel},
		"unknown status":       {func(c *Channel) { c.Status = 0 }, errors.ErrInput},
		"expires before start": {func(c *Channel) { c.ExpiresAt = c.CreatedAt }, ErrInvalidDuration},
		"deadline not closing": {func(c *Channel) { c.ChallengeExpiresAt = testStart }, errors.ErrModel},
		"closing no deadline":  {func(c *Channel) { c.Status = StatusClosing }, errors.ErrModel},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ch := validChannel(t)
			tc.mutate(ch)
			assertErr(t, tc.wantErr, ch.Validate())
		})
	}
}

func TestChannelCopy(t *testing.T) {
	ch := validChannel(t)
	cpy := ch.Copy()
	cpy.Payer[0] ^= 0xff
	cpy.CurrentBalance = 1
	assert.NotEqual(t, ch.Payer, cpy.Payer)
	assert.Equal(t, uint64(60), ch.CurrentBalance)
	assert.True(t, ch.IsParty(ch.Provider))
	assert.False(t, ch.IsParty(cpy.Payer))
}

func TestPaymentID(t *testing.T) {
	assert.Equal(t, "chan-1/12", PaymentID("chan-1", 12))

	cases := map[string]struct {
		id      string
		channel string
		seq     uint64
		wantErr bool
	}{
		"valid":            {"chan-1/12", "chan-1", 12, false},
		"slash in channel": {"a/b.c/3", "", 0, true},
		"zero sequence":    {"chan-1/0", "", 0, true},
		"no sequence":      {"chan-1/", "", 0, true},
		"no separator":     {"chan-1", "", 0, true},
		"not a number":     {"chan-1/x", "", 0, true},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			ch, seq, err := ParsePaymentID(tc.id)
			if tc.wantErr {
				assertErr(t, errors.ErrInput, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.channel, ch)
			assert.Equal(t, tc.seq, seq)
		})
	}
}

func TestPaymentsAreOrderedBySequence(t *testing.T) {
	db := store.MemStore()
	b := NewPaymentBucket()
	for _, seq := range []uint64{3, 1, 256, 2} {
		p := &Payment{ChannelID: "chan-1", Sequence: seq, Amount: 1, Service: service(), Timestamp: testStart}
		require.NoError(t, b.Create(db, p))
	}
	// a channel whose id extends the first one is not included
	require.NoError(t, b.Create(db, &Payment{ChannelID: "chan-10", Sequence: 1, Amount: 1, Service: service()}))

	payments, err := b.ByChannel(db, "chan-1")
	require.NoError(t, err)
	var seqs []uint64
	for _, p := range payments {
		seqs = append(seqs, p.Sequence)
	}
	assert.Equal(t, []uint64{1, 2, 3, 256}, seqs)

	p, err := b.GetPayment(db, "chan-1", 256)
	require.NoError(t, err)
	assert.Equal(t, "chan-1/256", p.ID())
	_, err = b.GetPayment(db, "chan-1", 4)
	assertErr(t, errors.ErrNotFound, err)
}

func TestServiceDataValidate(t *testing.T) {
	svc := service()
	assert.NoError(t, svc.Validate())
	svc.Metadata = make([]byte, maxMetadataSize+1)
	assertErr(t, errors.ErrInput, svc.Validate())
	svc = service()
	svc.Type = 0
	assertErr(t, errors.ErrInput, svc.Validate())
}

func TestDisputeBucketIndex(t *testing.T) {
	db := store.MemStore()
	b := NewDisputeBucket()
	filer := weavetest.RandomAddr(t)
	for i, ch := range []string{"chan-1", "chan-2", "chan-1"} {
		d := &Dispute{
			ID:        int64(i + 1),
			ChannelID: ch,
			PaymentID: PaymentID(ch, 1),
			Filer:     filer,
			Evidence:  Evidence{Type: EvidenceServiceLog, DataHash: EvidenceHash(nil)},
			Status:    DisputeStatusOpen,
			CreatedAt: testStart,
		}
		require.NoError(t, b.SaveDispute(db, d))
	}
	list, err := b.ByChannel(db, "chan-1")
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, int64(1), list[0].ID)
	assert.Equal(t, int64(3), list[1].ID)

	invalid := &Dispute{ID: 9, ChannelID: "chan-1", PaymentID: "chan-2/1", Filer: filer, Status: DisputeStatusResolved}
	assert.Error(t, b.SaveDispute(db, invalid))
}

func TestStatsRoundTrip(t *testing.T) {
	db := store.MemStore()
	s, err := loadStats(db)
	require.NoError(t, err)
	assert.Equal(t, &Stats{}, s)

	s.Authority = weavetest.RandomAddr(t)
	require.NoError(t, s.add(2, 300))
	require.NoError(t, saveStats(db, s))
	got, err := loadStats(db)
	require.NoError(t, err)
	assert.Equal(t, s, got)

	got.TotalVolume = ^uint64(0)
	assertErr(t, errors.ErrOverflow, got.add(0, 1))
}

func TestEnumJSON(t *testing.T) {
	raw, err := StatusDisputed.MarshalJSON()
	require.NoError(t, err)
	assert.Equal(t, `"Disputed"`, string(raw))

	var o Outcome
	require.NoError(t, o.UnmarshalJSON([]byte(`"PartialRefund"`)))
	assert.Equal(t, PartialRefund, o)
	assert.Error(t, o.UnmarshalJSON([]byte(`"Nope"`)))

	var st ServiceType
	require.NoError(t, st.UnmarshalJSON([]byte(`"VideoStream"`)))
	assert.Equal(t, ServiceVideoStream, st)
	assert.Equal(t, uint64(5), PartialRefund.Refund(11))
	assert.Equal(t, uint64(0), FavorOperator.Refund(11))
}

