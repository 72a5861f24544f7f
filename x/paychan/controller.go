package paychan

import (
	"context"
	"math"
	"sync"

	"github.com/bwmarrin/snowflake"
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/cash"
	"github.com/iov-one/microchan/x/sigs"
	"github.com/tendermint/tendermint/libs/log"
)

// Controller runs the channel state machine. All operations are safe for
// concurrent use. Operations on the same channel are serialized, operations
// on different channels run in parallel.
type Controller struct {
	db       microchan.CacheableKVStore
	escrow   cash.Escrow
	verifier sigs.Verifier
	clock    microchan.Clock
	logger   log.Logger
	node     *snowflake.Node

	locks *keyedMutex
	// commitMu guards the event sequence and the stats singleton.
	commitMu sync.Mutex

	channels ChannelBucket
	payments PaymentBucket
	disputes DisputeBucket
	events   EventBucket
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger used to report accepted and rejected
// operations.
func WithLogger(l log.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithNode sets the generator of dispute IDs. Every process writing to the
// same store must use a different node.
func WithNode(n *snowflake.Node) Option {
	return func(c *Controller) {
		c.node = n
	}
}

// NewController returns a controller operating on db. db must be safe for
// concurrent use, see store.LockedStore.
func NewController(db microchan.CacheableKVStore, escrow cash.Escrow, verifier sigs.Verifier, clock microchan.Clock, opts ...Option) *Controller {
	c := &Controller{
		db:       db,
		escrow:   escrow,
		verifier: verifier,
		clock:    clock,
		logger:   log.NewNopLogger(),
		locks:    newKeyedMutex(),
		channels: NewChannelBucket(),
		payments: NewPaymentBucket(),
		disputes: NewDisputeBucket(),
		events:   NewEventBucket(),
	}
	for _, fn := range opts {
		fn(c)
	}
	if c.node == nil {
		n, err := snowflake.NewNode(0)
		if err != nil {
			panic(err)
		}
		c.node = n
	}
	c.logger = c.logger.With("module", packageName)
	return c
}

// txn is the staging area of one operation. Every change is written into
// a cache-wrap and published by commit.
type txn struct {
	db     microchan.KVCacheWrap
	conf   *Configuration
	now    microchan.UnixTime
	events []*Event
	// Stats deltas applied on commit.
	channels uint64
	volume   uint64

	unlock []func()
}

// begin locks the channel and opens the staging area.
func (c *Controller) begin(ctx context.Context, channelID string) (*txn, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	conf, err := LoadConfiguration(c.db)
	if err != nil {
		return nil, err
	}
	t := &txn{conf: conf}
	t.unlock = append(t.unlock, c.locks.Lock(channelLockKey(channelID)))
	t.db = c.db.CacheWrap()
	// Time is read under the lock so that the operations of a channel see
	// non decreasing time.
	t.now = c.clock.Now()
	return t, nil
}

// lockWallets holds the wallet locks until the operation ends.
func (c *Controller) lockWallets(t *txn, addrs ...microchan.Address) {
	keys := make([]string, len(addrs))
	for i, a := range addrs {
		keys[i] = walletLockKey(a)
	}
	t.unlock = append(t.unlock, c.locks.Lock(keys...))
}

func (t *txn) emit(ch *Channel, data EventData) {
	t.events = append(t.events, &Event{
		Kind:      data.Kind(),
		ChannelID: ch.ID,
		Time:      t.now,
		Data:      data,
	})
}

// end discards anything not committed and releases the locks. It is safe
// to call after commit.
func (t *txn) end() {
	t.db.Discard()
	for i := len(t.unlock) - 1; i >= 0; i-- {
		t.unlock[i]()
	}
	t.unlock = nil
}

// commit appends the staged events, applies the stats deltas and writes
// everything to the store at once.
func (c *Controller) commit(ctx context.Context, t *txn) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.commitMu.Lock()
	defer c.commitMu.Unlock()

	if err := c.events.Append(t.db, t.events); err != nil {
		return errors.Wrap(err, "append events")
	}
	if t.channels != 0 || t.volume != 0 {
		stats, err := loadStats(t.db)
		if err != nil {
			return err
		}
		if err := stats.add(t.channels, t.volume); err != nil {
			return err
		}
		if err := saveStats(t.db, stats); err != nil {
			return err
		}
	}
	if err := t.db.Write(); err != nil {
		return errors.Wrap(errors.ErrDatabase, err.Error())
	}
	return nil
}

// reject logs a refused operation and returns err unchanged.
func (c *Controller) reject(ctx context.Context, op, channelID string, err error) error {
	microchan.Logger(ctx, c.logger).Debug("rejected", "op", op, "channel", channelID, "class", Classify(err).String(), "err", err)
	return err
}

func (c *Controller) accepted(ctx context.Context, op string, ch *Channel, keyvals ...interface{}) {
	kv := append([]interface{}{"op", op, "channel", ch.ID, "seq", ch.Sequence, "status", ch.Status.String()}, keyvals...)
	microchan.Logger(ctx, c.logger).Info("accepted", kv...)
}

// verifyTransfer checks the signatures over a new balance. The party whose
// share decreases must sign. Every supplied signature must be valid.
func (c *Controller) verifyTransfer(ch *Channel, current, next uint64, digest, payerSig, providerSig []byte) error {
	payerOK := len(payerSig) != 0 && c.verifier.Verify(ch.Payer, digest, payerSig)
	providerOK := len(providerSig) != 0 && c.verifier.Verify(ch.Provider, digest, providerSig)
	if len(payerSig) != 0 && !payerOK {
		return errors.Wrap(ErrInvalidSignature, "payer")
	}
	if len(providerSig) != 0 && !providerOK {
		return errors.Wrap(ErrInvalidSignature, "provider")
	}
	switch {
	case next < current && !payerOK:
		return errors.Wrap(ErrInvalidSignature, "payer signature required")
	case next > current && !providerOK:
		return errors.Wrap(ErrInvalidSignature, "provider signature required")
	case next == current && !payerOK && !providerOK:
		return errors.Wrap(ErrInvalidSignature, "signature required")
	}
	return nil
}

// setBalance moves the channel to the given balance and returns the value
// newly moved to the provider.
func setBalance(ch *Channel, balance uint64) uint64 {
	prev := ch.TotalSpent
	ch.CurrentBalance = balance
	ch.TotalSpent = ch.InitialDeposit - balance
	if ch.TotalSpent > prev {
		return ch.TotalSpent - prev
	}
	return 0
}

// MakePayment transfers msg.Amount from the channel balance to the
// provider.
func (c *Controller) MakePayment(ctx context.Context, msg *PaymentMsg) (*Payment, error) {
	const op = "payment"
	if err := msg.Validate(); err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	t, err := c.begin(ctx, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	defer t.end()

	ch, err := c.channels.GetChannel(t.db, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	switch {
	case ch.Status != StatusActive:
		err = errors.Wrapf(ErrChannelNotActive, "status %s", ch.Status)
	case !t.now.Before(ch.ExpiresAt):
		err = errors.Wrapf(ErrChannelExpired, "expired at %s", ch.ExpiresAt)
	case msg.Amount > ch.CurrentBalance:
		err = errors.Wrapf(ErrInsufficientBalance, "balance %d, amount %d", ch.CurrentBalance, msg.Amount)
	default:
		digest := PaymentDigest(t.conf.ChainID, ch.ID, msg.Amount, msg.Service, ch.Sequence+1)
		if !c.verifier.Verify(ch.Payer, digest, msg.Signature) {
			err = errors.Wrap(ErrInvalidSignature, "payer")
		}
	}
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}

	ch.CurrentBalance -= msg.Amount
	ch.TotalSpent += msg.Amount
	ch.Sequence++
	ch.LastUpdate = t.now
	payment := &Payment{
		ChannelID: ch.ID,
		Sequence:  ch.Sequence,
		Amount:    msg.Amount,
		Service:   msg.Service,
		Timestamp: t.now,
	}
	if err := c.payments.Create(t.db, payment); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	t.volume += msg.Amount
	t.emit(ch, PaymentMade{
		PaymentID:    payment.ID(),
		Sequence:     ch.Sequence,
		Amount:       msg.Amount,
		Balance:      ch.CurrentBalance,
		QualityScore: msg.Service.QualityScore,
		ServiceType:  msg.Service.Type,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "amount", msg.Amount)
	return payment, nil
}

// UpdateChannel replaces the channel balance with a state agreed off-chain.
func (c *Controller) UpdateChannel(ctx context.Context, msg *UpdateMsg) (*Channel, error) {
	const op = "update"
	if err := msg.Validate(); err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	t, err := c.begin(ctx, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	defer t.end()

	ch, err := c.channels.GetChannel(t.db, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	switch {
	case ch.Status != StatusActive:
		err = errors.Wrapf(ErrChannelNotActive, "status %s", ch.Status)
	case msg.Sequence <= ch.Sequence:
		err = errors.Wrapf(ErrInvalidSequence, "sequence %d, current %d", msg.Sequence, ch.Sequence)
	case msg.NewBalance > ch.InitialDeposit:
		err = errors.Wrapf(ErrInvalidBalance, "balance %d exceeds deposit %d", msg.NewBalance, ch.InitialDeposit)
	default:
		digest := UpdateDigest(t.conf.ChainID, ch.ID, msg.NewBalance, msg.Sequence)
		err = c.verifyTransfer(ch, ch.CurrentBalance, msg.NewBalance, digest, msg.PayerSignature, msg.ProviderSignature)
	}
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}

	t.volume += setBalance(ch, msg.NewBalance)
	ch.Sequence = msg.Sequence
	ch.LastUpdate = t.now
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	t.emit(ch, ChannelUpdated{
		Sequence: ch.Sequence,
		Balance:  ch.CurrentBalance,
		Spent:    ch.TotalSpent,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "balance", ch.CurrentBalance)
	return ch, nil
}

// Close settles the channel at once when both parties signed the final
// state. Otherwise it starts the challenge window.
func (c *Controller) Close(ctx context.Context, msg *CloseMsg) (*Channel, error) {
	const op = "close"
	if err := msg.Validate(); err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	t, err := c.begin(ctx, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	defer t.end()

	ch, err := c.channels.GetChannel(t.db, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	if ch.Status != StatusActive && ch.Status != StatusDisputed {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrChannelNotCloseable, "status %s", ch.Status))
	}

	if msg.Final != nil {
		digest := FinalDigest(t.conf.ChainID, ch.ID, ch.CurrentBalance, ch.TotalSpent, ch.Sequence)
		if !c.verifier.Verify(ch.Payer, digest, msg.Final.PayerSignature) {
			return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrInvalidSignature, "payer"))
		}
		if !c.verifier.Verify(ch.Provider, digest, msg.Final.ProviderSignature) {
			return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrInvalidSignature, "provider"))
		}
		if err := c.settle(t, ch, true); err != nil {
			return nil, c.reject(ctx, op, ch.ID, err)
		}
	} else {
		if !ch.IsParty(msg.Closer) {
			return nil, c.reject(ctx, op, ch.ID, errors.Wrap(errors.ErrUnauthorized, "closer is not a party"))
		}
		digest := CloseDigest(t.conf.ChainID, ch.ID, msg.Closer, ch.Sequence)
		if !c.verifier.Verify(msg.Closer, digest, msg.Signature) {
			return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrInvalidSignature, "closer"))
		}
		ch.Status = StatusClosing
		ch.ChallengeExpiresAt = t.now.AddSeconds(ch.ChallengePeriod)
		ch.LastUpdate = t.now
		if err := c.channels.SaveChannel(t.db, ch); err != nil {
			return nil, c.reject(ctx, op, ch.ID, err)
		}
		t.emit(ch, ChannelClosing{
			Closer:             msg.Closer,
			Sequence:           ch.Sequence,
			ChallengeExpiresAt: ch.ChallengeExpiresAt,
		})
	}
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "cooperative", msg.Final != nil)
	return ch, nil
}

// ChallengeClose replaces the closing state with a newer signed one.
func (c *Controller) ChallengeClose(ctx context.Context, msg *ChallengeMsg) (*Channel, error) {
	const op = "challenge"
	if err := msg.Validate(); err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	t, err := c.begin(ctx, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	defer t.end()

	ch, err := c.channels.GetChannel(t.db, msg.ChannelID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ChannelID, err)
	}
	switch {
	case ch.Status != StatusClosing:
		err = errors.Wrapf(ErrNotInChallengePeriod, "status %s", ch.Status)
	case !t.now.Before(ch.ChallengeExpiresAt):
		err = errors.Wrapf(ErrChallengePeriodExpired, "expired at %s", ch.ChallengeExpiresAt)
	case msg.Sequence <= ch.Sequence:
		err = errors.Wrapf(ErrInvalidSequence, "sequence %d, current %d", msg.Sequence, ch.Sequence)
	case msg.Balance > ch.InitialDeposit:
		err = errors.Wrapf(ErrInvalidBalance, "balance %d exceeds deposit %d", msg.Balance, ch.InitialDeposit)
	default:
		digest := ChallengeDigest(t.conf.ChainID, ch.ID, msg.Balance, msg.Sequence)
		err = c.verifyTransfer(ch, ch.CurrentBalance, msg.Balance, digest, msg.PayerSignature, msg.ProviderSignature)
	}
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}

	t.volume += setBalance(ch, msg.Balance)
	ch.Sequence = msg.Sequence
	ch.LastUpdate = t.now
	if t.conf.ChallengePolicy == PolicyExtend {
		ch.ChallengeExpiresAt = t.now.AddSeconds(ch.ChallengePeriod)
	}
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	t.emit(ch, ChannelChallenged{
		Sequence:           ch.Sequence,
		Balance:            ch.CurrentBalance,
		Spent:              ch.TotalSpent,
		ChallengeExpiresAt: ch.ChallengeExpiresAt,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "balance", ch.CurrentBalance)
	return ch, nil
}

// FinalizeClose settles a closing channel once its challenge window is
// over.
func (c *Controller) FinalizeClose(ctx context.Context, channelID string) (*Channel, error) {
	const op = "finalize"
	if err := validChannelID(channelID); err != nil {
		return nil, c.reject(ctx, op, channelID, err)
	}
	t, err := c.begin(ctx, channelID)
	if err != nil {
		return nil, c.reject(ctx, op, channelID, err)
	}
	defer t.end()

	ch, err := c.channels.GetChannel(t.db, channelID)
	if err != nil {
		return nil, c.reject(ctx, op, channelID, err)
	}
	if ch.Status != StatusClosing {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrNotInChallengePeriod, "status %s", ch.Status))
	}
	if t.now.Before(ch.ChallengeExpiresAt) {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrChallengePeriodNotExpired, "until %s", ch.ChallengeExpiresAt))
	}
	if err := c.settle(t, ch, false); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch)
	return ch, nil
}

// settle pays the balance back to the payer and the spent value to the
// provider, then closes the channel. An open dispute is escalated.
func (c *Controller) settle(t *txn, ch *Channel, cooperative bool) error {
	c.lockWallets(t, ch.Payer, ch.Provider)
	if ch.CurrentBalance > 0 {
		if err := c.escrow.Payout(t.db, ch.ID, ch.Payer, ch.CurrentBalance); err != nil {
			return err
		}
	}
	if ch.TotalSpent > 0 {
		if err := c.escrow.Payout(t.db, ch.ID, ch.Provider, ch.TotalSpent); err != nil {
			return err
		}
	}
	var escalated int64
	if ch.OpenDispute != 0 {
		d, err := c.disputes.GetDispute(t.db, ch.OpenDispute)
		if err != nil {
			return err
		}
		d.Status = DisputeStatusEscalated
		if err := c.disputes.SaveDispute(t.db, d); err != nil {
			return err
		}
		escalated = d.ID
		ch.OpenDispute = 0
	}
	ch.Status = StatusClosed
	ch.ChallengeExpiresAt = 0
	ch.LastUpdate = t.now
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return err
	}
	t.emit(ch, ChannelClosed{
		Sequence:         ch.Sequence,
		PayerPaid:        ch.CurrentBalance,
		ProviderPaid:     ch.TotalSpent,
		Cooperative:      cooperative,
		EscalatedDispute: escalated,
	})
	return nil
}

// expiresAt returns now moved by duration seconds or false on overflow.
func expiresAt(now microchan.UnixTime, duration int64) (microchan.UnixTime, bool) {
	if duration > math.MaxInt64-int64(now) {
		return 0, false
	}
	return now.AddSeconds(duration), true
}
