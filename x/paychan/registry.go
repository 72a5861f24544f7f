package paychan

import (
	"context"

	"github.com/iov-one/microchan/errors"
)

// Create opens a channel and moves the deposit from the payer wallet into
// the channel escrow.
func (c *Controller) Create(ctx context.Context, msg *CreateMsg) (*Channel, error) {
	const op = "create"
	if err := msg.Validate(); err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	// The lock of the id being created makes the uniqueness check
	// atomic.
	t, err := c.begin(ctx, msg.ID)
	if err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	defer t.end()

	if t.conf.MaxDuration > 0 && msg.Duration > t.conf.MaxDuration {
		return nil, c.reject(ctx, op, msg.ID, errors.Wrapf(ErrInvalidDuration, "longer than %d", t.conf.MaxDuration))
	}
	expires, ok := expiresAt(t.now, msg.Duration)
	if !ok {
		return nil, c.reject(ctx, op, msg.ID, errors.Wrap(ErrInvalidDuration, "too long"))
	}
	exists, err := c.channels.Has(t.db, []byte(msg.ID))
	if err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	if exists {
		return nil, c.reject(ctx, op, msg.ID, errors.Wrapf(ErrDuplicateChannel, "channel %q", msg.ID))
	}
	if !c.verifier.Verify(msg.Payer, OpenDigest(t.conf.ChainID, msg), msg.Signature) {
		return nil, c.reject(ctx, op, msg.ID, errors.Wrap(ErrInvalidSignature, "payer"))
	}

	c.lockWallets(t, msg.Payer)
	if err := c.escrow.Deposit(t.db, msg.ID, msg.Payer, msg.InitialDeposit); err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	ch := &Channel{
		ID:              msg.ID,
		Payer:           msg.Payer,
		Provider:        msg.Provider,
		InitialDeposit:  msg.InitialDeposit,
		CurrentBalance:  msg.InitialDeposit,
		Status:          StatusActive,
		CreatedAt:       t.now,
		ExpiresAt:       expires,
		ChallengePeriod: t.conf.ChallengePeriod,
		LastUpdate:      t.now,
		Memo:            msg.Memo,
	}
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	t.channels++
	t.emit(ch, ChannelCreated{
		Payer:           ch.Payer,
		Provider:        ch.Provider,
		Deposit:         ch.InitialDeposit,
		ExpiresAt:       ch.ExpiresAt,
		ChallengePeriod: ch.ChallengePeriod,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, msg.ID, err)
	}
	c.accepted(ctx, op, ch, "deposit", ch.InitialDeposit)
	return ch, nil
}

// Get returns a snapshot of the channel or errors.ErrNotFound.
func (c *Controller) Get(ctx context.Context, id string) (*Channel, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.channels.GetChannel(c.db, id)
}

// Payments returns the payments of a channel ordered by sequence.
func (c *Controller) Payments(ctx context.Context, channelID string) ([]*Payment, error) {
	if _, err := c.Get(ctx, channelID); err != nil {
		return nil, err
	}
	return c.payments.ByChannel(c.db, channelID)
}

// Payment returns the payment with the given "<channel id>/<sequence>"
// identifier.
func (c *Controller) Payment(ctx context.Context, paymentID string) (*Payment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	channelID, seq, err := ParsePaymentID(paymentID)
	if err != nil {
		return nil, err
	}
	return c.payments.GetPayment(c.db, channelID, seq)
}

// Disputes returns the dispute history of a channel, oldest first.
func (c *Controller) Disputes(ctx context.Context, channelID string) ([]*Dispute, error) {
	if _, err := c.Get(ctx, channelID); err != nil {
		return nil, err
	}
	return c.disputes.ByChannel(c.db, channelID)
}

// Dispute returns a single dispute.
func (c *Controller) Dispute(ctx context.Context, id int64) (*Dispute, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return c.disputes.GetDispute(c.db, id)
}

// Stats returns the aggregated figures.
func (c *Controller) Stats(ctx context.Context) (*Stats, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return loadStats(c.db)
}

// Events returns at most limit events with a sequence greater than after.
// A limit of zero returns all of them.
func (c *Controller) Events(ctx context.Context, after uint64, limit int) ([]*Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if limit < 0 {
		return nil, errors.Wrap(errors.ErrInput, "negative limit")
	}
	return c.events.After(c.db, after, limit)
}

// Configuration returns the stored configuration.
func (c *Controller) Configuration(ctx context.Context) (*Configuration, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return LoadConfiguration(c.db)
}
