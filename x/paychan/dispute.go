package paychan

import (
	"context"

	"github.com/iov-one/microchan/errors"
)

// DisputeTransaction contests one payment of an active channel. The channel
// is Disputed until the authority resolves it or the channel settles.
// A payment can be disputed once.
func (c *Controller) DisputeTransaction(ctx context.Context, msg *DisputeMsg) (*Dispute, error) {
	const op = "dispute"
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
	case ch.Status != StatusActive && ch.OpenDispute != 0:
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrChannelNotActive, "status %s, dispute %d open", ch.Status, ch.OpenDispute))
	case ch.Status != StatusActive:
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrChannelNotActive, "status %s", ch.Status))
	case !ch.IsParty(msg.Filer):
		return nil, c.reject(ctx, op, ch.ID, errors.Wrap(errors.ErrUnauthorized, "filer is not a party"))
	}
	channelID, seq, err := ParsePaymentID(msg.PaymentID)
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	if channelID != ch.ID {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(errors.ErrInput, "payment %s belongs to another channel", msg.PaymentID))
	}
	if _, err := c.payments.GetPayment(t.db, ch.ID, seq); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	history, err := c.disputes.ByChannel(t.db, ch.ID)
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	for _, d := range history {
		if d.PaymentID == msg.PaymentID {
			return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(errors.ErrDuplicate, "payment %s disputed by %d", d.PaymentID, d.ID))
		}
	}
	ev := msg.evidence(t.now)
	digest := DisputeDigest(t.conf.ChainID, ch.ID, msg.PaymentID, msg.Filer, ev.Type, ev.DataHash, ch.Sequence)
	if !c.verifier.Verify(msg.Filer, digest, msg.Signature) {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrInvalidSignature, "filer"))
	}

	d := &Dispute{
		ID:        c.node.Generate().Int64(),
		ChannelID: ch.ID,
		PaymentID: msg.PaymentID,
		Filer:     msg.Filer,
		Evidence:  ev,
		Status:    DisputeStatusOpen,
		CreatedAt: t.now,
	}
	if err := c.disputes.SaveDispute(t.db, d); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	ch.Status = StatusDisputed
	ch.OpenDispute = d.ID
	ch.LastUpdate = t.now
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	t.emit(ch, TransactionDisputed{
		DisputeID:    d.ID,
		PaymentID:    d.PaymentID,
		Filer:        d.Filer,
		EvidenceType: ev.Type,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "dispute", d.ID, "payment", d.PaymentID)
	return d, nil
}

// ResolveDispute applies the decision of the arbitration authority to the
// open dispute of a channel. A refund moves value from the spent side back
// to the channel balance. A disputed channel becomes active again, a
// closing channel stays closing.
func (c *Controller) ResolveDispute(ctx context.Context, msg *ResolveMsg) (*Dispute, error) {
	const op = "resolve"
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
	if ch.OpenDispute == 0 {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrDisputeNotOpen, "no open dispute"))
	}
	if !msg.Authority.Equals(t.conf.Authority) {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrap(errors.ErrUnauthorized, "not the arbitration authority"))
	}
	digest := ResolveDigest(t.conf.ChainID, ch.ID, ch.OpenDispute, msg.Outcome, msg.Amount, msg.Reasoning, ch.Sequence)
	if !c.verifier.Verify(msg.Authority, digest, msg.Signature) {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrap(ErrInvalidSignature, "authority"))
	}
	if msg.Amount > ch.TotalSpent {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrInvalidAmount, "amount %d exceeds spent %d", msg.Amount, ch.TotalSpent))
	}
	d, err := c.disputes.GetDispute(t.db, ch.OpenDispute)
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	_, seq, err := ParsePaymentID(d.PaymentID)
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	p, err := c.payments.GetPayment(t.db, ch.ID, seq)
	if err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	if msg.Amount > p.Amount {
		return nil, c.reject(ctx, op, ch.ID, errors.Wrapf(ErrInvalidAmount, "amount %d exceeds disputed payment %d", msg.Amount, p.Amount))
	}

	refund := msg.Outcome.Refund(msg.Amount)
	ch.CurrentBalance += refund
	ch.TotalSpent -= refund
	ch.OpenDispute = 0
	if ch.Status == StatusDisputed {
		ch.Status = StatusActive
	}
	ch.LastUpdate = t.now
	d.Status = DisputeStatusResolved
	d.Resolution = &Resolution{
		Outcome:   msg.Outcome,
		Amount:    msg.Amount,
		Reasoning: msg.Reasoning,
		Refunded:  refund,
	}
	d.ResolvedAt = t.now
	if err := c.disputes.SaveDispute(t.db, d); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	if err := c.channels.SaveChannel(t.db, ch); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	t.emit(ch, DisputeResolved{
		DisputeID: d.ID,
		Outcome:   msg.Outcome,
		Amount:    msg.Amount,
		Refunded:  refund,
		Balance:   ch.CurrentBalance,
	})
	if err := c.commit(ctx, t); err != nil {
		return nil, c.reject(ctx, op, ch.ID, err)
	}
	c.accepted(ctx, op, ch, "dispute", d.ID, "outcome", msg.Outcome.String(), "refunded", refund)
	return d, nil
}
