package paychan

import (
	"bytes"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
)

func validChannelID(id string) error {
	if !isChannelID(id) {
		return errors.Field("ChannelID", errors.ErrInput, "invalid channel id %q", id)
	}
	return nil
}

// CreateMsg opens a channel. The payer signs OpenDigest.
type CreateMsg struct {
	ID             string
	Payer          microchan.Address
	Provider       microchan.Address
	InitialDeposit uint64
	// Duration in seconds.
	Duration  int64
	Memo      string
	Signature []byte
}

func (m *CreateMsg) Validate() error {
	if m.InitialDeposit == 0 {
		return errors.Wrap(ErrInvalidDeposit, "deposit must be positive")
	}
	if m.Duration <= 0 {
		return errors.Wrap(ErrInvalidDuration, "duration must be positive")
	}
	var errs error
	if !isChannelID(m.ID) {
		errs = errors.Append(errs, errors.Field("ID", errors.ErrInput, "invalid channel id %q", m.ID))
	}
	errs = errors.AppendField(errs, "Payer", m.Payer.Validate())
	errs = errors.AppendField(errs, "Provider", m.Provider.Validate())
	if m.Payer.Equals(m.Provider) {
		errs = errors.Append(errs, errors.Field("Provider", errors.ErrInput, "payer and provider must differ"))
	}
	if len(m.Memo) > maxMemoSize {
		errs = errors.Append(errs, errors.Field("Memo", errors.ErrInput, "cannot be longer than %d", maxMemoSize))
	}
	return errs
}

// PaymentMsg transfers Amount from the channel balance to the provider.
// The payer signs PaymentDigest for the next sequence.
type PaymentMsg struct {
	ChannelID string
	Amount    uint64
	Service   ServiceData
	Signature []byte
}

func (m *PaymentMsg) Validate() error {
	if m.Amount == 0 {
		return errors.Wrap(ErrInvalidAmount, "amount must be positive")
	}
	return errors.Append(validChannelID(m.ChannelID), errors.AppendField(nil, "Service", m.Service.Validate()))
}

// UpdateMsg replaces the channel balance with a state signed off-chain.
// The party ceding value must sign UpdateDigest. When both signatures are
// given both must be valid.
type UpdateMsg struct {
	ChannelID         string
	NewBalance        uint64
	Sequence          uint64
	PayerSignature    []byte
	ProviderSignature []byte
}

func (m *UpdateMsg) Validate() error {
	return validChannelID(m.ChannelID)
}

// FinalState carries the joint signature over FinalDigest that allows a
// cooperative close.
type FinalState struct {
	PayerSignature    []byte
	ProviderSignature []byte
}

// CloseMsg closes a channel. With Final set the channel settles at once,
// otherwise the closer signs CloseDigest and the challenge window opens.
type CloseMsg struct {
	ChannelID string
	Closer    microchan.Address
	Signature []byte
	Final     *FinalState
}

func (m *CloseMsg) Validate() error {
	if m.Final != nil {
		return validChannelID(m.ChannelID)
	}
	return errors.Append(validChannelID(m.ChannelID), errors.AppendField(nil, "Closer", m.Closer.Validate()))
}

// ChallengeMsg presents a newer state while the channel is closing.
type ChallengeMsg struct {
	ChannelID         string
	Sequence          uint64
	Balance           uint64
	PayerSignature    []byte
	ProviderSignature []byte
}

func (m *ChallengeMsg) Validate() error {
	return validChannelID(m.ChannelID)
}

// EvidenceInput is the evidence supplied with a dispute. DataHash may be
// left empty, when given it must match the digest of Data.
type EvidenceInput struct {
	Type        EvidenceType
	Description string
	Data        []byte
	DataHash    []byte
}

// DisputeMsg contests one payment. The filer signs DisputeDigest.
type DisputeMsg struct {
	ChannelID string
	PaymentID string
	Filer     microchan.Address
	Evidence  EvidenceInput
	Signature []byte
}

// evidence returns the evidence record with the hash filled in.
func (m *DisputeMsg) evidence(now microchan.UnixTime) Evidence {
	return Evidence{
		Type:        m.Evidence.Type,
		Description: m.Evidence.Description,
		Data:        m.Evidence.Data,
		DataHash:    EvidenceHash(m.Evidence.Data),
		Timestamp:   now,
	}
}

func (m *DisputeMsg) Validate() error {
	errs := validChannelID(m.ChannelID)
	if ch, _, err := ParsePaymentID(m.PaymentID); err != nil {
		errs = errors.AppendField(errs, "PaymentID", err)
	} else if ch != m.ChannelID {
		errs = errors.Append(errs, errors.Field("PaymentID", errors.ErrInput, "belongs to another channel"))
	}
	errs = errors.AppendField(errs, "Filer", m.Filer.Validate())
	ev := m.evidence(0)
	if len(m.Evidence.DataHash) != 0 && !bytes.Equal(ev.DataHash, m.Evidence.DataHash) {
		errs = errors.Append(errs, errors.Field("Evidence.DataHash", errors.ErrInput, "does not match data"))
	}
	errs = errors.AppendField(errs, "Evidence", ev.Validate())
	return errs
}

// ResolveMsg settles the open dispute of a channel. The authority signs
// ResolveDigest.
type ResolveMsg struct {
	ChannelID string
	Authority microchan.Address
	Outcome   Outcome
	Amount    uint64
	Reasoning string
	Signature []byte
}

func (m *ResolveMsg) Validate() error {
	errs := validChannelID(m.ChannelID)
	errs = errors.AppendField(errs, "Authority", m.Authority.Validate())
	errs = errors.AppendField(errs, "Outcome", m.Outcome.Validate())
	if len(m.Reasoning) > maxDescSize {
		errs = errors.Append(errs, errors.Field("Reasoning", errors.ErrInput, "cannot be longer than %d", maxDescSize))
	}
	return errs
}
