package paychan

import (
	"math"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/orm"
)

// EventKind names an accepted transition.
type EventKind string

const (
	KindChannelCreated      EventKind = "ChannelCreated"
	KindPaymentMade         EventKind = "PaymentMade"
	KindChannelUpdated      EventKind = "ChannelUpdated"
	KindChannelClosing      EventKind = "ChannelClosing"
	KindChannelChallenged   EventKind = "ChannelChallenged"
	KindChannelClosed       EventKind = "ChannelClosed"
	KindTransactionDisputed EventKind = "TransactionDisputed"
	KindDisputeResolved     EventKind = "DisputeResolved"
)

// EventData is the payload of an event. Each kind has its own type.
type EventData interface {
	Kind() EventKind
}

type ChannelCreated struct {
	Payer           microchan.Address  `json:"payer"`
	Provider        microchan.Address  `json:"provider"`
	Deposit         uint64             `json:"deposit"`
	ExpiresAt       microchan.UnixTime `json:"expires_at"`
	ChallengePeriod int64              `json:"challenge_period"`
}

type PaymentMade struct {
	PaymentID string `json:"payment_id"`
	Sequence  uint64 `json:"sequence"`
	Amount    uint64 `json:"amount"`
	Balance   uint64 `json:"balance"`
	// QualityScore of the paid service, kept for reward collaborators.
	QualityScore uint32      `json:"quality_score"`
	ServiceType  ServiceType `json:"service_type"`
}

type ChannelUpdated struct {
	Sequence uint64 `json:"sequence"`
	Balance  uint64 `json:"balance"`
	Spent    uint64 `json:"spent"`
}

type ChannelClosing struct {
	Closer             microchan.Address  `json:"closer"`
	Sequence           uint64             `json:"sequence"`
	ChallengeExpiresAt microchan.UnixTime `json:"challenge_expires_at"`
}

type ChannelChallenged struct {
	Sequence           uint64             `json:"sequence"`
	Balance            uint64             `json:"balance"`
	Spent              uint64             `json:"spent"`
	ChallengeExpiresAt microchan.UnixTime `json:"challenge_expires_at"`
}

type ChannelClosed struct {
	Sequence     uint64 `json:"sequence"`
	PayerPaid    uint64 `json:"payer_paid"`
	ProviderPaid uint64 `json:"provider_paid"`
	Cooperative  bool   `json:"cooperative"`
	// EscalatedDispute is the dispute that was still open at settlement.
	EscalatedDispute int64 `json:"escalated_dispute,omitempty"`
}

type TransactionDisputed struct {
	DisputeID    int64             `json:"dispute_id"`
	PaymentID    string            `json:"payment_id"`
	Filer        microchan.Address `json:"filer"`
	EvidenceType EvidenceType      `json:"evidence_type"`
}

type DisputeResolved struct {
	DisputeID int64   `json:"dispute_id"`
	Outcome   Outcome `json:"outcome"`
	Amount    uint64  `json:"amount"`
	Refunded  uint64  `json:"refunded"`
	Balance   uint64  `json:"balance"`
}

func (ChannelCreated) Kind() EventKind      { return KindChannelCreated }
func (PaymentMade) Kind() EventKind         { return KindPaymentMade }
func (ChannelUpdated) Kind() EventKind      { return KindChannelUpdated }
func (ChannelClosing) Kind() EventKind      { return KindChannelClosing }
func (ChannelChallenged) Kind() EventKind   { return KindChannelChallenged }
func (ChannelClosed) Kind() EventKind       { return KindChannelClosed }
func (TransactionDisputed) Kind() EventKind { return KindTransactionDisputed }
func (DisputeResolved) Kind() EventKind     { return KindDisputeResolved }

func init() {
	cdc := microchan.Codec
	cdc.RegisterInterface((*EventData)(nil), nil)
	cdc.RegisterConcrete(ChannelCreated{}, "paychan/ChannelCreated", nil)
	cdc.RegisterConcrete(PaymentMade{}, "paychan/PaymentMade", nil)
	cdc.RegisterConcrete(ChannelUpdated{}, "paychan/ChannelUpdated", nil)
	cdc.RegisterConcrete(ChannelClosing{}, "paychan/ChannelClosing", nil)
	cdc.RegisterConcrete(ChannelChallenged{}, "paychan/ChannelChallenged", nil)
	cdc.RegisterConcrete(ChannelClosed{}, "paychan/ChannelClosed", nil)
	cdc.RegisterConcrete(TransactionDisputed{}, "paychan/TransactionDisputed", nil)
	cdc.RegisterConcrete(DisputeResolved{}, "paychan/DisputeResolved", nil)
}

// Event is one entry of the append-only event log.
type Event struct {
	// Seq is global and strictly increasing from 1.
	Seq       uint64             `json:"seq"`
	Kind      EventKind          `json:"kind"`
	ChannelID string             `json:"channel_id"`
	Time      microchan.UnixTime `json:"time"`
	Data      EventData          `json:"data"`
}

var _ orm.Model = (*Event)(nil)

func (e *Event) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(e)
}

func (e *Event) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, e)
}

func (e *Event) Validate() error {
	if e.Seq == 0 {
		return errors.Field("Seq", errors.ErrModel, "must be positive")
	}
	if e.Data == nil {
		return errors.Field("Data", errors.ErrEmpty, "missing payload")
	}
	if e.Kind != e.Data.Kind() {
		return errors.Field("Kind", errors.ErrModel, "%s does not match payload %s", e.Kind, e.Data.Kind())
	}
	return nil
}

// EventBucket stores the event log ordered by sequence.
type EventBucket struct {
	orm.Bucket
	seq orm.Sequence
}

// NewEventBucket returns the event log bucket.
func NewEventBucket() EventBucket {
	b := orm.NewBucket("evt", orm.NewSimpleObj(nil, &Event{}))
	return EventBucket{Bucket: b, seq: b.Sequence("seq")}
}

// Append assigns the next sequence numbers to the events and stores them.
func (b EventBucket) Append(db microchan.KVStore, events []*Event) error {
	if len(events) == 0 {
		return nil
	}
	last, err := b.seq.Advance(db, int64(len(events)))
	if err != nil {
		return err
	}
	first := uint64(last) - uint64(len(events)) + 1
	for i, e := range events {
		e.Seq = first + uint64(i)
		if err := b.Save(db, orm.NewSimpleObj(orm.EncodeSequence(int64(e.Seq)), e)); err != nil {
			return err
		}
	}
	return nil
}

// After returns at most limit events with a sequence greater than after.
func (b EventBucket) After(db microchan.ReadOnlyKVStore, after uint64, limit int) ([]*Event, error) {
	// Sequences are stored as int64, nothing follows the largest one.
	if after >= math.MaxInt64 {
		return nil, nil
	}
	objs, err := b.Range(db, orm.EncodeSequence(int64(after+1)), nil, false, limit)
	if err != nil {
		return nil, err
	}
	res := make([]*Event, len(objs))
	for i, o := range objs {
		res[i] = o.Value().(*Event)
	}
	return res, nil
}

// Last returns the sequence of the latest event.
func (b EventBucket) Last(db microchan.ReadOnlyKVStore) (uint64, error) {
	n, err := b.seq.Latest(db)
	return uint64(n), err
}
