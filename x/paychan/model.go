package paychan

import (
	"bytes"
	"encoding/binary"
	"regexp"
	"strconv"
	"strings"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/orm"
	"golang.org/x/crypto/blake2b"
)

const (
	maxMemoSize     = 128
	maxMetadataSize = 1024
	maxDescSize     = 1024
	maxEvidenceSize = 16 * 1024
	maxQualityScore = 100
)

var isChannelID = regexp.MustCompile(`^[a-zA-Z0-9_.\-]{3,64}$`).MatchString

// Channel is the state of a payment channel between a payer and a
// provider.
type Channel struct {
	ID             string             `json:"id"`
	Payer          microchan.Address  `json:"payer"`
	Provider       microchan.Address  `json:"provider"`
	InitialDeposit uint64             `json:"initial_deposit"`
	CurrentBalance uint64             `json:"current_balance"`
	TotalSpent     uint64             `json:"total_spent"`
	Sequence       uint64             `json:"sequence"`
	Status         Status             `json:"status"`
	CreatedAt      microchan.UnixTime `json:"created_at"`
	ExpiresAt      microchan.UnixTime `json:"expires_at"`
	// ChallengePeriod in seconds, copied from the configuration when the
	// channel was created.
	ChallengePeriod    int64              `json:"challenge_period"`
	ChallengeExpiresAt microchan.UnixTime `json:"challenge_expires_at,omitempty"`
	LastUpdate         microchan.UnixTime `json:"last_update"`
	Memo               string             `json:"memo,omitempty"`
	// OpenDispute is the ID of the dispute that is not resolved yet, or
	// zero.
	OpenDispute int64 `json:"open_dispute,omitempty"`
}

var _ orm.Model = (*Channel)(nil)

func (c *Channel) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(c)
}

func (c *Channel) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, c)
}

// Validate checks the channel invariants.
func (c *Channel) Validate() error {
	var errs error
	if !isChannelID(c.ID) {
		errs = errors.AppendField(errs, "ID", errors.ErrInput)
	}
	errs = errors.AppendField(errs, "Payer", c.Payer.Validate())
	errs = errors.AppendField(errs, "Provider", c.Provider.Validate())
	if c.Payer.Equals(c.Provider) {
		errs = errors.Append(errs, errors.Field("Provider", errors.ErrInput, "payer and provider must differ"))
	}
	if c.InitialDeposit == 0 {
		errs = errors.AppendField(errs, "InitialDeposit", ErrInvalidDeposit)
	}
	if c.CurrentBalance > c.InitialDeposit {
		errs = errors.AppendField(errs, "CurrentBalance", ErrInvalidBalance)
	}
	if c.CurrentBalance+c.TotalSpent != c.InitialDeposit {
		errs = errors.Append(errs, errors.Field("TotalSpent", errors.ErrModel,
			"balance %d and spent %d do not add up to deposit %d", c.CurrentBalance, c.TotalSpent, c.InitialDeposit))
	}
	errs = errors.AppendField(errs, "Status", c.Status.Validate())
	if c.ExpiresAt <= c.CreatedAt {
		errs = errors.AppendField(errs, "ExpiresAt", ErrInvalidDuration)
	}
	if c.ChallengePeriod <= 0 {
		errs = errors.AppendField(errs, "ChallengePeriod", errors.ErrModel)
	}
	if (c.Status == StatusClosing) != !c.ChallengeExpiresAt.IsZero() {
		errs = errors.Append(errs, errors.Field("ChallengeExpiresAt", errors.ErrModel, "set only while closing"))
	}
	if len(c.Memo) > maxMemoSize {
		errs = errors.Append(errs, errors.Field("Memo", errors.ErrInput, "cannot be longer than %d", maxMemoSize))
	}
	return errs
}

// Copy returns an independent copy of the channel.
func (c *Channel) Copy() *Channel {
	cpy := *c
	cpy.Payer = append(microchan.Address(nil), c.Payer...)
	cpy.Provider = append(microchan.Address(nil), c.Provider...)
	return &cpy
}

// IsParty returns true if addr is the payer or the provider.
func (c *Channel) IsParty(addr microchan.Address) bool {
	return c.Payer.Equals(addr) || c.Provider.Equals(addr)
}

// ServiceData describes the service a payment is made for. It is covered
// by the payment signature.
type ServiceData struct {
	Type ServiceType `json:"type"`
	// DataAmount in bytes.
	DataAmount uint64 `json:"data_amount"`
	// QualityScore from 0 to 100.
	QualityScore uint32 `json:"quality_score"`
	// Duration in seconds.
	Duration uint64 `json:"duration"`
	Metadata []byte `json:"metadata,omitempty"`
}

func (s ServiceData) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Type", s.Type.Validate())
	if s.QualityScore > maxQualityScore {
		errs = errors.Append(errs, errors.Field("QualityScore", errors.ErrInput, "must be between 0 and %d", maxQualityScore))
	}
	if len(s.Metadata) > maxMetadataSize {
		errs = errors.Append(errs, errors.Field("Metadata", errors.ErrInput, "cannot be longer than %d", maxMetadataSize))
	}
	return errs
}

// Payment is the immutable record of one accepted payment.
type Payment struct {
	ChannelID string             `json:"channel_id"`
	Sequence  uint64             `json:"sequence"`
	Amount    uint64             `json:"amount"`
	Service   ServiceData        `json:"service"`
	Timestamp microchan.UnixTime `json:"timestamp"`
}

var _ orm.Model = (*Payment)(nil)

func (p *Payment) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(p)
}

func (p *Payment) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, p)
}

func (p *Payment) Validate() error {
	var errs error
	if !isChannelID(p.ChannelID) {
		errs = errors.AppendField(errs, "ChannelID", errors.ErrInput)
	}
	if p.Sequence == 0 {
		errs = errors.AppendField(errs, "Sequence", ErrInvalidSequence)
	}
	if p.Amount == 0 {
		errs = errors.AppendField(errs, "Amount", ErrInvalidAmount)
	}
	errs = errors.AppendField(errs, "Service", p.Service.Validate())
	return errs
}

// ID returns the public identifier of the payment.
func (p *Payment) ID() string {
	return PaymentID(p.ChannelID, p.Sequence)
}

// PaymentID returns "<channel id>/<sequence>".
func PaymentID(channelID string, seq uint64) string {
	return channelID + "/" + strconv.FormatUint(seq, 10)
}

// ParsePaymentID splits a payment identifier into its channel id and
// sequence.
func ParsePaymentID(id string) (string, uint64, error) {
	i := strings.LastIndexByte(id, '/')
	if i < 0 {
		return "", 0, errors.Wrapf(errors.ErrInput, "malformed payment id %q", id)
	}
	seq, err := strconv.ParseUint(id[i+1:], 10, 64)
	if err != nil || seq == 0 || !isChannelID(id[:i]) {
		return "", 0, errors.Wrapf(errors.ErrInput, "malformed payment id %q", id)
	}
	return id[:i], seq, nil
}

// paymentKey orders payments of a channel by sequence.
func paymentKey(channelID string, seq uint64) []byte {
	key := make([]byte, 0, len(channelID)+9)
	key = append(key, channelID...)
	key = append(key, '/')
	var raw [8]byte
	binary.BigEndian.PutUint64(raw[:], seq)
	return append(key, raw[:]...)
}

// Evidence supports a dispute. DataHash is the blake2b-256 digest of Data.
type Evidence struct {
	Type        EvidenceType       `json:"type"`
	Description string             `json:"description"`
	Data        []byte             `json:"data,omitempty"`
	DataHash    []byte             `json:"data_hash"`
	Timestamp   microchan.UnixTime `json:"timestamp"`
}

// EvidenceHash returns the digest stored with evidence data.
func EvidenceHash(data []byte) []byte {
	h := blake2b.Sum256(data)
	return h[:]
}

func (e Evidence) Validate() error {
	var errs error
	errs = errors.AppendField(errs, "Type", e.Type.Validate())
	if len(e.Description) > maxDescSize {
		errs = errors.Append(errs, errors.Field("Description", errors.ErrInput, "cannot be longer than %d", maxDescSize))
	}
	if len(e.Data) > maxEvidenceSize {
		errs = errors.Append(errs, errors.Field("Data", errors.ErrInput, "cannot be longer than %d", maxEvidenceSize))
	}
	if !bytes.Equal(e.DataHash, EvidenceHash(e.Data)) {
		errs = errors.Append(errs, errors.Field("DataHash", errors.ErrInput, "does not match data"))
	}
	return errs
}

// Resolution is the decision of the arbitration authority.
type Resolution struct {
	Outcome   Outcome `json:"outcome"`
	Amount    uint64  `json:"amount"`
	Reasoning string  `json:"reasoning"`
	// Refunded is the value moved back to the payer.
	Refunded uint64 `json:"refunded"`
}

// Dispute contests a single payment of a channel.
type Dispute struct {
	ID         int64              `json:"id"`
	ChannelID  string             `json:"channel_id"`
	PaymentID  string             `json:"payment_id"`
	Filer      microchan.Address  `json:"filer"`
	Evidence   Evidence           `json:"evidence"`
	Status     DisputeStatus      `json:"status"`
	Resolution *Resolution        `json:"resolution,omitempty"`
	CreatedAt  microchan.UnixTime `json:"created_at"`
	ResolvedAt microchan.UnixTime `json:"resolved_at,omitempty"`
}

var _ orm.Model = (*Dispute)(nil)

func (d *Dispute) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(d)
}

func (d *Dispute) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, d)
}

func (d *Dispute) Validate() error {
	var errs error
	if d.ID <= 0 {
		errs = errors.AppendField(errs, "ID", errors.ErrModel)
	}
	if !isChannelID(d.ChannelID) {
		errs = errors.AppendField(errs, "ChannelID", errors.ErrInput)
	}
	if ch, _, err := ParsePaymentID(d.PaymentID); err != nil {
		errs = errors.AppendField(errs, "PaymentID", err)
	} else if ch != d.ChannelID {
		errs = errors.Append(errs, errors.Field("PaymentID", errors.ErrInput, "belongs to another channel"))
	}
	errs = errors.AppendField(errs, "Filer", d.Filer.Validate())
	errs = errors.AppendField(errs, "Evidence", d.Evidence.Validate())
	errs = errors.AppendField(errs, "Status", d.Status.Validate())
	if (d.Status == DisputeStatusResolved) != (d.Resolution != nil) {
		errs = errors.Append(errs, errors.Field("Resolution", errors.ErrModel, "required only when resolved"))
	}
	return errs
}

func disputeKey(id int64) []byte {
	return orm.EncodeSequence(id)
}

// Stats are the aggregated figures over all channels.
type Stats struct {
	Authority     microchan.Address `json:"authority"`
	TotalChannels uint64            `json:"total_channels"`
	// TotalVolume is the sum of all value moved to providers by accepted
	// payments, updates and challenges.
	TotalVolume uint64 `json:"total_volume"`
}

func (s *Stats) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(s)
}

func (s *Stats) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, s)
}

// ChannelBucket stores channels by ID.
type ChannelBucket struct {
	orm.Bucket
}

// NewChannelBucket returns a bucket for managing channels.
func NewChannelBucket() ChannelBucket {
	return ChannelBucket{
		Bucket: orm.NewBucket("chan", orm.NewSimpleObj(nil, &Channel{})),
	}
}

// GetChannel returns the channel with given ID or errors.ErrNotFound.
func (b ChannelBucket) GetChannel(db microchan.ReadOnlyKVStore, id string) (*Channel, error) {
	obj, err := b.Get(db, []byte(id))
	if err != nil {
		return nil, err
	}
	if obj == nil || obj.Value() == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "channel %q", id)
	}
	ch, ok := obj.Value().(*Channel)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, obj.Value())
	}
	return ch, nil
}

// SaveChannel validates and stores the channel.
func (b ChannelBucket) SaveChannel(db microchan.KVStore, ch *Channel) error {
	return b.Save(db, orm.NewSimpleObj([]byte(ch.ID), ch))
}

// PaymentBucket stores payments ordered by channel and sequence.
type PaymentBucket struct {
	orm.Bucket
}

// NewPaymentBucket returns a bucket for managing payments.
func NewPaymentBucket() PaymentBucket {
	return PaymentBucket{
		Bucket: orm.NewBucket("pay", orm.NewSimpleObj(nil, &Payment{})),
	}
}

// GetPayment returns the payment or errors.ErrNotFound.
func (b PaymentBucket) GetPayment(db microchan.ReadOnlyKVStore, channelID string, seq uint64) (*Payment, error) {
	obj, err := b.Get(db, paymentKey(channelID, seq))
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "payment %s", PaymentID(channelID, seq))
	}
	return obj.Value().(*Payment), nil
}

// Create stores a new payment.
func (b PaymentBucket) Create(db microchan.KVStore, p *Payment) error {
	return b.Save(db, orm.NewSimpleObj(paymentKey(p.ChannelID, p.Sequence), p))
}

// ByChannel returns all payments of a channel ordered by sequence.
func (b PaymentBucket) ByChannel(db microchan.ReadOnlyKVStore, channelID string) ([]*Payment, error) {
	objs, err := b.PrefixScan(db, []byte(channelID+"/"), false, 0)
	if err != nil {
		return nil, err
	}
	res := make([]*Payment, len(objs))
	for i, o := range objs {
		res[i] = o.Value().(*Payment)
	}
	return res, nil
}

// DisputeBucket stores disputes by ID and indexes them by channel.
type DisputeBucket struct {
	orm.Bucket
}

// NewDisputeBucket returns a bucket for managing disputes.
func NewDisputeBucket() DisputeBucket {
	b := orm.NewBucket("disp", orm.NewSimpleObj(nil, &Dispute{})).
		WithIndex("channel", disputeChannelIndex, false)
	return DisputeBucket{Bucket: b}
}

func disputeChannelIndex(obj orm.Object) ([]byte, error) {
	d, ok := obj.Value().(*Dispute)
	if !ok {
		return nil, errors.WithType(errors.ErrModel, obj.Value())
	}
	return []byte(d.ChannelID), nil
}

// GetDispute returns the dispute or errors.ErrNotFound.
func (b DisputeBucket) GetDispute(db microchan.ReadOnlyKVStore, id int64) (*Dispute, error) {
	obj, err := b.Get(db, disputeKey(id))
	if err != nil {
		return nil, err
	}
	if obj == nil {
		return nil, errors.Wrapf(errors.ErrNotFound, "dispute %d", id)
	}
	return obj.Value().(*Dispute), nil
}

// SaveDispute validates and stores the dispute.
func (b DisputeBucket) SaveDispute(db microchan.KVStore, d *Dispute) error {
	return b.Save(db, orm.NewSimpleObj(disputeKey(d.ID), d))
}

// ByChannel returns all disputes filed for a channel, oldest first.
func (b DisputeBucket) ByChannel(db microchan.ReadOnlyKVStore, channelID string) ([]*Dispute, error) {
	objs, err := b.GetIndexed(db, "channel", []byte(channelID))
	if err != nil {
		return nil, err
	}
	res := make([]*Dispute, len(objs))
	for i, o := range objs {
		res[i] = o.Value().(*Dispute)
	}
	return res, nil
}
