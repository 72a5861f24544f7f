package api

import (
	"encoding/hex"
	"encoding/json"
	"math/big"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/shopspring/decimal"
)

// Hex is a byte slice that is hex encoded in JSON.
type Hex []byte

func (h Hex) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *Hex) UnmarshalJSON(raw []byte) error {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return errors.Wrap(errors.ErrInput, "hex value must be a string")
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return errors.Wrapf(errors.ErrInput, "invalid hex: %s", err)
	}
	*h = b
	return nil
}

// Denomination describes how raw amounts are displayed.
type Denomination struct {
	Symbol   string `json:"symbol"`
	Decimals int32  `json:"decimals"`
}

// Format renders v as a decimal number of whole units followed by the
// symbol.
func (d Denomination) Format(v uint64) string {
	s := decimal.NewFromBigInt(new(big.Int).SetUint64(v), -d.Decimals).StringFixed(d.Decimals)
	if d.Symbol == "" {
		return s
	}
	return s + " " + d.Symbol
}

type displayAmounts struct {
	Deposit string `json:"deposit"`
	Balance string `json:"balance"`
	Spent   string `json:"spent"`
}

type channelView struct {
	*paychan.Channel
	Display displayAmounts `json:"display"`
}

func (s *Server) viewChannel(ch *paychan.Channel) channelView {
	return channelView{
		Channel: ch,
		Display: displayAmounts{
			Deposit: s.denom.Format(ch.InitialDeposit),
			Balance: s.denom.Format(ch.CurrentBalance),
			Spent:   s.denom.Format(ch.TotalSpent),
		},
	}
}

type serviceBody struct {
	Type         paychan.ServiceType `json:"type"`
	DataAmount   uint64              `json:"data_amount"`
	QualityScore uint32              `json:"quality_score"`
	Duration     uint64              `json:"duration"`
	Metadata     Hex                 `json:"metadata,omitempty"`
}

func (b serviceBody) model() paychan.ServiceData {
	return paychan.ServiceData{
		Type:         b.Type,
		DataAmount:   b.DataAmount,
		QualityScore: b.QualityScore,
		Duration:     b.Duration,
		Metadata:     b.Metadata,
	}
}

func viewService(s paychan.ServiceData) serviceBody {
	return serviceBody{
		Type:         s.Type,
		DataAmount:   s.DataAmount,
		QualityScore: s.QualityScore,
		Duration:     s.Duration,
		Metadata:     s.Metadata,
	}
}

type paymentView struct {
	ID        string             `json:"id"`
	ChannelID string             `json:"channel_id"`
	Sequence  uint64             `json:"sequence"`
	Amount    uint64             `json:"amount"`
	Display   string             `json:"display"`
	Service   serviceBody        `json:"service"`
	Timestamp microchan.UnixTime `json:"timestamp"`
}

func (s *Server) viewPayment(p *paychan.Payment) paymentView {
	return paymentView{
		ID:        p.ID(),
		ChannelID: p.ChannelID,
		Sequence:  p.Sequence,
		Amount:    p.Amount,
		Display:   s.denom.Format(p.Amount),
		Service:   viewService(p.Service),
		Timestamp: p.Timestamp,
	}
}

type evidenceView struct {
	Type        paychan.EvidenceType `json:"type"`
	Description string               `json:"description"`
	Data        Hex                  `json:"data,omitempty"`
	DataHash    Hex                  `json:"data_hash"`
	Timestamp   microchan.UnixTime   `json:"timestamp"`
}

type disputeView struct {
	ID         int64                 `json:"id"`
	ChannelID  string                `json:"channel_id"`
	PaymentID  string                `json:"payment_id"`
	Filer      microchan.Address     `json:"filer"`
	Evidence   evidenceView          `json:"evidence"`
	Status     paychan.DisputeStatus `json:"status"`
	Resolution *paychan.Resolution   `json:"resolution,omitempty"`
	CreatedAt  microchan.UnixTime    `json:"created_at"`
	ResolvedAt microchan.UnixTime    `json:"resolved_at,omitempty"`
}

func viewDispute(d *paychan.Dispute) disputeView {
	return disputeView{
		ID:        d.ID,
		ChannelID: d.ChannelID,
		PaymentID: d.PaymentID,
		Filer:     d.Filer,
		Evidence: evidenceView{
			Type:        d.Evidence.Type,
			Description: d.Evidence.Description,
			Data:        d.Evidence.Data,
			DataHash:    d.Evidence.DataHash,
			Timestamp:   d.Evidence.Timestamp,
		},
		Status:     d.Status,
		Resolution: d.Resolution,
		CreatedAt:  d.CreatedAt,
		ResolvedAt: d.ResolvedAt,
	}
}
