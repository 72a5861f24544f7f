package paychan

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/x/sigs"
)

// Operation tags keep signatures of different operations apart.
const (
	tagOpen      = "opn"
	tagPay       = "pay"
	tagUpdate    = "upd"
	tagClose     = "cls"
	tagFinal     = "fin"
	tagChallenge = "chl"
	tagDispute   = "dsp"
	tagResolve   = "res"
)

// OpenDigest is signed by the payer to create a channel. Creation always
// happens at sequence zero.
func OpenDigest(chainID string, msg *CreateMsg) []byte {
	return sigs.NewSignBuilder(chainID, tagOpen, msg.ID).
		Bytes(msg.Payer).
		Bytes(msg.Provider).
		Uint64(msg.InitialDeposit).
		Int64(msg.Duration).
		String(msg.Memo).
		Sum(0)
}

// PaymentDigest is signed by the payer. seq is the sequence the channel
// will have once the payment is accepted.
func PaymentDigest(chainID, channelID string, amount uint64, svc ServiceData, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagPay, channelID).
		Uint64(amount).
		Int64(int64(svc.Type)).
		Uint64(svc.DataAmount).
		Uint64(uint64(svc.QualityScore)).
		Uint64(svc.Duration).
		Bytes(svc.Metadata).
		Sum(seq)
}

// UpdateDigest is signed by the party ceding value in an update.
func UpdateDigest(chainID, channelID string, balance, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagUpdate, channelID).
		Uint64(balance).
		Sum(seq)
}

// CloseDigest is signed by the party requesting a unilateral close at the
// current channel sequence.
func CloseDigest(chainID, channelID string, closer microchan.Address, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagClose, channelID).
		Bytes(closer).
		Sum(seq)
}

// FinalDigest is signed by both parties to settle cooperatively.
func FinalDigest(chainID, channelID string, balance, spent, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagFinal, channelID).
		Uint64(balance).
		Uint64(spent).
		Sum(seq)
}

// ChallengeDigest is signed by the party ceding value to replace the
// closing state with a newer one.
func ChallengeDigest(chainID, channelID string, balance, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagChallenge, channelID).
		Uint64(balance).
		Sum(seq)
}

// DisputeDigest is signed by the filer at the current channel sequence.
func DisputeDigest(chainID, channelID, paymentID string, filer microchan.Address, ev EvidenceType, dataHash []byte, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagDispute, channelID).
		String(paymentID).
		Bytes(filer).
		Int64(int64(ev)).
		Bytes(dataHash).
		Sum(seq)
}

// ResolveDigest is signed by the arbitration authority at the current
// channel sequence.
func ResolveDigest(chainID, channelID string, disputeID int64, outcome Outcome, amount uint64, reasoning string, seq uint64) []byte {
	return sigs.NewSignBuilder(chainID, tagResolve, channelID).
		Int64(disputeID).
		Int64(int64(outcome)).
		Uint64(amount).
		String(reasoning).
		Sum(seq)
}
