package paychan

import (
	"encoding/json"

	"github.com/iov-one/microchan/errors"
)

// enum maps the values of a small integer type to their names. Value 0 is
// always invalid.
type enum []string

func (e enum) name(v int32) string {
	if v <= 0 || int(v) >= len(e) {
		return "Invalid"
	}
	return e[v]
}

func (e enum) valid(v int32) bool {
	return v > 0 && int(v) < len(e)
}

func (e enum) parse(raw []byte, what string) (int32, error) {
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, errors.Wrapf(errors.ErrInput, "%s must be a string", what)
	}
	for i, n := range e {
		if i > 0 && n == s {
			return int32(i), nil
		}
	}
	return 0, errors.Wrapf(errors.ErrInput, "unknown %s %q", what, s)
}

// Status is the state of a channel.
type Status int32

const (
	StatusActive Status = iota + 1
	StatusClosing
	StatusDisputed
	StatusClosed
)

var statusNames = enum{"", "Active", "Closing", "Disputed", "Closed"}

func (s Status) String() string { return statusNames.name(int32(s)) }
func (s Status) Validate() error { return validEnum(statusNames, int32(s), "status") }
func (s Status) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
func (s *Status) UnmarshalJSON(raw []byte) error {
	v, err := statusNames.parse(raw, "status")
	*s = Status(v)
	return err
}

// ServiceType classifies the service a payment is made for.
type ServiceType int32

const (
	ServiceDataTransfer ServiceType = iota + 1
	ServiceVoiceCall
	ServiceVideoStream
	ServiceWebBrowsing
	ServiceFileDownload
)

var serviceNames = enum{"", "DataTransfer", "VoiceCall", "VideoStream", "WebBrowsing", "FileDownload"}

func (s ServiceType) String() string { return serviceNames.name(int32(s)) }
func (s ServiceType) Validate() error { return validEnum(serviceNames, int32(s), "service type") }
func (s ServiceType) MarshalJSON() ([]byte, error) { return json.Marshal(s.String()) }
func (s *ServiceType) UnmarshalJSON(raw []byte) error {
	v, err := serviceNames.parse(raw, "service type")
	*s = ServiceType(v)
	return err
}

// EvidenceType classifies the evidence attached to a dispute.
type EvidenceType int32

const (
	EvidenceServiceLog EvidenceType = iota + 1
	EvidenceQualityMeasurement
	EvidenceNetworkTrace
	EvidenceUserComplaint
)

var evidenceNames = enum{"", "ServiceLog", "QualityMeasurement", "NetworkTrace", "UserComplaint"}

func (e EvidenceType) String() string { return evidenceNames.name(int32(e)) }
func (e EvidenceType) Validate() error { return validEnum(evidenceNames, int32(e), "evidence type") }
func (e EvidenceType) MarshalJSON() ([]byte, error) { return json.Marshal(e.String()) }
func (e *EvidenceType) UnmarshalJSON(raw []byte) error {
	v, err := evidenceNames.parse(raw, "evidence type")
	*e = EvidenceType(v)
	return err
}

// DisputeStatus is the state of a dispute.
type DisputeStatus int32

const (
	DisputeStatusOpen DisputeStatus = iota + 1
	DisputeStatusResolved
	// DisputeStatusEscalated marks a dispute that was still open when the
	// channel settled.
	DisputeStatusEscalated
)

var disputeStatusNames = enum{"", "Open", "Resolved", "Escalated"}

func (d DisputeStatus) String() string { return disputeStatusNames.name(int32(d)) }
func (d DisputeStatus) Validate() error { return validEnum(disputeStatusNames, int32(d), "dispute status") }
func (d DisputeStatus) MarshalJSON() ([]byte, error) { return json.Marshal(d.String()) }
func (d *DisputeStatus) UnmarshalJSON(raw []byte) error {
	v, err := disputeStatusNames.parse(raw, "dispute status")
	*d = DisputeStatus(v)
	return err
}

// Outcome is the decision of the arbitration authority.
type Outcome int32

const (
	// FavorUser refunds the full amount to the payer.
	FavorUser Outcome = iota + 1
	// FavorOperator leaves the balances unchanged.
	FavorOperator
	// PartialRefund refunds half of the amount to the payer.
	PartialRefund
)

var outcomeNames = enum{"", "FavorUser", "FavorOperator", "PartialRefund"}

func (o Outcome) String() string { return outcomeNames.name(int32(o)) }
func (o Outcome) Validate() error { return validEnum(outcomeNames, int32(o), "outcome") }
func (o Outcome) MarshalJSON() ([]byte, error) { return json.Marshal(o.String()) }
func (o *Outcome) UnmarshalJSON(raw []byte) error {
	v, err := outcomeNames.parse(raw, "outcome")
	*o = Outcome(v)
	return err
}

// Refund returns the value moved back to the payer for a disputed amount.
func (o Outcome) Refund(amount uint64) uint64 {
	switch o {
	case FavorUser:
		return amount
	case PartialRefund:
		return amount / 2
	default:
		return 0
	}
}

func validEnum(e enum, v int32, what string) error {
	if !e.valid(v) {
		return errors.Wrapf(errors.ErrInput, "invalid %s %d", what, v)
	}
	return nil
}
