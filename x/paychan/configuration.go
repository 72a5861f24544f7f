package paychan

import (
	"encoding/json"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/gconf"
)

const packageName = "paychan"

// DefaultChallengePeriod is used when the configuration does not set one.
const DefaultChallengePeriod int64 = 3600

// Challenge policies decide what an accepted challenge does to the close
// deadline.
const (
	// PolicyFixed keeps the deadline set by the close request.
	PolicyFixed = "fixed"
	// PolicyExtend resets the deadline to now plus the challenge period.
	PolicyExtend = "extend"
)

// Configuration of the channel extension, stored as a singleton.
type Configuration struct {
	// ChainID is part of every signed digest.
	ChainID string `json:"chain_id"`
	// Authority resolves disputes.
	Authority microchan.Address `json:"authority"`
	// ChallengePeriod in seconds.
	ChallengePeriod int64  `json:"challenge_period"`
	ChallengePolicy string `json:"challenge_policy"`
	// MaxDuration in seconds limits the lifetime of new channels. Zero
	// means no limit.
	MaxDuration int64 `json:"max_duration"`
}

func (c *Configuration) Marshal() ([]byte, error) {
	return microchan.MarshalBinary(c)
}

func (c *Configuration) Unmarshal(raw []byte) error {
	return microchan.UnmarshalBinary(raw, c)
}

// Validate returns an error if the configuration cannot be used.
func (c *Configuration) Validate() error {
	var errs error
	if !microchan.IsValidChainID(c.ChainID) {
		errs = errors.Append(errs, errors.Field("ChainID", errors.ErrInput, "invalid chain id %q", c.ChainID))
	}
	errs = errors.AppendField(errs, "Authority", c.Authority.Validate())
	if c.ChallengePeriod <= 0 {
		errs = errors.Append(errs, errors.Field("ChallengePeriod", errors.ErrInput, "must be positive"))
	}
	switch c.ChallengePolicy {
	case PolicyFixed, PolicyExtend:
	default:
		errs = errors.Append(errs, errors.Field("ChallengePolicy", errors.ErrInput, "unknown policy %q", c.ChallengePolicy))
	}
	if c.MaxDuration < 0 {
		errs = errors.Append(errs, errors.Field("MaxDuration", errors.ErrInput, "cannot be negative"))
	}
	return errs
}

// UnmarshalJSON fills in defaults for values left out of the genesis file.
func (c *Configuration) UnmarshalJSON(raw []byte) error {
	type plain Configuration
	var p plain
	if err := json.Unmarshal(raw, &p); err != nil {
		return err
	}
	*c = Configuration(p)
	c.normalize()
	return nil
}

func (c *Configuration) normalize() {
	if c.ChallengePeriod == 0 {
		c.ChallengePeriod = DefaultChallengePeriod
	}
	if c.ChallengePolicy == "" {
		c.ChallengePolicy = PolicyFixed
	}
}

// SaveConfiguration validates and stores the configuration.
func SaveConfiguration(db gconf.Store, c *Configuration) error {
	c.normalize()
	return gconf.Save(db, packageName, c)
}

// LoadConfiguration returns the stored configuration.
func LoadConfiguration(db gconf.ReadStore) (*Configuration, error) {
	var conf Configuration
	if err := gconf.Load(db, packageName, &conf); err != nil {
		if errors.ErrNotFound.Is(err) {
			return nil, errors.Wrap(errors.ErrState, "paychan is not configured")
		}
		return nil, err
	}
	return &conf, nil
}
