package paychan

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
)

var statsKey = []byte("_s:paychan")

func loadStats(db microchan.ReadOnlyKVStore) (*Stats, error) {
	raw, err := db.Get(statsKey)
	if err != nil {
		return nil, errors.Wrap(err, "load stats")
	}
	var s Stats
	if raw == nil {
		return &s, nil
	}
	if err := s.Unmarshal(raw); err != nil {
		return nil, errors.Wrap(err, "unmarshal stats")
	}
	return &s, nil
}

func saveStats(db microchan.KVStore, s *Stats) error {
	raw, err := s.Marshal()
	if err != nil {
		return errors.Wrap(err, "marshal stats")
	}
	return db.Set(statsKey, raw)
}

// add applies the changes staged by one operation.
func (s *Stats) add(channels, volume uint64) error {
	if s.TotalChannels+channels < s.TotalChannels || s.TotalVolume+volume < s.TotalVolume {
		return errors.Wrap(errors.ErrOverflow, "stats")
	}
	s.TotalChannels += channels
	s.TotalVolume += volume
	return nil
}
