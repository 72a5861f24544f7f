package paychan

import (
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/gconf"
)

// Initializer stores the configuration from the genesis conf.paychan
// section and seeds the statistics.
type Initializer struct{}

var _ microchan.Initializer = Initializer{}

func (Initializer) FromGenesis(opts microchan.Options, kv microchan.KVStore) error {
	var conf Configuration
	if err := gconf.InitConfig(kv, opts, packageName, &conf); err != nil {
		return err
	}
	stats, err := loadStats(kv)
	if err != nil {
		return err
	}
	stats.Authority = conf.Authority
	return saveStats(kv, stats)
}
