package paychan

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/store"
	"github.com/iov-one/microchan/weavetest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenesisInitializer(t *testing.T) {
	authority := weavetest.KeyFor("authority").Address()

	t.Run("defaults", func(t *testing.T) {
		genesis := fmt.Sprintf(`{"conf": {"paychan": {"chain_id": "test-chain-1", "authority": %q}}}`, authority.String())
		var opts microchan.Options
		require.NoError(t, json.Unmarshal([]byte(genesis), &opts))

		db := store.MemStore()
		require.NoError(t, Initializer{}.FromGenesis(opts, db))

		conf, err := LoadConfiguration(db)
		require.NoError(t, err)
		assert.Equal(t, "test-chain-1", conf.ChainID)
		assert.Equal(t, authority, conf.Authority)
		assert.Equal(t, DefaultChallengePeriod, conf.ChallengePeriod)
		assert.Equal(t, PolicyFixed, conf.ChallengePolicy)

		stats, err := loadStats(db)
		require.NoError(t, err)
		assert.Equal(t, authority, stats.Authority)
	})

	t.Run("invalid", func(t *testing.T) {
		cases := map[string]string{
			"unknown policy":  `{"chain_id": "test-chain-1", "authority": %q, "challenge_policy": "never"}`,
			"negative period": `{"chain_id": "test-chain-1", "authority": %q, "challenge_period": -1}`,
			"bad chain id":    `{"chain_id": "x", "authority": %q}`,
		}
		for name, conf := range cases {
			t.Run(name, func(t *testing.T) {
				raw := fmt.Sprintf(`{"conf": {"paychan": `+conf+`}}`, authority.String())
				var opts microchan.Options
				require.NoError(t, json.Unmarshal([]byte(raw), &opts))
				err := Initializer{}.FromGenesis(opts, store.MemStore())
				assertErr(t, errors.ErrInput, err)
			})
		}
	})
}

func TestLoadConfigurationMissing(t *testing.T) {
	_, err := LoadConfiguration(store.MemStore())
	assertErr(t, errors.ErrState, err)
}
