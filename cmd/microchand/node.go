package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/iov-one/microchan"
	"github.com/iov-one/microchan/api"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/relay"
	"github.com/iov-one/microchan/store/iavl"
	"github.com/iov-one/microchan/x/cash"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/iov-one/microchan/x/sigs"
	"github.com/tendermint/tendermint/libs/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

const storeName = "microchan"

// genesisDoc is the genesis file. Only the application state is read.
type genesisDoc struct {
	ChainID  string            `json:"chain_id"`
	AppState microchan.Options `json:"app_state"`
}

// genesisInitializer loads every extension from the genesis file.
func genesisInitializer() microchan.Initializer {
	return microchan.ChainInitializers(
		cash.Initializer{},
		sigs.Initializer{},
		paychan.Initializer{},
	)
}

func readGenesis(path string) (*genesisDoc, error) {
	raw, err := ioutil.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "read genesis: %s", err)
	}
	var doc genesisDoc
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "decode genesis: %s", err)
	}
	if len(doc.AppState) == 0 {
		return nil, errors.Wrap(errors.ErrEmpty, "genesis has no app_state")
	}
	return &doc, nil
}

func configFrom(c *cli.Context) (*Config, log.Logger, error) {
	conf, err := loadConfig(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	logger, err := newLogger(conf.LogLevel)
	if err != nil {
		return nil, nil, err
	}
	return conf, logger, nil
}

func (c *Config) genesisPath() string {
	if filepath.IsAbs(c.Genesis) {
		return c.Genesis
	}
	return filepath.Join(c.Home, c.Genesis)
}

var cmdInit = &cli.Command{
	Name:  "init",
	Usage: "load the genesis file into a new store",
	Action: func(c *cli.Context) error {
		conf, logger, err := configFrom(c)
		if err != nil {
			return err
		}
		return initStore(conf, logger)
	},
}

// initStore writes the genesis state into the store under the home
// directory and commits it as the first version.
func initStore(conf *Config, logger log.Logger) error {
	doc, err := readGenesis(conf.genesisPath())
	if err != nil {
		return err
	}
	if err := os.MkdirAll(conf.Home, 0700); err != nil {
		return errors.Wrapf(errors.ErrDatabase, "create home: %s", err)
	}
	db, err := iavl.NewCommitStore(conf.Home, storeName)
	if err != nil {
		return err
	}
	defer db.Close()

	latest, err := db.LatestVersion()
	if err != nil {
		return err
	}
	if latest.Version != 0 {
		return errors.Wrapf(errors.ErrState, "store in %s is already initialized at version %d", conf.Home, latest.Version)
	}
	if err := genesisInitializer().FromGenesis(doc.AppState, db.Adapter()); err != nil {
		return errors.Wrap(err, "genesis")
	}
	pc, err := paychan.LoadConfiguration(db.Adapter())
	if err != nil {
		return err
	}
	if doc.ChainID != "" && doc.ChainID != pc.ChainID {
		return errors.Wrapf(errors.ErrInput, "genesis chain id %q does not match paychan configuration %q", doc.ChainID, pc.ChainID)
	}
	id, err := db.Commit()
	if err != nil {
		return err
	}
	logger.Info("store initialized", "home", conf.Home, "chain_id", pc.ChainID, "version", id.Version, "hash", fmt.Sprintf("%X", id.Hash))
	return nil
}

var cmdStart = &cli.Command{
	Name:  "start",
	Usage: "serve the HTTP API and relay events",
	Action: func(c *cli.Context) error {
		conf, logger, err := configFrom(c)
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
		defer stop()
		return run(ctx, conf, logger)
	},
}

func run(ctx context.Context, conf *Config, logger log.Logger) error {
	db, err := iavl.NewCommitStore(conf.Home, storeName)
	if err != nil {
		return err
	}
	defer db.Close()
	latest, err := db.LatestVersion()
	if err != nil {
		return err
	}
	if latest.Version == 0 {
		return errors.Wrapf(errors.ErrState, "store in %s is not initialized, run init first", conf.Home)
	}

	node, err := snowflake.NewNode(conf.Node)
	if err != nil {
		return errors.Wrapf(errors.ErrInput, "snowflake node: %s", err)
	}
	kv := db.Adapter()
	ledger := cash.NewController(cash.NewBucket())
	ctrl := paychan.NewController(kv, cash.NewLedgerEscrow(ledger), sigs.NewKeyring(kv), microchan.NewSystemClock(),
		paychan.WithLogger(logger),
		paychan.WithNode(node),
	)

	sink, err := openSink(ctx, conf.Relay, logger)
	if err != nil {
		return err
	}
	var rl *relay.Relay
	if sink != nil {
		defer sink.Close()
		rl = relay.New(ctrl, sink,
			relay.WithLogger(logger),
			relay.WithInterval(conf.Relay.Interval),
			relay.WithBatchSize(conf.Relay.BatchSize),
			relay.StartAfter(conf.Relay.StartAfter),
		)
	}

	opts := []api.Option{
		api.WithLogger(logger),
		api.WithDenomination(conf.Denomination),
		api.WithDebug(conf.HTTP.Debug),
		api.WithInfo("version", Version),
		api.WithStatus("store", func() interface{} {
			id, _ := db.LatestVersion()
			return id
		}),
	}
	if rl != nil {
		opts = append(opts, api.WithStatus("relay", func() interface{} { return rl.Counters() }))
	}
	if !conf.HTTP.Debug {
		gin.SetMode(gin.ReleaseMode)
	}
	srv := api.NewServer(ctrl, sigs.NewRegistry(kv), cash.NewLedger(kv, ledger), opts...)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.ListenAndServe(ctx, conf.HTTP.Bind) })
	g.Go(func() error { return commitLoop(ctx, db, conf.CommitInterval, logger) })
	if rl != nil {
		g.Go(func() error { return rl.Run(ctx) })
	}
	logger.Info("node started", "version", Version, "height", latest.Version, "sink", conf.Relay.Sink)
	return g.Wait()
}

// openSink returns nil when no sink is configured.
func openSink(ctx context.Context, conf RelayConfig, logger log.Logger) (relay.Sink, error) {
	switch conf.Sink {
	case sinkLog:
		return relay.NewLogSink(logger), nil
	case sinkRedis:
		return relay.NewRedisSink(ctx, relay.RedisConfig{
			Addr:     conf.Addr,
			Password: conf.Password,
			DB:       conf.DB,
			Stream:   conf.Topic,
			MaxLen:   conf.MaxLen,
		})
	case sinkAMQP:
		return relay.NewAMQPSink(conf.Addr, conf.Topic)
	default:
		return nil, nil
	}
}

// committer saves the working state of the store as a new version.
type committer interface {
	Commit() (microchan.CommitID, error)
}

// commitLoop persists the store on every interval and once more when ctx
// is canceled.
func commitLoop(ctx context.Context, db committer, every time.Duration, logger log.Logger) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			id, err := db.Commit()
			if err != nil {
				return err
			}
			logger.Info("final commit", "version", id.Version)
			return nil
		case <-ticker.C:
			id, err := db.Commit()
			if err != nil {
				return err
			}
			logger.Debug("commit", "version", id.Version, "hash", fmt.Sprintf("%X", id.Hash))
		}
	}
}
