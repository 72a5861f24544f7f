package relay

import (
	"context"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
)

// streamAdder is the part of the redis client used by RedisSink.
type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisSink appends events to a redis stream.
type RedisSink struct {
	client streamAdder
	closer func() error
	stream string
	maxLen int64
}

var _ Sink = (*RedisSink)(nil)

// RedisConfig describes the stream connection.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Stream   string
	// MaxLen trims the stream approximately to this length. Zero keeps
	// everything.
	MaxLen int64
}

// NewRedisSink connects to redis and checks the connection.
func NewRedisSink(ctx context.Context, c RedisConfig) (*RedisSink, error) {
	if c.Stream == "" {
		return nil, errors.Wrap(errors.ErrInput, "missing redis stream")
	}
	client := redis.NewClient(&redis.Options{
		Addr:     c.Addr,
		Password: c.Password,
		DB:       c.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "redis ping %s: %s", c.Addr, err)
	}
	return &RedisSink{client: client, closer: client.Close, stream: c.Stream, maxLen: c.MaxLen}, nil
}

func (s *RedisSink) args(e *paychan.Event) (*redis.XAddArgs, error) {
	raw, err := encode(e)
	if err != nil {
		return nil, err
	}
	return &redis.XAddArgs{
		Stream: s.stream,
		MaxLen: s.maxLen,
		Approx: s.maxLen > 0,
		Values: map[string]interface{}{
			"seq":     strconv.FormatUint(e.Seq, 10),
			"kind":    string(e.Kind),
			"channel": e.ChannelID,
			"event":   string(raw),
		},
	}, nil
}

func (s *RedisSink) Publish(ctx context.Context, e *paychan.Event) error {
	args, err := s.args(e)
	if err != nil {
		return err
	}
	if err := s.client.XAdd(ctx, args).Err(); err != nil {
		return errors.Wrapf(errors.ErrDatabase, "xadd %s: %s", s.stream, err)
	}
	return nil
}

func (s *RedisSink) Close() error {
	if s.closer == nil {
		return nil
	}
	return s.closer()
}
