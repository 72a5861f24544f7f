package relay

import (
	"context"
	"encoding/json"

	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/tendermint/tendermint/libs/log"
)

// encode returns the JSON payload published for an event.
func encode(e *paychan.Event) ([]byte, error) {
	raw, err := json.Marshal(e)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrInput, "encode event %d: %s", e.Seq, err)
	}
	return raw, nil
}

// LogSink writes events to a logger. It is meant for development.
type LogSink struct {
	logger log.Logger
}

var _ Sink = LogSink{}

func NewLogSink(logger log.Logger) LogSink {
	return LogSink{logger: logger.With("sink", "log")}
}

func (s LogSink) Publish(ctx context.Context, e *paychan.Event) error {
	raw, err := encode(e)
	if err != nil {
		return err
	}
	s.logger.Info("event", "seq", e.Seq, "kind", string(e.Kind), "channel", e.ChannelID, "data", string(raw))
	return nil
}

func (LogSink) Close() error { return nil }
