package relay

import (
	"context"
	"strconv"

	"github.com/iov-one/microchan/errors"
	"github.com/iov-one/microchan/x/paychan"
	"github.com/streadway/amqp"
)

// publisher is the part of an amqp channel used by AMQPSink.
type publisher interface {
	Publish(exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
}

// AMQPSink publishes events to a topic exchange. The routing key is
// "paychan." followed by the event kind.
type AMQPSink struct {
	ch       publisher
	closers  []func() error
	exchange string
}

var _ Sink = (*AMQPSink)(nil)

// NewAMQPSink dials the broker and declares a durable topic exchange.
func NewAMQPSink(url, exchange string) (*AMQPSink, error) {
	if exchange == "" {
		return nil, errors.Wrap(errors.ErrInput, "missing amqp exchange")
	}
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrDatabase, "amqp dial: %s", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "amqp channel: %s", err)
	}
	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		conn.Close()
		return nil, errors.Wrapf(errors.ErrDatabase, "exchange declare %s: %s", exchange, err)
	}
	return &AMQPSink{ch: ch, closers: []func() error{ch.Close, conn.Close}, exchange: exchange}, nil
}

// RoutingKey returns the routing key an event is published with.
func RoutingKey(e *paychan.Event) string {
	return "paychan." + string(e.Kind)
}

func (s *AMQPSink) Publish(ctx context.Context, e *paychan.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := encode(e)
	if err != nil {
		return err
	}
	msg := amqp.Publishing{
		DeliveryMode: amqp.Persistent,
		ContentType:  "application/json",
		MessageId:    strconv.FormatUint(e.Seq, 10),
		Timestamp:    e.Time.Time(),
		Type:         string(e.Kind),
		Body:         raw,
	}
	if err := s.ch.Publish(s.exchange, RoutingKey(e), false, false, msg); err != nil {
		return errors.Wrapf(errors.ErrDatabase, "publish to %s: %s", s.exchange, err)
	}
	return nil
}

func (s *AMQPSink) Close() error {
	var errs error
	for _, c := range s.closers {
		errs = errors.Append(errs, c())
	}
	return errs
}
