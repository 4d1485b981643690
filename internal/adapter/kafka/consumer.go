package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

const slowDownDelay = time.Second

type ConsumerOpt func(*consumerOpts) error

// ConsumerClientOpt joins the consumer group on topic. Offsets are
// committed manually after a batch is handled.
func ConsumerClientOpt(
	seedBrokers []string, topic, group string, tlsCfg *tls.Config,
) ConsumerOpt {
	return func(co *consumerOpts) error {
		cl, err := kgo.NewClient(append(
			clientOpts(seedBrokers, tlsCfg),
			kgo.ConsumeTopics(topic),
			kgo.ConsumerGroup(group),
			kgo.DisableAutoCommit(),
		)...)
		if err != nil {
			return err
		}
		co.cl = cl
		return nil
	}
}

func ConsumerDecoderOpt(decoder Decoder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if decoder == nil {
			return errors.New("decoder is nil")
		}
		co.decoder = decoder
		return nil
	}
}

func OrdersConsumerRecorderOpt(r port.OrdersRecorder) ConsumerOpt {
	return func(co *consumerOpts) error {
		if r == nil {
			return errors.New("orders recorder is nil")
		}
		co.recorder = r
		return nil
	}
}

type consumerOpts struct {
	cl       ConsumerClient
	decoder  Decoder
	recorder port.OrdersRecorder
}

func (co *consumerOpts) apply(opts ...ConsumerOpt) error {
	for _, opt := range opts {
		if err := opt(co); err != nil {
			return err
		}
	}
	if co.cl == nil || co.decoder == nil || co.recorder == nil {
		return ErrTooFewOpts
	}
	return nil
}

type consumerParent interface {
	processFetches(context.Context, kgo.Fetches) error
}

// A consumer is used for composition.
//
// Fetching records from kafka broker and closing underlying [kgo.Client].
type consumer struct {
	opPrefix      string
	parent        consumerParent
	cl            ConsumerClient
	slowDownDelay time.Duration
}

func (c consumer) run(ctx context.Context) {
	const op = "run"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("running")

	for {
		select {
		case <-ctx.Done():
			log.Info("stopped")
			return
		default:
			err := c.consume(ctx)
			if err != nil {
				if errors.Is(err, context.Canceled) {
					continue
				}
				log.Error("failed to consume", "err", err)
				c.slowDown(ctx)
			}
		}
	}
}

// consume handles one poll. A batch that fails is handled again until it
// succeeds or ctx is done; offsets are committed only after success.
func (c consumer) consume(ctx context.Context) error {
	const op = "consume"

	fetches, err := c.pollFetches(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	if fetches.Empty() {
		return nil
	}

	for {
		err = c.parent.processFetches(ctx, fetches)
		if err == nil {
			break
		}
		slog.Error("failed to process fetches, retrying",
			"op", makeOp(c.opPrefix, op), "err", err)
		c.slowDown(ctx)
		if ctx.Err() != nil {
			return opErr(err, c.opPrefix, op)
		}
	}

	err = c.commit(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c consumer) pollFetches(ctx context.Context) (kgo.Fetches, error) {
	const op = "pollFetches"

	fetches := c.cl.PollFetches(ctx)
	if err := fetches.Err0(); err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	err := c.handleFetchesErrs(fetches)
	if err != nil {
		return nil, opErr(err, c.opPrefix, op)
	}

	return fetches, nil
}

func (c consumer) handleFetchesErrs(fetches kgo.Fetches) error {
	var errsMessages []string
	fetches.EachError(func(t string, p int32, err error) {
		if err != nil {
			errMsg := fmt.Sprintf(
				"topic %q partition %d: %q", t, p, err,
			)
			errsMessages = append(errsMessages, errMsg)
		}
	})

	if len(errsMessages) != 0 {
		return errors.New(strings.Join(errsMessages, "; "))
	}
	return nil
}

func (c consumer) slowDown(ctx context.Context) {
	t := time.NewTimer(c.slowDownDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

func (c consumer) commit(ctx context.Context) error {
	const op = "commit"

	err := ctx.Err()
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}

	err = c.cl.CommitUncommittedOffsets(ctx)
	if err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

func (c consumer) close() {
	const op = "close"
	log := slog.With("op", makeOp(c.opPrefix, op))

	log.Info("closing consumer...")
	c.cl.Close()
	log.Info("consumer is closed")
}

// An OrdersConsumer reads placed orders from the orders topic and hands
// them to the recorder.
type OrdersConsumer struct {
	opPrefix string
	consumer consumer
	recorder port.OrdersRecorder
	decoder  Decoder
}

func NewOrdersConsumer(opts ...ConsumerOpt) (*OrdersConsumer, error) {
	const op = "NewOrdersConsumer"

	var options consumerOpts
	if err := options.apply(opts...); err != nil {
		if options.cl != nil {
			options.cl.Close()
		}
		return nil, opErr(err, op)
	}

	opPrefix := "OrdersConsumer"
	c := &OrdersConsumer{
		opPrefix: opPrefix,
		recorder: options.recorder,
		decoder:  options.decoder,
	}
	c.consumer = consumer{
		opPrefix:      opPrefix,
		parent:        c,
		cl:            options.cl,
		slowDownDelay: slowDownDelay,
	}
	return c, nil
}

// Run consumes until ctx is done.
func (c *OrdersConsumer) Run(ctx context.Context) {
	c.consumer.run(ctx)
}

func (c *OrdersConsumer) Close() {
	c.consumer.close()
}

func (c *OrdersConsumer) processFetches(
	ctx context.Context, fetches kgo.Fetches,
) error {
	const op = "processFetches"

	orders := c.toDomain(fetches)
	if len(orders) == 0 {
		return nil
	}

	if err := c.recorder.RecordOrders(ctx, orders); err != nil {
		return opErr(err, c.opPrefix, op)
	}
	return nil
}

// toDomain decodes the batch. Records that cannot be decoded are logged and
// skipped so one bad record does not block the partition.
func (c *OrdersConsumer) toDomain(fetches kgo.Fetches) []domain.Order {
	const op = "toDomain"
	log := slog.With("op", makeOp(c.opPrefix, op))

	var orders []domain.Order
	fetches.EachRecord(func(r *kgo.Record) {
		o, err := c.decodeRecValue(r.Value)
		if err != nil {
			log.Warn(
				"skip undecodable record",
				"topic", r.Topic,
				"partition", r.Partition,
				"offset", r.Offset,
				"err", err,
			)
			return
		}
		orders = append(orders, o)
	})
	return orders
}

func (c *OrdersConsumer) decodeRecValue(b []byte) (domain.Order, error) {
	const op = "decodeRecValue"

	var s schema.OrderV1
	if err := c.decoder.Decode(b, &s); err != nil {
		return domain.Order{}, opErr(err, c.opPrefix, op)
	}

	o, err := orderFromSchemaV1(s)
	if err != nil {
		return domain.Order{}, opErr(err, c.opPrefix, op)
	}
	return o, nil
}
