package kafka

import (
	"context"
	"log/slog"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/twmb/franz-go/pkg/kgo"
)

var _ port.OrdersProducer = (*OrdersProducer)(nil)

// A producer is used for composition.
//
// Producing records to kafka broker and closing underlying [kgo.Client].
type producer struct {
	opPrefix string
	cl       ProducerClient
}

func (p producer) close() {
	const op = "close"
	log := slog.With("op", makeOp(p.opPrefix, op))
	log.Info("closing producer...")
	p.cl.Close()
	log.Info("producer is closed")
}

func (p producer) produce(
	ctx context.Context, rs ...*kgo.Record,
) error {
	const op = "produce"
	res := p.cl.ProduceSync(ctx, rs...)
	if err := res.FirstErr(); err != nil {
		return opErr(err, p.opPrefix, op)
	}
	return nil
}

// An OrdersProducer places orders by producing them to the orders topic.
// Records are keyed by order id and an order counts as placed once all
// in-sync replicas have it.
type OrdersProducer struct {
	producer producer
	encoder  Encoder
	opPrefix string
}

func NewOrdersProducer(
	opts ...ProducerOpt,
) (*OrdersProducer, error) {
	const op = "NewOrdersProducer"

	var options producerOpts
	if err := options.apply(opts...); err != nil {
		if options.cl != nil {
			options.cl.Close()
		}
		return nil, opErr(err, op)
	}

	opPrefix := "OrdersProducer"
	return &OrdersProducer{
		producer: producer{
			opPrefix: opPrefix,
			cl:       options.cl,
		},
		encoder:  options.encoder,
		opPrefix: opPrefix,
	}, nil
}

func (p *OrdersProducer) Close() {
	p.producer.close()
}

func (p *OrdersProducer) PlaceOrder(
	ctx context.Context, o domain.Order,
) error {
	const op = "PlaceOrder"

	if err := ctx.Err(); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	r, err := p.createRecord(o)
	if err != nil {
		return opErr(err, p.opPrefix, op)
	}

	if err := p.producer.produce(ctx, r); err != nil {
		return opErr(err, p.opPrefix, op)
	}

	slog.Info("order produced",
		"op", makeOp(p.opPrefix, op),
		"orderID", o.ID,
		"items", o.ItemCount(),
	)
	return nil
}

func (p *OrdersProducer) createRecord(o domain.Order) (*kgo.Record, error) {
	const op = "createRecord"

	s := p.toSchema(o)
	b, err := p.encoder.Encode(s)
	if err != nil {
		return nil, opErr(err, p.opPrefix, op)
	}
	return &kgo.Record{Key: []byte(s.OrderID), Value: b}, nil
}

func (*OrdersProducer) toSchema(o domain.Order) schema.OrderV1 {
	return orderToSchemaV1(o)
}
