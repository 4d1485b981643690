package kafka

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/pkg/schema"
	"github.com/shopspring/decimal"
	"github.com/twmb/franz-go/pkg/kgo"
)

var (
	ErrTooFewOpts       = errors.New("too few options")
	ErrInvalidValueType = errors.New("invalid value type")
)

type ProducerOpt func(*producerOpts) error

type producerOpts struct {
	cl      ProducerClient
	encoder Encoder
}

// ProducerClientOpt connects a producing client to the seed brokers. Records
// go to topic and are acknowledged by all in-sync replicas. A nil tlsCfg
// dials in plain text.
func ProducerClientOpt(
	ctx context.Context, seedBrokers []string, topic string, tlsCfg *tls.Config,
) ProducerOpt {
	return func(opts *producerOpts) error {
		cl, err := kgo.NewClient(append(
			clientOpts(seedBrokers, tlsCfg),
			kgo.DefaultProduceTopicAlways(),
			kgo.DefaultProduceTopic(topic),
			kgo.RequiredAcks(kgo.AllISRAcks()),
			kgo.ProducerLinger(0),
		)...)
		if err != nil {
			return err
		}

		if err := cl.Ping(ctx); err != nil {
			cl.Close()
			return err
		}
		opts.cl = cl
		return nil
	}
}

func ProducerEncoderOpt(encoder Encoder) ProducerOpt {
	return func(opts *producerOpts) error {
		if encoder == nil {
			return errors.New("encoder is nil")
		}
		opts.encoder = encoder
		return nil
	}
}

func (o *producerOpts) apply(opts ...ProducerOpt) error {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return err
		}
	}
	if o.cl == nil || o.encoder == nil {
		return ErrTooFewOpts
	}
	return nil
}

func clientOpts(seedBrokers []string, tlsCfg *tls.Config) []kgo.Opt {
	opts := []kgo.Opt{kgo.SeedBrokers(seedBrokers...)}
	if tlsCfg != nil {
		opts = append(opts, kgo.DialTLSConfig(tlsCfg))
	}
	return opts
}

type ProducerClient interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
	Close()
}

type ConsumerClient interface {
	PollFetches(context.Context) kgo.Fetches
	CommitUncommittedOffsets(context.Context) error
	Close()
}

type Encoder interface {
	Encode(v any) ([]byte, error)
}

type Decoder interface {
	Decode(b []byte, v any) error
}

type Serde interface {
	Encoder
	Decoder
}

func makeOp(s ...string) string {
	return strings.Join(s, ".")
}

func opErr(err error, op ...string) error {
	return fmt.Errorf("%s: %w", makeOp(op...), err)
}

func orderToSchemaV1(v domain.Order) (s schema.OrderV1) {
	s.OrderID = v.ID
	s.SessionID = v.SessionID
	s.Customer.Name = v.Customer.Name
	s.Customer.Email = v.Customer.Email
	s.Customer.Address = v.Customer.Address
	s.CardLast4 = v.CardLast4
	s.Subtotal = v.Subtotal.String()
	s.PlacedAt = v.PlacedAt.UTC().Truncate(time.Millisecond)

	s.Lines = make([]schema.OrderLineV1, len(v.Lines))
	for i, l := range v.Lines {
		s.Lines[i] = schema.OrderLineV1{
			ProductID: l.ProductID,
			Color:     l.Color,
			Name:      l.Name,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice.String(),
		}
	}
	return
}

func orderFromSchemaV1(s schema.OrderV1) (domain.Order, error) {
	const op = "orderFromSchemaV1"

	subtotal, err := decimal.NewFromString(s.Subtotal)
	if err != nil {
		return domain.Order{}, opErr(err, op)
	}

	lines := make([]domain.CartLine, len(s.Lines))
	for i, l := range s.Lines {
		price, err := decimal.NewFromString(l.UnitPrice)
		if err != nil {
			return domain.Order{}, opErr(err, op)
		}
		lines[i] = domain.CartLine{
			ProductID: l.ProductID,
			Color:     l.Color,
			Name:      l.Name,
			UnitPrice: price,
			Quantity:  l.Quantity,
		}
	}

	return domain.Order{
		ID:        s.OrderID,
		SessionID: s.SessionID,
		Customer: domain.Customer{
			Name:    s.Customer.Name,
			Email:   s.Customer.Email,
			Address: s.Customer.Address,
		},
		CardLast4: s.CardLast4,
		Lines:     lines,
		Subtotal:  subtotal,
		PlacedAt:  s.PlacedAt,
	}, nil
}

func searchEventToSchemaV1(v domain.SearchEvent) schema.SearchEventV1 {
	return schema.SearchEventV1{
		SessionID:  v.SessionID,
		Query:      v.Criteria.Query,
		Category:   v.Criteria.Category,
		Brand:      v.Criteria.Brand,
		Sort:       string(v.Criteria.Sort),
		Results:    v.Results,
		SearchedAt: v.SearchedAt.UTC().Truncate(time.Millisecond),
	}
}
