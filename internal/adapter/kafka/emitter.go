package kafka

import (
	"context"
	"crypto/tls"
	"log/slog"

	"github.com/lovoo/goka"
	"github.com/niksmo/storefront/internal/core/domain"
	"github.com/niksmo/storefront/internal/core/port"
	"github.com/niksmo/storefront/pkg/schema"
)

var _ port.SearchEventsEmitter = (*SearchEventsEmitter)(nil)

// A searchEventCodec used for serde [schema.SearchEventV1]
type searchEventCodec struct {
	serde Serde
}

func newSearchEventCodec(s Serde) searchEventCodec {
	return searchEventCodec{s}
}

func (c searchEventCodec) Encode(v any) ([]byte, error) {
	const op = "searchEventCodec.Encode"
	if _, ok := v.(schema.SearchEventV1); !ok {
		return nil, opErr(ErrInvalidValueType, op)
	}
	return c.serde.Encode(v)
}

func (c searchEventCodec) Decode(data []byte) (any, error) {
	const op = "searchEventCodec.Decode"
	var s schema.SearchEventV1
	err := c.serde.Decode(data, &s)
	if err != nil {
		return nil, opErr(err, op)
	}
	return s, nil
}

type gokaEmitter interface {
	EmitSync(key string, msg any) error
	Finish() error
}

// A SearchEventsEmitter streams catalog searches keyed by session id, so the
// searches of one session stay ordered.
type SearchEventsEmitter struct {
	opPrefix string
	ge       gokaEmitter
}

// NewSearchEventsEmitter creates the emitter for the stream topic. A nil
// tlsCfg dials in plain text. Extra options are passed to goka as is.
func NewSearchEventsEmitter(
	seedBrokers []string,
	stream string,
	serde Serde,
	tlsCfg *tls.Config,
	opts ...goka.EmitterOption,
) (*SearchEventsEmitter, error) {
	const op = "NewSearchEventsEmitter"

	if tlsCfg != nil {
		cfg := goka.DefaultConfig()
		cfg.Net.TLS.Enable = true
		cfg.Net.TLS.Config = tlsCfg
		opts = append(
			[]goka.EmitterOption{
				goka.WithEmitterProducerBuilder(goka.ProducerBuilderWithConfig(cfg)),
			},
			opts...,
		)
	}

	ge, err := goka.NewEmitter(
		seedBrokers, goka.Stream(stream), newSearchEventCodec(serde), opts...,
	)
	if err != nil {
		return nil, opErr(err, op)
	}

	return &SearchEventsEmitter{
		opPrefix: "SearchEventsEmitter",
		ge:       ge,
	}, nil
}

func (e *SearchEventsEmitter) EmitSearch(
	ctx context.Context, evt domain.SearchEvent,
) error {
	const op = "EmitSearch"

	if err := ctx.Err(); err != nil {
		return opErr(err, e.opPrefix, op)
	}

	if err := e.ge.EmitSync(evt.SessionID, searchEventToSchemaV1(evt)); err != nil {
		return opErr(err, e.opPrefix, op)
	}
	return nil
}

func (e *SearchEventsEmitter) Close() {
	const op = "Close"
	log := slog.With("op", makeOp(e.opPrefix, op))

	log.Info("closing emitter...")
	if err := e.ge.Finish(); err != nil {
		log.Error("failed to finish gracefully", "err", err)
		return
	}
	log.Info("emitter is closed")
}
