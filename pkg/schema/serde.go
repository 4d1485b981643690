package schema

import (
	"context"
	"errors"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

var (
	ErrTooFewOpts = errors.New("too few options")
)

// A Serde encodes values in the schema registry wire format: a magic byte
// and the schema id followed by the avro payload.
type Serde interface {
	Encode(v any) ([]byte, error)
	Decode(data []byte, v any) error
}

type serde struct {
	srSerde *sr.Serde
}

func (s serde) Encode(v any) ([]byte, error) {
	return s.srSerde.Encode(v)
}

func (s serde) Decode(data []byte, v any) error {
	return s.srSerde.Decode(data, v)
}

type Opt func(*serdeOpts) error

type serdeOpts struct {
	subject string
	si      SchemaIdentifier
}

func SubjectOpt(subject string) Opt {
	return func(so *serdeOpts) error {
		if subject == "" {
			return errors.New("subject is empty string")
		}
		so.subject = subject
		return nil
	}
}

func SchemaIdentifierOpt(sc SchemaIdentifier) Opt {
	return func(so *serdeOpts) error {
		if sc == nil {
			return errors.New("schema identifier is nil")
		}
		so.si = sc
		return nil
	}
}

func NewSerdeOrderV1(ctx context.Context, opts ...Opt) (Serde, error) {
	const op = "NewSerdeOrderV1"
	return serdeConstructor(
		ctx,
		OrderSchemaTextV1,
		OrderV1{},
		op,
		opts...,
	)
}

func NewSerdeSearchEventV1(ctx context.Context, opts ...Opt) (Serde, error) {
	const op = "NewSerdeSearchEventV1"
	return serdeConstructor(
		ctx,
		SearchEventSchemaTextV1,
		SearchEventV1{},
		op,
		opts...,
	)
}

func (so serdeOpts) complete() bool {
	return so.subject != "" && so.si != nil
}

func serdeConstructor(
	ctx context.Context,
	schemaText string,
	example any,
	op string,
	opts ...Opt,
) (Serde, error) {
	var serdeOpts serdeOpts
	for _, o := range opts {
		if err := o(&serdeOpts); err != nil {
			return serde{}, fmt.Errorf("%s: %w", op, err)
		}
	}
	if !serdeOpts.complete() {
		return serde{}, fmt.Errorf("%s: %w", op, ErrTooFewOpts)
	}

	avroSchema, err := avro.Parse(schemaText)
	if err != nil {
		return serde{}, fmt.Errorf("%s: %w", op, err)
	}

	srID, err := serdeOpts.si.DetermineID(
		ctx, serdeOpts.subject, schemaText,
	)
	if err != nil {
		return serde{}, fmt.Errorf("%s: %w", op, err)
	}

	srSerde := new(sr.Serde)
	srSerde.Register(
		srID,
		example,
		sr.EncodeFn(AvroEncodeFn(avroSchema)),
		sr.DecodeFn(AvroDecodeFn(avroSchema)),
	)

	return serde{srSerde: srSerde}, nil
}
