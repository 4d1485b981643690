package schema

import (
	"context"
	"fmt"

	"github.com/hamba/avro/v2"
	"github.com/twmb/franz-go/pkg/sr"
)

// A SchemaIdentifier resolves the registry id of a schema under a subject.
type SchemaIdentifier interface {
	DetermineID(ctx context.Context, subject string, avroSchemaText string) (id int, err error)
}

type schemaRegistry interface {
	CreateSchema(ctx context.Context, subject string, s sr.Schema) (sr.SubjectSchema, error)
}

// SchemaCreater registers schemas in the schema registry. Registering a
// schema that is already known returns its existing id.
type SchemaCreater struct {
	cl schemaRegistry
}

var _ SchemaIdentifier = (*SchemaCreater)(nil)

func NewSchemaCreater(cl *sr.Client) *SchemaCreater {
	return &SchemaCreater{cl: cl}
}

func (c *SchemaCreater) DetermineID(
	ctx context.Context, subject string, avroSchemaText string,
) (int, error) {
	const op = "SchemaCreater.DetermineID"

	ss, err := c.cl.CreateSchema(ctx, subject, sr.Schema{
		Schema: avroSchemaText,
		Type:   sr.TypeAvro,
	})
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	return ss.ID, nil
}

func AvroEncodeFn(s avro.Schema) func(v any) ([]byte, error) {
	return func(v any) ([]byte, error) {
		return avro.Marshal(s, v)
	}
}

func AvroDecodeFn(s avro.Schema) func([]byte, any) error {
	return func(data []byte, v any) error {
		return avro.Unmarshal(s, data, v)
	}
}
