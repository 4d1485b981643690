package schema

import (
	"sync"
	"time"

	"github.com/hamba/avro/v2"
)

// Monetary amounts travel as decimal strings so no precision is lost.
const OrderSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "order",
	"fields": [
		{"name": "order_id", "type": "string"},
		{"name": "session_id", "type": "string"},
		{"name": "customer", "type": {
			"type": "record",
			"name": "customer",
			"fields": [
				{"name": "name", "type": "string"},
				{"name": "email", "type": "string"},
				{"name": "address", "type": "string"}
			]
		}},
		{"name": "card_last4", "type": "string"},
		{"name": "lines", "type": {
			"type": "array",
			"items": {
				"type": "record",
				"name": "order_line",
				"fields": [
					{"name": "product_id", "type": "string"},
					{"name": "color", "type": "string"},
					{"name": "name", "type": "string"},
					{"name": "quantity", "type": "int"},
					{"name": "unit_price", "type": "string"}
				]
			}
		}},
		{"name": "subtotal", "type": "string"},
		{"name": "placed_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type (
	OrderV1 struct {
		OrderID   string          `avro:"order_id"`
		SessionID string          `avro:"session_id"`
		Customer  OrderCustomerV1 `avro:"customer"`
		CardLast4 string          `avro:"card_last4"`
		Lines     []OrderLineV1   `avro:"lines"`
		Subtotal  string          `avro:"subtotal"`
		PlacedAt  time.Time       `avro:"placed_at"`
	}

	OrderCustomerV1 struct {
		Name    string `avro:"name"`
		Email   string `avro:"email"`
		Address string `avro:"address"`
	}

	OrderLineV1 struct {
		ProductID string `avro:"product_id"`
		Color     string `avro:"color"`
		Name      string `avro:"name"`
		Quantity  int    `avro:"quantity"`
		UnitPrice string `avro:"unit_price"`
	}
)

var orderV1Avro = sync.OnceValue(func() avro.Schema {
	return avro.MustParse(OrderSchemaTextV1)
})

// OrderV1Avro returns the parsed order schema. It panics if the schema text
// is malformed.
func OrderV1Avro() avro.Schema {
	return orderV1Avro()
}
