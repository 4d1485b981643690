package schema

import (
	"sync"
	"time"

	"github.com/hamba/avro/v2"
)

const SearchEventSchemaTextV1 = `{
	"type": "record",
	"namespace": "storefront",
	"name": "search_event",
	"fields": [
		{"name": "session_id", "type": "string"},
		{"name": "query", "type": "string"},
		{"name": "category", "type": "string"},
		{"name": "brand", "type": "string"},
		{"name": "sort", "type": "string"},
		{"name": "results", "type": "int"},
		{"name": "searched_at", "type": {"type": "long", "logicalType": "timestamp-millis"}}
	]
}`

type SearchEventV1 struct {
	SessionID  string    `avro:"session_id"`
	Query      string    `avro:"query"`
	Category   string    `avro:"category"`
	Brand      string    `avro:"brand"`
	Sort       string    `avro:"sort"`
	Results    int       `avro:"results"`
	SearchedAt time.Time `avro:"searched_at"`
}

var searchEventV1Avro = sync.OnceValue(func() avro.Schema {
	return avro.MustParse(SearchEventSchemaTextV1)
})

func SearchEventV1Avro() avro.Schema {
	return searchEventV1Avro()
}
