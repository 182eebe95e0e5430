package monitor

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/iafilius/MalaysiaIndicatorMonitor/src/types"
)

// FetchCatalogue downloads a data-catalogue payload (a JSON array of flat objects).
// Numbers are kept as json.Number so no precision is lost before coercion.
func FetchCatalogue(ctx context.Context, c *Client, ind types.Indicator) ([]Record, error) {
	b, err := c.Get(ctx, ind.Endpoint())
	if err != nil {
		return nil, err
	}
	return DecodeRecords(b)
}

// DecodeRecords parses a JSON array of objects. A JSON object carrying an
// "error"/"message" key instead of an array is reported as an error.
func DecodeRecords(b []byte) ([]Record, error) {
	b = bytes.TrimSpace(b)
	if len(b) == 0 {
		return nil, fmt.Errorf("decode records: empty payload")
	}
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if b[0] == '{' {
		var obj map[string]any
		if err := dec.Decode(&obj); err != nil {
			return nil, fmt.Errorf("decode records: %w", err)
		}
		for _, k := range []string{"error", "message", "detail"} {
			if v, ok := obj[k]; ok {
				return nil, fmt.Errorf("decode records: api returned %s: %v", k, v)
			}
		}
		return nil, fmt.Errorf("decode records: expected array, got object")
	}
	var recs []Record
	if err := dec.Decode(&recs); err != nil {
		return nil, fmt.Errorf("decode records: %w", err)
	}
	return recs, nil
}
