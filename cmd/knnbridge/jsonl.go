package main

import (
	"errors"
	"fmt"
	"io"

	gojson "github.com/goccy/go-json"
)

type vectorRecord struct {
	ID     int64     `json:"id"`
	Vector []float32 `json:"vector"`
}

type neighbor struct {
	ID       int64   `json:"id"`
	Distance float32 `json:"distance"`
}

type queryResult struct {
	Query     int        `json:"query"`
	Neighbors []neighbor `json:"neighbors"`
}

// readChunks decodes JSON-lines records from r and hands them to fn in
// chunks of at most size records.
func readChunks(r io.Reader, size int, fn func(ids []int64, vectors [][]float32) error) error {
	dec := gojson.NewDecoder(r)
	ids := make([]int64, 0, size)
	vectors := make([][]float32, 0, size)

	flush := func() error {
		if len(ids) == 0 {
			return nil
		}
		if err := fn(ids, vectors); err != nil {
			return err
		}
		ids, vectors = ids[:0], vectors[:0]
		return nil
	}

	for line := 1; ; line++ {
		var rec vectorRecord
		if err := dec.Decode(&rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			return fmt.Errorf("record %d: %w", line, err)
		}
		ids = append(ids, rec.ID)
		vectors = append(vectors, rec.Vector)
		if len(ids) == size {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	return flush()
}

// readQueries decodes JSON-lines query vectors. Either a bare array or a
// record with a "vector" field is accepted per line.
func readQueries(r io.Reader) ([][]float32, error) {
	dec := gojson.NewDecoder(r)
	var out [][]float32
	for {
		var raw gojson.RawMessage
		if err := dec.Decode(&raw); err != nil {
			if errors.Is(err, io.EOF) {
				return out, nil
			}
			return nil, fmt.Errorf("query %d: %w", len(out)+1, err)
		}

		var vec []float32
		if err := gojson.Unmarshal(raw, &vec); err != nil {
			var rec vectorRecord
			if err := gojson.Unmarshal(raw, &rec); err != nil {
				return nil, fmt.Errorf("query %d: %w", len(out)+1, err)
			}
			vec = rec.Vector
		}
		out = append(out, vec)
	}
}

func writeJSONLines[T any](w io.Writer, items []T) error {
	enc := gojson.NewEncoder(w)
	for _, item := range items {
		if err := enc.Encode(item); err != nil {
			return err
		}
	}
	return nil
}
