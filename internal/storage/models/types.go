// Package models holds the bun-mapped persistence shapes for the engine's
// five entities.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
)

// JSONBMap is a custom type for jsonb columns holding an arbitrary object.
type JSONBMap map[string]interface{}

// Value implements driver.Valuer.
func (j JSONBMap) Value() (driver.Value, error) {
	if j == nil {
		return "{}", nil
	}
	b, err := json.Marshal(j)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (j *JSONBMap) Scan(value interface{}) error {
	if value == nil {
		*j = make(JSONBMap)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("failed to scan JSONBMap: unsupported type")
	}
	if len(b) == 0 {
		*j = make(JSONBMap)
		return nil
	}
	return json.Unmarshal(b, j)
}

// JSONColumn adapts any JSON-marshalable value (a pkg/models struct, a
// slice of step logs, and so on) to a single jsonb column, the generic
// counterpart of JSONBMap for typed payloads.
type JSONColumn[T any] struct {
	Data T
}

// Value implements driver.Valuer.
func (c JSONColumn[T]) Value() (driver.Value, error) {
	b, err := json.Marshal(c.Data)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (c *JSONColumn[T]) Scan(value interface{}) error {
	if value == nil {
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return errors.New("failed to scan JSONColumn: unsupported type")
	}
	if len(b) == 0 {
		return nil
	}
	return json.Unmarshal(b, &c.Data)
}
