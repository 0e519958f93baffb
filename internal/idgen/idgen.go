// Package idgen generates the string primary keys every entity in the
// engine uses.
package idgen

import "github.com/google/uuid"

// New returns a new random v4 UUID string.
func New() string {
	return uuid.NewString()
}
