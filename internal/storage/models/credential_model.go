package models

import (
	"time"

	"github.com/uptrace/bun"
)

// CredentialModel is the bun-mapped row for an encrypted credential.
// Data holds pkg/crypto's "iv:authTag:ciphertext" envelope. Listing and
// by-id queries both select it, still encrypted; the repository never
// decrypts it.
type CredentialModel struct {
	bun.BaseModel `bun:"table:credentials,alias:c"`

	ID        string    `bun:"id,pk,type:text"`
	OwnerID   string    `bun:"owner_id,type:text"`
	Name      string    `bun:"name,notnull"`
	Type      string    `bun:"type,notnull"`
	Data      string    `bun:"data,notnull"`
	CreatedAt time.Time `bun:"created_at,notnull,default:current_timestamp"`
	UpdatedAt time.Time `bun:"updated_at,notnull,default:current_timestamp"`
}

// BeforeInsert stamps timestamps.
func (c *CredentialModel) BeforeInsert(ctx interface{}) error {
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	return nil
}

// BeforeUpdate bumps UpdatedAt on every save.
func (c *CredentialModel) BeforeUpdate(ctx interface{}) error {
	c.UpdatedAt = time.Now().UTC()
	return nil
}
