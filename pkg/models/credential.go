package models

import "time"

// Credential is an encrypted secret (API key, bearer token, connection
// string) that an httpRequest/sendEmail/sendTelegram/databaseQuery/aiRequest
// node references by id instead of embedding the secret in its Data.
//
// Data holds the ciphertext produced by pkg/crypto, serialized as
// "iv:authTag:ciphertext"; it is never returned decrypted by
// any repository listing method, only by the single lookup the step
// executor performs at dispatch time.
type Credential struct {
	ID        string         `json:"id"`
	OwnerID   string         `json:"owner_id,omitempty"`
	Name      string         `json:"name"`
	Type      CredentialType `json:"type"`
	Data      string         `json:"-"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
}

// CredentialType names the shape the decrypted payload takes.
type CredentialType string

const (
	CredentialTypeHTTPAuth CredentialType = "http_auth"
	CredentialTypeEmail    CredentialType = "email"
	CredentialTypeTelegram CredentialType = "telegram"
	CredentialTypeDatabase CredentialType = "database"
	CredentialTypeAI       CredentialType = "ai"
)

// Validate checks the credential's identifying fields. Data is validated by
// the crypto layer at encrypt time, not here.
func (c *Credential) Validate() error {
	if c.Name == "" {
		return &ValidationError{Field: "name", Message: "credential name is required"}
	}
	switch c.Type {
	case CredentialTypeHTTPAuth, CredentialTypeEmail, CredentialTypeTelegram, CredentialTypeDatabase, CredentialTypeAI:
	default:
		return &ValidationError{Field: "type", Message: "unknown credential type: " + string(c.Type)}
	}
	return nil
}
