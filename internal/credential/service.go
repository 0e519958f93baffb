// Package credential wires pkg/crypto and the credential repository
// together into the action.Services lookup the step executor dispatches
// through, and into the encrypt-on-write path the HTTP API uses.
package credential

import (
	"context"
	"encoding/json"

	"github.com/wflowhq/engine/internal/idgen"
	"github.com/wflowhq/engine/internal/infrastructure/logger"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/crypto"
	"github.com/wflowhq/engine/pkg/models"
)

// Service decrypts credentials for action dispatch and encrypts them on
// write, implementing action.Services.GetCredential for pkg/stepexec.
type Service struct {
	repo   *storage.CredentialRepository
	cipher *crypto.Cipher
}

// New creates a Service backed by repo and a cipher derived from key.
func New(repo *storage.CredentialRepository, key string) (*Service, error) {
	c, err := crypto.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return &Service{repo: repo, cipher: c}, nil
}

// GetCredential implements action.Services. ok is false whenever
// credentialID is empty, the row cannot be found, or decryption fails —
// callers decide whether that is fatal.
func (s *Service) GetCredential(ctx context.Context, credentialID string) (map[string]interface{}, bool) {
	if credentialID == "" {
		return nil, false
	}

	cred, err := s.repo.FindByID(ctx, credentialID)
	if err != nil {
		logger.Default().Debug("credential lookup failed", "credential_id", credentialID, "error", err)
		return nil, false
	}

	plaintext, err := s.cipher.DecryptString(cred.Data)
	if err != nil {
		logger.Default().Warn("credential decryption failed", "credential_id", credentialID, "error", err)
		return nil, false
	}

	var payload map[string]interface{}
	if err := json.Unmarshal([]byte(plaintext), &payload); err != nil {
		logger.Default().Warn("credential payload is not valid JSON", "credential_id", credentialID, "error", err)
		return nil, false
	}
	return payload, true
}

// Create encrypts payload and stores it as a new credential owned by
// ownerID, the write side of the API's POST /credentials handler.
func (s *Service) Create(ctx context.Context, ownerID, name string, credType models.CredentialType, payload map[string]interface{}) (*models.Credential, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	envelope, err := s.cipher.EncryptString(string(raw))
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{
		ID:      idgen.New(),
		OwnerID: ownerID,
		Name:    name,
		Type:    credType,
		Data:    envelope,
	}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}

// Update re-encrypts payload and replaces an existing credential's secret.
func (s *Service) Update(ctx context.Context, id, name string, credType models.CredentialType, payload map[string]interface{}) (*models.Credential, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	envelope, err := s.cipher.EncryptString(string(raw))
	if err != nil {
		return nil, err
	}

	cred := &models.Credential{ID: id, Name: name, Type: credType, Data: envelope}
	if err := cred.Validate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, cred); err != nil {
		return nil, err
	}
	return cred, nil
}
