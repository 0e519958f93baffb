package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/uptrace/bun"

	storagemodels "github.com/wflowhq/engine/internal/storage/models"
	"github.com/wflowhq/engine/pkg/models"
)

// CredentialRepository persists encrypted Credential rows. The Data column
// always holds pkg/crypto's envelope ciphertext; encryption and decryption
// happen at the call sites (the API layer encrypts on write, the credential
// service underlying action.Services decrypts on read), never here.
type CredentialRepository struct {
	db *bun.DB
}

// NewCredentialRepository creates a new CredentialRepository.
func NewCredentialRepository(db *bun.DB) *CredentialRepository {
	return &CredentialRepository{db: db}
}

// Create inserts a new credential row.
func (r *CredentialRepository) Create(ctx context.Context, c *models.Credential) error {
	row := storagemodels.CredentialFromDomain(c)
	if _, err := r.db.NewInsert().Model(row).Exec(ctx); err != nil {
		return fmt.Errorf("failed to create credential: %w", err)
	}
	c.CreatedAt = row.CreatedAt
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// Update replaces an existing credential row by ID.
func (r *CredentialRepository) Update(ctx context.Context, c *models.Credential) error {
	row := storagemodels.CredentialFromDomain(c)
	res, err := r.db.NewUpdate().
		Model(row).
		Column("name", "type", "data", "updated_at").
		Where("id = ?", row.ID).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to update credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCredentialNotFound
	}
	c.UpdatedAt = row.UpdatedAt
	return nil
}

// Delete removes a credential row by ID.
func (r *CredentialRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.NewDelete().Model((*storagemodels.CredentialModel)(nil)).Where("id = ?", id).Exec(ctx)
	if err != nil {
		return fmt.Errorf("failed to delete credential: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return models.ErrCredentialNotFound
	}
	return nil
}

// FindByID retrieves a credential (still encrypted) by ID.
func (r *CredentialRepository) FindByID(ctx context.Context, id string) (*models.Credential, error) {
	row := new(storagemodels.CredentialModel)
	if err := r.db.NewSelect().Model(row).Where("id = ?", id).Scan(ctx); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCredentialNotFound
		}
		return nil, fmt.Errorf("failed to find credential: %w", err)
	}
	return row.ToDomain(), nil
}

// FindAll lists every credential owned by ownerID (all owners if empty),
// newest first. Listing never selects Data beyond what ToDomain already
// carries; callers that render credential lists to users are responsible
// for stripping it before sending a response.
func (r *CredentialRepository) FindAll(ctx context.Context, ownerID string) ([]*models.Credential, error) {
	var rows []*storagemodels.CredentialModel
	q := r.db.NewSelect().Model(&rows).OrderExpr("created_at DESC")
	if ownerID != "" {
		q = q.Where("owner_id = ?", ownerID)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("failed to list credentials: %w", err)
	}
	out := make([]*models.Credential, len(rows))
	for i, row := range rows {
		out[i] = row.ToDomain()
	}
	return out, nil
}
