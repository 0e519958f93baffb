package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/wflowhq/engine/internal/credential"
	"github.com/wflowhq/engine/internal/storage"
	"github.com/wflowhq/engine/pkg/models"
)

// CredentialHandlers implements the minimal /api/credentials write path:
// enough surface for nodes to reference a stored secret by id. Secrets are
// never returned by any read — the Data column is encrypted at rest and
// excluded from JSON serialization.
type CredentialHandlers struct {
	service *credential.Service
	repo    *storage.CredentialRepository
}

// NewCredentialHandlers creates CredentialHandlers.
func NewCredentialHandlers(service *credential.Service, repo *storage.CredentialRepository) *CredentialHandlers {
	return &CredentialHandlers{service: service, repo: repo}
}

type credentialRequest struct {
	OwnerID string                 `json:"owner_id"`
	Name    string                 `json:"name" binding:"required"`
	Type    models.CredentialType  `json:"type" binding:"required"`
	Data    map[string]interface{} `json:"data" binding:"required"`
}

// HandleCreate implements POST /credentials: encrypts the payload and
// stores it.
func (h *CredentialHandlers) HandleCreate(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	cred, err := h.service.Create(c.Request.Context(), req.OwnerID, req.Name, req.Type, req.Data)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusCreated, cred)
}

// HandleUpdate implements PUT /credentials/:id: re-encrypts and replaces
// the stored secret.
func (h *CredentialHandlers) HandleUpdate(c *gin.Context) {
	var req credentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, http.StatusBadRequest, err.Error())
		return
	}

	cred, err := h.service.Update(c.Request.Context(), c.Param("id"), req.Name, req.Type, req.Data)
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, cred)
}

// HandleList implements GET /credentials: metadata only, no secrets.
func (h *CredentialHandlers) HandleList(c *gin.Context) {
	creds, err := h.repo.FindAll(c.Request.Context(), c.Query("ownerId"))
	if err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"credentials": creds, "count": len(creds)})
}

// HandleDelete implements DELETE /credentials/:id.
func (h *CredentialHandlers) HandleDelete(c *gin.Context) {
	if err := h.repo.Delete(c.Request.Context(), c.Param("id")); err != nil {
		respondDomainError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "credential deleted"})
}
