package handlers

import (
	"net/http"

	"github.com/rohits-web03/passkeyd/internal/api/middleware"
	"github.com/rohits-web03/passkeyd/internal/api/services"
	"github.com/rohits-web03/passkeyd/internal/utils"
	"go.uber.org/zap"
)

type VaultHandler struct {
	vaults *services.VaultService
	log    *zap.Logger
}

func NewVaultHandler(vaults *services.VaultService, log *zap.Logger) *VaultHandler {
	return &VaultHandler{vaults: vaults, log: log}
}

type CreateVaultRequest struct {
	EncryptedData string `json:"encrypted_data"`
	IV            string `json:"iv"`
}

type UpdateVaultRequest struct {
	EncryptedData   string `json:"encrypted_data"`
	IV              string `json:"iv"`
	ExpectedVersion *int   `json:"expected_version,omitempty"`
}

type ExportResponse struct {
	URL       string `json:"url"`
	ExpiresIn int64  `json:"expires_in"`
}

// GET /api/v1/vault
// GetVault godoc
// @Summary Fetch the encrypted vault
// @Tags Vault
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Payload
// @Failure 401 {object} utils.Payload
// @Failure 404 {object} utils.Payload "Vault not found"
// @Router /api/v1/vault [get]
func (h *VaultHandler) Get(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	vault, err := h.vaults.Get(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Vault retrieved",
		Data:    vault,
	})
}

// POST /api/v1/vault
// CreateVault godoc
// @Summary Store the first vault version
// @Tags Vault
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body CreateVaultRequest true "Ciphertext and IV"
// @Success 201 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 409 {object} utils.Payload "Vault already exists"
// @Router /api/v1/vault [post]
func (h *VaultHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	var input CreateVaultRequest
	if !decode(w, r, &input) {
		return
	}

	vault, err := h.vaults.Create(r.Context(), userID, input.EncryptedData, input.IV)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusCreated, utils.Payload{
		Success: true,
		Message: "Vault created",
		Data:    vault,
	})
}

// PUT /api/v1/vault
// UpdateVault godoc
// @Summary Replace the vault and bump its version
// @Description With expected_version set, a stale version is rejected with 409.
// @Tags Vault
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body UpdateVaultRequest true "Ciphertext and IV"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Failure 409 {object} utils.Payload "Version conflict"
// @Router /api/v1/vault [put]
func (h *VaultHandler) Update(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	var input UpdateVaultRequest
	if !decode(w, r, &input) {
		return
	}

	vault, err := h.vaults.Update(r.Context(), userID, input.EncryptedData, input.IV, input.ExpectedVersion)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Vault updated",
		Data:    vault,
	})
}

// DELETE /api/v1/vault
// DeleteVault godoc
// @Summary Delete the vault, keeping the account
// @Tags Vault
// @Security BearerAuth
// @Success 204
// @Failure 404 {object} utils.Payload
// @Router /api/v1/vault [delete]
func (h *VaultHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	if err := h.vaults.Delete(r.Context(), userID); err != nil {
		writeError(w, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/vault/export
// ExportVault godoc
// @Summary Presigned download link for the current vault version
// @Tags Vault
// @Produce json
// @Security BearerAuth
// @Success 200 {object} utils.Payload
// @Failure 404 {object} utils.Payload
// @Router /api/v1/vault/export [get]
func (h *VaultHandler) Export(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserIDFromContext(r.Context())
	if !ok {
		unauthorized(w, "Unauthorized")
		return
	}

	url, err := h.vaults.ExportURL(r.Context(), userID)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	utils.JSONResponse(w, http.StatusOK, utils.Payload{
		Success: true,
		Message: "Export link generated",
		Data: ExportResponse{
			URL:       url,
			ExpiresIn: int64(services.ExportURLExpiry.Seconds()),
		},
	})
}
