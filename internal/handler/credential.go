package handler

import (
	"net/http"

	"widget-backend/internal/credential"
	"widget-backend/internal/model"
	"widget-backend/internal/service"
	"widget-backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

// CredentialHandler 管理全局共享的凭证；响应中只出现掩码后的值
type CredentialHandler struct {
	holder *credential.Holder
}

func NewCredentialHandler(holder *credential.Holder) *CredentialHandler {
	return &CredentialHandler{holder: holder}
}

func (h *CredentialHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.response(c))
}

func (h *CredentialHandler) Set(c *gin.Context) {
	var req model.CredentialRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.holder.SetCredential(req.Value); err != nil {
		logger.Errorf("Failed to persist credential: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.response(c))
}

func (h *CredentialHandler) SetRemember(c *gin.Context) {
	var req model.RememberRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if err := h.holder.SetRemember(*req.Remember); err != nil {
		logger.Errorf("Failed to update remember flag: %v", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, h.response(c))
}

func (h *CredentialHandler) response(c *gin.Context) model.CredentialResponse {
	_, usable := h.holder.Client(c.Request.Context())
	return model.CredentialResponse{
		Present:  h.holder.Value() != "",
		Masked:   h.holder.Masked(),
		Remember: h.holder.Remember(),
		Usable:   usable,
	}
}

type SettingsHandler struct {
	settings      *service.Settings
	provider      string
	imageProvider string
}

func NewSettingsHandler(settings *service.Settings, provider, imageProvider string) *SettingsHandler {
	return &SettingsHandler{
		settings:      settings,
		provider:      provider,
		imageProvider: imageProvider,
	}
}

func (h *SettingsHandler) Get(c *gin.Context) {
	c.JSON(http.StatusOK, h.response())
}

func (h *SettingsHandler) SetModel(c *gin.Context) {
	var req model.ModelSettingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if !h.settings.SetModel(req.Model) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "model must not be blank"})
		return
	}
	logger.Infof("Model switched to %s", h.settings.Model())
	c.JSON(http.StatusOK, h.response())
}

func (h *SettingsHandler) response() model.SettingsResponse {
	return model.SettingsResponse{
		Provider:      h.provider,
		Model:         h.settings.Model(),
		ImageProvider: h.imageProvider,
	}
}
