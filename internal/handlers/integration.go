package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/services"
)

type IntegrationHandler struct {
	integrationService services.IntegrationService
	connectionService  services.ConnectionService
	secretService      services.SecretService
}

func NewIntegrationHandler(
	integrationService services.IntegrationService,
	connectionService services.ConnectionService,
	secretService services.SecretService,
) *IntegrationHandler {
	return &IntegrationHandler{
		integrationService: integrationService,
		connectionService:  connectionService,
		secretService:      secretService,
	}
}

func (ih *IntegrationHandler) List(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	integrations, err := ih.integrationService.List(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"integrations": integrations})
}

func (ih *IntegrationHandler) Create(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	var body struct {
		Type     string                 `json:"type"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	integration, err := ih.integrationService.Create(c.Request.Context(), projectID, body.Type, body.Metadata)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondCreated(c, gin.H{"integration": integration})
}

func (ih *IntegrationHandler) Update(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	integrationID, ok := parseUUIDParam(c, "integrationId")
	if !ok {
		return
	}
	var body struct {
		IsActive *bool                  `json:"isActive"`
		Metadata map[string]interface{} `json:"metadata"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	integration, err := ih.integrationService.Update(c.Request.Context(), projectID, integrationID, services.UpdateIntegrationInput{
		IsActive: body.IsActive,
		Metadata: body.Metadata,
	})
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"integration": integration})
}

func (ih *IntegrationHandler) Delete(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	integrationID, ok := parseUUIDParam(c, "integrationId")
	if !ok {
		return
	}
	if err := ih.integrationService.Delete(c.Request.Context(), projectID, integrationID); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}

// TestConnection runs a live credential check. With ?activate=true (the
// default) a passing check also makes this the project's active tracker.
func (ih *IntegrationHandler) TestConnection(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	integrationID, ok := parseUUIDParam(c, "integrationId")
	if !ok {
		return
	}
	activate := true
	if raw := c.Query("activate"); raw != "" {
		parsed, err := strconv.ParseBool(raw)
		if err != nil {
			RespondError(c, apierr.Configuration("invalid activate flag %q", raw))
			return
		}
		activate = parsed
	}
	ctx := c.Request.Context()
	result, err := func() (interface{}, error) {
		if activate {
			return ih.connectionService.TestAndActivate(ctx, projectID, integrationID)
		}
		return ih.connectionService.TestConnection(ctx, projectID, integrationID)
	}()
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"result": result})
}

// StoreCredentials accepts the provider credential payload verbatim and
// stores it encrypted. The payload is never echoed back.
func (ih *IntegrationHandler) StoreCredentials(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	provider := c.Param("provider")
	var body struct {
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&body); err != nil {
		RespondError(c, apierr.Configuration("invalid request body: %v", err))
		return
	}
	secret, err := ih.secretService.Store(c.Request.Context(), projectID, provider, body.Value)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"provider": secret.Provider, "updatedAt": secret.UpdatedAt})
}

func (ih *IntegrationHandler) ListCredentialProviders(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	providers, err := ih.secretService.ListProviders(c.Request.Context(), projectID)
	if err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"providers": providers})
}

func (ih *IntegrationHandler) DeleteCredentials(c *gin.Context) {
	projectID, ok := parseUUIDParam(c, "projectId")
	if !ok {
		return
	}
	if err := ih.secretService.Delete(c.Request.Context(), projectID, c.Param("provider")); err != nil {
		RespondError(c, err)
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
