package trackers

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/types"
)

// NormalizedWorkItem is the provider-agnostic shape of a tracker issue.
// Jira has no acceptance-criteria field; AcceptanceCriteriaHTML stays empty
// there rather than being synthesized from the description.
type NormalizedWorkItem struct {
	ID                     string `json:"id"`
	Title                  string `json:"title"`
	State                  string `json:"state"`
	Type                   string `json:"type"`
	AssignedTo             string `json:"assignedTo"`
	ChangedDate            string `json:"changedDate"`
	DescriptionHTML        string `json:"descriptionHtml"`
	AcceptanceCriteriaHTML string `json:"acceptanceCriteriaHtml"`
	Link                   string `json:"link"`
	Source                 string `json:"source"`
}

type ProjectSample struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// TestResult reports the outcome of a live connection check. An HTTP or
// network failure is a normal reported outcome here, not an error return.
type TestResult struct {
	Success  bool            `json:"success"`
	Message  string          `json:"message"`
	Projects []ProjectSample `json:"projects,omitempty"`
}

// Client is the shared adapter contract, selected by integration type.
// Credentials arrive as the decrypted secret JSON; metadata is the
// integration's provider-specific metadata map.
type Client interface {
	TestConnection(ctx context.Context, credentialsJSON string, metadata map[string]interface{}) (*TestResult, error)
	FetchWorkItem(ctx context.Context, credentialsJSON string, metadata map[string]interface{}, externalID string) (*NormalizedWorkItem, error)
}

const (
	SourceJira = "jira"
	SourceADO  = "ado"
)

// Registry dispatches to the adapter matching an integration type or a
// work-item source tag.
type Registry struct {
	jira *JiraClient
	ado  *AzureDevOpsClient
}

func NewRegistry(baseLog *logger.Logger) *Registry {
	return &Registry{
		jira: NewJiraClient(baseLog),
		ado:  NewAzureDevOpsClient(baseLog),
	}
}

func (r *Registry) ForIntegrationType(integrationType string) (Client, error) {
	switch integrationType {
	case types.IntegrationTypeJira:
		return r.jira, nil
	case types.IntegrationTypeAzureDevOps:
		return r.ado, nil
	default:
		return nil, apierr.Configuration("no tracker adapter for integration type %q", integrationType)
	}
}

// ForSource maps an inbound source tag (jira|ado) to its adapter and the
// integration type it is stored under.
func (r *Registry) ForSource(source string) (Client, string, error) {
	switch strings.ToLower(strings.TrimSpace(source)) {
	case SourceJira:
		return r.jira, types.IntegrationTypeJira, nil
	case SourceADO:
		return r.ado, types.IntegrationTypeAzureDevOps, nil
	default:
		return nil, "", apierr.Configuration("unknown work item source %q", source)
	}
}

func decodeCredentials(credentialsJSON string, out interface{}) error {
	if strings.TrimSpace(credentialsJSON) == "" {
		return apierr.Configuration("credentials are empty")
	}
	if err := json.Unmarshal([]byte(credentialsJSON), out); err != nil {
		return apierr.Configuration("credentials are not valid JSON: %v", err)
	}
	return nil
}

// mapString reads a string out of an untyped payload, walking nested maps.
// External payloads are never trusted: any missing or mistyped step yields
// the empty string.
func mapString(m map[string]interface{}, path ...string) string {
	cur := m
	for i, key := range path {
		if cur == nil {
			return ""
		}
		v, ok := cur[key]
		if !ok || v == nil {
			return ""
		}
		if i == len(path)-1 {
			switch t := v.(type) {
			case string:
				return t
			case float64:
				return trimFloat(t)
			case bool:
				return fmt.Sprintf("%v", t)
			default:
				return ""
			}
		}
		next, ok := v.(map[string]interface{})
		if !ok {
			return ""
		}
		cur = next
	}
	return ""
}

func trimFloat(f float64) string {
	if f == float64(int64(f)) {
		return fmt.Sprintf("%d", int64(f))
	}
	return fmt.Sprintf("%v", f)
}

func metadataString(metadata map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		if v, ok := metadata[key]; ok {
			if s, ok := v.(string); ok && strings.TrimSpace(s) != "" {
				return strings.TrimSpace(s)
			}
		}
	}
	return ""
}
