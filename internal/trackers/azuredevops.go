package trackers

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/utils"
)

const (
	adoAPIVersion         = "7.1"
	adoProjectsAPIVersion = "7.1-preview.4"

	// Without this header ADO answers unauthenticated API calls with an
	// HTML sign-in redirect instead of a JSON error.
	adoFedAuthHeader = "X-TFS-FedAuthRedirect"
)

// AzureDevOpsClient talks to Azure DevOps REST v7.1 with basic auth built
// from an empty username and the personal access token.
type AzureDevOpsClient struct {
	log        *logger.Logger
	baseURL    string
	httpClient *http.Client
}

type adoCredentials struct {
	Organization        string `json:"organization"`
	PersonalAccessToken string `json:"personalAccessToken"`
}

func NewAzureDevOpsClient(baseLog *logger.Logger) *AzureDevOpsClient {
	log := baseLog.With("client", "AzureDevOpsClient")
	baseURL := strings.TrimRight(utils.GetEnv("AZURE_DEVOPS_BASE_URL", "https://dev.azure.com", log), "/")
	return &AzureDevOpsClient{log: log, baseURL: baseURL, httpClient: newTrackerHTTPClient(log)}
}

func (c *AzureDevOpsClient) resolve(credentialsJSON string, metadata map[string]interface{}) (adoCredentials, error) {
	var creds adoCredentials
	if err := decodeCredentials(credentialsJSON, &creds); err != nil {
		return creds, err
	}
	if creds.Organization == "" {
		creds.Organization = metadataString(metadata, "organization")
	}
	creds.Organization = strings.TrimSpace(creds.Organization)
	if creds.Organization == "" || creds.PersonalAccessToken == "" {
		return creds, apierr.Configuration("azure devops credentials require organization and personalAccessToken")
	}
	return creds, nil
}

func (c *AzureDevOpsClient) headers(creds adoCredentials) map[string]string {
	basic := base64.StdEncoding.EncodeToString([]byte(":" + creds.PersonalAccessToken))
	return map[string]string{
		"Authorization":  "Basic " + basic,
		adoFedAuthHeader: "Suppress",
	}
}

// TestConnection lists the organization's projects and returns the first
// three as a sample for UI confirmation.
func (c *AzureDevOpsClient) TestConnection(ctx context.Context, credentialsJSON string, metadata map[string]interface{}) (*TestResult, error) {
	creds, err := c.resolve(credentialsJSON, metadata)
	if err != nil {
		return nil, err
	}
	endpoint := fmt.Sprintf("%s/%s/_apis/projects?api-version=%s", c.baseURL, url.PathEscape(creds.Organization), adoProjectsAPIVersion)
	res, err := doGet(ctx, c.httpClient, endpoint, c.headers(creds))
	if err != nil {
		return &TestResult{Success: false, Message: fmt.Sprintf("Could not reach Azure DevOps: %v", err)}, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.log.Info("Azure DevOps connection test rejected", "status", res.StatusCode)
		return &TestResult{
			Success: false,
			Message: fmt.Sprintf("Azure DevOps rejected the request (HTTP %d): %s", res.StatusCode, apierr.Truncate(string(res.Body), 300)),
		}, nil
	}
	payload, perr := decodeJSONMap(res, "azure devops projects")
	if perr != nil {
		return &TestResult{Success: false, Message: perr.Error()}, nil
	}
	samples := adoProjectSamples(payload, 3)
	return &TestResult{
		Success:  true,
		Message:  fmt.Sprintf("Connection to Azure DevOps succeeded (%d projects visible)", adoProjectCount(payload)),
		Projects: samples,
	}, nil
}

func adoProjectCount(payload map[string]interface{}) int {
	if v, ok := payload["count"].(float64); ok {
		return int(v)
	}
	if arr, ok := payload["value"].([]interface{}); ok {
		return len(arr)
	}
	return 0
}

func adoProjectSamples(payload map[string]interface{}, max int) []ProjectSample {
	arr, ok := payload["value"].([]interface{})
	if !ok {
		return nil
	}
	var out []ProjectSample
	for _, item := range arr {
		if len(out) >= max {
			break
		}
		m, ok := item.(map[string]interface{})
		if !ok {
			continue
		}
		out = append(out, ProjectSample{
			ID:   mapString(m, "id"),
			Name: mapString(m, "name"),
		})
	}
	return out
}

// FetchWorkItem fetches one work item and maps the System.* and
// Microsoft.VSTS.* fields into the normalized shape.
func (c *AzureDevOpsClient) FetchWorkItem(ctx context.Context, credentialsJSON string, metadata map[string]interface{}, externalID string) (*NormalizedWorkItem, error) {
	creds, err := c.resolve(credentialsJSON, metadata)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, apierr.Configuration("work item id is required")
	}
	endpoint := fmt.Sprintf("%s/%s/_apis/wit/workitems/%s?api-version=%s", c.baseURL, url.PathEscape(creds.Organization), url.PathEscape(externalID), adoAPIVersion)
	res, err := doGet(ctx, c.httpClient, endpoint, c.headers(creds))
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, apierr.Provider(res.StatusCode, string(res.Body), "azure devops work item %s fetch failed", externalID)
	}
	payload, perr := decodeJSONMap(res, "azure devops work item")
	if perr != nil {
		return nil, perr
	}
	id := mapString(payload, "id")
	if id == "" {
		id = externalID
	}
	link := mapString(payload, "_links", "html", "href")
	if link == "" {
		link = fmt.Sprintf("%s/%s/_workitems/edit/%s", c.baseURL, url.PathEscape(creds.Organization), url.PathEscape(id))
	}
	return &NormalizedWorkItem{
		ID:                     id,
		Title:                  mapString(payload, "fields", "System.Title"),
		State:                  mapString(payload, "fields", "System.State"),
		Type:                   mapString(payload, "fields", "System.WorkItemType"),
		AssignedTo:             mapString(payload, "fields", "System.AssignedTo", "displayName"),
		ChangedDate:            mapString(payload, "fields", "System.ChangedDate"),
		DescriptionHTML:        mapString(payload, "fields", "System.Description"),
		AcceptanceCriteriaHTML: mapString(payload, "fields", "Microsoft.VSTS.Common.AcceptanceCriteria"),
		Link:                   link,
		Source:                 SourceADO,
	}, nil
}
