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
)

// JiraClient talks to Jira Cloud REST v3 with basic auth built from
// email:apiToken.
type JiraClient struct {
	log        *logger.Logger
	httpClient *http.Client
}

type jiraCredentials struct {
	BaseURL  string `json:"baseUrl"`
	Email    string `json:"email"`
	APIToken string `json:"apiToken"`
}

func NewJiraClient(baseLog *logger.Logger) *JiraClient {
	log := baseLog.With("client", "JiraClient")
	return &JiraClient{log: log, httpClient: newTrackerHTTPClient(log)}
}

func (c *JiraClient) resolve(credentialsJSON string, metadata map[string]interface{}) (jiraCredentials, error) {
	var creds jiraCredentials
	if err := decodeCredentials(credentialsJSON, &creds); err != nil {
		return creds, err
	}
	if creds.BaseURL == "" {
		creds.BaseURL = metadataString(metadata, "baseUrl", "base_url")
	}
	creds.BaseURL = strings.TrimRight(strings.TrimSpace(creds.BaseURL), "/")
	if creds.BaseURL == "" || creds.Email == "" || creds.APIToken == "" {
		return creds, apierr.Configuration("jira credentials require baseUrl, email and apiToken")
	}
	return creds, nil
}

func (c *JiraClient) headers(creds jiraCredentials) map[string]string {
	basic := base64.StdEncoding.EncodeToString([]byte(creds.Email + ":" + creds.APIToken))
	return map[string]string{"Authorization": "Basic " + basic}
}

// TestConnection performs one cheap authenticated GET: the configured
// project when the integration metadata names one, otherwise /myself.
// HTTP and network failures are reported outcomes, not errors.
func (c *JiraClient) TestConnection(ctx context.Context, credentialsJSON string, metadata map[string]interface{}) (*TestResult, error) {
	creds, err := c.resolve(credentialsJSON, metadata)
	if err != nil {
		return nil, err
	}
	endpoint := creds.BaseURL + "/rest/api/3/myself"
	probe := "myself"
	if projectKey := metadataString(metadata, "projectKey", "project_key"); projectKey != "" {
		endpoint = creds.BaseURL + "/rest/api/3/project/" + url.PathEscape(projectKey)
		probe = "project " + projectKey
	}
	res, err := doGet(ctx, c.httpClient, endpoint, c.headers(creds))
	if err != nil {
		return &TestResult{Success: false, Message: fmt.Sprintf("Could not reach Jira: %v", err)}, nil
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		c.log.Info("Jira connection test rejected", "status", res.StatusCode)
		return &TestResult{
			Success: false,
			Message: fmt.Sprintf("Jira rejected the request (HTTP %d): %s", res.StatusCode, apierr.Truncate(string(res.Body), 300)),
		}, nil
	}
	payload, perr := decodeJSONMap(res, "jira "+probe)
	if perr != nil {
		return &TestResult{Success: false, Message: perr.Error()}, nil
	}
	who := mapString(payload, "displayName")
	if who == "" {
		who = mapString(payload, "name")
	}
	msg := "Connection to Jira succeeded"
	if who != "" {
		msg = fmt.Sprintf("Connection to Jira succeeded (%s)", who)
	}
	return &TestResult{Success: true, Message: msg}, nil
}

// FetchWorkItem fetches one issue with rendered fields and maps it into the
// normalized shape. AcceptanceCriteriaHTML is always empty for Jira.
func (c *JiraClient) FetchWorkItem(ctx context.Context, credentialsJSON string, metadata map[string]interface{}, externalID string) (*NormalizedWorkItem, error) {
	creds, err := c.resolve(credentialsJSON, metadata)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(externalID) == "" {
		return nil, apierr.Configuration("work item id is required")
	}
	endpoint := fmt.Sprintf("%s/rest/api/3/issue/%s?expand=renderedFields", creds.BaseURL, url.PathEscape(externalID))
	res, err := doGet(ctx, c.httpClient, endpoint, c.headers(creds))
	if err != nil {
		return nil, err
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return nil, apierr.Provider(res.StatusCode, string(res.Body), "jira issue %s fetch failed", externalID)
	}
	payload, perr := decodeJSONMap(res, "jira issue")
	if perr != nil {
		return nil, perr
	}
	key := mapString(payload, "key")
	if key == "" {
		key = externalID
	}
	return &NormalizedWorkItem{
		ID:                     key,
		Title:                  mapString(payload, "fields", "summary"),
		State:                  mapString(payload, "fields", "status", "name"),
		Type:                   mapString(payload, "fields", "issuetype", "name"),
		AssignedTo:             mapString(payload, "fields", "assignee", "displayName"),
		ChangedDate:            mapString(payload, "fields", "updated"),
		DescriptionHTML:        mapString(payload, "renderedFields", "description"),
		AcceptanceCriteriaHTML: "",
		Link:                   creds.BaseURL + "/browse/" + key,
		Source:                 SourceJira,
	}, nil
}
