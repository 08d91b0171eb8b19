package trackers

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
)

const adoCredsJSON = `{"organization":"acme-org","personalAccessToken":"pat-123"}`

func newADOClient(t *testing.T, baseURL string) *AzureDevOpsClient {
	t.Helper()
	t.Setenv("AZURE_DEVOPS_BASE_URL", baseURL)
	return NewAzureDevOpsClient(testLog(t))
}

func TestADOTestConnectionSuccess(t *testing.T) {
	var gotAuth, gotFedAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotFedAuth = r.Header.Get("X-TFS-FedAuthRedirect")
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"count": 5,
			"value": [
				{"id": "p1", "name": "Alpha"},
				{"id": "p2", "name": "Beta"},
				{"id": "p3", "name": "Gamma"},
				{"id": "p4", "name": "Delta"},
				{"id": "p5", "name": "Epsilon"}
			]
		}`))
	}))
	defer srv.Close()

	c := newADOClient(t, srv.URL)
	res, err := c.TestConnection(context.Background(), adoCredsJSON, nil)
	if err != nil {
		t.Fatalf("test connection: %v", err)
	}
	if !res.Success {
		t.Fatalf("unexpected result: %+v", res)
	}
	if gotPath != "/acme-org/_apis/projects?api-version=7.1-preview.4" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotFedAuth != "Suppress" {
		t.Fatalf("X-TFS-FedAuthRedirect header missing, got %q", gotFedAuth)
	}
	wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte(":pat-123"))
	if gotAuth != wantAuth {
		t.Fatalf("auth %q, want empty-username basic %q", gotAuth, wantAuth)
	}
	if len(res.Projects) != 3 {
		t.Fatalf("want 3 sample projects, got %d", len(res.Projects))
	}
	if res.Projects[0].Name != "Alpha" || res.Projects[2].Name != "Gamma" {
		t.Fatalf("unexpected samples: %+v", res.Projects)
	}
}

func TestADOTestConnectionInvalidPAT(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"message":"TF400813"}`))
	}))
	defer srv.Close()

	c := newADOClient(t, srv.URL)
	res, err := c.TestConnection(context.Background(), adoCredsJSON, nil)
	if err != nil {
		t.Fatalf("http rejection must not be an error: %v", err)
	}
	if res.Success {
		t.Fatal("invalid PAT reported success")
	}
	if !strings.Contains(res.Message, "401") {
		t.Fatalf("message %q missing HTTP status", res.Message)
	}
}

func TestADOTestConnectionHTMLBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>Sign in to your account</html>"))
	}))
	defer srv.Close()

	c := newADOClient(t, srv.URL)
	res, err := c.TestConnection(context.Background(), adoCredsJSON, nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Success {
		t.Fatal("HTML body with 200 reported success")
	}
}

func TestADOFetchWorkItemMapsFields(t *testing.T) {
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		_, _ = w.Write([]byte(`{
			"id": 1234,
			"fields": {
				"System.Title": "Checkout latency",
				"System.State": "Active",
				"System.WorkItemType": "Bug",
				"System.AssignedTo": {"displayName": "Priya Shah"},
				"System.ChangedDate": "2026-08-10T09:30:00Z",
				"System.Description": "<div>slow</div>",
				"Microsoft.VSTS.Common.AcceptanceCriteria": "<div>p95 under 300ms</div>"
			},
			"_links": {"html": {"href": "https://dev.azure.com/acme-org/_workitems/edit/1234"}}
		}`))
	}))
	defer srv.Close()

	c := newADOClient(t, srv.URL)
	item, err := c.FetchWorkItem(context.Background(), adoCredsJSON, nil, "1234")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/acme-org/_apis/wit/workitems/1234?api-version=7.1" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if item.ID != "1234" || item.Title != "Checkout latency" || item.State != "Active" || item.Type != "Bug" {
		t.Fatalf("unexpected mapping: %+v", item)
	}
	if item.AssignedTo != "Priya Shah" || item.ChangedDate != "2026-08-10T09:30:00Z" {
		t.Fatalf("unexpected mapping: %+v", item)
	}
	if item.AcceptanceCriteriaHTML != "<div>p95 under 300ms</div>" {
		t.Fatalf("unexpected acceptance criteria: %q", item.AcceptanceCriteriaHTML)
	}
	if item.Source != "ado" {
		t.Fatalf("unexpected source %q", item.Source)
	}
}

func TestADOFetchWorkItemFailures(t *testing.T) {
	t.Run("provider_rejection", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"message":"work item does not exist"}`))
		}))
		defer srv.Close()

		c := newADOClient(t, srv.URL)
		_, err := c.FetchWorkItem(context.Background(), adoCredsJSON, nil, "99")
		if !apierr.Is(err, apierr.CodeProvider) {
			t.Fatalf("want provider error, got %v", err)
		}
	})

	t.Run("transport_failure", func(t *testing.T) {
		c := newADOClient(t, "http://127.0.0.1:1")
		_, err := c.FetchWorkItem(context.Background(), adoCredsJSON, nil, "99")
		if !apierr.Is(err, apierr.CodeTransport) {
			t.Fatalf("want transport error, got %v", err)
		}
	})

	t.Run("missing_credentials", func(t *testing.T) {
		c := newADOClient(t, "http://127.0.0.1:1")
		_, err := c.FetchWorkItem(context.Background(), `{"organization":"acme-org"}`, nil, "99")
		if !apierr.Is(err, apierr.CodeConfiguration) {
			t.Fatalf("want configuration error, got %v", err)
		}
	})
}

func TestRegistryDispatch(t *testing.T) {
	r := NewRegistry(testLog(t))
	if _, err := r.ForIntegrationType("jira"); err != nil {
		t.Fatalf("jira adapter: %v", err)
	}
	if _, err := r.ForIntegrationType("azure_devops"); err != nil {
		t.Fatalf("ado adapter: %v", err)
	}
	if _, err := r.ForIntegrationType("confluence"); !apierr.Is(err, apierr.CodeConfiguration) {
		t.Fatalf("confluence must not have a tracker adapter, got %v", err)
	}
	if _, integrationType, err := r.ForSource("ado"); err != nil || integrationType != "azure_devops" {
		t.Fatalf("source ado -> %q, %v", integrationType, err)
	}
	if _, integrationType, err := r.ForSource("JIRA"); err != nil || integrationType != "jira" {
		t.Fatalf("source JIRA -> %q, %v", integrationType, err)
	}
	if _, _, err := r.ForSource("github"); !apierr.Is(err, apierr.CodeConfiguration) {
		t.Fatalf("unknown source must be a configuration error, got %v", err)
	}
}
