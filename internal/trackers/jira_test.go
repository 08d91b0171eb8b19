package trackers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
)

func testLog(t *testing.T) *logger.Logger {
	t.Helper()
	log, err := logger.New("test")
	if err != nil {
		t.Fatalf("init logger: %v", err)
	}
	return log
}

func jiraCredsJSON(baseURL string) string {
	return `{"baseUrl":"` + baseURL + `","email":"dev@acme.io","apiToken":"tok-123"}`
}

func TestJiraFetchWorkItemMapsFields(t *testing.T) {
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path + "?" + r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"key": "ACME-42",
			"fields": {
				"summary": "Fix login flow",
				"status": {"name": "In Progress"},
				"issuetype": {"name": "Story"},
				"assignee": {"displayName": "Dana Oliver"},
				"updated": "2026-08-01T10:00:00.000+0000"
			},
			"renderedFields": {"description": "<p>steps</p>"}
		}`))
	}))
	defer srv.Close()

	c := NewJiraClient(testLog(t))
	item, err := c.FetchWorkItem(context.Background(), jiraCredsJSON(srv.URL), nil, "ACME-42")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if gotPath != "/rest/api/3/issue/ACME-42?expand=renderedFields" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if !strings.HasPrefix(gotAuth, "Basic ") {
		t.Fatalf("expected basic auth, got %q", gotAuth)
	}
	if item.ID != "ACME-42" || item.Title != "Fix login flow" || item.State != "In Progress" {
		t.Fatalf("unexpected mapping: %+v", item)
	}
	if item.Type != "Story" || item.AssignedTo != "Dana Oliver" {
		t.Fatalf("unexpected mapping: %+v", item)
	}
	if item.DescriptionHTML != "<p>steps</p>" {
		t.Fatalf("unexpected description: %q", item.DescriptionHTML)
	}
	if item.AcceptanceCriteriaHTML != "" {
		t.Fatalf("jira acceptance criteria must be empty, got %q", item.AcceptanceCriteriaHTML)
	}
	if item.Link != srv.URL+"/browse/ACME-42" || item.Source != "jira" {
		t.Fatalf("unexpected link/source: %+v", item)
	}
}

func TestJiraFetchWorkItemToleratesSparsePayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"key":"ACME-7"}`))
	}))
	defer srv.Close()

	c := NewJiraClient(testLog(t))
	item, err := c.FetchWorkItem(context.Background(), jiraCredsJSON(srv.URL), nil, "ACME-7")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if item.Title != "" || item.State != "" || item.AssignedTo != "" {
		t.Fatalf("sparse payload must map to empties: %+v", item)
	}
}

func TestJiraFetchWorkItemProviderFailure(t *testing.T) {
	cases := []struct {
		name    string
		status  int
		body    string
		code    string
		wantSub string
	}{
		{name: "not_found", status: 404, body: `{"errorMessages":["Issue does not exist"]}`, code: apierr.CodeProvider, wantSub: "404"},
		{name: "unauthorized", status: 401, body: `{}`, code: apierr.CodeProvider, wantSub: "401"},
		{name: "html_with_200", status: 200, body: "<html>sign in</html>", code: apierr.CodeProvider, wantSub: "sign in"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				_, _ = w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			c := NewJiraClient(testLog(t))
			_, err := c.FetchWorkItem(context.Background(), jiraCredsJSON(srv.URL), nil, "ACME-1")
			if err == nil {
				t.Fatal("expected error")
			}
			if !apierr.Is(err, tc.code) {
				t.Fatalf("want code %s, got %v", tc.code, err)
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Fatalf("error %q missing %q", err.Error(), tc.wantSub)
			}
		})
	}
}

func TestJiraFetchWorkItemMissingCredentials(t *testing.T) {
	c := NewJiraClient(testLog(t))
	cases := []struct {
		name  string
		creds string
	}{
		{name: "empty", creds: ""},
		{name: "not_json", creds: "nope"},
		{name: "missing_token", creds: `{"baseUrl":"https://acme.atlassian.net","email":"a@b.c"}`},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := c.FetchWorkItem(context.Background(), tc.creds, nil, "ACME-1")
			if !apierr.Is(err, apierr.CodeConfiguration) {
				t.Fatalf("want configuration error, got %v", err)
			}
		})
	}
}

func TestJiraTestConnection(t *testing.T) {
	t.Run("myself_success", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/api/3/myself" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"displayName":"Dana Oliver"}`))
		}))
		defer srv.Close()

		c := NewJiraClient(testLog(t))
		res, err := c.TestConnection(context.Background(), jiraCredsJSON(srv.URL), nil)
		if err != nil {
			t.Fatalf("test connection: %v", err)
		}
		if !res.Success || !strings.Contains(res.Message, "Dana Oliver") {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("project_key_probe", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.URL.Path != "/rest/api/3/project/ACME" {
				t.Errorf("unexpected path %q", r.URL.Path)
			}
			_, _ = w.Write([]byte(`{"name":"Acme Board"}`))
		}))
		defer srv.Close()

		c := NewJiraClient(testLog(t))
		res, err := c.TestConnection(context.Background(), jiraCredsJSON(srv.URL), map[string]interface{}{"projectKey": "ACME"})
		if err != nil {
			t.Fatalf("test connection: %v", err)
		}
		if !res.Success {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("rejected_is_reported_not_error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			_, _ = w.Write([]byte(`{"message":"bad token"}`))
		}))
		defer srv.Close()

		c := NewJiraClient(testLog(t))
		res, err := c.TestConnection(context.Background(), jiraCredsJSON(srv.URL), nil)
		if err != nil {
			t.Fatalf("http rejection must not be an error: %v", err)
		}
		if res.Success || !strings.Contains(res.Message, "401") {
			t.Fatalf("unexpected result: %+v", res)
		}
	})

	t.Run("unreachable_is_reported_not_error", func(t *testing.T) {
		c := NewJiraClient(testLog(t))
		res, err := c.TestConnection(context.Background(), jiraCredsJSON("http://127.0.0.1:1"), nil)
		if err != nil {
			t.Fatalf("network failure must not be an error: %v", err)
		}
		if res.Success || !strings.Contains(res.Message, "Could not reach Jira") {
			t.Fatalf("unexpected result: %+v", res)
		}
	})
}
