package trackers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
	"github.com/vantorre/backlogiq-backend/internal/utils"
)

// httpResult carries one provider response. Err is set for network-level
// failures only; a non-2xx status is returned to the caller to classify,
// since a failed check and a failed fetch treat it differently.
type httpResult struct {
	StatusCode int
	Body       []byte
}

func newTrackerHTTPClient(log *logger.Logger) *http.Client {
	timeoutSec := utils.GetEnvAsInt("TRACKER_HTTP_TIMEOUT_SECONDS", 30, log)
	return &http.Client{Timeout: time.Duration(timeoutSec) * time.Second}
}

func doGet(ctx context.Context, client *http.Client, url string, headers map[string]string) (*httpResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apierr.Transport(err, "build request")
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, apierr.Transport(err, "call %s", redactURL(url))
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, apierr.Transport(err, "read response from %s", redactURL(url))
	}
	return &httpResult{StatusCode: resp.StatusCode, Body: body}, nil
}

// decodeJSONMap parses a provider body that must be a JSON object. Providers
// occasionally return HTML error pages with a 200 status; that surfaces here
// as a provider error carrying the raw body, not a success.
func decodeJSONMap(res *httpResult, what string) (map[string]interface{}, error) {
	var out map[string]interface{}
	if err := json.Unmarshal(res.Body, &out); err != nil {
		return nil, apierr.Provider(res.StatusCode, string(res.Body), "unexpected %s response body", what)
	}
	return out, nil
}

func redactURL(url string) string {
	// URLs here never carry credentials, but keep them short in errors.
	return apierr.Truncate(url, 200)
}
