package openaivs

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/vantorre/backlogiq-backend/internal/apierr"
	"github.com/vantorre/backlogiq-backend/internal/logger"
)

// Client is the OpenAI files/vector-stores API surface the context indexing
// gateway needs: upload a file, create a store, attach, poll status, and
// best-effort cleanup. The provider's id prefixes are load-bearing: stores
// are "vs_...", files are "file-...", which the self-healing check relies on.
type Client interface {
	UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error)
	CreateVectorStore(ctx context.Context, name string) (string, error)
	AttachFile(ctx context.Context, vectorStoreID, fileID string) error
	GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (*FileStatus, error)
	DetachFile(ctx context.Context, vectorStoreID, fileID string) error
	DeleteFile(ctx context.Context, fileID string) error
}

// FileStatus is the provider's view of one indexed file, in the provider's
// own status vocabulary (completed, in_progress, failed, cancelled, expired).
type FileStatus struct {
	Status     string
	ChunkCount *int
	LastError  string
}

const (
	vectorStoreIDPrefix = "vs_"
	fileIDPrefix        = "file-"
)

func IsVectorStoreID(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), vectorStoreIDPrefix)
}

func IsFileID(s string) bool {
	return strings.HasPrefix(strings.TrimSpace(s), fileIDPrefix)
}

type client struct {
	log        *logger.Logger
	baseURL    string
	apiKey     string
	httpClient *http.Client
	maxRetries int
}

func NewClient(baseLog *logger.Logger) (Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, fmt.Errorf("missing OPENAI_API_KEY")
	}
	baseURL := os.Getenv("OPENAI_BASE_URL")
	if baseURL == "" {
		baseURL = "https://api.openai.com"
	}
	timeoutSec := 120
	if v := os.Getenv("OPENAI_TIMEOUT_SECONDS"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed > 0 {
			timeoutSec = parsed
		}
	}
	maxRetries := 3
	if v := os.Getenv("OPENAI_MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(strings.TrimSpace(v)); err == nil && parsed >= 0 {
			maxRetries = parsed
		}
	}
	return &client{
		log:        baseLog.With("client", "OpenAIVectorStoreClient"),
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: time.Duration(timeoutSec) * time.Second},
		maxRetries: maxRetries,
	}, nil
}

type httpError struct {
	StatusCode int
	Body       string
}

func (e *httpError) Error() string {
	return fmt.Sprintf("openai http %d: %s", e.StatusCode, apierr.Truncate(e.Body, 500))
}

func isRetryableHTTP(code int) bool {
	return code == 408 || code == 429 || (code >= 500 && code <= 599)
}

func isRetryableErr(err error) bool {
	if err == nil {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}
	var he *httpError
	if errors.As(err, &he) {
		return isRetryableHTTP(he.StatusCode)
	}
	return false
}

func jitterSleep(base time.Duration) time.Duration {
	if base <= 0 {
		return 0
	}
	delta := base.Seconds() * 0.2
	low := base.Seconds() - delta
	v := low + rand.Float64()*(2*delta)
	return time.Duration(v * float64(time.Second))
}

func (c *client) doOnce(ctx context.Context, method, path, contentType string, body io.Reader) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, readErr := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if readErr != nil {
		return nil, readErr
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return raw, &httpError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	return raw, nil
}

// doJSON posts/gets JSON with retries. Multipart bodies are not retried
// because the reader is consumed on the first attempt.
func (c *client) doJSON(ctx context.Context, method, path string, body interface{}, out interface{}) error {
	backoff := 1 * time.Second
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if ctx.Err() != nil {
			return c.classify(ctx.Err(), path)
		}
		var reader io.Reader
		if body != nil {
			var buf bytes.Buffer
			if err := json.NewEncoder(&buf).Encode(body); err != nil {
				return err
			}
			reader = &buf
		}
		raw, err := c.doOnce(ctx, method, path, "application/json", reader)
		if err == nil {
			if out == nil {
				return nil
			}
			if uErr := json.Unmarshal(raw, out); uErr != nil {
				return apierr.Provider(http.StatusOK, string(raw), "decode openai response")
			}
			return nil
		}
		if !isRetryableErr(err) || attempt == c.maxRetries {
			return c.classify(err, path)
		}
		c.log.Warn("Retrying OpenAI call", "path", path, "attempt", attempt+1, "error", err)
		select {
		case <-ctx.Done():
			return c.classify(ctx.Err(), path)
		case <-time.After(jitterSleep(backoff)):
		}
		if backoff < 8*time.Second {
			backoff *= 2
		}
	}
	return nil
}

func (c *client) classify(err error, path string) error {
	var he *httpError
	if errors.As(err, &he) {
		return apierr.Provider(he.StatusCode, he.Body, "openai %s", path)
	}
	return apierr.Transport(err, "openai %s", path)
}

func (c *client) UploadFile(ctx context.Context, fileName string, content io.Reader) (string, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if err := mw.WriteField("purpose", "assistants"); err != nil {
		return "", err
	}
	part, err := mw.CreateFormFile("file", fileName)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, content); err != nil {
		return "", apierr.Transport(err, "read upload content")
	}
	if err := mw.Close(); err != nil {
		return "", err
	}
	raw, err := c.doOnce(ctx, http.MethodPost, "/v1/files", mw.FormDataContentType(), &buf)
	if err != nil {
		return "", c.classify(err, "/v1/files")
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &out); err != nil || out.ID == "" {
		return "", apierr.Provider(http.StatusOK, string(raw), "decode file upload response")
	}
	return out.ID, nil
}

func (c *client) CreateVectorStore(ctx context.Context, name string) (string, error) {
	var out struct {
		ID string `json:"id"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/vector_stores", map[string]interface{}{"name": name}, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", apierr.Provider(http.StatusOK, "", "vector store create returned no id")
	}
	return out.ID, nil
}

func (c *client) AttachFile(ctx context.Context, vectorStoreID, fileID string) error {
	path := fmt.Sprintf("/v1/vector_stores/%s/files", url.PathEscape(vectorStoreID))
	return c.doJSON(ctx, http.MethodPost, path, map[string]interface{}{"file_id": fileID}, nil)
}

func (c *client) GetFileStatus(ctx context.Context, vectorStoreID, fileID string) (*FileStatus, error) {
	path := fmt.Sprintf("/v1/vector_stores/%s/files/%s", url.PathEscape(vectorStoreID), url.PathEscape(fileID))
	var out struct {
		Status    string `json:"status"`
		LastError *struct {
			Message string `json:"message"`
		} `json:"last_error"`
		ChunkCount *int `json:"chunk_count"`
	}
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, err
	}
	fs := &FileStatus{Status: out.Status, ChunkCount: out.ChunkCount}
	if out.LastError != nil {
		fs.LastError = out.LastError.Message
	}
	return fs, nil
}

func (c *client) DetachFile(ctx context.Context, vectorStoreID, fileID string) error {
	path := fmt.Sprintf("/v1/vector_stores/%s/files/%s", url.PathEscape(vectorStoreID), url.PathEscape(fileID))
	return c.doJSON(ctx, http.MethodDelete, path, nil, nil)
}

func (c *client) DeleteFile(ctx context.Context, fileID string) error {
	return c.doJSON(ctx, http.MethodDelete, "/v1/files/"+url.PathEscape(fileID), nil, nil)
}
