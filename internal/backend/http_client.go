package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/evora/mediagen-back/internal/domain"
	"github.com/evora/mediagen-back/internal/registry"
)

type HTTPClientConfig struct {
	APIKey     string
	BaseURL    string
	Timeout    time.Duration
	HTTPClient *http.Client
}

// HTTPClient talks to a long-running-operation generation API: submit returns
// an operation name, polling the name returns done/response/error.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	timeout    time.Duration
	httpClient *http.Client
	models     *registry.Registry
}

func NewHTTPClient(config HTTPClientConfig, models *registry.Registry) *HTTPClient {
	if strings.TrimSpace(config.BaseURL) == "" {
		config.BaseURL = "https://generativelanguage.googleapis.com"
	}
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.HTTPClient == nil {
		config.HTTPClient = &http.Client{}
	}

	return &HTTPClient{
		apiKey:     strings.TrimSpace(config.APIKey),
		baseURL:    strings.TrimSuffix(config.BaseURL, "/"),
		timeout:    config.Timeout,
		httpClient: config.HTTPClient,
		models:     models,
	}
}

func (c *HTTPClient) Available() bool {
	return c.apiKey != ""
}

type submitInstance struct {
	Prompt    string         `json:"prompt"`
	Image     *referencePart `json:"image,omitempty"`
	LastFrame *referencePart `json:"lastFrame,omitempty"`
}

type referencePart struct {
	URI      string `json:"uri"`
	MimeType string `json:"mimeType,omitempty"`
}

type submitResponse struct {
	Name string `json:"name"`
}

type operationResponse struct {
	Name  string `json:"name"`
	Done  bool   `json:"done"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Response *struct {
		Media []struct {
			URI string `json:"uri"`
		} `json:"media"`
	} `json:"response"`
}

func (c *HTTPClient) Submit(ctx context.Context, request domain.ValidatedRequest) (string, error) {
	if !c.Available() {
		return "", ErrUnavailable
	}

	capability, err := c.models.Lookup(request.ModelKey)
	if err != nil {
		return "", fmt.Errorf("resolve vendor model: %w", err)
	}

	instance := submitInstance{Prompt: request.Prompt}
	if len(request.ReferenceMedia) > 0 {
		instance.Image = &referencePart{
			URI:      request.ReferenceMedia[0].URI,
			MimeType: request.ReferenceMedia[0].MimeType,
		}
	}
	if len(request.ReferenceMedia) > 1 {
		instance.LastFrame = &referencePart{
			URI:      request.ReferenceMedia[1].URI,
			MimeType: request.ReferenceMedia[1].MimeType,
		}
	}

	parameters := map[string]any{
		"aspectRatio": request.AspectRatio,
		"sampleCount": request.SampleCount,
	}
	if request.DurationSeconds > 0 {
		parameters["durationSeconds"] = request.DurationSeconds
	}
	for key, value := range request.ExtraParams {
		parameters[key] = value
	}

	payload, err := json.Marshal(map[string]any{
		"instances":  []submitInstance{instance},
		"parameters": parameters,
	})
	if err != nil {
		return "", fmt.Errorf("marshal submit payload: %w", err)
	}

	url := fmt.Sprintf("%s/v1/models/%s:predictLongRunning", c.baseURL, capability.VendorModelID)
	body, err := c.do(ctx, http.MethodPost, url, payload)
	if err != nil {
		return "", err
	}

	var response submitResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return "", fmt.Errorf("decode submit response: %w", err)
	}
	if strings.TrimSpace(response.Name) == "" {
		return "", errors.New("submit response missing operation name")
	}
	return response.Name, nil
}

func (c *HTTPClient) Poll(ctx context.Context, operationHandle string) (PollResult, error) {
	if strings.TrimSpace(operationHandle) == "" {
		return PollResult{}, errors.New("operation handle is required")
	}

	url := c.baseURL + "/v1/" + strings.TrimPrefix(operationHandle, "/")
	body, err := c.do(ctx, http.MethodGet, url, nil)
	if err != nil {
		return PollResult{}, err
	}

	var operation operationResponse
	if err := json.Unmarshal(body, &operation); err != nil {
		return PollResult{}, fmt.Errorf("decode operation: %w", err)
	}

	if !operation.Done {
		return PollResult{State: StateRunning}, nil
	}
	if operation.Error != nil {
		return PollResult{State: StateFailed, ErrorMessage: operation.Error.Message}, nil
	}

	refs := make([]string, 0, 4)
	if operation.Response != nil {
		for _, item := range operation.Response.Media {
			if item.URI != "" {
				refs = append(refs, item.URI)
			}
		}
	}
	if len(refs) == 0 {
		return PollResult{State: StateFailed, ErrorMessage: "operation completed without media"}, nil
	}
	return PollResult{State: StateSucceeded, ResultRefs: refs}, nil
}

func (c *HTTPClient) Fetch(ctx context.Context, resultRef string) ([]byte, error) {
	url := resultRef
	if !strings.HasPrefix(resultRef, "http://") && !strings.HasPrefix(resultRef, "https://") {
		url = c.baseURL + "/" + strings.TrimPrefix(resultRef, "/")
	}
	return c.do(ctx, http.MethodGet, url, nil)
}

func (c *HTTPClient) do(ctx context.Context, method, url string, payload []byte) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}
	request, err := http.NewRequestWithContext(timeoutCtx, method, url, reader)
	if err != nil {
		return nil, fmt.Errorf("create backend request: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+c.apiKey)
	request.Header.Set("Accept", "application/json")
	if payload != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("backend call: %w", err)
	}
	defer response.Body.Close()

	body, err := io.ReadAll(io.LimitReader(response.Body, 64<<20))
	if err != nil {
		return nil, fmt.Errorf("read backend response: %w", err)
	}
	if response.StatusCode < 200 || response.StatusCode >= 300 {
		return nil, fmt.Errorf("backend status %d: %s", response.StatusCode, truncate(string(body), 512))
	}
	return body, nil
}

func truncate(value string, limit int) string {
	if len(value) <= limit {
		return value
	}
	return value[:limit] + "..."
}
