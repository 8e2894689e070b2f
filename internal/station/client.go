package station

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/bryanwahyu/qa-scanlog/internal/domain/scans"
)

// Server endpoints.
const (
	EndpointScan                       = "/scan"
	EndpointUpdateFailureCode          = "/update_failure_code"
	EndpointUpdateFailureCodeAndResult = "/update_failure_code_and_result"
	EndpointUndo                       = "/undo"
	EndpointVoiceRecognition           = "/voice_recognition"
	EndpointExport                     = "/export"
	EndpointDashboard                  = "/"
	EndpointPush                       = "/ws"
)

// ScanResponse is the reply of POST /scan.
type ScanResponse struct {
	Success   bool         `json:"success"`
	Duplicate bool         `json:"duplicate_fp_ok"`
	Message   string       `json:"message"`
	Error     string       `json:"error"`
	Data      *domain.Scan `json:"data"`
	Stats     domain.Stats `json:"stats"`
}

type ackResponse struct {
	Success  bool   `json:"success"`
	Selected string `json:"selected"`
	Error    string `json:"error"`
}

// Client talks to the scan server over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// SubmitScan posts one scan. A duplicate is not an error here; check
// ScanResponse.Duplicate.
func (c *Client) SubmitScan(ctx context.Context, qrCode, failureCode string) (ScanResponse, error) {
	var resp ScanResponse
	err := c.postForm(ctx, EndpointScan, url.Values{
		"qr_code":      {qrCode},
		"failure_code": {failureCode},
	}, &resp)
	return resp, err
}

func (c *Client) UpdateFailureCode(ctx context.Context, qrCode, failureCode string) error {
	var resp ackResponse
	return c.postForm(ctx, EndpointUpdateFailureCode, url.Values{
		"qr_code":      {qrCode},
		"failure_code": {failureCode},
	}, &resp)
}

func (c *Client) UpdateFailureCodeAndResult(ctx context.Context, failureCode, result string) error {
	var resp ackResponse
	return c.postForm(ctx, EndpointUpdateFailureCodeAndResult, url.Values{
		"failure_code": {failureCode},
		"result":       {result},
	}, &resp)
}

func (c *Client) Undo(ctx context.Context) error {
	var resp ackResponse
	return c.postForm(ctx, EndpointUndo, url.Values{}, &resp)
}

// SetVoiceRecognition returns the option the server stored.
func (c *Client) SetVoiceRecognition(ctx context.Context, option string) (string, error) {
	var resp ackResponse
	if err := c.postForm(ctx, EndpointVoiceRecognition, url.Values{"option": {option}}, &resp); err != nil {
		return "", err
	}
	return resp.Selected, nil
}

// Dashboard fetches rows and counters of one day; empty date is today.
func (c *Client) Dashboard(ctx context.Context, date string) (domain.Dashboard, error) {
	u := c.baseURL + EndpointDashboard
	if date != "" {
		u += "?" + url.Values{"date": {date}}.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return domain.Dashboard{}, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	var dash domain.Dashboard
	err = c.do(req, EndpointDashboard, &dash)
	return dash, err
}

// ExportURL is the download link of a report.
func (c *Client) ExportURL(startDate, endDate, fileName string) string {
	q := url.Values{
		"start_date": {startDate},
		"end_date":   {endDate},
		"file_name":  {fileName},
	}
	return c.baseURL + EndpointExport + "?" + q.Encode()
}

// DownloadExport streams the report into w.
func (c *Client) DownloadExport(ctx context.Context, startDate, endDate, fileName string, w io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.ExportURL(startDate, endDate, fileName), nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, EndpointExport)
	}
	if _, err := io.Copy(w, resp.Body); err != nil {
		return fmt.Errorf("reading report: %w", err)
	}
	return nil
}

// PushURL is the websocket address of the push feed.
func (c *Client) PushURL() string {
	u := c.baseURL + EndpointPush
	switch {
	case strings.HasPrefix(u, "https://"):
		return "wss://" + strings.TrimPrefix(u, "https://")
	case strings.HasPrefix(u, "http://"):
		return "ws://" + strings.TrimPrefix(u, "http://")
	}
	return u
}

func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	return c.do(req, endpoint, out)
}

func (c *Client) do(req *http.Request, endpoint string, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return readAPIError(resp, endpoint)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding %s response: %w", endpoint, err)
	}
	return nil
}

func readAPIError(resp *http.Response, endpoint string) error {
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	msg := strings.TrimSpace(string(body))

	var payload struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &payload) == nil && payload.Error != "" {
		msg = payload.Error
	}
	return &APIError{
		StatusCode: resp.StatusCode,
		Message:    msg,
		Endpoint:   endpoint,
		Timestamp:  time.Now(),
	}
}
