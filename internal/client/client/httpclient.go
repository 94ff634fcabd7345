package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/dmitrijs2005/accountkeeper/internal/common"
	"github.com/dmitrijs2005/accountkeeper/internal/netx"
)

// UploadField is the multipart field the server reads uploads from.
const UploadField = "file_in_memory"

type HTTPClient struct {
	baseURL string
	http    *http.Client
}

func NewHTTPClient(baseURL string, hc *http.Client) *HTTPClient {
	if hc == nil {
		hc = http.DefaultClient
	}
	return &HTTPClient{baseURL: strings.TrimRight(baseURL, "/"), http: hc}
}

type messageResponse struct {
	Message string `json:"message"`
}

type errorResponse struct {
	Detail json.RawMessage `json:"detail"`
}

type errorDetail struct {
	Message string `json:"message"`
	Meta    string `json:"meta"`
}

func (c *HTTPClient) endpoint(path string) string { return c.baseURL + path }

func (c *HTTPClient) Ping(ctx context.Context) error {
	var out struct {
		Heartbeat bool `json:"heartbeat"`
	}
	if err := c.do(ctx, http.MethodGet, "/", "", nil, "", &out); err != nil {
		return err
	}
	if !out.Heartbeat {
		return ErrUnavailable
	}
	return nil
}

func (c *HTTPClient) Register(ctx context.Context, r Registration) (*User, error) {
	var out struct {
		Data User `json:"data"`
	}
	if err := c.postJSON(ctx, "/users/register/", r, &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

func (c *HTTPClient) Login(ctx context.Context, email, password string) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	err := c.postJSON(ctx, "/users/login/", map[string]string{"email": email, "password": password}, &out)
	return out.Token, err
}

func (c *HTTPClient) RecoverInitiate(ctx context.Context, email string) (string, error) {
	return c.postMessage(ctx, "/users/recover/", map[string]string{"email": email})
}

func (c *HTTPClient) RecoverResend(ctx context.Context, email string) (string, error) {
	return c.postMessage(ctx, "/users/recover/resend-otp/", map[string]string{"email": email})
}

func (c *HTTPClient) VerifyOTP(ctx context.Context, email, code string) (string, error) {
	return c.postMessage(ctx, "/users/recover/verify-otp/", map[string]string{"email": email, "otp_code": code})
}

func (c *HTTPClient) CompleteRecovery(ctx context.Context, email, password string) (string, error) {
	return c.postMessage(ctx, "/users/recover/complete/", map[string]string{"email": email, "password": password})
}

func (c *HTTPClient) Me(ctx context.Context, token string) (*User, error) {
	if token == "" {
		return nil, ErrNotLoggedIn
	}
	var out struct {
		Data User `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, "/users/me/", token, nil, "", &out); err != nil {
		return nil, err
	}
	return &out.Data, nil
}

// Upload sends the file at path and returns its public URL. token is
// optional; the route is open.
func (c *HTTPClient) Upload(ctx context.Context, token, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile(UploadField, filepath.Base(path))
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(part, f); err != nil {
		return "", err
	}
	if err := mw.Close(); err != nil {
		return "", err
	}

	var out struct {
		Data struct {
			UploadURL string `json:"upload_url"`
		} `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/commoners/upload/", token, &body, mw.FormDataContentType(), &out); err != nil {
		return "", err
	}
	return out.Data.UploadURL, nil
}

func (c *HTTPClient) postMessage(ctx context.Context, path string, payload any) (string, error) {
	var out messageResponse
	err := c.postJSON(ctx, path, payload, &out)
	return out.Message, err
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload, out any) error {
	return mapError(netx.PostJSON(ctx, c.http, c.endpoint(path), nil, payload, out))
}

func (c *HTTPClient) do(ctx context.Context, method, path, token string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if token != "" {
		req.Header.Set(common.AuthorizationHeaderName, common.BearerScheme+" "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return mapError(err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return apiError(resp.StatusCode, raw)
	}
	if out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// mapError turns netx status errors into *APIError and anything that never
// reached the server into ErrUnavailable.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var se *netx.StatusError
	if errors.As(err, &se) {
		return apiError(se.StatusCode, []byte(se.Body))
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var ue *url.Error
	if errors.As(err, &ue) {
		return fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return err
}

// apiError reads {"detail": {"message", "meta"}} or {"detail": "..."}.
func apiError(status int, body []byte) *APIError {
	e := &APIError{StatusCode: status}

	var er errorResponse
	if json.Unmarshal(body, &er) != nil || len(er.Detail) == 0 {
		return e
	}

	var d errorDetail
	if json.Unmarshal(er.Detail, &d) == nil {
		e.Message, e.Meta = d.Message, d.Meta
		return e
	}
	var s string
	if json.Unmarshal(er.Detail, &s) == nil {
		e.Message = s
	}
	return e
}
