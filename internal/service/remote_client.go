package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"ticket-service/internal/models"
)

// HTTPRemote talks to a mail relay over HTTP
type HTTPRemote struct {
	baseURL string
	client  *http.Client
}

// NewHTTPRemote creates a remote channel for the relay at baseURL.
// A nil client means http.DefaultClient.
func NewHTTPRemote(baseURL string, client *http.Client) *HTTPRemote {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPRemote{baseURL: strings.TrimRight(baseURL, "/"), client: client}
}

// Healthy reports whether GET /api/health answers 200
func (r *HTTPRemote) Healthy(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/api/health", nil)
	if err != nil {
		return false
	}
	resp, err := r.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode == http.StatusOK
}

// Submit posts email to /api/send-email
func (r *HTTPRemote) Submit(ctx context.Context, email models.EmailData) (RemoteResult, error) {
	body, err := json.Marshal(email)
	if err != nil {
		return RemoteResult{}, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.baseURL+"/api/send-email", bytes.NewReader(body))
	if err != nil {
		return RemoteResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return RemoteResult{}, fmt.Errorf("failed to reach email server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var failure struct {
			Error string `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&failure); err == nil && failure.Error != "" {
			return RemoteResult{}, errors.New(failure.Error)
		}
		return RemoteResult{}, fmt.Errorf("failed to send email (status %d)", resp.StatusCode)
	}

	var result RemoteResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil && !errors.Is(err, io.EOF) {
		return RemoteResult{}, fmt.Errorf("invalid email server response: %w", err)
	}
	return result, nil
}
