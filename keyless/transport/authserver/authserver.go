// Copyright 2026 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package authserver defines an HTTP client for the account service that
// holds Auth packs behind e-mail one-time passwords.
package authserver

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

	"github.com/GoogleCloudPlatform/keyless/keyless"
	"github.com/GoogleCloudPlatform/keyless/keyless/transport"
	glog "github.com/golang/glog"
	"golang.org/x/time/rate"
)

const (
	sendOTPEndpoint        = "/v1/otp/send"
	fetchAuthPackEndpoint  = "/v1/auth-pack/fetch"
	uploadAuthPackEndpoint = "/v1/auth-pack/upload"
	resetAuthPackEndpoint  = "/v1/auth-pack/reset"
	defaultTimeout         = 30 * time.Second
	maxResponseBytes       = 1 << 20
)

// ErrInvalidOTP is returned when the service rejects the one-time password.
var ErrInvalidOTP = errors.New("authserver: invalid or expired one-time password")

// Options configures a Client.
type Options struct {
	// Endpoint is the base URI of the account service.
	Endpoint string
	// AuthToken, if set, is sent as a bearer token.
	AuthToken string
	// RequestsPerSecond limits outgoing requests. Zero means unlimited.
	RequestsPerSecond float64
	// Timeout bounds each request. Defaults to 30 seconds.
	Timeout time.Duration
	// HTTPClient overrides the default HTTP client.
	HTTPClient *http.Client
}

// Client is an HTTP client for the account service.
type Client struct {
	endpoint  string
	authToken string
	http      *http.Client
	limiter   *rate.Limiter
}

// New constructs a Client against opts.Endpoint.
func New(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("authserver: endpoint is required")
	}
	hc := opts.HTTPClient
	if hc == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	return &Client{
		endpoint:  strings.TrimSuffix(opts.Endpoint, "/"),
		authToken: opts.AuthToken,
		http:      hc,
		limiter:   rate.NewLimiter(limit, 1),
	}, nil
}

type otpRequest struct {
	Email string `json:"email"`
}

type authPackRequest struct {
	Email       string               `json:"email"`
	OTP         string               `json:"otp"`
	PackSetID   string               `json:"packSetId,omitempty"`
	AuthKeyPack *keyless.AuthKeyPack `json:"authKeyPack,omitempty"`
}

type authPackResponse struct {
	AuthKeyPack json.RawMessage `json:"authKeyPack"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (c *Client) post(ctx context.Context, endpoint string, req, resp any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("waiting to call %s: %w", endpoint, err)
	}

	marshaled, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("error marshaling request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+endpoint, bytes.NewReader(marshaled))
	if err != nil {
		return fmt.Errorf("error creating HTTP request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if c.authToken != "" {
		httpReq.Header.Set("Authorization", "Bearer "+c.authToken)
	}

	httpResp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("HTTP call returned with error: %w", err)
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("error reading HTTP response body: %w", err)
	}

	switch httpResp.StatusCode {
	case http.StatusOK, http.StatusNoContent:
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", ErrInvalidOTP, serverMessage(respBody))
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", transport.ErrNotFound, serverMessage(respBody))
	default:
		return fmt.Errorf("non-OK status returned: %s - %s", httpResp.Status, serverMessage(respBody))
	}

	if resp == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, resp); err != nil {
		return fmt.Errorf("error unmarshaling response: %w", err)
	}
	return nil
}

func serverMessage(body []byte) string {
	var e errorResponse
	if json.Unmarshal(body, &e) == nil && e.Error != "" {
		return e.Error
	}
	return strings.TrimSpace(string(body))
}

// SendOTP asks the service to e-mail a one-time password to email.
func (c *Client) SendOTP(ctx context.Context, email string) error {
	if email == "" {
		return errors.New("authserver: email is required")
	}
	return c.post(ctx, sendOTPEndpoint, &otpRequest{Email: email}, nil)
}

// FetchAuthPack retrieves the Auth pack of packSetID. The returned pack is
// checked to belong to packSetID.
func (c *Client) FetchAuthPack(ctx context.Context, email, otp, packSetID string) (*keyless.AuthKeyPack, error) {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return nil, err
	}
	resp := &authPackResponse{}
	req := &authPackRequest{Email: email, OTP: otp, PackSetID: packSetID}
	if err := c.post(ctx, fetchAuthPackEndpoint, req, resp); err != nil {
		return nil, err
	}
	if len(resp.AuthKeyPack) == 0 {
		return nil, fmt.Errorf("%w: no auth pack for pack set %s", transport.ErrNotFound, packSetID)
	}
	pack, err := keyless.UnmarshalAuthKeyPack(resp.AuthKeyPack)
	if err != nil {
		return nil, err
	}
	if pack.PackSetID != packSetID {
		return nil, fmt.Errorf("%w: requested %s, service returned %s", keyless.ErrPackSetMismatch, packSetID, pack.PackSetID)
	}
	glog.V(1).Infof("Fetched auth pack for pack set %s", packSetID)
	return pack, nil
}

// UploadAuthPack stores pack with the service, replacing any previous one.
func (c *Client) UploadAuthPack(ctx context.Context, email, otp string, pack *keyless.AuthKeyPack) error {
	if pack == nil {
		return fmt.Errorf("%w: nil auth pack", keyless.ErrIncompletePack)
	}
	if err := keyless.ValidatePackSetID(pack.PackSetID); err != nil {
		return err
	}
	req := &authPackRequest{Email: email, OTP: otp, PackSetID: pack.PackSetID, AuthKeyPack: pack}
	if err := c.post(ctx, uploadAuthPackEndpoint, req, nil); err != nil {
		return err
	}
	glog.Infof("Uploaded auth pack for pack set %s", pack.PackSetID)
	return nil
}

// ResetAuthPack deletes the Auth pack of packSetID from the service.
func (c *Client) ResetAuthPack(ctx context.Context, email, otp, packSetID string) error {
	if err := keyless.ValidatePackSetID(packSetID); err != nil {
		return err
	}
	req := &authPackRequest{Email: email, OTP: otp, PackSetID: packSetID}
	if err := c.post(ctx, resetAuthPackEndpoint, req, nil); err != nil {
		return err
	}
	glog.Infof("Reset auth pack for pack set %s", packSetID)
	return nil
}
