// Copyright (c) 2025 Seedfast
// Licensed under the MIT License. See LICENSE file in the project root for details.

package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"storefront/cli/internal/auth"
	"storefront/cli/internal/logging"

	"github.com/pterm/pterm"
)

// principalCacheTTL bounds how long a looked-up principal is reused.
const principalCacheTTL = 10 * time.Minute

// HTTP implements auth.Backend over the Firebase Identity Toolkit and Secure Token REST APIs.
// Session tokens are kept in a TokenCache; the last looked-up principal is cached in
// memory so whoami keeps working offline.
type HTTP struct {
	// identityURL is the Identity Toolkit base, e.g. "https://identitytoolkit.googleapis.com"
	identityURL string
	// tokenURL is the Secure Token base, e.g. "https://securetoken.googleapis.com"
	tokenURL string
	apiKey   string
	client   *http.Client
	tokens   TokenCache
	log      *pterm.Logger
	now      func() time.Time

	mu          sync.Mutex
	cached      *auth.Principal
	cachedToken string
	cachedAt    time.Time
}

// HTTPOptions configures NewHTTP.
type HTTPOptions struct {
	IdentityURL string
	TokenURL    string
	APIKey      string
	Timeout     time.Duration
	Tokens      TokenCache
	Logger      *pterm.Logger
	Client      *http.Client
}

// NewHTTP creates a Firebase REST adapter.
func NewHTTP(opts HTTPOptions) *HTTP {
	client := opts.Client
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	log := opts.Logger
	if log == nil {
		log = logging.Discard()
	}
	return &HTTP{
		identityURL: strings.TrimRight(opts.IdentityURL, "/"),
		tokenURL:    strings.TrimRight(opts.TokenURL, "/"),
		apiKey:      opts.APIKey,
		client:      client,
		tokens:      opts.Tokens,
		log:         log,
		now:         time.Now,
	}
}

// setStandardHeaders sets headers common to every request.
func (h *HTTP) setStandardHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "storefront-cli")
}

// endpoint builds base+path with the API key query parameter.
func (h *HTTP) endpoint(base, path string) string {
	return base + path + "?key=" + url.QueryEscape(h.apiKey)
}

// postJSON sends body as JSON and decodes a 200 response into out.
// Firebase error envelopes become *auth.RejectedError for 4xx responses.
func (h *HTTP) postJSON(ctx context.Context, endpoint string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	h.setStandardHeaders(req)
	req.Header.Set("Content-Type", "application/json")
	return h.do(req, out)
}

// postForm sends form as application/x-www-form-urlencoded.
func (h *HTTP) postForm(ctx context.Context, endpoint string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	h.setStandardHeaders(req)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return h.do(req, out)
}

func (h *HTTP) do(req *http.Request, out any) error {
	h.log.Trace("identity request", h.log.Args("url", logging.Mask(req.URL.String())))

	resp, err := h.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		if resp.StatusCode >= 400 && resp.StatusCode < 500 {
			if rej := parseErrorEnvelope(b); rej != nil {
				return rej
			}
		}
		return fmt.Errorf("identity backend: %d %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// parseErrorEnvelope decodes {"error":{"code":400,"message":"INVALID_PASSWORD"}}.
// Messages may carry detail after the code, as in "WEAK_PASSWORD : Password should be ...".
func parseErrorEnvelope(b []byte) *auth.RejectedError {
	var env struct {
		Error struct {
			Code    int    `json:"code"`
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(b, &env); err != nil || env.Error.Message == "" {
		return nil
	}

	code, detail, _ := strings.Cut(env.Error.Message, ":")
	code = strings.TrimSpace(code)
	detail = strings.TrimSpace(detail)

	if msg, ok := friendlyMessages[code]; ok {
		return reject(code, msg)
	}
	if detail != "" {
		return reject(code, detail)
	}
	return reject(code, code)
}

// friendlyMessages maps Identity Toolkit codes to user-facing diagnostics.
var friendlyMessages = map[string]string{
	"EMAIL_NOT_FOUND":             "There is no user record corresponding to this identifier. The user may have been deleted.",
	"INVALID_PASSWORD":            "The password is invalid or the user does not have a password.",
	"INVALID_LOGIN_CREDENTIALS":   "The supplied auth credential is incorrect, malformed or has expired.",
	"INVALID_EMAIL":               "The email address is badly formatted.",
	"MISSING_EMAIL":               "An email address must be provided.",
	"MISSING_PASSWORD":            "A password must be provided.",
	"USER_DISABLED":               "The user account has been disabled by an administrator.",
	"TOO_MANY_ATTEMPTS_TRY_LATER": "We have blocked all requests from this device due to unusual activity. Try again later.",
	"INVALID_IDP_RESPONSE":        "The supplied auth credential is malformed or has expired.",
	"OPERATION_NOT_ALLOWED":       "The given sign-in provider is disabled for this project.",
	"INVALID_ID_TOKEN":            "The user's credential is no longer valid. The user must sign in again.",
	"TOKEN_EXPIRED":               "The user's credential is no longer valid. The user must sign in again.",
	"USER_NOT_FOUND":              "There is no user record corresponding to this identifier. The user may have been deleted.",
	"INVALID_REFRESH_TOKEN":       "The user's credential is no longer valid. The user must sign in again.",
}
