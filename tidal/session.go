// Package tidal implements the TIDAL streaming service provider.
package tidal

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/songdl-cli/songdl/auth"
	"github.com/songdl-cli/songdl/filesystem"
	"github.com/songdl-cli/songdl/log"
	"github.com/songdl-cli/songdl/network"
	"github.com/songdl-cli/songdl/where"
)

const (
	authBaseURL = "https://auth.tidal.com/v1/oauth2"

	// Public TV-client credentials, the same ones every open TIDAL
	// downloader authenticates with.
	clientID     = "zU4XHVVkc2tDPo4t"
	clientSecret = "VJKhDFqJPqvsPVNBV6ukXTJmwlvbttP7wlMlrc72se4="

	tokenScope = "r_usr w_usr w_sub"
)

var ErrNotAuthorized = errors.New("tidal: no valid session, run device authorization first")

// Session holds the OAuth state for one TIDAL login. The access token and
// country code live in a JSON file under the config directory; the refresh
// token lives in the system keyring.
type Session struct {
	mu sync.RWMutex

	accessToken  string
	refreshToken string
	countryCode  string
	userID       string
	expiresAt    time.Time
}

type sessionSnapshot struct {
	AccessToken string    `json:"access_token"`
	CountryCode string    `json:"country_code"`
	UserID      string    `json:"user_id"`
	ExpiresAt   time.Time `json:"expires_at"`
}

// DeviceCode is the pending device-authorization handle shown to the user.
type DeviceCode struct {
	DeviceCode      string `json:"deviceCode"`
	UserCode        string `json:"userCode"`
	VerificationURI string `json:"verificationUriComplete"`
	ExpiresIn       int    `json:"expiresIn"`
	Interval        int    `json:"interval"`
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	User         struct {
		UserID      json.Number `json:"userId"`
		CountryCode string      `json:"countryCode"`
	} `json:"user"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// Load restores a cached session from disk and keyring.
// Returns false when no usable cache exists.
func (s *Session) Load() bool {
	raw, err := filesystem.API().ReadFile(where.Session())
	if err != nil {
		return false
	}

	var snap sessionSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		log.Warn("session cache is corrupted: " + err.Error())
		return false
	}

	refreshToken, err := auth.GetRefreshToken()
	if err != nil || refreshToken == "" {
		return false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = snap.AccessToken
	s.countryCode = snap.CountryCode
	s.userID = snap.UserID
	s.expiresAt = snap.ExpiresAt
	s.refreshToken = refreshToken
	return true
}

// Save persists the session to disk and the refresh token to the keyring.
func (s *Session) Save() error {
	s.mu.RLock()
	snap := sessionSnapshot{
		AccessToken: s.accessToken,
		CountryCode: s.countryCode,
		UserID:      s.userID,
		ExpiresAt:   s.expiresAt,
	}
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	raw, err := json.Marshal(snap)
	if err != nil {
		return err
	}
	if err := filesystem.API().WriteFile(where.Session(), raw, 0o600); err != nil {
		return err
	}
	if refreshToken != "" {
		if err := auth.SetRefreshToken(refreshToken); err != nil {
			return err
		}
	}
	return nil
}

// Invalidate drops the on-disk snapshot and the keyring token.
func (s *Session) Invalidate() {
	s.mu.Lock()
	s.accessToken = ""
	s.refreshToken = ""
	s.expiresAt = time.Time{}
	s.mu.Unlock()

	if err := filesystem.API().Remove(where.Session()); err != nil {
		log.Warn("could not remove the session cache: " + err.Error())
	}
	if err := auth.DeleteRefreshToken(); err != nil {
		log.Warn("could not remove the keyring token: " + err.Error())
	}
}

// Valid reports whether the session holds a non-expired access token.
func (s *Session) Valid() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.accessToken != "" && time.Now().Before(s.expiresAt)
}

// CountryCode returns the entitlement region of the logged-in user.
func (s *Session) CountryCode() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.countryCode == "" {
		return "US"
	}
	return s.countryCode
}

// Headers returns the authorization headers for API calls.
func (s *Session) Headers() map[string]string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return map[string]string{
		"Authorization": "Bearer " + s.accessToken,
	}
}

// StartDeviceFlow begins device authorization and returns the code the user
// has to confirm in a browser.
func (s *Session) StartDeviceFlow(ctx context.Context) (*DeviceCode, error) {
	form := url.Values{
		"client_id": {clientID},
		"scope":     {tokenScope},
	}

	var code DeviceCode
	if err := postForm(ctx, authBaseURL+"/device_authorization", form, &code); err != nil {
		return nil, fmt.Errorf("device authorization: %w", err)
	}
	if code.DeviceCode == "" {
		return nil, errors.New("device authorization: empty device code")
	}
	if code.Interval <= 0 {
		code.Interval = 2
	}
	return &code, nil
}

// WaitForToken polls the token endpoint until the user confirms the device
// code, the code expires or the context is cancelled.
func (s *Session) WaitForToken(ctx context.Context, code *DeviceCode) error {
	deadline := time.Now().Add(time.Duration(code.ExpiresIn) * time.Second)
	ticker := time.NewTicker(time.Duration(code.Interval) * time.Second)
	defer ticker.Stop()

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"device_code":   {code.DeviceCode},
		"grant_type":    {"urn:ietf:params:oauth:grant-type:device_code"},
		"scope":         {tokenScope},
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}

		if time.Now().After(deadline) {
			return errors.New("device code expired before confirmation")
		}

		var token tokenResponse
		err := postForm(ctx, authBaseURL+"/token", form, &token)
		if err != nil {
			continue
		}
		if token.Error != "" {
			if strings.Contains(token.Error, "authorization_pending") {
				continue
			}
			return fmt.Errorf("device login rejected: %s", token.ErrorDescription)
		}
		if token.AccessToken == "" {
			continue
		}

		s.apply(&token)
		return s.Save()
	}
}

// Refresh exchanges the refresh token for a new access token. Satisfies the
// header-source contract used by the shared fetcher.
func (s *Session) Refresh() error {
	s.mu.RLock()
	refreshToken := s.refreshToken
	s.mu.RUnlock()

	if refreshToken == "" {
		return ErrNotAuthorized
	}

	form := url.Values{
		"client_id":     {clientID},
		"client_secret": {clientSecret},
		"refresh_token": {refreshToken},
		"grant_type":    {"refresh_token"},
	}

	var token tokenResponse
	if err := postForm(context.Background(), authBaseURL+"/token", form, &token); err != nil {
		return fmt.Errorf("token refresh: %w", err)
	}
	if token.Error != "" || token.AccessToken == "" {
		return fmt.Errorf("token refresh rejected: %s", token.ErrorDescription)
	}

	s.apply(&token)
	return s.Save()
}

func (s *Session) apply(token *tokenResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accessToken = token.AccessToken
	if token.RefreshToken != "" {
		s.refreshToken = token.RefreshToken
	}
	if token.User.CountryCode != "" {
		s.countryCode = token.User.CountryCode
	}
	if token.User.UserID.String() != "" {
		s.userID = token.User.UserID.String()
	}
	s.expiresAt = time.Now().Add(time.Duration(token.ExpiresIn) * time.Second)
}

func postForm(ctx context.Context, rawURL string, form url.Values, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, rawURL, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := network.Client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return json.NewDecoder(resp.Body).Decode(out)
}
