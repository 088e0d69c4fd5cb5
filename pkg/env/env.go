package env

import (
	"encoding/base64"
	"fmt"
	"regexp"
	"strings"

	perrors "github.com/matzehuels/postroc/pkg/errors"
)

// AuthType selects how credentials are turned into request headers.
type AuthType string

const (
	AuthNone   AuthType = "none"
	AuthBearer AuthType = "bearer"
	AuthAPIKey AuthType = "api-key"
	AuthBasic  AuthType = "basic"
)

// Target is one named deployment of an API, e.g. "staging".
type Target struct {
	Name    string `toml:"name" json:"name" yaml:"name"`
	BaseURL string `toml:"base_url" json:"baseUrl" yaml:"baseUrl"`
}

// Auth holds the credentials for one [AuthType]. Only the fields relevant
// to Type are read.
type Auth struct {
	Type         AuthType `toml:"type" json:"type" yaml:"type"`
	Token        string   `toml:"token" json:"token,omitempty" yaml:"token,omitempty"`
	APIKeyHeader string   `toml:"api_key_header" json:"apiKeyHeader,omitempty" yaml:"apiKeyHeader,omitempty"`
	APIKeyValue  string   `toml:"api_key_value" json:"apiKeyValue,omitempty" yaml:"apiKeyValue,omitempty"`
	Username     string   `toml:"username" json:"username,omitempty" yaml:"username,omitempty"`
	Password     string   `toml:"password" json:"password,omitempty" yaml:"password,omitempty"`
}

// Header is a request header that can be switched off without deleting it.
type Header struct {
	Key      string `toml:"key" json:"key" yaml:"key"`
	Value    string `toml:"value" json:"value" yaml:"value"`
	Disabled bool   `toml:"disabled" json:"disabled,omitempty" yaml:"disabled,omitempty"`
}

// Config is the persisted environment setup shared by a group of nodes.
type Config struct {
	Environments   []Target `toml:"environments" json:"environments" yaml:"environments"`
	Active         string   `toml:"active" json:"active" yaml:"active"`
	Auth           Auth     `toml:"auth" json:"auth" yaml:"auth"`
	DefaultHeaders []Header `toml:"headers" json:"headers,omitempty" yaml:"headers,omitempty"`
}

// Environment is the resolved form handed to fetchers: a base URL and the
// final header map.
type Environment struct {
	Name    string            `json:"name"`
	BaseURL string            `json:"baseUrl"`
	Headers map[string]string `json:"headers,omitempty"`
}

// Resolve picks the active target and builds the header map. Headers are
// applied in order: enabled default headers, then auth, then extra, so
// later entries win. Without an active name the first target is used.
func (c Config) Resolve(extra []Header) (*Environment, error) {
	e := &Environment{Headers: make(map[string]string)}

	switch {
	case c.Active != "":
		t, ok := c.target(c.Active)
		if !ok {
			return nil, perrors.New(perrors.ErrCodeNotFound, "environment %q is not configured", c.Active)
		}
		e.Name, e.BaseURL = t.Name, t.BaseURL
	case len(c.Environments) > 0:
		e.Name, e.BaseURL = c.Environments[0].Name, c.Environments[0].BaseURL
	}
	if e.BaseURL != "" {
		if err := perrors.ValidateURL(e.BaseURL); err != nil {
			return nil, perrors.Wrap(perrors.ErrCodeInvalidInput, err, "environment %q", e.Name)
		}
	}

	setHeaders(e.Headers, c.DefaultHeaders)
	if err := c.Auth.apply(e.Headers); err != nil {
		return nil, err
	}
	setHeaders(e.Headers, extra)
	return e, nil
}

func (c Config) target(name string) (Target, bool) {
	for _, t := range c.Environments {
		if t.Name == name {
			return t, true
		}
	}
	return Target{}, false
}

func setHeaders(dst map[string]string, headers []Header) {
	for _, h := range headers {
		if h.Disabled || h.Key == "" {
			continue
		}
		set(dst, h.Key, h.Value)
	}
}

// set replaces any existing header with the same name, ignoring case.
func set(dst map[string]string, key, value string) {
	for k := range dst {
		if strings.EqualFold(k, key) {
			delete(dst, k)
		}
	}
	dst[key] = value
}

func (a Auth) apply(h map[string]string) error {
	switch a.Type {
	case "", AuthNone:
	case AuthBearer:
		if a.Token != "" {
			set(h, "Authorization", "Bearer "+a.Token)
		}
	case AuthAPIKey:
		if a.APIKeyHeader != "" && a.APIKeyValue != "" {
			set(h, a.APIKeyHeader, a.APIKeyValue)
		}
	case AuthBasic:
		if a.Username != "" && a.Password != "" {
			creds := base64.StdEncoding.EncodeToString([]byte(a.Username + ":" + a.Password))
			set(h, "Authorization", "Basic "+creds)
		}
	default:
		return perrors.New(perrors.ErrCodeInvalidInput, "unknown auth type %q", a.Type)
	}
	return nil
}

var absoluteURL = regexp.MustCompile(`(?i)^https?://`)

// IsAbsoluteURL reports whether u starts with http:// or https://.
func IsAbsoluteURL(u string) bool {
	return absoluteURL.MatchString(u)
}

// BuildURL joins endpoint onto the base URL with exactly one slash.
// Absolute endpoints and a missing base URL leave endpoint unchanged.
func (e *Environment) BuildURL(endpoint string) string {
	if IsAbsoluteURL(endpoint) || e == nil || e.BaseURL == "" {
		return endpoint
	}
	return strings.TrimSuffix(e.BaseURL, "/") + "/" + strings.TrimPrefix(endpoint, "/")
}

var pathVar = regexp.MustCompile(`\{\{(\w+)\}\}`)

// ReplacePathVariables substitutes {{key}} placeholders with values from
// data. Placeholders whose key is missing or nil are left as they are.
func ReplacePathVariables(endpoint string, data map[string]any) string {
	return pathVar.ReplaceAllStringFunc(endpoint, func(m string) string {
		key := pathVar.FindStringSubmatch(m)[1]
		if v, ok := data[key]; ok && v != nil {
			return fmt.Sprint(v)
		}
		return m
	})
}
