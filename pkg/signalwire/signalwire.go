// Package signalwire talks to the SignalWire fabric REST API: it registers the
// SWML webhook handler that routes inbound calls to this process and issues
// guest tokens for the browser dialer. The dialog core never interprets any of
// this; the handler address is an opaque string surfaced to the dashboard.
package signalwire

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
	"unicode"
)

type Config struct {
	SpaceName         string        `envconfig:"SPACE_NAME" split_words:"true" required:"true"`
	ProjectID         string        `envconfig:"PROJECT_ID" split_words:"true" required:"true"`
	Token             string        `split_words:"true" required:"true"`
	AgentName         string        `envconfig:"AGENT_NAME" split_words:"true" default:"afterhours"`
	ProxyURLBase      string        `envconfig:"PROXY_URL_BASE" split_words:"true"`
	BasicAuthUser     string        `envconfig:"BASIC_AUTH_USER" split_words:"true" default:"signalwire"`
	BasicAuthPassword string        `envconfig:"BASIC_AUTH_PASSWORD" split_words:"true"`
	Timeout           time.Duration `split_words:"true" default:"10s"`
}

// HandlerInfo identifies the registered SWML handler and the address callers dial.
type HandlerInfo struct {
	ID        string `json:"id"`
	AddressID string `json:"address_id"`
	Address   string `json:"address"`
}

type Client struct {
	host       string
	projectID  string
	token      string
	agentName  string
	webhookURL string
	httpClient *http.Client
}

var ErrNotConfigured = errors.New("signalwire credentials not configured")

func NewClient(cfg Config) (*Client, error) {
	space := strings.TrimSpace(cfg.SpaceName)
	project := strings.TrimSpace(cfg.ProjectID)
	token := strings.TrimSpace(cfg.Token)
	if space == "" || project == "" || token == "" {
		return nil, ErrNotConfigured
	}

	proxy := strings.TrimRight(strings.TrimSpace(cfg.ProxyURLBase), "/")
	if proxy == "" {
		return nil, errors.New("signalwire proxy url base is required")
	}

	host := space
	if !strings.Contains(host, ".") {
		host = space + ".signalwire.com"
	}

	agent := strings.TrimSpace(cfg.AgentName)
	if agent == "" {
		agent = "afterhours"
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		host:       host,
		projectID:  project,
		token:      token,
		agentName:  agent,
		webhookURL: webhookURL(proxy, agent, cfg.BasicAuthUser, cfg.BasicAuthPassword),
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

// webhookURL embeds basic-auth credentials when both are set, matching what
// the fabric side expects for authenticated SWML fetches.
func webhookURL(proxy, agent, user, pass string) string {
	user = strings.TrimSpace(user)
	pass = strings.TrimSpace(pass)
	if user != "" && pass != "" {
		if scheme, rest, ok := strings.Cut(proxy, "://"); ok {
			return fmt.Sprintf("%s://%s:%s@%s/%s", scheme, user, pass, rest, agent)
		}
	}
	return proxy + "/" + agent
}

func (c *Client) AgentName() string {
	return c.agentName
}

// EnsureHandler finds the SWML handler registered under the agent name,
// creating it if absent, and points its request URL at this deployment.
func (c *Client) EnsureHandler(ctx context.Context) (*HandlerInfo, error) {
	existing, err := c.findHandler(ctx)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		update := map[string]any{
			"primary_request_url":    c.webhookURL,
			"primary_request_method": "POST",
		}
		path := "/api/fabric/resources/external_swml_handlers/" + existing.ID
		if _, err := c.do(ctx, http.MethodPut, path, update); err != nil {
			return nil, fmt.Errorf("update handler url: %w", err)
		}
		return existing, nil
	}

	create := map[string]any{
		"name":                   c.agentName,
		"used_for":               "calling",
		"primary_request_url":    c.webhookURL,
		"primary_request_method": "POST",
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/fabric/resources/external_swml_handlers", create)
	if err != nil {
		return nil, fmt.Errorf("create handler: %w", err)
	}
	var created struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(raw, &created); err != nil {
		return nil, fmt.Errorf("decode created handler: %w", err)
	}

	info := &HandlerInfo{ID: created.ID}
	addr, err := c.handlerAddress(ctx, created.ID)
	if err != nil {
		return nil, err
	}
	if addr != nil {
		info.AddressID = addr.ID
		info.Address = addr.Channels.Audio
	}
	return info, nil
}

// GuestToken issues a browser token restricted to the handler address.
func (c *Client) GuestToken(ctx context.Context, addressID string) (string, error) {
	if strings.TrimSpace(addressID) == "" {
		return "", errors.New("address id is empty")
	}
	body := map[string]any{
		"allowed_addresses": []string{addressID},
		"expire_at":         time.Now().Add(24 * time.Hour).Unix(),
	}
	raw, err := c.do(ctx, http.MethodPost, "/api/fabric/guests/tokens", body)
	if err != nil {
		return "", fmt.Errorf("request guest token: %w", err)
	}
	var resp struct {
		Token string `json:"token"`
	}
	if err := json.Unmarshal(raw, &resp); err != nil {
		return "", fmt.Errorf("decode guest token: %w", err)
	}
	return resp.Token, nil
}

type fabricAddress struct {
	ID       string `json:"id"`
	Channels struct {
		Audio string `json:"audio"`
	} `json:"channels"`
}

func (c *Client) findHandler(ctx context.Context) (*HandlerInfo, error) {
	raw, err := c.do(ctx, http.MethodGet, "/api/fabric/resources/external_swml_handlers", nil)
	if err != nil {
		return nil, fmt.Errorf("list handlers: %w", err)
	}
	var list struct {
		Data []struct {
			ID          string `json:"id"`
			DisplayName string `json:"display_name"`
			SWMLWebhook struct {
				Name string `json:"name"`
			} `json:"swml_webhook"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode handler list: %w", err)
	}

	for _, h := range list.Data {
		name := h.SWMLWebhook.Name
		if name == "" {
			name = h.DisplayName
		}
		if name != c.agentName {
			continue
		}
		info := &HandlerInfo{ID: h.ID}
		addr, err := c.handlerAddress(ctx, h.ID)
		if err != nil {
			return nil, err
		}
		if addr != nil {
			info.AddressID = addr.ID
			info.Address = addr.Channels.Audio
		}
		return info, nil
	}
	return nil, nil
}

func (c *Client) handlerAddress(ctx context.Context, handlerID string) (*fabricAddress, error) {
	path := "/api/fabric/resources/external_swml_handlers/" + handlerID + "/addresses"
	raw, err := c.do(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, fmt.Errorf("list handler addresses: %w", err)
	}
	var list struct {
		Data []fabricAddress `json:"data"`
	}
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, fmt.Errorf("decode handler addresses: %w", err)
	}
	return pickResourceAddress(list.Data, c.agentName), nil
}

// pickResourceAddress prefers the /public/{agent} resource address over any
// phone-number address attached to the same handler.
func pickResourceAddress(addrs []fabricAddress, agentName string) *fabricAddress {
	expected := "/public/" + agentName
	for i := range addrs {
		if addrs[i].Channels.Audio == expected {
			return &addrs[i]
		}
	}
	for i := range addrs {
		audio := addrs[i].Channels.Audio
		if !strings.HasPrefix(audio, "/public/") {
			continue
		}
		last := audio[strings.LastIndex(audio, "/")+1:]
		if !startsWithDigits(last) {
			return &addrs[i]
		}
	}
	if len(addrs) > 0 {
		return &addrs[0]
	}
	return nil
}

func startsWithDigits(s string) bool {
	for i, r := range s {
		if i >= 3 {
			break
		}
		if unicode.IsDigit(r) {
			return true
		}
	}
	return false
}

func (c *Client) do(ctx context.Context, method, path string, body any) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, "https://"+c.host+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.SetBasicAuth(c.projectID, c.token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 2<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return nil, fmt.Errorf("signalwire http status=%d body=%s", resp.StatusCode, string(raw))
	}
	return raw, nil
}
