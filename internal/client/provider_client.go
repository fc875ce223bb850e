package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/LeventeLantos/alarm-sms-dispatch/internal/model"
)

const maxResponseBytes = 64 << 10

type role int

const (
	roleLiteral role = iota
	roleMessage
	rolePhone
	roleUsername
	rolePassword
	roleSender
)

func roleOf(v string) role {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "message", "msg", "text", "body":
		return roleMessage
	case "phone", "phonenumber", "sendtophonenumbers", "mobile", "number":
		return rolePhone
	case "username", "user", "userid":
		return roleUsername
	case "password", "pass":
		return rolePassword
	case "sender_name", "sendername", "sender", "from":
		return roleSender
	default:
		return roleLiteral
	}
}

// ProviderConfig describes one SMS provider request shape. Params maps each
// provider field name to a role (message, phone, username, password, sender)
// or to a literal value sent as is.
type ProviderConfig struct {
	Endpoint    string
	Method      string
	ContentType string
	Params      map[string]string
	Username    string
	Password    string
	SenderName  string
	Timeout     time.Duration
}

// ParseParams decodes the JSON object form of ProviderConfig.Params.
func ParseParams(raw string) (map[string]string, error) {
	var params map[string]string
	if err := json.Unmarshal([]byte(raw), &params); err != nil {
		return nil, fmt.Errorf("provider params must be a JSON object of strings: %w", err)
	}
	if len(params) == 0 {
		return nil, fmt.Errorf("provider params are empty")
	}
	return params, nil
}

// ProviderClient sends one SMS per call to a configurable HTTP provider.
type ProviderClient struct {
	cfg    ProviderConfig
	json   bool
	client *http.Client
	log    *slog.Logger
}

func NewProviderClient(cfg ProviderConfig, log *slog.Logger) (*ProviderClient, error) {
	if _, err := url.ParseRequestURI(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid provider endpoint: %w", err)
	}
	cfg.Method = strings.ToUpper(strings.TrimSpace(cfg.Method))
	if cfg.Method == "" {
		cfg.Method = http.MethodPost
	}
	switch cfg.Method {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch:
	default:
		return nil, fmt.Errorf("http method %s not supported", cfg.Method)
	}
	if len(cfg.Params) == 0 {
		return nil, fmt.Errorf("provider params are empty")
	}
	if cfg.SenderName == "" {
		cfg.SenderName = "SCADA"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}

	return &ProviderClient{
		cfg:  cfg,
		json: strings.Contains(strings.ToLower(cfg.ContentType), "json"),
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		log: log,
	}, nil
}

func (c *ProviderClient) values(message, phone string) map[string]string {
	out := make(map[string]string, len(c.cfg.Params))
	for field, v := range c.cfg.Params {
		switch roleOf(v) {
		case roleMessage:
			out[field] = message
		case rolePhone:
			out[field] = phone
		case roleUsername:
			out[field] = c.cfg.Username
		case rolePassword:
			out[field] = c.cfg.Password
		case roleSender:
			out[field] = c.cfg.SenderName
		default:
			out[field] = v
		}
	}
	return out
}

func (c *ProviderClient) newRequest(ctx context.Context, values map[string]string) (*http.Request, error) {
	if c.cfg.Method == http.MethodGet {
		q := url.Values{}
		for k, v := range values {
			q.Set(k, v)
		}
		u := c.cfg.Endpoint
		if strings.Contains(u, "?") {
			u += "&" + q.Encode()
		} else {
			u += "?" + q.Encode()
		}
		return http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	}

	if c.json {
		body, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, c.cfg.Method, c.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	form := url.Values{}
	for k, v := range values {
		form.Set(k, v)
	}
	req, err := http.NewRequestWithContext(ctx, c.cfg.Method, c.cfg.Endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req, nil
}

// Send performs one provider call. Failures are reported in the result,
// never as an error: any 2xx is a success, everything else is not.
func (c *ProviderClient) Send(ctx context.Context, message, phone string) model.SendResult {
	values := c.values(message, phone)

	c.log.Debug("sms provider request",
		slog.String("method", c.cfg.Method),
		slog.String("endpoint", c.cfg.Endpoint),
		slog.Bool("json", c.json),
		slog.Any("params", MaskParams(values, c.cfg.Params)),
	)

	req, err := c.newRequest(ctx, values)
	if err != nil {
		return c.fault(phone, err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return c.fault(phone, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))

	c.log.Debug("sms provider response",
		slog.Int("status", resp.StatusCode),
		slog.Int("bytes", len(body)),
	)

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		c.log.Info("sms sent",
			slog.String("phone", MaskPhone(phone)),
			slog.Int("status", resp.StatusCode),
			slog.String("method", c.cfg.Method),
		)
		return model.SendResult{
			Success:     true,
			StatusText:  fmt.Sprintf("SMS sent successfully - HTTP %d", resp.StatusCode),
			RawResponse: string(body),
			StatusCode:  resp.StatusCode,
		}
	}

	c.log.Error("sms provider call failed",
		slog.String("phone", MaskPhone(phone)),
		slog.Int("status", resp.StatusCode),
		slog.String("body", maskBody(string(body), phone)),
	)
	return model.SendResult{
		Success:     false,
		StatusText:  fmt.Sprintf("API call failed - HTTP %d", resp.StatusCode),
		RawResponse: string(body),
		StatusCode:  resp.StatusCode,
	}
}

// maskBody hides the recipient number where a provider echoes it back.
func maskBody(body, phone string) string {
	if phone == "" {
		return body
	}
	return strings.ReplaceAll(body, phone, MaskPhone(phone))
}

func (c *ProviderClient) fault(phone string, err error) model.SendResult {
	// The request URL of a GET call carries the credentials.
	var ue *url.Error
	if errors.As(err, &ue) {
		ue.URL = c.cfg.Endpoint
	}

	c.log.Error("sms provider call error",
		slog.String("phone", MaskPhone(phone)),
		slog.String("method", c.cfg.Method),
		slog.Any("error", err),
	)
	return model.SendResult{
		Success:     false,
		StatusText:  err.Error(),
		RawResponse: fmt.Sprintf("%T: %v", err, err),
	}
}
