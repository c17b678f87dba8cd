package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
)

// envelope 服务端统一响应
type envelope struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Reason  string          `json:"reason"`
	Result  json.RawMessage `json:"result"`
}

// apiClient one user's session; resty keeps the credential cookie in its jar.
type apiClient struct {
	name string
	http *resty.Client
}

func newAPIClient(name, baseURL string, timeout time.Duration) *apiClient {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	return &apiClient{name: name, http: c}
}

// call 发请求并校验状态码；out 非空时解析 result
func (c *apiClient) call(method, path string, body any, want int, out any) (*envelope, error) {
	req := c.http.R()
	if body != nil {
		req.SetBody(body)
	}
	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s %s: %w", c.name, method, path, err)
	}
	var env envelope
	if ct := resp.Header().Get("Content-Type"); ct == "application/json" {
		if err := json.Unmarshal(resp.Body(), &env); err != nil {
			return nil, fmt.Errorf("%s %s %s: decode envelope: %w", c.name, method, path, err)
		}
	}
	if resp.StatusCode() != want {
		return &env, fmt.Errorf("%s %s %s: status %d (%s), want %d", c.name, method, path, resp.StatusCode(), env.Reason, want)
	}
	if out != nil && len(env.Result) > 0 {
		if err := json.Unmarshal(env.Result, out); err != nil {
			return &env, fmt.Errorf("%s %s %s: decode result: %w", c.name, method, path, err)
		}
	}
	return &env, nil
}

// raw 用于非 JSON 响应（导出）
func (c *apiClient) raw(path string, want int) ([]byte, error) {
	resp, err := c.http.R().Get(path)
	if err != nil {
		return nil, fmt.Errorf("%s GET %s: %w", c.name, path, err)
	}
	if resp.StatusCode() != want {
		return nil, fmt.Errorf("%s GET %s: status %d, want %d", c.name, path, resp.StatusCode(), want)
	}
	return resp.Body(), nil
}
