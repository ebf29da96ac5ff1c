package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// apiError is a decoded tRPC error envelope.
type apiError struct {
	Status       int
	Code         string
	Message      string
	FieldErrors  map[string]string
	RetryAfterMs int64
}

func (e *apiError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (%d): %s", e.Code, e.Status, e.Message)
	for f, msg := range e.FieldErrors {
		fmt.Fprintf(&b, "\n  %s: %s", f, msg)
	}
	if e.RetryAfterMs > 0 {
		fmt.Fprintf(&b, "\n  retry after %dms", e.RetryAfterMs)
	}
	return b.String()
}

// client calls tRPC-style procedures on the module API.
type client struct {
	base  string
	token string
	http  *http.Client
}

func newClient(base, token string) *client {
	return &client{base: strings.TrimRight(base, "/"), token: token, http: http.DefaultClient}
}

// query calls a GET procedure, passing input URL-encoded.
func (c *client) query(ctx context.Context, proc string, input any) (json.RawMessage, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	target := c.base + "/trpc/" + proc + "?input=" + url.QueryEscape(string(raw))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

// mutate calls a POST procedure with input as the JSON body.
func (c *client) mutate(ctx context.Context, proc string, input any) (json.RawMessage, error) {
	raw, err := json.Marshal(input)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/trpc/"+proc, bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *client) do(req *http.Request) (json.RawMessage, error) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var env struct {
		Result *struct {
			Data json.RawMessage `json:"data"`
		} `json:"result"`
		Error *struct {
			Message string `json:"message"`
			Data    struct {
				Code         string            `json:"code"`
				HTTPStatus   int               `json:"httpStatus"`
				FieldErrors  map[string]string `json:"fieldErrors"`
				RetryAfterMs int64             `json:"retryAfterMs"`
			} `json:"data"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("unexpected response (%d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	if env.Error != nil {
		return nil, &apiError{
			Status:       resp.StatusCode,
			Code:         env.Error.Data.Code,
			Message:      env.Error.Message,
			FieldErrors:  env.Error.Data.FieldErrors,
			RetryAfterMs: env.Error.Data.RetryAfterMs,
		}
	}
	if env.Result == nil {
		return nil, fmt.Errorf("empty response (%d)", resp.StatusCode)
	}
	return env.Result.Data, nil
}
