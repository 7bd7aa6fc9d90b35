package client

import (
	"context"
	"encoding/json"
	"fmt"
)

type validator interface {
	Validate() error
}

// envelope is the {success, data, error} wrapper most endpoints reply with.
type envelope[T any] struct {
	Success *bool  `json:"success"`
	Data    T      `json:"data"`
	Error   string `json:"error"`
	Message string `json:"message"`
}

func (e *envelope[T]) check() error {
	if e.Success != nil && !*e.Success {
		reason := e.Error
		if reason == "" {
			reason = e.Message
		}
		if reason == "" {
			reason = "success=false"
		}
		return &PayloadError{Reason: reason}
	}
	return nil
}

func getList[T validator](ctx context.Context, c *Client, path string) ([]T, error) {
	var env envelope[[]T]
	if err := c.get(ctx, path, &env); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	if err := validateAll(env.Data); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return []T{}, nil
	}
	return env.Data, nil
}

func sendOne[T validator](ctx context.Context, c *Client, cl call) (*T, error) {
	var env envelope[*T]
	cl.out = &env
	if err := c.doRequest(ctx, cl); err != nil {
		return nil, err
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &PayloadError{Reason: "missing data"}
	}
	if err := (*env.Data).Validate(); err != nil {
		return nil, &PayloadError{Reason: "invalid data", Err: err}
	}
	return env.Data, nil
}

func validateAll[T validator](items []T) error {
	for i, it := range items {
		if err := it.Validate(); err != nil {
			return &PayloadError{Reason: fmt.Sprintf("item %d", i), Err: err}
		}
	}
	return nil
}

// rawData returns the envelope's data member, or the whole body when the
// endpoint replied without an envelope.
func rawData(body json.RawMessage) (json.RawMessage, error) {
	var env envelope[json.RawMessage]
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &PayloadError{Reason: "decode response", Err: err}
	}
	if err := env.check(); err != nil {
		return nil, err
	}
	if len(env.Data) > 0 && string(env.Data) != "null" {
		return env.Data, nil
	}
	return body, nil
}
