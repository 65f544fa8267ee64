package client

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"mrilo/internal/domain/models"
)

// ErrInvalidReply means the chat endpoint answered without a response text
var ErrInvalidReply = errors.New("Invalid response from AI service")

// Chat sends one message to POST /chat
func (c *Client) Chat(ctx context.Context, req *models.ChatRequest) (*models.ChatReply, error) {
	data, err := c.do(ctx, http.MethodPost, "/chat", req)
	if err != nil {
		return nil, err
	}

	var env models.Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, fmt.Errorf("failed to decode chat reply: %w", err)
	}
	if env.IsError() {
		return nil, &APIError{StatusCode: http.StatusOK, Message: env.Failure.Error}
	}
	if env.Reply == nil || env.Reply.Response == "" {
		return nil, ErrInvalidReply
	}
	return env.Reply, nil
}

// Complete sends a one-shot completion to POST /openai
func (c *Client) Complete(ctx context.Context, req *models.OpenAIRequest) (string, error) {
	data, err := c.do(ctx, http.MethodPost, "/openai", req)
	if err != nil {
		return "", err
	}
	var reply struct {
		Response string `json:"response"`
	}
	if err := json.Unmarshal(data, &reply); err != nil {
		return "", fmt.Errorf("failed to decode completion: %w", err)
	}
	if reply.Response == "" {
		return "", ErrInvalidReply
	}
	return reply.Response, nil
}
