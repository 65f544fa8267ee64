package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"mrilo/internal/domain/models"
)

// ListChats returns the signed-in user's remote chats, newest first
func (c *Client) ListChats(ctx context.Context) ([]models.ChatRecord, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/chats", nil)
	if err != nil {
		return nil, err
	}
	var records []models.ChatRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to decode chats: %w", err)
	}
	return records, nil
}

// SaveChat upserts a chat by id
func (c *Client) SaveChat(ctx context.Context, req *models.SaveChatRequest) error {
	_, err := c.do(ctx, http.MethodPut, "/api/chats/"+url.PathEscape(req.ID), req)
	return err
}

// UpdateChat patches only the fields set in req
func (c *Client) UpdateChat(ctx context.Context, id string, req *models.UpdateChatRequest) error {
	body := map[string]interface{}{}
	if req.Title != nil {
		body["title"] = *req.Title
	}
	if req.IsFavorite != nil {
		body["is_favorite"] = *req.IsFavorite
	}
	if req.Folder.Present {
		// nil Value encodes as JSON null, which removes the chat from its folder
		body["folder_id"] = req.Folder.Value
	}
	_, err := c.do(ctx, http.MethodPatch, "/api/chats/"+url.PathEscape(id), body)
	return err
}

// DeleteChat removes a chat
func (c *Client) DeleteChat(ctx context.Context, id string) error {
	_, err := c.do(ctx, http.MethodDelete, "/api/chats/"+url.PathEscape(id), nil)
	return err
}

// GetLanguage returns the stored reply language, or ""
func (c *Client) GetLanguage(ctx context.Context) (string, error) {
	data, err := c.do(ctx, http.MethodGet, "/api/users/me/preferences", nil)
	if err != nil {
		return "", err
	}
	var prefs models.UserPreferences
	if err := json.Unmarshal(data, &prefs); err != nil {
		return "", fmt.Errorf("failed to decode preferences: %w", err)
	}
	return prefs.Language(), nil
}
