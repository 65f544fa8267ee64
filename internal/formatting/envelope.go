// Package formatting shapes provider output for the chat client.
package formatting

import (
	"net/http"

	"mrilo/internal/domain/models"
)

// CustomResponse wraps text and sources in the success envelope.
// A nil source list is sent as an empty array.
func CustomResponse(text string, sources []models.Source) models.Envelope {
	if sources == nil {
		sources = []models.Source{}
	}
	return models.Envelope{
		Status: http.StatusOK,
		Reply:  &models.ChatReply{Response: text, Sources: sources},
	}
}

// ErrorResponse wraps message in the error envelope. A non-positive status means 500.
func ErrorResponse(message string, status int) models.Envelope {
	if status <= 0 {
		status = http.StatusInternalServerError
	}
	return models.Envelope{
		Status:  status,
		Failure: &models.ErrorReply{Error: message},
	}
}
