package models

import "encoding/json"

// Credentials carries user supplied provider keys scoped to a single request
type Credentials struct {
	GeminiAPIKey string `json:"geminiApiKey,omitempty"`
}

// ChatRequest is the body of POST /chat
type ChatRequest struct {
	Message     string       `json:"message"`
	UserID      string       `json:"userId,omitempty"`
	Credentials *Credentials `json:"credentials,omitempty"`

	// Authenticated is set by the server when UserID comes from a verified token
	Authenticated bool `json:"-"`
}

// ChatReply is the success envelope
type ChatReply struct {
	Response string   `json:"response"`
	Sources  []Source `json:"sources"`
}

// ErrorReply is the failure envelope
type ErrorReply struct {
	Error string `json:"error"`
}

// Envelope is the fixed response shape of the chat endpoint: exactly one of
// Reply or Failure is set, and Status is the HTTP status it is sent with.
type Envelope struct {
	Status  int
	Reply   *ChatReply
	Failure *ErrorReply
}

// IsError reports whether the envelope carries an error
func (e Envelope) IsError() bool {
	return e.Failure != nil
}

// MarshalJSON writes whichever variant is set
func (e Envelope) MarshalJSON() ([]byte, error) {
	if e.Failure != nil {
		return json.Marshal(e.Failure)
	}
	if e.Reply != nil {
		return json.Marshal(e.Reply)
	}
	return json.Marshal(ChatReply{Sources: []Source{}})
}

// UnmarshalJSON accepts either variant; Status is left untouched.
func (e *Envelope) UnmarshalJSON(data []byte) error {
	var raw struct {
		Response *string  `json:"response"`
		Sources  []Source `json:"sources"`
		Error    *string  `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	e.Reply, e.Failure = nil, nil
	if raw.Error != nil {
		e.Failure = &ErrorReply{Error: *raw.Error}
		return nil
	}
	reply := &ChatReply{Sources: raw.Sources}
	if raw.Response != nil {
		reply.Response = *raw.Response
	}
	e.Reply = reply
	return nil
}

// OpenAIRequest is the body of POST /openai
type OpenAIRequest struct {
	Message      string `json:"message"`
	SystemPrompt string `json:"system_prompt,omitempty"`
}
