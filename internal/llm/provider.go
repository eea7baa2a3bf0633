// Package llm wraps the chat model providers behind one call shape and the
// retry and fallback policy every outbound model call goes through.
package llm

import (
	"context"
	"errors"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/partselect-assistant/server/internal/agent/model"
)

// ToolChoice constrains whether the model may or must call a tool.
type ToolChoice string

const (
	ToolChoiceAuto     ToolChoice = "auto"
	ToolChoiceNone     ToolChoice = "none"
	ToolChoiceRequired ToolChoice = "required"
)

// Request is one chat completion call. Messages start with the system instruction.
type Request struct {
	Messages    []*schema.Message
	Tools       []*schema.ToolInfo
	ToolChoice  ToolChoice
	Temperature *float32
	MaxTokens   *int
	// RequireContent marks a response without text as malformed even when it
	// carries tool calls.
	RequireContent bool
}

// Provider is a single LLM backend.
type Provider interface {
	Name() string
	Generate(ctx context.Context, req *Request) (*schema.Message, error)
}

// ErrMalformedResponse is returned for empty or unusable model output.
var ErrMalformedResponse = errors.New("malformed model response")

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks an error that retrying the same provider cannot fix.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsPermanent reports whether err was marked with Permanent.
func IsPermanent(err error) bool {
	var p *permanentError
	return errors.As(err, &p)
}

func checkResponse(req *Request, msg *schema.Message) error {
	if msg == nil {
		return ErrMalformedResponse
	}
	hasText := strings.TrimSpace(msg.Content) != ""
	if req.RequireContent && !hasText {
		return ErrMalformedResponse
	}
	if !hasText && len(msg.ToolCalls) == 0 {
		return ErrMalformedResponse
	}
	return nil
}

// stamp records which provider and model produced msg so cost can be priced later.
func stamp(msg *schema.Message, provider, modelName string) {
	if msg == nil {
		return
	}
	if msg.Extra == nil {
		msg.Extra = map[string]any{}
	}
	msg.Extra[model.ExtraProvider] = provider
	msg.Extra[model.ExtraModelName] = modelName
}

// Float32 and Int are helpers for optional request fields.
func Float32(v float32) *float32 { return &v }
func Int(v int) *int             { return &v }
