// SPDX-License-Identifier: MPL-2.0

package checker

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrEmptyPayload is returned when a hook event has no content.
var ErrEmptyPayload = errors.New("empty hook payload")

type (
	// HookInput is a read-only view of the hook event forwarded to the
	// checker. A HookInput from ParseHookInput forwards the host's document
	// byte for byte, including fields this view does not declare.
	HookInput struct {
		SessionID      string    `json:"session_id"`
		ToolName       string    `json:"tool_name"`
		TranscriptPath string    `json:"transcript_path"`
		CWD            string    `json:"cwd"`
		HookEventName  string    `json:"hook_event_name"`
		ToolInput      ToolInput `json:"tool_input"`
		// ToolResponse is passed through untouched.
		ToolResponse json.RawMessage `json:"tool_response,omitempty"`

		raw []byte
	}

	// ToolInput carries the file edit under review. Which fields are set
	// depends on the tool (Write, Edit, MultiEdit).
	ToolInput struct {
		FilePath  string `json:"file_path,omitempty"`
		Content   string `json:"content,omitempty"`
		OldString string `json:"old_string,omitempty"`
		NewString string `json:"new_string,omitempty"`
		Edits     []Edit `json:"edits,omitempty"`
	}

	// Edit is one replacement of a MultiEdit call.
	Edit struct {
		OldString string `json:"old_string"`
		NewString string `json:"new_string"`
	}
)

// ParseHookInput decodes a single hook event from r.
func ParseHookInput(r io.Reader) (*HookInput, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading hook payload: %w", err)
	}
	if len(data) == 0 {
		return nil, ErrEmptyPayload
	}

	var in HookInput
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, fmt.Errorf("decoding hook payload: %w", err)
	}
	in.raw = data
	return &in, nil
}

// Encode returns the document written to the checker's stdin: the original
// bytes for a parsed event, the JSON encoding of the fields otherwise.
func (h *HookInput) Encode() ([]byte, error) {
	if h != nil && h.raw != nil {
		return h.raw, nil
	}
	return json.Marshal(h)
}

// preview returns at most n bytes of s for diagnostics.
func preview(s []byte, n int) string {
	if len(s) <= n {
		return string(s)
	}
	return string(s[:n])
}
