package model

import (
	"encoding/json"
	"fmt"

	"github.com/cloudwego/eino/schema"
)

// Role tags an entry in the conversation log.
type Role string

const (
	RoleUser       Role = "user"
	RoleAssistant  Role = "assistant"
	RoleToolResult Role = "tool"
	RoleSystem     Role = "system"
)

// Entry is one record of the conversation log. The set of variants is closed:
// UserEntry, AssistantEntry, ToolResultEntry and SystemEntry.
type Entry interface {
	Role() Role
	Text() string
	isEntry()
}

type UserEntry struct {
	Content string
}

type AssistantEntry struct {
	Content string
}

type ToolResultEntry struct {
	ToolName   string
	ToolCallID string
	Content    string
}

type SystemEntry struct {
	Content string
}

func (UserEntry) Role() Role       { return RoleUser }
func (AssistantEntry) Role() Role  { return RoleAssistant }
func (ToolResultEntry) Role() Role { return RoleToolResult }
func (SystemEntry) Role() Role     { return RoleSystem }

func (e UserEntry) Text() string       { return e.Content }
func (e AssistantEntry) Text() string  { return e.Content }
func (e ToolResultEntry) Text() string { return e.Content }
func (e SystemEntry) Text() string     { return e.Content }

func (UserEntry) isEntry()       {}
func (AssistantEntry) isEntry()  {}
func (ToolResultEntry) isEntry() {}
func (SystemEntry) isEntry()     {}

// Log is the append-only conversation log.
type Log []Entry

// envelope is the stored form of an entry.
type envelope struct {
	Role       Role   `json:"role"`
	Content    string `json:"content"`
	ToolName   string `json:"tool_name,omitempty"`
	ToolCallID string `json:"tool_call_id,omitempty"`
}

func toEnvelope(e Entry) envelope {
	env := envelope{Role: e.Role(), Content: e.Text()}
	if tr, ok := e.(ToolResultEntry); ok {
		env.ToolName = tr.ToolName
		env.ToolCallID = tr.ToolCallID
	}
	return env
}

func (env envelope) entry() (Entry, error) {
	switch env.Role {
	case RoleUser:
		return UserEntry{Content: env.Content}, nil
	case RoleAssistant:
		return AssistantEntry{Content: env.Content}, nil
	case RoleToolResult:
		return ToolResultEntry{ToolName: env.ToolName, ToolCallID: env.ToolCallID, Content: env.Content}, nil
	case RoleSystem:
		return SystemEntry{Content: env.Content}, nil
	default:
		return nil, fmt.Errorf("unknown entry role %q", env.Role)
	}
}

// MarshalEntry encodes a single entry, as stored in one Redis list element.
func MarshalEntry(e Entry) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("nil entry")
	}
	return json.Marshal(toEnvelope(e))
}

// UnmarshalEntry decodes a single stored entry.
func UnmarshalEntry(data []byte) (Entry, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}
	return env.entry()
}

func (l Log) MarshalJSON() ([]byte, error) {
	out := make([]envelope, 0, len(l))
	for i, e := range l {
		if e == nil {
			return nil, fmt.Errorf("nil entry at index %d", i)
		}
		out = append(out, toEnvelope(e))
	}
	return json.Marshal(out)
}

func (l *Log) UnmarshalJSON(data []byte) error {
	var raw []envelope
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	out := make(Log, 0, len(raw))
	for i, env := range raw {
		e, err := env.entry()
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		out = append(out, e)
	}
	*l = out
	return nil
}

// ToMessages converts log entries to eino messages for a model call.
func (l Log) ToMessages() []*schema.Message {
	out := make([]*schema.Message, 0, len(l))
	for _, e := range l {
		switch v := e.(type) {
		case UserEntry:
			out = append(out, schema.UserMessage(v.Content))
		case AssistantEntry:
			out = append(out, schema.AssistantMessage(v.Content, nil))
		case ToolResultEntry:
			out = append(out, schema.ToolMessage(v.Content, v.ToolCallID))
		case SystemEntry:
			out = append(out, schema.SystemMessage(v.Content))
		}
	}
	return out
}

// FromMessage maps an eino message back to an entry. Tool names are resolved
// by the caller since tool messages only carry the call id.
func FromMessage(m *schema.Message) Entry {
	if m == nil {
		return nil
	}
	switch m.Role {
	case schema.User:
		return UserEntry{Content: m.Content}
	case schema.Tool:
		return ToolResultEntry{ToolCallID: m.ToolCallID, Content: m.Content}
	case schema.System:
		return SystemEntry{Content: m.Content}
	default:
		return AssistantEntry{Content: m.Content}
	}
}

// UsedTools reports whether any item is a tool result, whether it is carried
// as a log entry or as a role-tagged eino message.
func UsedTools[E any](items []E) bool {
	for _, item := range items {
		switch v := any(item).(type) {
		case ToolResultEntry, *ToolResultEntry:
			return true
		case *schema.Message:
			if v != nil && v.Role == schema.Tool {
				return true
			}
		case Entry:
			if v.Role() == RoleToolResult {
				return true
			}
		}
	}
	return false
}

// LastText returns the content of the last item, or "" for an empty transcript.
func LastText(msgs []*schema.Message) string {
	if len(msgs) == 0 || msgs[len(msgs)-1] == nil {
		return ""
	}
	return msgs[len(msgs)-1].Content
}
