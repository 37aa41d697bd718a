package model

import (
	"maps"
	"time"
)

// Route is the per-turn classification decided by the router.
type Route string

const (
	RouteDirect   Route = "DIRECT"
	RoutePlan     Route = "PLAN"
	RouteOffTopic Route = "OFF_TOPIC"
)

func (r Route) Valid() bool {
	return r == RouteDirect || r == RoutePlan || r == RouteOffTopic
}

// SummaryKey is the compacted-context slot owned by the memory compactor.
const SummaryKey = "running_summary"

// RunningSummary stands in for Messages[:SummarizedThrough].
type RunningSummary struct {
	Summary           string    `json:"summary"`
	SummarizedThrough int       `json:"summarized_through"`
	SummaryTokens     int       `json:"summary_tokens"`
	UpdatedAt         time.Time `json:"updated_at"`
}

// ConversationState is everything persisted for one thread.
// Route, Query, Execution, ToolsUsed, Verified and FinalAnswer are turn-scoped.
type ConversationState struct {
	Messages         Log                       `json:"messages"`
	CompactedContext map[string]RunningSummary `json:"compacted_context,omitempty"`
	Route            Route                     `json:"route,omitempty"`
	Query            string                    `json:"query,omitempty"`
	Execution        string                    `json:"execution,omitempty"`
	ToolsUsed        bool                      `json:"tools_used"`
	Verified         bool                      `json:"verified"`
	FinalAnswer      string                    `json:"final_answer,omitempty"`
}

// Update is the partial result of one stage. Nil fields are left untouched.
type Update struct {
	Append           Log
	CompactedContext map[string]RunningSummary
	Route            *Route
	Query            *string
	Execution        *string
	ToolsUsed        *bool
	Verified         *bool
	FinalAnswer      *string
}

// Ptr returns a pointer to v, for filling Update fields.
func Ptr[T any](v T) *T { return &v }

// Apply merges u into s. Messages only ever grow.
func (s *ConversationState) Apply(u Update) {
	if len(u.Append) > 0 {
		s.Messages = append(s.Messages, u.Append...)
	}
	if len(u.CompactedContext) > 0 {
		if s.CompactedContext == nil {
			s.CompactedContext = make(map[string]RunningSummary, len(u.CompactedContext))
		}
		maps.Copy(s.CompactedContext, u.CompactedContext)
	}
	if u.Route != nil {
		s.Route = *u.Route
	}
	if u.Query != nil {
		s.Query = *u.Query
	}
	if u.Execution != nil {
		s.Execution = *u.Execution
	}
	if u.ToolsUsed != nil {
		s.ToolsUsed = *u.ToolsUsed
	}
	if u.Verified != nil {
		s.Verified = *u.Verified
	}
	if u.FinalAnswer != nil {
		s.FinalAnswer = *u.FinalAnswer
	}
}

// BeginTurn clears every turn-scoped field and appends the user's message.
func (s *ConversationState) BeginTurn(query string) {
	s.Route = ""
	s.Query = ""
	s.Execution = ""
	s.ToolsUsed = false
	s.Verified = false
	s.FinalAnswer = ""
	s.Messages = append(s.Messages, UserEntry{Content: query})
}

// Clone returns a deep copy. Entries are immutable values so the log slice is copied shallowly.
func (s *ConversationState) Clone() *ConversationState {
	if s == nil {
		return nil
	}
	out := *s
	out.Messages = append(Log(nil), s.Messages...)
	if s.CompactedContext != nil {
		out.CompactedContext = maps.Clone(s.CompactedContext)
	}
	return &out
}

// Summary returns the running summary if the compactor has produced one.
func (s *ConversationState) Summary() (RunningSummary, bool) {
	rs, ok := s.CompactedContext[SummaryKey]
	return rs, ok && rs.Summary != ""
}

// View is what stages send to a model: the running summary as a system entry
// followed by the messages it does not cover.
func (s *ConversationState) View() Log {
	rs, ok := s.Summary()
	if !ok {
		return append(Log(nil), s.Messages...)
	}
	from := min(max(rs.SummarizedThrough, 0), len(s.Messages))
	view := make(Log, 0, len(s.Messages)-from+1)
	view = append(view, SystemEntry{Content: "Summary of the conversation so far:\n" + rs.Summary})
	return append(view, s.Messages[from:]...)
}

// LatestUserText returns the content of the most recent user entry.
func (s *ConversationState) LatestUserText() string {
	for i := len(s.Messages) - 1; i >= 0; i-- {
		if u, ok := s.Messages[i].(UserEntry); ok {
			return u.Content
		}
	}
	return ""
}
