// Package models defines core data structures for questions, chunks, and
// streamed answers.
package models

import (
	"fmt"
	"strings"
)

// AskRequest represents an incoming question with an optional student
// identifier for personal-data lookups.
type AskRequest struct {
	Question  string `json:"question"`
	StudentID string `json:"student_id,omitempty"`
}

// Validate ensures the request has a non-empty question.
func (r *AskRequest) Validate() error {
	if strings.TrimSpace(r.Question) == "" {
		return fmt.Errorf("question cannot be empty")
	}
	return nil
}

// AskResponse is the response for a synchronous ask request.
type AskResponse struct {
	Answer    string `json:"answer"`
	Cached    bool   `json:"cached"`
	QueryTime int64  `json:"query_time_ms"`
}
