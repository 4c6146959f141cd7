package model

import "time"

// Analysis is what the content analyzer produced for a meeting. It is a
// closed set: FullAnalysis or TitleOnlyAnalysis.
type Analysis interface {
	isAnalysis()
}

// ActionItem is a follow-up extracted from a transcript.
type ActionItem struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	Assignee    string     `json:"assignee,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Due         *time.Time `json:"due,omitempty"`
}

// FullAnalysis is the analyzer's structured view of a transcript.
type FullAnalysis struct {
	Summary     string       `json:"summary"`
	Topics      []string     `json:"topics"`
	ActionItems []ActionItem `json:"actionItems"`
}

// TitleOnlyAnalysis is used when no transcript analysis is available.
type TitleOnlyAnalysis struct {
	Title string
}

func (FullAnalysis) isAnalysis()      {}
func (TitleOnlyAnalysis) isAnalysis() {}

// ActionItemsOf returns the action items of a, if any.
func ActionItemsOf(a Analysis) []ActionItem {
	switch v := a.(type) {
	case FullAnalysis:
		return v.ActionItems
	case *FullAnalysis:
		if v != nil {
			return v.ActionItems
		}
	}
	return nil
}
