package collab

import (
	"context"
	"net/http"

	"github.com/okian/meetlink/internal/domain/model"
)

// AnalyzerClient calls the content analysis service.
type AnalyzerClient struct {
	c client
}

// NewAnalyzerClient creates an analyzer client rooted at baseURL.
func NewAnalyzerClient(baseURL string, opts ...Option) *AnalyzerClient {
	return &AnalyzerClient{c: newClient(baseURL, opts...)}
}

type analyzeRequest struct {
	MeetingID  string `json:"meetingId"`
	Title      string `json:"title"`
	Transcript string `json:"transcript"`
}

// Analyze extracts a summary, topics and action items from transcript.
func (a *AnalyzerClient) Analyze(ctx context.Context, meeting model.MeetingEvent, transcript string) (model.FullAnalysis, error) {
	var out model.FullAnalysis
	req := analyzeRequest{MeetingID: meeting.ExternalID, Title: meeting.Title, Transcript: transcript}
	if err := a.c.do(ctx, http.MethodPost, "/analyze", req, &out); err != nil {
		return model.FullAnalysis{}, err
	}
	return out, nil
}
