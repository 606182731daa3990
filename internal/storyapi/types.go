package storyapi

import (
	"encoding/json"
	"strings"
	"time"
)

type createRequest struct {
	Theme         string `json:"theme"`
	CharacterName string `json:"character_name,omitempty"`
	AgeGroup      string `json:"age_group,omitempty"`
}

type createResponse struct {
	JobID string `json:"job_id"`
	Stage string `json:"stage"`
}

type resultPayload struct {
	AudioURL        string  `json:"audio_url"`
	Title           string  `json:"title"`
	DurationSeconds float64 `json:"duration_seconds"`
	WordCount       int     `json:"word_count"`
}

type statusResponse struct {
	Stage              string         `json:"stage"`
	ProgressPercentage float64        `json:"progress_percentage"`
	Result             *resultPayload `json:"result,omitempty"`
	Error              *string        `json:"error,omitempty"`
}

// JobSummary is one entry of the remote job history.
type JobSummary struct {
	ID              string     `json:"job_id"`
	Theme           string     `json:"theme"`
	CharacterName   string     `json:"character_name,omitempty"`
	AgeGroup        string     `json:"age_group"`
	Stage           string     `json:"stage"`
	Title           string     `json:"title,omitempty"`
	AudioURL        string     `json:"audio_url,omitempty"`
	DurationSeconds float64    `json:"duration_seconds,omitempty"`
	WordCount       int        `json:"word_count,omitempty"`
	Error           string     `json:"error,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

// ListResponse is a page of remote job history.
type ListResponse struct {
	Jobs     []JobSummary `json:"jobs"`
	Total    int          `json:"total"`
	Page     int          `json:"page"`
	PageSize int          `json:"page_size"`
}

type errorBody struct {
	Detail json.RawMessage `json:"detail"`
}

// detailText flattens a detail field that is either a string or a list of
// validation problems with "msg" entries.
func (b errorBody) detailText() string {
	if len(b.Detail) == 0 {
		return ""
	}
	var text string
	if err := json.Unmarshal(b.Detail, &text); err == nil {
		return strings.TrimSpace(text)
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(b.Detail, &items); err == nil {
		parts := make([]string, 0, len(items))
		for _, item := range items {
			if msg := strings.TrimSpace(item.Msg); msg != "" {
				parts = append(parts, msg)
			}
		}
		return strings.Join(parts, "; ")
	}
	return strings.TrimSpace(string(b.Detail))
}
