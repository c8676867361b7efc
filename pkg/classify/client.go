package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/domain"
)

// Client interfaces with a text-completion model for content classification.
type Client interface {
	// Classify derives organizational metadata from everything the
	// pipeline has learned about a bookmark.
	Classify(ctx context.Context, req Request) (*Result, error)
}

// Request carries the classifier's inputs. Metadata is required; the
// analyzer block and user context are optional and simply enrich the
// prompt when present.
type Request struct {
	Metadata          *domain.VideoMetadata
	Transcript        string
	VisualDescription string
	UserContext       string
}

// Result is the structured classifier output.
type Result struct {
	Description    string   `json:"description"`
	Tags           []string `json:"tags"`
	Categories     []string `json:"categories"`
	SmartTitle     string   `json:"smart_title"`
	Confidence     float64  `json:"confidence"`
	RelevanceScore float64  `json:"relevance_score"`
}

// HTTPClient implements Client using a chat-completions API.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a new classifier client.
func NewClient(cfg config.ClassifierConfig) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error,omitempty"`
}

const systemPrompt = `You are a content classifier for a personal video bookmark library.
Return your classification as JSON with these fields:
- description: 1-2 sentence description of what the video is about
- tags: array of 5-15 searchable keywords
- categories: array of 1-3 broad categories like "cooking", "fitness", "technology", "travel", "comedy", "education", "music", "fashion", "diy"
- smart_title: short human title for the bookmark, under 80 characters
- confidence: 0.0-1.0 confidence in this classification
- relevance_score: 0.0-1.0 how relevant the video is to the user's stated interest; use 0.5 when no interest was stated

Example output:
{"description":"A 5-minute pasta recipe using pantry staples.","tags":["pasta","recipe","quick meals","cooking","garlic"],"categories":["cooking"],"smart_title":"5-Minute Pantry Pasta","confidence":0.92,"relevance_score":0.8}

Return ONLY valid JSON, no markdown, no explanation.`

// Classify derives description, tags, categories, a smart title and a
// relevance score. Optional inputs are folded into the prompt when
// present; their absence never fails the call.
func (c *HTTPClient) Classify(ctx context.Context, req Request) (*Result, error) {
	if req.Metadata == nil {
		return nil, fmt.Errorf("classify: metadata is required")
	}

	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildPrompt(req)},
		},
	}

	body, err := json.Marshal(chatReq)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API error (status %d): %s", resp.StatusCode, string(respBody))
	}

	var chatResp chatResponse
	if err := json.Unmarshal(respBody, &chatResp); err != nil {
		return nil, fmt.Errorf("unmarshal response: %w", err)
	}

	if chatResp.Error != nil {
		return nil, fmt.Errorf("API error: %s", chatResp.Error.Message)
	}

	if len(chatResp.Choices) == 0 {
		return nil, fmt.Errorf("no response from classifier")
	}

	// Clean up potential markdown code blocks
	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result Result
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// Non-JSON answer: salvage a usable record from the prose and
		// the post's own hashtags.
		return &Result{
			Description:    content,
			Tags:           req.Metadata.Hashtags,
			SmartTitle:     req.Metadata.Title,
			Confidence:     0.3,
			RelevanceScore: 0.5,
		}, nil
	}

	return &result, nil
}

func buildPrompt(req Request) string {
	m := req.Metadata

	var sb strings.Builder
	sb.WriteString("Classify this saved video.\n\n")
	sb.WriteString(fmt.Sprintf("Platform: %s\n", m.Platform))
	if m.Author != "" {
		sb.WriteString(fmt.Sprintf("Author: @%s\n", m.Author))
	}
	if m.Title != "" {
		sb.WriteString(fmt.Sprintf("Title: %s\n", m.Title))
	}
	if m.Description != "" && m.Description != m.Title {
		sb.WriteString(fmt.Sprintf("Caption: %s\n", m.Description))
	}
	if len(m.Hashtags) > 0 {
		sb.WriteString(fmt.Sprintf("Hashtags: %s\n", strings.Join(m.Hashtags, ", ")))
	}
	if m.DurationSec > 0 {
		sb.WriteString(fmt.Sprintf("Duration: %d seconds\n", m.DurationSec))
	}

	if req.VisualDescription != "" {
		sb.WriteString(fmt.Sprintf("\nWhat the video shows: %s\n", req.VisualDescription))
	}
	if req.Transcript != "" {
		transcript := req.Transcript
		// Keep prompts bounded; the opening of a transcript carries
		// most of the classification signal. Cut on a rune boundary.
		if len(transcript) > 4000 {
			cut := 4000
			for cut > 0 && !utf8.RuneStart(transcript[cut]) {
				cut--
			}
			transcript = transcript[:cut] + " [...]"
		}
		sb.WriteString(fmt.Sprintf("\nTranscript: %s\n", transcript))
	}
	if req.UserContext != "" {
		sb.WriteString(fmt.Sprintf("\nThe user saved this with the note: %q\nWeigh the relevance_score against that note.\n", req.UserContext))
	}

	return sb.String()
}
