package videoai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/vidstash/vidstash/internal/config"
)

// Client interfaces with a multimodal video-understanding API.
type Client interface {
	// Analyze transcribes and visually describes the video at a durable URL.
	Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error)
}

// AnalysisRequest describes one analysis call.
type AnalysisRequest struct {
	VideoURL    string // durable URL, never a provider CDN link
	UserContext string // optional free-text hint from the user
}

// AnalysisResult is the structured output of a video analysis.
type AnalysisResult struct {
	Transcript        string `json:"transcript"`
	VisualDescription string `json:"visual_description"`
	DetectedLanguage  string `json:"detected_language"`
}

// HTTPClient implements Client using a chat-completions API that accepts
// video content parts.
type HTTPClient struct {
	apiKey     string
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewClient creates a new video analysis client.
func NewClient(cfg config.VideoAIConfig) *HTTPClient {
	return &HTTPClient{
		apiKey:  cfg.APIKey,
		baseURL: cfg.BaseURL,
		model:   cfg.Model,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

// chatRequest is the request body for the chat API.
type chatRequest struct {
	Model    string        `json:"model"`
	Messages []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"` // string or []contentPart for video
}

// contentPart represents a part of multimodal content (text or video).
type contentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	VideoURL *videoURL `json:"video_url,omitempty"`
}

type videoURL struct {
	URL string `json:"url"`
}

// chatResponse is the response from the chat API.
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

const systemPrompt = `You are a video analyst. Watch the provided video and return JSON with these fields:
- transcript: full spoken-word transcript, verbatim, empty string if there is no speech
- visual_description: 2-4 sentence description of what the video shows (scenes, people, text on screen, actions)
- detected_language: BCP-47 code of the dominant spoken language, empty string if there is no speech

Return ONLY valid JSON, no markdown, no explanation.`

// Analyze submits the video for transcription and visual description.
func (c *HTTPClient) Analyze(ctx context.Context, req AnalysisRequest) (*AnalysisResult, error) {
	if req.VideoURL == "" {
		return nil, fmt.Errorf("analyze: video URL is required")
	}

	parts := []contentPart{
		{Type: "text", Text: buildUserPrompt(req)},
		{Type: "video_url", VideoURL: &videoURL{URL: req.VideoURL}},
	}

	chatReq := chatRequest{
		Model: c.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: parts},
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
		return nil, fmt.Errorf("no response from analyzer")
	}

	// Clean up potential markdown code blocks
	content := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	content = strings.TrimPrefix(content, "```json")
	content = strings.TrimPrefix(content, "```")
	content = strings.TrimSuffix(content, "```")
	content = strings.TrimSpace(content)

	var result AnalysisResult
	if err := json.Unmarshal([]byte(content), &result); err != nil {
		// The model occasionally answers in prose; keep it as the
		// visual description rather than losing the call entirely.
		return &AnalysisResult{VisualDescription: content}, nil
	}

	return &result, nil
}

func buildUserPrompt(req AnalysisRequest) string {
	var sb strings.Builder
	sb.WriteString("Analyze this video.")
	if req.UserContext != "" {
		sb.WriteString(fmt.Sprintf("\n\nThe user saved it with this note, which may hint at why it matters: %q", req.UserContext))
	}
	return sb.String()
}
