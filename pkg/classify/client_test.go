package classify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/vidstash/vidstash/internal/config"
	"github.com/vidstash/vidstash/internal/domain"
)

func testClient(baseURL string) *HTTPClient {
	return NewClient(config.ClassifierConfig{
		BaseURL: baseURL,
		APIKey:  "clf-key",
		Model:   "gpt-4o-mini",
		Timeout: 5 * time.Second,
	})
}

func testMetadata() *domain.VideoMetadata {
	return &domain.VideoMetadata{
		Platform:    domain.PlatformTikTok,
		Title:       "10 minute ramen upgrade",
		Description: "10 minute ramen upgrade #ramen #cooking",
		Author:      "noodleguy",
		Hashtags:    []string{"ramen", "cooking"},
		DurationSec: 45,
	}
}

func chatReply(content string) string {
	reply := map[string]interface{}{
		"choices": []map[string]interface{}{
			{"message": map[string]string{"content": content}},
		},
	}
	b, _ := json.Marshal(reply)
	return string(b)
}

func TestClassify_Success(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer clf-key" {
			t.Errorf("auth = %q", auth)
		}
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(chatReply(`{"description":"A quick ramen upgrade recipe.","tags":["ramen","cooking","recipe"],"categories":["cooking"],"smart_title":"10-Minute Ramen Upgrade","confidence":0.9,"relevance_score":0.7}`)))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Classify(context.Background(), Request{
		Metadata:          testMetadata(),
		Transcript:        "today we upgrade instant ramen",
		VisualDescription: "A man cooks noodles in a small kitchen.",
		UserContext:       "easy weeknight dinners",
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if result.SmartTitle != "10-Minute Ramen Upgrade" {
		t.Errorf("smart title = %q", result.SmartTitle)
	}
	if len(result.Tags) != 3 || result.Tags[0] != "ramen" {
		t.Errorf("tags = %v", result.Tags)
	}
	if len(result.Categories) != 1 || result.Categories[0] != "cooking" {
		t.Errorf("categories = %v", result.Categories)
	}
	if result.RelevanceScore != 0.7 {
		t.Errorf("relevance = %v", result.RelevanceScore)
	}

	// All provided signals must reach the prompt.
	for _, want := range []string{"noodleguy", "upgrade instant ramen", "small kitchen", "easy weeknight dinners"} {
		if !strings.Contains(gotBody, want) {
			t.Errorf("prompt is missing %q", want)
		}
	}
}

func TestClassify_MetadataOnly(t *testing.T) {
	var gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.Write([]byte(chatReply(`{"description":"d","tags":["ramen"],"categories":["cooking"],"smart_title":"t","confidence":0.8,"relevance_score":0.5}`)))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Classify(context.Background(), Request{Metadata: testMetadata()})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Confidence != 0.8 {
		t.Errorf("confidence = %v", result.Confidence)
	}
	if strings.Contains(gotBody, "Transcript:") {
		t.Error("prompt should not mention a transcript when none exists")
	}
	if strings.Contains(gotBody, "user saved this with the note") {
		t.Error("prompt should not mention user context when none exists")
	}
}

func TestClassify_StripsMarkdownFences(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("```json\n{\"description\":\"d\",\"tags\":[\"x\"],\"categories\":[\"y\"],\"smart_title\":\"t\",\"confidence\":0.5,\"relevance_score\":0.5}\n```")))
	}))
	defer server.Close()

	result, err := testClient(server.URL).Classify(context.Background(), Request{Metadata: testMetadata()})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if result.Description != "d" || result.SmartTitle != "t" {
		t.Errorf("result = %+v", result)
	}
}

func TestClassify_NonJSONFallsBackToHashtags(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(chatReply("This is a cooking video about upgrading instant ramen.")))
	}))
	defer server.Close()

	meta := testMetadata()
	result, err := testClient(server.URL).Classify(context.Background(), Request{Metadata: meta})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if !strings.Contains(result.Description, "instant ramen") {
		t.Errorf("description = %q", result.Description)
	}
	if len(result.Tags) != 2 || result.Tags[0] != "ramen" {
		t.Errorf("tags = %v, want the post's hashtags", result.Tags)
	}
	if result.SmartTitle != meta.Title {
		t.Errorf("smart title = %q, want the post title", result.SmartTitle)
	}
	if result.RelevanceScore != 0.5 {
		t.Errorf("relevance = %v, want neutral 0.5", result.RelevanceScore)
	}
}

func TestClassify_NilMetadata(t *testing.T) {
	if _, err := testClient("http://unused.example.com").Classify(context.Background(), Request{}); err == nil {
		t.Fatal("expected error for nil metadata")
	}
}

func TestClassify_APIError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := testClient(server.URL).Classify(context.Background(), Request{Metadata: testMetadata()})
	if err == nil {
		t.Fatal("expected error for 503 response")
	}
}

func TestClassify_LongTranscriptTruncated(t *testing.T) {
	var gotLen int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotLen = len(b)
		w.Write([]byte(chatReply(`{"description":"d","tags":[],"categories":[],"smart_title":"t","confidence":0.5,"relevance_score":0.5}`)))
	}))
	defer server.Close()

	_, err := testClient(server.URL).Classify(context.Background(), Request{
		Metadata:   testMetadata(),
		Transcript: strings.Repeat("word ", 5000),
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if gotLen > 10000 {
		t.Errorf("request body = %d bytes, transcript was not truncated", gotLen)
	}
}

func TestClassify_TranscriptTruncatedOnRuneBoundary(t *testing.T) {
	var gotReq chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotReq)
		w.Write([]byte(chatReply(`{"description":"d","tags":[],"categories":[],"smart_title":"t","confidence":0.5,"relevance_score":0.5}`)))
	}))
	defer server.Close()

	// Three-byte runes put the byte-4000 cut mid-rune.
	_, err := testClient(server.URL).Classify(context.Background(), Request{
		Metadata:   testMetadata(),
		Transcript: strings.Repeat("語", 2000),
	})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}

	if len(gotReq.Messages) != 2 {
		t.Fatalf("messages = %d", len(gotReq.Messages))
	}
	prompt := gotReq.Messages[1].Content
	if !strings.Contains(prompt, "Transcript:") {
		t.Fatal("prompt is missing the transcript")
	}
	if strings.ContainsRune(prompt, utf8.RuneError) {
		t.Error("prompt contains a mangled rune from a mid-rune cut")
	}
}
