package compose

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jmylchreest/leadhunter/pkg/lead"
)

type stubProvider struct {
	name    string
	content string
	err     error
	calls   int
	lastReq Request
}

func (s *stubProvider) Complete(ctx context.Context, req Request) (*Response, error) {
	s.calls++
	s.lastReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &Response{Content: s.content}, nil
}

func (s *stubProvider) Name() string  { return s.name }
func (s *stubProvider) Model() string { return s.name + "-model" }

var elite = lead.Lead{Name: "Elite Wellness", Location: "Austin", Rating: "3.9", Website: "https://elitewell.com"}

func TestBuildPrompt(t *testing.T) {
	tests := []struct {
		name         string
		lead         lead.Lead
		instructions string
		want         string
	}{
		{
			name:         "rated with website",
			lead:         elite,
			instructions: "Offer a free 15-min audit.",
			want:         "Write a professional email to Elite Wellness regarding their 3.9 star rating. Their website is https://elitewell.com. They are based in Austin. Offer a free 15-min audit.",
		},
		{
			name: "unrated",
			lead: lead.Lead{Name: "Corner Clinic"},
			want: "Write a professional email to Corner Clinic regarding their business listing.",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := BuildPrompt(tt.lead, tt.instructions); got != tt.want {
				t.Errorf("BuildPrompt() =\n%q\nwant\n%q", got, tt.want)
			}
		})
	}
}

func TestParsePitch(t *testing.T) {
	tests := []struct {
		name        string
		text        string
		wantSubject string
		wantBody    string
	}{
		{"subject line", "Subject: Your 3.9 stars\n\nHi there,\nLet's talk.", "Your 3.9 stars", "Hi there,\nLet's talk."},
		{"markdown subject", "**Subject:** Quick idea\r\n\r\nHello", "Quick idea", "Hello"},
		{"no subject", "Hello,\nWe can help.", DefaultSubject, "Hello,\nWe can help."},
		{"empty subject", "Subject:\nBody", DefaultSubject, "Body"},
		{"empty", "   ", DefaultSubject, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			subject, body := ParsePitch(tt.text, DefaultSubject)
			if subject != tt.wantSubject || body != tt.wantBody {
				t.Errorf("ParsePitch() = (%q, %q), want (%q, %q)", subject, body, tt.wantSubject, tt.wantBody)
			}
		})
	}
}

func TestComposerPitch(t *testing.T) {
	p := &stubProvider{name: "stub", content: "Dear Elite Wellness,\nWe noticed your rating."}
	c := NewComposer(p, WithGeneration(300, 0.2))

	pitch, err := c.Pitch(context.Background(), elite, "Be brief.")
	if err != nil {
		t.Fatalf("Pitch() error = %v", err)
	}
	if pitch.Subject != DefaultSubject {
		t.Errorf("Subject = %q", pitch.Subject)
	}
	if !strings.HasPrefix(pitch.Body, "Dear Elite Wellness") {
		t.Errorf("Body = %q", pitch.Body)
	}
	if pitch.Provider != "stub" || pitch.Model != "stub-model" {
		t.Errorf("provider/model = %q/%q", pitch.Provider, pitch.Model)
	}
	if p.lastReq.MaxTokens != 300 || p.lastReq.Temperature != 0.2 {
		t.Errorf("request limits = %d/%v", p.lastReq.MaxTokens, p.lastReq.Temperature)
	}
	if len(p.lastReq.Messages) != 2 || p.lastReq.Messages[1].Role != RoleUser {
		t.Fatalf("messages = %+v", p.lastReq.Messages)
	}
	if !strings.HasSuffix(p.lastReq.Messages[1].Content, "Be brief.") {
		t.Errorf("user prompt = %q", p.lastReq.Messages[1].Content)
	}
}

func TestComposerPitchErrors(t *testing.T) {
	boom := errors.New("quota exceeded")
	if _, err := NewComposer(&stubProvider{name: "x", err: boom}).Pitch(context.Background(), elite, ""); !errors.Is(err, boom) {
		t.Errorf("error = %v, want wrapped provider error", err)
	}
	if _, err := NewComposer(&stubProvider{name: "x", content: "Subject: only"}).Pitch(context.Background(), elite, ""); !errors.Is(err, ErrEmptyPitch) {
		t.Errorf("error = %v, want ErrEmptyPitch", err)
	}
}

func TestWithSubject(t *testing.T) {
	c := NewComposer(&stubProvider{name: "x", content: "Hi"}, WithSubject("Hello from us"))
	pitch, err := c.Pitch(context.Background(), elite, "")
	if err != nil {
		t.Fatalf("Pitch() error = %v", err)
	}
	if pitch.Subject != "Hello from us" {
		t.Errorf("Subject = %q", pitch.Subject)
	}
}

func TestFallback(t *testing.T) {
	first := &stubProvider{name: "first", err: errors.New("down")}
	second := &stubProvider{name: "second", content: "ok"}
	third := &stubProvider{name: "third", content: "unused"}

	f := NewFallback(first, nil, second, third)
	resp, err := f.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "ok" {
		t.Errorf("content = %q", resp.Content)
	}
	if third.calls != 0 {
		t.Errorf("third provider called %d times", third.calls)
	}
	if f.Name() != "fallback(first->second->third)" {
		t.Errorf("Name() = %q", f.Name())
	}
	if f.Model() != "first-model" {
		t.Errorf("Model() = %q", f.Model())
	}
}

func TestFallbackAllFail(t *testing.T) {
	errA, errB := errors.New("a down"), errors.New("b down")
	f := NewFallback(&stubProvider{name: "a", err: errA}, &stubProvider{name: "b", err: errB})

	_, err := f.Complete(context.Background(), Request{})
	if !errors.Is(err, errA) || !errors.Is(err, errB) {
		t.Errorf("error = %v, want both causes", err)
	}
	if !strings.Contains(err.Error(), "tried: a, b") {
		t.Errorf("error = %v", err)
	}

	if _, err := NewFallback().Complete(context.Background(), Request{}); !errors.Is(err, ErrNoProvider) {
		t.Errorf("empty chain error = %v", err)
	}
}

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name     string
		env      map[string]string
		provider string
		key      string
	}{
		{"gemini first", map[string]string{"GEMINI_API_KEY": "g", "OPENAI_API_KEY": "o"}, "gemini", "g"},
		{"anthropic", map[string]string{"ANTHROPIC_API_KEY": "a", "OPENAI_API_KEY": "o"}, "anthropic", "a"},
		{"openai", map[string]string{"OPENAI_API_KEY": "o"}, "openai", "o"},
		{"none", nil, "ollama", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			provider, key := DetectProvider(func(name string) string { return tt.env[name] })
			if provider != tt.provider || key != tt.key {
				t.Errorf("DetectProvider() = (%q, %q), want (%q, %q)", provider, key, tt.provider, tt.key)
			}
		})
	}
}

func TestNewProvider(t *testing.T) {
	for _, name := range []string{"anthropic", "openai", "gemini", "ollama"} {
		p, err := NewProvider(name, Config{APIKey: "k"})
		if err != nil {
			t.Fatalf("NewProvider(%q) error = %v", name, err)
		}
		if p.Name() != name {
			t.Errorf("Name() = %q, want %q", p.Name(), name)
		}
		if p.Model() != DefaultModel(name) {
			t.Errorf("%s Model() = %q, want %q", name, p.Model(), DefaultModel(name))
		}
	}

	if _, err := NewProvider("bard", Config{}); err == nil || !strings.Contains(err.Error(), "available: anthropic, gemini, ollama, openai") {
		t.Errorf("unknown provider error = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Errorf("DefaultConfig().Validate() = %v", err)
	}

	cfg := DefaultConfig()
	cfg.Provider = "bard"
	cfg.Temperature = 3
	err := cfg.Validate()
	if !errors.Is(err, ErrInvalidConfig) {
		t.Fatalf("error = %v, want ErrInvalidConfig", err)
	}
	for _, want := range []string{"provider must be one of", "temperature must be at most 2"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestOllamaProvider(t *testing.T) {
	var got ollamaRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&got)
		_, _ = io.WriteString(w, `{"model":"llama3.2","message":{"role":"assistant","content":"Subject: Hi\n\nBody"},"done":true,"done_reason":"stop","prompt_eval_count":12,"eval_count":34}`)
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(Config{BaseURL: srv.URL + "/"})
	if err != nil {
		t.Fatalf("NewOllamaProvider() error = %v", err)
	}
	resp, err := p.Complete(context.Background(), Request{
		Messages:  []Message{{Role: RoleUser, Content: "hello"}},
		MaxTokens: 50,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Subject: Hi\n\nBody" || resp.Usage.OutputTokens != 34 {
		t.Errorf("response = %+v", resp)
	}
	if got.Model != "llama3.2" || got.Stream || got.Options.NumPredict != 50 {
		t.Errorf("request = %+v", got)
	}
}

func TestOllamaProviderErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not found", http.StatusNotFound)
	}))
	defer srv.Close()

	p, _ := NewOllamaProvider(Config{BaseURL: srv.URL})
	_, err := p.Complete(context.Background(), Request{})
	if err == nil || !strings.Contains(err.Error(), "status 404") {
		t.Errorf("error = %v, want status 404", err)
	}
}

func TestGeminiProviderOverCompatibleEndpoint(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if !strings.HasSuffix(r.URL.Path, "/chat/completions") {
			t.Errorf("path = %q", r.URL.Path)
		}
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"c1","object":"chat.completion","created":1,"model":"gemini-2.0-flash","choices":[{"index":0,"message":{"role":"assistant","content":"Hello Elite"},"finish_reason":"stop"}],"usage":{"prompt_tokens":5,"completion_tokens":7,"total_tokens":12}}`)
	}))
	defer srv.Close()

	p, err := NewGeminiProvider(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1beta/openai/"})
	if err != nil {
		t.Fatalf("NewGeminiProvider() error = %v", err)
	}
	pitch, err := NewComposer(p).Pitch(context.Background(), elite, "")
	if err != nil {
		t.Fatalf("Pitch() error = %v", err)
	}
	if pitch.Body != "Hello Elite" || pitch.Model != "gemini-2.0-flash" || pitch.Provider != "gemini" {
		t.Errorf("pitch = %+v", pitch)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotBody["model"] != "gemini-2.0-flash" {
		t.Errorf("model sent = %v", gotBody["model"])
	}
}

func TestAnthropicProvider(t *testing.T) {
	var gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("X-Api-Key")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-20250514","content":[{"type":"text","text":"Subject: Stars\n\nHi"}],"stop_reason":"end_turn","usage":{"input_tokens":3,"output_tokens":4}}`)
	}))
	defer srv.Close()

	p, err := NewAnthropicProvider(Config{APIKey: "ak", BaseURL: srv.URL})
	if err != nil {
		t.Fatalf("NewAnthropicProvider() error = %v", err)
	}
	resp, err := p.Complete(context.Background(), Request{
		Messages:    []Message{{Role: RoleSystem, Content: "be nice"}, {Role: RoleUser, Content: "hi"}},
		Temperature: 1.5,
	})
	if err != nil {
		t.Fatalf("Complete() error = %v", err)
	}
	if resp.Content != "Subject: Stars\n\nHi" || resp.FinishReason != "end_turn" {
		t.Errorf("response = %+v", resp)
	}
	if gotKey != "ak" {
		t.Errorf("X-Api-Key = %q", gotKey)
	}
	if gotBody["temperature"] != 1.0 {
		t.Errorf("temperature = %v, want clamped to 1", gotBody["temperature"])
	}
	if _, ok := gotBody["system"]; !ok {
		t.Error("system prompt not sent")
	}
}
