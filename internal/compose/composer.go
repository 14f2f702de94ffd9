package compose

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jmylchreest/leadhunter/internal/logger"
	"github.com/jmylchreest/leadhunter/pkg/lead"
)

// DefaultSubject is used when the model does not propose a subject line.
const DefaultSubject = "Business Growth Inquiry"

// ErrEmptyPitch is returned when the model answers with no text.
var ErrEmptyPitch = errors.New("model returned an empty pitch")

// Pitch is a drafted outreach email.
type Pitch struct {
	Subject  string `json:"subject" yaml:"subject"`
	Body     string `json:"body" yaml:"body"`
	Provider string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model    string `json:"model,omitempty" yaml:"model,omitempty"`
}

// ComposerOption configures a Composer.
type ComposerOption func(*Composer)

// WithSubject sets the fallback subject line.
func WithSubject(subject string) ComposerOption {
	return func(c *Composer) {
		if s := strings.TrimSpace(subject); s != "" {
			c.subject = s
		}
	}
}

// WithGeneration sets token and temperature limits for each request.
func WithGeneration(maxTokens int, temperature float64) ComposerOption {
	return func(c *Composer) {
		c.maxTokens = maxTokens
		c.temperature = temperature
	}
}

// Composer drafts pitches.
type Composer struct {
	provider    Provider
	subject     string
	maxTokens   int
	temperature float64
}

// NewComposer creates a Composer backed by provider.
func NewComposer(provider Provider, opts ...ComposerOption) *Composer {
	def := DefaultConfig()
	c := &Composer{
		provider:    provider,
		subject:     DefaultSubject,
		maxTokens:   def.MaxTokens,
		temperature: def.Temperature,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Pitch drafts an email to l following the operator's instructions.
func (c *Composer) Pitch(ctx context.Context, l lead.Lead, instructions string) (Pitch, error) {
	req := Request{
		Messages: []Message{
			{Role: RoleSystem, Content: systemPrompt},
			{Role: RoleUser, Content: BuildPrompt(l, instructions)},
		},
		MaxTokens:   c.maxTokens,
		Temperature: c.temperature,
	}

	resp, err := c.provider.Complete(ctx, req)
	if err != nil {
		return Pitch{}, fmt.Errorf("compose pitch for %s: %w", l.Name, err)
	}

	subject, body := ParsePitch(resp.Content, c.subject)
	if body == "" {
		return Pitch{}, fmt.Errorf("compose pitch for %s: %w", l.Name, ErrEmptyPitch)
	}

	model := resp.Model
	if model == "" {
		model = c.provider.Model()
	}
	logger.Debug("pitch composed",
		"lead", l.Name,
		"provider", c.provider.Name(),
		"model", model,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"duration", resp.Duration)

	return Pitch{
		Subject:  subject,
		Body:     body,
		Provider: c.provider.Name(),
		Model:    model,
	}, nil
}

const systemPrompt = `You write short, plain-text business outreach emails.
Reply with the email only. You may start with a single "Subject: ..." line.
Do not use markdown, placeholders in brackets, or a signature block.`

// BuildPrompt returns the user prompt for l.
func BuildPrompt(l lead.Lead, instructions string) string {
	var b strings.Builder
	rating := strings.TrimSpace(l.Rating)
	if rating != "" {
		fmt.Fprintf(&b, "Write a professional email to %s regarding their %s star rating.", l.Name, rating)
	} else {
		fmt.Fprintf(&b, "Write a professional email to %s regarding their business listing.", l.Name)
	}
	if l.HasWebsite() {
		fmt.Fprintf(&b, " Their website is %s.", l.Website)
	}
	if l.Location != "" {
		fmt.Fprintf(&b, " They are based in %s.", l.Location)
	}
	if s := strings.TrimSpace(instructions); s != "" {
		b.WriteString(" ")
		b.WriteString(s)
	}
	return b.String()
}

// ParsePitch splits model output into a subject and body. A leading
// "Subject:" line becomes the subject; otherwise fallback is used.
func ParsePitch(text, fallback string) (subject, body string) {
	text = strings.TrimSpace(strings.ReplaceAll(text, "\r\n", "\n"))
	first, rest, _ := strings.Cut(text, "\n")

	line := strings.Trim(strings.TrimSpace(first), "*#_ ")
	if len(line) >= len("subject:") && strings.EqualFold(line[:len("subject:")], "subject:") {
		subject = strings.Trim(strings.TrimSpace(line[len("subject:"):]), "*_ ")
		body = strings.TrimSpace(rest)
	} else {
		body = text
	}
	if subject == "" {
		subject = fallback
	}
	return subject, body
}
