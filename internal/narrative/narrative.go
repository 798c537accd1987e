package narrative

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/joshharrison/shopledger/internal/analysis"
)

// DefaultModel is used when no model is configured.
const DefaultModel = "claude-sonnet-4-5"

// Risk is a single project risk called out by the model.
type Risk struct {
	Area     string `json:"area"`              // schedule, cost, budget or resources
	Subject  string `json:"subject,omitempty"` // phase id, category or resource id
	Severity string `json:"severity"`          // low, medium or high
	Reason   string `json:"reason"`
}

// RiskResult holds the full structured response.
type RiskResult struct {
	Risks   []Risk `json:"risks"`
	Summary string `json:"summary"`
}

// Client wraps the Anthropic SDK for project narrative calls.
type Client struct {
	inner anthropic.Client
	model anthropic.Model
}

// NewClient creates a client. apiKey defaults to ANTHROPIC_API_KEY env.
// Extra request options are passed through to the SDK.
func NewClient(apiKey, model string, opts ...option.RequestOption) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv("ANTHROPIC_API_KEY")
	}
	if apiKey == "" {
		return nil, fmt.Errorf("ANTHROPIC_API_KEY not set")
	}

	inner := anthropic.NewClient(
		append([]option.RequestOption{option.WithAPIKey(apiKey)}, opts...)...,
	)

	m := anthropic.Model(DefaultModel)
	if model != "" {
		m = anthropic.Model(model)
	}

	return &Client{inner: inner, model: m}, nil
}

const summariseProjectPrompt = `You are a construction project controller writing a status note for a shop owner.

You will receive a project analysis as JSON: critical path schedule, earned value
metrics (SPI, CPI, EAC, TCPI), cost ledger totals by category and phase, and
resource utilization against monthly capacity.

Write a short plain-text status note covering:
- Where the schedule stands and which phases drive the finish date.
- Whether the project is over or under budget and the forecast at completion.
- Cost categories or phases running over their budget.
- Over-allocated people or equipment.

Use the numbers given; do not invent figures. Keep it under 200 words.
`

const risksPrompt = `You are a construction project controller. Given a project analysis as JSON,
list the most important risks to finishing on time and on budget.

Rules:
- Only report a risk the numbers support.
- area is one of: schedule, cost, budget, resources.
- severity is one of: low, medium, high.
- subject is the phase id, cost category or resource id the risk is about, if any.

Return your answer as JSON with this exact structure:
{
  "risks": [
    {"area": "<area>", "subject": "<id>", "severity": "<severity>", "reason": "<short explanation>"}
  ],
  "summary": "<one sentence overall assessment>"
}

Return ONLY the JSON object. No markdown fences, no commentary outside the JSON.

Here is the analysis:
`

// buildContext renders the report as the JSON the prompts refer to.
func buildContext(rpt *analysis.Report) (string, error) {
	if rpt == nil {
		return "", fmt.Errorf("nil report")
	}
	data, err := json.MarshalIndent(rpt, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal report: %w", err)
	}
	return string(data), nil
}

// SummariseProject asks the model for a status note on the analysed project.
func (c *Client) SummariseProject(ctx context.Context, rpt *analysis.Report) (string, error) {
	content, err := buildContext(rpt)
	if err != nil {
		return "", err
	}

	text, err := c.complete(ctx, summariseProjectPrompt, "## Project Analysis\n\n"+content)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(text), nil
}

// Risks asks the model for a structured list of project risks.
func (c *Client) Risks(ctx context.Context, rpt *analysis.Report) (*RiskResult, error) {
	content, err := buildContext(rpt)
	if err != nil {
		return nil, err
	}

	text, err := c.complete(ctx, "", risksPrompt+content)
	if err != nil {
		return nil, err
	}
	return parseRisks(text)
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: int64(2048),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(user)),
		},
	}
	if system != "" {
		params.System = []anthropic.TextBlockParam{{Text: system}}
	}

	resp, err := c.inner.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("claude API call: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	return text, nil
}

func parseRisks(text string) (*RiskResult, error) {
	text = stripJSONFences(text)

	var result RiskResult
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, fmt.Errorf("parse claude response: %w\nraw: %s", err, text)
	}
	return &result, nil
}

// stripJSONFences removes markdown code fences the model sometimes adds.
func stripJSONFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx >= 0 {
			s = s[idx+1:]
		}
		if idx := strings.LastIndex(s, "```"); idx >= 0 {
			s = s[:idx]
		}
		s = strings.TrimSpace(s)
	}
	return s
}
