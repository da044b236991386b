package insight

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"text/template"
	"time"

	"google.golang.org/genai"

	"github.com/erazemk/izposoja/internal/model"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// ServiceError is a failed call to the text-generation service.
type ServiceError struct {
	Op  string
	Err error
}

func (e *ServiceError) Error() string {
	return "insight " + e.Op + ": " + e.Err.Error()
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

var promptTemplate = template.Must(template.New("prompt").Parse(`You are an assistant helping a charity organisation manage the items it lends out.

Analyse the list of items below and identify potential issues or inconsistencies in their status, such as approaching return deadlines or items that are overdue. For each issue, suggest an action to resolve it.

Today is {{.Today}}.

Items:
{{range .Items}}
- Item Name: {{.ItemName}}
  Status: {{.Status}}
{{- if .IssuedTo}}
  Issued To: {{.IssuedTo}}
{{- end}}
{{- if .IssueDate}}
  Issue Date: {{.IssueDate}}
{{- end}}
{{- if .ExpectedReturnDate}}
  Expected Return Date: {{.ExpectedReturnDate}}
{{- end}}
{{- if .ActualReturnDate}}
  Actual Return Date: {{.ActualReturnDate}}
{{- end}}
{{end}}
Only report items with potential problems. Respond with JSON in this format:
{"insights": [{"item": "<item name>", "issue": "<identified issue>", "suggestedAction": "<suggested action>"}]}
`))

// Prompt renders the request text for the given summaries.
func Prompt(today time.Time, items []Summary) (string, error) {
	var b strings.Builder
	err := promptTemplate.Execute(&b, struct {
		Today string
		Items []Summary
	}{today.Format(DateLayout), items})
	if err != nil {
		return "", fmt.Errorf("rendering prompt: %w", err)
	}
	return b.String(), nil
}

// contentGenerator is the part of the genai client used here.
type contentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Gemini generates insights with the Gemini API.
type Gemini struct {
	models contentGenerator
	model  string
}

// NewGemini creates a client for the Gemini API.
func NewGemini(ctx context.Context, apiKey, modelName string) (*Gemini, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("creating gemini client: %w", err)
	}
	if modelName == "" {
		modelName = DefaultModel
	}
	return &Gemini{models: client.Models, model: modelName}, nil
}

type response struct {
	Insights []model.Insight `json:"insights"`
}

// Generate asks the model for insights and decodes its JSON answer.
func (g *Gemini) Generate(ctx context.Context, today time.Time, items []Summary) ([]model.Insight, error) {
	prompt, err := Prompt(today, items)
	if err != nil {
		return nil, err
	}

	resp, err := g.models.GenerateContent(ctx, g.model, genai.Text(prompt), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, &ServiceError{Op: "generate", Err: err}
	}

	text := strings.TrimSpace(resp.Text())
	if text == "" {
		return nil, &ServiceError{Op: "decode", Err: fmt.Errorf("empty response")}
	}

	var out response
	if err := json.Unmarshal([]byte(text), &out); err != nil {
		return nil, &ServiceError{Op: "decode", Err: err}
	}
	if out.Insights == nil {
		out.Insights = []model.Insight{}
	}
	return out.Insights, nil
}
