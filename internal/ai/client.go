package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const (
	defaultAPIURL  = "https://api.anthropic.com/v1/messages"
	defaultModel   = "claude-sonnet-4-20250514"
	defaultTimeout = 120 * time.Second
	apiVersion     = "2023-06-01"
)

// ErrNoAPIKey is returned when the client is constructed without a key.
var ErrNoAPIKey = errors.New("ai: no API key configured")

// Budget gates and records the cost of every API call.
type Budget interface {
	Allow() error
	Record(inputTokens, outputTokens int64) (float64, error)
}

// Client calls the Anthropic messages API to generate flashcards,
// explanations and mnemonics.
type Client struct {
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
	budget    Budget
	http      *http.Client
}

// New creates a client. The budget may be nil, which disables cost gating.
func New(apiKey string, budget Budget) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return &Client{
		apiKey:    apiKey,
		apiURL:    defaultAPIURL,
		model:     defaultModel,
		maxTokens: 8192,
		budget:    budget,
		http:      &http.Client{Timeout: defaultTimeout},
	}, nil
}

// GeneratedCard is one question-answer pair from the model.
type GeneratedCard struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// message, messagesRequest and messagesResponse mirror the Anthropic
// messages API wire format.
type message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesRequest struct {
	Model     string    `json:"model"`
	MaxTokens int       `json:"max_tokens"`
	System    string    `json:"system,omitempty"`
	Messages  []message `json:"messages"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Usage struct {
		InputTokens  int64 `json:"input_tokens"`
		OutputTokens int64 `json:"output_tokens"`
	} `json:"usage"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// GenerateFlashcards asks the model for numCards cards on the topic at the
// given complexity level. It returns the cards and the dollar cost of the
// call.
func (c *Client) GenerateFlashcards(ctx context.Context, topic string, numCards int, complexity string) ([]GeneratedCard, float64, error) {
	prompt := flashcardPrompt(topic, numCards, complexity)

	text, cost, err := c.complete(ctx, flashcardSystem, prompt)
	if err != nil {
		return nil, 0, err
	}

	cards, err := parseFlashcards(text)
	if err != nil {
		return nil, cost, err
	}
	return cards, cost, nil
}

// GenerateExplanation produces a simple explanation of a card at the given
// reading level (5 or 10).
func (c *Client) GenerateExplanation(ctx context.Context, question, answer string, level int) (string, float64, error) {
	prompt := fmt.Sprintf(
		"Explain the following flashcard as if to a %d-year-old, in 2-4 short sentences. "+
			"Use everyday words and one concrete analogy.\n\nQuestion: %s\nAnswer: %s\n\n"+
			"Return only the explanation, no preamble.",
		level, question, answer,
	)
	text, cost, err := c.complete(ctx, explainerSystem, prompt)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(text), cost, nil
}

// GenerateMnemonic produces a short memory aid for a card.
func (c *Client) GenerateMnemonic(ctx context.Context, question, answer string) (string, float64, error) {
	prompt := fmt.Sprintf(
		"Create a short, vivid mnemonic (an acronym, rhyme, or mental image) that helps "+
			"remember the answer to this flashcard.\n\nQuestion: %s\nAnswer: %s\n\n"+
			"Return only the mnemonic and one sentence on how to use it.",
		question, answer,
	)
	text, cost, err := c.complete(ctx, explainerSystem, prompt)
	if err != nil {
		return "", 0, err
	}
	return strings.TrimSpace(text), cost, nil
}

// complete runs one messages call, enforcing and recording the budget.
func (c *Client) complete(ctx context.Context, system, prompt string) (string, float64, error) {
	if c.budget != nil {
		if err := c.budget.Allow(); err != nil {
			return "", 0, err
		}
	}

	request := messagesRequest{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		System:    system,
		Messages:  []message{{Role: "user", Content: prompt}},
	}

	requestData, err := json.Marshal(request)
	if err != nil {
		return "", 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.apiURL, bytes.NewReader(requestData))
	if err != nil {
		return "", 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", apiVersion)

	resp, err := c.http.Do(req)
	if err != nil {
		return "", 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	var response messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return "", 0, fmt.Errorf("failed to decode response: %w", err)
	}

	if response.Error != nil {
		return "", 0, fmt.Errorf("API error: %s: %s", response.Error.Type, response.Error.Message)
	}
	if resp.StatusCode != http.StatusOK {
		return "", 0, fmt.Errorf("API returned status %d", resp.StatusCode)
	}

	var text strings.Builder
	for _, block := range response.Content {
		if block.Type == "text" {
			text.WriteString(block.Text)
		}
	}
	if text.Len() == 0 {
		return "", 0, fmt.Errorf("API returned no text content")
	}

	var cost float64
	if c.budget != nil {
		cost, err = c.budget.Record(response.Usage.InputTokens, response.Usage.OutputTokens)
		if err != nil {
			return "", 0, err
		}
	}

	return text.String(), cost, nil
}
