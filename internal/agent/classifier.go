package agent

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/nikhilbhutani/menuwaiter/internal/llm"
)

const (
	StageOnTopic  = "on_topic"
	StageCategory = "category"

	// CategoryAll is what the extractor returns when no category is named.
	CategoryAll = "all"
)

const onTopicPrompt = `You are a classifier. Determine if the user's message is about a restaurant menu, food items, ordering, dietary restrictions, prices, or recommendations.
Respond with ONLY "True" if it is related, or "False" if it is off-topic.
Messages about greetings, saying hi, or asking what you can do should be classified as "True".`

const categoryPrompt = `Extract the food category the user is asking about from their message.
If they mention a specific type (e.g., "dumplings", "seafood", "vegetarian", "dessert"), return that category in lowercase.
If no specific category is mentioned, return "all".
Return ONLY the category word, nothing else.`

// Completer is the slice of llm.Gateway the classifier needs.
type Completer interface {
	Chat(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error)
}

// ClassificationError reports which classifier call failed.
type ClassificationError struct {
	Stage string
	Err   error
}

func (e *ClassificationError) Error() string {
	return fmt.Sprintf("classify %s: %v", e.Stage, e.Err)
}

func (e *ClassificationError) Unwrap() error { return e.Err }

type Classification struct {
	IsOnTopic bool
	Category  string
}

// Classifier decides whether a message concerns the menu and which food
// category it names.
type Classifier struct {
	llm   Completer
	model string
}

func NewClassifier(c Completer, model string) *Classifier {
	return &Classifier{llm: c, model: model}
}

// Classify issues the on-topic and category calls concurrently. If either
// fails the whole classification fails; there is no default answer.
func (c *Classifier) Classify(ctx context.Context, message string) (Classification, error) {
	var onTopic, category string

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := c.complete(gctx, onTopicPrompt, message)
		if err != nil {
			return &ClassificationError{Stage: StageOnTopic, Err: err}
		}
		onTopic = out
		return nil
	})
	g.Go(func() error {
		out, err := c.complete(gctx, categoryPrompt, message)
		if err != nil {
			return &ClassificationError{Stage: StageCategory, Err: err}
		}
		category = out
		return nil
	})
	if err := g.Wait(); err != nil {
		return Classification{}, err
	}

	return Classification{
		IsOnTopic: IsAffirmative(onTopic),
		Category:  strings.ToLower(strings.TrimSpace(category)),
	}, nil
}

func (c *Classifier) complete(ctx context.Context, system, message string) (string, error) {
	resp, err := c.llm.Chat(ctx, llm.ChatRequest{
		Model: c.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: system},
			{Role: llm.RoleUser, Content: message},
		},
		Temperature: 0,
		MaxTokens:   20,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

// IsAffirmative reports whether a classifier reply contains "true" after
// lowercasing. Negations are not recognised: "This is not true." counts as
// affirmative.
func IsAffirmative(reply string) bool {
	return strings.Contains(strings.ToLower(strings.TrimSpace(reply)), "true")
}
