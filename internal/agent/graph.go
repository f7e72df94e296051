package agent

import (
	"context"
	"fmt"
	"log/slog"
)

// OffTopicContext is the refusal written by the off_topic node.
const OffTopicContext = "OFF_TOPIC: I appreciate the question, but I can only help with our restaurant menu! Ask me about dishes, prices, dietary info, or place an order."

// Graph runs one turn: check_question, then retrieve_docs or off_topic.
type Graph struct {
	classifier *Classifier
	retriever  *Retriever
}

func NewGraph(classifier *Classifier, retriever *Retriever) *Graph {
	return &Graph{classifier: classifier, retriever: retriever}
}

// Run executes the graph for one message against one namespace. It
// classifies exactly once and retrieves at most once.
func (g *Graph) Run(ctx context.Context, namespace, userMessage string) (*State, error) {
	state := &State{UserMessage: userMessage, Namespace: namespace}

	for node := NodeCheckQuestion; node != NodeEnd; node = Next(node, *state) {
		if err := g.step(ctx, node, state); err != nil {
			return nil, err
		}
	}

	slog.Debug("graph turn complete",
		"namespace", namespace,
		"on_topic", state.IsOnTopic,
		"category", state.Category,
	)
	return state, nil
}

func (g *Graph) step(ctx context.Context, node Node, state *State) error {
	switch node {
	case NodeCheckQuestion:
		c, err := g.classifier.Classify(ctx, state.UserMessage)
		if err != nil {
			return err
		}
		state.IsOnTopic = c.IsOnTopic
		state.Category = c.Category
	case NodeRetrieveDocs:
		text, err := g.retriever.Retrieve(ctx, state.Namespace, state.UserMessage)
		if err != nil {
			return fmt.Errorf("retrieve docs: %w", err)
		}
		state.Context = text
	case NodeOffTopic:
		state.Context = OffTopicContext
	default:
		return fmt.Errorf("unknown graph node %q", node)
	}
	return nil
}
