package agent

// Node names one step of the retrieval graph.
type Node string

const (
	NodeCheckQuestion Node = "check_question"
	NodeRetrieveDocs  Node = "retrieve_docs"
	NodeOffTopic      Node = "off_topic"
	NodeEnd           Node = "END"
)

// State is the per-turn record threaded through the graph. It is created
// at the start of Run and never outlives it.
type State struct {
	UserMessage string `json:"userMessage"`
	Namespace   string `json:"namespace"`
	IsOnTopic   bool   `json:"isOnTopic"`
	Context     string `json:"context"`
	Category    string `json:"category"`
}

// Route is the conditional edge leaving check_question. Only IsOnTopic
// participates.
func Route(s State) Node {
	if s.IsOnTopic {
		return NodeRetrieveDocs
	}
	return NodeOffTopic
}

// Next returns the node that follows n. The graph is acyclic: every path
// reaches NodeEnd after at most two steps.
func Next(n Node, s State) Node {
	switch n {
	case NodeCheckQuestion:
		return Route(s)
	default:
		return NodeEnd
	}
}
