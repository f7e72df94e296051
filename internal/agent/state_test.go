package agent

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNextRouting(t *testing.T) {
	for _, category := range []string{"", "all", "soups", "weather"} {
		on := State{IsOnTopic: true, Category: category}
		off := State{IsOnTopic: false, Category: category}

		assert.Equal(t, NodeRetrieveDocs, Next(NodeCheckQuestion, on), category)
		assert.Equal(t, NodeOffTopic, Next(NodeCheckQuestion, off), category)
	}
}

func TestNextTerminates(t *testing.T) {
	s := State{IsOnTopic: true}
	assert.Equal(t, NodeEnd, Next(NodeRetrieveDocs, s))
	assert.Equal(t, NodeEnd, Next(NodeOffTopic, s))
	assert.Equal(t, NodeEnd, Next(NodeEnd, s))
}
