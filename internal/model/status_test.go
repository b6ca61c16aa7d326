package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusConstants(t *testing.T) {
	assert.Equal(t, "idle", StatusIdle)
	assert.Equal(t, "scanning", StatusScanning)
	assert.Equal(t, "analyzing", StatusAnalyzing)
	assert.Equal(t, "orchestrating", StatusOrchestrating)
	assert.Equal(t, "complete", StatusComplete)
	assert.Equal(t, "error", StatusError)
}

func TestTerminal(t *testing.T) {
	assert.True(t, Terminal(StatusComplete))
	assert.True(t, Terminal(StatusError))
	assert.False(t, Terminal(StatusScanning))
	assert.False(t, Terminal(StatusOrchestrating))
}
