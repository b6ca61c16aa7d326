package fault

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWrap_MatchesKindAndCause(t *testing.T) {
	err := Wrap(ErrStoreUnavailable, "insert pending approval", context.DeadlineExceeded)

	assert.True(t, errors.Is(err, ErrStoreUnavailable))
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
	assert.False(t, errors.Is(err, ErrCacheUnavailable))
	assert.Equal(t, "insert pending approval: store unavailable: context deadline exceeded", err.Error())
}

func TestWrap_NilCause(t *testing.T) {
	err := Wrap(ErrApprovalConflict, "approve inc-1", nil)
	assert.True(t, Is(err, ErrApprovalConflict))
	assert.Equal(t, "approve inc-1: approval conflict", err.Error())
}

func TestWrap_SurvivesFmtWrapping(t *testing.T) {
	err := fmt.Errorf("orchestrate: %w", Wrap(ErrProvider, "classify", errors.New("bad json")))
	assert.True(t, Is(err, ErrProvider))
}
