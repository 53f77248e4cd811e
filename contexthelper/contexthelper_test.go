package contexthelper

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCheckCancellation(t *testing.T) {
	assert.NoError(t, CheckCancellation(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, CheckCancellation(ctx), context.Canceled)
}
