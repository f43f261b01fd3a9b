//go:build !windows

package executor

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_TimeoutKillsBackgroundChildren(t *testing.T) {
	e := New(200*time.Millisecond, nil)

	start := time.Now()
	res, err := e.Run(context.Background(), Snapshot{}, "sleep 3 & sleep 3")
	require.NoError(t, err)

	assert.Less(t, time.Since(start), 2*time.Second)
	require.True(t, res.HasError())
	assert.Contains(t, *res.Error, "timed out")
}
