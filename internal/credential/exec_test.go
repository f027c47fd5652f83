package credential

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"missioncontrol/internal/errors"
)

func TestExecRunner_Success(t *testing.T) {
	t.Parallel()

	res, err := ExecRunner{Timeout: 5 * time.Second}.Run(context.Background(), "sh", "-c", "echo hello")
	require.NoError(t, err)
	assert.Equal(t, "hello\n", res.Stdout)
	assert.Equal(t, 0, res.ExitCode)
}

func TestExecRunner_NonZeroExit(t *testing.T) {
	t.Parallel()

	res, err := ExecRunner{}.Run(context.Background(), "sh", "-c", "echo out; echo broken >&2; exit 3")
	require.ErrorIs(t, err, errors.ErrCommandFailed)
	assert.Contains(t, err.Error(), "broken")
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "out\n", res.Stdout)
}

func TestExecRunner_MissingBinary(t *testing.T) {
	t.Parallel()

	res, err := ExecRunner{}.Run(context.Background(), "definitely-not-a-real-binary-mc")
	require.Error(t, err)
	assert.NotErrorIs(t, err, errors.ErrCommandFailed)
	assert.Equal(t, -1, res.ExitCode)
}

func TestExecRunner_TimeoutKillsCommand(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("sleep"); err != nil {
		t.Skip("sleep not available")
	}
	start := time.Now()
	_, err := ExecRunner{Timeout: 50 * time.Millisecond}.Run(context.Background(), "sleep", "5")
	require.Error(t, err)
	assert.Less(t, time.Since(start), 3*time.Second)
}
