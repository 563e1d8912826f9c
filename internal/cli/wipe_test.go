package cli

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/keystone/internal/journal"
)

func TestWipe_FailedEntry(t *testing.T) {
	env := newTestEnv(t)
	env.transport.FailSend(setFee, errors.New("execution reverted"))
	_, err := env.run("deploy", "Market", "--network", "local")
	require.Error(t, err)

	out, err := env.run("wipe", "Market#MarketCore.setFee", "--network", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "Wiped failed entry Market#MarketCore.setFee in chain-31337")

	j := env.journal(t)
	ctx := context.Background()
	_, err = j.Get(ctx, "chain-31337", setFee)
	assert.ErrorIs(t, err, journal.ErrNotFound)

	holder, err := j.LockHolder(ctx, "chain-31337")
	require.NoError(t, err)
	assert.Nil(t, holder, "wipe must release its lock")

	events, err := j.Events(ctx, "chain-31337")
	require.NoError(t, err)
	last := events[len(events)-1]
	assert.Equal(t, setFee, last.Ref)
	assert.Equal(t, "run-cli", last.RunID)
	assert.Equal(t, events[len(events)-2].Seq+1, last.Seq)
}

func TestWipe_ConfirmedEntryRefused(t *testing.T) {
	env := newTestEnv(t)
	_, err := env.run("deploy", "Market", "--network", "local")
	require.NoError(t, err)

	out, err := env.run("wipe", "Market#MarketCore", "--network", "local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error ["+ErrCodeJournal+"]")
	assert.Contains(t, out, "confirmed")
}

func TestWipe_MissingEntry(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("wipe", "Market#MarketCore", "--network", "local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "not found")
}

func TestWipe_InvalidReference(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("wipe", "MarketCore", "--network", "local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "want Module#id")
}

func TestWipe_LockedNamespace(t *testing.T) {
	env := newTestEnv(t)
	env.transport.FailSend(setFee, errors.New("execution reverted"))
	_, err := env.run("deploy", "Market", "--network", "local")
	require.Error(t, err)
	require.NoError(t, env.journal(t).Lock(context.Background(), "chain-31337", "other-run"))

	_, err = env.run("wipe", "Market#MarketCore.setFee", "--network", "local")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestUnlock_ReleasesStaleLock(t *testing.T) {
	env := newTestEnv(t)
	j := env.journal(t)
	ctx := context.Background()
	require.NoError(t, j.Lock(ctx, "chain-31337", "crashed-run"))

	out, err := env.run("unlock", "--network", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "Released lock on chain-31337 held by crashed-run")

	holder, err := j.LockHolder(ctx, "chain-31337")
	require.NoError(t, err)
	assert.Nil(t, holder)

	_, err = env.run("deploy", "Market", "--network", "local")
	require.NoError(t, err)
}

func TestUnlock_NotLocked(t *testing.T) {
	env := newTestEnv(t)

	out, err := env.run("unlock", "--network", "local")
	require.NoError(t, err)
	assert.Contains(t, out, "chain-31337 was not locked")
}
