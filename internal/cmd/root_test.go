package cmd

import (
	"errors"
	"fmt"
	"testing"

	"github.com/fulmenhq/gofulmen/foundry"
	"github.com/stretchr/testify/assert"
)

func TestSetVersionInfo(t *testing.T) {
	origVersion := versionInfo.Version
	origCommit := versionInfo.Commit
	origBuildDate := versionInfo.BuildDate
	defer func() {
		versionInfo.Version = origVersion
		versionInfo.Commit = origCommit
		versionInfo.BuildDate = origBuildDate
	}()

	SetVersionInfo("1.2.3", "abc123", "2026-06-15")

	assert.Equal(t, "1.2.3", versionInfo.Version)
	assert.Equal(t, "abc123", versionInfo.Commit)
	assert.Equal(t, "2026-06-15", versionInfo.BuildDate)
	assert.Equal(t, "1.2.3", rootCmd.Version)
}

func TestExitCodeFor(t *testing.T) {
	assert.Equal(t, 0, ExitCodeFor(nil))
	assert.Equal(t, 1, ExitCodeFor(errors.New("plain")))

	err := exitError(foundry.ExitInvalidArgument, "Bad flag", errors.New("boom"))
	assert.Equal(t, int(foundry.ExitInvalidArgument), ExitCodeFor(err))
	assert.Contains(t, err.Error(), "Bad flag")

	wrapped := fmt.Errorf("outer: %w", err)
	assert.Equal(t, int(foundry.ExitInvalidArgument), ExitCodeFor(wrapped))
}

func TestExitErrorWithoutCause(t *testing.T) {
	err := exitError(foundry.ExitFileNotFound, "Job cache is empty", nil)
	assert.Equal(t, "Job cache is empty", err.Error())
}
