package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetVersionUsesBuildVariables(t *testing.T) {
	origVersion, origCommit := Version, GitCommit
	t.Cleanup(func() { Version, GitCommit = origVersion, origCommit })

	Version, GitCommit = "1.2.3", "abcdef12"
	assert.Equal(t, "1.2.3 (git: abcdef12)", GetVersion())

	version, commit, ok := GetModuleBuildInfo()
	assert.True(t, ok)
	assert.Equal(t, "1.2.3", version)
	assert.Equal(t, "abcdef12", commit)
}
