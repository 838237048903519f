package sudolog

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestForWithoutInitProducesUsableEntry(t *testing.T) {
	logger = nil
	entry := For("test-component")
	require.Equal(t, "test-component", entry.Data["component"])
}

func TestInitRoutesOutputToConfiguredWriter(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf, Debug: true})

	For("policy").Info("loaded sudoers")
	require.Contains(t, buf.String(), "loaded sudoers")
	require.Contains(t, buf.String(), "component=policy")
}

func TestInitNonDebugUsesInfoLevel(t *testing.T) {
	var buf bytes.Buffer
	Init(Options{Output: &buf, Debug: false})

	For("policy").Debug("should not appear")
	require.Empty(t, buf.String())

	For("policy").Info("should appear")
	require.Contains(t, buf.String(), "should appear")
}
