package wazero

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wazerow/wazerow/api"
)

func TestRuntimeConfig_WithContext_NilDefaultsToBackground(t *testing.T) {
	c := NewRuntimeConfig().WithContext(nil)
	require.Equal(t, context.Background(), c.ctx)
}

func TestRuntimeConfig_Clone_IsIndependent(t *testing.T) {
	base := NewRuntimeConfig()
	withLimit := base.WithMemoryLimitPages(1)

	require.NotEqual(t, base.memoryLimitPages, withLimit.memoryLimitPages)
}

func TestRuntimeConfig_WithCoreFeatures(t *testing.T) {
	c := NewRuntimeConfig().WithCoreFeatures(api.CoreFeaturesV1)
	require.Equal(t, api.CoreFeaturesV1, c.enabledFeatures)
}

func TestModuleConfig_WithEnv_OverwritesExistingKey(t *testing.T) {
	c := NewModuleConfig().WithEnv("A", "1").WithEnv("A", "2")
	sys, err := c.toSysContext()
	require.NoError(t, err)
	require.Equal(t, []string{"A=2"}, sys.Environ)
}

func TestModuleConfig_WithEnv_EmptyKeyFails(t *testing.T) {
	c := NewModuleConfig().WithEnv("", "1")
	_, err := c.toSysContext()
	require.Error(t, err)
}

func TestModuleConfig_WithEnv_KeyContainingEqualsFails(t *testing.T) {
	c := NewModuleConfig().WithEnv("A=B", "1")
	_, err := c.toSysContext()
	require.Error(t, err)
}

func TestModuleConfig_WithStdio(t *testing.T) {
	stdin := bytes.NewBufferString("hello")
	var stdout, stderr bytes.Buffer

	c := NewModuleConfig().WithStdin(stdin).WithStdout(&stdout).WithStderr(&stderr)
	sys, err := c.toSysContext()
	require.NoError(t, err)
	require.Equal(t, stdin, sys.Stdin)
	require.Equal(t, &stdout, sys.Stdout)
	require.Equal(t, &stderr, sys.Stderr)
}
