package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v2"
)

func TestConfigUnmarshal(t *testing.T) {
	data := `
default-transport: dt_socket
source-roots:
  - /work/src/main/java
  - /work/src/test/java
stack-trace-depth: 80
`
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte(data), &c))
	assert.Equal(t, "dt_socket", c.DefaultTransport)
	assert.Equal(t, []string{"/work/src/main/java", "/work/src/test/java"}, c.SourceRoots)
	require.NotNil(t, c.StackTraceDepth)
	assert.Equal(t, 80, *c.StackTraceDepth)
}

func TestConfigUnmarshalEmpty(t *testing.T) {
	var c Config
	require.NoError(t, yaml.Unmarshal([]byte("source-roots: []\n"), &c))
	assert.Empty(t, c.SourceRoots)
	assert.Nil(t, c.StackTraceDepth)
}

func TestDefaultTransportOrFallback(t *testing.T) {
	var nilConf *Config
	assert.Equal(t, "dt_socket", nilConf.DefaultTransportOrFallback())
	assert.Equal(t, "dt_socket", (&Config{}).DefaultTransportOrFallback())
	assert.Equal(t, "dt_shmem", (&Config{DefaultTransport: "dt_shmem"}).DefaultTransportOrFallback())
}
