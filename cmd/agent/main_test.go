package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewRootCommand_FlagDefaults(t *testing.T) {
	cmd := newRootCommand()
	require.NotNil(t, cmd)

	flags := cmd.Flags()
	port, err := flags.GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 8765, port)

	llmPort, err := flags.GetInt("llm-port")
	require.NoError(t, err)
	assert.Equal(t, 11434, llmPort)

	renderPort, err := flags.GetInt("render-port")
	require.NoError(t, err)
	assert.Equal(t, 8000, renderPort)

	server, err := flags.GetString("server")
	require.NoError(t, err)
	assert.Empty(t, server)

	noUpdate, err := flags.GetBool("no-update")
	require.NoError(t, err)
	assert.False(t, noUpdate)
}

func TestNewRootCommand_FlagOverride(t *testing.T) {
	cmd := newRootCommand()
	cmd.SetArgs([]string{"--port", "9999", "--no-update"})
	require.NoError(t, cmd.ParseFlags([]string{"--port", "9999", "--no-update"}))

	port, err := cmd.Flags().GetInt("port")
	require.NoError(t, err)
	assert.Equal(t, 9999, port)

	noUpdate, err := cmd.Flags().GetBool("no-update")
	require.NoError(t, err)
	assert.True(t, noUpdate)
}
