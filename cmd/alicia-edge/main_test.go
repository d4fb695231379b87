package main

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/longregen/alicia-edge/internal/adapters/credstore"
	"github.com/longregen/alicia-edge/internal/config"
	"github.com/longregen/alicia-edge/internal/domain"
)

func useConfig(t *testing.T) *config.Config {
	t.Helper()
	c := config.DefaultConfig()
	c.Device.CredentialsPath = filepath.Join(t.TempDir(), "credentials.msgpack")
	prev := cfg
	cfg = c
	t.Cleanup(func() { cfg = prev })
	return c
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "(not set)", maskSecret(""))
	assert.Equal(t, "(set)", maskSecret("short"))
	assert.Equal(t, "abcd...wxyz", maskSecret("abcdefghijklmnopqrstuvwxyz"))
}

func TestCredsShow_NotActivated(t *testing.T) {
	useConfig(t)

	var out bytes.Buffer
	cmd := credsShowCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	assert.Contains(t, out.String(), "not activated")
	assert.Contains(t, out.String(), "(not generated yet)")
}

func TestCredsShowAndClear(t *testing.T) {
	c := useConfig(t)
	store := credstore.New(c.Device.CredentialsPath)
	require.NoError(t, store.SaveSerial("serial-1"))
	require.NoError(t, store.Save(domain.Credentials{
		UUID:        "7d3c2b1a-0f9e-4d8c-b7a6-5e4f3d2c1b0a",
		AccessToken: "0123456789abcdef4567",
	}))

	var out bytes.Buffer
	show := credsShowCmd()
	show.SetOut(&out)
	require.NoError(t, show.RunE(show, nil))
	assert.Contains(t, out.String(), "serial-1")
	assert.Contains(t, out.String(), "0123...4567")
	assert.NotContains(t, out.String(), "0123456789abcdef4567")

	clearCmd := credsClearCmd()
	clearCmd.SetOut(&out)
	require.NoError(t, clearCmd.RunE(clearCmd, nil))

	_, err := store.Load()
	assert.ErrorIs(t, err, domain.ErrNotFound)
	serial, err := store.Serial()
	require.NoError(t, err)
	assert.Equal(t, "serial-1", serial)
}

func TestConfigCmd_MasksSecrets(t *testing.T) {
	c := useConfig(t)
	c.Observability.DebugToken = "super-secret-token"

	var out bytes.Buffer
	cmd := configCmd()
	cmd.SetOut(&out)
	require.NoError(t, cmd.RunE(cmd, nil))

	assert.NotContains(t, out.String(), "super-secret-token")
	assert.Contains(t, out.String(), `"debug_token"`)
}
