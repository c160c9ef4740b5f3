package selfupdate

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeExecutable(t *testing.T, dir, name, content string) string {
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o755))
	return path
}

func TestUpdater_Disabled(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "v1")
	u := New("", execPath, nil)
	assert.False(t, u.Enabled())

	result, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.False(t, result.NeedsUpdate)
}

func TestUpdater_OwnHash(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "hello")
	u := New("http://example.invalid", execPath, nil)

	hash, err := u.OwnHash()
	require.NoError(t, err)
	expected := md5.Sum([]byte("hello"))
	assert.Equal(t, hex.EncodeToString(expected[:]), hash)
}

func TestUpdater_CheckNeedsUpdate(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "v1")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/agent/check", r.URL.Path)
		assert.NotEmpty(t, r.URL.Query().Get("hash"))
		_ = json.NewEncoder(w).Encode(CheckResult{NeedsUpdate: true, CurrentHash: "abc", CurrentVersion: "1.2.0"})
	}))
	defer server.Close()

	u := New(server.URL, execPath, nil)
	result, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.True(t, result.NeedsUpdate)
	assert.Equal(t, "abc", result.CurrentHash)
}

func TestUpdater_DownloadAndApply(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "old-binary")

	newContent := []byte("new-binary-content")
	sum := md5.Sum(newContent)
	hash := hex.EncodeToString(sum[:])

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agent-Hash", hash)
		_, _ = w.Write(newContent)
	}))
	defer server.Close()

	u := New(server.URL, execPath, nil)
	require.NoError(t, u.Download(context.Background()))

	staged, err := os.ReadFile(execPath + ".new")
	require.NoError(t, err)
	assert.Equal(t, newContent, staged)

	require.NoError(t, u.Apply())

	applied, err := os.ReadFile(execPath)
	require.NoError(t, err)
	assert.Equal(t, newContent, applied)

	backup, err := os.ReadFile(execPath + ".backup")
	require.NoError(t, err)
	assert.Equal(t, []byte("old-binary"), backup)
}

func TestUpdater_SetAuthTokenSendsBearerHeader(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "v1")

	token := "eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9.eyJzdWIiOiJvcmNoZXN0cmF0b3IifQ.signature"

	var gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(CheckResult{})
	}))
	defer server.Close()

	u := New(server.URL, execPath, nil)
	require.NoError(t, u.SetAuthToken(token))

	_, err := u.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bearer "+token, gotAuth)
}

func TestUpdater_SetAuthTokenRejectsMalformed(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "v1")
	u := New("http://example.invalid", execPath, nil)

	err := u.SetAuthToken("not-a-jwt")
	assert.Error(t, err)
}

func TestUpdater_DownloadHashMismatchAborts(t *testing.T) {
	dir := t.TempDir()
	execPath := writeExecutable(t, dir, "agent", "old-binary")

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Agent-Hash", "deadbeef")
		_, _ = w.Write([]byte("new-binary-content"))
	}))
	defer server.Close()

	u := New(server.URL, execPath, nil)
	err := u.Download(context.Background())
	assert.Error(t, err)
	_, statErr := os.Stat(execPath + ".new")
	assert.True(t, os.IsNotExist(statErr))
}
