package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	Path string
	Body map[string]any
}

// newAPIServer は path ごとの応答を返すテスト用サーバーを起動する。
func newAPIServer(t *testing.T, responses map[string]string) (*httptest.Server, *[]recordedCall) {
	t.Helper()
	var calls []recordedCall
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		var body map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		calls = append(calls, recordedCall{Path: r.URL.Path, Body: body})

		resp, ok := responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"error":{"code":"UNKNOWN_ACTION","message":"Unknown action"}}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(resp))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func runCLI(t *testing.T, srv *httptest.Server, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), NewClient(srv.URL, "key", srv.Client()), args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func TestRun_Stats(t *testing.T) {
	srv, calls := newAPIServer(t, map[string]string{
		"/_actions/adminGetStats": `{"data":{"comments":{"approved":3,"pending":2,"spam":1,"total":6},"likes":9}}`,
	})

	code, out, errOut := runCLI(t, srv, "stats")

	assert.Equal(t, 0, code)
	assert.Empty(t, errOut)
	assert.Contains(t, out, "Total Comments:")
	assert.Regexp(t, `Total Comments:\s+6`, out)
	assert.Regexp(t, `Pending:\s+2`, out)
	assert.Regexp(t, `Total Likes:\s+9`, out)
	require.Len(t, *calls, 1)
	assert.Equal(t, "key", (*calls)[0].Body["adminKey"])
}

func TestRun_ListDefaultsToAllWithLimit(t *testing.T) {
	srv, calls := newAPIServer(t, map[string]string{
		"/_actions/adminGetAllComments": `{"data":{"comments":[
			{"id":42,"post_slug":"a-very-long-post-slug-that-keeps-going","author_name":"Alice","content":"hello","created_at":1700000000000,"status":"pending"}
		],"count":1}}`,
	})

	code, out, _ := runCLI(t, srv, "list")

	assert.Equal(t, 0, code)
	require.Len(t, *calls, 1)
	assert.Equal(t, "all", (*calls)[0].Body["status"])
	assert.Equal(t, float64(listLimit), (*calls)[0].Body["limit"])
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "Content")
	assert.Contains(t, out, "42")
	assert.Contains(t, out, "a-very-long-post-slug-t...")
	assert.Contains(t, out, "pending")
}

func TestRun_ListEmpty(t *testing.T) {
	srv, calls := newAPIServer(t, map[string]string{
		"/_actions/adminGetAllComments": `{"data":{"comments":[],"count":0}}`,
	})

	code, out, _ := runCLI(t, srv, "list", "spam")

	assert.Equal(t, 0, code)
	assert.Equal(t, "spam", (*calls)[0].Body["status"])
	assert.Contains(t, out, "No spam comments found.")
}

func TestRun_UpdateCommands(t *testing.T) {
	tests := []struct {
		command string
		message string
	}{
		{"approve", "Comment approved"},
		{"reject", "Comment marked as spam"},
		{"delete", "Comment deleted"},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			srv, calls := newAPIServer(t, map[string]string{
				"/_actions/adminUpdateComment": `{"data":{"success":true,"message":"` + tt.message + `"}}`,
			})

			code, out, _ := runCLI(t, srv, tt.command, "7")

			assert.Equal(t, 0, code)
			assert.Contains(t, out, tt.message)
			require.Len(t, *calls, 1)
			assert.Equal(t, float64(7), (*calls)[0].Body["commentId"])
			assert.Equal(t, tt.command, (*calls)[0].Body["action"])
		})
	}
}

func TestRun_MissingOrInvalidID(t *testing.T) {
	srv, calls := newAPIServer(t, nil)

	code, _, errOut := runCLI(t, srv, "approve")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Comment ID required")

	code, _, errOut = runCLI(t, srv, "delete", "abc")
	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "invalid comment ID")

	assert.Empty(t, *calls)
}

func TestRun_APIErrorExitsNonZero(t *testing.T) {
	srv, _ := newAPIServer(t, map[string]string{
		"/_actions/adminGetStats": `{"error":{"code":"UNAUTHORIZED","message":"Unauthorized"}}`,
	})

	code, _, errOut := runCLI(t, srv, "stats")

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "Unauthorized")
}

func TestRun_UnparsableResponse(t *testing.T) {
	srv, _ := newAPIServer(t, map[string]string{
		"/_actions/adminGetStats": `<html>bad gateway</html>`,
	})

	code, _, errOut := runCLI(t, srv, "stats")

	assert.Equal(t, 1, code)
	assert.Contains(t, errOut, "failed to parse response")
}

func TestRun_UnknownOrMissingCommandPrintsUsage(t *testing.T) {
	srv, calls := newAPIServer(t, nil)

	for _, args := range [][]string{nil, {"help"}, {"purge", "1"}} {
		code, out, _ := runCLI(t, srv, args...)
		assert.Equal(t, 0, code)
		assert.Contains(t, out, "Usage:")
	}
	assert.Empty(t, *calls)
}

func TestRun_MissingAdminKey(t *testing.T) {
	t.Setenv("ADMIN_KEY", "")
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(t.TempDir()))
	t.Cleanup(func() { _ = os.Chdir(wd) })

	var stdout, stderr bytes.Buffer
	code := Run(context.Background(), []string{"stats"}, &stdout, &stderr)

	assert.Equal(t, 1, code)
	assert.Contains(t, stderr.String(), "ADMIN_KEY")
}

func TestLoadConfig_DevVarsFallback(t *testing.T) {
	t.Setenv("ADMIN_KEY", "")
	t.Setenv("API_URL", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DevVarsFile),
		[]byte("ADMIN_KEY=file-key\nAPI_URL=https://blog.example.com\n"), 0o600))

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "file-key", cfg.AdminKey)
	assert.Equal(t, "https://blog.example.com", cfg.APIURL)
}

func TestLoadConfig_EnvironmentWins(t *testing.T) {
	t.Setenv("ADMIN_KEY", "env-key")
	t.Setenv("API_URL", "")
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DevVarsFile), []byte("ADMIN_KEY=file-key\n"), 0o600))

	cfg, err := LoadConfig(dir)

	require.NoError(t, err)
	assert.Equal(t, "env-key", cfg.AdminKey)
	assert.Equal(t, DefaultAPIURL, cfg.APIURL)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "exactly10!", truncate("exactly10!", 10))
	assert.Equal(t, "abc...", truncate("abcdef", 3))
	assert.Equal(t, "日本...", truncate("日本語", 2))
}
