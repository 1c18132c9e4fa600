package main

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupEnv(t *testing.T, apiURL string) {
	t.Helper()
	t.Setenv("SPLITBOOK_API_URL", apiURL)
	t.Setenv("SPLITBOOK_CREDENTIALS", filepath.Join(t.TempDir(), "credentials.db"))
}

func TestRun_MissingCommand(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:0/api/")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	err := run(nil, stdin, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing command")
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_UnknownCommand(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:0/api/")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	err := run([]string{"frobnicate"}, stdin, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown command")
	assert.Contains(t, stdout.String(), "Usage:")
}

func TestRun_RequiresLogin(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:0/api/")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	err := run([]string{"expenses"}, stdin, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not logged in")
}

func TestRun_LoginThenWhoami(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/login/", r.URL.Path)
		w.Write([]byte(`{"access": "tok-a", "refresh": "tok-r"}`))
	}))
	defer server.Close()
	setupEnv(t, server.URL+"/api/")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	err := run([]string{"login", "-user", "alex", "-password", "pw"}, stdin, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Logged in as alex")

	// A second invocation sees the persisted session without any
	// network call (the server only ever handled the login above).
	stdout.Reset()
	err = run([]string{"whoami"}, stdin, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Logged in")
}

func TestRun_LoginInteractivePassword(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"access": "tok-a", "refresh": "tok-r"}`))
	}))
	defer server.Close()
	setupEnv(t, server.URL+"/api/")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	// Simulate user typing the password followed by newline
	stdin := bytes.NewBufferString("interactive_secret\n")

	err := run([]string{"login", "-user", "alex"}, stdin, stdout, stderr)
	require.NoError(t, err)
	assert.Contains(t, stdout.String(), "Password: ")
	assert.Contains(t, stdout.String(), "Logged in as alex")
}

func TestRun_LoginEmptyPassword(t *testing.T) {
	setupEnv(t, "http://127.0.0.1:0/api/")
	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := bytes.NewBufferString("\n")

	err := run([]string{"login", "-user", "alex"}, stdin, stdout, stderr)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password cannot be empty")
}

func TestRun_SplitCreatesExpenseAndShares(t *testing.T) {
	shareCount := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/api/login/":
			w.Write([]byte(`{"access": "tok-a", "refresh": "tok-r"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/expenses/":
			assert.Equal(t, "Bearer tok-a", r.Header.Get("Authorization"))
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 12, "title": "Pizza", "amount": "100.00", "date": "2026-08-29T12:00:00Z"}`))
		case r.Method == http.MethodPost && r.URL.Path == "/api/expenses/12/shares/":
			shareCount++
			w.WriteHeader(http.StatusCreated)
			w.Write([]byte(`{"id": 1, "amount": "25.00"}`))
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()
	setupEnv(t, server.URL+"/api/")

	stdout := new(bytes.Buffer)
	stderr := new(bytes.Buffer)
	stdin := new(bytes.Buffer)

	require.NoError(t, run([]string{"login", "-user", "alex", "-password", "pw"}, stdin, stdout, stderr))

	stdout.Reset()
	err := run([]string{"split", "-title", "Pizza", "-amount", "100", "-payees", "4,5,6"}, stdin, stdout, stderr)
	require.NoError(t, err)

	assert.Equal(t, 3, shareCount)
	assert.Contains(t, stdout.String(), "split 4 ways")
	assert.Contains(t, stdout.String(), "each owes 25.00")
}

func TestParseIDs(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    []int64
		wantErr bool
	}{
		{"single", "4", []int64{4}, false},
		{"several", "4,5,6", []int64{4, 5, 6}, false},
		{"spaces and trailing comma", " 4, 5 ,", []int64{4, 5}, false},
		{"duplicates collapsed", "4,4,5", []int64{4, 5}, false},
		{"not a number", "4,x", nil, true},
		{"empty", "", nil, true},
		{"only commas", ",,", nil, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := parseIDs(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
