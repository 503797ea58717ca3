package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/wippyai/wasm-bridge/internal/guesttest"
)

func writeModule(t *testing.T, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "interpreter_bg.wasm")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func execute(t *testing.T, stdin string, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetArgs(append(args, "--log-level", "error"))
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func TestRun_PrintsJSON(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"string", []string{"-e", "hello"}, `"hello"`},
		{"bigint", []string{"-e", "#abc"}, "4"},
		{"object", []string{"-e", "@abc"}, `{"length":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append([]string{"run", "--module", module}, tt.args...)
			out, _, err := execute(t, "", args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want+"\n", out)
		})
	}
}

func TestRun_FileAndStdin(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())
	program := filepath.Join(t.TempDir(), "main.focus")
	require.NoError(t, os.WriteFile(program, []byte("from file\n"), 0o644))

	out, _, err := execute(t, "", "run", "--module", module, program)
	require.NoError(t, err)
	assert.Equal(t, "\"from file\"\n", out)

	out, _, err = execute(t, "piped", "run", "--module", module, "-")
	require.NoError(t, err)
	assert.Equal(t, "\"piped\"\n", out)
}

func TestRun_GuestErrorIsReported(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())

	out, errOut, err := execute(t, "", "run", "--module", module, "-e", "!Unexpected token '$'.")
	require.ErrorIs(t, err, errReported)
	assert.Empty(t, out)
	assert.Contains(t, errOut, ": Unexpected token '$'.")
}

func TestRun_BadArguments(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())

	_, _, err := execute(t, "", "run", "--module", module)
	assert.ErrorContains(t, err, "no program")

	_, _, err = execute(t, "", "run", "--module", module, "-e", "x", "file")
	assert.ErrorContains(t, err, "not both")

	_, _, err = execute(t, "", "run", "-e", "x")
	assert.Error(t, err)
}

func TestRun_InstantiationFailure(t *testing.T) {
	module := writeModule(t, guesttest.MissingImportModule())

	_, _, err := execute(t, "", "run", "--module", module, "-e", "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "__wbg_random_1f3c2bd7eaa1d0a3")
}

func TestCheck(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())

	out, _, err := execute(t, "", "check", "--module", module)
	require.NoError(t, err)
	assert.Contains(t, out, "interpreter_interpret_str_web")
	assert.Contains(t, out, "__wbindgen_string_new")
	assert.Contains(t, out, guesttest.EchoObjectSetImport)
	assert.Contains(t, out, "instantiated: ready")
}

func TestCheck_MissingImports(t *testing.T) {
	module := writeModule(t, guesttest.MissingImportModule())

	out, errOut, err := execute(t, "", "check", "--module", module)
	require.ErrorIs(t, err, errReported)
	assert.Contains(t, out, "missing")
	assert.Contains(t, errOut, "__wbg_random_1f3c2bd7eaa1d0a3")
}

func TestRepl_LineMode(t *testing.T) {
	module := writeModule(t, guesttest.EchoModule())

	out, _, err := execute(t, "hello\n\n!nope\nexit\nignored\n", "repl", "--plain", "--module", module)
	require.NoError(t, err)
	assert.Contains(t, out, `: "hello"`)
	assert.Contains(t, out, ": nope")
	assert.NotContains(t, out, "ignored")
}

func TestLineREPL_EOF(t *testing.T) {
	var out bytes.Buffer
	s := newSession(&fakeInterpreter{results: map[string]string{"1": "1"}}, zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	require.NoError(t, lineREPL(ctx, strings.NewReader("1"), &out, s))
	assert.Len(t, s.Entries(), 1)
}

func TestIsURL(t *testing.T) {
	assert.True(t, isURL("https://example.com/i.wasm"))
	assert.True(t, isURL("http://localhost:8080/i.wasm"))
	assert.False(t, isURL("./interpreter_bg.wasm"))
	assert.False(t, isURL("http"))
}
