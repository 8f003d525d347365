package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputFormatter_JSONSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.SuccessWithRun("run-1", map[string]int{"total": 3})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, "run-1", resp.RunID)
	assert.Equal(t, map[string]any{"total": float64(3)}, resp.Data)
}

func TestOutputFormatter_JSONError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{
		Format: "json",
		Writer: buf,
	}

	err := formatter.Error(CodeNotFound, "no record for QmX", map[string]string{"identifier": "QmX"})
	require.NoError(t, err)

	var resp CLIResponse
	require.NoError(t, json.Unmarshal(buf.Bytes(), &resp))
	assert.Equal(t, "error", resp.Status)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
	assert.Equal(t, "no record for QmX", resp.Error.Message)
	assert.NotNil(t, resp.Error.Details)
}

type fixedText string

func (f fixedText) WriteText(w io.Writer) error {
	_, err := fmt.Fprintf(w, "rendered %s\n", string(f))
	return err
}

func TestOutputFormatter_TextSuccess(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Success("plain value"))
	require.NoError(t, formatter.Success(fixedText("summary")))
	assert.Equal(t, "plain value\nrendered summary\n", buf.String())
}

func TestOutputFormatter_TextError(t *testing.T) {
	buf := &bytes.Buffer{}
	formatter := &OutputFormatter{Format: "text", Writer: buf}

	require.NoError(t, formatter.Error(CodeNotFound, "no record for QmA", []string{"QmA"}))
	assert.Contains(t, buf.String(), "Error [not_found]: no record for QmA")
	assert.NotContains(t, buf.String(), "Details:")

	buf.Reset()
	formatter.Verbose = true
	require.NoError(t, formatter.Error(CodeNotFound, "no record for QmA", []string{"QmA"}))
	assert.Contains(t, buf.String(), "Details: [QmA]")
}

func TestOutputFormatter_VerboseLog(t *testing.T) {
	tests := []struct {
		name    string
		verbose bool
		wantLog bool
	}{
		{"verbose_enabled", true, true},
		{"verbose_disabled", false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := &bytes.Buffer{}
			errOut := &bytes.Buffer{}
			formatter := &OutputFormatter{
				Format:    "json",
				Writer:    out,
				ErrWriter: errOut,
				Verbose:   tt.verbose,
			}

			formatter.VerboseLog("opened %s", "cid_tokens.db")

			assert.Empty(t, out.String())
			if tt.wantLog {
				assert.Equal(t, "opened cid_tokens.db\n", errOut.String())
			} else {
				assert.Empty(t, errOut.String())
			}
		})
	}
}

func TestGetExitCode(t *testing.T) {
	assert.Equal(t, ExitSuccess, GetExitCode(nil))
	assert.Equal(t, ExitFailure, GetExitCode(errors.New("plain")))
	assert.Equal(t, ExitCommandError, GetExitCode(NewExitError(ExitCommandError, "bad flag")))

	wrapped := fmt.Errorf("outer: %w", WrapExitError(ExitFailure, "build aborted", io.ErrUnexpectedEOF))
	assert.Equal(t, ExitFailure, GetExitCode(wrapped))
	assert.ErrorIs(t, wrapped, io.ErrUnexpectedEOF)
	assert.Equal(t, "outer: build aborted: unexpected EOF", wrapped.Error())
}
