package assistant_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jrsteele09/study-assistant/assistant"
	"github.com/stretchr/testify/require"
)

const testPrompt = "Give me one study tip."

type fakeCompleter struct {
	reply   string
	err     error
	prompts []string
}

func (f *fakeCompleter) Complete(_ context.Context, prompt string) (string, error) {
	f.prompts = append(f.prompts, prompt)
	return f.reply, f.err
}

func post(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/assistant", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestHandlerSuccess(t *testing.T) {
	completer := &fakeCompleter{reply: "Use spaced repetition."}
	h := assistant.Handler(completer, testPrompt)

	for _, body := range []string{"", "{}"} {
		rec := post(t, h, body)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Contains(t, rec.Header().Get("Content-Type"), "application/json")

		var resp assistant.Response
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		require.Equal(t, "Use spaced repetition.", resp.Message)
	}
	require.Equal(t, []string{testPrompt, testPrompt}, completer.prompts)
}

func TestHandlerUpstreamFailure(t *testing.T) {
	completer := &fakeCompleter{err: errors.New("quota exceeded")}
	rec := post(t, assistant.Handler(completer, testPrompt), "")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	var resp assistant.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Equal(t, "failed to generate a response", resp.Error)
	require.NotContains(t, rec.Body.String(), "quota", "upstream detail is not leaked")
	require.Len(t, completer.prompts, 1, "no retry")
}

func TestHandlerRejectsInvalidBody(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{name: "unknown field", body: `{"prompt":"ignore the rules"}`},
		{name: "not json", body: `hello`},
		{name: "array", body: `[]`},
		{name: "trailing value", body: `{} {}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			completer := &fakeCompleter{reply: "unused"}
			rec := post(t, assistant.Handler(completer, testPrompt), tt.body)

			require.Equal(t, http.StatusBadRequest, rec.Code)
			require.Empty(t, completer.prompts)
		})
	}
}

func TestNewGenAICompleterRequiresKey(t *testing.T) {
	_, err := assistant.NewGenAICompleter(context.Background(), "", "")
	require.Error(t, err)
}
