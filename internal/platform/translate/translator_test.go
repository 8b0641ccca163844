package translate

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completionResponse(t *testing.T, content string) string {
	t.Helper()
	resp := map[string]any{
		"choices": []map[string]any{
			{"message": map[string]string{"content": content}},
		},
	}
	b, err := json.Marshal(resp)
	require.NoError(t, err)
	return string(b)
}

func TestClient_Translate(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(completionResponse(t, `{"sr-Latn": "Dijabetes", "ru": "Диабет"}`)))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/v1", "sk-test", "gpt-4o-mini")
	got, err := c.Translate(context.Background(), "Diabetes", "en", []string{"sr-Latn", "ru"})
	require.NoError(t, err)

	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.Equal(t, map[string]string{"sr-Latn": "Dijabetes", "ru": "Диабет"}, got)
}

func TestClient_Translate_NoTargets(t *testing.T) {
	c := NewClient("http://unused", "", "m")
	got, err := c.Translate(context.Background(), "text", "en", nil)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestClient_Translate_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "rate limited", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "k", "m")
	_, err := c.Translate(context.Background(), "text", "en", []string{"ru"})
	assert.Error(t, err)
}

func TestParseTranslations_FencedJSON(t *testing.T) {
	content := "```json\n{\"ru\": \"Сердце\", \"sr-Latn\": \"Srce\"}\n```"
	got, err := parseTranslations(content, []string{"ru", "sr-Latn"})
	require.NoError(t, err)
	assert.Equal(t, "Сердце", got["ru"])
	assert.Equal(t, "Srce", got["sr-Latn"])
}

func TestParseTranslations_IgnoresExtraKeys(t *testing.T) {
	got, err := parseTranslations(`{"ru": "Да", "de": "Ja", "note": "meta"}`, []string{"ru", "sr-Latn"})
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"ru": "Да"}, got)
}

func TestParseTranslations_Malformed(t *testing.T) {
	_, err := parseTranslations(`not json at all`, []string{"ru"})
	assert.Error(t, err)

	_, err = parseTranslations(`{"de": "Ja"}`, []string{"ru"})
	assert.Error(t, err)
}
