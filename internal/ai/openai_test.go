package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sashabaranov/go-openai"

	"github.com/qsrdesk/go-support-backend/internal/config"
	"github.com/qsrdesk/go-support-backend/internal/domain"
)

func TestEmbedDimensions_ByModelFamily(t *testing.T) {
	cases := []struct {
		model string
		want  int
	}{
		{"text-embedding-ada-002", 0},
		{"text-embedding-3-small", domain.EmbeddingDim},
		{"text-embedding-3-large", domain.EmbeddingDim},
	}
	for _, tc := range cases {
		if got := embedDimensions(tc.model); got != tc.want {
			t.Fatalf("embedDimensions(%q) = %d, want %d", tc.model, got, tc.want)
		}
	}
}

// embedServer records the raw JSON body of one embeddings request and replies
// with a minimal valid response.
func embedServer(t *testing.T, body *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		if err != nil {
			t.Errorf("read request: %v", err)
		}
		if err := json.Unmarshal(raw, body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"object":"list","data":[{"object":"embedding","index":0,"embedding":[0.1,0.2]}],"model":"m","usage":{"prompt_tokens":1,"total_tokens":1}}`)
	}))
}

func newWireClient(t *testing.T, baseURL, model string) *Client {
	t.Helper()
	apiCfg := openai.DefaultConfig("test-key")
	apiCfg.BaseURL = baseURL
	return &Client{
		api: openai.NewClientWithConfig(apiCfg),
		cfg: config.AIConfig{EmbeddingModel: model},
	}
}

func TestEmbed_OmitsDimensionsForAda002(t *testing.T) {
	var body map[string]any
	srv := embedServer(t, &body)
	defer srv.Close()

	c := newWireClient(t, srv.URL, "text-embedding-ada-002")
	vec, err := c.Embed(context.Background(), "fryer shows\nerror E12")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 2 {
		t.Fatalf("vector length = %d", len(vec))
	}

	if _, present := body["dimensions"]; present {
		t.Fatalf("dimensions sent for ada-002: %v", body["dimensions"])
	}
	inputs, _ := body["input"].([]any)
	if len(inputs) != 1 || inputs[0] != "fryer shows error E12" {
		t.Fatalf("newlines not stripped from input: %v", body["input"])
	}
}

func TestEmbed_PinsDimensionsForV3Models(t *testing.T) {
	var body map[string]any
	srv := embedServer(t, &body)
	defer srv.Close()

	c := newWireClient(t, srv.URL, "text-embedding-3-small")
	if _, err := c.Embed(context.Background(), "ice machine leak"); err != nil {
		t.Fatalf("Embed: %v", err)
	}

	dims, present := body["dimensions"]
	if !present {
		t.Fatal("dimensions missing for text-embedding-3-small")
	}
	if n, _ := dims.(float64); int(n) != domain.EmbeddingDim {
		t.Fatalf("dimensions = %v, want %d", dims, domain.EmbeddingDim)
	}
}
