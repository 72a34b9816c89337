package ollama

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/homebuyer-advisor/internal/core/domain"
	"github.com/kirillkom/homebuyer-advisor/internal/infrastructure/resilience"
)

const (
	// maxEmbedBatch keeps /api/embed bodies small during full reindexing.
	maxEmbedBatch = 32

	notesTemperature   = 0.2
	summaryTemperature = 0.4
	maxPredictTokens   = 320
)

// Client talks to a local Ollama server for listing embeddings and the short
// free text attached to recommendations.
type Client struct {
	baseURL    string
	genModel   string
	embedModel string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL, genModel, embedModel string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		genModel:   genModel,
		embedModel: embedModel,
		httpClient: &http.Client{Timeout: 90 * time.Second},
		executor:   executor,
	}
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

type generateOptions struct {
	Temperature float64 `json:"temperature"`
	NumPredict  int     `json:"num_predict,omitempty"`
}

type generateRequest struct {
	Model   string          `json:"model"`
	Prompt  string          `json:"prompt"`
	Stream  bool            `json:"stream"`
	Format  string          `json:"format,omitempty"`
	Options generateOptions `json:"options"`
}

type generateResponse struct {
	Response string `json:"response"`
}

type Embedder struct {
	client *Client
}

func NewEmbedder(client *Client) *Embedder {
	return &Embedder{client: client}
}

// Embed returns one vector per text, in input order. Every vector must share
// the dimension of the first one.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += maxEmbedBatch {
		end := min(start+maxEmbedBatch, len(texts))
		var response embedResponse
		request := embedRequest{Model: e.client.embedModel, Input: texts[start:end]}
		if err := e.client.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
			return nil, err
		}
		if len(response.Embeddings) != end-start {
			return nil, domain.WrapError(domain.ErrInternal, "ollama embed",
				fmt.Errorf("got %d vectors for %d texts", len(response.Embeddings), end-start))
		}
		vectors = append(vectors, response.Embeddings...)
	}

	dim := len(vectors[0])
	for i, v := range vectors {
		if len(v) == 0 || len(v) != dim {
			return nil, domain.WrapError(domain.ErrInternal, "ollama embed",
				fmt.Errorf("vector %d has dimension %d, want %d", i, len(v), dim))
		}
	}
	return vectors, nil
}

func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, domain.WrapError(domain.ErrValidation, "ollama embed query", errors.New("query text is empty"))
	}
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

// Generator is the text-generation side of the client.
type Generator struct {
	client *Client
}

func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

func (g *Generator) GenerateText(ctx context.Context, prompt string) (string, error) {
	return g.client.generate(ctx, generateRequest{
		Model:   g.client.genModel,
		Prompt:  prompt,
		Options: generateOptions{Temperature: summaryTemperature, NumPredict: maxPredictTokens},
	})
}

// GenerateJSON asks the model for a JSON object and strips any prose the model
// wraps around it.
func (g *Generator) GenerateJSON(ctx context.Context, prompt string) (string, error) {
	text, err := g.client.generate(ctx, generateRequest{
		Model:   g.client.genModel,
		Prompt:  prompt,
		Format:  "json",
		Options: generateOptions{Temperature: notesTemperature, NumPredict: maxPredictTokens},
	})
	if err != nil {
		return "", err
	}
	return extractJSONObject(text), nil
}

func (c *Client) generate(ctx context.Context, request generateRequest) (string, error) {
	var response generateResponse
	if err := c.postJSON(ctx, "/api/generate", request, &response, "generate"); err != nil {
		return "", err
	}
	return strings.TrimSpace(response.Response), nil
}

func extractJSONObject(raw string) string {
	start := strings.IndexByte(raw, '{')
	end := strings.LastIndexByte(raw, '}')
	if start < 0 || end <= start {
		return raw
	}
	return raw[start : end+1]
}
