package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"math"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/lazypower/attractor/internal/basin"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
	Model() string
	Dimensions() int
}

// VectorCache persists seed-text embeddings per basin.
type VectorCache interface {
	CachedVector(ctx context.Context, basinName, model string) ([]float64, bool, error)
	SaveVector(ctx context.Context, basinName string, embedding []float64, model string) error
}

// Embedding scores content by cosine similarity between its embedding and
// the embedding of the basin's seed text, mapped from [-1, 1] to [0, 1].
type Embedding struct {
	embedder Embedder
	cache    VectorCache
}

// NewEmbedding creates an embedding oracle.
func NewEmbedding(emb Embedder) *Embedding {
	return &Embedding{embedder: emb}
}

// WithCache stores basin embeddings in c. Only use it with embedders whose
// vector space does not depend on the catalogue, which rules out TF-IDF.
func (o *Embedding) WithCache(c VectorCache) *Embedding {
	o.cache = c
	return o
}

func (o *Embedding) Score(ctx context.Context, content string, d basin.Descriptor) (float64, error) {
	if o.embedder == nil {
		return 0, ErrUnavailable
	}
	a, err := o.embedder.Embed(ctx, content)
	if err != nil {
		return 0, fmt.Errorf("%w: embed content: %v", ErrUnavailable, err)
	}
	b, err := o.basinVector(ctx, d)
	if err != nil {
		return 0, fmt.Errorf("%w: embed basin %s: %v", ErrUnavailable, d.Name, err)
	}
	return (CosineSimilarity(a, b) + 1) / 2, nil
}

func (o *Embedding) basinVector(ctx context.Context, d basin.Descriptor) ([]float64, error) {
	model := o.embedder.Model()
	if o.cache != nil {
		if vec, ok, err := o.cache.CachedVector(ctx, d.Name, model); err == nil && ok {
			return vec, nil
		} else if err != nil {
			log.Printf("oracle: vector cache read for %s: %v", d.Name, err)
		}
	}

	vec, err := o.embedder.Embed(ctx, d.SeedText())
	if err != nil {
		return nil, err
	}
	if o.cache != nil {
		if err := o.cache.SaveVector(ctx, d.Name, vec, model); err != nil {
			log.Printf("oracle: vector cache write for %s: %v", d.Name, err)
		}
	}
	return vec, nil
}

// OllamaEmbedder uses Ollama's embedding API.
type OllamaEmbedder struct {
	url    string
	model  string
	dims   int
	client *http.Client
}

// NewOllamaEmbedder creates an embedder using Ollama's API.
func NewOllamaEmbedder(url, model string, dims int) *OllamaEmbedder {
	return &OllamaEmbedder{
		url:    url,
		model:  model,
		dims:   dims,
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

func (o *OllamaEmbedder) Model() string   { return "ollama:" + o.model }
func (o *OllamaEmbedder) Dimensions() int { return o.dims }

// Embed sends text to Ollama's embed endpoint and returns the embedding vector.
func (o *OllamaEmbedder) Embed(ctx context.Context, text string) ([]float64, error) {
	body, err := json.Marshal(map[string]any{
		"model": o.model,
		"input": text,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.url+"/api/embed", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama embed api: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read embed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("ollama embed status %d: %s", resp.StatusCode, respBody)
	}

	var result struct {
		Embeddings [][]float64 `json:"embeddings"`
	}
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}
	if len(result.Embeddings) == 0 {
		return nil, fmt.Errorf("ollama returned no embeddings")
	}

	o.dims = len(result.Embeddings[0])
	return result.Embeddings[0], nil
}

// ProbeOllama checks if Ollama is reachable and the embedding model is available.
func ProbeOllama(url, model string) bool {
	client := &http.Client{Timeout: 3 * time.Second}
	reqBody, _ := json.Marshal(map[string]any{
		"model": model,
		"input": "test",
	})
	resp, err := client.Post(url+"/api/embed", "application/json", bytes.NewReader(reqBody))
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// TFIDFEmbedder builds bag-of-words vectors over the vocabulary of the basin
// catalogue. It needs no network and is the fallback when Ollama is absent.
type TFIDFEmbedder struct {
	vocab []string
	idf   map[string]float64
	dims  int
}

// NewTFIDFEmbedder builds the vocabulary from the seed texts of descs,
// keeping at most maxTerms terms by document frequency.
func NewTFIDFEmbedder(descs []basin.Descriptor, maxTerms int) *TFIDFEmbedder {
	if maxTerms <= 0 {
		maxTerms = 512
	}

	df := make(map[string]int)
	for _, d := range descs {
		seen := make(map[string]bool)
		for _, term := range tokenize(d.SeedText()) {
			if !seen[term] {
				df[term]++
				seen[term] = true
			}
		}
	}

	type termFreq struct {
		term string
		freq int
	}
	terms := make([]termFreq, 0, len(df))
	for t, f := range df {
		terms = append(terms, termFreq{t, f})
	}
	sort.Slice(terms, func(i, j int) bool {
		if terms[i].freq != terms[j].freq {
			return terms[i].freq > terms[j].freq
		}
		return terms[i].term < terms[j].term
	})

	dims := min(maxTerms, len(terms))
	if dims == 0 {
		dims = 1 // avoid zero-length vectors
	}

	numDocs := float64(max(len(descs), 1))
	vocab := make([]string, dims)
	idf := make(map[string]float64, dims)
	for i := 0; i < dims && i < len(terms); i++ {
		vocab[i] = terms[i].term
		idf[vocab[i]] = math.Log(numDocs/float64(terms[i].freq)) + 1.0
	}

	return &TFIDFEmbedder{vocab: vocab, idf: idf, dims: dims}
}

func (t *TFIDFEmbedder) Model() string   { return "tfidf" }
func (t *TFIDFEmbedder) Dimensions() int { return t.dims }

// Embed generates a normalized TF-IDF vector for the given text.
func (t *TFIDFEmbedder) Embed(_ context.Context, text string) ([]float64, error) {
	vec := make([]float64, t.dims)
	tokens := tokenize(text)
	if len(tokens) == 0 {
		return vec, nil
	}

	tf := make(map[string]int)
	maxTF := 0
	for _, tok := range tokens {
		tf[tok]++
		maxTF = max(maxTF, tf[tok])
	}

	for i, term := range t.vocab {
		count := tf[term]
		if count == 0 {
			continue
		}
		// Augmented TF keeps long texts from dominating.
		augTF := 0.5 + 0.5*float64(count)/float64(maxTF)
		idf := t.idf[term]
		if idf == 0 {
			idf = 1.0
		}
		vec[i] = augTF * idf
	}

	normalize(vec)
	return vec, nil
}

// tokenize splits text into lowercase tokens, stripping punctuation and
// single-character tokens.
func tokenize(text string) []string {
	text = strings.ToLower(text)
	var tokens []string
	var current strings.Builder
	for _, r := range text {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			current.WriteRune(r)
			continue
		}
		if current.Len() > 1 {
			tokens = append(tokens, current.String())
		}
		current.Reset()
	}
	if current.Len() > 1 {
		tokens = append(tokens, current.String())
	}
	return tokens
}

func normalize(vec []float64) {
	var sum float64
	for _, v := range vec {
		sum += v * v
	}
	if sum == 0 {
		return
	}
	norm := math.Sqrt(sum)
	for i := range vec {
		vec[i] /= norm
	}
}

// CosineSimilarity computes the cosine similarity between two vectors.
// Mismatched or zero vectors score 0.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}

	denom := math.Sqrt(normA) * math.Sqrt(normB)
	if denom == 0 {
		return 0
	}
	return dot / denom
}
