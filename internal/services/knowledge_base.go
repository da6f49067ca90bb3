package services

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/adcraft-ai/adcraft-backend/internal/pkg/logger"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/envutil"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/openai"
	"github.com/adcraft-ai/adcraft-backend/internal/platform/pinecone"
)

// KBResult is the retrieved advertising knowledge for one query: a single
// context block ready for prompt inclusion plus the sources it came from.
type KBResult struct {
	Context   string
	Citations []string
}

// KnowledgeBaseService retrieves ad-craft guidance from the vector index.
type KnowledgeBaseService interface {
	Query(ctx context.Context, text string, maxResults int) (*KBResult, error)
}

type knowledgeBaseService struct {
	log       *logger.Logger
	ai        openai.Client
	pc        pinecone.Client
	indexName string
	namespace string
	minScore  float64

	hostMu sync.Mutex
	host   string
}

func NewKnowledgeBaseService(log *logger.Logger, ai openai.Client, pc pinecone.Client) KnowledgeBaseService {
	return &knowledgeBaseService{
		log:       log.With("service", "KnowledgeBaseService"),
		ai:        ai,
		pc:        pc,
		indexName: envutil.Str("PINECONE_INDEX_NAME", "ad-knowledge"),
		namespace: envutil.Str("PINECONE_NAMESPACE", ""),
		minScore:  0.5,
	}
}

// Query embeds the text and pulls the closest knowledge chunks. Returns
// (nil, nil) when nothing relevant is found; callers skip the context block
// rather than special-casing an empty one.
func (s *knowledgeBaseService) Query(ctx context.Context, text string, maxResults int) (*KBResult, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	if maxResults <= 0 {
		maxResults = 5
	}

	vectors, err := s.ai.Embed(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("kb embed: %w", err)
	}
	if len(vectors) == 0 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("kb embed: empty vector")
	}

	host, err := s.indexHost(ctx)
	if err != nil {
		return nil, err
	}

	resp, err := s.pc.Query(ctx, host, pinecone.QueryRequest{
		Namespace:       s.namespace,
		Vector:          vectors[0],
		TopK:            maxResults,
		IncludeMetadata: true,
	})
	if err != nil {
		return nil, fmt.Errorf("kb query: %w", err)
	}

	var chunks []string
	citationSeen := map[string]bool{}
	var citations []string
	for _, m := range resp.Matches {
		if m.Score < s.minScore {
			continue
		}
		chunk, _ := m.Metadata["text"].(string)
		chunk = SanitizeText(chunk, SanitizeOptions{
			MaxLength:       KBContentMaxLen,
			StripCodeBlocks: true,
		})
		if chunk == "" {
			continue
		}
		chunks = append(chunks, chunk)

		if source, _ := m.Metadata["source"].(string); source != "" && !citationSeen[source] {
			citationSeen[source] = true
			citations = append(citations, source)
		}
	}

	if len(chunks) == 0 {
		return nil, nil
	}

	joined := truncateBytes(strings.Join(chunks, "\n\n"), KBContentMaxLen)
	return &KBResult{Context: joined, Citations: citations}, nil
}

// indexHost resolves and memoizes the data-plane host for the index.
func (s *knowledgeBaseService) indexHost(ctx context.Context) (string, error) {
	s.hostMu.Lock()
	defer s.hostMu.Unlock()

	if s.host != "" {
		return s.host, nil
	}
	desc, err := s.pc.DescribeIndex(ctx, s.indexName)
	if err != nil {
		return "", fmt.Errorf("kb describe index %q: %w", s.indexName, err)
	}
	s.host = desc.Host
	return s.host, nil
}
