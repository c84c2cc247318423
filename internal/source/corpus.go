package source

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/veracitylabs/veracity/internal/model"
	"github.com/veracitylabs/veracity/internal/util"
)

// Document is one reference text held by a corpus source.
type Document struct {
	ID   string
	Text string
}

// CorpusSource retrieves evidence from an in-memory document corpus by
// sentence-level token overlap. It is fully deterministic, which makes it
// the source of choice for local corpora and tests.
type CorpusSource struct {
	id          string
	reliability float64
	minMatch    float64
	maxExcerpts int
	sentences   []corpusSentence
}

type corpusSentence struct {
	docID string
	text  string
}

// NewCorpusSource indexes the given documents. reliability is the score
// attached to every excerpt this source produces.
func NewCorpusSource(id string, reliability float64, maxExcerpts int, docs []Document) *CorpusSource {
	if maxExcerpts <= 0 {
		maxExcerpts = 10
	}

	src := &CorpusSource{
		id:          id,
		reliability: reliability,
		minMatch:    0.2,
		maxExcerpts: maxExcerpts,
	}
	for _, doc := range docs {
		for _, sentence := range util.SplitSentences(doc.Text) {
			src.sentences = append(src.sentences, corpusSentence{docID: doc.ID, text: sentence})
		}
	}
	return src
}

// LoadCorpusSource builds a corpus source from plain-text files, one
// document per file.
func LoadCorpusSource(id string, reliability float64, maxExcerpts int, paths []string) (*CorpusSource, error) {
	docs := make([]Document, 0, len(paths))
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read corpus file: %w", err)
		}
		docID := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
		docs = append(docs, Document{ID: docID, Text: string(data)})
	}
	return NewCorpusSource(id, reliability, maxExcerpts, docs), nil
}

// ID implements Source.
func (s *CorpusSource) ID() string { return s.id }

// Retrieve implements Source. Excerpts are returned best match first.
func (s *CorpusSource) Retrieve(ctx context.Context, claim string) ([]model.Evidence, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	type scored struct {
		sentence corpusSentence
		match    float64
	}

	var hits []scored
	for _, sentence := range s.sentences {
		match := util.Containment(claim, sentence.text)
		if match >= s.minMatch {
			hits = append(hits, scored{sentence: sentence, match: match})
		}
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].match > hits[j].match })
	if len(hits) > s.maxExcerpts {
		hits = hits[:s.maxExcerpts]
	}

	evidence := make([]model.Evidence, 0, len(hits))
	for _, hit := range hits {
		evidence = append(evidence, model.Evidence{
			SourceID:    s.id + "/" + hit.sentence.docID,
			Reliability: s.reliability,
			Excerpt:     hit.sentence.text,
			Relevance:   hit.match,
		})
	}
	return evidence, nil
}
