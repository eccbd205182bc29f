package knowledge

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/hupe1980/trekka/core"
)

type document struct {
	id       string
	content  string
	terms    map[string]struct{}
	metadata map[string]any
}

// InMemoryIndex is a process-local passage index. Retrieval scores each
// passage by the fraction of distinct query terms it contains and returns the
// best k, ties broken by insertion order. Protected by RWMutex.
type InMemoryIndex struct {
	mu   sync.RWMutex
	docs []document
}

// NewInMemoryIndex creates an empty index.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{}
}

// Add appends a passage and returns its generated id.
func (x *InMemoryIndex) Add(content string, metadata map[string]any) string {
	x.mu.Lock()
	defer x.mu.Unlock()
	id := fmt.Sprintf("psg_%d", len(x.docs))
	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}
	x.docs = append(x.docs, document{id: id, content: content, terms: termSet(content), metadata: md})
	return id
}

// Len reports the number of indexed passages.
func (x *InMemoryIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return len(x.docs)
}

// Retrieve implements core.Retriever.
func (x *InMemoryIndex) Retrieve(ctx context.Context, query string, k int) ([]core.Passage, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if k <= 0 {
		return []core.Passage{}, nil
	}
	q := termSet(query)
	if len(q) == 0 {
		return []core.Passage{}, nil
	}

	x.mu.RLock()
	defer x.mu.RUnlock()

	type hit struct {
		idx   int
		score float64
	}
	hits := make([]hit, 0, len(x.docs))
	for i, d := range x.docs {
		matched := 0
		for t := range q {
			if _, ok := d.terms[t]; ok {
				matched++
			}
		}
		if matched == 0 {
			continue
		}
		hits = append(hits, hit{idx: i, score: float64(matched) / float64(len(q))})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })
	if len(hits) > k {
		hits = hits[:k]
	}

	out := make([]core.Passage, 0, len(hits))
	for _, h := range hits {
		d := x.docs[h.idx]
		md := make(map[string]any, len(d.metadata))
		for k, v := range d.metadata {
			md[k] = v
		}
		out = append(out, core.Passage{ID: d.id, Content: d.content, Score: h.score, Metadata: md})
	}
	return out, nil
}

// LoadDir indexes every .txt and .md file under dir. Each blank-line
// separated paragraph becomes one passage tagged with its source file.
// It returns the number of passages added.
func (x *InMemoryIndex) LoadDir(dir string) (int, error) {
	added := 0
	err := filepath.WalkDir(dir, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		ext := strings.ToLower(filepath.Ext(path))
		if ext != ".txt" && ext != ".md" {
			return nil
		}
		raw, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("read %s: %w", path, err)
		}
		for i, para := range splitParagraphs(string(raw)) {
			x.Add(para, map[string]any{"source": filepath.Base(path), "paragraph": i})
			added++
		}
		return nil
	})
	return added, err
}

func splitParagraphs(s string) []string {
	s = strings.ReplaceAll(s, "\r\n", "\n")
	var out []string
	for _, p := range strings.Split(s, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "about": {}, "for": {}, "in": {},
	"is": {}, "of": {}, "on": {}, "the": {}, "to": {}, "what": {}, "me": {},
	"tell": {}, "local": {}, "information": {}, "i": {}, "it": {}, "with": {},
}

func termSet(s string) map[string]struct{} {
	fields := strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	set := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if _, stop := stopwords[f]; stop {
			continue
		}
		set[f] = struct{}{}
	}
	return set
}

var _ core.Retriever = (*InMemoryIndex)(nil)
