package textindex

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"math"
	"os"
	"runtime"
	"sort"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/quaverlab/quaver/internal/analysis"
	"github.com/quaverlab/quaver/internal/artifact"
	"github.com/quaverlab/quaver/internal/corpus"
)

// DocumentSource streams corpus documents in a stable order.
type DocumentSource interface {
	Scan(fn func(corpus.Document) error) error
}

// Builder runs the SPIMI pipeline: accumulate postings in memory,
// flush sorted blocks every BlockLimit documents, cascade-merge the
// blocks, then derive IDF and document norms from the merged index.
type Builder struct {
	Analyzer   *analysis.Analyzer
	Fields     []string
	Dir        string
	BlockLimit int
	Workers    int // analysis fan-out; defaults to GOMAXPROCS
}

// Summary reports what a build did.
type Summary struct {
	Docs    int
	Blocks  int
	Terms   int
	Dropped int
	Elapsed time.Duration
}

// Build indexes every document of src and atomically replaces the
// final index and norms artifacts. Temp blocks from an earlier failed
// build are cleared first and deleted again on success; on failure
// they stay behind for forensics. Cancellation is honored between
// documents and between merge windows.
func (b *Builder) Build(ctx context.Context, src DocumentSource) (*Summary, error) {
	if b.BlockLimit <= 0 {
		return nil, fmt.Errorf("textindex: block limit must be positive, got %d", b.BlockLimit)
	}
	start := time.Now()
	if err := os.MkdirAll(b.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("textindex: mkdir %s: %w", b.Dir, err)
	}
	if err := artifact.RemoveMatching(b.Dir, tempBlockPrefix); err != nil {
		return nil, err
	}

	blocks, docs, err := b.flushBlocks(ctx, src)
	if err != nil {
		return nil, err
	}

	log.Info().Int("docs", docs).Int("blocks", blocks).Msg("SPIMI blocking done, merging")
	if err := b.mergeCascade(ctx, blocks); err != nil {
		return nil, err
	}

	terms, err := b.finalize(blocks, docs)
	if err != nil {
		return nil, err
	}

	// Old temp blocks go away only after the final artifacts landed.
	if err := artifact.RemoveMatching(b.Dir, tempBlockPrefix); err != nil {
		return nil, err
	}

	summary := &Summary{
		Docs:    docs,
		Blocks:  blocks,
		Terms:   terms,
		Elapsed: time.Since(start),
	}
	if r, ok := src.(*corpus.Reader); ok {
		summary.Dropped = r.Dropped
	}
	log.Info().
		Int("docs", summary.Docs).
		Int("terms", summary.Terms).
		Int("dropped", summary.Dropped).
		Dur("elapsed", summary.Elapsed).
		Msg("text index build complete")
	return summary, nil
}

// flushBlocks streams documents, analyzing each batch across workers
// and flushing one sorted block per BlockLimit documents. Returns the
// block count and the number of documents indexed.
func (b *Builder) flushBlocks(ctx context.Context, src DocumentSource) (blocks, docs int, err error) {
	batch := make([]corpus.Document, 0, b.BlockLimit)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := b.flushBatch(batch, blocks); err != nil {
			return err
		}
		docs += len(batch)
		blocks++
		batch = batch[:0]
		return nil
	}

	err = src.Scan(func(doc corpus.Document) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		batch = append(batch, doc)
		if len(batch) == b.BlockLimit {
			return flush()
		}
		return nil
	})
	if err != nil {
		return 0, 0, err
	}
	if err := flush(); err != nil {
		return 0, 0, err
	}
	return blocks, docs, nil
}

// flushBatch analyzes one batch in parallel, accumulates term counts
// sequentially (so collisions are deterministic) and writes the block.
func (b *Builder) flushBatch(batch []corpus.Document, blockID int) error {
	workers := b.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	analyzed := make([][]string, len(batch))
	var g errgroup.Group
	g.SetLimit(workers)
	for i, doc := range batch {
		i, doc := i, doc
		g.Go(func() error {
			var terms []string
			for _, field := range b.Fields {
				terms = append(terms, b.Analyzer.Analyze(doc.Fields[field], field)...)
			}
			analyzed[i] = terms
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	counts := make(map[string]map[string]int)
	for i, doc := range batch {
		for _, term := range analyzed[i] {
			perDoc := counts[term]
			if perDoc == nil {
				perDoc = make(map[string]int)
				counts[term] = perDoc
			}
			perDoc[doc.ID]++
		}
	}
	return saveBlock(blockPath(b.Dir, blockID), counts)
}

// saveBlock serializes the accumulated dictionary as a sorted flat
// block file.
func saveBlock(path string, counts map[string]map[string]int) error {
	entries := make([]blockEntry, 0, len(counts))
	for term, perDoc := range counts {
		postings := make([]Posting, 0, len(perDoc))
		for docID, n := range perDoc {
			postings = append(postings, Posting{DocID: docID, Count: n})
		}
		sort.Slice(postings, func(i, j int) bool { return postings[i].DocID < postings[j].DocID })
		entries = append(entries, blockEntry{Term: term, Postings: postings})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Term < entries[j].Term })
	return artifact.Save(path, entries)
}

// mergeCascade merges blocks level by level: at level L windows of
// size 2^L collapse into the block at the window start, until block 0
// holds the whole index.
func (b *Builder) mergeCascade(ctx context.Context, total int) error {
	if total <= 1 {
		return nil
	}
	levels := int(math.Ceil(math.Log2(float64(total))))
	for level := 1; level <= levels; level++ {
		step := 1 << level
		for i := 0; i < total; i += step {
			if err := ctx.Err(); err != nil {
				return err
			}
			finish := i + step - 1
			if finish > total-1 {
				finish = total - 1
			}
			if err := b.mergeWindow(i, finish); err != nil {
				return err
			}
		}
	}
	return nil
}

// mergeWindow unions every existing block in [start, finish] into the
// block at start. Counts sum on collision; the merge is commutative
// and associative so window order never matters.
func (b *Builder) mergeWindow(start, finish int) error {
	merged := make(map[string]map[string]int)
	for i := start; i <= finish; i++ {
		path := blockPath(b.Dir, i)
		if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
			continue // already merged away at a previous level
		}
		entries, err := loadBlock(path)
		if err != nil {
			return err
		}
		for _, e := range entries {
			perDoc := merged[e.Term]
			if perDoc == nil {
				perDoc = make(map[string]int, len(e.Postings))
				merged[e.Term] = perDoc
			}
			for _, p := range e.Postings {
				perDoc[p.DocID] += p.Count
			}
		}
		if i != start {
			if err := os.Remove(path); err != nil {
				return fmt.Errorf("textindex: remove merged block %s: %w", path, err)
			}
		}
	}
	return saveBlock(blockPath(b.Dir, start), merged)
}

// finalize loads the fully merged block, computes IDF per term and the
// L2 norm per document, and atomically replaces both final artifacts.
func (b *Builder) finalize(blocks, docs int) (int, error) {
	var entries []blockEntry
	if blocks > 0 {
		var err error
		if entries, err = loadBlock(blockPath(b.Dir, 0)); err != nil {
			return 0, err
		}
	}

	idx := Index{Docs: docs, Terms: make([]TermEntry, 0, len(entries))}
	normAcc := make(map[string]float64)
	for _, e := range entries {
		if len(e.Postings) == 0 {
			continue
		}
		idf := math.Log10(float64(docs) / float64(len(e.Postings)))
		idx.Terms = append(idx.Terms, TermEntry{Term: e.Term, IDF: idf, Postings: e.Postings})
		for _, p := range e.Postings {
			w := math.Log10(1+float64(p.Count)) * idf
			normAcc[p.DocID] += w * w
		}
	}

	norms := Norms{Norms: make([]DocNorm, 0, len(normAcc))}
	for docID, sum := range normAcc {
		n := math.Sqrt(sum)
		if n > 0 {
			norms.Norms = append(norms.Norms, DocNorm{DocID: docID, Norm: n})
		}
	}
	sort.Slice(norms.Norms, func(i, j int) bool { return norms.Norms[i].DocID < norms.Norms[j].DocID })

	if err := artifact.Save(indexPath(b.Dir), idx); err != nil {
		return 0, err
	}
	if err := artifact.Save(normsPath(b.Dir), norms); err != nil {
		return 0, err
	}
	return len(idx.Terms), nil
}
