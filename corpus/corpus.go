// Package corpus persists the deduplicated article collection for one
// output target. A corpus is a single JSON array on disk, read fully at the
// start of a merge and written back as a whole at the end of a run.
package corpus

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/Flankrr/pvo-limburg/article"
)

// Load reads the corpus at path. A missing file is an empty corpus, not an
// error; it will be created on the first Save.
func Load(path string) ([]article.Article, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read corpus: %w", err)
	}

	var articles []article.Article
	if err := json.Unmarshal(data, &articles); err != nil {
		return nil, fmt.Errorf("failed to parse corpus %s: %w", path, err)
	}
	return articles, nil
}

// Save replaces the corpus at path with the given articles. The file is
// written to a temporary name and renamed into place so a crashed run never
// leaves a half-written corpus. HTML escaping is disabled: non-ASCII and
// markup characters are stored literally.
func Save(path string, articles []article.Article) error {
	if articles == nil {
		articles = []article.Article{}
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(articles); err != nil {
		return fmt.Errorf("failed to marshal corpus: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create corpus directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "corpus-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp corpus: %w", err)
	}
	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to write temp corpus: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to close temp corpus: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("failed to replace corpus: %w", err)
	}
	return nil
}

// MergeResult reports what a merge did.
type MergeResult struct {
	Corpus  []article.Article
	Added   int
	Skipped int
}

// Merge appends the non-duplicate records of incoming to existing, keyed on
// URL with first-seen-wins. Existing order is preserved, incoming keeps its
// relative order among the records actually added, and nothing is reordered
// by timestamp. Records with an empty URL are never treated as duplicates.
// Merging the same batch twice yields the same corpus as merging it once.
func Merge(existing, incoming []article.Article) MergeResult {
	seen := make(map[string]struct{}, len(existing))
	for _, a := range existing {
		if a.URL != "" {
			seen[a.URL] = struct{}{}
		}
	}

	result := MergeResult{Corpus: append([]article.Article(nil), existing...)}
	for _, a := range incoming {
		if a.URL != "" {
			if _, dup := seen[a.URL]; dup {
				result.Skipped++
				continue
			}
			seen[a.URL] = struct{}{}
		}
		result.Corpus = append(result.Corpus, a)
		result.Added++
	}
	return result
}

// ByURL is the default merge key.
func ByURL(a article.Article) string { return a.URL }

// MergeByKey deduplicates the concatenation of incoming and existing with
// first-seen-wins on the given key. Because incoming comes first, a freshly
// fetched record replaces a stale one sharing its key. Both inputs are
// assumed to already be deduplicated within themselves.
func MergeByKey(incoming, existing []article.Article, key func(article.Article) string) []article.Article {
	seen := make(map[string]struct{}, len(incoming)+len(existing))
	merged := make([]article.Article, 0, len(incoming)+len(existing))
	for _, list := range [][]article.Article{incoming, existing} {
		for _, a := range list {
			k := key(a)
			if k != "" {
				if _, dup := seen[k]; dup {
					continue
				}
				seen[k] = struct{}{}
			}
			merged = append(merged, a)
		}
	}
	return merged
}
