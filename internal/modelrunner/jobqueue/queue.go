// Package jobqueue provides ImageRequest intake for the long-running
// serve command. Queue abstracts over the message source so a real
// deployment can back it with SQS while tests and local runs use the
// file-backed implementation below.
package jobqueue

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/mumuon/modelrunner/internal/modelrunner/api"
)

// Queue hands ImageRequests to the server loop one at a time. Receive
// returns (nil, nil) when nothing is currently available rather than
// blocking; the caller is expected to poll on an interval (cmd/modelrunner's
// serve command) the way the teacher's Service field was always configured
// with a poll interval even though its own HTTP server never used it.
type Queue interface {
	Receive(ctx context.Context) (*api.ImageRequest, error)
}

// FileQueue reads ImageRequest JSON files dropped into Dir in lexical
// filename order, moving each to Dir/processed (success) or
// Dir/failed (JSON that doesn't parse) after it is claimed. It is the
// serve command's default queue: no external broker required for local
// and integration use.
type FileQueue struct {
	Dir string
}

// NewFileQueue returns a FileQueue rooted at dir, creating dir and its
// processed/failed subdirectories if they don't already exist.
func NewFileQueue(dir string) (*FileQueue, error) {
	for _, sub := range []string{"", "processed", "failed"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create queue directory %s: %w", filepath.Join(dir, sub), err)
		}
	}
	return &FileQueue{Dir: dir}, nil
}

// Receive claims the lexically first *.json file in Dir, if any, and parses it
// into an ImageRequest. A malformed file is moved to Dir/failed and
// Receive returns its parse error; the caller decides whether to retry
// immediately or wait for the next poll.
func (q *FileQueue) Receive(ctx context.Context) (*api.ImageRequest, error) {
	entries, err := os.ReadDir(q.Dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ".json" {
			continue
		}
		names = append(names, e.Name())
	}
	if len(names) == 0 {
		return nil, nil
	}
	sort.Strings(names)

	name := names[0]
	path := filepath.Join(q.Dir, name)
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}

	var req api.ImageRequest
	if err := json.Unmarshal(raw, &req); err != nil {
		os.Rename(path, filepath.Join(q.Dir, "failed", name))
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if err := os.Rename(path, filepath.Join(q.Dir, "processed", name)); err != nil {
		return nil, fmt.Errorf("failed to claim %s: %w", path, err)
	}
	return &req, nil
}
