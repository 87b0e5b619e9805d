package reconcile

import (
	"path/filepath"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/clinicalner/artifact"
)

type loadResult struct {
	batch *artifact.Batch
	err   error
}

// prefetcher decodes artifacts ahead of the consumer on a worker pool while
// handing them out strictly in listing order. At most window artifacts are
// decoded but not yet consumed.
type prefetcher struct {
	pool   *ants.Pool
	paths  []string
	slots  []chan loadResult
	window int
	next   int
}

func newPrefetcher(pool *ants.Pool, paths []string, window int) *prefetcher {
	if window < 1 {
		window = 1
	}
	p := &prefetcher{
		pool:   pool,
		paths:  paths,
		slots:  make([]chan loadResult, len(paths)),
		window: window,
	}
	for i := range p.slots {
		p.slots[i] = make(chan loadResult, 1)
	}
	for i := 0; i < window && i < len(paths); i++ {
		p.submit(i)
	}
	return p
}

func (p *prefetcher) submit(i int) {
	slot := p.slots[i]
	path := p.paths[i]
	task := func() {
		batch, err := artifact.Load(path)
		slot <- loadResult{batch: batch, err: err}
	}
	if err := p.pool.Submit(task); err != nil {
		task()
	}
}

// take returns the decoded artifact at index i and schedules the next one.
// Calls must be made with i = 0, 1, 2, ...
func (p *prefetcher) take(i int) (string, *artifact.Batch, error) {
	res := <-p.slots[i]
	if ahead := i + p.window; ahead < len(p.paths) {
		p.submit(ahead)
	}
	return filepath.Base(p.paths[i]), res.batch, res.err
}
