package attach

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"piazza-chat/internal/domain/message"
	piazza_errors "piazza-chat/pkg/errors"
	"piazza-chat/pkg/logger"
)

// ItemState is one pending attachment's lifecycle position.
type ItemState string

const (
	StateQueued      ItemState = "queued"
	StateCompressing ItemState = "compressing"
	StateUploading   ItemState = "uploading"
	StateDone        ItemState = "done"
	StateError       ItemState = "error"
	StateRemoved     ItemState = "removed"
)

// File is an intake image file with an optional locally-generated preview
// handle. ReleasePreview is called exactly once when the attachment leaves
// the pipeline (done, removed, or torn down).
type File struct {
	Name           string
	Data           []byte
	Mime           string
	ReleasePreview func()
}

// Item tracks one file through queued -> compressing -> uploading -> done
// or error. Snapshot fields are read through the pipeline's accessors.
type Item struct {
	ID              string
	Name            string
	State           ItemState
	Ref             message.ImageRef
	Err             error
	OriginalBytes   int64
	CompressedBytes int64
}

// Uploader stores a compressed image and returns its stable reference.
type Uploader interface {
	UploadImage(ctx context.Context, data []byte, mime string) (message.ImageRef, error)
}

// Config bounds the intake batch.
type Config struct {
	MaxFiles    int
	MaxBytes    int64
	Concurrency int
}

func (c *Config) applyDefaults() {
	if c.MaxFiles <= 0 {
		c.MaxFiles = 10
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 5 << 20
	}
	if c.Concurrency <= 0 {
		c.Concurrency = 3
	}
}

var allowedMimes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/gif":  {},
	"image/webp": {},
}

type itemState struct {
	item    Item
	file    File
	cancel  context.CancelFunc
	removed bool
}

// Pipeline compresses and uploads image batches with bounded concurrency.
// Each file progresses independently; a failure is reported per item, never
// as a whole-batch failure.
type Pipeline struct {
	mu       sync.Mutex
	cfg      Config
	uploader Uploader
	log      *logger.Logger
	sem      chan struct{}
	items    map[string]*itemState
	order    []string
	wg       sync.WaitGroup
}

func NewPipeline(uploader Uploader, cfg Config, log *logger.Logger) *Pipeline {
	cfg.applyDefaults()
	if log == nil {
		log = logger.NewNop()
	}
	return &Pipeline{
		cfg:      cfg,
		uploader: uploader,
		log:      log,
		sem:      make(chan struct{}, cfg.Concurrency),
		items:    make(map[string]*itemState),
	}
}

// Add validates and enqueues a batch of files. Validation failures reject
// the offending file before any state is created; accepted files start
// processing immediately.
func (p *Pipeline) Add(ctx context.Context, files []File) ([]Item, error) {
	p.mu.Lock()
	if len(p.liveLocked())+len(files) > p.cfg.MaxFiles {
		p.mu.Unlock()
		return nil, piazza_errors.ErrTooManyFiles
	}
	for _, f := range files {
		if int64(len(f.Data)) > p.cfg.MaxBytes {
			p.mu.Unlock()
			return nil, piazza_errors.ErrTooLarge
		}
		if _, ok := allowedMimes[f.Mime]; !ok {
			p.mu.Unlock()
			return nil, piazza_errors.ErrUnsupportedType
		}
	}

	added := make([]Item, 0, len(files))
	for _, f := range files {
		itemCtx, cancel := context.WithCancel(ctx)
		st := &itemState{
			item: Item{
				ID:            uuid.New().String(),
				Name:          f.Name,
				State:         StateQueued,
				OriginalBytes: int64(len(f.Data)),
			},
			file:   f,
			cancel: cancel,
		}
		p.items[st.item.ID] = st
		p.order = append(p.order, st.item.ID)
		added = append(added, st.item)

		p.wg.Add(1)
		go p.process(itemCtx, st.item.ID)
	}
	p.mu.Unlock()
	return added, nil
}

// Remove cancels a still-pending item. The only side effect is releasing
// its local preview; if an in-flight upload later resolves, its result is
// discarded.
func (p *Pipeline) Remove(id string) bool {
	p.mu.Lock()
	st, ok := p.items[id]
	if !ok || st.removed {
		p.mu.Unlock()
		return false
	}
	st.removed = true
	st.item.State = StateRemoved
	st.cancel()
	release := st.file.ReleasePreview
	st.file.ReleasePreview = nil
	p.mu.Unlock()

	if release != nil {
		release()
	}
	return true
}

// Retry re-runs a failed item from the top of its lifecycle.
func (p *Pipeline) Retry(ctx context.Context, id string) error {
	p.mu.Lock()
	st, ok := p.items[id]
	if !ok || st.removed {
		p.mu.Unlock()
		return piazza_errors.ErrNotFound
	}
	if st.item.State != StateError {
		p.mu.Unlock()
		return piazza_errors.ErrConflict
	}
	itemCtx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	st.item.State = StateQueued
	st.item.Err = nil
	p.mu.Unlock()

	p.wg.Add(1)
	go p.process(itemCtx, id)
	return nil
}

// Items returns a snapshot of the live (non-removed) items in intake
// order.
func (p *Pipeline) Items() []Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]Item, 0, len(p.order))
	for _, id := range p.order {
		st := p.items[id]
		if st == nil || st.removed {
			continue
		}
		out = append(out, st.item)
	}
	return out
}

// WaitAll blocks until every live item settles, then returns the uploaded
// references in intake order. Any item in error blocks the batch: the
// caller surfaces per-item errors so the user retries or removes just that
// file.
func (p *Pipeline) WaitAll(ctx context.Context) ([]message.ImageRef, error) {
	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-done:
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	refs := make([]message.ImageRef, 0, len(p.order))
	for _, id := range p.order {
		st := p.items[id]
		if st == nil || st.removed {
			continue
		}
		if st.item.State != StateDone {
			return nil, piazza_errors.ErrConflict
		}
		refs = append(refs, st.item.Ref)
	}
	return refs, nil
}

// Reset drops all settled items, releasing any remaining previews. Called
// after a successful send or a composer cancel.
func (p *Pipeline) Reset() {
	p.mu.Lock()
	var releases []func()
	for _, st := range p.items {
		if !st.removed {
			st.cancel()
			if st.file.ReleasePreview != nil {
				releases = append(releases, st.file.ReleasePreview)
			}
		}
	}
	p.items = make(map[string]*itemState)
	p.order = nil
	p.mu.Unlock()

	for _, release := range releases {
		release()
	}
}

func (p *Pipeline) process(ctx context.Context, id string) {
	defer p.wg.Done()

	select {
	case p.sem <- struct{}{}:
	case <-ctx.Done():
		return
	}
	defer func() { <-p.sem }()

	file, ok := p.transition(id, StateCompressing)
	if !ok {
		return
	}

	comp, err := compressImage(file.Data, file.Mime)
	if err != nil {
		p.settle(id, message.ImageRef{}, 0, err)
		return
	}

	if _, ok := p.transition(id, StateUploading); !ok {
		return
	}

	ref, err := p.uploader.UploadImage(ctx, comp.data, comp.mime)
	if err != nil {
		// A removal mid-upload lands here via context cancellation; the
		// result is discarded either way.
		p.settle(id, message.ImageRef{}, 0, err)
		return
	}
	if ref.Width == 0 {
		ref.Width = comp.width
	}
	if ref.Height == 0 {
		ref.Height = comp.height
	}
	p.settle(id, ref, int64(len(comp.data)), nil)
}

// transition advances an item and hands back its file, refusing if the
// item was removed meanwhile.
func (p *Pipeline) transition(id string, next ItemState) (File, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	st, ok := p.items[id]
	if !ok || st.removed {
		return File{}, false
	}
	st.item.State = next
	return st.file, true
}

func (p *Pipeline) settle(id string, ref message.ImageRef, compressedBytes int64, err error) {
	p.mu.Lock()
	st, ok := p.items[id]
	if !ok || st.removed {
		p.mu.Unlock()
		return
	}
	if err != nil {
		st.item.State = StateError
		st.item.Err = err
		p.log.Warnf("attachment %s failed: %v", st.item.Name, err)
	} else {
		// The preview stays alive until Remove or Reset: the composer
		// keeps showing it after the upload completes.
		st.item.State = StateDone
		st.item.Ref = ref
		st.item.CompressedBytes = compressedBytes
	}
	p.mu.Unlock()
}

func (p *Pipeline) liveLocked() []*itemState {
	live := make([]*itemState, 0, len(p.items))
	for _, st := range p.items {
		if !st.removed {
			live = append(live, st)
		}
	}
	return live
}
