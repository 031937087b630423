// Package preload loads scene assets in the background and reports a single
// completion, which unlocks the intro boot sequence.
//
// Completion is "soft" when enough assets have settled after a grace period:
// a slow or stuck asset must not hold the experience hostage.
package preload

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/keepsake/internal/loop"
)

// Asset is one thing to load.
type Asset struct {
	Name string
	Load func(ctx context.Context) error
}

// FileAsset reads path and hands the bytes to use, which may be nil.
func FileAsset(name, path string, use func([]byte)) Asset {
	return Asset{
		Name: name,
		Load: func(ctx context.Context) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			b, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("read %s: %w", path, err)
			}
			if use != nil {
				use(b)
			}
			return nil
		},
	}
}

// Poster delivers closures to the owning loop.
type Poster interface {
	Post(fn func()) bool
}

// Defaults for soft completion.
const (
	DefaultSoftAfter   = 4 * time.Second
	DefaultSoftRatio   = 0.85
	DefaultConcurrency = 4
)

// Preloader tracks settled assets.
//
// State is touched only on the owning loop: Settle arrives through the
// Poster and the soft-completion check through the Scheduler.
type Preloader struct {
	sched       loop.Scheduler
	assets      []Asset
	softAfter   time.Duration
	softRatio   float64
	concurrency int
	logger      *slog.Logger

	started   time.Time
	settled   map[string]bool
	failed    int
	complete  bool
	soft      bool
	softTimer loop.Timer

	progressListeners []func(settled, total int)
	completeListeners []func(soft bool)

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Option configures a Preloader.
type Option func(*Preloader)

// WithSoftCompletion sets the grace period and the settled ratio after which
// the preloader completes without waiting for the stragglers. A zero after
// disables soft completion.
func WithSoftCompletion(after time.Duration, ratio float64) Option {
	return func(p *Preloader) {
		p.softAfter = after
		p.softRatio = ratio
	}
}

// WithConcurrency bounds the number of assets loading at once.
func WithConcurrency(n int) Option {
	return func(p *Preloader) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(p *Preloader) {
		p.logger = l
	}
}

// New creates a preloader for assets. Asset names must be unique.
func New(sched loop.Scheduler, assets []Asset, opts ...Option) *Preloader {
	p := &Preloader{
		sched:       sched,
		assets:      append([]Asset(nil), assets...),
		softAfter:   DefaultSoftAfter,
		softRatio:   DefaultSoftRatio,
		concurrency: DefaultConcurrency,
		logger:      slog.Default(),
		settled:     make(map[string]bool, len(assets)),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Start begins loading. Results are posted back through poster. With no
// assets the preloader completes immediately.
func (p *Preloader) Start(ctx context.Context, poster Poster) {
	p.started = p.sched.Now()
	if len(p.assets) == 0 {
		p.finish(false)
		return
	}
	if p.softAfter > 0 {
		p.softTimer = p.sched.AfterFunc(p.softAfter, p.checkSoft)
	}

	ctx, p.cancel = context.WithCancel(ctx)
	p.wg.Add(1)
	go func() {
		defer p.wg.Done()
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(p.concurrency)
		for _, a := range p.assets {
			g.Go(func() error {
				err := a.Load(gctx)
				poster.Post(func() { p.Settle(a.Name, err) })
				// Asset failures never cancel the siblings.
				return nil
			})
		}
		_ = g.Wait()
	}()
}

// Settle records that the named asset finished, successfully or not.
func (p *Preloader) Settle(name string, err error) {
	if p.settled[name] {
		return
	}
	p.settled[name] = true
	if err != nil {
		p.failed++
		p.logger.Warn("asset failed to load", "asset", name, "error", err)
	} else {
		p.logger.Debug("asset loaded", "asset", name)
	}
	for _, fn := range p.progressListeners {
		fn(len(p.settled), len(p.assets))
	}

	switch {
	case len(p.settled) >= len(p.assets):
		p.finish(false)
	case p.softAfter > 0 && p.sched.Now().Sub(p.started) >= p.softAfter:
		p.checkSoft()
	}
}

// Settled returns the number of settled assets.
func (p *Preloader) Settled() int {
	return len(p.settled)
}

// Failed returns the number of assets that failed.
func (p *Preloader) Failed() int {
	return p.failed
}

// Total returns the number of assets.
func (p *Preloader) Total() int {
	return len(p.assets)
}

// Ratio returns the settled share in [0,1].
func (p *Preloader) Ratio() float64 {
	if len(p.assets) == 0 {
		return 1
	}
	return float64(len(p.settled)) / float64(len(p.assets))
}

// Complete reports whether completion was signalled.
func (p *Preloader) Complete() bool {
	return p.complete
}

// Soft reports whether completion was soft.
func (p *Preloader) Soft() bool {
	return p.soft
}

// OnProgress registers fn to run after every settled asset.
func (p *Preloader) OnProgress(fn func(settled, total int)) {
	p.progressListeners = append(p.progressListeners, fn)
}

// OnComplete registers fn to run once on completion. Registering after
// completion runs fn immediately.
func (p *Preloader) OnComplete(fn func(soft bool)) {
	if p.complete {
		fn(p.soft)
		return
	}
	p.completeListeners = append(p.completeListeners, fn)
}

// Close cancels outstanding loads and waits for the loaders to return.
// Results still in flight are dropped by the poster's owner.
func (p *Preloader) Close() {
	loop.StopAll(p.softTimer)
	if p.cancel != nil {
		p.cancel()
	}
	p.wg.Wait()
}

func (p *Preloader) checkSoft() {
	if p.complete || p.Ratio() < p.softRatio {
		return
	}
	p.finish(true)
}

func (p *Preloader) finish(soft bool) {
	if p.complete {
		return
	}
	p.complete = true
	p.soft = soft
	loop.StopAll(p.softTimer)
	p.logger.Info("preload complete", "settled", len(p.settled), "total", len(p.assets), "failed", p.failed, "soft", soft)
	for _, fn := range p.completeListeners {
		fn(soft)
	}
	p.completeListeners = nil
}
