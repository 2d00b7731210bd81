// Package pipeline runs the layout stages for one request:
// load, merge, process directives, build blocks and render.
//
// Each run owns its trees. The only state shared between runs is the
// template resolver's memo, the block factory, the output cache and the
// metrics collectors.
package pipeline

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/conneroisu/stratum/internal/blocks"
	"github.com/conneroisu/stratum/internal/builder"
	"github.com/conneroisu/stratum/internal/cache"
	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/layout"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/modules"
	"github.com/conneroisu/stratum/internal/monitoring"
	"github.com/conneroisu/stratum/internal/renderer"
)

// Stage names used for timing metrics.
const (
	StageMerge   = "merge"
	StageProcess = "process"
	StageBuild   = "build"
	StageRender  = "render"
)

// Pipeline wires the layout stages together.
type Pipeline struct {
	registry  *modules.Registry
	loader    *layout.Loader
	merger    *layout.Merger
	processor *layout.Processor
	templates *blocks.TemplateResolver
	factory   *blocks.Factory
	builder   *builder.Builder
	renderer  *renderer.Renderer

	cache    cache.Cache
	cacheTTL time.Duration
	metrics  *monitoring.Metrics
	logger   logging.Logger

	defaultHandles []string
	title          string
}

// Options configures a Pipeline. Zero values select defaults.
type Options struct {
	Area           string
	SearchDirs     []string
	MaxUpdateDepth int
	TemplateCache  bool
	DefaultHandles []string
	Title          string
	LiveReload     bool

	Cache    cache.Cache
	CacheTTL time.Duration
	Metrics  *monitoring.Metrics
	Logger   logging.Logger
}

// New creates a pipeline over the modules in reg, reading files from fs.
func New(fs afero.Fs, reg *modules.Registry, opts Options) *Pipeline {
	logger := opts.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	c := opts.Cache
	if c == nil {
		c = cache.NewNullCache()
	}
	maxDepth := opts.MaxUpdateDepth
	if maxDepth == 0 {
		maxDepth = layout.DefaultMaxUpdateDepth
	}

	loader := layout.NewLoader(fs, reg, layout.LoaderConfig{
		Area:       opts.Area,
		SearchDirs: opts.SearchDirs,
	}, logger)
	templates := blocks.NewTemplateResolver(fs, reg, opts.Area, opts.TemplateCache)
	factory := blocks.NewFactory(templates)

	return &Pipeline{
		registry: reg,
		loader:   loader,
		merger: layout.NewMerger(loader,
			layout.WithMaxUpdateDepth(maxDepth),
			layout.WithMergerLogger(logger)),
		processor: layout.NewProcessor(logger),
		templates: templates,
		factory:   factory,
		builder:   builder.New(factory, logger),
		renderer: renderer.New(
			renderer.WithLogger(logger),
			renderer.WithMetrics(opts.Metrics),
			renderer.WithLiveReload(opts.LiveReload)),
		cache:          c,
		cacheTTL:       opts.CacheTTL,
		metrics:        opts.Metrics,
		logger:         logger.WithComponent("pipeline"),
		defaultHandles: opts.DefaultHandles,
		title:          opts.Title,
	}
}

// Factory returns the block factory so callers can register block types.
func (p *Pipeline) Factory() *blocks.Factory { return p.factory }

// Loader returns the layout loader.
func (p *Pipeline) Loader() *layout.Loader { return p.loader }

// Modules returns the enabled modules in load order.
func (p *Pipeline) Modules() ([]modules.Module, error) {
	return p.registry.Ordered()
}

// Handles lists every handle some module defines.
func (p *Pipeline) Handles() ([]string, error) {
	return p.loader.Handles()
}

// Resolved is a merged layout with its directives applied.
type Resolved struct {
	Handles []string
	Tree    *layout.Tree
	Report  *layout.Report
}

// Resolve loads, merges and processes handles.
func (p *Pipeline) Resolve(ctx context.Context, handles ...string) (*Resolved, error) {
	if len(handles) == 0 {
		return nil, errors.New(errors.ErrorTypeValidation, errors.ErrCodeNoHandles, "no handles given")
	}

	stop := p.metrics.Timer(StageMerge)
	t, err := p.merger.Merge(ctx, handles...)
	stop()
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	stop = p.metrics.Timer(StageProcess)
	t, report := p.processor.Process(ctx, t)
	stop()
	for _, o := range report.Outcomes {
		p.metrics.DirectiveProcessed(o.Directive.Kind.String(), o.Applied)
	}

	return &Resolved{Handles: handles, Tree: t, Report: report}, nil
}

// Build resolves handles and builds the block tree.
func (p *Pipeline) Build(ctx context.Context, handles ...string) (*builder.Result, error) {
	resolved, err := p.Resolve(ctx, handles...)
	if err != nil {
		return nil, err
	}

	stop := p.metrics.Timer(StageBuild)
	res, err := p.builder.Build(ctx, resolved.Tree)
	stop()
	if err != nil {
		return nil, err
	}
	p.metrics.FallbackBuilt(len(res.Fallbacks))
	return res, nil
}

// Render runs every stage for handles and returns the rendered body. A
// layout without a container or block root renders as "".
func (p *Pipeline) Render(ctx context.Context, handles ...string) (string, error) {
	ctx, logger := p.request(ctx, "render", handles)
	op := logging.StartOperation(logger, "render")

	key := cache.Key("render", handles)
	if out, ok := p.cached(ctx, key); ok {
		op.End(ctx, "cached", true)
		return out, nil
	}

	res, err := p.Build(ctx, handles...)
	if err != nil {
		p.failed(ctx, logger, err)
		return "", err
	}
	if res.Root == nil {
		logger.Warn(ctx, nil, "Nothing to render", "handles", strings.Join(handles, ","))
	}

	stop := p.metrics.Timer(StageRender)
	out := p.renderer.Render(ctx, res.Root)
	stop()
	if err := ctx.Err(); err != nil {
		p.failed(ctx, logger, err)
		return "", err
	}

	p.store(ctx, key, out)
	p.metrics.RenderCompleted(true)
	op.End(ctx, "bytes", len(out), "fallbacks", len(res.Fallbacks))
	return out, nil
}

// RenderPage renders the default handles followed by handles and wraps the
// result in an HTML document.
func (p *Pipeline) RenderPage(ctx context.Context, handles ...string) (string, error) {
	all := p.PageHandles(handles...)
	body, err := p.Render(ctx, all...)
	if err != nil {
		return "", err
	}
	return p.renderer.RenderPage(ctx, p.title, body), nil
}

// PageHandles prepends the default handles to handles, dropping repeats.
func (p *Pipeline) PageHandles(handles ...string) []string {
	seen := make(map[string]bool, len(p.defaultHandles)+len(handles))
	out := make([]string, 0, len(p.defaultHandles)+len(handles))
	for _, list := range [][]string{p.defaultHandles, handles} {
		for _, h := range list {
			if h == "" || seen[h] {
				continue
			}
			seen[h] = true
			out = append(out, h)
		}
	}
	return out
}

// RenderBlock renders only the block named name from the layout of
// handles. The rest of the tree is built but not rendered.
func (p *Pipeline) RenderBlock(ctx context.Context, name string, handles ...string) (string, error) {
	ctx, logger := p.request(ctx, "render_block", handles)

	key := cache.Key("block", handles, name)
	if out, ok := p.cached(ctx, key); ok {
		return out, nil
	}

	res, err := p.Build(ctx, handles...)
	if err != nil {
		p.failed(ctx, logger, err)
		return "", err
	}

	stop := p.metrics.Timer(StageRender)
	out, err := p.renderer.RenderBlock(ctx, res.Index, name)
	stop()
	if err != nil {
		p.failed(ctx, logger, err)
		return "", err
	}

	p.store(ctx, key, out)
	p.metrics.RenderCompleted(true)
	return out, nil
}

// Explanation describes how a layout was resolved.
type Explanation struct {
	Handles []string
	Sources map[string][]layout.Source
	XML     string
	Report  *layout.Report
	Blocks  string
}

// Explain resolves handles and returns the layout XML, the files that
// contributed to each handle, the directive outcomes and the block outline.
func (p *Pipeline) Explain(ctx context.Context, handles ...string) (*Explanation, error) {
	ctx, _ = p.request(ctx, "explain", handles)

	sources := make(map[string][]layout.Source, len(handles))
	for _, h := range handles {
		s, err := p.loader.Load(ctx, h)
		if err != nil {
			return nil, err
		}
		sources[h] = s
	}

	resolved, err := p.Resolve(ctx, handles...)
	if err != nil {
		return nil, err
	}
	exp := &Explanation{
		Handles: handles,
		Sources: sources,
		XML:     resolved.Tree.String(),
		Report:  resolved.Report,
	}

	res, err := p.builder.Build(ctx, resolved.Tree)
	if err != nil {
		return nil, err
	}
	if res.Root != nil {
		exp.Blocks = res.Root.Tree()
	}
	return exp, nil
}

// Validate parses every layout file of every module and checks the module
// graph. Problems are returned as diagnostics; err is set only when the
// check itself could not run.
func (p *Pipeline) Validate(ctx context.Context) (*errors.Collector, int, error) {
	diags := errors.NewCollector()
	if _, err := p.registry.Ordered(); err != nil {
		diags.AddError(errors.SeverityError, err)
		return diags, 0, nil
	}

	checked, err := p.loader.LoadAll(ctx, diags)
	if err != nil {
		return nil, checked, err
	}
	return diags, checked, nil
}

// Invalidate drops memoized template paths and cached output. It is called
// when module files change.
func (p *Pipeline) Invalidate(ctx context.Context) error {
	p.templates.Reset()
	p.loader.Reset()
	if err := p.cache.Purge(ctx); err != nil {
		p.logger.Warn(ctx, err, "Failed to purge output cache")
		return err
	}
	p.logger.Debug(ctx, "Caches invalidated")
	return nil
}

// Close releases the output cache.
func (p *Pipeline) Close() error {
	return p.cache.Close()
}

// request attaches a request id and logger to ctx, reusing any logger
// already stored there.
func (p *Pipeline) request(ctx context.Context, op string, handles []string) (context.Context, logging.Logger) {
	logger := logging.FromContext(ctx, nil)
	if logger == nil {
		logger = p.logger.With("request_id", uuid.NewString())
		ctx = logging.IntoContext(ctx, logger)
	}
	logger = logger.With("op", op, "handles", strings.Join(handles, ","))
	return ctx, logger
}

func (p *Pipeline) cached(ctx context.Context, key string) (string, bool) {
	data, ok, err := p.cache.Get(ctx, key)
	if err != nil {
		p.logger.Warn(ctx, err, "Output cache read failed")
		p.metrics.ErrorOccurred("cache", "pipeline")
		return "", false
	}
	if _, null := p.cache.(*cache.NullCache); !null {
		p.metrics.CacheOperation(ok)
	}
	if !ok {
		return "", false
	}
	p.metrics.RenderCompleted(true)
	return string(data), true
}

func (p *Pipeline) store(ctx context.Context, key, out string) {
	if err := p.cache.Set(ctx, key, []byte(out), p.cacheTTL); err != nil {
		p.logger.Warn(ctx, err, "Output cache write failed")
		p.metrics.ErrorOccurred("cache", "pipeline")
	}
}

func (p *Pipeline) failed(ctx context.Context, logger logging.Logger, err error) {
	p.metrics.RenderCompleted(false)
	p.metrics.ErrorOccurred(category(err), "pipeline")
	logger.Error(ctx, err, "Pipeline run failed")
}

func category(err error) string {
	var e *errors.Error
	if errors.As(err, &e) {
		return string(e.Type)
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return "canceled"
	}
	return "internal"
}
