// Package renderer turns a built block tree into HTML.
//
// Every block renders through RenderNode, which contains failures: an error
// or panic in one block replaces that block's output with an HTML comment
// and leaves its siblings and ancestors intact.
package renderer

import (
	"context"
	"fmt"
	"html"
	"runtime/debug"
	"strings"

	"github.com/conneroisu/stratum/internal/blocks"
	"github.com/conneroisu/stratum/internal/errors"
	"github.com/conneroisu/stratum/internal/logging"
	"github.com/conneroisu/stratum/internal/monitoring"
)

// Renderer renders block trees.
type Renderer struct {
	logger     logging.Logger
	metrics    *monitoring.Metrics
	liveReload bool
}

// Option configures a Renderer.
type Option func(*Renderer)

// WithLogger sets the logger.
func WithLogger(logger logging.Logger) Option {
	return func(r *Renderer) {
		if logger != nil {
			r.logger = logger.WithComponent("renderer")
		}
	}
}

// WithMetrics records block failures on m.
func WithMetrics(m *monitoring.Metrics) Option {
	return func(r *Renderer) { r.metrics = m }
}

// WithLiveReload adds the live-reload client to pages.
func WithLiveReload(enabled bool) Option {
	return func(r *Renderer) { r.liveReload = enabled }
}

// New creates a renderer.
func New(opts ...Option) *Renderer {
	r := &Renderer{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Render renders root. A nil root renders as "".
func (r *Renderer) Render(ctx context.Context, root *blocks.Node) string {
	if root == nil {
		return ""
	}
	return r.RenderNode(ctx, root)
}

// RenderBlock renders only the block named name.
func (r *Renderer) RenderBlock(ctx context.Context, index map[string]*blocks.Node, name string) (string, error) {
	n, ok := index[name]
	if !ok {
		return "", errors.ErrBlockNotFound(name)
	}
	return r.RenderNode(ctx, n), nil
}

// RenderNode renders n, converting a failure into a placeholder comment.
func (r *Renderer) RenderNode(ctx context.Context, n *blocks.Node) (out string) {
	defer func() {
		if rec := recover(); rec != nil {
			err := fmt.Errorf("panic: %v", rec)
			r.logger.Error(ctx, err, "Block panicked", "block", n.Name, "type", n.TypeRef,
				"stack", string(debug.Stack()))
			out = r.failed(n, err)
		}
	}()

	if n.Block == nil {
		return r.failed(n, fmt.Errorf("no block implementation"))
	}
	out, err := n.Block.Render(ctx, n, r)
	if err != nil {
		r.logger.Warn(ctx, err, "Block failed to render", "block", n.Name, "type", n.TypeRef)
		return r.failed(n, err)
	}
	return out
}

func (r *Renderer) failed(n *blocks.Node, err error) string {
	r.metrics.BlockFailed(n.TypeRef)
	return Placeholder(n.Name, n.TypeRef, err)
}

// Placeholder is the comment emitted in place of a failed block.
func Placeholder(name, typeRef string, err error) string {
	return fmt.Sprintf("<!-- block %q (%s) failed: %s -->",
		commentSafe(name), commentSafe(typeRef), commentSafe(err.Error()))
}

// commentSafe keeps text from terminating or nesting an HTML comment.
func commentSafe(s string) string {
	for strings.Contains(s, "--") {
		s = strings.ReplaceAll(s, "--", "- -")
	}
	s = strings.ReplaceAll(s, "<!", "< !")
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.TrimRight(s, "-")
}

// RenderPage wraps body in an HTML document.
func (r *Renderer) RenderPage(ctx context.Context, title, body string) string {
	var sb strings.Builder
	sb.WriteString("<!DOCTYPE html>\n<html>\n<head>\n    <meta charset=\"utf-8\">\n")
	fmt.Fprintf(&sb, "    <title>%s</title>\n", html.EscapeString(title))
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	sb.WriteString("\n")
	if r.liveReload {
		sb.WriteString(liveReloadScript)
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}

const liveReloadScript = `    <script>
        // WebSocket connection for live reload
        (function() {
            const proto = window.location.protocol === 'https:' ? 'wss://' : 'ws://';
            const ws = new WebSocket(proto + window.location.host + '/ws');
            ws.onmessage = function(event) {
                const message = JSON.parse(event.data);
                if (message.type === 'full_reload') {
                    window.location.reload();
                }
            };
        })();
    </script>
`
