package advisor

import (
	"context"
	"path/filepath"
	"runtime"
	"strings"
)

type callSiteKey struct{}

// WithCallSite attaches an explicit call site to ctx. Instrumentation hooks
// prefer it over inspecting the goroutine stack.
func WithCallSite(ctx context.Context, site CallSite) context.Context {
	return context.WithValue(ctx, callSiteKey{}, &site)
}

// CallSiteFromContext returns the call site attached with WithCallSite.
func CallSiteFromContext(ctx context.Context) (*CallSite, bool) {
	if ctx == nil {
		return nil, false
	}

	site, ok := ctx.Value(callSiteKey{}).(*CallSite)

	return site, ok && site != nil
}

// DefaultIgnoredPrefixes are function prefixes treated as framework code
// when attributing a query to its caller.
var DefaultIgnoredPrefixes = []string{
	"runtime.",
	"database/sql.",
	"gorm.io/",
	"github.com/glebarez/",
	"github.com/jackc/",
	"github.com/ethpandaops/dbbench/pkg/advisor.",
}

// CallSiteResolver picks the attributed call site out of a backtrace.
type CallSiteResolver struct {
	// ProjectRoot is the caller's own source tree, used as a fallback
	// when every frame looks like framework code.
	ProjectRoot string

	// IgnoredPrefixes match against a frame's function (qualified with
	// its type when present) or file path.
	IgnoredPrefixes []string
}

// NewCallSiteResolver creates a resolver ignoring the default framework
// prefixes plus any extra ones.
func NewCallSiteResolver(projectRoot string, extra ...string) *CallSiteResolver {
	prefixes := make([]string, 0, len(DefaultIgnoredPrefixes)+len(extra))
	prefixes = append(prefixes, DefaultIgnoredPrefixes...)
	prefixes = append(prefixes, extra...)

	return &CallSiteResolver{
		ProjectRoot:     projectRoot,
		IgnoredPrefixes: prefixes,
	}
}

// Resolve returns the first frame outside ignored namespaces, falling back
// to the first frame under ProjectRoot. It returns nil when neither exists.
func (r *CallSiteResolver) Resolve(frames []Frame) *CallSite {
	for _, f := range frames {
		if f.File == "" {
			continue
		}

		if !r.isIgnored(f) {
			return frameToCallSite(f)
		}
	}

	if r.ProjectRoot == "" {
		return nil
	}

	root := filepath.Clean(r.ProjectRoot)

	for _, f := range frames {
		if f.File != "" && strings.HasPrefix(filepath.Clean(f.File), root) {
			return frameToCallSite(f)
		}
	}

	return nil
}

func (r *CallSiteResolver) isIgnored(f Frame) bool {
	qualified := f.Function
	if f.Type != "" {
		qualified = f.Type + "." + f.Function
	}

	for _, prefix := range r.IgnoredPrefixes {
		if prefix == "" {
			continue
		}

		if strings.HasPrefix(qualified, prefix) || strings.HasPrefix(f.File, prefix) {
			return true
		}

		// Vendored and module-cache copies of framework packages.
		if strings.Contains(f.File, "/"+strings.TrimSuffix(prefix, ".")) {
			return true
		}
	}

	return false
}

func frameToCallSite(f Frame) *CallSite {
	return &CallSite{
		File:     f.File,
		Line:     f.Line,
		Type:     f.Type,
		Function: f.Function,
	}
}

// CaptureFrames returns the current goroutine's stack, skipping skip
// frames above the caller.
func CaptureFrames(skip int) []Frame {
	pcs := make([]uintptr, 64)
	n := runtime.Callers(skip+2, pcs)

	frames := runtime.CallersFrames(pcs[:n])
	out := make([]Frame, 0, n)

	for {
		frame, more := frames.Next()
		out = append(out, Frame{
			File:     frame.File,
			Line:     frame.Line,
			Function: frame.Function,
		})

		if !more {
			break
		}
	}

	return out
}
