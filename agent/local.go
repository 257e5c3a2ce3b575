package agent

import (
	"context"
	"errors"

	"github.com/gitgov-dev/gitgov-core/record"
)

// ErrExportNotFound is the sentinel a LocalModule returns when the
// requested function isn't exported, which dispatchLocal maps onto
// record.ErrFunctionNotExported (§4.9 "Missing export → FunctionNotExported").
var ErrExportNotFound = errors.New("agent: function not exported by local module")

// LocalModule is a loaded local agent module, resolved from an
// AgentEngine.Entrypoint by a ModuleLoader. Go has no portable runtime
// equivalent of a dynamic `require(entrypoint)`, so this interface is the
// seam a caller implements however their host process loads agent code
// (an in-process registry, a Go plugin, a subprocess bridge).
type LocalModule interface {
	Call(ctx context.Context, function string, execCtx ExecutionContext) (any, error)
}

// ModuleLoader resolves an entrypoint path (relative to the project root)
// to a LocalModule.
type ModuleLoader func(entrypoint string) (LocalModule, error)

const defaultLocalFunction = "runAgent"

// dispatchLocal implements §4.9 step 2's "local" branch: runtime-registry
// dispatch takes priority when engine.Runtime is set (no entrypoint
// loading involved); otherwise the configured ModuleLoader resolves the
// entrypoint and the named function (default "runAgent") is invoked.
func (r *Runner) dispatchLocal(ctx context.Context, engine record.AgentEngine, execCtx ExecutionContext) (any, error) {
	if engine.Runtime != "" {
		handler, ok := r.registry.Lookup(engine.Runtime)
		if !ok {
			return nil, record.NewKindError(record.ErrFunctionNotExported, "no runtime handler registered for %q", engine.Runtime)
		}
		return handler(ctx, execCtx)
	}

	if engine.Entrypoint == "" {
		return nil, record.NewKindError(record.ErrLocalEngineConfigError, "local engine requires either entrypoint or runtime")
	}
	if r.loader == nil {
		return nil, record.NewKindError(record.ErrMissingDependency, "no module loader configured for local entrypoint %q", engine.Entrypoint)
	}

	module, err := r.loader(engine.Entrypoint)
	if err != nil {
		return nil, record.NewKindError(record.ErrLocalEngineConfigError, "failed to load entrypoint %q: %s", engine.Entrypoint, err.Error())
	}

	function := engine.Function
	if function == "" {
		function = defaultLocalFunction
	}

	output, err := module.Call(ctx, function, execCtx)
	if err != nil {
		if errors.Is(err, ErrExportNotFound) {
			return nil, record.NewKindError(record.ErrFunctionNotExported, "entrypoint %q does not export %q", engine.Entrypoint, function)
		}
		return nil, err
	}
	return output, nil
}
