package agent

import (
	"context"

	"github.com/gitgov-dev/gitgov-core/record"
)

// dispatchMCP dispatches an "mcp" engine through the same
// RuntimeHandlerRegistry local dispatch uses, since an MCP bridge is
// exactly a named, in-process handler from the caller's point of view;
// what differs is the failure kind on a miss. The spec doesn't define an
// MCP wire protocol, only that it is a third declared engine type (§3
// "AgentEngine is a tagged-union of the three supported runner
// backends"), so the registry miss here is MissingDependency rather than
// FunctionNotExported: the whole protocol bridge is absent, not merely
// one exported symbol inside an otherwise-loaded module.
func (r *Runner) dispatchMCP(ctx context.Context, engine record.AgentEngine, execCtx ExecutionContext) (any, error) {
	if engine.Runtime == "" {
		return nil, record.NewKindError(record.ErrLocalEngineConfigError, "mcp engine requires runtime naming the MCP server")
	}
	handler, ok := r.registry.Lookup(engine.Runtime)
	if !ok {
		return nil, record.NewKindError(record.ErrMissingDependency, "no MCP bridge registered for runtime %q", engine.Runtime)
	}
	return handler(ctx, execCtx)
}
