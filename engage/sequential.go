package engage

import (
	"context"

	"github.com/parley-ai/parley/types"
)

// runSequential has the first team member answer alone. The speaking order is
// the team's member order; a configurable order is a possible extension.
func (e *Engine) runSequential(ctx context.Context, session *types.Session, members []types.Member, content string, ropts *types.RetrievalOptions) ([]*types.Message, *types.Message) {
	reply := e.respond(ctx, session, members[0], 1, content, ropts, nil, "")
	return []*types.Message{reply}, reply
}
