package engage

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/parley-ai/parley/types"
)

// runParallel fans the same user message out to every team member at once.
// Turn orders follow the team's member order, not completion order, so the
// ledger layout is deterministic across runs. One member's failure never
// cancels its siblings; each slot always yields exactly one message.
func (e *Engine) runParallel(ctx context.Context, session *types.Session, members []types.Member, content string, ropts *types.RetrievalOptions) ([]*types.Message, *types.Message) {
	responses := make([]*types.Message, len(members))

	var g errgroup.Group
	for i, member := range members {
		i, member := i, member
		g.Go(func() error {
			responses[i] = e.respond(ctx, session, member, i+1, content, ropts, nil, "")
			return nil
		})
	}
	// Workers never return errors; sentinel replies absorb all failures.
	_ = g.Wait()

	// The result is the whole set; the first member's reply stands in as the
	// canonical single response.
	return responses, responses[0]
}
