package engage

import (
	"context"

	"github.com/parley-ai/parley/types"
)

// debateFraming primes every debate speaker to engage with earlier replies
// instead of answering in isolation.
const debateFraming = "You are taking part in a structured debate. Respond to the discussion above; identify a disagreement or refinement if one exists."

// runDebate runs exactly one full round in fixed speaking order. Unlike
// sequential mode, each speaker's context carries the current iteration's
// earlier replies, so later personas can challenge earlier ones. The last
// speaker's reply is the canonical result.
func (e *Engine) runDebate(ctx context.Context, session *types.Session, members []types.Member, content string, ropts *types.RetrievalOptions) ([]*types.Message, *types.Message) {
	responses := make([]*types.Message, 0, len(members))
	transcript := make([]types.TeamContextEntry, 0, len(members))

	for i, member := range members {
		reply := e.respond(ctx, session, member, i+1, content, ropts, transcript, debateFraming)
		reply.Metadata[types.MetaDebateRound] = len(members)
		responses = append(responses, reply)
		transcript = append(transcript, types.TeamContextEntry{
			Persona:  member.Persona,
			Response: reply.Content,
		})
	}

	return responses, responses[len(responses)-1]
}
