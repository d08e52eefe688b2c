package engage

import (
	"context"
	"strings"

	"github.com/parley-ai/parley/types"
)

// agreementMarker is the explicit convergence signal a persona can emit.
const agreementMarker = "AGREE:"

// consensusFraming asks personas to work toward agreement and to signal it.
const consensusFraming = "You are working toward team consensus. Review the discussion above and move toward a shared answer. If you fully agree with the emerging position, start your reply with \"AGREE:\"."

// runConsensus repeats full rounds of all members within one iteration until
// the replies converge or the round budget runs out. Turn orders keep
// increasing across rounds so the ledger replays in speaking order. The
// canonical result is the final round's last reply, flagged with convergence
// metadata.
func (e *Engine) runConsensus(ctx context.Context, session *types.Session, members []types.Member, content string, ropts *types.RetrievalOptions) ([]*types.Message, *types.Message) {
	maxRounds := e.cfg.ConsensusMaxRounds
	if maxRounds < 1 {
		maxRounds = 1
	}

	var responses []*types.Message
	var lastRound []*types.Message
	converged := false
	rounds := 0

	transcript := make([]types.TeamContextEntry, 0, len(members)*maxRounds)

	for round := 0; round < maxRounds && !converged; round++ {
		rounds = round + 1
		lastRound = lastRound[:0]

		for i, member := range members {
			turn := round*len(members) + i + 1
			reply := e.respond(ctx, session, member, turn, content, ropts, transcript, consensusFraming)
			responses = append(responses, reply)
			lastRound = append(lastRound, reply)
			transcript = append(transcript, types.TeamContextEntry{
				Persona:  member.Persona,
				Response: reply.Content,
			})
		}

		converged = e.converged(lastRound)
	}

	for _, reply := range responses {
		reply.Metadata[types.MetaConverged] = converged
		reply.Metadata[types.MetaRounds] = rounds
	}

	return responses, responses[len(responses)-1]
}

// converged reports whether a round's replies satisfy the convergence
// predicate: every reply carries the agreement marker, or every pair of
// replies is textually similar above the configured threshold. Sentinel
// replies never converge.
func (e *Engine) converged(round []*types.Message) bool {
	for _, reply := range round {
		if _, isSentinel := reply.Metadata[types.MetaSentinel]; isSentinel {
			return false
		}
	}

	allAgree := true
	for _, reply := range round {
		if !strings.Contains(reply.Content, agreementMarker) {
			allAgree = false
			break
		}
	}
	if allAgree {
		return true
	}

	if len(round) < 2 {
		return true
	}
	for i := 0; i < len(round); i++ {
		for j := i + 1; j < len(round); j++ {
			if tokenSimilarity(round[i].Content, round[j].Content) < e.cfg.ConsensusThreshold {
				return false
			}
		}
	}
	return true
}

// tokenSimilarity is the Jaccard index over lowercased whitespace tokens.
func tokenSimilarity(a, b string) float64 {
	setA := tokenSet(a)
	setB := tokenSet(b)
	if len(setA) == 0 && len(setB) == 0 {
		return 1
	}
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	intersection := 0
	for token := range setA {
		if _, ok := setB[token]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}

func tokenSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, token := range strings.Fields(strings.ToLower(s)) {
		set[token] = struct{}{}
	}
	return set
}
