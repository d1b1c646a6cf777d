package client

import (
	"encoding/json"
	"errors"

	"github.com/cespare/xxhash/v2"

	"github.com/justapithecus/rlfeed/types"
)

// NoModelID is reported while no trained model is loaded.
const NoModelID = "N/A"

// actionContext is the part of a decision context the ranker reads.
type actionContext struct {
	Multi []json.RawMessage `json:"_multi"`
}

// countActions returns the number of actions in a context's _multi array.
func countActions(contextJSON []byte) (int, error) {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal(contextJSON, &probe); err != nil || probe == nil {
		if err == nil {
			err = errors.New("context is null")
		}
		return 0, newError(CodeContextParse, "context must be a JSON object", err)
	}

	var ac actionContext
	if raw, ok := probe["_multi"]; ok {
		if err := json.Unmarshal(raw, &ac.Multi); err != nil {
			return 0, newError(CodeContextParse, "_multi must be an array", err)
		}
	}
	if len(ac.Multi) == 0 {
		return 0, newError(CodeNoActions, "context has no actions in _multi", nil)
	}
	return len(ac.Multi), nil
}

// unitInterval maps an event id to a uniform value in [0, 1).
func unitInterval(eventID string) float64 {
	return float64(xxhash.Sum64String(eventID)>>11) / (1 << 53)
}

// rankEpsilonGreedy ranks n actions. Action 0 is the greedy action. The
// chosen action is derived from the event id, so the same id always
// yields the same ranking. The chosen action comes first; the rest
// follow in index order.
func rankEpsilonGreedy(eventID string, n int, epsilon float64) []types.ActionProbability {
	explore := float32(epsilon / float64(n))
	greedy := float32(1-epsilon) + explore

	chosen := 0
	if u := unitInterval(eventID); u < epsilon {
		chosen = min(int(u/epsilon*float64(n)), n-1)
	}

	prob := func(action int) float32 {
		if action == 0 {
			return greedy
		}
		return explore
	}

	ranking := make([]types.ActionProbability, 0, n)
	ranking = append(ranking, types.ActionProbability{ActionID: chosen, Probability: prob(chosen)})
	for a := range n {
		if a != chosen {
			ranking = append(ranking, types.ActionProbability{ActionID: a, Probability: prob(a)})
		}
	}
	return ranking
}
