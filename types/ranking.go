package types

import "errors"

// ErrEmptyRanking is returned when a ranking has no actions.
var ErrEmptyRanking = errors.New("ranking has no actions")

// ActionProbability pairs a 0-based action index with its sampling probability.
type ActionProbability struct {
	ActionID    int     `json:"action_id"`
	Probability float32 `json:"probability"`
}

// RankingResponse is the result of a choose call.
// Ranking is ordered with the chosen action first.
type RankingResponse struct {
	EventID string              `json:"event_id"`
	ModelID string              `json:"model_id"`
	Ranking []ActionProbability `json:"ranking"`
}

// ChosenAction returns the 0-based index of the chosen action.
func (r *RankingResponse) ChosenAction() (int, error) {
	if len(r.Ranking) == 0 {
		return 0, ErrEmptyRanking
	}
	return r.Ranking[0].ActionID, nil
}

// Interaction converts the response into its logged form.
// Action ids are shifted to 1-based.
func (r *RankingResponse) Interaction(context []byte) *Interaction {
	in := &Interaction{
		EventID:         r.EventID,
		Context:         context,
		ActionIDs:       make([]uint64, len(r.Ranking)),
		Probabilities:   make([]float32, len(r.Ranking)),
		ModelID:         r.ModelID,
		PassProbability: 1,
	}
	for i, ap := range r.Ranking {
		in.ActionIDs[i] = uint64(ap.ActionID) + 1
		in.Probabilities[i] = ap.Probability
	}
	return in
}
