// Package dispatch turns NDJSON event lines into client calls.
//
// Each line is classified once, at parse time, into an OutcomeRecord or a
// DecisionRecord. A line carrying RewardValue is an outcome; any other
// line is a decision and must carry a context in c.
package dispatch

import (
	"bytes"
	"encoding/json"
)

// Input field names.
const (
	FieldEventID     = "EventId"
	FieldRewardValue = "RewardValue"
	FieldContext     = "c"
	FieldLabelCost   = "_label_cost"
)

// Record is a classified input line: *OutcomeRecord or *DecisionRecord.
type Record interface {
	EventID() string
	record()
}

// OutcomeRecord reports a reward for an earlier decision.
type OutcomeRecord struct {
	ID     string
	Reward float64
}

// EventID returns the correlation id.
func (r *OutcomeRecord) EventID() string { return r.ID }
func (*OutcomeRecord) record() {}

// DecisionRecord requests a ranking for a context. A non-zero LabelCost
// is reported as an immediate outcome of -LabelCost.
type DecisionRecord struct {
	ID        string
	Context   json.RawMessage
	LabelCost float64
}

// EventID returns the correlation id.
func (r *DecisionRecord) EventID() string { return r.ID }
func (*DecisionRecord) record() {}

// HasImmediateOutcome reports whether a cost was known at decision time.
func (r *DecisionRecord) HasImmediateOutcome() bool { return r.LabelCost != 0 }

// ImmediateOutcome is the value reported for a known cost.
func (r *DecisionRecord) ImmediateOutcome() float64 { return -r.LabelCost }

var jsonNull = []byte("null")

// ParseLine parses and classifies one input line. Errors are *Error with
// Kind ErrorMalformedRecord or ErrorMissingField; Line is left unset.
func ParseLine(line []byte) (Record, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(line, &fields); err != nil {
		return nil, &Error{Kind: ErrorMalformedRecord, Err: err}
	}
	if fields == nil {
		return nil, &Error{Kind: ErrorMalformedRecord, Err: errNotObject}
	}

	rawID, ok := fields[FieldEventID]
	if !ok || bytes.Equal(rawID, jsonNull) {
		return nil, &Error{Kind: ErrorMissingField, Field: FieldEventID}
	}
	var id string
	if err := json.Unmarshal(rawID, &id); err != nil {
		return nil, &Error{Kind: ErrorMalformedRecord, Field: FieldEventID, Err: err}
	}
	if id == "" {
		return nil, &Error{Kind: ErrorMissingField, Field: FieldEventID}
	}

	if rawReward, ok := fields[FieldRewardValue]; ok {
		reward, err := parseNumber(rawReward)
		if err != nil {
			return nil, &Error{Kind: ErrorMalformedRecord, EventID: id, Field: FieldRewardValue, Err: err}
		}
		return &OutcomeRecord{ID: id, Reward: reward}, nil
	}

	ctx, ok := fields[FieldContext]
	if !ok || bytes.Equal(ctx, jsonNull) {
		return nil, &Error{Kind: ErrorMissingField, EventID: id, Field: FieldContext}
	}

	var cost float64
	if rawCost, ok := fields[FieldLabelCost]; ok {
		c, err := parseNumber(rawCost)
		if err != nil {
			return nil, &Error{Kind: ErrorMalformedRecord, EventID: id, Field: FieldLabelCost, Err: err}
		}
		cost = c
	}

	return &DecisionRecord{ID: id, Context: ctx, LabelCost: cost}, nil
}

func parseNumber(raw json.RawMessage) (float64, error) {
	if bytes.Equal(raw, jsonNull) {
		return 0, errNotNumber
	}
	var v float64
	if err := json.Unmarshal(raw, &v); err != nil {
		return 0, err
	}
	return v, nil
}
