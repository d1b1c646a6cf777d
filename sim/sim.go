// Package sim generates synthetic NDJSON event streams for the
// dispatcher: personas browse topics and click with per-topic
// probabilities.
package sim

import (
	"bufio"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"io"
	"math/rand/v2"

	"github.com/google/uuid"

	"github.com/justapithecus/rlfeed/log"
)

// ErrNoPersonas is returned when a generator has nobody to simulate.
var ErrNoPersonas = errors.New("sim: no personas")

// Config controls a simulation.
type Config struct {
	// Events is the number of decisions to generate.
	Events int
	// Seed makes the stream reproducible, event ids included.
	Seed uint64
	// InlineCost folds each outcome into its decision as _label_cost
	// instead of emitting a separate outcome record.
	InlineCost bool
	// Personas defaults to DefaultPersonas.
	Personas []Persona
	// Topics defaults to Topics.
	Topics []string
}

// Stats counts what a simulation emitted.
type Stats struct {
	Decisions int `json:"decisions"`
	Outcomes  int `json:"outcomes"`
	Clicks    int `json:"clicks"`
}

type decisionLine struct {
	EventID   string          `json:"EventId"`
	Context   decisionContext `json:"c"`
	LabelCost *float64        `json:"_label_cost,omitempty"`
}

type outcomeLine struct {
	EventID     string  `json:"EventId"`
	RewardValue float64 `json:"RewardValue"`
}

// Generator produces simulated events.
type Generator struct {
	cfg    Config
	rng    *rand.Rand
	ids    io.Reader
	logger *log.Logger
}

// New creates a generator. A nil logger disables logging.
func New(cfg Config, logger *log.Logger) (*Generator, error) {
	if cfg.Personas == nil {
		cfg.Personas = DefaultPersonas()
	}
	if cfg.Topics == nil {
		cfg.Topics = Topics
	}
	if len(cfg.Personas) == 0 {
		return nil, ErrNoPersonas
	}
	if logger == nil {
		logger = log.Nop()
	}

	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[:], cfg.Seed)
	src := rand.NewChaCha8(seed)

	// Event ids use a stream separate from persona and click draws.
	var idSeed [32]byte
	binary.LittleEndian.PutUint64(idSeed[:], cfg.Seed)
	idSeed[31] = 1

	return &Generator{
		cfg:    cfg,
		rng:    rand.New(src),
		ids:    rand.NewChaCha8(idSeed),
		logger: logger.Named("sim"),
	}, nil
}

// Run writes cfg.Events decisions, with their outcomes, to w as NDJSON.
func (g *Generator) Run(ctx context.Context, w io.Writer) (Stats, error) {
	var stats Stats
	bw := bufio.NewWriter(w)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)

	for range g.cfg.Events {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		id, err := uuid.NewRandomFromReader(g.ids)
		if err != nil {
			return stats, err
		}
		eventID := id.String()

		p := &g.cfg.Personas[g.rng.IntN(len(g.cfg.Personas))]
		topic := g.cfg.Topics[g.rng.IntN(len(g.cfg.Topics))]
		reward := g.outcome(p, topic)
		if reward > 0 {
			stats.Clicks++
		}

		decision := decisionLine{EventID: eventID, Context: p.context(g.cfg.Topics)}
		if g.cfg.InlineCost && reward != 0 {
			cost := -reward
			decision.LabelCost = &cost
		}
		if err := enc.Encode(&decision); err != nil {
			return stats, err
		}
		stats.Decisions++

		if !g.cfg.InlineCost {
			if err := enc.Encode(&outcomeLine{EventID: eventID, RewardValue: reward}); err != nil {
				return stats, err
			}
			stats.Outcomes++
		}
	}

	if err := bw.Flush(); err != nil {
		return stats, err
	}
	g.logger.Debug("simulation finished", map[string]any{
		"decisions": stats.Decisions,
		"outcomes":  stats.Outcomes,
		"clicks":    stats.Clicks,
	})
	return stats, nil
}

// outcome is 1 when the persona clicks the shown topic.
func (g *Generator) outcome(p *Persona, topic string) float64 {
	if g.rng.Float64() < p.ClickProbability[topic] {
		return 1
	}
	return 0
}
