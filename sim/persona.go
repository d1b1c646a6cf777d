package sim

// Topics are the actions offered in every decision.
var Topics = []string{
	"SkiConditions-VT",
	"HerbGarden",
	"BeyBlades",
	"NYCLiving",
	"MachineLearning",
}

// Persona is a simulated user with a click probability per topic.
type Persona struct {
	ID                string
	Major             string
	Hobby             string
	FavoriteCharacter string
	ClickProbability  map[string]float64
}

// DefaultPersonas returns the two built-in personas.
func DefaultPersonas() []Persona {
	return []Persona{
		{
			ID:                "rnc",
			Major:             "engineering",
			Hobby:             "hiking",
			FavoriteCharacter: "spock",
			ClickProbability: map[string]float64{
				"SkiConditions-VT": 0.08,
				"HerbGarden":       0.03,
				"BeyBlades":        0.05,
				"NYCLiving":        0.03,
				"MachineLearning":  0.25,
			},
		},
		{
			ID:                "mk",
			Major:             "psychology",
			Hobby:             "kids",
			FavoriteCharacter: "7of9",
			ClickProbability: map[string]float64{
				"SkiConditions-VT": 0.08,
				"HerbGarden":       0.30,
				"BeyBlades":        0.02,
				"NYCLiving":        0.02,
				"MachineLearning":  0.10,
			},
		},
	}
}

type user struct {
	ID                string `json:"id"`
	Major             string `json:"major"`
	Hobby             string `json:"hobby"`
	FavoriteCharacter string `json:"favorite_character"`
}

type topicAction struct {
	TAction struct {
		Topic string `json:"topic"`
	} `json:"TAction"`
}

// decisionContext is the shape of c: shared user features plus one
// feature set per action.
type decisionContext struct {
	GUser user          `json:"GUser"`
	Multi []topicAction `json:"_multi"`
}

func (p *Persona) context(topics []string) decisionContext {
	c := decisionContext{
		GUser: user{
			ID:                p.ID,
			Major:             p.Major,
			Hobby:             p.Hobby,
			FavoriteCharacter: p.FavoriteCharacter,
		},
		Multi: make([]topicAction, len(topics)),
	}
	for i, t := range topics {
		c.Multi[i].TAction.Topic = t
	}
	return c
}
