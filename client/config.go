package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/maps"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/justapithecus/rlfeed/lode"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// Sender implementations.
const (
	InteractionFileSender = "INTERACTION_FILE_SENDER"
	ObservationFileSender = "OBSERVATION_FILE_SENDER"
	InteractionLodeSender = "INTERACTION_LODE_SENDER"
	ObservationLodeSender = "OBSERVATION_LODE_SENDER"
	NoneSender            = "NONE"
)

// Model and time provider implementations.
const (
	NoModelData       = "NO_MODEL_DATA"
	ClockTimeProvider = "CLOCK_TIME_PROVIDER"
	NullTimeProvider  = "NULL_TIME_PROVIDER"
)

// EnvPrefix marks environment variables that override configuration keys.
// A double underscore separates key segments:
// RLFEED_INTERACTION__SENDER__IMPLEMENTATION sets
// interaction.sender.implementation.
const EnvPrefix = "RLFEED_"

// Defaults.
const (
	DefaultEpsilon         = 1.0
	DefaultInteractionFile = "interaction.fb.data"
	DefaultObservationFile = "observation.fb.data"
	DefaultBatchIntervalMs = 1000
	DefaultHighWatermark   = 1024
	DefaultQueueSizePerHWM = 4
)

// SenderConfig configures one of the two senders.
type SenderConfig struct {
	// Implementation is a *_FILE_SENDER, *_LODE_SENDER or NONE.
	Implementation string
	// FileName is the event log path for file senders.
	FileName string
	// BatchInterval is the background flush period. Zero means every entry
	// is written synchronously.
	BatchInterval time.Duration
	// HighWatermark is the buffered count that forces a flush.
	HighWatermark int
	// QueueMaxSize bounds the buffer; QueueMode applies beyond it.
	QueueMaxSize int
}

// Backend names the storage backend for metrics labels.
func (s SenderConfig) Backend() string {
	switch s.Implementation {
	case InteractionFileSender, ObservationFileSender:
		return "file"
	case InteractionLodeSender, ObservationLodeSender:
		return "lode"
	default:
		return "none"
	}
}

// Config is the resolved client configuration.
type Config struct {
	// AppID identifies the application in every log entry.
	AppID string
	// Epsilon is the exploration rate in [0, 1].
	Epsilon float64
	// ModelImplementation must be NoModelData.
	ModelImplementation string
	// TimeProvider is ClockTimeProvider or NullTimeProvider.
	TimeProvider string
	// QueueMode applies to both senders.
	QueueMode policy.QueueMode

	Interaction SenderConfig
	Observation SenderConfig

	// Dataset and Storage configure the lode senders.
	Dataset string
	Storage lode.StorageConfig
}

// configText is a koanf provider over configuration text.
type configText struct {
	raw       []byte
	unmarshal func([]byte) (map[string]any, error)
}

func (t configText) ReadBytes() ([]byte, error) {
	return t.raw, nil
}

// Read parses the text and normalizes keys: dotted keys are split into
// nested maps and every segment is lowercased, so "ApplicationID" and
// "interaction.sender.implementation" resolve the same way env overrides do.
func (t configText) Read() (map[string]any, error) {
	parsed, err := t.unmarshal(t.raw)
	if err != nil {
		return nil, err
	}
	flat, _ := maps.Flatten(parsed, nil, ".")
	lowered := make(map[string]any, len(flat))
	for k, v := range flat {
		lowered[strings.ToLower(k)] = v
	}
	return maps.Unflatten(lowered, "."), nil
}

func unmarshalJSON(b []byte) (map[string]any, error) {
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, err
	}
	if m == nil {
		return nil, errors.New("configuration must be a JSON object")
	}
	return m, nil
}

// CreateConfig parses JSON configuration text. A leading "@" names a file
// to read instead; files ending in .yaml or .yml are parsed as YAML.
// Environment variables prefixed with EnvPrefix override values from the
// text.
func CreateConfig(text string) (*Config, error) {
	src := configText{raw: []byte(text), unmarshal: unmarshalJSON}
	if path, ok := strings.CutPrefix(strings.TrimSpace(text), "@"); ok {
		b, err := file.Provider(path).ReadBytes()
		if err != nil {
			return nil, newError(CodeConfig, "read config file", err)
		}
		src.raw = b
		if ext := strings.ToLower(filepath.Ext(path)); ext == ".yaml" || ext == ".yml" {
			src.unmarshal = yaml.Parser().Unmarshal
		}
	}
	if len(bytes.TrimSpace(src.raw)) == 0 {
		return nil, newError(CodeConfig, "empty configuration", nil)
	}

	k := koanf.New(".")
	if err := k.Load(src, nil); err != nil {
		return nil, newError(CodeConfig, "parse configuration", err)
	}
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		return strings.ReplaceAll(strings.ToLower(s), "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, newError(CodeConfig, "load environment overrides", err)
	}

	cfg, err := fromKoanf(k)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromKoanf(k *koanf.Koanf) (*Config, error) {
	queueMode, err := policy.ParseQueueMode(strings.ToUpper(k.String("queue.mode")))
	if err != nil {
		return nil, newError(CodeConfig, "queue.mode", err)
	}

	cfg := &Config{
		AppID:               k.String("applicationid"),
		Epsilon:             DefaultEpsilon,
		ModelImplementation: stringOr(k, "model.implementation", NoModelData),
		TimeProvider:        stringOr(k, "time_provider.implementation", ClockTimeProvider),
		QueueMode:           queueMode,
		Interaction:         senderFromKoanf(k, "interaction", InteractionFileSender, DefaultInteractionFile),
		Observation:         senderFromKoanf(k, "observation", ObservationFileSender, DefaultObservationFile),
		Dataset:             stringOr(k, "lode.dataset", lode.DefaultDataset),
		Storage: lode.StorageConfig{
			Backend: stringOr(k, "lode.backend", lode.BackendFS),
			Path:    k.String("lode.path"),
			S3: lode.S3Config{
				Bucket:       k.String("lode.s3.bucket"),
				Prefix:       k.String("lode.s3.prefix"),
				Region:       k.String("lode.s3.region"),
				Endpoint:     k.String("lode.s3.endpoint"),
				UsePathStyle: k.Bool("lode.s3.path_style"),
			},
		},
	}
	if k.Exists("initialexplorationepsilon") {
		cfg.Epsilon = k.Float64("initialexplorationepsilon")
	}
	return cfg, nil
}

func senderFromKoanf(k *koanf.Koanf, prefix, defaultImpl, defaultFile string) SenderConfig {
	sc := SenderConfig{
		Implementation: strings.ToUpper(stringOr(k, prefix+".sender.implementation", defaultImpl)),
		FileName:       stringOr(k, prefix+".file.name", defaultFile),
		BatchInterval:  DefaultBatchIntervalMs * time.Millisecond,
		HighWatermark:  DefaultHighWatermark,
	}
	if key := prefix + ".send.batchintervalms"; k.Exists(key) {
		sc.BatchInterval = time.Duration(k.Int64(key)) * time.Millisecond
	}
	if key := prefix + ".send.highwatermark"; k.Exists(key) {
		sc.HighWatermark = k.Int(key)
	}
	sc.QueueMaxSize = sc.HighWatermark * DefaultQueueSizePerHWM
	if key := prefix + ".send.queuemaxsize"; k.Exists(key) {
		sc.QueueMaxSize = k.Int(key)
	}
	return sc
}

func stringOr(k *koanf.Koanf, key, def string) string {
	if v := k.String(key); v != "" {
		return v
	}
	return def
}

// Validate checks the resolved configuration.
func (c *Config) Validate() error {
	var errs []error
	if c.AppID == "" {
		errs = append(errs, errors.New("ApplicationID is required"))
	}
	if c.Epsilon < 0 || c.Epsilon > 1 {
		errs = append(errs, fmt.Errorf("InitialExplorationEpsilon %v must be within [0, 1]", c.Epsilon))
	}
	if c.ModelImplementation != NoModelData {
		errs = append(errs, fmt.Errorf("model.implementation %q is not supported (want %s)", c.ModelImplementation, NoModelData))
	}
	if c.TimeProvider != ClockTimeProvider && c.TimeProvider != NullTimeProvider {
		errs = append(errs, fmt.Errorf("time_provider.implementation %q is not supported", c.TimeProvider))
	}
	errs = append(errs,
		c.Interaction.validate(types.EntryKindInteraction, InteractionFileSender, InteractionLodeSender),
		c.Observation.validate(types.EntryKindObservation, ObservationFileSender, ObservationLodeSender),
	)
	if c.usesLode() && c.Storage.Backend == lode.BackendS3 {
		errs = append(errs, c.Storage.S3.Validate())
	}
	if c.usesLode() && c.Storage.Backend == lode.BackendFS && c.Storage.Path == "" {
		errs = append(errs, errors.New("lode.path is required for the fs backend"))
	}
	if err := errors.Join(errs...); err != nil {
		return newError(CodeConfig, "invalid configuration", err)
	}
	return nil
}

func (c *Config) usesLode() bool {
	return c.Interaction.Implementation == InteractionLodeSender ||
		c.Observation.Implementation == ObservationLodeSender
}

func (s SenderConfig) validate(kind types.EntryKind, fileImpl, lodeImpl string) error {
	switch s.Implementation {
	case fileImpl:
		if s.FileName == "" {
			return fmt.Errorf("%s.file.name is required for %s", kind, fileImpl)
		}
	case lodeImpl, NoneSender:
	default:
		return fmt.Errorf("%s.sender.implementation %q is not one of %s, %s, %s",
			kind, s.Implementation, fileImpl, lodeImpl, NoneSender)
	}
	if s.BatchInterval < 0 {
		return fmt.Errorf("%s.send.batchintervalms must not be negative", kind)
	}
	if s.BatchInterval > 0 && s.HighWatermark <= 0 {
		return fmt.Errorf("%s.send.highwatermark must be positive", kind)
	}
	if s.QueueMaxSize < 0 {
		return fmt.Errorf("%s.send.queuemaxsize must not be negative", kind)
	}
	return nil
}
