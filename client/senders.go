package client

import (
	"context"
	"fmt"

	"github.com/justapithecus/rlfeed/binlog"
	"github.com/justapithecus/rlfeed/lode"
	"github.com/justapithecus/rlfeed/policy"
	"github.com/justapithecus/rlfeed/types"
)

// SinkFactory opens the sink behind one sender.
type SinkFactory func(ctx context.Context, kind types.EntryKind, sc SenderConfig) (policy.Sink, error)

// defaultSinkFactory opens binlog files and lode datasets. The lode store
// factory is built on first use and shared by both senders.
func (m *LiveModel) defaultSinkFactory(ctx context.Context, _ types.EntryKind, sc SenderConfig) (policy.Sink, error) {
	switch sc.Backend() {
	case "file":
		return binlog.OpenFileSink(sc.FileName)
	case "lode":
		if m.storeFactory == nil {
			f, err := lode.NewStoreFactory(ctx, m.cfg.Storage)
			if err != nil {
				return nil, err
			}
			m.storeFactory = f
		}
		return lode.NewSink(lode.Config{
			Dataset: m.cfg.Dataset,
			AppID:   m.cfg.AppID,
			RunID:   m.runID,
		}, m.storeFactory)
	default:
		return nil, fmt.Errorf("no sink for sender %q", sc.Implementation)
	}
}

// newSender builds the delivery policy for one entry kind.
func (m *LiveModel) newSender(ctx context.Context, kind types.EntryKind, sc SenderConfig) (policy.Policy, error) {
	if sc.Implementation == NoneSender {
		return policy.NewNoopPolicy(), nil
	}

	sink, err := m.sinkFactory(ctx, kind, sc)
	if err != nil {
		return nil, fmt.Errorf("%s sender: %w", kind, err)
	}
	if c, ok := sink.(policy.EntryChecker); ok {
		if m.checks == nil {
			m.checks = make(map[types.EntryKind]policy.EntryChecker)
		}
		m.checks[kind] = c
	}
	sink = lode.NewInstrumentedSink(sink, m.collector)

	if sc.BatchInterval == 0 {
		return policy.NewStrictPolicy(sink), nil
	}

	pol, err := policy.NewStreamingPolicy(sink, policy.StreamingConfig{
		FlushCount:    sc.HighWatermark,
		FlushInterval: sc.BatchInterval,
		MaxBuffered:   sc.QueueMaxSize,
		QueueMode:     m.cfg.QueueMode,
		OnFlushError: func(err error) {
			m.sink.OnError(CodeSendFailure, fmt.Sprintf("%s sender flush failed: %v", kind, err))
		},
		OnDrop: func(e types.Entry) {
			m.sink.OnError(CodeQueueOverflow, fmt.Sprintf("%s queue full, dropped event %s", kind, e.EventID()))
		},
		Logger: m.logger,
	})
	if err != nil {
		_ = sink.Close()
		return nil, fmt.Errorf("%s sender: %w", kind, err)
	}
	return pol, nil
}
