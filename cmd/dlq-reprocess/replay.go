package main

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/IBM/sarama"
	log "github.com/sirupsen/logrus"
)

type replayStats struct {
	processed int
	replayed  int
	skipped   int
}

func (s *replayStats) add(other replayStats) {
	s.processed += other.processed
	s.replayed += other.replayed
	s.skipped += other.skipped
}

// replayer обходит партиции DLQ по возрастанию номера, пока не прочитает cfg.limit сообщений.
type replayer struct {
	cfg    config
	deps   replayDependencies
	logger *log.Entry
}

func newReplayer(cfg config, deps replayDependencies) (*replayer, error) {
	if deps.client == nil || deps.consumer == nil {
		return nil, errors.New("kafka client and consumer are required")
	}
	if cfg.execute && deps.publisher == nil {
		return nil, errors.New("publisher is required in execute mode")
	}
	return &replayer{
		cfg:  cfg,
		deps: deps,
		logger: log.WithFields(log.Fields{
			"component":    "dlq-reprocess",
			"mode":         cfg.mode(),
			"source_topic": cfg.sourceTopic,
		}),
	}, nil
}

func replay(ctx context.Context, cfg config, deps replayDependencies) (replayStats, error) {
	r, err := newReplayer(cfg, deps)
	if err != nil {
		return replayStats{}, err
	}
	return r.run(ctx)
}

func (r *replayer) run(ctx context.Context) (replayStats, error) {
	var total replayStats

	partitions, err := r.deps.client.Partitions(r.cfg.sourceTopic)
	if err != nil {
		return total, fmt.Errorf("get partitions for topic %s: %w", r.cfg.sourceTopic, err)
	}
	if len(partitions) == 0 {
		r.logger.Warn("source topic has no partitions")
		return total, nil
	}
	sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })

	for _, partition := range partitions {
		budget := r.cfg.limit - total.processed
		if budget <= 0 {
			break
		}
		stats, err := r.drain(ctx, partition, budget)
		total.add(stats)
		if err != nil {
			return total, err
		}
	}

	r.logger.WithFields(log.Fields{
		"processed": total.processed,
		"replayed":  total.replayed,
		"skipped":   total.skipped,
	}).Info("dlq replay finished")
	return total, nil
}

// window возвращает полуинтервал смещений [start, end), который стоит прочитать.
// end фиксируется до чтения, поэтому письма, пришедшие во время прогона, не попадают в него.
func (r *replayer) window(partition int32, budget int) (int64, int64, error) {
	oldest, err := r.deps.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetOldest)
	if err != nil {
		return 0, 0, fmt.Errorf("get oldest offset for partition %d: %w", partition, err)
	}
	end, err := r.deps.client.GetOffset(r.cfg.sourceTopic, partition, sarama.OffsetNewest)
	if err != nil {
		return 0, 0, fmt.Errorf("get newest offset for partition %d: %w", partition, err)
	}

	start := oldest
	if r.cfg.fromNewest {
		start = max(end-int64(budget), oldest)
	}
	return start, end, nil
}

// drain читает не больше budget сообщений партиции. Партиция считается прочитанной
// при достижении конца окна, закрытии канала или паузе дольше idleTimeout.
func (r *replayer) drain(ctx context.Context, partition int32, budget int) (replayStats, error) {
	var stats replayStats

	start, end, err := r.window(partition, budget)
	if err != nil || end <= start {
		return stats, err
	}

	pc, err := r.deps.consumer.ConsumePartition(r.cfg.sourceTopic, partition, start)
	if err != nil {
		return stats, fmt.Errorf("consume partition %d: %w", partition, err)
	}
	defer func() { _ = pc.Close() }()

	idle := time.NewTimer(r.cfg.idleTimeout)
	defer idle.Stop()

	for stats.processed < budget {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-idle.C:
			return stats, nil
		case cerr := <-pc.Errors():
			if cerr != nil {
				return stats, fmt.Errorf("partition %d consumer error: %w", partition, cerr)
			}
		case msg, ok := <-pc.Messages():
			if !ok || msg == nil || msg.Offset >= end {
				return stats, nil
			}
			idle.Reset(r.cfg.idleTimeout)

			stats.processed++
			replayed, err := r.handle(msg)
			if err != nil {
				return stats, err
			}
			if replayed {
				stats.replayed++
			} else {
				stats.skipped++
			}

			if msg.Offset+1 >= end {
				return stats, nil
			}
		}
	}
	return stats, nil
}

// handle возвращает false для сообщений, которые не удалось разобрать как письмо DLQ.
func (r *replayer) handle(msg *sarama.ConsumerMessage) (bool, error) {
	entry := r.logger.WithFields(log.Fields{"partition": msg.Partition, "offset": msg.Offset})

	event, err := decodeDeadLetter(msg.Value)
	if errors.Is(err, errNotDeadLetter) {
		return false, nil
	}
	if err != nil {
		entry.WithError(err).Warn("skip unsupported dlq message")
		return false, nil
	}

	if !r.cfg.execute {
		entry.WithFields(log.Fields{
			"target_topic": r.cfg.targetTopic,
			"event_type":   event.EventType,
			"aggregate_id": event.AggregateID,
		}).Info("dlq replay candidate")
		return true, nil
	}

	if err := r.deps.publisher.Publish(event); err != nil {
		return false, fmt.Errorf("publish replay message %s: %w", event.ID, err)
	}
	return true, nil
}
