package server

import (
	"context"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/matiasleandrokruk/procstatus/internal/domain/recordstatus"
	"github.com/matiasleandrokruk/procstatus/internal/infra/eventbus"
)

// TransitionWatcher consumes recordstatus.TopicStatusChanged, logging each
// transition and counting it per module and record state.
type TransitionWatcher struct {
	transitions *prometheus.CounterVec
	logger      *zap.Logger
}

// NewTransitionWatcher registers the transition counter on reg.
func NewTransitionWatcher(reg prometheus.Registerer, logger *zap.Logger) *TransitionWatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &TransitionWatcher{
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "procstatus",
			Name:      "status_transitions_total",
			Help:      "Committed record status transitions.",
		}, []string{"module", "state"}),
		logger: logger,
	}
	reg.MustRegister(w.transitions)
	return w
}

// Run consumes events until ctx is done or the channel is closed. Callers
// subscribe before starting it so no transition is missed:
//
//	go watcher.Run(ctx, bus.Subscribe(recordstatus.TopicStatusChanged))
func (w *TransitionWatcher) Run(ctx context.Context, events <-chan eventbus.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-events:
			if !ok {
				return
			}
			w.handle(evt)
		}
	}
}

func (w *TransitionWatcher) handle(evt eventbus.Event) {
	change, ok := evt.Payload.(recordstatus.StatusChangedEvent)
	if !ok {
		w.logger.Warn("unexpected payload on status topic", zap.String("topic", evt.Topic))
		return
	}
	state := "none"
	if change.State != nil {
		state = strconv.Itoa(int(*change.State))
	}
	w.transitions.WithLabelValues(change.Module, state).Inc()
	w.logger.Info("record status changed",
		zap.String("module", change.Module),
		zap.Int64("record_id", change.RecordID),
		zap.Stringp("before", change.Before),
		zap.String("after", change.After),
		zap.String("state", state),
		zap.String("actor_id", change.ActorID),
		zap.Time("changed_at", change.ChangedAt))
}
