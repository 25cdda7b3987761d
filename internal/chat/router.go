package chat

import (
	"go.uber.org/zap"
	"roomchat/internal/metrics"
	"roomchat/internal/store"
)

// Emitter sends one event to one connection. It is implemented by the
// transport layer.
type Emitter interface {
	Emit(connectionID, event string, payload any) error
}

// Router fans events out to the connections of a room. Delivery is
// best-effort: a failed send is logged and skipped.
type Router struct {
	directory *store.Directory
	emitter   Emitter
	log       *zap.Logger
	metrics   *metrics.Metrics
}

func NewRouter(directory *store.Directory, emitter Emitter, log *zap.Logger, m *metrics.Metrics) *Router {
	return &Router{directory: directory, emitter: emitter, log: log, metrics: m}
}

// BroadcastToRoom sends the event to every connection currently in room
// except exclude (empty means nobody is excluded). It returns the number of
// successful sends. Sessions fan out from their own membership snapshot;
// this is the entry point for callers that only know the room name.
func (r *Router) BroadcastToRoom(room, event string, payload any, exclude string) int {
	return r.deliver(r.directory.ConnectionsInRoom(room), event, payload, exclude)
}

// deliver must be called without holding the directory lock.
func (r *Router) deliver(connectionIDs []string, event string, payload any, exclude string) int {
	delivered := 0
	for _, id := range connectionIDs {
		if exclude != "" && id == exclude {
			continue
		}
		if err := r.emitter.Emit(id, event, payload); err != nil {
			r.metrics.DeliveryFailures.Inc()
			r.log.Warn("delivery failed",
				zap.String("connection_id", id),
				zap.String("event", event),
				zap.Error(err))
			continue
		}
		delivered++
	}
	return delivered
}
