package realtime

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

const (
	EventAccountRegistered    = "account.registered"
	EventPrescriptionAnalyzed = "prescription.analyzed"
	EventServerShutdown       = "server.shutdown"

	doctorsChannel = "notifications:doctors"
)

type Event struct {
	Type string    `json:"type"`
	Data any       `json:"data"`
	At   time.Time `json:"at"`
}

// Notifier fans events out to local sockets and, when redis is configured,
// to the per-user and per-role channels other instances subscribe to.
type Notifier struct {
	hub *Hub
	rdb *redis.Client
	log logrus.FieldLogger
}

func NewNotifier(hub *Hub, rdb *redis.Client, log logrus.FieldLogger) *Notifier {
	return &Notifier{hub: hub, rdb: rdb, log: log}
}

func UserChannel(uid int) string {
	return "notifications:" + strconv.Itoa(uid)
}

// AccountRegistered tells connected doctors about a new patient.
func (n *Notifier) AccountRegistered(ctx context.Context, uid int, name, role string) {
	if n == nil || role != "patient" {
		return
	}
	ev := Event{
		Type: EventAccountRegistered,
		Data: map[string]any{"uid": uid, "name": name, "role": role},
		At:   time.Now().UTC(),
	}
	n.hub.SendToRole("doctor", ev)
	n.publish(ctx, doctorsChannel, ev)
}

func (n *Notifier) PrescriptionAnalyzed(ctx context.Context, uid int, analysisID uuid.UUID, accuracy float64, cached bool) {
	if n == nil || uid == 0 {
		return
	}
	ev := Event{
		Type: EventPrescriptionAnalyzed,
		Data: map[string]any{
			"analysis_id":    analysisID.String(),
			"accuracy_score": accuracy,
			"cached":         cached,
		},
		At: time.Now().UTC(),
	}
	n.hub.SendToUser(uid, ev)
	n.publish(ctx, UserChannel(uid), ev)
}

// ServerShutdown tells every connected socket this instance is going away so
// clients can reconnect elsewhere.
func (n *Notifier) ServerShutdown() {
	if n == nil {
		return
	}
	n.hub.BroadcastJSON(Event{Type: EventServerShutdown, At: time.Now().UTC()})
}

func (n *Notifier) publish(ctx context.Context, channel string, ev Event) {
	if n.rdb == nil {
		return
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		n.log.WithError(err).Error("marshal event")
		return
	}
	if err := n.rdb.Publish(ctx, channel, payload).Err(); err != nil {
		n.log.WithError(err).WithField("channel", channel).Warn("redis publish failed")
	}
}
