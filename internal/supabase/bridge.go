package supabase

import (
	"github.com/npezzotti/diayouth/internal/association"
	"github.com/npezzotti/diayouth/internal/feed"
	"github.com/sirupsen/logrus"
)

const sourceRemote = "remote"

// Bridge republishes remote changes into the hub and keeps membership sets
// current with association rows written elsewhere.
type Bridge struct {
	hub     *feed.Hub
	toggler *association.Toggler
	log     *logrus.Logger
}

func NewBridge(hub *feed.Hub, toggler *association.Toggler, logger *logrus.Logger) *Bridge {
	return &Bridge{hub: hub, toggler: toggler, log: logger}
}

func (b *Bridge) Handle(rc RemoteChange) {
	changeType, ok := feed.ParseChangeType(rc.Type)
	if !ok || changeType == feed.All {
		b.log.WithField("type", rc.Type).Debug("ignoring remote change type")
		return
	}

	row := rc.Row()
	change := feed.Change{
		Topic:   rc.Table,
		Type:    changeType,
		ActorId: row.Get("user_id").String(),
		Source:  sourceRemote,
	}

	if kind, ok := association.KindForTable(rc.Table); ok {
		change.RecordId = row.Get(kind.Column()).Int()
		if b.toggler != nil && change.ActorId != "" && change.RecordId > 0 {
			b.toggler.Observe(association.Key{
				ActorId:  change.ActorId,
				TargetId: change.RecordId,
				Kind:     kind,
			}, association.StateOf(changeType != feed.Delete))
		}
	} else {
		change.RecordId = row.Get("id").Int()
	}

	if !b.hub.HasTopic(rc.Table) {
		return
	}
	b.hub.Publish(change)
}
