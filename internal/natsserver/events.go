package natsserver

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/JuweiLin/ARProject/pkg/protocol"
)

// PublishEvent publishes ev on arhub.events.<ev.Source>.
func PublishEvent(nc *nats.Conn, ev protocol.Event) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return nc.Publish(protocol.SubjectEvents(ev.Source), data)
}

// SubscribeEvents decodes every event on subject and hands it to fn.
// Undecodable messages are logged and skipped.
func SubscribeEvents(nc *nats.Conn, subject string, logger zerolog.Logger, fn func(protocol.Event)) (*nats.Subscription, error) {
	return nc.Subscribe(subject, func(msg *nats.Msg) {
		var ev protocol.Event
		if err := json.Unmarshal(msg.Data, &ev); err != nil {
			logger.Error().Err(err).Str("subject", msg.Subject).Msg("bad event message")
			return
		}
		fn(ev)
	})
}
