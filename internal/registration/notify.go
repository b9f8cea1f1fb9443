package registration

import (
	"context"

	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/influxdb"
	"github.com/nerrad567/gray-logic-lwm2m/internal/infrastructure/mqtt"
)

// Publisher is the MQTT surface used by MQTTNotifier.
// This is satisfied by *mqtt.Client.
type Publisher interface {
	Publish(topic string, payload []byte, qos byte, retained bool) error
	PublishJSON(topic string, v any, retained bool) error
	QoS() byte
}

// MQTTNotifier publishes registration events to MQTT. Each event goes to
// lwm2m/rd/{endpoint}/{event}; the retained lwm2m/rd/{endpoint}/state topic
// carries the current record and is cleared on deregistration.
type MQTTNotifier struct {
	publisher Publisher
	logger    Logger
}

// NewMQTTNotifier creates an observer publishing through p.
func NewMQTTNotifier(p Publisher, logger Logger) *MQTTNotifier {
	if logger == nil {
		logger = noopLogger{}
	}
	return &MQTTNotifier{publisher: p, logger: logger}
}

// RegistrationChanged implements Observer.
func (m *MQTTNotifier) RegistrationChanged(_ context.Context, ev Event) {
	topics := mqtt.Topics{}
	endpoint := ev.Client.Endpoint

	if err := m.publisher.PublishJSON(topics.RegistrationEvent(endpoint, string(ev.Type)), ev, false); err != nil {
		m.logger.Warn("failed to publish registration event",
			"event", string(ev.Type),
			"endpoint", endpoint,
			"error", err,
		)
	}

	var err error
	stateTopic := topics.RegistrationState(endpoint)
	if ev.Type == EventDeregistered {
		err = m.publisher.Publish(stateTopic, nil, m.publisher.QoS(), true)
	} else {
		err = m.publisher.PublishJSON(stateTopic, ev.Client, true)
	}
	if err != nil {
		m.logger.Warn("failed to publish registration state",
			"endpoint", endpoint,
			"error", err,
		)
	}
}

// MetricsWriter is the InfluxDB surface used by MetricsRecorder.
// This is satisfied by *influxdb.Client.
type MetricsWriter interface {
	WriteRegistrationEvent(ev influxdb.RegistrationEvent)
	WriteRegistryStats(total, queued int)
}

// MetricsRecorder writes one point per event plus the registry size after it.
type MetricsRecorder struct {
	writer   MetricsWriter
	registry *Registry
}

// NewMetricsRecorder creates an observer writing to w. registry may be nil,
// in which case registry size is not recorded.
func NewMetricsRecorder(w MetricsWriter, registry *Registry) *MetricsRecorder {
	return &MetricsRecorder{writer: w, registry: registry}
}

// RegistrationChanged implements Observer.
func (m *MetricsRecorder) RegistrationChanged(_ context.Context, ev Event) {
	m.writer.WriteRegistrationEvent(influxdb.RegistrationEvent{
		Event:    string(ev.Type),
		Reason:   ev.Reason,
		Endpoint: ev.Client.Endpoint,
		Binding:  string(ev.Client.Binding),
		Version:  ev.Client.Version,
		Lifetime: ev.Client.Lifetime,
		Time:     ev.Time,
	})
	if m.registry != nil {
		stats := m.registry.Stats()
		m.writer.WriteRegistryStats(stats.Total, stats.Queued)
	}
}
