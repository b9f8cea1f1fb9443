// Package mqtt publishes LWM2M registration events to an MQTT broker.
//
// This package manages:
//   - Connection to the broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Last Will and Testament (LWT) for offline detection
//   - Topic builders for the lwm2m/ hierarchy
//
// # Topics
//
//	lwm2m/rd/{endpoint}/registered|updated|deregistered
//	lwm2m/rd/{endpoint}/state      (retained)
//	lwm2m/system/status            (retained, LWT)
//
// Endpoint names are escaped so each occupies exactly one topic level.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.RegistrationEvent("node-1", "registered")
//	err = client.PublishJSON(topic, event, false)
package mqtt
