package mqtt

import (
	"fmt"
	"strings"
)

// Topic prefixes for the LWM2M server's MQTT hierarchy.
//
//	lwm2m/rd/{endpoint}/{event}   registration events (not retained)
//	lwm2m/rd/{endpoint}/state     current registration (retained)
//	lwm2m/system/status           server online/offline (retained, LWT)
const (
	// TopicPrefix is the base for all server topics.
	TopicPrefix = "lwm2m"

	// TopicPrefixRegistration is the base for per-endpoint registration topics.
	TopicPrefixRegistration = "lwm2m/rd"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "lwm2m/system"
)

// Topics provides builders for the server's MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.RegistrationEvent("node-1", "registered")
//	// Returns: "lwm2m/rd/node-1/registered"
type Topics struct{}

// =============================================================================
// Registration Topics
// =============================================================================

// RegistrationEvent returns the topic for one lifecycle event of an endpoint.
//
// Example: lwm2m/rd/node-1/deregistered
func (Topics) RegistrationEvent(endpoint, event string) string {
	return fmt.Sprintf("%s/%s/%s", TopicPrefixRegistration, EscapeSegment(endpoint), EscapeSegment(event))
}

// RegistrationState returns the retained topic holding an endpoint's
// current registration. An empty retained payload clears it.
//
// Example: lwm2m/rd/node-1/state
func (Topics) RegistrationState(endpoint string) string {
	return fmt.Sprintf("%s/%s/state", TopicPrefixRegistration, EscapeSegment(endpoint))
}

// =============================================================================
// System Topics
// =============================================================================

// SystemStatus returns the server status topic.
//
// Example: lwm2m/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// =============================================================================
// Wildcard Patterns for Subscriptions
// =============================================================================

// AllRegistrationEvents returns a pattern matching every registration topic.
//
// Pattern: lwm2m/rd/+/+
func (Topics) AllRegistrationEvents() string {
	return TopicPrefixRegistration + "/+/+"
}

// AllTopics returns a pattern matching all server topics.
//
// Pattern: lwm2m/#
func (Topics) AllTopics() string {
	return TopicPrefix + "/#"
}

// segmentReplacer maps characters that are not allowed inside a single MQTT
// topic level.
var segmentReplacer = strings.NewReplacer("/", "_", "+", "_", "#", "_", "\x00", "_")

// EscapeSegment makes s safe to use as exactly one topic level.
// Endpoint names are client supplied and may contain '/', '+' or '#'.
func EscapeSegment(s string) string {
	if s == "" {
		return "_"
	}
	return segmentReplacer.Replace(s)
}
