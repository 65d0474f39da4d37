package mqtt

import "fmt"

// Topic prefixes for the Device Core MQTT surface.
//
// All topics live under the devicecore/ root:
//
//	devicecore/system/status                          - service online/offline (retained)
//	devicecore/event/{event_type}                     - registry change events
//	devicecore/removal/request/{domain}/{request_id}  - removal confirmation requests to daemons
//	devicecore/removal/response/{domain}/{request_id} - removal verdicts from daemons
const (
	// TopicPrefix is the base for all Device Core topics.
	TopicPrefix = "devicecore"

	// TopicPrefixSystem is the base for system topics.
	TopicPrefixSystem = "devicecore/system"

	// TopicPrefixEvent is the base for registry event topics.
	TopicPrefixEvent = "devicecore/event"

	// TopicPrefixRemoval is the base for the removal gate topics.
	TopicPrefixRemoval = "devicecore/removal"
)

// Topics provides builders for Device Core MQTT topics.
// Using these helpers ensures consistent topic naming across the codebase.
type Topics struct{}

// SystemStatus returns the topic for service online/offline status.
// Published retained so new subscribers see the last known state.
//
// Example: devicecore/system/status
func (Topics) SystemStatus() string {
	return TopicPrefixSystem + "/status"
}

// DeviceEvent returns the topic for a registry change event.
// The event type is the dotted registry event name.
//
// Example: devicecore/event/device.removed
func (Topics) DeviceEvent(eventType string) string {
	return fmt.Sprintf("%s/%s", TopicPrefixEvent, eventType)
}

// RemovalRequest returns the topic a removal confirmation request is
// published to. Each request carries a unique request ID so responses
// can be correlated.
//
// Example: devicecore/removal/request/hue/req-abc123
func (Topics) RemovalRequest(domain, requestID string) string {
	return fmt.Sprintf("%s/request/%s/%s", TopicPrefixRemoval, domain, requestID)
}

// RemovalResponse returns the topic a daemon publishes its removal
// verdict to.
//
// Example: devicecore/removal/response/hue/req-abc123
func (Topics) RemovalResponse(domain, requestID string) string {
	return fmt.Sprintf("%s/response/%s/%s", TopicPrefixRemoval, domain, requestID)
}

// AllRemovalResponses returns the wildcard subscription covering every
// removal verdict for one domain.
//
// Example: devicecore/removal/response/hue/+
func (Topics) AllRemovalResponses(domain string) string {
	return fmt.Sprintf("%s/response/%s/+", TopicPrefixRemoval, domain)
}
