package mqtt

import "fmt"

// TopicPrefix is the root of every Gray Logic Sync topic.
//
// Hierarchy:
//
//	graysync/advert/{service}            advertisement mirror (JSON, not retained)
//	graysync/state/{service}/{resource}  per-resource state (JSON, retained)
//	graysync/status/{client_id}          online/offline status and LWT (retained)
const TopicPrefix = "graysync"

// Topics provides builders for Gray Logic Sync MQTT topics.
//
//	topics := mqtt.Topics{}
//	topic := topics.Advert("kitchen")
//	// Returns: "graysync/advert/kitchen"
type Topics struct{}

// Advert returns the advertisement topic for a service.
//
// Example: graysync/advert/kitchen
func (Topics) Advert(service string) string {
	return fmt.Sprintf("%s/advert/%s", TopicPrefix, service)
}

// State returns the retained state topic for one resource of a service.
//
// Example: graysync/state/kitchen/tempA
func (Topics) State(service, resource string) string {
	return fmt.Sprintf("%s/state/%s/%s", TopicPrefix, service, resource)
}

// Status returns the online/offline status topic for a client.
//
// Example: graysync/status/graysync-kitchen-1a2b3c4d
func (Topics) Status(clientID string) string {
	return fmt.Sprintf("%s/status/%s", TopicPrefix, clientID)
}

// AllAdverts returns a pattern matching every service's advertisements.
//
// Pattern: graysync/advert/+
func (Topics) AllAdverts() string {
	return fmt.Sprintf("%s/advert/+", TopicPrefix)
}
