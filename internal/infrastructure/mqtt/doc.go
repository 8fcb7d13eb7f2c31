// Package mqtt provides MQTT client connectivity for Gray Logic Sync.
//
// This package manages:
//   - Connection to a Mosquitto broker with auto-reconnect
//   - Message publishing with QoS guarantees
//   - Topic subscriptions with wildcard support
//   - Last Will and Testament (LWT) for offline detection
//
// # Architecture
//
// MQTT is an optional second advertisement channel. Multicast does not
// cross routers; a shared broker does. Publishers mirror every
// advertisement to graysync/advert/{service} and subscribers can follow
// remote services from the same topic.
//
//	Publisher → multicast group ┐
//	          → MQTT broker ────┴→ Subscribers
//
// # Security Considerations
//
//   - Enable TLS (cfg.Broker.TLS=true) when the broker is not local
//   - Credentials are validated against the broker ACL
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllAdverts(), 0,
//	    func(topic string, payload []byte) error {
//	        log.Printf("advert on %s", topic)
//	        return nil
//	    })
package mqtt
