// Package mqtt provides MQTT client connectivity for Device Core.
//
// It wraps the Eclipse Paho MQTT client with:
//   - Connection management with automatic reconnection
//   - Last Will and Testament (LWT) for offline detection
//   - Subscription tracking and restoration after reconnect
//   - Panic recovery in message handlers
//
// # Architecture
//
// Device Core uses MQTT as the message bus connecting the registry to
// subsystem daemons (the per-protocol processes that discover devices
// and answer removal confirmation requests). The broker (Mosquitto) is
// the rendezvous point:
//
//	Device Core ↔ MQTT Broker ↔ Subsystem Daemons
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	// Subscribe to removal verdicts for one domain
//	err = client.Subscribe(mqtt.Topics{}.AllRemovalResponses("hue"), 1,
//	    func(topic string, payload []byte) error {
//	        // correlate by request ID and deliver
//	        return nil
//	    })
//
//	// Publish a registry change event
//	topic := mqtt.Topics{}.DeviceEvent("device.removed")
//	err = client.Publish(topic, payload, 1, false)
//
// # Topic Scheme
//
// All topics live under devicecore/; see topics.go for the builders.
package mqtt
