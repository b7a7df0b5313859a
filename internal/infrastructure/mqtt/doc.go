// Package mqtt wraps the paho MQTT client as the gateway's device bus.
//
// The gateway subscribes to device telemetry and publishes device commands
// through a single Client. Subscriptions survive reconnects, handlers are
// protected against panics, and a retained online/offline marker (with a
// Last Will for crashes) is kept on the gateway status topic.
//
//	client, err := mqtt.Connect(cfg.MQTT, cfg.Topics.GatewayStatus)
//	if err != nil {
//	    return err // broker unreachable at startup is fatal
//	}
//	defer client.Close()
//
//	err = client.Subscribe("home/sensor/data", 0, func(topic string, payload []byte) error {
//	    return nil
//	})
package mqtt
