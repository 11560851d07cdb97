// Package mqtt wraps paho.mqtt.golang for GeoControl.
//
// Gateways publish readings to {prefix}/{networkCode}/{gatewayMac}/{sensorMac};
// the ingest package subscribes to the wildcard form of that topic through
// this client. The client also maintains a retained status document on
// geocontrol/system/status, set to offline by the broker via Last Will when
// the service disappears without disconnecting.
//
// Subscriptions are tracked and replayed after every reconnect. Handlers run
// on paho's goroutines and are wrapped with panic recovery.
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	topic := mqtt.Topics{}.AllSensorMeasurements(cfg.Ingest.TopicPrefix)
//	err = client.Subscribe(topic, byte(cfg.MQTT.QoS), handler)
package mqtt
