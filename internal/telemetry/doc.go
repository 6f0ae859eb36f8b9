// Package telemetry bridges machine-reported readings from MQTT into
// the metrics store.
//
// Approved machines publish a flat JSON object of numeric readings on
// their telemetry topic, for example:
//
//	{"stock_level": 42, "cabinet_temp_c": 4.5, "sales_today": 17}
//
// The Collector subscribes to the wildcard device telemetry topic and
// writes one point per reading, tagged with the device ID taken from
// the topic. Malformed payloads are dropped; the subscription stays up.
package telemetry
