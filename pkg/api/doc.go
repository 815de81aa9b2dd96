// Package api exposes the metering engine over HTTP with a chi router:
// billing webhooks, on-demand reconciliation, tenant lookups and health
// probes. Webhook responses follow the processors' redelivery contract:
// 2xx once the event is recorded (or is a duplicate), 400 for a payload
// that will never verify, 5xx for anything worth retrying.
package api
