// Package billing provides the payment gateway abstraction for seat-based
// subscriptions. Seat adjustments are pushed to the gateway before the
// organization record changes; gateway failures abort the operation that
// triggered them and are wrapped in GatewayError so only a generic message
// reaches callers.
package billing
