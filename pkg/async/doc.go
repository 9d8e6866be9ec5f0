// Package async provides panic-safe helpers for fire-and-forget background
// work, used for mail dispatch and other side effects that must never fail
// the request that triggered them.
package async
