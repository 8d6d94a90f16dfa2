// Package redis keeps shared action kit state in Redis: the x402 service
// registry and the x402 discovery cache.
package redis
