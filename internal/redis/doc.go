// Package redis stores the checkbox document in Redis.
//
// Every command passes through a metrics hook and a circuit breaker hook, so a Redis
// outage fails fast instead of stalling the persistence ticker.
package redis
