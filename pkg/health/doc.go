// Package health runs named dependency checks and serves probe endpoints.
//
// [Run] executes a set of [Checks] in parallel under one timeout and
// returns an aggregated [Response]. mailgate embeds that report in its
// /health payload. [LivenessHandler] and [ReadinessHandler] expose the
// same checks as plain probes for orchestrators:
//
//	r.Get("/health/live", health.LivenessHandler())
//	r.Get("/health/ready", health.ReadinessHandler(health.Checks{
//	    "redis": redis.Healthcheck(client),
//	}))
//
// Probes answer "OK" or "Service Unavailable" as plain text, or JSON when
// the request sets Accept: application/json or ?format=json:
//
//	{
//	  "status": "unhealthy",
//	  "checks": {
//	    "redis": {"status": "unhealthy", "error": "connection refused", "latency": "2ms"}
//	  }
//	}
package health
