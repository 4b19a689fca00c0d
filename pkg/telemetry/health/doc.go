// Package health serves liveness and readiness probes for long-running
// dbxport processes.
//
// A Checker holds named readiness checks, such as whether the scheduler is
// running or whether a configured database accepts connections. Checks run
// concurrently, each bounded by the checker's timeout.
//
// # Endpoints
//
//	GET /health   always 200 while the process is up
//	GET /ready    200 when every check passes, 503 otherwise
//	GET /version  build information
//
// Example readiness response:
//
//	{
//	    "status": "degraded",
//	    "checks": {
//	        "scheduler": {"status": "ok"},
//	        "connection:warehouse": {"status": "unhealthy", "message": "connection refused"}
//	    },
//	    "timestamp": "2026-05-01T03:00:00Z"
//	}
package health
