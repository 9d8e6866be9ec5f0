// Package observability provides structured logging, Prometheus metrics, and
// health checks.
//
// # Structured Logging
//
// Create logger:
//
//	logger := observability.NewLogger(observability.InfoLevel, os.Stdout)
//	logger.Info("server started")
//
// Context-aware logging:
//
//	logger.WithField("org_id", orgID).WithError(err).Error("invite failed")
//
// # Prometheus Metrics
//
// Initialize metrics:
//
//	metrics := observability.NewMetrics(prometheus.NewRegistry())
//	metrics.RecordMembershipOperation("invite", err)
//	metrics.HTTPRequestsTotal.WithLabelValues("GET", "/organizations", "200").Inc()
//
// # Health Checks
//
// Configure health checker:
//
//	checker := observability.NewHealthChecker(db, redisClient)
//	mux.HandleFunc("/healthz", checker.Liveness)
//	mux.HandleFunc("/readyz", checker.Readiness)
//
// # Graceful Shutdown
//
// The ShutdownManager drains the HTTP server and runs registered cleanup
// functions on SIGINT/SIGTERM.
package observability
