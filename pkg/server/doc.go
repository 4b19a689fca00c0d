// Package server runs the HTTP listener for metrics and health endpoints in
// long-running dbxport processes.
//
// Start blocks until its context is done and then shuts down gracefully,
// giving in-flight scrapes up to Config.ShutdownTimeout to finish:
//
//	mux := http.NewServeMux()
//	mux.Handle("/metrics", collector.Handler())
//	srv := server.New(server.Config{ListenAddress: "127.0.0.1:9187"}, mux, logger)
//	go func() { errChan <- srv.Start(ctx) }()
package server
