// Package shutdown provides graceful shutdown handling.
//
// A Handler turns SIGINT/SIGTERM into context cancellation and then runs
// the registered hooks in reverse registration order under a timeout:
//
//	h := shutdown.NewHandler(10 * time.Second)
//	ctx, stop := h.Notify(context.Background())
//	defer stop()
//	h.OnShutdown("metrics", srv.Shutdown)
//	runner.Run(ctx)
//	return h.Shutdown()
package shutdown
