// Package shutdown coordinates graceful process termination.
//
// A Handler starts listening for SIGINT and SIGTERM when it is created.
// Long-running loops take Context and stop when it is cancelled; cleanup
// runs in hooks registered with OnShutdown, newest first, under a shared
// timeout. A component that fails fatally calls Trigger so the process
// winds down the same way.
//
//	h := shutdown.NewHandler(30 * time.Second)
//	h.OnShutdown("store", store.Close)
//	go func() { h.Trigger(bot.Run(h.Context())) }()
//	return h.Wait()
package shutdown
