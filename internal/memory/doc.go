// Package memory keeps the service inside its container memory limit.
//
// [ConfigureFromEnv] sets GOMEMLIMIT from MEMORY_LIMIT, leaving part of the
// container for encoder child processes that the Go runtime cannot see.
//
// [Monitor] samples heap usage and gates new conversions: while usage is
// above the critical mark, [Monitor.Wait] blocks until it falls below the
// resume mark or the caller's context ends.
//
//	mon := memory.NewMonitor(memory.DefaultConfig())
//	mon.Start()
//	defer mon.Stop()
//
//	if err := mon.Wait(r.Context()); err != nil {
//	    return // client went away while waiting
//	}
package memory
