// jvmcore-demo boots a thread pool with two demo threads and logs
// scheduling and status-transition decisions as they run, to show the
// round-robin scheduler, a method return, thread termination, and the
// pool's empty callback live. The demo threads make no invokes, take
// no monitors, and throw no exceptions.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/jvmcore/jvmcore/vm"
)

func main() {
	configPath := flag.String("config", "jvmcore.toml", "scheduler config file")
	debug := flag.Bool("debug", false, "enable debug-only invariant assertions")
	verbose := flag.Bool("v", false, "verbose (debug-level) logging")
	flag.Parse()

	level := slog.LevelInfo
	if *verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	cfg, err := vm.LoadSchedulerConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "jvmcore-demo: loading %s: %v\n", *configPath, err)
		os.Exit(1)
	}
	cfg.Debug = cfg.Debug || *debug

	pool := vm.NewPool(cfg, vm.NewDemoOpcodeTable())
	pool.Log = logger
	pool.Debug = cfg.Debug

	done := make(chan struct{})
	pool.SetEmptyCallback(func() {
		logger.Info("pool empty, shutting down")
		close(done)
	})

	monitor := vm.NewMonitor(pool)
	classLoader := vm.NewStaticClassLoader(pool)
	classLoader.Register("java/lang/Exception")
	classLoader.Register("java/lang/RuntimeException", "java/lang/Exception")
	classLoader.Register("java/lang/NullPointerException", "java/lang/RuntimeException", "java/lang/Exception")

	runA := spawnDemoThread(pool, classLoader, monitor, logger, "worker-A", false)
	runB := spawnDemoThread(pool, classLoader, monitor, logger, "worker-B", false)

	runA.SetStatus(vm.Runnable)
	runB.SetStatus(vm.Runnable)

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		logger.Warn("demo timed out waiting for pool to go empty")
	}
	pool.Shutdown()
}

// spawnDemoThread registers a new thread running a tiny method that
// returns a sentinel int, demonstrating opIReturn/AsyncReturn and the
// S1 round-robin scenario across two such threads.
func spawnDemoThread(pool *vm.Pool, cl vm.ClassLoader, mon vm.Monitor, logger *slog.Logger, name string, daemon bool) *vm.Thread {
	bridge := vm.NewSimpleThreadBridge(daemon, mon, func(exc vm.Value) {
		logger.Error("uncaught exception", "thread", name, "exc", fmt.Sprint(exc))
	})
	th := vm.NewThread(pool, bridge, cl, daemon)
	pool.AddThread(th)

	method := vm.NewCompiledMethodBuilder("Demo", "run", "()I").
		ReturnType(vm.TypeInt).
		Code([]byte{vm.OpNop, vm.OpIReturn}, 1, 0).
		Build()

	frame := vm.NewBytecodeFrame(method, nil)
	frame.Stack = append(frame.Stack, vm.Value{Kind: vm.KindInt, Num: 42})
	th.PushFrame(frame)
	return th
}
