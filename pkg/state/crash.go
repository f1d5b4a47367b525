package state

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"enceladus/pkg/state/logger"
)

// WriteCrashDump records reason, err and every goroutine stack under the
// crash directory and returns the dump path.
func WriteCrashDump(reason string, err error) (string, error) {
	crashDir := PathsVar.Crash
	if crashDir == "" {
		return "", fmt.Errorf("crash path not initialized")
	}
	if e := os.MkdirAll(crashDir, 0o700); e != nil {
		return "", e
	}

	dumpPath := filepath.Join(crashDir, fmt.Sprintf("crash-%d.log", time.Now().UnixNano()))
	f, ferr := os.Create(dumpPath)
	if ferr != nil {
		return "", ferr
	}
	defer f.Close()

	fmt.Fprintf(f, "time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(f, "reason: %s\n", reason)
	if err != nil {
		fmt.Fprintf(f, "error: %v\n", err)
	}
	fmt.Fprintf(f, "\n--- goroutine stacks ---\n")
	buf := make([]byte, 1<<20)
	n := runtime.Stack(buf, true)
	f.Write(buf[:n])
	return dumpPath, nil
}

// Crash writes a crash dump and terminates the process.
func Crash(reason string, err error) {
	path, derr := WriteCrashDump(reason, err)
	if derr != nil {
		logger.Error("crash_dump_failed", "reason", reason, "error", err, "dump_error", derr)
		os.Exit(1)
	}
	logger.Error("crash_dump_written_exiting", "path", path, "reason", reason, "error", err)
	os.Exit(1)
}
