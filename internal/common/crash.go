// -----------------------------------------------------------------------
// Crash Protection - last-resort panic capture with on-disk reports
// -----------------------------------------------------------------------

package common

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"
)

// CrashLogDir receives crash reports. InstallCrashHandler may override it.
var CrashLogDir = "./logs"

// InstallCrashHandler prepares the crash report directory. Call it first
// thing in main, paired with a deferred RecoverWithCrashFile.
func InstallCrashHandler(logDir string) {
	if logDir != "" {
		CrashLogDir = logDir
	}
	if err := os.MkdirAll(CrashLogDir, 0755); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create log directory: %v\n", err)
	}
}

// RecoverWithCrashFile is the deferred half of crash protection: it
// recovers a panic, writes the report, and exits non-zero.
//
// Usage: defer common.RecoverWithCrashFile()
func RecoverWithCrashFile() {
	if r := recover(); r != nil {
		WriteCrashFile(r, GetStackTrace())
		os.Exit(1)
	}
}

// WriteCrashFile writes a crash report for panicVal to CrashLogDir and
// returns the file path. On any write failure the report goes to stderr
// instead, so it is never lost entirely.
func WriteCrashFile(panicVal interface{}, stackTrace string) string {
	crashPath := filepath.Join(CrashLogDir,
		fmt.Sprintf("crash-%s.log", time.Now().Format("2006-01-02T15-04-05")))

	report := buildCrashReport(panicVal, stackTrace)

	// Unbuffered writes; buffered IO is not trustworthy mid-crash.
	file, err := os.OpenFile(crashPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to create crash file: %v\n", err)
		fmt.Fprint(os.Stderr, report)
		return ""
	}
	if _, err = file.WriteString(report); err != nil {
		fmt.Fprintf(os.Stderr, "CRASH: Failed to write crash file: %v\n", err)
		fmt.Fprint(os.Stderr, report)
	}
	file.Sync()
	file.Close()

	fmt.Fprintf(os.Stderr, "\n!!! FATAL CRASH - Report saved to: %s !!!\n", crashPath)
	fmt.Fprintf(os.Stderr, "Panic: %v\n", panicVal)

	return crashPath
}

func buildCrashReport(panicVal interface{}, stackTrace string) string {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	var b strings.Builder

	b.WriteString("=== AESTIMO CRASH REPORT ===\n")
	fmt.Fprintf(&b, "Time: %s\n", time.Now().Format(time.RFC3339))
	fmt.Fprintf(&b, "Version: %s\n\n", GetFullVersion())

	b.WriteString("=== PANIC VALUE ===\n")
	fmt.Fprintf(&b, "%v\n\n", panicVal)

	b.WriteString("=== SYSTEM INFO ===\n")
	fmt.Fprintf(&b, "NumGoroutine: %d\n", runtime.NumGoroutine())
	fmt.Fprintf(&b, "NumCPU: %d\n", runtime.NumCPU())
	fmt.Fprintf(&b, "GOOS: %s\n", runtime.GOOS)
	fmt.Fprintf(&b, "GOARCH: %s\n", runtime.GOARCH)
	fmt.Fprintf(&b, "Alloc: %d MB\n", memStats.Alloc/1024/1024)
	fmt.Fprintf(&b, "Sys: %d MB\n", memStats.Sys/1024/1024)
	fmt.Fprintf(&b, "NumGC: %d\n\n", memStats.NumGC)

	b.WriteString("=== STACK TRACE ===\n")
	b.WriteString(stackTrace)
	b.WriteString("\n")

	b.WriteString("=== ALL GOROUTINES ===\n")
	b.WriteString(GetAllGoroutineStacks())
	b.WriteString("\n")

	b.WriteString("=== END CRASH REPORT ===\n")
	return b.String()
}

// GetStackTrace returns the current goroutine's stack.
func GetStackTrace() string {
	buf := make([]byte, 8192)
	n := runtime.Stack(buf, false)
	return string(buf[:n])
}

// GetAllGoroutineStacks dumps every goroutine's stack, growing the
// buffer until the dump fits (capped at 64MB).
func GetAllGoroutineStacks() string {
	buf := make([]byte, 64*1024)
	for {
		n := runtime.Stack(buf, true)
		if n < len(buf) {
			return string(buf[:n])
		}
		buf = make([]byte, len(buf)*2)
		if len(buf) > 64*1024*1024 {
			return string(buf[:runtime.Stack(buf, true)])
		}
	}
}
