package main

import (
	"fmt"
	"io"
	"os"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/jwalton/gchalk"
)

var (
	logMutex  sync.Mutex
	logOutput io.Writer = os.Stdout
	logDebug  bool
)

// SetLogOutput redirects the sleepy logger and returns the previous writer.
func SetLogOutput(w io.Writer) io.Writer {
	logMutex.Lock()
	defer logMutex.Unlock()
	previous := logOutput
	logOutput = w
	return previous
}

func SetLogDebug(enabled bool) {
	logMutex.Lock()
	defer logMutex.Unlock()
	logDebug = enabled
}

func SleepyLogLn(format string, v ...any) {
	SleepyPrint("[info]", 2, format+"\n", v...)
}

func SleepyLog(format string, v ...any) {
	SleepyPrint("[info]", 2, format, v...)
}

func SleepyDebugLn(format string, v ...any) {
	logMutex.Lock()
	enabled := logDebug
	logMutex.Unlock()
	if !enabled {
		return
	}
	SleepyPrint(gchalk.Magenta("[debug]"), 2, format+"\n", v...)
}

func SleepyWarnLn(format string, v ...any) {
	SleepyPrint(gchalk.RGB(255, 136, 0)("[warn]"), 2, format+"\n", v...)
}

func SleepyErrorLn(format string, v ...any) {
	SleepyPrint(gchalk.Red("[error]"), 2, format+"\n", v...)
}

func SleepyPrint(level string, depth int, format string, v ...any) {
	hour, min, sec := time.Now().Clock()
	_, file, line, ok := runtime.Caller(depth)
	if !ok {
		file = "???"
		line = 0
	}
	file = file[(strings.LastIndex(file, "/") + 1):]

	logMutex.Lock()
	defer logMutex.Unlock()
	fmt.Fprintf(logOutput, "[%s] [%s] %s: %s", gchalk.Red(fmt.Sprintf("%02d:%02d:%02d", hour, min, sec)), gchalk.Blue(fmt.Sprintf("%s:%v", file, line)), level, fmt.Sprintf(format, v...))
}
