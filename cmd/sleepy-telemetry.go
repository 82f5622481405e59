package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"sync"
	"time"

	"github.com/LamkasDev/sleepy-telemetry/telemetry"
	"github.com/gorilla/websocket"
)

const DaemonVersion = "1.0.0"

type Handler struct {
	Directory    string
	Config       Config
	Collector    *telemetry.Collector
	LastSnapshot HandlerSnapshot
	WSMutex      *sync.Mutex
	WS           *websocket.Conn
	Session      *Session
}

// NewHandler builds a handler and its collector from config.
func NewHandler(config Config, options ...telemetry.CollectorOption) Handler {
	var handler Handler
	handler.Directory, _ = os.Getwd()
	handler.Config = config
	handler.WSMutex = &sync.Mutex{}

	collectorOptions := []telemetry.CollectorOption{}
	if interval := config.SampleDuration(); interval > 0 {
		collectorOptions = append(collectorOptions, telemetry.WithTrackInterval(interval))
	}
	if !config.GPU {
		collectorOptions = append(collectorOptions, telemetry.WithGPUProbers())
	}
	handler.Collector = telemetry.NewCollector(append(collectorOptions, options...)...)
	return handler
}

func CreateHandler(configName string) Handler {
	directory, _ := os.Getwd()
	config, err := LoadConfig(filepath.Join(directory, "config", configName))
	if err != nil {
		SleepyErrorLn("Failed to load config! Make sure you launched the daemon from the correct folder! (%s)", err.Error())
		os.Exit(1)
	}
	return NewHandler(config)
}

// createLocalHandler is CreateHandler for the local modes, which also work
// without a config file.
func createLocalHandler(configName string) Handler {
	directory, _ := os.Getwd()
	config, err := LoadConfig(filepath.Join(directory, "config", configName))
	if err != nil {
		SleepyDebugLn("Using default config (%s)", err.Error())
		config = NewConfig()
	}
	return NewHandler(config)
}

func main() {
	// Flags Setup
	flagConfigName := flag.String("config", "default.json", "a config file")
	flagVersion := flag.Bool("v", false, "prints current daemon version")
	flagDebug := flag.Bool("d", false, "runs in debug mode")
	flagReport := flag.Bool("report", false, "prints a summary of the host and exits")
	flagTrack := flag.Float64("track", 0, "tracks usage for the given number of seconds and exits")
	flagTarget := flag.String("target", telemetry.TargetCPU, "usage to track or watch (cpu or gpu)")
	flagWatch := flag.Bool("watch", false, "prints usage until interrupted")
	flag.Parse()
	if *flagVersion {
		fmt.Printf("sleepy-telemetry v%s\n", DaemonVersion)
		os.Exit(0)
	}
	if *flagDebug {
		SetLogDebug(true)
		dir, _ := os.Getwd()
		f, err := os.Create(filepath.Join(dir, "temp", "cpu.prof"))
		if err != nil {
			log.Fatal(err)
			return
		}
		pprof.StartCPUProfile(f)
		SleepyLogLn("Running in debug mode...")
	}

	// Interrupt Setup
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	switch {
	case *flagReport:
		handler := createLocalHandler(*flagConfigName)
		err := PrintReport(ctx, os.Stdout, handler.Collector, time.Second)
		if err != nil {
			SleepyErrorLn("Failed to build report! (%s)", err.Error())
		}
		closeDaemon(&handler)
	case *flagTrack > 0:
		handler := createLocalHandler(*flagConfigName)
		track, err := handler.Collector.Track(ctx, *flagTarget, time.Duration(*flagTrack*float64(time.Second)))
		if err != nil && track.Count == 0 {
			SleepyErrorLn("Failed to track %s usage! (%s)", *flagTarget, err.Error())
		} else {
			PrintTrack(os.Stdout, track)
		}
		closeDaemon(&handler)
	case *flagWatch:
		handler := createLocalHandler(*flagConfigName)
		interval := handler.Config.SampleDuration()
		if interval < time.Second {
			interval = time.Second
		}
		if err := RunWatch(ctx, os.Stdout, handler.Collector, *flagTarget, interval); err != nil {
			SleepyErrorLn("Failed to watch %s usage! (%s)", *flagTarget, err.Error())
		}
		closeDaemon(&handler)
	}

	// Handler
	handler := CreateHandler(*flagConfigName)

	// Websocket processing
	wsLoop := func() {
		for {
			// Connect websocket to server
			ws := ConnectWebsocket(&handler)
			if ws != nil {
				setConnection(&handler, ws)

				// Authenticate and process messages (blocking)
				err := AuthWebsocket(&handler)
				if err == nil {
					err = ProcessWebsocket(&handler, ws)
				}
				ws.Close()
				if errors.Is(err, ErrWrongToken) {
					closeDaemon(&handler)
				}

				// Something happened, so let's prepare for a fresh start
				setConnection(&handler, nil)
			}

			// After ReconnectTimeout passed, try again
			time.Sleep(time.Second * time.Duration(handler.Config.ReconnectTimeout))
		}
	}
	go wsLoop()

	// Wait for exit
	<-ctx.Done()
	closeDaemon(&handler)
}

func closeDaemon(handler *Handler) {
	closeDaemonNoExit(handler)
	pprof.StopCPUProfile()
	os.Exit(0)
}

func closeDaemonNoExit(handler *Handler) {
	if handler.Collector != nil {
		handler.Collector.Close()
	}
	if handler.WSMutex == nil {
		return
	}
	handler.WSMutex.Lock()
	defer handler.WSMutex.Unlock()
	if handler.WS != nil {
		// let the server drop the session instead of timing it out
		err := handler.WS.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		if err != nil {
			SleepyWarnLn("write close: %s", err.Error())
			return
		}
		SleepyLogLn("Closed connection!")
	}
}
