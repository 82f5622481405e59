package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/LamkasDev/sleepy-telemetry/telemetry"
	"github.com/gorilla/websocket"
	"github.com/jwalton/gchalk"
)

const (
	WebsocketMessageTypeAuth        string = "DAEMON_AUTH"
	WebsocketMessageTypeAuthSuccess string = "DAEMON_AUTH_SUCCESS"
	WebsocketMessageTypeAuthFailure string = "DAEMON_AUTH_FAILURE"

	WebsocketMessageTypeRequestRefresh      string = "DAEMON_REQUEST_REFRESH"
	WebsocketMessageTypeRequestRefreshReply string = "DAEMON_REQUEST_REFRESH_REPLY"

	WebsocketMessageTypeRequestStats      string = "DAEMON_REQUEST_STATS"
	WebsocketMessageTypeRequestStatsReply string = "DAEMON_REQUEST_STATS_REPLY"

	WebsocketMessageTypeRequestTrack      string = "DAEMON_REQUEST_TRACK"
	WebsocketMessageTypeRequestTrackReply string = "DAEMON_REQUEST_TRACK_REPLY"

	WebsocketMessageTypeRequestProcesses      string = "DAEMON_REQUEST_PROCESSES"
	WebsocketMessageTypeRequestProcessesReply string = "DAEMON_REQUEST_PROCESSES_REPLY"
)

const (
	WebsocketAuthFailureWrongToken      string = "WRONG_TOKEN"
	WebsocketAuthFailureVersionMismatch string = "VERSION_MISMATCH"
)

var (
	ErrWrongToken      = errors.New("server rejected the token")
	ErrVersionMismatch = errors.New("server requires a different daemon version")
	ErrNotConnected    = errors.New("not connected to the server")
)

type Session struct {
	ID   string
	Name string
}

type WebsocketMessage struct {
	Type string `json:"type"`
}

type WebsocketAuthMessage struct {
	Type    string `json:"type"`
	Token   string `json:"token"`
	Version string `json:"version"`
}

type WebsocketAuthSuccessMessage struct {
	Type string `json:"type"`
	ID   string `json:"id"`
	Name string `json:"name"`
}

type WebsocketAuthFailureMessage struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type WebsocketAuthFailureVersionMismatchMessage struct {
	Type    string `json:"type"`
	Reason  string `json:"reason"`
	Version string `json:"version"`
}

type WebsocketGPU struct {
	ID string `json:"id"`
	telemetry.GPU
}

type WebsocketRequestRefreshReplyMessage struct {
	Type   string                `json:"type"`
	System telemetry.SystemInfo  `json:"system"`
	CPU    telemetry.CPUTopology `json:"cpu"`
	GPUs   []WebsocketGPU        `json:"gpus"`
	Memory uint64                `json:"memory"`
}

type WebsocketGPUUsage struct {
	ID          string  `json:"id"`
	Utilization float32 `json:"utilization"`
}

type WebsocketGPUStats struct {
	Usage   float32             `json:"usage"`
	Devices []WebsocketGPUUsage `json:"devices"`
}

type WebsocketRequestStatsReplyMessage struct {
	Type   string                `json:"type"`
	CPU    telemetry.CPUUsage    `json:"cpu"`
	GPU    WebsocketGPUStats     `json:"gpu"`
	Memory telemetry.MemoryUsage `json:"memory"`
}

type WebsocketRequestTrackMessage struct {
	Type   string  `json:"type"`
	Task   string  `json:"task"`
	Target string  `json:"target"`
	Period float64 `json:"period"`
}

type WebsocketRequestTrackReplyMessage struct {
	Type  string                `json:"type"`
	Task  string                `json:"task"`
	Track *telemetry.UsageTrack `json:"track"`
	Error string                `json:"error,omitempty"`
}

type WebsocketRequestProcessesReplyMessage struct {
	Type      string                   `json:"type"`
	Processes []telemetry.Process      `json:"processes"`
	Groups    []telemetry.ProcessGroup `json:"groups"`
}

func ConnectWebsocket(handler *Handler) *websocket.Conn {
	u := handler.Config.SocketURL()
	SleepyLogLn("Connecting to %s...", u)

	ws, _, err := websocket.DefaultDialer.Dial(u, nil)
	if err != nil {
		SleepyWarnLn("Failed to connect (%s)! Reconnecting in %d s...", err.Error(), handler.Config.ReconnectTimeout)
		return nil
	}
	SleepyLogLn("Connected!")
	return ws
}

// setConnection swaps the connection used by SendWebsocketMessage. A nil ws
// also drops the session.
func setConnection(handler *Handler, ws *websocket.Conn) {
	handler.WSMutex.Lock()
	defer handler.WSMutex.Unlock()
	handler.WS = ws
	if ws == nil {
		handler.Session = nil
	}
}

func AuthWebsocket(handler *Handler) error {
	authMessage := WebsocketAuthMessage{
		Type:    WebsocketMessageTypeAuth,
		Token:   handler.Config.Token,
		Version: DaemonVersion,
	}
	return SendWebsocketMessage(handler, authMessage)
}

func SendWebsocketMessage(handler *Handler, message any) error {
	handler.WSMutex.Lock()
	defer handler.WSMutex.Unlock()
	if handler.WS == nil {
		return ErrNotConnected
	}
	if err := handler.WS.WriteJSON(message); err != nil {
		SleepyWarnLn("Failed to send websocket message! (%s)", err.Error())
		return err
	}
	return nil
}

// ProcessWebsocket reads messages until the connection drops or
// authentication fails. Tracks still running when it returns are cancelled.
func ProcessWebsocket(handler *Handler, ws *websocket.Conn) error {
	var tracks sync.WaitGroup
	defer tracks.Wait()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for {
		_, messageRaw, err := ws.ReadMessage()
		if err != nil {
			SleepyWarnLn("Disconnected (%s)! Reconnecting in %d s...", err.Error(), handler.Config.ReconnectTimeout)
			return err
		}
		var messageBase WebsocketMessage
		err = json.Unmarshal(messageRaw, &messageBase)
		if err != nil {
			SleepyWarnLn("Failed to parse websocket message! (%s)", err.Error())
			continue
		}
		SleepyDebugLn("Got message of type %s", messageBase.Type)

		switch messageBase.Type {
		case WebsocketMessageTypeAuthSuccess:
			var message WebsocketAuthSuccessMessage
			_ = json.Unmarshal(messageRaw, &message)
			handler.Session = &Session{
				ID:   message.ID,
				Name: message.Name,
			}
			SleepyLogLn("Logged in as %s! (id: %s)", handler.Session.Name, handler.Session.ID)
			InitSnapshot(handler)
		case WebsocketMessageTypeAuthFailure:
			var message WebsocketAuthFailureMessage
			_ = json.Unmarshal(messageRaw, &message)
			switch message.Reason {
			case WebsocketAuthFailureWrongToken:
				SleepyErrorLn("Incorrect token! Closing the daemon...")
				return ErrWrongToken
			case WebsocketAuthFailureVersionMismatch:
				var message WebsocketAuthFailureVersionMismatchMessage
				_ = json.Unmarshal(messageRaw, &message)
				SleepyWarnLn("Version mismatch! Current version %s is not the required %s!", gchalk.Red(DaemonVersion), gchalk.Green(message.Version))
				return fmt.Errorf("%w: %s", ErrVersionMismatch, message.Version)
			default:
				return fmt.Errorf("failed to auth: %s", message.Reason)
			}
		case WebsocketMessageTypeRequestRefresh:
			SendWebsocketMessage(handler, GetRefreshMessage(handler))
		case WebsocketMessageTypeRequestStats:
			SendWebsocketMessage(handler, GetStatsMessage(handler))
		case WebsocketMessageTypeRequestTrack:
			var message WebsocketRequestTrackMessage
			_ = json.Unmarshal(messageRaw, &message)
			tracks.Add(1)
			go func() {
				defer tracks.Done()
				reply := GetTrackMessage(ctx, handler, message)
				if ctx.Err() != nil {
					return
				}
				SendWebsocketMessage(handler, reply)
			}()
		case WebsocketMessageTypeRequestProcesses:
			SendWebsocketMessage(handler, GetProcessesMessage(ctx, handler))
		default:
			SleepyWarnLn("Unknown message type %s!", messageBase.Type)
		}
	}
}

func sessionID(handler *Handler) string {
	if handler.Session == nil {
		return ""
	}
	return handler.Session.ID
}

func GetRefreshMessage(handler *Handler) WebsocketRequestRefreshReplyMessage {
	message := WebsocketRequestRefreshReplyMessage{
		Type: WebsocketMessageTypeRequestRefreshReply,
		GPUs: []WebsocketGPU{},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		system, err := handler.Collector.SystemInfo()
		if err != nil {
			SleepyWarnLn("Failed to get system info! (%s)", err.Error())
		}
		message.System = system
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		message.CPU = handler.Collector.CPUTopology()
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		gpus, err := handler.Collector.GPUs()
		if err != nil {
			SleepyWarnLn("Failed to enumerate GPUs! (%s)", err.Error())
			return
		}
		for _, gpu := range gpus {
			message.GPUs = append(message.GPUs, WebsocketGPU{ID: GetGPUID(sessionID(handler), gpu), GPU: gpu})
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		memory, err := handler.Collector.Memory()
		if err != nil {
			SleepyWarnLn("Failed to get memory usage! (%s)", err.Error())
			return
		}
		message.Memory = memory.Total
	}()
	wg.Wait()

	return message
}

func GetStatsMessage(handler *Handler) WebsocketRequestStatsReplyMessage {
	SleepyDebugLn("Stats requested %v ms after the previous snapshot", time.Since(handler.LastSnapshot.Timestamp).Milliseconds())
	handler.LastSnapshot.Timestamp = time.Now()
	message := WebsocketRequestStatsReplyMessage{
		Type: WebsocketMessageTypeRequestStatsReply,
		GPU:  WebsocketGPUStats{Devices: []WebsocketGPUUsage{}},
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		usage, err := handler.Collector.CPUUsage()
		if err != nil {
			SleepyWarnLn("Failed to get CPU usage! (%s)", err.Error())
			return
		}
		message.CPU = usage
		handler.LastSnapshot.CPUUsage = usage
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		usages, err := handler.Collector.GPUUsage()
		if err != nil {
			SleepyWarnLn("Failed to get GPU usage! (%s)", err.Error())
			return
		}
		var total float32
		for _, usage := range usages {
			gpu := telemetry.GPU{PCISlot: usage.PCISlot, UUID: usage.UUID}
			message.GPU.Devices = append(message.GPU.Devices, WebsocketGPUUsage{
				ID:          GetGPUID(sessionID(handler), gpu),
				Utilization: usage.Utilization,
			})
			total += usage.Utilization
		}
		if len(usages) > 0 {
			message.GPU.Usage = total / float32(len(usages))
		}
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		memory, err := handler.Collector.Memory()
		if err != nil {
			SleepyWarnLn("Failed to get memory usage! (%s)", err.Error())
			return
		}
		message.Memory = memory
	}()
	wg.Wait()

	return message
}

func GetTrackMessage(ctx context.Context, handler *Handler, request WebsocketRequestTrackMessage) WebsocketRequestTrackReplyMessage {
	message := WebsocketRequestTrackReplyMessage{
		Type: WebsocketMessageTypeRequestTrackReply,
		Task: request.Task,
	}

	period := handler.Config.TrackPeriod(request.Period)
	SleepyDebugLn("Tracking %s usage for %v...", request.Target, period)
	track, err := handler.Collector.Track(ctx, request.Target, period)
	if err != nil {
		SleepyWarnLn("Failed to track %s usage! (%s)", request.Target, err.Error())
		message.Error = err.Error()
		if track.Count == 0 {
			return message
		}
	}
	message.Track = &track
	return message
}

func GetProcessesMessage(ctx context.Context, handler *Handler) WebsocketRequestProcessesReplyMessage {
	message := WebsocketRequestProcessesReplyMessage{
		Type:      WebsocketMessageTypeRequestProcessesReply,
		Processes: []telemetry.Process{},
		Groups:    []telemetry.ProcessGroup{},
	}
	processes, err := handler.Collector.Processes(ctx)
	if err != nil {
		SleepyWarnLn("Failed to list processes! (%s)", err.Error())
		return message
	}
	message.Processes = processes
	message.Groups = telemetry.GroupProcesses(processes)
	return message
}
