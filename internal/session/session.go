// Package session carries print triggers and progress over one websocket
// connection.
package session

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/orrn/labelrelay/internal/core"
)

const (
	DefaultTemplate = "standard"

	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 << 10
	outboxSize     = 64
)

const (
	EventPrintJob    = "print_job"
	EventPrintAll    = "print_all"
	EventPrintStatus = "print_status"
	EventPrintResult = "print_result"
)

// Printer runs print passes. *core.Orchestrator implements it.
type Printer interface {
	PrintJob(ctx context.Context, id core.JobID, template string, events chan<- core.Event) core.Outcome
	PrintAll(ctx context.Context, template string, events chan<- core.Event) core.BatchOutcome
}

type Message struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type printRequest struct {
	JobID    *core.JobID `json:"job_id"`
	Template string      `json:"template"`
}

type statusData struct {
	Message string `json:"message"`
}

type resultData struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

var Upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

type Options struct {
	DefaultTemplate string
	Logger          *slog.Logger
}

// Session serves one observer. Each trigger runs as its own pass; events
// of one pass reach the observer in emission order.
type Session struct {
	id              string
	conn            *websocket.Conn
	printer         Printer
	defaultTemplate string
	logger          *slog.Logger

	outbox   chan Message
	done     chan struct{}
	doneOnce sync.Once
	passes   sync.WaitGroup
}

func New(conn *websocket.Conn, printer Printer, opts Options) *Session {
	if opts.DefaultTemplate == "" {
		opts.DefaultTemplate = DefaultTemplate
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	id := uuid.NewString()
	return &Session{
		id:              id,
		conn:            conn,
		printer:         printer,
		defaultTemplate: opts.DefaultTemplate,
		logger:          opts.Logger.With("session_id", id),
		outbox:          make(chan Message, outboxSize),
		done:            make(chan struct{}),
	}
}

func (s *Session) ID() string {
	return s.id
}

// Serve blocks until the connection closes and every pass it started has
// finished. Passes are not cancelled when ctx or the connection ends.
func (s *Session) Serve(ctx context.Context) {
	s.logger.Info("observer connected", "remote", s.conn.RemoteAddr().String())

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		s.writeLoop()
	}()

	s.readLoop(context.WithoutCancel(ctx))

	s.closeDone()
	<-writerDone
	s.conn.Close()
	s.passes.Wait()
	s.logger.Info("observer disconnected")
}

func (s *Session) readLoop(ctx context.Context) {
	s.conn.SetReadLimit(maxMessageSize)
	s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Warn("websocket read failed", "error", err)
			}
			return
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Warn("ignoring malformed message", "error", err)
			continue
		}
		s.dispatch(ctx, msg)
	}
}

func (s *Session) dispatch(ctx context.Context, msg Message) {
	var req printRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			s.logger.Warn("invalid trigger payload", "event", msg.Event, "error", err)
			s.send(resultMessage(core.ResultEvent(false, "Invalid request: %v", err)))
			return
		}
	}
	template := req.Template
	if template == "" {
		template = s.defaultTemplate
	}

	switch msg.Event {
	case EventPrintJob:
		if req.JobID == nil || *req.JobID == "" {
			s.send(resultMessage(core.ResultEvent(false, "Missing job_id")))
			return
		}
		id := *req.JobID
		s.logger.Info("print job requested", "job_id", id.String(), "template", template)
		s.startPass(func(events chan<- core.Event) {
			s.printer.PrintJob(ctx, id, template, events)
		})
	case EventPrintAll:
		s.logger.Info("print all requested", "template", template)
		s.startPass(func(events chan<- core.Event) {
			s.printer.PrintAll(ctx, template, events)
		})
	default:
		s.logger.Warn("ignoring unknown event", "event", msg.Event)
	}
}

// startPass runs fn in its own goroutine and forwards its events in order.
// Events keep being drained after the observer leaves so the pass can finish.
func (s *Session) startPass(fn func(events chan<- core.Event)) {
	events := make(chan core.Event, 16)
	s.passes.Add(2)
	go func() {
		defer s.passes.Done()
		defer close(events)
		fn(events)
	}()
	go func() {
		defer s.passes.Done()
		for ev := range events {
			s.send(encode(ev))
		}
	}()
}

func (s *Session) send(msg Message) {
	select {
	case <-s.done:
		return
	default:
	}
	select {
	case s.outbox <- msg:
	case <-s.done:
	}
}

func (s *Session) writeLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-s.done:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			s.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-s.outbox:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(msg); err != nil {
				s.logger.Warn("websocket write failed", "error", err)
				s.fail()
				return
			}
		case <-ticker.C:
			s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.fail()
				return
			}
		}
	}
}

// fail stops delivery and unblocks the read loop.
func (s *Session) fail() {
	s.closeDone()
	s.conn.Close()
}

func (s *Session) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}

func encode(ev core.Event) Message {
	if ev.Kind == core.EventResult {
		return resultMessage(ev)
	}
	data, _ := json.Marshal(statusData{Message: ev.Message})
	return Message{Event: EventPrintStatus, Data: data}
}

func resultMessage(ev core.Event) Message {
	data, _ := json.Marshal(resultData{Success: ev.Success, Message: ev.Message})
	return Message{Event: EventPrintResult, Data: data}
}
