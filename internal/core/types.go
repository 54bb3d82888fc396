package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net"
	"strconv"
	"strings"
	"time"
)

type JobStatus string

const (
	JobStatusPending JobStatus = "pending"
	JobStatusDone    JobStatus = "done"
	JobStatusError   JobStatus = "error"
)

// PassState is the position of one job inside a print pass.
type PassState string

const (
	StateFetched      PassState = "fetched"
	StateRendering    PassState = "rendering"
	StateTransmitting PassState = "transmitting"
	StateReporting    PassState = "reporting"
	StateDone         PassState = "done"
	StateError        PassState = "error"
)

// JobID is the remote identifier of a job. Odoo sends integers, but any
// string is accepted.
type JobID string

func (id JobID) String() string {
	return string(id)
}

func (id JobID) numeric() bool {
	_, err := strconv.ParseInt(string(id), 10, 64)
	return err == nil
}

func (id JobID) MarshalJSON() ([]byte, error) {
	if id.numeric() {
		return []byte(id), nil
	}
	return json.Marshal(string(id))
}

func (id *JobID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = JobID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid job id %s", data)
	}
	*id = JobID(n.String())
	return nil
}

type Job struct {
	ID              JobID     `json:"id"`
	ProductName     string    `json:"product_name"`
	DefaultCode     string    `json:"default_code,omitempty"`
	Barcode         string    `json:"barcode,omitempty"`
	ListPrice       *float64  `json:"list_price,omitempty"`
	CalculatedPrice *float64  `json:"calculated_price,omitempty"`
	CurrencySymbol  string    `json:"currency_symbol,omitempty"`
	Quantity        int       `json:"custom_quantity"`
	Status          JobStatus `json:"status,omitempty"`
	ErrorMessage    string    `json:"error_message,omitempty"`
}

// UnmarshalJSON tolerates the Odoo convention of sending false for empty
// fields, and numeric strings for prices and quantities.
func (j *Job) UnmarshalJSON(data []byte) error {
	var raw struct {
		ID              JobID           `json:"id"`
		ProductName     json.RawMessage `json:"product_name"`
		DefaultCode     json.RawMessage `json:"default_code"`
		Barcode         json.RawMessage `json:"barcode"`
		ListPrice       json.RawMessage `json:"list_price"`
		CalculatedPrice json.RawMessage `json:"calculated_price"`
		CurrencySymbol  json.RawMessage `json:"currency_symbol"`
		Quantity        json.RawMessage `json:"custom_quantity"`
		Status          json.RawMessage `json:"status"`
		ErrorMessage    json.RawMessage `json:"error_message"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	*j = Job{
		ID:             raw.ID,
		ProductName:    looseString(raw.ProductName),
		DefaultCode:    looseString(raw.DefaultCode),
		Barcode:        looseString(raw.Barcode),
		CurrencySymbol: looseString(raw.CurrencySymbol),
		Status:         JobStatus(looseString(raw.Status)),
		ErrorMessage:   looseString(raw.ErrorMessage),
	}

	var err error
	if j.ListPrice, err = looseFloat(raw.ListPrice); err != nil {
		return fmt.Errorf("list_price: %w", err)
	}
	if j.CalculatedPrice, err = looseFloat(raw.CalculatedPrice); err != nil {
		return fmt.Errorf("calculated_price: %w", err)
	}
	qty, err := looseFloat(raw.Quantity)
	if err != nil {
		return fmt.Errorf("custom_quantity: %w", err)
	}
	j.Quantity = 1
	if qty != nil {
		if j.Quantity, err = wholeQuantity(*qty); err != nil {
			return fmt.Errorf("custom_quantity: %w", err)
		}
	}
	return nil
}

// wholeQuantity converts a decoded quantity without losing data: fractions
// and values outside the int32 range are rejected.
func wholeQuantity(q float64) (int, error) {
	if math.IsNaN(q) || math.IsInf(q, 0) || q != math.Trunc(q) {
		return 0, fmt.Errorf("%w: %v is not a whole number", ErrInvalidQuantity, q)
	}
	if q > math.MaxInt32 || q < math.MinInt32 {
		return 0, fmt.Errorf("%w: %v out of range", ErrInvalidQuantity, q)
	}
	return int(q), nil
}

// Copies is the number of labels to print, never less than one.
func (j *Job) Copies() int {
	if j.Quantity < 1 {
		return 1
	}
	return j.Quantity
}

func isAbsent(raw json.RawMessage) bool {
	s := string(bytes.TrimSpace(raw))
	return s == "" || s == "null" || s == "false"
}

func looseString(raw json.RawMessage) string {
	if isAbsent(raw) {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return strings.Trim(string(raw), `"`)
}

func looseFloat(raw json.RawMessage) (*float64, error) {
	if isAbsent(raw) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return &f, nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("not a number: %s", raw)
	}
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, fmt.Errorf("not a number: %q", s)
	}
	return &f, nil
}

type EventKind string

const (
	EventStatus EventKind = "status"
	EventResult EventKind = "result"
)

// Event is one progress notification for the observer of a print pass.
type Event struct {
	Kind    EventKind
	Message string
	Success bool
}

func StatusEvent(format string, args ...any) Event {
	return Event{Kind: EventStatus, Message: fmt.Sprintf(format, args...)}
}

func ResultEvent(success bool, format string, args ...any) Event {
	return Event{Kind: EventResult, Success: success, Message: fmt.Sprintf(format, args...)}
}

const (
	DefaultPrinterPort    = 9100
	DefaultPrinterTimeout = 3 * time.Second
	DefaultPacing         = 100 * time.Millisecond
)

// Endpoint is the network address and send timeout of the label printer.
type Endpoint struct {
	Host    string
	Port    int
	Timeout time.Duration
}

func (e Endpoint) Address() string {
	port := e.Port
	if port == 0 {
		port = DefaultPrinterPort
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(port))
}

func (e Endpoint) timeout() time.Duration {
	if e.Timeout <= 0 {
		return DefaultPrinterTimeout
	}
	return e.Timeout
}

// Outcome describes how one job left the pipeline.
type Outcome struct {
	JobID       JobID
	ProductName string
	State       PassState
	Sent        int
	Total       int
	Err         error
}

func (o Outcome) Done() bool {
	return o.State == StateDone
}

type BatchOutcome struct {
	Jobs      []Outcome
	Succeeded int
}

// Report is the result of a best-effort status update to the remote service.
// Callers log Err and move on.
type Report struct {
	Acknowledged bool
	Err          error
}
