// Package uds implements the NDJSON request/response/event protocol
// spoken between cronium clients and the croniumd daemon over a Unix
// domain socket.
package uds

import (
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/modoterra/cronium/pkg/core"
)

var reqCounter atomic.Uint64

// MsgType identifies the kind of message.
type MsgType string

const (
	MsgTypeReq MsgType = "req"
	MsgTypeRes MsgType = "res"
	MsgTypeEvt MsgType = "evt"
)

// Message is the NDJSON envelope for all communication.
type Message struct {
	Type   MsgType         `json:"type"`
	ID     string          `json:"id"`
	Method string          `json:"method"`
	Data   json.RawMessage `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// UnmarshalData decodes the message payload into v.
func (m Message) UnmarshalData(v any) error {
	if len(m.Data) == 0 {
		return fmt.Errorf("message %s has no data", m.ID)
	}
	return json.Unmarshal(m.Data, v)
}

// NewRequest creates a new request message with a unique ID.
func NewRequest(method string, data any) (Message, error) {
	id := fmt.Sprintf("req-%d", reqCounter.Add(1))
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeReq,
		ID:     id,
		Method: method,
		Data:   raw,
	}, nil
}

// NewResponse creates a response to a request.
func NewResponse(reqID, method string, data any) (Message, error) {
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Data:   raw,
	}, nil
}

// NewErrorResponse creates an error response.
func NewErrorResponse(reqID, method, errMsg string) Message {
	return Message{
		Type:   MsgTypeRes,
		ID:     reqID,
		Method: method,
		Error:  errMsg,
	}
}

// NewEvent creates a server-pushed event.
func NewEvent(method string, data any) (Message, error) {
	id := fmt.Sprintf("evt-%d", reqCounter.Add(1))
	raw, err := marshalData(data)
	if err != nil {
		return Message{}, err
	}
	return Message{
		Type:   MsgTypeEvt,
		ID:     id,
		Method: method,
		Data:   raw,
	}, nil
}

func marshalData(data any) (json.RawMessage, error) {
	if data == nil {
		return nil, nil
	}
	b, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}
	return b, nil
}

// Methods
const (
	MethodPing            = "Ping"
	MethodListJobs        = "ListJobs"
	MethodGetJob          = "GetJob"
	MethodCreateJob       = "CreateJob"
	MethodUpdateJob       = "UpdateJob"
	MethodDeleteJob       = "DeleteJob"
	MethodToggleJob       = "ToggleJob"
	MethodRunJob          = "RunJob"
	MethodSyncCrontab     = "SyncCrontab"
	MethodLogsSubscribe   = "LogsSubscribe"
	MethodLogsUnsubscribe = "LogsUnsubscribe"

	EventJobsDelta = "jobs.delta"
	EventRunsLine  = "runs.line"
)

// PingResponse is the response to a Ping request.
type PingResponse struct {
	Pong bool `json:"pong"`
}

// JobRequest addresses a single job by name (GetJob, DeleteJob,
// ToggleJob, RunJob, LogsSubscribe, LogsUnsubscribe).
type JobRequest struct {
	Name string `json:"name"`
}

// SaveJobRequest carries a full job definition for CreateJob and
// UpdateJob. The job's name doubles as its identity; UpdateJob replaces
// the job with that name.
type SaveJobRequest struct {
	Job core.Job `json:"job"`
}

// MutationResponse reports the outcome of a store mutation. Validation
// failures are ordinary data, not transport errors.
type MutationResponse struct {
	OK     bool     `json:"ok"`
	Errors []string `json:"errors,omitempty"`
}

// SyncResponse reports the outcome of SyncCrontab.
type SyncResponse struct {
	OK     bool   `json:"ok"`
	Jobs   int    `json:"jobs"`
	Reason string `json:"reason,omitempty"`
}
