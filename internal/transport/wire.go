// Package transport carries remote.Requests over the wire. Each transport
// performs exactly one exchange per request; none of them retry, batch or
// order.
package transport

import (
	"fmt"

	"github.com/remoteui/uisync/internal/remote"
)

// Event is one event on the wire, in either direction.
type Event struct {
	Target string         `json:"target"`
	Type   string         `json:"type"`
	Data   map[string]any `json:"data,omitempty"`
}

// Request is the JSON body of a request.
type Request struct {
	SessionID string  `json:"uiSessionId"`
	Seq       uint64  `json:"#"`
	Poll      bool    `json:"pollForBackgroundJobs,omitempty"`
	Events    []Event `json:"events,omitempty"`
}

// Error is an application error reported by the server.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Response is the JSON body of a response.
type Response struct {
	Seq               uint64  `json:"#"`
	Events            []Event `json:"events,omitempty"`
	Error             *Error  `json:"error,omitempty"`
	SessionTerminated bool    `json:"sessionTerminated,omitempty"`
	RedirectURL       string  `json:"redirectUrl,omitempty"`
}

// Server error codes.
const (
	CodeInvalidRequest  = 5
	CodeUnknownTarget   = 10
	CodeSessionNotFound = 20
)

// ServerError is the error of an ApplicationFailure response.
type ServerError struct {
	Code    int
	Message string
}

func (e *ServerError) Error() string {
	return fmt.Sprintf("server error %d: %s", e.Code, e.Message)
}

// EncodeRequest converts req to its wire form. Coalesce functions, request
// boundaries, delays and busy flags stay on the client.
func EncodeRequest(req *remote.Request) Request {
	out := Request{
		SessionID: req.SessionID,
		Seq:       req.Seq,
		Poll:      req.Channel == remote.ChannelPoll,
	}
	if len(req.Events) > 0 {
		out.Events = make([]Event, len(req.Events))
		for i, ev := range req.Events {
			out.Events[i] = Event{Target: string(ev.Target), Type: ev.Type, Data: ev.Data}
		}
	}
	return out
}

// DecodeResponse classifies a wire response.
func DecodeResponse(w *Response) *remote.Response {
	resp := &remote.Response{Seq: w.Seq}
	switch {
	case w.SessionTerminated:
		resp.Kind = remote.SessionTerminated
		resp.RedirectURL = w.RedirectURL
	case w.Error != nil:
		resp.Kind = remote.ApplicationFailure
		resp.Err = &ServerError{Code: w.Error.Code, Message: w.Error.Message}
	default:
		resp.Kind = remote.Success
	}
	if len(w.Events) > 0 {
		resp.Events = make([]remote.InboundEvent, len(w.Events))
		for i, ev := range w.Events {
			resp.Events[i] = remote.InboundEvent{Target: remote.AdapterID(ev.Target), Type: ev.Type, Data: ev.Data}
		}
	}
	return resp
}
