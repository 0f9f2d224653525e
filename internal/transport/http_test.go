package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/remoteui/uisync/internal/remote"
)

func TestHTTPTransportRoundTrip(t *testing.T) {
	var got Request
	var gotPath, gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		gotAuth = r.Header.Get("Authorization")
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode request: %v", err)
		}
		json.NewEncoder(w).Encode(Response{
			Seq:    got.Seq,
			Events: []Event{{Target: "counter", Type: "property", Data: map[string]any{"name": "clicks", "value": 1.0}}},
		})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL+"/", "secret", time.Second, time.Second)
	resp, err := tr.RoundTrip(context.Background(), &remote.Request{
		Seq:       7,
		Channel:   remote.ChannelUser,
		SessionID: "ui-1",
		Events:    []*remote.OutgoingEvent{{Target: "counter", Type: "click", Data: map[string]any{"x": 1.0}}},
	})
	if err != nil {
		t.Fatalf("RoundTrip: %v", err)
	}

	if gotPath != "/json" {
		t.Errorf("path = %q, want /json", gotPath)
	}
	if gotAuth != "Bearer secret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	wantReq := Request{
		SessionID: "ui-1",
		Seq:       7,
		Events:    []Event{{Target: "counter", Type: "click", Data: map[string]any{"x": 1.0}}},
	}
	if diff := cmp.Diff(wantReq, got); diff != "" {
		t.Errorf("request mismatch (-want +got):\n%s", diff)
	}
	wantResp := &remote.Response{
		Seq:    7,
		Kind:   remote.Success,
		Events: []remote.InboundEvent{{Target: "counter", Type: "property", Data: map[string]any{"name": "clicks", "value": 1.0}}},
	}
	if diff := cmp.Diff(wantResp, resp); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func TestHTTPTransportPoll(t *testing.T) {
	var got Request
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.String()
		json.NewDecoder(r.Body).Decode(&got)
		json.NewEncoder(w).Encode(Response{Seq: got.Seq})
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.URL, "", 0, 0)
	if _, err := tr.RoundTrip(context.Background(), &remote.Request{Seq: 2, Channel: remote.ChannelPoll, SessionID: "ui-1"}); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/json?poll" {
		t.Errorf("path = %q, want /json?poll", gotPath)
	}
	if !got.Poll || len(got.Events) != 0 {
		t.Errorf("poll request = %+v", got)
	}
}

func TestHTTPTransportErrors(t *testing.T) {
	tests := []struct {
		name     string
		handler  http.HandlerFunc
		wantKind remote.ResponseKind
		wantErr  string // transport error, if any
	}{
		{
			name: "status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.Error(w, "boom", http.StatusInternalServerError)
			},
			wantErr: "500 boom",
		},
		{
			name: "garbage",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte("<html>"))
			},
			wantErr: "decode response",
		},
		{
			name: "application error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Seq: 1, Error: &Error{Code: CodeUnknownTarget, Message: "unknown target"}})
			},
			wantKind: remote.ApplicationFailure,
		},
		{
			name: "terminated",
			handler: func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(Response{Seq: 1, SessionTerminated: true, RedirectURL: "/login"})
			},
			wantKind: remote.SessionTerminated,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			tr := NewHTTPTransport(srv.URL, "", time.Second, time.Second)
			resp, err := tr.RoundTrip(context.Background(), &remote.Request{Seq: 1, Channel: remote.ChannelUser, SessionID: "ui-1"})
			if tt.wantErr != "" {
				if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("err = %v, want containing %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if resp.Kind != tt.wantKind {
				t.Errorf("Kind = %v, want %v", resp.Kind, tt.wantKind)
			}
		})
	}
}

func TestDecodeResponse(t *testing.T) {
	resp := DecodeResponse(&Response{Seq: 3, Error: &Error{Code: CodeSessionNotFound, Message: "gone"}})
	var se *ServerError
	if !errors.As(resp.Err, &se) || se.Code != CodeSessionNotFound {
		t.Fatalf("Err = %v, want ServerError %d", resp.Err, CodeSessionNotFound)
	}

	resp = DecodeResponse(&Response{Seq: 4, SessionTerminated: true, RedirectURL: "/bye", Error: &Error{Code: 1}})
	if resp.Kind != remote.SessionTerminated || resp.RedirectURL != "/bye" || resp.Err != nil {
		t.Errorf("terminated response decoded as %+v", resp)
	}
}

func TestHTTPTransportContextCancel(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	tr := NewHTTPTransport(srv.URL, "", time.Minute, time.Minute)
	_, err := tr.RoundTrip(ctx, &remote.Request{Seq: 1, Channel: remote.ChannelPoll, SessionID: "ui-1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
}

func TestHTTPTransportRequestTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	tr := NewHTTPTransport(srv.URL, "", 20*time.Millisecond, time.Minute)
	start := time.Now()
	_, err := tr.RoundTrip(context.Background(), &remote.Request{Seq: 1, Channel: remote.ChannelUser, SessionID: "ui-1"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if d := time.Since(start); d > 5*time.Second {
		t.Errorf("user request took %v", d)
	}
}
