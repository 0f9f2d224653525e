package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/remoteui/uisync/internal/adapter"
	"github.com/remoteui/uisync/internal/app"
	"github.com/remoteui/uisync/internal/config"
	"github.com/remoteui/uisync/internal/metrics"
	"github.com/remoteui/uisync/internal/remote"
	"github.com/remoteui/uisync/internal/transport"
)

var widgetKinds = []string{"desktop", "label", "gauge", "button", "text", "table"}

func main() {
	configPath := flag.String("config", "", "Path to config file")
	baseURL := flag.String("url", "", "Base URL of the uisync server (default from config)")
	token := flag.String("token", "", "Auth token (if the server requires it)")
	transportName := flag.String("transport", "", "Wire transport: http or ws")
	mode := flag.String("mode", "", "Session mode: remote or local")
	logPath := flag.String("log", "", "Write engine logs to this file")
	metricsAddr := flag.String("metrics", "", "Serve client metrics on this address")
	flag.Parse()

	cfg := config.Default()
	if *configPath != "" {
		var err error
		if cfg, err = config.Load(*configPath); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	}
	if *baseURL != "" {
		cfg.Client.URL = *baseURL
	}
	if *token != "" {
		cfg.Client.Token = *token
	}
	if *transportName != "" {
		cfg.Client.Transport = *transportName
	}
	if *mode != "" {
		cfg.Client.Mode = *mode
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	// The alt screen owns the terminal.
	log.SetOutput(io.Discard)
	if *logPath != "" {
		f, err := os.OpenFile(*logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		defer f.Close()
		log.SetOutput(f)
	}

	if err := run(cfg.Client, *metricsAddr); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg config.ClientConfig, metricsAddr string) error {
	sessionMode, err := remote.ParseMode(cfg.Mode)
	if err != nil {
		return err
	}

	var rt remote.RoundTripper
	switch cfg.Transport {
	case "ws":
		ws := transport.NewWSTransport(deriveWSURL(cfg.URL), cfg.Token, cfg.RequestTimeout, cfg.PollTimeout)
		defer ws.Close()
		rt = ws
	default:
		rt = transport.NewHTTPTransport(cfg.URL, cfg.Token, cfg.RequestTimeout, cfg.PollTimeout)
	}

	reg := prometheus.NewRegistry()
	if metricsAddr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler(reg))
			if err := http.ListenAndServe(metricsAddr, mux); err != nil {
				log.Printf("metrics listener: %v", err)
			}
		}()
	}

	// Hooks and widget factories run before the program exists; messages
	// are delivered once it does.
	var p *tea.Program
	send := func(msg tea.Msg) { p.Send(msg) }

	widgets := adapter.NewRegistry()
	client, err := remote.NewClient(remote.ClientOptions{
		Mode:          sessionMode,
		RoundTripper:  rt,
		Applier:       widgets,
		Hooks:         metrics.NewClient(reg).Hooks(app.Hooks(send)),
		ResumePolling: cfg.ResumePolling,
	})
	if err != nil {
		return err
	}
	defer client.Close()
	log.Printf("UI session %s (%s, %v mode)", client.SessionID(), cfg.Transport, sessionMode)

	app.RegisterWidgets(widgets, adapter.BehaviorFor(sessionMode, client), send, widgetKinds...)

	m := app.New(client, app.Options{
		Transport: cfg.Transport,
		Poll:      cfg.Poll && sessionMode == remote.ModeRemote,
	})
	p = tea.NewProgram(m, tea.WithAltScreen())

	if _, err := p.Run(); err != nil && !errors.Is(err, tea.ErrProgramKilled) {
		return err
	}
	return nil
}

// deriveWSURL converts http://host:port → ws://host:port/ws
func deriveWSURL(base string) string {
	u, err := url.Parse(base)
	if err != nil {
		return "ws://127.0.0.1:8080/ws"
	}
	scheme := "ws"
	if strings.HasPrefix(u.Scheme, "https") {
		scheme = "wss"
	}
	return fmt.Sprintf("%s://%s/ws", scheme, u.Host)
}
