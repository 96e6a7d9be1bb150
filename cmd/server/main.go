package main

import (
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/MuhammadMaazA/AgentForge/internal/config"
	"github.com/MuhammadMaazA/AgentForge/internal/generate"
	"github.com/MuhammadMaazA/AgentForge/internal/runner"
	"github.com/MuhammadMaazA/AgentForge/internal/session"
	"github.com/MuhammadMaazA/AgentForge/internal/workspace"
	"github.com/MuhammadMaazA/AgentForge/internal/ws"
)

func main() {
	configPath := flag.String("config", "config.yaml", "Path to config file")
	port := flag.Int("port", 0, "Override server port")
	scripted := flag.Bool("scripted", false, "Force the built-in scripted generator")
	token := flag.String("token", "", "Override API auth token")
	flag.Parse()

	cfg, err := config.LoadOrDefault(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	if *port > 0 {
		cfg.Server.Port = *port
	}
	if *scripted {
		cfg.Generator.Mode = "scripted"
	}
	if *token != "" {
		cfg.Server.AuthToken = *token
	}

	var producer generate.Producer
	switch cfg.Generator.Mode {
	case "remote":
		log.Printf("[main] generator: remote (%s)", cfg.Generator.RemoteURL)
		producer = &generate.RemoteProducer{URL: cfg.Generator.RemoteURL}
	default:
		log.Printf("[main] generator: scripted")
		producer = &generate.ScriptProducer{
			Delay:     cfg.Generator.StreamDelay,
			ChunkSize: cfg.Generator.ChunkSize,
		}
	}

	local := runner.NewLocal(runner.Config{
		WorkDir:        cfg.Runner.WorkDir,
		PortBase:       cfg.Runner.PortBase,
		PortSpan:       cfg.Runner.PortSpan,
		StartupTimeout: cfg.Runner.StartupTimeout,
		StopGrace:      cfg.Runner.StopGrace,
		KillGrace:      cfg.Runner.KillGrace,
		LogHistory:     cfg.Runner.LogHistory,
		PreviewBase:    fmt.Sprintf("http://%s:%d/preview", cfg.Server.Host, cfg.Server.Port),
	})

	orch := session.New(workspace.NewTree(), producer, local)

	server := ws.NewServer(orch, local, cfg.Generator.Mode, cfg.Server.AllowedOrigins, cfg.Server.AuthToken)
	mux := http.NewServeMux()
	server.SetupRoutes(mux)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutting down...")
		orch.Close()
		local.Close()
		os.Exit(0)
	}()

	if err := ws.ListenAndServe(cfg.Server.Host, cfg.Server.Port, mux); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}
