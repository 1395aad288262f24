package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"labagent/pkg/agent"
	"labagent/pkg/channels"
	_ "labagent/pkg/channels/autoload" // 自動註冊 Channels
	"labagent/pkg/config"
	"labagent/pkg/console"
	"labagent/pkg/gateway"
	"labagent/pkg/handler"
	"labagent/pkg/host"
	"labagent/pkg/llm"
	_ "labagent/pkg/llm/autoload" // 自動註冊 LLM Providers
	"labagent/pkg/monitor"
	"labagent/pkg/state"
)

const (
	appConfigPath    = "config.json"
	systemConfigPath = "system.json"
)

func main() {
	console.PrintBanner()

	// --- 0. 讀取設定檔 ---
	if err := config.LoadEnv(".env"); err != nil {
		slog.Warn("Failed to load .env", "error", err)
	}

	levelVar := console.SetupSlog(config.LoadSystemConfig(systemConfigPath).LogLevel)

	cfg, sys, err := config.Load(appConfigPath, systemConfigPath)
	if err != nil {
		slog.Error("Failed to load config", "file", appConfigPath, "error", err)
		os.Exit(1)
	}

	// --- 1. LLM 設定 ---
	client, err := llm.NewFromConfig(cfg.LLM, sys)
	if err != nil {
		slog.Error("Failed to init LLM client", "error", err)
		os.Exit(1)
	}

	timeout := time.Duration(sys.LLMTimeoutMs) * time.Millisecond
	protocolModel := llm.NewCompleter(client, instructionsOr(cfg.Agents.ProtocolInstructions, agent.DefaultProtocolInstructions), timeout)
	measurementModel := llm.NewCompleter(client, instructionsOr(cfg.Agents.MeasurementInstructions, agent.DefaultMeasurementInstructions), timeout)

	// --- 2. 共用狀態：監控任務、系統快照 ---
	monitors := monitor.NewRegistry(
		monitor.WithConditionPoll(time.Duration(sys.ConditionPollMs)*time.Millisecond),
		monitor.WithDeviceInterval(time.Duration(sys.DeviceIntervalMs)*time.Millisecond),
	)
	defer monitors.Close()

	store := state.NewStore(cfg.StateFile)
	if err := store.Load(); err != nil {
		slog.Warn("Failed to load system state, starting empty", "file", cfg.StateFile, "error", err)
	}

	// --- 3. Agents ---
	protocolAgent := agent.NewProtocolAgent(protocolModel, host.NewFromConfig(cfg.Host, sys))
	measurementAgent := agent.NewMeasurementAgent(measurementModel, monitors)
	agentHandler := handler.NewAgentHandler(protocolAgent, measurementAgent, monitors, store, sys)

	// --- 4. Gateway 初始化（使用 Builder 模式）---
	gw, err := gateway.NewGatewayBuilder().
		WithConsole(console.NewEcho()).
		WithChannel(channels.LoadFromConfig(cfg.Channels, sys)...).
		WithHandler(agentHandler).
		Build()
	if err != nil {
		slog.Error("Failed to build gateway", "error", err)
		os.Exit(1)
	}

	// --- 5. 監看狀態檔與 system.json ---
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := config.WatchFiles(ctx, store.Path(), systemConfigPath)
	stateChanges := make(chan string, 1)
	go store.Follow(ctx, stateChanges)
	go func() {
		defer close(stateChanges)
		systemAbs, _ := filepath.Abs(systemConfigPath)
		for name := range changes {
			if name == systemAbs {
				next := config.LoadSystemConfig(systemConfigPath)
				levelVar.Set(console.ParseLevel(next.LogLevel))
				slog.Info("System config reloaded", "log_level", next.LogLevel)
				continue
			}
			select {
			case stateChanges <- name:
			case <-ctx.Done():
				return
			}
		}
	}()

	slog.Info("Agents ready", "state_file", store.Path(), "host_runner", cfg.Host.RunURL != "")

	// 監聽系統信號
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	slog.Info("Received shutdown signal. Stopping services...")

	// 執行清理
	cancel()
	gw.StopAll()
	if stopped := monitors.StopAll(); len(stopped) > 0 {
		slog.Info("Stopped monitoring tasks", "ids", stopped)
	}
	slog.Info("Bye!")
}

func instructionsOr(custom, def string) string {
	if custom != "" {
		return custom
	}
	return def
}
