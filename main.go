package main

import (
	"time"

	"github.com/flatball/openfz/config"
	"github.com/flatball/openfz/logger"
	"github.com/flatball/openfz/monitor"
	"github.com/flatball/openfz/room"
	"github.com/flatball/openfz/server"
	"github.com/flatball/openfz/timer"
)

func main() {
	// Initialize logger
	logger.Init()

	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		logger.Log.Fatalf("Failed to load configuration: %v", err)
	}

	// Deferred-task scheduler shared by all rooms
	timers := timer.NewManager()

	// Room registry
	roomManager := room.NewManager(room.Options{
		TickRate:  cfg.Match.TickRate,
		WinScore:  cfg.Match.WinScore,
		GoalPause: cfg.Match.GoalPauseTime,
	}, timers)

	// Metrics endpoint
	mon := monitor.NewMonitor("openfz")
	mon.StartServer(cfg.Server.MetricsAddress)
	timers.Schedule("monitor", 0, 5*time.Second, func() {
		mon.SetActiveRooms(roomManager.Count())
	})

	// Start server
	gameServer := server.NewGameServer(cfg.Server.HTTPAddress, roomManager, mon)
	logger.Log.Infof("Starting game server on %s", cfg.Server.HTTPAddress)
	if err := gameServer.Start(); err != nil {
		logger.Log.Fatalf("Failed to start server: %v", err)
	}
}
