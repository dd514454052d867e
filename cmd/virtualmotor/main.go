// Command virtualmotor runs the virtual motor controller: simulated axes served
// over TCP, optionally over a serial line, with an optional Modbus status
// mirror and a websocket monitor.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"virtualmotor/internal/config"
	"virtualmotor/internal/controller"
	"virtualmotor/internal/hardware/modbus"
	"virtualmotor/internal/hardware/serial"
	"virtualmotor/internal/ipc"
	"virtualmotor/internal/logging"
	"virtualmotor/internal/monitor"
	"virtualmotor/pkg/types"
)

type VirtualMotorSystem struct {
	configManager *config.ConfigManager
	controller    *controller.Controller
	ipcServer     *ipc.Server
	serialPort    *serial.Port
	mirror        *modbus.Mirror
	monitor       *monitor.Server
	ctx           context.Context
	cancel        context.CancelFunc
	serialDone    chan struct{}
	running       bool
	logger        *logging.Logger
}

func NewVirtualMotorSystem(configPath string) (*VirtualMotorSystem, error) {
	configManager := config.NewConfigManager(configPath)

	if err := configManager.LoadConfig(""); err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		logging.Warn("Config file not found, using defaults", "config_path", configPath)
		if err := configManager.CreateDefaultConfig(); err != nil {
			return nil, fmt.Errorf("failed to create default config: %w", err)
		}
	}

	systemConfig := configManager.GetConfig()
	if err := logging.Init(&systemConfig.Logging); err != nil {
		return nil, fmt.Errorf("failed to initialize logging: %w", err)
	}

	system := &VirtualMotorSystem{
		configManager: configManager,
		logger:        logging.GetLogger("virtualmotor"),
	}

	var opts []controller.Option
	if systemConfig.Modbus.Enabled {
		mirror, err := modbus.Dial(systemConfig.Modbus)
		if err != nil {
			return nil, err
		}
		system.mirror = mirror
		opts = append(opts, controller.WithReporterFactory(mirror.Reporter))
	}

	system.controller = controller.New(systemConfig.Axes, opts...)
	system.ipcServer = ipc.NewServer(systemConfig.IPC, system.controller)

	if systemConfig.Serial.Enabled {
		system.serialPort = serial.NewPort(systemConfig.Serial)
	}
	if systemConfig.Monitor.Enabled {
		system.monitor = monitor.New(systemConfig.Monitor, system.controller)
	}

	return system, nil
}

func (s *VirtualMotorSystem) Start() error {
	if s.running {
		return fmt.Errorf("system is already running")
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())

	if err := s.ipcServer.Start(); err != nil {
		return err
	}

	if s.monitor != nil {
		if err := s.monitor.Start(); err != nil {
			s.ipcServer.Stop()
			return err
		}
	}

	if s.serialPort != nil {
		s.serialDone = make(chan struct{})
		go func() {
			defer close(s.serialDone)
			if err := s.serialPort.Serve(s.ctx, s.controller); err != nil {
				logging.Error("Serial transport stopped", "error", err)
			}
		}()
	}

	s.setupConfigWatcher()
	if err := s.configManager.StartWatching(s.ctx); err != nil {
		s.logger.Warn("Config watching not started", "error", err)
	}

	s.running = true
	logging.Info("Virtual motor controller started", "axes", s.controller.NumAxes())
	logging.Debug("Module loggers", "modules", logging.GetManager().GetLoggerNames())
	s.printSystemInfo()
	return nil
}

func (s *VirtualMotorSystem) Stop(ctx context.Context) error {
	if !s.running {
		return fmt.Errorf("system is not running")
	}

	s.logger.Info("Stopping virtual motor controller...")
	s.cancel()

	// Reverse of start order.
	var errs []error
	if err := s.configManager.StopWatching(); err != nil {
		s.logger.Debug("Config watcher stop", "error", err)
	}

	if s.serialDone != nil {
		select {
		case <-s.serialDone:
		case <-ctx.Done():
			errs = append(errs, fmt.Errorf("serial transport stop: %w", ctx.Err()))
		}
	}

	if s.monitor != nil {
		if err := s.monitor.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("monitor stop: %w", err))
		}
	}

	if err := s.ipcServer.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("ipc server stop: %w", err))
	}

	if s.mirror != nil {
		if err := s.mirror.Close(); err != nil {
			errs = append(errs, fmt.Errorf("modbus mirror close: %w", err))
		}
	}

	s.running = false
	s.logger.Info("Virtual motor controller stopped")
	return errors.Join(errs...)
}

func (s *VirtualMotorSystem) setupConfigWatcher() {
	s.configManager.WatchChanges(func(cfg types.SystemConfig) {
		s.logger.Info("Configuration changed, applying axis parameters")
		if err := logging.GetManager().UpdateConfig(&cfg.Logging); err != nil {
			s.logger.Warn("Failed to update logging", "error", err)
		}
		s.controller.Configure(cfg.Axes)
	})
}

func (s *VirtualMotorSystem) printSystemInfo() {
	cfg := s.configManager.GetConfig()

	fmt.Println("==========================================")
	fmt.Println("  Virtual Motor Controller")
	fmt.Println("==========================================")
	fmt.Printf("  Command server: %s\n", s.ipcServer.Addr())
	if s.serialPort != nil {
		fmt.Printf("  Serial port: %s (%d baud)\n", cfg.Serial.PortName, cfg.Serial.BaudRate)
	}
	if s.mirror != nil {
		fmt.Printf("  Modbus mirror: %s %s from register %d\n", cfg.Modbus.Type, cfg.Modbus.Address, cfg.Modbus.StatusRegister)
	}
	if s.monitor != nil {
		fmt.Printf("  Monitor: http://%s/status\n", s.monitor.Addr())
	}
	fmt.Println("==========================================")
	fmt.Print(s.controller.Describe())
	fmt.Println("==========================================")
}

func main() {
	var (
		configPath = flag.String("config", "config.yaml", "Path to configuration file")
		initConfig = flag.Bool("init", false, "Write the default configuration to -config and exit")
	)
	flag.Parse()

	if *initConfig {
		cm := config.NewConfigManager(*configPath)
		if err := cm.CreateDefaultConfig(); err != nil {
			log.Fatalf("Failed to build default config: %v", err)
		}
		if err := cm.ExportConfig(*configPath); err != nil {
			log.Fatalf("Failed to write default config: %v", err)
		}
		fmt.Printf("Default configuration written to %s\n", *configPath)
		return
	}

	system, err := NewVirtualMotorSystem(*configPath)
	if err != nil {
		log.Fatalf("Failed to create virtual motor controller: %v", err)
	}

	if err := system.Start(); err != nil {
		log.Fatalf("Failed to start virtual motor controller: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	fmt.Println("\nReceived shutdown signal...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	done := make(chan error, 1)
	go func() { done <- system.Stop(shutdownCtx) }()

	select {
	case err := <-done:
		if err != nil {
			log.Printf("Errors during shutdown: %v", err)
			os.Exit(1)
		}
		fmt.Println("Virtual motor controller shutdown complete")
	case <-shutdownCtx.Done():
		log.Println("Shutdown timeout reached, forcing exit")
		os.Exit(1)
	}
}
