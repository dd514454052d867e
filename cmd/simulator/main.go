// Command simulator drives a running virtual motor controller the way a motor
// record would: random moves and aborts, with position and status polling.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"strconv"
	"time"

	"virtualmotor/internal/ipc"
	"virtualmotor/pkg/types"
)

type Simulator struct {
	ipcClient *ipc.IPCClient
	axes      int
	span      int
	running   bool
	ctx       context.Context
	cancel    context.CancelFunc
	done      chan struct{}
}

func NewSimulator(config types.IPCConfig, axes, span int) *Simulator {
	return &Simulator{
		ipcClient: ipc.NewIPCClient(config),
		axes:      axes,
		span:      span,
	}
}

func (s *Simulator) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.ctx = ctx
	s.cancel = cancel

	if err := s.ipcClient.Connect(); err != nil {
		return fmt.Errorf("failed to connect to controller: %w", err)
	}

	s.running = true
	s.done = make(chan struct{})
	go s.runSimulation()

	log.Printf("Simulator started, driving %d axes", s.axes)
	return nil
}

func (s *Simulator) Stop() error {
	if !s.running {
		return fmt.Errorf("simulator is not running")
	}

	s.cancel()
	<-s.done
	s.ipcClient.Disconnect()
	s.running = false

	log.Println("Simulator stopped")
	return nil
}

func (s *Simulator) runSimulation() {
	defer close(s.done)

	actions := time.NewTicker(2 * time.Second)
	defer actions.Stop()
	polls := time.NewTicker(250 * time.Millisecond)
	defer polls.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return
		case <-actions.C:
			s.simulateActivity()
		case <-polls.C:
			s.poll()
		}
	}
}

func (s *Simulator) simulateActivity() {
	if !s.ipcClient.IsConnected() {
		log.Println("Controller connection lost, reconnecting")
		if err := s.ipcClient.Connect(); err != nil {
			log.Printf("Reconnect failed: %v", err)
			return
		}
	}
	axis := rand.Intn(s.axes) + 1

	switch rand.Intn(4) {
	case 0, 1:
		s.send(axis, "MV", strconv.Itoa(rand.Intn(2*s.span+1)-s.span))
	case 2:
		s.send(axis, "MR", strconv.Itoa(rand.Intn(s.span+1)-s.span/2))
	case 3:
		s.send(axis, "AB", "")
	}
}

func (s *Simulator) poll() {
	if !s.ipcClient.IsConnected() {
		return
	}
	for axis := 1; axis <= s.axes; axis++ {
		position, err := s.command(axis, "POS?", "")
		if err != nil {
			log.Printf("Axis %d: position poll failed: %v", axis, err)
			continue
		}
		word, err := s.command(axis, "ST?", "")
		if err != nil {
			log.Printf("Axis %d: status poll failed: %v", axis, err)
			continue
		}
		status, _ := strconv.Atoi(word)
		log.Printf("Axis %d: position %s status %#x done=%v", axis, position, status, status&0x2 != 0)
	}
}

func (s *Simulator) send(axis int, cmd, arg string) {
	reply, err := s.command(axis, cmd, arg)
	if err != nil {
		log.Printf("Axis %d: %s %s failed: %v", axis, cmd, arg, err)
		return
	}
	log.Printf("Axis %d: %s %s -> %s", axis, cmd, arg, reply)
}

func (s *Simulator) command(axis int, cmd, arg string) (string, error) {
	line := fmt.Sprintf("%d %s", axis, cmd)
	if arg != "" {
		line += " " + arg
	}
	return s.ipcClient.Command(line)
}

func main() {
	var (
		address  = flag.String("address", "127.0.0.1", "Controller address")
		port     = flag.Int("port", 18080, "Controller port")
		axes     = flag.Int("axes", 3, "Number of axes to drive")
		span     = flag.Int("span", 20000, "Largest absolute target position")
		duration = flag.Duration("duration", 30*time.Second, "Simulation duration")
	)

	flag.Parse()

	fmt.Printf("Virtual Motor Simulator - Starting up...\n")
	fmt.Printf("Connecting to %s:%d\n", *address, *port)

	if *axes < 1 || *span < 1 {
		log.Fatalf("axes and span must be positive")
	}

	config := types.IPCConfig{
		Type:       "tcp",
		Address:    *address,
		Port:       *port,
		Timeout:    5 * time.Second,
		BufferSize: 1024,
	}

	simulator := NewSimulator(config, *axes, *span)

	if err := simulator.Start(); err != nil {
		log.Fatalf("Failed to start simulator: %v", err)
	}

	fmt.Printf("Simulator running for %v...\n", *duration)
	time.Sleep(*duration)

	if err := simulator.Stop(); err != nil {
		log.Printf("Error stopping simulator: %v", err)
	}

	fmt.Println("Simulator shutdown complete")
}
