package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/kongfanmiao/hrms"
)

func main() {
	cfg, err := hrms.LoadConfig("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// 100 GOhm ohmic stand-in, no instrument required
	rt, err := hrms.New(cfg, hrms.WithElectrometer(hrms.NewSimulatedElectrometer(1e11)))
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	result, err := rt.Run(ctx)
	if err != nil {
		log.Fatalf("session: %v", err)
	}
	log.Printf("run %s finished with %d sweeps", result.RunID, result.NumSweeps())
}
