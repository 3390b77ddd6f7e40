package main

import (
	"context"
	"fmt"
	"log"

	"github.com/kongfanmiao/hrms"
)

func main() {
	cfg, err := hrms.LoadConfig("../../config.example.yaml")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	rec, updates, closeUpdates := hrms.NewChannelRecorder(8)
	defer closeUpdates()

	go liveConsumer(updates)

	rt, err := hrms.New(cfg,
		hrms.WithElectrometer(hrms.NewSimulatedElectrometer(1e11)),
		hrms.WithRecorder(rec))
	if err != nil {
		log.Fatalf("runtime: %v", err)
	}
	defer rt.Shutdown(context.Background())

	if _, err := rt.Run(context.Background()); err != nil {
		log.Fatalf("session: %v", err)
	}
}

func liveConsumer(updates <-chan hrms.SweepUpdate) {
	for u := range updates {
		if u.Final != nil {
			fmt.Printf("session %s done, %d sweeps\n", u.Final.RunID, u.Final.NumSweeps())
			continue
		}
		fmt.Printf("sweep %d: %d points, last I = %.3e A\n",
			u.SweepIndex, len(u.Currents), u.Currents[len(u.Currents)-1])
	}
}
