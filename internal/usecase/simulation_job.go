package usecase

import (
	"context"
	"encoding/json"

	"SignalPilot/pkg/queue"
)

// SimulationJob runs queued day simulations.
type SimulationJob struct {
	svc *SimulationService
}

var _ queue.Job = (*SimulationJob)(nil)

func NewSimulationJob(svc *SimulationService) *SimulationJob {
	return &SimulationJob{svc: svc}
}

func (j *SimulationJob) Name() string { return "simulation" }

func (j *SimulationJob) Type() string { return SimulateDayJobType }

func (j *SimulationJob) Handle(ctx context.Context, payload json.RawMessage) error {
	p, err := queue.ParsePayload[SimulationPayload](payload)
	if err != nil {
		return err
	}
	return j.svc.Run(ctx, *p)
}
