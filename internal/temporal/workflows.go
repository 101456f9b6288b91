package temporal

import (
	"fmt"
	"time"

	"go.temporal.io/sdk/workflow"
)

// ProcessSnapshotInput holds the workflow parameters.
type ProcessSnapshotInput struct {
	SnapshotDir string
	// StoreDir overrides the worker's run store.
	StoreDir string
	Tag      string
	// ExportGraph writes the converted topology to the graph repository.
	ExportGraph bool
}

// ProcessSnapshotOutput holds the workflow result.
type ProcessSnapshotOutput struct {
	RunID         string
	Status        string
	Nodes         int
	Hostnames     []string
	Failures      map[string]string
	Errors        []string
	GraphExported bool
	GateStatus    string
}

// ProcessSnapshotWorkflow parses and converts one snapshot.
func ProcessSnapshotWorkflow(ctx workflow.Context, input ProcessSnapshotInput) (*ProcessSnapshotOutput, error) {
	ao := workflow.ActivityOptions{
		StartToCloseTimeout: 10 * time.Minute,
	}
	ctx = workflow.WithActivityOptions(ctx, ao)

	var result ActivityResult
	if err := workflow.ExecuteActivity(ctx, ProcessSnapshotActivity, input).Get(ctx, &result); err != nil {
		return nil, fmt.Errorf("process snapshot %s: %w", input.SnapshotDir, err)
	}

	return &ProcessSnapshotOutput{
		RunID:         result.RunID,
		Status:        result.Status,
		Nodes:         len(result.Hostnames),
		Hostnames:     result.Hostnames,
		Failures:      result.Failures,
		Errors:        result.Errors,
		GraphExported: result.GraphExported,
		GateStatus:    result.GateStatus,
	}, nil
}
