package scrape

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Rishet11/LeadPilot/internal/core"
	"github.com/Rishet11/LeadPilot/internal/domain/model"
)

func TestMockScrapeProvider_Defaults(t *testing.T) {
	provider := &MockScrapeProvider{
		Items: []map[string]any{{"title": "Iron Works Gym"}},
	}

	items, err := provider.RunActor(context.Background(), core.RunActorParams{Actor: "a"})
	require.NoError(t, err)
	assert.Len(t, items, 1)
	require.Len(t, provider.Calls(), 1)
	assert.Equal(t, "a", provider.Calls()[0].Actor)
}

func TestMockScrapeProvider_CustomFunc(t *testing.T) {
	provider := &MockScrapeProvider{
		RunActorFunc: func(context.Context, core.RunActorParams) ([]map[string]any, error) {
			return nil, errors.New("rate limited")
		},
	}

	_, err := provider.RunActor(context.Background(), core.RunActorParams{Actor: "a"})
	assert.Error(t, err)
	assert.Len(t, provider.Calls(), 1, "failed calls are still recorded")
}

func TestMockTargetExecutor(t *testing.T) {
	exec := &MockTargetExecutor{
		Outcome: &model.ExecutionOutcome{LeadsProduced: 7},
	}

	outcome, err := exec.Execute(context.Background(), core.ExecuteParams{JobID: "job-1"})
	require.NoError(t, err)
	assert.Equal(t, 7, outcome.LeadsProduced)
	require.Len(t, exec.Calls(), 1)
	assert.Equal(t, "job-1", exec.Calls()[0].JobID)

	exec.ExecuteFunc = func(context.Context, core.ExecuteParams) (*model.ExecutionOutcome, error) {
		return nil, errors.New("actor down")
	}
	_, err = exec.Execute(context.Background(), core.ExecuteParams{JobID: "job-2"})
	assert.Error(t, err)
	assert.Len(t, exec.Calls(), 2)
}
