package ports

import (
	"context"

	"github.com/dan-robinson-ai/judge-training-ground/internal/domain/models"
)

// GenerateResult is the evaluation service's response to a generate
// request: synthetic labeled cases plus an initial judge prompt.
type GenerateResult struct {
	TestCases    []*models.TestCase `json:"test_cases"`
	SystemPrompt string             `json:"system_prompt"`
}

// OptimizeRequest asks the service for a refined prompt derived from
// the failures in prior results. OptimizerType and ModelName are
// optional; the service applies its defaults.
type OptimizeRequest struct {
	CurrentPrompt string                    `json:"current_prompt"`
	TestCases     []*models.TestCase        `json:"test_cases"`
	Results       []models.EvaluationResult `json:"results"`
	OptimizerType string                    `json:"optimizer_type,omitempty"`
	ModelName     string                    `json:"model_name,omitempty"`
}

// OptimizeResult carries the refined prompt plus the train/test split
// of the dataset the optimizer worked from.
type OptimizeResult struct {
	OptimizedPrompt   string             `json:"optimized_prompt"`
	ModificationNotes string             `json:"modification_notes"`
	TrainCases        []*models.TestCase `json:"train_cases"`
	TestCases         []*models.TestCase `json:"test_cases"`
}

// EvalService is the request/response contract with the remote
// evaluation service. Implementations perform no retries, no caching,
// and no input validation; those are caller policy.
type EvalService interface {
	Generate(ctx context.Context, intent string, count int, modelName string) (*GenerateResult, error)
	Run(ctx context.Context, systemPrompt string, testCases []*models.TestCase, modelName string) (*models.RunStats, error)
	Optimize(ctx context.Context, req OptimizeRequest) (*OptimizeResult, error)
	Health(ctx context.Context) error
}
