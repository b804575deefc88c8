package orchestrator

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/scout/internal/config"
	scoutErrors "github.com/harunnryd/scout/internal/errors"
)

// Input is the run input, in the same shape the actor receives on the platform.
type Input struct {
	Query     string `json:"query"`
	ModelName string `json:"modelName,omitempty"`
	Debug     bool   `json:"debug,omitempty"`
	Scenario  string `json:"scenario,omitempty"`
}

// ParseInput decodes a JSON run input.
func ParseInput(data []byte) (Input, error) {
	var in Input
	if err := json.Unmarshal(data, &in); err != nil {
		return Input{}, scoutErrors.Configuration(fmt.Sprintf("invalid run input: %v", err))
	}
	return in, nil
}

// WithDefaults fills the model and scenario from config when absent.
func (in Input) WithDefaults(cfg *config.Config) Input {
	in.Query = strings.TrimSpace(in.Query)
	in.ModelName = strings.TrimSpace(in.ModelName)
	in.Scenario = strings.ToLower(strings.TrimSpace(in.Scenario))

	if in.ModelName == "" {
		in.ModelName = cfg.Models.Default
	}
	if in.ModelName == "" {
		in.ModelName = config.DefaultModelDefault
	}
	if in.Scenario == "" {
		in.Scenario = cfg.Agent.Scenario
	}
	if in.Scenario == "" {
		in.Scenario = config.DefaultAgentScenario
	}
	return in
}
