package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/hupe1980/agentpipe/core"
)

// PipelineDef declares one sequential pipeline.
type PipelineDef struct {
	Name          string          `yaml:"name"`
	Description   string          `yaml:"description,omitempty"`
	InputTemplate string          `yaml:"input_template,omitempty"`
	Participants  []core.Identity `yaml:"participants"`
}

// PipelineFile is the document layout of a pipelines file.
type PipelineFile struct {
	Pipelines []PipelineDef `yaml:"pipelines"`
}

// Feedback pipeline instructions.
const (
	SummarizerInstructions = `Summarize the customer's feedback in one short sentence. Keep it neutral and concise.
Example output:
App crashes during photo upload.
User praises dark mode feature.`

	ClassifierInstructions = `Classify the feedback as one of the following: Positive, Negative, or Feature request.`

	ActionInstructions = `Based on the summary and classification, suggest the next action in one short sentence.
Example output:
Escalate as a high-priority bug for the mobile team.
Log as positive feedback to share with design and marketing.
Log as enhancement request for product backlog.`
)

// SampleFeedback is the input used when the feedback pipeline runs without one.
const SampleFeedback = "I reached out to your customer support yesterday because I couldn't access my account. " +
	"The representative responded almost immediately, was polite and professional, and fixed the issue within minutes. " +
	"Honestly, it was one of the best support experiences I've ever had."

// FeedbackPipeline is the built-in customer feedback pipeline.
func FeedbackPipeline() PipelineDef {
	return PipelineDef{
		Name:          "feedback",
		Description:   "Summarize, classify and recommend an action for customer feedback",
		InputTemplate: "Customer feedback: {{.Input}}",
		Participants: []core.Identity{
			{Name: "summarizer", Instructions: SummarizerInstructions},
			{Name: "classifier", Instructions: ClassifierInstructions},
			{Name: "action", Instructions: ActionInstructions},
		},
	}
}

// DefaultPipelines returns the built-in pipelines.
func DefaultPipelines() []PipelineDef {
	return []PipelineDef{FeedbackPipeline()}
}

// LoadPipelines reads pipeline definitions from path, or returns the defaults
// when path is empty.
func LoadPipelines(path string) ([]PipelineDef, error) {
	if path == "" {
		return DefaultPipelines(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read pipelines file: %w", err)
	}
	return ParsePipelines(data)
}

// ParsePipelines decodes and validates pipeline definitions. Unknown fields
// are rejected.
func ParsePipelines(data []byte) ([]PipelineDef, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var file PipelineFile
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse pipelines file: %w", err)
	}

	if len(file.Pipelines) == 0 {
		return nil, errors.New("pipelines file defines no pipelines")
	}

	seen := make(map[string]struct{}, len(file.Pipelines))
	for _, p := range file.Pipelines {
		if err := p.Validate(); err != nil {
			return nil, err
		}
		if _, dup := seen[p.Name]; dup {
			return nil, fmt.Errorf("duplicate pipeline %q", p.Name)
		}
		seen[p.Name] = struct{}{}
	}
	return file.Pipelines, nil
}

// Validate checks one definition.
func (p PipelineDef) Validate() error {
	if p.Name == "" {
		return errors.New("pipeline name is required")
	}
	if len(p.Participants) == 0 {
		return fmt.Errorf("pipeline %s: %w", p.Name, core.ErrNoParticipants)
	}
	for i, id := range p.Participants {
		if id.Name == "" {
			return fmt.Errorf("pipeline %s: participant %d has no name", p.Name, i)
		}
	}
	return nil
}

// Marshal encodes definitions in the pipelines file layout.
func Marshal(defs []PipelineDef) ([]byte, error) {
	return yaml.Marshal(PipelineFile{Pipelines: defs})
}
