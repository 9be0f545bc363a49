package wizard

import (
	"fmt"
	"strconv"
	"strings"
)

// Step is a wizard step. Steps are numbered from 1.
type Step int

// Wizard steps in order.
const (
	StepUploadData Step = iota + 1
	StepTargetAudience
	StepComposeMessage
	StepReviewAndCreate
)

// Steps returns every step in order.
func Steps() []Step {
	return []Step{StepUploadData, StepTargetAudience, StepComposeMessage, StepReviewAndCreate}
}

var stepNames = map[Step]string{
	StepUploadData:      "upload",
	StepTargetAudience:  "audience",
	StepComposeMessage:  "compose",
	StepReviewAndCreate: "review",
}

var stepTitles = map[Step]string{
	StepUploadData:      "Upload Data",
	StepTargetAudience:  "Target Audience",
	StepComposeMessage:  "Compose Message",
	StepReviewAndCreate: "Review & Create",
}

// String returns the short name used on the command line.
func (s Step) String() string {
	if name, ok := stepNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Step(%d)", int(s))
}

// Title returns the display title.
func (s Step) Title() string {
	if title, ok := stepTitles[s]; ok {
		return title
	}
	return s.String()
}

// Valid reports whether s is one of the four steps.
func (s Step) Valid() bool {
	return s >= StepUploadData && s <= StepReviewAndCreate
}

// ParseStep accepts a step number (1-4) or short name.
func ParseStep(s string) (Step, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if n, err := strconv.Atoi(s); err == nil {
		if step := Step(n); step.Valid() {
			return step, nil
		}
		return 0, fmt.Errorf("unknown step %q: expected 1-4", s)
	}
	for step, name := range stepNames {
		if name == s {
			return step, nil
		}
	}
	return 0, fmt.Errorf("unknown step %q: expected upload, audience, compose or review", s)
}
