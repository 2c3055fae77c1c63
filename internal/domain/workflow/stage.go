package workflow

import "github.com/docuflow/docuflow/internal/domain/task"

// Stage represents a step of the processing pipeline. Stages advance in a
// fixed order and never move backwards.
type Stage string

const (
	StageExtraction    Stage = "extraction"
	StageValidation    Stage = "validation"
	StageQualityReview Stage = "quality_review"
	StageDecision      Stage = "decision"
	StageCompleted     Stage = "completed"
)

var stageOrder = []Stage{
	StageExtraction,
	StageValidation,
	StageQualityReview,
	StageDecision,
	StageCompleted,
}

// Next returns the stage that follows s. ok is false for the terminal stage
// and for unknown values.
func (s Stage) Next() (Stage, bool) {
	for i, st := range stageOrder {
		if st == s && i+1 < len(stageOrder) {
			return stageOrder[i+1], true
		}
	}
	return s, false
}

// IsTerminal returns true once the pipeline has finished.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted
}

// RequiredResults returns the task types whose results must all be present
// in the result map before the workflow leaves s. The order is fixed but
// carries no meaning: the join is order-independent.
func (s Stage) RequiredResults() []task.Type {
	switch s {
	case StageExtraction:
		return []task.Type{task.TypeExtraction}
	case StageValidation:
		return []task.Type{task.TypeContract, task.TypeMSA, task.TypeMasterData}
	case StageQualityReview:
		return []task.Type{task.TypeQualityReview}
	}
	return nil
}

// EntryTasks returns the task types the orchestrator submits itself when a
// workflow enters s. The extraction kick-off is submitted by the host, so
// the extraction stage fans out nothing.
func (s Stage) EntryTasks() []task.Type {
	switch s {
	case StageValidation:
		return []task.Type{task.TypeContract, task.TypeMSA, task.TypeMasterData}
	case StageQualityReview:
		return []task.Type{task.TypeQualityReview}
	}
	return nil
}

// EnteredStatus returns the presentation status set when a workflow enters
// s. Extraction is only ever entered at creation, which sets StatusCreated.
func (s Stage) EnteredStatus() Status {
	switch s {
	case StageValidation:
		return StatusValidationInProgress
	case StageQualityReview:
		return StatusQualityReviewInProgress
	case StageDecision:
		return StatusDecisionInProgress
	case StageCompleted:
		return StatusCompleted
	}
	return StatusCreated
}
