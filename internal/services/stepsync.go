package services

import (
	"sync"

	"spark-backend/internal/models"
)

// StepTracker is the best-effort "partner is ahead" signal for multi-step
// activities. The local step only moves when the local participant acts; a
// session change showing a larger step means the partner got there first.
// It is a liveness hint for banner display, not the reveal gate; the answer
// exchange below is what actually gates content.
type StepTracker struct {
	mu           sync.Mutex
	localStep    int
	partnerReady bool
}

// NewStepTracker starts at step zero with no partner signal.
func NewStepTracker() *StepTracker {
	return &StepTracker{}
}

// Observe feeds a session change into the tracker. An active session ahead of
// the local step, or a completed session at any step, marks the partner ready.
func (t *StepTracker) Observe(status models.SessionStatus, currentStep int) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if status == models.StatusActive && currentStep > t.localStep {
		t.partnerReady = true
	}
	if status == models.StatusCompleted {
		t.partnerReady = true
	}
}

// Advance records the local participant's own progress and clears the partner
// signal, since advancing means the local side has caught up.
func (t *StepTracker) Advance(step int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.localStep = step
	t.partnerReady = false
}

// LocalStep returns the last step the local participant advanced to.
func (t *StepTracker) LocalStep() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.localStep
}

// PartnerReady reports whether the partner has reached or passed the local step.
func (t *StepTracker) PartnerReady() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.partnerReady
}

// ExchangeStage is the per-step reveal state from one participant's view.
type ExchangeStage string

const (
	StageInput    ExchangeStage = "input"
	StageWaiting  ExchangeStage = "waiting"
	StageRevealed ExchangeStage = "revealed"
)

// AnswerExchange gates the written-answer reveal for one step of a Deep Dive.
// The partner's text stays hidden until the local participant has submitted
// their own answer AND the partner's answer has been observed, in either
// order. Revealed is terminal for the step.
type AnswerExchange struct {
	mu            sync.Mutex
	stage         ExchangeStage
	submitted     bool
	partnerAnswer string
	partnerKnown  bool
}

// NewAnswerExchange starts a step in the input stage.
func NewAnswerExchange() *AnswerExchange {
	return &AnswerExchange{stage: StageInput}
}

// Stage returns the current stage.
func (e *AnswerExchange) Stage() ExchangeStage {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.stage
}

// SubmitLocal records the local participant's submission. If the partner's
// answer is already known the step reveals immediately (fast path); otherwise
// the step waits.
func (e *AnswerExchange) SubmitLocal() {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.submitted {
		return
	}
	e.submitted = true

	if e.partnerKnown {
		e.stage = StageRevealed
	} else {
		e.stage = StageWaiting
	}
}

// ObservePartner records the partner's answer, whether seen in the initial
// fetch or delivered by the change feed. Without a local submission the stage
// stays input; the text is held back until both sides hold.
func (e *AnswerExchange) ObservePartner(text string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.partnerAnswer = text
	e.partnerKnown = true

	if e.stage == StageWaiting {
		e.stage = StageRevealed
	}
}

// PartnerAnswer returns the partner's text once revealed. Before that it
// returns an empty string and false, regardless of what has been observed.
func (e *AnswerExchange) PartnerAnswer() (string, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.stage != StageRevealed {
		return "", false
	}
	return e.partnerAnswer, true
}
