package model

import "time"

// OwnershipType identifies what a selection series draws from
type OwnershipType string

const (
	OwnershipPoll          OwnershipType = "poll"
	OwnershipQuestionnaire OwnershipType = "questionnaire"
)

func (o OwnershipType) IsValid() bool {
	return o == OwnershipPoll || o == OwnershipQuestionnaire
}

// EligibilityOption maps one support plan to a weight, a priority group and an optional wave
type EligibilityOption struct {
	PlanID           string  `yaml:"planID" validate:"required"`
	PriorityGroup    string  `yaml:"priorityGroup"`
	PriorityModifier float64 `yaml:"priorityModifier" validate:"gt=0"`
	SelectionWave    *int    `yaml:"selectionWave,omitempty"`
}

// EligibilityConfiguration is the ordered rule set attached to one series.
// Version is bumped on every edit and is part of the eligibility cache key.
type EligibilityConfiguration struct {
	ID       string
	SeriesID string
	Version  int
	Options  []EligibilityOption
}

// EligibilityResult is computed per (candidate, configuration) and never persisted
type EligibilityResult struct {
	IsEligible      bool
	EffectiveWeight float64
	PriorityGroup   string
	SelectionWave   *int
}

// Series represents a recurring selection process bound to one poll or questionnaire
type Series struct {
	ID                  string
	Name                string
	OwnershipType       OwnershipType
	QuestionnaireID     string // Empty when the series is not bound to a questionnaire
	CompleteCyclesCount int
	ConcurrencyMarker   string
	CreatedAt           time.Time
}

// CurrentCycle returns the zero based number of the cycle in progress
func (s *Series) CurrentCycle() int {
	return s.CompleteCyclesCount
}

// BatchKind records how a batch was produced
type BatchKind string

const (
	BatchKindAutomatic BatchKind = "automatic"
	BatchKindManual    BatchKind = "manual"
)

// Batch represents one roll of the engine against a series
type Batch struct {
	ID              string
	SeriesID        string
	Kind            BatchKind
	RollStartedAt   time.Time
	RollCompletedAt time.Time
}

// EntryKind is the discriminant of Entry
type EntryKind string

const (
	EntryKindPicked EntryKind = "picked"
	EntryKindEvent  EntryKind = "event"
)

// EventKind names a cycle bookkeeping event
type EventKind string

const (
	EventCycleCompleted   EventKind = "cycle_completed"
	EventRestartTriggered EventKind = "restart_triggered"
)

// Entry is one position in a batch's result list.
// Picked entries carry CandidateID, UserID and Cycle; event entries carry EventKind.
type Entry struct {
	ID            string
	BatchID       string
	BatchPosition int
	Kind          EntryKind

	CandidateID string
	UserID      string
	Cycle       int

	EventKind EventKind
}

// IsPicked reports whether the entry records a selected candidate
func (e Entry) IsPicked() bool {
	return e.Kind == EntryKindPicked
}

// Event is the batch-scoped audit log. Its positions are independent of entry positions.
type Event struct {
	ID            string
	BatchID       string
	BatchPosition int
	Kind          EventKind
	Cycle         int
	Detail        string
}

// UserData holds the per-user fairness state for a series
type UserData struct {
	SeriesID           string
	UserID             string
	LatestWeight       float64
	SelectedCount      int // 0 or 1 within the current cycle
	TotalSelectedCount int
}

// DefaultUserWeight is the LatestWeight given to users seen for the first time
const DefaultUserWeight = 1.0

// NewUserData returns the initial state for a user first seen in a series
func NewUserData(seriesID, userID string) UserData {
	return UserData{
		SeriesID:     seriesID,
		UserID:       userID,
		LatestWeight: DefaultUserWeight,
	}
}

// Candidate is an entity that can be selected (e.g. a submission).
// The payload beyond identity is supplied by the candidate source.
type Candidate struct {
	ID              string
	UserID          string
	Number          int
	UserDisplayName string
	LabelIDs        []string
}

// HasAnyLabel reports whether the candidate carries at least one of the given labels
func (c Candidate) HasAnyLabel(labels map[string]bool) bool {
	for _, label := range c.LabelIDs {
		if labels[label] {
			return true
		}
	}
	return false
}
