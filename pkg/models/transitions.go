package models

// unitTransitions defines the allowed micro-unit state transitions.
// Key is the current state, value is the set of valid target states.
// complete -> complete is tolerated so repeated completions can log
// additional executions.
var unitTransitions = map[UnitStatus]map[UnitStatus]bool{
	UnitStatusPending: {
		UnitStatusActive:   true,
		UnitStatusComplete: true,
		UnitStatusSkipped:  true,
	},
	UnitStatusActive: {
		UnitStatusComplete: true,
		UnitStatusSkipped:  true,
	},
	UnitStatusComplete: {
		UnitStatusComplete: true,
	},
	UnitStatusSkipped: {},
}

// taskTransitions defines the allowed task state transitions.
var taskTransitions = map[TaskStatus]map[TaskStatus]bool{
	TaskStatusPending: {
		TaskStatusActive:   true,
		TaskStatusComplete: true,
		TaskStatusArchived: true,
	},
	TaskStatusActive: {
		TaskStatusActive:   true,
		TaskStatusPending:  true,
		TaskStatusComplete: true,
		TaskStatusArchived: true,
	},
	TaskStatusComplete: {
		TaskStatusComplete: true,
		TaskStatusArchived: true,
	},
	TaskStatusArchived: {},
}

// CanTransitionUnit checks if a micro-unit state transition is valid.
func CanTransitionUnit(from, to UnitStatus) bool {
	targets, ok := unitTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}

// CanTransitionTask checks if a task state transition is valid.
func CanTransitionTask(from, to TaskStatus) bool {
	targets, ok := taskTransitions[from]
	if !ok {
		return false
	}
	return targets[to]
}
