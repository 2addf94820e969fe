package app

import (
	"sort"
	"time"
)

// TaskKind names a delayed continuation of a session.
type TaskKind string

const (
	// TaskTrickDone opens the next trick or settles the round after a trick was announced.
	TaskTrickDone TaskKind = "trick_done"
	// TaskNextRound deals the next round after round results were announced.
	TaskNextRound TaskKind = "next_round"
	// TaskTeardown closes a finished session.
	TaskTeardown TaskKind = "teardown"
)

// Task is a scheduled continuation. SeatID carries the trick winner for TaskTrickDone.
type Task struct {
	Kind   TaskKind
	Due    time.Time
	SeatID string
}

// Scheduler holds at most one pending task per kind. It is owned by a single
// session and is not safe for concurrent use.
type Scheduler struct {
	tasks map[TaskKind]Task
}

func NewScheduler() *Scheduler {
	return &Scheduler{tasks: make(map[TaskKind]Task)}
}

// Schedule adds a task, replacing any pending task of the same kind.
func (s *Scheduler) Schedule(t Task) {
	s.tasks[t.Kind] = t
}

// Clear drops every pending task.
func (s *Scheduler) Clear() {
	for k := range s.tasks {
		delete(s.tasks, k)
	}
}

// pending reports whether a task of the given kind is waiting.
func (s *Scheduler) pending(kind TaskKind) bool {
	_, ok := s.tasks[kind]
	return ok
}

func (s *Scheduler) size() int {
	return len(s.tasks)
}

// Due removes and returns every task due at or before now, earliest first.
func (s *Scheduler) Due(now time.Time) []Task {
	var due []Task
	for k, t := range s.tasks {
		if !t.Due.After(now) {
			due = append(due, t)
			delete(s.tasks, k)
		}
	}
	sort.Slice(due, func(i, j int) bool { return due[i].Due.Before(due[j].Due) })
	return due
}
