package tui

import "github.com/Veraticus/fintracker/internal/model"

type pendingLoadedMsg struct {
	err     error
	pending []model.PendingDecision
}

type resolvedMsg struct {
	err     error
	expense *model.Expense
	id      int64
}

type discardedMsg struct {
	err error
	id  int64
}
