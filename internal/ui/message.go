package ui

import (
	"github.com/desertthunder/depicts/internal/jobs"
	"github.com/desertthunder/depicts/internal/models"
)

type historyFetchedMsg struct {
	summaries []models.CategorySummary
	err       error
}

type resultsFetchedMsg struct {
	category string
	files    []models.FileRecord
	err      error
}

type jobStartedMsg struct {
	snapshot jobs.Snapshot
	err      error
}

type progressTickMsg struct {
	snapshot jobs.Snapshot
	err      error
}

type categoryDeletedMsg struct {
	category string
	deleted  int
	err      error
}
