package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/depicts/internal/models"
)

var (
	_ list.Item = categoryItem{}
	_ list.Item = fileItem{}
)

// categoryItem wraps [models.CategorySummary] to implement [list.Item].
type categoryItem struct {
	summary models.CategorySummary
}

func (i categoryItem) FilterValue() string { return i.summary.Category }
func (i categoryItem) Title() string       { return i.summary.Category }
func (i categoryItem) Description() string {
	return fmt.Sprintf("%d files • %d%% with depicts • analyzed %s",
		i.summary.Total,
		i.summary.Coverage,
		i.summary.LastAnalyzed.Format("2006-01-02 15:04"),
	)
}

// fileItem wraps [models.FileRecord] to implement [list.Item].
type fileItem struct {
	record models.FileRecord
}

func (i fileItem) FilterValue() string { return i.record.FileName }
func (i fileItem) Title() string       { return i.record.FileName }
func (i fileItem) Description() string {
	if !i.record.HasDepicts {
		return "no depicts statements"
	}
	if i.record.Depicts == "" {
		return "depicts present"
	}
	return fmt.Sprintf("depicts: %s", i.record.Depicts)
}
