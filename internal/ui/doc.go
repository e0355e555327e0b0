// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// The TUI provides a multi-view workflow over analyzed categories:
//  1. [HistoryView] : Browse previously analyzed categories
//  2. [InputView] : Enter a category name to analyze
//  3. [ProgressView] : Watch a running analysis job phase by phase
//  4. [ResultView] : Inspect per-file depicts results
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern.
// Job progress is polled from the registry on a tick rather than streamed, matching how HTTP clients follow jobs.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, a, c, d, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
