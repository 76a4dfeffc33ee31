package cmd

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"specbook/internal/domain"
)

var (
	dim    = color.New(color.Faint).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

func statusLabel(s domain.MappingStatus) string {
	switch s {
	case domain.StatusImplemented:
		return green(string(s))
	case domain.StatusPartial:
		return yellow(string(s))
	case domain.StatusNotFound:
		return red(string(s))
	default:
		return dim(string(s))
	}
}

func changeLabel(c domain.ChangeType) string {
	label := fmt.Sprintf("%-9s", c)
	switch c {
	case domain.ChangeAdded:
		return green(label)
	case domain.ChangeRemoved:
		return red(label)
	case domain.ChangeChanged:
		return yellow(label)
	default:
		return dim(label)
	}
}

func printEntry(e domain.MappingEntry) {
	fmt.Printf("%s %s  %s\n", bold(e.ObjectID), e.ObjectTitle, statusLabel(e.Status))
	if e.Summary != "" {
		fmt.Printf("    %s\n", e.Summary)
	}
	printFiles("impl", e.ImplFiles)
	printFiles("test", e.TestFiles)
}

func printFiles(label string, files []domain.RelatedFile) {
	for _, f := range files {
		loc := f.FilePath
		if f.LineRange != "" {
			loc += ":" + f.LineRange
		}
		if f.Description != "" {
			fmt.Printf("    %s %s %s\n", dim(label), loc, dim(f.Description))
		} else {
			fmt.Printf("    %s %s\n", dim(label), loc)
		}
	}
}

func printChangelog(rows []domain.MappingChangeEntry, all bool) {
	shown := 0
	for _, r := range rows {
		if !all && r.ChangeType == domain.ChangeUnchanged {
			continue
		}
		fmt.Printf("%s %s %s", changeLabel(r.ChangeType), bold(r.ObjectID), r.ObjectTitle)
		if r.ChangeSummary != "" {
			fmt.Printf("  %s", dim(r.ChangeSummary))
		}
		fmt.Println()
		shown++
	}
	if shown == 0 {
		fmt.Println(dim("No changes."))
	}
}

func printRun(r domain.ScanRun) {
	target := "all features"
	if r.Kind == domain.ScanObject {
		target = r.ObjectID
	}
	state := string(r.State)
	switch r.State {
	case domain.StateCompleted:
		state = green(state)
	case domain.StateError:
		state = red(state)
	}

	id := r.ID
	if len(id) > 8 {
		id = id[:8]
	}
	fmt.Printf("%s  %s  %-9s  %-20s  %8s  in=%d out=%d\n",
		bold(id),
		r.StartedAt.Local().Format("2006-01-02 15:04:05"),
		state,
		target,
		r.Duration().Round(100*time.Millisecond),
		r.TokenUsage.InputTokens,
		r.TokenUsage.OutputTokens,
	)
	if r.Error != "" {
		fmt.Printf("    %s\n", red(r.Error))
	}
}
