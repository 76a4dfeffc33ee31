package domain

import (
	"fmt"
	"strings"
)

// Diff compares two mapping snapshots and returns one changelog row per object
// id seen in either of them. Rows for current entries come first, in current
// order, followed by removed entries in previous order. Files are compared by
// path only.
func Diff(previous, current []MappingEntry) []MappingChangeEntry {
	prevByID := make(map[string]MappingEntry, len(previous))
	for _, e := range previous {
		if _, dup := prevByID[e.ObjectID]; !dup {
			prevByID[e.ObjectID] = e
		}
	}

	changes := make([]MappingChangeEntry, 0, len(previous)+len(current))
	seen := make(map[string]bool, len(current))

	for _, cur := range current {
		if seen[cur.ObjectID] {
			continue
		}
		seen[cur.ObjectID] = true

		prev, ok := prevByID[cur.ObjectID]
		if !ok {
			changes = append(changes, addedChange(cur))
			continue
		}
		changes = append(changes, DiffEntry(prev, cur))
	}

	for _, prev := range previous {
		if seen[prev.ObjectID] {
			continue
		}
		seen[prev.ObjectID] = true
		changes = append(changes, removedChange(prev))
	}

	return changes
}

// DiffEntry compares two versions of the same object
func DiffEntry(prev, cur MappingEntry) MappingChangeEntry {
	added := filesMissingFrom(cur.Files(), prev.Files())
	removed := filesMissingFrom(prev.Files(), cur.Files())

	change := MappingChangeEntry{
		ObjectID:      cur.ObjectID,
		ObjectTitle:   cur.ObjectTitle,
		ChangeType:    ChangeUnchanged,
		AddedFiles:    added,
		RemovedFiles:  removed,
		CurrentStatus: cur.Status,
	}
	if len(added) > 0 || len(removed) > 0 || prev.Status != cur.Status {
		change.ChangeType = ChangeChanged
		change.ChangeSummary = changeSummary(len(added), len(removed), prev.Status, cur.Status)
	}
	return change
}

func addedChange(cur MappingEntry) MappingChangeEntry {
	files := cur.Files()
	return MappingChangeEntry{
		ObjectID:      cur.ObjectID,
		ObjectTitle:   cur.ObjectTitle,
		ChangeType:    ChangeAdded,
		ChangeSummary: changeSummary(len(files), 0, cur.Status, cur.Status),
		AddedFiles:    files,
		RemovedFiles:  []RelatedFile{},
		CurrentStatus: cur.Status,
	}
}

func removedChange(prev MappingEntry) MappingChangeEntry {
	files := prev.Files()
	return MappingChangeEntry{
		ObjectID:      prev.ObjectID,
		ObjectTitle:   prev.ObjectTitle,
		ChangeType:    ChangeRemoved,
		ChangeSummary: changeSummary(0, len(files), prev.Status, prev.Status),
		AddedFiles:    []RelatedFile{},
		RemovedFiles:  files,
	}
}

// filesMissingFrom returns the files of a whose path does not appear in b
func filesMissingFrom(a, b []RelatedFile) []RelatedFile {
	inB := make(map[string]bool, len(b))
	for _, f := range b {
		inB[f.FilePath] = true
	}
	out := []RelatedFile{}
	seen := make(map[string]bool, len(a))
	for _, f := range a {
		if inB[f.FilePath] || seen[f.FilePath] {
			continue
		}
		seen[f.FilePath] = true
		out = append(out, f)
	}
	return out
}

func changeSummary(added, removed int, from, to MappingStatus) string {
	var parts []string
	if added > 0 {
		parts = append(parts, "+"+pluralFiles(added))
	}
	if removed > 0 {
		parts = append(parts, "-"+pluralFiles(removed))
	}
	if from != to {
		parts = append(parts, fmt.Sprintf("status %s → %s", from, to))
	}
	if len(parts) == 0 {
		return "no files"
	}
	return strings.Join(parts, ", ")
}

func pluralFiles(n int) string {
	if n == 1 {
		return "1 file"
	}
	return fmt.Sprintf("%d files", n)
}
