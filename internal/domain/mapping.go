package domain

import (
	"strings"
	"time"
)

// MappingStatus is the confidence that a feature is implemented
type MappingStatus string

const (
	StatusImplemented MappingStatus = "implemented"
	StatusPartial     MappingStatus = "partial"
	StatusNotFound    MappingStatus = "not_found"
	StatusUnknown     MappingStatus = "unknown"
)

// ParseStatus maps a reported status onto a known value, ignoring case.
// Anything unrecognised, including an empty string, becomes StatusUnknown.
func ParseStatus(s string) MappingStatus {
	status := MappingStatus(strings.ToLower(strings.TrimSpace(s)))
	switch status {
	case StatusImplemented, StatusPartial, StatusNotFound, StatusUnknown:
		return status
	default:
		return StatusUnknown
	}
}

// FileKind tells implementation files from test files
type FileKind string

const (
	FileImpl FileKind = "impl"
	FileTest FileKind = "test"
)

// RelatedFile is a source file the provider associated with a feature
type RelatedFile struct {
	FilePath    string   `json:"filePath"`
	LineRange   string   `json:"lineRange,omitempty"`
	Description string   `json:"description,omitempty"`
	Type        FileKind `json:"type,omitempty"`
}

// MappingEntry is the belief about which files implement and test a feature
type MappingEntry struct {
	ObjectID    string        `json:"objectId"`
	ObjectTitle string        `json:"objectTitle"`
	Status      MappingStatus `json:"status"`
	Summary     string        `json:"summary"`
	ImplFiles   []RelatedFile `json:"implFiles"`
	TestFiles   []RelatedFile `json:"testFiles"`
}

// Files returns implementation files followed by test files
func (e MappingEntry) Files() []RelatedFile {
	files := make([]RelatedFile, 0, len(e.ImplFiles)+len(e.TestFiles))
	files = append(files, e.ImplFiles...)
	return append(files, e.TestFiles...)
}

// ChangeType classifies a changelog row
type ChangeType string

const (
	ChangeAdded     ChangeType = "added"
	ChangeChanged   ChangeType = "changed"
	ChangeRemoved   ChangeType = "removed"
	ChangeUnchanged ChangeType = "unchanged"
)

// MappingChangeEntry is one changelog row
type MappingChangeEntry struct {
	ObjectID      string        `json:"objectId"`
	ObjectTitle   string        `json:"objectTitle"`
	ChangeType    ChangeType    `json:"changeType"`
	ChangeSummary string        `json:"changeSummary,omitempty"`
	AddedFiles    []RelatedFile `json:"addedFiles"`
	RemovedFiles  []RelatedFile `json:"removedFiles"`
	CurrentStatus MappingStatus `json:"currentStatus,omitempty"`
}

// TokenUsage records provider token accounting for a scan
type TokenUsage struct {
	InputTokens  int64 `json:"inputTokens"`
	OutputTokens int64 `json:"outputTokens"`
}

// FeatureMappingIndex is the persisted mapping snapshot of a workspace
type FeatureMappingIndex struct {
	Entries    []MappingEntry       `json:"entries"`
	Changelog  []MappingChangeEntry `json:"changelog"`
	ScannedAt  time.Time            `json:"scannedAt"`
	TokenUsage *TokenUsage          `json:"tokenUsage,omitempty"`
}

// Entry returns the entry for objectID
func (idx *FeatureMappingIndex) Entry(objectID string) (MappingEntry, bool) {
	if idx == nil {
		return MappingEntry{}, false
	}
	for _, e := range idx.Entries {
		if e.ObjectID == objectID {
			return e, true
		}
	}
	return MappingEntry{}, false
}

// Change returns the changelog row for objectID
func (idx *FeatureMappingIndex) Change(objectID string) (MappingChangeEntry, bool) {
	if idx == nil {
		return MappingChangeEntry{}, false
	}
	for _, c := range idx.Changelog {
		if c.ObjectID == objectID {
			return c, true
		}
	}
	return MappingChangeEntry{}, false
}
