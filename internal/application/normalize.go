package application

import (
	"bytes"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"specbook/internal/domain"
)

var codeBlockRe = regexp.MustCompile("```(?:json)?\\s*\\n?([\\s\\S]*?)\\n?```")

// Rejection describes a record dropped during normalization
type Rejection struct {
	Index  int
	Reason string
	Raw    string
}

// Normalized is the typed form of a provider response. Entries keep the
// order of the response; ObjectID may be empty until identity resolution.
type Normalized struct {
	Entries  []domain.MappingEntry
	Rejected []Rejection
}

// rawRecord is the wire shape of one mapping record
type rawRecord struct {
	ObjectID     string               `json:"objectId,omitempty"`
	ObjectTitle  string               `json:"objectTitle"`
	Status       string               `json:"status,omitempty"`
	Summary      string               `json:"summary,omitempty"`
	RelatedFiles []domain.RelatedFile `json:"relatedFiles"`
}

// Normalize converts a raw provider response into mapping entries.
// It fails with *MalformedResponseError unless the response is a JSON array
// whose elements are all objects. Individual records lacking objectTitle or a relatedFiles array
// are reported in Rejected and skipped.
func Normalize(raw string) (*Normalized, error) {
	text := stripFences(raw)

	var items []json.RawMessage
	if err := json.Unmarshal([]byte(text), &items); err != nil {
		// Valid JSON of another shape is not worth searching further
		if json.Valid([]byte(text)) {
			return nil, &MalformedResponseError{Reason: "top-level value is not an array", Raw: raw}
		}
		extracted, ok := extractArray(text)
		if !ok {
			return nil, &MalformedResponseError{Reason: "no JSON array found", Raw: raw}
		}
		if err := json.Unmarshal([]byte(extracted), &items); err != nil {
			return nil, &MalformedResponseError{Reason: err.Error(), Raw: raw}
		}
	}

	// null decodes into a nil slice without error
	if items == nil {
		return nil, &MalformedResponseError{Reason: "top-level value is not an array", Raw: raw}
	}
	for i, item := range items {
		if !bytes.HasPrefix(bytes.TrimSpace(item), []byte("{")) {
			return nil, &MalformedResponseError{Reason: fmt.Sprintf("element %d is not an object", i), Raw: raw}
		}
	}

	result := &Normalized{Entries: []domain.MappingEntry{}}
	for i, item := range items {
		entry, reason := normalizeRecord(item)
		if reason != "" {
			result.Rejected = append(result.Rejected, Rejection{Index: i, Reason: reason, Raw: string(item)})
			continue
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

func normalizeRecord(item json.RawMessage) (domain.MappingEntry, string) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(item, &fields); err != nil || fields == nil {
		return domain.MappingEntry{}, "record is not an object"
	}

	var title string
	if err := json.Unmarshal(fields["objectTitle"], &title); err != nil || strings.TrimSpace(title) == "" {
		return domain.MappingEntry{}, "missing objectTitle"
	}

	files, ok := fields["relatedFiles"]
	if !ok || !bytes.HasPrefix(bytes.TrimSpace(files), []byte("[")) {
		return domain.MappingEntry{}, "missing relatedFiles array"
	}

	var rec rawRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return domain.MappingEntry{}, fmt.Sprintf("invalid record: %v", err)
	}

	impl, test := domain.SplitFiles(rec.RelatedFiles)
	return domain.MappingEntry{
		ObjectID:    strings.TrimSpace(rec.ObjectID),
		ObjectTitle: strings.TrimSpace(rec.ObjectTitle),
		Status:      domain.ParseStatus(rec.Status),
		Summary:     rec.Summary,
		ImplFiles:   impl,
		TestFiles:   test,
	}, ""
}

// EncodeRecords renders entries in the wire format Normalize accepts
func EncodeRecords(entries []domain.MappingEntry) (string, error) {
	records := make([]rawRecord, 0, len(entries))
	for _, e := range entries {
		files := make([]domain.RelatedFile, 0, len(e.ImplFiles)+len(e.TestFiles))
		for _, f := range e.ImplFiles {
			f.Type = domain.FileImpl
			files = append(files, f)
		}
		for _, f := range e.TestFiles {
			f.Type = domain.FileTest
			files = append(files, f)
		}
		records = append(records, rawRecord{
			ObjectID:     e.ObjectID,
			ObjectTitle:  e.ObjectTitle,
			Status:       string(e.Status),
			Summary:      e.Summary,
			RelatedFiles: files,
		})
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// stripFences removes a markdown code fence around the payload, if any
func stripFences(raw string) string {
	text := strings.TrimSpace(raw)
	if matches := codeBlockRe.FindStringSubmatch(text); len(matches) > 1 {
		text = strings.TrimSpace(matches[1])
	}
	return text
}

// extractArray finds a JSON array in the text (handles surrounding prose)
func extractArray(text string) (string, bool) {
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
