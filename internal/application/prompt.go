package application

import (
	"fmt"
	"strings"

	"specbook/internal/domain"
	"specbook/internal/ports"
)

// PromptInput is what the provider is told about one scan
type PromptInput struct {
	Outline string
	Target  *domain.FeatureNode // nil for a full scan
	Listing *ports.SourceListing
}

const systemPrompt = `You map product features to the source files that implement and test them.

You receive a numbered feature outline. Children are listed before their parent.
Every line ends with [id: <id>]; answer using those ids verbatim.

Only reference files from the candidate list. Do not invent paths.

Return ONLY a JSON array (no markdown, no code blocks), one object per feature:
[
  {
    "objectId": "<id from the outline>",
    "objectTitle": "<title from the outline>",
    "status": "implemented" | "partial" | "not_found" | "unknown",
    "summary": "One sentence on how the feature is realised",
    "relatedFiles": [
      {"filePath": "src/auth/login.ts", "lineRange": "10-80", "description": "Login form handler", "type": "impl"},
      {"filePath": "src/auth/login.test.ts", "type": "test"}
    ]
  }
]

Use an empty relatedFiles array when nothing matches.`

// BuildPrompts renders the system and user prompt for a scan.
// Both strings are kept verbatim for diagnostics.
func BuildPrompts(in PromptInput) (system, user string) {
	var b strings.Builder

	if in.Target != nil {
		fmt.Fprintf(&b, "Rescan the feature %q [id: %s] and its sub-features.\n\n", in.Target.DisplayTitle(), in.Target.ID)
	} else {
		b.WriteString("Map every feature in the outline.\n\n")
	}

	b.WriteString("## Features\n\n")
	b.WriteString(in.Outline)

	if in.Listing != nil {
		b.WriteString("\n## Candidate files\n\n")
		if in.Listing.DirectoryTree != "" {
			b.WriteString(in.Listing.DirectoryTree)
		} else {
			for _, f := range in.Listing.Files {
				b.WriteString(f)
				b.WriteByte('\n')
			}
		}
		if in.Listing.Truncated {
			b.WriteString("\n(listing truncated)\n")
		}
	}

	return systemPrompt, b.String()
}
