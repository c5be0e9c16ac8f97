package classifier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const basePrompt = `You are a media library organizer. You receive filenames of
finished downloads and decide where each file belongs inside the library.

Respond with strict JSON only, no prose, in this shape:
{"results":[{"original_filename":"<exactly as given>","suggested_path":"<relative library path including filename>","confidence":<0-100>}]}

Rules:
- suggested_path is relative to the library root and must end with the
  original filename (possibly renamed for clarity, keeping the extension).
- Keep files that belong together (episode and its subtitle) in the same
  directory.
- When you cannot place a file with reasonable confidence, use a low
  confidence value rather than omitting the result.`

func systemPrompt(instructions string) string {
	instructions = strings.TrimSpace(instructions)
	if instructions == "" {
		return basePrompt
	}
	return basePrompt + "\n\nLibrary instructions:\n" + instructions
}

func userPrompt(entries []Entry) string {
	var b strings.Builder
	b.WriteString("Files to classify:\n")
	for i, entry := range entries {
		fmt.Fprintf(&b, "%d. %s\n", i+1, filepath.Base(entry.Path))
		for _, capability := range entry.Capabilities {
			if capability = strings.TrimSpace(capability); capability != "" {
				fmt.Fprintf(&b, "   note: %s\n", capability)
			}
		}
		if custom := strings.TrimSpace(entry.CustomInstructions); custom != "" {
			fmt.Fprintf(&b, "   instructions: %s\n", custom)
		}
	}
	return b.String()
}

// LoadInstructions reads the standing library instructions file. A missing
// or unreadable file simply means no standing instructions.
func LoadInstructions(path string) string {
	if strings.TrimSpace(path) == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(string(data))
}
