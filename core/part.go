package core

// Part represents a polymorphic segment of inbound request content. Concrete
// part types implement the unexported isPart marker enabling a closed set.
type Part interface{ isPart() }

// TextPart is a plain text content segment.
type TextPart struct {
	Text     string         // Plain UTF-8 text
	Metadata map[string]any // Optional producer-provided metadata
}

// isPart implements the Part interface for TextPart.
func (TextPart) isPart() {}

// DataPart is a structured data segment (e.g., JSON object map).
type DataPart struct {
	Data     map[string]any // Structured key/value payload
	Metadata map[string]any
}

// isPart implements the Part interface for DataPart.
func (DataPart) isPart() {}

// FilePart is a file attachment segment referenced by URI.
type FilePart struct {
	URI      string
	MimeType string
	Name     string
	Metadata map[string]any
}

// isPart implements the Part interface for FilePart.
func (FilePart) isPart() {}

// TextOf returns the text carried by p. Only TextPart carries extractable text.
func TextOf(p Part) (string, bool) {
	switch v := p.(type) {
	case TextPart:
		return v.Text, v.Text != ""
	case *TextPart:
		if v == nil {
			return "", false
		}
		return v.Text, v.Text != ""
	default:
		return "", false
	}
}

// FirstText extracts the text of the first part. It reports false when parts
// is empty or the first part carries no text.
func FirstText(parts []Part) (string, bool) {
	if len(parts) == 0 {
		return "", false
	}
	return TextOf(parts[0])
}
