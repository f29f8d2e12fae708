// Package emoji provides the status symbols used in CLI output.
package emoji

// Symbols shared by the table renderers and command messages.
const (
	// Success marks completed operations and current documents.
	Success = "✓"

	// Error marks expired documents and failed operations.
	Error = "✗"

	// Stop marks shutdown messages.
	Stop = "■"

	// Warning marks documents expiring soon and values needing review.
	Warning = "!"

	// Optional marks missing documents.
	Optional = "-"

	// Unknown marks a status the renderer does not recognize.
	Unknown = "?"
)
