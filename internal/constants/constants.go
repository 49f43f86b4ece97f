// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Template store constants
const (
	// TemplatesSubdir is the directory under the dataset root holding templates
	TemplatesSubdir = "templates"

	// TemplateExt is the file extension of a persisted template
	TemplateExt = ".dat"
)

// Processing constants
const (
	// WorkerPoolSize is the default number of parallel engine calls
	WorkerPoolSize = 4

	// DefaultRunsLimit is the default number of archived runs listed
	DefaultRunsLimit = 20
)

// DefaultLicenses are the engine components required before any engine call.
var DefaultLicenses = []string{"IrisClient", "IrisExtractor", "IrisMatcher"}
