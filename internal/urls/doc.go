// Package urls provides centralized constants for the documentation URLs
// shown in help texts and troubleshooting output.
//
// Usage:
//
//	import "github.com/muurk/remootio/internal/urls"
//
//	fmt.Printf("Enable the API first, see: %s\n", urls.APIDocumentation)
package urls
