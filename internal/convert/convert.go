// Package convert defines the document-conversion collaborator: an external
// service that turns binary document formats (word-processor files, HTML)
// into plain text or Markdown. The engine only ever needs the converted
// text; format parsing and asset handling stay on the service side.
package convert

import (
	"context"
	"io"
)

// Converter supplies plain text or Markdown for a source document.
type Converter interface {
	Convert(ctx context.Context, name string, src io.Reader) (string, error)
}
