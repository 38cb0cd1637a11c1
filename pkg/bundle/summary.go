package bundle

import (
	"fmt"
	"time"

	"empacy/pkg/protocol"

	"github.com/dustin/go-humanize"
)

// FileSummary is the per-file line of a package summary.
type FileSummary struct {
	Name         string               `json:"name"`
	Type         protocol.ContentType `json:"type"`
	Size         int64                `json:"size"`
	LastModified time.Time            `json:"lastModified"`
}

// Summary is the human-oriented description of a package.
type Summary struct {
	Files    []FileSummary `json:"files"`
	Overview string        `json:"overview"`
}

func summarize(records []FileRecord, total int64) Summary {
	files := make([]FileSummary, len(records))
	for i, r := range records {
		files[i] = FileSummary{Name: r.File, Type: r.Type, Size: r.Size, LastModified: r.LastModified}
	}
	return Summary{
		Files:    files,
		Overview: fmt.Sprintf("Context package contains %d files with %s total content", len(records), humanize.IBytes(uint64(total))), //nolint:gosec // sizes are non-negative
	}
}
