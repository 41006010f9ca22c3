package hydrawise

import (
	"context"
	"fmt"
	"os"
	"time"
)

// FileSource serves a previously saved report body from disk, ignoring the
// requested window. It implements pipeline.ReportSource.
type FileSource struct {
	Path string
}

func (f FileSource) Fetch(_ context.Context, _, _ time.Time, _ string) ([]byte, error) {
	body, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: read report file: %w", ErrFetch, err)
	}
	return body, nil
}
