package stage

import (
	"context"

	"revoice/internal/media"
)

// Handler describes the contract the pipeline engine needs from each stage.
type Handler interface {
	Prepare(context.Context, *media.FileRecord) error
	Execute(context.Context, *media.FileRecord) error
	HealthCheck(context.Context) Health
}
