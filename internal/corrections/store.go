package corrections

import (
	"fmt"

	"github.com/clinnote-engine/internal/domain"
)

// Open creates the configured correction store. An empty driver means
// corrections are disabled; the caller gets nil and skips the override
// stage.
func Open(config domain.CorrectionsConfig) (domain.CorrectionStore, error) {
	switch config.Driver {
	case "":
		return nil, nil
	case "sqlite":
		return NewSQLiteStore(config.Path)
	case "postgres":
		return NewPostgresStore(config.DSN)
	default:
		return nil, fmt.Errorf("unknown corrections driver %q", config.Driver)
	}
}
