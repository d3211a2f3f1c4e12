// Package session holds the per-session mutable state: the active patient
// for roles acting on behalf of a patient, and the operator's last test
// selection. Both are stored as opaque JSON blobs keyed by session id.
package session

import (
	"context"

	"github.com/aymanebs/emr-api/internal/model"
)

type Store interface {
	SetActivePatient(ctx context.Context, sessionID string, patient *model.ActivePatient) error
	// GetActivePatient returns nil, nil when no patient is pinned.
	GetActivePatient(ctx context.Context, sessionID string) (*model.ActivePatient, error)
	ClearActivePatient(ctx context.Context, sessionID string) error

	SetLastSelection(ctx context.Context, sessionID string, selection *model.LastSelection) error
	// GetLastSelection returns nil, nil when nothing was selected.
	GetLastSelection(ctx context.Context, sessionID string) (*model.LastSelection, error)
	ClearLastSelection(ctx context.Context, sessionID string) error
}
