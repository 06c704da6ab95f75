// Package persist connects a running session to where its record lives.
package persist

import (
	"context"
	"errors"

	"github.com/verte-zerg/redline/internal/model"
	"github.com/verte-zerg/redline/internal/store"
)

var (
	// ErrUnauthorized is returned when the backend rejects the caller's credentials.
	ErrUnauthorized = errors.New("access denied")
	// ErrNotFound is returned when the record does not exist for the caller.
	ErrNotFound = errors.New("session not found")
	// ErrSessionEnded is returned when patching or finalizing a record that already ended.
	ErrSessionEnded = errors.New("session already ended")
)

// Gateway is the record API a session and the CLI talk to.
type Gateway interface {
	Create(ctx context.Context, req model.CreateRequest) (model.SessionRecord, error)
	Get(ctx context.Context, id string) (model.SessionRecord, error)
	List(ctx context.Context, filter model.ListFilter) ([]model.SessionRecord, error)
	Patch(ctx context.Context, id string, patch model.SessionPatch) (model.SessionRecord, error)
	Finalize(ctx context.Context, id string, req model.FinalizeRequest) (model.SessionRecord, error)
	Delete(ctx context.Context, id string) error
}

// Local serves records straight from a SQLite store for a single user.
type Local struct {
	Store  *store.Store
	UserID string
}

// Create implements Gateway.
func (l *Local) Create(ctx context.Context, req model.CreateRequest) (model.SessionRecord, error) {
	rec, err := l.Store.Create(ctx, l.UserID, req)
	return rec, mapStoreErr(err)
}

// Get implements Gateway.
func (l *Local) Get(ctx context.Context, id string) (model.SessionRecord, error) {
	rec, err := l.Store.Get(ctx, l.UserID, id)
	return rec, mapStoreErr(err)
}

// List implements Gateway.
func (l *Local) List(ctx context.Context, filter model.ListFilter) ([]model.SessionRecord, error) {
	records, err := l.Store.List(ctx, l.UserID, filter)
	return records, mapStoreErr(err)
}

// Patch implements Gateway.
func (l *Local) Patch(ctx context.Context, id string, patch model.SessionPatch) (model.SessionRecord, error) {
	rec, err := l.Store.Patch(ctx, l.UserID, id, patch)
	return rec, mapStoreErr(err)
}

// Finalize implements Gateway.
func (l *Local) Finalize(ctx context.Context, id string, req model.FinalizeRequest) (model.SessionRecord, error) {
	rec, err := l.Store.Finalize(ctx, l.UserID, id, req)
	return rec, mapStoreErr(err)
}

// Delete implements Gateway.
func (l *Local) Delete(ctx context.Context, id string) error {
	return mapStoreErr(l.Store.Delete(ctx, l.UserID, id))
}

func mapStoreErr(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, store.ErrNotFound):
		return ErrNotFound
	case errors.Is(err, store.ErrSessionEnded):
		return ErrSessionEnded
	default:
		return err
	}
}
