// Package services contains server-side business logic: profile
// submission, the moderator workflow, accounts and the catalog. Every
// read-modify-write of a profile runs in one transaction holding the row
// lock; events are published only after commit.
package services

import (
	"context"
	"database/sql"
	"errors"

	"github.com/doclearn/doclearn/internal/common"
	"github.com/doclearn/doclearn/internal/dbx"
	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/events"
	"github.com/doclearn/doclearn/internal/server/repositories/repomanager"
)

// Recorder receives business metrics.
type Recorder interface {
	FieldsSubmitted(kind string, n int)
	Decision(decision string)
	ObserveRetries(retries int)
}

// AvatarSigner resolves stored avatar keys to URLs.
type AvatarSigner interface {
	URL(ctx context.Context, key string) (string, error)
	UploadURL(ctx context.Context, userID string) (key, url string, err error)
}

// Deps are the collaborators shared by the services.
type Deps struct {
	DB              *sql.DB
	Repos           repomanager.RepositoryManager
	Events          events.Publisher
	Metrics         Recorder
	Logger          logging.Logger
	TxRetryAttempts int
}

type nopRecorder struct{}

func (nopRecorder) FieldsSubmitted(string, int) {}
func (nopRecorder) Decision(string)             {}
func (nopRecorder) ObserveRetries(int)          {}

func (d Deps) withDefaults() Deps {
	if d.Metrics == nil {
		d.Metrics = nopRecorder{}
	}
	if d.Logger == nil {
		d.Logger = logging.Nop()
	}
	if d.Events == nil {
		d.Events = events.NewLogPublisher(d.Logger)
	}
	if d.TxRetryAttempts < 1 {
		d.TxRetryAttempts = 1
	}
	return d
}

func (d Deps) inTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	return dbx.WithTxRetry(ctx, d.DB, nil, d.TxRetryAttempts, d.Metrics.ObserveRetries, fn)
}

// publish emits e after a commit. Failures are logged only: the state
// change already happened.
func (d Deps) publish(ctx context.Context, e events.ModerationEvent) {
	if err := d.Events.Publish(ctx, e); err != nil {
		d.Logger.Error(ctx, "event publish failed", "event_id", e.ID, "type", string(e.Type), "error", err)
	}
}

// translate maps storage errors onto domain errors.
func translate(err error) error {
	if errors.Is(err, common.ErrVersionConflict) {
		return common.Conflict("profile was modified concurrently, retry the request")
	}
	return err
}

func userNotFound(err error) error {
	if errors.Is(err, common.ErrorNotFound) {
		return common.NotFound("user not found")
	}
	return err
}
