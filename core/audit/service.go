package audit

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/trezcool/shule/core"
)

var nowFunc = time.Now // mockable

type (
	Repository interface {
		CreateEntry(ctx context.Context, entry Entry, exec ...core.DBExecutor) (Entry, error)
		// QueryEntriesByTarget returns the target's entries, newest first.
		QueryEntriesByTarget(ctx context.Context, targetID string, exec ...core.DBExecutor) ([]Entry, error)
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// Append writes one audit entry. When called with a transaction executor the
// write shares that transaction's fate: a failed append must fail the
// enclosing mutation so nothing goes unaudited.
func (svc *Service) Append(
	ctx context.Context,
	actor core.Actor,
	action Action,
	targetID, detail string,
	exec ...core.DBExecutor,
) (Entry, error) {
	entry := Entry{
		ActorID:    actor.ID,
		Action:     action,
		TargetID:   targetID,
		Detail:     detail,
		OccurredAt: nowFunc().UTC(),
	}
	entry, err := svc.repo.CreateEntry(ctx, entry, exec...)
	if err != nil {
		return Entry{}, errors.Wrap(err, "appending audit entry")
	}
	return entry, nil
}

// History reconstructs a record's timeline, newest first. Pure query.
func (svc *Service) History(ctx context.Context, targetID string) ([]Entry, error) {
	entries, err := svc.repo.QueryEntriesByTarget(ctx, targetID)
	if err != nil {
		return nil, errors.Wrap(err, "querying audit history")
	}
	return entries, nil
}
