package candidate

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/garnizeh/recruiter/internal/apperr"
	"github.com/garnizeh/recruiter/internal/validation"
	"github.com/garnizeh/recruiter/pkg/models"
)

type sectionOps[T any] struct {
	entity string
	table  string
	create func(context.Context, *T) error
	get    func(context.Context, string) (*T, error)
	update func(context.Context, *T) error
	remove func(context.Context, string) error
	list   func(context.Context, string) ([]T, error)
	// fields exposes the id, owning profile and audit columns of a row.
	fields func(*T) (id *string, profileID *string, audit *models.Audit)
}

// Section is the CRUD surface of one profile section, scoped to the owning profile.
type Section[T any] struct {
	ops sectionOps[T]
	rec ChangeRecorder
}

func (s *Section[T]) Add(ctx context.Context, profileID string, item *T) (*T, error) {
	id, owner, _ := s.ops.fields(item)
	*id, *owner = uuid.NewString(), profileID
	if err := validation.Struct(item); err != nil {
		return nil, err
	}
	if err := s.ops.create(ctx, item); err != nil {
		return nil, fmt.Errorf("create %s: %w", s.ops.entity, err)
	}
	s.rec.Record(ctx, s.ops.entity, *id, s.ops.table, false)
	return item, nil
}

// owned loads a live row and checks that profileID owns it.
func (s *Section[T]) owned(ctx context.Context, profileID, id string) (*T, error) {
	cur, err := s.ops.get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", s.ops.entity, err)
	}
	if cur == nil {
		return nil, apperr.E(apperr.ErrNotFound, s.ops.entity+" not found")
	}
	_, owner, audit := s.ops.fields(cur)
	if audit.IsDeleted {
		return nil, apperr.E(apperr.ErrNotFound, s.ops.entity+" not found")
	}
	if *owner != profileID {
		return nil, apperr.E(apperr.ErrForbidden, s.ops.entity+" belongs to another profile")
	}
	return cur, nil
}

func (s *Section[T]) Get(ctx context.Context, profileID, id string) (*T, error) {
	return s.owned(ctx, profileID, id)
}

func (s *Section[T]) Update(ctx context.Context, profileID, id string, item *T) (*T, error) {
	cur, err := s.owned(ctx, profileID, id)
	if err != nil {
		return nil, err
	}
	_, _, curAudit := s.ops.fields(cur)

	itemID, owner, audit := s.ops.fields(item)
	*itemID, *owner = id, profileID
	*audit = *curAudit
	if err := validation.Struct(item); err != nil {
		return nil, err
	}
	if err := s.ops.update(ctx, item); err != nil {
		return nil, fmt.Errorf("update %s: %w", s.ops.entity, err)
	}
	s.rec.Record(ctx, s.ops.entity, id, s.ops.table, false)
	return item, nil
}

func (s *Section[T]) Delete(ctx context.Context, profileID, id string) error {
	if _, err := s.owned(ctx, profileID, id); err != nil {
		return err
	}
	if err := s.ops.remove(ctx, id); err != nil {
		return fmt.Errorf("delete %s: %w", s.ops.entity, err)
	}
	s.rec.Record(ctx, s.ops.entity, id, s.ops.table, true)
	return nil
}

func (s *Section[T]) List(ctx context.Context, profileID string) ([]T, error) {
	items, err := s.ops.list(ctx, profileID)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", s.ops.entity, err)
	}
	return items, nil
}
