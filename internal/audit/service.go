package audit

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/ladtc/ladtc/internal/shared"
)

// Paging bounds for the timeline.
const (
	DefaultPageSize = 20
	MaxPageSize     = 50
)

// Service serves the audit timeline.
type Service struct {
	repo Reader
}

// NewService builds an audit timeline service.
func NewService(repo Reader) *Service {
	return &Service{repo: repo}
}

// Timeline fetches one page of entries, newest first.
func (s *Service) Timeline(ctx context.Context, filters TimelineFilters) (Result, error) {
	if s.repo == nil {
		return Result{}, fmt.Errorf("audit: repository not configured")
	}
	pageSize := filters.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}
	page, _ := shared.NormalizePage(filters.Page, pageSize)
	params := windowParams(filters)
	params.OffsetRows = int32((page - 1) * pageSize)
	params.LimitRows = pgtype.Int4{Int32: int32(pageSize + 1), Valid: true}

	entries, err := s.repo.Window(ctx, params)
	if err != nil {
		return Result{}, err
	}
	hasNext := len(entries) > pageSize
	if hasNext {
		entries = entries[:pageSize]
	}
	if entries == nil {
		entries = []Entry{}
	}
	paging := PagingInfo{Page: page, PageSize: pageSize, HasNext: hasNext}
	if page > 1 {
		paging.PrevPage = page - 1
	}
	if hasNext {
		paging.NextPage = page + 1
	}
	return Result{Entries: entries, Paging: paging}, nil
}

// Export returns every entry matching filters, ignoring paging.
func (s *Service) Export(ctx context.Context, filters TimelineFilters) ([]Entry, error) {
	if s.repo == nil {
		return nil, fmt.Errorf("audit: repository not configured")
	}
	return s.repo.Window(ctx, windowParams(filters))
}

func windowParams(filters TimelineFilters) WindowParams {
	return WindowParams{
		FromAt:     toPgTime(filters.From),
		ToAt:       toPgTime(filters.To),
		Actor:      optionalText(filters.Actor),
		TargetKind: optionalText(filters.TargetKind),
		Action:     optionalText(filters.Action),
	}
}
