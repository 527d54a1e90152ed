package search

import (
	"context"
	"fmt"
	"strconv"

	"github.com/rubiojr/annots/pkg/core"
)

// Operation names under which RegisterOperations exposes the service.
const (
	OpSearchAnnots     = "searchAnnots"
	OpListAnnotsByPage = "listAnnotsByPage"
	OpListAnnotsByDay  = "listAnnotsByDay"
)

// RegisterOperations exposes the three query shapes on reg. Arguments use
// the same keys as ParseSearchParams; listAnnotsByPage also accepts
// "multiplier", the inner over-fetch factor.
func (s *Service) RegisterOperations(reg *core.Registry) error {
	ops := []struct {
		name string
		op   core.Operation
	}{
		{OpSearchAnnots, func(ctx context.Context, args map[string][]string) (any, error) {
			params, err := s.parseArgs(args)
			if err != nil {
				return nil, err
			}
			return s.SearchAnnots(ctx, params)
		}},
		{OpListAnnotsByPage, func(ctx context.Context, args map[string][]string) (any, error) {
			params, err := s.parseArgs(args)
			if err != nil {
				return nil, err
			}
			multiplier := 0
			if raw := args["multiplier"]; len(raw) > 0 && raw[0] != "" {
				multiplier, err = strconv.Atoi(raw[0])
				if err != nil {
					return nil, fmt.Errorf("%w: parsing multiplier: %v", ErrInvalidQuery, err)
				}
			}
			return s.ListAnnotsByPage(ctx, params, multiplier)
		}},
		{OpListAnnotsByDay, func(ctx context.Context, args map[string][]string) (any, error) {
			params, err := s.parseArgs(args)
			if err != nil {
				return nil, err
			}
			return s.ListAnnotsByDay(ctx, params)
		}},
	}

	for _, entry := range ops {
		if err := reg.Register(entry.name, entry.op); err != nil {
			return fmt.Errorf("registering %s: %w", entry.name, err)
		}
	}
	return nil
}

func (s *Service) parseArgs(args map[string][]string) (SearchParams, error) {
	params, err := ParseSearchParams(args, s.opts.Location)
	if err != nil {
		return params, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	if _, ok := args["limit"]; !ok {
		params.Limit = s.opts.DefaultLimit
	}
	return params, nil
}
