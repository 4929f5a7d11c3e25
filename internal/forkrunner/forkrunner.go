// Package forkrunner drives the sibling [aici.Driver] instances produced by
// a fork concurrently, one goroutine per sibling, and joins their results.
//
// A fork turns one sequence into N independent sequences, each with its own
// single-threaded Driver; nothing in pkg/aici runs them for you, since the
// core has no process-wide scheduler. This is the reference pattern a host
// simulator uses to fan a fork's branches out and collect whatever each
// branch produces.
package forkrunner

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/aici-run/aici-go/pkg/aici"
)

// Sibling drives one fork branch's decoding loop to completion. id is this
// branch's entry in forkGroup; forkGroup is the full sibling set, including
// id itself, exactly as the branch would see it passed to every
// [aici.Driver.MidProcess] call.
type Sibling func(ctx context.Context, id aici.SeqId, forkGroup []aici.SeqId) error

// Run drives every sibling in forkGroup concurrently, one goroutine each,
// and waits for all of them to finish. If any sibling returns an error, Run
// cancels the context passed to the others and returns the first error
// observed.
func Run(ctx context.Context, forkGroup []aici.SeqId, run Sibling) error {
	_, err := RunCollect(ctx, forkGroup, func(ctx context.Context, id aici.SeqId, fg []aici.SeqId) (struct{}, error) {
		return struct{}{}, run(ctx, id, fg)
	})
	return err
}

// SiblingFunc is [Sibling]'s counterpart for branches that produce a value
// (e.g. the text they generated) instead of only an error.
type SiblingFunc[T any] func(ctx context.Context, id aici.SeqId, forkGroup []aici.SeqId) (T, error)

// RunCollect drives every sibling in forkGroup concurrently like [Run],
// additionally collecting each branch's result at the same index it holds
// in forkGroup. If any sibling errors, RunCollect cancels the rest and
// returns the first error observed; the partial results slice is discarded.
func RunCollect[T any](ctx context.Context, forkGroup []aici.SeqId, run SiblingFunc[T]) ([]T, error) {
	results := make([]T, len(forkGroup))

	eg, egCtx := errgroup.WithContext(ctx)
	for i, id := range forkGroup {
		eg.Go(func() error {
			v, err := run(egCtx, id, forkGroup)
			if err != nil {
				return err
			}
			results[i] = v
			return nil
		})
	}

	if err := eg.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
