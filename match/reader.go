package match

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/graph-gophers/dataloader/v7"
)

// AttributeReader resolves a user id to its attribute bundle.
type AttributeReader interface {
	GetUserAttributes(ctx context.Context, id string) (*Attributes, error)
}

// NewReader returns a reader that assembles each bundle from the three
// single-user lookups of src.
func NewReader(src AttributeSource) AttributeReader {
	return &sourceReader{src: src}
}

type sourceReader struct {
	src AttributeSource
}

func (r *sourceReader) GetUserAttributes(ctx context.Context, id string) (*Attributes, error) {
	rec, err := r.src.GetUserAttributes(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	tags, err := r.src.GetTagSet(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	personality, err := r.src.GetPersonality(ctx, id)
	if err != nil {
		return nil, classify(err)
	}
	return &Attributes{UserRecord: *rec, Tags: tags, Personality: personality}, nil
}

// NewBatchedReader returns a per-request reader that coalesces concurrent
// lookups into one AttributesByIDs call per wait window and caches results for
// its lifetime. Create one per request.
func NewBatchedReader(src BatchAttributeSource, wait time.Duration) AttributeReader {
	return &batchedReader{
		loader: dataloader.NewBatchedLoader(attributesBatchFn(src), dataloader.WithWait[string, *Attributes](wait)),
	}
}

type batchedReader struct {
	loader *dataloader.Loader[string, *Attributes]
}

func (r *batchedReader) GetUserAttributes(ctx context.Context, id string) (*Attributes, error) {
	thunk := r.loader.Load(ctx, id)

	type result struct {
		attrs *Attributes
		err   error
	}
	done := make(chan result, 1)
	go func() {
		attrs, err := thunk()
		done <- result{attrs, err}
	}()

	// the thunk itself does not observe ctx
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: load attributes %s: %w", ErrDependencyFailure, id, ctx.Err())
	case res := <-done:
		return res.attrs, res.err
	}
}

// attributesBatchFn loads a batch of bundles: one result per key, in key order.
func attributesBatchFn(src BatchAttributeSource) dataloader.BatchFunc[string, *Attributes] {
	return func(ctx context.Context, keys []string) []*dataloader.Result[*Attributes] {
		results := make([]*dataloader.Result[*Attributes], len(keys))
		if len(keys) == 0 {
			return results
		}

		found, err := src.AttributesByIDs(ctx, keys)
		if err != nil {
			err = classify(err)
			for i := range results {
				results[i] = &dataloader.Result[*Attributes]{Error: err}
			}
			return results
		}

		for i, key := range keys {
			if attrs, ok := found[key]; ok && attrs != nil {
				results[i] = &dataloader.Result[*Attributes]{Data: attrs}
				continue
			}
			results[i] = &dataloader.Result[*Attributes]{Error: fmt.Errorf("%w: user %s", ErrNotFound, key)}
		}
		return results
	}
}

// classify keeps NotFound and InvalidArgument as they are and turns every
// other storage failure into DependencyFailure, keeping the cause in the chain.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotFound), errors.Is(err, ErrInvalidArgument), errors.Is(err, ErrDependencyFailure):
		return err
	default:
		return fmt.Errorf("%w: %w", ErrDependencyFailure, err)
	}
}
