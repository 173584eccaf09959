package build

import (
	"context"
	"fmt"

	qerrors "github.com/qiniu/x/errors"
	"golang.org/x/sync/errgroup"
	"go.uber.org/zap"
)

// TargetError is the failure of one request of BuildAll.
type TargetError struct {
	Request *Request
	Err     error
}

func (e *TargetError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Request.Recipe.Name, e.Request.Triple.Key(), e.Err)
}

func (e *TargetError) Unwrap() error { return e.Err }

// BuildAll runs reqs concurrently, at most limit at a time (unbounded when
// limit <= 0). Every request runs to completion whatever the others do.
// Results are in request order, nil for failed requests; the error lists
// every failure as a *TargetError.
func (b *Builder) BuildAll(ctx context.Context, reqs []*Request, limit int) ([]*Result, error) {
	results := make([]*Result, len(reqs))
	errs := make([]error, len(reqs))

	var g errgroup.Group
	if limit > 0 {
		g.SetLimit(limit)
	}
	for i, req := range reqs {
		g.Go(func() error {
			res, err := b.Build(ctx, req)
			if err != nil {
				b.logger.Error("build failed",
					zap.String("recipe", req.Recipe.Name),
					zap.String("target", req.Triple.Key()),
					zap.Error(err))
				errs[i] = &TargetError{Request: req, Err: err}
				return nil
			}
			results[i] = res
			return nil
		})
	}
	g.Wait()

	var list qerrors.List
	for _, err := range errs {
		if err != nil {
			list.Add(err)
		}
	}
	return results, list.ToError()
}

// Failures returns the *TargetErrors carried by an error of BuildAll.
func Failures(err error) []*TargetError {
	var list qerrors.List
	switch e := err.(type) {
	case nil:
		return nil
	case qerrors.List:
		list = e
	default:
		list = qerrors.List{e}
	}
	var out []*TargetError
	for _, e := range list {
		if te, ok := e.(*TargetError); ok {
			out = append(out, te)
		}
	}
	return out
}
