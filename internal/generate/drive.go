package generate

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.uber.org/zap"

	"github.com/ppiankov/sceneguard/internal/guard"
	"github.com/ppiankov/sceneguard/internal/logging"
	"github.com/ppiankov/sceneguard/internal/model"
	"github.com/ppiankov/sceneguard/internal/tracer"
)

// Driver pulls fragments from a source through a guard.
type Driver struct {
	Out    io.Writer            // receives every processed fragment; may be nil
	Trace  *tracer.SessionTrace // may be nil
	Logger *zap.Logger
}

// Drive runs src through g with no output.
func Drive(ctx context.Context, src Source, g *guard.Guard) (model.GuardResult, error) {
	return Driver{}.Drive(ctx, src, g)
}

// Drive pulls until the source is exhausted or the guard stops the scene.
// The source is closed either way. On a source error the partial result is
// returned with the error.
func (d Driver) Drive(ctx context.Context, src Source, g *guard.Guard) (model.GuardResult, error) {
	defer src.Close()
	logger := logging.OrNop(d.Logger)

	for {
		fragment, err := src.Next(ctx)
		if errors.Is(err, io.EOF) {
			res := g.Finish()
			if !res.ShouldContinue {
				if werr := d.emit(fragment, res); werr != nil {
					return g.Result(), werr
				}
			}
			break
		}
		if err != nil {
			logger.Warn("generation source failed", zap.Error(err))
			return g.Result(), err
		}

		res := g.ProcessFragment(fragment)
		if werr := d.emit(fragment, res); werr != nil {
			return g.Result(), werr
		}
		if !res.ShouldContinue {
			logger.Info("guard stopped generation",
				zap.String("reason", g.Result().TerminationReason))
			break
		}
	}
	return g.Result(), nil
}

func (d Driver) emit(fragment string, res model.FragmentResult) error {
	if d.Trace != nil {
		d.Trace.Observe(fragment, res)
	}
	if d.Out == nil || res.ProcessedFragment == "" {
		return nil
	}
	if _, err := io.WriteString(d.Out, res.ProcessedFragment); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	return nil
}
