package sync

import (
	"context"
	"fmt"
	"os"

	"github.com/dustin/go-humanize"
	"github.com/rs/zerolog"
)

// RangeOptions configures a pass over a span of months.
type RangeOptions struct {
	BaseDir    string // local root; each month lands in BaseDir/<year>/<MM>
	BasePrefix string // remote root; each month is listed under BasePrefix/<year>/<MM>/
	Start      Period
	EndYear    int
	Src        Source
	DryRun     bool
}

// PeriodResult pairs a month with the outcome of its pass.
type PeriodResult struct {
	Period Period
	Result
}

// SyncRange runs DownloadMissing for each month from opts.Start through
// December of opts.EndYear, in order. The first failure stops the range;
// the results of the months already processed are returned with it.
func SyncRange(ctx context.Context, opts RangeOptions) ([]PeriodResult, error) {
	periods, err := Periods(opts.Start, opts.EndYear)
	if err != nil {
		return nil, err
	}

	log := zerolog.Ctx(ctx)
	var (
		results []PeriodResult
		files   int
		bytes   int64
	)
	for _, p := range periods {
		if err := ctx.Err(); err != nil {
			return results, err
		}

		dir := p.Dir(opts.BaseDir)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return results, fmt.Errorf("%s: %w", p, err)
		}

		log.Info().Str("period", p.String()).Msg("starting")
		res, err := DownloadMissing(ctx, Options{
			Dir:    dir,
			Prefix: p.Prefix(opts.BasePrefix),
			Src:    opts.Src,
			DryRun: opts.DryRun,
		})
		results = append(results, PeriodResult{Period: p, Result: res})
		if err != nil {
			return results, fmt.Errorf("%s: %w", p, err)
		}
		files += len(res.Downloaded)
		bytes += res.Bytes
		log.Info().
			Str("period", p.String()).
			Int("downloaded", len(res.Downloaded)).
			Int("missing", len(res.Missing)).
			Msg("completed")
	}

	log.Info().
		Int("periods", len(periods)).
		Int("files", files).
		Str("bytes", humanize.IBytes(uint64(bytes))).
		Msg("range complete")
	return results, nil
}
