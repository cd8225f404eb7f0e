package translation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/lehigh-university-libraries/panelator/internal/images"
	"github.com/lehigh-university-libraries/panelator/internal/merge"
	"github.com/lehigh-university-libraries/panelator/internal/models"
	"github.com/lehigh-university-libraries/panelator/internal/storage"
)

// pageWorkers bounds concurrent page recognition within one job.
const pageWorkers = 2

// Pipeline executes one job end to end.
type Pipeline struct {
	store   *storage.Provider
	source  images.Source
	engines *Engines
	policy  merge.Policy
	tol     merge.Tolerances
	log     *slog.Logger
}

// NewPipeline wires a pipeline.
func NewPipeline(store *storage.Provider, source images.Source, engines *Engines, policy merge.Policy, tol merge.Tolerances, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		store:   store,
		source:  source,
		engines: engines,
		policy:  policy,
		tol:     tol,
		log:     log,
	}
}

// Run marks the job Translating, produces its result file and marks it
// Translated. Expected failures are returned as *JobError; cancellation is
// returned as the context error.
func (p *Pipeline) Run(ctx context.Context, job *Job) error {
	if err := job.SetStatus(Translating); err != nil {
		return classify(KindState, err)
	}
	log := p.log.With("run", uuid.NewString(), "chapter", job.ChapterID)
	start := time.Now()
	log.Info("Translating chapter", "engine", job.Options.Engine.String(), "from", job.Options.From.String(), "to", job.Options.To.String())

	dir, err := p.store.DocumentDir(job.Chapter.Title, job.Chapter.Source)
	if err != nil {
		return classify(KindStorage, err)
	}

	pages, err := p.source.Pages(ctx, job.Chapter)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(KindSource, err)
	}

	lease, err := p.engines.Acquire(job.Options)
	if err != nil {
		return err
	}
	defer lease.Release()

	result, err := p.recognize(ctx, lease, pages)
	if err != nil {
		return err
	}
	log.Debug("Recognized chapter", "pages", len(result), "blocks", result.BlockCount())

	if err := lease.Translator.Translate(ctx, result); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return classify(KindTranslation, err)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	file := storage.ResultFileName(job.Chapter.Name, job.Chapter.Scanlator)
	if err := p.store.WriteResult(dir, file, result); err != nil {
		return classify(KindWrite, err)
	}
	if err := job.SetStatus(Translated); err != nil {
		return classify(KindState, err)
	}
	log.Info("Translated chapter", "pages", len(result), "blocks", result.BlockCount(), "duration", time.Since(start))
	return nil
}

func (p *Pipeline) recognize(ctx context.Context, lease *Lease, pages []images.Page) (models.DocumentResult, error) {
	result := make(models.DocumentResult, len(pages))
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(pageWorkers)
	for _, page := range pages {
		g.Go(func() error {
			pr, err := p.recognizePage(gctx, lease, page)
			if err != nil {
				return err
			}
			mu.Lock()
			result[page.Key] = pr
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return result, nil
}

func (p *Pipeline) recognizePage(ctx context.Context, lease *Lease, page images.Page) (*models.PageResult, error) {
	data, err := images.ReadPage(ctx, page)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(KindSource, err)
	}
	w, h, err := images.Size(data)
	if err != nil {
		return nil, classify(KindSource, fmt.Errorf("page %s: %w", page.Key, err))
	}

	regions, err := lease.Recognizer.Recognize(ctx, data)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classify(KindRecognition, fmt.Errorf("page %s: %w", page.Key, err))
	}

	blocks := make([]models.TextBlock, 0, len(regions))
	for _, r := range regions {
		blocks = append(blocks, models.BlockFromRegion(r))
	}
	return &models.PageResult{
		Blocks:    merge.Apply(p.policy, blocks, p.tol),
		ImgWidth:  float32(w),
		ImgHeight: float32(h),
	}, nil
}
