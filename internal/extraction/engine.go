package extraction

import (
	"context"
	"fmt"
	"log"
	"time"

	"foresight/internal/domain"
	"foresight/internal/validation"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// TextGenerator is one language-model provider behind the uniform
// text-in/text-out contract.
type TextGenerator interface {
	Name() string
	Generate(ctx context.Context, systemPrompt, userPrompt string) (string, error)
}

type PredictionStore interface {
	InsertPrediction(ctx context.Context, p domain.Prediction) (*domain.Prediction, error)
}

type ContentStore interface {
	UpdateStatus(ctx context.Context, id int64, status domain.ContentStatus) error
	MarkProcessed(ctx context.Context, id int64) error
}

// MarketData resolves extracted symbols to assets and supplies the baseline
// price used for direction correction.
type MarketData interface {
	ResolveAsset(ctx context.Context, symbol, name string) (*domain.Asset, error)
	GetQuote(ctx context.Context, symbol string) (*domain.PriceSnapshot, error)
}

// VideoContext is the extraction input for one content item.
type VideoContext struct {
	Title       string
	ChannelName string
	Description string
	Transcript  string
}

// Result is the output of one extraction run.
type Result struct {
	Candidates []domain.PredictionCandidate
	Summary    Summary
	Meta       ResultMeta
}

type ResultMeta struct {
	Model        string
	ChunkCount   int
	FailedChunks int
	ProcessingMS int64
	Errors       []string
}

type Engine struct {
	tracer      trace.Tracer
	primary     TextGenerator
	fallback    TextGenerator
	chunks      chunker
	callCeiling int
	predictions PredictionStore
	content     ContentStore
	market      MarketData
}

func NewEngine(
	tracer trace.Tracer,
	primary, fallback TextGenerator,
	predictions PredictionStore,
	content ContentStore,
	market MarketData,
	callCeiling, chunkTokens, overlapTokens int,
) *Engine {
	if callCeiling <= 0 {
		callCeiling = defaultCallCeil
	}
	return &Engine{
		tracer:      tracer,
		primary:     primary,
		fallback:    fallback,
		chunks:      newChunker(chunkTokens, overlapTokens),
		callCeiling: callCeiling,
		predictions: predictions,
		content:     content,
		market:      market,
	}
}

// Extract pulls prediction candidates out of one video's text. Long
// transcripts are chunked on sentence boundaries; each chunk carries the
// video's title and channel for context, and chunk order is preserved in
// the collected output.
func (e *Engine) Extract(ctx context.Context, vc VideoContext) (Result, error) {
	ctx, span := e.tracer.Start(ctx, "extraction.extract")
	defer span.End()

	start := time.Now()

	// Span offsets in the model output are relative to the text the model
	// sees, so the chunked and single-call paths must feed it the same
	// source. Title and description travel in the prompt header instead.
	source := vc.Transcript
	if source == "" {
		source = vc.Title + "\n" + vc.Description
	}
	tokens := EstimateTokens(vc.Title + "\n" + vc.Description + "\n" + source)
	span.SetAttributes(attribute.Int("extraction.estimated_tokens", tokens))

	var chunks []Chunk
	if tokens <= e.callCeiling {
		chunks = []Chunk{{Text: source}}
	} else {
		chunks = e.chunks.split(source)
	}

	res := Result{Meta: ResultMeta{ChunkCount: len(chunks)}}
	for _, chunk := range chunks {
		raw, model, err := e.generate(ctx, vc, chunk.Text)
		if err != nil {
			// One bad chunk is skipped, not fatal.
			res.Meta.FailedChunks++
			res.Meta.Errors = append(res.Meta.Errors, fmt.Sprintf("chunk %d: %v", chunk.Index, err))
			log.Printf("extraction chunk %d failed: %v", chunk.Index, err)
			continue
		}
		res.Meta.Model = model
		res.Candidates = append(res.Candidates, parseCandidates(raw, chunk.Offset)...)
	}

	res.Candidates = dedupe(res.Candidates)
	for i := range res.Candidates {
		score, grade := scoreQuality(res.Candidates[i])
		res.Candidates[i].Meta.Model = res.Meta.Model
		res.Candidates[i].Meta.QualityScore = score
		res.Candidates[i].Meta.QualityGrade = grade
	}
	res.Summary = buildSummary(res.Candidates)
	res.Meta.ProcessingMS = time.Since(start).Milliseconds()

	span.SetAttributes(
		attribute.Int("extraction.candidates", len(res.Candidates)),
		attribute.Int("extraction.failed_chunks", res.Meta.FailedChunks),
	)

	if res.Meta.FailedChunks == len(chunks) {
		return res, fmt.Errorf("all %d extraction chunk(s) failed", len(chunks))
	}
	return res, nil
}

// generate tries the primary provider, then the fallback with the same
// prompt. The name of the provider that answered is returned with the text.
func (e *Engine) generate(ctx context.Context, vc VideoContext, chunkText string) (string, string, error) {
	system := systemPrompt
	user := userPrompt(vc, chunkText)

	raw, err := e.primary.Generate(ctx, system, user)
	if err == nil {
		return raw, e.primary.Name(), nil
	}
	if e.fallback == nil {
		return "", "", err
	}
	log.Printf("primary provider %s failed, trying %s: %v", e.primary.Name(), e.fallback.Name(), err)

	raw, ferr := e.fallback.Generate(ctx, system, user)
	if ferr != nil {
		return "", "", fmt.Errorf("primary: %v; fallback: %w", err, ferr)
	}
	return raw, e.fallback.Name(), nil
}

// ProcessItem runs extraction for one queued item and persists the
// surviving candidates. A storage failure for one candidate is logged and
// does not abort the batch.
func (e *Engine) ProcessItem(ctx context.Context, item *domain.ContentItem) error {
	ctx, span := e.tracer.Start(ctx, "extraction.process-item")
	defer span.End()
	span.SetAttributes(attribute.Int64("content_item.id", item.ID))

	item.Status = domain.StatusExtracting
	if err := e.content.UpdateStatus(ctx, item.ID, domain.StatusExtracting); err != nil {
		return fmt.Errorf("mark extracting: %w", err)
	}

	res, err := e.Extract(ctx, VideoContext{
		Title:       item.Data.Title,
		Description: item.Data.Description,
		Transcript:  item.Data.Transcript,
	})
	if err != nil {
		return err
	}

	for _, cand := range res.Candidates {
		if err := e.storeCandidate(ctx, item, cand); err != nil {
			log.Printf("store candidate %s for item %d: %v", cand.Asset.Symbol, item.ID, err)
		}
	}

	item.Status = domain.StatusProcessed
	if err := e.content.MarkProcessed(ctx, item.ID); err != nil {
		return fmt.Errorf("mark processed: %w", err)
	}
	return nil
}

func (e *Engine) storeCandidate(ctx context.Context, item *domain.ContentItem, cand domain.PredictionCandidate) error {
	ctx, span := e.tracer.Start(ctx, "extraction.store-candidate")
	defer span.End()

	asset, err := e.market.ResolveAsset(ctx, cand.Asset.Symbol, cand.Asset.FullName)
	if err != nil {
		return fmt.Errorf("resolve asset %s: %w", cand.Asset.Symbol, err)
	}

	var baseline *float64
	if quote, err := e.market.GetQuote(ctx, cand.Asset.Symbol); err != nil {
		log.Printf("baseline quote for %s: %v", cand.Asset.Symbol, err)
	} else if quote != nil {
		baseline = &quote.PriceUSD
	}

	corr := validation.CorrectDirection(cand.Direction, cand.TargetPrice, baseline)
	direction := cand.Direction
	if corr.CorrectionMade {
		direction = corr.MathDirection
	}

	p := domain.Prediction{
		ForecasterID:  item.ForecasterID,
		ContentItemID: item.ID,
		Text:          cand.Text,
		Confidence:    cand.Confidence / 100,
		Direction:     direction,
		Timeframe:     cand.Timeframe,
		TargetDate:    cand.TargetDate,
		TargetPrice:   cand.TargetPrice,
		BaselinePrice: baseline,
		Outcome:       domain.OutcomePending,
		Correction:    &corr,
		Model:         cand.Meta.Model,
		QualityScore:  cand.Meta.QualityScore,
		QualityGrade:  cand.Meta.QualityGrade,
	}
	if asset != nil {
		p.AssetID = &asset.ID
	}

	if _, err := e.predictions.InsertPrediction(ctx, p); err != nil {
		return fmt.Errorf("insert prediction: %w", err)
	}
	return nil
}
