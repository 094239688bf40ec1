// Package service implements the estimation orchestrator: it composes the
// rate-limit gate, the retrying provider client, the response extractor, and
// the result cache into the two public estimation operations, and guarantees
// that every failure degrades into a well-formed fallback result.
package service

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/reewild/foodprint/internal/cache"
	"github.com/reewild/foodprint/internal/carbon"
	"github.com/reewild/foodprint/internal/clients"
	"github.com/reewild/foodprint/internal/extract"
	"github.com/reewild/foodprint/internal/ratelimit"
)

const (
	textAttemptTimeout   = 45 * time.Second
	visionAttemptTimeout = 60 * time.Second

	fallbackIngredient = "Unknown"
	fallbackCarbonKg   = 1.0

	sourceDishName = "dish_name"
	sourceImage    = "image"
)

const ingredientPrompt = `You are a strict JSON generator.
Given a dish name, return ONLY a JSON array of its likely main ingredients (strings).
No prose, no backticks, no explanations.
Example output: ["rice","chicken","spices"]
Dish: %s`

const visionPrompt = "Identify the dish in the image. Reply with ONLY the dish name."

// Estimator orchestrates dish- and image-based carbon estimation.
type Estimator struct {
	llm         ChatCompleter
	table       *carbon.Table
	gate        *ratelimit.Gate
	results     *cache.Results
	publisher   CompletionPublisher // nil disables event publishing
	model       string
	visionModel string
}

// EstimatorOpts wires an Estimator. Publisher may be nil.
type EstimatorOpts struct {
	LLM         ChatCompleter
	Table       *carbon.Table
	Gate        *ratelimit.Gate
	Results     *cache.Results
	Publisher   CompletionPublisher
	Model       string
	VisionModel string
}

func NewEstimator(opts EstimatorOpts) *Estimator {
	return &Estimator{
		llm:         opts.LLM,
		table:       opts.Table,
		gate:        opts.Gate,
		results:     opts.Results,
		publisher:   opts.Publisher,
		model:       opts.Model,
		visionModel: opts.VisionModel,
	}
}

// EstimateFromDishName infers the dish's main ingredients via the provider
// and aggregates their emission factors. Any failure yields a fallback
// result; the operation never returns an error to the caller.
func (s *Estimator) EstimateFromDishName(ctx context.Context, name string) carbon.Estimate {
	return s.estimateDish(ctx, name, sourceDishName)
}

func (s *Estimator) estimateDish(ctx context.Context, name, source string) carbon.Estimate {
	slog.Info("inferring ingredients for dish", "dish", name, "model", s.model)

	if err := s.gate.Acquire(ctx); err != nil {
		slog.Error("rate-limit wait aborted", "dish", name, "error", err)
		return fallback(name, err.Error())
	}

	prompt := fmt.Sprintf(ingredientPrompt, name)
	raw, err := s.llm.Chat(ctx, clients.ChatRequest{
		Model:          s.model,
		Messages:       []clients.ChatMessage{{Role: "user", Content: prompt}},
		MaxTokens:      200,
		AttemptTimeout: textAttemptTimeout,
	})
	if err != nil {
		slog.Error("ingredient inference failed", "dish", name, "error", err)
		return fallback(name, degradeMessage(err))
	}

	var ingredients []carbon.Ingredient
	total := 0.0
	for _, recognized := range extract.IngredientList(raw) {
		n := strings.ToLower(strings.TrimSpace(recognized))
		if n == "" {
			continue
		}
		kg := carbon.Round1(s.table.Lookup(n))
		total += kg
		ingredients = append(ingredients, carbon.Ingredient{Name: title(n), CarbonKg: kg})
	}

	est := carbon.Estimate{
		Dish:              title(name),
		EstimatedCarbonKg: carbon.Round1(total),
		Ingredients:       ingredients,
	}
	s.publish(ctx, source, est)
	return est
}

// EstimateFromImage identifies the dish on the image via the vision model,
// then delegates to the dish-name path for aggregation. Successful results
// are memoized by the image content hash; a hit skips the whole pipeline.
func (s *Estimator) EstimateFromImage(ctx context.Context, data []byte, mimeType string) carbon.Estimate {
	if len(data) == 0 {
		return fallback("Unknown Dish", "empty image uploaded")
	}
	if mimeType == "" || !strings.HasPrefix(mimeType, "image/") {
		mimeType = "image/jpeg"
	}

	key := cache.Key(data)
	if est, ok := s.results.Get(key); ok {
		slog.Info("image estimate served from cache", "dish", est.Dish)
		return est
	}

	slog.Info("identifying dish from image", "model", s.visionModel, "bytes", len(data), "mime_type", mimeType)

	if err := s.gate.Acquire(ctx); err != nil {
		slog.Error("rate-limit wait aborted", "error", err)
		return fallback("Unknown Dish", err.Error())
	}

	dataURI := "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data)
	raw, err := s.llm.Chat(ctx, clients.ChatRequest{
		Model: s.visionModel,
		Messages: []clients.ChatMessage{{
			Role: "user",
			Content: []any{
				clients.TextPart{Type: "text", Text: visionPrompt},
				clients.ImagePart{Type: "image_url", ImageURL: clients.ImageURL{URL: dataURI}},
			},
		}},
		MaxTokens:      50,
		AttemptTimeout: visionAttemptTimeout,
	})
	if err != nil {
		slog.Error("dish identification failed", "error", err)
		return fallback("Unknown Dish", degradeMessage(err))
	}

	dishName := extract.DishName(raw)
	if dishName == "" {
		return fallback("Unknown Dish", "vision model returned empty dish name")
	}

	est := s.estimateDish(ctx, dishName, sourceImage)
	if !est.Fallback() {
		s.results.Put(key, est)
	}
	return est
}

// publish announces a successful estimate; failures are logged, never
// surfaced to the request.
func (s *Estimator) publish(ctx context.Context, source string, est carbon.Estimate) {
	if s.publisher == nil || est.Fallback() {
		return
	}
	if err := s.publisher.PublishEstimateCompleted(ctx, source, est); err != nil {
		slog.Warn("estimate.completed publish failed", "dish", est.Dish, "error", err)
	}
}

// fallback builds the degraded result: one "Unknown" ingredient at 1.0 kg
// and a populated error message.
func fallback(dish, msg string) carbon.Estimate {
	if msg == "" {
		msg = "unknown error"
	}
	return carbon.Estimate{
		Dish:              title(dish),
		EstimatedCarbonKg: fallbackCarbonKg,
		Ingredients:       []carbon.Ingredient{{Name: fallbackIngredient, CarbonKg: fallbackCarbonKg}},
		Error:             msg,
	}
}

// degradeMessage renders a provider failure for the fallback result,
// flagging throttling distinctly so callers can tell it apart.
func degradeMessage(err error) string {
	var apiErr *clients.APIError
	if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusTooManyRequests {
		return "provider rate limit exceeded, please retry later: " + err.Error()
	}
	return err.Error()
}

// title renders a name for display: each word capitalized, the rest
// lower-cased. Table lookups always use the lower-cased form.
func title(s string) string {
	return cases.Title(language.English).String(strings.ToLower(strings.TrimSpace(s)))
}
