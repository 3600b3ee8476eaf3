package extractors

import (
	"context"
	"encoding/json"
	"time"

	"tracklift/internal/logger"
	"tracklift/internal/utils"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// DefaultLLMTimeout matches §5's 120s cap on the language-model extractor.
const DefaultLLMTimeout = 120 * time.Second

// llmSetlistSchema is what the prompt asks the model to return; Extract
// and Salvage both unmarshal into this before converting to the package's
// common ExtractedSetlist/[]string shapes.
type llmSetlistSchema struct {
	DisplayName  string   `json:"display_name"`
	EventDateRaw string   `json:"event_date"`
	Venue        string   `json:"venue"`
	Tracks       []string `json:"tracks"`
}

// LLMExtractor is the tier-3 last-resort strategy of §4.5: the raw page is
// handed to a prompted model that returns structured JSON adhering to the
// extractor's schema. It also implements pipeline.Salvager, backing the
// §4.8.2 low-quality salvage re-attempt.
type LLMExtractor struct {
	client *anthropic.Client
	model  string
	log    logger.Logger
}

func NewLLMExtractor(apiKey string) *LLMExtractor {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))
	return &LLMExtractor{
		client: &client,
		model:  "claude-3-5-sonnet-latest",
		log:    logger.New("extractors.llm"),
	}
}

const extractionPrompt = `You are extracting a DJ set tracklist from a raw web page. Return ONLY a JSON object matching this shape, nothing else:
{"display_name": "...", "event_date": "...", "venue": "...", "tracks": ["Artist - Title (Remix)", ...]}
Each entry in "tracks" must be the raw citation exactly as it would appear under a tracklist, in play order. If an entry is unidentified use "ID - ID" verbatim. Page content follows:

`

// Extract prompts the model with rawPage's cleaned text and parses its
// JSON reply into an ExtractedSetlist. Never returns entries from a
// malformed reply; the caller treats that as extraction failure.
func (l *LLMExtractor) Extract(ctx context.Context, rawPage []byte) (ExtractedSetlist, error) {
	log := l.log.Function("Extract")

	cleaned, _ := utils.CleanUTF8(string(rawPage))

	ctx, cancel := context.WithTimeout(ctx, DefaultLLMTimeout)
	defer cancel()

	message, err := l.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(l.model),
		MaxTokens: 2048,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(extractionPrompt + truncate(cleaned, 20000))),
		},
	})
	if err != nil {
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "llm", Err: err}
	}

	text := messageText(message)
	var parsed llmSetlistSchema
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		log.Warn("llm returned non-JSON or malformed reply", "error", err)
		return ExtractedSetlist{}, &ErrExtractionFailed{Stage: "llm", Err: err}
	}

	entries := make([]RawEntry, 0, len(parsed.Tracks))
	for _, citation := range parsed.Tracks {
		entries = append(entries, RawEntry{Citation: citation})
	}

	return ExtractedSetlist{
		DisplayName:  parsed.DisplayName,
		EventDateRaw: parsed.EventDateRaw,
		Venue:        parsed.Venue,
		Entries:      entries,
	}, nil
}

// Salvage implements pipeline.Salvager: it re-runs Extract and hands back
// just the raw citation strings, letting the enrichment stage decide
// whether the salvage attempt actually improved the yield.
func (l *LLMExtractor) Salvage(ctx context.Context, rawPage string) ([]string, error) {
	result, err := l.Extract(ctx, []byte(rawPage))
	if err != nil {
		return nil, err
	}
	tracks := make([]string, 0, len(result.Entries))
	for _, e := range result.Entries {
		tracks = append(tracks, e.Citation)
	}
	return tracks, nil
}

// messageText concatenates every text content block of a model reply; a
// well-behaved extraction prompt yields exactly one.
func messageText(message *anthropic.Message) string {
	if message == nil {
		return ""
	}
	text := ""
	for _, block := range message.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			text += variant.Text
		}
	}
	return text
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
