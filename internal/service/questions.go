package service

import (
	"context"
	"fmt"
	"log"
	"strings"
	"unicode"

	"github.com/katakuxiko/docquiz/internal/util"
	"github.com/sashabaranov/go-openai"
	"golang.org/x/sync/errgroup"
)

// FallbackQuestions is returned whenever retrieval or generation comes up short.
var FallbackQuestions = []string{
	"What are the key objectives or goals outlined in this document?",
	"How does this document address challenges in its specific domain?",
	"What methodologies or strategies are proposed in the content?",
	"Who are the main stakeholders mentioned and how do they relate to each other?",
	"What actionable recommendations can be derived from this material?",
}

var topicTemplates = []string{
	"What aspects of %s are highlighted in this document?",
	"How does the document characterize the role of %s?",
	"What challenges related to %s are mentioned?",
	"What solutions involving %s are proposed?",
	"How might %s evolve according to this content?",
}

const (
	// failedChunkQuestion stands in for a chunk whose request failed.
	failedChunkQuestion = "What insights can be drawn from this text?"
	// emptyResponseQuestion stands in for a response with no usable text.
	emptyResponseQuestion = "What are the key points in this text?"

	questionSystem = "You are an expert in creating insightful questions from text. Respond with only the question, no explanations."

	questionPrompt = `You are an educational assessment expert specializing in creating thought-provoking questions.

I'll provide you with a text chunk extracted from a document. Your task is to:

1. Analyze the key concepts, facts, and insights in the text
2. Generate ONE highly relevant question that can be answered using only this text
3. Focus on questions that test understanding rather than simple fact recall
4. Ensure the question is specific to this text and wouldn't work for generic content
5. Make the question clear, concise, and directly related to the main points

Here's the text chunk:

"%s"

Generate only the question text without any additional explanation or commentary.`
)

// TopicFallbacks returns the topic-templated fallback questions.
func TopicFallbacks(topic string) []string {
	out := make([]string, len(topicTemplates))
	for i, tpl := range topicTemplates {
		out[i] = fmt.Sprintf(tpl, topic)
	}
	return out
}

// Completer is the chat-completion backend the synthesizer needs.
type Completer interface {
	Complete(ctx context.Context, system, prompt string) (openai.ChatCompletionResponse, error)
}

var _ Completer = (*LLMClient)(nil)

// extractor pulls question text out of one response shape.
type extractor struct {
	name string
	fn   func(openai.ChatCompletionResponse) (string, bool)
}

// extractors are tried in order; the first that yields text wins.
var extractors = []extractor{
	{"direct", func(r openai.ChatCompletionResponse) (string, bool) {
		if len(r.Choices) == 0 {
			return "", false
		}
		s := strings.TrimSpace(r.Choices[0].Message.Content)
		return s, s != ""
	}},
	{"parts", func(r openai.ChatCompletionResponse) (string, bool) {
		if len(r.Choices) == 0 {
			return "", false
		}
		for _, p := range r.Choices[0].Message.MultiContent {
			if p.Type != openai.ChatMessagePartTypeText && p.Type != "" {
				continue
			}
			if s := strings.TrimSpace(p.Text); s != "" {
				return s, true
			}
		}
		return "", false
	}},
}

func extractQuestion(resp openai.ChatCompletionResponse) string {
	for _, ex := range extractors {
		if s, ok := ex.fn(resp); ok {
			return s
		}
	}
	log.Printf("could not find text in completion %q, using fallback", resp.ID)
	return emptyResponseQuestion
}

// Synthesizer turns chunks into candidate questions, one model request per chunk.
type Synthesizer struct {
	llm         Completer
	maxChunks   int
	concurrency int
}

func NewSynthesizer(llm Completer, maxChunks int) *Synthesizer {
	if maxChunks <= 0 {
		maxChunks = 10
	}
	return &Synthesizer{llm: llm, maxChunks: maxChunks, concurrency: 8}
}

// Synthesize generates one question for each of the first maxChunks chunks.
// A failed request costs only its own chunk, which gets a generic question.
func (s *Synthesizer) Synthesize(ctx context.Context, chunks []string) []string {
	if len(chunks) > s.maxChunks {
		chunks = chunks[:s.maxChunks]
	}
	results := make([]string, len(chunks))

	var g errgroup.Group
	g.SetLimit(s.concurrency)
	for i, chunk := range chunks {
		i, chunk := i, chunk
		g.Go(func() error {
			results[i] = s.generate(ctx, chunk)
			return nil
		})
	}
	_ = g.Wait()

	out := results[:0]
	for _, q := range results {
		if strings.TrimSpace(q) != "" {
			out = append(out, q)
		}
	}
	return out
}

func (s *Synthesizer) generate(ctx context.Context, chunk string) string {
	resp, err := s.llm.Complete(ctx, questionSystem, fmt.Sprintf(questionPrompt, chunk))
	if err != nil {
		log.Printf("question generation failed for chunk %q: %v", util.TruncateRunes(chunk, 40), err)
		return failedChunkQuestion
	}
	return extractQuestion(resp)
}

// DedupeOptions tune near-duplicate suppression.
type DedupeOptions struct {
	// A candidate whose word overlap with a kept question exceeds Threshold is dropped.
	Threshold float64
	// Markers identify generic questions; only the first generic one is kept.
	Markers []string
	Limit   int
}

func DefaultDedupeOptions() DedupeOptions {
	return DedupeOptions{
		Threshold: 0.6,
		Markers:   []string{"insights", "drawn", "what insights can be drawn"},
		Limit:     5,
	}
}

// Dedupe keeps questions in order, skipping generic repeats and near-duplicates,
// and stops once Limit are kept.
func Dedupe(questions []string, opts DedupeOptions) []string {
	if opts.Limit <= 0 {
		opts.Limit = 5
	}
	var (
		kept        []string
		keptWords   []map[string]struct{}
		haveGeneric bool
	)
	for _, q := range questions {
		lower := strings.ToLower(q)
		generic := containsAny(lower, opts.Markers)
		if generic && haveGeneric {
			continue
		}

		words := wordSet(lower)
		dup := false
		for _, k := range keptWords {
			if overlap(words, k) > opts.Threshold {
				dup = true
				break
			}
		}
		if dup {
			continue
		}

		kept = append(kept, q)
		keptWords = append(keptWords, words)
		haveGeneric = haveGeneric || generic
		if len(kept) >= opts.Limit {
			break
		}
	}
	return kept
}

// PadQuestions tops qs up from fallbacks until it holds limit items, then caps it.
// Padding is not checked against qs.
func PadQuestions(qs, fallbacks []string, limit int) []string {
	out := append([]string(nil), qs...)
	for i := 0; len(out) < limit && i < len(fallbacks); i++ {
		out = append(out, fallbacks[i])
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if sub != "" && strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func wordSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(s) {
		w = strings.TrimFunc(w, func(r rune) bool { return !unicode.IsLetter(r) && !unicode.IsDigit(r) })
		if w != "" {
			set[w] = struct{}{}
		}
	}
	return set
}

// overlap is |a∩b| / max(|a|,|b|).
func overlap(a, b map[string]struct{}) float64 {
	n := max(len(a), len(b))
	if n == 0 {
		return 1
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	return float64(inter) / float64(n)
}
