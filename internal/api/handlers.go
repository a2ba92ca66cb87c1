package api

import (
	"context"
	"errors"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/katakuxiko/docquiz/internal/model"
	"github.com/katakuxiko/docquiz/internal/pdf"
	"github.com/katakuxiko/docquiz/internal/service"
	"github.com/katakuxiko/docquiz/internal/util"
	"github.com/sashabaranov/go-openai"
)

// Pipeline: то, что хендлерам нужно от service.RAGService.
type Pipeline interface {
	Ingest(ctx context.Context, filename, jobTitle, text string) (model.IngestResult, error)
	Questions(ctx context.Context, topic string) model.QuestionSet
	Purge(ctx context.Context) model.DeleteResult
}

var _ Pipeline = (*service.RAGService)(nil)

type ModelLister interface {
	ListModels(ctx context.Context) ([]openai.Model, error)
}

// Handler хранит зависимости хендлеров.
type Handler struct {
	rag       Pipeline
	llm       ModelLister
	extract   func(path string) (string, error)
	uploadDir string
	maxUpload int64
}

type Option func(*Handler)

// WithExtractor подменяет pdf.ExtractText.
func WithExtractor(fn func(path string) (string, error)) Option {
	return func(h *Handler) { h.extract = fn }
}

func NewHandler(rag Pipeline, llm ModelLister, uploadDir string, maxUpload int64, opts ...Option) *Handler {
	h := &Handler{
		rag:       rag,
		llm:       llm,
		extract:   pdf.ExtractText,
		uploadDir: uploadDir,
		maxUpload: maxUpload,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Health: проверка живости.
func (h *Handler) Health(c *fiber.Ctx) error {
	return c.SendString("ok")
}

// ListModels отдаёт список моделей LLM.
func (h *Handler) ListModels(c *fiber.Ctx) error {
	models, err := h.llm.ListModels(c.UserContext())
	if err != nil {
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(models)
}

// Загрузка PDF: извлекаем текст, чистим и сохраняем чанки.
func (h *Handler) Upload(c *fiber.Ctx) error {
	file, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "PDF file is required (form field: file)"})
	}
	if !isPDF(file.Filename, file.Header.Get("Content-Type")) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "uploaded file is not a PDF"})
	}
	if h.maxUpload > 0 && file.Size > h.maxUpload {
		return c.Status(fiber.StatusRequestEntityTooLarge).JSON(fiber.Map{"error": "uploaded file is too large"})
	}

	if err := os.MkdirAll(h.uploadDir, 0o755); err != nil {
		log.Printf("mkdir error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to prepare storage"})
	}
	savePath := filepath.Join(h.uploadDir, util.Timestamped(filepath.Base(file.Filename)))
	if err := c.SaveFile(file, savePath); err != nil {
		log.Printf("save file error: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to save file"})
	}

	raw, err := h.extract(savePath)
	if err != nil {
		log.Printf("extract error: %v", err)
		if errors.Is(err, pdf.ErrNoText) {
			return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "no text extracted from PDF"})
		}
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": "failed to extract text from PDF"})
	}
	text := pdf.Clean(raw)
	if text == "" {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": "no text extracted from PDF"})
	}
	jobTitle := pdf.GuessTitle(text)
	log.Printf("extracted and cleaned %d characters from %s", len(text), file.Filename)

	res, err := h.rag.Ingest(c.UserContext(), file.Filename, jobTitle, text)
	if err != nil {
		log.Printf("ingest error: %v", err)
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	}

	return c.JSON(fiber.Map{
		"message":       "PDF processed successfully",
		"text":          text,
		"jobId":         res.JobID,
		"jobTitle":      res.JobTitle,
		"chunks":        res.Chunks,
		"vectorCount":   res.VectorCount,
		"vectorStorage": res.VectorStorage,
		"error":         res.Error,
	})
}

// Вопросы по документу или по ?topic=. Всегда отвечает 200.
func (h *Handler) Questions(c *fiber.Ctx) error {
	var req model.QuestionsRequest
	if err := c.QueryParser(&req); err != nil {
		log.Printf("query parse error: %v", err)
	}
	return c.JSON(h.rag.Questions(c.UserContext(), req.Topic))
}

// DeleteDocuments очищает векторный индекс.
func (h *Handler) DeleteDocuments(c *fiber.Ctx) error {
	res := h.rag.Purge(c.UserContext())
	if !res.Success {
		return c.Status(fiber.StatusInternalServerError).JSON(res)
	}
	return c.JSON(res)
}

func isPDF(name, contentType string) bool {
	return strings.Contains(strings.ToLower(contentType), "pdf") ||
		strings.EqualFold(filepath.Ext(name), ".pdf")
}
