package model

// TextChunk is a trimmed slice of a source document.
// Start and End are byte offsets of Text within the source.
type TextChunk struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Start int    `json:"start"`
	End   int    `json:"end"`
}

// EmbeddedChunk pairs a chunk text with the vector produced from it.
type EmbeddedChunk struct {
	Text      string    `json:"text"`
	Embedding []float32 `json:"embedding"`
}

// Record is what a vector backend persists.
type Record struct {
	ID       string         `json:"id"`
	Vector   []float32      `json:"-"`
	Metadata map[string]any `json:"metadata"`
}

// Match is a single similarity hit. Metadata carries the chunk text under "text".
type Match struct {
	ID       string         `json:"id"`
	Score    float64        `json:"score"`
	Metadata map[string]any `json:"metadata,omitempty"`
}

// Text returns the chunk text stored with the match, or "".
func (m Match) Text() string {
	if m.Metadata == nil {
		return ""
	}
	s, _ := m.Metadata["text"].(string)
	return s
}

// Provenance is the metadata shared by every record of one upload.
type Provenance struct {
	Filename  string
	JobTitle  string
	Source    string
	JobID     string
	Timestamp string
}

// BatchOutcome reports one upsert batch.
type BatchOutcome struct {
	Batch int    `json:"batch"`
	Count int    `json:"count"`
	Error string `json:"error,omitempty"`
}

type UpsertResult struct {
	Success     bool           `json:"success"`
	VectorCount int            `json:"vectorCount"`
	Message     string         `json:"message,omitempty"`
	Error       string         `json:"error,omitempty"`
	Batches     []BatchOutcome `json:"batches,omitempty"`
}

type QueryResult struct {
	Success bool    `json:"success"`
	Matches []Match `json:"matches"`
	Error   string  `json:"error,omitempty"`
}

type DeleteResult struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// Question sources reported alongside a QuestionSet.
const (
	SourceRecentUpload = "recent-upload"
	SourceIndex        = "index"
	SourceTopicQuery   = "topic-query"
	SourceFallback     = "fallback"
)

// QuestionSet is the answer to a question request.
type QuestionSet struct {
	Questions  []string `json:"questions"`
	Topic      string   `json:"topic"`
	Source     string   `json:"source"`
	MatchCount int      `json:"matchCount"`
}

// IngestResult summarises one processed upload.
type IngestResult struct {
	JobID         string   `json:"jobId"`
	Filename      string   `json:"filename"`
	JobTitle      string   `json:"jobTitle"`
	Chunks        []string `json:"chunks"`
	VectorCount   int      `json:"vectorCount"`
	VectorStorage string   `json:"vectorStorage"`
	Error         string   `json:"error,omitempty"`
}

type QuestionsRequest struct {
	Topic string `json:"topic" query:"topic"`
}
