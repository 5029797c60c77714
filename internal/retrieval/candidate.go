package retrieval

// Candidate is anything that can be placed into the prompt context: a file
// from an indexed folder or a previously answered question.
type Candidate interface {
	Similarity() float64
	Tokens() int
	// Pinned candidates are considered before all others.
	Pinned() bool
}

// FileCandidate is an indexed file offered as context.
type FileCandidate struct {
	Folder     string  `json:"-"`
	Filename   string  `json:"filename"`
	Content    string  `json:"content"`
	Score      float64 `json:"similarity"`
	TokenCount int     `json:"tokens"`
	Essential  bool    `json:"-"`
}

func (c *FileCandidate) Similarity() float64 { return c.Score }
func (c *FileCandidate) Tokens() int         { return c.TokenCount }
func (c *FileCandidate) Pinned() bool        { return c.Essential }

// AnswerCandidate is a stored question and answer offered as context.
type AnswerCandidate struct {
	ID         uint64  `json:"id"`
	Title      string  `json:"title"`
	Answer     string  `json:"answer"`
	Score      float64 `json:"similarity"`
	TokenCount int     `json:"tokens"`
}

func (c *AnswerCandidate) Similarity() float64 { return c.Score }
func (c *AnswerCandidate) Tokens() int         { return c.TokenCount }
func (c *AnswerCandidate) Pinned() bool        { return false }
