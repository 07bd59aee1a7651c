package models

// QuestionType tags the concrete Question variant.
type QuestionType string

const (
	TypeMultipleChoice QuestionType = "multiple_choice"
	TypeFreeText       QuestionType = "free_text"
	TypeListening      QuestionType = "listening"
)

// Question is one assessable unit of an exam. The set of implementations is
// closed; callers dispatch on Type() or with a type switch.
type Question interface {
	Position() int
	Type() QuestionType
	PromptText() string
	question()
}

type QuestionBase struct {
	Pos     int          `json:"position"`
	Kind    QuestionType `json:"type"`
	Prompt  string       `json:"prompt"`
	Context string       `json:"context,omitempty"`
}

func (b *QuestionBase) Position() int      { return b.Pos }
func (b *QuestionBase) Type() QuestionType { return b.Kind }
func (b *QuestionBase) PromptText() string { return b.Prompt }
func (b *QuestionBase) question()          {}

// MultipleChoiceQuestion has exactly one correct option. The correct index is
// never serialized with the question itself; review rows carry it instead.
type MultipleChoiceQuestion struct {
	QuestionBase
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
}

func NewMultipleChoiceQuestion(pos int, prompt, context string, options []string, correct int) *MultipleChoiceQuestion {
	return &MultipleChoiceQuestion{
		QuestionBase: QuestionBase{Pos: pos, Kind: TypeMultipleChoice, Prompt: prompt, Context: context},
		Options:      options,
		CorrectIndex: correct,
	}
}

type TaskKind string

const (
	TaskForm     TaskKind = "form"
	TaskMessage  TaskKind = "message"
	TaskSpeaking TaskKind = "speaking"
)

// Task is the structured metadata of a free-text question.
type Task struct {
	Kind         TaskKind `json:"kind"`
	Title        string   `json:"title,omitempty"`
	Instructions string   `json:"instructions,omitempty"`
	Context      string   `json:"context,omitempty"`
	Fields       []string `json:"fields,omitempty"`
	Points       []string `json:"points,omitempty"`
	MinWords     int      `json:"min_words,omitempty"`
	MaxWords     int      `json:"max_words,omitempty"`
}

// FreeTextQuestion has no single correct answer.
type FreeTextQuestion struct {
	QuestionBase
	Task *Task `json:"task,omitempty"`
}

func NewFreeTextQuestion(pos int, prompt string, task *Task) *FreeTextQuestion {
	return &FreeTextQuestion{
		QuestionBase: QuestionBase{Pos: pos, Kind: TypeFreeText, Prompt: prompt},
		Task:         task,
	}
}

// ListeningQuestion is a multiple-choice question that belongs to an audio
// scenario. Position is the flattened global index across all parts.
type ListeningQuestion struct {
	QuestionBase
	Options      []string `json:"options"`
	CorrectIndex int      `json:"-"`
	Part         int      `json:"part"`
	Scenario     int      `json:"scenario"`
	Index        int      `json:"index"`
}

func NewListeningQuestion(pos, part, scenario, index int, prompt string, options []string, correct int) *ListeningQuestion {
	return &ListeningQuestion{
		QuestionBase: QuestionBase{Pos: pos, Kind: TypeListening, Prompt: prompt},
		Options:      options,
		CorrectIndex: correct,
		Part:         part,
		Scenario:     scenario,
		Index:        index,
	}
}

// Choices returns the option list of a choice question, nil for free text.
func Choices(q Question) []string {
	switch v := q.(type) {
	case *MultipleChoiceQuestion:
		return v.Options
	case *ListeningQuestion:
		return v.Options
	}
	return nil
}

// CorrectOption returns the correct index of a choice question.
func CorrectOption(q Question) (int, bool) {
	switch v := q.(type) {
	case *MultipleChoiceQuestion:
		return v.CorrectIndex, true
	case *ListeningQuestion:
		return v.CorrectIndex, true
	}
	return 0, false
}
