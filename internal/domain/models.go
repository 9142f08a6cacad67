package domain

import "time"

// Objective is a named learning topic that groups questions.
type Objective struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// Question models an MCQ question with one correct labeled option.
type Question struct {
	ID            string            `json:"id"`
	ObjectiveID   string            `json:"objective_id"`
	Text          string            `json:"text"`
	Options       map[string]string `json:"options"`
	CorrectAnswer string            `json:"correct_answer"`
	Explanation   string            `json:"explanation"`
}

// ObjectiveResult records a user's latest run against one objective.
type ObjectiveResult struct {
	LastScore   int       `json:"last_score"`
	Accuracy    float64   `json:"accuracy"`
	CompletedAt time.Time `json:"completed_at"`
}

// Account holds a user's credentials and gamification state.
type Account struct {
	PasswordHash        string                     `json:"password_hash"`
	Salt                string                     `json:"salt"`
	Points              int                        `json:"points"`
	Badges              []string                   `json:"badges"`
	Level               int                        `json:"level"`
	CompletedObjectives map[string]ObjectiveResult `json:"completed_objectives"`
}

// Session binds an opaque token to a username. Sessions carry no TTL;
// they live until the document is reseeded.
type Session struct {
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// LeaderboardEntry is one row of the ranked scoreboard.
type LeaderboardEntry struct {
	Username    string    `json:"username"`
	TotalPoints int       `json:"total_points"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Document is the whole persisted state: one JSON file on disk.
type Document struct {
	Objectives  []Objective        `json:"objectives"`
	Questions   []Question         `json:"questions"`
	Users       map[string]Account `json:"users"`
	Leaderboard []LeaderboardEntry `json:"leaderboard"`
	Sessions    map[string]Session `json:"sessions"`
}

// NewDocument returns an empty document with every collection initialized.
func NewDocument() *Document {
	return &Document{
		Objectives:  []Objective{},
		Questions:   []Question{},
		Users:       map[string]Account{},
		Leaderboard: []LeaderboardEntry{},
		Sessions:    map[string]Session{},
	}
}

// ObjectiveSummary annotates an objective with its question count.
type ObjectiveSummary struct {
	Objective
	QuestionCount int `json:"question_count"`
}

// QuizQuestion is a question as presented to a quiz taker: no correct
// answer, no explanation.
type QuizQuestion struct {
	ID      string            `json:"id"`
	Text    string            `json:"text"`
	Options map[string]string `json:"options"`
}

// QuizSheet is a generated quiz for one objective.
type QuizSheet struct {
	Objective Objective      `json:"objective"`
	Questions []QuizQuestion `json:"questions"`
}

// AnswerReview explains one graded question back to the quiz taker.
type AnswerReview struct {
	QuestionID    string `json:"question_id"`
	Submitted     string `json:"submitted"`
	CorrectAnswer string `json:"correct_answer"`
	Explanation   string `json:"explanation"`
	Correct       bool   `json:"is_correct"`
}

// GradeReport summarizes a graded quiz run.
type GradeReport struct {
	Score        int            `json:"score"`
	MaxScore     int            `json:"max_score"`
	Accuracy     float64        `json:"accuracy"`
	AwardedBadge *string        `json:"awarded_badge"`
	Level        int            `json:"level"`
	Results      []AnswerReview `json:"results"`
}

// Profile is the client-facing account view with secrets stripped.
type Profile struct {
	Username            string                     `json:"username"`
	Points              int                        `json:"points"`
	Badges              []string                   `json:"badges"`
	Level               int                        `json:"level"`
	CompletedObjectives map[string]ObjectiveResult `json:"completed_objectives"`
}

// LoginResult is returned to a freshly authenticated client.
type LoginResult struct {
	Token    string `json:"token"`
	Username string `json:"username"`
}
