package app

import (
	"context"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"qbank-service/internal/domain"
	"qbank-service/internal/security"
	"qbank-service/internal/storage"
)

const (
	maxQuestionsPerQuiz = 10
	pointsPerCorrect    = 10
	badgeThreshold      = 0.8
	minPasswordLength   = 8
)

// SessionCache is an optional read-through cache for token lookups so
// authentication does not always contend on the document mutex. The
// document stays the source of truth; a miss falls back to it.
type SessionCache interface {
	Get(ctx context.Context, token string) (string, bool)
	Set(ctx context.Context, token, username string)
}

// Service contains the question bank use cases. All operations open with a
// storage load and, when mutating, end with an atomic save.
type Service struct {
	store *storage.Store
	cache SessionCache
	feed  *LeaderboardFeed

	now      func() time.Time
	newToken func() (string, error)
	shuffle  func(questions []domain.Question)
}

func NewService(store *storage.Store, cache SessionCache) *Service {
	return &Service{
		store:    store,
		cache:    cache,
		feed:     NewLeaderboardFeed(),
		now:      func() time.Time { return time.Now().UTC() },
		newToken: security.NewSessionToken,
		shuffle: func(questions []domain.Question) {
			rand.Shuffle(len(questions), func(i, j int) {
				questions[i], questions[j] = questions[j], questions[i]
			})
		},
	}
}

// NewServiceWithClock is test-only for deterministic timestamps and
// question order.
func NewServiceWithClock(store *storage.Store, cache SessionCache, now func() time.Time) *Service {
	s := NewService(store, cache)
	s.now = now
	s.shuffle = func([]domain.Question) {}
	return s
}

// Register creates an account. The username is trimmed and lowercased
// before any check.
func (s *Service) Register(ctx context.Context, username, password string) (string, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" {
		return "", domain.Invalid("username cannot be empty")
	}
	if len(password) < minPasswordLength {
		return "", domain.Invalid(fmt.Sprintf("password must contain at least %d characters", minPasswordLength))
	}

	err := s.store.Update(func(doc *domain.Document) error {
		if _, exists := doc.Users[username]; exists {
			return domain.Conflict("username already exists")
		}
		hash, salt, err := security.HashPassword(password, "")
		if err != nil {
			return err
		}
		doc.Users[username] = domain.Account{
			PasswordHash:        hash,
			Salt:                salt,
			Points:              0,
			Badges:              []string{},
			Level:               1,
			CompletedObjectives: map[string]domain.ObjectiveResult{},
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	return username, nil
}

// Login verifies credentials and mints a session token. Demo accounts are
// seeded without a password; the first password presented becomes theirs.
func (s *Service) Login(ctx context.Context, username, password string) (domain.LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))

	var token string
	err := s.store.Update(func(doc *domain.Document) error {
		account, exists := doc.Users[username]
		if !exists {
			return domain.Unauthorized("invalid credentials")
		}
		if account.PasswordHash == "" {
			hash, salt, err := security.HashPassword(password, "")
			if err != nil {
				return err
			}
			account.PasswordHash = hash
			account.Salt = salt
			doc.Users[username] = account
		}
		if !security.VerifyPassword(password, account.PasswordHash, account.Salt) {
			return domain.Unauthorized("invalid credentials")
		}
		minted, err := s.newToken()
		if err != nil {
			return err
		}
		token = minted
		doc.Sessions[token] = domain.Session{Username: username, CreatedAt: s.now()}
		return nil
	})
	if err != nil {
		return domain.LoginResult{}, err
	}
	if s.cache != nil {
		s.cache.Set(ctx, token, username)
	}
	return domain.LoginResult{Token: token, Username: username}, nil
}

// Authenticate resolves a session token to its username.
func (s *Service) Authenticate(ctx context.Context, token string) (string, error) {
	if token == "" {
		return "", domain.Unauthorized("missing session token")
	}
	if s.cache != nil {
		if username, ok := s.cache.Get(ctx, token); ok {
			return username, nil
		}
	}

	var username string
	err := s.store.View(func(doc *domain.Document) error {
		session, ok := doc.Sessions[token]
		if !ok {
			return domain.Unauthorized("session expired or invalid")
		}
		username = session.Username
		return nil
	})
	if err != nil {
		return "", err
	}
	if s.cache != nil {
		s.cache.Set(ctx, token, username)
	}
	return username, nil
}

// ListObjectives returns every objective with its question count.
func (s *Service) ListObjectives(ctx context.Context) ([]domain.ObjectiveSummary, error) {
	var summaries []domain.ObjectiveSummary
	err := s.store.View(func(doc *domain.Document) error {
		summaries = make([]domain.ObjectiveSummary, 0, len(doc.Objectives))
		for _, obj := range doc.Objectives {
			count := 0
			for _, q := range doc.Questions {
				if q.ObjectiveID == obj.ID {
					count++
				}
			}
			summaries = append(summaries, domain.ObjectiveSummary{Objective: obj, QuestionCount: count})
		}
		return nil
	})
	return summaries, err
}

// GenerateQuiz picks up to 10 shuffled questions for an objective, with the
// correct answers and explanations stripped.
func (s *Service) GenerateQuiz(ctx context.Context, objectiveID string) (domain.QuizSheet, error) {
	var sheet domain.QuizSheet
	err := s.store.View(func(doc *domain.Document) error {
		objective, found := findObjective(doc, objectiveID)
		if !found {
			return domain.NotFound("learning objective not found")
		}
		questions := questionsForObjective(doc, objectiveID)
		if len(questions) == 0 {
			return domain.NoContent("no questions configured for this objective")
		}

		selection := make([]domain.Question, len(questions))
		copy(selection, questions)
		s.shuffle(selection)
		if len(selection) > maxQuestionsPerQuiz {
			selection = selection[:maxQuestionsPerQuiz]
		}

		sheet.Objective = objective
		sheet.Questions = make([]domain.QuizQuestion, 0, len(selection))
		for _, q := range selection {
			sheet.Questions = append(sheet.Questions, domain.QuizQuestion{
				ID:      q.ID,
				Text:    q.Text,
				Options: q.Options,
			})
		}
		return nil
	})
	return sheet, err
}

// GradeQuiz scores the submitted answers, updates the caller's account and
// the leaderboard, and publishes the new standings to the feed.
func (s *Service) GradeQuiz(ctx context.Context, token, objectiveID string, answers map[string]string) (domain.GradeReport, error) {
	username, err := s.Authenticate(ctx, token)
	if err != nil {
		return domain.GradeReport{}, err
	}

	var report domain.GradeReport
	var standings []domain.LeaderboardEntry
	err = s.store.Update(func(doc *domain.Document) error {
		questions := questionsForObjective(doc, objectiveID)
		if len(questions) == 0 {
			return domain.NoContent("no questions configured for this objective")
		}

		account, ok := doc.Users[username]
		if !ok {
			return domain.Unauthorized("session expired or invalid")
		}

		score := 0
		results := make([]domain.AnswerReview, 0, len(questions))
		for _, q := range questions {
			submitted := answers[q.ID]
			correct := submitted == q.CorrectAnswer
			if correct {
				score += pointsPerCorrect
			}
			results = append(results, domain.AnswerReview{
				QuestionID:    q.ID,
				Submitted:     submitted,
				CorrectAnswer: q.CorrectAnswer,
				Explanation:   q.Explanation,
				Correct:       correct,
			})
		}
		maxScore := len(questions) * pointsPerCorrect
		accuracy := float64(score) / float64(maxScore)

		now := s.now()
		account.Points += score
		account.Level = account.Points/100 + 1
		if account.CompletedObjectives == nil {
			account.CompletedObjectives = map[string]domain.ObjectiveResult{}
		}
		account.CompletedObjectives[objectiveID] = domain.ObjectiveResult{
			LastScore:   score,
			Accuracy:    accuracy,
			CompletedAt: now,
		}

		var awarded *string
		if accuracy >= badgeThreshold {
			badge := badgeName(doc, objectiveID)
			if !contains(account.Badges, badge) {
				account.Badges = append(account.Badges, badge)
				awarded = &badge
			}
		}
		doc.Users[username] = account

		syncLeaderboard(doc, username, account.Points, now)
		standings = append([]domain.LeaderboardEntry(nil), doc.Leaderboard...)

		report = domain.GradeReport{
			Score:        score,
			MaxScore:     maxScore,
			Accuracy:     accuracy,
			AwardedBadge: awarded,
			Level:        account.Level,
			Results:      results,
		}
		return nil
	})
	if err != nil {
		return domain.GradeReport{}, err
	}
	s.feed.Publish(standings)
	return report, nil
}

// Leaderboard returns the persisted standings, already sorted.
func (s *Service) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	var entries []domain.LeaderboardEntry
	err := s.store.View(func(doc *domain.Document) error {
		entries = append([]domain.LeaderboardEntry(nil), doc.Leaderboard...)
		return nil
	})
	return entries, err
}

// Profile returns the caller's account with credentials stripped.
func (s *Service) Profile(ctx context.Context, token string) (domain.Profile, error) {
	username, err := s.Authenticate(ctx, token)
	if err != nil {
		return domain.Profile{}, err
	}

	var profile domain.Profile
	err = s.store.View(func(doc *domain.Document) error {
		account, ok := doc.Users[username]
		if !ok {
			return domain.Unauthorized("session expired or invalid")
		}
		profile = domain.Profile{
			Username:            username,
			Points:              account.Points,
			Badges:              append([]string(nil), account.Badges...),
			Level:               account.Level,
			CompletedObjectives: make(map[string]domain.ObjectiveResult, len(account.CompletedObjectives)),
		}
		for id, result := range account.CompletedObjectives {
			profile.CompletedObjectives[id] = result
		}
		return nil
	})
	if err != nil {
		return domain.Profile{}, err
	}
	return profile, nil
}

// SubscribeLeaderboard returns a channel of leaderboard snapshots pushed
// after every graded quiz. The caller must invoke cancel to avoid leaks.
func (s *Service) SubscribeLeaderboard(ctx context.Context) (<-chan []domain.LeaderboardEntry, func(), error) {
	initial, err := s.Leaderboard(ctx)
	if err != nil {
		return nil, nil, err
	}
	ch, cancel := s.feed.Subscribe(initial)
	return ch, cancel, nil
}

func findObjective(doc *domain.Document, objectiveID string) (domain.Objective, bool) {
	for _, obj := range doc.Objectives {
		if obj.ID == objectiveID {
			return obj, true
		}
	}
	return domain.Objective{}, false
}

func questionsForObjective(doc *domain.Document, objectiveID string) []domain.Question {
	var questions []domain.Question
	for _, q := range doc.Questions {
		if q.ObjectiveID == objectiveID {
			questions = append(questions, q)
		}
	}
	return questions
}

// badgeName falls back to the raw objective id when the objective record is
// gone but its questions are not.
func badgeName(doc *domain.Document, objectiveID string) string {
	if obj, found := findObjective(doc, objectiveID); found {
		return obj.Name + " Master"
	}
	return objectiveID + " Master"
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func syncLeaderboard(doc *domain.Document, username string, points int, now time.Time) {
	for i := range doc.Leaderboard {
		if doc.Leaderboard[i].Username == username {
			doc.Leaderboard[i].TotalPoints = points
			doc.Leaderboard[i].UpdatedAt = now
			storage.SortLeaderboard(doc.Leaderboard)
			return
		}
	}
	doc.Leaderboard = append(doc.Leaderboard, domain.LeaderboardEntry{
		Username:    username,
		TotalPoints: points,
		UpdatedAt:   now,
	})
	storage.SortLeaderboard(doc.Leaderboard)
}
