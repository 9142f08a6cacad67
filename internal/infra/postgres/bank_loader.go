package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"
	"golang.org/x/sync/errgroup"

	"qbank-service/internal/domain"
)

// BankLoader reads authored quiz content (JSONB rows) out of a Postgres
// question bank for import into the document store.
type BankLoader struct {
	pool *pgxpool.Pool
}

func NewBankLoader(pool *pgxpool.Pool) *BankLoader {
	return &BankLoader{pool: pool}
}

// LoadContent fetches all objectives and questions. The two tables are
// queried concurrently.
func (l *BankLoader) LoadContent(ctx context.Context) ([]domain.Objective, []domain.Question, error) {
	var (
		objectives []domain.Objective
		questions  []domain.Question
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		objectives, err = l.loadObjectives(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		questions, err = l.loadQuestions(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return objectives, questions, nil
}

func (l *BankLoader) loadObjectives(ctx context.Context) ([]domain.Objective, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM objectives ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query objectives: %w", err)
	}
	defer rows.Close()

	var objectives []domain.Objective
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan objective: %w", err)
		}
		var obj domain.Objective
		if err := json.Unmarshal(raw, &obj); err != nil {
			return nil, fmt.Errorf("unmarshal objective: %w", err)
		}
		objectives = append(objectives, obj)
	}
	return objectives, rows.Err()
}

func (l *BankLoader) loadQuestions(ctx context.Context) ([]domain.Question, error) {
	rows, err := l.pool.Query(ctx, `SELECT data FROM questions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var questions []domain.Question
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var q domain.Question
		if err := json.Unmarshal(raw, &q); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		questions = append(questions, q)
	}
	return questions, rows.Err()
}
