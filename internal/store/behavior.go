package store

import (
	"database/sql"
	"fmt"

	"github.com/pmallory/goldstar/internal/model"
)

type BehaviorStore struct {
	db *sql.DB
}

func NewBehaviorStore(db *sql.DB) *BehaviorStore {
	return &BehaviorStore{db: db}
}

func scanBehavior(scanner interface{ Scan(...any) error }) (*model.Behavior, error) {
	var b model.Behavior
	var active int

	err := scanner.Scan(&b.ID, &b.Name, &b.Points, &b.Kind, &b.Category, &b.Color, &active, &b.CreatedAt, &b.UpdatedAt)
	if err != nil {
		return nil, err
	}

	b.Active = active != 0
	return &b, nil
}

const behaviorCols = `id, name, points, kind, category, color, active, created_at, updated_at`

func (s *BehaviorStore) Create(name string, points int, kind model.BehaviorKind, category, color string, active bool) (*model.Behavior, error) {
	var a int
	if active {
		a = 1
	}

	result, err := s.db.Exec(
		`INSERT INTO behaviors (name, points, kind, category, color, active) VALUES (?, ?, ?, ?, ?, ?)`,
		name, points, kind, category, color, a,
	)
	if err != nil {
		return nil, fmt.Errorf("insert behavior: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("last insert id: %w", err)
	}
	return s.GetByID(id)
}

func (s *BehaviorStore) GetByID(id int64) (*model.Behavior, error) {
	row := s.db.QueryRow(`SELECT `+behaviorCols+` FROM behaviors WHERE id = ?`, id)
	b, err := scanBehavior(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get behavior: %w", err)
	}
	return b, nil
}

// ListByKind returns one catalog (good or bad), active first, then by name.
func (s *BehaviorStore) ListByKind(kind model.BehaviorKind) ([]model.Behavior, error) {
	rows, err := s.db.Query(
		`SELECT `+behaviorCols+` FROM behaviors WHERE kind = ? ORDER BY active DESC, name ASC`,
		kind,
	)
	if err != nil {
		return nil, fmt.Errorf("list behaviors: %w", err)
	}
	defer rows.Close()

	var behaviors []model.Behavior
	for rows.Next() {
		b, err := scanBehavior(rows)
		if err != nil {
			return nil, fmt.Errorf("scan behavior: %w", err)
		}
		behaviors = append(behaviors, *b)
	}
	return behaviors, rows.Err()
}

func (s *BehaviorStore) Update(id int64, name string, points int, category, color string, active bool) (*model.Behavior, error) {
	var a int
	if active {
		a = 1
	}

	_, err := s.db.Exec(
		`UPDATE behaviors SET name = ?, points = ?, category = ?, color = ?, active = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`,
		name, points, category, color, a, id,
	)
	if err != nil {
		return nil, fmt.Errorf("update behavior: %w", err)
	}
	return s.GetByID(id)
}

func (s *BehaviorStore) Delete(id int64) error {
	_, err := s.db.Exec(`DELETE FROM behaviors WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete behavior: %w", err)
	}
	return nil
}
