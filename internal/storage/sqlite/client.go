package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/ecotracker/backend/internal/storage/models"
	"github.com/ecotracker/backend/pkg/logger"
)

type Client struct {
	db *sql.DB
}

// NewClient opens (and creates if needed) the database at dbPath.
// ":memory:" gives a private in-memory database.
func NewClient(dbPath string) (*Client, error) {
	if dbPath != ":memory:" {
		if dir := filepath.Dir(dbPath); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
		}
	}

	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// go-sqlite3 serialises writes per connection; one connection also keeps
	// ":memory:" databases from splitting across the pool.
	db.SetMaxOpenConns(1)

	if dbPath != ":memory:" {
		if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS transactions (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		description TEXT NOT NULL DEFAULT '',
		amount REAL NOT NULL,
		carbon REAL NOT NULL,
		category TEXT NOT NULL,
		date TEXT NOT NULL,
		impact TEXT NOT NULL,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_transactions_date ON transactions(date);

	CREATE TABLE IF NOT EXISTS predictions (
		id TEXT PRIMARY KEY,
		material TEXT NOT NULL,
		label TEXT NOT NULL,
		probability_low REAL NOT NULL,
		probability_high REAL NOT NULL,
		recommendation TEXT,
		latency_ms INTEGER,
		created_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_predictions_created ON predictions(created_at);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

// InsertTransaction stores t and sets its ID from the autoincrement key.
func (c *Client) InsertTransaction(ctx context.Context, t *models.Transaction) error {
	query := `
		INSERT INTO transactions (description, amount, carbon, category, date, impact, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	res, err := c.db.ExecContext(
		ctx,
		query,
		t.Description,
		t.Amount,
		t.Carbon,
		t.Category,
		t.Date,
		t.Impact,
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read transaction id: %w", err)
	}
	t.ID = int(id)

	logger.Debug("Transaction inserted", zap.Int("id", t.ID), zap.String("category", t.Category))
	return nil
}

// ListTransactions returns every transaction in insertion order.
func (c *Client) ListTransactions(ctx context.Context) ([]models.Transaction, error) {
	query := `SELECT id, description, amount, carbon, category, date, impact FROM transactions ORDER BY id`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	transactions := []models.Transaction{}
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.Description, &t.Amount, &t.Carbon, &t.Category, &t.Date, &t.Impact); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		transactions = append(transactions, t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate transactions: %w", err)
	}

	return transactions, nil
}

func (c *Client) InsertPrediction(ctx context.Context, record *models.PredictionRecord) error {
	query := `
		INSERT INTO predictions (id, material, label, probability_low, probability_high,
			recommendation, latency_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := c.db.ExecContext(
		ctx,
		query,
		record.ID,
		record.Material,
		record.Label,
		record.ProbabilityLow,
		record.ProbabilityHigh,
		record.Recommendation,
		record.LatencyMS,
		record.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert prediction: %w", err)
	}

	logger.Info("Prediction recorded",
		zap.String("prediction_id", record.ID),
		zap.String("material", record.Material),
		zap.String("label", record.Label),
	)

	return nil
}

// RecentPredictions returns up to limit predictions, newest first.
func (c *Client) RecentPredictions(ctx context.Context, limit int) ([]models.PredictionRecord, error) {
	query := `
		SELECT id, material, label, probability_low, probability_high, recommendation, latency_ms, created_at
		FROM predictions
		ORDER BY created_at DESC, rowid DESC
		LIMIT ?
	`

	rows, err := c.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get predictions: %w", err)
	}
	defer rows.Close()

	records := []models.PredictionRecord{}
	for rows.Next() {
		var r models.PredictionRecord
		var createdAt int64

		err := rows.Scan(&r.ID, &r.Material, &r.Label, &r.ProbabilityLow, &r.ProbabilityHigh,
			&r.Recommendation, &r.LatencyMS, &createdAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}

		r.CreatedAt = time.Unix(createdAt, 0)
		records = append(records, r)
	}

	return records, rows.Err()
}
