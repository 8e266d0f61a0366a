package versequiz

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DB is the SQLite-backed classification and score store
type DB struct {
	db *sql.DB
}

// OpenDB opens a new database connection
func OpenDB(dbPath string) (*DB, error) {
	db, err := sql.Open(driverName, dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// one writer; also keeps ":memory:" databases on a single connection
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	VerboseLog("Opened %s database (%s driver)", dbPath, driverType)
	return &DB{db: db}, nil
}

// CloseDB closes the database connection
func (db *DB) CloseDB() error {
	return db.db.Close()
}

// CreateTables creates the necessary tables if they don't exist
func (db *DB) CreateTables() error {
	queries := []string{
		`CREATE TABLE IF NOT EXISTS user_books (
			user_id TEXT NOT NULL,
			book TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 0,
			PRIMARY KEY (user_id, book)
		)`,
		`CREATE TABLE IF NOT EXISTS user_chapter_rarities (
			user_id TEXT NOT NULL,
			book TEXT NOT NULL,
			chapter INTEGER NOT NULL,
			rarity TEXT NOT NULL DEFAULT 'common',
			updated_at DATETIME NOT NULL,
			PRIMARY KEY (user_id, book, chapter)
		)`,
		`CREATE TABLE IF NOT EXISTS user_scores (
			user_id TEXT PRIMARY KEY,
			overall_score INTEGER NOT NULL DEFAULT 0,
			session_score INTEGER NOT NULL DEFAULT 0
		)`,
		`CREATE TABLE IF NOT EXISTS meta (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,
	}

	for _, query := range queries {
		if _, err := db.db.Exec(query); err != nil {
			return fmt.Errorf("failed to execute %s: %w", query, err)
		}
	}
	return nil
}

// GetAll loads every classification row for a user
func (db *DB) GetAll(ctx context.Context, userID string) (*Classifications, error) {
	cls := NewClassifications()

	rows, err := db.db.QueryContext(ctx, "SELECT book, enabled FROM user_books WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get books: %w", err)
	}
	for rows.Next() {
		var book string
		var enabled bool
		if err := rows.Scan(&book, &enabled); err != nil {
			rows.Close()
			return nil, fmt.Errorf("failed to scan book: %w", err)
		}
		cls.Books[book] = enabled
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, fmt.Errorf("error iterating books: %w", err)
	}
	rows.Close()

	rows, err = db.db.QueryContext(ctx, "SELECT book, chapter, rarity FROM user_chapter_rarities WHERE user_id = ?", userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get chapter rarities: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var book string
		var chapter int
		var rarity string
		if err := rows.Scan(&book, &chapter, &rarity); err != nil {
			return nil, fmt.Errorf("failed to scan chapter rarity: %w", err)
		}
		cls.SetRarity(book, chapter, Rarity(rarity))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chapter rarities: %w", err)
	}

	return cls, nil
}

const (
	upsertBookSQL = `INSERT INTO user_books (user_id, book, enabled) VALUES (?, ?, ?)
		ON CONFLICT(user_id, book) DO UPDATE SET enabled = excluded.enabled`
	upsertRaritySQL = `INSERT INTO user_chapter_rarities (user_id, book, chapter, rarity, updated_at) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(user_id, book, chapter) DO UPDATE SET rarity = excluded.rarity, updated_at = excluded.updated_at`
)

// SetBookEnabled stores a book's enabled flag
func (db *DB) SetBookEnabled(ctx context.Context, userID, book string, enabled bool) error {
	if _, err := db.db.ExecContext(ctx, upsertBookSQL, userID, book, enabled); err != nil {
		return fmt.Errorf("failed to update book %s: %w", book, err)
	}
	return nil
}

// SetChapterRarity stores a single chapter tier
func (db *DB) SetChapterRarity(ctx context.Context, userID, book string, chapter int, rarity Rarity) error {
	if _, err := db.db.ExecContext(ctx, upsertRaritySQL, userID, book, chapter, string(rarity), time.Now()); err != nil {
		return fmt.Errorf("failed to update rarity of %s %d: %w", book, chapter, err)
	}
	return nil
}

// ApplyBookUpdate writes a batch of chapter tiers and an optional enabled flag in one transaction
func (db *DB) ApplyBookUpdate(ctx context.Context, userID string, upd BookUpdate) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for chapter, rarity := range upd.Rarities {
		if _, err := tx.ExecContext(ctx, upsertRaritySQL, userID, upd.Book, chapter, string(rarity), now); err != nil {
			return fmt.Errorf("failed to update rarity of %s %d: %w", upd.Book, chapter, err)
		}
	}
	if upd.Enabled != nil {
		if _, err := tx.ExecContext(ctx, upsertBookSQL, userID, upd.Book, *upd.Enabled); err != nil {
			return fmt.Errorf("failed to update book %s: %w", upd.Book, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit book update: %w", err)
	}
	return nil
}

// Seed inserts a row per corpus book for a new user; only seedBook starts enabled
func (db *DB) Seed(ctx context.Context, userID string, corpus *Corpus, seedBook string) error {
	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for _, name := range corpus.BookNames() {
		if _, err := tx.ExecContext(ctx,
			"INSERT OR IGNORE INTO user_books (user_id, book, enabled) VALUES (?, ?, ?)",
			userID, name, name == seedBook,
		); err != nil {
			return fmt.Errorf("failed to seed book %s: %w", name, err)
		}
	}
	if _, err := tx.ExecContext(ctx, "INSERT OR IGNORE INTO user_scores (user_id) VALUES (?)", userID); err != nil {
		return fmt.Errorf("failed to seed scores: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit seed: %w", err)
	}
	return nil
}

// HasUser checks whether a user has been seeded
func (db *DB) HasUser(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := db.db.QueryRowContext(ctx, "SELECT EXISTS(SELECT 1 FROM user_books WHERE user_id = ?)", userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check if user exists: %w", err)
	}
	return exists, nil
}

// GetScores returns the stored overall and session score
func (db *DB) GetScores(ctx context.Context, userID string) (int, int, error) {
	var overall, session int
	err := db.db.QueryRowContext(ctx,
		"SELECT overall_score, session_score FROM user_scores WHERE user_id = ?", userID,
	).Scan(&overall, &session)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, nil
		}
		return 0, 0, fmt.Errorf("failed to get scores: %w", err)
	}
	return overall, session, nil
}

// SetOverallScore stores the overall score
func (db *DB) SetOverallScore(ctx context.Context, userID string, score int) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO user_scores (user_id, overall_score) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET overall_score = excluded.overall_score`,
		userID, score,
	)
	if err != nil {
		return fmt.Errorf("failed to update overall score: %w", err)
	}
	return nil
}

// SetSessionScore stores the session score
func (db *DB) SetSessionScore(ctx context.Context, userID string, score int) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO user_scores (user_id, session_score) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET session_score = excluded.session_score`,
		userID, score,
	)
	if err != nil {
		return fmt.Errorf("failed to update session score: %w", err)
	}
	return nil
}

// SetScores stores both scores in a single statement
func (db *DB) SetScores(ctx context.Context, userID string, overall, session int) error {
	_, err := db.db.ExecContext(ctx,
		`INSERT INTO user_scores (user_id, overall_score, session_score) VALUES (?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			overall_score = excluded.overall_score,
			session_score = excluded.session_score`,
		userID, overall, session,
	)
	if err != nil {
		return fmt.Errorf("failed to update scores: %w", err)
	}
	return nil
}

// EnsureCorpus records the corpus digest. When it differs from the stored one, rows
// naming books or chapters the corpus no longer has are deleted.
func (db *DB) EnsureCorpus(ctx context.Context, corpus *Corpus) error {
	var stored string
	err := db.db.QueryRowContext(ctx, "SELECT value FROM meta WHERE key = 'corpus_digest'").Scan(&stored)
	if err != nil && err != sql.ErrNoRows {
		return fmt.Errorf("failed to read corpus digest: %w", err)
	}
	if stored == corpus.Digest() {
		return nil
	}

	removed, err := db.PruneOrphans(ctx, corpus)
	if err != nil {
		return err
	}
	if stored != "" {
		logf("Corpus changed (%.12s -> %.12s), pruned %d orphaned rows", stored, corpus.Digest(), removed)
	}

	_, err = db.db.ExecContext(ctx,
		`INSERT INTO meta (key, value) VALUES ('corpus_digest', ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		corpus.Digest(),
	)
	if err != nil {
		return fmt.Errorf("failed to store corpus digest: %w", err)
	}
	return nil
}

// PruneOrphans deletes classification rows that do not reference an existing corpus
// book and chapter
func (db *DB) PruneOrphans(ctx context.Context, corpus *Corpus) (int, error) {
	type chapterKey struct {
		book    string
		chapter int
	}
	var orphanBooks []string
	var orphanChapters []chapterKey

	rows, err := db.db.QueryContext(ctx, "SELECT DISTINCT book FROM user_books")
	if err != nil {
		return 0, fmt.Errorf("failed to list books: %w", err)
	}
	for rows.Next() {
		var book string
		if err := rows.Scan(&book); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan book: %w", err)
		}
		if _, ok := corpus.Book(book); !ok {
			orphanBooks = append(orphanBooks, book)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to list books: %w", err)
	}

	rows, err = db.db.QueryContext(ctx, "SELECT DISTINCT book, chapter FROM user_chapter_rarities")
	if err != nil {
		return 0, fmt.Errorf("failed to list chapters: %w", err)
	}
	for rows.Next() {
		var k chapterKey
		if err := rows.Scan(&k.book, &k.chapter); err != nil {
			rows.Close()
			return 0, fmt.Errorf("failed to scan chapter: %w", err)
		}
		if _, ok := corpus.Chapter(k.book, k.chapter); !ok {
			orphanChapters = append(orphanChapters, k)
		}
	}
	err = rows.Err()
	rows.Close()
	if err != nil {
		return 0, fmt.Errorf("failed to list chapters: %w", err)
	}

	if len(orphanBooks) == 0 && len(orphanChapters) == 0 {
		return 0, nil
	}

	tx, err := db.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	removed := 0
	for _, book := range orphanBooks {
		res, err := tx.ExecContext(ctx, "DELETE FROM user_books WHERE book = ?", book)
		if err != nil {
			return 0, fmt.Errorf("failed to prune book %s: %w", book, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}
	for _, k := range orphanChapters {
		res, err := tx.ExecContext(ctx, "DELETE FROM user_chapter_rarities WHERE book = ? AND chapter = ?", k.book, k.chapter)
		if err != nil {
			return 0, fmt.Errorf("failed to prune %s %d: %w", k.book, k.chapter, err)
		}
		n, _ := res.RowsAffected()
		removed += int(n)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit prune: %w", err)
	}
	return removed, nil
}
