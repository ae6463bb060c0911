// Package database is the persisted pattern store: URL patterns added by the user, each bound to an extractor
// category, loaded ahead of configured and built-in patterns.
package database

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	gallery_archiver "github.com/alanbriolat/gallery-archiver"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

type RowID = int64

const NullRowID RowID = 0

type Database struct {
	db  *sqlx.DB
	log *zap.SugaredLogger
}

func NewDatabase(path string) (*Database, error) {
	db, err := sqlx.Connect("sqlite3", path)
	if err != nil {
		return nil, err
	}
	return &Database{db: db, log: zap.S().Named("database")}, nil
}

// Open connects to the database at path and applies any pending migrations.
func Open(path string) (*Database, error) {
	d, err := NewDatabase(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := d.Migrate(); err != nil {
		d.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}
	return d, nil
}

func (d *Database) Migrate() error {
	d.log.Debug("running database migrations")
	fs, err := iofs.New(embedMigrations, "migrations")
	if err != nil {
		return err
	}
	driver, err := sqlite3.WithInstance(d.db.DB, &sqlite3.Config{})
	if err != nil {
		return err
	}
	m, err := migrate.NewWithInstance("iofs", fs, "sqlite3", driver)
	if err != nil {
		return err
	}
	err = m.Up()
	switch {
	case err == nil:
		d.log.Info("database migration complete")
	case errors.Is(err, migrate.ErrNoChange):
		d.log.Debug("no database migration required")
	default:
		return err
	}
	return nil
}

func (d *Database) Close() {
	_ = d.db.Close()
}

type Category struct {
	ID   RowID `db:"id"`
	Name string
}

type Pattern struct {
	ID         RowID `db:"id"`
	Regex      string `db:"re"`
	CategoryID RowID  `db:"category_id"`
	Category   string `db:"name"`
	Added      time.Time
}

func (d *Database) GetAllCategories() ([]Category, error) {
	var categories []Category
	if err := d.db.Select(&categories, `SELECT id, name FROM category ORDER BY name`); err != nil {
		return nil, err
	}
	return categories, nil
}

// GetCategoryByName returns (nil, nil) if the error is only that no such row exists.
func (d *Database) GetCategoryByName(name string) (*Category, error) {
	return getCategoryByName(d.db, name)
}

func getCategoryByName(q sqlx.Queryer, name string) (*Category, error) {
	c := Category{}
	if err := sqlx.Get(q, &c, `SELECT id, name FROM category WHERE name = ? LIMIT 1`, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		} else {
			return nil, err
		}
	} else {
		return &c, nil
	}
}

// InsertCategory will add a new category to the database, overwriting Category.ID with the new row ID.
func (d *Database) InsertCategory(c *Category) error {
	return insertCategory(d.db, c)
}

func insertCategory(e sqlx.Ext, c *Category) error {
	if res, err := sqlx.NamedExec(e, `INSERT INTO category (name) VALUES (:name)`, c); err != nil {
		return err
	} else if c.ID, err = res.LastInsertId(); err != nil {
		return err
	}
	return nil
}

// InsertPattern adds a pattern for the named category, creating the category if needed. The regex itself is not
// validated here, a bad one is dropped with a warning when the table is loaded.
func (d *Database) InsertPattern(category string, regex string) (*Pattern, error) {
	tx, err := d.db.Beginx()
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	c, err := getCategoryByName(tx, category)
	if err != nil {
		return nil, fmt.Errorf("failed to look up category: %w", err)
	}
	if c == nil {
		c = &Category{Name: category}
		if err := insertCategory(tx, c); err != nil {
			return nil, fmt.Errorf("failed to insert category: %w", err)
		}
	}
	categoryID := c.ID

	res, err := tx.Exec(`INSERT INTO regex (re, category_id) VALUES (?, ?)`, regex, categoryID)
	if err != nil {
		return nil, fmt.Errorf("failed to insert pattern: %w", err)
	}
	p := &Pattern{Regex: regex, CategoryID: categoryID, Category: category}
	if p.ID, err = res.LastInsertId(); err != nil {
		return nil, err
	}
	if err := tx.Get(&p.Added, `SELECT added FROM regex WHERE id = ?`, p.ID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}
	return p, nil
}

// GetAllPatterns returns every pattern with its category name, in insertion order.
func (d *Database) GetAllPatterns() ([]Pattern, error) {
	var patterns []Pattern
	query := `
		SELECT regex.id, regex.re, regex.category_id, category.name, regex.added
		FROM regex JOIN category ON regex.category_id = category.id
		ORDER BY regex.id`
	if err := d.db.Select(&patterns, query); err != nil {
		return nil, err
	}
	return patterns, nil
}

// DeletePattern removes one pattern by ID.
func (d *Database) DeletePattern(id RowID) error {
	if res, err := d.db.Exec(`DELETE FROM regex WHERE id = ?`, id); err != nil {
		return err
	} else if count, err := res.RowsAffected(); err != nil {
		return err
	} else if count == 0 {
		return sql.ErrNoRows
	} else {
		return nil
	}
}

// Rows returns the patterns in the form the resolver loads.
func (d *Database) Rows() ([]gallery_archiver.PatternRow, error) {
	patterns, err := d.GetAllPatterns()
	if err != nil {
		return nil, err
	}
	rows := make([]gallery_archiver.PatternRow, len(patterns))
	for i, p := range patterns {
		rows[i] = gallery_archiver.PatternRow{Regex: p.Regex, Category: p.Category}
	}
	return rows, nil
}
