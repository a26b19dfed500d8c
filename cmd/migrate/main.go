package main

import (
	"bufio"
	"database/sql"
	"errors"
	"flag"
	"os"
	"path/filepath"
	"sort"
	"strings"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"virtus/internal/config"
	"virtus/internal/db"
	"virtus/internal/logging"
)

const downMarker = "-- +migrate Down"

func main() {
	dir := flag.String("dir", "migrations", "directory holding NNNN_name.sql files")
	down := flag.Bool("down", false, "roll back the most recently applied migration")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load config")
	}
	log := logging.New(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat})

	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		log.WithError(err).Fatal("failed to connect database")
	}
	defer database.Close()

	if _, err := database.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (filename text primary key, applied_at timestamptz default now())`); err != nil {
		log.WithError(err).Fatal("failed to ensure schema_migrations")
	}

	if *down {
		var filename string
		if err := database.Get(&filename, `SELECT filename FROM schema_migrations ORDER BY filename DESC LIMIT 1`); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				log.Info("nothing to roll back")
				return
			}
			log.WithError(err).Fatal("failed to read migration state")
		}
		content, err := os.ReadFile(filepath.Join(*dir, filename))
		if err != nil {
			log.WithError(err).WithField("file", filename).Fatal("failed to read migration")
		}
		_, downSQL := sections(string(content))
		if err := apply(database, downSQL); err != nil {
			log.WithError(err).WithField("file", filename).Fatal("failed to roll back")
		}
		if _, err := database.Exec(`DELETE FROM schema_migrations WHERE filename = $1`, filename); err != nil {
			log.WithError(err).WithField("file", filename).Fatal("failed to forget migration")
		}
		log.WithField("file", filename).Info("rolled back")
		return
	}

	files, err := filepath.Glob(filepath.Join(*dir, "*.sql"))
	if err != nil {
		log.WithError(err).Fatal("failed to read migrations")
	}
	sort.Strings(files)

	applied := 0
	for _, file := range files {
		filename := filepath.Base(file)
		entry := log.WithField("file", filename)
		var exists bool
		if err := database.Get(&exists, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE filename = $1)`, filename); err != nil {
			entry.WithError(err).Fatal("failed to read migration state")
		}
		if exists {
			continue
		}
		content, err := os.ReadFile(file)
		if err != nil {
			entry.WithError(err).Fatal("failed to read migration")
		}
		up, _ := sections(string(content))
		if err := apply(database, up); err != nil {
			entry.WithError(err).Fatal("failed to apply")
		}
		if _, err := database.Exec(`INSERT INTO schema_migrations (filename) VALUES ($1)`, filename); err != nil {
			entry.WithError(err).Fatal("failed to record migration")
		}
		entry.Info("applied")
		applied++
	}
	log.WithField("applied", applied).Info("migrations up to date")
}

// sections splits a migration file into its up and down halves.
func sections(content string) (string, string) {
	up, down, _ := strings.Cut(content, downMarker)
	return up, down
}

func apply(db execer, sqlText string) error {
	for _, stmt := range splitSQL(sqlText) {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}

func splitSQL(sqlText string) []string {
	var statements []string
	var current strings.Builder
	scanner := bufio.NewScanner(strings.NewReader(sqlText))
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(strings.TrimSpace(line), "--") {
			continue
		}
		current.WriteString(line)
		current.WriteRune('\n')
		if strings.HasSuffix(strings.TrimSpace(line), ";") {
			statements = append(statements, current.String())
			current.Reset()
		}
	}
	if strings.TrimSpace(current.String()) != "" {
		statements = append(statements, current.String())
	}
	return statements
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}
