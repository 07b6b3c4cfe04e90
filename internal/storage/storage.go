package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrations embed.FS

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// BanPeriod decides which records count as recent for a querying author.
type BanPeriod struct {
	OthersWindow    time.Duration
	SelfWindow      time.Duration
	SelfRepostGrace time.Duration
}

// Horizon is the age past which no window can match a record anymore.
func (p BanPeriod) Horizon() time.Duration {
	if p.SelfWindow > p.OthersWindow {
		return p.SelfWindow
	}
	return p.OthersWindow
}

// Store owns every moderation record. All operations run one at a time.
type Store struct {
	mu     sync.Mutex
	db     *sql.DB
	driver string
	clock  Clock
	period BanPeriod
}

func New(driver, dsn string, period BanPeriod) (*Store, error) {
	sqlDriver := "sqlite"
	switch driver {
	case DriverPostgres:
		sqlDriver = "pgx"
	case DriverSQLite, "":
		driver = DriverSQLite
	default:
		return nil, fmt.Errorf("unsupported database driver %q", driver)
	}

	db, err := sql.Open(sqlDriver, dsn)
	if err != nil {
		return nil, err
	}
	if driver == DriverSQLite {
		// in-memory databases exist per connection
		db.SetMaxOpenConns(1)
	}
	return &Store{db: db, driver: driver, clock: realClock{}, period: period}, nil
}

func (s *Store) WithClock(clock Clock) {
	s.clock = clock
}

func (s *Store) Period() BanPeriod {
	return s.period
}

func (s *Store) Close() {
	if s.db != nil {
		_ = s.db.Close()
	}
}

func (s *Store) Migrate() error {
	entries, err := migrations.ReadDir("migrations")
	if err != nil {
		return err
	}

	var files []string
	for _, entry := range entries {
		files = append(files, entry.Name())
	}
	sort.Strings(files)

	for _, file := range files {
		content, err := migrations.ReadFile(path.Join("migrations", file))
		if err != nil {
			return err
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			if isIgnorableMigrationError(err) {
				continue
			}
			return fmt.Errorf("migration %s failed: %w", file, err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders into $n for postgres.
func (s *Store) rebind(query string) string {
	if s.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	b.Grow(len(query) + 8)
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func isIgnorableMigrationError(err error) bool {
	if err == nil {
		return false
	}
	message := err.Error()
	return strings.Contains(message, "duplicate column name") || strings.Contains(message, "already exists")
}
