package catalog

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// STORE
// ══════════════════════════════════════════════════════════════════════════════

// Supported drivers.
const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

// Options configures Open.
type Options struct {
	Driver string // DriverPostgres or DriverSQLite
	DSN    string

	// QueryTimeout bounds every catalog read.
	QueryTimeout time.Duration

	// Silent disables gorm's own logging.
	Silent bool
}

// Store is a gorm-backed content.Catalog.
type Store struct {
	db      *gorm.DB
	timeout time.Duration
}

var _ content.Catalog = (*Store)(nil)

// Open connects and migrates the content tables.
func Open(opts Options) (*Store, error) {
	var dialector gorm.Dialector
	switch strings.ToLower(opts.Driver) {
	case DriverPostgres:
		dialector = postgres.Open(opts.DSN)
	case DriverSQLite, "":
		dialector = sqlite.Open(opts.DSN)
	default:
		return nil, fmt.Errorf("catalog: unsupported driver %q", opts.Driver)
	}

	gormLog := gormLogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormLogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormLogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	if opts.Silent {
		gormLog = gormLogger.Default.LogMode(gormLogger.Silent)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		DisableForeignKeyConstraintWhenMigrating: true,
		Logger:                                   gormLog,
	})
	if err != nil {
		return nil, fmt.Errorf("catalog: failed to open %s: %w", opts.Driver, err)
	}

	if opts.Driver != DriverPostgres {
		// An in-memory SQLite database lives on one connection.
		sqlDB, err := db.DB()
		if err != nil {
			return nil, fmt.Errorf("catalog: %w", err)
		}
		sqlDB.SetMaxOpenConns(1)
	}

	if err := db.AutoMigrate(allModels()...); err != nil {
		return nil, fmt.Errorf("catalog: failed to migrate: %w", err)
	}

	timeout := opts.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Store{db: db, timeout: timeout}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks that the catalog database answers.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := sqlDB.PingContext(ctx); err != nil {
		return mapError("Ping", err, nil)
	}
	return nil
}

func (s *Store) session(ctx context.Context) (*gorm.DB, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	return s.db.WithContext(ctx), cancel
}

func withLessons(db *gorm.DB) *gorm.DB {
	return db.Preload("Lessons", func(tx *gorm.DB) *gorm.DB {
		return tx.Order("position ASC, id ASC")
	})
}

func withSkills(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Skills", func(tx *gorm.DB) *gorm.DB { return tx.Order("position ASC") }).
		Preload("Skills.Contributions", func(tx *gorm.DB) *gorm.DB { return tx.Order("id ASC") })
}

// ─────────────────────────────────────────────────────────────────────────────
// content.Catalog
// ─────────────────────────────────────────────────────────────────────────────

func (s *Store) GetCourse(ctx context.Context, id content.CourseID) (*content.Course, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var m courseModel
	if err := withLessons(db).First(&m, "id = ?", string(id)).Error; err != nil {
		return nil, mapError("GetCourse", err, shared.ErrCourseNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) GetCourseBySlug(ctx context.Context, slug string) (*content.Course, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var m courseModel
	if err := withLessons(db).First(&m, "slug = ?", slug).Error; err != nil {
		return nil, mapError("GetCourseBySlug", err, shared.ErrCourseNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) ListCourses(ctx context.Context) ([]*content.Course, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var rows []courseModel
	if err := withLessons(db).Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, mapError("ListCourses", err, nil)
	}
	out := make([]*content.Course, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetCareer(ctx context.Context, id content.CareerID) (*content.CareerPath, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var m careerModel
	if err := withSkills(db).First(&m, "id = ?", string(id)).Error; err != nil {
		return nil, mapError("GetCareer", err, shared.ErrCareerNotFound)
	}
	return m.toDomain(), nil
}

func (s *Store) ListCareers(ctx context.Context) ([]*content.CareerPath, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var rows []careerModel
	if err := withSkills(db).Order("slug ASC").Find(&rows).Error; err != nil {
		return nil, mapError("ListCareers", err, nil)
	}
	out := make([]*content.CareerPath, 0, len(rows))
	for i := range rows {
		out = append(out, rows[i].toDomain())
	}
	return out, nil
}

func (s *Store) GetProblem(ctx context.Context, id content.ProblemID) (*content.Problem, error) {
	db, cancel := s.session(ctx)
	defer cancel()

	var m problemModel
	if err := db.First(&m, "id = ?", string(id)).Error; err != nil {
		return nil, mapError("GetProblem", err, shared.ErrProblemNotFound)
	}
	return m.toDomain(), nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Seeding
// ─────────────────────────────────────────────────────────────────────────────

// Seed upserts every entity of b in one transaction. Child rows (lessons,
// skills, contributions) of a seeded parent are replaced, not merged.
func (s *Store) Seed(ctx context.Context, b *Bundle) error {
	if err := b.Validate(); err != nil {
		return err
	}
	now := time.Now().UTC()

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range b.Courses {
			m := courseFromDomain(c)
			lessons := m.Lessons
			m.Lessons = nil
			m.UpdatedAt = now
			if err := tx.Save(&m).Error; err != nil {
				return fmt.Errorf("course %s: %w", c.ID, err)
			}
			if err := tx.Where("course_id = ?", m.ID).Delete(&lessonModel{}).Error; err != nil {
				return err
			}
			if len(lessons) > 0 {
				if err := tx.Create(&lessons).Error; err != nil {
					return fmt.Errorf("lessons of %s: %w", c.ID, err)
				}
			}
		}

		for _, c := range b.Careers {
			m := careerFromDomain(c)
			skills := m.Skills
			m.Skills = nil
			m.UpdatedAt = now
			if err := tx.Save(&m).Error; err != nil {
				return fmt.Errorf("career %s: %w", c.ID, err)
			}
			old := tx.Model(&skillModel{}).Select("id").Where("career_id = ?", m.ID)
			if err := tx.Where("skill_id IN (?)", old).Delete(&contributionModel{}).Error; err != nil {
				return err
			}
			if err := tx.Where("career_id = ?", m.ID).Delete(&skillModel{}).Error; err != nil {
				return err
			}
			for i := range skills {
				if err := tx.Create(&skills[i]).Error; err != nil {
					return fmt.Errorf("skill %q of %s: %w", skills[i].Name, c.ID, err)
				}
			}
		}

		for _, p := range b.Problems {
			m := problemFromDomain(p)
			m.UpdatedAt = now
			if err := tx.Save(&m).Error; err != nil {
				return fmt.Errorf("problem %s: %w", p.ID, err)
			}
		}
		return nil
	})
}

// mapError translates gorm errors. notFound is returned for a missing
// record when non-nil.
func mapError(op string, err error, notFound *shared.DomainError) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		if notFound != nil {
			return notFound
		}
		return shared.WrapError("catalog", op, shared.ErrNotFound, "no record", err)
	case errors.Is(err, context.DeadlineExceeded):
		return shared.WrapError("catalog", op, shared.ErrTimeout, "query timed out", err)
	default:
		return shared.WrapError("catalog", op, shared.ErrStorageUnavailable, "query failed", err)
	}
}
