package content

import "context"

// Catalog is the read-only view of authored content.
// Lookups return an error matching shared.ErrNotFound when the entity is absent.
type Catalog interface {
	GetCourse(ctx context.Context, id CourseID) (*Course, error)
	GetCourseBySlug(ctx context.Context, slug string) (*Course, error)

	// ListCourses returns every course with its lessons, ordered by slug.
	ListCourses(ctx context.Context) ([]*Course, error)

	GetCareer(ctx context.Context, id CareerID) (*CareerPath, error)
	ListCareers(ctx context.Context) ([]*CareerPath, error)

	GetProblem(ctx context.Context, id ProblemID) (*Problem, error)
}

// CourseIndex resolves courses by slug and by id.
type CourseIndex struct {
	bySlug map[string]*Course
	byID   map[CourseID]*Course
}

// NewCourseIndex indexes courses.
func NewCourseIndex(courses []*Course) *CourseIndex {
	idx := &CourseIndex{
		bySlug: make(map[string]*Course, len(courses)),
		byID:   make(map[CourseID]*Course, len(courses)),
	}
	for _, c := range courses {
		idx.bySlug[c.Slug] = c
		idx.byID[c.ID] = c
	}
	return idx
}

// BySlug finds a course by slug.
func (i *CourseIndex) BySlug(slug string) (*Course, bool) {
	c, ok := i.bySlug[slug]
	return c, ok
}

// ByID finds a course by id.
func (i *CourseIndex) ByID(id CourseID) (*Course, bool) {
	c, ok := i.byID[id]
	return c, ok
}
