package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/devpath/progression-engine/internal/domain/content"
	"github.com/devpath/progression-engine/internal/domain/shared"
)

// Catalog is an in-memory content.Catalog.
type Catalog struct {
	mu       sync.RWMutex
	courses  map[content.CourseID]*content.Course
	careers  map[content.CareerID]*content.CareerPath
	problems map[content.ProblemID]*content.Problem
}

var _ content.Catalog = (*Catalog)(nil)

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		courses:  make(map[content.CourseID]*content.Course),
		careers:  make(map[content.CareerID]*content.CareerPath),
		problems: make(map[content.ProblemID]*content.Problem),
	}
}

// PutCourse stores c, replacing any course with the same id.
func (c *Catalog) PutCourse(course *content.Course) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *course
	cp.Lessons = append([]content.Lesson(nil), course.Lessons...)
	for i := range cp.Lessons {
		cp.Lessons[i].CourseID = cp.ID
	}
	cp.SortLessons()
	c.courses[cp.ID] = &cp
}

// PutCareer stores a career path.
func (c *Catalog) PutCareer(career *content.CareerPath) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *career
	c.careers[cp.ID] = &cp
}

// PutProblem stores a problem.
func (c *Catalog) PutProblem(p *content.Problem) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cp := *p
	c.problems[cp.ID] = &cp
}

func (c *Catalog) GetCourse(_ context.Context, id content.CourseID) (*content.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	course, ok := c.courses[id]
	if !ok {
		return nil, shared.ErrCourseNotFound
	}
	return course, nil
}

func (c *Catalog) GetCourseBySlug(_ context.Context, slug string) (*content.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	for _, course := range c.courses {
		if course.Slug == slug {
			return course, nil
		}
	}
	return nil, shared.ErrCourseNotFound
}

func (c *Catalog) ListCourses(_ context.Context) ([]*content.Course, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*content.Course, 0, len(c.courses))
	for _, course := range c.courses {
		out = append(out, course)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Slug < out[j].Slug })
	return out, nil
}

func (c *Catalog) GetCareer(_ context.Context, id content.CareerID) (*content.CareerPath, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	career, ok := c.careers[id]
	if !ok {
		return nil, shared.ErrCareerNotFound
	}
	return career, nil
}

func (c *Catalog) ListCareers(_ context.Context) ([]*content.CareerPath, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]*content.CareerPath, 0, len(c.careers))
	for _, career := range c.careers {
		out = append(out, career)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Catalog) GetProblem(_ context.Context, id content.ProblemID) (*content.Problem, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.problems[id]
	if !ok {
		return nil, shared.ErrProblemNotFound
	}
	return p, nil
}
