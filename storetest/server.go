// Package storetest runs an in-process task store that speaks the same REST
// contract as the real backend. Tests and local runs use it to exercise the
// client end to end.
package storetest

import (
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"

	"taskflow/domain"
)

const (
	collectionPath = "/api/tasks/"
	maxTitleLength = 200
)

// Request records one call received by the server.
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   []byte
	Header http.Header
}

// Server is a fake task store backed by a map.
type Server struct {
	mu       sync.Mutex
	tasks    map[int64]domain.Task
	nextID   int64
	requests []Request
	failures map[string][]int
	hold     map[string]chan struct{}
	now      func() time.Time

	echo *echo.Echo
	http *httptest.Server
}

// New starts a server on a loopback port. Call Close when done.
func New() *Server {
	s := NewUnstarted()
	s.http = httptest.NewServer(s.echo)
	return s
}

// NewUnstarted builds the server without listening, for use as an http.Handler.
func NewUnstarted() *Server {
	s := &Server{
		tasks:    make(map[int64]domain.Task),
		nextID:   1,
		failures: make(map[string][]int),
		hold:     make(map[string]chan struct{}),
		now:      time.Now,
	}
	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(s.record)
	e.GET(collectionPath, s.list)
	e.POST(collectionPath, s.create)
	e.PATCH(collectionPath+":id/", s.patch)
	e.DELETE(collectionPath+":id/", s.remove)
	s.echo = e
	return s
}

// Handler exposes the routes for embedding.
func (s *Server) Handler() http.Handler {
	return s.echo
}

// URL is the collection endpoint, with a trailing slash.
func (s *Server) URL() string {
	return s.http.URL + collectionPath
}

// Close shuts the listener down.
func (s *Server) Close() {
	if s.http != nil {
		s.http.Close()
	}
}

// Seed stores tasks as-is and advances the id sequence past them.
func (s *Server) Seed(tasks ...domain.Task) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range tasks {
		s.tasks[t.ID] = t
		if t.ID >= s.nextID {
			s.nextID = t.ID + 1
		}
	}
}

// Tasks returns the stored tasks ordered by id.
func (s *Server) Tasks() []domain.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortedLocked()
}

// Task returns one stored task.
func (s *Server) Task(id int64) (domain.Task, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tasks[id]
	return t, ok
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Request, len(s.requests))
	copy(out, s.requests)
	return out
}

// CountRequests returns how many requests used method.
func (s *Server) CountRequests(method string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Method == method {
			n++
		}
	}
	return n
}

// FailNext makes the next request with method answer status without
// touching the stored tasks.
func (s *Server) FailNext(method string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[method] = append(s.failures[method], status)
}

// Hold blocks requests with method until the returned release func is called.
func (s *Server) Hold(method string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[method] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, method)
			s.mu.Unlock()
			close(ch)
		})
	}
}

func (s *Server) record(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		req := c.Request()
		body, err := io.ReadAll(req.Body)
		if err != nil {
			return c.String(http.StatusBadRequest, "unreadable body")
		}
		req.Body = io.NopCloser(strings.NewReader(string(body)))

		s.mu.Lock()
		s.requests = append(s.requests, Request{
			Method: req.Method,
			Path:   req.URL.Path,
			Query:  req.URL.Query(),
			Body:   body,
			Header: req.Header.Clone(),
		})
		hold := s.hold[req.Method]
		var status int
		if queued := s.failures[req.Method]; len(queued) > 0 {
			status = queued[0]
			s.failures[req.Method] = queued[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-req.Context().Done():
				return req.Context().Err()
			}
		}
		if status != 0 {
			return c.JSON(status, map[string]string{"detail": http.StatusText(status)})
		}
		return next(c)
	}
}

func (s *Server) list(c echo.Context) error {
	return c.JSON(http.StatusOK, s.Tasks())
}

type createBody struct {
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Priority    *string `json:"priority"`
	Status      *string `json:"status"`
	DueDate     *string `json:"due_date"`
	Category    *string `json:"category"`
}

func (s *Server) create(c echo.Context) error {
	var body createBody
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(&body); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
	}

	task := domain.Task{
		Priority: domain.PriorityMedium,
		Status:   domain.StatusPending,
		Category: domain.CategoryGeneral,
	}
	errs := map[string][]string{}
	if body.Title == nil {
		errs["title"] = []string{"This field is required."}
	} else {
		task.Title = *body.Title
	}
	if body.Description != nil {
		task.Description = *body.Description
	}
	if body.Priority != nil {
		task.Priority = domain.Priority(*body.Priority)
	}
	if body.Status != nil {
		task.Status = domain.Status(*body.Status)
	}
	if body.Category != nil {
		task.Category = domain.Category(*body.Category)
	}
	if body.DueDate != nil {
		due := *body.DueDate
		task.DueDate = &due
	}
	validate(task, errs)
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, errs)
	}

	s.mu.Lock()
	task.ID = s.nextID
	s.nextID++
	task.CreatedAt = s.now().UTC()
	s.tasks[task.ID] = task
	s.mu.Unlock()

	return c.JSON(http.StatusCreated, task)
}

func (s *Server) patch(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	var changes map[string]any
	if err := sonic.ConfigStd.NewDecoder(c.Request().Body).Decode(&changes); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"detail": "JSON parse error"})
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	task, ok := s.tasks[id]
	if !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	errs := map[string][]string{}
	for key, raw := range changes {
		f, err := domain.ParseField(key)
		if err != nil {
			// unknown keys are ignored, like a model serializer does
			continue
		}
		value := ""
		switch v := raw.(type) {
		case nil:
			if f != domain.FieldDueDate {
				errs[key] = []string{"This field may not be null."}
				continue
			}
		case string:
			value = v
		default:
			errs[key] = []string{"Not a valid string."}
			continue
		}
		task, _ = domain.ApplyField(task, f, value)
	}
	validate(task, errs)
	if len(errs) > 0 {
		return c.JSON(http.StatusBadRequest, errs)
	}
	s.tasks[id] = task
	return c.JSON(http.StatusOK, task)
}

func (s *Server) remove(c echo.Context) error {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tasks[id]; !ok {
		return c.JSON(http.StatusNotFound, map[string]string{"detail": "Not found."})
	}
	delete(s.tasks, id)
	return c.NoContent(http.StatusNoContent)
}

func (s *Server) sortedLocked() []domain.Task {
	out := make([]domain.Task, 0, len(s.tasks))
	for _, t := range s.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func validate(t domain.Task, errs map[string][]string) {
	if _, seen := errs["title"]; !seen {
		switch {
		case t.Title == "":
			errs["title"] = []string{"This field may not be blank."}
		case utf8.RuneCountInString(t.Title) > maxTitleLength:
			errs["title"] = []string{"Ensure this field has no more than 200 characters."}
		}
	}
	if !oneOf(t.Priority, domain.Priorities) {
		errs["priority"] = []string{strconv.Quote(string(t.Priority)) + " is not a valid choice."}
	}
	if !oneOf(t.Status, domain.Statuses) {
		errs["status"] = []string{strconv.Quote(string(t.Status)) + " is not a valid choice."}
	}
	if !oneOf(t.Category, domain.Categories) {
		errs["category"] = []string{strconv.Quote(string(t.Category)) + " is not a valid choice."}
	}
	if t.DueDate != nil {
		if _, err := time.Parse(domain.DateLayout, *t.DueDate); err != nil {
			errs["due_date"] = []string{"Date has wrong format. Use one of these formats instead: YYYY-MM-DD."}
		}
	}
}

func oneOf[T comparable](v T, values []T) bool {
	for _, x := range values {
		if x == v {
			return true
		}
	}
	return false
}
