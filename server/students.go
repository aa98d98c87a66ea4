package server

import (
	"net/http"
	"sort"
	"sync"
	"time"

	"github.com/jrsteele09/go-session-guard/internal/utils"
	"github.com/jrsteele09/go-session-guard/users"
)

// Student is the sample resource served behind the session guard.
type Student struct {
	ID         string    `json:"id"`
	FirstName  string    `json:"first_name"`
	LastName   string    `json:"last_name"`
	Email      string    `json:"email,omitempty"`
	Advisor    *string   `json:"advisor"` // Username of the assigned advisor, null when unassigned
	EnrolledOn time.Time `json:"enrolled_on"`
}

type StudentRepo struct {
	students map[string]*Student
	lock     sync.RWMutex
}

func NewStudentRepo() *StudentRepo {
	repo := &StudentRepo{students: make(map[string]*Student)}
	enrolled := time.Date(2024, time.September, 2, 9, 0, 0, 0, time.UTC)
	for _, st := range []*Student{
		{ID: "s-1001", FirstName: "Noor", LastName: "Haddad", Email: "noor.haddad@example.com", Advisor: utils.Ptr("advisor"), EnrolledOn: enrolled},
		{ID: "s-1002", FirstName: "Tomasz", LastName: "Wojcik", Email: "t.wojcik@example.com", Advisor: utils.Ptr("advisor"), EnrolledOn: enrolled.AddDate(0, 1, 0)},
		{ID: "s-1003", FirstName: "Ifeoma", LastName: "Okafor", Advisor: utils.Ptr("mkeller"), EnrolledOn: enrolled.AddDate(0, 2, 0)},
		{ID: "s-1004", FirstName: "Lucia", LastName: "Ferreira", EnrolledOn: enrolled.AddDate(1, 0, 0)},
	} {
		repo.students[st.ID] = st
	}
	return repo
}

func (sr *StudentRepo) Upsert(st *Student) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	sr.students[st.ID] = st
}

func (sr *StudentRepo) Delete(id string) {
	sr.lock.Lock()
	defer sr.lock.Unlock()
	delete(sr.students, id)
}

// List returns students ordered by id. An empty advisor returns every student.
func (sr *StudentRepo) List(advisor string) []*Student {
	sr.lock.RLock()
	defer sr.lock.RUnlock()

	list := make([]*Student, 0, len(sr.students))
	for _, st := range sr.students {
		if advisor != "" && utils.Value(st.Advisor) != advisor {
			continue
		}
		list = append(list, st)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].ID < list[j].ID
	})
	return list
}

// Students exposes the sample data so callers can seed it.
func (s *Server) Students() *StudentRepo {
	return s.students
}

// StudentsListHandler lists students. Advisors only ever see their own students.
func (s *Server) StudentsListHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		claims, _ := ClaimsFromContext(r.Context())
		advisor := r.URL.Query().Get("advisor")

		held := users.RolesFromInts(claims.Roles)
		if !users.HasAnyRole(held, users.RoleAdmin, users.RoleRegistrar) {
			advisor = claims.Username
		}
		writeJSON(w, http.StatusOK, s.students.List(advisor))
	}
}
