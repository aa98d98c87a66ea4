package guard

import (
	"path"
	"slices"
	"strings"

	"github.com/jrsteele09/go-session-guard/navigation"
	"github.com/jrsteele09/go-session-guard/users"
)

type Decision int

const (
	Allow Decision = iota
	RequireLogin
	Forbidden
)

func (d Decision) String() string {
	switch d {
	case Allow:
		return "allow"
	case RequireLogin:
		return "require_login"
	case Forbidden:
		return "forbidden"
	}
	return "unknown"
}

// Rule restricts every path under Prefix to holders of at least one of Roles.
// An empty Roles admits any authenticated user.
type Rule struct {
	Prefix string
	Roles  []users.Role
}

// DefaultRules maps the dashboard sections to the roles that work in them.
func DefaultRules() []Rule {
	return []Rule{
		{Prefix: "/dashboard"},
		{Prefix: "/students", Roles: []users.Role{users.RoleAdmin, users.RoleRegistrar, users.RoleAdvisor}},
		{Prefix: "/advisors", Roles: []users.Role{users.RoleAdmin, users.RoleRegistrar}},
		{Prefix: "/accounting", Roles: []users.Role{users.RoleAdmin, users.RoleAccountant}},
		{Prefix: "/content", Roles: []users.Role{users.RoleAdmin, users.RoleContentManager}},
		{Prefix: "/supervision", Roles: []users.Role{users.RoleAdmin, users.RoleSupervisor, users.RoleAdvisor}},
		{Prefix: "/users", Roles: []users.Role{users.RoleAdmin}},
	}
}

// Session is what the guard reads from the credential store.
type Session interface {
	IsAuthenticated() bool
	Roles() []users.Role
}

type Navigator interface {
	NavigateToLogin()
	NavigateToUnauthorized()
}

// routeNavigator is implemented by navigators whose login and unauthorized
// routes are configurable; the guard keeps those routes public.
type routeNavigator interface {
	LoginPath() string
	UnauthorizedPath() string
}

type Guard struct {
	session Session
	nav     Navigator
	rules   []Rule
	public  []string
}

type Option func(*Guard)

func WithRules(rules ...Rule) Option {
	return func(g *Guard) {
		g.rules = rules
	}
}

// WithPublicPaths replaces the paths reachable without a session.
func WithPublicPaths(paths ...string) Option {
	return func(g *Guard) {
		g.public = paths
	}
}

func New(session Session, nav Navigator, options ...Option) *Guard {
	g := &Guard{
		session: session,
		nav:     nav,
		rules:   DefaultRules(),
		public:  []string{navigation.LoginPath, navigation.UnauthorizedPath},
	}
	if rn, ok := nav.(routeNavigator); ok {
		g.public = []string{rn.LoginPath(), rn.UnauthorizedPath()}
	}
	for _, opt := range options {
		opt(g)
	}

	g.rules = slices.Clone(g.rules)
	for i := range g.rules {
		g.rules[i].Prefix = cleanPath(g.rules[i].Prefix)
	}
	// Longest prefix first so the most specific rule matches.
	slices.SortStableFunc(g.rules, func(a, b Rule) int {
		return len(b.Prefix) - len(a.Prefix)
	})
	return g
}

// Check decides whether the current session may open route. Roles are only
// consulted once the session is authenticated.
func (g *Guard) Check(route string) Decision {
	p := cleanPath(route)
	for _, public := range g.public {
		if underPrefix(p, cleanPath(public)) {
			return Allow
		}
	}
	if !g.session.IsAuthenticated() {
		return RequireLogin
	}

	rule, ok := g.match(p)
	if !ok || len(rule.Roles) == 0 {
		return Allow
	}
	if users.HasAnyRole(g.session.Roles(), rule.Roles...) {
		return Allow
	}
	return Forbidden
}

// Enforce checks route and redirects when it may not be opened. It reports
// whether the caller may render route.
func (g *Guard) Enforce(route string) bool {
	switch g.Check(route) {
	case RequireLogin:
		g.nav.NavigateToLogin()
		return false
	case Forbidden:
		g.nav.NavigateToUnauthorized()
		return false
	}
	return true
}

func (g *Guard) match(p string) (Rule, bool) {
	for _, rule := range g.rules {
		if underPrefix(p, rule.Prefix) {
			return rule, true
		}
	}
	return Rule{}, false
}

// underPrefix matches whole path segments: /students matches /students/4 but not /studentship.
func underPrefix(p, prefix string) bool {
	if prefix == "/" {
		return true
	}
	return p == prefix || strings.HasPrefix(p, prefix+"/")
}

func cleanPath(route string) string {
	if i := strings.IndexAny(route, "?#"); i >= 0 {
		route = route[:i]
	}
	return path.Clean("/" + route)
}
