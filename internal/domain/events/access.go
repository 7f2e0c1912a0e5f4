package events

// Viewer identifies who is reading. The zero value is the anonymous
// viewer. The API layer builds one from token claims; domain code never
// touches raw tokens.
type Viewer struct {
	UserID  string
	IsAdmin bool
}

func (v Viewer) Authenticated() bool {
	return v.UserID != ""
}

// ScopeKind enumerates every visibility scope a query can run under.
// The set is closed: anything outside it matches nothing.
type ScopeKind int

const (
	// ScopePublicOnly matches public events.
	ScopePublicOnly ScopeKind = iota
	// ScopeAll matches events of every visibility.
	ScopeAll
	// ScopeExact matches one visibility value.
	ScopeExact
	// ScopeOwnPrivate matches private events hosted by the viewer.
	ScopeOwnPrivate
	// ScopePublicOrOwnPrivate matches public events plus private events
	// hosted by the viewer.
	ScopePublicOrOwnPrivate
)

// AccessScope is the visibility half of the read predicate. Soft-deleted
// rows are excluded no matter which scope is in play; that clause is not
// representable here and the store composes it unconditionally.
type AccessScope struct {
	Kind       ScopeKind
	Visibility Visibility // ScopeExact only
	ViewerID   string     // the own-private kinds only
}

// ScopeFor maps a viewer and an optional visibility filter onto a scope:
//
//	anonymous        -> public only, the filter is ignored
//	admin            -> the filtered visibility when it parses, else everything
//	regular, no flt  -> public plus own hosted private
//	regular, PRIVATE -> own hosted private only
//	regular, other   -> public only (PUBLIC and unparseable collapse together)
//
// An unparseable filter value is never an error at this layer.
func ScopeFor(viewer Viewer, filter VisibilityFilter) AccessScope {
	if !viewer.Authenticated() {
		return AccessScope{Kind: ScopePublicOnly}
	}
	if viewer.IsAdmin {
		if filter.Present() && filter.Valid() {
			return AccessScope{Kind: ScopeExact, Visibility: filter.Value}
		}
		return AccessScope{Kind: ScopeAll}
	}
	if !filter.Present() {
		return AccessScope{Kind: ScopePublicOrOwnPrivate, ViewerID: viewer.UserID}
	}
	if filter.Valid() && filter.Value == VisibilityPrivate {
		return AccessScope{Kind: ScopeOwnPrivate, ViewerID: viewer.UserID}
	}
	return AccessScope{Kind: ScopePublicOnly}
}

// Matches evaluates the scope against one event in memory. It must agree
// with the SQL the store renders; the mock repository relies on that
// agreement.
func (s AccessScope) Matches(e *Event) bool {
	if e.Deleted {
		return false
	}
	switch s.Kind {
	case ScopeAll:
		return true
	case ScopePublicOnly:
		return e.Visibility == VisibilityPublic
	case ScopeExact:
		return e.Visibility == s.Visibility
	case ScopeOwnPrivate:
		return e.Visibility == VisibilityPrivate && e.HostID == s.ViewerID
	case ScopePublicOrOwnPrivate:
		return e.Visibility == VisibilityPublic ||
			(e.Visibility == VisibilityPrivate && e.HostID == s.ViewerID)
	default:
		return false
	}
}
