package types

// RouteKind names the rule that priced a token.
type RouteKind uint8

const (
	RouteUnavailable RouteKind = iota
	RouteIdentity
	RouteDirect
	RouteBase
	RouteAnchor
)

func (k RouteKind) String() string {
	switch k {
	case RouteIdentity:
		return "identity"
	case RouteDirect:
		return "direct"
	case RouteBase:
		return "base"
	case RouteAnchor:
		return "anchor"
	default:
		return "unavailable"
	}
}

// Quote is a routed price. Price is nil when Route is RouteUnavailable.
type Quote struct {
	Price *Price
	Route RouteKind
}

func (q Quote) Available() bool {
	return q.Price != nil
}
