package model

// Route is an application destination the navigator can move to
type Route string

const (
	RouteHome             Route = "/"
	RoutePlayerDashboard  Route = "/dashboard/player"
	RouteAdminDashboard   Route = "/dashboard/admin"
	RouteSponsorDashboard Route = "/dashboard/sponsor"
)

// DashboardFor returns the landing route for a role
func DashboardFor(role Role) Route {
	switch role {
	case RoleAdmin:
		return RouteAdminDashboard
	case RoleSponsor:
		return RouteSponsorDashboard
	default:
		return RoutePlayerDashboard
	}
}
