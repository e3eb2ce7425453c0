package maritime

import "time"

const (
	RegionGulfOfStLawrence    = "Gulf of St. Lawrence"
	RegionSantaBarbaraChannel = "Santa Barbara Channel"
)

type seedRoute struct {
	name, imo, region   string
	days                int
	origin, destination string
	status              string
}

var routeSeeds = []seedRoute{
	{"MSC SOFIA", "9839272", RegionGulfOfStLawrence, 2, "Montreal", "Rotterdam", RouteActive},
	{"MSC VALENTINA", "9454436", RegionGulfOfStLawrence, 3, "Halifax", "Hamburg", RouteActive},
	{"MSC LUCIA", "9783615", RegionSantaBarbaraChannel, 1, "Los Angeles", "Oakland", RouteActive},
	{"MSC ISABELLA", "9776171", RegionGulfOfStLawrence, 5, "New York", "Montreal", RouteScheduled},
	{"MSC CHIARA", "9811000", RegionSantaBarbaraChannel, 4, "Seattle", "Los Angeles", RouteActive},
	{"MSC GIULIA", "9806079", RegionSantaBarbaraChannel, 6, "Oakland", "Los Angeles", RouteScheduled},
	{"MSC AURORA", "9812345", RegionGulfOfStLawrence, 7, "Montreal", "Hamburg", RouteScheduled},
	{"MSC BIANCA", "9823456", "South China Sea", 8, "Singapore", "Hong Kong", RouteActive},
	{"MSC FRANCESCA", "9834567", "Strait of Hormuz", 9, "Dubai", "Singapore", RouteScheduled},
}

func seedRoutes(now time.Time) []VesselRoute {
	now = now.Truncate(time.Second)
	routes := make([]VesselRoute, 0, len(routeSeeds))
	for _, r := range routeSeeds {
		routes = append(routes, VesselRoute{
			ID:          "route_" + r.imo,
			VesselName:  r.name,
			IMO:         r.imo,
			Region:      r.region,
			ETA:         now.AddDate(0, 0, r.days),
			Origin:      r.origin,
			Destination: r.destination,
			Status:      r.status,
			UpdatedAt:   now,
		})
	}
	return routes
}

func seedCustomers() []Customer {
	return []Customer{
		{ID: 1, Name: "Nordic Paper Group", VesselIMO: "9839272", Major: true},
		{ID: 2, Name: "Laurentian Foods", VesselIMO: "9839272", Major: false},
		{ID: 3, Name: "Hanse Automotive", VesselIMO: "9454436", Major: true},
		{ID: 4, Name: "Pacific Produce Co", VesselIMO: "9783615", Major: true},
		{ID: 5, Name: "Cascade Timber", VesselIMO: "9811000", Major: true},
		{ID: 6, Name: "Bay Area Electronics", VesselIMO: "9806079", Major: false},
		{ID: 7, Name: "Atlantic Steelworks", VesselIMO: "9776171", Major: true},
		{ID: 8, Name: "Elbe Chemicals", VesselIMO: "9812345", Major: true},
	}
}
