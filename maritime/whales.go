package maritime

import (
	"fmt"
	"strings"
)

type zone struct {
	Name       string
	SpeedLimit string
	Bounds     string
	Period     string
}

type zoneGroup struct {
	Title      string
	SpeedLimit string
	Note       string
	Zones      []zone
}

type whaleMeasures struct {
	Region string
	// Groups of zones with bounds; rendered with the group speed limit.
	Bounded []zoneGroup
	// Groups of zones with active periods.
	Periodic  []zoneGroup
	Voluntary *zone
}

var whaleRegions = []whaleMeasures{
	{
		Region: RegionGulfOfStLawrence,
		Bounded: []zoneGroup{
			{
				Title:      "Static Zones (Mandatory)",
				SpeedLimit: "≤10 knots",
				Zones: []zone{
					{Name: "Northern Static Zone", Bounds: "50°20′N to 47°58.1′N, 65°00′W to 61°00′W"},
					{Name: "Southern Static Zone", Bounds: "48°40′N to 47°10′N, 65°00′W to 61°03.5′W"},
				},
			},
			{
				Title:      "Dynamic Shipping Zones",
				SpeedLimit: "≤10 knots when whales present",
				Note:       "**Activation:** NAVWARN (15-day minimum)",
				Zones: []zone{
					{Name: "Zone A", Bounds: "49°41′N to 49°11′N, 65°00′W to 64°00′W"},
					{Name: "Zone B", Bounds: "49°22′N to 48°48′N, 64°00′W to 63°00′W"},
					{Name: "Zone C", Bounds: "49°00′N to 48°24′N, 63°00′W to 62°00′W"},
					{Name: "Zone D", Bounds: "50°16′N to 49°56′N, 64°00′W to 63°00′W"},
					{Name: "Zone E", Bounds: "48°35′N to 47°58.1′N, 62°00′W to 61°00′W"},
				},
			},
			{
				Title:      "Seasonal Management Areas",
				SpeedLimit: "≤10 knots",
				Note:       "**Conditions:** Mandatory early season, whale-dependent late season",
				Zones: []zone{
					{Name: "Area 1", Bounds: "49°04′N to 48°10.5′N, 62°00′W to 61°00′W"},
					{Name: "Area 2", Bounds: "48°24′N to 47°26.69′N, 62°00′W to 61°03.5′W"},
				},
			},
		},
		Voluntary: &zone{
			Name:       "Cabot Strait",
			SpeedLimit: "≤10 knots",
			Bounds:     "48°10.5′N to 47°02′N, 61°00′W to 59°18.5′W",
		},
	},
	{
		Region: RegionSantaBarbaraChannel,
		Periodic: []zoneGroup{
			{
				Title: "Mandatory Speed Restriction Zones",
				Zones: []zone{
					{Name: "Traffic Separation Scheme", SpeedLimit: "10 knots", Period: "May 1 - Dec 15"},
				},
			},
			{
				Title: "Voluntary Speed Restriction Zones",
				Zones: []zone{
					{Name: "Western Approach", SpeedLimit: "10 knots", Period: "May 1 - Dec 15"},
					{Name: "Santa Barbara Coast", SpeedLimit: "10 knots", Period: "Year-round"},
				},
			},
		},
	},
}

func lookupWhaleMeasures(region string) (whaleMeasures, bool) {
	region = strings.TrimSpace(region)
	for _, m := range whaleRegions {
		if strings.EqualFold(m.Region, region) {
			return m, true
		}
	}
	return whaleMeasures{}, false
}

func (m whaleMeasures) markdown(season string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Whale Protection Measures - %s\n### Season: %s\n", m.Region, season)

	for i, g := range m.Bounded {
		fmt.Fprintf(&b, "\n### %d. %s\n**Speed Limit:** %s\n", i+1, g.Title, g.SpeedLimit)
		if g.Note != "" {
			fmt.Fprintf(&b, "%s\n", g.Note)
		}
		b.WriteString("\n| Zone | Bounds |\n|------|--------|\n")
		for _, z := range g.Zones {
			fmt.Fprintf(&b, "| %s | %s |\n", z.Name, z.Bounds)
		}
	}

	for _, g := range m.Periodic {
		fmt.Fprintf(&b, "\n#### %s\n| Zone | Speed Limit | Active Period |\n|------|-------------|---------------|\n", g.Title)
		for _, z := range g.Zones {
			fmt.Fprintf(&b, "| %s | %s | %s |\n", z.Name, z.SpeedLimit, z.Period)
		}
	}

	if v := m.Voluntary; v != nil {
		fmt.Fprintf(&b, "\n### %d. Voluntary Measures\n**Area:** %s\n**Speed Limit:** %s\n**Bounds:** %s\n",
			len(m.Bounded)+1, v.Name, v.SpeedLimit, v.Bounds)
	}

	b.WriteString("\n[REF: TC-NAV-2024-03 | RESTR-CLASS: INT | DIST: OPS-MAR-ROUTES]\n")
	return b.String()
}
