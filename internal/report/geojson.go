package report

import (
	"strconv"
	"strings"

	"vrpengine/internal/model"
	"vrpengine/internal/vrperr"
)

// FeatureSet is a GeoJSON FeatureCollection.
type FeatureSet struct {
	Type     string    `json:"type"`
	Features []Feature `json:"features"`
}

// Feature is a GeoJSON feature with flat string properties.
type Feature struct {
	Type       string            `json:"type"`
	Geometry   Geometry          `json:"geometry"`
	Properties map[string]string `json:"properties"`
}

// Geometry holds either a Point ([lng, lat]) or a LineString ([[lng, lat], ...]).
type Geometry struct {
	Type        string `json:"type"`
	Coordinates any    `json:"coordinates"`
}

// buildGeoJSON projects every stop as a Point and every tour as a LineString.
func buildGeoJSON(p *model.Problem, sol *Solution) (*FeatureSet, error) {
	if !p.HasCoordinates() {
		return nil, vrperr.New(vrperr.Serialization, "geojson requires coordinate locations",
			vrperr.D("E0003", "problem uses matrix index locations only", "request the solution without geojson"))
	}
	fs := &FeatureSet{Type: "FeatureCollection", Features: []Feature{}}
	for ti, tour := range sol.Tours {
		line := make([][2]float64, 0, len(tour.Stops))
		for si, st := range tour.Stops {
			pt := [2]float64{*st.Location.Lng, *st.Location.Lat}
			line = append(line, pt)
			ids := make([]string, len(st.Activities))
			for i, a := range st.Activities {
				ids[i] = a.JobID
			}
			fs.Features = append(fs.Features, Feature{
				Type:     "Feature",
				Geometry: Geometry{Type: "Point", Coordinates: pt},
				Properties: map[string]string{
					"tour_idx":   strconv.Itoa(ti),
					"stop_idx":   strconv.Itoa(si),
					"vehicle_id": tour.VehicleID,
					"jobs":       strings.Join(ids, ","),
					"arrival":    st.Time.Arrival,
					"departure":  st.Time.Departure,
				},
			})
		}
		fs.Features = append(fs.Features, Feature{
			Type:     "Feature",
			Geometry: Geometry{Type: "LineString", Coordinates: line},
			Properties: map[string]string{
				"tour_idx":    strconv.Itoa(ti),
				"vehicle_id":  tour.VehicleID,
				"shift_index": strconv.Itoa(tour.ShiftIndex),
			},
		})
	}
	return fs, nil
}
