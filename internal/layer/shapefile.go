package layer

import (
	"strconv"
	"strings"

	shp "github.com/jonas-p/go-shp"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/conversion-cli/internal/geo"
)

// LoadBuildingsShapefile reads the primary building layer from an ESRI
// shapefile. Expected attribute fields: NAME, CATEGORY, PRIORITY, and
// optionally CONV_SCORE and LEVELS. Point and polygon shapes are
// supported; polygons use their bounding-box center.
func LoadBuildingsShapefile(path string) ([]Building, ParseResult, error) {
	reader, err := shp.Open(path)
	if err != nil {
		return nil, ParseResult{}, eris.Wrapf(err, "layer: open shapefile %s", path)
	}
	defer func() { _ = reader.Close() }()

	nameIdx := fieldIndex(reader, "NAME")
	categoryIdx := fieldIndex(reader, "CATEGORY")
	priorityIdx := fieldIndex(reader, "PRIORITY")
	scoreIdx := fieldIndex(reader, "CONV_SCORE")
	levelsIdx := fieldIndex(reader, "LEVELS")

	if nameIdx < 0 || categoryIdx < 0 {
		return nil, ParseResult{}, eris.New("layer: required shapefile fields (NAME, CATEGORY) not found")
	}

	var (
		buildings []Building
		res       ParseResult
	)
	for reader.Next() {
		_, shape := reader.Shape()
		pt, ok := shapePoint(shape)
		if !ok {
			res.Skipped++
			continue
		}

		b := Building{
			Name:     strings.TrimSpace(reader.Attribute(nameIdx)),
			Location: pt,
			Category: strings.TrimSpace(reader.Attribute(categoryIdx)),
		}
		if priorityIdx >= 0 {
			if v, err := strconv.Atoi(strings.TrimSpace(reader.Attribute(priorityIdx))); err == nil {
				b.Priority = v
			}
		}
		if scoreIdx >= 0 {
			if v, err := strconv.ParseFloat(strings.TrimSpace(reader.Attribute(scoreIdx)), 64); err == nil {
				b.ConversionScore = &v
			}
		}
		if levelsIdx >= 0 {
			if v, err := strconv.Atoi(strings.TrimSpace(reader.Attribute(levelsIdx))); err == nil {
				b.BuildingLevels = &v
			}
		}

		buildings = append(buildings, b)
		res.Parsed++
	}

	zap.L().Info("buildings shapefile loaded",
		zap.String("path", path),
		zap.Int("parsed", res.Parsed),
		zap.Int("skipped", res.Skipped),
	)
	return buildings, res, nil
}

// shapePoint extracts a representative point from a shapefile shape.
func shapePoint(s shp.Shape) (geo.Point, bool) {
	switch shape := s.(type) {
	case *shp.Point:
		return geo.Point{Lat: shape.Y, Lng: shape.X}, true
	case *shp.PointZ:
		return geo.Point{Lat: shape.Y, Lng: shape.X}, true
	case *shp.Polygon:
		box := shape.BBox()
		return geo.Point{
			Lat: (box.MinY + box.MaxY) / 2,
			Lng: (box.MinX + box.MaxX) / 2,
		}, true
	default:
		return geo.Point{}, false
	}
}

// fieldIndex returns the index of a named field in the shapefile, or -1 if
// not found.
func fieldIndex(reader *shp.Reader, name string) int {
	for i, f := range reader.Fields() {
		if strings.EqualFold(strings.TrimRight(f.String(), "\x00"), name) {
			return i
		}
	}
	return -1
}
