package raster

import (
	"regexp"
	"strconv"
)

var (
	wkt1Authority = regexp.MustCompile(`AUTHORITY\[\s*"EPSG"\s*,\s*"?(\d+)"?\s*\]`)
	wkt2ID        = regexp.MustCompile(`ID\[\s*"EPSG"\s*,\s*(\d+)\s*\]`)
	epsgCode      = regexp.MustCompile(`(?i)EPSG:{1,2}(\d+)`)
)

// DetectEPSG extracts an EPSG code from a projection definition. It accepts
// WKT1 (the last AUTHORITY node names the CRS itself), WKT2 ID nodes, and
// "EPSG:<code>" or URN forms. It returns 0 when no code is found.
func DetectEPSG(text string) int {
	for _, re := range []*regexp.Regexp{wkt1Authority, wkt2ID, epsgCode} {
		m := re.FindAllStringSubmatch(text, -1)
		if len(m) == 0 {
			continue
		}
		code, err := strconv.Atoi(m[len(m)-1][1])
		if err == nil {
			return code
		}
	}
	return 0
}
