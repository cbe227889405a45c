package geoconform

import "strings"

// normalizeName lower-cases s and drops everything but letters and digits,
// so "Transverse_Mercator" and "transverse mercator" compare equal.
func normalizeName(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var projectionAliases = map[string]string{
	"gausskruger":                        "transversemercator",
	"lambertconformalconic":              "lambertconformalconic2sp",
	"mercator":                           "mercator1sp",
	"albers":                             "albersconicequalarea",
	"albersequalarea":                    "albersconicequalarea",
	"platecarree":                        "equirectangular",
	"equidistantcylindrical":             "equirectangular",
	"doublestereographic":                "obliquestereographic",
	"obliquemercator":                    "hotineobliquemercator",
	"popularvisualisationpseudomercator": "pseudomercator",
	"mercatorauxiliarysphere":            "pseudomercator",
	"polarstereographicvarianta":         "polarstereographic",
}

var parameterAliases = map[string]string{
	"scalefactoratnaturalorigin":    "scalefactor",
	"latitudeofnaturalorigin":       "latitudeoforigin",
	"longitudeofnaturalorigin":      "centralmeridian",
	"latitudeof1ststandardparallel": "standardparallel1",
	"latitudeof2ndstandardparallel": "standardparallel2",
}

var datumAliases = map[string]string{
	"wgs1984":                                "wgs84",
	"worldgeodeticsystem1984":                "wgs84",
	"northamericandatum1983":                 "nad83",
	"northamerican1983":                      "nad83",
	"northamericandatum1927":                 "nad27",
	"northamerican1927":                      "nad27",
	"europeanterrestrialreferencesystem1989": "etrs89",
	"europeandatum1950":                      "ed50",
	"osgb1936":                               "osgb36",
	"ordnancesurveygreatbritain1936":         "osgb36",
}

func projectionKey(name string) string {
	k := normalizeName(name)
	if alias, ok := projectionAliases[k]; ok {
		return alias
	}
	return k
}

func parameterKey(name string) string {
	k := normalizeName(name)
	if alias, ok := parameterAliases[k]; ok {
		return alias
	}
	return k
}

// datumKey normalizes a datum name. ESRI's "D_" prefix is dropped.
func datumKey(name string) string {
	n := strings.TrimSpace(name)
	if len(n) > 2 && (n[:2] == "D_" || n[:2] == "d_") {
		n = n[2:]
	}
	k := normalizeName(n)
	if alias, ok := datumAliases[k]; ok {
		return alias
	}
	return k
}

// parameterDefault is the value a projection parameter takes when omitted.
func parameterDefault(key string) float64 {
	if key == "scalefactor" {
		return 1
	}
	return 0
}

type parameterUnit int

const (
	paramScalar parameterUnit = iota
	paramAngular
	paramLinear
)

// parameterUnitOf classifies a normalized parameter name.
func parameterUnitOf(key string) parameterUnit {
	switch {
	case strings.HasPrefix(key, "false"):
		return paramLinear
	case strings.Contains(key, "latitude"), strings.Contains(key, "longitude"),
		strings.Contains(key, "meridian"), strings.Contains(key, "parallel"),
		strings.Contains(key, "azimuth"), strings.Contains(key, "angle"):
		return paramAngular
	}
	return paramScalar
}
