package angles

import "fmt"

// Kind is one of the four angle outputs
type Kind int

const (
	SolarZenith Kind = iota
	SolarAzimuth
	ViewZenith
	ViewAzimuth
)

// Kinds lists the outputs in the order they are produced
var Kinds = []Kind{SolarZenith, SolarAzimuth, ViewZenith, ViewAzimuth}

// Suffix returns the suffix used to name the output file
func (k Kind) Suffix() string {
	switch k {
	case SolarZenith:
		return "SZAr"
	case SolarAzimuth:
		return "SAAr"
	case ViewZenith:
		return "VZAr"
	case ViewAzimuth:
		return "VAAr"
	}
	return ""
}

func (k Kind) String() string {
	switch k {
	case SolarZenith:
		return "solar_zenith"
	case SolarAzimuth:
		return "solar_azimuth"
	case ViewZenith:
		return "view_zenith"
	case ViewAzimuth:
		return "view_azimuth"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// OutputName returns the name of the output file of the scene for this kind of angle
func OutputName(sceneID string, k Kind) string {
	return sceneID + "_" + k.Suffix() + ".tif"
}

// Select returns the grid of the kind from the sun and the reduced view angles.
// The grid of an unknown kind is all NaN.
func Select(k Kind, sun, view AnglePair) Grid {
	switch k {
	case SolarZenith:
		return sun.Zenith
	case SolarAzimuth:
		return sun.Azimuth
	case ViewZenith:
		return view.Zenith
	case ViewAzimuth:
		return view.Azimuth
	}
	return NewGrid()
}
