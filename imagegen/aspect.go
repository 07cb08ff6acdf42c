package imagegen

import (
	"fmt"
	"sort"
)

// DefaultAspectRatio is used for empty and unknown aspect ratio keys.
const DefaultAspectRatio = "1:1"

// AspectRatioProfile is the pixel size and prompt label for one aspect ratio.
type AspectRatioProfile struct {
	Width  int
	Height int
	Label  string
}

// String returns "WxH".
func (p AspectRatioProfile) String() string {
	return fmt.Sprintf("%dx%d", p.Width, p.Height)
}

var aspectRatioProfiles = map[string]AspectRatioProfile{
	"1:1":  {Width: 1024, Height: 1024, Label: "square 1:1"},
	"16:9": {Width: 1344, Height: 768, Label: "wide 16:9 landscape"},
	"9:16": {Width: 768, Height: 1344, Label: "portrait 9:16 vertical"},
	"4:3":  {Width: 1152, Height: 896, Label: "landscape 4:3"},
	"3:4":  {Width: 896, Height: 1152, Label: "portrait 3:4"},
}

// ResolveAspectRatio returns the profile for key, falling back to 1:1.
// It never fails.
func ResolveAspectRatio(key string) AspectRatioProfile {
	if p, ok := aspectRatioProfiles[key]; ok {
		return p
	}
	return aspectRatioProfiles[DefaultAspectRatio]
}

// IsKnownAspectRatio reports whether key has its own profile.
func IsKnownAspectRatio(key string) bool {
	_, ok := aspectRatioProfiles[key]
	return ok
}

// AspectRatioKeys returns the supported keys in sorted order.
func AspectRatioKeys() []string {
	keys := make([]string, 0, len(aspectRatioProfiles))
	for k := range aspectRatioProfiles {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
