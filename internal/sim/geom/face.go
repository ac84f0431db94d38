package geom

import (
	"fmt"
	"strings"
)

// Face is one of the six axis-aligned box faces.
type Face uint8

const (
	FaceWest  Face = iota // -X
	FaceEast              // +X
	FaceDown              // -Y
	FaceUp                // +Y
	FaceNorth             // -Z
	FaceSouth             // +Z
)

var faceNames = [...]string{"west", "east", "down", "up", "north", "south"}

func (f Face) String() string {
	if int(f) < len(faceNames) {
		return faceNames[f]
	}
	return fmt.Sprintf("face(%d)", uint8(f))
}

// Normal returns the outward unit normal of the face.
func (f Face) Normal() Vec3 {
	switch f {
	case FaceWest:
		return Vec3{-1, 0, 0}
	case FaceEast:
		return Vec3{1, 0, 0}
	case FaceDown:
		return Vec3{0, -1, 0}
	case FaceNorth:
		return Vec3{0, 0, -1}
	case FaceSouth:
		return Vec3{0, 0, 1}
	}
	return Vec3{0, 1, 0}
}

func ParseFace(s string) (Face, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, n := range faceNames {
		if n == s {
			return Face(i), nil
		}
	}
	return FaceUp, fmt.Errorf("unknown face %q", s)
}
