package math

import (
	"encoding/json"
	"fmt"
)

// MarshalJSON encodes the vector as [x, y, z].
func (v Vec3) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]float64{v.X, v.Y, v.Z})
}

// UnmarshalJSON decodes a [x, y, z] array.
func (v *Vec3) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 3 {
		return fmt.Errorf("vec3: expected 3 components, got %d", len(a))
	}
	v.X, v.Y, v.Z = a[0], a[1], a[2]
	return nil
}

// MarshalJSON encodes the vector as [x, y].
func (v Vec2) MarshalJSON() ([]byte, error) {
	return json.Marshal([2]float64{v.X, v.Y})
}

// UnmarshalJSON decodes a [x, y] array.
func (v *Vec2) UnmarshalJSON(data []byte) error {
	var a []float64
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if len(a) != 2 {
		return fmt.Errorf("vec2: expected 2 components, got %d", len(a))
	}
	v.X, v.Y = a[0], a[1]
	return nil
}
