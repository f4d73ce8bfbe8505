package scene

import "github.com/Faultbox/psxexport/pkg/math"

// CameraView projects a world-space point into the normalized view of cam.
// X and Y are in [0,1] inside the frame (origin bottom-left), Z is the depth
// in front of the camera; points behind it have negative Z.
func (s *Scene) CameraView(cam *Object, p math.Vec3) math.Vec3 {
	co := cam.Matrix().Inverse().TransformPoint(p)
	z := -co.Z
	if z == 0 {
		return math.Vec3{X: 0.5, Y: 0.5, Z: 0}
	}

	lens, sensor := 50.0, 36.0
	if cam.Camera != nil {
		lens, sensor = cam.Camera.Lens, cam.Camera.SensorWidth
	}
	// Sensor fit follows the larger render dimension.
	rx, ry := s.Resolution()
	half := sensor / (2 * lens)
	hx, hy := half, half
	if rx >= ry {
		hy = half * float64(ry) / float64(rx)
	} else {
		hx = half * float64(rx) / float64(ry)
	}

	return math.Vec3{
		X: (co.X/z)/(2*hx) + 0.5,
		Y: (co.Y/z)/(2*hy) + 0.5,
		Z: z,
	}
}

// InFrame reports whether p projects inside the camera frame.
func (s *Scene) InFrame(cam *Object, p math.Vec3) bool {
	v := s.CameraView(cam, p)
	return v.X >= 0 && v.X <= 1 && v.Y >= 0 && v.Y <= 1 && v.Z >= 0
}
