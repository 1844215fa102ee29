// Package evidence defines the capture port for check-in/check-out proof.
// The actual camera and GPS hardware lives on the client; this package owns
// the contract and the fail-closed composition of a full Evidence value.
package evidence

import (
	"context"
	"encoding/base64"
	"errors"
	"time"

	"install-pulse-service/internal/entity"
)

var (
	// ErrCancelled: the user backed out before the capture finished.
	ErrCancelled = errors.New("capture cancelled")
	// ErrDeviceError: the camera failed to produce an image.
	ErrDeviceError = errors.New("camera device error")
	// ErrTimeout: no GPS fix within the allotted time.
	ErrTimeout = errors.New("gps acquisition timed out")
	// ErrPermissionDenied: camera or location permission refused.
	ErrPermissionDenied = errors.New("capture permission denied")
)

// Location is a GPS fix.
type Location struct {
	Lat       float64
	Long      float64
	AccuracyM float64
}

// Capturer wraps the device APIs. Implementations perform real I/O and are
// expected to honor ctx cancellation.
type Capturer interface {
	CapturePhoto(ctx context.Context) ([]byte, error)
	CaptureLocation(ctx context.Context, timeout time.Duration) (Location, error)
}

// Collect captures a photo and a GPS fix and assembles them into Evidence.
// Any capture failure aborts the whole collection: no partial evidence is
// ever returned, so a failed capture leaves the execution untouched.
func Collect(ctx context.Context, c Capturer, gpsTimeout time.Duration) (*entity.Evidence, error) {
	photo, err := c.CapturePhoto(ctx)
	if err != nil {
		return nil, err
	}
	if len(photo) == 0 {
		return nil, ErrDeviceError
	}

	loc, err := c.CaptureLocation(ctx, gpsTimeout)
	if err != nil {
		return nil, err
	}

	lat, long, acc := loc.Lat, loc.Long, loc.AccuracyM
	return &entity.Evidence{
		PhotoBase64:  base64.StdEncoding.EncodeToString(photo),
		GPSLat:       &lat,
		GPSLong:      &long,
		GPSAccuracyM: &acc,
	}, nil
}
