package platform

import (
	"context"
	"fmt"
	"time"
)

// LocationUpdate represents one position reading from the device.
type LocationUpdate struct {
	// Latitude is the latitude in degrees.
	Latitude float64
	// Longitude is the longitude in degrees.
	Longitude float64
	// Altitude is the altitude in meters.
	Altitude float64
	// Accuracy is the estimated horizontal accuracy in meters. Negative
	// values mean the reading has no valid horizontal position.
	Accuracy float64
	// VerticalAccuracy is the estimated altitude accuracy in meters.
	// Negative values mean the altitude is not valid.
	VerticalAccuracy float64
	// Heading is the direction of travel in degrees. Negative when unknown.
	Heading float64
	// Speed is the speed in meters per second. Negative when unknown.
	Speed float64
	// Timestamp is when the reading was taken.
	Timestamp time.Time
}

// LocationOptions configures location update behavior.
type LocationOptions struct {
	// HighAccuracy requests the highest available accuracy (may use more power).
	HighAccuracy bool
}

// LocationService provides access to the device positioning service.
// Context parameters are currently unused and reserved for future cancellation support.
type LocationService struct {
	// Permission provides access to the foreground location permission.
	Permission struct {
		// WhenInUse permission for foreground location access.
		WhenInUse Permission
	}

	channel *MethodChannel
	events  *EventChannel
	updates *Stream[[]LocationUpdate]
}

// Location is the singleton location service.
var Location *LocationService

func init() {
	Location = newLocationService()
}

func newLocationService() *LocationService {
	events := NewEventChannel("drift/location/updates")
	svc := &LocationService{
		channel: NewMethodChannel("drift/location"),
		events:  events,
		updates: NewStream("drift/location/updates", events, parseLocationBatch),
	}
	svc.Permission.WhenInUse = newRuntimePermission("location")
	return svc
}

// IsEnabled checks if location services are enabled on the device.
func (l *LocationService) IsEnabled(ctx context.Context) (bool, error) {
	result, err := l.channel.Invoke("isEnabled", nil)
	if err != nil {
		return false, err
	}
	if m := parseMap(result); m != nil {
		return parseBool(m["enabled"]), nil
	}
	return false, nil
}

// PromptPermission asks native code to show the location permission dialog
// and returns without waiting for the answer. The outcome arrives as a change
// event on Permission.WhenInUse.Listen. If the permission is already decided,
// native code re-emits the current status.
func (l *LocationService) PromptPermission(ctx context.Context) error {
	return l.Permission.WhenInUse.Prompt(ctx)
}

// StartUpdates begins continuous location updates. Every reading is
// delivered on Updates; there is no distance filter.
func (l *LocationService) StartUpdates(ctx context.Context, opts LocationOptions) error {
	_, err := l.channel.Invoke("startUpdates", map[string]any{
		"highAccuracy": opts.HighAccuracy,
	})
	return err
}

// StopUpdates stops location updates.
func (l *LocationService) StopUpdates(ctx context.Context) error {
	_, err := l.channel.Invoke("stopUpdates", nil)
	return err
}

// Updates returns the stream of location deliveries. Each delivery holds one
// or more readings in the order the device produced them.
func (l *LocationService) Updates() *Stream[[]LocationUpdate] {
	return l.updates
}

// parseLocationBatch accepts a single reading map, a list of reading maps, or
// a map with a "locations" list.
func parseLocationBatch(data any) ([]LocationUpdate, error) {
	if m := parseMap(data); m != nil {
		if list, ok := m["locations"].([]any); ok {
			return parseLocationList(list)
		}
		update, err := parseLocationUpdate(m)
		if err != nil {
			return nil, err
		}
		return []LocationUpdate{update}, nil
	}
	if list, ok := data.([]any); ok {
		return parseLocationList(list)
	}
	return nil, fmt.Errorf("expected map or list, got %T", data)
}

func parseLocationList(list []any) ([]LocationUpdate, error) {
	if len(list) == 0 {
		return nil, fmt.Errorf("empty location delivery")
	}
	updates := make([]LocationUpdate, 0, len(list))
	for i, item := range list {
		m := parseMap(item)
		if m == nil {
			return nil, fmt.Errorf("location %d: expected map, got %T", i, item)
		}
		update, err := parseLocationUpdate(m)
		if err != nil {
			return nil, fmt.Errorf("location %d: %w", i, err)
		}
		updates = append(updates, update)
	}
	return updates, nil
}

func parseLocationUpdate(m map[string]any) (LocationUpdate, error) {
	lat, ok := toFloat64(m["latitude"])
	if !ok {
		return LocationUpdate{}, fmt.Errorf("missing latitude")
	}
	lon, ok := toFloat64(m["longitude"])
	if !ok {
		return LocationUpdate{}, fmt.Errorf("missing longitude")
	}
	return LocationUpdate{
		Latitude:         lat,
		Longitude:        lon,
		Altitude:         floatOr(m["altitude"], 0),
		Accuracy:         floatOr(m["accuracy"], -1),
		VerticalAccuracy: floatOr(m["verticalAccuracy"], -1),
		Heading:          floatOr(m["heading"], -1),
		Speed:            floatOr(m["speed"], -1),
		Timestamp:        parseTime(m["timestamp"]),
	}, nil
}
