package skylines

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"regexp"
	"time"

	"github.com/google/uuid"

	"github.com/flymap/trackd/internal/geojson"
	"github.com/flymap/trackd/internal/stats"
	"github.com/flymap/trackd/internal/types"
)

const (
	// Provider is the device discriminator used in the datastore.
	Provider = "skylines"

	// RefreshEveryMinutes is the staleness window: devices updated
	// more recently than this are not re-polled.
	RefreshEveryMinutes = 3

	// DefaultBaseURL is the live API endpoint.
	DefaultBaseURL = "https://skylines.aero"
)

var numericID = regexp.MustCompile(`^\d+$`)

// DeviceStore is the narrow datastore contract used by the refresher.
// QueryStaleDevices returns the devices of one provider whose updated
// timestamp is older than staleBefore; the result order carries no
// meaning and callers must treat it as an unordered set.
type DeviceStore interface {
	QueryStaleDevices(ctx context.Context, provider string, staleBefore int64) ([]*types.Device, error)
	SaveDevice(ctx context.Context, device *types.Device) error
}

// PointCache caches the latest decoded points of a device.
type PointCache interface {
	StoreDevicePoints(ctx context.Context, deviceID string, points []types.GeoPoint) error
	DeleteDevicePoints(ctx context.Context, deviceID string) error
}

// EventPublisher publishes device update events.
type EventPublisher interface {
	PublishDeviceUpdated(update *types.DeviceUpdate) error
}

// PayloadArchiver archives raw provider payloads.
type PayloadArchiver interface {
	WritePayload(deviceID string, payload []byte) error
}

// Refresher polls the skylines live API for stale devices and writes
// the decoded tracks back through the device store. One Refresh run is
// sequential; concurrent runs for the same provider are not guarded
// against and must be prevented by the caller's scheduling cadence.
type Refresher struct {
	store   DeviceStore
	cache   PointCache
	events  EventPublisher
	archive PayloadArchiver
	stats   *stats.Stats
	client  *http.Client
	baseURL string
	now     func() time.Time
}

// Option configures a Refresher.
type Option func(*Refresher)

// WithPointCache attaches a point cache. Cache failures never fail a
// device poll.
func WithPointCache(cache PointCache) Option {
	return func(r *Refresher) { r.cache = cache }
}

// WithEventPublisher attaches an update event publisher.
func WithEventPublisher(events EventPublisher) Option {
	return func(r *Refresher) { r.events = events }
}

// WithPayloadArchiver attaches a raw payload archiver.
func WithPayloadArchiver(archive PayloadArchiver) Option {
	return func(r *Refresher) { r.archive = archive }
}

// WithStats attaches run counters.
func WithStats(s *stats.Stats) Option {
	return func(r *Refresher) { r.stats = s }
}

// WithBaseURL overrides the live API endpoint.
func WithBaseURL(url string) Option {
	return func(r *Refresher) { r.baseURL = url }
}

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(r *Refresher) { r.client = client }
}

// WithClock overrides the wall clock.
func WithClock(now func() time.Time) Option {
	return func(r *Refresher) { r.now = now }
}

// NewRefresher creates a refresher backed by the given device store.
func NewRefresher(store DeviceStore, opts ...Option) *Refresher {
	r := &Refresher{
		store:   store,
		client:  &http.Client{Timeout: 30 * time.Second},
		baseURL: DefaultBaseURL,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Refresh polls every stale skylines device once, bounded by a global
// wall-clock budget of timeoutSecs. The budget is checked before each
// device, so a single slow poll can overrun it; devices left behind
// stay stale and are retried on the next run. Per-device failures are
// logged and skipped. Returns the number of devices found active.
func (r *Refresher) Refresh(ctx context.Context, maxAgeHours, timeoutSecs int) (int, error) {
	start := r.now()
	runID := uuid.New().String()
	staleBefore := start.UnixMilli() - RefreshEveryMinutes*60*1000

	devices, err := r.store.QueryStaleDevices(ctx, Provider, staleBefore)
	if err != nil {
		return 0, fmt.Errorf("failed to query stale devices: %w", err)
	}

	budget := time.Duration(timeoutSecs) * time.Second
	numActive := 0
	numPolled := 0

	for _, device := range devices {
		if r.now().Sub(start) >= budget {
			log.Printf("Refresh %s: budget of %ds exhausted, %d devices left stale", runID, timeoutSecs, len(devices)-numPolled)
			if r.stats != nil {
				r.stats.IncrementBudgetExhaustions()
			}
			break
		}

		if !numericID.MatchString(device.ProviderID) {
			if r.stats != nil {
				r.stats.IncrementDevicesSkipped()
			}
			continue
		}

		if err := r.refreshDevice(ctx, device, maxAgeHours); err != nil {
			log.Printf("Error refreshing skylines @ %s: %v", device.ProviderID, err)
			if r.stats != nil {
				r.stats.IncrementDevicesFailed()
			}
			numPolled++
			continue
		}

		numPolled++
		if device.Active {
			numActive++
		}
		if r.stats != nil {
			r.stats.IncrementDevicesPolled()
			if device.Active {
				r.stats.IncrementDevicesActive()
			}
		}
	}

	elapsed := r.now().Sub(start)
	log.Printf("Refresh %s: polled %d skylines devices (%d active) in %.1fs", runID, numPolled, numActive, elapsed.Seconds())
	if r.stats != nil {
		r.stats.IncrementRuns()
		r.stats.AddPollTime(elapsed)
	}
	return numActive, nil
}

// refreshDevice polls one device and writes it back. Any failure
// leaves the device record untouched.
func (r *Refresher) refreshDevice(ctx context.Context, device *types.Device, maxAgeHours int) error {
	log.Printf("Refreshing skylines @ %s", device.ProviderID)

	body, err := r.fetchLive(ctx, device.ProviderID)
	if err != nil {
		return err
	}

	if r.archive != nil {
		if err := r.archive.WritePayload(device.ProviderID, body); err != nil {
			log.Printf("Warning: failed to archive payload for %s: %v", device.ProviderID, err)
		}
	}

	var live LiveResponse
	if err := json.Unmarshal(body, &live); err != nil {
		return fmt.Errorf("malformed live response: %w", err)
	}

	var points []types.GeoPoint
	if len(live.Flights) > 0 {
		name := "unknown"
		if len(live.Pilots) > 0 && live.Pilots[0].Name != "" {
			name = live.Pilots[0].Name
		}
		points = DecodeFlight(live.Flights[0], name, maxAgeHours, r.now())
	}

	features, err := geojson.EncodeFeatures(points)
	if err != nil {
		return fmt.Errorf("failed to encode features: %w", err)
	}

	device.Features = features
	device.Updated = r.now().UnixMilli()
	device.Active = len(points) > 0

	if err := r.store.SaveDevice(ctx, device); err != nil {
		return fmt.Errorf("failed to save device: %w", err)
	}

	if r.cache != nil {
		if err := r.cacheDevicePoints(ctx, device, points); err != nil {
			log.Printf("Warning: failed to cache points for %s: %v", device.ID, err)
		}
	}
	if r.events != nil {
		update := &types.DeviceUpdate{
			DeviceID:  device.ID,
			Provider:  Provider,
			Active:    device.Active,
			NumPoints: len(points),
			Updated:   device.Updated,
		}
		if err := r.events.PublishDeviceUpdated(update); err != nil {
			log.Printf("Warning: failed to publish update for %s: %v", device.ID, err)
		}
	}
	return nil
}

func (r *Refresher) cacheDevicePoints(ctx context.Context, device *types.Device, points []types.GeoPoint) error {
	if len(points) == 0 {
		return r.cache.DeleteDevicePoints(ctx, device.ID)
	}
	return r.cache.StoreDevicePoints(ctx, device.ID, points)
}

// fetchLive fetches the live payload for one provider id.
func (r *Refresher) fetchLive(ctx context.Context, id string) ([]byte, error) {
	url := fmt.Sprintf("%s/api/live/%s", r.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	return body, nil
}
