package tracking

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	gtfsrtpb "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"

	"github.com/citytransit/transitengine/internal/geo"
	"github.com/citytransit/transitengine/internal/network"
)

// ContentTypeProtobuf marks a GTFS-Realtime FeedMessage payload.
const ContentTypeProtobuf = "application/x-protobuf"

// FixMessage is the JSON payload published by vehicle terminals.
type FixMessage struct {
	VehicleID string    `json:"vehicleId"`
	Lat       float64   `json:"lat"`
	Lon       float64   `json:"lon"`
	Timestamp time.Time `json:"timestamp"`
}

// Decode parses a payload according to its content type. An empty or JSON content
// type yields a single fix; protobuf yields every vehicle position in the feed.
func Decode(contentType string, data []byte) ([]network.GpsFix, error) {
	if strings.HasPrefix(contentType, ContentTypeProtobuf) {
		return DecodeVehiclePositions(data)
	}

	fix, err := DecodeFix(data)
	if err != nil {
		return nil, err
	}
	return []network.GpsFix{fix}, nil
}

// DecodeFix parses a JSON FixMessage.
func DecodeFix(data []byte) (network.GpsFix, error) {
	var msg FixMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return network.GpsFix{}, fmt.Errorf("decoding fix: %w", err)
	}

	fix := network.GpsFix{
		VehicleID:  msg.VehicleID,
		Point:      geo.Point{Lat: msg.Lat, Lon: msg.Lon},
		RecordedAt: msg.Timestamp,
	}
	if err := validate(fix); err != nil {
		return network.GpsFix{}, err
	}
	return fix, nil
}

// DecodeVehiclePositions extracts fixes from a GTFS-Realtime feed. Entities without a
// position are skipped. A vehicle without its own timestamp takes the feed header's.
func DecodeVehiclePositions(data []byte) ([]network.GpsFix, error) {
	var fm gtfsrtpb.FeedMessage
	if err := proto.Unmarshal(data, &fm); err != nil {
		return nil, fmt.Errorf("decoding feed message: %w", err)
	}

	headerTS := fm.GetHeader().GetTimestamp()

	var fixes []network.GpsFix
	for _, e := range fm.GetEntity() {
		vp := e.GetVehicle()
		if vp == nil || vp.GetPosition() == nil {
			continue
		}

		id := vp.GetVehicle().GetId()
		if id == "" {
			id = e.GetId()
		}

		ts := vp.GetTimestamp()
		if ts == 0 {
			ts = headerTS
		}
		if ts == 0 {
			continue
		}

		fix := network.GpsFix{
			VehicleID: id,
			Point: geo.Point{
				Lat: float64(vp.GetPosition().GetLatitude()),
				Lon: float64(vp.GetPosition().GetLongitude()),
			},
			RecordedAt: time.Unix(int64(ts), 0).UTC(), //nolint:gosec // epoch seconds fit in int64
		}
		if validate(fix) != nil {
			continue
		}
		fixes = append(fixes, fix)
	}
	return fixes, nil
}
