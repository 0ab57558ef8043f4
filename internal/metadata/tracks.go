package metadata

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flymap/trackd/internal/types"
)

// Track batch field numbers.
const (
	fieldTrackEntry = 1

	fieldTrackGroup         = 1
	fieldTrackIndex         = 2
	fieldTrackName          = 3
	fieldTrackTs            = 4
	fieldTrackLat           = 5
	fieldTrackLon           = 6
	fieldTrackAlt           = 7
	fieldTrackPostProcessed = 8
)

const coordFactor = 1e5

// EncodeTrackBatch encodes a batch of tracks for transport.
// Coordinates are scaled to 1e-5 degrees, altitudes to whole meters.
func EncodeTrackBatch(tracks []*types.Track) []byte {
	var b []byte
	for _, track := range tracks {
		b = protowire.AppendTag(b, fieldTrackEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeTrack(track))
	}
	return b
}

// DecodeTrackBatch decodes a batch of tracks, deriving each track's
// composite id from its group and index.
func DecodeTrackBatch(data []byte) ([]*types.Track, error) {
	var tracks []*types.Track
	err := eachField(data, func(num protowire.Number, raw []byte, _ uint64) error {
		if num != fieldTrackEntry {
			return nil
		}
		track, err := decodeTrack(raw)
		if err != nil {
			return err
		}
		tracks = append(tracks, track)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to decode track batch: %w", err)
	}
	return tracks, nil
}

func encodeTrack(track *types.Track) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldTrackGroup, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(track.Group))
	b = protowire.AppendTag(b, fieldTrackIndex, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(track.Index))
	if track.Name != "" {
		b = protowire.AppendTag(b, fieldTrackName, protowire.BytesType)
		b = protowire.AppendString(b, track.Name)
	}
	if len(track.Ts) > 0 {
		var payload []byte
		for _, ts := range track.Ts {
			payload = protowire.AppendVarint(payload, uint64(ts))
		}
		b = protowire.AppendTag(b, fieldTrackTs, protowire.BytesType)
		b = protowire.AppendBytes(b, payload)
	}
	b = appendPackedSint32(b, fieldTrackLat, scaleCoords(track.Lat))
	b = appendPackedSint32(b, fieldTrackLon, scaleCoords(track.Lon))
	b = appendPackedSint32(b, fieldTrackAlt, scaleAlts(track.Alt))
	if track.PostProcessed {
		b = protowire.AppendTag(b, fieldTrackPostProcessed, protowire.VarintType)
		b = protowire.AppendVarint(b, 1)
	}
	return b
}

func decodeTrack(data []byte) (*types.Track, error) {
	track := &types.Track{}
	err := eachField(data, func(num protowire.Number, raw []byte, varint uint64) error {
		switch num {
		case fieldTrackGroup:
			track.Group = int64(varint)
		case fieldTrackIndex:
			track.Index = int(varint)
		case fieldTrackName:
			track.Name = string(raw)
		case fieldTrackTs:
			for len(raw) > 0 {
				v, n := protowire.ConsumeVarint(raw)
				if n < 0 {
					return fmt.Errorf("invalid ts series: %w", protowire.ParseError(n))
				}
				raw = raw[n:]
				track.Ts = append(track.Ts, int64(v))
			}
		case fieldTrackLat, fieldTrackLon, fieldTrackAlt:
			vals, err := decodePackedSint32(raw)
			if err != nil {
				return err
			}
			switch num {
			case fieldTrackLat:
				track.Lat = unscaleCoords(vals)
			case fieldTrackLon:
				track.Lon = unscaleCoords(vals)
			case fieldTrackAlt:
				track.Alt = unscaleAlts(vals)
			}
		case fieldTrackPostProcessed:
			track.PostProcessed = varint != 0
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	track.ID = types.TrackID(track.Group, track.Index)
	return track, nil
}

func scaleCoords(vals []float64) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(roundHalfAway(v * coordFactor))
	}
	return out
}

func unscaleCoords(vals []int32) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v) / coordFactor
	}
	return out
}

func scaleAlts(vals []float64) []int32 {
	out := make([]int32, len(vals))
	for i, v := range vals {
		out[i] = int32(roundHalfAway(v))
	}
	return out
}

func unscaleAlts(vals []int32) []float64 {
	out := make([]float64, len(vals))
	for i, v := range vals {
		out[i] = float64(v)
	}
	return out
}

func roundHalfAway(v float64) int64 {
	if v < 0 {
		return int64(v - 0.5)
	}
	return int64(v + 0.5)
}
