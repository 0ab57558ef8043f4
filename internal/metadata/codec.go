// Package metadata implements the binary wire format used for
// server-computed track enrichment and for track group batches, plus
// the client that polls the metadata endpoint.
//
// Messages are protobuf wire encoded. Inner groups are carried as
// nested bytes fields so a batch can be decoded incrementally, group
// by group.
package metadata

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/flymap/trackd/internal/types"
)

// MetaGroup carries the server-computed metadata of one track group.
// The per-track series are aligned by the track's index within the
// group; a nil inner slice means that series is not available yet.
type MetaGroup struct {
	ID              int64
	GroundAltitudes []GroundAltitude
	Airspaces       []*types.Airspaces
}

// GroundAltitude is the ground altitude series of one track, aligned
// by sample index.
type GroundAltitude struct {
	Altitudes []int32
	HasErrors bool
}

// Field numbers of the wire messages.
const (
	fieldBatchGroup = 1

	fieldGroupID        = 1
	fieldGroupGndAlt    = 2
	fieldGroupAirspaces = 3

	fieldGndAltEntry     = 1
	fieldGndAltAltitudes = 1
	fieldGndAltHasErrors = 2

	fieldAirspacesEntry    = 1
	fieldAirspacesStartSec = 1
	fieldAirspacesEndSec   = 2
	fieldAirspacesName     = 3
	fieldAirspacesCategory = 4
	fieldAirspacesTop      = 5
	fieldAirspacesBottom   = 6
)

// EncodeMetaBatch encodes a batch of meta groups.
func EncodeMetaBatch(groups []MetaGroup) []byte {
	var b []byte
	for i := range groups {
		b = protowire.AppendTag(b, fieldBatchGroup, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeMetaGroup(&groups[i]))
	}
	return b
}

// DecodeMetaBatch decodes a batch of meta groups. An empty body is a
// valid empty batch.
func DecodeMetaBatch(data []byte) ([]MetaGroup, error) {
	var groups []MetaGroup
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid batch tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		if num != fieldBatchGroup || typ != protowire.BytesType {
			n = protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return nil, fmt.Errorf("invalid batch field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			continue
		}
		raw, n := protowire.ConsumeBytes(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid group bytes: %w", protowire.ParseError(n))
		}
		data = data[n:]
		group, err := decodeMetaGroup(raw)
		if err != nil {
			return nil, err
		}
		groups = append(groups, group)
	}
	return groups, nil
}

func encodeMetaGroup(g *MetaGroup) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldGroupID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(g.ID))
	if g.GroundAltitudes != nil {
		b = protowire.AppendTag(b, fieldGroupGndAlt, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeGroundAltitudeGroup(g.GroundAltitudes))
	}
	if g.Airspaces != nil {
		b = protowire.AppendTag(b, fieldGroupAirspaces, protowire.BytesType)
		b = protowire.AppendBytes(b, encodeAirspacesGroup(g.Airspaces))
	}
	return b
}

func decodeMetaGroup(data []byte) (MetaGroup, error) {
	var g MetaGroup
	err := eachField(data, func(num protowire.Number, raw []byte, varint uint64) error {
		switch num {
		case fieldGroupID:
			g.ID = int64(varint)
		case fieldGroupGndAlt:
			gnd, err := decodeGroundAltitudeGroup(raw)
			if err != nil {
				return err
			}
			g.GroundAltitudes = gnd
		case fieldGroupAirspaces:
			asp, err := decodeAirspacesGroup(raw)
			if err != nil {
				return err
			}
			g.Airspaces = asp
		}
		return nil
	})
	return g, err
}

func encodeGroundAltitudeGroup(entries []GroundAltitude) []byte {
	var b []byte
	for _, e := range entries {
		var entry []byte
		entry = appendPackedSint32(entry, fieldGndAltAltitudes, e.Altitudes)
		if e.HasErrors {
			entry = protowire.AppendTag(entry, fieldGndAltHasErrors, protowire.VarintType)
			entry = protowire.AppendVarint(entry, 1)
		}
		b = protowire.AppendTag(b, fieldGndAltEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeGroundAltitudeGroup(data []byte) ([]GroundAltitude, error) {
	entries := []GroundAltitude{}
	err := eachField(data, func(num protowire.Number, raw []byte, _ uint64) error {
		if num != fieldGndAltEntry {
			return nil
		}
		var e GroundAltitude
		err := eachField(raw, func(num protowire.Number, raw []byte, varint uint64) error {
			switch num {
			case fieldGndAltAltitudes:
				vals, err := decodePackedSint32(raw)
				if err != nil {
					return err
				}
				e.Altitudes = vals
			case fieldGndAltHasErrors:
				e.HasErrors = varint != 0
			}
			return nil
		})
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

func encodeAirspacesGroup(entries []*types.Airspaces) []byte {
	var b []byte
	for _, e := range entries {
		var entry []byte
		if e != nil {
			entry = appendPackedSint32(entry, fieldAirspacesStartSec, e.StartSec)
			entry = appendPackedSint32(entry, fieldAirspacesEndSec, e.EndSec)
			for _, name := range e.Name {
				entry = protowire.AppendTag(entry, fieldAirspacesName, protowire.BytesType)
				entry = protowire.AppendString(entry, name)
			}
			for _, cat := range e.Category {
				entry = protowire.AppendTag(entry, fieldAirspacesCategory, protowire.BytesType)
				entry = protowire.AppendString(entry, cat)
			}
			entry = appendPackedSint32(entry, fieldAirspacesTop, e.Top)
			entry = appendPackedSint32(entry, fieldAirspacesBottom, e.Bottom)
		}
		b = protowire.AppendTag(b, fieldAirspacesEntry, protowire.BytesType)
		b = protowire.AppendBytes(b, entry)
	}
	return b
}

func decodeAirspacesGroup(data []byte) ([]*types.Airspaces, error) {
	entries := []*types.Airspaces{}
	err := eachField(data, func(num protowire.Number, raw []byte, _ uint64) error {
		if num != fieldAirspacesEntry {
			return nil
		}
		e := &types.Airspaces{}
		err := eachField(raw, func(num protowire.Number, raw []byte, _ uint64) error {
			switch num {
			case fieldAirspacesStartSec, fieldAirspacesEndSec, fieldAirspacesTop, fieldAirspacesBottom:
				vals, err := decodePackedSint32(raw)
				if err != nil {
					return err
				}
				switch num {
				case fieldAirspacesStartSec:
					e.StartSec = vals
				case fieldAirspacesEndSec:
					e.EndSec = vals
				case fieldAirspacesTop:
					e.Top = vals
				case fieldAirspacesBottom:
					e.Bottom = vals
				}
			case fieldAirspacesName:
				e.Name = append(e.Name, string(raw))
			case fieldAirspacesCategory:
				e.Category = append(e.Category, string(raw))
			}
			return nil
		})
		if err != nil {
			return err
		}
		entries = append(entries, e)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entries, nil
}

// eachField walks the fields of one message. Bytes fields are handed
// to fn via raw, varint fields via varint; other wire types are
// skipped.
func eachField(data []byte, fn func(num protowire.Number, raw []byte, varint uint64) error) error {
	for len(data) > 0 {
		num, typ, n := protowire.ConsumeTag(data)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		data = data[n:]
		switch typ {
		case protowire.VarintType:
			v, n := protowire.ConsumeVarint(data)
			if n < 0 {
				return fmt.Errorf("invalid varint field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, nil, v); err != nil {
				return err
			}
		case protowire.BytesType:
			raw, n := protowire.ConsumeBytes(data)
			if n < 0 {
				return fmt.Errorf("invalid bytes field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
			if err := fn(num, raw, 0); err != nil {
				return err
			}
		default:
			n := protowire.ConsumeFieldValue(num, typ, data)
			if n < 0 {
				return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(n))
			}
			data = data[n:]
		}
	}
	return nil
}

func appendPackedSint32(b []byte, num protowire.Number, vals []int32) []byte {
	if len(vals) == 0 {
		return b
	}
	var payload []byte
	for _, v := range vals {
		payload = protowire.AppendVarint(payload, protowire.EncodeZigZag(int64(v)))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, payload)
}

func decodePackedSint32(data []byte) ([]int32, error) {
	var vals []int32
	for len(data) > 0 {
		v, n := protowire.ConsumeVarint(data)
		if n < 0 {
			return nil, fmt.Errorf("invalid packed varint: %w", protowire.ParseError(n))
		}
		data = data[n:]
		vals = append(vals, int32(protowire.DecodeZigZag(v)))
	}
	return vals, nil
}
