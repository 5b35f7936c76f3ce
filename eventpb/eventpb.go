// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package eventpb encodes and decodes the protobuf wire format for the
// inbound tenant lifecycle events of spec.md §6 (TenantCreated,
// TenantDeactivated) and the outbound audit-event envelope published
// to the broker. Rather than generating code from a .proto file, the
// messages are small and stable enough to encode directly against
// google.golang.org/protobuf/encoding/protowire, the same low-level
// wire-format package protoc-generated code itself builds on.
package eventpb

import (
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Field numbers, fixed by spec.md §6.
const (
	fieldMetadata = 1
	fieldTenant   = 2

	fieldMetaCorrelationID = 1
	fieldMetaUserID        = 2

	fieldTenantID   = 1
	fieldTenantCode = 2

	fieldDeactivatedMetadata = 1
	fieldDeactivatedTenantID = 2

	fieldAuditEventID       = 1
	fieldAuditSourceService = 2
	fieldAuditVersion       = 3
	fieldAuditTimestamp     = 4
	fieldAuditCorrelationID = 5
	fieldAuditType          = 6
	fieldAuditTenantID      = 7
	fieldAuditActorID       = 8
	fieldAuditResource      = 9
	fieldAuditTargetID      = 10
	fieldAuditTargetName    = 11
	fieldAuditAttr          = 12

	fieldAttrKey   = 1
	fieldAttrValue = 2
)

// EventMetadata carries the correlation id and acting user for a
// tenant lifecycle event.
type EventMetadata struct {
	CorrelationID string
	UserID        string
}

// TenantRef identifies the tenant a lifecycle event concerns.
type TenantRef struct {
	TenantID   string
	TenantCode string
}

// TenantCreated is the inbound event of spec.md §4.4.
type TenantCreated struct {
	Metadata EventMetadata
	Tenant   TenantRef
}

// TenantDeactivated is the inbound event of spec.md §4.4.
type TenantDeactivated struct {
	Metadata EventMetadata
	TenantID string
}

func encodeMetadata(m EventMetadata) []byte {
	var b []byte
	if m.CorrelationID != "" {
		b = protowire.AppendTag(b, fieldMetaCorrelationID, protowire.BytesType)
		b = protowire.AppendString(b, m.CorrelationID)
	}
	if m.UserID != "" {
		b = protowire.AppendTag(b, fieldMetaUserID, protowire.BytesType)
		b = protowire.AppendString(b, m.UserID)
	}
	return b
}

func decodeMetadata(b []byte) (EventMetadata, error) {
	var m EventMetadata
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return m, fmt.Errorf("eventpb: malformed metadata tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldMetaCorrelationID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return m, fmt.Errorf("eventpb: malformed correlation_id: %w", protowire.ParseError(n))
			}
			m.CorrelationID = v
			b = b[n:]
		case fieldMetaUserID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return m, fmt.Errorf("eventpb: malformed user_id: %w", protowire.ParseError(n))
			}
			m.UserID = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return m, fmt.Errorf("eventpb: malformed metadata field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return m, nil
}

// Marshal encodes a TenantCreated event as protobuf wire bytes.
func (e TenantCreated) Marshal() []byte {
	var b []byte

	if meta := encodeMetadata(e.Metadata); len(meta) > 0 {
		b = protowire.AppendTag(b, fieldMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, meta)
	}

	var tenant []byte
	if e.Tenant.TenantID != "" {
		tenant = protowire.AppendTag(tenant, fieldTenantID, protowire.BytesType)
		tenant = protowire.AppendString(tenant, e.Tenant.TenantID)
	}
	if e.Tenant.TenantCode != "" {
		tenant = protowire.AppendTag(tenant, fieldTenantCode, protowire.BytesType)
		tenant = protowire.AppendString(tenant, e.Tenant.TenantCode)
	}
	b = protowire.AppendTag(b, fieldTenant, protowire.BytesType)
	b = protowire.AppendBytes(b, tenant)

	return b
}

// UnmarshalTenantCreated decodes a TenantCreated event from protobuf
// wire bytes.
func UnmarshalTenantCreated(b []byte) (TenantCreated, error) {
	var e TenantCreated
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("eventpb: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldMetadata:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed metadata: %w", protowire.ParseError(n))
			}
			meta, err := decodeMetadata(v)
			if err != nil {
				return e, err
			}
			e.Metadata = meta
			b = b[n:]
		case fieldTenant:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed tenant: %w", protowire.ParseError(n))
			}
			tenant, err := decodeTenantRef(v)
			if err != nil {
				return e, err
			}
			e.Tenant = tenant
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

func decodeTenantRef(b []byte) (TenantRef, error) {
	var t TenantRef
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return t, fmt.Errorf("eventpb: malformed tenant tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldTenantID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return t, fmt.Errorf("eventpb: malformed tenant_id: %w", protowire.ParseError(n))
			}
			t.TenantID = v
			b = b[n:]
		case fieldTenantCode:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return t, fmt.Errorf("eventpb: malformed tenant_code: %w", protowire.ParseError(n))
			}
			t.TenantCode = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return t, fmt.Errorf("eventpb: malformed tenant field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return t, nil
}

// Marshal encodes a TenantDeactivated event as protobuf wire bytes.
func (e TenantDeactivated) Marshal() []byte {
	var b []byte
	if meta := encodeMetadata(e.Metadata); len(meta) > 0 {
		b = protowire.AppendTag(b, fieldDeactivatedMetadata, protowire.BytesType)
		b = protowire.AppendBytes(b, meta)
	}
	if e.TenantID != "" {
		b = protowire.AppendTag(b, fieldDeactivatedTenantID, protowire.BytesType)
		b = protowire.AppendString(b, e.TenantID)
	}
	return b
}

// UnmarshalTenantDeactivated decodes a TenantDeactivated event from
// protobuf wire bytes.
func UnmarshalTenantDeactivated(b []byte) (TenantDeactivated, error) {
	var e TenantDeactivated
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("eventpb: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldDeactivatedMetadata:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed metadata: %w", protowire.ParseError(n))
			}
			meta, err := decodeMetadata(v)
			if err != nil {
				return e, err
			}
			e.Metadata = meta
			b = b[n:]
		case fieldDeactivatedTenantID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed tenant_id: %w", protowire.ParseError(n))
			}
			e.TenantID = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

// AuditEvent is the wire form of the outbound audit-event envelope
// published to the broker (spec.md §6). Attrs values are JSON-encoded
// so the schema-less Event.Attrs map survives the wire without a
// dedicated message per event type.
type AuditEvent struct {
	EventID       string
	SourceService string
	Version       string
	Timestamp     time.Time
	CorrelationID string
	Type          string
	TenantID      string
	ActorID       string
	Resource      string
	TargetID      string
	TargetName    string
	Attrs         map[string]string
}

// Marshal encodes an AuditEvent as protobuf wire bytes.
func (e AuditEvent) Marshal() []byte {
	var b []byte

	if e.EventID != "" {
		b = protowire.AppendTag(b, fieldAuditEventID, protowire.BytesType)
		b = protowire.AppendString(b, e.EventID)
	}
	if e.SourceService != "" {
		b = protowire.AppendTag(b, fieldAuditSourceService, protowire.BytesType)
		b = protowire.AppendString(b, e.SourceService)
	}
	if e.Version != "" {
		b = protowire.AppendTag(b, fieldAuditVersion, protowire.BytesType)
		b = protowire.AppendString(b, e.Version)
	}
	if !e.Timestamp.IsZero() {
		b = protowire.AppendTag(b, fieldAuditTimestamp, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(e.Timestamp.UnixNano()))
	}
	if e.CorrelationID != "" {
		b = protowire.AppendTag(b, fieldAuditCorrelationID, protowire.BytesType)
		b = protowire.AppendString(b, e.CorrelationID)
	}
	if e.Type != "" {
		b = protowire.AppendTag(b, fieldAuditType, protowire.BytesType)
		b = protowire.AppendString(b, e.Type)
	}
	if e.TenantID != "" {
		b = protowire.AppendTag(b, fieldAuditTenantID, protowire.BytesType)
		b = protowire.AppendString(b, e.TenantID)
	}
	if e.ActorID != "" {
		b = protowire.AppendTag(b, fieldAuditActorID, protowire.BytesType)
		b = protowire.AppendString(b, e.ActorID)
	}
	if e.Resource != "" {
		b = protowire.AppendTag(b, fieldAuditResource, protowire.BytesType)
		b = protowire.AppendString(b, e.Resource)
	}
	if e.TargetID != "" {
		b = protowire.AppendTag(b, fieldAuditTargetID, protowire.BytesType)
		b = protowire.AppendString(b, e.TargetID)
	}
	if e.TargetName != "" {
		b = protowire.AppendTag(b, fieldAuditTargetName, protowire.BytesType)
		b = protowire.AppendString(b, e.TargetName)
	}
	for k, v := range e.Attrs {
		var attr []byte
		attr = protowire.AppendTag(attr, fieldAttrKey, protowire.BytesType)
		attr = protowire.AppendString(attr, k)
		attr = protowire.AppendTag(attr, fieldAttrValue, protowire.BytesType)
		attr = protowire.AppendString(attr, v)
		b = protowire.AppendTag(b, fieldAuditAttr, protowire.BytesType)
		b = protowire.AppendBytes(b, attr)
	}

	return b
}

// EncodeAttrs JSON-encodes each value of attrs, dropping any value
// that fails to marshal rather than aborting the whole event.
func EncodeAttrs(attrs map[string]any) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		encoded, err := json.Marshal(v)
		if err != nil {
			continue
		}
		out[k] = string(encoded)
	}
	return out
}

// UnmarshalAuditEvent decodes an AuditEvent from protobuf wire bytes.
func UnmarshalAuditEvent(b []byte) (AuditEvent, error) {
	var e AuditEvent
	e.Attrs = map[string]string{}

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return e, fmt.Errorf("eventpb: malformed tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldAuditEventID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed event_id: %w", protowire.ParseError(n))
			}
			e.EventID = v
			b = b[n:]
		case fieldAuditSourceService:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed source_service: %w", protowire.ParseError(n))
			}
			e.SourceService = v
			b = b[n:]
		case fieldAuditVersion:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed version: %w", protowire.ParseError(n))
			}
			e.Version = v
			b = b[n:]
		case fieldAuditTimestamp:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed timestamp: %w", protowire.ParseError(n))
			}
			e.Timestamp = time.Unix(0, int64(v))
			b = b[n:]
		case fieldAuditCorrelationID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed correlation_id: %w", protowire.ParseError(n))
			}
			e.CorrelationID = v
			b = b[n:]
		case fieldAuditType:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed type: %w", protowire.ParseError(n))
			}
			e.Type = v
			b = b[n:]
		case fieldAuditTenantID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed tenant_id: %w", protowire.ParseError(n))
			}
			e.TenantID = v
			b = b[n:]
		case fieldAuditActorID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed actor_id: %w", protowire.ParseError(n))
			}
			e.ActorID = v
			b = b[n:]
		case fieldAuditResource:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed resource: %w", protowire.ParseError(n))
			}
			e.Resource = v
			b = b[n:]
		case fieldAuditTargetID:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed target_id: %w", protowire.ParseError(n))
			}
			e.TargetID = v
			b = b[n:]
		case fieldAuditTargetName:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed target_name: %w", protowire.ParseError(n))
			}
			e.TargetName = v
			b = b[n:]
		case fieldAuditAttr:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed attr: %w", protowire.ParseError(n))
			}
			k, val, err := decodeAttr(v)
			if err != nil {
				return e, err
			}
			e.Attrs[k] = val
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return e, fmt.Errorf("eventpb: malformed field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return e, nil
}

func decodeAttr(b []byte) (key, value string, err error) {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return "", "", fmt.Errorf("eventpb: malformed attr tag: %w", protowire.ParseError(n))
		}
		b = b[n:]

		switch num {
		case fieldAttrKey:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", "", fmt.Errorf("eventpb: malformed attr key: %w", protowire.ParseError(n))
			}
			key = v
			b = b[n:]
		case fieldAttrValue:
			v, n := protowire.ConsumeString(b)
			if n < 0 {
				return "", "", fmt.Errorf("eventpb: malformed attr value: %w", protowire.ParseError(n))
			}
			value = v
			b = b[n:]
		default:
			n := protowire.ConsumeFieldValue(num, typ, b)
			if n < 0 {
				return "", "", fmt.Errorf("eventpb: malformed attr field %d: %w", num, protowire.ParseError(n))
			}
			b = b[n:]
		}
	}
	return key, value, nil
}
