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

package eventpb

import "testing"

func TestTenantCreatedRoundTrip(t *testing.T) {
	in := TenantCreated{
		Metadata: EventMetadata{CorrelationID: "corr-1", UserID: "user-1"},
		Tenant:   TenantRef{TenantID: "tenant-1", TenantCode: "acme"},
	}

	out, err := UnmarshalTenantCreated(in.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestTenantCreatedEmptyUserID(t *testing.T) {
	in := TenantCreated{Tenant: TenantRef{TenantID: "tenant-2"}}

	out, err := UnmarshalTenantCreated(in.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out.Metadata.UserID != "" {
		t.Errorf("expected empty user id, got %q", out.Metadata.UserID)
	}
	if out.Tenant.TenantID != "tenant-2" {
		t.Errorf("tenant id mismatch: got %q", out.Tenant.TenantID)
	}
}

func TestTenantDeactivatedRoundTrip(t *testing.T) {
	in := TenantDeactivated{
		Metadata: EventMetadata{CorrelationID: "corr-2"},
		TenantID: "tenant-3",
	}

	out, err := UnmarshalTenantDeactivated(in.Marshal())
	if err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if out != in {
		t.Errorf("round trip mismatch: got %+v, want %+v", out, in)
	}
}

func TestUnmarshalMalformed(t *testing.T) {
	_, err := UnmarshalTenantCreated([]byte{0xff, 0xff, 0xff})
	if err == nil {
		t.Error("expected error for malformed input, got nil")
	}
}
