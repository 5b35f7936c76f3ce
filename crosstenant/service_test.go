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

package crosstenant

import (
	"context"
	"testing"
	"time"

	"github.com/authzcore/authzcore/cache"
	"github.com/authzcore/authzcore/events"
)

type mockRepo struct {
	byID   map[string]*Access
	active map[string]*Access // keyed by source+":"+target+":"+resourceType
}

func newMockRepo() *mockRepo {
	return &mockRepo{byID: map[string]*Access{}, active: map[string]*Access{}}
}

func (m *mockRepo) Create(ctx context.Context, a *Access) error {
	m.byID[a.ID] = a
	m.active[a.SourceTenant+":"+a.TargetTenant+":"+a.ResourceType] = a
	return nil
}

func (m *mockRepo) GetByID(ctx context.Context, id string) (*Access, error) {
	a, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) FindActive(ctx context.Context, sourceTenant, targetTenant, resourceType string) (*Access, error) {
	a, ok := m.active[sourceTenant+":"+targetTenant+":"+resourceType]
	if !ok || !a.IsActive {
		return nil, ErrNotFound
	}
	return a, nil
}

func (m *mockRepo) ListBySource(ctx context.Context, sourceTenant string) ([]*Access, error) {
	var out []*Access
	for _, a := range m.byID {
		if a.SourceTenant == sourceTenant {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) ListByTarget(ctx context.Context, targetTenant string) ([]*Access, error) {
	var out []*Access
	for _, a := range m.byID {
		if a.TargetTenant == targetTenant {
			out = append(out, a)
		}
	}
	return out, nil
}

func (m *mockRepo) Update(ctx context.Context, a *Access) error {
	m.byID[a.ID] = a
	return nil
}

func newTestService() (*Service, *mockRepo) {
	repo := newMockRepo()
	return NewService(repo, cache.NewMemoryCache(), events.NoopPublisher{}), repo
}

func TestGrantRejectsSameTenant(t *testing.T) {
	s, _ := newTestService()
	_, err := s.Grant(context.Background(), GrantRequest{SourceTenant: "t1", TargetTenant: "t1", ResourceType: "DATASET", Permissions: []string{"READ"}, GrantedBy: "admin"})
	if err != ErrSameTenant {
		t.Errorf("expected ErrSameTenant, got %v", err)
	}
}

func TestGrantRejectsEmptyPermissions(t *testing.T) {
	s, _ := newTestService()
	_, err := s.Grant(context.Background(), GrantRequest{SourceTenant: "t1", TargetTenant: "t2", ResourceType: "DATASET", GrantedBy: "admin"})
	if err == nil {
		t.Fatal("expected error for empty permissions")
	}
}

func TestGrantRejectsDuplicateActive(t *testing.T) {
	s, _ := newTestService()
	req := GrantRequest{SourceTenant: "t1", TargetTenant: "t2", ResourceType: "DATASET", Permissions: []string{"READ"}, GrantedBy: "admin"}
	if _, err := s.Grant(context.Background(), req); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := s.Grant(context.Background(), req); err != ErrAlreadyExists {
		t.Errorf("expected ErrAlreadyExists, got %v", err)
	}
}

func TestGrantRevokeAndCheck(t *testing.T) {
	s, _ := newTestService()
	a, err := s.Grant(context.Background(), GrantRequest{
		SourceTenant: "t1", TargetTenant: "t2", ResourceType: "DATASET",
		Permissions: []string{"READ", "VIEW"}, GrantedBy: "admin",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ok, err := s.Check(context.Background(), "t1", "t2", "DATASET", "READ")
	if err != nil || !ok {
		t.Fatalf("expected Check to allow READ, got ok=%v err=%v", ok, err)
	}

	ok, err = s.Check(context.Background(), "t1", "t2", "DATASET", "DELETE")
	if err != nil || ok {
		t.Fatalf("expected Check to deny DELETE, got ok=%v err=%v", ok, err)
	}

	if err := s.Revoke(context.Background(), a.ID, "admin"); err != nil {
		t.Fatalf("unexpected error revoking: %v", err)
	}

	ok, err = s.Check(context.Background(), "t1", "t2", "DATASET", "READ")
	if err != nil || ok {
		t.Fatalf("expected Check to deny after revoke, got ok=%v err=%v", ok, err)
	}
}

func TestGrantExpiry(t *testing.T) {
	s, _ := newTestService()
	past := time.Now().Add(-time.Hour)
	a, err := s.Grant(context.Background(), GrantRequest{
		SourceTenant: "t1", TargetTenant: "t2", ResourceType: "DATASET",
		Permissions: []string{"READ"}, GrantedBy: "admin", ExpiresAt: &past,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if a.Active(time.Now()) {
		t.Error("expected grant with past expiry to be inactive")
	}

	ok, err := s.Check(context.Background(), "t1", "t2", "DATASET", "READ")
	if err != nil || ok {
		t.Fatalf("expected Check to deny expired grant, got ok=%v err=%v", ok, err)
	}
}
