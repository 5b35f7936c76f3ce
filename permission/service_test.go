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

package permission

import (
	"context"
	"errors"
	"testing"
)

type mockPermRepo struct {
	byID          map[string]*Permission
	resourceTypes []string
	actions       []string
	enumCalls     int
}

func newMockPermRepo() *mockPermRepo {
	return &mockPermRepo{byID: map[string]*Permission{}}
}

func (m *mockPermRepo) Create(ctx context.Context, p *Permission) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockPermRepo) GetByID(ctx context.Context, id string) (*Permission, error) {
	p, ok := m.byID[id]
	if !ok {
		return nil, ErrNotFound
	}
	return p, nil
}

func (m *mockPermRepo) GetByResourceAction(ctx context.Context, resourceType, action string) (*Permission, error) {
	for _, p := range m.byID {
		if p.ResourceType == resourceType && p.Action == action {
			return p, nil
		}
	}
	return nil, ErrNotFound
}

func (m *mockPermRepo) List(ctx context.Context, filter Filter) ([]*Permission, error) { return nil, nil }

func (m *mockPermRepo) Update(ctx context.Context, p *Permission) error {
	m.byID[p.ID] = p
	return nil
}

func (m *mockPermRepo) Delete(ctx context.Context, id string) error {
	delete(m.byID, id)
	return nil
}

func (m *mockPermRepo) DistinctResourceTypes(ctx context.Context) ([]string, error) {
	m.enumCalls++
	return m.resourceTypes, nil
}

func (m *mockPermRepo) DistinctActions(ctx context.Context) ([]string, error) {
	m.enumCalls++
	return m.actions, nil
}

func TestServiceCreateRejectsDuplicate(t *testing.T) {
	repo := newMockPermRepo()
	s := NewService(repo)

	req := CreateRequest{ResourceType: "DATASET", Action: "READ"}
	if _, err := s.Create(context.Background(), req); err != nil {
		t.Fatalf("first Create() error = %v", err)
	}
	if _, err := s.Create(context.Background(), req); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("second Create() error = %v, want ErrAlreadyExists", err)
	}
}

func TestResourceTypesIsCached(t *testing.T) {
	repo := newMockPermRepo()
	repo.resourceTypes = []string{"DATASET"}
	s := NewService(repo)

	for i := 0; i < 3; i++ {
		types, err := s.ResourceTypes(context.Background())
		if err != nil {
			t.Fatalf("ResourceTypes() error = %v", err)
		}
		if len(types) != 1 || types[0] != "DATASET" {
			t.Fatalf("ResourceTypes() = %v, want [DATASET]", types)
		}
	}
	if repo.enumCalls != 1 {
		t.Errorf("repo.DistinctResourceTypes called %d times, want 1 (cached)", repo.enumCalls)
	}
}

func TestResourceTypesCacheInvalidatedOnCreate(t *testing.T) {
	repo := newMockPermRepo()
	repo.resourceTypes = []string{"DATASET"}
	s := NewService(repo)

	if _, err := s.ResourceTypes(context.Background()); err != nil {
		t.Fatalf("ResourceTypes() error = %v", err)
	}
	if repo.enumCalls != 1 {
		t.Fatalf("repo.DistinctResourceTypes called %d times, want 1", repo.enumCalls)
	}

	if _, err := s.Create(context.Background(), CreateRequest{ResourceType: "REPORT", Action: "READ"}); err != nil {
		t.Fatalf("Create() error = %v", err)
	}

	repo.resourceTypes = []string{"DATASET", "REPORT"}
	types, err := s.ResourceTypes(context.Background())
	if err != nil {
		t.Fatalf("ResourceTypes() error = %v", err)
	}
	if len(types) != 2 {
		t.Fatalf("ResourceTypes() after Create = %v, want the refreshed set", types)
	}
	if repo.enumCalls != 2 {
		t.Errorf("repo.DistinctResourceTypes called %d times, want 2 (refreshed after Create)", repo.enumCalls)
	}
}

func TestActionsIsCached(t *testing.T) {
	repo := newMockPermRepo()
	repo.actions = []string{"READ", "WRITE"}
	s := NewService(repo)

	for i := 0; i < 3; i++ {
		if _, err := s.Actions(context.Background()); err != nil {
			t.Fatalf("Actions() error = %v", err)
		}
	}
	if repo.enumCalls != 1 {
		t.Errorf("repo.DistinctActions called %d times, want 1 (cached)", repo.enumCalls)
	}
}
