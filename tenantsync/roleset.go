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

package tenantsync

import "strings"

// roleSpec describes one row of the default role set materialized for
// every new tenant (spec.md §4.4). Include, if non-empty, is the sole
// action allowlist for the role's scope; otherwise ExcludeExact and
// ExcludePrefix name the actions/prefixes withheld from "all".
type roleSpec struct {
	Name          string
	Priority      int
	Scope         []string
	Include       []string
	ExcludeExact  []string
	ExcludePrefix []string
}

func (s roleSpec) allows(action string) bool {
	if len(s.Include) > 0 {
		for _, a := range s.Include {
			if a == action {
				return true
			}
		}
		return false
	}
	for _, a := range s.ExcludeExact {
		if a == action {
			return false
		}
	}
	for _, prefix := range s.ExcludePrefix {
		if strings.HasPrefix(action, prefix) {
			return false
		}
	}
	return true
}

// defaultRoleSet returns the 13-row table of spec.md §4.4.
func defaultRoleSet() []roleSpec {
	return []roleSpec{
		{
			Name: "TENANT_ADMIN", Priority: 1000,
			Scope:        []string{"TENANT", "USER", "ROLE", "PERMISSION", "WORKSPACE", "AUDIT", "SYSTEM_CONFIG", "BILLING"},
			ExcludeExact: []string{"DELETE_TENANT"},
		},
		{
			Name: "DATA_STEWARD", Priority: 900,
			Scope:        []string{"DATASET", "DATA_CATALOG", "DATA_QUALITY", "DATA_LINEAGE", "METADATA", "DATA_INGESTION", "DATA_TRANSFORMATION"},
			ExcludeExact: []string{"DELETE_TENANT"},
		},
		{
			Name: "DATA_CONTRIBUTOR", Priority: 800,
			Scope:   []string{"DATA_INGESTION", "DATASET", "METADATA"},
			Include: []string{"CREATE", "UPDATE", "READ", "UPLOAD"},
		},
		{
			Name: "STATISTICIAN", Priority: 700,
			Scope:         []string{"STATISTICAL_ENGINE", "ML_PIPELINE", "ANALYSIS_TEMPLATE", "REPORT", "DATASET", "CUSTOM_METHODOLOGY"},
			ExcludeExact:  []string{"DELETE_TENANT"},
			ExcludePrefix: []string{"ADMIN_"},
		},
		{
			Name: "DATA_SCIENTIST", Priority: 650,
			Scope:   []string{"ML_PIPELINE", "STATISTICAL_ENGINE", "ANALYSIS_TEMPLATE", "DATASET", "MODEL_DEPLOYMENT"},
			Include: []string{"CREATE", "UPDATE", "READ", "EXECUTE", "DEPLOY"},
		},
		{
			Name: "ANALYST", Priority: 600,
			Scope:   []string{"ANALYSIS_TEMPLATE", "REPORT", "DATASET", "BASIC_STATISTICS"},
			Include: []string{"READ", "EXECUTE", "CREATE_REPORT"},
		},
		{
			Name: "PRIVACY_OFFICER", Priority: 850,
			Scope:        []string{"PRIVACY_SETTINGS", "AUDIT", "COMPLIANCE", "PII_MANAGEMENT", "ENCRYPTION", "DIFFERENTIAL_PRIVACY", "DISCLOSURE_RISK"},
			ExcludeExact: []string{"DELETE_TENANT"},
		},
		{
			Name: "WORKSPACE_ADMIN", Priority: 550,
			Scope:         []string{"WORKSPACE", "COLLABORATION", "DATA_SHARING_AGREEMENT", "WORKFLOW_APPROVAL"},
			ExcludePrefix: []string{"SYSTEM_"},
		},
		{
			Name: "EXTERNAL_COLLABORATOR", Priority: 500,
			Scope:   []string{"SHARED_WORKSPACE", "COLLABORATIVE_ANALYSIS", "SHARED_DATASET"},
			Include: []string{"READ", "COLLABORATE", "COMMENT"},
		},
		{
			Name: "DASHBOARD_CREATOR", Priority: 450,
			Scope:   []string{"DASHBOARD", "VISUALIZATION", "CHART_LIBRARY", "EXPORT"},
			Include: []string{"CREATE", "UPDATE", "READ", "PUBLISH", "EXPORT"},
		},
		{
			Name: "DATA_CONSUMER", Priority: 300,
			Scope:   []string{"DATASET", "REPORT", "PUBLISHED_ANALYSIS"},
			Include: []string{"READ", "VIEW"},
		},
		{
			Name: "REVIEWER", Priority: 250,
			Scope:   []string{"REPORT", "ANALYSIS_REVIEW", "PUBLICATION_APPROVAL"},
			Include: []string{"READ", "REVIEW", "APPROVE", "REJECT"},
		},
		{
			Name: "VIEWER", Priority: 100,
			Scope:   []string{"DASHBOARD", "VISUALIZATION", "PUBLIC_REPORT"},
			Include: []string{"READ", "VIEW"},
		},
	}
}
