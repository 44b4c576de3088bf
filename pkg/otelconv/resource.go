/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package otelconv

import (
	commonv1 "go.opentelemetry.io/proto/otlp/common/v1"
	resourcev1 "go.opentelemetry.io/proto/otlp/resource/v1"

	"github.com/carverauto/otelhub/pkg/models"
)

const (
	AttrServiceName       = "service.name"
	AttrServiceInstanceID = "service.instance.id"

	// UnknownServiceName is used when a resource does not carry service.name.
	UnknownServiceName = "unknown_service"
)

// ResolveResource extracts the resource identity. The instance id falls back
// to the service name so an instance-less service always maps to one key.
func ResolveResource(res *resourcev1.Resource, limits Limits) models.ResourceRecord {
	attrs := ConvertAttributes(res.GetAttributes(), limits)

	name, _ := models.AttributeValue(attrs, AttrServiceName)
	if name == "" {
		name = UnknownServiceName
	}

	instanceID, _ := models.AttributeValue(attrs, AttrServiceInstanceID)
	if instanceID == "" {
		instanceID = name
	}

	return models.ResourceRecord{
		Name:       name,
		InstanceID: instanceID,
		Attributes: attrs,
	}
}

// ConvertScope converts an instrumentation scope. A missing scope yields the zero Scope.
func ConvertScope(scope *commonv1.InstrumentationScope, limits Limits) models.Scope {
	if scope == nil {
		return models.Scope{}
	}

	return models.Scope{
		Name:       scope.GetName(),
		Version:    scope.GetVersion(),
		Attributes: ConvertAttributes(scope.GetAttributes(), limits),
	}
}
