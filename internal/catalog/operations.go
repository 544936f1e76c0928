package catalog

import (
	"net/http"
	"sync"
)

// Operation names
const (
	DevicesAction       = "devices.action"
	DevicesGet          = "devices.get"
	DevicesQuery        = "devices.query"
	DevicesLoginHistory = "devices.login_history"
	DevicesOnlineState  = "devices.online_state"

	AlertsUpdate = "alerts.update"
	AlertsGet    = "alerts.get"

	IncidentsBehaviors = "incidents.behaviors"
	IncidentsGet       = "incidents.get"

	PreventionAction = "prevention.action"
	PreventionGet    = "prevention.get"
	PreventionCreate = "prevention.create"
	PreventionUpdate = "prevention.update"
	PreventionDelete = "prevention.delete"

	IOCsGet          = "iocs.get"
	IOCsCreate       = "iocs.create"
	IOCsUpdate       = "iocs.update"
	IOCsDelete       = "iocs.delete"
	IOCsQuery        = "iocs.query"
	IOCsActions      = "iocs.actions"
	IOCsActionsQuery = "iocs.actions_query"
	IOCsReport       = "iocs.report"
)

// Batch limits. Falcon documents some of these per endpoint; where it doesn't,
// the value keeps query strings well below common proxy URL limits.
const (
	maxQueryIDs      = 100
	maxDeviceActions = 100
	maxDeviceDetails = 5000
	maxLoginHistory  = 500
	maxAlerts        = 1000
	maxIncidents     = 500
	maxPolicies      = 100
	maxIndicators    = 200
)

// Operations returns the Falcon operations the connector uses
func Operations() []Operation {
	return []Operation{
		{
			Name:         DevicesAction,
			Method:       http.MethodPost,
			PathTemplate: "/devices/entities/devices-actions/v2",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxDeviceActions,
		},
		{
			Name:         DevicesGet,
			Method:       http.MethodPost,
			PathTemplate: "/devices/entities/devices/v2",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxDeviceDetails,
		},
		{
			Name:         DevicesQuery,
			Method:       http.MethodGet,
			PathTemplate: "/devices/queries/devices-scroll/v1",
			Pagination:   Pagination{Style: CursorPagination, CursorParam: "offset", PageSize: 5000},
		},
		{
			Name:         DevicesLoginHistory,
			Method:       http.MethodPost,
			PathTemplate: "/devices/entities/devices/login-history/v2",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxLoginHistory,
		},
		{
			Name:         DevicesOnlineState,
			Method:       http.MethodGet,
			PathTemplate: "/devices/entities/online-state/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         AlertsUpdate,
			Method:       http.MethodPatch,
			PathTemplate: "/alerts/entities/alerts/v3",
			IDs:          BodyIDs,
			IDKey:        "composite_ids",
			MaxBatch:     maxAlerts,
		},
		{
			Name:         AlertsGet,
			Method:       http.MethodPost,
			PathTemplate: "/alerts/entities/alerts/v2",
			IDs:          BodyIDs,
			IDKey:        "composite_ids",
			MaxBatch:     maxAlerts,
		},
		{
			Name:         IncidentsBehaviors,
			Method:       http.MethodPost,
			PathTemplate: "/incidents/entities/behaviors/GET/v1",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxIncidents,
		},
		{
			Name:         IncidentsGet,
			Method:       http.MethodPost,
			PathTemplate: "/incidents/entities/incidents/GET/v1",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxIncidents,
		},
		{
			Name:         PreventionAction,
			Method:       http.MethodPost,
			PathTemplate: "/policy/entities/prevention-actions/v1",
			IDs:          BodyIDs,
			IDKey:        "ids",
			MaxBatch:     maxPolicies,
		},
		{
			Name:         PreventionGet,
			Method:       http.MethodGet,
			PathTemplate: "/policy/entities/prevention/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         PreventionCreate,
			Method:       http.MethodPost,
			PathTemplate: "/policy/entities/prevention/v1",
			IDs:          BodyResources,
			IDKey:        "resources",
			MaxBatch:     maxPolicies,
		},
		{
			Name:         PreventionUpdate,
			Method:       http.MethodPatch,
			PathTemplate: "/policy/entities/prevention/v1",
			IDs:          BodyResources,
			IDKey:        "resources",
			MaxBatch:     maxPolicies,
		},
		{
			Name:         PreventionDelete,
			Method:       http.MethodDelete,
			PathTemplate: "/policy/entities/prevention/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         IOCsGet,
			Method:       http.MethodGet,
			PathTemplate: "/iocs/entities/indicators/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         IOCsCreate,
			Method:       http.MethodPost,
			PathTemplate: "/iocs/entities/indicators/v1",
			DefaultQuery: map[string][]string{"retrodetects": {"false"}, "ignore_warnings": {"true"}},
			IDs:          BodyResources,
			IDKey:        "indicators",
			MaxBatch:     maxIndicators,
		},
		{
			Name:         IOCsUpdate,
			Method:       http.MethodPatch,
			PathTemplate: "/iocs/entities/indicators/v1",
			DefaultQuery: map[string][]string{"retrodetects": {"false"}, "ignore_warnings": {"true"}},
			IDs:          BodyResources,
			IDKey:        "indicators",
			MaxBatch:     maxIndicators,
		},
		{
			Name:         IOCsDelete,
			Method:       http.MethodDelete,
			PathTemplate: "/iocs/entities/indicators/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         IOCsQuery,
			Method:       http.MethodGet,
			PathTemplate: "/iocs/queries/indicators/v1",
			Pagination:   Pagination{Style: CursorPagination, CursorParam: "after", PageSize: 2000},
		},
		{
			Name:         IOCsActions,
			Method:       http.MethodGet,
			PathTemplate: "/iocs/entities/actions/v1",
			IDs:          QueryIDs,
			IDKey:        "ids",
			MaxBatch:     maxQueryIDs,
		},
		{
			Name:         IOCsActionsQuery,
			Method:       http.MethodGet,
			PathTemplate: "/iocs/queries/actions/v1",
			Pagination:   Pagination{Style: OffsetPagination, CursorParam: "offset", PageSize: 100},
		},
		{
			Name:         IOCsReport,
			Method:       http.MethodPost,
			PathTemplate: "/iocs/entities/indicators-reports/v1",
		},
	}
}

var (
	defaultOnce    sync.Once
	defaultCatalog *Catalog
)

// Default returns the shared Falcon catalog
func Default() *Catalog {
	defaultOnce.Do(func() {
		c, err := New(Operations()...)
		if err != nil {
			panic(err)
		}
		defaultCatalog = c
	})
	return defaultCatalog
}
