package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "FSM Visit API",
        "description": "Visit scheduling and allocation engine for fire-safety maintenance contracts",
        "version": "0.1.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Visits", "description": "Visit record lifecycle"},
        {"name": "Grid", "description": "Annual 52-week planning grid projections"},
        {"name": "Planner", "description": "Automatic annual visit distribution"},
        {"name": "Planboard", "description": "Interactive grid mutations"},
        {"name": "Exports", "description": "Asynchronous grid and compliance exports"}
    ],
    "paths": {
        "/health": {
            "get": {
                "summary": "Health check",
                "responses": {
                    "200": {"description": "OK"}
                }
            }
        },
        "/ready": {
            "get": {
                "summary": "Readiness check",
                "responses": {
                    "200": {"description": "Ready"},
                    "503": {"description": "Degraded"}
                }
            }
        },
        "/api/v1/visits": {
            "get": {
                "tags": ["Visits"],
                "summary": "List visits",
                "parameters": [
                    {"name": "branchId", "in": "query", "type": "string"},
                    {"name": "contractId", "in": "query", "type": "string"},
                    {"name": "companyId", "in": "query", "type": "string"},
                    {"name": "type", "in": "query", "type": "string"},
                    {"name": "status", "in": "query", "type": "string"},
                    {"name": "from", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "to", "in": "query", "type": "string", "format": "date-time"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "pageSize", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Visits"],
                "summary": "Create visit",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateVisitRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Capacity conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/visits/{id}": {
            "get": {
                "tags": ["Visits"],
                "summary": "Get visit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Visits"],
                "summary": "Update visit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateVisitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Visits"],
                "summary": "Delete or archive visit",
                "description": "Scheduled and rescheduled visits are removed, visits carrying field data are archived.",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "No Content"}
                }
            }
        },
        "/api/v1/visits/{id}/complete": {
            "post": {
                "tags": ["Visits"],
                "summary": "Complete visit with field results",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteVisitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Already closed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/visits/{id}/cancel": {
            "post": {
                "tags": ["Visits"],
                "summary": "Cancel visit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/visits/{id}/reschedule": {
            "post": {
                "tags": ["Visits"],
                "summary": "Reschedule visit",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RescheduleVisitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/branches/{id}/visits": {
            "get": {
                "tags": ["Visits"],
                "summary": "List visits for branch",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/grid/annual": {
            "get": {
                "tags": ["Grid"],
                "summary": "Project the annual visit matrix",
                "parameters": [
                    {"name": "year", "in": "query", "required": true, "type": "integer"},
                    {"name": "branchIds", "in": "query", "type": "string", "description": "Comma-separated branch IDs"},
                    {"name": "companyId", "in": "query", "type": "string"},
                    {"name": "weekStart", "in": "query", "type": "string", "enum": ["saturday", "sunday"]}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/grid/compliance": {
            "get": {
                "tags": ["Grid"],
                "summary": "Per-branch completion rates against contract quotas",
                "parameters": [
                    {"name": "year", "in": "query", "required": true, "type": "integer"},
                    {"name": "branchIds", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/planner/plan": {
            "post": {
                "tags": ["Planner"],
                "summary": "Distribute annual visits across branches",
                "description": "Placement conflicts and per-branch failures are reported in the result body, never as an HTTP error.",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanVisitsRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/planboard/toggle": {
            "post": {
                "tags": ["Planboard"],
                "summary": "Toggle a week cell between empty and planned",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ToggleCellRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Confirmation required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/planboard/visits/{id}/move": {
            "post": {
                "tags": ["Planboard"],
                "summary": "Move a visit to another week",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveVisitRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Capacity conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/planboard/plan-week": {
            "post": {
                "tags": ["Planboard"],
                "summary": "Fill empty cells of one week for many branches",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/PlanWeekRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/planboard/bulk-delete": {
            "post": {
                "tags": ["Planboard"],
                "summary": "Delete many visits at once",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/BulkDeleteRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Confirmation required", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue a grid or compliance export",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Accepted", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/jobs/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Get export job status",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/api/v1/exports/download/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export via signed token",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "400": {"description": "Invalid or expired token"},
                    "409": {"description": "Export not ready"}
                }
            }
        }
    },
    "definitions": {
        "Visit": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "branch_id": {"type": "string"},
                "contract_id": {"type": "string"},
                "type": {"type": "string", "enum": ["regular", "emergency"]},
                "status": {"type": "string", "enum": ["scheduled", "rescheduled", "in_progress", "completed", "cancelled"]},
                "scheduled_date": {"type": "string", "example": "14-Jul-2030"},
                "completed_date": {"type": "string"},
                "services": {"type": "object"},
                "visit_results": {"type": "object"},
                "notes": {"type": "string"},
                "created_by": {"type": "string"},
                "archived": {"type": "boolean"},
                "created_at": {"type": "string"},
                "updated_at": {"type": "string"}
            }
        },
        "CreateVisitRequest": {
            "type": "object",
            "properties": {
                "branchId": {"type": "string"},
                "contractId": {"type": "string"},
                "type": {"type": "string", "enum": ["regular", "emergency"]},
                "scheduledDate": {"type": "string", "example": "14-Jul-2030"},
                "notes": {"type": "string"}
            },
            "required": ["branchId", "contractId", "type", "scheduledDate"]
        },
        "UpdateVisitRequest": {
            "type": "object",
            "properties": {
                "scheduledDate": {"type": "string"},
                "notes": {"type": "string"}
            }
        },
        "CompleteVisitRequest": {
            "type": "object",
            "properties": {
                "completedDate": {"type": "string"},
                "results": {"type": "object"}
            }
        },
        "RescheduleVisitRequest": {
            "type": "object",
            "properties": {
                "newDate": {"type": "string", "example": "21-Jul-2030"},
                "reason": {"type": "string"}
            },
            "required": ["newDate"]
        },
        "PlanVisitsRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "branchIds": {"type": "array", "items": {"type": "string"}},
                "dryRun": {"type": "boolean"},
                "includeExistingVisits": {"type": "boolean"},
                "options": {"$ref": "#/definitions/PlanningOptions"}
            },
            "required": ["year", "branchIds"]
        },
        "PlanningOptions": {
            "type": "object",
            "properties": {
                "maxVisitsPerDay": {"type": "integer"},
                "minDaysBetweenVisits": {"type": "integer"},
                "preferredWeekStart": {"type": "string", "enum": ["saturday", "sunday"]},
                "conflictResolution": {"type": "string", "enum": ["reschedule", "skip", "error"]}
            }
        },
        "ToggleCellRequest": {
            "type": "object",
            "properties": {
                "branchId": {"type": "string"},
                "year": {"type": "integer"},
                "weekNumber": {"type": "integer"},
                "confirm": {"type": "boolean"}
            },
            "required": ["branchId", "year", "weekNumber"]
        },
        "MoveVisitRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "weekNumber": {"type": "integer"}
            },
            "required": ["year", "weekNumber"]
        },
        "PlanWeekRequest": {
            "type": "object",
            "properties": {
                "year": {"type": "integer"},
                "weekNumber": {"type": "integer"},
                "branchIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["year", "weekNumber", "branchIds"]
        },
        "BulkDeleteRequest": {
            "type": "object",
            "properties": {
                "visitIds": {"type": "array", "items": {"type": "string"}},
                "force": {"type": "boolean"}
            },
            "required": ["visitIds"]
        },
        "ExportRequest": {
            "type": "object",
            "properties": {
                "type": {"type": "string", "enum": ["annual_grid", "compliance"]},
                "format": {"type": "string", "enum": ["csv", "pdf"]},
                "year": {"type": "integer"},
                "branchIds": {"type": "array", "items": {"type": "string"}}
            },
            "required": ["type", "format", "year"]
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "page": {"type": "integer"},
                "page_size": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"$ref": "#/definitions/Pagination"},
                "meta": {"type": "object"}
            }
        }
    }
}`

type swaggerDoc struct{}

// ReadDoc returns the Swagger document.
func (s *swaggerDoc) ReadDoc() string {
	return docTemplate
}

func init() {
	swag.Register(swag.Name, &swaggerDoc{})
}
