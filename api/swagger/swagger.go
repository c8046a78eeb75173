package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Controller Earnings API",
        "description": "Monthly controller earnings, historical comparison and exports.",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Earnings", "description": "Per-controller monthly earnings"},
        {"name": "Exports", "description": "Asynchronous CSV/PDF earnings exports"},
        {"name": "Observability", "description": "Metrics snapshot"}
    ],
    "paths": {
        "/metrics/snapshot": {
            "get": {
                "tags": ["Observability"],
                "summary": "Counter snapshot",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/controllers": {
            "get": {
                "tags": ["Earnings"],
                "summary": "Controller earnings for a month",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "month", "in": "query", "type": "string", "description": "YYYY-MM, defaults to the current month"},
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "controllerId", "in": "query", "type": "string"},
                    {"name": "teamId", "in": "query", "type": "integer", "description": "Accepted, not applied"},
                    {"name": "refresh", "in": "query", "type": "boolean", "description": "Bypass the cache"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ControllerEarningsList"}},
                    "400": {"description": "Invalid query", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "500": {"description": "Calculation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/controllers/{controllerId}": {
            "get": {
                "tags": ["Earnings"],
                "summary": "Earnings of one controller",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "controllerId", "in": "path", "required": true, "type": "string"},
                    {"name": "month", "in": "query", "type": "string"},
                    {"name": "schoolId", "in": "query", "type": "string"},
                    {"name": "refresh", "in": "query", "type": "boolean"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Controller has no row for the month", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/config": {
            "get": {
                "tags": ["Earnings"],
                "summary": "Active earnings rate policy",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "schoolId", "in": "query", "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/cache": {
            "delete": {
                "tags": ["Earnings"],
                "summary": "Drop cached earnings",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "schoolId", "in": "query", "type": "string", "description": "Empty drops every school"},
                    {"name": "month", "in": "query", "type": "string", "description": "YYYY-MM, empty drops every month"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid month", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/exports": {
            "post": {
                "tags": ["Exports"],
                "summary": "Queue an earnings export",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {"name": "X-Requester-ID", "in": "header", "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EarningsExportRequest"}}
                ],
                "responses": {
                    "202": {"description": "Queued", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "400": {"description": "Invalid payload", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "503": {"description": "Queue full", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "get": {
                "tags": ["Exports"],
                "summary": "Recent exports of the requester",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "X-Requester-ID", "in": "header", "type": "string"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/earnings/exports/{id}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Export job status",
                "produces": ["application/json"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Unknown job", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/export/{token}": {
            "get": {
                "tags": ["Exports"],
                "summary": "Download a finished export",
                "produces": ["text/csv", "application/pdf"],
                "parameters": [
                    {"name": "token", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "File"},
                    "403": {"description": "Invalid, expired or mismatched token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "ControllerEarnings": {
            "type": "object",
            "properties": {
                "controllerId": {"type": "string"},
                "controllerName": {"type": "string"},
                "teamId": {"type": "integer"},
                "teamName": {"type": "string"},
                "yearMonth": {"type": "string"},
                "activeStudents": {"type": "integer"},
                "activePayingStudents": {"type": "integer"},
                "notYetStudents": {"type": "integer"},
                "leaveStudentsThisMonth": {"type": "integer"},
                "ramadanLeaveStudents": {"type": "integer"},
                "paidThisMonth": {"type": "integer"},
                "unpaidActiveThisMonth": {"type": "integer"},
                "referencedActiveStudents": {"type": "integer"},
                "linkedStudents": {"type": "integer"},
                "baseEarnings": {"type": "string", "format": "decimal"},
                "leavePenalty": {"type": "string", "format": "decimal"},
                "unpaidPenalty": {"type": "string", "format": "decimal"},
                "referencedBonus": {"type": "string", "format": "decimal"},
                "totalEarnings": {"type": "string", "format": "decimal"},
                "targetEarnings": {"type": "string", "format": "decimal"},
                "achievementPercentage": {"type": "string", "format": "decimal"},
                "growthRate": {"type": "string", "format": "decimal"},
                "previousMonthEarnings": {"type": "string", "format": "decimal"},
                "yearToDateEarnings": {"type": "string", "format": "decimal"}
            }
        },
        "ControllerEarningsList": {
            "type": "object",
            "properties": {
                "data": {"type": "array", "items": {"$ref": "#/definitions/ControllerEarnings"}},
                "meta": {"type": "object"}
            }
        },
        "EarningsExportRequest": {
            "type": "object",
            "required": ["month", "format"],
            "properties": {
                "month": {"type": "string", "example": "2024-05"},
                "schoolId": {"type": "string"},
                "controllerId": {"type": "string"},
                "format": {"type": "string", "enum": ["csv", "pdf"]}
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
