// Package docs registers the OpenAPI document served under /swagger.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {},
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {"tags": ["system"], "summary": "Health check", "produces": ["application/json"], "responses": {"200": {"description": "OK"}}}
        },
        "/auth/sign-up": {
            "post": {"tags": ["auth"], "summary": "Sign up", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "OK"}, "400": {"description": "Bad Request"}, "409": {"description": "Conflict"}}}
        },
        "/auth/sign-in": {
            "post": {"tags": ["auth"], "summary": "Sign in", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.authCredentials"}}],
                "responses": {"200": {"description": "OK"}, "401": {"description": "Unauthorized"}}}
        },
        "/api/v1/zones": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["zones"], "summary": "List zones", "produces": ["application/json"],
                "responses": {"200": {"description": "zones, active_count"}}}
        },
        "/api/v1/zones/{id}/start": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["zones"], "summary": "Start zone", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "description": "Zone id", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.StartZoneRequest"}}
                ],
                "responses": {"200": {"description": "status, zones"}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "409": {"description": "program running or zone limit reached"}, "502": {"description": "relay failure"}}}
        },
        "/api/v1/zones/{id}/stop": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["zones"], "summary": "Stop zone", "produces": ["application/json"],
                "parameters": [{"type": "integer", "description": "Zone id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "status, zones"}, "404": {"description": "Not Found"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/zones/stop-all": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["zones"], "summary": "Stop all zones", "produces": ["application/json"],
                "responses": {"200": {"description": "status, zones"}, "502": {"description": "Bad Gateway"}}}
        },
        "/api/v1/programs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "List programs", "produces": ["application/json"],
                "responses": {"200": {"description": "count, programs"}}},
            "post": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Create program", "description": "Months must not overlap with any other program.",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ProgramRequest"}}],
                "responses": {"201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Program"}}, "400": {"description": "Bad Request"}, "409": {"description": "month conflict"}}}
        },
        "/api/v1/programs/state": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Execution state", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.ExecutionState"}}}}
        },
        "/api/v1/programs/stop": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Stop running program", "produces": ["application/json"],
                "responses": {"200": {"description": "status, state"}, "409": {"description": "nothing running"}}}
        },
        "/api/v1/programs/{id}": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Get program", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Program id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Program"}}, "404": {"description": "Not Found"}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Update program", "description": "A running program is stopped before it is replaced.",
                "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Program id", "name": "id", "in": "path", "required": true},
                    {"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ProgramRequest"}}
                ],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Program"}}, "400": {"description": "Bad Request"}, "404": {"description": "Not Found"}, "409": {"description": "month conflict"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Delete program", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Program id", "name": "id", "in": "path", "required": true}],
                "responses": {"200": {"description": "OK"}, "404": {"description": "Not Found"}}}
        },
        "/api/v1/programs/{id}/run": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["programs"], "summary": "Run program now", "produces": ["application/json"],
                "parameters": [{"type": "string", "description": "Program id", "name": "id", "in": "path", "required": true}],
                "responses": {"202": {"description": "status, state"}, "404": {"description": "Not Found"}, "409": {"description": "another program is running"}}}
        },
        "/api/v1/settings": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Get settings", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Settings"}}}},
            "put": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Replace settings", "consumes": ["application/json"], "produces": ["application/json"],
                "parameters": [{"in": "body", "name": "body", "required": true, "schema": {"$ref": "#/definitions/models.Settings"}}],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Settings"}}, "400": {"description": "Bad Request"}}}
        },
        "/api/v1/settings/factory-reset": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Restore factory settings", "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/models.Settings"}}}}
        },
        "/api/v1/settings/reset-all": {
            "post": {"security": [{"BearerAuth": []}], "tags": ["settings"], "summary": "Reset all data", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        },
        "/api/v1/logs": {
            "get": {"security": [{"BearerAuth": []}], "tags": ["logs"], "summary": "List logs", "produces": ["application/json"],
                "parameters": [
                    {"type": "string", "description": "Start of range", "name": "from", "in": "query"},
                    {"type": "string", "description": "End of range", "name": "to", "in": "query"},
                    {"enum": ["INFO", "WARNING", "ERROR"], "type": "string", "description": "Event level", "name": "level", "in": "query"}
                ],
                "responses": {"200": {"description": "count, events"}, "400": {"description": "Bad Request"}}},
            "delete": {"security": [{"BearerAuth": []}], "tags": ["logs"], "summary": "Clear logs", "produces": ["application/json"],
                "responses": {"200": {"description": "OK"}}}
        }
    },
    "definitions": {
        "handlers.authCredentials": {
            "type": "object",
            "required": ["password", "username"],
            "properties": {"password": {"type": "string"}, "username": {"type": "string"}}
        },
        "handlers.StartZoneRequest": {
            "type": "object",
            "required": ["duration_minutes"],
            "properties": {"duration_minutes": {"type": "integer", "example": 15}}
        },
        "handlers.ProgramRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string", "example": "Lawn"},
                "months": {"type": "array", "items": {"type": "integer"}, "example": [5, 6, 7, 8]},
                "activation_time": {"type": "string", "example": "06:00"},
                "recurrence": {"type": "string", "example": "every_other_day"},
                "interval_days": {"type": "integer", "example": 3},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/models.Step"}}
            }
        },
        "models.Step": {
            "type": "object",
            "properties": {"zone_id": {"type": "integer"}, "duration_minutes": {"type": "integer"}}
        },
        "models.Program": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "months": {"type": "array", "items": {"type": "integer"}},
                "activation_time": {"type": "string"},
                "recurrence": {"type": "string"},
                "interval_days": {"type": "integer"},
                "steps": {"type": "array", "items": {"$ref": "#/definitions/models.Step"}},
                "last_run_date": {"type": "string"}
            }
        },
        "models.ExecutionState": {
            "type": "object",
            "properties": {"running": {"type": "boolean"}, "current_program_id": {"type": "string"}}
        },
        "models.ZoneConfig": {
            "type": "object",
            "properties": {"id": {"type": "integer"}, "pin": {"type": "integer"}, "name": {"type": "string"}, "visible": {"type": "boolean"}}
        },
        "models.Settings": {
            "type": "object",
            "properties": {
                "zones": {"type": "array", "items": {"$ref": "#/definitions/models.ZoneConfig"}},
                "max_active_zones": {"type": "integer"},
                "activation_delay": {"type": "integer"},
                "safety_relay_pin": {"type": "integer"},
                "automatic_programs_enabled": {"type": "boolean"},
                "max_zone_duration": {"type": "integer"}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {"type": "apiKey", "name": "Authorization", "in": "header"}
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Irrigation Controller API",
	Description:      "Manual zone control, scheduled watering programs and the event log.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
