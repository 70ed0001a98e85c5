// Package docs holds the Swagger document served at /swagger/*any.
// Regenerate with `swag init -g cmd/main.go` after changing annotations.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "API Support",
            "url": "https://github.com/guttosm/tradeexport"
        },
        "license": {
            "name": "MIT",
            "url": "https://opensource.org/licenses/MIT"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/api/v1/trades/export": {
            "get": {
                "description": "Streams TradeHistories rows matching the filter as JSON Lines or CSV",
                "produces": ["application/x-ndjson", "text/csv"],
                "tags": ["trades"],
                "summary": "Export trade history",
                "parameters": [
                    {"enum": ["jsonl", "csv"], "type": "string", "default": "jsonl", "description": "Output format", "name": "format", "in": "query"},
                    {"type": "integer", "example": 111, "description": "Trade account id", "name": "account_id", "in": "query"},
                    {"type": "integer", "example": 3599795, "description": "Ticket", "name": "ticket", "in": "query"},
                    {"type": "string", "example": "EURUSD", "description": "Symbol name", "name": "symbol", "in": "query"},
                    {"type": "string", "example": "2023-02-09T00:00:00Z", "description": "OpenTime >= (ISO-8601 UTC, Z)", "name": "opened_from", "in": "query"},
                    {"type": "string", "example": "2023-02-10T00:00:00Z", "description": "OpenTime < (ISO-8601 UTC, Z)", "name": "opened_to", "in": "query"},
                    {"type": "string", "description": "CloseTime >= (ISO-8601 UTC, Z)", "name": "closed_from", "in": "query"},
                    {"type": "string", "description": "CloseTime < (ISO-8601 UTC, Z)", "name": "closed_to", "in": "query"},
                    {"type": "string", "example": "hedge", "description": "Comment contains", "name": "comment_like", "in": "query"},
                    {"type": "integer", "default": 100, "description": "Max rows (1-10000)", "name": "limit", "in": "query"},
                    {"type": "integer", "default": 0, "description": "Rows to skip", "name": "offset", "in": "query"},
                    {"enum": ["ID", "OpenTime", "CloseTime", "TimeStamp", "Ticket"], "type": "string", "default": "OpenTime", "description": "Sort column", "name": "order_by", "in": "query"},
                    {"enum": ["ASC", "DESC"], "type": "string", "default": "ASC", "description": "Sort direction", "name": "order_dir", "in": "query"},
                    {"type": "boolean", "description": "Exclude rows with Magic = 0", "name": "drop_zero_magic", "in": "query"},
                    {"type": "boolean", "description": "Exclude cancelled rows", "name": "drop_cancelled", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "One record per line", "schema": {"type": "string"}},
                    "400": {"description": "Invalid filter", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "422": {"description": "Row mapping error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "500": {"description": "Internal Error", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}},
                    "503": {"description": "Database unavailable", "schema": {"$ref": "#/definitions/dto.ErrorResponse"}}
                }
            }
        },
        "/healthz": {
            "get": {
                "description": "Always returns OK if the service is running",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Liveness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        },
        "/readyz": {
            "get": {
                "description": "Returns ready if the trade history database is reachable",
                "produces": ["application/json"],
                "tags": ["health"],
                "summary": "Readiness probe",
                "responses": {
                    "200": {"description": "OK", "schema": {"type": "object", "additionalProperties": {"type": "string"}}},
                    "503": {"description": "Service Unavailable", "schema": {"type": "object", "additionalProperties": {"type": "string"}}}
                }
            }
        }
    },
    "definitions": {
        "dto.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string", "example": "invalid_filter"},
                "error_details": {"type": "string", "example": "invalid filter limit: must be between 1 and 10000"},
                "message": {"type": "string", "example": "invalid filter"},
                "timestamp": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "tradeexport API",
	Description:      "Trade history export service (JSON Lines and CSV).",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
