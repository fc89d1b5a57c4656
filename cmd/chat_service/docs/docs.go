// Package docs swagger document of chat_service, regenerate with
// swag init -g internal/chat/api/router/router.go -o cmd/chat_service/docs
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
    "securityDefinitions": {
        "Bearer": {"type": "apiKey", "name": "Authorization", "in": "header"}
    },
    "security": [{"Bearer": []}],
    "paths": {
        "/": {
            "get": {
                "tags": ["Shared"],
                "summary": "Check chat service status",
                "responses": {"200": {"description": "chat service start!", "schema": {"type": "string"}}}
            }
        },
        "/debug": {
            "post": {
                "tags": ["Shared"],
                "summary": "Toggle Debug Log Flag",
                "parameters": [{"type": "boolean", "name": "status", "in": "query", "required": true}],
                "responses": {
                    "200": {"description": "debug mode updated", "schema": {"type": "string"}},
                    "400": {"description": "Invalid status value", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/create": {
            "post": {
                "tags": ["Chat"],
                "summary": "Create conversation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.CreateRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.CreateResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "429": {"description": "quota exceeded", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/join": {
            "post": {
                "tags": ["Chat"],
                "summary": "Join conversation",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ConversationRequest"}}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.JoinResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/leave": {
            "post": {
                "tags": ["Chat"],
                "summary": "Leave conversation",
                "consumes": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.ConversationRequest"}}],
                "responses": {
                    "204": {"description": "No Content"},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/chat/list": {
            "get": {
                "tags": ["Chat"],
                "summary": "List conversations",
                "produces": ["application/json"],
                "responses": {"200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ListResponse"}}}
            }
        },
        "/chat/export": {
            "get": {
                "tags": ["Chat"],
                "summary": "Export transcript",
                "produces": ["text/html"],
                "parameters": [{"type": "string", "name": "conversation_id", "in": "query", "required": true}],
                "responses": {
                    "200": {"description": "HTML document", "schema": {"type": "string"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/reports/submit": {
            "post": {
                "tags": ["Reports"],
                "summary": "Submit report",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [{"name": "request", "in": "body", "required": true, "schema": {"$ref": "#/definitions/handlers.SubmitRequest"}}],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/handlers.SubmitResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/reports": {
            "get": {
                "tags": ["Reports"],
                "summary": "List reports",
                "produces": ["application/json"],
                "parameters": [
                    {"type": "integer", "name": "limit", "in": "query"},
                    {"type": "integer", "name": "offset", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/handlers.ReportListResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/reports/{id}": {
            "get": {
                "tags": ["Reports"],
                "summary": "Get report",
                "produces": ["application/json"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/domain.Report"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        },
        "/reports/{id}/document": {
            "get": {
                "tags": ["Reports"],
                "summary": "Report transcript",
                "produces": ["text/html"],
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "HTML document", "schema": {"type": "string"}},
                    "404": {"description": "Not Found", "schema": {"$ref": "#/definitions/handlers.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "handlers.ErrorResponse": {
            "type": "object",
            "properties": {"error": {"type": "string"}, "code": {"type": "integer"}}
        },
        "handlers.CreateRequest": {
            "type": "object",
            "properties": {"participants": {"type": "array", "items": {"type": "string"}}}
        },
        "handlers.CreateResponse": {
            "type": "object",
            "properties": {"conversation_id": {"type": "string"}}
        },
        "handlers.ConversationRequest": {
            "type": "object",
            "properties": {"conversation_id": {"type": "string"}}
        },
        "handlers.JoinResponse": {
            "type": "object",
            "properties": {
                "conversation_id": {"type": "string"},
                "participants": {"type": "array", "items": {"type": "string"}},
                "presence": {"type": "object"}
            }
        },
        "handlers.ListResponse": {
            "type": "object",
            "properties": {"conversations": {"type": "array", "items": {"type": "object"}}}
        },
        "handlers.SubmitRequest": {
            "type": "object",
            "properties": {"conversation_id": {"type": "string"}, "reason": {"type": "string"}}
        },
        "handlers.SubmitResponse": {
            "type": "object",
            "properties": {"report_id": {"type": "string"}}
        },
        "handlers.ReportListResponse": {
            "type": "object",
            "properties": {"reports": {"type": "array", "items": {"$ref": "#/definitions/domain.Report"}}}
        },
        "domain.Report": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "conversation_id": {"type": "string"},
                "reporter_id": {"type": "string"},
                "reason": {"type": "string"},
                "document_key": {"type": "string"},
                "document_sha256": {"type": "string"},
                "created_at": {"type": "string"}
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8082",
	BasePath:         "/",
	Schemes:          []string{},
	Title:            "Marketplace Chat Service API",
	Description:      "Conversations, realtime presence and moderation reports",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
