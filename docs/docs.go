// Package docs registers the OpenAPI document served at /swagger. It is
// maintained by hand and covers the main entry points of each resource; the
// handler godoc annotations remain the full reference.
package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "contact": {
            "name": "Aldo Rifki Putra",
            "email": "aldoetobex@gmail.com"
        },
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/signup": {
            "post": {
                "description": "Register a user. The very first account becomes admin; afterwards only an admin may add users.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Sign up",
                "parameters": [
                    {"description": "Signup payload", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/auth.SignupRequest"}}
                ],
                "responses": {
                    "201": {"description": "Session for the first account; the new user's profile when an admin adds one", "schema": {"$ref": "#/definitions/auth.AuthResponse"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ValidationErrorResponse"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "409": {"description": "email already exists", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/login": {
            "post": {
                "description": "Authenticate and receive a JWT",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["auth"],
                "summary": "Login",
                "parameters": [
                    {"description": "Login payload", "name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/auth.LoginRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/auth.AuthResponse"}},
                    "401": {"description": "Unauthorized", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/clients": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["clients"],
                "summary": "List clients",
                "parameters": [
                    {"type": "string", "description": "search name, phone, email, tax id", "name": "q", "in": "query"},
                    {"enum": ["all", "owes", "current"], "type": "string", "description": "debt facet", "name": "debt", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "pageSize", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["clients"],
                "summary": "Create client",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Client"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ValidationErrorResponse"}}
                }
            }
        },
        "/cases": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["cases"],
                "summary": "List cases",
                "parameters": [
                    {"type": "string", "name": "q", "in": "query"},
                    {"enum": ["Judicial", "ART", "Sucesion", "Administrativo", "Consulta"], "type": "string", "name": "category", "in": "query"},
                    {"type": "string", "name": "status", "in": "query"},
                    {"enum": ["Pagado", "Debe"], "type": "string", "name": "payment", "in": "query"},
                    {"type": "integer", "name": "page", "in": "query"},
                    {"type": "integer", "name": "pageSize", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "tags": ["cases"],
                "summary": "Create case",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/models.Case"}},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ValidationErrorResponse"}}
                }
            }
        },
        "/events": {
            "get": {
                "security": [{"BearerAuth": []}],
                "produces": ["application/json"],
                "tags": ["events"],
                "summary": "List events by date",
                "parameters": [
                    {"type": "string", "description": "inclusive lower bound", "name": "from", "in": "query"},
                    {"type": "string", "description": "inclusive upper bound", "name": "to", "in": "query"},
                    {"type": "string", "name": "q", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Bad Request", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/notifications": {
            "get": {
                "security": [{"BearerAuth": []}],
                "description": "Deadlines and events due within two days (by date) plus unfulfilled filings and tasks (by title)",
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Dashboard notifications",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.Feed"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        },
        "/notifications/dispatch": {
            "post": {
                "security": [{"BearerAuth": []}],
                "description": "Admin only. Runs the deadline check now and publishes each urgent entry; delivery is best effort.",
                "produces": ["application/json"],
                "tags": ["notifications"],
                "summary": "Publish urgent notifications",
                "parameters": [
                    {"type": "string", "description": "override topic", "name": "topic", "in": "query"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/notifications.DispatchResult"}},
                    "403": {"description": "Forbidden", "schema": {"$ref": "#/definitions/models.ErrorResponse"}},
                    "500": {"description": "Internal Server Error", "schema": {"$ref": "#/definitions/models.ErrorResponse"}}
                }
            }
        }
    },
    "definitions": {
        "auth.AuthResponse": {
            "type": "object",
            "properties": {
                "role": {"type": "string"},
                "token": {"type": "string"}
            }
        },
        "auth.LoginRequest": {
            "type": "object",
            "required": ["email", "password"],
            "properties": {
                "email": {"type": "string", "maxLength": 120},
                "password": {"type": "string"}
            }
        },
        "auth.SignupRequest": {
            "type": "object",
            "required": ["email", "name", "password"],
            "properties": {
                "email": {"type": "string", "maxLength": 120},
                "name": {"type": "string", "maxLength": 80, "minLength": 2},
                "password": {"type": "string", "maxLength": 72, "minLength": 8},
                "role": {"type": "string", "enum": ["admin", "staff"]}
            }
        },
        "models.Case": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "category": {"type": "string"},
                "name": {"type": "string"},
                "client_id": {"type": "string"},
                "client_name": {"type": "string"},
                "docket": {"type": "string"},
                "process_type": {"type": "string"},
                "status": {"type": "string"},
                "motive": {"type": "string"},
                "pathology": {"type": "string"},
                "payment_status": {"type": "string"}
            }
        },
        "models.Client": {
            "type": "object",
            "properties": {
                "id": {"type": "string"},
                "name": {"type": "string"},
                "phone": {"type": "string"},
                "email": {"type": "string"},
                "tax_id": {"type": "string"},
                "enrolled_at": {"type": "string"}
            }
        },
        "models.ErrorResponse": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "error": {"type": "boolean"},
                "message": {"type": "string"}
            }
        },
        "models.ValidationErrorResponse": {
            "type": "object",
            "properties": {
                "errors": {"type": "object", "additionalProperties": {"type": "array", "items": {"type": "string"}}},
                "message": {"type": "string"}
            }
        },
        "notifications.DispatchResult": {
            "type": "object",
            "properties": {
                "failed": {"type": "integer"},
                "published": {"type": "integer"}
            }
        },
        "notifications.Feed": {
            "type": "object",
            "properties": {
                "counts": {
                    "type": "object",
                    "properties": {
                        "critical": {"type": "integer"},
                        "normal": {"type": "integer"},
                        "pending": {"type": "integer"}
                    }
                },
                "pending": {"type": "array", "items": {"type": "object"}},
                "urgent": {"type": "array", "items": {"type": "object"}}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Format: Bearer <token>",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "",
	BasePath:         "/api",
	Schemes:          []string{"http"},
	Title:            "Legal Desk API",
	Description:      "Case management for a small legal practice: clients, cases with deadlines, filings and tasks, calendar events, payment tracking and deadline notifications.",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
