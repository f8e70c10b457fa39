package docs

import "github.com/swaggo/swag"

const docTemplate = `{
    "schemes": {{ marshal .Schemes }},
    "swagger": "2.0",
    "info": {
        "description": "{{escape .Description}}",
        "title": "{{.Title}}",
        "version": "{{.Version}}"
    },
    "host": "{{.Host}}",
    "basePath": "{{.BasePath}}",
    "paths": {
        "/health": {
            "get": {
                "tags": ["health"],
                "summary": "Health check",
                "responses": {
                    "200": {"description": "Node is up"}
                }
            }
        },
        "/push": {
            "post": {
                "tags": ["push"],
                "summary": "Send a push notification",
                "description": "Target every device tagged with a role (to) or one registered identity (externalId); externalId wins when both are set. scheduleAt defers delivery.",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ports.PushRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "Provider response", "schema": {"$ref": "#/definitions/ports.PushResponse"}},
                    "400": {"description": "Target missing or invalid field", "schema": {"$ref": "#/definitions/ports.PushResponse"}},
                    "500": {"description": "Provider failure or push not configured", "schema": {"$ref": "#/definitions/ports.PushResponse"}}
                }
            }
        },
        "/api/v1/session": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["session"],
                "summary": "Current session",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entities.Session"}},
                    "401": {"description": "Session expired"}
                }
            },
            "post": {
                "tags": ["session"],
                "summary": "Log in as a family role",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ports.LoginRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ports.AuthResponse"}},
                    "400": {"description": "Validation failed"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["session"],
                "summary": "Log out",
                "responses": {
                    "200": {"description": "Logged out"}
                }
            }
        },
        "/api/v1/profiles": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["settings"],
                "summary": "Family profiles",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Profiles keyed by role"}
                }
            }
        },
        "/api/v1/settings": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["settings"],
                "summary": "Reminder settings",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entities.Settings"}}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["settings"],
                "summary": "Change the reminder lead time",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ports.UpdateSettingsRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/entities.Settings"}},
                    "403": {"description": "Mother only"}
                }
            }
        },
        "/api/v1/mail-log": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["settings"],
                "summary": "Notification log",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Newest first"}
                }
            }
        },
        "/api/v1/tasks": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Task board",
                "produces": ["application/json"],
                "responses": {
                    "200": {"description": "Pending and done tasks"}
                }
            },
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Create a task",
                "consumes": ["application/json"],
                "produces": ["application/json"],
                "parameters": [
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ports.CreateTaskRequest"}
                    }
                ],
                "responses": {
                    "201": {"description": "Created"},
                    "400": {"description": "Validation failed"},
                    "403": {"description": "Mother only"}
                }
            }
        },
        "/api/v1/tasks/{id}": {
            "get": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Get one task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "404": {"description": "Task not found"}
                }
            },
            "put": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Edit a task",
                "parameters": [
                    {"type": "string", "name": "id", "in": "path", "required": true},
                    {
                        "in": "body",
                        "name": "request",
                        "required": true,
                        "schema": {"$ref": "#/definitions/ports.CreateTaskRequest"}
                    }
                ],
                "responses": {
                    "200": {"description": "OK"},
                    "400": {"description": "Validation failed"},
                    "403": {"description": "Mother only"},
                    "404": {"description": "Task not found"}
                }
            },
            "delete": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Delete a task",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "204": {"description": "Deleted"},
                    "403": {"description": "Mother only"},
                    "404": {"description": "Task not found"}
                }
            }
        },
        "/api/v1/tasks/{id}/toggle": {
            "post": {
                "security": [{"BearerAuth": []}],
                "tags": ["tasks"],
                "summary": "Toggle a task between pending and done",
                "parameters": [{"type": "string", "name": "id", "in": "path", "required": true}],
                "responses": {
                    "200": {"description": "OK"},
                    "403": {"description": "Assignee only"},
                    "404": {"description": "Task not found"}
                }
            }
        }
    },
    "definitions": {
        "entities.Session": {
            "type": "object",
            "properties": {
                "role": {"type": "string", "enum": ["mother", "father", "son"]},
                "expiresAt": {"type": "integer"}
            }
        },
        "entities.Settings": {
            "type": "object",
            "properties": {
                "warn_minutes": {"type": "integer", "minimum": 1, "maximum": 1440}
            }
        },
        "ports.LoginRequest": {
            "type": "object",
            "required": ["role"],
            "properties": {
                "role": {"type": "string", "enum": ["mother", "father", "son"]},
                "name": {"type": "string"},
                "email": {"type": "string"}
            }
        },
        "ports.AuthResponse": {
            "type": "object",
            "properties": {
                "token": {"type": "string"},
                "role": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "ports.UpdateSettingsRequest": {
            "type": "object",
            "properties": {
                "warn_minutes": {"type": "integer"}
            }
        },
        "ports.CreateTaskRequest": {
            "type": "object",
            "required": ["assignee"],
            "properties": {
                "title": {"type": "string"},
                "notes": {"type": "string"},
                "assignee": {"type": "string", "enum": ["father", "son"]},
                "duration_hours": {"type": "number", "default": 3}
            }
        },
        "ports.PushRequest": {
            "type": "object",
            "properties": {
                "to": {"type": "string", "enum": ["mother", "father", "son"]},
                "externalId": {"type": "string"},
                "title": {"type": "string"},
                "body": {"type": "string"},
                "scheduleAt": {"type": "string", "format": "date-time"}
            }
        },
        "ports.PushResponse": {
            "type": "object",
            "properties": {
                "ok": {"type": "boolean"},
                "data": {"type": "object"},
                "error": {}
            }
        }
    },
    "securityDefinitions": {
        "BearerAuth": {
            "description": "Type \"Bearer\" followed by a space and the session token.",
            "type": "apiKey",
            "name": "Authorization",
            "in": "header"
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:8080",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "FamilyBoard API",
	Description:      "Family task board node: tasks, reminders, completion notices and the push relay",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
