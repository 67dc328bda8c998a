package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Forwarding Operations API",
        "description": "Back-office lifecycle manager for physical-mail forwarding requests",
        "version": "1.0.0"
    },
    "basePath": "/",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Forwarding", "description": "Forwarding request lifecycle"}
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
                    "200": {"description": "Ready"}
                }
            }
        },
        "/api/v1/forwarding-requests": {
            "get": {
                "tags": ["Forwarding"],
                "summary": "List forwarding requests",
                "parameters": [
                    {"name": "status", "in": "query", "type": "string", "description": "Comma separated statuses"},
                    {"name": "q", "in": "query", "type": "string", "description": "Search text"},
                    {"name": "limit", "in": "query", "type": "integer"},
                    {"name": "offset", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "Page of requests", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            },
            "post": {
                "tags": ["Forwarding"],
                "summary": "Register a forwarding request (intake)",
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/forwarding-requests/stats": {
            "get": {
                "tags": ["Forwarding"],
                "summary": "Queue breakdown by status",
                "responses": {
                    "200": {"description": "Counts", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/forwarding-requests/{id}": {
            "get": {
                "tags": ["Forwarding"],
                "summary": "Get a request with next-action hints",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Request detail", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found"}
                }
            }
        },
        "/api/v1/forwarding-requests/{id}/transitions": {
            "post": {
                "tags": ["Forwarding"],
                "summary": "Attempt a workflow transition",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "X-Operator-ID", "in": "header", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Updated request", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found"},
                    "409": {"description": "Version conflict"},
                    "422": {"description": "Invalid transition"},
                    "423": {"description": "Lock held by another operator"}
                }
            }
        },
        "/api/v1/forwarding-requests/{id}/release-lock": {
            "post": {
                "tags": ["Forwarding"],
                "summary": "Voluntarily release an edit lock",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true},
                    {"name": "X-Operator-ID", "in": "header", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Acknowledgement", "schema": {"$ref": "#/definitions/Envelope"}}
                }
            }
        },
        "/api/v1/forwarding-requests/{id}/manifest": {
            "get": {
                "tags": ["Forwarding"],
                "summary": "Download the dispatch manifest PDF",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "produces": ["application/pdf"],
                "responses": {
                    "200": {"description": "PDF document"},
                    "412": {"description": "Request not dispatched yet"}
                }
            }
        },
        "/api/v1/forwarding-requests/{id}/audit": {
            "get": {
                "tags": ["Forwarding"],
                "summary": "Transition history for a forwarding request",
                "parameters": [
                    {"name": "id", "in": "path", "type": "string", "required": true}
                ],
                "responses": {
                    "200": {"description": "Audit trail", "schema": {"$ref": "#/definitions/Envelope"}},
                    "404": {"description": "Not found"}
                }
            }
        }
    },
    "definitions": {
        "APIError": {
            "type": "object",
            "properties": {
                "code": {"type": "string"},
                "message": {"type": "string"},
                "status": {"type": "integer"},
                "details": {"type": "object"}
            }
        },
        "Pagination": {
            "type": "object",
            "properties": {
                "limit": {"type": "integer"},
                "offset": {"type": "integer"},
                "total_count": {"type": "integer"}
            }
        },
        "Envelope": {
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
