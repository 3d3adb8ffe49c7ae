package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Campus API",
        "description": "Academic platform: grades, notifications, modules and enrollments",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Authentication", "description": "Login and session management"},
        {"name": "Grades", "description": "Grade submission, validation and consultation"},
        {"name": "Notifications", "description": "Per-user notification feed"},
        {"name": "Announcements", "description": "Module-scoped announcements"},
        {"name": "Materials", "description": "Course document uploads and downloads"},
        {"name": "Assignments", "description": "Homework and submissions"},
        {"name": "Students", "description": "Student roster management"},
        {"name": "Modules", "description": "Teaching unit management"},
        {"name": "Enrollments", "description": "Student-module registrations"},
        {"name": "Dashboard", "description": "Role-specific overviews"},
        {"name": "Exports", "description": "Grade sheets and transcripts"}
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
        "/auth/login": {
            "post": {
                "tags": ["Authentication"],
                "summary": "Authenticate user",
                "responses": {
                    "200": {"description": "Tokens issued"},
                    "401": {"description": "Invalid credentials"}
                }
            }
        },
        "/professor/grades": {
            "post": {
                "tags": ["Grades"],
                "summary": "Submit a grade",
                "responses": {
                    "201": {"description": "Grade stored"},
                    "403": {"description": "Not the module professor"},
                    "409": {"description": "Grade already validated"}
                }
            }
        },
        "/admin/grades/{id}/validate": {
            "patch": {
                "tags": ["Grades"],
                "summary": "Validate a grade",
                "responses": {
                    "200": {"description": "Grade published"},
                    "404": {"description": "Grade not found"},
                    "409": {"description": "Already validated"}
                }
            }
        },
        "/student/grades": {
            "get": {
                "tags": ["Grades"],
                "summary": "Published grades with averages",
                "responses": {
                    "200": {"description": "Grade report"}
                }
            }
        },
        "/notifications": {
            "get": {
                "tags": ["Notifications"],
                "summary": "List notifications",
                "responses": {
                    "200": {"description": "Notification list with unread count"}
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
                "status": {"type": "integer"}
            }
        },
        "ResponseEnvelope": {
            "type": "object",
            "properties": {
                "data": {"type": "object"},
                "error": {"$ref": "#/definitions/APIError"},
                "pagination": {"type": "object"},
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
