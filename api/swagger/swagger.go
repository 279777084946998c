package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "DriveHub API",
        "description": "Multi-tenant file storage and sharing backend",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http",
        "https"
    ],
    "tags": [
        {"name": "Folders", "description": "Folder tree management"},
        {"name": "Files", "description": "File upload, metadata and download"},
        {"name": "Shares", "description": "Owner-facing share links"},
        {"name": "Public", "description": "Anonymous share-link access"},
        {"name": "Collaborators", "description": "Role grants on files and folders"},
        {"name": "Trash", "description": "Soft-delete lifecycle"},
        {"name": "Dashboard", "description": "Usage stats"}
    ],
    "paths": {
        "/folders": {
            "get": {
                "tags": ["Folders"],
                "summary": "List root folders and files",
                "parameters": [
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Folders"],
                "summary": "Create folder",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateFolderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate name", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/folders/{id}": {
            "get": {
                "tags": ["Folders"],
                "summary": "Get folder contents with breadcrumbs",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "search", "in": "query", "type": "string"},
                    {"name": "page", "in": "query", "type": "integer"},
                    {"name": "limit", "in": "query", "type": "integer"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Folders"],
                "summary": "Move folder to trash",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Trashed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/folders/{id}/rename": {
            "patch": {
                "tags": ["Folders"],
                "summary": "Rename folder",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/RenameFolderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Duplicate name", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/folders/{id}/move": {
            "patch": {
                "tags": ["Folders"],
                "summary": "Move folder",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveFolderRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Cycle or duplicate name", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files": {
            "post": {
                "tags": ["Files"],
                "summary": "Upload a file",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "file", "in": "formData", "required": true, "type": "file"},
                    {"name": "folder_id", "in": "formData", "type": "string"},
                    {"name": "description", "in": "formData", "type": "string"},
                    {"name": "tags", "in": "formData", "type": "string"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}": {
            "get": {
                "tags": ["Files"],
                "summary": "Get file metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "patch": {
                "tags": ["Files"],
                "summary": "Update file metadata",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateFileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Files"],
                "summary": "Move file to trash",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Trashed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}/move": {
            "patch": {
                "tags": ["Files"],
                "summary": "Move file",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/MoveFileRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/files/{id}/download": {
            "get": {
                "tags": ["Files"],
                "summary": "Get a presigned download URL",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shares": {
            "get": {
                "tags": ["Shares"],
                "summary": "List my share links",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Shares"],
                "summary": "Create share link",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateShareRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/shares/{id}": {
            "patch": {
                "tags": ["Shares"],
                "summary": "Update share link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/UpdateShareRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Shares"],
                "summary": "Delete share link",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"}
                }
            }
        },
        "/collaborators": {
            "get": {
                "tags": ["Collaborators"],
                "summary": "List collaborators on a resource",
                "parameters": [
                    {"name": "resource_type", "in": "query", "required": true, "type": "string"},
                    {"name": "resource_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "post": {
                "tags": ["Collaborators"],
                "summary": "Grant a collaborator role",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/GrantCollaboratorRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Collaborators"],
                "summary": "Revoke a collaborator role",
                "parameters": [
                    {"name": "resource_type", "in": "query", "required": true, "type": "string"},
                    {"name": "resource_id", "in": "query", "required": true, "type": "string"},
                    {"name": "user_id", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Revoked"}
                }
            }
        },
        "/trash": {
            "get": {
                "tags": ["Trash"],
                "summary": "List trash contents",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            },
            "delete": {
                "tags": ["Trash"],
                "summary": "Empty the trash",
                "responses": {
                    "204": {"description": "Emptied"}
                }
            }
        },
        "/trash/files/{id}/restore": {
            "post": {
                "tags": ["Trash"],
                "summary": "Restore a file from trash",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trash/folders/{id}/restore": {
            "post": {
                "tags": ["Trash"],
                "summary": "Restore a folder from trash",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "schema": {"$ref": "#/definitions/RestoreFolderRequest"}}
                ],
                "responses": {
                    "200": {"description": "Restored", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Name collision at destination", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/trash/files/{id}": {
            "delete": {
                "tags": ["Trash"],
                "summary": "Permanently delete a trashed file",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Purged"}
                }
            }
        },
        "/trash/folders/{id}": {
            "delete": {
                "tags": ["Trash"],
                "summary": "Permanently delete a trashed folder subtree",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Purged"}
                }
            }
        },
        "/dashboard/stats": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Get my usage stats",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/dashboard/overview": {
            "get": {
                "tags": ["Dashboard"],
                "summary": "Get platform-wide totals (admin)",
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "403": {"description": "Admin only", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "CreateFolderRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"},
                "color": {"type": "string"},
                "parent_id": {"type": "string"}
            }
        },
        "RenameFolderRequest": {
            "type": "object",
            "required": ["name"],
            "properties": {
                "name": {"type": "string"}
            }
        },
        "MoveFolderRequest": {
            "type": "object",
            "properties": {
                "parent_id": {"type": "string"}
            }
        },
        "UpdateFileRequest": {
            "type": "object",
            "properties": {
                "name": {"type": "string"},
                "description": {"type": "string"},
                "tags": {"type": "string"},
                "starred": {"type": "boolean"},
                "is_public": {"type": "boolean"}
            }
        },
        "MoveFileRequest": {
            "type": "object",
            "properties": {
                "folder_id": {"type": "string"}
            }
        },
        "CreateShareRequest": {
            "type": "object",
            "required": ["permission"],
            "properties": {
                "file_id": {"type": "string"},
                "folder_id": {"type": "string"},
                "permission": {"type": "string", "enum": ["view", "comment", "edit"]},
                "password": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "max_downloads": {"type": "integer"}
            }
        },
        "UpdateShareRequest": {
            "type": "object",
            "properties": {
                "permission": {"type": "string", "enum": ["view", "comment", "edit"]},
                "password": {"type": "string"},
                "expires_at": {"type": "string", "format": "date-time"},
                "max_downloads": {"type": "integer"},
                "is_active": {"type": "boolean"}
            }
        },
        "GrantCollaboratorRequest": {
            "type": "object",
            "required": ["resource_type", "resource_id", "role"],
            "properties": {
                "resource_type": {"type": "string", "enum": ["file", "folder"]},
                "resource_id": {"type": "string"},
                "user_id": {"type": "string"},
                "email": {"type": "string", "format": "email"},
                "role": {"type": "string", "enum": ["viewer", "commenter", "editor"]},
                "expires_at": {"type": "string", "format": "date-time"}
            }
        },
        "RestoreFolderRequest": {
            "type": "object",
            "properties": {
                "cascade": {"type": "boolean"}
            }
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
