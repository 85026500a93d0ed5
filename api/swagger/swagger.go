package swagger

import "github.com/swaggo/swag"

const docTemplate = `{
    "swagger": "2.0",
    "info": {
        "title": "Olimpiada Registration API",
        "description": "Enrollment and payment settlement for competition registration",
        "version": "1.0.0"
    },
    "basePath": "/api/v1",
    "schemes": [
        "http"
    ],
    "tags": [
        {"name": "Registration", "description": "One-shot student registration"},
        {"name": "Enrollments", "description": "Student enrollments per area"},
        {"name": "PaymentOrders", "description": "Payment order ledger"},
        {"name": "PaymentReceipts", "description": "Receipt submission and review"},
        {"name": "EnrollmentLists", "description": "Bulk enrollment lists by educational unit"},
        {"name": "Catalog", "description": "Convocatoria offerings"}
    ],
    "paths": {
        "/enroll-complete": {
            "post": {
                "tags": ["Registration"],
                "summary": "Register a student with tutors, enrollments and a payment order",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CompleteRegistrationRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments": {
            "post": {
                "tags": ["Enrollments"],
                "summary": "Enroll an existing student in one area",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/EnrollRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollments/{id}": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "Get an enrollment",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "404": {"description": "Not found", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/students/{id}/enrollments": {
            "get": {
                "tags": ["Enrollments"],
                "summary": "List the enrollments of a student",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-orders/quote": {
            "get": {
                "tags": ["PaymentOrders"],
                "summary": "Quote the amount an order would carry",
                "parameters": [
                    {"name": "originType", "in": "query", "required": true, "type": "string", "enum": ["INDIVIDUAL", "LIST"]},
                    {"name": "originId", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-orders": {
            "post": {
                "tags": ["PaymentOrders"],
                "summary": "Open a payment order",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/OpenOrderRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "A live order already exists", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-orders/{id}": {
            "get": {
                "tags": ["PaymentOrders"],
                "summary": "Get a payment order with its receipts",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-receipts": {
            "post": {
                "tags": ["PaymentReceipts"],
                "summary": "Submit a payment receipt with its document",
                "consumes": ["multipart/form-data"],
                "parameters": [
                    {"name": "orderId", "in": "formData", "required": true, "type": "string"},
                    {"name": "receiptNumber", "in": "formData", "required": true, "type": "string"},
                    {"name": "payerName", "in": "formData", "required": true, "type": "string"},
                    {"name": "paymentDate", "in": "formData", "required": true, "type": "string", "format": "date"},
                    {"name": "amount", "in": "formData", "required": true, "type": "string"},
                    {"name": "file", "in": "formData", "required": true, "type": "file"}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "422": {"description": "Validation failed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-receipts/{id}": {
            "delete": {
                "tags": ["PaymentReceipts"],
                "summary": "Delete a receipt that is not verified",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Deleted"},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-receipts/{id}/verify": {
            "post": {
                "tags": ["PaymentReceipts"],
                "summary": "Verify or reject a pending receipt",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/VerifyReceiptRequest"}}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Receipt already reviewed", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-receipts/{id}/document-url": {
            "get": {
                "tags": ["PaymentReceipts"],
                "summary": "Issue a signed download link for the receipt document",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/payment-receipts/{id}/document": {
            "get": {
                "tags": ["PaymentReceipts"],
                "summary": "Download the receipt document",
                "produces": ["application/octet-stream"],
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "token", "in": "query", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "Document", "schema": {"type": "file"}},
                    "403": {"description": "Invalid or expired token", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-lists": {
            "post": {
                "tags": ["EnrollmentLists"],
                "summary": "Create an enrollment list with its entries",
                "parameters": [
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/CreateListRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "Conflict", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-lists/{id}": {
            "get": {
                "tags": ["EnrollmentLists"],
                "summary": "Get an enrollment list with its entries",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-lists/{id}/details": {
            "post": {
                "tags": ["EnrollmentLists"],
                "summary": "Add an entry to an editable list",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "payload", "in": "body", "required": true, "schema": {"$ref": "#/definitions/ListDetailRequest"}}
                ],
                "responses": {
                    "201": {"description": "Created", "schema": {"$ref": "#/definitions/ResponseEnvelope"}},
                    "409": {"description": "List is frozen by a live order", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/enrollment-lists/{id}/details/{detailId}": {
            "delete": {
                "tags": ["EnrollmentLists"],
                "summary": "Remove an entry from an editable list",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"},
                    {"name": "detailId", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "204": {"description": "Removed"}
                }
            }
        },
        "/convocatorias/{id}/offerings": {
            "get": {
                "tags": ["Catalog"],
                "summary": "List area offerings with levels and costs",
                "parameters": [
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        },
        "/catalog/{kind}/{id}/dependents": {
            "get": {
                "tags": ["Catalog"],
                "summary": "Count enrollments and list entries referencing a catalog entry",
                "parameters": [
                    {"name": "kind", "in": "path", "required": true, "type": "string", "enum": ["area-offerings", "level-offerings"]},
                    {"name": "id", "in": "path", "required": true, "type": "string"}
                ],
                "responses": {
                    "200": {"description": "OK", "schema": {"$ref": "#/definitions/ResponseEnvelope"}}
                }
            }
        }
    },
    "definitions": {
        "Tutor": {
            "type": "object",
            "properties": {
                "nationalId": {"type": "string"},
                "firstNames": {"type": "string"},
                "lastNames": {"type": "string"},
                "email": {"type": "string"},
                "phone": {"type": "string"}
            },
            "required": ["nationalId", "firstNames", "lastNames"]
        },
        "Student": {
            "type": "object",
            "properties": {
                "nationalId": {"type": "string"},
                "firstNames": {"type": "string"},
                "lastNames": {"type": "string"},
                "birthDate": {"type": "string", "format": "date-time"},
                "email": {"type": "string"},
                "educationalUnitId": {"type": "string"},
                "gradeId": {"type": "string"}
            },
            "required": ["nationalId", "firstNames", "lastNames", "educationalUnitId", "gradeId"]
        },
        "AreaSelection": {
            "type": "object",
            "properties": {
                "areaOfferingId": {"type": "string"},
                "levelOfferingId": {"type": "string"}
            },
            "required": ["areaOfferingId", "levelOfferingId"]
        },
        "CompleteRegistrationRequest": {
            "type": "object",
            "properties": {
                "student": {"$ref": "#/definitions/Student"},
                "legalTutor": {"$ref": "#/definitions/Tutor"},
                "academicTutor": {"$ref": "#/definitions/Tutor"},
                "areaSelections": {"type": "array", "items": {"$ref": "#/definitions/AreaSelection"}},
                "dueDate": {"type": "string", "format": "date-time"}
            },
            "required": ["student", "legalTutor", "areaSelections"]
        },
        "EnrollRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "areaOfferingId": {"type": "string"},
                "levelOfferingId": {"type": "string"},
                "academicTutorId": {"type": "string"}
            },
            "required": ["studentId", "areaOfferingId", "levelOfferingId"]
        },
        "OpenOrderRequest": {
            "type": "object",
            "properties": {
                "originType": {"type": "string", "enum": ["INDIVIDUAL", "LIST"]},
                "originId": {"type": "string"},
                "dueDate": {"type": "string", "format": "date-time"}
            },
            "required": ["originType", "originId"]
        },
        "VerifyReceiptRequest": {
            "type": "object",
            "properties": {
                "decision": {"type": "string", "enum": ["VERIFIED", "REJECTED"]}
            },
            "required": ["decision"]
        },
        "ListDetailRequest": {
            "type": "object",
            "properties": {
                "studentId": {"type": "string"},
                "areaOfferingId": {"type": "string"},
                "levelOfferingId": {"type": "string"},
                "academicTutorId": {"type": "string"}
            },
            "required": ["studentId", "areaOfferingId", "levelOfferingId"]
        },
        "CreateListRequest": {
            "type": "object",
            "properties": {
                "educationalUnitId": {"type": "string"},
                "convocatoriaId": {"type": "string"},
                "details": {"type": "array", "items": {"$ref": "#/definitions/ListDetailRequest"}}
            },
            "required": ["educationalUnitId", "convocatoriaId", "details"]
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
                "status": {"type": "string"},
                "message": {"type": "string"},
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
