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
        "/api/v1/switch/{device_number}/{method}": {
            "get": {
                "description": "Reads a switch property. Protocol errors are reported in the body with status 200; malformed requests get a plain-text 400 and device faults a plain-text 500.",
                "produces": [
                    "application/json",
                    "text/plain"
                ],
                "tags": [
                    "alpaca"
                ],
                "summary": "Alpaca switch method",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Device number (always 0)",
                        "name": "device_number",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Method name, lowercase",
                        "name": "method",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Switch index",
                        "name": "Id",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Client id",
                        "name": "ClientID",
                        "in": "query"
                    },
                    {
                        "type": "integer",
                        "description": "Client transaction id, echoed back",
                        "name": "ClientTransactionID",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.AlpacaResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "Device error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            },
            "put": {
                "description": "Commands a switch or a common method. Parameters are sent as a url-encoded form body.",
                "consumes": [
                    "application/x-www-form-urlencoded"
                ],
                "produces": [
                    "application/json",
                    "text/plain"
                ],
                "tags": [
                    "alpaca"
                ],
                "summary": "Alpaca switch method",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Device number (always 0)",
                        "name": "device_number",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "string",
                        "description": "Method name, lowercase",
                        "name": "method",
                        "in": "path",
                        "required": true
                    },
                    {
                        "type": "integer",
                        "description": "Switch index",
                        "name": "Id",
                        "in": "formData"
                    },
                    {
                        "type": "string",
                        "description": "State for setswitch (true or false)",
                        "name": "State",
                        "in": "formData"
                    },
                    {
                        "type": "number",
                        "description": "Value for setswitchvalue",
                        "name": "Value",
                        "in": "formData"
                    },
                    {
                        "type": "integer",
                        "description": "Client id",
                        "name": "ClientID",
                        "in": "formData"
                    },
                    {
                        "type": "integer",
                        "description": "Client transaction id, echoed back",
                        "name": "ClientTransactionID",
                        "in": "formData"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.AlpacaResponse"
                        }
                    },
                    "400": {
                        "description": "Invalid request",
                        "schema": {
                            "type": "string"
                        }
                    },
                    "500": {
                        "description": "Device error",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        },
        "/health": {
            "get": {
                "description": "Reports roster size, discovery activity and the last server transaction id",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Health check",
                "responses": {
                    "200": {
                        "description": "Roster built",
                        "schema": {
                            "$ref": "#/definitions/types.HealthResponse"
                        }
                    },
                    "503": {
                        "description": "First discovery not finished",
                        "schema": {
                            "$ref": "#/definitions/types.HealthResponse"
                        }
                    }
                }
            }
        },
        "/management/apiversions": {
            "get": {
                "description": "Value is the list of supported Alpaca API versions",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "management"
                ],
                "summary": "Supported API versions",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Client transaction id, echoed back",
                        "name": "ClientTransactionID",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ManagementResponse"
                        }
                    }
                }
            }
        },
        "/management/v1/configureddevices": {
            "get": {
                "description": "Value lists the single switch device with its UniqueID",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "management"
                ],
                "summary": "Configured devices",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Client transaction id, echoed back",
                        "name": "ClientTransactionID",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ManagementResponse"
                        }
                    }
                }
            }
        },
        "/management/v1/description": {
            "get": {
                "description": "Value holds server name, manufacturer, version and location",
                "produces": [
                    "application/json"
                ],
                "tags": [
                    "management"
                ],
                "summary": "Server description",
                "parameters": [
                    {
                        "type": "integer",
                        "description": "Client transaction id, echoed back",
                        "name": "ClientTransactionID",
                        "in": "query"
                    }
                ],
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "$ref": "#/definitions/types.ManagementResponse"
                        }
                    }
                }
            }
        },
        "/metrics": {
            "get": {
                "description": "Prometheus exposition of transaction, roster, discovery and device failure metrics",
                "produces": [
                    "text/plain"
                ],
                "tags": [
                    "health"
                ],
                "summary": "Prometheus metrics",
                "responses": {
                    "200": {
                        "description": "OK",
                        "schema": {
                            "type": "string"
                        }
                    }
                }
            }
        }
    },
    "definitions": {
        "types.AlpacaResponse": {
            "type": "object",
            "properties": {
                "ClientTransactionID": {
                    "type": "integer"
                },
                "ErrorMessage": {
                    "type": "string"
                },
                "ErrorNumber": {
                    "type": "integer"
                },
                "ServerTransactionID": {
                    "type": "integer"
                },
                "Value": {}
            }
        },
        "types.ManagementResponse": {
            "type": "object",
            "properties": {
                "ClientTransactionID": {
                    "type": "integer"
                },
                "ServerTransactionID": {
                    "type": "integer"
                },
                "Value": {}
            }
        },
        "types.HealthResponse": {
            "type": "object",
            "properties": {
                "discovering": {
                    "type": "boolean"
                },
                "last_discovery": {
                    "type": "string"
                },
                "status": {
                    "type": "string"
                },
                "switches": {
                    "type": "integer"
                },
                "timestamp": {
                    "type": "string"
                },
                "transactions": {
                    "type": "integer"
                }
            }
        }
    }
}`

// SwaggerInfo holds exported Swagger Info so clients can modify it
var SwaggerInfo = &swag.Spec{
	Version:          "1.0",
	Host:             "localhost:11111",
	BasePath:         "/",
	Schemes:          []string{"http"},
	Title:            "Alpaca Switch API",
	Description:      "ASCOM Alpaca switch device backed by Kasa plugs and USB relay boards",
	InfoInstanceName: "swagger",
	SwaggerTemplate:  docTemplate,
	LeftDelim:        "{{",
	RightDelim:       "}}",
}

func init() {
	swag.Register(SwaggerInfo.InstanceName(), SwaggerInfo)
}
