package api

// Minimal OpenAPI document served at /swagger.json.
const openAPISpec = `{
  "openapi": "3.0.0",
  "info": {
    "title": "Stock Lock Service API",
    "version": "1.0.0"
  },
  "paths": {
    "/health": {
      "get": {
        "summary": "Health check",
        "responses": { "200": { "description": "Service is healthy" } }
      }
    },
    "/api/resources": {
      "get": {
        "summary": "Stock of every resource and the pool total",
        "responses": { "200": { "description": "Pool snapshot" } }
      }
    },
    "/api/resources/{sku}": {
      "get": {
        "summary": "Stock of one resource",
        "parameters": [
          { "name": "sku", "in": "path", "required": true, "schema": { "type": "string" } }
        ],
        "responses": {
          "200": { "description": "Resource found" },
          "404": { "description": "Unknown sku" }
        }
      }
    },
    "/api/stats": {
      "get": {
        "summary": "Reservation counters",
        "responses": { "200": { "description": "Counters" } }
      }
    },
    "/api/reservations": {
      "post": {
        "summary": "Reserve every line of a cart, all or nothing",
        "requestBody": {
          "required": true,
          "content": {
            "application/json": {
              "schema": { "$ref": "#/components/schemas/ReserveRequest" }
            }
          }
        },
        "responses": {
          "200": { "description": "Reserved" },
          "400": { "description": "Invalid cart" },
          "404": { "description": "Unknown sku" },
          "409": { "description": "Out of stock" },
          "423": { "description": "Contended, retry later" }
        }
      }
    },
    "/api/reservations/{orderId}": {
      "get": {
        "summary": "Reservation of an order",
        "parameters": [
          { "name": "orderId", "in": "path", "required": true, "schema": { "type": "string", "format": "uuid" } }
        ],
        "responses": {
          "200": { "description": "Reservation found" },
          "404": { "description": "Reservation not found" }
        }
      },
      "delete": {
        "summary": "Release the reservation of an order",
        "parameters": [
          { "name": "orderId", "in": "path", "required": true, "schema": { "type": "string", "format": "uuid" } }
        ],
        "responses": {
          "200": { "description": "Released" },
          "404": { "description": "No active reservation" },
          "423": { "description": "Contended, retry later" }
        }
      }
    },
    "/api/simulations": {
      "post": {
        "summary": "Run concurrent random orders against the pool",
        "requestBody": {
          "content": {
            "application/json": {
              "schema": { "$ref": "#/components/schemas/SimulationRequest" }
            }
          }
        },
        "responses": {
          "200": { "description": "Aggregate outcome counts" },
          "400": { "description": "Orders or cartSize out of range" }
        }
      }
    }
  },
  "components": {
    "schemas": {
      "CartLine": {
        "type": "object",
        "properties": {
          "sku": { "type": "string" },
          "quantity": { "type": "integer" }
        }
      },
      "ReserveRequest": {
        "type": "object",
        "properties": {
          "orderId": { "type": "string", "format": "uuid" },
          "userId": { "type": "string", "format": "uuid" },
          "timeoutMs": { "type": "integer" },
          "lines": { "type": "array", "maxItems": 1024, "items": { "$ref": "#/components/schemas/CartLine" } }
        }
      },
      "SimulationRequest": {
        "type": "object",
        "properties": {
          "orders": { "type": "integer", "minimum": 1 },
          "cartSize": { "type": "integer", "minimum": 1 },
          "parallelism": { "type": "integer" },
          "timeoutMs": { "type": "integer" }
        }
      }
    }
  }
}`
