// Package http provides the HTTP API for the deaddrop file-drop service.
//
// The API is deliberately small:
//
//	POST /api/v1/upload          multipart upload, returns {id, expires_at}
//	GET  /api/v1/download/{id}   streams the blob and burns one download
//	GET  /api/v1/files/{id}      returns remaining downloads and TTL
//	GET  /api/v1/health          service and dependency status
//
// Every failure to retrieve a file, whatever the internal reason, surfaces
// as the same 404 response. A client probing ids cannot distinguish
// never-existed from expired from exhausted.
//
// # Usage
//
// Create a handler around a deaddrop.Service and mount its router:
//
//	h := http.NewHandler(&http.HandlerConfig{Version: "1.0.0"}, svc)
//	http.ListenAndServe(":8080", h.Router())
//
// The router installs request-id and request-logging middleware, plus CORS
// when enabled in the config.
package http
