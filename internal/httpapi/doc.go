// Package httpapi exposes the lookup service over HTTP.
//
//	GET  /health               liveness
//	GET  /token/{identifier}   200 record | 404 not_found | 504 timeout | 500
//	POST /tokens/batch         {"identifiers": [...]} -> partitioned result | 400
package httpapi
