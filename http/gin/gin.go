// Package gin provides Gin-compatible bindings for the exchange API.
// This package is a thin adapter that translates gin.Context to stdlib
// http patterns and delegates all settlement logic to the http package.
package gin

import (
	"github.com/gin-gonic/gin"

	dcvxhttp "github.com/dcentralverse/dcvx-go/http"
)

// Mount attaches the exchange API to a Gin router. All /v1 routes are
// served by the http package's handlers.
//
// Example usage:
//
//	srv := dcvxhttp.NewServer(ex, royalties)
//	r := gin.Default()
//	dcvxgin.Mount(r, srv)
//	r.Run(":8080")
func Mount(r gin.IRouter, s *dcvxhttp.Server) {
	handler := gin.WrapH(s.Router())
	r.Any("/v1/*path", handler)
}

// AbortWithSettlementError terminates the handler chain with the
// standard error envelope for a settlement failure. Useful for Gin
// applications that call the engine directly instead of going through
// Mount.
func AbortWithSettlementError(c *gin.Context, err error) {
	c.AbortWithStatusJSON(dcvxhttp.StatusForError(err), dcvxhttp.ErrorResponse{
		Code:  dcvxhttp.ErrorCode(err),
		Error: err.Error(),
	})
}
