package blobstore

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// ServeHandler returns the echo handler for GET /files/*. It checks the
// signature and expiry produced by the signer before streaming the object,
// so the route can stay outside the session-token middleware.
func ServeHandler(store ObjectStore, signer *URLSigner) echo.HandlerFunc {
	return func(c echo.Context) error {
		path := c.Param("*")
		expires, err := strconv.ParseInt(c.QueryParam("expires"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusForbidden, "invalid download link")
		}
		if err := signer.Verify(path, expires, c.QueryParam("sig")); err != nil {
			if errors.Is(err, ErrURLExpired) {
				return echo.NewHTTPError(http.StatusForbidden, "download link expired")
			}
			return echo.NewHTTPError(http.StatusForbidden, "invalid download link")
		}

		content, info, err := store.Download(c.Request().Context(), path)
		if err != nil {
			if errors.Is(err, ErrObjectNotFound) {
				return echo.NewHTTPError(http.StatusNotFound, "file not found")
			}
			return echo.NewHTTPError(http.StatusInternalServerError, "failed to read file")
		}
		defer content.Close()

		c.Response().Header().Set("Content-Length", strconv.FormatInt(info.Size, 10))
		return c.Stream(http.StatusOK, info.ContentType, content)
	}
}
