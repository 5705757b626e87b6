package helpers

import (
	"github.com/labstack/echo/v4"
)

type ctxKey string

const (
	keyAdminSubject ctxKey = "admin_subject"
	keyFetchSource  ctxKey = "fetch_source"
)

func SetAdminSubject(c echo.Context, sub string) { c.Set(string(keyAdminSubject), sub) }
func GetAdminSubject(c echo.Context) (string, bool) {
	v, ok := c.Get(string(keyAdminSubject)).(string)
	return v, ok
}

func SetFetchSource(c echo.Context, source string) { c.Set(string(keyFetchSource), source) }
func GetFetchSource(c echo.Context) (string, bool) {
	v, ok := c.Get(string(keyFetchSource)).(string)
	return v, ok
}
