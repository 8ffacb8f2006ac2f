package api

import "github.com/labstack/echo/v4"

// Access says which authentication middleware guards a route.
type Access int

const (
	Public Access = iota
	OptionalAuth
	Authenticated
	Socket
)

// Route is one entry of the routing table: method + path -> handler.
type Route struct {
	Method  string
	Path    string
	Handler echo.HandlerFunc
	Access  Access
}
